package api

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/waterline-io/waterline/internal/service"
)

// Server wraps the HTTP server and mux for the Waterline API.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a new API server wired with all routes.
// An empty adminToken disables authentication; callers are expected to
// reject weak tokens before getting here.
func NewServer(
	listenAddress string,
	port int,
	adminToken string,
	cp *service.ControlPlane,
	apiMaxBodyBytes int64,
) *Server {
	mux := http.NewServeMux()

	// Public (no auth)
	mux.Handle("GET /healthz", HandleHealthz())

	// Authenticated routes
	authed := http.NewServeMux()
	authed.Handle("GET /api/v1/system/info", HandleSystemInfo(cp))

	// Networks and baselines.
	authed.Handle("POST /api/v1/networks", HandleCreateNetwork(cp))
	authed.Handle("GET /api/v1/networks", HandleListNetworks(cp))
	authed.Handle("GET /api/v1/networks/{id}", HandleGetNetwork(cp))
	authed.Handle("POST /api/v1/networks/{id}/actions/compute-baseline", HandleComputeBaseline(cp))

	// Telemetry generation loop.
	authed.Handle("POST /api/v1/simulator/actions/start", HandleStartSimulator(cp))
	authed.Handle("POST /api/v1/simulator/actions/stop", HandleStopSimulator(cp))
	authed.Handle("GET /api/v1/simulator/status", HandleSimulatorStatus(cp))

	// Anomaly detection loop.
	authed.Handle("POST /api/v1/monitor/actions/start", HandleStartMonitor(cp))
	authed.Handle("POST /api/v1/monitor/actions/stop", HandleStopMonitor(cp))
	authed.Handle("GET /api/v1/monitor/status", HandleMonitorStatus(cp))

	// Read-side views.
	authed.Handle("GET /api/v1/networks/{id}/anomalies", HandleListAnomalies(cp))
	authed.Handle("GET /api/v1/networks/{id}/dashboard", HandleDashboard(cp))

	limitedAuthed := RequestBodyLimitMiddleware(apiMaxBodyBytes, authed)
	if adminToken == "" {
		mux.Handle("/api/", limitedAuthed)
	} else {
		mux.Handle("/api/", AuthMiddleware(adminToken, limitedAuthed))
	}

	srv := &http.Server{
		Addr:    net.JoinHostPort(listenAddress, strconv.Itoa(port)),
		Handler: mux,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
	}
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}
