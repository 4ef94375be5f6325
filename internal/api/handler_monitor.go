package api

import (
	"net/http"

	"github.com/waterline-io/waterline/internal/monitor"
	"github.com/waterline-io/waterline/internal/service"
)

// StartMonitorRequest is the body of POST /api/v1/monitor/actions/start.
// A nil config means monitor defaults.
type StartMonitorRequest struct {
	NetworkID string          `json:"network_id"`
	Config    *monitor.Config `json:"config"`
}

// HandleStartMonitor returns a handler for POST /api/v1/monitor/actions/start.
func HandleStartMonitor(cp *service.ControlPlane) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartMonitorRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if !ValidateUUID(req.NetworkID) {
			writeInvalidArgument(w, "network_id: must be a valid UUID")
			return
		}
		cfg := monitor.DefaultConfig()
		if req.Config != nil {
			cfg = *req.Config
		}
		status, err := cp.StartMonitor(req.NetworkID, cfg)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, status)
	}
}

// HandleStopMonitor returns a handler for POST /api/v1/monitor/actions/stop.
func HandleStopMonitor(cp *service.ControlPlane) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := cp.StopMonitor()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, status)
	}
}

// HandleMonitorStatus returns a handler for GET /api/v1/monitor/status.
func HandleMonitorStatus(cp *service.ControlPlane) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cp.MonitorStatus())
	}
}
