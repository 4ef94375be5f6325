package api

import (
	"net/http"

	"github.com/waterline-io/waterline/internal/service"
	"github.com/waterline-io/waterline/internal/simulator"
)

// StartSimulatorRequest is the body of POST /api/v1/simulator/actions/start.
// A nil config means simulator defaults.
type StartSimulatorRequest struct {
	NetworkID string            `json:"network_id"`
	Config    *simulator.Config `json:"config"`
}

// HandleStartSimulator returns a handler for POST /api/v1/simulator/actions/start.
func HandleStartSimulator(cp *service.ControlPlane) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartSimulatorRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if !ValidateUUID(req.NetworkID) {
			writeInvalidArgument(w, "network_id: must be a valid UUID")
			return
		}
		cfg := simulator.DefaultConfig()
		if req.Config != nil {
			cfg = *req.Config
		}
		status, err := cp.StartSimulator(req.NetworkID, cfg)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, status)
	}
}

// HandleStopSimulator returns a handler for POST /api/v1/simulator/actions/stop.
func HandleStopSimulator(cp *service.ControlPlane) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := cp.StopSimulator()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, status)
	}
}

// HandleSimulatorStatus returns a handler for GET /api/v1/simulator/status.
func HandleSimulatorStatus(cp *service.ControlPlane) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cp.SimulatorStatus())
	}
}
