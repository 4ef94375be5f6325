package api

import (
	"net/http"

	"github.com/waterline-io/waterline/internal/service"
)

// defaultDashboardWindowMinutes is used when window_minutes is absent.
const defaultDashboardWindowMinutes = 60

// HandleDashboard returns a handler for GET /api/v1/networks/{id}/dashboard.
func HandleDashboard(cp *service.ControlPlane) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireUUIDPathParam(w, r, "id", "network_id")
		if !ok {
			return
		}
		window, err := ParseFloatQuery(r, "window_minutes", defaultDashboardWindowMinutes)
		if err != nil {
			writeInvalidArgument(w, err.Error())
			return
		}
		m, err := cp.DashboardMetrics(id, window)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, m)
	}
}
