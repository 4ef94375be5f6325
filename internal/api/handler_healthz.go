package api

import "net/http"

// HandleHealthz serves GET /healthz. Liveness only: no auth and no store
// access, so it answers even while the loops are failing.
func HandleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
