package api

import (
	"net/http"

	"github.com/waterline-io/waterline/internal/service"
)

// CreateNetworkRequest is the body of POST /api/v1/networks.
type CreateNetworkRequest struct {
	DisplayName string `json:"display_name"`
	Definition  string `json:"definition"`
}

// HandleCreateNetwork returns a handler for POST /api/v1/networks.
func HandleCreateNetwork(cp *service.ControlPlane) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateNetworkRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		n, err := cp.CreateNetwork(req.DisplayName, []byte(req.Definition))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, n)
	}
}

// HandleListNetworks returns a handler for GET /api/v1/networks.
func HandleListNetworks(cp *service.ControlPlane) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		networks, err := cp.ListNetworks()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		pg, err := ParsePagination(r)
		if err != nil {
			writeInvalidArgument(w, err.Error())
			return
		}
		WritePage(w, http.StatusOK, networks, pg)
	}
}

// HandleGetNetwork returns a handler for GET /api/v1/networks/{id}.
func HandleGetNetwork(cp *service.ControlPlane) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireUUIDPathParam(w, r, "id", "network_id")
		if !ok {
			return
		}
		n, err := cp.GetNetwork(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, n)
	}
}

// HandleComputeBaseline returns a handler for
// POST /api/v1/networks/{id}/actions/compute-baseline.
// The optional recompute query parameter replaces an existing baseline.
func HandleComputeBaseline(cp *service.ControlPlane) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireUUIDPathParam(w, r, "id", "network_id")
		if !ok {
			return
		}
		recompute, err := ParseBoolQuery(r, "recompute")
		if err != nil {
			writeInvalidArgument(w, err.Error())
			return
		}
		summary, err := cp.ComputeBaseline(id, recompute != nil && *recompute)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, summary)
	}
}
