package api

import (
	"net/http"

	"github.com/waterline-io/waterline/internal/model"
	"github.com/waterline-io/waterline/internal/service"
	"github.com/waterline-io/waterline/internal/store"
)

// HandleListAnomalies returns a handler for GET /api/v1/networks/{id}/anomalies.
// Optional filters: severity, from_ns, to_ns, limit, offset.
func HandleListAnomalies(cp *service.ControlPlane) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireUUIDPathParam(w, r, "id", "network_id")
		if !ok {
			return
		}
		pg, err := ParsePagination(r)
		if err != nil {
			writeInvalidArgument(w, err.Error())
			return
		}
		fromNs, err := ParseInt64Query(r, "from_ns", 0)
		if err != nil {
			writeInvalidArgument(w, err.Error())
			return
		}
		toNs, err := ParseInt64Query(r, "to_ns", 0)
		if err != nil {
			writeInvalidArgument(w, err.Error())
			return
		}

		page, err := cp.Anomalies(id, store.AnomalyFilter{
			Severity: model.Severity(r.URL.Query().Get("severity")),
			FromNs:   fromNs,
			ToNs:     toNs,
			Limit:    pg.Limit,
			Offset:   pg.Offset,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, PageResponse[model.Anomaly]{
			Items:  page.Items,
			Total:  page.Total,
			Limit:  page.Limit,
			Offset: page.Offset,
		})
	}
}
