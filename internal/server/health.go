package server

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks that a dependency is reachable (e.g. *pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

type healthHandler struct {
	db Pinger
}

// check reports SERVING when the database answers within two seconds. A nil pinger skips the check.
func (h *healthHandler) check(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "SERVING", Database: "skipped"}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			resp = healthResponse{Status: "NOT_SERVING", Database: "unreachable"}
			writeJSON(w, http.StatusServiceUnavailable, envelope{
				StatusCode: http.StatusServiceUnavailable,
				Message:    "Service unavailable",
				Data:       resp,
				Code:       "UNAVAILABLE",
			})
			return
		}
		resp.Database = "ok"
	}
	writeSuccess(w, http.StatusOK, "OK", resp)
}
