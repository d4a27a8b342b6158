package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"hireview.io/internal/audit"
)

// handleAuditQuery serves the read-only compliance interface: entries by
// entity key and optional RFC 3339 time range. Route-level scope already
// restricts this to platform admins.
func (a *API) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	q := audit.Query{EntityKey: r.URL.Query().Get("entity_key")}

	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		q.From = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		q.To = t
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = n
	}

	entries, err := a.recorder.Entries(r.Context(), q)
	if err != nil {
		a.guard.Reject(w, r, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
