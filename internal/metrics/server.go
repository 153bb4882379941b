package metrics

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jarvis-hq/jarvis/internal/audit"
)

// AuditTail is the narrow interface metrics needs from an audit store,
// so this package never depends on audit internals beyond Tail.
type AuditTail interface {
	Tail(limit int) ([]audit.Record, error)
}

// Handler builds the exposure mux: a plain-text /metrics endpoint and an
// /audit/tail endpoint, neither of which exposes secrets (redaction already
// happened at Append time).
func (m *Metrics) Handler(store AuditTail) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/audit/tail", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "audit store not configured", http.StatusServiceUnavailable)
			return
		}
		limit := 200
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}
		records, err := store.Tail(limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(records)
	})

	return mux
}
