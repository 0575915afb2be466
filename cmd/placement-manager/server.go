// cmd/placement-manager/server.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"placement-engine/internal/catalog"
	"placement-engine/internal/common/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type catalogSearcher interface {
	Search(ctx context.Context, q catalog.SearchQuery) ([]catalog.Document, error)
}

// newServeMux serves health, readiness and metrics. The catalog search route
// is only mounted when a searcher is configured.
func newServeMux(ready func(ctx context.Context) error, search catalogSearcher, now func() time.Time, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   now().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := ready(ctx); err != nil {
			log.Warn("readiness check failed", map[string]interface{}{"error": err.Error()})
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   now().Format(time.RFC3339),
		})
	})

	mux.Handle("/metrics", promhttp.Handler())

	if search != nil {
		mux.HandleFunc("/catalog/opportunities", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			q, err := parseSearchQuery(r, now())
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			docs, err := search.Search(r.Context(), q)
			if err != nil {
				log.Error("catalog search failed", map[string]interface{}{"error": err.Error()})
				writeJSON(w, http.StatusBadGateway, map[string]string{"error": "catalog unavailable"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"total":         len(docs),
				"opportunities": docs,
			})
		})
	}

	return mux
}

func parseSearchQuery(r *http.Request, now time.Time) (catalog.SearchQuery, error) {
	v := r.URL.Query()
	q := catalog.SearchQuery{
		Keywords: v.Get("q"),
		Level:    v.Get("level"),
		Major:    v.Get("major"),
		On:       now,
	}
	var err error
	if s := v.Get("from"); s != "" {
		if q.From, err = strconv.Atoi(s); err != nil || q.From < 0 {
			return q, errBadParam("from")
		}
	}
	if s := v.Get("size"); s != "" {
		if q.Size, err = strconv.Atoi(s); err != nil || q.Size < 1 || q.Size > 100 {
			return q, errBadParam("size")
		}
	}
	return q, nil
}

type errBadParam string

func (e errBadParam) Error() string { return "invalid query parameter: " + string(e) }

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
