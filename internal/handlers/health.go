package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/PortNumber53/membership-metrics/internal/snapshot"
)

// SnapshotPeeker exposes the cached snapshot without building one.
type SnapshotPeeker interface {
	Peek() *snapshot.Dashboard
}

// Health responds with status 200 while the process is up, and reports
// whether a membership snapshot is cached and how old it is.
func Health(cache SnapshotPeeker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		payload := map[string]any{
			"status":          "ok",
			"timestamp":       now.Format(time.RFC3339Nano),
			"snapshot_cached": false,
		}
		if dash := cache.Peek(); dash != nil {
			payload["snapshot_cached"] = true
			payload["snapshot_id"] = dash.ID
			payload["snapshot_age_seconds"] = int64(now.Sub(dash.FetchedAt).Seconds())
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}
}
