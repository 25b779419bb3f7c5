package handlers

import (
	"log"
	"net/http"
)

// Refresh discards the cached snapshot and rebuilds it.
func (h *DashboardHandler) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dash, err := h.Source.Refresh(r.Context())
		if err != nil {
			log.Printf("[handlers] Manual refresh failed: %v", err)
			http.Error(w, "failed to refresh membership data", http.StatusBadGateway)
			return
		}
		log.Printf("[handlers] Snapshot %s rebuilt on request", dash.ID)
		writeJSON(w, map[string]any{
			"refreshed": true,
			"snapshot":  snapshotMeta(dash),
		})
	}
}

// Status reports on the cached snapshot without triggering a build.
func (h *DashboardHandler) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{"cached": false}

		if dash := h.Source.Peek(); dash != nil {
			payload["cached"] = true
			payload["snapshot"] = snapshotMeta(dash)
			payload["members"] = len(dash.Members)
			payload["subscriptions"] = len(dash.Subscriptions)
			payload["activities"] = len(dash.Activities)
			payload["skipped_subscriptions"] = dash.SkippedSubscriptions
			payload["skipped_activities"] = dash.SkippedActivities
			payload["activity_window_start"] = dash.ActivityWindowStart
			if dash.ActivityError != "" {
				payload["activity_error"] = dash.ActivityError
			}
		}

		if h.Scheduler != nil {
			payload["scheduler"] = h.Scheduler.Stats()
		}
		writeJSON(w, payload)
	}
}
