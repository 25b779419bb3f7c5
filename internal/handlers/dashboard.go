package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/PortNumber53/membership-metrics/internal/models"
	"github.com/PortNumber53/membership-metrics/internal/snapshot"
)

const (
	defaultWindowDays  = 30
	maxWindowDays      = 3650
	defaultActivityCap = 100
	maxActivityCap     = 1000
)

// DashboardSource serves the current snapshot.
type DashboardSource interface {
	Get(ctx context.Context) (*snapshot.Dashboard, error)
	Refresh(ctx context.Context) (*snapshot.Dashboard, error)
	Peek() *snapshot.Dashboard
}

// BaselineResolver supplies the opening MRR of a reconciliation window.
type BaselineResolver interface {
	Resolve(ctx context.Context, month models.Month) (decimal.Decimal, string)
}

// RefreshStats reports background refresh counters.
type RefreshStats interface {
	Stats() snapshot.Stats
}

// DashboardHandler holds dependencies for the metrics endpoints.
type DashboardHandler struct {
	Source    DashboardSource
	Baselines BaselineResolver
	Scheduler RefreshStats

	now func() time.Time
}

// NewDashboardHandler creates a DashboardHandler. scheduler may be nil when
// background refreshes are disabled.
func NewDashboardHandler(source DashboardSource, baselines BaselineResolver, scheduler RefreshStats) *DashboardHandler {
	return &DashboardHandler{
		Source:    source,
		Baselines: baselines,
		Scheduler: scheduler,
		now:       time.Now,
	}
}

// WithClock overrides the clock used to evaluate time windows.
func (h *DashboardHandler) WithClock(now func() time.Time) *DashboardHandler {
	h.now = now
	return h
}

// RegisterRoutes registers the dashboard routes on router.
func (h *DashboardHandler) RegisterRoutes(router chi.Router) {
	router.Get("/summary", h.Summary())
	router.Get("/members", h.Members())
	router.Get("/members/new", h.NewMembers())
	router.Get("/members/expiring", h.ExpiringMembers())
	router.Get("/members/auto-renew-off", h.AutoRenewOff())
	router.Get("/activities", h.Activities())
	router.Get("/mrr/waterfall", h.Waterfall())
	router.Get("/mrr/breakdown", h.Breakdown())
	router.Get("/growth", h.Growth())
	router.Get("/plans", h.Plans())
	router.Get("/education", h.Education())
	router.Get("/export/members.csv", h.ExportMembers())
	router.Post("/refresh", h.Refresh())
	router.Get("/status", h.Status())
}

// dashboard loads the snapshot, writing a 502 when it cannot be built.
func (h *DashboardHandler) dashboard(w http.ResponseWriter, r *http.Request) (*snapshot.Dashboard, bool) {
	dash, err := h.Source.Get(r.Context())
	if err != nil {
		log.Printf("[handlers] Snapshot unavailable for %s: %v", r.URL.Path, err)
		http.Error(w, "failed to load membership data", http.StatusBadGateway)
		return nil, false
	}
	return dash, true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// intParam reads a positive integer query parameter bounded by max.
func intParam(r *http.Request, name string, fallback, max int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 || parsed > max {
		return 0, false
	}
	return parsed, true
}

// monthParam reads a YYYY-MM query parameter.
func monthParam(r *http.Request, name string, fallback models.Month) (models.Month, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	m, err := models.ParseMonth(raw)
	if err != nil {
		return models.Month{}, false
	}
	return m, true
}

func snapshotMeta(dash *snapshot.Dashboard) map[string]any {
	return map[string]any{
		"id":                   dash.ID,
		"fetched_at":           dash.FetchedAt.Format(time.RFC3339),
		"activities_available": dash.ActivitiesAvailable,
	}
}
