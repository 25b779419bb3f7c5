package handlers

import (
	"net/http"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/PortNumber53/membership-metrics/internal/metrics"
	"github.com/PortNumber53/membership-metrics/internal/models"
)

const maxWaterfallMonths = 120

type activityItem struct {
	models.Activity
	Label     string          `json:"label"`
	MRRImpact decimal.Decimal `json:"mrr_impact"`
}

// Activities returns the most recent normalized activities, newest first.
func (h *DashboardHandler) Activities() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := intParam(r, "limit", defaultActivityCap, maxActivityCap)
		if !ok {
			http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		dash, ok := h.dashboard(w, r)
		if !ok {
			return
		}

		items := make([]activityItem, 0, limit)
		for i := len(dash.Activities) - 1; i >= 0 && len(items) < limit; i-- {
			a := dash.Activities[i]
			items = append(items, activityItem{
				Activity:  a,
				Label:     metrics.ActivityLabel(a.Type),
				MRRImpact: a.MRRImpactDollars(),
			})
		}
		writeJSON(w, map[string]any{
			"snapshot":       snapshotMeta(dash),
			"activities":     items,
			"total":          len(dash.Activities),
			"activity_error": dash.ActivityError,
		})
	}
}

// Waterfall reconciles MRR month by month between start and end.
func (h *DashboardHandler) Waterfall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, ok := monthParam(r, "start", models.Month{})
		if !ok {
			http.Error(w, "start must be formatted as YYYY-MM", http.StatusBadRequest)
			return
		}
		now := h.now().UTC()
		end, ok := monthParam(r, "end", models.MonthOf(now))
		if !ok {
			http.Error(w, "end must be formatted as YYYY-MM", http.StatusBadRequest)
			return
		}
		if !start.IsZero() && end.Before(start) {
			http.Error(w, "start must not be after end", http.StatusBadRequest)
			return
		}

		dash, ok := h.dashboard(w, r)
		if !ok {
			return
		}
		if start.IsZero() {
			start = models.MonthOf(dash.ActivityWindowStart)
			if end.Before(start) {
				start = end
			}
		}
		if len(models.MonthRange(start, end)) > maxWaterfallMonths {
			http.Error(w, "range must not exceed 120 months", http.StatusBadRequest)
			return
		}

		baseline, source := h.Baselines.Resolve(r.Context(), start)
		balances := metrics.Reconcile(dash.Activities, start, end, baseline)
		rows := make([]models.WaterfallRow, 0, len(balances)*(len(models.WaterfallCategories)+2))
		for _, b := range balances {
			rows = append(rows, b.Rows()...)
		}

		writeJSON(w, map[string]any{
			"snapshot": snapshotMeta(dash),
			"start":    start,
			"end":      end,
			"baseline": map[string]any{
				"month":  start,
				"amount": baseline,
				"source": source,
			},
			"months":         balances,
			"rows":           rows,
			"trend":          metrics.Trend(balances),
			"activity_error": dash.ActivityError,
		})
	}
}

// Breakdown returns the trailing-year revenue movement per month and category.
func (h *DashboardHandler) Breakdown() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dash, ok := h.dashboard(w, r)
		if !ok {
			return
		}
		writeJSON(w, map[string]any{
			"snapshot":   snapshotMeta(dash),
			"categories": models.WaterfallCategories,
			"rows":       metrics.RevenueBreakdown(dash.Activities, h.now().UTC()),
		})
	}
}

// Growth returns monthly membership changes and the reconstructed active
// member series since the given month.
func (h *DashboardHandler) Growth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since, ok := monthParam(r, "since", models.Month{})
		if !ok {
			http.Error(w, "since must be formatted as YYYY-MM", http.StatusBadRequest)
			return
		}
		dash, ok := h.dashboard(w, r)
		if !ok {
			return
		}
		if since.IsZero() {
			since = models.MonthOf(dash.ActivityWindowStart)
		}

		now := h.now().UTC()
		changes := metrics.MonthlyChanges(dash.Subscriptions, dash.Activities, since.Start(), now)
		active := metrics.CalculateMRR(dash.Subscriptions).ActiveMembers
		source := "activities"
		if !dash.ActivitiesAvailable {
			source = "subscriptions"
		}
		writeJSON(w, map[string]any{
			"snapshot":       snapshotMeta(dash),
			"since":          since,
			"source":         source,
			"changes":        changes,
			"current_active": active,
			"membership":     metrics.ReconstructMembership(active, changes),
		})
	}
}

// Plans returns plan distribution, revenue and month-over-month counts.
func (h *DashboardHandler) Plans() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, ok := intParam(r, "days", defaultWindowDays, maxWindowDays)
		if !ok {
			http.Error(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		dash, ok := h.dashboard(w, r)
		if !ok {
			return
		}
		mom := metrics.MonthOverMonth(dash.Subscriptions, h.now().UTC(), days)
		writeJSON(w, map[string]any{
			"snapshot":     snapshotMeta(dash),
			"distribution": metrics.PlanDistribution(dash.Subscriptions),
			"revenue":      metrics.PlanRevenue(dash.Subscriptions),
			"changes":      mom.Plans,
		})
	}
}

// Education returns the education share, its growth and education activity
// counts per category.
func (h *DashboardHandler) Education() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dash, ok := h.dashboard(w, r)
		if !ok {
			return
		}

		mrr := metrics.CalculateMRR(dash.Subscriptions)
		mom := metrics.MonthOverMonth(dash.Subscriptions, h.now().UTC(), defaultWindowDays)

		counts := map[models.Category]int{}
		for _, a := range dash.Activities {
			if a.IsEducation.True() {
				counts[a.Category]++
			}
		}
		categories := make([]string, 0, len(counts))
		for c := range counts {
			categories = append(categories, string(c))
		}
		sort.Strings(categories)
		byCategory := make([]map[string]any, 0, len(categories))
		for _, c := range categories {
			byCategory = append(byCategory, map[string]any{
				"category": c,
				"count":    counts[models.Category(c)],
			})
		}

		writeJSON(w, map[string]any{
			"snapshot": snapshotMeta(dash),
			"share":    metrics.EducationShare(dash.Subscriptions, mrr.ActiveMembers),
			"growth":   metrics.EducationGrowth(dash.Subscriptions),
			"month_over_month": map[string]int{
				"current":  mom.EducationCurrent,
				"previous": mom.EducationPrevious,
				"change":   mom.EducationChange,
			},
			"activities": byCategory,
		})
	}
}
