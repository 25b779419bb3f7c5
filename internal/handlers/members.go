package handlers

import (
	"encoding/csv"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/PortNumber53/membership-metrics/internal/metrics"
	"github.com/PortNumber53/membership-metrics/internal/models"
)

// Summary returns the headline figures of the overview page.
func (h *DashboardHandler) Summary() http.HandlerFunc {
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

		now := h.now().UTC()
		mrr := metrics.CalculateMRR(dash.Subscriptions)
		writeJSON(w, map[string]any{
			"snapshot":            snapshotMeta(dash),
			"days":                days,
			"mrr":                 mrr,
			"recent_orders_total": metrics.RecentOrdersTotal(dash.RawMembers, days, now),
			"totals":              metrics.MembershipTotals(dash.Subscriptions, now.AddDate(0, 0, -days), now),
			"auto_renew":          metrics.AutoRenewBreakdown(dash.Subscriptions),
			"education":           metrics.EducationShare(dash.Subscriptions, mrr.ActiveMembers),
			"month_over_month":    metrics.MonthOverMonth(dash.Subscriptions, now, days),
			"signups_by_month":    metrics.SignupsByMonth(dash.Subscriptions),
		})
	}
}

// Members returns every member joined with their latest subscription.
func (h *DashboardHandler) Members() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dash, ok := h.dashboard(w, r)
		if !ok {
			return
		}
		views := metrics.AllMembersView(dash.Members, dash.Subscriptions)
		writeJSON(w, map[string]any{
			"members": views,
			"total":   len(views),
		})
	}
}

// NewMembers returns subscriptions created within the last days days.
func (h *DashboardHandler) NewMembers() http.HandlerFunc {
	return h.subscriptionWindow(metrics.NewMembersInWindow)
}

// ExpiringMembers returns active subscriptions expiring within days days.
func (h *DashboardHandler) ExpiringMembers() http.HandlerFunc {
	return h.subscriptionWindow(metrics.ExpiringSoon)
}

func (h *DashboardHandler) subscriptionWindow(pick func([]models.Subscription, int, time.Time) []models.Subscription) http.HandlerFunc {
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
		subs := pick(dash.Subscriptions, days, h.now().UTC())
		writeJSON(w, map[string]any{
			"subscriptions": subs,
			"days":          days,
			"total":         len(subs),
		})
	}
}

// AutoRenewOff returns active subscriptions that will not renew.
func (h *DashboardHandler) AutoRenewOff() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dash, ok := h.dashboard(w, r)
		if !ok {
			return
		}
		subs := metrics.AutoRenewOff(dash.Subscriptions)
		writeJSON(w, map[string]any{
			"subscriptions": subs,
			"total":         len(subs),
		})
	}
}

var memberCSVHeader = []string{"member_id", "email", "name", "total_spend", "is_education", "subscription_id", "active", "plan"}

// ExportMembers streams the all-members view as CSV.
func (h *DashboardHandler) ExportMembers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dash, ok := h.dashboard(w, r)
		if !ok {
			return
		}

		filename := "members-" + dash.FetchedAt.Format("2006-01-02") + ".csv"
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

		out := csv.NewWriter(w)
		_ = out.Write(memberCSVHeader)
		for _, v := range metrics.AllMembersView(dash.Members, dash.Subscriptions) {
			_ = out.Write([]string{
				v.ID,
				v.Email,
				v.Name,
				metrics.ToMajor(decimal.NewFromInt(v.TotalSpendCents)).StringFixed(2),
				optionalBool(v.IsEducation),
				stringOrEmpty(v.SubscriptionID),
				boolOrEmpty(v.Active),
				stringOrEmpty(v.Plan),
			})
		}
		out.Flush()
		if err := out.Error(); err != nil {
			log.Printf("[handlers] Member export interrupted: %v", err)
		}
	}
}

func optionalBool(b models.OptionalBool) string {
	if !b.Known {
		return ""
	}
	return strconv.FormatBool(b.Value)
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func boolOrEmpty(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}
