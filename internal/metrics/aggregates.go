package metrics

import (
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/PortNumber53/membership-metrics/internal/models"
)

const day = 24 * time.Hour

func bySubscription(s models.Subscription) string { return s.SubscriptionID }
func byMember(s models.Subscription) string       { return s.MemberID }

func activeRows(subs []models.Subscription) []models.Subscription {
	return lo.Filter(subs, func(s models.Subscription, _ int) bool { return s.Active })
}

// sumMonthly totals the monthly value of each distinct non-education
// subscription in rows, in major units.
func sumMonthly(rows []models.Subscription) (decimal.Decimal, int) {
	paying := lo.UniqBy(lo.Filter(rows, func(s models.Subscription, _ int) bool {
		return !s.IsEducation.True()
	}), bySubscription)
	total := lo.Reduce(paying, func(acc decimal.Decimal, s models.Subscription, _ int) decimal.Decimal {
		return acc.Add(s.MonthlyValue)
	}, decimal.Zero)
	return ToMajor(total), len(paying)
}

// CalculateMRR computes current MRR and member counts. Group plans count once
// toward MRR and paying members; active and education counts are by member.
func CalculateMRR(subs []models.Subscription) models.MRRSummary {
	active := activeRows(subs)
	mrr, paying := sumMonthly(active)
	education := lo.Filter(active, func(s models.Subscription, _ int) bool { return s.IsEducation.True() })
	return models.MRRSummary{
		CurrentMRR:       mrr,
		PayingMembers:    paying,
		ActiveMembers:    len(lo.UniqBy(active, byMember)),
		EducationMembers: len(lo.UniqBy(education, byMember)),
	}
}

// NewMembersInWindow returns one row per subscription created within the
// last days days of now.
func NewMembersInWindow(subs []models.Subscription, days int, now time.Time) []models.Subscription {
	cutoff := now.Add(-time.Duration(days) * day)
	recent := lo.Filter(subs, func(s models.Subscription, _ int) bool {
		return !s.CreatedAt.Before(cutoff)
	})
	return lo.UniqBy(recent, bySubscription)
}

// AllMembersView joins each member to their most recently created
// subscription. On equal creation times the earlier row wins.
func AllMembersView(members []models.Member, subs []models.Subscription) []models.MemberView {
	latest := make(map[string]models.Subscription, len(subs))
	for _, s := range subs {
		if cur, ok := latest[s.MemberID]; !ok || s.CreatedAt.After(cur.CreatedAt) {
			latest[s.MemberID] = s
		}
	}

	views := make([]models.MemberView, 0, len(members))
	for _, m := range members {
		view := models.MemberView{Member: m}
		if s, ok := latest[m.ID]; ok {
			subID, active, plan := s.SubscriptionID, s.Active, s.Plan
			view.SubscriptionID = &subID
			view.Active = &active
			view.Plan = &plan
			view.SubscriptionIsEducation = s.IsEducation
		}
		views = append(views, view)
	}
	return views
}

// RecentOrdersTotal sums completed orders created within the last days days
// of now, in major units. Orders with an unusable timestamp are ignored.
func RecentOrdersTotal(raw []models.RawMember, days int, now time.Time) decimal.Decimal {
	cutoff := now.Add(-time.Duration(days) * day)
	var cents int64
	for _, m := range raw {
		for _, o := range m.Orders {
			if o.Status != "completed" {
				continue
			}
			at, ok, err := o.CreatedAt.Time()
			if !ok || err != nil || at.Before(cutoff) || at.After(now) {
				continue
			}
			cents += o.TotalCents
		}
	}
	return ToMajor(decimal.NewFromInt(cents))
}

// ExpiringSoon returns active subscriptions expiring between now and
// now+days, soonest first.
func ExpiringSoon(subs []models.Subscription, days int, now time.Time) []models.Subscription {
	horizon := now.Add(time.Duration(days) * day)
	expiring := lo.Filter(subs, func(s models.Subscription, _ int) bool {
		return s.Active && s.ExpiresAt != nil && !s.ExpiresAt.Before(now) && !s.ExpiresAt.After(horizon)
	})
	sort.SliceStable(expiring, func(i, j int) bool {
		return expiring[i].ExpiresAt.Before(*expiring[j].ExpiresAt)
	})
	return expiring
}

// AutoRenewOff returns active subscriptions that will not renew.
func AutoRenewOff(subs []models.Subscription) []models.Subscription {
	return lo.Filter(subs, func(s models.Subscription, _ int) bool { return s.Active && !s.AutoRenew })
}

func AutoRenewBreakdown(subs []models.Subscription) models.AutoRenewCounts {
	var counts models.AutoRenewCounts
	for _, s := range activeRows(subs) {
		if s.AutoRenew {
			counts.On++
		} else {
			counts.Off++
		}
	}
	return counts
}

// SignupsByMonth counts subscription rows by creation month, oldest first.
func SignupsByMonth(subs []models.Subscription) []models.MonthCount {
	grouped := lo.GroupBy(subs, func(s models.Subscription) models.Month {
		return models.MonthOf(s.CreatedAt)
	})
	counts := make([]models.MonthCount, 0, len(grouped))
	for m, rows := range grouped {
		counts = append(counts, models.MonthCount{Month: m, Count: len(rows)})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Month.Before(counts[j].Month) })
	return counts
}

// MembershipTotals computes the overview counts: active rows, rows created
// since since, distinct members and subscriptions expiring within 30 days.
func MembershipTotals(subs []models.Subscription, since, now time.Time) models.MembershipTotals {
	active := activeRows(subs)
	return models.MembershipTotals{
		ActiveSubscriptions: len(active),
		NewSince: lo.CountBy(subs, func(s models.Subscription) bool {
			return !s.CreatedAt.Before(since)
		}),
		UniqueMembers: len(lo.UniqBy(subs, byMember)),
		ExpiringSoon:  len(ExpiringSoon(subs, 30, now)),
	}
}
