package metrics

import (
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/PortNumber53/membership-metrics/internal/models"
)

// PlanDistribution counts active subscription rows per plan, largest first.
func PlanDistribution(subs []models.Subscription) []models.PlanShare {
	active := activeRows(subs)
	grouped := lo.GroupBy(active, func(s models.Subscription) string { return s.Plan })
	total := decimal.NewFromInt(int64(len(active)))

	shares := make([]models.PlanShare, 0, len(grouped))
	for plan, rows := range grouped {
		count := decimal.NewFromInt(int64(len(rows)))
		shares = append(shares, models.PlanShare{
			Plan:    plan,
			Count:   len(rows),
			Percent: percentOf(count, total),
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Plan < shares[j].Plan
	})
	return shares
}

// PlanRevenue splits current MRR by plan. Each subscription contributes once
// and a group subscription counts as one member. Education rows are
// excluded, so the plan totals add up to CalculateMRR.
func PlanRevenue(subs []models.Subscription) []models.PlanRevenue {
	paying := lo.UniqBy(lo.Filter(activeRows(subs), func(s models.Subscription, _ int) bool {
		return !s.IsEducation.True()
	}), bySubscription)
	grouped := lo.GroupBy(paying, func(s models.Subscription) string { return s.Plan })
	total, _ := sumMonthly(paying)

	revenue := make([]models.PlanRevenue, 0, len(grouped))
	for plan, rows := range grouped {
		mrr, _ := sumMonthly(rows)
		members := len(lo.UniqBy(rows, byMember))
		avg := decimal.Zero
		if members > 0 {
			avg = mrr.DivRound(decimal.NewFromInt(int64(members)), 2)
		}
		revenue = append(revenue, models.PlanRevenue{
			Plan:             plan,
			MRR:              mrr,
			Members:          members,
			AveragePerMember: avg,
			Percent:          percentOf(mrr, total),
		})
	}
	sort.Slice(revenue, func(i, j int) bool {
		if !revenue[i].MRR.Equal(revenue[j].MRR) {
			return revenue[i].MRR.GreaterThan(revenue[j].MRR)
		}
		return revenue[i].Plan < revenue[j].Plan
	})
	return revenue
}
