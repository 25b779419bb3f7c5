package metrics

import (
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/PortNumber53/membership-metrics/internal/models"
)

// ActiveAsOf returns the rows that were active at instant t, judged from
// their creation and expiry times rather than the current active flag.
func ActiveAsOf(subs []models.Subscription, t time.Time) []models.Subscription {
	return lo.Filter(subs, func(s models.Subscription, _ int) bool { return s.ActiveAt(t) })
}

// MRRAsOf reconstructs MRR at instant t in major units.
func MRRAsOf(subs []models.Subscription, t time.Time) decimal.Decimal {
	mrr, _ := sumMonthly(ActiveAsOf(subs, t))
	return mrr
}

// PlanCounts counts distinct subscriptions and distinct members per plan,
// ordered by plan name.
func PlanCounts(rows []models.Subscription) []models.PlanCount {
	grouped := lo.GroupBy(rows, func(s models.Subscription) string { return s.Plan })
	counts := make([]models.PlanCount, 0, len(grouped))
	for plan, planRows := range grouped {
		counts = append(counts, models.PlanCount{
			Plan:     plan,
			Accounts: len(lo.UniqBy(planRows, bySubscription)),
			Members:  len(lo.UniqBy(planRows, byMember)),
		})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Plan < counts[j].Plan })
	return counts
}

func educationMembers(rows []models.Subscription) int {
	return len(lo.UniqBy(lo.Filter(rows, func(s models.Subscription, _ int) bool {
		return s.IsEducation.True()
	}), byMember))
}

// MonthOverMonth compares the current active set against the set that was
// active days days before now. Plans present at either instant are listed.
func MonthOverMonth(subs []models.Subscription, now time.Time, days int) models.MonthOverMonth {
	current := activeRows(subs)
	previous := ActiveAsOf(subs, now.Add(-time.Duration(days)*day))

	prevByPlan := lo.KeyBy(PlanCounts(previous), func(c models.PlanCount) string { return c.Plan })
	curByPlan := lo.KeyBy(PlanCounts(current), func(c models.PlanCount) string { return c.Plan })
	plans := lo.Uniq(append(lo.Keys(curByPlan), lo.Keys(prevByPlan)...))
	sort.Strings(plans)

	result := models.MonthOverMonth{Plans: make([]models.PlanChange, 0, len(plans))}
	for _, plan := range plans {
		cur, prev := curByPlan[plan], prevByPlan[plan]
		result.Plans = append(result.Plans, models.PlanChange{
			Plan:            plan,
			CurrentAccounts: cur.Accounts,
			CurrentMembers:  cur.Members,
			PrevAccounts:    prev.Accounts,
			PrevMembers:     prev.Members,
			AccountChange:   cur.Accounts - prev.Accounts,
			MemberChange:    cur.Members - prev.Members,
		})
	}

	result.EducationCurrent = educationMembers(current)
	result.EducationPrevious = educationMembers(previous)
	result.EducationChange = result.EducationCurrent - result.EducationPrevious

	result.CurrentMRR, _ = sumMonthly(current)
	result.PreviousMRR, _ = sumMonthly(previous)
	result.MRRChange = result.CurrentMRR.Sub(result.PreviousMRR)
	result.MRRChangePercent = percentOf(result.MRRChange, result.PreviousMRR)
	return result
}
