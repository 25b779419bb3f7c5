package metrics

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/PortNumber53/membership-metrics/internal/models"
)

var (
	newTypes     = []string{models.ActivityNewOrder, models.ActivityNewSubscription}
	churnedTypes = []string{models.ActivitySubscriptionDeactivate, models.ActivitySubscriptionDeleted}
	renewedTypes = []string{models.ActivityRenewal}
)

// monthTally counts distinct keys per month.
type monthTally map[models.Month]map[string]struct{}

func (t monthTally) add(m models.Month, key string) {
	if t[m] == nil {
		t[m] = make(map[string]struct{})
	}
	t[m][key] = struct{}{}
}

func (t monthTally) count(m models.Month) int {
	return len(t[m])
}

// tallyActivities counts distinct subscriptions per month among activities
// of the given types. ok is false when no such activity exists.
func tallyActivities(activities []models.Activity, types []string) (monthTally, bool) {
	tally := monthTally{}
	found := false
	for _, a := range activities {
		if !lo.Contains(types, a.Type) {
			continue
		}
		found = true
		key := "activity:" + a.ID
		if a.SubscriptionID != nil {
			key = *a.SubscriptionID
		}
		tally.add(a.Month(), key)
	}
	return tally, found
}

// MonthlyChanges counts new, churned and renewed subscriptions per month
// since since. Each kind comes from the activity log when it has events of
// that kind, otherwise from subscription data: new by creation month,
// churned by expiry month for inactive subscriptions that have already
// expired. Renewals are only known from the log. The result covers every
// month between the first and last with data.
func MonthlyChanges(subs []models.Subscription, activities []models.Activity, since, now time.Time) []models.MonthChange {
	recent := lo.Filter(activities, func(a models.Activity, _ int) bool {
		return !a.CreatedAt.Before(since) && !a.CreatedAt.After(now)
	})

	newTally, ok := tallyActivities(recent, newTypes)
	if !ok {
		newTally = monthTally{}
		for _, s := range subs {
			if !s.CreatedAt.Before(since) && !s.CreatedAt.After(now) {
				newTally.add(models.MonthOf(s.CreatedAt), s.SubscriptionID)
			}
		}
	}

	churnTally, ok := tallyActivities(recent, churnedTypes)
	if !ok {
		churnTally = monthTally{}
		for _, s := range subs {
			if s.Active || s.ExpiresAt == nil {
				continue
			}
			if s.ExpiresAt.Before(since) || s.ExpiresAt.After(now) {
				continue
			}
			churnTally.add(models.MonthOf(*s.ExpiresAt), s.SubscriptionID)
		}
	}

	renewTally, _ := tallyActivities(recent, renewedTypes)

	var first, last models.Month
	for _, tally := range []monthTally{newTally, churnTally, renewTally} {
		for m := range tally {
			if first.IsZero() || m.Before(first) {
				first = m
			}
			if last.IsZero() || last.Before(m) {
				last = m
			}
		}
	}
	if first.IsZero() {
		return []models.MonthChange{}
	}

	months := models.MonthRange(first, last)
	changes := make([]models.MonthChange, 0, len(months))
	for _, m := range months {
		c := models.MonthChange{
			Month:   m,
			New:     newTally.count(m),
			Churned: churnTally.count(m),
			Renewed: renewTally.count(m),
		}
		c.Net = c.New - c.Churned
		changes = append(changes, c)
	}
	return changes
}

// ReconstructMembership estimates the active-member count at the end of each
// month by walking back from currentActive through the monthly changes. The
// latest month equals currentActive. It assumes new and churned subscriptions
// fully explain each month's movement and that churn lands in the expiry
// month, so the series is an approximation.
func ReconstructMembership(currentActive int, changes []models.MonthChange) []models.MembershipMonth {
	series := make([]models.MembershipMonth, len(changes))
	if len(changes) == 0 {
		return series
	}
	last := len(changes) - 1
	series[last] = models.MembershipMonth{Month: changes[last].Month, Active: currentActive}
	for i := last - 1; i >= 0; i-- {
		next := changes[i+1]
		series[i] = models.MembershipMonth{
			Month:  changes[i].Month,
			Active: series[i+1].Active - next.New + next.Churned,
		}
	}
	return series
}

// EducationShare compares distinct active education members to activeCount.
func EducationShare(subs []models.Subscription, activeCount int) models.EducationShare {
	education := educationMembers(activeRows(subs))
	return models.EducationShare{
		Education: education,
		Active:    activeCount,
		Percent:   percentOf(decimal.NewFromInt(int64(education)), decimal.NewFromInt(int64(activeCount))),
	}
}

// EducationGrowth counts active education subscription rows by creation
// month, oldest first.
func EducationGrowth(subs []models.Subscription) []models.MonthCount {
	return SignupsByMonth(lo.Filter(activeRows(subs), func(s models.Subscription, _ int) bool {
		return s.IsEducation.True()
	}))
}
