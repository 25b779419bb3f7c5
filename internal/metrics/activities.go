package metrics

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/PortNumber53/membership-metrics/internal/models"
)

// ActivityResult holds the normalised activity log.
type ActivityResult struct {
	Activities []models.Activity
	Skipped    []SkippedRecord
}

// NormalizeActivities flattens raw activities, assigning each a category
// and a signed MRR impact in cents. classify decides education membership.
// Activities without a usable timestamp are skipped; missing plan or
// subscription data only zeroes the impact. The result is ordered by
// creation time.
func NormalizeActivities(raw []models.RawActivity, classify ActivityClassifier) ActivityResult {
	if classify == nil {
		classify = IsEducationActivity
	}
	result := ActivityResult{Activities: make([]models.Activity, 0, len(raw))}

	for _, ra := range raw {
		createdAt, ok, err := ra.CreatedAt.Time()
		if !ok {
			result.Skipped = append(result.Skipped, SkippedRecord{ID: ra.ID, Reason: "missing created_at"})
			continue
		}
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedRecord{ID: ra.ID, Reason: err.Error()})
			continue
		}

		education := classify(ra)
		act := models.Activity{
			ID:           ra.ID,
			Type:         ra.Type,
			Category:     models.CategoryOther,
			CreatedAt:    createdAt,
			IsEducation:  models.Some(education),
			MonthlyValue: decimal.Zero,
		}
		if m := ra.Member; m != nil {
			act.MemberID = m.ID
			act.MemberName = m.FullName
			act.MemberEmail = m.Email
		}

		if ra.Subscription == nil {
			act.Category = categoryWithoutSubscription(ra.Type)
			act.MRRImpactCents = decimal.Zero
			result.Activities = append(result.Activities, act)
			continue
		}

		subID := ra.Subscription.ID
		act.SubscriptionID = &subID
		act.Plan = planSnapshot(ra.Subscription.Plan)
		act.MonthlyValue = planMonthlyValue(ra.Subscription.Plan)

		if education {
			act.Category = educationCategory(ra.Type)
			act.MRRImpactCents = decimal.Zero
		} else {
			act.Category, act.MRRImpactCents, act.ImpactApproximate = categorize(ra, act.MonthlyValue)
		}
		result.Activities = append(result.Activities, act)
	}

	sort.SliceStable(result.Activities, func(i, j int) bool {
		return result.Activities[i].CreatedAt.Before(result.Activities[j].CreatedAt)
	})
	return result
}

func categoryWithoutSubscription(activityType string) models.Category {
	switch {
	case activityType == models.ActivityFreeSignup:
		return models.CategoryFreeSignups
	case strings.Contains(activityType, "team_member"):
		return models.CategoryTeamMemberChanges
	case strings.Contains(activityType, "auto_renew"):
		return models.CategorySubscriptionChanges
	default:
		return models.CategoryOther
	}
}

func educationCategory(activityType string) models.Category {
	switch activityType {
	case models.ActivityNewSubscription, models.ActivityNewOrder:
		return models.CategoryEducationMembers
	case models.ActivityRenewal:
		return models.CategoryEducationRenewals
	case models.ActivitySubscriptionDeactivate:
		return models.CategoryEducationCancellations
	default:
		return models.CategoryEducationChanges
	}
}

func isFailedPayment(activityType string) bool {
	return activityType == models.ActivityRenewalPaymentFailed ||
		strings.Contains(activityType, "payment_failed") ||
		strings.Contains(activityType, "renewal_failed")
}

// categorize applies the category and impact table to a paying member's
// activity. Upgrades and downgrades use the true delta when the previous
// plan is known.
func categorize(ra models.RawActivity, monthly decimal.Decimal) (models.Category, decimal.Decimal, bool) {
	switch t := ra.Type; {
	case t == models.ActivityNewSubscription || t == models.ActivityNewOrder:
		return models.CategoryNewMembers, monthly, false
	case t == models.ActivitySubscriptionReactivate:
		return models.CategoryReactivations, monthly, false
	case t == models.ActivityUpgrade:
		if prev, ok := previousMonthlyValue(ra); ok {
			return models.CategoryUpgrades, monthly.Sub(prev), false
		}
		return models.CategoryUpgrades, monthly, true
	case t == models.ActivityDowngrade:
		if prev, ok := previousMonthlyValue(ra); ok {
			return models.CategoryDowngrades, monthly.Sub(prev), false
		}
		return models.CategoryDowngrades, monthly.Neg(), true
	case t == models.ActivitySubscriptionDeleted || t == models.ActivitySubscriptionDeactivate:
		return models.CategoryCancellations, monthly.Neg(), false
	case isFailedPayment(t):
		return models.CategoryFailedPayments, monthly.Neg(), false
	case t == models.ActivityRenewal:
		return models.CategoryRenewals, decimal.Zero, false
	default:
		return models.CategoryOther, decimal.Zero, false
	}
}

func previousMonthlyValue(ra models.RawActivity) (decimal.Decimal, bool) {
	if ra.PreviousData == nil || ra.PreviousData.Plan == nil {
		return decimal.Zero, false
	}
	p := ra.PreviousData.Plan
	if p.PriceCents == nil || p.IntervalUnit == nil {
		return decimal.Zero, false
	}
	return planMonthlyValue(p), true
}

func planMonthlyValue(p *models.RawPlan) decimal.Decimal {
	if p == nil || p.PriceCents == nil || p.IntervalUnit == nil {
		return decimal.Zero
	}
	count := 1
	if p.IntervalCount != nil {
		count = *p.IntervalCount
	}
	return MonthlyValue(*p.PriceCents, *p.IntervalUnit, count)
}

func planSnapshot(p *models.RawPlan) *models.PlanSnapshot {
	if p == nil {
		return nil
	}
	return &models.PlanSnapshot{
		Name:          p.Name,
		PriceCents:    p.PriceCents,
		IntervalUnit:  p.IntervalUnit,
		IntervalCount: p.IntervalCount,
	}
}

// ActivityLabel returns a human-readable description of an activity type.
func ActivityLabel(activityType string) string {
	switch {
	case activityType == models.ActivityNewOrder || activityType == models.ActivityNewSubscription:
		return "New subscription"
	case activityType == models.ActivitySubscriptionDeactivate:
		return "Subscription deactivated"
	case activityType == models.ActivitySubscriptionDeleted:
		return "Subscription deleted"
	case activityType == models.ActivitySubscriptionReactivate:
		return "Subscription reactivated"
	case activityType == models.ActivityFreeSignup:
		return "Free signup"
	case strings.Contains(activityType, "renewal") && strings.Contains(activityType, "failed"):
		return "Renewal failed"
	case activityType == models.ActivityRenewal:
		return "Subscription renewed"
	case activityType == models.ActivityUpgrade:
		return "Plan upgraded"
	case activityType == models.ActivityDowngrade:
		return "Plan downgraded"
	case activityType == models.ActivityAutoRenewDisabled:
		return "Auto-renewal disabled"
	case activityType == models.ActivityTeamMemberDeleted:
		return "Team member removed"
	case activityType == models.ActivityTeamMemberAdded || activityType == "new_team_member":
		return "New team member added"
	case activityType == "":
		return "Unknown"
	}
	words := strings.Split(activityType, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
