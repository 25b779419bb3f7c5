package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PortNumber53/membership-metrics/internal/models"
)

func TestNormalizeActivitiesCategoryTable(t *testing.T) {
	plan := monthlyPlan("Individual membership", 5000)
	tests := []struct {
		activityType string
		category     models.Category
		impact       string
	}{
		{models.ActivityNewSubscription, models.CategoryNewMembers, "5000"},
		{models.ActivityNewOrder, models.CategoryNewMembers, "5000"},
		{models.ActivitySubscriptionReactivate, models.CategoryReactivations, "5000"},
		{models.ActivitySubscriptionDeleted, models.CategoryCancellations, "-5000"},
		{models.ActivitySubscriptionDeactivate, models.CategoryCancellations, "-5000"},
		{models.ActivityRenewalPaymentFailed, models.CategoryFailedPayments, "-5000"},
		{"order_payment_failed", models.CategoryFailedPayments, "-5000"},
		{"subscription_renewal_failed", models.CategoryFailedPayments, "-5000"},
		{models.ActivityRenewal, models.CategoryRenewals, "0"},
		{"gift_redeemed", models.CategoryOther, "0"},
	}

	for _, tc := range tests {
		t.Run(tc.activityType, func(t *testing.T) {
			result := NormalizeActivities([]models.RawActivity{rawActivity("a1", tc.activityType, now, plan)}, IsEducationActivity)
			require.Len(t, result.Activities, 1)
			act := result.Activities[0]
			assert.Equal(t, tc.category, act.Category)
			assertDecimal(t, tc.impact, act.MRRImpactCents)
			assertDecimal(t, "5000", act.MonthlyValue)
			assert.False(t, act.ImpactApproximate)
			require.NotNil(t, act.SubscriptionID)
			assert.Equal(t, "s-a1", *act.SubscriptionID)
		})
	}
}

func TestNormalizeActivitiesUpgradeDowngrade(t *testing.T) {
	upgrade := rawActivity("up", models.ActivityUpgrade, now, monthlyPlan("Small business membership", 8000))
	downgrade := rawActivity("down", models.ActivityDowngrade, now.Add(1), monthlyPlan("Individual membership", 3000))
	upgradeNoPrev := rawActivity("up2", models.ActivityUpgrade, now.Add(2), monthlyPlan("Small business membership", 8000))
	downgradeNoPrev := rawActivity("down2", models.ActivityDowngrade, now.Add(3), monthlyPlan("Individual membership", 3000))

	upgrade.PreviousData = &models.RawPreviousData{Plan: monthlyPlan("Individual membership", 3000)}
	downgrade.PreviousData = &models.RawPreviousData{Plan: monthlyPlan("Small business membership", 8000)}

	result := NormalizeActivities([]models.RawActivity{upgrade, downgrade, upgradeNoPrev, downgradeNoPrev}, IsEducationActivity)
	require.Len(t, result.Activities, 4)

	assert.Equal(t, models.CategoryUpgrades, result.Activities[0].Category)
	assertDecimal(t, "5000", result.Activities[0].MRRImpactCents)
	assert.False(t, result.Activities[0].ImpactApproximate)

	assert.Equal(t, models.CategoryDowngrades, result.Activities[1].Category)
	assertDecimal(t, "-5000", result.Activities[1].MRRImpactCents)
	assert.False(t, result.Activities[1].ImpactApproximate)

	assertDecimal(t, "8000", result.Activities[2].MRRImpactCents)
	assert.True(t, result.Activities[2].ImpactApproximate)

	assertDecimal(t, "-3000", result.Activities[3].MRRImpactCents)
	assert.True(t, result.Activities[3].ImpactApproximate)
}

func TestNormalizeActivitiesEducation(t *testing.T) {
	plan := monthlyPlan("Individual membership", 5000)
	tests := []struct {
		activityType string
		category     models.Category
	}{
		{models.ActivityNewOrder, models.CategoryEducationMembers},
		{models.ActivityRenewal, models.CategoryEducationRenewals},
		{models.ActivitySubscriptionDeactivate, models.CategoryEducationCancellations},
		{models.ActivityUpgrade, models.CategoryEducationChanges},
	}

	for _, tc := range tests {
		t.Run(tc.activityType, func(t *testing.T) {
			raw := rawActivity("a1", tc.activityType, now, plan)
			raw.Member.Email = "student@mcad.edu"

			result := NormalizeActivities([]models.RawActivity{raw}, IsEducationActivity)
			require.Len(t, result.Activities, 1)
			act := result.Activities[0]
			assert.Equal(t, tc.category, act.Category)
			assert.True(t, act.IsEducation.True())
			assertDecimal(t, "0", act.MRRImpactCents)
			assertDecimal(t, "5000", act.MonthlyValue)
		})
	}
}

func TestNormalizeActivitiesWithoutSubscription(t *testing.T) {
	tests := []struct {
		activityType string
		category     models.Category
	}{
		{models.ActivityFreeSignup, models.CategoryFreeSignups},
		{models.ActivityTeamMemberAdded, models.CategoryTeamMemberChanges},
		{models.ActivityTeamMemberDeleted, models.CategoryTeamMemberChanges},
		{models.ActivityAutoRenewDisabled, models.CategorySubscriptionChanges},
		{models.ActivityNewOrder, models.CategoryOther},
	}

	for _, tc := range tests {
		t.Run(tc.activityType, func(t *testing.T) {
			raw := rawActivity("a1", tc.activityType, now, nil)
			raw.Subscription = nil

			result := NormalizeActivities([]models.RawActivity{raw}, IsEducationActivity)
			require.Len(t, result.Activities, 1)
			act := result.Activities[0]
			assert.Equal(t, tc.category, act.Category)
			assert.Nil(t, act.SubscriptionID)
			assert.Nil(t, act.Plan)
			assertDecimal(t, "0", act.MRRImpactCents)
		})
	}
}

func TestNormalizeActivitiesMissingPlanFields(t *testing.T) {
	raw := rawActivity("a1", models.ActivityNewOrder, now, &models.RawPlan{Name: ptr("Mystery")})

	result := NormalizeActivities([]models.RawActivity{raw}, nil)
	require.Len(t, result.Activities, 1)
	act := result.Activities[0]
	assert.Equal(t, models.CategoryNewMembers, act.Category)
	assertDecimal(t, "0", act.MRRImpactCents)
	require.NotNil(t, act.Plan)
	assert.Nil(t, act.Plan.PriceCents)
}

func TestNormalizeActivitiesSkipsBadTimestampsAndSorts(t *testing.T) {
	plan := monthlyPlan("Individual membership", 1000)
	late := rawActivity("late", models.ActivityNewOrder, now, plan)
	early := rawActivity("early", models.ActivityNewOrder, daysAgo(10), plan)
	broken := rawActivity("broken", models.ActivityNewOrder, now, plan)
	broken.CreatedAt = models.EpochString("not-a-time")
	missing := rawActivity("missing", models.ActivityNewOrder, now, plan)
	missing.CreatedAt = models.EpochSeconds{}

	result := NormalizeActivities([]models.RawActivity{late, broken, early, missing}, IsEducationActivity)

	require.Len(t, result.Activities, 2)
	assert.Equal(t, "early", result.Activities[0].ID)
	assert.Equal(t, "late", result.Activities[1].ID)
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, "broken", result.Skipped[0].ID)
	assert.Equal(t, "missing", result.Skipped[1].ID)
}

func TestActivityLabel(t *testing.T) {
	assert.Equal(t, "New subscription", ActivityLabel(models.ActivityNewOrder))
	assert.Equal(t, "Renewal failed", ActivityLabel(models.ActivityRenewalPaymentFailed))
	assert.Equal(t, "Plan upgraded", ActivityLabel(models.ActivityUpgrade))
	assert.Equal(t, "Auto-renewal disabled", ActivityLabel(models.ActivityAutoRenewDisabled))
	assert.Equal(t, "Gift Redeemed", ActivityLabel("gift_redeemed"))
}
