package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/PortNumber53/membership-metrics/internal/models"
)

var now = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func ptr[T any](v T) *T {
	return &v
}

func daysAgo(n int) time.Time {
	return now.Add(-time.Duration(n) * 24 * time.Hour)
}

// sub builds an active monthly subscription worth priceCents.
func sub(id, member string, priceCents int64, createdAt time.Time) models.Subscription {
	return models.Subscription{
		SubscriptionID: id,
		MemberID:       member,
		Active:         true,
		AutoRenew:      true,
		Plan:           "Individual membership",
		PriceCents:     priceCents,
		IntervalUnit:   "month",
		IntervalCount:  1,
		CreatedAt:      createdAt,
		IsEducation:    models.Some(false),
		MonthlyValue:   MonthlyValue(priceCents, "month", 1),
	}
}

func monthlyPlan(name string, priceCents int64) *models.RawPlan {
	return &models.RawPlan{
		Name:          ptr(name),
		PriceCents:    ptr(priceCents),
		IntervalUnit:  ptr("month"),
		IntervalCount: ptr(1),
	}
}

func rawActivity(id, activityType string, at time.Time, plan *models.RawPlan) models.RawActivity {
	return models.RawActivity{
		ID:        id,
		Type:      activityType,
		CreatedAt: models.Epoch(at),
		Member:    &models.RawActivityMember{ID: "m-" + id, Email: id + "@example.com", FullName: "Member " + id},
		Subscription: &models.RawActivitySubscription{
			ID:   "s-" + id,
			Plan: plan,
		},
	}
}
