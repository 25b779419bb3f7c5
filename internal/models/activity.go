package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Activity types emitted by the activity log.
const (
	ActivityNewSubscription        = "new_subscription"
	ActivityNewOrder               = "new_order"
	ActivitySubscriptionDeactivate = "subscription_deactivated"
	ActivitySubscriptionDeleted    = "subscription_deleted"
	ActivitySubscriptionReactivate = "subscription_reactivated"
	ActivityUpgrade                = "upgrade"
	ActivityDowngrade              = "downgrade"
	ActivityRenewal                = "renewal"
	ActivityRenewalPaymentFailed   = "renewal_payment_failed"
	ActivityFreeSignup             = "free_signup"
	ActivityTeamMemberAdded        = "team_member_added"
	ActivityTeamMemberDeleted      = "team_member_deleted"
	ActivityAutoRenewDisabled      = "auto_renew_disabled"
)

// Category is the coarse label an activity is rolled up under.
type Category string

const (
	CategoryNewMembers     Category = "New members"
	CategoryReactivations  Category = "Reactivations"
	CategoryUpgrades       Category = "Upgrades"
	CategoryDowngrades     Category = "Downgrades"
	CategoryCancellations  Category = "Cancellations"
	CategoryFailedPayments Category = "Failed payments"
	CategoryRenewals       Category = "Renewals"
	CategoryOther          Category = "Other"

	CategoryFreeSignups         Category = "Free signups"
	CategoryTeamMemberChanges   Category = "Team member changes"
	CategorySubscriptionChanges Category = "Subscription changes"

	CategoryEducationMembers       Category = "Education members"
	CategoryEducationRenewals      Category = "Education renewals"
	CategoryEducationCancellations Category = "Education cancellations"
	CategoryEducationChanges       Category = "Education changes"

	CategoryStartingMRR Category = "Starting MRR"
	CategoryTotalMRR    Category = "Total MRR"
)

// WaterfallCategories are the delta categories of a monthly balance, in
// display order.
var WaterfallCategories = []Category{
	CategoryNewMembers,
	CategoryReactivations,
	CategoryUpgrades,
	CategoryDowngrades,
	CategoryCancellations,
	CategoryFailedPayments,
}

// PlanSnapshot is the plan attached to an activity, normalised. Fields the
// API omitted stay nil.
type PlanSnapshot struct {
	Name          *string `json:"name"`
	PriceCents    *int64  `json:"price_cents"`
	IntervalUnit  *string `json:"interval_unit"`
	IntervalCount *int    `json:"interval_count"`
}

// Activity is one row of the flattened activity log.
type Activity struct {
	ID             string        `json:"id"`
	Type           string        `json:"type"`
	Category       Category      `json:"category"`
	CreatedAt      time.Time     `json:"created_at"`
	MemberID       string        `json:"member_id"`
	MemberName     string        `json:"member_name"`
	MemberEmail    string        `json:"member_email"`
	SubscriptionID *string       `json:"subscription_id"`
	IsEducation    OptionalBool  `json:"is_education"`
	Plan           *PlanSnapshot `json:"plan,omitempty"`

	// MonthlyValue and MRRImpactCents are in cents.
	MonthlyValue   decimal.Decimal `json:"monthly_value"`
	MRRImpactCents decimal.Decimal `json:"mrr_impact_cents"`

	// ImpactApproximate is set for upgrades and downgrades whose previous
	// plan was unknown, so the impact is the full monthly value.
	ImpactApproximate bool `json:"impact_approximate"`
}

// MRRImpactDollars returns the impact in major currency units.
func (a Activity) MRRImpactDollars() decimal.Decimal {
	return a.MRRImpactCents.Shift(-2)
}

// Month returns the calendar month the activity falls in.
func (a Activity) Month() Month {
	return MonthOf(a.CreatedAt)
}
