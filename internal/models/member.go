package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OptionalBool is a boolean whose presence is tracked explicitly. Consumers
// branch on Known instead of probing for a field.
type OptionalBool struct {
	Value bool
	Known bool
}

// Some returns a known OptionalBool.
func Some(value bool) OptionalBool {
	return OptionalBool{Value: value, Known: true}
}

// True reports whether the value is known and true.
func (o OptionalBool) True() bool {
	return o.Known && o.Value
}

func (o OptionalBool) MarshalJSON() ([]byte, error) {
	if !o.Known {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *OptionalBool) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = OptionalBool{}
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// Member is one row of the flattened members table.
type Member struct {
	ID              string       `json:"id"`
	Email           string       `json:"email"`
	Name            string       `json:"name"`
	TotalSpendCents int64        `json:"total_spend_cents"`
	IsEducation     OptionalBool `json:"is_education"`
}

// Subscription is one row of the flattened subscriptions table. Group plans
// produce one row per member seat sharing the same SubscriptionID.
type Subscription struct {
	SubscriptionID string       `json:"subscription_id"`
	MemberID       string       `json:"member_id"`
	MemberName     string       `json:"member_name"`
	MemberEmail    string       `json:"member_email"`
	Active         bool         `json:"active"`
	AutoRenew      bool         `json:"auto_renew"`
	Plan           string       `json:"plan"`
	PriceCents     int64        `json:"price_cents"`
	IntervalUnit   string       `json:"interval_unit"`
	IntervalCount  int          `json:"interval_count"`
	CreatedAt      time.Time    `json:"created_at"`
	ExpiresAt      *time.Time   `json:"expires_at,omitempty"`
	IsEducation    OptionalBool `json:"is_education"`

	// MonthlyValue is the plan price normalised to one month, in cents.
	MonthlyValue decimal.Decimal `json:"monthly_value"`
}

// ActiveAt reports whether the subscription covered instant t:
// created on or before t and not yet expired.
func (s Subscription) ActiveAt(t time.Time) bool {
	if s.CreatedAt.After(t) {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(t)
}

// MemberView is a member joined with their most recent subscription. The
// subscription fields are nil for members without any subscription.
type MemberView struct {
	Member
	SubscriptionID          *string      `json:"subscription_id"`
	Active                  *bool        `json:"active"`
	Plan                    *string      `json:"plan"`
	SubscriptionIsEducation OptionalBool `json:"subscription_is_education"`
}
