package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EpochSeconds holds a Unix timestamp exactly as the API sent it. Decoding
// accepts any JSON value so that one malformed record cannot fail a whole
// page; Time reports whether the value is usable.
type EpochSeconds struct {
	raw string
	set bool
}

// Epoch builds an EpochSeconds from a time value.
func Epoch(t time.Time) EpochSeconds {
	return EpochSeconds{raw: strconv.FormatInt(t.Unix(), 10), set: true}
}

// EpochString builds an EpochSeconds from an arbitrary raw value.
func EpochString(raw string) EpochSeconds {
	return EpochSeconds{raw: raw, set: true}
}

// IsSet reports whether the field was present and non-null.
func (e EpochSeconds) IsSet() bool {
	return e.set
}

// Time parses the timestamp. ok is false when the field was absent or null;
// err is non-nil when it was present but not a number of seconds.
func (e EpochSeconds) Time() (t time.Time, ok bool, err error) {
	if !e.set {
		return time.Time{}, false, nil
	}
	secs, err := strconv.ParseInt(e.raw, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(e.raw, 64)
		if ferr != nil || f != f || f > 1e15 || f < -1e15 {
			return time.Time{}, true, fmt.Errorf("malformed epoch timestamp %q", e.raw)
		}
		secs = int64(f)
	}
	return time.Unix(secs, 0).UTC(), true, nil
}

func (e *EpochSeconds) UnmarshalJSON(data []byte) error {
	value := strings.TrimSpace(string(data))
	if value == "null" {
		*e = EpochSeconds{}
		return nil
	}
	if unquoted, err := strconv.Unquote(value); err == nil {
		value = strings.TrimSpace(unquoted)
	}
	*e = EpochSeconds{raw: value, set: true}
	return nil
}

func (e EpochSeconds) MarshalJSON() ([]byte, error) {
	if !e.set {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(e.raw, 10, 64); err == nil {
		return []byte(e.raw), nil
	}
	return json.Marshal(e.raw)
}

// RawPlan is the plan snapshot attached to a subscription. Pointer fields are
// nil when the API omitted them.
type RawPlan struct {
	ID            string  `json:"id,omitempty"`
	Name          *string `json:"name"`
	PriceCents    *int64  `json:"priceCents"`
	IntervalUnit  *string `json:"intervalUnit"`
	IntervalCount *int    `json:"intervalCount"`
}

type RawCoupon struct {
	ID             string `json:"id,omitempty"`
	Code           string `json:"code"`
	AmountOffCents int64  `json:"amountOffCents,omitempty"`
}

type RawOrder struct {
	TotalCents                int64        `json:"totalCents"`
	CreatedAt                 EpochSeconds `json:"createdAt"`
	Status                    string       `json:"status"`
	CouponDiscountAmountCents int64        `json:"couponDiscountAmountCents"`
	Coupon                    *RawCoupon   `json:"coupon"`
}

type RawSubscription struct {
	ID        string       `json:"id"`
	Active    *bool        `json:"active"`
	Autorenew *bool        `json:"autorenew"`
	CreatedAt EpochSeconds `json:"createdAt"`
	ExpiresAt EpochSeconds `json:"expiresAt"`
	Plan      *RawPlan     `json:"plan"`
}

// RawMember mirrors a member node from the members query.
type RawMember struct {
	ID              string            `json:"id"`
	Email           string            `json:"email"`
	FullName        string            `json:"fullName"`
	TotalSpendCents int64             `json:"totalSpendCents"`
	Subscriptions   []RawSubscription `json:"subscriptions"`
	Orders          []RawOrder        `json:"orders"`
}

type RawActivityMember struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

type RawActivityOrder struct {
	Coupon     *RawCoupon `json:"coupon"`
	TotalCents int64      `json:"totalCents"`
}

type RawActivitySubscription struct {
	ID     string             `json:"id"`
	Plan   *RawPlan           `json:"plan"`
	Orders []RawActivityOrder `json:"orders"`
}

// RawPreviousData carries the state before an upgrade or downgrade, when the
// API provides it.
type RawPreviousData struct {
	Plan *RawPlan `json:"plan"`
}

// RawActivity mirrors an activity node from the activities query.
type RawActivity struct {
	ID           string                   `json:"id"`
	Type         string                   `json:"type"`
	CreatedAt    EpochSeconds             `json:"createdAt"`
	Member       *RawActivityMember       `json:"member"`
	Subscription *RawActivitySubscription `json:"subscription"`
	PreviousData *RawPreviousData         `json:"previousData"`
}
