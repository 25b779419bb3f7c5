package metrics

import (
	"strings"

	"github.com/PortNumber53/membership-metrics/internal/models"
)

// EducationCouponCode is the coupon that marks a free education order.
const EducationCouponCode = "Education"

// Activity classification rules selectable through configuration.
const (
	RuleHeuristic = "heuristic"
	RuleCoupon    = "coupon"
)

var educationDomains = []string{".edu", "@meca.edu", "@maine.edu", "@usm.maine.edu", "@mcad.edu"}

// ActivityClassifier decides whether an activity belongs to an education member.
type ActivityClassifier func(models.RawActivity) bool

// IsEducationMember applies the canonical rule: the member's most recent
// order is free and carries exactly the Education coupon. Orders with an
// unusable timestamp sort as the oldest; equal timestamps keep input order.
func IsEducationMember(orders []models.RawOrder) bool {
	if len(orders) == 0 {
		return false
	}
	latest := 0
	latestAt := orderUnix(orders[0])
	for i := 1; i < len(orders); i++ {
		if at := orderUnix(orders[i]); at > latestAt {
			latest, latestAt = i, at
		}
	}
	return isEducationOrder(orders[latest].TotalCents, orders[latest].Coupon)
}

func orderUnix(o models.RawOrder) int64 {
	t, ok, err := o.CreatedAt.Time()
	if !ok || err != nil {
		return 0
	}
	return t.Unix()
}

func isEducationOrder(totalCents int64, coupon *models.RawCoupon) bool {
	return totalCents == 0 && coupon != nil && coupon.Code == EducationCouponCode
}

// IsEducationActivity is the activity-log heuristic: an institutional email
// domain, or any subscription order whose coupon mentions education in any
// case. It is looser than IsEducationMember.
func IsEducationActivity(a models.RawActivity) bool {
	if a.Member != nil {
		email := strings.ToLower(a.Member.Email)
		for _, domain := range educationDomains {
			if strings.HasSuffix(email, domain) {
				return true
			}
		}
	}
	if a.Subscription == nil {
		return false
	}
	for _, o := range a.Subscription.Orders {
		if o.Coupon != nil && strings.Contains(strings.ToLower(o.Coupon.Code), "education") {
			return true
		}
	}
	return false
}

// EducationByCoupon applies the canonical rule to the orders attached to the
// activity's subscription. Those orders carry no timestamp, so the last one
// listed is taken as the most recent.
func EducationByCoupon(a models.RawActivity) bool {
	if a.Subscription == nil || len(a.Subscription.Orders) == 0 {
		return false
	}
	last := a.Subscription.Orders[len(a.Subscription.Orders)-1]
	return isEducationOrder(last.TotalCents, last.Coupon)
}

// ClassifierFor returns the classifier registered under rule, falling back
// to the heuristic for unknown names.
func ClassifierFor(rule string) ActivityClassifier {
	if rule == RuleCoupon {
		return EducationByCoupon
	}
	return IsEducationActivity
}
