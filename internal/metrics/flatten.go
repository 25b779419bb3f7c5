package metrics

import (
	"time"

	"github.com/PortNumber53/membership-metrics/internal/models"
)

const unknownPlan = "Unknown"

// SkippedRecord identifies an input record that could not be used.
type SkippedRecord struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// FlattenResult holds the members and subscriptions tables.
type FlattenResult struct {
	Members       []models.Member
	Subscriptions []models.Subscription
	Skipped       []SkippedRecord
}

// Flatten turns nested member records into a members table and a
// subscriptions table. Every member yields exactly one row. A subscription
// with an unusable creation or expiry timestamp is skipped and reported.
func Flatten(raw []models.RawMember) FlattenResult {
	result := FlattenResult{
		Members:       make([]models.Member, 0, len(raw)),
		Subscriptions: []models.Subscription{},
	}

	for _, rm := range raw {
		education := models.Some(IsEducationMember(rm.Orders))
		result.Members = append(result.Members, models.Member{
			ID:              rm.ID,
			Email:           rm.Email,
			Name:            rm.FullName,
			TotalSpendCents: rm.TotalSpendCents,
			IsEducation:     education,
		})

		for _, rs := range rm.Subscriptions {
			createdAt, ok, err := rs.CreatedAt.Time()
			if !ok {
				result.Skipped = append(result.Skipped, SkippedRecord{ID: rs.ID, Reason: "missing created_at"})
				continue
			}
			if err != nil {
				result.Skipped = append(result.Skipped, SkippedRecord{ID: rs.ID, Reason: err.Error()})
				continue
			}
			var expiresAt *time.Time
			if t, ok, err := rs.ExpiresAt.Time(); err != nil {
				result.Skipped = append(result.Skipped, SkippedRecord{ID: rs.ID, Reason: err.Error()})
				continue
			} else if ok {
				expiresAt = &t
			}

			sub := models.Subscription{
				SubscriptionID: rs.ID,
				MemberID:       rm.ID,
				MemberName:     rm.FullName,
				MemberEmail:    rm.Email,
				Active:         derefBool(rs.Active),
				AutoRenew:      derefBool(rs.Autorenew),
				Plan:           unknownPlan,
				IntervalCount:  1,
				CreatedAt:      createdAt,
				ExpiresAt:      expiresAt,
				IsEducation:    education,
			}
			if p := rs.Plan; p != nil {
				if p.Name != nil && *p.Name != "" {
					sub.Plan = *p.Name
				}
				if p.PriceCents != nil {
					sub.PriceCents = *p.PriceCents
				}
				if p.IntervalUnit != nil {
					sub.IntervalUnit = *p.IntervalUnit
				}
				if p.IntervalCount != nil && *p.IntervalCount > 0 {
					sub.IntervalCount = *p.IntervalCount
				}
			}
			sub.MonthlyValue = MonthlyValue(sub.PriceCents, sub.IntervalUnit, sub.IntervalCount)
			result.Subscriptions = append(result.Subscriptions, sub)
		}
	}
	return result
}

func derefBool(b *bool) bool {
	return b != nil && *b
}
