package models

import (
	"github.com/shopspring/decimal"
)

// MRRSummary is the headline revenue tuple. CurrentMRR is in major units.
type MRRSummary struct {
	CurrentMRR       decimal.Decimal `json:"current_mrr"`
	PayingMembers    int             `json:"paying_members"`
	ActiveMembers    int             `json:"active_members"`
	EducationMembers int             `json:"education_members"`
}

// CategoryDelta is the summed impact of one category within a month.
type CategoryDelta struct {
	Category Category        `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// MonthlyBalance is one reconciled month. All amounts are in major units.
// Ending always equals Starting plus the sum of Deltas.
type MonthlyBalance struct {
	Month    Month           `json:"month"`
	Starting decimal.Decimal `json:"starting"`
	Deltas   []CategoryDelta `json:"deltas"`
	Ending   decimal.Decimal `json:"ending"`
}

// Delta returns the amount recorded for category c, or zero.
func (b MonthlyBalance) Delta(c Category) decimal.Decimal {
	for _, d := range b.Deltas {
		if d.Category == c {
			return d.Amount
		}
	}
	return decimal.Zero
}

// WaterfallRow is one display row of a reconciled month.
type WaterfallRow struct {
	Month    Month           `json:"month"`
	Label    string          `json:"label"`
	Category Category        `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// Rows lays the balance out as Starting, each delta, then Total.
func (b MonthlyBalance) Rows() []WaterfallRow {
	rows := make([]WaterfallRow, 0, len(b.Deltas)+2)
	label := b.Month.Label()
	rows = append(rows, WaterfallRow{Month: b.Month, Label: label, Category: CategoryStartingMRR, Amount: b.Starting})
	for _, d := range b.Deltas {
		rows = append(rows, WaterfallRow{Month: b.Month, Label: label, Category: d.Category, Amount: d.Amount})
	}
	rows = append(rows, WaterfallRow{Month: b.Month, Label: label, Category: CategoryTotalMRR, Amount: b.Ending})
	return rows
}

// MRRTrend summarises the last two months of a reconciliation.
type MRRTrend struct {
	Latest        decimal.Decimal `json:"latest"`
	Previous      decimal.Decimal `json:"previous"`
	GrowthAmount  decimal.Decimal `json:"growth_amount"`
	GrowthPercent decimal.Decimal `json:"growth_percent"`
	AnnualRunRate decimal.Decimal `json:"annual_run_rate"`
}

// MonthChange counts subscription movements within one month.
type MonthChange struct {
	Month   Month `json:"month"`
	New     int   `json:"new"`
	Churned int   `json:"churned"`
	Renewed int   `json:"renewed"`
	Net     int   `json:"net"`
}

// MembershipMonth is one point of the reconstructed active-member series.
type MembershipMonth struct {
	Month  Month `json:"month"`
	Active int   `json:"active"`
}

// PlanCount is the number of accounts and seats on a plan.
type PlanCount struct {
	Plan     string `json:"plan"`
	Accounts int    `json:"accounts"`
	Members  int    `json:"members"`
}

// PlanChange compares a plan's counts now against an earlier instant.
type PlanChange struct {
	Plan            string `json:"plan"`
	CurrentAccounts int    `json:"current_accounts"`
	CurrentMembers  int    `json:"current_members"`
	PrevAccounts    int    `json:"prev_accounts"`
	PrevMembers     int    `json:"prev_members"`
	AccountChange   int    `json:"account_change"`
	MemberChange    int    `json:"member_change"`
}

// MonthOverMonth is the comparison of today against a trailing instant.
type MonthOverMonth struct {
	Plans             []PlanChange    `json:"plans"`
	EducationCurrent  int             `json:"education_current"`
	EducationPrevious int             `json:"education_previous"`
	EducationChange   int             `json:"education_change"`
	CurrentMRR        decimal.Decimal `json:"current_mrr"`
	PreviousMRR       decimal.Decimal `json:"previous_mrr"`
	MRRChange         decimal.Decimal `json:"mrr_change"`
	MRRChangePercent  decimal.Decimal `json:"mrr_change_percent"`
}

// PlanShare is the number of active subscription rows on a plan.
type PlanShare struct {
	Plan    string          `json:"plan"`
	Count   int             `json:"count"`
	Percent decimal.Decimal `json:"percent"`
}

// PlanRevenue is the revenue contributed by a plan, in major units.
type PlanRevenue struct {
	Plan             string          `json:"plan"`
	MRR              decimal.Decimal `json:"mrr"`
	Members          int             `json:"members"`
	AveragePerMember decimal.Decimal `json:"average_per_member"`
	Percent          decimal.Decimal `json:"percent"`
}

// AutoRenewCounts splits active subscriptions by their auto-renew flag.
type AutoRenewCounts struct {
	On  int `json:"on"`
	Off int `json:"off"`
}

// MonthCount is a count bucketed by calendar month.
type MonthCount struct {
	Month Month `json:"month"`
	Count int   `json:"count"`
}

// MembershipTotals are the headline counts of the overview page.
type MembershipTotals struct {
	ActiveSubscriptions int `json:"active_subscriptions"`
	NewSince            int `json:"new_since"`
	UniqueMembers       int `json:"unique_members"`
	ExpiringSoon        int `json:"expiring_soon"`
}

// EducationShare compares education members to all active members.
type EducationShare struct {
	Education int             `json:"education"`
	Active    int             `json:"active"`
	Percent   decimal.Decimal `json:"percent"`
}

// BreakdownRow is one month/category cell of the trailing-year breakdown.
type BreakdownRow struct {
	Month    Month           `json:"month"`
	Category Category        `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}
