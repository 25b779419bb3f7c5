package metrics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/PortNumber53/membership-metrics/internal/models"
)

type monthCategory struct {
	month    models.Month
	category models.Category
}

func sumByMonthCategory(activities []models.Activity) map[monthCategory]decimal.Decimal {
	sums := make(map[monthCategory]decimal.Decimal)
	for _, a := range activities {
		key := monthCategory{month: a.Month(), category: a.Category}
		sums[key] = sums[key].Add(a.MRRImpactDollars())
	}
	return sums
}

// Reconcile rolls activity impacts up into a running monthly balance from
// start to end inclusive. The first month opens at baseline, in major units;
// every later month opens at the previous month's close. Months without
// activity still appear with zero deltas. An inverted range yields no months.
func Reconcile(activities []models.Activity, start, end models.Month, baseline decimal.Decimal) []models.MonthlyBalance {
	months := models.MonthRange(start, end)
	balances := make([]models.MonthlyBalance, 0, len(months))
	if len(months) == 0 {
		return balances
	}

	sums := sumByMonthCategory(activities)
	opening := baseline
	for _, m := range months {
		balance := models.MonthlyBalance{
			Month:    m,
			Starting: opening,
			Deltas:   make([]models.CategoryDelta, 0, len(models.WaterfallCategories)),
		}
		closing := opening
		for _, c := range models.WaterfallCategories {
			amount := sums[monthCategory{month: m, category: c}]
			balance.Deltas = append(balance.Deltas, models.CategoryDelta{Category: c, Amount: amount})
			closing = closing.Add(amount)
		}
		balance.Ending = closing
		balances = append(balances, balance)
		opening = closing
	}
	return balances
}

// Trend compares the closing balances of the last two reconciled months.
func Trend(balances []models.MonthlyBalance) models.MRRTrend {
	var trend models.MRRTrend
	if len(balances) == 0 {
		return trend
	}
	trend.Latest = balances[len(balances)-1].Ending
	if len(balances) > 1 {
		trend.Previous = balances[len(balances)-2].Ending
	} else {
		trend.Previous = balances[0].Starting
	}
	trend.GrowthAmount = trend.Latest.Sub(trend.Previous)
	trend.GrowthPercent = percentOf(trend.GrowthAmount, trend.Previous)
	trend.AnnualRunRate = trend.Latest.Mul(decimal.NewFromInt(12))
	return trend
}

var decreasingCategories = map[models.Category]bool{
	models.CategoryDowngrades:     true,
	models.CategoryCancellations:  true,
	models.CategoryFailedPayments: true,
}

// RevenueBreakdown sums the waterfall categories per month over the 365 days
// before now. Losses are always reported as negative amounts.
func RevenueBreakdown(activities []models.Activity, now time.Time) []models.BreakdownRow {
	cutoff := now.Add(-365 * day)
	order := make(map[models.Category]int, len(models.WaterfallCategories))
	for i, c := range models.WaterfallCategories {
		order[c] = i
	}

	sums := make(map[monthCategory]decimal.Decimal)
	for _, a := range activities {
		if a.CreatedAt.Before(cutoff) {
			continue
		}
		if _, ok := order[a.Category]; !ok {
			continue
		}
		key := monthCategory{month: a.Month(), category: a.Category}
		sums[key] = sums[key].Add(a.MRRImpactDollars())
	}

	rows := make([]models.BreakdownRow, 0, len(sums))
	for key, amount := range sums {
		if decreasingCategories[key.category] {
			amount = amount.Abs().Neg()
		}
		rows = append(rows, models.BreakdownRow{Month: key.month, Category: key.category, Amount: amount})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Month != rows[j].Month {
			return rows[i].Month.Before(rows[j].Month)
		}
		return order[rows[i].Category] < order[rows[j].Category]
	})
	return rows
}
