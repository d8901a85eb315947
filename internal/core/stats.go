package core

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type (
	// QuarterStat is one quarter bucket of the mental preparation stats.
	QuarterStat struct {
		Year        int
		Quarter     int
		Clients     int
		Prestations int
		Revenue     decimal.Decimal
	}

	// ProviderObjective is one provider's cell in the monthly objective
	// table. Amount includes the overflow carried in from the previous
	// month and is not clamped at the target.
	ProviderObjective struct {
		Amount    decimal.Decimal
		Validated bool
	}

	ObjectiveRow struct {
		Year      int
		Month     int
		ProviderA ProviderObjective
		ProviderB ProviderObjective
	}

	// YearRevenue is one year's revenue broken down by quarter.
	YearRevenue struct {
		Year     int
		Quarters [4]decimal.Decimal
		Total    decimal.Decimal
	}

	CategoryCount struct {
		Category string
		Count    int
	}
)

// QuarterlyStats buckets the records of one category into the four
// quarters of a year. All four buckets are always present, empty
// quarters included.
func QuarterlyStats(records []Prestation, category string, year int) []QuarterStat {
	stats := make([]QuarterStat, 4)
	clients := make([]map[string]struct{}, 4)
	for q := 0; q < 4; q++ {
		stats[q] = QuarterStat{Year: year, Quarter: q + 1, Revenue: decimal.Zero}
		clients[q] = make(map[string]struct{})
	}
	for _, r := range records {
		if r.Date.Year() != year || !SameCategory(r.Category, category) {
			continue
		}
		q := r.Date.Quarter() - 1
		stats[q].Prestations++
		stats[q].Revenue = stats[q].Revenue.Add(r.Price)
		clients[q][normalizeClient(r.ClientName)] = struct{}{}
	}
	for q := 0; q < 4; q++ {
		stats[q].Clients = len(clients[q])
	}
	return stats
}

// QuarterlyStatsAllYears buckets the records of one category into four
// quarters per year present in the data, in chronological order.
func QuarterlyStatsAllYears(records []Prestation, category string) []QuarterStat {
	years := make(map[int]struct{})
	for _, r := range records {
		if SameCategory(r.Category, category) {
			years[r.Date.Year()] = struct{}{}
		}
	}
	sorted := make([]int, 0, len(years))
	for y := range years {
		sorted = append(sorted, y)
	}
	sort.Ints(sorted)

	stats := make([]QuarterStat, 0, 4*len(sorted))
	for _, y := range sorted {
		stats = append(stats, QuarterlyStats(records, category, y)...)
	}
	return stats
}

// MonthlyObjectives builds the chronological objective table for the two
// providers. Records marked as excluded are skipped. A record whose
// provider is ProviderBoth contributes half its price to each provider.
// The overflow above the target rolls into the following month, creating
// that month's row if no record falls in it.
func MonthlyObjectives(records []Prestation, providerA, providerB string, target decimal.Decimal) []ObjectiveRow {
	earnedA := make(map[int]decimal.Decimal)
	earnedB := make(map[int]decimal.Decimal)
	add := func(m map[int]decimal.Decimal, key int, amount decimal.Decimal) {
		if cur, ok := m[key]; ok {
			m[key] = cur.Add(amount)
		} else {
			m[key] = amount
		}
	}

	for _, r := range records {
		if r.ExcludedFromObjectives {
			continue
		}
		key := monthKey(r.Date.Year(), r.Date.Month())
		switch {
		case r.SplitBetweenProviders():
			half := r.Price.Div(decimal.NewFromInt(2))
			add(earnedA, key, half)
			add(earnedB, key, half)
		case r.Provider == providerA:
			add(earnedA, key, r.Price)
		case r.Provider == providerB:
			add(earnedB, key, r.Price)
		}
	}

	keys := make([]int, 0, len(earnedA)+len(earnedB))
	seen := make(map[int]struct{})
	for k := range earnedA {
		keys = append(keys, k)
		seen[k] = struct{}{}
	}
	for k := range earnedB {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Ints(keys)

	rows := make([]ObjectiveRow, 0, len(keys))
	carryA, carryB := decimal.Zero, decimal.Zero
	for i := 0; i < len(keys); i++ {
		k := keys[i]
		amountA := carryA.Add(earnedA[k])
		amountB := carryB.Add(earnedB[k])
		rows = append(rows, ObjectiveRow{
			Year:      k / 12,
			Month:     k%12 + 1,
			ProviderA: ProviderObjective{Amount: amountA, Validated: amountA.GreaterThanOrEqual(target)},
			ProviderB: ProviderObjective{Amount: amountB, Validated: amountB.GreaterThanOrEqual(target)},
		})
		carryA = overflow(amountA, target)
		carryB = overflow(amountB, target)
		// A month reached only by rollover still gets a row.
		if (carryA.IsPositive() || carryB.IsPositive()) &&
			(i == len(keys)-1 || keys[i+1] != k+1) {
			keys = append(keys[:i+1], append([]int{k + 1}, keys[i+1:]...)...)
		}
	}
	return rows
}

// RevenueByYear sums revenue per quarter and per year for the selected
// years, providers combined. Years come back in the order requested.
func RevenueByYear(records []Prestation, years []int) []YearRevenue {
	out := make([]YearRevenue, 0, len(years))
	for _, y := range years {
		rev := YearRevenue{Year: y, Total: decimal.Zero}
		for q := range rev.Quarters {
			rev.Quarters[q] = decimal.Zero
		}
		for _, r := range records {
			if r.Date.Year() != y {
				continue
			}
			q := r.Date.Quarter() - 1
			rev.Quarters[q] = rev.Quarters[q].Add(r.Price)
			rev.Total = rev.Total.Add(r.Price)
		}
		out = append(out, rev)
	}
	return out
}

// CategoryDistribution counts the records of a year per known category.
// Unknown categories fall into Autres.
func CategoryDistribution(records []Prestation, year int) []CategoryCount {
	counts := make([]CategoryCount, len(Categories))
	for i, c := range Categories {
		counts[i] = CategoryCount{Category: c}
	}
	for _, r := range records {
		if r.Date.Year() != year {
			continue
		}
		matched := false
		for i, c := range Categories {
			if SameCategory(r.Category, c) {
				counts[i].Count++
				matched = true
				break
			}
		}
		if !matched {
			counts[len(counts)-1].Count++
		}
	}
	return counts
}

func monthKey(year, month int) int {
	return year*12 + month - 1
}

func overflow(amount, target decimal.Decimal) decimal.Decimal {
	if amount.GreaterThan(target) {
		return amount.Sub(target)
	}
	return decimal.Zero
}

func normalizeClient(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
