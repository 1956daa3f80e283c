package splits

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places kept for monetary results.
const MoneyPlaces int32 = 2

// RoundMoney rounds to two places, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ParseAmount parses a locale-free decimal string.
// Empty input is zero and not malformed; anything unparseable is zero and malformed.
func ParseAmount(raw string) (amount decimal.Decimal, malformed bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Zero, false
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, true
	}
	return parsed, false
}

// FormatMoney renders an amount with exactly two decimals.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyPlaces)
}

// SumAmounts adds amounts together.
func SumAmounts(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
