package application

import (
	"github.com/shopspring/decimal"

	splits "attorney-splits/internal/splits/domain"
)

// Aggregate folds payments and fees into one BillAggregate per distinct bill id.
// Output order is first appearance: payments first, then fees.
// A nil matcher uses SubstringMatcher.
func Aggregate(payments []splits.PaymentRecord, fees []splits.FeeRecord, matcher splits.Matcher) []splits.BillAggregate {
	if matcher == nil {
		matcher = splits.SubstringMatcher{}
	}
	index := make(map[string]int)
	var out []splits.BillAggregate

	slot := func(billID string) *splits.BillAggregate {
		if i, ok := index[billID]; ok {
			return &out[i]
		}
		index[billID] = len(out)
		out = append(out, splits.BillAggregate{
			BillID:              billID,
			TotalCollected:      decimal.Zero,
			SelfBilled:          decimal.Zero,
			OthersBilled:        decimal.Zero,
			NonOriginatedWorked: decimal.Zero,
		})
		return &out[len(out)-1]
	}

	for _, p := range payments {
		agg := slot(p.BillID)
		agg.TotalCollected = agg.TotalCollected.Add(p.AmountCollected)
		agg.PaymentRows++
		if agg.MatterName == "" && p.MatterName != "" {
			agg.MatterName = p.MatterName
		}
	}
	for _, f := range fees {
		agg := slot(f.BillID)
		if matcher.IsSelf(f.Timekeeper, f.Originator) {
			agg.SelfBilled = agg.SelfBilled.Add(f.BilledAmount)
		} else {
			agg.OthersBilled = agg.OthersBilled.Add(f.BilledAmount)
		}
		agg.FeeRows++
		if agg.MatterName == "" && f.MatterName != "" {
			agg.MatterName = f.MatterName
		}
		if agg.Originator == "" && f.Originator != "" {
			agg.Originator = f.Originator
		}
	}
	return out
}
