package splits

import "github.com/shopspring/decimal"

// BillAggregate is the per-bill rollup of payments and fees.
// SelfBilled+OthersBilled is independent of TotalCollected.
type BillAggregate struct {
	BillID         string
	MatterName     string
	Originator     string
	TotalCollected decimal.Decimal
	SelfBilled     decimal.Decimal
	OthersBilled   decimal.Decimal
	// NonOriginatedWorked is what a non-originating attorney personally billed.
	// The batch path has no rows feeding it and leaves it zero.
	NonOriginatedWorked decimal.Decimal
	PaymentRows         int
	FeeRows             int
}

// DisplayName returns the matter name, falling back to the bill id.
func (a BillAggregate) DisplayName() string {
	if a.MatterName != "" {
		return a.MatterName
	}
	return a.BillID
}
