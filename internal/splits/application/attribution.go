package application

import (
	"github.com/shopspring/decimal"

	splits "attorney-splits/internal/splits/domain"
)

// Attribute applies the policy to one aggregate.
//
//	originator = round2(selfWorkingPct*selfBilled + selfOthersPct*othersBilled)
//	working    = max(0, totalCollected - originator)
//
// Rounding happens once, on the originator amount. Out-of-range percentages
// are not rejected here.
func Attribute(agg splits.BillAggregate, policy splits.AttributionPolicy) splits.Attribution {
	selfTier := policy.SelfOriginatedWorkingPct().Mul(agg.SelfBilled)
	othersTier := policy.SelfOriginatedOthersPct().Mul(agg.OthersBilled)
	nonOriginated := policy.NonOriginatedWorkingPct().Mul(agg.NonOriginatedWorked)

	originator := splits.RoundMoney(selfTier.Add(othersTier))
	working := agg.TotalCollected.Sub(originator)
	if working.IsNegative() {
		working = decimal.Zero
	}
	return splits.Attribution{
		SelfOriginatedSelfBilled:   selfTier,
		SelfOriginatedOthersBilled: othersTier,
		NonOriginatedSelfBilled:    nonOriginated,
		OriginatorAmount:           originator,
		WorkingAmount:              working,
	}
}

// NonOriginatedShare is an attorney's entitlement for work on a matter they did not originate.
func NonOriginatedShare(worked decimal.Decimal, policy splits.AttributionPolicy) decimal.Decimal {
	return splits.RoundMoney(policy.NonOriginatedWorkingPct().Mul(worked))
}
