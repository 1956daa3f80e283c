package splits

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AttributionPolicy holds the firm's tiered split percentages as fractions.
// It is immutable once constructed.
type AttributionPolicy struct {
	selfOriginatedWorkingPct decimal.Decimal
	selfOriginatedOthersPct  decimal.Decimal
	nonOriginatedWorkingPct  decimal.Decimal
}

// NewAttributionPolicy builds a policy. Out-of-range values are accepted; see Validate.
func NewAttributionPolicy(selfOriginatedWorking, selfOriginatedOthers, nonOriginatedWorking decimal.Decimal) AttributionPolicy {
	return AttributionPolicy{
		selfOriginatedWorkingPct: selfOriginatedWorking,
		selfOriginatedOthersPct:  selfOriginatedOthers,
		nonOriginatedWorkingPct:  nonOriginatedWorking,
	}
}

// DefaultPolicy is 50% of self-billed, 15% of others-billed, 30% non-originated work.
func DefaultPolicy() AttributionPolicy {
	return NewAttributionPolicy(
		decimal.RequireFromString("0.50"),
		decimal.RequireFromString("0.15"),
		decimal.RequireFromString("0.30"),
	)
}

func (p AttributionPolicy) SelfOriginatedWorkingPct() decimal.Decimal { return p.selfOriginatedWorkingPct }
func (p AttributionPolicy) SelfOriginatedOthersPct() decimal.Decimal { return p.selfOriginatedOthersPct }
func (p AttributionPolicy) NonOriginatedWorkingPct() decimal.Decimal { return p.nonOriginatedWorkingPct }

// PolicyWarning flags a percentage outside [0,1].
type PolicyWarning struct {
	Field string          `json:"field"`
	Value decimal.Decimal `json:"value"`
}

func (w PolicyWarning) String() string {
	return fmt.Sprintf("%s=%s outside [0,1]", w.Field, w.Value.String())
}

// Validate reports percentages outside [0,1]. It never fails the policy.
func (p AttributionPolicy) Validate() []PolicyWarning {
	var warnings []PolicyWarning
	check := func(name string, value decimal.Decimal) {
		if value.IsNegative() || value.GreaterThan(decimal.NewFromInt(1)) {
			warnings = append(warnings, PolicyWarning{Field: name, Value: value})
		}
	}
	check("self_originated_working_pct", p.selfOriginatedWorkingPct)
	check("self_originated_others_pct", p.selfOriginatedOthersPct)
	check("non_originated_working_pct", p.nonOriginatedWorkingPct)
	return warnings
}
