package application

import (
	"github.com/shopspring/decimal"

	splits "attorney-splits/internal/splits/domain"
)

// BuildOriginatorDemo builds the direct-entry illustration for one originator:
// two matters they originated and one they only worked on. It is the only path
// that populates the non-originated working tier.
func BuildOriginatorDemo(originator, other splits.Attorney, policy splits.AttributionPolicy) []splits.MatterSplit {
	originated := []struct {
		id, name                string
		collected, self, others int64
	}{
		{id: "M-1001", name: "Example Matter 1", collected: 12000, self: 7000, others: 5000},
		{id: "M-1002", name: "Example Matter 2", collected: 8000, self: 2000, others: 6000},
	}

	out := make([]splits.MatterSplit, 0, len(originated)+1)
	for _, m := range originated {
		agg := splits.BillAggregate{
			BillID:              m.id,
			MatterName:          m.name,
			Originator:          originator.Name,
			TotalCollected:      decimal.NewFromInt(m.collected),
			SelfBilled:          decimal.NewFromInt(m.self),
			OthersBilled:        decimal.NewFromInt(m.others),
			NonOriginatedWorked: decimal.Zero,
		}
		att := Attribute(agg, policy)
		// The other attorney keeps their own billed work less the originator's cut of it.
		att.WorkingAmount = splits.RoundMoney(agg.OthersBilled.Sub(att.SelfOriginatedOthersBilled))
		out = append(out, splits.MatterSplit{
			MatterID:       m.id,
			MatterName:     m.name,
			TotalCollected: agg.TotalCollected,
			Shares: []splits.AttorneyShare{
				{AttorneyID: originator.ID, Name: originator.Name, Role: splits.RoleOriginator, Amount: att.OriginatorAmount},
				{AttorneyID: other.ID, Name: other.Name, Role: splits.RoleWorking, Amount: att.WorkingAmount},
			},
			Attribution: att,
		})
	}

	collected := decimal.NewFromInt(9000)
	worked := decimal.NewFromInt(3000)
	nonOriginated := NonOriginatedShare(worked, policy)
	remainder := collected.Sub(nonOriginated)
	if remainder.IsNegative() {
		remainder = decimal.Zero
	}
	out = append(out, splits.MatterSplit{
		MatterID:       "M-1003",
		MatterName:     "Non-Originated Worked Matter",
		TotalCollected: collected,
		Shares: []splits.AttorneyShare{
			{AttorneyID: other.ID, Name: other.Name, Role: splits.RoleOriginator, Amount: remainder},
			{AttorneyID: originator.ID, Name: originator.Name, Role: splits.RoleWorking, Amount: nonOriginated},
		},
		Attribution: splits.Attribution{
			SelfOriginatedSelfBilled:   decimal.Zero,
			SelfOriginatedOthersBilled: decimal.Zero,
			NonOriginatedSelfBilled:    policy.NonOriginatedWorkingPct().Mul(worked),
			OriginatorAmount:           remainder,
			WorkingAmount:              nonOriginated,
		},
	})
	return out
}

// FindAttorney returns the attorney whose name matches, trimmed and case-insensitive.
func FindAttorney(attorneys []splits.Attorney, name string) (splits.Attorney, bool) {
	want := normalizeName(name)
	if want == "" {
		return splits.Attorney{}, false
	}
	for _, a := range attorneys {
		if normalizeName(a.Name) == want {
			return a, true
		}
	}
	return splits.Attorney{}, false
}

// OtherAttorney returns the first attorney that is not self, or self when alone.
func OtherAttorney(attorneys []splits.Attorney, self splits.Attorney) splits.Attorney {
	for _, a := range attorneys {
		if a.ID != self.ID {
			return a
		}
	}
	return self
}
