package splits

import "github.com/shopspring/decimal"

// Role is an attorney's role in one matter.
type Role string

const (
	RoleOriginator Role = "originator"
	RoleWorking    Role = "working"
)

// Placeholder identities used when the batch path does not resolve individuals.
const (
	PlaceholderOriginatorID   = "originator"
	PlaceholderOriginatorName = "Originator"
	PlaceholderWorkingID      = "working"
	PlaceholderWorkingName    = "Working Attorneys"
)

// AttorneyShare is one attorney's stake in one matter.
type AttorneyShare struct {
	AttorneyID string          `json:"attorney_id"`
	Name       string          `json:"name"`
	Role       Role            `json:"role"`
	Amount     decimal.Decimal `json:"amount"`
}

// DisplayName returns the name, falling back to the id.
func (s AttorneyShare) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.AttorneyID
}

// Attribution is the engine's result for one bill.
// Tier amounts are unrounded; OriginatorAmount is rounded once and
// WorkingAmount derives from the rounded value.
type Attribution struct {
	SelfOriginatedSelfBilled   decimal.Decimal `json:"self_originated_self_billed"`
	SelfOriginatedOthersBilled decimal.Decimal `json:"self_originated_others_billed"`
	NonOriginatedSelfBilled    decimal.Decimal `json:"non_originated_self_billed"`
	OriginatorAmount           decimal.Decimal `json:"originator_amount"`
	WorkingAmount              decimal.Decimal `json:"working_amount"`
}

// MatterSplit is one bill/matter's full attribution.
type MatterSplit struct {
	MatterID       string          `json:"matter_id"`
	MatterName     string          `json:"matter_name"`
	TotalCollected decimal.Decimal `json:"total_collected"`
	Shares         []AttorneyShare `json:"shares"`
	Attribution    Attribution     `json:"attribution"`
}

// Originator returns the first originator share, if any.
func (m MatterSplit) Originator() (AttorneyShare, bool) {
	for _, s := range m.Shares {
		if s.Role == RoleOriginator {
			return s, true
		}
	}
	return AttorneyShare{}, false
}

// Others returns every non-originator share in order.
func (m MatterSplit) Others() []AttorneyShare {
	var out []AttorneyShare
	for _, s := range m.Shares {
		if s.Role != RoleOriginator {
			out = append(out, s)
		}
	}
	return out
}

// Clone returns a copy that shares no slices with m.
func (m MatterSplit) Clone() MatterSplit {
	m.Shares = append([]AttorneyShare(nil), m.Shares...)
	return m
}

// Attorney is a resolved attorney identity.
type Attorney struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}
