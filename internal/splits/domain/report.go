package splits

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ShareLine is an attorney amount inside a roll-up.
type ShareLine struct {
	AttorneyID string          `json:"attorney_id"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
}

// MatterRow is the per-matter view of one MatterSplit.
type MatterRow struct {
	MatterID         string          `json:"matter_id"`
	MatterName       string          `json:"matter_name"`
	TotalCollected   decimal.Decimal `json:"total_collected"`
	OriginatorID     string          `json:"originator_id,omitempty"`
	OriginatorName   string          `json:"originator_name,omitempty"`
	OriginatorAmount decimal.Decimal `json:"originator_amount"`
	OthersTotal      decimal.Decimal `json:"others_total"`
	Others           []ShareLine     `json:"others"`
}

// Breakdown renders the non-zero non-originator shares as "name: amount; ...".
func (r MatterRow) Breakdown() string {
	parts := make([]string, 0, len(r.Others))
	for _, line := range r.Others {
		if line.Amount.IsZero() {
			continue
		}
		name := line.Name
		if name == "" {
			name = line.AttorneyID
		}
		parts = append(parts, name+": "+FormatMoney(line.Amount))
	}
	return strings.Join(parts, "; ")
}

func (r MatterRow) clone() MatterRow {
	r.Others = append([]ShareLine(nil), r.Others...)
	return r
}

// AttorneyTotal is one attorney's roll-up across all matters.
type AttorneyTotal struct {
	AttorneyID       string          `json:"attorney_id"`
	Name             string          `json:"name"`
	OriginatorAmount decimal.Decimal `json:"originator_amount"`
	WorkingAmount    decimal.Decimal `json:"working_amount"`
	Total            decimal.Decimal `json:"total"`
	MatterCount      int             `json:"matter_count"`
}

// OriginatorGroup collects the matters credited to one originator.
type OriginatorGroup struct {
	OriginatorID       string          `json:"originator_id"`
	OriginatorName     string          `json:"originator_name"`
	Matters            []MatterRow     `json:"matters"`
	OriginatorSubtotal decimal.Decimal `json:"originator_subtotal"`
	OthersSubtotal     decimal.Decimal `json:"others_subtotal"`
	WorkingTotals      []ShareLine     `json:"working_totals"`
}

// DisplayName returns the originator name, falling back to the id.
func (g OriginatorGroup) DisplayName() string {
	if g.OriginatorName != "" {
		return g.OriginatorName
	}
	return g.OriginatorID
}

func (g OriginatorGroup) clone() OriginatorGroup {
	matters := make([]MatterRow, len(g.Matters))
	for i, row := range g.Matters {
		matters[i] = row.clone()
	}
	g.Matters = matters
	g.WorkingTotals = append([]ShareLine(nil), g.WorkingTotals...)
	return g
}

// ReportViews are the derived projections over a set of matters.
type ReportViews struct {
	ByMatter     []MatterRow
	ByAttorney   []AttorneyTotal
	GrandTotal   decimal.Decimal
	ByOriginator []OriginatorGroup
}

// SplitReportModel is a read-only snapshot of one pipeline run.
// Accessors return copies; the model cannot be mutated after construction.
type SplitReportModel struct {
	generatedAt time.Time
	firmID      string
	matters     []MatterSplit
	views       ReportViews
}

// NewSplitReportModel snapshots matters and their views.
func NewSplitReportModel(generatedAt time.Time, firmID string, matters []MatterSplit, views ReportViews) *SplitReportModel {
	return &SplitReportModel{
		generatedAt: generatedAt,
		firmID:      firmID,
		matters:     cloneMatters(matters),
		views:       cloneViews(views),
	}
}

func (m *SplitReportModel) GeneratedAt() time.Time { return m.generatedAt }

func (m *SplitReportModel) FirmID() string { return m.firmID }

// MatterCount returns the number of matters processed.
func (m *SplitReportModel) MatterCount() int { return len(m.matters) }

func (m *SplitReportModel) Matters() []MatterSplit { return cloneMatters(m.matters) }

func (m *SplitReportModel) ByMatter() []MatterRow { return cloneViews(m.views).ByMatter }

func (m *SplitReportModel) ByAttorney() []AttorneyTotal {
	return append([]AttorneyTotal(nil), m.views.ByAttorney...)
}

// GrandTotal is the sum of every attorney total.
func (m *SplitReportModel) GrandTotal() decimal.Decimal { return m.views.GrandTotal }

func (m *SplitReportModel) ByOriginator() []OriginatorGroup { return cloneViews(m.views).ByOriginator }

// MarshalJSON renders the snapshot with all views.
func (m *SplitReportModel) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		GeneratedAt  time.Time         `json:"generated_at"`
		FirmID       string            `json:"firm_id"`
		Matters      []MatterSplit     `json:"matters"`
		ByMatter     []MatterRow       `json:"by_matter"`
		ByAttorney   []AttorneyTotal   `json:"by_attorney"`
		GrandTotal   decimal.Decimal   `json:"grand_total"`
		ByOriginator []OriginatorGroup `json:"by_originator"`
	}{
		GeneratedAt:  m.generatedAt,
		FirmID:       m.firmID,
		Matters:      m.matters,
		ByMatter:     m.views.ByMatter,
		ByAttorney:   m.views.ByAttorney,
		GrandTotal:   m.views.GrandTotal,
		ByOriginator: m.views.ByOriginator,
	})
}

func cloneMatters(matters []MatterSplit) []MatterSplit {
	out := make([]MatterSplit, len(matters))
	for i, matter := range matters {
		out[i] = matter.Clone()
	}
	return out
}

func cloneViews(v ReportViews) ReportViews {
	out := ReportViews{
		ByMatter:     make([]MatterRow, len(v.ByMatter)),
		ByAttorney:   append([]AttorneyTotal(nil), v.ByAttorney...),
		GrandTotal:   v.GrandTotal,
		ByOriginator: make([]OriginatorGroup, len(v.ByOriginator)),
	}
	for i, row := range v.ByMatter {
		out.ByMatter[i] = row.clone()
	}
	for i, group := range v.ByOriginator {
		out.ByOriginator[i] = group.clone()
	}
	return out
}
