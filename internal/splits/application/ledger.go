package application

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	splits "attorney-splits/internal/splits/domain"
)

// SplitOptions controls share identity in the batch path.
type SplitOptions struct {
	// OriginatorName replaces the originator placeholder label.
	OriginatorName string
	// ResolveOriginators uses the bill's recorded originator as the share identity.
	ResolveOriginators bool
}

// BuildMatterSplits attributes every aggregate and emits one originator and one working share per bill.
func BuildMatterSplits(aggs []splits.BillAggregate, policy splits.AttributionPolicy, opts SplitOptions) []splits.MatterSplit {
	out := make([]splits.MatterSplit, 0, len(aggs))
	for _, agg := range aggs {
		att := Attribute(agg, policy)

		originatorID := splits.PlaceholderOriginatorID
		originatorName := splits.PlaceholderOriginatorName
		if opts.OriginatorName != "" {
			originatorName = opts.OriginatorName
		}
		if opts.ResolveOriginators && strings.TrimSpace(agg.Originator) != "" {
			originatorName = strings.TrimSpace(agg.Originator)
			originatorID = strings.ToLower(originatorName)
		}

		out = append(out, splits.MatterSplit{
			MatterID:       agg.BillID,
			MatterName:     agg.DisplayName(),
			TotalCollected: agg.TotalCollected,
			Shares: []splits.AttorneyShare{
				{AttorneyID: originatorID, Name: originatorName, Role: splits.RoleOriginator, Amount: att.OriginatorAmount},
				{AttorneyID: splits.PlaceholderWorkingID, Name: splits.PlaceholderWorkingName, Role: splits.RoleWorking, Amount: att.WorkingAmount},
			},
			Attribution: att,
		})
	}
	return out
}

// BuildReport snapshots matters together with their derived views.
// generatedAt is supplied by the caller; nothing else depends on the clock.
func BuildReport(generatedAt time.Time, firmID string, matters []splits.MatterSplit) *splits.SplitReportModel {
	return splits.NewSplitReportModel(generatedAt, firmID, matters, ProjectViews(matters))
}

// ProjectViews derives the per-matter, per-attorney and per-originator views.
func ProjectViews(matters []splits.MatterSplit) splits.ReportViews {
	rows := matterRows(matters)
	attorneys, grand := attorneyTotals(matters)
	return splits.ReportViews{
		ByMatter:     rows,
		ByAttorney:   attorneys,
		GrandTotal:   grand,
		ByOriginator: originatorGroups(matters),
	}
}

func matterRows(matters []splits.MatterSplit) []splits.MatterRow {
	rows := make([]splits.MatterRow, 0, len(matters))
	for _, m := range matters {
		rows = append(rows, matterRow(m))
	}
	return rows
}

func matterRow(m splits.MatterSplit) splits.MatterRow {
	row := splits.MatterRow{
		MatterID:         m.MatterID,
		MatterName:       m.MatterName,
		TotalCollected:   m.TotalCollected,
		OriginatorAmount: decimal.Zero,
		OthersTotal:      decimal.Zero,
	}
	if origin, ok := m.Originator(); ok {
		row.OriginatorID = origin.AttorneyID
		row.OriginatorName = origin.DisplayName()
		row.OriginatorAmount = origin.Amount
	}
	for _, s := range m.Others() {
		row.Others = append(row.Others, splits.ShareLine{AttorneyID: s.AttorneyID, Name: s.DisplayName(), Amount: s.Amount})
		row.OthersTotal = row.OthersTotal.Add(s.Amount)
	}
	return row
}

func attorneyTotals(matters []splits.MatterSplit) ([]splits.AttorneyTotal, decimal.Decimal) {
	index := make(map[string]int)
	seen := make(map[string]map[string]struct{})
	var totals []splits.AttorneyTotal

	for _, m := range matters {
		for _, s := range m.Shares {
			i, ok := index[s.AttorneyID]
			if !ok {
				i = len(totals)
				index[s.AttorneyID] = i
				seen[s.AttorneyID] = make(map[string]struct{})
				totals = append(totals, splits.AttorneyTotal{
					AttorneyID:       s.AttorneyID,
					OriginatorAmount: decimal.Zero,
					WorkingAmount:    decimal.Zero,
					Total:            decimal.Zero,
				})
			}
			t := &totals[i]
			if t.Name == "" {
				t.Name = s.Name
			}
			if s.Role == splits.RoleOriginator {
				t.OriginatorAmount = t.OriginatorAmount.Add(s.Amount)
			} else {
				t.WorkingAmount = t.WorkingAmount.Add(s.Amount)
			}
			t.Total = t.Total.Add(s.Amount)
			if _, dup := seen[s.AttorneyID][m.MatterID]; !dup {
				seen[s.AttorneyID][m.MatterID] = struct{}{}
				t.MatterCount++
			}
		}
	}

	sort.SliceStable(totals, func(i, j int) bool {
		a, b := strings.ToLower(totals[i].Name), strings.ToLower(totals[j].Name)
		if a != b {
			return a < b
		}
		return totals[i].AttorneyID < totals[j].AttorneyID
	})

	grand := decimal.Zero
	for _, t := range totals {
		grand = grand.Add(t.Total)
	}
	return totals, grand
}

func originatorGroups(matters []splits.MatterSplit) []splits.OriginatorGroup {
	index := make(map[string]int)
	var groups []splits.OriginatorGroup
	working := make([]map[string]int, 0)

	for _, m := range matters {
		origin, ok := m.Originator()
		if !ok {
			continue
		}
		i, exists := index[origin.AttorneyID]
		if !exists {
			i = len(groups)
			index[origin.AttorneyID] = i
			groups = append(groups, splits.OriginatorGroup{
				OriginatorID:       origin.AttorneyID,
				OriginatorName:     origin.Name,
				OriginatorSubtotal: decimal.Zero,
				OthersSubtotal:     decimal.Zero,
			})
			working = append(working, make(map[string]int))
		}
		g := &groups[i]
		row := matterRow(m)
		g.Matters = append(g.Matters, row)
		g.OriginatorSubtotal = g.OriginatorSubtotal.Add(row.OriginatorAmount)
		g.OthersSubtotal = g.OthersSubtotal.Add(row.OthersTotal)

		for _, s := range m.Others() {
			if s.Amount.IsZero() {
				continue
			}
			j, ok := working[i][s.AttorneyID]
			if !ok {
				j = len(g.WorkingTotals)
				working[i][s.AttorneyID] = j
				g.WorkingTotals = append(g.WorkingTotals, splits.ShareLine{AttorneyID: s.AttorneyID, Name: s.DisplayName(), Amount: decimal.Zero})
			}
			g.WorkingTotals[j].Amount = g.WorkingTotals[j].Amount.Add(s.Amount)
		}
	}
	return groups
}
