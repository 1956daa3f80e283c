package interfaces

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	splits "attorney-splits/internal/splits/domain"
)

const (
	mattersSheet   = "Matters"
	attorneysSheet = "Attorneys"
	maxSheetName   = 31
)

var illegalSheetChars = strings.NewReplacer(`\`, " ", "/", " ", "?", " ", "*", " ", "[", " ", "]", " ", ":", " ")

// SanitizeSheetName makes name acceptable as a worksheet title.
func SanitizeSheetName(name string) string {
	out := illegalSheetChars.Replace(name)
	if out == "" {
		out = "Sheet"
	}
	if r := []rune(out); len(r) > maxSheetName {
		out = string(r[:maxSheetName])
	}
	return out
}

// sheetNamer hands out unique sanitized names. Excel compares titles case-insensitively.
type sheetNamer struct {
	used map[string]struct{}
}

func newSheetNamer(reserved ...string) *sheetNamer {
	n := &sheetNamer{used: make(map[string]struct{})}
	for _, name := range reserved {
		n.used[strings.ToLower(name)] = struct{}{}
	}
	return n
}

func (n *sheetNamer) next(name string) string {
	base := SanitizeSheetName(name)
	candidate := base
	for i := 2; ; i++ {
		if _, taken := n.used[strings.ToLower(candidate)]; !taken {
			break
		}
		suffix := fmt.Sprintf(" (%d)", i)
		r := []rune(base)
		if len(r)+len([]rune(suffix)) > maxSheetName {
			r = r[:maxSheetName-len([]rune(suffix))]
		}
		candidate = string(r) + suffix
	}
	n.used[strings.ToLower(candidate)] = struct{}{}
	return candidate
}

// BuildSplitWorkbook renders the report as an XLSX workbook: a Matters
// overview, an Attorneys totals sheet, and one sheet per originator.
func BuildSplitWorkbook(report *splits.SplitReportModel) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("workbook: nil report")
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", mattersSheet); err != nil {
		return nil, err
	}
	if err := writeMattersSheet(f, report.ByMatter()); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(attorneysSheet); err != nil {
		return nil, err
	}
	if err := writeAttorneysSheet(f, report.ByAttorney(), report.GrandTotal()); err != nil {
		return nil, err
	}

	namer := newSheetNamer(mattersSheet, attorneysSheet)
	for _, group := range report.ByOriginator() {
		name := namer.next(group.DisplayName())
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
		if err := writeOriginatorSheet(f, name, group); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAttorneyWorkbook renders one attorney's totals as a Metric/Value sheet.
func BuildAttorneyWorkbook(summary splits.AttorneyTotal) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	name := SanitizeSheetName(firstNonEmpty(summary.Name, summary.AttorneyID))
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return nil, err
	}
	rows := [][]any{
		{"Metric", "Value"},
		{"Originator", money(summary.OriginatorAmount)},
		{"Working", money(summary.WorkingAmount)},
		{"Total", money(summary.Total)},
		{"Matters", summary.MatterCount},
	}
	for i, row := range rows {
		if err := f.SetSheetRow(name, cell("A", i+1), &row); err != nil {
			return nil, err
		}
	}
	if err := setWidths(f, name, map[string]float64{"A": 30, "B": 20}); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeMattersSheet(f *excelize.File, rows []splits.MatterRow) error {
	header := []any{"Matter", "Total Collected", "Originator", "Originator Amount", "Other Attorneys Total", "Other Attorneys (breakdown)"}
	if err := f.SetSheetRow(mattersSheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range rows {
		values := []any{
			row.MatterName,
			money(row.TotalCollected),
			row.OriginatorName,
			money(row.OriginatorAmount),
			money(row.OthersTotal),
			row.Breakdown(),
		}
		if err := f.SetSheetRow(mattersSheet, cell("A", i+2), &values); err != nil {
			return err
		}
	}
	return setWidths(f, mattersSheet, map[string]float64{"A": 40, "B": 18, "C": 28, "D": 20, "E": 20, "F": 50})
}

func writeAttorneysSheet(f *excelize.File, totals []splits.AttorneyTotal, grand decimal.Decimal) error {
	header := []any{"Attorney", "Originator", "Working", "Total", "Matters"}
	if err := f.SetSheetRow(attorneysSheet, "A1", &header); err != nil {
		return err
	}
	row := 2
	for _, t := range totals {
		values := []any{t.Name, money(t.OriginatorAmount), money(t.WorkingAmount), money(t.Total), t.MatterCount}
		if err := f.SetSheetRow(attorneysSheet, cell("A", row), &values); err != nil {
			return err
		}
		row++
	}
	row++
	if err := f.SetCellValue(attorneysSheet, cell("A", row), "Grand Total"); err != nil {
		return err
	}
	if err := f.SetCellValue(attorneysSheet, cell("D", row), money(grand)); err != nil {
		return err
	}
	return setWidths(f, attorneysSheet, map[string]float64{"A": 30, "B": 16, "C": 16, "D": 16, "E": 10})
}

func writeOriginatorSheet(f *excelize.File, sheet string, group splits.OriginatorGroup) error {
	header := []any{"Matter", "Originator Amount", "Other Attorneys Total", "Other Attorneys (breakdown)", "Matter Total"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	row := 2
	for _, m := range group.Matters {
		values := []any{m.MatterName, money(m.OriginatorAmount), money(m.OthersTotal), m.Breakdown(), money(m.TotalCollected)}
		if err := f.SetSheetRow(sheet, cell("A", row), &values); err != nil {
			return err
		}
		row++
	}

	row++
	lines := [][]any{
		{"Originator Total", money(group.OriginatorSubtotal)},
		{"Other Attorneys Total", nil, money(group.OthersSubtotal)},
		nil,
		{"Working Attorneys Totals"},
		{"Attorney", "Amount"},
	}
	for _, line := range lines {
		if line != nil {
			if err := f.SetSheetRow(sheet, cell("A", row), &line); err != nil {
				return err
			}
		}
		row++
	}
	for _, w := range group.WorkingTotals {
		values := []any{w.Name, money(w.Amount)}
		if err := f.SetSheetRow(sheet, cell("A", row), &values); err != nil {
			return err
		}
		row++
	}
	return setWidths(f, sheet, map[string]float64{"A": 40, "B": 20, "C": 20, "D": 50, "E": 18})
}

func setWidths(f *excelize.File, sheet string, widths map[string]float64) error {
	for col, width := range widths {
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// money renders an amount as a numeric cell value with two decimals.
func money(d decimal.Decimal) float64 {
	f, _ := splits.RoundMoney(d).Float64()
	return f
}
