package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	splits "attorney-splits/internal/splits/domain"
)

// BuildSplitPDF renders a one-document summary: per-attorney totals, then matters.
func BuildSplitPDF(report *splits.SplitReportModel) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("pdf: nil report")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Attorney Splits")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	if report.FirmID() != "" {
		pdf.Cell(0, 6, tr(fmt.Sprintf("Firm: %s", report.FirmID())))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt().UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Matters: %d", report.MatterCount()))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 6, "Attorney", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 6, "Originator", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Working", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Total", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Matters", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, t := range report.ByAttorney() {
		pdf.CellFormat(70, 6, tr(t.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, splits.FormatMoney(t.OriginatorAmount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, splits.FormatMoney(t.WorkingAmount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, splits.FormatMoney(t.Total), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", t.MatterCount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(130, 6, "Grand Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 6, splits.FormatMoney(report.GrandTotal()), "1", 0, "R", false, 0, "")
	pdf.Ln(10)

	pdf.CellFormat(70, 6, "Matter", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 6, "Collected", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Originator", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Orig. Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, m := range report.ByMatter() {
		pdf.CellFormat(70, 6, tr(m.MatterName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, splits.FormatMoney(m.TotalCollected), "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 6, tr(m.OriginatorName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, splits.FormatMoney(m.OriginatorAmount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
