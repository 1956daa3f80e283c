package interfaces

import (
	"encoding/json"
	"fmt"
	"strings"

	"attorney-splits/internal/splits/application"
	splits "attorney-splits/internal/splits/domain"
)

// XLSXRenderer renders the workbook.
type XLSXRenderer struct{}

func (XLSXRenderer) Format() string { return "xlsx" }

func (XLSXRenderer) Render(report *splits.SplitReportModel) ([]byte, error) {
	return BuildSplitWorkbook(report)
}

// PDFRenderer renders the summary document.
type PDFRenderer struct{}

func (PDFRenderer) Format() string { return "pdf" }

func (PDFRenderer) Render(report *splits.SplitReportModel) ([]byte, error) {
	return BuildSplitPDF(report)
}

// JSONRenderer renders the report model as indented JSON.
type JSONRenderer struct{}

func (JSONRenderer) Format() string { return "json" }

func (JSONRenderer) Render(report *splits.SplitReportModel) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("json: nil report")
	}
	return json.MarshalIndent(report, "", "  ")
}

// RendererFor returns the renderer for a format name.
func RendererFor(format string) (application.Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "xlsx":
		return XLSXRenderer{}, nil
	case "pdf":
		return PDFRenderer{}, nil
	case "json":
		return JSONRenderer{}, nil
	default:
		return nil, splits.NewError(splits.KindInvalidInput, "unsupported format "+format, nil)
	}
}
