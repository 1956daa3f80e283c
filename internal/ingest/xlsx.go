package ingest

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	splits "attorney-splits/internal/splits/domain"
)

// DecodeXLSX reads the first sheet of a workbook. Row one is the header.
func DecodeXLSX(data []byte) ([]splits.RawRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ingest: open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("ingest: read sheet %q: %w", sheets[0], err)
	}

	var header []string
	var out []splits.RawRecord
	for _, row := range rows {
		if blankRow(row) {
			continue
		}
		if header == nil {
			header = headerNames(row)
			continue
		}
		out = append(out, rowRecord(header, row))
	}
	if header == nil {
		return nil, ErrNoHeader
	}
	return out, nil
}
