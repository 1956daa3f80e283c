// Package ingest decodes tabular attachments and API payloads into raw records.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	splits "attorney-splits/internal/splits/domain"
)

// ErrNoHeader is returned when a table has no header row.
var ErrNoHeader = errors.New("ingest: missing header row")

// DecodeCSV parses CSV text with a header row. Cells are trimmed and blank
// lines are skipped. A missing trailing cell is recorded as empty.
func DecodeCSV(data []byte) ([]splits.RawRecord, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var header []string
	var out []splits.RawRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: parse csv: %w", err)
		}
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

// DecodeCSVString is DecodeCSV over a string field.
func DecodeCSVString(text string) ([]splits.RawRecord, error) {
	return DecodeCSV([]byte(text))
}

func headerNames(row []string) []string {
	names := make([]string, len(row))
	for i, cell := range row {
		name := strings.TrimSpace(cell)
		if name == "" {
			name = fmt.Sprintf("col%d", i+1)
		}
		names[i] = name
	}
	return names
}

func rowRecord(header, row []string) splits.RawRecord {
	rec := make(splits.RawRecord, len(header))
	for i, name := range header {
		value := ""
		if i < len(row) {
			value = strings.TrimSpace(row[i])
		}
		if _, dup := rec[name]; dup {
			continue
		}
		rec[name] = value
	}
	return rec
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
