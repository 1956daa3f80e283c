package ingest

import (
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	splits "attorney-splits/internal/splits/domain"
)

// Kind is the dataset an attachment carries.
type Kind string

const (
	KindUnknown  Kind = ""
	KindPayments Kind = "payments"
	KindFees     Kind = "fees"
)

// Classify routes an attachment by its filename.
func Classify(filename string) Kind {
	name := strings.ToLower(filepath.Base(filename))
	switch {
	case strings.Contains(name, "payment"):
		return KindPayments
	case strings.Contains(name, "fee"), strings.Contains(name, "time"):
		return KindFees
	default:
		return KindUnknown
	}
}

// IsWorkbook reports whether the filename names an xlsx workbook.
func IsWorkbook(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".xlsx")
}

// Decode parses an attachment as a workbook or CSV depending on its extension.
func Decode(filename string, data []byte) ([]splits.RawRecord, error) {
	if IsWorkbook(filename) {
		return DecodeXLSX(data)
	}
	return DecodeCSV(data)
}

// Attachment is one uploaded file.
type Attachment struct {
	Filename string
	Data     []byte
}

// Batch collects the rows of a set of attachments by kind.
type Batch struct {
	Payments []splits.RawRecord
	Fees     []splits.RawRecord
	Skipped  []string
}

// Collect decodes every attachment concurrently and sorts its rows into
// payments or fees, keeping attachment order. Files that match neither kind
// are listed in Skipped.
func Collect(files []Attachment) (Batch, error) {
	kinds := make([]Kind, len(files))
	decoded := make([][]splits.RawRecord, len(files))

	var g errgroup.Group
	for i, f := range files {
		kinds[i] = Classify(f.Filename)
		if kinds[i] == KindUnknown {
			continue
		}
		g.Go(func() error {
			rows, err := Decode(f.Filename, f.Data)
			if err != nil {
				return splits.NewError(splits.KindInvalidInput, "could not parse attachment "+f.Filename, err)
			}
			decoded[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, err
	}

	var b Batch
	for i, f := range files {
		switch kinds[i] {
		case KindPayments:
			b.Payments = append(b.Payments, decoded[i]...)
		case KindFees:
			b.Fees = append(b.Fees, decoded[i]...)
		default:
			b.Skipped = append(b.Skipped, f.Filename)
		}
	}
	return b, nil
}
