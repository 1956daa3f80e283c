package ingest

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	splits "attorney-splits/internal/splits/domain"
)

func TestDecodeCSV(t *testing.T) {
	text := "\xef\xbb\xbfBill Number , Matter Name,Amount\n" +
		"B-1,  Acme v. Roe ,1000.50\n" +
		"\n" +
		",,\n" +
		"B-2,Short\n"

	rows, err := DecodeCSVString(text)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "B-1", rows[0]["Bill Number"])
	assert.Equal(t, "Acme v. Roe", rows[0]["Matter Name"])
	assert.Equal(t, "1000.50", rows[0]["Amount"])
	assert.Equal(t, "", rows[1]["Amount"])
}

func TestDecodeCSV_Empty(t *testing.T) {
	_, err := DecodeCSV([]byte("\n\n"))
	assert.ErrorIs(t, err, ErrNoHeader)

	rows, err := DecodeCSV([]byte("bill_id,amount\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDecodeXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Bill ID", "Timekeeper", "", "Billed Amount"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"B-9", "Alice Smith", "x", 250.25}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	rows, err := DecodeXLSX(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "B-9", rows[0]["Bill ID"])
	assert.Equal(t, "Alice Smith", rows[0]["Timekeeper"])
	assert.Equal(t, "x", rows[0]["col3"])
	assert.Equal(t, "250.25", rows[0]["Billed Amount"])

	_, err = DecodeXLSX([]byte("not a workbook"))
	assert.Error(t, err)
}

func TestFlatten(t *testing.T) {
	rows, err := DecodeJSONArray([]byte(`[{"id":1,"bill":{"id":42,"number":"B-42"},"matter":{"display_number":"M-1"},"tags":["a"],"total":12.5}]`))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, json.Number("42"), rows[0]["bill_id"])
	assert.Equal(t, "B-42", rows[0]["bill_number"])
	assert.Equal(t, "M-1", rows[0]["matter_display_number"])
	assert.NotContains(t, rows[0], "tags")

	rec := splits.Resolve(rows[0], splits.PaymentAliases())
	billID, ok := rec.Text(splits.FieldBillID)
	assert.True(t, ok)
	assert.Equal(t, "B-42", billID)
}

func TestClassify(t *testing.T) {
	cases := map[string]Kind{
		"Payments-2024-01.csv":   KindPayments,
		"payment_report.xlsx":    KindPayments,
		"FEES.csv":               KindFees,
		"time_entries.xlsx":      KindFees,
		"notes.txt":              KindUnknown,
		"dir/payment/fees.csv":   KindFees,
		"Timekeeper Summary.csv": KindFees,
	}
	for name, want := range cases {
		assert.Equal(t, want, Classify(name), name)
	}
}

func TestCollect(t *testing.T) {
	batch, err := Collect([]Attachment{
		{Filename: "payments.csv", Data: []byte("bill_id,amount\nB-1,100\n")},
		{Filename: "readme.txt", Data: []byte("hello")},
		{Filename: "fees.csv", Data: []byte("bill_id,timekeeper,billed_amount\nB-1,Alice,60\nB-1,Bob,40\n")},
	})
	require.NoError(t, err)
	assert.Len(t, batch.Payments, 1)
	assert.Len(t, batch.Fees, 2)
	assert.Equal(t, []string{"readme.txt"}, batch.Skipped)
}

func TestCollect_BadWorkbook(t *testing.T) {
	_, err := Collect([]Attachment{{Filename: "payments.xlsx", Data: []byte("garbage")}})
	require.Error(t, err)
	assert.Equal(t, splits.KindInvalidInput, splits.KindOf(err))
}
