package interfaces

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"attorney-splits/internal/splits/application"
	splits "attorney-splits/internal/splits/domain"
)

func sampleReport() *splits.SplitReportModel {
	share := func(id, name string, role splits.Role, amount int64) splits.AttorneyShare {
		return splits.AttorneyShare{AttorneyID: id, Name: name, Role: role, Amount: decimal.NewFromInt(amount)}
	}
	matters := []splits.MatterSplit{
		{MatterID: "B1", MatterName: "Acme v. Smith", TotalCollected: decimal.NewFromInt(12000), Shares: []splits.AttorneyShare{
			share("jane", "Jane/Doe", splits.RoleOriginator, 4250),
			share("bob", "Bob Roe", splits.RoleWorking, 7750),
		}},
		{MatterID: "B2", MatterName: "Estate", TotalCollected: decimal.NewFromInt(8000), Shares: []splits.AttorneyShare{
			share("jane2", "jane doe", splits.RoleOriginator, 1900),
			share("bob", "Bob Roe", splits.RoleWorking, 6100),
		}},
	}
	return application.BuildReport(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), "f", matters)
}

func TestSanitizeSheetName(t *testing.T) {
	assert.Equal(t, "Jane Doe", SanitizeSheetName("Jane/Doe"))
	assert.Equal(t, "a b c d e f g h", SanitizeSheetName(`a\b?c*d[e]f:g/h`))
	assert.Equal(t, "Sheet", SanitizeSheetName(""))
	assert.Len(t, []rune(SanitizeSheetName(strings.Repeat("x", 40))), 31)
}

func TestSheetNamerDedupes(t *testing.T) {
	n := newSheetNamer("Matters")
	assert.Equal(t, "matters (2)", n.next("matters"))
	assert.Equal(t, "Jane", n.next("Jane"))
	assert.Equal(t, "JANE (2)", n.next("JANE"))
	assert.Equal(t, "jane (3)", n.next("jane"))

	long := strings.Repeat("y", 40)
	first := n.next(long)
	second := n.next(long)
	assert.Len(t, []rune(first), 31)
	assert.Len(t, []rune(second), 31)
	assert.True(t, strings.HasSuffix(second, " (2)"))
}

func TestBuildSplitWorkbook(t *testing.T) {
	data, err := BuildSplitWorkbook(sampleReport())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Matters", "Attorneys", "Jane Doe", "jane doe (2)"}, f.GetSheetList())

	rows, err := f.GetRows("Matters")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Matter", "Total Collected", "Originator", "Originator Amount", "Other Attorneys Total", "Other Attorneys (breakdown)"}, rows[0])
	assert.Equal(t, "Acme v. Smith", rows[1][0])
	assert.Equal(t, "12000", rows[1][1])
	assert.Equal(t, "Bob Roe: 7750.00", rows[1][5])

	rows, err = f.GetRows("Attorneys")
	require.NoError(t, err)
	assert.Equal(t, "Bob Roe", rows[1][0])
	last := rows[len(rows)-1]
	assert.Equal(t, "Grand Total", last[0])
	assert.Equal(t, "20000", last[3])

	rows, err = f.GetRows("Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, "Matter", rows[0][0])
	assert.Equal(t, "Acme v. Smith", rows[1][0])
	assert.Equal(t, "Originator Total", rows[3][0])
	assert.Equal(t, "4250", rows[3][1])
	assert.Equal(t, "Other Attorneys Total", rows[4][0])
	assert.Equal(t, "7750", rows[4][2])
	assert.Equal(t, "Working Attorneys Totals", rows[6][0])
	assert.Equal(t, []string{"Attorney", "Amount"}, rows[7])
	assert.Equal(t, []string{"Bob Roe", "7750"}, rows[8])
}

func TestBuildAttorneyWorkbook(t *testing.T) {
	data, err := BuildAttorneyWorkbook(splits.AttorneyTotal{
		AttorneyID:       "7",
		Name:             "Jane: Doe",
		OriginatorAmount: decimal.RequireFromString("6165"),
		WorkingAmount:    decimal.Zero,
		Total:            decimal.RequireFromString("6165"),
		MatterCount:      3,
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Jane  Doe"}, f.GetSheetList())
	rows, err := f.GetRows("Jane  Doe")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Metric", "Value"},
		{"Originator", "6165"},
		{"Working", "0"},
		{"Total", "6165"},
		{"Matters", "3"},
	}, rows)

	data, err = BuildAttorneyWorkbook(splits.AttorneyTotal{AttorneyID: "42"})
	require.NoError(t, err)
	f, err = excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"42"}, f.GetSheetList())
}

func TestBuildSplitWorkbookNilReport(t *testing.T) {
	_, err := BuildSplitWorkbook(nil)
	assert.Error(t, err)
}

func TestRenderers(t *testing.T) {
	for _, format := range []string{"xlsx", "pdf", "json"} {
		r, err := RendererFor(format)
		require.NoError(t, err, format)
		assert.Equal(t, format, r.Format())
		payload, err := r.Render(sampleReport())
		require.NoError(t, err, format)
		assert.NotEmpty(t, payload, format)
	}
	pdf, err := PDFRenderer{}.Render(sampleReport())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	_, err = RendererFor("docx")
	assert.Error(t, err)
}
