package splits

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitReportModelJSON(t *testing.T) {
	matters := []MatterSplit{{
		MatterID:       "B1",
		MatterName:     "Acme",
		TotalCollected: decimal.NewFromInt(100),
		Shares: []AttorneyShare{
			{AttorneyID: PlaceholderOriginatorID, Name: PlaceholderOriginatorName, Role: RoleOriginator, Amount: decimal.NewFromInt(40)},
			{AttorneyID: PlaceholderWorkingID, Name: PlaceholderWorkingName, Role: RoleWorking, Amount: decimal.NewFromInt(60)},
		},
	}}
	views := ReportViews{
		ByMatter:   []MatterRow{{MatterID: "B1", Others: []ShareLine{{Name: "Working Attorneys", Amount: decimal.NewFromInt(60)}}}},
		GrandTotal: decimal.NewFromInt(100),
	}
	generated := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	model := NewSplitReportModel(generated, "firm", matters, views)

	raw, err := json.Marshal(model)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "firm", decoded["firm_id"])
	assert.Equal(t, "2024-01-02T03:04:05Z", decoded["generated_at"])
	assert.Equal(t, "100", decoded["grand_total"])
	require.Len(t, decoded["matters"], 1)

	views.ByMatter[0].Others[0].Name = "changed"
	assert.Equal(t, "Working Attorneys", model.ByMatter()[0].Others[0].Name)
}

func TestMatterSplitAccessors(t *testing.T) {
	m := MatterSplit{Shares: []AttorneyShare{
		{AttorneyID: "w", Role: RoleWorking},
		{AttorneyID: "o", Role: RoleOriginator},
	}}
	origin, ok := m.Originator()
	require.True(t, ok)
	assert.Equal(t, "o", origin.DisplayName())
	assert.Len(t, m.Others(), 1)

	_, ok = MatterSplit{}.Originator()
	assert.False(t, ok)
}
