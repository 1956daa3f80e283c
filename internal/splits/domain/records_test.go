package splits

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"Bill Number":       "bill_number",
		"  Matter--Name  ":  "matter_name",
		"Invoice #":         "invoice",
		"Amount (USD)":      "amount_usd",
		"user.name":         "user_name",
		"":                  "",
		"Matter_Display_No": "matter_display_no",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeKey(in), in)
	}
}

func TestResolveFirstAliasWins(t *testing.T) {
	raw := RawRecord{
		"Invoice Number": "INV-2",
		"Bill Number":    "B-1",
		"Matter":         " Acme ",
		"Amount":         json.Number("12.34"),
	}
	rec := Resolve(raw, PaymentAliases())

	bill, ok := rec.Text(FieldBillID)
	require.True(t, ok)
	assert.Equal(t, "B-1", bill)
	matter, _ := rec.Text(FieldMatterName)
	assert.Equal(t, "Acme", matter)
	assert.True(t, decimal.RequireFromString("12.34").Equal(rec.Amount(FieldAmountCollected)))
	assert.Empty(t, rec.Malformed())
}

func TestResolveAmounts(t *testing.T) {
	cases := []struct {
		name      string
		value     any
		want      string
		malformed bool
	}{
		{name: "string", value: " 1500.25 ", want: "1500.25"},
		{name: "empty", value: "", want: "0"},
		{name: "nil", value: nil, want: "0"},
		{name: "float", value: 99.5, want: "99.5"},
		{name: "int", value: 7, want: "7"},
		{name: "negative", value: "-20", want: "-20"},
		{name: "garbage", value: "$1,000", want: "0", malformed: true},
		{name: "nan", value: math.NaN(), want: "0", malformed: true},
		{name: "bool", value: true, want: "0", malformed: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := Resolve(RawRecord{"bill_number": "B", "amount": tc.value}, PaymentAliases())
			assert.True(t, decimal.RequireFromString(tc.want).Equal(rec.Amount(FieldAmountCollected)))
			assert.Equal(t, tc.malformed, len(rec.Malformed()) == 1)
			assert.True(t, rec.Has(FieldAmountCollected))
		})
	}
}

func TestResolveMissingFields(t *testing.T) {
	rec := Resolve(RawRecord{"unrelated": "x"}, FeeAliases())
	assert.False(t, rec.Has(FieldBillID))
	assert.False(t, rec.Has(FieldBilledAmount))
	assert.True(t, rec.Amount(FieldBilledAmount).IsZero())
	_, ok := rec.Text(FieldTimekeeper)
	assert.False(t, ok)
}

func TestAliasTableOverrideCopies(t *testing.T) {
	base := PaymentAliases()
	override := base.WithAliases(FieldBillID, []string{"ref"})
	assert.Equal(t, []string{"ref"}, override[0].Aliases)
	assert.Equal(t, "bill_number", base[0].Aliases[0])
}

func TestParseAmount(t *testing.T) {
	v, bad := ParseAmount("0.005")
	assert.False(t, bad)
	assert.Equal(t, "0.01", FormatMoney(RoundMoney(v)))

	v, bad = ParseAmount("-0.005")
	assert.False(t, bad)
	assert.Equal(t, "-0.01", FormatMoney(RoundMoney(v)))

	_, bad = ParseAmount("1.2.3")
	assert.True(t, bad)
}

func TestResolveCollidingKeysIsDeterministic(t *testing.T) {
	raw := RawRecord{"Bill Number": "B1", "bill_number": "B2", "BILL-NUMBER": "B3"}
	for i := 0; i < 100; i++ {
		bill, ok := Resolve(raw, PaymentAliases()).Text(FieldBillID)
		require.True(t, ok)
		require.Equal(t, "B2", bill, "run %d", i)
	}

	raw = RawRecord{"Bill Number": "B1", "BILL-NUMBER": "B3", "bill  number": "B4"}
	for i := 0; i < 100; i++ {
		bill, _ := Resolve(raw, PaymentAliases()).Text(FieldBillID)
		require.Equal(t, "B3", bill, "run %d", i)
	}
}

func TestRoundMoneyTies(t *testing.T) {
	cases := map[string]string{
		"0.125":   "0.13",
		"-0.125":  "-0.13",
		"2.675":   "2.68",
		"-2.675":  "-2.68",
		"0.124":   "0.12",
		"-0.1249": "-0.12",
		"10":      "10.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatMoney(RoundMoney(decimal.RequireFromString(in))), in)
	}
}
