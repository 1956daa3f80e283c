package splits

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RawRecord is one row from an ingestion source. Keys and value types depend on the source.
type RawRecord map[string]any

// Field names a canonical record field.
type Field string

const (
	FieldBillID          Field = "bill_id"
	FieldMatterName      Field = "matter_name"
	FieldAmountCollected Field = "amount_collected"
	FieldTimekeeper      Field = "timekeeper"
	FieldOriginator      Field = "originator"
	FieldBilledAmount    Field = "billed_amount"
)

// FieldKind controls how a resolved value is coerced.
type FieldKind int

const (
	KindText FieldKind = iota
	KindAmount
)

// FieldSpec maps a canonical field onto its raw key aliases, in priority order.
type FieldSpec struct {
	Field   Field
	Kind    FieldKind
	Aliases []string
}

// AliasTable is the declarative alias table for one record shape.
type AliasTable []FieldSpec

// WithAliases returns a copy of the table where field uses aliases instead of its defaults.
func (t AliasTable) WithAliases(field Field, aliases []string) AliasTable {
	out := make(AliasTable, len(t))
	for i, spec := range t {
		spec.Aliases = append([]string(nil), spec.Aliases...)
		if spec.Field == field && len(aliases) > 0 {
			spec.Aliases = append([]string(nil), aliases...)
		}
		out[i] = spec
	}
	return out
}

// PaymentAliases is the default alias table for payment rows.
func PaymentAliases() AliasTable {
	return AliasTable{
		{Field: FieldBillID, Kind: KindText, Aliases: []string{"bill_number", "invoice_number", "invoice_no", "bill"}},
		{Field: FieldMatterName, Kind: KindText, Aliases: []string{"matter_name", "matter", "matter_number", "matter_display_number"}},
		{Field: FieldAmountCollected, Kind: KindAmount, Aliases: []string{"amount", "payment_amount", "paid_amount"}},
	}
}

// FeeAliases is the default alias table for fee/time rows.
func FeeAliases() AliasTable {
	return AliasTable{
		{Field: FieldBillID, Kind: KindText, Aliases: []string{"bill_number", "invoice_number", "invoice_no", "bill"}},
		{Field: FieldMatterName, Kind: KindText, Aliases: []string{"matter_name", "matter", "matter_number", "matter_display_number"}},
		{Field: FieldTimekeeper, Kind: KindText, Aliases: []string{"timekeeper", "user", "attorney"}},
		{Field: FieldOriginator, Kind: KindText, Aliases: []string{"originator", "originating_attorney"}},
		{Field: FieldBilledAmount, Kind: KindAmount, Aliases: []string{"billed_amount", "amount", "fee_amount"}},
	}
}

// NormalizeKey lower-cases a raw key and collapses runs of non-alphanumerics into "_".
func NormalizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	pendingSep := false
	for _, r := range strings.ToLower(key) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// CanonicalRecord holds the resolved canonical fields of one raw row.
type CanonicalRecord struct {
	text      map[Field]string
	amounts   map[Field]decimal.Decimal
	malformed []Field
}

// Text returns a resolved text field and whether it was present.
func (r CanonicalRecord) Text(field Field) (string, bool) {
	value, ok := r.text[field]
	return value, ok
}

// Amount returns a resolved amount field, zero when absent.
func (r CanonicalRecord) Amount(field Field) decimal.Decimal {
	if value, ok := r.amounts[field]; ok {
		return value
	}
	return decimal.Zero
}

// Has reports whether field was resolved from any alias.
func (r CanonicalRecord) Has(field Field) bool {
	if _, ok := r.text[field]; ok {
		return true
	}
	_, ok := r.amounts[field]
	return ok
}

// Malformed lists amount fields that failed to parse and were coerced to zero.
func (r CanonicalRecord) Malformed() []Field {
	return append([]Field(nil), r.malformed...)
}

// Resolve applies an alias table to a raw record. The first present alias wins.
// When several raw keys normalize alike, a key already in normalized form wins,
// then the lexically smallest key.
func Resolve(raw RawRecord, table AliasTable) CanonicalRecord {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		iExact, jExact := keys[i] == NormalizeKey(keys[i]), keys[j] == NormalizeKey(keys[j])
		if iExact != jExact {
			return iExact
		}
		return keys[i] < keys[j]
	})
	keyed := make(map[string]any, len(raw))
	for _, key := range keys {
		norm := NormalizeKey(key)
		if _, exists := keyed[norm]; exists {
			continue
		}
		keyed[norm] = raw[key]
	}

	out := CanonicalRecord{
		text:    make(map[Field]string, len(table)),
		amounts: make(map[Field]decimal.Decimal),
	}
	for _, spec := range table {
		for _, alias := range spec.Aliases {
			value, ok := keyed[NormalizeKey(alias)]
			if !ok {
				continue
			}
			switch spec.Kind {
			case KindAmount:
				amount, malformed := coerceAmount(value)
				out.amounts[spec.Field] = amount
				if malformed {
					out.malformed = append(out.malformed, spec.Field)
				}
			default:
				out.text[spec.Field] = strings.TrimSpace(ScalarString(value))
			}
			break
		}
	}
	return out
}

// ScalarString renders a scalar raw value as text. Nil renders as "".
func ScalarString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case decimal.Decimal:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func coerceAmount(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, false
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, true
		}
		return decimal.NewFromFloat(v), false
	case int:
		return decimal.NewFromInt(int64(v)), false
	case int64:
		return decimal.NewFromInt(v), false
	case bool:
		return decimal.Zero, true
	default:
		return ParseAmount(ScalarString(v))
	}
}

// PaymentRecord is money collected against a bill. Negative amounts are refunds.
type PaymentRecord struct {
	BillID          string
	MatterName      string
	AmountCollected decimal.Decimal
}

// FeeRecord is one billed time entry for a bill.
type FeeRecord struct {
	BillID       string
	MatterName   string
	Timekeeper   string
	Originator   string
	BilledAmount decimal.Decimal
}
