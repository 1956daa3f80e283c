package application

import (
	"github.com/shopspring/decimal"

	splits "attorney-splits/internal/splits/domain"
)

// NormalizeStats counts what the normalizer accepted, dropped and coerced.
type NormalizeStats struct {
	Rows             int `json:"rows"`
	Accepted         int `json:"accepted"`
	DroppedNoBillID  int `json:"dropped_no_bill_id"`
	MalformedAmounts int `json:"malformed_amounts"`
	NegativeBilled   int `json:"negative_billed"`
}

// Normalizer maps raw rows onto payment and fee records using alias tables.
type Normalizer struct {
	payments splits.AliasTable
	fees     splits.AliasTable
}

// NormalizerOption customizes a Normalizer.
type NormalizerOption func(*Normalizer)

// WithPaymentAliases overrides the aliases of one payment field.
func WithPaymentAliases(field splits.Field, aliases []string) NormalizerOption {
	return func(n *Normalizer) {
		n.payments = n.payments.WithAliases(field, aliases)
	}
}

// WithFeeAliases overrides the aliases of one fee field.
func WithFeeAliases(field splits.Field, aliases []string) NormalizerOption {
	return func(n *Normalizer) {
		n.fees = n.fees.WithAliases(field, aliases)
	}
}

// NewNormalizer constructs a normalizer with the default alias tables.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		payments: splits.PaymentAliases(),
		fees:     splits.FeeAliases(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// Payments normalizes payment rows. Rows without a bill id are dropped and counted.
func (n *Normalizer) Payments(rows []splits.RawRecord) ([]splits.PaymentRecord, NormalizeStats) {
	stats := NormalizeStats{Rows: len(rows)}
	out := make([]splits.PaymentRecord, 0, len(rows))
	for _, row := range rows {
		rec := splits.Resolve(row, n.payments)
		billID, _ := rec.Text(splits.FieldBillID)
		stats.MalformedAmounts += len(rec.Malformed())
		if billID == "" {
			stats.DroppedNoBillID++
			continue
		}
		matter, _ := rec.Text(splits.FieldMatterName)
		out = append(out, splits.PaymentRecord{
			BillID:          billID,
			MatterName:      matter,
			AmountCollected: rec.Amount(splits.FieldAmountCollected),
		})
		stats.Accepted++
	}
	return out, stats
}

// Fees normalizes fee rows. Negative billed amounts are coerced to zero.
func (n *Normalizer) Fees(rows []splits.RawRecord) ([]splits.FeeRecord, NormalizeStats) {
	stats := NormalizeStats{Rows: len(rows)}
	out := make([]splits.FeeRecord, 0, len(rows))
	for _, row := range rows {
		rec := splits.Resolve(row, n.fees)
		billID, _ := rec.Text(splits.FieldBillID)
		stats.MalformedAmounts += len(rec.Malformed())
		if billID == "" {
			stats.DroppedNoBillID++
			continue
		}
		billed := rec.Amount(splits.FieldBilledAmount)
		if billed.IsNegative() {
			stats.NegativeBilled++
			billed = decimal.Zero
		}
		matter, _ := rec.Text(splits.FieldMatterName)
		timekeeper, _ := rec.Text(splits.FieldTimekeeper)
		originator, _ := rec.Text(splits.FieldOriginator)
		out = append(out, splits.FeeRecord{
			BillID:       billID,
			MatterName:   matter,
			Timekeeper:   timekeeper,
			Originator:   originator,
			BilledAmount: billed,
		})
		stats.Accepted++
	}
	return out, stats
}
