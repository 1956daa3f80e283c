package application

import (
	"time"

	splits "attorney-splits/internal/splits/domain"
)

// BatchInput is one immutable batch of raw rows for a firm.
type BatchInput struct {
	FirmID      string
	GeneratedAt time.Time
	Payments    []splits.RawRecord
	Fees        []splits.RawRecord
	Options     SplitOptions
}

// RunResult is everything one pipeline run produced.
type RunResult struct {
	Report     *splits.SplitReportModel
	Aggregates []splits.BillAggregate
	Payments   NormalizeStats
	Fees       NormalizeStats
	Warnings   []splits.PolicyWarning
}

// Dropped returns the number of rows dropped for lacking a bill id.
func (r *RunResult) Dropped() int {
	if r == nil {
		return 0
	}
	return r.Payments.DroppedNoBillID + r.Fees.DroppedNoBillID
}

// Pipeline chains normalization, aggregation, attribution and ledger building.
// It holds no mutable state and is safe for concurrent use.
type Pipeline struct {
	normalizer *Normalizer
	matcher    splits.Matcher
	policy     splits.AttributionPolicy
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *Normalizer) PipelineOption {
	return func(p *Pipeline) {
		if n != nil {
			p.normalizer = n
		}
	}
}

// WithMatcher replaces the originator matching strategy.
func WithMatcher(m splits.Matcher) PipelineOption {
	return func(p *Pipeline) {
		if m != nil {
			p.matcher = m
		}
	}
}

// NewPipeline constructs a pipeline for a policy.
func NewPipeline(policy splits.AttributionPolicy, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		normalizer: NewNormalizer(),
		matcher:    splits.SubstringMatcher{},
		policy:     policy,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Policy returns the policy the pipeline attributes with.
func (p *Pipeline) Policy() splits.AttributionPolicy { return p.policy }

// Run executes the pipeline over one batch. It either returns a complete report or an error.
func (p *Pipeline) Run(in BatchInput) (*RunResult, error) {
	if len(in.Payments) == 0 {
		return nil, splits.NewError(splits.KindMissingInput, "no payment rows supplied", splits.ErrMissingPayments)
	}
	if len(in.Fees) == 0 {
		return nil, splits.NewError(splits.KindMissingInput, "no fee rows supplied", splits.ErrMissingFees)
	}

	payments, paymentStats := p.normalizer.Payments(in.Payments)
	fees, feeStats := p.normalizer.Fees(in.Fees)

	aggs := Aggregate(payments, fees, p.matcher)
	if len(aggs) == 0 {
		return nil, splits.NewError(splits.KindInvalidInput, "no rows carry a bill id", splits.ErrNoResolvableBills)
	}

	matters := BuildMatterSplits(aggs, p.policy, in.Options)
	return &RunResult{
		Report:     BuildReport(in.GeneratedAt, in.FirmID, matters),
		Aggregates: aggs,
		Payments:   paymentStats,
		Fees:       feeStats,
		Warnings:   ValidatePolicy(p.policy),
	}, nil
}

// ValidatePolicy lists policy percentages outside [0, 1]. Warnings never fail a run.
func ValidatePolicy(policy splits.AttributionPolicy) []splits.PolicyWarning {
	return policy.Validate()
}
