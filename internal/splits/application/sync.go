package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"attorney-splits/internal/observability/metrics"
	splits "attorney-splits/internal/splits/domain"
)

// RecordSource pulls raw billing rows for a firm and period.
type RecordSource interface {
	Payments(ctx context.Context, firmID string, from, to time.Time) ([]splits.RawRecord, error)
	Fees(ctx context.Context, firmID string, from, to time.Time) ([]splits.RawRecord, error)
}

// AttorneyDirectory lists a firm's attorneys.
type AttorneyDirectory interface {
	Attorneys(ctx context.Context, firmID string) ([]splits.Attorney, error)
}

// ReportMail is a rendered report addressed for delivery.
type ReportMail struct {
	Subject     string
	Body        string
	Filename    string
	ContentType string
	Data        []byte
}

// ReportMailer delivers a report by email.
type ReportMailer interface {
	SendReport(ctx context.Context, mail ReportMail) error
}

// CollectBatch fetches payments and fees for a period concurrently.
func CollectBatch(ctx context.Context, source RecordSource, firmID string, period Period) (BatchInput, error) {
	if source == nil {
		return BatchInput{}, splits.NewError(splits.KindInternal, "no record source configured", nil)
	}
	var payments, fees []splits.RawRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := source.Payments(gctx, firmID, period.Start, period.End)
		if err != nil {
			return fmt.Errorf("fetch payments: %w", err)
		}
		payments = rows
		return nil
	})
	g.Go(func() error {
		rows, err := source.Fees(gctx, firmID, period.Start, period.End)
		if err != nil {
			return fmt.Errorf("fetch fees: %w", err)
		}
		fees = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		if splits.KindOf(err) != splits.KindInternal {
			return BatchInput{}, err
		}
		return BatchInput{}, splits.NewError(splits.KindUpstream, "billing source request failed", err)
	}
	return BatchInput{FirmID: firmID, Payments: payments, Fees: fees}, nil
}

// Sync pulls a period from the source, then generates and publishes its report.
func (s *ReportService) Sync(ctx context.Context, source RecordSource, firmID string, period Period) (*Outcome, error) {
	batch, err := CollectBatch(ctx, source, firmID, period)
	if err != nil {
		return nil, err
	}
	return s.Ingest(ctx, batch, "sync")
}

// AttorneySummary totals one attorney's shares for a period. Shares carry the
// bill's recorded originator, so batch data credits originator amounts only.
// A nil source or a period without billing rows yields zero totals.
func (s *ReportService) AttorneySummary(ctx context.Context, source RecordSource, firmID string, attorney splits.Attorney, period Period) (splits.AttorneyTotal, error) {
	summary := splits.AttorneyTotal{
		AttorneyID:       attorney.ID,
		Name:             attorney.Name,
		OriginatorAmount: decimal.Zero,
		WorkingAmount:    decimal.Zero,
		Total:            decimal.Zero,
	}
	if source == nil {
		return summary, nil
	}
	batch, err := CollectBatch(ctx, source, firmID, period)
	if err != nil {
		return summary, err
	}
	if len(batch.Payments) == 0 || len(batch.Fees) == 0 {
		return summary, nil
	}
	batch.GeneratedAt = s.clock.Now()
	batch.Options = SplitOptions{ResolveOriginators: true}
	run, err := s.pipeline.Run(batch)
	if err != nil {
		if errors.Is(err, splits.ErrNoResolvableBills) {
			return summary, nil
		}
		return summary, err
	}

	want := normalizeName(attorney.Name)
	for _, t := range run.Report.ByAttorney() {
		if want == "" || normalizeName(t.Name) != want {
			continue
		}
		summary.OriginatorAmount = summary.OriginatorAmount.Add(t.OriginatorAmount)
		summary.WorkingAmount = summary.WorkingAmount.Add(t.WorkingAmount)
		summary.Total = summary.Total.Add(t.Total)
		summary.MatterCount += t.MatterCount
	}
	return summary, nil
}

// MonthlyResult is the outcome of the monthly run for one firm.
type MonthlyResult struct {
	FirmID  string `json:"firm_id"`
	Label   string `json:"label"`
	Matters int    `json:"matters"`
	Sent    bool   `json:"sent"`
	Error   string `json:"error,omitempty"`
}

// MonthlyRunner generates the previous month's report for each firm and emails it.
type MonthlyRunner struct {
	service     *ReportService
	source      RecordSource
	mailer      ReportMailer
	firms       []string
	concurrency int
	logger      *logrus.Logger
}

// NewMonthlyRunner constructs a runner. A nil mailer skips delivery.
func NewMonthlyRunner(service *ReportService, source RecordSource, mailer ReportMailer, firms []string, concurrency int, logger *logrus.Logger) (*MonthlyRunner, error) {
	if service == nil {
		return nil, errors.New("monthly runner: nil service")
	}
	if source == nil {
		return nil, errors.New("monthly runner: nil source")
	}
	if len(firms) == 0 {
		return nil, errors.New("monthly runner: no firms")
	}
	if concurrency <= 0 {
		concurrency = 2
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MonthlyRunner{
		service:     service,
		source:      source,
		mailer:      mailer,
		firms:       append([]string(nil), firms...),
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

// Run processes every firm. One firm failing does not stop the others.
func (r *MonthlyRunner) Run(ctx context.Context) ([]MonthlyResult, error) {
	period := PreviousMonth(r.service.Now())
	results := make([]MonthlyResult, len(r.firms))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, firmID := range r.firms {
		g.Go(func() error {
			results[i] = r.runFirm(ctx, firmID, period)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Error != "" {
			errs = append(errs, fmt.Errorf("firm %s: %s", res.FirmID, res.Error))
		}
	}
	return results, errors.Join(errs...)
}

func (r *MonthlyRunner) runFirm(ctx context.Context, firmID string, period Period) MonthlyResult {
	label := period.Label()
	res := MonthlyResult{FirmID: firmID, Label: label}
	log := r.logger.WithFields(logrus.Fields{"firm_id": firmID, "period": label})

	outcome, err := r.service.Sync(ctx, r.source, firmID, period)
	if err != nil {
		log.WithError(err).Error("monthly report failed")
		res.Error = err.Error()
		return res
	}
	res.Matters = outcome.Matters()

	if r.mailer == nil {
		return res
	}
	mail := ReportMail{
		Subject:     "Attorney Splits " + label,
		Body:        fmt.Sprintf("Attached are the originator splits for %s.", label),
		Filename:    fmt.Sprintf("attorney-splits-%s.%s", label, outcome.Format),
		ContentType: ContentType(outcome.Format),
		Data:        outcome.Payload,
	}
	if err := r.mailer.SendReport(ctx, mail); err != nil {
		metrics.IncDelivery("email", metrics.ResultError)
		log.WithError(err).Error("monthly report email failed")
		res.Error = err.Error()
		return res
	}
	metrics.IncDelivery("email", metrics.ResultSuccess)
	res.Sent = true
	log.WithField("matters", res.Matters).Info("monthly report sent")
	return res
}

// ContentType maps a report format to its MIME type.
func ContentType(format string) string {
	switch format {
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		return "application/pdf"
	case "json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
