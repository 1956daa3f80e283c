package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"attorney-splits/internal/audit"
	"attorney-splits/internal/observability/metrics"
	splits "attorney-splits/internal/splits/domain"
)

const (
	latestKeyPrefix = "reports:latest:"
	// DefaultFirmID scopes reports that arrive without a firm.
	DefaultFirmID = "default"
)

// LatestKey is the store key of a firm's latest report in a format.
func LatestKey(firmID, format string) string {
	if firmID == "" {
		firmID = DefaultFirmID
	}
	return latestKeyPrefix + firmID + ":" + format
}

// LatestTimestampKey stores when a firm's latest report was published.
func LatestTimestampKey(firmID string) string { return LatestKey(firmID, "ts") }

// ReportStore is the durable key-value store for published reports.
type ReportStore interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// Renderer serializes a report.
type Renderer interface {
	Format() string
	Render(report *splits.SplitReportModel) ([]byte, error)
}

// ReportNotice announces a published report.
type ReportNotice struct {
	RunID       string    `json:"run_id"`
	FirmID      string    `json:"firm_id"`
	Source      string    `json:"source"`
	Matters     int       `json:"matters"`
	Dropped     int       `json:"dropped"`
	GeneratedAt time.Time `json:"generated_at"`
	Warnings    []string  `json:"warnings,omitempty"`
}

// ReportNotifier is told about every published report.
type ReportNotifier interface {
	NotifyReport(ctx context.Context, notice ReportNotice) error
}

// Clock supplies the generation timestamp.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Outcome is a generated, rendered report.
type Outcome struct {
	RunID   string
	Result  *RunResult
	Payload []byte
	Format  string
}

// Matters returns the number of matters processed.
func (o *Outcome) Matters() int {
	if o == nil || o.Result == nil || o.Result.Report == nil {
		return 0
	}
	return o.Result.Report.MatterCount()
}

// ReportService runs the pipeline, renders, and publishes reports.
type ReportService struct {
	pipeline *Pipeline
	renderer Renderer
	store    ReportStore
	notifier ReportNotifier
	audit    audit.Logger
	clock    Clock
	logger   *logrus.Logger
}

// ServiceOption customizes a ReportService.
type ServiceOption func(*ReportService)

// WithNotifier announces published reports.
func WithNotifier(n ReportNotifier) ServiceOption {
	return func(s *ReportService) { s.notifier = n }
}

// WithAuditLogger records published reports.
func WithAuditLogger(l audit.Logger) ServiceOption {
	return func(s *ReportService) { s.audit = l }
}

// WithClock overrides the generation clock.
func WithClock(c Clock) ServiceOption {
	return func(s *ReportService) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewReportService constructs a service.
func NewReportService(pipeline *Pipeline, renderer Renderer, store ReportStore, logger *logrus.Logger, opts ...ServiceOption) (*ReportService, error) {
	if pipeline == nil {
		return nil, errors.New("report service: nil pipeline")
	}
	if renderer == nil {
		return nil, errors.New("report service: nil renderer")
	}
	if store == nil {
		return nil, errors.New("report service: nil store")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &ReportService{
		pipeline: pipeline,
		renderer: renderer,
		store:    store,
		clock:    systemClock{},
		logger:   logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Pipeline returns the service's pipeline.
func (s *ReportService) Pipeline() *Pipeline { return s.pipeline }

// Now returns the service clock's time.
func (s *ReportService) Now() time.Time { return s.clock.Now() }

// Generate runs the pipeline and renders the report. Nothing is published.
func (s *ReportService) Generate(ctx context.Context, in BatchInput) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObservePipelineRun(result, time.Since(start))
	}()

	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = s.clock.Now()
	}
	runID := uuid.NewString()
	log := s.logger.WithFields(logrus.Fields{"run_id": runID, "firm_id": in.FirmID})

	run, err := s.pipeline.Run(in)
	if err != nil {
		result = metrics.ResultError
		log.WithError(err).Warn("pipeline run failed")
		return nil, err
	}

	metrics.AddMatters(run.Report.MatterCount())
	metrics.AddDroppedRows("payments", run.Payments.DroppedNoBillID)
	metrics.AddDroppedRows("fees", run.Fees.DroppedNoBillID)
	metrics.AddMalformedAmounts("payments", run.Payments.MalformedAmounts)
	metrics.AddMalformedAmounts("fees", run.Fees.MalformedAmounts)
	metrics.AddPolicyWarnings(len(run.Warnings))
	for _, w := range run.Warnings {
		log.WithField("policy", w.String()).Warn("attribution policy out of range")
	}

	if err := ctx.Err(); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	payload, err := s.Render(run.Report)
	if err != nil {
		result = metrics.ResultError
		log.WithError(err).Error("report render failed")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"matters":          run.Report.MatterCount(),
		"dropped_rows":     run.Dropped(),
		"malformed_values": run.Payments.MalformedAmounts + run.Fees.MalformedAmounts,
	}).Info("split report generated")

	return &Outcome{RunID: runID, Result: run, Payload: payload, Format: s.renderer.Format()}, nil
}

// Render serializes a report with the service renderer.
func (s *ReportService) Render(report *splits.SplitReportModel) ([]byte, error) {
	start := time.Now()
	payload, err := s.renderer.Render(report)
	if err != nil {
		metrics.ObserveReportExport(s.renderer.Format(), metrics.ResultError, time.Since(start))
		return nil, splits.NewError(splits.KindRenderFailed, "render "+s.renderer.Format()+" report", err)
	}
	metrics.ObserveReportExport(s.renderer.Format(), metrics.ResultSuccess, time.Since(start))
	return payload, nil
}

// Publish stores the outcome as the firm's latest report, then notifies and audits.
// Notification and audit failures are logged, not returned.
func (s *ReportService) Publish(ctx context.Context, outcome *Outcome, source string) error {
	if outcome == nil || outcome.Result == nil {
		return errors.New("report service: nil outcome")
	}
	report := outcome.Result.Report
	if err := s.store.Put(ctx, LatestKey(report.FirmID(), outcome.Format), outcome.Payload); err != nil {
		return splits.NewError(splits.KindInternal, "store latest report", err)
	}
	stamp := report.GeneratedAt().UTC().Format(time.RFC3339Nano)
	if err := s.store.Put(ctx, LatestTimestampKey(report.FirmID()), []byte(stamp)); err != nil {
		return splits.NewError(splits.KindInternal, "store latest timestamp", err)
	}

	log := s.logger.WithFields(logrus.Fields{"run_id": outcome.RunID, "firm_id": report.FirmID(), "source": source})
	if s.notifier != nil {
		warnings := make([]string, 0, len(outcome.Result.Warnings))
		for _, w := range outcome.Result.Warnings {
			warnings = append(warnings, w.String())
		}
		notice := ReportNotice{
			RunID:       outcome.RunID,
			FirmID:      report.FirmID(),
			Source:      source,
			Matters:     report.MatterCount(),
			Dropped:     outcome.Result.Dropped(),
			GeneratedAt: report.GeneratedAt(),
			Warnings:    warnings,
		}
		if err := s.notifier.NotifyReport(ctx, notice); err != nil {
			log.WithError(err).Warn("report notification failed")
		}
	}
	if s.audit != nil {
		entry := audit.Entry{
			FirmID:       report.FirmID(),
			Actor:        source,
			Action:       "report.publish",
			ResourceType: "split_report",
			ResourceID:   outcome.RunID,
			Metadata: audit.Metadata(map[string]any{
				"matters": report.MatterCount(),
				"dropped": outcome.Result.Dropped(),
				"format":  outcome.Format,
			}),
		}
		if err := s.audit.Log(ctx, entry); err != nil {
			log.WithError(err).Warn("audit log failed")
		}
	}
	log.WithField("matters", report.MatterCount()).Info("split report published")
	return nil
}

// Ingest generates and publishes in one step.
func (s *ReportService) Ingest(ctx context.Context, in BatchInput, source string) (*Outcome, error) {
	outcome, err := s.Generate(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.Publish(ctx, outcome, source); err != nil {
		return nil, err
	}
	return outcome, nil
}

// Latest returns the firm's latest published report and when it was generated.
func (s *ReportService) Latest(ctx context.Context, firmID string) ([]byte, time.Time, error) {
	payload, ok, err := s.store.Get(ctx, LatestKey(firmID, s.renderer.Format()))
	if err != nil {
		return nil, time.Time{}, splits.NewError(splits.KindInternal, "load latest report", err)
	}
	if !ok || len(payload) == 0 {
		return nil, time.Time{}, splits.NewError(splits.KindNotFound, "no latest workbook", splits.ErrReportNotFound)
	}
	var generated time.Time
	if raw, ok, err := s.store.Get(ctx, LatestTimestampKey(firmID)); err == nil && ok {
		generated, _ = time.Parse(time.RFC3339Nano, strings.TrimSpace(string(raw)))
	}
	return payload, generated, nil
}
