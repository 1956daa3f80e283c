package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"attorney-splits/internal/audit"
	"attorney-splits/internal/auth"
	"attorney-splits/internal/ingest"
	"attorney-splits/internal/observability/metrics"
	"attorney-splits/internal/splits/application"
	splits "attorney-splits/internal/splits/domain"
)

const (
	defaultFirmID    = "default"
	defaultMaxUpload = 32 << 20
)

// HealthFunc reports collaborator status for a firm.
type HealthFunc func(ctx context.Context, firmID string) map[string]any

// ReportHandler serves the report APIs under /api.
type ReportHandler struct {
	service    *application.ReportService
	verifier   *auth.WebhookVerifier
	source     application.RecordSource
	directory  application.AttorneyDirectory
	authorizer BillingAuthorizer
	monthly    *application.MonthlyRunner
	options    application.SplitOptions
	health     HealthFunc
	audit      audit.Logger
	logger     *logrus.Logger
	maxUpload  int64
}

// HandlerOption customizes a ReportHandler.
type HandlerOption func(*ReportHandler)

// WithRecordSource enables /api/sync.
func WithRecordSource(src application.RecordSource) HandlerOption {
	return func(h *ReportHandler) { h.source = src }
}

// WithAttorneyDirectory enables /api/users and the per-attorney exports.
func WithAttorneyDirectory(dir application.AttorneyDirectory) HandlerOption {
	return func(h *ReportHandler) { h.directory = dir }
}

// WithBillingAuthorizer enables the /api/oauth routes.
func WithBillingAuthorizer(a BillingAuthorizer) HandlerOption {
	return func(h *ReportHandler) { h.authorizer = a }
}

// WithMonthlyRunner enables /api/cron/monthly.
func WithMonthlyRunner(r *application.MonthlyRunner) HandlerOption {
	return func(h *ReportHandler) { h.monthly = r }
}

// WithSplitOptions sets the share identity options for batch runs.
func WithSplitOptions(opts application.SplitOptions) HandlerOption {
	return func(h *ReportHandler) { h.options = opts }
}

// WithHealth sets the /api/health reporter.
func WithHealth(fn HealthFunc) HandlerOption {
	return func(h *ReportHandler) { h.health = fn }
}

// WithAudit records exports.
func WithAudit(l audit.Logger) HandlerOption {
	return func(h *ReportHandler) { h.audit = l }
}

// WithMaxUpload caps the inbound multipart size.
func WithMaxUpload(n int64) HandlerOption {
	return func(h *ReportHandler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// NewReportHandler constructs a handler.
func NewReportHandler(service *application.ReportService, verifier *auth.WebhookVerifier, logger *logrus.Logger, opts ...HandlerOption) (*ReportHandler, error) {
	if service == nil {
		return nil, errors.New("report handler: nil service")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	h := &ReportHandler{
		service:   service,
		verifier:  verifier,
		logger:    logger,
		maxUpload: defaultMaxUpload,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// ServeHTTP routes report requests.
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/reports/inbound":
		if h.allow(w, r, http.MethodPost) {
			h.handleInbound(w, r)
		}
	case "/api/export/reports":
		if h.allow(w, r, http.MethodPost) {
			h.handleExportReports(w, r)
		}
	case "/api/export/latest":
		if h.allow(w, r, http.MethodGet) {
			h.handleLatest(w, r)
		}
	case "/api/export/originator":
		if h.allow(w, r, http.MethodGet) {
			h.handleOriginator(w, r)
		}
	case "/api/export/attorney":
		if h.allow(w, r, http.MethodGet) {
			h.handleAttorneyExport(w, r)
		}
	case "/api/users":
		if h.allow(w, r, http.MethodGet) {
			h.handleUsers(w, r)
		}
	case "/api/oauth/start":
		if h.allow(w, r, http.MethodGet) {
			h.handleOAuthStart(w, r)
		}
	case "/api/oauth/callback":
		if h.allow(w, r, http.MethodGet) {
			h.handleOAuthCallback(w, r)
		}
	case "/api/sync":
		if h.allow(w, r, http.MethodGet, http.MethodPost) {
			h.handleSync(w, r)
		}
	case "/api/cron/monthly":
		if h.allow(w, r, http.MethodGet, http.MethodPost) {
			h.handleMonthly(w, r)
		}
	case "/api/health":
		if h.allow(w, r, http.MethodGet) {
			h.handleHealth(w, r)
		}
	default:
		writeMessage(w, http.StatusNotFound, "not found")
	}
}

func (h *ReportHandler) allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeMessage(w, http.StatusMethodNotAllowed, strings.Join(methods, "/")+" only")
	return false
}

func (h *ReportHandler) handleInbound(w http.ResponseWriter, r *http.Request) {
	result := metrics.ResultError
	defer func() { metrics.IncInbound(result) }()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		metrics.IncInboundRejected("bad_form")
		writeError(w, splits.NewError(splits.KindInvalidInput, "expected multipart form", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	if err := h.verifier.Verify(r.FormValue("timestamp"), r.FormValue("token"), r.FormValue("signature")); err != nil {
		metrics.IncInboundRejected("signature")
		h.logger.WithError(err).WithField("ip", audit.ClientIP(r)).Warn("inbound signature rejected")
		writeError(w, splits.NewError(splits.KindUnauthorized, "invalid signature", err))
		return
	}

	files, err := readAttachments(r)
	if err != nil {
		metrics.IncInboundRejected("attachment")
		writeError(w, err)
		return
	}
	batch, err := ingest.Collect(files)
	if err != nil {
		metrics.IncInboundRejected("attachment")
		writeError(w, err)
		return
	}
	if len(batch.Payments) == 0 || len(batch.Fees) == 0 {
		metrics.IncInboundRejected("missing_input")
		writeError(w, splits.NewError(splits.KindMissingInput, "Missing payments or fees attachment", nil))
		return
	}

	firmID := firstNonEmpty(r.FormValue("firmId"), r.URL.Query().Get("firmId"), defaultFirmID)
	outcome, err := h.service.Ingest(r.Context(), application.BatchInput{
		FirmID:   firmID,
		Payments: batch.Payments,
		Fees:     batch.Fees,
		Options:  h.options,
	}, "inbound")
	if err != nil {
		h.logFailure(r, err)
		writeError(w, err)
		return
	}
	result = metrics.ResultSuccess
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"ingested": true,
		"run_id":   outcome.RunID,
		"matters":  outcome.Matters(),
		"dropped": map[string]int{
			"payments": outcome.Result.Payments.DroppedNoBillID,
			"fees":     outcome.Result.Fees.DroppedNoBillID,
		},
		"skipped": batch.Skipped,
	})
}

// readAttachments loads every uploaded file, ordered by form field then upload order.
func readAttachments(r *http.Request) ([]ingest.Attachment, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	fields := make([]string, 0, len(r.MultipartForm.File))
	for field := range r.MultipartForm.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var out []ingest.Attachment
	for _, field := range fields {
		for _, fh := range r.MultipartForm.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, splits.NewError(splits.KindInvalidInput, "could not open attachment "+fh.Filename, err)
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return nil, splits.NewError(splits.KindInvalidInput, "could not read attachment "+fh.Filename, err)
			}
			out = append(out, ingest.Attachment{Filename: fh.Filename, Data: data})
		}
	}
	return out, nil
}

type exportRequest struct {
	PaymentsCSV    string `json:"paymentsCsv"`
	FeesCSV        string `json:"feesCsv"`
	OriginatorName string `json:"originatorName"`
}

func (h *ReportHandler) handleExportReports(w http.ResponseWriter, r *http.Request) {
	firmID, err := h.firmID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, splits.NewError(splits.KindInvalidInput, "invalid json", err))
		return
	}
	if strings.TrimSpace(req.PaymentsCSV) == "" || strings.TrimSpace(req.FeesCSV) == "" {
		writeError(w, splits.NewError(splits.KindMissingInput, "Missing paymentsCsv or feesCsv", nil))
		return
	}
	payments, err := ingest.DecodeCSVString(req.PaymentsCSV)
	if err != nil {
		writeError(w, splits.NewError(splits.KindInvalidInput, "could not parse paymentsCsv", err))
		return
	}
	fees, err := ingest.DecodeCSVString(req.FeesCSV)
	if err != nil {
		writeError(w, splits.NewError(splits.KindInvalidInput, "could not parse feesCsv", err))
		return
	}

	opts := h.options
	if name := strings.TrimSpace(req.OriginatorName); name != "" {
		opts.OriginatorName = name
	}
	outcome, err := h.service.Generate(r.Context(), application.BatchInput{
		FirmID:   firmID,
		Payments: payments,
		Fees:     fees,
		Options:  opts,
	})
	if err != nil {
		h.logFailure(r, err)
		writeError(w, err)
		return
	}

	label := "period"
	if month := strings.TrimSpace(r.URL.Query().Get("month")); month != "" {
		period, err := application.ParseMonth(month, h.service.Now())
		if err != nil {
			writeError(w, err)
			return
		}
		label = period.Label()
	}
	writeFile(w, application.ContentType(outcome.Format), "reports-splits-"+label+"."+outcome.Format, outcome.Payload)
	h.logAudit(r, "report.export", outcome.RunID, map[string]any{"matters": outcome.Matters(), "label": label})
}

func (h *ReportHandler) handleLatest(w http.ResponseWriter, r *http.Request) {
	firmID, err := h.firmID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	payload, generated, err := h.service.Latest(r.Context(), firmID)
	if err != nil {
		if splits.KindOf(err) != splits.KindNotFound {
			h.logFailure(r, err)
		}
		writeError(w, err)
		return
	}
	if !generated.IsZero() {
		w.Header().Set("X-Report-Generated-At", generated.UTC().Format(time.RFC3339))
	}
	writeFile(w, application.ContentType("xlsx"), "attorney-splits-latest.xlsx", payload)
}

func (h *ReportHandler) handleOriginator(w http.ResponseWriter, r *http.Request) {
	if h.directory == nil {
		writeMessage(w, http.StatusServiceUnavailable, "billing API not configured")
		return
	}
	firmID, err := h.firmID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("originator"))
	if name == "" {
		writeError(w, splits.NewError(splits.KindMissingInput, "Missing originator name (?originator=First%20Last)", nil))
		return
	}
	label := "current"
	if month := strings.TrimSpace(r.URL.Query().Get("month")); month != "" {
		period, err := application.ParseMonth(month, h.service.Now())
		if err != nil {
			writeError(w, err)
			return
		}
		label = period.Label()
	}

	attorneys, err := h.directory.Attorneys(r.Context(), firmID)
	if err != nil {
		h.logFailure(r, err)
		writeError(w, splits.NewError(splits.KindUpstream, "could not list attorneys", err))
		return
	}
	originator, ok := application.FindAttorney(attorneys, name)
	if !ok {
		writeError(w, splits.NewError(splits.KindNotFound, "Originator not found: "+name, nil))
		return
	}
	other := application.OtherAttorney(attorneys, originator)

	matters := application.BuildOriginatorDemo(originator, other, h.service.Pipeline().Policy())
	report := application.BuildReport(h.service.Now(), firmID, matters)
	payload, err := h.service.Render(report)
	if err != nil {
		h.logFailure(r, err)
		writeError(w, err)
		return
	}
	writeFile(w, application.ContentType("xlsx"), "originator-"+url.PathEscape(name)+"-"+label+".xlsx", payload)
	h.logAudit(r, "report.originator_export", originator.ID, map[string]any{"month": label})
}

func (h *ReportHandler) handleUsers(w http.ResponseWriter, r *http.Request) {
	if h.directory == nil {
		writeMessage(w, http.StatusServiceUnavailable, "billing API not configured")
		return
	}
	firmID, err := h.firmID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	attorneys, err := h.directory.Attorneys(r.Context(), firmID)
	if err != nil {
		h.logFailure(r, err)
		writeError(w, splits.NewError(splits.KindUpstream, "could not list users", err))
		return
	}
	if attorneys == nil {
		attorneys = []splits.Attorney{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "users": attorneys})
}

func (h *ReportHandler) handleAttorneyExport(w http.ResponseWriter, r *http.Request) {
	if h.directory == nil {
		writeMessage(w, http.StatusServiceUnavailable, "billing API not configured")
		return
	}
	firmID, err := h.firmID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("attorneyId"))
	if id == "" {
		writeError(w, splits.NewError(splits.KindMissingInput, "Missing attorneyId", nil))
		return
	}
	period, err := application.ParseMonth(r.URL.Query().Get("month"), h.service.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	attorneys, err := h.directory.Attorneys(r.Context(), firmID)
	if err != nil {
		h.logFailure(r, err)
		writeError(w, splits.NewError(splits.KindUpstream, "could not list attorneys", err))
		return
	}
	var attorney splits.Attorney
	found := false
	for _, a := range attorneys {
		if a.ID == id {
			attorney, found = a, true
			break
		}
	}
	if !found {
		writeError(w, splits.NewError(splits.KindNotFound, "Attorney not found", nil))
		return
	}
	summary, err := h.service.AttorneySummary(r.Context(), h.source, firmID, attorney, period)
	if err != nil {
		h.logFailure(r, err)
		writeError(w, err)
		return
	}
	payload, err := BuildAttorneyWorkbook(summary)
	if err != nil {
		h.logFailure(r, err)
		writeError(w, splits.NewError(splits.KindRenderFailed, "could not render attorney workbook", err))
		return
	}
	writeFile(w, application.ContentType("xlsx"), "attorney-"+url.PathEscape(id)+".xlsx", payload)
	h.logAudit(r, "report.attorney_export", id, map[string]any{"month": period.Label()})
}

func (h *ReportHandler) handleSync(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeMessage(w, http.StatusServiceUnavailable, "billing API not configured")
		return
	}
	firmID, err := h.firmID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	period, err := application.ParseMonth(r.URL.Query().Get("month"), h.service.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	outcome, err := h.service.Sync(r.Context(), h.source, firmID, period)
	if err != nil {
		h.logFailure(r, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"run_id":  outcome.RunID,
		"firm_id": firmID,
		"period":  period.Label(),
		"matters": outcome.Matters(),
		"dropped": outcome.Result.Dropped(),
	})
}

func (h *ReportHandler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	if h.monthly == nil {
		writeMessage(w, http.StatusServiceUnavailable, "monthly run not configured")
		return
	}
	results, err := h.monthly.Run(r.Context())
	sent := len(results) > 0
	for _, res := range results {
		sent = sent && res.Sent
	}
	status := http.StatusOK
	body := map[string]any{"ok": err == nil, "sent": sent, "results": results}
	if err != nil {
		h.logFailure(r, err)
		status = http.StatusInternalServerError
		body["error"] = err.Error()
	}
	writeJSON(w, status, body)
}

func (h *ReportHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	firmID, err := h.firmID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	body := map[string]any{"ok": true, "firmId": firmID}
	if h.health != nil {
		for k, v := range h.health(r.Context(), firmID) {
			body[k] = v
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// firmID resolves the firm from the token, then the query, then the default.
func (h *ReportHandler) firmID(r *http.Request) (string, error) {
	requested := strings.TrimSpace(r.URL.Query().Get("firmId"))
	if fromToken := auth.FirmIDFromContext(r.Context()); fromToken != "" {
		if requested != "" && requested != fromToken {
			return "", auth.ErrForbidden
		}
		return fromToken, nil
	}
	return firstNonEmpty(requested, defaultFirmID), nil
}

func (h *ReportHandler) logFailure(r *http.Request, err error) {
	entry := h.logger.WithError(err).WithFields(logrus.Fields{
		"path": r.URL.Path,
		"kind": splits.KindOf(err),
	})
	if statusFor(err) >= http.StatusInternalServerError {
		entry.Error("request failed")
		return
	}
	entry.Warn("request rejected")
}

func (h *ReportHandler) logAudit(r *http.Request, action, resourceID string, meta map[string]any) {
	firmID := auth.FirmIDFromContext(r.Context())
	if firmID == "" {
		return
	}
	h.auditFirm(r, firmID, action, resourceID, meta)
}

// auditFirm records an entry for a firm resolved outside the token.
func (h *ReportHandler) auditFirm(r *http.Request, firmID, action, resourceID string, meta map[string]any) {
	if h.audit == nil {
		return
	}
	if err := h.audit.Log(r.Context(), audit.Entry{
		FirmID:       firmID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "split_report",
		ResourceID:   resourceID,
		Metadata:     audit.Metadata(meta),
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}); err != nil {
		h.logger.WithError(err).Warn("audit log failed")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
