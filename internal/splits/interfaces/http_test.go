package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"attorney-splits/internal/auth"
	"attorney-splits/internal/splits/application"
	splits "attorney-splits/internal/splits/domain"
	"attorney-splits/internal/splits/infrastructure/memory"
)

const (
	paymentsCSV = "Bill Number,Matter Name,Amount\nB1,Acme v. Smith,12000\nB2,Estate,8000\n"
	feesCSV     = "Bill Number,Timekeeper,Originator,Billed Amount\nB1,Jane Doe,Jane Doe,7000\nB1,Bob Roe,Jane Doe,5000\nB2,Jane Doe,Jane Doe,2000\nB2,Bob Roe,Jane Doe,6000\n"
)

var signingKey = []byte("inbound-key")

type stubClock struct{}

func (stubClock) Now() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) }

type stubDirectory struct {
	attorneys []splits.Attorney
	err       error
}

func (d stubDirectory) Attorneys(context.Context, string) ([]splits.Attorney, error) {
	return d.attorneys, d.err
}

type stubSource struct {
	failing bool
	// collected overrides the payment amount per firm.
	collected map[string]string
}

func (s stubSource) Payments(_ context.Context, firmID string, _, _ time.Time) ([]splits.RawRecord, error) {
	if s.failing {
		return nil, errors.New("billing api unavailable")
	}
	amount := "100"
	if v, ok := s.collected[firmID]; ok {
		amount = v
	}
	return []splits.RawRecord{{"bill_number": "B1", "amount": amount}}, nil
}

func (s stubSource) Fees(context.Context, string, time.Time, time.Time) ([]splits.RawRecord, error) {
	return []splits.RawRecord{{"bill_number": "B1", "timekeeper": "A", "originator": "A", "billed_amount": "100"}}, nil
}

type stubAuthorizer struct {
	state    string
	code     string
	verifier string
	firmID   string
	err      error
}

func (a *stubAuthorizer) StartAuth(state string) (string, string) {
	a.state = state
	return "https://billing.example/oauth/authorize?state=" + url.QueryEscape(state), "verifier-123"
}

func (a *stubAuthorizer) CompleteAuth(_ context.Context, firmID, code, verifier string) error {
	a.firmID, a.code, a.verifier = firmID, code, verifier
	return a.err
}

type testServer struct {
	handler *ReportHandler
	store   *memory.KVStore
}

func newTestServer(t *testing.T, opts ...HandlerOption) *testServer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := memory.NewKVStore()
	service, err := application.NewReportService(
		application.NewPipeline(splits.DefaultPolicy()),
		XLSXRenderer{},
		store,
		logger,
		application.WithClock(stubClock{}),
	)
	require.NoError(t, err)
	verifier := auth.NewWebhookVerifier(signingKey, 0)
	h, err := NewReportHandler(service, verifier, logger, opts...)
	require.NoError(t, err)
	return &testServer{handler: h, store: store}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func inboundRequest(t *testing.T, signature string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	ts, token := "1700000000", "tok-1"
	require.NoError(t, mw.WriteField("timestamp", ts))
	require.NoError(t, mw.WriteField("token", token))
	if signature == "" {
		signature = auth.SignWebhook(signingKey, ts, token)
	}
	require.NoError(t, mw.WriteField("signature", signature))
	i := 0
	for name, content := range files {
		i++
		part, err := mw.CreateFormFile("attachment-"+string(rune('0'+i)), name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/reports/inbound", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestInboundPublishesLatest(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/export/latest", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(inboundRequest(t, "", map[string]string{
		"Payments.csv": paymentsCSV,
		"fees.csv":     feesCSV,
		"logo.png":     "not a table",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ingested"])
	assert.Equal(t, float64(2), body["matters"])
	assert.NotEmpty(t, body["run_id"])
	assert.Equal(t, []any{"logo.png"}, body["skipped"])

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/export/latest", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attorney-splits-latest.xlsx")
	assert.Equal(t, "2024-03-15T09:00:00Z", rec.Header().Get("X-Report-Generated-At"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestInboundRejectsBadSignature(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(inboundRequest(t, strings.Repeat("0", 64), map[string]string{"payments.csv": paymentsCSV, "fees.csv": feesCSV}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, srv.store.Len())
}

func TestInboundMissingFees(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(inboundRequest(t, "", map[string]string{"payments.csv": paymentsCSV}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "missing_input", body["kind"])
	assert.Equal(t, "Missing payments or fees attachment", body["error"])
	assert.Equal(t, 0, srv.store.Len())
}

func TestInboundRequiresMultipart(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(httptest.NewRequest(http.MethodPost, "/api/reports/inbound", strings.NewReader("{}")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportReports(t *testing.T) {
	srv := newTestServer(t)
	payload, err := json.Marshal(map[string]string{"paymentsCsv": paymentsCSV, "feesCsv": feesCSV, "originatorName": "Jane Doe"})
	require.NoError(t, err)

	rec := srv.do(httptest.NewRequest(http.MethodPost, "/api/export/reports?month=2024-02", bytes.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="reports-splits-2024-02.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, application.ContentType("xlsx"), rec.Header().Get("Content-Type"))
	assert.Equal(t, 0, srv.store.Len())

	rec = srv.do(httptest.NewRequest(http.MethodPost, "/api/export/reports", bytes.NewReader(payload)))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "reports-splits-period.xlsx")
}

func TestExportReportsValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(httptest.NewRequest(http.MethodPost, "/api/export/reports", strings.NewReader(`{"paymentsCsv":"a,b"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing paymentsCsv or feesCsv", decodeBody(t, rec)["error"])

	rec = srv.do(httptest.NewRequest(http.MethodPost, "/api/export/reports", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/export/reports", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Allow"))
}

func TestOriginatorExport(t *testing.T) {
	dir := stubDirectory{attorneys: []splits.Attorney{{ID: "1", Name: "Jane Doe"}, {ID: "2", Name: "Bob Roe"}}}
	srv := newTestServer(t, WithAttorneyDirectory(dir))

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/export/originator?originator=jane%20doe&month=2024-02", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "originator-jane%20doe-2024-02.xlsx")

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/export/originator", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/export/originator?originator=Nobody", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/export/originator?originator=Jane&month=Feb", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOriginatorExportUnconfigured(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/export/originator?originator=Jane", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSync(t *testing.T) {
	srv := newTestServer(t, WithRecordSource(stubSource{}))
	rec := srv.do(httptest.NewRequest(http.MethodPost, "/api/sync?month=2024-01", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "2024-01", body["period"])
	assert.Equal(t, "default", body["firm_id"])
	assert.Equal(t, float64(1), body["matters"])

	failing := newTestServer(t, WithRecordSource(stubSource{failing: true}))
	rec = failing.do(httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func asIdentity(req *http.Request, firmID string, role auth.Role) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), firmID, role, "user-"+firmID))
}

func collectedOn(t *testing.T, workbook []byte) string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(workbook))
	require.NoError(t, err)
	defer f.Close()
	value, err := f.GetCellValue("Matters", "B2")
	require.NoError(t, err)
	return value
}

func TestLatestScopedByFirm(t *testing.T) {
	srv := newTestServer(t, WithRecordSource(stubSource{collected: map[string]string{"firm-a": "100", "firm-b": "250"}}))

	rec := srv.do(asIdentity(httptest.NewRequest(http.MethodPost, "/api/sync?month=2024-01", nil), "firm-b", auth.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(asIdentity(httptest.NewRequest(http.MethodGet, "/api/export/latest", nil), "firm-a", auth.RoleViewer))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(asIdentity(httptest.NewRequest(http.MethodGet, "/api/export/latest?firmId=firm-b", nil), "firm-a", auth.RoleViewer))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(asIdentity(httptest.NewRequest(http.MethodPost, "/api/sync?month=2024-01", nil), "firm-a", auth.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(asIdentity(httptest.NewRequest(http.MethodGet, "/api/export/latest", nil), "firm-a", auth.RoleViewer))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", collectedOn(t, rec.Body.Bytes()))

	rec = srv.do(asIdentity(httptest.NewRequest(http.MethodGet, "/api/export/latest", nil), "firm-b", auth.RoleViewer))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "250", collectedOn(t, rec.Body.Bytes()))
}

func TestFirmScopedByToken(t *testing.T) {
	srv := newTestServer(t, WithHealth(func(context.Context, string) map[string]any {
		return map[string]any{"billing": "connected"}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health?firmId=other", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), "firm-a", auth.RoleViewer, "user-1"))
	rec := srv.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), "firm-a", auth.RoleViewer, "user-1"))
	rec = srv.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "firm-a", body["firmId"])
	assert.Equal(t, "connected", body["billing"])
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/cron/monthly", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{auth.ErrForbidden, http.StatusForbidden},
		{auth.ErrInvalidSignature, http.StatusUnauthorized},
		{splits.NewError(splits.KindMissingInput, "x", nil), http.StatusBadRequest},
		{splits.NewError(splits.KindInvalidPolicy, "x", nil), http.StatusUnprocessableEntity},
		{splits.NewError(splits.KindNotFound, "x", nil), http.StatusNotFound},
		{splits.NewError(splits.KindUpstream, "x", nil), http.StatusBadGateway},
		{splits.NewError(splits.KindRenderFailed, "x", nil), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestOAuthConnectFlow(t *testing.T) {
	authz := &stubAuthorizer{}
	srv := newTestServer(t, WithBillingAuthorizer(authz))

	rec := srv.do(asIdentity(httptest.NewRequest(http.MethodGet, "/api/oauth/start", nil), "firm-a", auth.RoleAdmin))
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(authz.state, "firm-a:"))
	assert.Equal(t, "https://billing.example/oauth/authorize?state="+url.QueryEscape(authz.state), rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, oauthCookie, cookie.Name)
	assert.True(t, cookie.HttpOnly)

	callback := func(state string, withCookie bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/oauth/callback?code=abc&state="+url.QueryEscape(state), nil)
		if withCookie {
			req.AddCookie(cookie)
		}
		return srv.do(req)
	}

	rec = callback("firm-a:other", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "State mismatch", decodeBody(t, rec)["error"])
	assert.Empty(t, authz.code)

	rec = callback(authz.state, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing oauth cookie", decodeBody(t, rec)["error"])

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/oauth/callback?state=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = callback(authz.state, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "firm-a", decodeBody(t, rec)["firmId"])
	assert.Equal(t, "firm-a", authz.firmID)
	assert.Equal(t, "abc", authz.code)
	assert.Equal(t, "verifier-123", authz.verifier)
}

func TestOAuthExchangeFailure(t *testing.T) {
	authz := &stubAuthorizer{err: errors.New("invalid_grant")}
	srv := newTestServer(t, WithBillingAuthorizer(authz))

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/oauth/start", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(authz.state, "default:"))

	req := httptest.NewRequest(http.MethodGet, "/api/oauth/callback?code=abc&state="+url.QueryEscape(authz.state), nil)
	req.AddCookie(rec.Result().Cookies()[0])
	rec = srv.do(req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestOAuthUnconfigured(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/api/oauth/start", "/api/oauth/callback?code=a&state=b"} {
		rec := srv.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestUsers(t *testing.T) {
	dir := stubDirectory{attorneys: []splits.Attorney{{ID: "1", Name: "Jane Doe", Email: "jane@example.com"}}}
	srv := newTestServer(t, WithAttorneyDirectory(dir))

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/users", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		OK    bool              `json:"ok"`
		Users []splits.Attorney `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Equal(t, dir.attorneys, body.Users)

	failing := newTestServer(t, WithAttorneyDirectory(stubDirectory{err: errors.New("down")}))
	rec = failing.do(httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = newTestServer(t).do(httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAttorneyExport(t *testing.T) {
	dir := stubDirectory{attorneys: []splits.Attorney{{ID: "1", Name: "A"}, {ID: "2", Name: "B"}}}
	srv := newTestServer(t, WithAttorneyDirectory(dir), WithRecordSource(stubSource{}))

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/export/attorney?attorneyId=1&month=2024-02", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attorney-1.xlsx")
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	matters, err := f.GetCellValue("A", "B5")
	require.NoError(t, err)
	assert.Equal(t, "1", matters)

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/export/attorney", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing attorneyId", decodeBody(t, rec)["error"])

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/export/attorney?attorneyId=9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/export/attorney?attorneyId=1&month=Feb", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = newTestServer(t).do(httptest.NewRequest(http.MethodGet, "/api/export/attorney?attorneyId=1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
