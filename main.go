package main

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"attorney-splits/internal/audit"
	"attorney-splits/internal/auth"
	"attorney-splits/internal/billing"
	"attorney-splits/internal/config"
	"attorney-splits/internal/notify"
	"attorney-splits/internal/observability/metrics"
	"attorney-splits/internal/splits/application"
	"attorney-splits/internal/splits/infrastructure/memory"
	splitspostgres "attorney-splits/internal/splits/infrastructure/postgres"
	"attorney-splits/internal/splits/interfaces"
)

type kvStore interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx := context.Background()
	var (
		db        *sql.DB
		store     kvStore
		auditLogs audit.Logger
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		kv := splitspostgres.NewKVStore(db)
		if err := kv.EnsureSchema(ctx); err != nil {
			logger.Fatalf("kv schema error: %v", err)
		}
		repo := audit.NewRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Fatalf("audit schema error: %v", err)
		}
		store, auditLogs = kv, repo
	} else {
		logger.Warn("DATABASE_URL not set, reports are kept in memory")
		store, auditLogs = memory.NewKVStore(), audit.NewLogLogger(logger)
	}
	metrics.Init(db, logger)

	policy, err := cfg.AttributionPolicy()
	if err != nil {
		logger.Fatalf("policy error: %v", err)
	}
	pipeline := application.NewPipeline(policy,
		application.WithNormalizer(application.NewNormalizer(cfg.NormalizerOptions()...)),
		application.WithMatcher(cfg.Matcher()),
	)
	notifiers := []application.ReportNotifier{notify.NewLogNotifier(logger)}
	if cfg.Webhook.URL != "" {
		tpl, err := notify.NewTemplate(cfg.Webhook.Template)
		if err != nil {
			logger.Fatalf("notify template error: %v", err)
		}
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Webhook.URL,
			notify.WithTemplate(tpl),
			notify.WithTimeout(cfg.Webhook.Timeout),
		))
	}
	service, err := application.NewReportService(pipeline, interfaces.XLSXRenderer{}, store, logger,
		application.WithAuditLogger(auditLogs),
		application.WithNotifier(notify.NewMultiNotifier(notifiers...)),
	)
	if err != nil {
		logger.Fatalf("report service error: %v", err)
	}

	maxSkew, err := cfg.InboundMaxSkew()
	if err != nil {
		logger.Fatalf("inbound config error: %v", err)
	}
	verifier := auth.NewWebhookVerifier([]byte(cfg.Inbound.SigningKey), maxSkew)
	if cfg.Inbound.SigningKey == "" {
		logger.Warn("INBOUND_SIGNING_KEY not set, inbound mail is rejected")
	}

	handlerOpts := []interfaces.HandlerOption{
		interfaces.WithSplitOptions(cfg.SplitOptions()),
		interfaces.WithAudit(auditLogs),
	}

	tokens, err := billing.NewTokenStore(store)
	if err != nil {
		logger.Fatalf("token store error: %v", err)
	}
	var billingClient *billing.Client
	if cfg.Billing.ClientID != "" {
		billingClient, err = billing.NewClient(billing.Config{
			BaseURL:      cfg.Billing.BaseURL,
			ClientID:     cfg.Billing.ClientID,
			ClientSecret: cfg.Billing.ClientSecret,
			PaymentsPath: cfg.Billing.PaymentsPath,
			FeesPath:     cfg.Billing.FeesPath,
			PageSize:     cfg.Billing.PageSize,
			RedirectURL:  cfg.Billing.RedirectURL,
			Scopes:       strings.Fields(cfg.Billing.Scope),
			Timeout:      30 * time.Second,
		}, tokens, logger)
		if err != nil {
			logger.Fatalf("billing client error: %v", err)
		}
		handlerOpts = append(handlerOpts,
			interfaces.WithRecordSource(billingClient),
			interfaces.WithAttorneyDirectory(billingClient),
			interfaces.WithBillingAuthorizer(billingClient),
		)

		var mailer application.ReportMailer
		smtpCfg := notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			To:       cfg.SMTP.To,
		}
		if smtpCfg.Valid() {
			smtpMailer, err := notify.NewSMTPMailer(smtpCfg)
			if err != nil {
				logger.Fatalf("mailer error: %v", err)
			}
			mailer = smtpMailer
		} else {
			logger.Warn("SMTP not configured, monthly reports are stored but not emailed")
		}
		runner, err := application.NewMonthlyRunner(service, billingClient, mailer, cfg.Monthly.Firms, cfg.Monthly.Concurrency, logger)
		if err != nil {
			logger.Fatalf("monthly runner error: %v", err)
		}
		handlerOpts = append(handlerOpts, interfaces.WithMonthlyRunner(runner))
	}
	handlerOpts = append(handlerOpts, interfaces.WithHealth(func(ctx context.Context, firmID string) map[string]any {
		return map[string]any{
			"billingConfigured": billingClient != nil,
			"billingConnected":  billingClient != nil && tokens.Present(ctx, firmID),
			"database":          db != nil,
		}
	}))

	reportHandler, err := interfaces.NewReportHandler(service, verifier, logger, handlerOpts...)
	if err != nil {
		logger.Fatalf("report handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", reportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var handler http.Handler = mux
	if cfg.JWTSecret != "" {
		authPolicy := auth.NewDefaultPolicy([]string{"/api/reports/inbound", "/api/oauth/callback", "/api/health", "/healthz", "/metrics"}, nil)
		handler = auth.NewMiddleware([]byte(cfg.JWTSecret), authPolicy).Wrap(mux)
	} else {
		logger.Warn("AUTH_JWT_SECRET not set, API is unauthenticated")
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.WithField("addr", cfg.HTTPAddr).Info("http listening")
	logger.Fatal(server.ListenAndServe())
}

func loggingMiddleware(next http.Handler, logger *logrus.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   resp.status,
			"duration": time.Since(start).String(),
		}).Info("http request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
