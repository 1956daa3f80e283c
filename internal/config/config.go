// Package config loads service configuration from the environment and an optional yaml file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"attorney-splits/internal/splits/application"
	splits "attorney-splits/internal/splits/domain"
)

// Config is the full service configuration.
type Config struct {
	HTTPAddr    string        `yaml:"http_addr"`
	DatabaseURL string        `yaml:"database_url"`
	JWTSecret   string        `yaml:"jwt_secret"`
	LogLevel    string        `yaml:"log_level"`
	Webhook     WebhookConfig `yaml:"webhook"`
	Inbound     InboundConfig `yaml:"inbound"`
	Policy      PolicyConfig  `yaml:"policy"`
	Aliases     AliasConfig   `yaml:"aliases"`
	Billing     BillingConfig `yaml:"billing"`
	SMTP        SMTPConfig    `yaml:"smtp"`
	Monthly     MonthlyConfig `yaml:"monthly"`
}

// WebhookConfig configures report notices.
type WebhookConfig struct {
	URL      string        `yaml:"url"`
	Template string        `yaml:"template"`
	Timeout  time.Duration `yaml:"timeout"`
}

// InboundConfig configures the mail webhook.
type InboundConfig struct {
	SigningKey string `yaml:"signing_key"`
	MaxSkew    string `yaml:"max_skew"`
}

// PolicyConfig holds attribution percentages as decimal strings.
type PolicyConfig struct {
	SelfOriginatedWorkingPct string `yaml:"self_originated_working_pct"`
	SelfOriginatedOthersPct  string `yaml:"self_originated_others_pct"`
	NonOriginatedWorkingPct  string `yaml:"non_originated_working_pct"`
	Matcher                  string `yaml:"matcher"`
	OriginatorName           string `yaml:"originator_name"`
	ResolveOriginators       bool   `yaml:"resolve_originators"`
}

// AliasConfig overrides column aliases per canonical field.
type AliasConfig struct {
	Payments map[string][]string `yaml:"payments"`
	Fees     map[string][]string `yaml:"fees"`
}

// BillingConfig configures the billing API client.
type BillingConfig struct {
	BaseURL      string `yaml:"base_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	PaymentsPath string `yaml:"payments_path"`
	FeesPath     string `yaml:"fees_path"`
	PageSize     int    `yaml:"page_size"`
	RedirectURL  string `yaml:"redirect_url"`
	Scope        string `yaml:"scope"`
}

// SMTPConfig configures report email.
type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// MonthlyConfig configures the monthly run.
type MonthlyConfig struct {
	Firms       []string `yaml:"firms"`
	Concurrency int      `yaml:"concurrency"`
}

// Load builds the configuration from env defaults, then overlays SPLITS_CONFIG if set.
func Load() (Config, error) {
	defaults := splits.DefaultPolicy()
	cfg := Config{
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		DatabaseURL: getenvDefault("DATABASE_URL", os.Getenv("PG_DSN")),
		JWTSecret:   os.Getenv("AUTH_JWT_SECRET"),
		LogLevel:    getenvDefault("LOG_LEVEL", "info"),
		Webhook: WebhookConfig{
			URL:      os.Getenv("SPLITS_WEBHOOK_URL"),
			Template: os.Getenv("SPLITS_NOTIFY_TEMPLATE"),
			Timeout:  getenvDuration("SPLITS_NOTIFY_TIMEOUT", 5*time.Second),
		},
		Inbound: InboundConfig{
			SigningKey: os.Getenv("INBOUND_SIGNING_KEY"),
			MaxSkew:    getenvDefault("INBOUND_MAX_SKEW", "0s"),
		},
		Policy: PolicyConfig{
			SelfOriginatedWorkingPct: getenvDefault("SELF_ORIGINATED_WORKING_PCT", defaults.SelfOriginatedWorkingPct().String()),
			SelfOriginatedOthersPct:  getenvDefault("SELF_ORIGINATED_OTHERS_PCT", defaults.SelfOriginatedOthersPct().String()),
			NonOriginatedWorkingPct:  getenvDefault("NON_ORIGINATED_WORKING_PCT", defaults.NonOriginatedWorkingPct().String()),
			Matcher:                  getenvDefault("ORIGINATOR_MATCHER", "substring"),
			OriginatorName:           os.Getenv("ORIGINATOR_NAME"),
			ResolveOriginators:       getenvBool("RESOLVE_ORIGINATORS", false),
		},
		Billing: BillingConfig{
			BaseURL:      getenvDefault("BILLING_BASE_URL", "https://app.clio.com"),
			ClientID:     os.Getenv("BILLING_CLIENT_ID"),
			ClientSecret: os.Getenv("BILLING_CLIENT_SECRET"),
			PageSize:     getenvInt("BILLING_PAGE_SIZE", 200),
			RedirectURL:  os.Getenv("BILLING_REDIRECT_URL"),
			Scope:        getenvDefault("BILLING_SCOPE", "openid profile offline_access read:users"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getenvInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("EMAIL_FROM"),
			To:       splitCSV(os.Getenv("EMAIL_TO")),
		},
		Monthly: MonthlyConfig{
			Firms:       splitCSV(getenvDefault("MONTHLY_FIRMS", "default")),
			Concurrency: getenvInt("MONTHLY_CONCURRENCY", 2),
		},
	}

	if path := os.Getenv("SPLITS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if _, err := cfg.AttributionPolicy(); err != nil {
		return cfg, err
	}
	if _, err := cfg.InboundMaxSkew(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// AttributionPolicy parses the configured percentages.
func (c Config) AttributionPolicy() (splits.AttributionPolicy, error) {
	working, err := parsePct("self_originated_working_pct", c.Policy.SelfOriginatedWorkingPct)
	if err != nil {
		return splits.AttributionPolicy{}, err
	}
	others, err := parsePct("self_originated_others_pct", c.Policy.SelfOriginatedOthersPct)
	if err != nil {
		return splits.AttributionPolicy{}, err
	}
	nonOriginated, err := parsePct("non_originated_working_pct", c.Policy.NonOriginatedWorkingPct)
	if err != nil {
		return splits.AttributionPolicy{}, err
	}
	return splits.NewAttributionPolicy(working, others, nonOriginated), nil
}

func parsePct(name, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, splits.NewError(splits.KindInvalidPolicy, "config: "+name+" is not a decimal", err)
	}
	return d, nil
}

// InboundMaxSkew parses the inbound signature freshness window.
func (c Config) InboundMaxSkew() (time.Duration, error) {
	raw := strings.TrimSpace(c.Inbound.MaxSkew)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: inbound max_skew: %w", err)
	}
	return d, nil
}

// Matcher returns the configured originator matcher.
func (c Config) Matcher() splits.Matcher {
	return splits.MatcherByName(c.Policy.Matcher)
}

// SplitOptions returns the ledger options for the batch path.
func (c Config) SplitOptions() application.SplitOptions {
	return application.SplitOptions{
		OriginatorName:     c.Policy.OriginatorName,
		ResolveOriginators: c.Policy.ResolveOriginators,
	}
}

// NormalizerOptions turns alias overrides into normalizer options.
func (c Config) NormalizerOptions() []application.NormalizerOption {
	var opts []application.NormalizerOption
	for field, aliases := range c.Aliases.Payments {
		opts = append(opts, application.WithPaymentAliases(splits.Field(field), aliases))
	}
	for field, aliases := range c.Aliases.Fees {
		opts = append(opts, application.WithFeeAliases(splits.Field(field), aliases))
	}
	return opts
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
