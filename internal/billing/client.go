// Package billing is a client for the practice-management billing API.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"attorney-splits/internal/ingest"
	"attorney-splits/internal/observability/metrics"
	splits "attorney-splits/internal/splits/domain"
)

const (
	defaultPageSize = 200
	refreshWindow   = 60 * time.Second
)

var errUnauthorized = errors.New("billing: unauthorized")

// Config configures the client.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	PaymentsPath string
	FeesPath     string
	PageSize     int
	Timeout      time.Duration
}

// Client calls the billing API on behalf of firms whose tokens are stored.
type Client struct {
	cfg    Config
	oauth  *oauth2.Config
	tokens *TokenStore
	client *http.Client
	logger *logrus.Logger
	now    func() time.Time
}

// NewClient constructs a billing client.
func NewClient(cfg Config, tokens *TokenStore, logger *logrus.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("billing: empty base url")
	}
	if tokens == nil {
		return nil, errors.New("billing: nil token store")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PaymentsPath == "" {
		cfg.PaymentsPath = "/payment_distributions"
	}
	if cfg.FeesPath == "" {
		cfg.FeesPath = "/activities"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.BaseURL + "/oauth/authorize",
				TokenURL:  cfg.BaseURL + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		tokens: tokens,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		now:    time.Now,
	}, nil
}

// Attorneys lists the firm's users as attorneys.
func (c *Client) Attorneys(ctx context.Context, firmID string) ([]splits.Attorney, error) {
	items, err := c.list(ctx, firmID, "/users", nil)
	if err != nil {
		return nil, err
	}
	out := make([]splits.Attorney, 0, len(items))
	for _, item := range items {
		out = append(out, attorneyFrom(item))
	}
	return out, nil
}

func attorneyFrom(item map[string]any) splits.Attorney {
	id := splits.ScalarString(item["id"])
	name := strings.TrimSpace(splits.ScalarString(item["name"]))
	if name == "" {
		first := splits.ScalarString(item["first_name"])
		last := splits.ScalarString(item["last_name"])
		name = strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	}
	if name == "" {
		name = "User " + id
	}
	return splits.Attorney{ID: id, Name: name, Email: strings.TrimSpace(splits.ScalarString(item["email"]))}
}

// API field names mapped onto the column names the normalizer recognizes.
var (
	paymentRenames = map[string]string{
		"matter_display_number": "matter_name",
	}
	feeRenames = map[string]string{
		"user_name":                        "timekeeper",
		"total":                            "billed_amount",
		"matter_originating_attorney_name": "originator",
		"matter_display_number":            "matter_name",
	}
)

// Payments lists payment rows for [from, to).
func (c *Client) Payments(ctx context.Context, firmID string, from, to time.Time) ([]splits.RawRecord, error) {
	return c.records(ctx, firmID, c.cfg.PaymentsPath, from, to, paymentRenames)
}

// Fees lists fee activity rows for [from, to).
func (c *Client) Fees(ctx context.Context, firmID string, from, to time.Time) ([]splits.RawRecord, error) {
	return c.records(ctx, firmID, c.cfg.FeesPath, from, to, feeRenames)
}

func (c *Client) records(ctx context.Context, firmID, path string, from, to time.Time, renames map[string]string) ([]splits.RawRecord, error) {
	query := url.Values{}
	if !from.IsZero() {
		query.Set("created_since", from.UTC().Format(time.RFC3339))
	}
	if !to.IsZero() {
		query.Set("created_before", to.UTC().Format(time.RFC3339))
	}
	items, err := c.list(ctx, firmID, path, query)
	if err != nil {
		return nil, err
	}
	out := make([]splits.RawRecord, 0, len(items))
	for _, item := range items {
		out = append(out, rename(ingest.Flatten(item), renames))
	}
	return out, nil
}

// rename copies API keys to recognized names unless the row already has them.
func rename(row splits.RawRecord, renames map[string]string) splits.RawRecord {
	for from, to := range renames {
		value, ok := row[from]
		if !ok || from == to {
			continue
		}
		if _, exists := row[to]; !exists {
			row[to] = value
		}
	}
	return row
}

type page struct {
	Data  []map[string]any `json:"data"`
	Users []map[string]any `json:"users"`
}

func (p page) items() []map[string]any {
	if len(p.Data) > 0 {
		return p.Data
	}
	return p.Users
}

// list walks page/per_page until a short or empty page.
func (c *Client) list(ctx context.Context, firmID, path string, query url.Values) ([]map[string]any, error) {
	var all []map[string]any
	for n := 1; ; n++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(n))
		q.Set("per_page", strconv.Itoa(c.cfg.PageSize))

		var resp page
		if err := c.get(ctx, firmID, path, q, &resp); err != nil {
			return nil, err
		}
		items := resp.items()
		all = append(all, items...)
		if len(items) < c.cfg.PageSize {
			return all, nil
		}
	}
}

func (c *Client) get(ctx context.Context, firmID, path string, query url.Values, out any) error {
	tokens, err := c.accessToken(ctx, firmID)
	if err != nil {
		return err
	}
	err = c.doJSON(ctx, tokens.AccessToken, path, query, out)
	if !errors.Is(err, errUnauthorized) {
		return err
	}
	c.logger.WithField("firm_id", firmID).Info("billing token rejected, refreshing")
	refreshed, err := c.refresh(ctx, firmID, tokens)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, refreshed.AccessToken, path, query, out)
}

func (c *Client) accessToken(ctx context.Context, firmID string) (Tokens, error) {
	tokens, err := c.tokens.Load(ctx, firmID)
	if err != nil {
		return Tokens{}, err
	}
	if tokens.Expiring(c.now(), refreshWindow) {
		return c.refresh(ctx, firmID, tokens)
	}
	return tokens, nil
}

func (c *Client) refresh(ctx context.Context, firmID string, current Tokens) (Tokens, error) {
	if current.RefreshToken == "" {
		return Tokens{}, fmt.Errorf("billing: refresh token: %w", ErrNoTokens)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
	tok, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken}).Token()
	if err != nil {
		metrics.IncUpstream(tokenErrorClass(err))
		return Tokens{}, fmt.Errorf("billing: refresh token: %w", err)
	}
	metrics.IncUpstream("2xx")
	next := c.tokensFrom(tok)
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	if err := c.tokens.Save(ctx, firmID, next); err != nil {
		return Tokens{}, err
	}
	return next, nil
}

// tokensFrom converts an OAuth token, moving expiry forward by the refresh window.
func (c *Client) tokensFrom(tok *oauth2.Token) Tokens {
	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = c.now().Add(time.Hour)
	}
	t := Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    expiresAt.Add(-refreshWindow),
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		t.Scope = scope
	}
	if t.TokenType == "" {
		t.TokenType = "Bearer"
	}
	return t
}

func tokenErrorClass(err error) string {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		return statusClass(rerr.Response.StatusCode)
	}
	return "error"
}

func (c *Client) doJSON(ctx context.Context, token, path string, query url.Values, out any) error {
	target := c.cfg.BaseURL + "/api/v4" + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.IncUpstream("error")
		return err
	}
	defer resp.Body.Close()
	metrics.IncUpstream(statusClass(resp.StatusCode))

	if resp.StatusCode == http.StatusUnauthorized {
		return errUnauthorized
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("billing: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(out)
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
