package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNoTokens is returned when no tokens are stored for a firm.
var ErrNoTokens = errors.New("billing: no tokens stored for firm")

// Tokens are one firm's OAuth credentials.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expiring reports whether the access token expires within the window.
func (t Tokens) Expiring(now time.Time, window time.Duration) bool {
	return t.ExpiresAt.Sub(now) < window
}

// KV is the key-value store tokens persist in.
type KV interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// TokenStore persists tokens per firm.
type TokenStore struct {
	kv KV
}

// NewTokenStore constructs a token store.
func NewTokenStore(kv KV) (*TokenStore, error) {
	if kv == nil {
		return nil, errors.New("billing: nil kv")
	}
	return &TokenStore{kv: kv}, nil
}

func tokenKey(firmID string) string { return "billing:tokens:" + firmID }

// Load returns the firm's tokens.
func (s *TokenStore) Load(ctx context.Context, firmID string) (Tokens, error) {
	raw, ok, err := s.kv.Get(ctx, tokenKey(firmID))
	if err != nil {
		return Tokens{}, err
	}
	if !ok {
		return Tokens{}, ErrNoTokens
	}
	var t Tokens
	if err := json.Unmarshal(raw, &t); err != nil {
		return Tokens{}, fmt.Errorf("billing: decode tokens: %w", err)
	}
	return t, nil
}

// Save stores the firm's tokens.
func (s *TokenStore) Save(ctx context.Context, firmID string, t Tokens) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, tokenKey(firmID), raw)
}

// Present reports whether tokens exist for the firm.
func (s *TokenStore) Present(ctx context.Context, firmID string) bool {
	_, ok, err := s.kv.Get(ctx, tokenKey(firmID))
	return err == nil && ok
}
