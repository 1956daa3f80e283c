package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// WebhookVerifier checks inbound mail-webhook signatures:
// hex(HMAC-SHA256(key, timestamp || token)).
type WebhookVerifier struct {
	Key     []byte
	MaxSkew time.Duration
	Now     func() time.Time
}

// NewWebhookVerifier constructs a verifier. A zero maxSkew disables the freshness check.
func NewWebhookVerifier(key []byte, maxSkew time.Duration) *WebhookVerifier {
	return &WebhookVerifier{Key: key, MaxSkew: maxSkew, Now: time.Now}
}

// Verify returns nil when signature matches timestamp and token.
func (v *WebhookVerifier) Verify(timestamp, token, signature string) error {
	if v == nil || len(v.Key) == 0 {
		return ErrUnauthorized
	}
	timestamp = strings.TrimSpace(timestamp)
	token = strings.TrimSpace(token)
	signature = strings.TrimSpace(signature)
	if timestamp == "" || token == "" || signature == "" {
		return ErrMissingSignature
	}

	expected := SignWebhook(v.Key, timestamp, token)
	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
		return ErrInvalidSignature
	}

	if v.MaxSkew > 0 {
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return ErrInvalidSignature
		}
		now := time.Now
		if v.Now != nil {
			now = v.Now
		}
		skew := now().Sub(time.Unix(ts, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > v.MaxSkew {
			return ErrSignatureExpired
		}
	}
	return nil
}

// SignWebhook computes the hex signature for timestamp and token.
func SignWebhook(key []byte, timestamp, token string) string {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
