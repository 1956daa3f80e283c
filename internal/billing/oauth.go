package billing

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"attorney-splits/internal/observability/metrics"
)

// StartAuth returns the provider's consent URL for state and the PKCE verifier
// the callback must present.
func (c *Client) StartAuth(state string) (authURL, verifier string) {
	verifier = oauth2.GenerateVerifier()
	authURL = c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	return authURL, verifier
}

// CompleteAuth exchanges an authorization code and stores the firm's tokens.
func (c *Client) CompleteAuth(ctx context.Context, firmID, code, verifier string) error {
	if code == "" || verifier == "" {
		return errors.New("billing: missing code or verifier")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
	tok, err := c.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		metrics.IncUpstream(tokenErrorClass(err))
		c.logger.WithError(err).WithField("firm_id", firmID).Warn("billing code exchange failed")
		return fmt.Errorf("billing: exchange code: %w", err)
	}
	metrics.IncUpstream("2xx")
	if err := c.tokens.Save(ctx, firmID, c.tokensFrom(tok)); err != nil {
		return err
	}
	c.logger.WithField("firm_id", firmID).Info("billing account connected")
	return nil
}
