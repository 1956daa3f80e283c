package interfaces

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	splits "attorney-splits/internal/splits/domain"
)

const (
	oauthCookie    = "billing_oauth"
	oauthCookieTTL = 15 * time.Minute
)

// BillingAuthorizer runs the billing provider's authorization-code flow.
type BillingAuthorizer interface {
	StartAuth(state string) (authURL, verifier string)
	CompleteAuth(ctx context.Context, firmID, code, verifier string) error
}

type oauthPending struct {
	State    string `json:"state"`
	Verifier string `json:"verifier"`
}

func (h *ReportHandler) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	if h.authorizer == nil {
		writeMessage(w, http.StatusServiceUnavailable, "billing API not configured")
		return
	}
	firmID, err := h.firmID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	state := firmID + ":" + uuid.NewString()
	authURL, verifier := h.authorizer.StartAuth(state)
	raw, err := json.Marshal(oauthPending{State: state, Verifier: verifier})
	if err != nil {
		writeError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/api/oauth/",
		MaxAge:   int(oauthCookieTTL / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *ReportHandler) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if h.authorizer == nil {
		writeMessage(w, http.StatusServiceUnavailable, "billing API not configured")
		return
	}
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	state := strings.TrimSpace(r.URL.Query().Get("state"))
	if code == "" || state == "" {
		writeError(w, splits.NewError(splits.KindMissingInput, "Missing code or state", nil))
		return
	}
	pending, err := readPending(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if subtle.ConstantTimeCompare([]byte(pending.State), []byte(state)) != 1 {
		writeError(w, splits.NewError(splits.KindInvalidInput, "State mismatch", nil))
		return
	}
	i := strings.LastIndex(state, ":")
	if i <= 0 {
		writeError(w, splits.NewError(splits.KindInvalidInput, "Invalid state", nil))
		return
	}
	firmID := state[:i]

	http.SetCookie(w, &http.Cookie{Name: oauthCookie, Value: "", Path: "/api/oauth/", MaxAge: -1, HttpOnly: true, Secure: true})
	if err := h.authorizer.CompleteAuth(r.Context(), firmID, code, pending.Verifier); err != nil {
		err = splits.NewError(splits.KindUpstream, "Token exchange failed", err)
		h.logFailure(r, err)
		writeError(w, err)
		return
	}
	h.auditFirm(r, firmID, "billing.connect", firmID, nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "firmId": firmID})
}

func readPending(r *http.Request) (oauthPending, error) {
	c, err := r.Cookie(oauthCookie)
	if err != nil || c.Value == "" {
		return oauthPending{}, splits.NewError(splits.KindInvalidInput, "Missing oauth cookie", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return oauthPending{}, splits.NewError(splits.KindInvalidInput, "Invalid oauth cookie", err)
	}
	var pending oauthPending
	if err := json.Unmarshal(raw, &pending); err != nil || pending.State == "" || pending.Verifier == "" {
		return oauthPending{}, splits.NewError(splits.KindInvalidInput, "Invalid oauth cookie", err)
	}
	return pending, nil
}
