package oauth

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/authgate/authgate/auditlog"
	"github.com/authgate/authgate/directory"
	"github.com/authgate/authgate/errors"
	"github.com/authgate/authgate/logging"
	"github.com/authgate/authgate/token"
	"golang.org/x/oauth2"
)

// SessionCookieName holds the signed session token after a successful login.
const SessionCookieName = "ag-session"

// DirectoryLookup resolves a verified provider identity to a provisioned
// user. Implemented by directory.Client.
type DirectoryLookup interface {
	GetUser(ctx context.Context, email, provider string) (directory.User, error)
}

// FlowOptions configures a login flow.
type FlowOptions struct {
	Authority *token.Authority
	Directory DirectoryLookup
	Audit     auditlog.Store

	// StateSigningKey signs the transient login-session cookie.
	StateSigningKey []byte

	// SecureCookies should be true whenever the gateway is served over
	// https.
	SecureCookies bool

	// UpstreamTimeout bounds every outbound call (exchange, userinfo,
	// directory lookup). Zero means 10 seconds.
	UpstreamTimeout time.Duration
}

// Flow is the per-login state machine:
//
//	Initiated → CallbackReceived → IdentityResolved → TokenIssued
//
// with Rejected as the terminal failure state at any gate. Each login
// attempt is independent; the flow itself holds no per-attempt state — it
// lives in the signed cookie.
type Flow struct {
	providers map[string]Provider
	opts      FlowOptions
}

// NewFlow returns a flow over the given providers.
func NewFlow(opts FlowOptions, providers ...Provider) *Flow {
	if opts.UpstreamTimeout <= 0 {
		opts.UpstreamTimeout = 10 * time.Second
	}
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Flow{providers: m, opts: opts}
}

// Providers returns the names of the registered providers.
func (f *Flow) Providers() []string {
	names := make([]string, 0, len(f.providers))
	for name := range f.providers {
		names = append(names, name)
	}
	return names
}

// Initiate starts a login attempt: issues fresh anti-CSRF state (and a PKCE
// verifier where the provider uses one), persists both in the signed state
// cookie, and returns the provider authorization URL. The caller must send
// the browser there with a redirect — this is a navigation, not an API
// call, because the provider redirects the browser back.
func (f *Flow) Initiate(w http.ResponseWriter, r *http.Request, providerName string) (string, error) {
	ctx := r.Context()

	p, ok := f.providers[providerName]
	if !ok {
		return "", errors.WrapPrefix(ErrUnsupportedProvider, providerName, 0).
			WithPublicMessage("Unknown login provider")
	}

	state := oauth2.GenerateVerifier()
	verifier := ""
	if p.UsesPKCE() {
		verifier = oauth2.GenerateVerifier()
	}

	sess := newLoginSession(providerName, state, verifier, f.opts.StateSigningKey)
	writeStateCookie(w, sess, f.opts.SecureCookies)

	u, err := p.AuthCodeURL(ctx, state, verifier)
	if err != nil {
		clearStateCookie(w, providerName, f.opts.SecureCookies)
		return "", err
	}

	logging.Infow(ctx, "oauth: login initiated", "provider", providerName)
	return u, nil
}

// LoginResult is the terminal success of a login attempt.
type LoginResult struct {
	Token     string
	SessionID string
	Subject   token.Subject
}

// HandleCallback drives a login attempt from the provider's redirect to a
// signed session token. Every terminal outcome — success or failure —
// clears the transient state cookie so stale state can never leak into the
// next attempt.
func (f *Flow) HandleCallback(w http.ResponseWriter, r *http.Request, providerName, code, state, oauthError string) (*LoginResult, error) {
	ctx := r.Context()

	p, ok := f.providers[providerName]
	if !ok {
		return nil, errors.WrapPrefix(ErrUnsupportedProvider, providerName, 0).
			WithPublicMessage("Unknown login provider")
	}
	defer clearStateCookie(w, providerName, f.opts.SecureCookies)

	if oauthError != "" {
		logging.Warnw(ctx, "oauth: provider reported error on callback", "provider", providerName, "error", oauthError)
		return nil, errors.WrapPrefix(ErrProviderError, oauthError, 0).
			WithPublicMessage("The login provider reported an error")
	}
	if code == "" || state == "" {
		return nil, errors.Wrap(ErrMissingParameters, 0)
	}

	sess, err := readStateCookie(r, providerName, f.opts.StateSigningKey)
	if err != nil {
		return nil, err
	}
	if sess.State != state {
		logging.Warnw(ctx, "oauth: callback state does not match issued state", "provider", providerName)
		return nil, errors.WrapPrefix(ErrStateMismatch, "callback state differs from issued state", 0).
			WithPublicMessage("Login session is invalid, please try again")
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.UpstreamTimeout)
	defer cancel()

	tok, err := p.Exchange(ctx, code, sess.Verifier)
	if err != nil {
		return nil, err
	}

	ident, err := p.Identity(ctx, tok)
	if err != nil {
		return nil, err
	}
	if ident.Email == "" {
		return nil, errors.WrapPrefix(ErrIdentityIncomplete, providerName, 0).
			WithPublicMessage("Your login provider did not share an email address")
	}
	logging.Infow(ctx, "oauth: identity resolved", "provider", providerName, "email", ident.Email)

	user, err := f.opts.Directory.GetUser(ctx, ident.Email, providerName)
	if err != nil {
		return nil, err
	}

	sub := token.Subject{
		Subject:   user.UserID,
		SessionID: uuid.NewString(),
		Email:     ident.Email,
		OrgID:     user.OrganizationID,
		Provider:  providerName,
		Roles:     user.Roles,
	}
	signed, err := f.opts.Authority.Issue(ctx, sub)
	if err != nil {
		return nil, err
	}

	f.sendSessionCookie(w, signed)
	f.appendAudit(ctx, sub)

	logging.Infow(ctx, "oauth: token issued", "provider", providerName, "sub", sub.Subject, "session", sub.SessionID)
	return &LoginResult{Token: signed, SessionID: sub.SessionID, Subject: sub}, nil
}

func (f *Flow) sendSessionCookie(w http.ResponseWriter, signed string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     "/",
		Secure:   f.opts.SecureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
		MaxAge:   int(f.opts.Authority.Lifetime().Seconds()),
	})
}

// appendAudit records the login. Audit failures never fail the login.
func (f *Flow) appendAudit(ctx context.Context, sub token.Subject) {
	if f.opts.Audit == nil {
		return
	}
	err := f.opts.Audit.Append(ctx, auditlog.Record{
		ID:       sub.SessionID,
		Subject:  sub.Subject,
		Email:    sub.Email,
		Provider: sub.Provider,
		Event:    auditlog.EventLogin,
		At:       time.Now(),
	})
	if err != nil {
		logging.Errorw(ctx, "oauth: audit append failed", "error", err, "session", sub.SessionID)
	}
}
