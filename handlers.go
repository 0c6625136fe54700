package authgate

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/authgate/authgate/errors"
	"github.com/authgate/authgate/logging"
	"github.com/authgate/authgate/oauth"
)

// handleLogin kicks off the provider flow with a browser redirect.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	authURL, err := s.comp.Flow.Initiate(w, r, provider)
	if err != nil {
		writeJSONError(w, r, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback finishes the provider flow. Successful logins land on the
// success URL with the session cookie set; flow failures bounce back to
// the login URL carrying only the public error message. Malformed requests
// that never were a login attempt get a JSON error instead.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	q := r.URL.Query()

	_, err := s.comp.Flow.HandleCallback(w, r, provider,
		q.Get("code"), q.Get("state"), q.Get("error"))
	if err != nil {
		if errors.Is(err, oauth.ErrUnsupportedProvider) || errors.Is(err, oauth.ErrMissingParameters) {
			writeJSONError(w, r, err)
			return
		}
		logging.Warnw(r.Context(), "login failed", "provider", provider, "error", err)
		s.redirectToLogin(w, r, errors.PublicMessage(err))
		return
	}

	http.Redirect(w, r, s.comp.SuccessURL, http.StatusFound)
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request, publicMsg string) {
	u, err := url.Parse(s.comp.LoginURL)
	if err != nil {
		writeJSONError(w, r, errors.WrapPrefix(err, "authgate: bad login url", 0))
		return
	}
	q := u.Query()
	q.Set("error", publicMsg)
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// handleLogout clears the session cookie and redirects to the login URL.
// The audit update is best effort and runs off the request path so a slow
// store never delays the redirect.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(oauth.SessionCookieName); err == nil && s.comp.Audit != nil {
		if claims, verr := s.comp.Authority.Verify(r.Context(), c.Value); verr == nil && claims.ID != "" {
			s.markLoggedOut(r.Context(), claims.ID)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauth.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
		MaxAge:   -1,
	})
	http.Redirect(w, r, s.comp.LoginURL, http.StatusFound)
}

func (s *Server) markLoggedOut(ctx context.Context, sessionID string) {
	logger := logging.FromContext(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(logging.With(context.Background(), logger), 5*time.Second)
		defer cancel()
		if err := s.comp.Audit.MarkLoggedOut(ctx, sessionID, time.Now()); err != nil {
			logging.Errorw(ctx, "audit logout update failed", "error", err, "session", sessionID)
		}
	}()
}

// handleJWKS serves the public key set. Verifiers cache it, so the
// document carries a long max-age; rotation keeps retiring keys published
// until in-flight tokens expire.
func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=86400")
	writeJSON(w, http.StatusOK, s.comp.Publisher.Document())
}
