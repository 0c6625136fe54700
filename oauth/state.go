package oauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/authgate/authgate/errors"
)

// Transient per-login storage lives at most this long. Matches the outer
// bound of a user completing a provider login.
const stateTTL = 10 * time.Minute

const stateCookiePrefix = "ag-oauth-"

// loginSession is the transient per-attempt state carried in a signed,
// HTTP-only cookie scoped to one provider: the anti-CSRF state and, for
// PKCE providers, the code verifier. Consumed exactly once on callback.
type loginSession struct {
	Provider  string    `json:"p"`
	State     string    `json:"s"`
	Verifier  string    `json:"v,omitempty"`
	TimeStamp time.Time `json:"t"`
	Signature string    `json:"sig,omitempty"`
}

func (s *loginSession) encode() string {
	b, _ := json.Marshal(s)
	return base64.RawURLEncoding.EncodeToString(b)
}

// sign computes an HMAC over the session with the signature field blanked.
func (s *loginSession) sign(key []byte) string {
	unsigned := *s
	unsigned.Signature = ""
	h := hmac.New(sha256.New, key)
	h.Write([]byte(unsigned.encode()))
	return hex.EncodeToString(h.Sum(nil))
}

func newLoginSession(provider, state, verifier string, key []byte) *loginSession {
	s := &loginSession{
		Provider:  provider,
		State:     state,
		Verifier:  verifier,
		TimeStamp: time.Now(),
	}
	s.Signature = s.sign(key)
	return s
}

func parseLoginSession(raw string, provider string, key []byte) (*loginSession, error) {
	if raw == "" {
		return nil, errors.WrapPrefix(ErrStateMismatch, "no pending login session", 0)
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, errors.WrapPrefix(ErrStateMismatch, "session cookie is not base64", 0)
	}
	var s loginSession
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, errors.WrapPrefix(ErrStateMismatch, "session cookie decode failed", 0)
	}
	if s.Provider != provider {
		return nil, errors.WrapPrefix(ErrStateMismatch, "session cookie is for another provider", 0)
	}
	if s.TimeStamp.Add(stateTTL).Before(time.Now()) {
		return nil, errors.WrapPrefix(ErrStateMismatch, "login session expired", 0)
	}

	actual, err := hex.DecodeString(s.Signature)
	if err != nil {
		return nil, errors.WrapPrefix(ErrStateMismatch, "session cookie has a malformed signature", 0)
	}
	expected, err := hex.DecodeString(s.sign(key))
	if err != nil {
		return nil, errors.WrapPrefix(ErrStateMismatch, "session cookie signing failed", 0)
	}
	if !hmac.Equal(actual, expected) {
		return nil, errors.WrapPrefix(ErrStateMismatch, "session cookie has an invalid signature", 0)
	}
	return &s, nil
}

func stateCookieName(provider string) string {
	return stateCookiePrefix + provider
}

func writeStateCookie(w http.ResponseWriter, s *loginSession, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:  stateCookieName(s.Provider),
		Value: s.encode(),
		Path:  "/",
		// Lax survives the provider's top-level redirect back to the
		// callback while staying invisible to embedded cross-site requests.
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
		HttpOnly: true,
		MaxAge:   int(stateTTL.Seconds()),
	})
}

func clearStateCookie(w http.ResponseWriter, provider string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName(provider),
		Value:    "",
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func readStateCookie(r *http.Request, provider string, key []byte) (*loginSession, error) {
	c, err := r.Cookie(stateCookieName(provider))
	if err != nil {
		return nil, errors.WrapPrefix(ErrStateMismatch, "no pending login session", 0)
	}
	return parseLoginSession(c.Value, provider, key)
}
