package oauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/errors"
)

var testStateKey = []byte("0123456789abcdef0123456789abcdef")

func TestLoginSession_RoundTrip(t *testing.T) {
	s := newLoginSession("google", "state-123", "verifier-456", testStateKey)

	parsed, err := parseLoginSession(s.encode(), "google", testStateKey)
	require.NoError(t, err)
	assert.Equal(t, "google", parsed.Provider)
	assert.Equal(t, "state-123", parsed.State)
	assert.Equal(t, "verifier-456", parsed.Verifier)
}

func TestLoginSession_RejectsTampering(t *testing.T) {
	s := newLoginSession("google", "state-123", "", testStateKey)
	s.State = "attacker-state"

	_, err := parseLoginSession(s.encode(), "google", testStateKey)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStateMismatch))
}

func TestLoginSession_RejectsWrongKey(t *testing.T) {
	s := newLoginSession("google", "state-123", "", []byte("some-other-signing-key"))

	_, err := parseLoginSession(s.encode(), "google", testStateKey)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStateMismatch))
}

func TestLoginSession_RejectsOtherProvider(t *testing.T) {
	s := newLoginSession("github", "state-123", "", testStateKey)

	_, err := parseLoginSession(s.encode(), "google", testStateKey)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStateMismatch))
}

func TestLoginSession_RejectsExpired(t *testing.T) {
	s := &loginSession{
		Provider:  "google",
		State:     "state-123",
		TimeStamp: time.Now().Add(-stateTTL - time.Minute),
	}
	s.Signature = s.sign(testStateKey)

	_, err := parseLoginSession(s.encode(), "google", testStateKey)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStateMismatch))
}

func TestLoginSession_RejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "!!!not-base64!!!", "bm90LWpzb24"} {
		_, err := parseLoginSession(raw, "google", testStateKey)
		assert.True(t, errors.Is(err, ErrStateMismatch), "raw=%q", raw)
	}
}

func TestStateCookie_WriteReadClear(t *testing.T) {
	s := newLoginSession("google", "state-123", "verifier-456", testStateKey)

	w := httptest.NewRecorder()
	writeStateCookie(w, s, true)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "ag-oauth-google", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	r := httptest.NewRequest(http.MethodGet, "/auth/google/callback", nil)
	r.AddCookie(cookies[0])
	parsed, err := readStateCookie(r, "google", testStateKey)
	require.NoError(t, err)
	assert.Equal(t, "state-123", parsed.State)

	w = httptest.NewRecorder()
	clearStateCookie(w, "google", true)
	cookies = w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}

func TestReadStateCookie_NoCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/auth/google/callback", nil)

	_, err := readStateCookie(r, "google", testStateKey)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStateMismatch))
}
