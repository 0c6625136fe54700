package authgate

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/authgate/authgate/auditlog"
	"github.com/authgate/authgate/directory"
	"github.com/authgate/authgate/jwks"
	"github.com/authgate/authgate/keys"
	"github.com/authgate/authgate/oauth"
	"github.com/authgate/authgate/token"
)

// stubProvider satisfies oauth.Provider with canned responses.
type stubProvider struct {
	name     string
	identity oauth.Identity
}

func (p *stubProvider) Name() string   { return p.name }
func (p *stubProvider) UsesPKCE() bool { return false }

func (p *stubProvider) AuthCodeURL(_ context.Context, state, _ string) (string, error) {
	return "https://idp.example.com/authorize?state=" + state, nil
}

func (p *stubProvider) Exchange(_ context.Context, _, _ string) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "at"}, nil
}

func (p *stubProvider) Identity(_ context.Context, _ *oauth2.Token) (oauth.Identity, error) {
	return p.identity, nil
}

type stubDirectory struct{ user directory.User }

func (d *stubDirectory) GetUser(_ context.Context, _, _ string) (directory.User, error) {
	return d.user, nil
}

type testServer struct {
	srv       *Server
	store     *keys.Store
	authority *token.Authority
	audit     *auditlog.MemoryStore
	slots     map[int]keys.Slot
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	store := keys.NewStore()
	store.Add("key-1", priv, &priv.PublicKey, true)

	authority := token.NewAuthority(store, "https://auth.example.com", "example-services", 15*time.Minute)
	publisher := jwks.NewPublisher(store)
	audit := auditlog.NewMemoryStore()

	flow := oauth.NewFlow(oauth.FlowOptions{
		Authority:       authority,
		Directory:       &stubDirectory{user: directory.User{UserID: "user-1", OrganizationID: "org-1", Roles: []string{"member"}}},
		Audit:           audit,
		StateSigningKey: []byte("0123456789abcdef0123456789abcdef"),
	}, &stubProvider{name: "google", identity: oauth.Identity{Subject: "sub-1", Email: "ada@example.com"}})

	slots := map[int]keys.Slot{}
	srv := New("localhost", "0", Components{
		Keys:       store,
		Authority:  authority,
		Publisher:  publisher,
		Rotator:    keys.NewRotator(store, publisher),
		Flow:       flow,
		Audit:      audit,
		SuccessURL: "https://app.example.com/",
		LoginURL:   "https://app.example.com/login",
		AdminToken: "admin-secret",
		RotationSlots: func(n int) (keys.Slot, bool) {
			s, ok := slots[n]
			return s, ok
		},
	})
	return &testServer{srv: srv, store: store, authority: authority, audit: audit, slots: slots}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_LoginRedirectsToProvider(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/login/google", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "https://idp.example.com/authorize")

	var stateCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "ag-oauth-google" {
			stateCookie = c
		}
	}
	require.NotNil(t, stateCookie)
}

func TestServer_LoginUnknownProvider(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/login/myspace", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_ARGUMENT", body.Code)
}

func TestServer_CallbackSuccess(t *testing.T) {
	ts := newTestServer(t)

	// Initiate to obtain the state cookie and the state value it carries.
	w := ts.do(httptest.NewRequest(http.MethodGet, "/login/google", nil))
	require.Equal(t, http.StatusFound, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	loc := w.Header().Get("Location")
	state := loc[strings.Index(loc, "state=")+len("state="):]

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=code-1&state="+state, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = ts.do(req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://app.example.com/", w.Header().Get("Location"))

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == oauth.SessionCookieName {
			session = c
		}
	}
	require.NotNil(t, session)

	claims, err := ts.authority.Verify(context.Background(), session.Value)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestServer_CallbackStateMismatchRedirectsToLogin(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/login/google", nil))
	cookies := w.Result().Cookies()

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=code-1&state=forged", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = ts.do(req)

	assert.Equal(t, http.StatusFound, w.Code)
	loc := w.Header().Get("Location")
	assert.Contains(t, loc, "https://app.example.com/login")
	assert.Contains(t, loc, "error=")
}

func TestServer_CallbackMissingParameters(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/auth/google/callback", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_LogoutClearsCookie(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/logout", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://app.example.com/login", w.Header().Get("Location"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, oauth.SessionCookieName, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestServer_JWKS(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=86400", w.Header().Get("Cache-Control"))

	var doc struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	require.Len(t, doc.Keys, 1)
	assert.Equal(t, "key-1", doc.Keys[0]["kid"])
	assert.Equal(t, "RS256", doc.Keys[0]["alg"])
}

func TestServer_AdminRequiresToken(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/admin/keys/status", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/keys/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = ts.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func adminReq(method, path string, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer admin-secret")
	return req
}

func TestServer_AdminKeyStatus(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(adminReq(http.MethodGet, "/admin/keys/status", ""))
	assert.Equal(t, http.StatusOK, w.Code)

	var st keyStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "key-1", st.ActiveKID)
	assert.Equal(t, 1, st.KeyCount)
}

func pemPair(t *testing.T) (string, string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return string(privPEM), string(pubPEM)
}

func TestServer_AdminRotateAndPurge(t *testing.T) {
	ts := newTestServer(t)
	privPEM, pubPEM := pemPair(t)
	ts.slots[1] = keys.Slot{PrivatePEM: privPEM, PublicPEM: pubPEM, KID: "key-2"}

	w := ts.do(adminReq(http.MethodPost, "/admin/keys/rotate", ""))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rot rotateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rot))
	assert.Equal(t, "key-1", rot.PreviousActive)
	assert.Equal(t, "key-2", rot.NewActive)
	assert.Equal(t, 2, rot.TotalKeys)

	// Every configured slot is now loaded, so another rotate has nothing
	// to activate.
	w = ts.do(adminReq(http.MethodPost, "/admin/keys/rotate", ""))
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	w = ts.do(adminReq(http.MethodPost, "/admin/keys/purge", `{"kids":["key-1"]}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var pr purgeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pr))
	assert.Equal(t, []string{"key-1"}, pr.Removed)
	assert.Equal(t, []string{"key-2"}, pr.Remaining)
}

func TestServer_SecurityHeaders(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
