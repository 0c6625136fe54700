package oauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeOIDC is a minimal OpenID Connect issuer: discovery, JWKS, and a
// signing key for minting ID tokens.
type fakeOIDC struct {
	srv  *httptest.Server
	priv *rsa.PrivateKey
}

func newFakeOIDC(t *testing.T) *fakeOIDC {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeOIDC{priv: priv}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"issuer": %q,
			"authorization_endpoint": %q,
			"token_endpoint": %q,
			"jwks_uri": %q,
			"userinfo_endpoint": %q,
			"id_token_signing_alg_values_supported": ["RS256"]
		}`, f.srv.URL, f.srv.URL+"/authorize", f.srv.URL+"/token", f.srv.URL+"/jwks", f.srv.URL+"/userinfo")
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &priv.PublicKey,
			KeyID:     "test-key",
			Use:       "sig",
			Algorithm: "RS256",
		}}})
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOIDC) mintIDToken(t *testing.T, clientID string, claims jwt.MapClaims) string {
	t.Helper()
	claims["iss"] = f.srv.URL
	claims["aud"] = clientID
	claims["exp"] = time.Now().Add(time.Hour).Unix()
	claims["iat"] = time.Now().Unix()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "test-key"
	raw, err := tok.SignedString(f.priv)
	require.NoError(t, err)
	return raw
}

func newTestGoogle(t *testing.T, f *fakeOIDC) *Google {
	t.Helper()
	g, err := newGoogleWithIssuer(context.Background(), f.srv.URL,
		"client-id", "client-secret", "https://auth.example.com/auth/google/callback")
	require.NoError(t, err)
	return g
}

func TestGoogle_AuthCodeURLCarriesPKCEChallenge(t *testing.T) {
	g := newTestGoogle(t, newFakeOIDC(t))

	verifier := oauth2.GenerateVerifier()
	u, err := g.AuthCodeURL(context.Background(), "state-1", verifier)
	require.NoError(t, err)

	assert.Contains(t, u, "state=state-1")
	assert.Contains(t, u, "code_challenge=")
	assert.Contains(t, u, "code_challenge_method=S256")
	assert.Contains(t, u, "prompt=select_account")
	assert.Contains(t, u, "scope=openid+profile+email")
}

func TestGoogle_IdentityFromIDToken(t *testing.T) {
	f := newFakeOIDC(t)
	g := newTestGoogle(t, f)

	raw := f.mintIDToken(t, "client-id", jwt.MapClaims{
		"sub":            "google-sub-1",
		"email":          "ada@example.com",
		"email_verified": true,
		"name":           "Ada Lovelace",
	})
	tok := (&oauth2.Token{AccessToken: "at"}).WithExtra(map[string]interface{}{"id_token": raw})

	ident, err := g.Identity(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "google-sub-1", ident.Subject)
	assert.Equal(t, "ada@example.com", ident.Email)
	assert.Equal(t, "Ada Lovelace", ident.Name)
	assert.True(t, ident.EmailVerified)
}

func TestGoogle_IdentityRejectsWrongAudience(t *testing.T) {
	f := newFakeOIDC(t)
	g := newTestGoogle(t, f)

	raw := f.mintIDToken(t, "some-other-client", jwt.MapClaims{
		"sub":   "google-sub-1",
		"email": "ada@example.com",
	})
	tok := (&oauth2.Token{AccessToken: "at"}).WithExtra(map[string]interface{}{"id_token": raw})

	_, err := g.Identity(context.Background(), tok)
	require.Error(t, err)
}

func TestGoogle_IdentityRejectsForgedIDToken(t *testing.T) {
	f := newFakeOIDC(t)
	g := newTestGoogle(t, f)

	// Signed by a key the issuer never published.
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	claims := jwt.MapClaims{
		"iss": f.srv.URL, "aud": "client-id",
		"exp": time.Now().Add(time.Hour).Unix(),
		"sub": "google-sub-1",
	}
	forged := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	forged.Header["kid"] = "test-key"
	raw, err := forged.SignedString(other)
	require.NoError(t, err)

	tok := (&oauth2.Token{AccessToken: "at"}).WithExtra(map[string]interface{}{"id_token": raw})
	_, err = g.Identity(context.Background(), tok)
	require.Error(t, err)
}

func TestGoogle_DiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	_, err := newGoogleWithIssuer(context.Background(), srv.URL,
		"client-id", "client-secret", "https://auth.example.com/auth/google/callback")
	require.Error(t, err)
}
