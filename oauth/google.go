package oauth

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/authgate/authgate/errors"
	"github.com/authgate/authgate/logging"
)

// GoogleIssuer is the OIDC issuer for Google accounts; discovery resolves
// the endpoints from {issuer}/.well-known/openid-configuration.
const GoogleIssuer = "https://accounts.google.com"

// Google authenticates users through Google's OpenID Connect flow with
// discovery and PKCE. The identity comes from the verified ID token, with
// the userinfo endpoint as a fallback.
type Google struct {
	conf     *oauth2.Config
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewGoogle performs OIDC discovery and returns a Google provider. The
// redirectURL must match an authorized redirect URI on the OAuth client.
func NewGoogle(ctx context.Context, clientID, clientSecret, redirectURL string) (*Google, error) {
	return newGoogleWithIssuer(ctx, GoogleIssuer, clientID, clientSecret, redirectURL)
}

func newGoogleWithIssuer(ctx context.Context, issuer, clientID, clientSecret, redirectURL string) (*Google, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrap(err, 0).WithCode(errors.Unavailable).Append("google: OIDC discovery failed")
	}
	return &Google{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  redirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (g *Google) Name() string { return "google" }

func (g *Google) UsesPKCE() bool { return true }

func (g *Google) AuthCodeURL(_ context.Context, state, codeVerifier string) (string, error) {
	return g.conf.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
		oauth2.S256ChallengeOption(codeVerifier),
	), nil
}

func (g *Google) Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	tok, err := g.conf.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, errors.WrapPrefix(ErrExchangeFailed, "google", 0).
			WithPublicMessage("Google sign-in failed, please try again")
	}
	return tok, nil
}

func (g *Google) Identity(ctx context.Context, tok *oauth2.Token) (Identity, error) {
	if raw, ok := tok.Extra("id_token").(string); ok && raw != "" {
		return g.identityFromIDToken(ctx, raw)
	}
	logging.Warn(ctx, "google: token response had no id_token, falling back to userinfo")
	return g.identityFromUserInfo(ctx, tok)
}

func (g *Google) identityFromIDToken(ctx context.Context, raw string) (Identity, error) {
	idt, err := g.verifier.Verify(ctx, raw)
	if err != nil {
		return Identity{}, errors.Wrap(err, 0).WithCode(errors.Unauthenticated).Append("google: id token verification failed")
	}
	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idt.Claims(&claims); err != nil {
		return Identity{}, errors.Wrap(err, 0).WithCode(errors.Internal).Append("google: decoding id token claims")
	}
	return Identity{
		Subject:       claims.Sub,
		Email:         claims.Email,
		Name:          claims.Name,
		EmailVerified: claims.EmailVerified,
	}, nil
}

func (g *Google) identityFromUserInfo(ctx context.Context, tok *oauth2.Token) (Identity, error) {
	info, err := g.provider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return Identity{}, errors.Wrap(err, 0).WithCode(errors.Unavailable).Append("google: fetching userinfo")
	}
	var claims struct {
		Name string `json:"name"`
	}
	_ = info.Claims(&claims)
	return Identity{
		Subject:       info.Subject,
		Email:         info.Email,
		Name:          claims.Name,
		EmailVerified: info.EmailVerified,
	}, nil
}
