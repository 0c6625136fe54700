package oauth

import (
	"context"
	"encoding/json"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"

	"github.com/authgate/authgate/errors"
)

const defaultLinkedInUserInfo = "https://api.linkedin.com/v2/userinfo"

// LinkedIn authenticates users through LinkedIn's OAuth2 authorization-code
// flow, using the OpenID-Connect userinfo endpoint for identity.
type LinkedIn struct {
	conf        *oauth2.Config
	userInfoURL string
}

// NewLinkedIn returns a LinkedIn provider for the given OAuth app.
func NewLinkedIn(clientID, clientSecret, redirectURL string) *LinkedIn {
	return &LinkedIn{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     linkedin.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email"},
		},
		userInfoURL: defaultLinkedInUserInfo,
	}
}

func (l *LinkedIn) Name() string { return "linkedin" }

func (l *LinkedIn) UsesPKCE() bool { return false }

func (l *LinkedIn) AuthCodeURL(_ context.Context, state, _ string) (string, error) {
	return l.conf.AuthCodeURL(state), nil
}

func (l *LinkedIn) Exchange(ctx context.Context, code, _ string) (*oauth2.Token, error) {
	tok, err := l.conf.Exchange(ctx, code)
	if err != nil {
		return nil, errors.WrapPrefix(ErrExchangeFailed, "linkedin", 0).
			WithPublicMessage("LinkedIn sign-in failed, please try again")
	}
	return tok, nil
}

func (l *LinkedIn) Identity(ctx context.Context, tok *oauth2.Token) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.userInfoURL, nil)
	if err != nil {
		return Identity{}, errors.Wrap(err, 0).WithCode(errors.Internal)
	}
	resp, err := l.conf.Client(ctx, tok).Do(req)
	if err != nil {
		return Identity{}, errors.Wrap(err, 0).WithCode(errors.Unavailable).Append("linkedin: fetching userinfo")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Identity{}, errors.Codef(errors.Unavailable, "linkedin: userinfo returned status %d", resp.StatusCode)
	}

	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return Identity{}, errors.Wrap(err, 0).WithCode(errors.Internal).Append("linkedin: decoding userinfo")
	}
	return Identity{
		Subject:       claims.Sub,
		Email:         claims.Email,
		Name:          claims.Name,
		EmailVerified: claims.EmailVerified,
	}, nil
}
