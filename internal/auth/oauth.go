// Package auth runs the Auth0 login flow and keeps the result in a signed
// session cookie.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// Provider is the OpenID Connect identity provider.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	UserInfo(ctx context.Context, tok *oauth2.Token) (map[string]any, error)
	LogoutURL(returnTo string) string
}

type Auth0 struct {
	baseURL  string
	clientID string
	config   *oauth2.Config
}

// NewAuth0 accepts a bare tenant domain or a full base URL.
func NewAuth0(domain, clientID, clientSecret, callbackURL string) *Auth0 {
	base := strings.TrimRight(domain, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return &Auth0{
		baseURL:  base,
		clientID: clientID,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/authorize",
				TokenURL: base + "/oauth/token",
			},
		},
	}
}

func (a *Auth0) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state)
}

func (a *Auth0) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return tok, nil
}

func (a *Auth0) UserInfo(ctx context.Context, tok *oauth2.Token) (map[string]any, error) {
	resp, err := a.config.Client(ctx, tok).Get(a.baseURL + "/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("userinfo: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	return info, nil
}

func (a *Auth0) LogoutURL(returnTo string) string {
	q := url.Values{}
	q.Set("returnTo", returnTo)
	q.Set("client_id", a.clientID)
	return a.baseURL + "/v2/logout?" + q.Encode()
}
