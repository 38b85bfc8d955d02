// Package oauth2 implements the Dropbox authorization code flow: building the
// URL the user visits and exchanging the code they paste back for a token.
package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	xoauth2 "golang.org/x/oauth2"

	"github.com/Ratio1/dropbox_sdk_go/pkg/dropbox"
)

// Endpoint is the Dropbox OAuth2 endpoint.
var Endpoint = xoauth2.Endpoint{
	AuthURL:   "https://www.dropbox.com/oauth2/authorize",
	TokenURL:  "https://api.dropboxapi.com/oauth2/token",
	AuthStyle: xoauth2.AuthStyleInParams,
}

const tokenFunction = "oauth2/token"

// Config describes a Dropbox app.
type Config struct {
	ClientID     string
	ClientSecret string
	// RedirectURL is optional. Without it Dropbox shows the code to the user.
	RedirectURL string
	// OfflineAccess requests a refresh token alongside the access token.
	OfflineAccess bool
}

func (c *Config) oauth() *xoauth2.Config {
	return &xoauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Endpoint:     Endpoint,
	}
}

// AuthorizeURL returns the URL that starts the code flow. An empty state is
// omitted.
func (c *Config) AuthorizeURL(state string) string {
	var opts []xoauth2.AuthCodeOption
	if c.OfflineAccess {
		opts = append(opts, xoauth2.SetAuthURLParam("token_access_type", "offline"))
	}
	return c.oauth().AuthCodeURL(state, opts...)
}

// TokenError is the error body of the token endpoint.
type TokenError struct {
	StatusCode  int
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *TokenError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("oauth2: %s: %s", e.Code, e.Description)
	}
	return "oauth2: " + e.Code
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	UID          string `json:"uid"`
	AccountID    string `json:"account_id"`
	TeamID       string `json:"team_id"`
}

// ExchangeCode trades an authorization code for an access token. The request
// goes through the given client's transport to the oauth2 endpoint. The
// returned token carries "uid", "account_id" and "team_id" as extras.
func (c *Config) ExchangeCode(ctx context.Context, client dropbox.NoAuth, code string) (*xoauth2.Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("oauth2: authorization code is empty")
	}
	if c.ClientID == "" {
		return nil, errors.New("oauth2: client id is required")
	}
	form := url.Values{
		"code":       {code},
		"grant_type": {"authorization_code"},
		"client_id":  {c.ClientID},
	}
	if c.ClientSecret != "" {
		form.Set("client_secret", c.ClientSecret)
	}
	if c.RedirectURL != "" {
		form.Set("redirect_uri", c.RedirectURL)
	}

	raw, err := client.Request(ctx, &dropbox.Request{
		Endpoint:   dropbox.EndpointOAuth2,
		Style:      dropbox.StyleRPC,
		Function:   tokenFunction,
		Params:     form.Encode(),
		ParamsType: dropbox.ParamsForm,
	})
	if err != nil {
		var httpErr *dropbox.UnexpectedHTTPError
		if errors.As(err, &httpErr) {
			tokenErr := &TokenError{StatusCode: httpErr.Code}
			if json.Unmarshal([]byte(httpErr.JSON), tokenErr) == nil && tokenErr.Code != "" {
				return nil, tokenErr
			}
		}
		return nil, fmt.Errorf("oauth2: token request: %w", err)
	}

	var res tokenResponse
	if err := json.Unmarshal([]byte(raw.ResultJSON), &res); err != nil {
		return nil, fmt.Errorf("oauth2: decode token response: %w", err)
	}
	if res.AccessToken == "" {
		return nil, errors.New("oauth2: token response has no access_token")
	}
	token := &xoauth2.Token{
		AccessToken:  res.AccessToken,
		TokenType:    res.TokenType,
		RefreshToken: res.RefreshToken,
	}
	if res.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(res.ExpiresIn) * time.Second)
	}
	return token.WithExtra(map[string]any{
		"uid":        res.UID,
		"account_id": res.AccountID,
		"team_id":    res.TeamID,
		"scope":      res.Scope,
	}), nil
}
