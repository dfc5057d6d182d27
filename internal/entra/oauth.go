package entra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	authorizeFormat = "https://login.microsoftonline.com/%s/oauth2/v2.0/authorize"
	tokenFormat     = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"

	oauthScopes = "openid profile email"
)

// OAuth drives the authorization-code flow against the tenant's v2.0
// endpoints. The id_token it obtains is never trusted raw: callers hand it
// to the Verifier before any identity resolution happens.
type OAuth struct {
	cfg    Config
	client *http.Client
}

// NewOAuth builds the code-exchange client.
func NewOAuth(cfg Config, opts ...OAuthOption) (*OAuth, error) {
	if strings.TrimSpace(cfg.TenantID) == "" || strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("entra: tenant id and client id are required")
	}
	if strings.TrimSpace(cfg.RedirectURI) == "" {
		return nil, errors.New("entra: redirect uri is required")
	}
	o := &OAuth{
		cfg:    cfg,
		client: &http.Client{Timeout: defaultFetchTimeout},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// OAuthOption configures the OAuth client.
type OAuthOption func(*OAuth)

// WithOAuthHTTPClient overrides the exchange client (useful for tests).
func WithOAuthHTTPClient(client *http.Client) OAuthOption {
	return func(o *OAuth) {
		if client != nil {
			o.client = client
		}
	}
}

// LoginURL builds the authorize URL the frontend redirects the browser to.
func (o *OAuth) LoginURL(state string) string {
	q := url.Values{}
	q.Set("client_id", o.cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("response_mode", "query")
	q.Set("redirect_uri", o.cfg.RedirectURI)
	q.Set("scope", oauthScopes)
	if state != "" {
		q.Set("state", state)
	}
	return fmt.Sprintf(authorizeFormat, o.cfg.TenantID) + "?" + q.Encode()
}

type tokenResponse struct {
	IDToken          string `json:"id_token"`
	AccessToken      string `json:"access_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ExchangeCode redeems an authorization code for the tenant's id_token.
func (o *OAuth) ExchangeCode(ctx context.Context, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", errors.New("entra: authorization code is required")
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", o.cfg.ClientID)
	form.Set("client_secret", o.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", o.cfg.RedirectURI)
	form.Set("scope", oauthScopes)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf(tokenFormat, o.cfg.TenantID), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("entra: code exchange: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("entra: code exchange: %w", err)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("entra: decode token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || tok.Error != "" {
		return "", fmt.Errorf("entra: code exchange rejected: %s", tok.Error)
	}
	if tok.IDToken == "" {
		return "", errors.New("entra: token response carries no id_token")
	}
	return tok.IDToken, nil
}
