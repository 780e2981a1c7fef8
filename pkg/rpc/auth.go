package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/workbridge/pkg/config"
)

// AuthProvider supplies authentication headers for requests to a target.
type AuthProvider interface {
	// GetHeaders returns the HTTP headers to include in requests.
	GetHeaders(ctx context.Context) (map[string]string, error)
}

// NewAuthProvider builds the provider for a target credential. Type "none"
// returns nil.
func NewAuthProvider(cfg config.AuthConfig) (AuthProvider, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "bearer":
		return &StaticKeyAuth{Headers: map[string]string{"Authorization": "Bearer " + cfg.Token}}, nil
	case "basic":
		creds := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Token))
		return &StaticKeyAuth{Headers: map[string]string{"Authorization": "Basic " + creds}}, nil
	case "jwt":
		return NewJWTAuth(cfg.Secret, cfg.Issuer, cfg.Subject, cfg.Audience, cfg.TTL), nil
	case "oauth_client_credentials":
		return NewOAuthClientCredentials(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, cfg.Scopes), nil
	default:
		return nil, fmt.Errorf("unsupported auth type %q", cfg.Type)
	}
}

// StaticKeyAuth provides authentication via static headers configured at
// initialization time.
type StaticKeyAuth struct {
	Headers map[string]string
}

// GetHeaders returns the configured static headers.
func (a *StaticKeyAuth) GetHeaders(_ context.Context) (map[string]string, error) {
	return a.Headers, nil
}

// JWTAuth signs a short-lived HS256 token and presents it as a bearer
// token. A token is reused until a quarter of its lifetime remains.
type JWTAuth struct {
	secret   []byte
	issuer   string
	subject  string
	audience string
	ttl      time.Duration

	mu      sync.Mutex
	token   string
	renewAt time.Time
	nowFunc func() time.Time
}

// NewJWTAuth creates a JWTAuth. A zero ttl defaults to five minutes.
func NewJWTAuth(secret, issuer, subject, audience string, ttl time.Duration) *JWTAuth {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &JWTAuth{
		secret:   []byte(secret),
		issuer:   issuer,
		subject:  subject,
		audience: audience,
		ttl:      ttl,
		nowFunc:  time.Now,
	}
}

// GetHeaders returns an Authorization header with a signed token.
func (a *JWTAuth) GetHeaders(_ context.Context) (map[string]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.nowFunc()
	if a.token != "" && now.Before(a.renewAt) {
		return map[string]string{"Authorization": "Bearer " + a.token}, nil
	}

	claims := jwt.RegisteredClaims{
		Issuer:    a.issuer,
		Subject:   a.subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	if a.audience != "" {
		claims.Audience = jwt.ClaimStrings{a.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("signing JWT: %w", err)
	}

	a.token = signed
	a.renewAt = now.Add(a.ttl * 3 / 4)
	return map[string]string{"Authorization": "Bearer " + signed}, nil
}

// OAuthClientCredentialsAuth obtains access tokens via the OAuth 2.0
// client_credentials grant. Tokens are cached and proactively refreshed
// when 80% of the token lifetime has elapsed. If a proactive refresh fails
// but the cached token is still valid, the cached token is used.
type OAuthClientCredentialsAuth struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	mu          sync.Mutex
	cachedToken string
	tokenExpiry time.Time
	refreshAt   time.Time
	httpClient  *http.Client
	nowFunc     func() time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// NewOAuthClientCredentials creates an OAuthClientCredentialsAuth provider.
func NewOAuthClientCredentials(tokenURL, clientID, clientSecret string, scopes []string) *OAuthClientCredentialsAuth {
	return &OAuthClientCredentialsAuth{
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       scopes,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		nowFunc:      time.Now,
	}
}

// GetHeaders returns an Authorization header with a Bearer token.
func (a *OAuthClientCredentialsAuth) GetHeaders(ctx context.Context) (map[string]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.nowFunc()
	if a.cachedToken != "" && now.Before(a.refreshAt) {
		return map[string]string{"Authorization": "Bearer " + a.cachedToken}, nil
	}

	token, expiresIn, err := a.fetchToken(ctx)
	if err != nil {
		if a.cachedToken != "" && now.Before(a.tokenExpiry) {
			return map[string]string{"Authorization": "Bearer " + a.cachedToken}, nil
		}
		return nil, fmt.Errorf("acquiring OAuth token: %w", err)
	}

	a.cachedToken = token
	a.tokenExpiry = now.Add(time.Duration(expiresIn) * time.Second)
	a.refreshAt = now.Add(time.Duration(float64(expiresIn)*0.8) * time.Second)

	return map[string]string{"Authorization": "Bearer " + a.cachedToken}, nil
}

func (a *OAuthClientCredentialsAuth) fetchToken(ctx context.Context) (string, int, error) {
	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {a.ClientID},
		"client_secret": {a.ClientSecret},
	}
	if len(a.Scopes) > 0 {
		data.Set("scope", strings.Join(a.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", 0, fmt.Errorf("parsing token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", 0, fmt.Errorf("token response missing access_token")
	}

	return tokenResp.AccessToken, tokenResp.ExpiresIn, nil
}
