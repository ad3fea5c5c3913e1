package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultGigaChatAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	DefaultGigaChatScope   = "GIGACHAT_API_PERS"

	// tokenRefreshMargin renews a cached token this long before it expires.
	tokenRefreshMargin = time.Minute
	// defaultTokenTTL applies when the auth server reports no expiry.
	defaultTokenTTL = 25 * time.Minute
)

// HTTPDoer allows tests to fake HTTP transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource yields the bearer token for chat completion requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed API key, as used by OpenAI-compatible endpoints.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(t)) == "" {
		return "", ErrNoCredentials
	}
	return string(t), nil
}

// GigaChatAuth exchanges Basic credentials for a short-lived access token
// and caches it until shortly before expiry.
type GigaChatAuth struct {
	authURL     string
	credentials string
	scope       string
	httpClient  HTTPDoer
	now         func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewGigaChatAuth(authURL, credentials, scope string, httpClient HTTPDoer) *GigaChatAuth {
	if strings.TrimSpace(authURL) == "" {
		authURL = DefaultGigaChatAuthURL
	}
	if strings.TrimSpace(scope) == "" {
		scope = DefaultGigaChatScope
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &GigaChatAuth{
		authURL:     authURL,
		credentials: strings.TrimSpace(credentials),
		scope:       scope,
		httpClient:  httpClient,
		now:         time.Now,
	}
}

type oauthResponse struct {
	AccessToken string `json:"access_token"`
	// ExpiresAt is a unix timestamp in milliseconds.
	ExpiresAt int64 `json:"expires_at"`
	ExpiresIn int64 `json:"expires_in"`
}

func (a *GigaChatAuth) Token(ctx context.Context) (string, error) {
	if a.credentials == "" {
		return "", ErrNoCredentials
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if a.token != "" && now.Add(tokenRefreshMargin).Before(a.expiresAt) {
		return a.token, nil
	}

	form := url.Values{"scope": {a.scope}}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, a.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build oauth request: %w", err)
	}
	request.Header.Set("Authorization", "Basic "+a.credentials)
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("RqUID", uuid.NewString())

	response, err := a.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("oauth request failed: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("read oauth response: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oauth status %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed oauthResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode oauth response: %w", err)
	}
	if strings.TrimSpace(parsed.AccessToken) == "" {
		return "", fmt.Errorf("oauth response has no access_token")
	}

	a.token = parsed.AccessToken
	switch {
	case parsed.ExpiresAt > 0:
		a.expiresAt = time.UnixMilli(parsed.ExpiresAt)
	case parsed.ExpiresIn > 0:
		a.expiresAt = now.Add(time.Duration(parsed.ExpiresIn) * time.Second)
	default:
		a.expiresAt = now.Add(defaultTokenTTL)
	}
	return a.token, nil
}
