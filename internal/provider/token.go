package provider

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

	"github.com/rs/zerolog/log"
)

// TokenSource yields short-lived bearer credentials for upstream calls.
// Implementations must be safe for concurrent use.
type TokenSource interface {
	Token(ctx context.Context, scope string) (string, error)
}

// TokenConfig configures the client-credentials token client.
type TokenConfig struct {
	AuthURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// expirySkew is subtracted from the reported lifetime so a token is never
// used within a minute of expiring.
const expirySkew = time.Minute

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// ClientCredentialsSource acquires tokens from the trust-token service via
// the OAuth2 client-credentials grant and caches them per scope until close
// to expiry.
type ClientCredentialsSource struct {
	cfg    TokenConfig
	client *http.Client

	mu    sync.Mutex
	cache map[string]cachedToken

	now func() time.Time
}

// NewClientCredentialsSource constructs a token source for the given trust
// service settings.
func NewClientCredentialsSource(cfg TokenConfig) *ClientCredentialsSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClientCredentialsSource{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		cache:  make(map[string]cachedToken),
		now:    time.Now,
	}
}

// Token returns a valid access token for scope, fetching a fresh one when
// the cached token is missing or about to expire.
func (s *ClientCredentialsSource) Token(ctx context.Context, scope string) (string, error) {
	s.mu.Lock()
	if tok, ok := s.cache[scope]; ok && s.now().Before(tok.expiresAt) {
		s.mu.Unlock()
		return tok.value, nil
	}
	s.mu.Unlock()

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {s.cfg.ClientID},
		"client_secret": {s.cfg.ClientSecret},
		"scope":         {scope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("token endpoint status %d", resp.StatusCode)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("token response carried no access_token")
	}

	ttl := time.Duration(parsed.ExpiresIn) * time.Second
	if ttl <= expirySkew {
		ttl = expirySkew + time.Second
	}

	s.mu.Lock()
	s.cache[scope] = cachedToken{
		value:     parsed.AccessToken,
		expiresAt: s.now().Add(ttl - expirySkew),
	}
	s.mu.Unlock()

	log.Debug().Str("scope", scope).Msg("acquired upstream token")
	return parsed.AccessToken, nil
}

// StaticTokenSource returns the same token for every scope. Used in tests
// and when the trust service is bypassed.
type StaticTokenSource string

// Token implements TokenSource.
func (s StaticTokenSource) Token(context.Context, string) (string, error) {
	return string(s), nil
}
