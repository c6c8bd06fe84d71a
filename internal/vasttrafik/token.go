package vasttrafik

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

	"github.com/cenkalti/backoff/v4"
	"github.com/departureboard/internal/common/config"
	"github.com/departureboard/internal/common/logger"
	"github.com/departureboard/internal/departures"
)

// tokens are refreshed this long before the server says they expire
const expirySkew = 10 * time.Second

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// TokenSource hands out OAuth2 client-credentials tokens and refreshes them
// when they are about to expire. Concurrent callers share one refresh.
type TokenSource struct {
	config     config.VasttrafikConfig
	httpClient *http.Client
	logger     logger.Logger
	now        func() time.Time
	newBackOff func() backoff.BackOff

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenSource(cfg config.VasttrafikConfig, httpClient *http.Client, log logger.Logger) *TokenSource {
	if log == nil {
		log = logger.Nop()
	}
	// zero would mean retrying forever
	maxElapsed := cfg.TokenMaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = config.DefaultTokenMaxElapsed
	}

	return &TokenSource{
		config:     cfg,
		httpClient: httpClient,
		logger:     log,
		now:        time.Now,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxElapsedTime = maxElapsed
			return b
		},
	}
}

// Token returns a valid access token, fetching a new one if needed.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && ts.now().Before(ts.expiresAt.Add(-expirySkew)) {
		return ts.token, nil
	}

	notify := func(err error, wait time.Duration) {
		ts.logger.Warn("Token request failed, retrying", "error", err, "retry_in", wait)
	}

	resp, err := backoff.RetryNotifyWithData(func() (*tokenResponse, error) {
		return ts.requestToken(ctx)
	}, backoff.WithContext(ts.newBackOff(), ctx), notify)
	if err != nil {
		return "", fmt.Errorf("obtaining access token: %w", err)
	}

	ts.token = resp.AccessToken
	ts.expiresAt = ts.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	ts.logger.Debug("Access token refreshed", "expires_at", ts.expiresAt)

	return ts.token, nil
}

// Invalidate drops the cached token so the next call fetches a new one.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.token = ""
	ts.expiresAt = time.Time{}
}

func (ts *TokenSource) requestToken(ctx context.Context) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	if ts.config.Scope != "" {
		form.Set("scope", ts.config.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating token request: %w", err))
	}
	req.SetBasicAuth(ts.config.ClientID, ts.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, backoff.Permanent(fmt.Errorf("token endpoint returned %d %s: %w",
			resp.StatusCode, strings.TrimSpace(string(body)), departures.ErrAuthenticationFailed))
	default:
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}

	return &token, nil
}
