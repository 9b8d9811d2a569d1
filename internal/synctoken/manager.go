package synctoken

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/R3E-Network/syncengine/infrastructure/metrics"
	"github.com/R3E-Network/syncengine/infrastructure/ratelimit"
	"github.com/R3E-Network/syncengine/infrastructure/resilience"
	"github.com/R3E-Network/syncengine/internal/syncerr"
	"github.com/R3E-Network/syncengine/pkg/config"
)

// errReauthFailed marks a 401 that survived a single forced-refresh retry.
var errReauthFailed = errors.New("request unauthorized after token refresh")

// Refresher exchanges a refresh token for a new access token. Connectors
// supply one per auth method (OAuth browser, OAuth BYOC, API key rotation).
type Refresher func(ctx context.Context, current *Token) (*Token, error)

// Manager tracks token expiry per source connection, refreshes opportunistically
// within the configured skew window, and serializes concurrent refreshes for
// the same connection so parallel workers never race an OAuth provider's
// refresh endpoint (spec.md §4.7).
type Manager struct {
	cache       Cache
	cfg         config.TokenConfig
	client      *ratelimit.RateLimitedClient
	breaker     *resilience.CircuitBreaker
	retryCfg    resilience.RetryConfig
	refreshSkew time.Duration

	// Metrics is optional; when set, every refresh attempt is recorded
	// against it by outcome.
	Metrics *metrics.Metrics

	mu       sync.Mutex
	inFlight map[string]*sync.Mutex
}

// NewManager builds a token manager. httpClient is the base client the
// rate limiter wraps; pass http.DefaultClient unless a
// connector needs custom transport settings (timeouts, TLS, proxies).
func NewManager(cfg config.TokenConfig, cache Cache, httpClient *http.Client) *Manager {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	rlCfg := ratelimit.RateLimitConfig{
		RequestsPerSecond: cfg.HTTPRatePerSecond,
		Burst:             cfg.HTTPBurst,
	}

	retryCfg := resilience.DefaultRetryConfig()
	if cfg.HTTPMaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.HTTPMaxRetries
	}

	return &Manager{
		cache:       cache,
		cfg:         cfg,
		client:      ratelimit.NewRateLimitedClient(httpClient, rlCfg),
		breaker:     resilience.New(resilience.DefaultConfig()),
		retryCfg:    retryCfg,
		refreshSkew: time.Duration(cfg.RefreshSkewSeconds) * time.Second,
		inFlight:    make(map[string]*sync.Mutex),
	}
}

// GetValidToken returns a token known valid for at least the skew window,
// refreshing current via refresh if needed. Concurrent callers for the same
// connectionID block on one another rather than issuing duplicate refreshes.
func (m *Manager) GetValidToken(ctx context.Context, connectionID string, current *Token, refresh Refresher) (*Token, error) {
	if cached, ok := m.cache.Get(ctx, connectionID); ok && !cached.NeedsRefresh(m.refreshSkew, time.Now()) {
		return cached, nil
	}

	if !current.NeedsRefresh(m.refreshSkew, time.Now()) {
		return current, nil
	}

	lock := m.lockFor(connectionID)
	lock.Lock()
	defer lock.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if cached, ok := m.cache.Get(ctx, connectionID); ok && !cached.NeedsRefresh(m.refreshSkew, time.Now()) {
		return cached, nil
	}

	next, err := m.doRefresh(ctx, current, refresh)
	if err != nil {
		m.recordRefresh(connectionID, "failure")
		return nil, err
	}
	m.recordRefresh(connectionID, "success")

	ttl := time.Until(next.ExpiresAt)
	if ttl <= 0 {
		ttl = m.refreshSkew
	}
	m.cache.Set(ctx, connectionID, next, ttl)
	return next, nil
}

func (m *Manager) recordRefresh(connectionID, outcome string) {
	if m.Metrics == nil {
		return
	}
	m.Metrics.RecordTokenRefresh(connectionID, outcome)
}

func (m *Manager) lockFor(connectionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.inFlight[connectionID]
	if !ok {
		lock = &sync.Mutex{}
		m.inFlight[connectionID] = lock
	}
	return lock
}

// doRefresh runs refresh under the circuit breaker and retry-with-backoff,
// turning exhausted attempts into a permanent *syncerr.SyncError.
func (m *Manager) doRefresh(ctx context.Context, current *Token, refresh Refresher) (*Token, error) {
	var next *Token
	attempts := 0

	err := resilience.Retry(ctx, m.retryCfg, func() error {
		attempts++
		return m.breaker.Execute(ctx, func() error {
			var refreshErr error
			next, refreshErr = refresh(ctx, current)
			return refreshErr
		})
	})

	if err != nil {
		if err == resilience.ErrCircuitOpen || err == resilience.ErrTooManyRequests {
			return nil, syncerr.TransientIO("token_refresh", err)
		}
		return nil, syncerr.AuthFailed("token_refresh", err).WithDetails("attempts", attempts)
	}

	return next, nil
}

// Do executes an authenticated request, retrying exactly once with a fresh
// token after a 401 — the only automatic re-authentication spec.md §4.7
// allows, to avoid masking a genuinely revoked credential behind endless
// retries.
func (m *Manager) Do(ctx context.Context, connectionID string, current *Token, refresh Refresher, build func(tok *Token) (*http.Request, error)) (*http.Response, error) {
	tok, err := m.GetValidToken(ctx, connectionID, current, refresh)
	if err != nil {
		return nil, err
	}

	req, err := build(tok)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, syncerr.TransientIO("token_http", err)
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	forced := *tok
	forced.ExpiresAt = time.Time{} // force NeedsRefresh on the reauth attempt
	tok, err = m.GetValidToken(ctx, connectionID, &forced, refresh)
	if err != nil {
		return nil, err
	}

	req, err = build(tok)
	if err != nil {
		return nil, err
	}

	resp, err = m.client.Do(req)
	if err != nil {
		return nil, syncerr.TransientIO("token_http", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, syncerr.AuthFailed("token_http", errReauthFailed).WithDetails("status", resp.StatusCode)
	}
	return resp, nil
}
