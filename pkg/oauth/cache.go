// Package oauth caches OAuth2 bearer tokens and coalesces concurrent re-authentication.
package oauth

import (
	"context"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultMargin is subtracted from a token's expiry when deciding whether it is still usable.
const DefaultMargin = 60 * time.Second

// Token is an issued bearer credential.
type Token struct {
	AccessToken      string
	TokenType        string
	ExpiresAt        time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Scope            string
}

// State is the lifecycle state of a Cache.
type State int

const (
	StateUnauthenticated State = iota
	StateValid
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	default:
		return "unauthenticated"
	}
}

// Source issues tokens through the client-credentials and refresh-token grants.
type Source interface {
	ClientCredentials(ctx context.Context) (*Token, error)
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// Revoker is implemented by sources that can revoke an issued token.
type Revoker interface {
	Revoke(ctx context.Context, token string) error
}

// Cache holds one token per credential set. Concurrent callers that find the cache empty
// or expired share a single in-flight grant.
type Cache struct {
	source Source
	margin time.Duration
	now    func() time.Time
	logger *otelzap.Logger

	mu    sync.Mutex
	token *Token

	flight singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithMargin overrides DefaultMargin.
func WithMargin(d time.Duration) Option {
	return func(c *Cache) { c.margin = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a token cache backed by source.
func NewCache(source Source, logger *otelzap.Logger, opts ...Option) *Cache {
	c := &Cache{
		source: source,
		margin: DefaultMargin,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a usable access token, refreshing or re-authenticating when needed.
func (c *Cache) Token(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	// The grant runs detached from the first caller so that one caller's
	// cancellation does not fail every waiter. Sources carry their own timeout.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan("token", func() (interface{}, error) {
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		return c.acquire(flightCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// State reports the current lifecycle state.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Invalidate marks the cached access token as expired. A refresh token, if any, is kept.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != nil {
		c.token.ExpiresAt = time.Time{}
	}
}

// Revoke revokes the cached access token at the source, if supported, and clears the cache.
func (c *Cache) Revoke(ctx context.Context) error {
	c.mu.Lock()
	tok := c.token
	c.token = nil
	c.mu.Unlock()

	if tok == nil {
		return nil
	}
	r, ok := c.source.(Revoker)
	if !ok {
		return nil
	}
	return r.Revoke(ctx, tok.AccessToken)
}

func (c *Cache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stateLocked() == StateValid {
		return c.token.AccessToken, true
	}
	return "", false
}

func (c *Cache) stateLocked() State {
	if c.token == nil {
		return StateUnauthenticated
	}
	if c.now().Before(c.token.ExpiresAt.Add(-c.margin)) {
		return StateValid
	}
	return StateExpired
}

func (c *Cache) acquire(ctx context.Context) (string, error) {
	c.mu.Lock()
	var refreshToken string
	if c.token != nil && c.token.RefreshToken != "" && c.now().Before(c.token.RefreshExpiresAt) {
		refreshToken = c.token.RefreshToken
	}
	c.mu.Unlock()

	if refreshToken != "" {
		tok, err := c.source.Refresh(ctx, refreshToken)
		if err == nil {
			c.store(tok)
			c.logger.Debug("OAuth token refreshed", zap.Time("expires_at", tok.ExpiresAt))
			return tok.AccessToken, nil
		}
		c.logger.Warn("OAuth token refresh failed, requesting new token", zap.Error(err))
	}

	tok, err := c.source.ClientCredentials(ctx)
	if err != nil {
		c.logger.Error("OAuth token request failed", zap.Error(err))
		return "", err
	}
	c.store(tok)
	c.logger.Info("OAuth token issued",
		zap.Time("expires_at", tok.ExpiresAt),
		zap.String("scope", tok.Scope),
	)
	return tok.AccessToken, nil
}

func (c *Cache) store(tok *Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = tok
}
