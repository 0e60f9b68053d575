package axnext

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/singleflight"
)

// TokenStatus is the lifecycle state of the current access token.
type TokenStatus int

const (
	TokenNone TokenStatus = iota
	TokenValid
	TokenExpiring
	TokenExpired
)

func (s TokenStatus) String() string {
	switch s {
	case TokenNone:
		return "NoToken"
	case TokenValid:
		return "Valid"
	case TokenExpiring:
		return "Expiring"
	case TokenExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// RefreshResult is the body returned by the refresh endpoint. ExpiresIn is
// in seconds.
type RefreshResult struct {
	Token        string  `json:"token"`
	ExpiresIn    float64 `json:"expiresIn"`
	RefreshToken string  `json:"refreshToken,omitempty"`
}

// RefreshFunc performs one credential exchange.
type RefreshFunc func(ctx context.Context, refreshToken string) (RefreshResult, error)

const refreshKey = "refresh"

// MaxTokenLifetime caps the expiresIn reported by the refresh endpoint.
const MaxTokenLifetime = 100 * 365 * 24 * time.Hour

// DefaultRefreshTimeout bounds a refresh exchange when the client timeout is
// zero.
const DefaultRefreshTimeout = 30 * time.Second

// TokenManager owns the access token of one Client. Concurrent refreshes are
// coalesced: every caller waiting on a refresh shares a single exchange.
type TokenManager struct {
	mu     sync.RWMutex
	state  *TokenState
	loaded bool

	store     TokenStore
	exchange  RefreshFunc
	threshold time.Duration
	timeout   time.Duration
	now       func() time.Time
	logger    Logger
	observer  Observer

	group     singleflight.Group
	exchanges atomic.Int64
}

// TokenManagerConfig holds the collaborators of a TokenManager.
type TokenManagerConfig struct {
	Store     TokenStore
	Exchange  RefreshFunc
	Threshold time.Duration
	Timeout   time.Duration
	Now       func() time.Time
	Logger    Logger
	Observer  Observer
}

// NewTokenManager returns a manager with no token loaded. The token store is
// read on first use.
func NewTokenManager(cfg TokenManagerConfig) *TokenManager {
	if cfg.Store == nil {
		cfg.Store = NewMemoryTokenStore("")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger()
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRefreshTimeout
	}
	return &TokenManager{
		store:     cfg.Store,
		exchange:  cfg.Exchange,
		threshold: cfg.Threshold,
		timeout:   cfg.Timeout,
		now:       cfg.Now,
		logger:    cfg.Logger,
		observer:  cfg.Observer,
	}
}

// Status reports the state of the current token.
func (m *TokenManager) Status(ctx context.Context) TokenStatus {
	m.load(ctx)
	_, status := m.snapshot()
	return status
}

// State returns the current token, if any.
func (m *TokenManager) State(ctx context.Context) (TokenState, bool) {
	m.load(ctx)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return TokenState{}, false
	}
	return *m.state, true
}

// IsExpired reports whether there is no token or it is past its expiry.
func (m *TokenManager) IsExpired(ctx context.Context) bool {
	switch m.Status(ctx) {
	case TokenNone, TokenExpired:
		return true
	default:
		return false
	}
}

// Exchanges returns how many refresh exchanges have been issued.
func (m *TokenManager) Exchanges() int64 {
	return m.exchanges.Load()
}

// GetToken returns a usable access token. Without one it waits for a
// refresh. An expiring token is returned at once while a refresh runs in
// the background.
func (m *TokenManager) GetToken(ctx context.Context) (string, error) {
	m.load(ctx)
	state, status := m.snapshot()
	switch status {
	case TokenValid:
		return state.Token, nil
	case TokenExpiring:
		m.refreshInBackground()
		return state.Token, nil
	}

	refreshed, err := m.refresh(ctx, false)
	if err != nil {
		return "", err
	}
	return refreshed.Token, nil
}

// Refresh exchanges the refresh token for a new access token, even if the
// current one is still valid. Callers arriving while an exchange is in
// flight share its outcome.
func (m *TokenManager) Refresh(ctx context.Context) (TokenState, error) {
	m.load(ctx)
	return m.refresh(ctx, true)
}

// SetToken installs a token obtained outside the refresh flow, such as at
// login, and persists it.
func (m *TokenManager) SetToken(ctx context.Context, state TokenState) error {
	m.mu.Lock()
	m.state = &state
	m.loaded = true
	m.mu.Unlock()
	return errors.Wrap(m.store.Save(ctx, state), "save token")
}

// Clear forgets the current token and the stored credentials.
func (m *TokenManager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.state = nil
	m.loaded = true
	m.mu.Unlock()
	return errors.Wrap(m.store.Clear(ctx), "clear token store")
}

func (m *TokenManager) load(ctx context.Context) {
	m.mu.RLock()
	loaded := m.loaded
	m.mu.RUnlock()
	if loaded {
		return
	}

	state, found, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("token store load failed", "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return
	}
	m.loaded = true
	if found {
		m.state = &state
	}
}

func (m *TokenManager) snapshot() (TokenState, TokenStatus) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil || m.state.Token == "" {
		return TokenState{}, TokenNone
	}
	now := m.now()
	switch {
	case !now.Before(m.state.ExpiresAt):
		return *m.state, TokenExpired
	case !now.Before(m.state.ExpiresAt.Add(-m.threshold)):
		return *m.state, TokenExpiring
	default:
		return *m.state, TokenValid
	}
}

// refresh joins or starts the shared exchange. When force is false a flight
// that finds a valid token returns it without an exchange.
func (m *TokenManager) refresh(ctx context.Context, force bool) (TokenState, error) {
	ch := m.group.DoChan(refreshKey, func() (any, error) {
		if !force {
			if state, status := m.snapshot(); status == TokenValid {
				return state, nil
			}
		}
		return m.performRefresh()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return TokenState{}, res.Err
		}
		return res.Val.(TokenState), nil
	case <-ctx.Done():
		return TokenState{}, context.Cause(ctx)
	}
}

func (m *TokenManager) refreshInBackground() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		if _, err := m.refresh(ctx, false); err != nil {
			m.logger.Warn("background token refresh failed", "error", err)
		}
	}()
}

// performRefresh runs detached from any single caller so a waiter giving up
// does not abort the exchange for the others.
func (m *TokenManager) performRefresh() (TokenState, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	start := m.now()
	state, err := m.doExchange(ctx)
	elapsed := m.now().Sub(start)
	if errors.Is(err, ErrNoRefreshToken) {
		return TokenState{}, err
	}

	if ro, ok := m.observer.(RefreshObserver); ok {
		ro.OnTokenRefresh(err == nil, elapsed)
	}
	if err != nil {
		m.logger.Warn("token refresh failed", "error", err, "duration", elapsed)
		return TokenState{}, err
	}
	m.logger.Debug("token refreshed", "expiresAt", state.ExpiresAt, "duration", elapsed)
	return state, nil
}

func (m *TokenManager) doExchange(ctx context.Context) (TokenState, error) {
	if m.exchange == nil {
		return TokenState{}, newTokenRefreshError("no refresh exchange configured", nil)
	}
	refreshToken, err := m.store.RefreshToken(ctx)
	if err != nil {
		return TokenState{}, newTokenRefreshError("read refresh token", err)
	}
	if refreshToken == "" {
		return TokenState{}, newTokenRefreshError("refresh token missing", ErrNoRefreshToken)
	}

	m.exchanges.Add(1)
	result, err := m.exchange(ctx, refreshToken)
	if err != nil {
		var ce *ClientError
		if errors.As(err, &ce) && ce.Type == ErrorTypeTokenRefresh {
			return TokenState{}, ce
		}
		return TokenState{}, newTokenRefreshError("refresh exchange failed", err)
	}
	if result.Token == "" {
		return TokenState{}, newTokenRefreshError("refresh response carried no token", nil)
	}

	state := TokenState{
		Token:     result.Token,
		ExpiresAt: m.now().Add(tokenLifetime(result.ExpiresIn)),
	}
	m.mu.Lock()
	m.state = &state
	m.loaded = true
	m.mu.Unlock()

	if err := m.store.Save(ctx, state); err != nil {
		m.logger.Warn("token store save failed", "error", err)
	}
	if result.RefreshToken != "" {
		if err := m.store.SetRefreshToken(ctx, result.RefreshToken); err != nil {
			m.logger.Warn("token store refresh token update failed", "error", err)
		}
	}
	return state, nil
}

// tokenLifetime converts expiresIn seconds to a duration in
// [0, MaxTokenLifetime]. NaN counts as already expired.
func tokenLifetime(expiresIn float64) time.Duration {
	switch {
	case !(expiresIn > 0):
		return 0
	case expiresIn >= MaxTokenLifetime.Seconds():
		return MaxTokenLifetime
	default:
		return time.Duration(expiresIn * float64(time.Second))
	}
}
