package axnext

import (
	"context"
	"sync"
	"time"
)

// TokenState is the current bearer credential.
type TokenState struct {
	Token     string    `msgpack:"t"`
	ExpiresAt time.Time `msgpack:"e"`
}

// Usable reports whether the token is present and not expired at now.
func (s TokenState) Usable(now time.Time) bool {
	return s.Token != "" && now.Before(s.ExpiresAt)
}

// TokenStore persists credentials across client instances or processes.
type TokenStore interface {
	// Load returns the stored access token, if any.
	Load(ctx context.Context) (TokenState, bool, error)
	// Save stores the access token.
	Save(ctx context.Context, state TokenState) error
	// RefreshToken returns the credential sent to the refresh endpoint.
	RefreshToken(ctx context.Context) (string, error)
	// SetRefreshToken replaces the refresh credential.
	SetRefreshToken(ctx context.Context, refreshToken string) error
	// Clear forgets both credentials.
	Clear(ctx context.Context) error
}

// MemoryTokenStore keeps credentials in process memory.
type MemoryTokenStore struct {
	mu           sync.RWMutex
	state        *TokenState
	refreshToken string
}

var _ TokenStore = (*MemoryTokenStore)(nil)

// NewMemoryTokenStore returns a store seeded with refreshToken.
func NewMemoryTokenStore(refreshToken string) *MemoryTokenStore {
	return &MemoryTokenStore{refreshToken: refreshToken}
}

func (s *MemoryTokenStore) Load(_ context.Context) (TokenState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return TokenState{}, false, nil
	}
	return *s.state, true, nil
}

func (s *MemoryTokenStore) Save(_ context.Context, state TokenState) error {
	s.mu.Lock()
	s.state = &state
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) RefreshToken(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken, nil
}

func (s *MemoryTokenStore) SetRefreshToken(_ context.Context, refreshToken string) error {
	s.mu.Lock()
	s.refreshToken = refreshToken
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.state = nil
	s.refreshToken = ""
	s.mu.Unlock()
	return nil
}
