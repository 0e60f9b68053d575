package axnext

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenManager(store TokenStore, clock *fakeClock, exchange RefreshFunc) *TokenManager {
	return NewTokenManager(TokenManagerConfig{
		Store:     store,
		Exchange:  exchange,
		Threshold: 5 * time.Minute,
		Timeout:   time.Second,
		Now:       clock.Now,
	})
}

func TestTokenStatusTransitions(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryTokenStore("r")
	m := newTestTokenManager(store, clock, nil)
	ctx := context.Background()

	assert.Equal(t, TokenNone, m.Status(ctx))
	assert.True(t, m.IsExpired(ctx))

	require.NoError(t, m.SetToken(ctx, TokenState{Token: "T1", ExpiresAt: clock.Now().Add(time.Hour)}))
	assert.Equal(t, TokenValid, m.Status(ctx))
	assert.False(t, m.IsExpired(ctx))

	clock.Advance(56 * time.Minute)
	assert.Equal(t, TokenExpiring, m.Status(ctx))
	assert.False(t, m.IsExpired(ctx))

	clock.Advance(4 * time.Minute)
	assert.Equal(t, TokenExpired, m.Status(ctx))
	assert.True(t, m.IsExpired(ctx), "now >= expiresAt is expired")

	state, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "T1", state.Token, "SetToken persists to the store")
}

func TestGetTokenCoalescesConcurrentRefreshes(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	m := newTestTokenManager(NewMemoryTokenStore("r"), clock, func(ctx context.Context, refreshToken string) (RefreshResult, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return RefreshResult{Token: "T1", ExpiresIn: 3600}, nil
	})

	const callers = 25
	var wg sync.WaitGroup
	start := make(chan struct{})
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tokens[i], errs[i] = m.GetToken(context.Background())
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "exactly one refresh exchange")
	assert.Equal(t, int64(1), m.Exchanges())
	for i := range tokens {
		require.NoError(t, errs[i])
		assert.Equal(t, "T1", tokens[i])
	}
}

func TestRefreshComputesExpiryAndPersists(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryTokenStore("r1")
	var gotRefreshToken string
	m := newTestTokenManager(store, clock, func(ctx context.Context, refreshToken string) (RefreshResult, error) {
		gotRefreshToken = refreshToken
		return RefreshResult{Token: "T2", ExpiresIn: 3600, RefreshToken: "r2"}, nil
	})
	ctx := context.Background()

	state, err := m.Refresh(ctx)
	require.NoError(t, err)

	assert.Equal(t, "r1", gotRefreshToken)
	assert.Equal(t, "T2", state.Token)
	assert.True(t, state.ExpiresAt.Equal(clock.Now().Add(time.Hour)))

	stored, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state, stored)

	rotated, err := store.RefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r2", rotated, "refresh token is rotated")
}

func TestRefreshFailureLeavesStateUnchanged(t *testing.T) {
	clock := newFakeClock()
	m := newTestTokenManager(NewMemoryTokenStore("r"), clock, func(ctx context.Context, refreshToken string) (RefreshResult, error) {
		return RefreshResult{}, errors.New("refresh endpoint down")
	})
	ctx := context.Background()
	previous := TokenState{Token: "OLD", ExpiresAt: clock.Now().Add(-time.Minute)}
	require.NoError(t, m.SetToken(ctx, previous))

	_, err := m.GetToken(ctx)
	require.Error(t, err)
	assert.True(t, IsTokenRefresh(err), "expected TokenRefreshError, got %v", err)

	state, ok := m.State(ctx)
	require.True(t, ok)
	assert.Equal(t, previous, state)
}

func TestRefreshRejectsEmptyToken(t *testing.T) {
	m := newTestTokenManager(NewMemoryTokenStore("r"), newFakeClock(), func(ctx context.Context, refreshToken string) (RefreshResult, error) {
		return RefreshResult{ExpiresIn: 60}, nil
	})

	_, err := m.Refresh(context.Background())
	assert.True(t, IsTokenRefresh(err))
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	var calls atomic.Int32
	m := newTestTokenManager(NewMemoryTokenStore(""), newFakeClock(), func(ctx context.Context, refreshToken string) (RefreshResult, error) {
		calls.Add(1)
		return RefreshResult{Token: "T", ExpiresIn: 60}, nil
	})

	_, err := m.GetToken(context.Background())
	assert.True(t, errors.Is(err, ErrNoRefreshToken))
	assert.True(t, IsTokenRefresh(err))
	assert.Equal(t, int32(0), calls.Load(), "no exchange without a refresh token")
}

func TestGetTokenExpiringRefreshesInBackground(t *testing.T) {
	clock := newFakeClock()
	release := make(chan struct{})
	m := newTestTokenManager(NewMemoryTokenStore("r"), clock, func(ctx context.Context, refreshToken string) (RefreshResult, error) {
		<-release
		return RefreshResult{Token: "NEW", ExpiresIn: 3600}, nil
	})
	ctx := context.Background()
	require.NoError(t, m.SetToken(ctx, TokenState{Token: "OLD", ExpiresAt: clock.Now().Add(time.Minute)}))

	token, err := m.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OLD", token, "an expiring token is returned without waiting")

	close(release)
	require.Eventually(t, func() bool {
		state, _ := m.State(ctx)
		return state.Token == "NEW"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), m.Exchanges())
}

func TestRefreshWaiterCanGiveUp(t *testing.T) {
	release := make(chan struct{})
	m := newTestTokenManager(NewMemoryTokenStore("r"), newFakeClock(), func(ctx context.Context, refreshToken string) (RefreshResult, error) {
		<-release
		return RefreshResult{Token: "T", ExpiresIn: 3600}, nil
	})

	patient := make(chan error, 1)
	go func() {
		_, err := m.GetToken(context.Background())
		patient <- err
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.GetToken(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	select {
	case err := <-patient:
		assert.NoError(t, err, "other waiters still receive the shared outcome")
	case <-time.After(time.Second):
		t.Fatal("patient waiter never completed")
	}
}

func TestTokenManagerLoadsFromStore(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryTokenStore("r")
	require.NoError(t, store.Save(context.Background(), TokenState{Token: "STORED", ExpiresAt: clock.Now().Add(time.Hour)}))

	m := newTestTokenManager(store, clock, nil)
	token, err := m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "STORED", token)
}

func TestTokenManagerClear(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryTokenStore("r")
	m := newTestTokenManager(store, clock, nil)
	ctx := context.Background()
	require.NoError(t, m.SetToken(ctx, TokenState{Token: "T", ExpiresAt: clock.Now().Add(time.Hour)}))

	require.NoError(t, m.Clear(ctx))
	assert.Equal(t, TokenNone, m.Status(ctx))
	refresh, _ := store.RefreshToken(ctx)
	assert.Empty(t, refresh)
}

func TestRedisTokenStore(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisTokenStore(client, "axnext:token")
	ctx := context.Background()

	_, found, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	refresh, err := store.RefreshToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, refresh)

	expires := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	require.NoError(t, store.Save(ctx, TokenState{Token: "T", ExpiresAt: expires}))
	require.NoError(t, store.SetRefreshToken(ctx, "r"))

	state, found, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "T", state.Token)
	assert.True(t, state.ExpiresAt.Equal(expires))

	refresh, err = store.RefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r", refresh)

	require.NoError(t, store.Clear(ctx))
	_, found, err = store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTokenManagerSharedThroughRedis(t *testing.T) {
	_, client := newTestRedis(t)
	clock := newFakeClock()
	store := NewRedisTokenStore(client, "shared")
	require.NoError(t, store.SetRefreshToken(context.Background(), "r"))

	first := newTestTokenManager(store, clock, func(ctx context.Context, refreshToken string) (RefreshResult, error) {
		return RefreshResult{Token: "SHARED", ExpiresIn: 3600}, nil
	})
	_, err := first.GetToken(context.Background())
	require.NoError(t, err)

	second := newTestTokenManager(NewRedisTokenStore(client, "shared"), clock, nil)
	token, err := second.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SHARED", token)
}

func TestRefreshClampsHugeExpiry(t *testing.T) {
	clock := newFakeClock()
	m := newTestTokenManager(NewMemoryTokenStore("r"), clock, func(ctx context.Context, refreshToken string) (RefreshResult, error) {
		return RefreshResult{Token: "T1", ExpiresIn: 1e300}, nil
	})
	ctx := context.Background()

	state, err := m.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(MaxTokenLifetime), state.ExpiresAt)
	assert.Equal(t, TokenValid, m.Status(ctx))

	token, err := m.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "T1", token)
	assert.Equal(t, int64(1), m.Exchanges(), "a clamped token must not trigger another refresh")
}

func TestTokenLifetime(t *testing.T) {
	cases := map[string]struct {
		in   float64
		want time.Duration
	}{
		"seconds":  {in: 90, want: 90 * time.Second},
		"fraction": {in: 0.5, want: 500 * time.Millisecond},
		"negative": {in: -1, want: 0},
		"nan":      {in: math.NaN(), want: 0},
		"infinite": {in: math.Inf(1), want: MaxTokenLifetime},
		"huge":     {in: 1e20, want: MaxTokenLifetime},
	}
	for name, tc := range cases {
		if got := tokenLifetime(tc.in); got != tc.want {
			t.Errorf("%s: expected %v, got %v", name, tc.want, got)
		}
	}
}
