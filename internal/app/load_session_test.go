package app_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Amund211/pitwall/internal/adapters/sessionprovider"
	"github.com/Amund211/pitwall/internal/app"
	"github.com/Amund211/pitwall/internal/domain"
	"github.com/Amund211/pitwall/internal/domaintest"
	"github.com/Amund211/pitwall/internal/normalizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	fetches atomic.Int64
	err     error
	inner   sessionprovider.SessionProvider
}

func newCountingProvider() *countingProvider {
	return &countingProvider{inner: sessionprovider.NewMockedProvider()}
}

func (p *countingProvider) Fetch(ctx context.Context, key domain.SessionKey) (*sessionprovider.RawSession, error) {
	p.fetches.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return p.inner.Fetch(ctx, key)
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[domain.SessionKey]*domain.SessionEntry
	getErr  error
	putErr  error
	gets    int
	puts    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[domain.SessionKey]*domain.SessionEntry)}
}

func (s *memoryStore) Get(ctx context.Context, key domain.SessionKey) (*domain.SessionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, domain.ErrStoreMiss
	}
	return entry, nil
}

func (s *memoryStore) Put(ctx context.Context, entry *domain.SessionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	s.entries[entry.Key] = entry
	return nil
}

func (s *memoryStore) stored(key domain.SessionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[key]
	return ok
}

func (s *memoryStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.puts
}

func TestBuildLoadSession(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	key := domaintest.NewSessionKey(2023, "Australian", domain.SessionTypeRace)

	t.Run("miss fetches, normalizes and persists", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		provider := newCountingProvider()
		load := app.BuildLoadSession(store, provider, normalizer.Normalize)

		entry, err := load(ctx, key)
		require.NoError(t, err)
		require.Equal(t, key, entry.Key)
		require.NotEmpty(t, entry.LapTable)
		require.Equal(t, int64(1), provider.fetches.Load())

		require.Eventually(t, func() bool {
			return store.stored(key)
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("stored entries skip the provider", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		storedEntry := domaintest.NewEntryBuilder(key).WithDriver(domain.Driver{ID: "VER"}).BuildPtr()
		store.entries[key] = storedEntry
		provider := newCountingProvider()
		load := app.BuildLoadSession(store, provider, normalizer.Normalize)

		entry, err := load(ctx, key)
		require.NoError(t, err)
		require.Same(t, storedEntry, entry)
		require.Equal(t, int64(0), provider.fetches.Load())
		require.Equal(t, 0, store.putCount())
	})

	t.Run("store failures fall through to the provider", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		store.getErr = assert.AnError
		provider := newCountingProvider()
		load := app.BuildLoadSession(store, provider, normalizer.Normalize)

		entry, err := load(ctx, key)
		require.NoError(t, err)
		require.Equal(t, key, entry.Key)
		require.Equal(t, int64(1), provider.fetches.Load())
	})

	t.Run("failing to persist does not fail the load", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		store.putErr = assert.AnError
		provider := newCountingProvider()
		load := app.BuildLoadSession(store, provider, normalizer.Normalize)

		entry, err := load(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, entry)

		require.Eventually(t, func() bool {
			return store.putCount() == 1
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("provider errors", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		provider := newCountingProvider()
		provider.err = domain.ErrSessionNotFound
		load := app.BuildLoadSession(store, provider, normalizer.Normalize)

		_, err := load(ctx, key)
		require.ErrorIs(t, err, domain.ErrProviderFetchFailed)
		require.ErrorIs(t, err, domain.ErrSessionNotFound)
		require.Equal(t, 0, store.putCount())
	})

	t.Run("normalization errors", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		provider := newCountingProvider()
		failingNormalizer := func(key domain.SessionKey, raw *sessionprovider.RawSession) (*domain.SessionEntry, error) {
			return nil, domain.ErrNormalizationFailed
		}
		load := app.BuildLoadSession(store, provider, failingNormalizer)

		_, err := load(ctx, key)
		require.ErrorIs(t, err, domain.ErrNormalizationFailed)
		require.Equal(t, 0, store.putCount())
	})
}
