package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Amund211/pitwall/internal/domain"
	"github.com/Amund211/pitwall/internal/logging"
	"github.com/Amund211/pitwall/internal/reporting"
	"go.opentelemetry.io/otel"
)

// Loader materializes the entry for a key on a cache miss
type Loader func(ctx context.Context, key domain.SessionKey) (*domain.SessionEntry, error)

type Options struct {
	// Ready entries idle for longer than this are evicted. Zero disables age eviction.
	MaxAge time.Duration
	// Upper bound on the summed SizeBytes of ready entries
	BudgetBytes int64
	// Period of the background eviction pass. Zero disables the background pass.
	EvictInterval time.Duration
	// Upper bound on one load, independent of the callers waiting for it
	LoadTimeout time.Duration
}

type slot struct {
	// Closed when the load completes
	done chan struct{}

	// Callers waiting on the in-flight load. Guarded by SessionCache.mu
	waiters int

	// Written once before done is closed
	entry *domain.SessionEntry
	err   error

	// Unix nanoseconds
	lastAccess atomic.Int64
}

func (s *slot) touch(now time.Time) {
	s.lastAccess.Store(now.UnixNano())
}

type hitResult struct {
	slot    *slot
	ready   bool
	claimed bool
}

type SessionCache struct {
	load    Loader
	options Options
	nowFunc func() time.Time

	// Published ready slots, read without taking mu
	ready sync.Map

	mu         sync.Mutex
	slots      map[domain.SessionKey]*slot
	totalBytes int64

	metrics sessionCacheMetricsCollection

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewSessionCache(load Loader, options Options, nowFunc func() time.Time) (*SessionCache, error) {
	if options.BudgetBytes <= 0 {
		return nil, fmt.Errorf("cache budget must be positive, got %d", options.BudgetBytes)
	}
	if options.LoadTimeout <= 0 {
		return nil, fmt.Errorf("load timeout must be positive, got %s", options.LoadTimeout)
	}

	c := &SessionCache{
		load:    load,
		options: options,
		nowFunc: nowFunc,
		slots:   make(map[domain.SessionKey]*slot),
		stopCh:  make(chan struct{}),
	}

	metrics, err := setupSessionCacheMetrics(otel.Meter("pitwall/cache/session"), c.TotalBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}
	c.metrics = metrics

	return c, nil
}

// GetOrLoad returns the entry for key, loading it if no caller has done so yet.
//
// Concurrent callers for the same key share a single load and its outcome.
// Failed loads are not cached. The load runs detached from ctx, so a caller
// giving up does not affect the other callers.
func (c *SessionCache) GetOrLoad(ctx context.Context, key domain.SessionKey) (*domain.SessionEntry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	if published, ok := c.ready.Load(key); ok {
		s := published.(*slot)
		s.touch(c.nowFunc())
		c.metrics.hits.Add(ctx, 1)
		return s.entry, nil
	}

	result := c.getOrClaim(key)
	if result.ready {
		result.slot.touch(c.nowFunc())
		c.metrics.hits.Add(ctx, 1)
		return result.slot.entry, nil
	}

	logger := logging.FromContext(ctx)
	if result.claimed {
		c.metrics.misses.Add(ctx, 1)
		logger.InfoContext(ctx, "Getting session", "cache", "miss", "session", key.String())
		go c.runLoad(ctx, key, result.slot)
	} else {
		c.metrics.joins.Add(ctx, 1)
		logger.InfoContext(ctx, "Getting session", "cache", "join", "session", key.String())
	}

	return c.wait(ctx, result.slot)
}

func (c *SessionCache) getOrClaim(key domain.SessionKey) hitResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.slots[key]; ok {
		if s.entry != nil {
			return hitResult{slot: s, ready: true}
		}
		s.waiters++
		return hitResult{slot: s}
	}

	s := &slot{
		done:    make(chan struct{}),
		waiters: 1,
	}
	c.slots[key] = s
	return hitResult{slot: s, claimed: true}
}

// detach removes a waiter that gave up before the load completed.
// Completed loads have already dropped their waiters.
func (c *SessionCache) detach(s *slot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-s.done:
	default:
		s.waiters--
	}
}

func (c *SessionCache) wait(ctx context.Context, s *slot) (*domain.SessionEntry, error) {
	select {
	case <-s.done:
		if s.err != nil {
			return nil, s.err
		}
		s.touch(c.nowFunc())
		return s.entry, nil
	case <-ctx.Done():
		c.detach(s)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", domain.ErrTimeout, ctx.Err())
		}
		return nil, ctx.Err()
	}
}

func (c *SessionCache) runLoad(ctx context.Context, key domain.SessionKey, s *slot) {
	// Keep the request values (logger, sentry hub) but not its cancellation
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.options.LoadTimeout)
	defer cancel()

	entry, err := c.safeLoad(ctx, key)
	if err == nil && entry == nil {
		err = fmt.Errorf("%w: loader returned no entry for %s", domain.ErrNormalizationFailed, key.String())
		reporting.Report(ctx, err)
	}

	if err != nil {
		c.metrics.failures.Add(ctx, 1)
		logging.FromContext(ctx).WarnContext(ctx, "Failed to load session", "session", key.String(), "error", err.Error())

		c.mu.Lock()
		delete(c.slots, key)
		s.err = err
		s.waiters = 0
		close(s.done)
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	s.entry = entry
	s.touch(c.nowFunc())
	c.totalBytes += entry.SizeBytes
	c.ready.Store(key, s)
	// Waiters only pin a slot while its load is in flight
	s.waiters = 0
	// Waiters get the entry even if it is evicted right away
	c.evictLocked(c.nowFunc())
	close(s.done)
	c.mu.Unlock()
}

func (c *SessionCache) safeLoad(ctx context.Context, key domain.SessionKey) (entry *domain.SessionEntry, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic while loading %s: %v", key.String(), recovered)
			reporting.Report(ctx, err)
			entry = nil
		}
	}()

	return c.load(ctx, key)
}

type evictionReason string

const (
	evictionReasonAge    evictionReason = "age"
	evictionReasonBudget evictionReason = "budget"
)

// Evict removes ready entries idle for longer than MaxAge, then the least
// recently accessed ready entries until the total size fits the budget.
// Loading entries are never evicted.
//
// Returns the number of evicted entries.
func (c *SessionCache) Evict() int {
	now := c.nowFunc()

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evictLocked(now)
}

// evictLocked must be called with mu held
func (c *SessionCache) evictLocked(now time.Time) int {
	type candidate struct {
		key        domain.SessionKey
		keyString  string
		lastAccess int64
	}

	evicted := 0
	candidates := make([]candidate, 0, len(c.slots))
	for key, s := range c.slots {
		if s.entry == nil {
			continue
		}
		lastAccess := s.lastAccess.Load()
		if c.options.MaxAge > 0 && now.Sub(time.Unix(0, lastAccess)) > c.options.MaxAge {
			c.remove(key, s, evictionReasonAge)
			evicted++
			continue
		}
		candidates = append(candidates, candidate{key: key, keyString: key.String(), lastAccess: lastAccess})
	}

	if c.totalBytes <= c.options.BudgetBytes {
		return evicted
	}

	slices.SortFunc(candidates, func(a, b candidate) int {
		if a.lastAccess != b.lastAccess {
			if a.lastAccess < b.lastAccess {
				return -1
			}
			return 1
		}
		return strings.Compare(a.keyString, b.keyString)
	})

	for _, candidate := range candidates {
		if c.totalBytes <= c.options.BudgetBytes {
			break
		}
		c.remove(candidate.key, c.slots[candidate.key], evictionReasonBudget)
		evicted++
	}

	return evicted
}

// remove must be called with mu held
func (c *SessionCache) remove(key domain.SessionKey, s *slot, reason evictionReason) {
	delete(c.slots, key)
	c.ready.Delete(key)
	c.totalBytes -= s.entry.SizeBytes
	c.metrics.recordEviction(reason)
}

// Start runs the periodic eviction pass until Stop is called
func (c *SessionCache) Start() {
	if c.options.EvictInterval <= 0 {
		<-c.stopCh
		return
	}

	ticker := time.NewTicker(c.options.EvictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Evict()
		case <-c.stopCh:
			return
		}
	}
}

func (c *SessionCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

func (c *SessionCache) TotalBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.totalBytes
}

type EntryStats struct {
	Key        domain.SessionKey
	SizeBytes  int64
	LastAccess time.Time
}

type Stats struct {
	Entries int
	Loading int
	// Callers blocked on loads in flight
	Waiters    int
	TotalBytes int64
	// Ready entries ordered by key
	Ready []EntryStats
}

func (c *SessionCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		TotalBytes: c.totalBytes,
		Ready:      make([]EntryStats, 0, len(c.slots)),
	}
	for key, s := range c.slots {
		if s.entry == nil {
			stats.Loading++
			stats.Waiters += s.waiters
			continue
		}
		stats.Entries++
		stats.Ready = append(stats.Ready, EntryStats{
			Key:        key,
			SizeBytes:  s.entry.SizeBytes,
			LastAccess: time.Unix(0, s.lastAccess.Load()),
		})
	}

	slices.SortFunc(stats.Ready, func(a, b EntryStats) int {
		return strings.Compare(a.Key.String(), b.Key.String())
	})

	return stats
}
