// Package statsource fetches player snapshots through a shared, time-bounded cache
// with exponential-backoff retry.
package statsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
	eventutil "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/utils"
)

// Lookup is the external hiscores collaborator.
//
// Error semantics:
//   - ErrPlayerNotFound: the name has no hiscores entry
//   - ErrInvalidName: the name is malformed
//   - anything else is treated as transient
type Lookup interface {
	Lookup(ctx context.Context, rsn string) (*eventdomain.Snapshot, error)
}

// Result is the outcome of a fetch. Exactly one of Snapshot and Err is set.
type Result struct {
	Snapshot *eventdomain.Snapshot
	Err      error
}

// Unavailable reports whether the fetch failed.
func (r Result) Unavailable() bool { return r.Err != nil }

// Config bounds caching and retry.
type Config struct {
	TTL             time.Duration
	MaxEntries      int
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	FetchTimeout    time.Duration
}

// DefaultConfig holds the production limits.
func DefaultConfig() Config {
	return Config{
		TTL:             20 * time.Minute,
		MaxEntries:      1000,
		MaxRetries:      5,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		FetchTimeout:    2 * time.Minute,
	}
}

type entry struct {
	done      chan struct{}
	snapshot  *eventdomain.Snapshot
	err       error
	fetchedAt time.Time
}

// Gateway owns the process-wide snapshot cache.
type Gateway struct {
	lookup  Lookup
	cfg     Config
	clock   eventutil.Clock
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	entries map[string]*entry
	keys    []string
	pick    func(n int) int
}

// NewGateway creates a Gateway. A nil metrics disables instrumentation.
func NewGateway(lookup Lookup, cfg Config, clock eventutil.Clock, logger *slog.Logger, metrics *Metrics) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = eventutil.RealClock{}
	}
	return &Gateway{
		lookup:  lookup,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		entries: make(map[string]*entry),
		pick:    rand.IntN,
	}
}

// Fetch returns the snapshot for rsn. Concurrent callers for the same name share
// one lookup. A cached value is reused until it is older than the TTL or the
// caller forces a refresh.
func (g *Gateway) Fetch(ctx context.Context, rsn string, forceRefresh bool) Result {
	key := NormalizeRSN(rsn)
	if key == "" {
		return Result{Err: fmt.Errorf("%w: %w", ErrUnavailable, ErrInvalidName)}
	}

	e, owner := g.acquire(key, forceRefresh)
	if owner {
		go g.resolve(key, e, rsn)
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return Result{Err: fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())}
	}
	if e.err != nil {
		return Result{Err: e.err}
	}
	return Result{Snapshot: e.snapshot.Clone()}
}

// acquire returns the entry to wait on and whether the caller must perform the lookup.
func (g *Gateway) acquire(key string, force bool) (*entry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if e, ok := g.entries[key]; ok {
		select {
		case <-e.done:
			if !force && g.clock.Now().Sub(e.fetchedAt) <= g.cfg.TTL {
				g.metrics.hit()
				return e, false
			}
			g.removeLocked(key)
		default:
			// In flight: join it even when forced, the result is fresh anyway.
			g.metrics.hit()
			return e, false
		}
	}

	g.metrics.miss()
	if g.cfg.MaxEntries > 0 && len(g.entries) >= g.cfg.MaxEntries {
		victim := g.keys[g.pick(len(g.keys))]
		g.removeLocked(victim)
		g.metrics.evict()
	}
	e := &entry{done: make(chan struct{})}
	g.entries[key] = e
	g.keys = append(g.keys, key)
	return e, true
}

func (g *Gateway) resolve(key string, e *entry, rsn string) {
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.FetchTimeout)
	defer cancel()

	snap, err := g.lookupWithRetry(ctx, rsn)

	g.mu.Lock()
	e.fetchedAt = g.clock.Now()
	if err != nil {
		e.err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		if g.entries[key] == e {
			g.removeLocked(key)
		}
		g.metrics.failure()
		g.logger.Warn("Stat lookup failed",
			slog.String("rsn", rsn),
			slog.Any("error", err),
		)
	} else {
		e.snapshot = snap
	}
	close(e.done)
	g.mu.Unlock()
}

func (g *Gateway) lookupWithRetry(ctx context.Context, rsn string) (*eventdomain.Snapshot, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = g.cfg.InitialInterval
	eb.MaxInterval = g.cfg.MaxInterval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, g.cfg.MaxRetries), ctx)

	attempt := 0
	return backoff.RetryNotifyWithData(func() (*eventdomain.Snapshot, error) {
		attempt++
		snap, err := g.lookup.Lookup(ctx, rsn)
		if err == nil && snap == nil {
			err = errors.New("lookup returned no snapshot")
		}
		if errors.Is(err, ErrPlayerNotFound) || errors.Is(err, ErrInvalidName) {
			return nil, backoff.Permanent(err)
		}
		return snap, err
	}, policy, func(err error, wait time.Duration) {
		g.logger.Debug("Retrying stat lookup",
			slog.String("rsn", rsn),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err),
		)
	})
}

// removeLocked drops key from the cache. Callers hold g.mu.
func (g *Gateway) removeLocked(key string) {
	delete(g.entries, key)
	for i, k := range g.keys {
		if k == key {
			last := len(g.keys) - 1
			g.keys[i] = g.keys[last]
			g.keys = g.keys[:last]
			return
		}
	}
}

// Len reports the number of cached or in-flight entries.
func (g *Gateway) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// NormalizeRSN is the cache key for rsn.
func NormalizeRSN(rsn string) string { return eventdomain.NormalizeRSN(rsn) }
