// Package discovery implements the token discovery poller: a scheduled loop
// that pulls candidate listings from upstream venues, filters them by recency
// and liquidity, and persists first observations into a shared store.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"token-radar/internal/domain"
	"token-radar/internal/observability"
	"token-radar/internal/solana"
	"token-radar/internal/source"
	"token-radar/internal/storage"
)

// Default configuration values.
const (
	DefaultPollInterval    = 60 * time.Second
	DefaultMinLiquidityUSD = 1000.0
	DefaultLookback        = 1 * time.Hour
	DefaultUpdateBuffer    = 16
)

// ErrNotInitialized is returned by Run when Init has not succeeded.
var ErrNotInitialized = errors.New("poller not initialized")

// Options contains configuration for creating a Poller.
type Options struct {
	Sources       []source.Source
	ListingStore  storage.ListingStore
	SnapshotStore storage.SnapshotStore // optional, per-cycle market snapshots
	RPC           solana.RPCClient      // optional, decimals backfill for new listings

	Clock   clock.Clock            // default: real clock
	Logger  *log.Logger            // default: log.Default()
	Metrics *observability.Metrics // default: observability.DefaultMetrics

	PollInterval      time.Duration // delay between cycle completions
	MinLiquidityUSD   float64       // admission threshold
	EnableAutoRefresh bool          // false: run exactly one cycle
	Lookback          time.Duration // initial watermark window
	UpdateBuffer      int           // update channel capacity
}

// Poller periodically surfaces newly listed tokens into the shared store.
type Poller struct {
	sources       []source.Source
	listingStore  storage.ListingStore
	snapshotStore storage.SnapshotStore
	rpc           solana.RPCClient
	clock         clock.Clock
	logger        *log.Logger
	metrics       *observability.Metrics

	pollInterval      time.Duration
	minLiquidityUSD   float64
	enableAutoRefresh bool
	lookback          time.Duration

	updates chan Update

	// watermark is the in-memory fallback recency bound (Unix ms).
	// Each cycle prefers the persisted store's max created_at over it.
	watermark   int64
	initialized bool
}

// NewPoller creates a new Poller from Options.
func NewPoller(opts Options) *Poller {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.DefaultMetrics
	}

	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = DefaultPollInterval
	}

	minLiquidity := opts.MinLiquidityUSD
	if minLiquidity == 0 {
		minLiquidity = DefaultMinLiquidityUSD
	}

	lookback := opts.Lookback
	if lookback == 0 {
		lookback = DefaultLookback
	}

	updateBuffer := opts.UpdateBuffer
	if updateBuffer == 0 {
		updateBuffer = DefaultUpdateBuffer
	}

	return &Poller{
		sources:           opts.Sources,
		listingStore:      opts.ListingStore,
		snapshotStore:     opts.SnapshotStore,
		rpc:               opts.RPC,
		clock:             clk,
		logger:            logger,
		metrics:           metrics,
		pollInterval:      pollInterval,
		minLiquidityUSD:   minLiquidity,
		enableAutoRefresh: opts.EnableAutoRefresh,
		lookback:          lookback,
		updates:           make(chan Update, updateBuffer),
	}
}

// Updates returns the poller's notification channel.
func (p *Poller) Updates() <-chan Update {
	return p.updates
}

// Init verifies store connectivity with a round-trip probe and seeds the
// in-memory watermark. A probe failure is fatal: polling never starts.
func (p *Poller) Init(ctx context.Context) error {
	if p.listingStore == nil {
		return fmt.Errorf("init poller: listing store is required")
	}

	if err := p.listingStore.Ping(ctx); err != nil {
		return fmt.Errorf("init poller: store probe failed: %w", err)
	}

	p.watermark = p.clock.Now().Add(-p.lookback).UnixMilli()
	p.initialized = true
	return nil
}

// Run executes poll cycles until ctx is cancelled. With auto-refresh
// disabled it runs exactly one cycle and returns nil. A cycle-level failure
// is reported and the next cycle still re-arms.
func (p *Poller) Run(ctx context.Context) error {
	if !p.initialized {
		return ErrNotInitialized
	}

	for {
		batch, err := p.runCycle(ctx)
		if err != nil {
			p.logger.Printf("Poll cycle failed: %v", err)
			p.metrics.CyclesTotal.WithLabelValues(string(StatusError)).Inc()
			p.emit(Update{Status: StatusError, Err: err.Error()})
		} else {
			p.metrics.CyclesTotal.WithLabelValues("ok").Inc()
			p.metrics.LastSuccessfulCycle.Set(float64(p.clock.Now().Unix()))
			if p.enableAutoRefresh {
				p.emit(Update{Status: StatusWaiting, Tokens: batch})
			} else {
				p.emit(Update{Status: StatusDisabled, Tokens: batch})
			}
		}

		if !p.enableAutoRefresh {
			return nil
		}

		timer := p.clock.Timer(p.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// runCycle executes one full poll cycle and returns the admitted batch.
func (p *Poller) runCycle(ctx context.Context) ([]*domain.TokenListing, error) {
	start := p.clock.Now()
	p.emit(Update{Status: StatusPolling})

	watermark := p.effectiveWatermark(ctx)
	p.metrics.Watermark.Set(float64(watermark))

	candidates := p.fetchAll(ctx, watermark)

	// Newest first; order is for predictable downstream consumption only.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt != candidates[j].CreatedAt {
			return candidates[i].CreatedAt > candidates[j].CreatedAt
		}
		return candidates[i].Address < candidates[j].Address
	})

	admitted := p.admit(candidates)
	p.metrics.ListingsAdmitted.Add(float64(len(admitted)))

	if err := p.persist(ctx, admitted); err != nil {
		return nil, err
	}

	p.recordSnapshots(ctx, admitted)

	// Coarse safety bound for the next cycle's fallback path.
	p.watermark = p.clock.Now().UnixMilli()

	p.metrics.CycleDuration.Observe(p.clock.Since(start).Seconds())

	if len(admitted) > 0 {
		p.logger.Printf("Poll cycle admitted %d listings (watermark=%d)", len(admitted), watermark)
	}

	return admitted, nil
}

// effectiveWatermark recomputes the recency bound from the persisted store,
// falling back to the in-memory watermark when the store is empty or
// unreadable. A restarted poller therefore does not re-admit tokens that are
// already persisted.
func (p *Poller) effectiveWatermark(ctx context.Context) int64 {
	max, err := p.listingStore.MaxCreatedAt(ctx)
	if err != nil {
		p.logger.Printf("Watermark recovery failed, using in-memory fallback: %v", err)
		return p.watermark
	}
	if max == 0 {
		return p.watermark
	}
	return max
}

// fetchAll queries every source concurrently and merges the results.
// A failure in one source never aborts the others or the cycle.
func (p *Poller) fetchAll(ctx context.Context, watermark int64) []*domain.TokenListing {
	var (
		mu     sync.Mutex
		merged []*domain.TokenListing
		wg     sync.WaitGroup
	)

	for _, src := range p.sources {
		wg.Add(1)
		go func(src source.Source) {
			defer wg.Done()

			listings, err := src.FetchCandidates(ctx, watermark)
			if err != nil {
				p.logger.Printf("Error fetching from %s: %v", src.Name(), err)
				p.metrics.SourceFetchErrors.WithLabelValues(string(src.Name())).Inc()
				return
			}

			p.metrics.ListingsFetched.WithLabelValues(string(src.Name())).Add(float64(len(listings)))

			mu.Lock()
			merged = append(merged, listings...)
			mu.Unlock()
		}(src)
	}

	wg.Wait()
	return merged
}

// admit applies the liquidity admission filter: listings without a liquidity
// figure, or below the configured minimum, are dropped.
func (p *Poller) admit(candidates []*domain.TokenListing) []*domain.TokenListing {
	var admitted []*domain.TokenListing
	for _, l := range candidates {
		if l.Liquidity == nil || *l.Liquidity < p.minLiquidityUSD {
			continue
		}
		admitted = append(admitted, l)
	}
	return admitted
}

// persist inserts admitted listings idempotently, keyed by address.
// Already-persisted listings are skipped silently and never overwritten.
func (p *Poller) persist(ctx context.Context, admitted []*domain.TokenListing) error {
	now := p.clock.Now().UnixMilli()

	for _, l := range admitted {
		exists, err := p.listingStore.Exists(ctx, l.Address)
		if err != nil {
			return fmt.Errorf("check listing %s: %w", l.Address, err)
		}
		if exists {
			p.metrics.DuplicatesSkipped.Inc()
			continue
		}

		// Some venues omit decimal precision; fill it from the chain when a
		// client is available. Best-effort only.
		if l.Decimals == 0 && p.rpc != nil {
			if supply, err := p.rpc.GetTokenSupply(ctx, l.Address); err == nil {
				l.Decimals = supply.Decimals
			} else {
				p.logger.Printf("Decimals lookup failed for %s: %v", l.Address, err)
			}
		}

		l.DiscoveredAt = now
		if err := p.listingStore.Insert(ctx, l); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				// Benign race with a concurrent poller; payloads are identical.
				p.metrics.DuplicatesSkipped.Inc()
				continue
			}
			return fmt.Errorf("insert listing %s: %w", l.Address, err)
		}

		p.metrics.ListingsInserted.Inc()
		p.logger.Printf("New token saved: %s (%s, source=%s)", l.Symbol, l.Address, l.Source)
	}

	return nil
}

// recordSnapshots writes one market snapshot per admitted listing.
// Snapshot failures are logged but never fail the cycle: the listing store
// is the system of record, snapshots are best-effort history.
func (p *Poller) recordSnapshots(ctx context.Context, admitted []*domain.TokenListing) {
	if p.snapshotStore == nil || len(admitted) == 0 {
		return
	}

	now := p.clock.Now().UnixMilli()
	snapshots := make([]*domain.MarketSnapshot, 0, len(admitted))
	for _, l := range admitted {
		snapshots = append(snapshots, &domain.MarketSnapshot{
			Address:    l.Address,
			ObservedAt: now,
			Liquidity:  l.Liquidity,
			Volume24h:  l.Volume24h,
			PriceUSD:   l.PriceUSD,
			Source:     l.Source,
		})
	}

	if err := p.snapshotStore.InsertBulk(ctx, snapshots); err != nil {
		p.logger.Printf("Error recording market snapshots: %v", err)
		return
	}
	p.metrics.SnapshotsRecorded.Add(float64(len(snapshots)))
}

// emit delivers an update without blocking. A slow consumer drops updates
// rather than stalling the poll loop.
func (p *Poller) emit(u Update) {
	select {
	case p.updates <- u:
	default:
		p.logger.Printf("Update channel full, dropping %s update", u.Status)
	}
}
