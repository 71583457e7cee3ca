// Package main runs the token discovery daemon: it polls upstream venues for
// newly listed tokens, persists first observations, and serves metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"token-radar/internal/config"
	"token-radar/internal/discovery"
	"token-radar/internal/observability"
	"token-radar/internal/solana"
	"token-radar/internal/source"
	"token-radar/internal/storage"
	chstore "token-radar/internal/storage/clickhouse"
	"token-radar/internal/storage/memory"
	"token-radar/internal/storage/migrations"
	pgstore "token-radar/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override environment configuration.
	pollInterval := flag.Duration("poll-interval", cfg.PollInterval, "Delay between poll cycles")
	minLiquidity := flag.Float64("min-liquidity", cfg.MinLiquidityUSD, "Liquidity admission threshold in USD")
	autoRefresh := flag.Bool("auto-refresh", cfg.EnableAutoRefresh, "Keep polling on an interval (false: run one cycle and exit)")
	useMemory := flag.Bool("use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL")
	migrate := flag.Bool("migrate", false, "Apply embedded schema migrations on startup")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[radar] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && cfg.PostgresDSN == "" {
		logger.Fatal("POSTGRES_DSN is required (set USE_MEMORY=true for in-memory storage)")
	}

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, logger, cfg, runOptions{
		pollInterval: *pollInterval,
		minLiquidity: *minLiquidity,
		autoRefresh:  *autoRefresh,
		useMemory:    *useMemory,
		migrate:      *migrate,
	})

	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Daemon error: %v", err)
	}

	logger.Println("Shutdown complete")
}

type runOptions struct {
	pollInterval time.Duration
	minLiquidity float64
	autoRefresh  bool
	useMemory    bool
	migrate      bool
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config, opts runOptions) error {
	// Chain connectivity probe: a dead RPC endpoint means downstream
	// enrichment cannot work, so fail fast before touching storage.
	rpc := solana.NewHTTPClient(cfg.RPCEndpoint)
	if err := rpc.GetHealth(ctx); err != nil {
		return fmt.Errorf("solana rpc probe failed: %w", err)
	}
	if version, err := rpc.GetVersion(ctx); err == nil {
		logger.Printf("Connected to Solana RPC (core %s)", version.SolanaCore)
	}

	listingStore, snapshotStore, cleanup, err := createStores(ctx, cfg, opts.useMemory, opts.migrate)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer cleanup()

	sources, closeSources, err := createSources(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create sources: %w", err)
	}
	defer closeSources()

	poller := discovery.NewPoller(discovery.Options{
		Sources:           sources,
		ListingStore:      listingStore,
		SnapshotStore:     snapshotStore,
		RPC:               rpc,
		Logger:            logger,
		PollInterval:      opts.pollInterval,
		MinLiquidityUSD:   opts.minLiquidity,
		EnableAutoRefresh: opts.autoRefresh,
		Lookback:          cfg.Lookback,
	})

	if err := poller.Init(ctx); err != nil {
		return fmt.Errorf("init poller: %w", err)
	}

	go consumeUpdates(ctx, logger, poller.Updates(), cfg.MaxTokensToShow)

	logger.Printf("Starting discovery poller (interval=%v, min-liquidity=%.0f, auto-refresh=%v)",
		opts.pollInterval, opts.minLiquidity, opts.autoRefresh)
	return poller.Run(ctx)
}

// createStores builds the listing and snapshot stores. The snapshot store is
// optional: without a ClickHouse DSN the daemon records no market history.
func createStores(ctx context.Context, cfg *config.Config, useMemory, migrate bool) (storage.ListingStore, storage.SnapshotStore, func(), error) {
	if useMemory {
		return memory.NewListingStore(), memory.NewSnapshotStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
		}
	}

	var snapshotStore storage.SnapshotStore
	cleanup := func() { pool.Close() }

	if cfg.ClickHouseDSN != "" {
		chConn, err := chstore.NewConn(ctx, cfg.ClickHouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if migrate {
			if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
				chConn.Close()
				pool.Close()
				return nil, nil, nil, fmt.Errorf("apply clickhouse migrations: %w", err)
			}
		}
		snapshotStore = chstore.NewSnapshotStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	}

	return pgstore.NewListingStore(pool), snapshotStore, cleanup, nil
}

// createSources builds the upstream source adapters.
func createSources(ctx context.Context, cfg *config.Config, logger *log.Logger) ([]source.Source, func(), error) {
	sources := []source.Source{
		source.NewRaydiumSource(cfg.RaydiumEndpoint, nil),
		source.NewPumpSource(cfg.PumpEndpoint, nil),
	}

	closeSources := func() {}

	if cfg.EnablePumpLive {
		live := source.NewPumpLiveSource(cfg.PumpLiveEndpoint, nil, logger)
		if err := live.Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("start pump live feed: %w", err)
		}
		sources = append(sources, live)
		closeSources = func() {
			if err := live.Close(); err != nil {
				logger.Printf("Error closing pump live feed: %v", err)
			}
		}
	}

	return sources, closeSources, nil
}

// consumeUpdates logs poller notifications.
func consumeUpdates(ctx context.Context, logger *log.Logger, updates <-chan discovery.Update, maxShow int) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			switch u.Status {
			case discovery.StatusPolling:
				logger.Println("Polling sources...")
			case discovery.StatusWaiting, discovery.StatusDisabled:
				shown := u.Tokens
				if len(shown) > maxShow {
					shown = shown[:maxShow]
				}
				for _, l := range shown {
					logger.Printf("  %-12s %s (liquidity=%s, source=%s)",
						l.Symbol, l.Address, formatUSD(l.Liquidity), l.Source)
				}
				if u.Status == discovery.StatusDisabled {
					logger.Printf("Cycle complete, auto-refresh disabled (%d tokens)", len(u.Tokens))
				} else {
					logger.Printf("Cycle complete, %d tokens, waiting for next interval", len(u.Tokens))
				}
			case discovery.StatusError:
				logger.Printf("Cycle failed: %s", u.Err)
			}
		}
	}
}

func formatUSD(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("$%.0f", *v)
}
