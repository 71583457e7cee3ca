// Package main serves the read API over discovered tokens: recent listings,
// per-token detail, and market snapshot history.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"token-radar/internal/config"
	"token-radar/internal/domain"
	"token-radar/internal/observability"
	"token-radar/internal/storage"
	chstore "token-radar/internal/storage/clickhouse"
	"token-radar/internal/storage/memory"
	pgstore "token-radar/internal/storage/postgres"
)

// Server serves read-only HTTP access to the token store.
type Server struct {
	listingStore  storage.ListingStore
	snapshotStore storage.SnapshotStore
	defaultLimit  int
	logger        *log.Logger
	started       time.Time
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	listenAddr := flag.String("listen-addr", cfg.ListenAddr, "HTTP listen address")
	useMemory := flag.Bool("use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, cleanup, err := createServer(ctx, cfg, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create server: %v", err)
	}
	defer cleanup()

	httpServer := &http.Server{
		Addr:         *listenAddr,
		Handler:      server.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}
		cancel()
	}()

	logger.Printf("Serving token API on %s", *listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createServer builds the server and its stores.
func createServer(ctx context.Context, cfg *config.Config, useMemory bool, logger *log.Logger) (*Server, func(), error) {
	server := &Server{
		defaultLimit: cfg.MaxTokensToShow,
		logger:       logger,
		started:      time.Now(),
	}

	if useMemory {
		server.listingStore = memory.NewListingStore()
		server.snapshotStore = memory.NewSnapshotStore()
		return server, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	server.listingStore = pgstore.NewListingStore(pool)
	cleanup := func() { pool.Close() }

	if cfg.ClickHouseDSN != "" {
		chConn, err := chstore.NewConn(ctx, cfg.ClickHouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		server.snapshotStore = chstore.NewSnapshotStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	}

	return server, cleanup, nil
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/api/tokens", s.handleTokens)
	mux.HandleFunc("/api/tokens/", s.handleToken)

	return mux
}

// handleHealth probes the listing store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.listingStore.Ping(r.Context()); err != nil {
		s.logger.Printf("Health probe failed: %v", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StatusResponse{
		Status: "running",
		Uptime: time.Since(s.started).String(),
	})
}

// handleTokens serves GET /api/tokens?limit=N&source=raydium.
func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var (
		listings []*domain.TokenListing
		err      error
	)

	if src := r.URL.Query().Get("source"); src != "" {
		srcTyped := domain.Source(src)
		if !srcTyped.IsValid() {
			http.Error(w, "unknown source", http.StatusBadRequest)
			return
		}
		listings, err = s.listingStore.GetBySource(r.Context(), srcTyped)
		if err == nil && len(listings) > limit {
			listings = listings[:limit]
		}
	} else {
		listings, err = s.listingStore.GetRecent(r.Context(), limit)
	}

	if err != nil {
		s.logger.Printf("Error listing tokens: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, toListingResponses(listings))
}

// handleToken serves GET /api/tokens/{address} and
// GET /api/tokens/{address}/snapshots?from=&to=.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/tokens/")
	address, tail, _ := strings.Cut(rest, "/")
	if address == "" {
		http.Error(w, "address required", http.StatusBadRequest)
		return
	}

	switch tail {
	case "":
		s.serveListing(w, r, address)
	case "snapshots":
		s.serveSnapshots(w, r, address)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) serveListing(w http.ResponseWriter, r *http.Request, address string) {
	listing, err := s.listingStore.GetByAddress(r.Context(), address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "token not found", http.StatusNotFound)
			return
		}
		s.logger.Printf("Error fetching token %s: %v", address, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, toListingResponse(listing))
}

func (s *Server) serveSnapshots(w http.ResponseWriter, r *http.Request, address string) {
	if s.snapshotStore == nil {
		http.Error(w, "snapshot history not configured", http.StatusNotImplemented)
		return
	}

	from, err := parseMillis(r.URL.Query().Get("from"), 0)
	if err != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	to, err := parseMillis(r.URL.Query().Get("to"), time.Now().UnixMilli())
	if err != nil {
		http.Error(w, "invalid to", http.StatusBadRequest)
		return
	}

	snapshots, err := s.snapshotStore.GetByTimeRange(r.Context(), address, from, to)
	if err != nil {
		s.logger.Printf("Error fetching snapshots for %s: %v", address, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, toSnapshotResponses(snapshots))
}

// parseMillis parses a Unix-milliseconds query parameter.
func parseMillis(v string, fallback int64) (int64, error) {
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

// ListingResponse is the JSON shape for a token listing.
type ListingResponse struct {
	Address      string   `json:"address"`
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name"`
	Decimals     int      `json:"decimals"`
	LogoURI      *string  `json:"logoURI,omitempty"`
	CreatedAt    int64    `json:"createdAt"`
	Liquidity    *float64 `json:"liquidity,omitempty"`
	Volume24h    *float64 `json:"volume24h,omitempty"`
	PriceUSD     *float64 `json:"priceUsd,omitempty"`
	Source       string   `json:"source"`
	DiscoveredAt int64    `json:"discoveredAt"`
}

// SnapshotResponse is the JSON shape for a market snapshot.
type SnapshotResponse struct {
	Address    string   `json:"address"`
	ObservedAt int64    `json:"observedAt"`
	Liquidity  *float64 `json:"liquidity,omitempty"`
	Volume24h  *float64 `json:"volume24h,omitempty"`
	PriceUSD   *float64 `json:"priceUsd,omitempty"`
	Source     string   `json:"source"`
}

func toListingResponse(l *domain.TokenListing) ListingResponse {
	return ListingResponse{
		Address:      l.Address,
		Symbol:       l.Symbol,
		Name:         l.Name,
		Decimals:     l.Decimals,
		LogoURI:      l.LogoURI,
		CreatedAt:    l.CreatedAt,
		Liquidity:    l.Liquidity,
		Volume24h:    l.Volume24h,
		PriceUSD:     l.PriceUSD,
		Source:       l.Source.String(),
		DiscoveredAt: l.DiscoveredAt,
	}
}

func toListingResponses(listings []*domain.TokenListing) []ListingResponse {
	out := make([]ListingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, toListingResponse(l))
	}
	return out
}

func toSnapshotResponses(snapshots []*domain.MarketSnapshot) []SnapshotResponse {
	out := make([]SnapshotResponse, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, SnapshotResponse{
			Address:    s.Address,
			ObservedAt: s.ObservedAt,
			Liquidity:  s.Liquidity,
			Volume24h:  s.Volume24h,
			PriceUSD:   s.PriceUSD,
			Source:     s.Source.String(),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; nothing useful left to do.
		return
	}
}
