package storage

import (
	"context"

	"token-radar/internal/domain"
)

// ListingStore provides access to token_listings storage.
type ListingStore interface {
	// Exists reports whether a listing with the given address is persisted.
	Exists(ctx context.Context, address string) (bool, error)

	// Insert adds a new listing. Returns ErrDuplicateKey if address exists.
	// An existing listing is never overwritten.
	Insert(ctx context.Context, l *domain.TokenListing) error

	// GetByAddress retrieves a listing by its address. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.TokenListing, error)

	// GetRecent retrieves up to limit listings ordered by created_at DESC (newest first).
	GetRecent(ctx context.Context, limit int) ([]*domain.TokenListing, error)

	// GetBySource retrieves all listings from a given source, ordered by created_at DESC.
	GetBySource(ctx context.Context, source domain.Source) ([]*domain.TokenListing, error)

	// MaxCreatedAt returns the maximum created_at over all persisted listings,
	// or 0 if the store is empty.
	MaxCreatedAt(ctx context.Context) (int64, error)

	// Ping performs a lightweight round trip to verify connectivity.
	Ping(ctx context.Context) error
}

// SnapshotStore provides access to market_snapshots storage.
type SnapshotStore interface {
	// InsertBulk adds multiple snapshots in one batch.
	InsertBulk(ctx context.Context, snapshots []*domain.MarketSnapshot) error

	// GetByAddress retrieves all snapshots for an address, ordered by observed_at ASC.
	GetByAddress(ctx context.Context, address string) ([]*domain.MarketSnapshot, error)

	// GetByTimeRange retrieves snapshots for an address within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, address string, start, end int64) ([]*domain.MarketSnapshot, error)
}
