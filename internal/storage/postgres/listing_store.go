package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token-radar/internal/domain"
	"token-radar/internal/storage"
)

// ListingStore implements storage.ListingStore using PostgreSQL.
type ListingStore struct {
	pool *Pool
}

// NewListingStore creates a new ListingStore.
func NewListingStore(pool *Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ListingStore = (*ListingStore)(nil)

const listingColumns = `address, symbol, name, decimals, logo_uri, created_at, liquidity, volume_24h, price_usd, source, discovered_at`

// Exists reports whether a listing with the given address is persisted.
func (s *ListingStore) Exists(ctx context.Context, address string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM token_listings WHERE address = $1)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, address).Scan(&exists); err != nil {
		return false, fmt.Errorf("check listing exists: %w", err)
	}
	return exists, nil
}

// Insert adds a new listing. Returns ErrDuplicateKey if address exists.
func (s *ListingStore) Insert(ctx context.Context, l *domain.TokenListing) error {
	if l == nil || l.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_listings (` + listingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		l.Address,
		l.Symbol,
		l.Name,
		l.Decimals,
		l.LogoURI,
		l.CreatedAt,
		l.Liquidity,
		l.Volume24h,
		l.PriceUSD,
		string(l.Source),
		l.DiscoveredAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// GetByAddress retrieves a listing by its address. Returns ErrNotFound if not exists.
func (s *ListingStore) GetByAddress(ctx context.Context, address string) (*domain.TokenListing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM token_listings
		WHERE address = $1
	`

	row := s.pool.QueryRow(ctx, query, address)
	l, err := scanListing(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get listing by address: %w", err)
	}
	return l, nil
}

// GetRecent retrieves up to limit listings ordered by created_at DESC.
func (s *ListingStore) GetRecent(ctx context.Context, limit int) ([]*domain.TokenListing, error) {
	if limit < 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ` + listingColumns + `
		FROM token_listings
		ORDER BY created_at DESC, address ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent listings: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// GetBySource retrieves all listings from a given source, ordered by created_at DESC.
func (s *ListingStore) GetBySource(ctx context.Context, source domain.Source) ([]*domain.TokenListing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM token_listings
		WHERE source = $1
		ORDER BY created_at DESC, address ASC
	`

	rows, err := s.pool.Query(ctx, query, string(source))
	if err != nil {
		return nil, fmt.Errorf("get listings by source: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// MaxCreatedAt returns the maximum created_at over all listings, or 0 if empty.
func (s *ListingStore) MaxCreatedAt(ctx context.Context) (int64, error) {
	query := `SELECT COALESCE(MAX(created_at), 0) FROM token_listings`

	var max int64
	if err := s.pool.QueryRow(ctx, query).Scan(&max); err != nil {
		return 0, fmt.Errorf("max created_at: %w", err)
	}
	return max, nil
}

// Ping performs a lightweight round trip through the listings table.
func (s *ListingStore) Ping(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, `SELECT 1 FROM token_listings LIMIT 1 OFFSET 0`).Scan(&one); err != nil {
		// Empty table is fine; only transport/schema errors are fatal.
		if isNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("ping listings: %w", err)
	}
	return nil
}

// scanListing scans a single row into a TokenListing.
func scanListing(row pgx.Row) (*domain.TokenListing, error) {
	var l domain.TokenListing
	var sourceStr string

	err := row.Scan(
		&l.Address,
		&l.Symbol,
		&l.Name,
		&l.Decimals,
		&l.LogoURI,
		&l.CreatedAt,
		&l.Liquidity,
		&l.Volume24h,
		&l.PriceUSD,
		&sourceStr,
		&l.DiscoveredAt,
	)
	if err != nil {
		return nil, err
	}

	l.Source = domain.Source(sourceStr)
	return &l, nil
}

// scanListings scans multiple rows into a slice of TokenListing.
func scanListings(rows pgx.Rows) ([]*domain.TokenListing, error) {
	var listings []*domain.TokenListing

	for rows.Next() {
		var l domain.TokenListing
		var sourceStr string

		err := rows.Scan(
			&l.Address,
			&l.Symbol,
			&l.Name,
			&l.Decimals,
			&l.LogoURI,
			&l.CreatedAt,
			&l.Liquidity,
			&l.Volume24h,
			&l.PriceUSD,
			&sourceStr,
			&l.DiscoveredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}

		l.Source = domain.Source(sourceStr)
		listings = append(listings, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing rows: %w", err)
	}

	return listings, nil
}
