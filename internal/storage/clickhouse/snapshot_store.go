package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"token-radar/internal/domain"
	"token-radar/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// InsertBulk adds multiple snapshots in one batch.
func (s *SnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.MarketSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	for _, snap := range snapshots {
		if snap == nil || snap.Address == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO market_snapshots (
			address, observed_at, liquidity, volume_24h, price_usd, source
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snapshots {
		err = batch.Append(
			snap.Address, uint64(snap.ObservedAt),
			snap.Liquidity, snap.Volume24h, snap.PriceUSD,
			string(snap.Source),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByAddress retrieves all snapshots for an address, ordered by observed_at ASC.
func (s *SnapshotStore) GetByAddress(ctx context.Context, address string) ([]*domain.MarketSnapshot, error) {
	query := `
		SELECT address, observed_at, liquidity, volume_24h, price_usd, source
		FROM market_snapshots
		WHERE address = ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("query by address: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// GetByTimeRange retrieves snapshots for an address within [start, end] (inclusive).
func (s *SnapshotStore) GetByTimeRange(ctx context.Context, address string, start, end int64) ([]*domain.MarketSnapshot, error) {
	query := `
		SELECT address, observed_at, liquidity, volume_24h, price_usd, source
		FROM market_snapshots
		WHERE address = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, address, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// scanSnapshots scans rows into a slice of MarketSnapshot.
func scanSnapshots(rows driver.Rows) ([]*domain.MarketSnapshot, error) {
	var snapshots []*domain.MarketSnapshot

	for rows.Next() {
		var snap domain.MarketSnapshot
		var observedAt uint64
		var sourceStr string

		err := rows.Scan(
			&snap.Address,
			&observedAt,
			&snap.Liquidity,
			&snap.Volume24h,
			&snap.PriceUSD,
			&sourceStr,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		snap.ObservedAt = int64(observedAt)
		snap.Source = domain.Source(sourceStr)
		snapshots = append(snapshots, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return snapshots, nil
}
