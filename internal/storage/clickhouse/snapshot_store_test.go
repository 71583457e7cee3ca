package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-radar/internal/domain"
)

func TestSnapshotStore_ClickHouse(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(conn)
	ctx := context.Background()

	t.Run("InsertBulkAndGetByAddress", func(t *testing.T) {
		snaps := []*domain.MarketSnapshot{
			{Address: "m1", ObservedAt: 2000, Liquidity: ptr(5000.0), Volume24h: ptr(120.0), PriceUSD: ptr(0.002), Source: domain.SourceRaydium},
			{Address: "m1", ObservedAt: 1000, Liquidity: ptr(4800.0), Source: domain.SourceRaydium},
			{Address: "m2", ObservedAt: 1500, Source: domain.SourcePump},
		}
		require.NoError(t, store.InsertBulk(ctx, snaps))

		result, err := store.GetByAddress(ctx, "m1")
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, int64(1000), result[0].ObservedAt)
		assert.Equal(t, int64(2000), result[1].ObservedAt)
		require.NotNil(t, result[1].Liquidity)
		assert.Equal(t, 5000.0, *result[1].Liquidity)
	})

	t.Run("NullableMetrics", func(t *testing.T) {
		result, err := store.GetByAddress(ctx, "m2")
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Nil(t, result[0].Liquidity)
		assert.Nil(t, result[0].Volume24h)
		assert.Nil(t, result[0].PriceUSD)
		assert.Equal(t, domain.SourcePump, result[0].Source)
	})

	t.Run("GetByTimeRange", func(t *testing.T) {
		result, err := store.GetByTimeRange(ctx, "m1", 1500, 2500)
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, int64(2000), result[0].ObservedAt)
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		require.NoError(t, store.InsertBulk(ctx, nil))
	})
}
