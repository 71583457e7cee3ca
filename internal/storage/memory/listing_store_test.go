package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"token-radar/internal/domain"
	"token-radar/internal/storage"
)

func TestListingStore_InsertAndGet(t *testing.T) {
	store := NewListingStore()
	ctx := context.Background()

	liq := 5000.0
	l := &domain.TokenListing{
		Address:      "mint123",
		Symbol:       "TEST",
		Name:         "Test Token",
		Decimals:     9,
		CreatedAt:    1704067200000,
		Liquidity:    &liq,
		Source:       domain.SourceRaydium,
		DiscoveredAt: 1704067260000,
	}

	if err := store.Insert(ctx, l); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByAddress(ctx, "mint123")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}

	if got.Address != l.Address {
		t.Errorf("Address mismatch: got %s, want %s", got.Address, l.Address)
	}
	if got.Symbol != l.Symbol {
		t.Errorf("Symbol mismatch: got %s, want %s", got.Symbol, l.Symbol)
	}
	if got.Liquidity == nil || *got.Liquidity != liq {
		t.Errorf("Liquidity mismatch: got %v, want %v", got.Liquidity, liq)
	}
}

func TestListingStore_DuplicateKey(t *testing.T) {
	store := NewListingStore()
	ctx := context.Background()

	l := &domain.TokenListing{
		Address:   "mint123",
		Symbol:    "TEST",
		CreatedAt: 1704067200000,
		Source:    domain.SourcePump,
	}

	if err := store.Insert(ctx, l); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	// Second insert must fail and leave the original untouched
	dup := *l
	dup.Symbol = "OTHER"
	err := store.Insert(ctx, &dup)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.GetByAddress(ctx, "mint123")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if got.Symbol != "TEST" {
		t.Errorf("Listing was overwritten: got symbol %s, want TEST", got.Symbol)
	}
}

func TestListingStore_Exists(t *testing.T) {
	store := NewListingStore()
	ctx := context.Background()

	ok, err := store.Exists(ctx, "mint123")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if ok {
		t.Error("Exists returned true for absent address")
	}

	l := &domain.TokenListing{Address: "mint123", CreatedAt: 1000, Source: domain.SourceRaydium}
	if err := store.Insert(ctx, l); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	ok, err = store.Exists(ctx, "mint123")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !ok {
		t.Error("Exists returned false for persisted address")
	}
}

func TestListingStore_NotFound(t *testing.T) {
	store := NewListingStore()
	ctx := context.Background()

	_, err := store.GetByAddress(ctx, "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListingStore_GetRecent(t *testing.T) {
	store := NewListingStore()
	ctx := context.Background()

	listings := []*domain.TokenListing{
		{Address: "m1", CreatedAt: 1000, Source: domain.SourceRaydium},
		{Address: "m2", CreatedAt: 3000, Source: domain.SourcePump},
		{Address: "m3", CreatedAt: 2000, Source: domain.SourceRaydium},
	}
	for _, l := range listings {
		if err := store.Insert(ctx, l); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetRecent(ctx, 2)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(result))
	}
	if result[0].Address != "m2" {
		t.Errorf("First result should be m2 (newest), got %s", result[0].Address)
	}
	if result[1].Address != "m3" {
		t.Errorf("Second result should be m3, got %s", result[1].Address)
	}
}

func TestListingStore_GetBySource(t *testing.T) {
	store := NewListingStore()
	ctx := context.Background()

	listings := []*domain.TokenListing{
		{Address: "m1", CreatedAt: 1000, Source: domain.SourceRaydium},
		{Address: "m2", CreatedAt: 2000, Source: domain.SourcePump},
		{Address: "m3", CreatedAt: 3000, Source: domain.SourceRaydium},
	}
	for _, l := range listings {
		if err := store.Insert(ctx, l); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetBySource(ctx, domain.SourceRaydium)
	if err != nil {
		t.Fatalf("GetBySource failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 raydium listings, got %d", len(result))
	}
	if result[0].Address != "m3" || result[1].Address != "m1" {
		t.Errorf("Wrong order: got %s, %s", result[0].Address, result[1].Address)
	}
}

func TestListingStore_MaxCreatedAt(t *testing.T) {
	store := NewListingStore()
	ctx := context.Background()

	// Empty store
	max, err := store.MaxCreatedAt(ctx)
	if err != nil {
		t.Fatalf("MaxCreatedAt failed: %v", err)
	}
	if max != 0 {
		t.Errorf("Expected 0 for empty store, got %d", max)
	}

	for _, l := range []*domain.TokenListing{
		{Address: "m1", CreatedAt: 100, Source: domain.SourceRaydium},
		{Address: "m2", CreatedAt: 200, Source: domain.SourcePump},
		{Address: "m3", CreatedAt: 150, Source: domain.SourceRaydium},
	} {
		if err := store.Insert(ctx, l); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	max, err = store.MaxCreatedAt(ctx)
	if err != nil {
		t.Fatalf("MaxCreatedAt failed: %v", err)
	}
	if max != 200 {
		t.Errorf("Expected 200, got %d", max)
	}
}

func TestListingStore_InvalidInput(t *testing.T) {
	store := NewListingStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(ctx, &domain.TokenListing{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty address, got %v", err)
	}
}

func TestListingStore_ConcurrentInsert(t *testing.T) {
	store := NewListingStore()
	ctx := context.Background()

	// Concurrent writers racing on the same address: exactly one must win.
	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := &domain.TokenListing{Address: "race", CreatedAt: 1000, Source: domain.SourcePump}
			if err := store.Insert(ctx, l); err == nil {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if inserted != 1 {
		t.Errorf("Expected exactly 1 successful insert, got %d", inserted)
	}
}

func TestListingStore_CopyOnRead(t *testing.T) {
	store := NewListingStore()
	ctx := context.Background()

	l := &domain.TokenListing{Address: "m1", Symbol: "A", CreatedAt: 1000, Source: domain.SourceRaydium}
	if err := store.Insert(ctx, l); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByAddress(ctx, "m1")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	got.Symbol = "MUTATED"

	again, err := store.GetByAddress(ctx, "m1")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if again.Symbol != "A" {
		t.Errorf("Stored listing was mutated through returned copy: got %s", again.Symbol)
	}
}
