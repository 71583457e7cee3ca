package memory

import (
	"context"
	"sort"
	"sync"

	"token-radar/internal/domain"
	"token-radar/internal/storage"
)

// ListingStore is an in-memory implementation of storage.ListingStore.
type ListingStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenListing // keyed by address
}

// NewListingStore creates a new in-memory listing store.
func NewListingStore() *ListingStore {
	return &ListingStore{
		data: make(map[string]*domain.TokenListing),
	}
}

// Verify interface compliance at compile time.
var _ storage.ListingStore = (*ListingStore)(nil)

// Exists reports whether a listing with the given address is persisted.
func (s *ListingStore) Exists(_ context.Context, address string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[address]
	return exists, nil
}

// Insert adds a new listing. Returns ErrDuplicateKey if address exists.
func (s *ListingStore) Insert(_ context.Context, l *domain.TokenListing) error {
	if l == nil || l.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[l.Address]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	listingCopy := *l
	s.data[l.Address] = &listingCopy
	return nil
}

// GetByAddress retrieves a listing by its address. Returns ErrNotFound if not exists.
func (s *ListingStore) GetByAddress(_ context.Context, address string) (*domain.TokenListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	listingCopy := *l
	return &listingCopy, nil
}

// GetRecent retrieves up to limit listings ordered by created_at DESC.
func (s *ListingStore) GetRecent(_ context.Context, limit int) ([]*domain.TokenListing, error) {
	if limit < 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TokenListing, 0, len(s.data))
	for _, l := range s.data {
		listingCopy := *l
		result = append(result, &listingCopy)
	}

	// Sort by created_at DESC, address ASC for determinism
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].Address < result[j].Address
	})

	if limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// GetBySource retrieves all listings from a given source, ordered by created_at DESC.
func (s *ListingStore) GetBySource(_ context.Context, source domain.Source) ([]*domain.TokenListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenListing
	for _, l := range s.data {
		if l.Source == source {
			listingCopy := *l
			result = append(result, &listingCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].Address < result[j].Address
	})

	return result, nil
}

// MaxCreatedAt returns the maximum created_at over all listings, or 0 if empty.
func (s *ListingStore) MaxCreatedAt(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max int64
	for _, l := range s.data {
		if l.CreatedAt > max {
			max = l.CreatedAt
		}
	}
	return max, nil
}

// Ping performs a lightweight round trip. Always succeeds for the in-memory store.
func (s *ListingStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return nil
}
