package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"token-radar/internal/domain"
)

// DefaultRaydiumEndpoint is the Raydium pairs listing endpoint.
const DefaultRaydiumEndpoint = "https://api.raydium.io/v2/main/pairs"

// RaydiumSource fetches new token listings from the Raydium pairs API.
type RaydiumSource struct {
	endpoint string
	client   *http.Client
}

// NewRaydiumSource creates a Raydium source adapter.
// A nil client gets a default one with DefaultHTTPTimeout.
func NewRaydiumSource(endpoint string, client *http.Client) *RaydiumSource {
	if endpoint == "" {
		endpoint = DefaultRaydiumEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &RaydiumSource{endpoint: endpoint, client: client}
}

// Compile-time interface check.
var _ Source = (*RaydiumSource)(nil)

// Name identifies the venue.
func (s *RaydiumSource) Name() domain.Source {
	return domain.SourceRaydium
}

// raydiumPair is the subset of the pairs response the adapter reads.
type raydiumPair struct {
	TokenB struct {
		Mint     string `json:"mint"`
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Decimals int    `json:"decimals"`
	} `json:"tokenB"`
	AddedTime flexTime `json:"addedTime"`
	Liquidity *float64 `json:"liquidity"`
	Volume24h *float64 `json:"volume24h"`
	Price     *float64 `json:"price"`
}

// raydiumResponse wraps the pairs array.
type raydiumResponse struct {
	Data []raydiumPair `json:"data"`
}

// FetchCandidates returns listings created strictly after since (Unix ms).
func (s *RaydiumSource) FetchCandidates(ctx context.Context, since int64) ([]*domain.TokenListing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build raydium request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch raydium pairs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("raydium pairs: unexpected status %d", resp.StatusCode)
	}

	var payload raydiumResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode raydium pairs: %w", err)
	}

	var listings []*domain.TokenListing
	for _, pair := range payload.Data {
		createdAt := pair.AddedTime.Millis()
		if createdAt <= since {
			continue
		}
		if !validAddress(pair.TokenB.Mint) {
			continue
		}

		listings = append(listings, &domain.TokenListing{
			Address:   pair.TokenB.Mint,
			Symbol:    pair.TokenB.Symbol,
			Name:      pair.TokenB.Name,
			Decimals:  pair.TokenB.Decimals,
			CreatedAt: createdAt,
			Liquidity: pair.Liquidity,
			Volume24h: pair.Volume24h,
			PriceUSD:  pair.Price,
			Source:    domain.SourceRaydium,
		})
	}

	return listings, nil
}
