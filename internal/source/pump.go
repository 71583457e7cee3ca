package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"token-radar/internal/domain"
)

// DefaultPumpEndpoint is the Pump.fun latest-tokens listing endpoint.
const DefaultPumpEndpoint = "https://api.pump.fun/tokens/latest"

// PumpSource fetches new token listings from the Pump.fun API.
type PumpSource struct {
	endpoint string
	client   *http.Client
}

// NewPumpSource creates a Pump.fun source adapter.
// A nil client gets a default one with DefaultHTTPTimeout.
func NewPumpSource(endpoint string, client *http.Client) *PumpSource {
	if endpoint == "" {
		endpoint = DefaultPumpEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &PumpSource{endpoint: endpoint, client: client}
}

// Compile-time interface check.
var _ Source = (*PumpSource)(nil)

// Name identifies the venue.
func (s *PumpSource) Name() domain.Source {
	return domain.SourcePump
}

// pumpToken is the subset of the latest-tokens response the adapter reads.
type pumpToken struct {
	Address   string   `json:"address"`
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name"`
	Decimals  int      `json:"decimals"`
	LogoURI   *string  `json:"logoURI"`
	CreatedAt flexTime `json:"createdAt"`
	Liquidity *float64 `json:"liquidity"`
	Price     *float64 `json:"price"`
}

// FetchCandidates returns listings created strictly after since (Unix ms).
func (s *PumpSource) FetchCandidates(ctx context.Context, since int64) ([]*domain.TokenListing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build pump request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch pump tokens: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pump tokens: unexpected status %d", resp.StatusCode)
	}

	var tokens []pumpToken
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("decode pump tokens: %w", err)
	}

	var listings []*domain.TokenListing
	for _, token := range tokens {
		createdAt := token.CreatedAt.Millis()
		if createdAt <= since {
			continue
		}
		if !validAddress(token.Address) {
			continue
		}

		listings = append(listings, &domain.TokenListing{
			Address:   token.Address,
			Symbol:    token.Symbol,
			Name:      token.Name,
			Decimals:  token.Decimals,
			LogoURI:   token.LogoURI,
			CreatedAt: createdAt,
			Liquidity: token.Liquidity,
			PriceUSD:  token.Price,
			Source:    domain.SourcePump,
		})
	}

	return listings, nil
}
