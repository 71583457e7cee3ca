package domain

// TokenListing represents a token's appearance on an upstream trading venue.
// Corresponds to token_listings table in PostgreSQL.
type TokenListing struct {
	Address      string   // PRIMARY KEY, token mint address
	Symbol       string   // display symbol, not unique
	Name         string   // display name, not unique
	Decimals     int      // on-chain decimal precision
	LogoURI      *string  // display image reference (nullable)
	CreatedAt    int64    // source-reported listing creation, Unix ms
	Liquidity    *float64 // source-reported liquidity in USD (nullable)
	Volume24h    *float64 // source-reported 24h volume in USD (nullable)
	PriceUSD     *float64 // source-reported price in USD (nullable)
	Source       Source   // raydium | pump
	DiscoveredAt int64    // assigned at persistence time, Unix ms
}
