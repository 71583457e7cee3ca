package domain

// MarketSnapshot is one per-cycle observation of an admitted listing's
// source-reported market metrics.
// Corresponds to market_snapshots table in ClickHouse.
type MarketSnapshot struct {
	Address    string   // token mint address
	ObservedAt int64    // Unix timestamp in milliseconds
	Liquidity  *float64 // liquidity in USD (nullable)
	Volume24h  *float64 // 24h volume in USD (nullable)
	PriceUSD   *float64 // price in USD (nullable)
	Source     Source   // venue that reported the metrics
}
