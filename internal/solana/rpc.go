// Package solana provides a minimal Solana JSON-RPC HTTP client used for
// chain connectivity checks and token supply lookups.
package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface.
type RPCClient interface {
	// GetHealth reports node health. A healthy node returns nil.
	GetHealth(ctx context.Context) error

	// GetVersion retrieves the node's software version.
	GetVersion(ctx context.Context) (*Version, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)

	// GetTokenSupply retrieves the total supply of an SPL token mint.
	GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error)
}

// Version describes the RPC node's software.
type Version struct {
	SolanaCore string
	FeatureSet uint64
}

// TokenSupply is the total supply of an SPL token mint.
type TokenSupply struct {
	Amount   string // raw amount as a decimal string
	Decimals int
	UIAmount float64
}
