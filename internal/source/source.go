// Package source contains upstream listing source adapters.
// Each adapter maps one venue's API response shape into the common
// TokenListing shape and filters by the caller's recency watermark.
package source

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/mr-tron/base58"

	"token-radar/internal/domain"
)

// Source provides candidate token listings from one upstream venue.
// Implementations are interchangeable; additional venues plug into the
// poller without changing its orchestration logic.
type Source interface {
	// Name identifies the venue for provenance and logging.
	Name() domain.Source

	// FetchCandidates returns listings whose source-reported creation time
	// is strictly greater than since (Unix ms). Candidates may carry missing
	// optional fields; malformed items are dropped, not surfaced as errors.
	FetchCandidates(ctx context.Context, since int64) ([]*domain.TokenListing, error)
}

// DefaultHTTPTimeout bounds one upstream request.
const DefaultHTTPTimeout = 15 * time.Second

// validAddress reports whether s decodes as a 32-byte base58 account key.
func validAddress(s string) bool {
	if s == "" {
		return false
	}
	decoded, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(decoded) == 32
}

// flexTime unmarshals a timestamp that upstream APIs report either as an
// RFC3339 string, unix seconds, or unix milliseconds. Zero means absent.
type flexTime int64

// UnmarshalJSON implements json.Unmarshaler.
func (t *flexTime) UnmarshalJSON(data []byte) error {
	*t = 0
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil // tolerate malformed values, item is dropped later
		}
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			*t = flexTime(parsed.UnixMilli())
			return nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			*t = fromUnixNumber(n)
		}
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return nil
	}
	if i, err := n.Int64(); err == nil {
		*t = fromUnixNumber(i)
		return nil
	}
	if f, err := n.Float64(); err == nil {
		*t = fromUnixNumber(int64(f))
	}
	return nil
}

// fromUnixNumber normalizes seconds vs milliseconds. Values before ~2001
// in milliseconds are treated as seconds.
func fromUnixNumber(n int64) flexTime {
	if n <= 0 {
		return 0
	}
	if n < 1_000_000_000_000 {
		return flexTime(n * 1000)
	}
	return flexTime(n)
}

// Millis returns the timestamp in Unix milliseconds, 0 when absent.
func (t flexTime) Millis() int64 {
	return int64(t)
}
