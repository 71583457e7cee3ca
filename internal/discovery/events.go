package discovery

import "token-radar/internal/domain"

// Status tags one poller update.
type Status string

const (
	// StatusPolling is emitted when a cycle starts.
	StatusPolling Status = "polling"
	// StatusWaiting is emitted after a successful cycle when the next one is armed.
	StatusWaiting Status = "waiting"
	// StatusDisabled is emitted after the single cycle when auto-refresh is off.
	StatusDisabled Status = "disabled"
	// StatusError is emitted when a cycle fails.
	StatusError Status = "error"
)

// Update is one poller notification. Delivery is fire-and-forget: consumers
// must treat updates as eventually-consistent notifications, never as
// synchronous query responses.
type Update struct {
	Status Status
	// Tokens carries the cycle's admitted batch on StatusWaiting/StatusDisabled,
	// whether or not each item was newly inserted.
	Tokens []*domain.TokenListing
	// Err describes the failure on StatusError.
	Err string
}
