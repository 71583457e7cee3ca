package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"token-radar/internal/domain"
)

// DefaultPumpLiveEndpoint is the Pump.fun live data feed.
const DefaultPumpLiveEndpoint = "wss://pumpportal.fun/api/data"

// PumpLiveConfig configures the live feed connection.
type PumpLiveConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// BufferLimit caps buffered events between fetches; oldest are dropped.
	BufferLimit int
}

// DefaultPumpLiveConfig returns default live feed configuration.
func DefaultPumpLiveConfig() PumpLiveConfig {
	return PumpLiveConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		BufferLimit:       1024,
	}
}

// PumpLiveSource consumes the Pump.fun new-token event stream over WebSocket
// and serves buffered events through the pull-based Source contract, so the
// poller treats it like any other venue adapter.
type PumpLiveSource struct {
	endpoint string
	config   PumpLiveConfig
	logger   *log.Logger

	mu  sync.Mutex
	buf []*domain.TokenListing

	started atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewPumpLiveSource creates a live feed source. Start must be called before
// the source yields candidates.
func NewPumpLiveSource(endpoint string, config *PumpLiveConfig, logger *log.Logger) *PumpLiveSource {
	if endpoint == "" {
		endpoint = DefaultPumpLiveEndpoint
	}
	cfg := DefaultPumpLiveConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}
	return &PumpLiveSource{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Compile-time interface check.
var _ Source = (*PumpLiveSource)(nil)

// Name identifies the venue.
func (s *PumpLiveSource) Name() domain.Source {
	return domain.SourcePump
}

// Start connects to the feed and begins buffering events.
// It returns after the first successful dial; the read loop reconnects
// with exponential backoff until Close is called.
func (s *PumpLiveSource) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("pump live source already started")
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect pump live feed: %w", err)
	}

	s.wg.Add(1)
	go s.readLoop(conn)
	return nil
}

// Close stops the read loop and drops the connection.
func (s *PumpLiveSource) Close() error {
	if !s.started.Load() {
		return nil
	}
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.wg.Wait()
	return nil
}

// dial opens the connection and subscribes to new-token events.
func (s *PumpLiveSource) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return nil, err
	}

	sub := map[string]string{"method": "subscribeNewToken"}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe new tokens: %w", err)
	}

	return conn, nil
}

// readLoop consumes events until Close, reconnecting on failures.
func (s *PumpLiveSource) readLoop(conn *websocket.Conn) {
	defer s.wg.Done()
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	delay := s.config.ReconnectDelay

	for {
		select {
		case <-s.done:
			return
		default:
		}

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(delay):
			}

			var err error
			conn, err = s.dial(context.Background())
			if err != nil {
				s.logger.Printf("pump live: reconnect failed: %v", err)
				delay *= 2
				if delay > s.config.MaxReconnectDelay {
					delay = s.config.MaxReconnectDelay
				}
				continue
			}
			s.logger.Printf("pump live: reconnected")
			delay = s.config.ReconnectDelay
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.logger.Printf("pump live: read error: %v", err)
			conn.Close()
			conn = nil
			continue
		}

		s.handleMessage(msg)
	}
}

// pumpLiveEvent is a new-token creation event from the feed.
type pumpLiveEvent struct {
	TxType    string   `json:"txType"`
	Mint      string   `json:"mint"`
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name"`
	URI       *string  `json:"uri"`
	Timestamp flexTime `json:"timestamp"`
}

// handleMessage maps one feed message into the buffer. Non-creation
// messages and malformed events are ignored.
func (s *PumpLiveSource) handleMessage(msg []byte) {
	var event pumpLiveEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		return
	}
	if event.TxType != "" && event.TxType != "create" {
		return
	}
	if !validAddress(event.Mint) {
		return
	}

	createdAt := event.Timestamp.Millis()
	if createdAt == 0 {
		// Feed events carry no creation time; receipt time is the best bound.
		createdAt = time.Now().UnixMilli()
	}

	listing := &domain.TokenListing{
		Address:   event.Mint,
		Symbol:    event.Symbol,
		Name:      event.Name,
		Decimals:  6, // pump.fun mints are uniformly 6 decimals
		LogoURI:   event.URI,
		CreatedAt: createdAt,
		Source:    domain.SourcePump,
	}

	s.mu.Lock()
	s.buf = append(s.buf, listing)
	if over := len(s.buf) - s.config.BufferLimit; over > 0 {
		s.buf = s.buf[over:]
	}
	s.mu.Unlock()
}

// FetchCandidates drains buffered events created strictly after since (Unix ms).
func (s *PumpLiveSource) FetchCandidates(_ context.Context, since int64) ([]*domain.TokenListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var listings []*domain.TokenListing
	for _, l := range s.buf {
		if l.CreatedAt > since {
			listings = append(listings, l)
		}
	}
	s.buf = s.buf[:0]

	return listings, nil
}
