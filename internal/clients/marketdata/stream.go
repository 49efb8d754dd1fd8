package marketdata

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/bastion/internal/events"
	"github.com/aristath/bastion/internal/modules/history"
)

const (
	// WebSocket connection constants
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	// Reconnection constants
	baseReconnectDelay   = 5 * time.Second
	maxReconnectDelay    = 5 * time.Minute
	maxReconnectAttempts = 10

	// Stream staleness threshold
	streamStaleThreshold = 5 * time.Minute
)

// BarSink receives bars pushed by the stream.
// Implemented by history.SyncService.
type BarSink interface {
	RecordBar(symbol string, bar history.DailyPrice) error
}

// streamBar is a daily bar as pushed on the websocket bars channel.
type streamBar struct {
	Symbol string   `json:"symbol"`
	Date   string   `json:"date"`
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume *float64 `json:"volume,omitempty"`
}

// PriceStream maintains a websocket subscription to the daily bars channel
// and writes pushed bars straight into price history.
type PriceStream struct {
	// Connection
	url        string
	symbols    []string
	httpClient *http.Client // Reusable HTTP client configured for HTTP/1.1
	conn       *websocket.Conn
	connCtx    context.Context    // Connection context (cancelled on disconnect)
	cancelFunc context.CancelFunc // For cancelling the connection context
	mu         sync.RWMutex

	// Dependencies
	sink     BarSink
	eventBus *events.Bus
	log      zerolog.Logger

	// State
	connected    bool
	reconnecting bool
	stopChan     chan struct{}
	stopped      bool

	// Last close per symbol (thread-safe)
	lastCloses map[string]float64
	lastUpdate time.Time
	cacheMu    sync.RWMutex
}

// createHTTP1Client creates an HTTP client that forces HTTP/1.1.
// The feed sits behind a CDN that negotiates HTTP/2 via TLS ALPN,
// but WebSocket requires HTTP/1.1 for the upgrade handshake.
func createHTTP1Client() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig: &tls.Config{
				NextProtos: []string{"http/1.1"},
			},
			ForceAttemptHTTP2: false,
		},
	}
}

// NewPriceStream creates a new price stream client subscribed to the given symbols.
func NewPriceStream(url string, symbols []string, sink BarSink, eventBus *events.Bus, log zerolog.Logger) *PriceStream {
	return &PriceStream{
		url:        url,
		symbols:    symbols,
		httpClient: createHTTP1Client(),
		sink:       sink,
		eventBus:   eventBus,
		log:        log.With().Str("component", "price_stream").Logger(),
		lastCloses: make(map[string]float64),
		stopChan:   make(chan struct{}),
	}
}

// Start initializes the WebSocket connection and starts the read loop
func (ps *PriceStream) Start() error {
	ps.log.Info().Int("symbols", len(ps.symbols)).Msg("Starting price stream client")

	if err := ps.Connect(); err != nil {
		ps.log.Warn().Err(err).Msg("Initial stream connection failed, will retry in background")
		go ps.reconnectLoop()
		return err
	}

	ps.mu.RLock()
	ctx := ps.connCtx
	ps.mu.RUnlock()
	go ps.readMessages(ctx)

	ps.log.Info().Msg("Price stream client started successfully")
	return nil
}

// Stop gracefully shuts down the WebSocket connection
func (ps *PriceStream) Stop() error {
	ps.mu.Lock()
	if ps.stopped {
		ps.mu.Unlock()
		return nil
	}
	ps.stopped = true
	ps.mu.Unlock()

	ps.log.Info().Msg("Stopping price stream client")

	close(ps.stopChan)
	return ps.Disconnect()
}

// Connect establishes the WebSocket connection and subscribes to the bars channel
func (ps *PriceStream) Connect() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.log.Info().Str("url", ps.url).Msg("Connecting to market data stream")

	dialCtx, dialCancel := context.WithTimeout(context.Background(), dialTimeout)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, ps.url, &websocket.DialOptions{
		HTTPClient: ps.httpClient,
	})
	if err != nil {
		return fmt.Errorf("failed to dial WebSocket: %w", err)
	}

	// Long-lived context for the connection, cancelled on disconnect
	connCtx, connCancel := context.WithCancel(context.Background())
	ps.conn = conn
	ps.connCtx = connCtx
	ps.cancelFunc = connCancel
	ps.connected = true

	if err := ps.subscribe(connCtx); err != nil {
		connCancel()
		conn.Close(websocket.StatusNormalClosure, "subscribe failed")
		ps.conn = nil
		ps.connCtx = nil
		ps.cancelFunc = nil
		ps.connected = false
		return fmt.Errorf("failed to subscribe to bars: %w", err)
	}

	ps.emitStatus(true)
	ps.log.Info().Msg("Successfully connected to market data stream")
	return nil
}

// Disconnect closes the WebSocket connection
func (ps *PriceStream) Disconnect() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.conn == nil {
		return nil
	}

	ps.log.Info().Msg("Disconnecting from market data stream")

	// Cancel the connection context to unblock any pending Read operations
	if ps.cancelFunc != nil {
		ps.cancelFunc()
		ps.cancelFunc = nil
	}

	err := ps.conn.Close(websocket.StatusNormalClosure, "")

	ps.conn = nil
	ps.connCtx = nil
	ps.connected = false
	ps.emitStatus(false)

	if err != nil {
		return fmt.Errorf("error closing WebSocket: %w", err)
	}
	return nil
}

// subscribe sends the subscription frame for the bars channel.
// Stream protocol: ["bars", "SYM1", "SYM2", ...]
func (ps *PriceStream) subscribe(ctx context.Context) error {
	subscribeMsg := append([]string{"bars"}, ps.symbols...)

	data, err := json.Marshal(subscribeMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription message: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	if err := ps.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to send subscription message: %w", err)
	}

	ps.log.Info().Int("symbols", len(ps.symbols)).Msg("Subscribed to bars channel")
	return nil
}

// readMessages continuously reads messages from the WebSocket
func (ps *PriceStream) readMessages(ctx context.Context) {
	defer func() {
		ps.log.Info().Msg("Read loop stopped")
		// Attempt reconnection if not intentionally stopped
		ps.mu.RLock()
		stopped := ps.stopped
		ps.mu.RUnlock()
		if !stopped {
			go ps.reconnectLoop()
		}
	}()

	for {
		select {
		case <-ps.stopChan:
			return
		case <-ctx.Done():
			ps.log.Debug().Msg("Read loop context cancelled")
			return
		default:
		}

		ps.mu.RLock()
		conn := ps.conn
		ps.mu.RUnlock()

		if conn == nil {
			ps.log.Warn().Msg("Connection is nil, stopping read loop")
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				ps.log.Info().Int("status", int(closeStatus)).Msg("WebSocket closed normally")
			} else if ctx.Err() != nil {
				ps.log.Debug().Msg("Read cancelled by context")
			} else {
				ps.log.Error().Err(err).Msg("Unexpected WebSocket read error")
			}
			return
		}

		if msgType != websocket.MessageText {
			ps.log.Debug().Int("type", int(msgType)).Msg("Ignoring non-text message")
			continue
		}

		if err := ps.handleMessage(message); err != nil {
			ps.log.Error().Err(err).Str("message", string(message)).Msg("Failed to handle stream message")
			// Continue reading despite parse errors
		}
	}
}

// handleMessage parses and processes stream messages.
// Stream protocol: ["channel", data]
func (ps *PriceStream) handleMessage(message []byte) error {
	var rawMessage []json.RawMessage
	if err := json.Unmarshal(message, &rawMessage); err != nil {
		return fmt.Errorf("failed to parse message array: %w", err)
	}

	if len(rawMessage) < 2 {
		return fmt.Errorf("message array too short: expected 2 elements, got %d", len(rawMessage))
	}

	var channel string
	if err := json.Unmarshal(rawMessage[0], &channel); err != nil {
		return fmt.Errorf("failed to parse channel: %w", err)
	}

	if channel != "bars" {
		ps.log.Debug().Str("channel", channel).Msg("Ignoring non-bars message")
		return nil
	}

	var bar streamBar
	if err := json.Unmarshal(rawMessage[1], &bar); err != nil {
		return fmt.Errorf("failed to parse bar data: %w", err)
	}

	return ps.handleBarUpdate(bar)
}

// handleBarUpdate validates a pushed bar, persists it, and emits PriceUpdated.
func (ps *PriceStream) handleBarUpdate(bar streamBar) error {
	if bar.Symbol == "" || bar.Date == "" || bar.Close <= 0 {
		ps.log.Warn().
			Str("symbol", bar.Symbol).
			Str("date", bar.Date).
			Float64("close", bar.Close).
			Msg("Discarding invalid bar from stream")
		return nil
	}

	if ps.sink != nil {
		daily := history.DailyPrice{
			Date:   bar.Date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		}
		if err := ps.sink.RecordBar(bar.Symbol, daily); err != nil {
			ps.log.Error().Err(err).Str("symbol", bar.Symbol).Msg("Failed to persist streamed bar")
		}
	}

	ps.cacheMu.Lock()
	ps.lastCloses[bar.Symbol] = bar.Close
	ps.lastUpdate = time.Now()
	ps.cacheMu.Unlock()

	ps.log.Debug().
		Str("symbol", bar.Symbol).
		Str("date", bar.Date).
		Float64("close", bar.Close).
		Msg("Processed streamed bar")

	if ps.eventBus != nil {
		price := bar.Close
		ps.eventBus.Emit(events.PriceUpdated, "price_stream", map[string]interface{}{
			"symbol": bar.Symbol,
			"price":  price,
			"stored": 1,
			"source": "stream",
		})
	}
	return nil
}

// emitStatus publishes the stream connection state.
func (ps *PriceStream) emitStatus(connected bool) {
	if ps.eventBus == nil {
		return
	}
	ps.eventBus.Emit(events.StreamStatusChanged, "price_stream", map[string]interface{}{
		"connected": connected,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// reconnectLoop handles automatic reconnection with exponential backoff
func (ps *PriceStream) reconnectLoop() {
	ps.mu.Lock()
	if ps.reconnecting || ps.stopped {
		ps.mu.Unlock()
		return
	}
	ps.reconnecting = true
	ps.mu.Unlock()

	defer func() {
		ps.mu.Lock()
		ps.reconnecting = false
		ps.mu.Unlock()
	}()

	attempt := 0
	for {
		select {
		case <-ps.stopChan:
			ps.log.Info().Msg("Reconnection loop stopped by user")
			return
		default:
		}

		ps.mu.RLock()
		stopped := ps.stopped
		ps.mu.RUnlock()
		if stopped {
			return
		}

		attempt++

		delay := ps.calculateBackoff(attempt)

		if attempt <= maxReconnectAttempts {
			ps.log.Info().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Attempting to reconnect to stream")
		} else {
			ps.log.Warn().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Reconnection attempt (exceeded max attempts, will keep retrying)")
		}

		select {
		case <-time.After(delay):
		case <-ps.stopChan:
			return
		}

		if err := ps.Connect(); err != nil {
			ps.log.Error().Err(err).
				Int("attempt", attempt).
				Msg("Reconnection failed")
			continue
		}

		ps.log.Info().
			Int("attempt", attempt).
			Msg("Successfully reconnected to stream")

		// Reset attempt counter on successful connection
		attempt = 0

		ps.mu.RLock()
		ctx := ps.connCtx
		ps.mu.RUnlock()
		go ps.readMessages(ctx)
		return
	}
}

// calculateBackoff calculates exponential backoff delay
func (ps *PriceStream) calculateBackoff(attempt int) time.Duration {
	// Exponential backoff: baseDelay * 2^attempt, capped
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}
	return time.Duration(delay)
}

// LastClose returns the most recent streamed close for a symbol (thread-safe)
func (ps *PriceStream) LastClose(symbol string) (float64, bool) {
	ps.cacheMu.RLock()
	defer ps.cacheMu.RUnlock()

	c, exists := ps.lastCloses[symbol]
	return c, exists
}

// LastCloses returns all streamed closes (thread-safe)
func (ps *PriceStream) LastCloses() map[string]float64 {
	ps.cacheMu.RLock()
	defer ps.cacheMu.RUnlock()

	result := make(map[string]float64, len(ps.lastCloses))
	for k, v := range ps.lastCloses {
		result[k] = v
	}
	return result
}

// IsStale checks if the stream hasn't delivered a bar recently
func (ps *PriceStream) IsStale() bool {
	ps.cacheMu.RLock()
	defer ps.cacheMu.RUnlock()

	if ps.lastUpdate.IsZero() {
		return true
	}
	return time.Since(ps.lastUpdate) > streamStaleThreshold
}

// IsConnected returns current connection status
func (ps *PriceStream) IsConnected() bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.connected
}
