package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/bastion/internal/events"
)

func TestEventsStreamDeliversEvents(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	h := NewEventsStreamHandler(bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/events/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(done)
	}()

	// Let the handler subscribe before emitting
	time.Sleep(50 * time.Millisecond)
	bus.Emit(events.AlertsRaised, "test", map[string]interface{}{"count": 2})
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after client disconnect")
	}

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	assert.Contains(t, body, `"type":"connected"`)
	assert.Contains(t, body, `"type":"alerts_raised"`)
	assert.Contains(t, body, `"source":"test"`)
}

func TestEventsStreamTypeFilter(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	h := NewEventsStreamHandler(bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/events/stream?types=alerts_raised", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	bus.Emit(events.PriceUpdated, "stream", map[string]interface{}{"symbol": "VWCE"})
	bus.Emit(events.AlertsRaised, "monitor", map[string]interface{}{"count": 1})
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after client disconnect")
	}

	body := rec.Body.String()
	assert.Contains(t, body, `"type":"alerts_raised"`)
	assert.NotContains(t, body, "price_updated")
}

func TestEventsStreamRejectsNonGET(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	h := NewEventsStreamHandler(bus, zerolog.Nop())

	req := httptest.NewRequest("POST", "/api/events/stream", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
