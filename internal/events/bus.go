// Package events provides the in-process publish/subscribe bus that links
// the engine's modules: market data sync raises PriceUpdated, the
// assessment pipeline raises AssessmentCompleted and AlertsRaised, and the
// SSE stream forwards everything to connected clients.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies a class of event on the bus
type EventType string

const (
	// PriceUpdated - market data sync or stream stored fresh prices
	PriceUpdated EventType = "price_updated"
	// SettingsChanged - a setting was updated through the API
	SettingsChanged EventType = "settings_changed"
	// ScenariosChanged - the stress scenario catalog was modified
	ScenariosChanged EventType = "scenarios_changed"
	// AssessmentCompleted - a risk assessment was produced and persisted
	AssessmentCompleted EventType = "assessment_completed"
	// AlertsRaised - the threshold monitor found at least one breach
	AlertsRaised EventType = "alerts_raised"
	// StreamStatusChanged - market data websocket connected or dropped
	StreamStatusChanged EventType = "stream_status_changed"
	// BackupCompleted - a database backup finished
	BackupCompleted EventType = "backup_completed"
	// SystemStatusChanged - overall system health transitioned
	SystemStatusChanged EventType = "system_status_changed"
	// JobStarted, JobCompleted, JobFailed - scheduler job lifecycle
	JobStarted   EventType = "job_started"
	JobCompleted EventType = "job_completed"
	JobFailed    EventType = "job_failed"
)

// Event is the envelope delivered to subscribers
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Handler receives events; it must not block for long since all handlers
// for an event run before Emit returns
type Handler func(*Event)

// Bus is a synchronous in-process event bus. Subscribing and emitting are
// safe for concurrent use; a panicking handler is recovered and logged so
// one bad subscriber cannot take down an emitter.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      map[int]Handler
	nextID   int
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		all:      make(map[int]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for one event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll registers a handler for every event type and returns a
// function that removes it again. Used by the SSE stream, which filters
// client-side and unsubscribes when the client disconnects.
func (b *Bus) SubscribeAll(handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.all[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.all, id)
		b.mu.Unlock()
	}
}

// Emit publishes an event to all matching subscribers
func (b *Bus) Emit(eventType EventType, source string, data map[string]interface{}) {
	event := &Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Source:    source,
		Data:      data,
	}

	b.mu.RLock()
	typed := b.handlers[eventType]
	all := make([]Handler, 0, len(b.all))
	for _, handler := range b.all {
		all = append(all, handler)
	}
	b.mu.RUnlock()

	for _, handler := range typed {
		b.dispatch(handler, event)
	}
	for _, handler := range all {
		b.dispatch(handler, event)
	}
}

func (b *Bus) dispatch(handler Handler, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Interface("panic", r).
				Str("event_type", string(event.Type)).
				Msg("Event handler panicked")
		}
	}()
	handler(event)
}
