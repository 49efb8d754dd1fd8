// Package server provides the HTTP server and routing for Bastion.
package server

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/events"
	"github.com/aristath/bastion/internal/scheduler"
)

// StreamState reports market data stream health.
type StreamState interface {
	IsConnected() bool
	IsStale() bool
}

// JobLister reports scheduler job outcomes.
type JobLister interface {
	Statuses() []scheduler.JobStatus
}

// StatusMonitor periodically checks stream and job health and emits an
// event when the overall system status transitions
type StatusMonitor struct {
	eventBus *events.Bus
	stream   StreamState
	jobs     JobLister
	log      zerolog.Logger

	mu         sync.Mutex
	lastStatus string
}

// NewStatusMonitor creates a new status monitor
func NewStatusMonitor(
	eventBus *events.Bus,
	stream StreamState,
	jobs JobLister,
	log zerolog.Logger,
) *StatusMonitor {
	return &StatusMonitor{
		eventBus: eventBus,
		stream:   stream,
		jobs:     jobs,
		log:      log.With().Str("component", "status_monitor").Logger(),
	}
}

// Start begins periodic status monitoring
func (m *StatusMonitor) Start(interval time.Duration) {
	go m.monitor(interval)
}

// monitor runs the periodic monitoring loop
func (m *StatusMonitor) monitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Do initial check
	m.checkStatus()

	for range ticker.C {
		m.checkStatus()
	}
}

// checkStatus computes the overall status and emits an event on transitions
func (m *StatusMonitor) checkStatus() {
	status := m.currentStatus()

	m.mu.Lock()
	changed := status != m.lastStatus
	previous := m.lastStatus
	m.lastStatus = status
	m.mu.Unlock()

	if !changed {
		return
	}

	m.log.Info().
		Str("status", status).
		Str("previous", previous).
		Msg("System status changed")

	if m.eventBus != nil {
		m.eventBus.Emit(events.SystemStatusChanged, "status_monitor", map[string]interface{}{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// currentStatus derives the overall status from stream connectivity and
// recent job outcomes. A disconnected stream or a failing job means the
// engine still answers requests but may serve stale numbers.
func (m *StatusMonitor) currentStatus() string {
	if m.stream != nil && !m.stream.IsConnected() {
		return "degraded"
	}

	if m.jobs != nil {
		for _, st := range m.jobs.Statuses() {
			if st.LastError != "" {
				return "degraded"
			}
		}
	}

	return "healthy"
}
