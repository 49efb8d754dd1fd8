package events

import (
	"encoding/json"
	"time"
)

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// PriceUpdatedData contains data for PriceUpdated events
type PriceUpdatedData struct {
	Symbol string   `json:"symbol,omitempty"` // empty for batch syncs
	Price  *float64 `json:"price,omitempty"`
	Stored int      `json:"stored"` // rows written
	Source string   `json:"source"` // "sync" or "stream"
}

// EventType returns the event type for PriceUpdatedData
func (d *PriceUpdatedData) EventType() EventType {
	return PriceUpdated
}

// SettingsChangedData contains data for SettingsChanged events
type SettingsChangedData struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// EventType returns the event type for SettingsChangedData
func (d *SettingsChangedData) EventType() EventType {
	return SettingsChanged
}

// ScenariosChangedData contains data for ScenariosChanged events
type ScenariosChangedData struct {
	Action string `json:"action"` // "reload"
	Count  int    `json:"count"`
}

// EventType returns the event type for ScenariosChangedData
func (d *ScenariosChangedData) EventType() EventType {
	return ScenariosChanged
}

// AssessmentCompletedData contains data for AssessmentCompleted events
type AssessmentCompletedData struct {
	AssessmentID string  `json:"assessment_id"`
	PortfolioID  string  `json:"portfolio_id"`
	RiskGrade    string  `json:"risk_grade"`
	OverallScore float64 `json:"overall_score"`
	Degraded     bool    `json:"degraded"`
}

// EventType returns the event type for AssessmentCompletedData
func (d *AssessmentCompletedData) EventType() EventType {
	return AssessmentCompleted
}

// AlertsRaisedData contains data for AlertsRaised events
type AlertsRaisedData struct {
	AssessmentID string `json:"assessment_id,omitempty"`
	PortfolioID  string `json:"portfolio_id"`
	Count        int    `json:"count"`
	MaxSeverity  string `json:"max_severity"`
}

// EventType returns the event type for AlertsRaisedData
func (d *AlertsRaisedData) EventType() EventType {
	return AlertsRaised
}

// StreamStatusChangedData contains data for StreamStatusChanged events
type StreamStatusChangedData struct {
	Connected bool   `json:"connected"`
	Timestamp string `json:"timestamp"`
}

// EventType returns the event type for StreamStatusChangedData
func (d *StreamStatusChangedData) EventType() EventType {
	return StreamStatusChanged
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Destination string `json:"destination"` // "local" or "r2"
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// SystemStatusChangedData contains data for SystemStatusChanged events
type SystemStatusChangedData struct {
	Status    string `json:"status,omitempty"`
	Timestamp string `json:"timestamp"`
}

// EventType returns the event type for SystemStatusChangedData
func (d *SystemStatusChangedData) EventType() EventType {
	return SystemStatusChanged
}

// JobStatusData contains data for JobStarted, JobCompleted and JobFailed
// events
type JobStatusData struct {
	Type     EventType `json:"-"` // set by the emitter
	JobName  string    `json:"job_name"`
	Duration *float64  `json:"duration_seconds,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// EventType returns the event type for JobStatusData
func (d *JobStatusData) EventType() EventType {
	return d.Type
}

// EventWithData is an event envelope carrying a typed payload. Used where
// the payload type matters to the consumer (the SSE clients deserialize
// by event type).
type EventWithData struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Source    string    `json:"source"`
	Data      EventData `json:"data,omitempty"`
}

// MarshalJSON customizes JSON serialization for EventWithData
func (e *EventWithData) MarshalJSON() ([]byte, error) {
	type Alias EventWithData
	aux := &struct {
		*Alias
	}{
		Alias: (*Alias)(e),
	}
	return json.Marshal(aux)
}

// UnmarshalJSON customizes JSON deserialization for EventWithData
func (e *EventWithData) UnmarshalJSON(data []byte) error {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	// Unmarshal data based on event type
	if len(aux.Data) > 0 {
		var eventData EventData
		switch aux.Type {
		case PriceUpdated:
			eventData = &PriceUpdatedData{}
		case SettingsChanged:
			eventData = &SettingsChangedData{}
		case ScenariosChanged:
			eventData = &ScenariosChangedData{}
		case AssessmentCompleted:
			eventData = &AssessmentCompletedData{}
		case AlertsRaised:
			eventData = &AlertsRaisedData{}
		case StreamStatusChanged:
			eventData = &StreamStatusChangedData{}
		case BackupCompleted:
			eventData = &BackupCompletedData{}
		case SystemStatusChanged:
			eventData = &SystemStatusChangedData{}
		case JobStarted, JobCompleted, JobFailed:
			eventData = &JobStatusData{}
		default:
			// For unknown types, use raw map
			var rawData map[string]interface{}
			if err := json.Unmarshal(aux.Data, &rawData); err != nil {
				return err
			}
			eventData = &GenericEventData{Data: rawData}
		}

		if eventData != nil {
			if err := json.Unmarshal(aux.Data, eventData); err != nil {
				return err
			}
			e.Data = eventData
		}
	}

	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
