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

// GameDiscoveredData contains data for GameDiscovered events
type GameDiscoveredData struct {
	GameID         string `json:"game_id"`
	PlayerCountry  string `json:"player_country,omitempty"`
	NumSnapshots   int    `json:"num_snapshots"`
	MostRecentDate string `json:"most_recent_date,omitempty"`
}

// EventType returns the event type for GameDiscoveredData
func (d *GameDiscoveredData) EventType() EventType {
	return GameDiscovered
}

// GameRemovedData contains data for GameRemoved events
type GameRemovedData struct {
	GameID string `json:"game_id"`
}

// EventType returns the event type for GameRemovedData
func (d *GameRemovedData) EventType() EventType {
	return GameRemoved
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

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Archive   string `json:"archive"`
	SizeBytes int64  `json:"size_bytes"`
	Remote    bool   `json:"remote"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// SnapshotServedData contains data for SnapshotServed events.
// Emitted whenever a rendered payload (galaxy view, ledger page, plot
// group) is delivered, so live clients know fresh data exists.
type SnapshotServedData struct {
	GameID string `json:"game_id"`
	Kind   string `json:"kind"`
	Cached bool   `json:"cached"`
}

// EventType returns the event type for SnapshotServedData
func (d *SnapshotServedData) EventType() EventType {
	return SnapshotServed
}

// JobStatusData contains data for job lifecycle events
type JobStatusData struct {
	JobID     string    `json:"job_id"`
	JobName   string    `json:"job_name"`
	Status    string    `json:"status"` // "started", "completed", "failed"
	Error     string    `json:"error,omitempty"`
	Duration  float64   `json:"duration,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventType returns the event type for JobStatusData
// Note: The actual event type is determined by the Status field
func (d *JobStatusData) EventType() EventType {
	switch d.Status {
	case "completed":
		return JobCompleted
	case "failed":
		return JobFailed
	default:
		return JobStarted
	}
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// EventWithData represents an event with typed data
type EventWithData struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// MarshalJSON customizes JSON serialization for EventWithData
func (e *EventWithData) MarshalJSON() ([]byte, error) {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
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

	if len(aux.Data) > 0 {
		var eventData EventData
		switch aux.Type {
		case GameDiscovered:
			eventData = &GameDiscoveredData{}
		case GameRemoved:
			eventData = &GameRemovedData{}
		case SettingsChanged:
			eventData = &SettingsChangedData{}
		case BackupCompleted:
			eventData = &BackupCompletedData{}
		case SnapshotServed:
			eventData = &SnapshotServedData{}
		case JobStarted, JobCompleted, JobFailed:
			eventData = &JobStatusData{}
		case ErrorOccurred:
			eventData = &ErrorEventData{}
		default:
			// For unknown types, use raw map
			var rawData map[string]interface{}
			if err := json.Unmarshal(aux.Data, &rawData); err != nil {
				return err
			}
			eventData = &GenericEventData{Type: aux.Type, Data: rawData}
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
