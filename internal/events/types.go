// Package events provides event management functionality.
package events

// EventType represents different event types
type EventType string

const (
	// Registry lifecycle
	GameDiscovered EventType = "GAME_DISCOVERED"
	GameRemoved    EventType = "GAME_REMOVED"

	// Runtime configuration
	SettingsChanged EventType = "SETTINGS_CHANGED"

	// Scheduled job lifecycle
	JobStarted   EventType = "JOB_STARTED"
	JobCompleted EventType = "JOB_COMPLETED"
	JobFailed    EventType = "JOB_FAILED"

	// Reliability
	BackupCompleted EventType = "BACKUP_COMPLETED"

	// Presentation layer activity, used by the live galaxy view
	SnapshotServed EventType = "SNAPSHOT_SERVED"

	ErrorOccurred EventType = "ERROR_OCCURRED"
)
