// Package events defines event types for ingestion lifecycle notifications.
package events

import "time"

type EventType string

// Topic carries all ingestion lifecycle events.
const Topic = "argo-connector.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	IngestionStartedEvent   EventType = "ingestion.started"
	IngestionCompletedEvent EventType = "ingestion.completed"
	IngestionFailedEvent    EventType = "ingestion.failed"
)

type BaseEvent struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	RunID        string    `json:"run_id"`
	Namespace    string    `json:"namespace"`
	WorkflowName string    `json:"workflow_name"`
}

type IngestionStarted struct {
	BaseEvent

	ArtifactCount int `json:"artifact_count"`
}

func (e IngestionStarted) GetType() EventType {
	return IngestionStartedEvent
}

type IngestionCompleted struct {
	BaseEvent

	DatasetID string        `json:"dataset_id"`
	Duration  time.Duration `json:"duration"`
}

func (e IngestionCompleted) GetType() EventType {
	return IngestionCompletedEvent
}

type IngestionFailed struct {
	BaseEvent

	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e IngestionFailed) GetType() EventType {
	return IngestionFailedEvent
}
