// Package models defines the connector's domain records.
package models

import "time"

// RunStatus is the lifecycle state of one ingestion run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// IngestionRun records one attempt to ingest a finished workflow into the
// repository. Runs are independent of each other; the record exists for
// operators and for the reconciliation sweep.
type IngestionRun struct {
	ID            string     `json:"id"`
	Namespace     string     `json:"namespace"`
	WorkflowName  string     `json:"workflow_name"`
	Status        RunStatus  `json:"status"`
	DatasetID     string     `json:"dataset_id,omitempty"`
	Error         string     `json:"error,omitempty"`
	ArtifactCount int        `json:"artifact_count"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Finished reports whether the run reached a terminal state.
func (r *IngestionRun) Finished() bool {
	return r.Status == RunStatusSucceeded || r.Status == RunStatusFailed
}
