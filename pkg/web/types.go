// Package web provides HTTP handlers and REST API endpoints for the connector.
package web

import (
	"github.com/biodt/argo-connector/pkg/argo"
	"github.com/biodt/argo-connector/pkg/models"
)

// SubmitWorkflowRequest represents the request body for submitting a
// workflow document to the engine.
type SubmitWorkflowRequest struct {
	Namespace string         `json:"namespace" validate:"required"`
	Kind      string         `json:"kind"      validate:"required,eq=Workflow"`
	Metadata  argo.Metadata  `json:"metadata"`
	Spec      map[string]any `json:"spec"      validate:"required"`
}

// Document converts the request into an engine document.
func (r *SubmitWorkflowRequest) Document() *argo.Document {
	return &argo.Document{
		Kind:     r.Kind,
		Metadata: r.Metadata,
		Spec:     r.Spec,
	}
}

// NotifyResponse is the accepted-notification body: the workflow summary and
// the artifacts queued for ingestion.
type NotifyResponse struct {
	Status            string             `json:"status"`
	RunID             string             `json:"run_id"`
	WorkflowStatus    string             `json:"workflow_status"`
	WorkflowName      string             `json:"workflow_name"`
	WorkflowNamespace string             `json:"workflow_namespace"`
	Artifacts         []ArtifactResponse `json:"artifacts"`
}

// ArtifactResponse is one discovered artifact in a notification response.
type ArtifactResponse struct {
	NodeID string `json:"node_id"`
	Path   string `json:"path"`
}

// TransformNotifyResponse builds the response for an accepted notification.
func TransformNotifyResponse(run *models.IngestionRun, wf *argo.Workflow, refs []argo.ArtifactRef) NotifyResponse {
	artifacts := make([]ArtifactResponse, 0, len(refs))
	for _, ref := range refs {
		artifacts = append(artifacts, ArtifactResponse{NodeID: ref.NodeID, Path: ref.Path})
	}

	return NotifyResponse{
		Status:            "accepted",
		RunID:             run.ID,
		WorkflowStatus:    wf.Status.Phase,
		WorkflowName:      wf.Metadata.Name,
		WorkflowNamespace: wf.Metadata.Namespace,
		Artifacts:         artifacts,
	}
}
