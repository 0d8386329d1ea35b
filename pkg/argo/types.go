// Package argo provides a client for the Argo Workflows HTTP API together
// with artifact discovery, artifact streaming, and workflow reconstruction.
package argo

// Workflow is the execution-status tree returned by the engine for one
// workflow run. Only the fields the connector reads are modeled; everything
// else is carried opaquely so the tree is never mutated.
type Workflow struct {
	Metadata Metadata       `json:"metadata"`
	Spec     map[string]any `json:"spec"`
	Status   Status         `json:"status"`
}

type Metadata struct {
	Name        string            `json:"name"`
	Namespace   string            `json:"namespace"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

type Status struct {
	Phase      string          `json:"phase"`
	StartedAt  string          `json:"startedAt,omitempty"`
	FinishedAt string          `json:"finishedAt,omitempty"`
	Nodes      map[string]Node `json:"nodes,omitempty"`
	// StoredWorkflowTemplateSpec is the fully resolved template the engine
	// actually ran, including template-level defaults.
	StoredWorkflowTemplateSpec map[string]any `json:"storedWorkflowTemplateSpec,omitempty"`
}

type Node struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName,omitempty"`
	Phase       string   `json:"phase"`
	FinishedAt  string   `json:"finishedAt,omitempty"`
	Outputs     *Outputs `json:"outputs,omitempty"`
}

type Outputs struct {
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// Artifact is one named output of a workflow node. Any of the optional
// fields may be absent on in-progress or partially recorded workflows.
type Artifact struct {
	Name       string      `json:"name"`
	Path       string      `json:"path,omitempty"`
	Deleted    bool        `json:"deleted,omitempty"`
	S3         *S3Artifact `json:"s3,omitempty"`
	ArtifactGC *ArtifactGC `json:"artifactGC,omitempty"`
}

type S3Artifact struct {
	Key string `json:"key"`
}

type ArtifactGC struct {
	Strategy string `json:"strategy,omitempty"`
}

// WorkflowSummary is one entry of a workflow listing.
type WorkflowSummary struct {
	Name       string `json:"name"`
	Namespace  string `json:"namespace"`
	Phase      string `json:"phase"`
	StartedAt  string `json:"startedAt,omitempty"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// Node phases reported by the engine.
const (
	PhaseSucceeded = "Succeeded"
	PhaseFailed    = "Failed"
	PhaseError     = "Error"
)

// Succeeded reports whether the workflow finished successfully.
func (w *Workflow) Succeeded() bool {
	return w.Status.Phase == PhaseSucceeded
}

// FailedNodes returns the names of nodes that finished in a failure phase,
// in no particular order.
func (w *Workflow) FailedNodes() []string {
	failed := make([]string, 0)

	for name, node := range w.Status.Nodes {
		if node.Phase == PhaseFailed || node.Phase == PhaseError {
			failed = append(failed, name)
		}
	}

	return failed
}
