package argo

import (
	"path"
	"sort"
	"strings"
)

// ArtifactRef identifies one durable workflow output. NodeID and Name
// together determine the retrieval URL; Path is the artifact's relative
// location inside the node's output folder.
type ArtifactRef struct {
	NodeID string
	Name   string
	Path   string
}

// consoleLogArtifact is the engine's own console-log capture. Its reported
// path reflects the container filesystem, not the final storage layout.
const (
	consoleLogArtifact = "main-logs"
	consoleLogPath     = "main.log"
)

// ListArtifacts walks the status tree and returns the workflow's durable
// outputs in deterministic node order.
//
// Artifacts staged for cross-step caching live under a storage key that does
// not contain the workflow's name and are excluded, as are artifacts already
// deleted or scheduled for garbage collection. Missing or malformed fields
// mean "not a durable output": the walk never fails, so partial trees of
// in-progress workflows are handled gracefully.
func ListArtifacts(wf *Workflow) []ArtifactRef {
	refs := make([]ArtifactRef, 0)

	if wf == nil || wf.Metadata.Name == "" {
		return refs
	}

	nodeIDs := make([]string, 0, len(wf.Status.Nodes))
	for nodeID := range wf.Status.Nodes {
		nodeIDs = append(nodeIDs, nodeID)
	}

	sort.Strings(nodeIDs)

	for _, nodeID := range nodeIDs {
		node := wf.Status.Nodes[nodeID]
		if node.Outputs == nil {
			continue
		}

		for _, artifact := range node.Outputs.Artifacts {
			if !isDurableOutput(wf.Metadata.Name, artifact) {
				continue
			}

			relPath := artifact.Path
			if artifact.Name == consoleLogArtifact {
				relPath = consoleLogPath
			}

			refs = append(refs, ArtifactRef{
				NodeID: nodeID,
				Name:   artifact.Name,
				Path:   relPath,
			})
		}
	}

	return refs
}

func isDurableOutput(workflowName string, artifact Artifact) bool {
	if artifact.S3 == nil || !strings.Contains(artifact.S3.Key, workflowName) {
		return false
	}

	if artifact.Deleted {
		return false
	}

	if artifact.ArtifactGC != nil && artifact.ArtifactGC.Strategy != "" &&
		artifact.ArtifactGC.Strategy != "Never" {
		return false
	}

	return true
}

// relativePath joins a node ID with an artifact path, stripping any leading
// separator so the result is always relative.
func relativePath(nodeID, artifactPath string) string {
	return path.Join(nodeID, strings.TrimPrefix(artifactPath, "/"))
}
