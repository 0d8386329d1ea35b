package argo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biodt/argo-connector/pkg/argo"
)

func durableArtifact(name, path, key string) argo.Artifact {
	return argo.Artifact{
		Name: name,
		Path: path,
		S3:   &argo.S3Artifact{Key: key},
	}
}

func TestListArtifacts(t *testing.T) {
	t.Parallel()

	t.Run("returns durable outputs in node order", func(t *testing.T) {
		t.Parallel()

		wf := &argo.Workflow{
			Metadata: argo.Metadata{Name: "bees-abc12"},
			Status: argo.Status{
				Nodes: map[string]argo.Node{
					"bees-abc12-b": {
						ID: "bees-abc12-b",
						Outputs: &argo.Outputs{Artifacts: []argo.Artifact{
							durableArtifact("report", "/tmp/report.html", "bees-abc12/bees-abc12-b/report.tgz"),
						}},
					},
					"bees-abc12-a": {
						ID: "bees-abc12-a",
						Outputs: &argo.Outputs{Artifacts: []argo.Artifact{
							durableArtifact("results", "/tmp/out", "bees-abc12/bees-abc12-a/results.tgz"),
						}},
					},
				},
			},
		}

		refs := argo.ListArtifacts(wf)
		require.Len(t, refs, 2)
		assert.Equal(t, argo.ArtifactRef{NodeID: "bees-abc12-a", Name: "results", Path: "/tmp/out"}, refs[0])
		assert.Equal(t, argo.ArtifactRef{NodeID: "bees-abc12-b", Name: "report", Path: "/tmp/report.html"}, refs[1])
	})

	t.Run("excludes cache keys deleted and collected artifacts", func(t *testing.T) {
		t.Parallel()

		cached := durableArtifact("intermediate", "/tmp/cache", "shared-cache/step-output.tgz")

		deleted := durableArtifact("gone", "/tmp/gone", "bees-abc12/node/gone.tgz")
		deleted.Deleted = true

		collected := durableArtifact("collected", "/tmp/collected", "bees-abc12/node/collected.tgz")
		collected.ArtifactGC = &argo.ArtifactGC{Strategy: "OnWorkflowDeletion"}

		neverCollected := durableArtifact("kept", "/tmp/kept", "bees-abc12/node/kept.tgz")
		neverCollected.ArtifactGC = &argo.ArtifactGC{Strategy: "Never"}

		noStorage := argo.Artifact{Name: "raw", Path: "/tmp/raw"}

		wf := &argo.Workflow{
			Metadata: argo.Metadata{Name: "bees-abc12"},
			Status: argo.Status{
				Nodes: map[string]argo.Node{
					"bees-abc12-1": {
						ID: "bees-abc12-1",
						Outputs: &argo.Outputs{Artifacts: []argo.Artifact{
							cached, deleted, collected, neverCollected, noStorage,
						}},
					},
				},
			},
		}

		refs := argo.ListArtifacts(wf)
		require.Len(t, refs, 1)
		assert.Equal(t, "kept", refs[0].Name)
	})

	t.Run("rewrites console log path", func(t *testing.T) {
		t.Parallel()

		wf := &argo.Workflow{
			Metadata: argo.Metadata{Name: "bees-abc12"},
			Status: argo.Status{
				Nodes: map[string]argo.Node{
					"bees-abc12-1": {
						ID: "bees-abc12-1",
						Outputs: &argo.Outputs{Artifacts: []argo.Artifact{
							durableArtifact("main-logs", "/var/run/argo/main.log", "bees-abc12/bees-abc12-1/main.log"),
						}},
					},
				},
			},
		}

		refs := argo.ListArtifacts(wf)
		require.Len(t, refs, 1)
		assert.Equal(t, "main.log", refs[0].Path)
	})

	t.Run("tolerates nodes without outputs", func(t *testing.T) {
		t.Parallel()

		wf := &argo.Workflow{
			Metadata: argo.Metadata{Name: "bees-abc12"},
			Status: argo.Status{
				Nodes: map[string]argo.Node{
					"bees-abc12-1": {ID: "bees-abc12-1"},
				},
			},
		}

		assert.Empty(t, argo.ListArtifacts(wf))
	})

	t.Run("nil workflow", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, argo.ListArtifacts(nil))
	})
}
