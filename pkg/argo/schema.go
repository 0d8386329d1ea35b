package argo

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// submissionSchema is the subset of the engine's submission schema a
// reconstructed document must satisfy before it is archived or resubmitted.
var submissionSchema = map[string]any{
	"type":     "object",
	"required": []any{"kind", "spec"},
	"properties": map[string]any{
		"kind": map[string]any{
			"type": "string",
			"enum": []any{"Workflow"},
		},
		"metadata": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":      map[string]any{"type": "string"},
				"namespace": map[string]any{"type": "string"},
				"annotations": map[string]any{
					"type":                 "object",
					"additionalProperties": map[string]any{"type": "string"},
				},
			},
		},
		"spec": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"entrypoint": map[string]any{"type": "string"},
				"arguments": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"parameters": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type":     "object",
								"required": []any{"name"},
								"properties": map[string]any{
									"name":        map[string]any{"type": "string"},
									"description": map[string]any{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	},
}

// ValidateDocument checks a reconstructed document against the submission
// schema. A document that fails here would be rejected by the engine too.
func ValidateDocument(doc *Document) error {
	document := map[string]any{
		"kind":     doc.Kind,
		"metadata": doc.Metadata,
		"spec":     doc.Spec,
	}

	schemaLoader := gojsonschema.NewGoLoader(submissionSchema)
	dataLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate workflow document: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrMalformedStatus, strings.Join(details, "; "))
	}

	return nil
}
