package argo

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is a self-contained, submittable workflow definition.
type Document struct {
	Kind     string         `json:"kind"               yaml:"kind"`
	Metadata Metadata       `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Spec     map[string]any `json:"spec"               yaml:"spec"`
}

// Parameter is one entry of a document's argument list.
type Parameter struct {
	Name        string
	Description string
	Value       string
	HasValue    bool
}

const templateRefField = "workflowTemplateRef"

// Reconstruct rebuilds the workflow definition that was originally
// submitted from the engine's status response.
//
// The stored template spec is merged over the invocation spec because it
// reflects what actually ran, including template-level defaults. The
// external template reference is removed afterwards: the result must stand
// on its own even if the referenced template is later deleted or changed.
func Reconstruct(wf *Workflow) (*Document, error) {
	if wf.Spec == nil {
		return nil, fmt.Errorf("%w: missing spec", ErrMalformedStatus)
	}

	if wf.Status.StoredWorkflowTemplateSpec == nil {
		return nil, fmt.Errorf("%w: missing status.storedWorkflowTemplateSpec", ErrMalformedStatus)
	}

	spec := make(map[string]any, len(wf.Spec)+len(wf.Status.StoredWorkflowTemplateSpec))
	for key, value := range wf.Spec {
		spec[key] = value
	}

	for key, value := range wf.Status.StoredWorkflowTemplateSpec {
		spec[key] = value
	}

	delete(spec, templateRefField)

	return &Document{
		Kind:     "Workflow",
		Metadata: wf.Metadata,
		Spec:     spec,
	}, nil
}

// Parameters returns the parameters declared in the document's argument
// list. Entries without a name are dropped.
func (d *Document) Parameters() []Parameter {
	arguments, ok := d.Spec["arguments"].(map[string]any)
	if !ok {
		return nil
	}

	declared, ok := arguments["parameters"].([]any)
	if !ok {
		return nil
	}

	parameters := make([]Parameter, 0, len(declared))

	for _, raw := range declared {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		name, ok := entry["name"].(string)
		if !ok || name == "" {
			continue
		}

		parameter := Parameter{Name: name}

		if description, ok := entry["description"].(string); ok {
			parameter.Description = description
		}

		if value, ok := entry["value"]; ok {
			parameter.Value = fmt.Sprintf("%v", value)
			parameter.HasValue = true
		}

		parameters = append(parameters, parameter)
	}

	return parameters
}

// MarshalText renders the document in its canonical YAML form.
func (d *Document) MarshalText() ([]byte, error) {
	// Marshal through an alias type so yaml does not re-invoke MarshalText.
	type plainDocument Document

	text, err := yaml.Marshal((*plainDocument)(d))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workflow document: %w", err)
	}

	return text, nil
}
