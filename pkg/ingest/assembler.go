// Package ingest turns a finished workflow's artifacts and metadata into a
// linked graph of typed records in the object repository, all or nothing.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/biodt/argo-connector/pkg/argo"
	"github.com/biodt/argo-connector/pkg/cordra"
)

// Repository is the subset of repository operations graph assembly needs.
type Repository interface {
	Create(ctx context.Context, objectType string, payload map[string]any, attachments ...cordra.Attachment) (*cordra.Object, error)
	Read(ctx context.Context, id string) (map[string]any, error)
	Update(ctx context.Context, id string, payload map[string]any) error
	Delete(ctx context.Context, id string) error
}

// ArtifactSource is a single-pass stream of artifact files.
type ArtifactSource interface {
	Next(ctx context.Context) (*argo.ArtifactFile, error)
	Close() error
}

// LinkPolicy controls how file records are linked back to the aggregate
// after it exists. Observed deployments disagree on both points, so they
// are configuration rather than fixed behavior.
type LinkPolicy struct {
	// OverwritePartOf replaces an existing partOf reference instead of
	// preserving it. Files may already be linked into another dataset.
	OverwritePartOf bool
	// SetResultOf adds a resultOf back-reference to the CreateAction.
	SetResultOf bool
}

// Config carries the assembly knobs.
type Config struct {
	// MaxFileSize is the largest artifact, in bytes, the repository will
	// accept reliably. Larger files are skipped with a warning.
	MaxFileSize int64
	LinkPolicy  LinkPolicy
}

const defaultMaxFileSize = 1000 * 1024 * 1024

// Annotation keys the assembler reads from workflow metadata.
const (
	annotationSubmitterID   = "argo-connector/submitterId"
	annotationSubmitterName = "argo-connector/submitterName"
	annotationLicense       = "argo-connector/license"
	annotationKeywords      = "argo-connector/keywords"
	annotationTitle         = "workflows.argoproj.io/title"
	annotationDescription   = "workflows.argoproj.io/description"
)

const orcidPrefix = "https://orcid.org/"

const timestampFormat = "2006-01-02T15:04:05Z"

// Assembler builds the record graph for one ingested workflow.
type Assembler struct {
	repo       Repository
	classifier Classifier
	logger     *slog.Logger
	config     Config
}

// NewAssembler creates an assembler. A zero MaxFileSize falls back to the
// built-in limit.
func NewAssembler(repo Repository, classifier Classifier, logger *slog.Logger, config Config) *Assembler {
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = defaultMaxFileSize
	}

	return &Assembler{
		repo:       repo,
		classifier: classifier,
		logger:     logger,
		config:     config,
	}
}

// Assemble creates the full record graph for one workflow run and returns
// the Dataset identifier.
//
// Creation happens in dependency order: records without forward references
// first, then the edge-bearing CreateAction and Dataset, then a back-patch
// pass over the file records that must point at the final aggregate. Every
// created record lands in a ledger; if any step fails, every ledger entry
// is deleted before the error is returned, so a partial graph is never left
// visible.
func (a *Assembler) Assemble(ctx context.Context, wf *argo.Workflow, artifacts ArtifactSource, doc *argo.Document) (datasetID string, err error) {
	ledger := NewLedger()

	defer func() {
		if err != nil {
			a.rollback(ctx, ledger)
		}
	}()

	agentID, err := a.createPersons(ctx, ledger, doc)
	if err != nil {
		return "", err
	}

	err = a.createFileObjects(ctx, ledger, artifacts)
	if err != nil {
		return "", err
	}

	err = a.createParameters(ctx, ledger, doc)
	if err != nil {
		return "", err
	}

	workflowID, err := a.createWorkflowRecord(ctx, ledger, doc)
	if err != nil {
		return "", err
	}

	actionID, err := a.createAction(ctx, ledger, wf, workflowID, agentID)
	if err != nil {
		return "", err
	}

	datasetID, err = a.createDataset(ctx, ledger, wf, workflowID, actionID)
	if err != nil {
		return "", err
	}

	err = a.backpatchFiles(ctx, ledger, datasetID, actionID)
	if err != nil {
		return "", err
	}

	return datasetID, nil
}

// createPersons creates one Person record per numbered submitter annotation
// and returns the identifier of the designated creating agent, if any.
func (a *Assembler) createPersons(ctx context.Context, ledger *Ledger, doc *argo.Document) (string, error) {
	annotations := doc.Metadata.Annotations

	keys := make([]string, 0, len(annotations))
	for key := range annotations {
		if strings.HasPrefix(key, annotationSubmitterID) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	var agentID string

	for _, key := range keys {
		number := strings.TrimPrefix(key, annotationSubmitterID)
		if number == "" {
			continue
		}

		payload := map[string]any{
			"identifier": orcidPrefix + annotations[key],
		}

		if name, ok := annotations[annotationSubmitterName+number]; ok {
			payload["name"] = name
		}

		a.logger.DebugContext(ctx, "creating person record", "submitter", number)

		person, err := a.repo.Create(ctx, TypePerson, payload)
		if err != nil {
			return "", err
		}

		ledger.Add(person.ID, TypePerson)

		if number == "1" {
			agentID = person.ID
		}
	}

	return agentID, nil
}

// createFileObjects drains the artifact stream, staging each file locally
// to measure and classify it before creating its record. Oversize files are
// skipped with a warning rather than failing the run; classification
// failures simply leave the encoding format unset.
func (a *Assembler) createFileObjects(ctx context.Context, ledger *Ledger, artifacts ArtifactSource) error {
	defer func() {
		if closeErr := artifacts.Close(); closeErr != nil {
			a.logger.ErrorContext(ctx, "failed to close artifact stream", "error", closeErr)
		}
	}()

	for {
		file, err := artifacts.Next(ctx)
		if err != nil {
			if isEOF(err) {
				return nil
			}

			return err
		}

		err = a.createFileObject(ctx, ledger, file)
		if err != nil {
			return err
		}
	}
}

func (a *Assembler) createFileObject(ctx context.Context, ledger *Ledger, file *argo.ArtifactFile) error {
	a.logger.DebugContext(ctx, "downloading artifact", "path", file.Path)

	tmpPath, size, err := spool(file.Body, file.Path)
	if err != nil {
		return err
	}

	defer removeQuietly(tmpPath)

	if size > a.config.MaxFileSize {
		a.logger.WarnContext(ctx, "artifact exceeds size limit, skipping",
			"path", file.Path, "size", size, "limit", a.config.MaxFileSize)

		return nil
	}

	payload := map[string]any{
		"name":        path.Base(file.Path),
		"contentSize": size,
		"contentUrl":  file.Path,
	}

	encodingFormat, err := a.classifier.Classify(tmpPath)
	if err != nil {
		a.logger.WarnContext(ctx, "failed to classify artifact content", "path", file.Path, "error", err)
	} else {
		payload["encodingFormat"] = encodingFormat
	}

	content, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to reopen staged artifact: %w", err)
	}

	defer closeQuietly(content)

	a.logger.DebugContext(ctx, "creating file record", "path", file.Path, "size", size)

	object, err := a.repo.Create(ctx, TypeFileObject, payload, cordra.Attachment{
		Name:     file.Path,
		Filename: file.Path,
		Content:  content,
	})
	if err != nil {
		return err
	}

	ledger.Add(object.ID, TypeFileObject)

	return nil
}

// createParameters creates one FormalParameter per declared parameter and a
// linked PropertyValue for parameters that carry a value.
func (a *Assembler) createParameters(ctx context.Context, ledger *Ledger, doc *argo.Document) error {
	for _, parameter := range doc.Parameters() {
		payload := map[string]any{"name": parameter.Name}
		if parameter.Description != "" {
			payload["description"] = parameter.Description
		}

		formal, err := a.repo.Create(ctx, TypeFormalParameter, payload)
		if err != nil {
			return err
		}

		ledger.Add(formal.ID, TypeFormalParameter)

		if !parameter.HasValue {
			continue
		}

		payload["value"] = parameter.Value

		property, err := a.repo.Create(ctx, TypePropertyValue, payload)
		if err != nil {
			return err
		}

		ledger.Add(property.ID, TypePropertyValue)
	}

	return nil
}

// createWorkflowRecord serializes the reconstructed document and stores it
// as a Workflow record with the YAML attached.
func (a *Assembler) createWorkflowRecord(ctx context.Context, ledger *Ledger, doc *argo.Document) (string, error) {
	text, err := doc.MarshalText()
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"name":                "workflow.yaml",
		"contentSize":         len(text),
		"encodingFormat":      "text/yaml",
		"contentUrl":          "workflow.yaml",
		"description":         "Argo workflow definition",
		"programmingLanguage": "https://argoproj.github.io/workflows",
		"input":               ledger.IDsOfType(TypeFormalParameter),
	}

	a.logger.DebugContext(ctx, "creating workflow record")

	object, err := a.repo.Create(ctx, TypeWorkflow, payload, cordra.Attachment{
		Name:     "workflow.yaml",
		Filename: "workflow.yaml",
		Content:  strings.NewReader(string(text)),
	})
	if err != nil {
		return "", err
	}

	ledger.Add(object.ID, TypeWorkflow)

	return object.ID, nil
}

func (a *Assembler) createAction(ctx context.Context, ledger *Ledger, wf *argo.Workflow, workflowID, agentID string) (string, error) {
	startTime, endTime, err := runTimeSpan(wf)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"result":     ledger.IDsOfType(TypeFileObject),
		"object":     ledger.IDsOfType(TypePropertyValue),
		"instrument": workflowID,
		"startTime":  startTime.UTC().Format(timestampFormat),
		"endTime":    endTime.UTC().Format(timestampFormat),
	}

	if agentID != "" {
		payload["agent"] = agentID
	}

	a.logger.DebugContext(ctx, "creating action record")

	action, err := a.repo.Create(ctx, TypeCreateAction, payload)
	if err != nil {
		return "", err
	}

	ledger.Add(action.ID, TypeCreateAction)

	return action.ID, nil
}

func (a *Assembler) createDataset(ctx context.Context, ledger *Ledger, wf *argo.Workflow, workflowID, actionID string) (string, error) {
	annotations := wf.Metadata.Annotations

	payload := map[string]any{
		"name":       wf.Metadata.Name,
		"author":     ledger.IDsOfType(TypePerson),
		"hasPart":    ledger.IDsOfType(TypeFileObject, TypeWorkflow),
		"mentions":   []string{actionID},
		"mainEntity": workflowID,
	}

	if title, ok := annotations[annotationTitle]; ok && title != "" {
		payload["name"] = title
	}

	if description, ok := annotations[annotationDescription]; ok && description != "" {
		payload["description"] = description
	}

	if license, ok := annotations[annotationLicense]; ok && license != "" {
		payload["license"] = license
	}

	if keywords := splitKeywords(annotations[annotationKeywords]); len(keywords) > 0 {
		payload["keywords"] = keywords
	}

	a.logger.DebugContext(ctx, "creating dataset record")

	dataset, err := a.repo.Create(ctx, TypeDataset, payload)
	if err != nil {
		return "", err
	}

	ledger.Add(dataset.ID, TypeDataset)

	return dataset.ID, nil
}

// backpatchFiles adds the partOf (and, per policy, resultOf) references
// that could not be written before the Dataset and CreateAction existed. A
// pre-existing partOf value is preserved unless the policy says otherwise.
func (a *Assembler) backpatchFiles(ctx context.Context, ledger *Ledger, datasetID, actionID string) error {
	for _, fileID := range ledger.IDsOfType(TypeFileObject) {
		object, err := a.repo.Read(ctx, fileID)
		if err != nil {
			return err
		}

		changed := false

		if existing, ok := object["partOf"]; a.config.LinkPolicy.OverwritePartOf || !ok || existing == nil {
			object["partOf"] = []string{datasetID}
			changed = true
		}

		if a.config.LinkPolicy.SetResultOf {
			object["resultOf"] = actionID
			changed = true
		}

		if !changed {
			continue
		}

		err = a.repo.Update(ctx, fileID, object)
		if err != nil {
			return err
		}
	}

	return nil
}

// rollback deletes every ledger entry in creation order. The repository
// tolerates deleting records that other doomed records still reference.
// Individual delete failures are logged and skipped so the cleanup always
// runs to the end.
func (a *Assembler) rollback(ctx context.Context, ledger *Ledger) {
	a.logger.WarnContext(ctx, "assembly failed, rolling back created records", "count", ledger.Len())

	for _, entry := range ledger.Entries() {
		err := a.repo.Delete(ctx, entry.ID)
		if err != nil {
			a.logger.ErrorContext(ctx, "failed to delete record during rollback",
				"id", entry.ID, "type", entry.Type, "error", err)
		}
	}
}

// runTimeSpan computes the run's start and end. A workflow whose exit
// handler is still running reports no finish timestamp, so the latest node
// finish time stands in. No end time at all is a malformed input.
func runTimeSpan(wf *argo.Workflow) (time.Time, time.Time, error) {
	startTime, err := time.Parse(time.RFC3339, wf.Status.StartedAt)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid start timestamp %q",
			argo.ErrMalformedStatus, wf.Status.StartedAt)
	}

	if wf.Status.FinishedAt != "" {
		endTime, err := time.Parse(time.RFC3339, wf.Status.FinishedAt)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid finish timestamp %q",
				argo.ErrMalformedStatus, wf.Status.FinishedAt)
		}

		return startTime, endTime, nil
	}

	var endTime time.Time

	for _, node := range wf.Status.Nodes {
		if node.FinishedAt == "" {
			continue
		}

		nodeEnd, err := time.Parse(time.RFC3339, node.FinishedAt)
		if err != nil {
			continue
		}

		if nodeEnd.After(endTime) {
			endTime = nodeEnd
		}
	}

	if endTime.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: no finish timestamp on workflow or nodes",
			argo.ErrMalformedStatus)
	}

	return startTime, endTime, nil
}

func splitKeywords(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	keywords := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}

	return keywords
}
