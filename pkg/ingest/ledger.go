package ingest

// Record type tags used across the assembled graph.
const (
	TypePerson          = "Person"
	TypeFileObject      = "FileObject"
	TypeFormalParameter = "FormalParameter"
	TypePropertyValue   = "PropertyValue"
	TypeWorkflow        = "Workflow"
	TypeCreateAction    = "CreateAction"
	TypeDataset         = "Dataset"
)

// LedgerEntry records one repository object created during an assembly run.
type LedgerEntry struct {
	ID   string
	Type string
}

// Ledger is the ordered record of everything one assembly run created. It
// exists solely to drive rollback and type-scoped identifier lookups; it is
// discarded when the run succeeds.
type Ledger struct {
	entries []LedgerEntry
}

func NewLedger() *Ledger {
	return &Ledger{entries: make([]LedgerEntry, 0)}
}

// Add appends a created object in creation order.
func (l *Ledger) Add(id, objectType string) {
	l.entries = append(l.entries, LedgerEntry{ID: id, Type: objectType})
}

// Entries returns the ledger in creation order.
func (l *Ledger) Entries() []LedgerEntry {
	return l.entries
}

// IDsOfType returns the identifiers of all entries matching any of the
// given type tags, in creation order.
func (l *Ledger) IDsOfType(objectTypes ...string) []string {
	ids := make([]string, 0)

	for _, entry := range l.entries {
		for _, objectType := range objectTypes {
			if entry.Type == objectType {
				ids = append(ids, entry.ID)

				break
			}
		}
	}

	return ids
}

// Len returns the number of recorded entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}
