package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedger(t *testing.T) {
	t.Parallel()

	ledger := NewLedger()
	assert.Equal(t, 0, ledger.Len())

	ledger.Add("test/1", TypePerson)
	ledger.Add("test/2", TypeFileObject)
	ledger.Add("test/3", TypeFileObject)
	ledger.Add("test/4", TypeWorkflow)

	assert.Equal(t, 4, ledger.Len())

	entries := ledger.Entries()
	assert.Equal(t, "test/1", entries[0].ID)
	assert.Equal(t, "test/4", entries[3].ID)

	assert.Equal(t, []string{"test/2", "test/3"}, ledger.IDsOfType(TypeFileObject))
	assert.Equal(t, []string{"test/2", "test/3", "test/4"}, ledger.IDsOfType(TypeFileObject, TypeWorkflow))
	assert.Empty(t, ledger.IDsOfType(TypeDataset))
}
