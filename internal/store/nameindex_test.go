package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNameIndex(t *testing.T) *NameIndex {
	t.Helper()
	idx, err := NewNameIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestNameIndex_UpsertAndSearch(t *testing.T) {
	idx := newTestNameIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert("c1", "parseConfigFile", "func parseConfigFile(path string) (*Config, error)"))
	require.NoError(t, idx.Upsert("c2", "writeOutput", "func writeOutput(w io.Writer) error"))

	ids, err := idx.Search(ctx, "config", 10)
	require.NoError(t, err)
	assert.Contains(t, ids, "c1")
	assert.NotContains(t, ids, "c2")
}

func TestNameIndex_UpsertBatch(t *testing.T) {
	idx := newTestNameIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.UpsertBatch(map[string]nameDoc{
		"c1": {Name: "HandleRequest", Signature: "func HandleRequest(r *Request)"},
		"c2": {Name: "HandleResponse", Signature: "func HandleResponse(w *Response)"},
	}))

	ids, err := idx.Search(ctx, "handle", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, ids)
}

func TestNameIndex_Delete(t *testing.T) {
	idx := newTestNameIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert("c1", "fooBar", "func fooBar()"))
	ids, err := idx.Search(ctx, "foobar", 10)
	require.NoError(t, err)
	require.Contains(t, ids, "c1")

	require.NoError(t, idx.Delete([]string{"c1"}))
	ids, err = idx.Search(ctx, "foobar", 10)
	require.NoError(t, err)
	assert.NotContains(t, ids, "c1")
}

func TestNameIndex_SearchEmptyQuery(t *testing.T) {
	idx := newTestNameIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert("c1", "fooBar", "func fooBar()"))
	ids, err := idx.Search(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestNameIndex_ClosedIndexRejectsOperations(t *testing.T) {
	idx := newTestNameIndex(t)
	require.NoError(t, idx.Close())

	assert.Error(t, idx.Upsert("c1", "x", "func x()"))
	_, err := idx.Search(context.Background(), "x", 10)
	assert.Error(t, err)
}

func TestNameIndex_CamelCaseSplitting(t *testing.T) {
	idx := newTestNameIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert("c1", "computeHashValue", "func computeHashValue(b []byte) uint64"))

	ids, err := idx.Search(ctx, "hash value", 10)
	require.NoError(t, err)
	assert.Contains(t, ids, "c1")
}
