package syncentity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkEntityContentHashDeterministic(t *testing.T) {
	e := &ChunkEntity{
		Ident:   Identity{EntityID: "e1", SourceName: "github", SyncID: "s1"},
		EntityType: "issue",
		Content:    "hello world",
		Fields:     map[string]any{"b": 2, "a": 1},
	}

	h1, err := e.ContentHash()
	require.NoError(t, err)
	h2, err := e.ContentHash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestChunkEntityContentHashIgnoresFieldOrder(t *testing.T) {
	a := &ChunkEntity{EntityType: "issue", Content: "x", Fields: map[string]any{"a": 1, "b": 2}}
	b := &ChunkEntity{EntityType: "issue", Content: "x", Fields: map[string]any{"b": 2, "a": 1}}

	ha, err := a.ContentHash()
	require.NoError(t, err)
	hb, err := b.ContentHash()
	require.NoError(t, err)
	require.Equal(t, ha, hb)
}

func TestChunkEntityContentHashIgnoresVolatileIdentityFields(t *testing.T) {
	a := &ChunkEntity{Ident: Identity{EntityID: "e1", SyncJobID: "job-1"}, Content: "x"}
	b := &ChunkEntity{Ident: Identity{EntityID: "e1", SyncJobID: "job-2"}, Content: "x"}

	ha, err := a.ContentHash()
	require.NoError(t, err)
	hb, err := b.ContentHash()
	require.NoError(t, err)
	require.Equal(t, ha, hb, "hash must not depend on sync_job_id")
}

func TestChunkEntityContentHashSurvivesRoundTrip(t *testing.T) {
	e := &ChunkEntity{EntityType: "issue", Content: "hello", Fields: map[string]any{"k": "v"}}
	before, err := e.ContentHash()
	require.NoError(t, err)

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded ChunkEntity
	require.NoError(t, json.Unmarshal(raw, &decoded))

	after, err := decoded.ContentHash()
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestChunkEntityContentHashDiffersOnRealChange(t *testing.T) {
	a := &ChunkEntity{EntityType: "issue", Content: "hello"}
	b := &ChunkEntity{EntityType: "issue", Content: "world"}

	ha, _ := a.ContentHash()
	hb, _ := b.ContentHash()
	require.NotEqual(t, ha, hb)
}

func TestNewDeletionEntityRequiresStatus(t *testing.T) {
	_, err := NewDeletionEntity(Identity{EntityID: "e1"}, "")
	require.Error(t, err)
}

func TestNewDeletionEntityClearsBreadcrumbs(t *testing.T) {
	id := Identity{EntityID: "e1", Breadcrumbs: []Breadcrumb{{EntityID: "root", Name: "Root"}}}
	d, err := NewDeletionEntity(id, DeletionRemoved)
	require.NoError(t, err)
	require.Empty(t, d.Identity().Breadcrumbs)
	require.Equal(t, KindDeletion, d.Kind())
}

func TestLookupFieldResolvesRegisteredAccessor(t *testing.T) {
	e := &ChunkEntity{Ident: Identity{EntityID: "e1", ParentID: "p1"}}
	v, ok := LookupField(e, "parent_id")
	require.True(t, ok)
	require.Equal(t, "p1", v)

	_, ok = LookupField(e, "no_such_field")
	require.False(t, ok)
}
