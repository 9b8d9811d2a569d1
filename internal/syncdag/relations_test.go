package syncdag

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/syncengine/internal/syncentity"
)

func TestExtractRelationshipsViaFieldAccessor(t *testing.T) {
	e := &syncentity.ChunkEntity{
		Ident: syncentity.Identity{EntityID: "issue-1", SyncID: "s1", ParentID: "project-9"},
	}

	desc := RelationDescriptor{
		SourceType:    "issue",
		SourceIDField: "parent_id",
		TargetType:    "project",
		TargetIDField: "entity_id",
		RelationType:  "belongs_to",
	}

	rels, err := ExtractRelationships(e, desc)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	require.Equal(t, "project-9", rels[0].TargetEntityID)
	require.Equal(t, "issue-1", rels[0].SourceEntityID)
	require.Equal(t, "belongs_to", rels[0].RelationType)
}

func TestExtractRelationshipsFallsBackToJSONField(t *testing.T) {
	e := &syncentity.ChunkEntity{
		Ident:   syncentity.Identity{EntityID: "issue-1", SyncID: "s1"},
		EntityType: "issue",
		Fields:     map[string]any{"assignee_ids": []any{"user-1", "user-2"}},
	}

	desc := RelationDescriptor{
		SourceType:    "issue",
		SourceIDField: "fields.assignee_ids",
		TargetType:    "user",
		RelationType:  "assigned_to",
	}

	rels, err := ExtractRelationships(e, desc)
	require.NoError(t, err)
	require.Len(t, rels, 2)
	require.ElementsMatch(t, []string{"user-1", "user-2"}, []string{rels[0].TargetEntityID, rels[1].TargetEntityID})
}

func TestExtractRelationshipsMissingFieldReturnsNil(t *testing.T) {
	e := &syncentity.ChunkEntity{Ident: syncentity.Identity{EntityID: "issue-1"}}
	desc := RelationDescriptor{SourceIDField: "does_not_exist"}

	rels, err := ExtractRelationships(e, desc)
	require.NoError(t, err)
	require.Nil(t, rels)
}

func TestResolveJSONPath(t *testing.T) {
	doc := map[string]any{"a": map[string]any{"b": "value"}}
	v, err := ResolveJSONPath(doc, "$.a.b")
	require.NoError(t, err)
	require.Equal(t, "value", v)
}
