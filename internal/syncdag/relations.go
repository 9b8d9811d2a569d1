package syncdag

import (
	"encoding/json"
	"fmt"

	"github.com/PaesslerAG/jsonpath"
	"github.com/tidwall/gjson"

	"github.com/R3E-Network/syncengine/internal/syncentity"
)

// RelationDescriptor is one row of a source module's static RELATIONS table
// (SPEC_FULL §4.5): it names the field on the source-side entity that holds
// the foreign identifier(s) of the target entity.
type RelationDescriptor struct {
	SourceType    string
	SourceIDField string
	TargetType    string
	TargetIDField string
	RelationType  string
}

// Relationship is one emitted graph edge, ready for a destination's
// CreateRelationship call.
type Relationship struct {
	SyncID         string
	SourceType     string
	TargetType     string
	SourceEntityID string
	TargetEntityID string
	RelationType   string
}

// ExtractRelationships reads desc.SourceIDField off e and returns one
// Relationship per foreign id found (the field may be a scalar or a list).
// Resolution order: the compile-time FieldAccessor registry first (no
// allocation, no parsing), then gjson against the entity's canonical JSON
// encoding for fields no accessor is registered for.
func ExtractRelationships(e syncentity.Entity, desc RelationDescriptor) ([]Relationship, error) {
	raw, ok := syncentity.LookupField(e, desc.SourceIDField)
	if !ok {
		var err error
		raw, ok, err = lookupViaJSON(e, desc.SourceIDField)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
	}

	ids, err := asIDList(raw)
	if err != nil {
		return nil, fmt.Errorf("syncdag: relation field %q: %w", desc.SourceIDField, err)
	}

	id := e.Identity()
	rels := make([]Relationship, 0, len(ids))
	for _, targetID := range ids {
		rels = append(rels, Relationship{
			SyncID:         id.SyncID,
			SourceType:     desc.SourceType,
			TargetType:     desc.TargetType,
			SourceEntityID: id.EntityID,
			TargetEntityID: targetID,
			RelationType:   desc.RelationType,
		})
	}
	return rels, nil
}

// lookupViaJSON falls back to a gjson path lookup (dotted field path,
// directly against the top-level JSON object) for fields with no
// compile-time accessor.
func lookupViaJSON(e syncentity.Entity, field string) (any, bool, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, false, err
	}

	result := gjson.GetBytes(raw, field)
	if !result.Exists() {
		return nil, false, nil
	}
	return result.Value(), true, nil
}

// ResolveJSONPath evaluates a JSONPath expression against a decoded JSON
// document. Relationship extraction does not use it, and no DAG or CLI code
// path calls it.
func ResolveJSONPath(doc any, path string) (any, error) {
	return jsonpath.Get(path, doc)
}

func asIDList(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if val == "" {
			return nil, nil
		}
		return []string{val}, nil
	case []string:
		return val, nil
	case []any:
		ids := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("non-string id %v", item)
			}
			ids = append(ids, s)
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("unsupported id field type %T", v)
	}
}
