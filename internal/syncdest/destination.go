// Package syncdest defines the contract every destination connector
// implements (SPEC_FULL §4.3): vector/document stores implement Destination;
// graph stores additionally implement GraphDestination.
package syncdest

import (
	"context"
	"encoding/json"

	"github.com/R3E-Network/syncengine/internal/syncentity"
)

// SearchResult is one hit from SearchForSyncId, used by federated search
// capable sources and by test/debug tooling.
type SearchResult struct {
	DBEntityID string
	Score      float64
	Payload    map[string]any
}

// Destination is the contract every destination connector implements.
// BulkInsert of an already-known db_entity_id MUST be idempotent — a
// second insert overwrites rather than duplicating (spec.md §4.3).
type Destination interface {
	SetupCollection(ctx context.Context, syncID string) error
	BulkInsert(ctx context.Context, entities []syncentity.Entity) error
	Delete(ctx context.Context, dbEntityID string) error
	BulkDeleteByParentID(ctx context.Context, parentID string) error
	SearchForSyncID(ctx context.Context, query, syncID string, limit int) ([]SearchResult, error)
	Close(ctx context.Context) error
}

// Capable reports which extension contracts a Destination additionally
// implements. The orchestrator does not consult it: fanOut type-asserts
// each destination against GraphDestination for every entity it writes.
type Capable interface {
	SupportsGraph() bool
}

// GraphDestination is the extension graph-backed destinations implement.
// Property values passed here MUST be primitive or arrays of primitives;
// the caller (the orchestrator's relationship-emission step) serializes
// complex values to JSON strings before handoff.
type GraphDestination interface {
	Destination

	CreateNode(ctx context.Context, properties map[string]any, label string) error
	BulkCreateNodes(ctx context.Context, nodes []GraphNode) error
	CreateRelationship(ctx context.Context, from, to, relationType string, properties map[string]any) error
	BulkCreateRelationships(ctx context.Context, relationships []GraphRelationship) error
}

// GraphNode is one node to create in BulkCreateNodes.
type GraphNode struct {
	Label      string
	Properties map[string]any
}

// GraphRelationship is one edge to create in BulkCreateRelationships,
// keyed on (db_entity_id, entity_id) pairs already resolved through the
// destination's own entity index (DESIGN.md Open Question 3).
type GraphRelationship struct {
	FromDBEntityID string
	ToDBEntityID   string
	RelationType   string
	Properties     map[string]any
}

// Factory constructs a Destination from decoded connector config.
type Factory func(ctx context.Context, config map[string]any) (Destination, error)

// SanitizeGraphProperties enforces spec.md §4.3's graph property rule:
// every value handed to a GraphDestination must be a primitive or an array
// of primitives. Maps and structs are re-encoded as JSON strings.
func SanitizeGraphProperties(properties map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(properties))
	for k, v := range properties {
		sanitized, err := sanitizeValue(v)
		if err != nil {
			return nil, err
		}
		out[k] = sanitized
	}
	return out, nil
}

func sanitizeValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool, int, int64, float64:
		return val, nil
	case []string, []int, []int64, []float64, []bool, []any:
		return val, nil
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	}
}
