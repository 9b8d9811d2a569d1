// Package neo4jdestination is a graph-store destination implementing
// syncdest.GraphDestination against github.com/neo4j/neo4j-go-driver/v5,
// exercising the RELATIONS emission path (spec.md §4.5) end to end: every
// BulkInsert MERGEs one node per entity, and CreateRelationship/
// BulkCreateRelationships MERGE edges between nodes already written by a
// prior BulkInsert.
package neo4jdestination

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/R3E-Network/syncengine/internal/syncdest"
	"github.com/R3E-Network/syncengine/internal/syncentity"
	"github.com/R3E-Network/syncengine/internal/syncerr"
)

// ShortName is this connector's registry key.
const ShortName = "neo4j"

// Destination writes one MERGEd node per entity, labeled by its EntityType.
type Destination struct {
	driver neo4j.DriverWithContext
	syncID string
}

// New constructs a Destination. config must carry "uri", "username",
// "password", and "sync_id".
func New(ctx context.Context, config map[string]any) (syncdest.Destination, error) {
	uri, _ := config["uri"].(string)
	username, _ := config["username"].(string)
	password, _ := config["password"].(string)
	syncID, _ := config["sync_id"].(string)
	if uri == "" || syncID == "" {
		return nil, syncerr.Validation("config", "uri and sync_id are required")
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4jdestination: new driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("neo4jdestination: connectivity check: %w", err)
	}

	return &Destination{driver: driver, syncID: syncID}, nil
}

func (d *Destination) SetupCollection(ctx context.Context, syncID string) error {
	return d.write(ctx, `MATCH (n {sync_id: $sync_id}) WHERE false DETACH DELETE n`, map[string]any{"sync_id": syncID})
}

// BulkInsert MERGEs one node per entity, keyed on db_entity_id, assigning one
// if the entity doesn't already carry one.
func (d *Destination) BulkInsert(ctx context.Context, entities []syncentity.Entity) error {
	nodes := make([]syncdest.GraphNode, 0, len(entities))
	for _, e := range entities {
		id := e.Identity()
		if id.DBEntityID == "" {
			id.DBEntityID = uuid.NewString()
		}
		props, err := entityProperties(e)
		if err != nil {
			return syncerr.DestinationFailed(ShortName, id.EntityID, err)
		}
		nodes = append(nodes, syncdest.GraphNode{Label: entityLabel(e), Properties: props})
	}
	return d.BulkCreateNodes(ctx, nodes)
}

func (d *Destination) CreateNode(ctx context.Context, properties map[string]any, label string) error {
	return d.BulkCreateNodes(ctx, []syncdest.GraphNode{{Label: label, Properties: properties}})
}

func (d *Destination) BulkCreateNodes(ctx context.Context, nodes []syncdest.GraphNode) error {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, n := range nodes {
			sanitized, err := syncdest.SanitizeGraphProperties(n.Properties)
			if err != nil {
				return nil, err
			}
			sanitized["sync_id"] = d.syncID
			query := fmt.Sprintf("MERGE (n:%s {db_entity_id: $db_entity_id}) SET n += $props", cypherIdent(n.Label))
			if _, err := tx.Run(ctx, query, map[string]any{
				"db_entity_id": sanitized["db_entity_id"],
				"props":        sanitized,
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return syncerr.DestinationFailed(ShortName, "", err)
	}
	return nil
}

func (d *Destination) CreateRelationship(ctx context.Context, from, to, relationType string, properties map[string]any) error {
	return d.BulkCreateRelationships(ctx, []syncdest.GraphRelationship{{
		FromDBEntityID: from, ToDBEntityID: to, RelationType: relationType, Properties: properties,
	}})
}

func (d *Destination) BulkCreateRelationships(ctx context.Context, relationships []syncdest.GraphRelationship) error {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, rel := range relationships {
			props := rel.Properties
			if props == nil {
				props = map[string]any{}
			}
			sanitized, err := syncdest.SanitizeGraphProperties(props)
			if err != nil {
				return nil, err
			}
			query := fmt.Sprintf(`
				MATCH (a {db_entity_id: $from, sync_id: $sync_id}), (b {db_entity_id: $to, sync_id: $sync_id})
				MERGE (a)-[r:%s]->(b)
				SET r += $props
			`, cypherIdent(rel.RelationType))
			if _, err := tx.Run(ctx, query, map[string]any{
				"from": rel.FromDBEntityID, "to": rel.ToDBEntityID, "sync_id": d.syncID, "props": sanitized,
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return syncerr.DestinationFailed(ShortName, "", err)
	}
	return nil
}

func (d *Destination) Delete(ctx context.Context, dbEntityID string) error {
	return d.write(ctx, `MATCH (n {db_entity_id: $id, sync_id: $sync_id}) DETACH DELETE n`,
		map[string]any{"id": dbEntityID, "sync_id": d.syncID})
}

func (d *Destination) BulkDeleteByParentID(ctx context.Context, parentID string) error {
	return d.write(ctx, `MATCH (n {parent_id: $parent_id, sync_id: $sync_id}) DETACH DELETE n`,
		map[string]any{"parent_id": parentID, "sync_id": d.syncID})
}

// SearchForSyncID is not implemented — graph destinations in this example
// are written to, never queried; federated search over this destination
// would need a full-text index configured on the Neo4j side.
func (d *Destination) SearchForSyncID(ctx context.Context, query, syncID string, limit int) ([]syncdest.SearchResult, error) {
	return nil, nil
}

func (d *Destination) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

func (d *Destination) write(ctx context.Context, query string, params map[string]any) error {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, query, params)
	})
	if err != nil {
		return syncerr.DestinationFailed(ShortName, "", err)
	}
	return nil
}

func entityLabel(e syncentity.Entity) string {
	switch string(e.Kind()) {
	case "chunk":
		return "Chunk"
	case "file":
		return "File"
	default:
		return "Entity"
	}
}

func entityProperties(e syncentity.Entity) (map[string]any, error) {
	id := e.Identity()
	props := map[string]any{
		"db_entity_id": id.DBEntityID,
		"entity_id":    id.EntityID,
		"source_name":  id.SourceName,
	}
	switch v := e.(type) {
	case *syncentity.ChunkEntity:
		props["entity_type"] = v.EntityType
		props["content"] = v.Content
	case *syncentity.FileEntity:
		props["entity_type"] = v.EntityType
		props["mime_type"] = v.MimeType
	}
	return props, nil
}

// cypherIdent restricts a label/relation-type to characters Cypher allows
// unquoted, since neither can be passed as a query parameter.
func cypherIdent(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "Entity"
	}
	return string(out)
}
