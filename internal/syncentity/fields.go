package syncentity

import "sync"

// FieldAccessor reads a named field off an entity without reflection.
// Accessors are registered per entity kind at init time; this package
// registers them for chunk entities only. The DAG's relationship-emission
// step (SPEC_FULL §4.5) resolves a RELATIONS descriptor's source field
// name through this registry first, and
// only falls back to gjson path lookup against the canonical JSON payload
// when no compile-time accessor is registered for that field (internal/syncdag).
type FieldAccessor func(Entity) (any, bool)

var (
	registryMu sync.RWMutex
	registry   = map[EntityKind]map[string]FieldAccessor{}
)

// RegisterFieldAccessor associates a named field with an accessor function
// for one entity kind. Intended to be called from package init().
func RegisterFieldAccessor(kind EntityKind, field string, accessor FieldAccessor) {
	registryMu.Lock()
	defer registryMu.Unlock()

	fields, ok := registry[kind]
	if !ok {
		fields = make(map[string]FieldAccessor)
		registry[kind] = fields
	}
	fields[field] = accessor
}

// LookupField resolves a field name for an entity using its registered
// accessor. ok is false if no accessor is registered for this (kind, field)
// pair.
func LookupField(e Entity, field string) (any, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	fields, ok := registry[e.Kind()]
	if !ok {
		return nil, false
	}
	accessor, ok := fields[field]
	if !ok {
		return nil, false
	}
	return accessor(e)
}

func init() {
	RegisterFieldAccessor(KindChunk, "entity_id", func(e Entity) (any, bool) {
		return e.Identity().EntityID, true
	})
	RegisterFieldAccessor(KindChunk, "parent_id", func(e Entity) (any, bool) {
		id := e.Identity()
		if id.ParentID == "" {
			return nil, false
		}
		return id.ParentID, true
	})
	RegisterFieldAccessor(KindChunk, "db_entity_id", func(e Entity) (any, bool) {
		id := e.Identity()
		if id.DBEntityID == "" {
			return nil, false
		}
		return id.DBEntityID, true
	})
	RegisterFieldAccessor(KindChunk, "fields", func(e Entity) (any, bool) {
		chunk, ok := e.(*ChunkEntity)
		if !ok || chunk.Fields == nil {
			return nil, false
		}
		return chunk.Fields, true
	})
}
