package syncdag

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"github.com/R3E-Network/syncengine/internal/syncentity"
)

// ScriptTransformer compiles a user-authored JavaScript function into a
// Transformer. The script must define a top-level function named by
// entryPoint that receives the entity's JSON-decoded fields and returns
// either a single object or an array of objects; each becomes a child
// ChunkEntity with entity_id "<producing entity_id>:<index>", the producing
// entity's source name and sync ids, and parent_id set to the producing
// entity's entity_id.
//
// A fresh goja runtime is created per call so scripts from different
// entities never share mutable state (mirrors the TEE script engine's
// per-execution isolation, minus the enclave).
func ScriptTransformer(script, entryPoint, outputEntityType string) Transformer {
	program, compileErr := goja.Compile(entryPoint+".js", script, false)

	return func(ctx context.Context, e syncentity.Entity) ([]syncentity.Entity, error) {
		if compileErr != nil {
			return nil, fmt.Errorf("syncdag: compile script: %w", compileErr)
		}

		vm := goja.New()
		if _, err := vm.RunProgram(program); err != nil {
			return nil, fmt.Errorf("syncdag: load script: %w", err)
		}

		fn, ok := goja.AssertFunction(vm.Get(entryPoint))
		if !ok {
			return nil, fmt.Errorf("syncdag: entry point %q is not a function", entryPoint)
		}

		inputJSON, err := entityFieldsJSON(e)
		if err != nil {
			return nil, fmt.Errorf("syncdag: encode script input: %w", err)
		}

		var input any
		if err := json.Unmarshal(inputJSON, &input); err != nil {
			return nil, fmt.Errorf("syncdag: decode script input: %w", err)
		}

		resultVal, err := fn(goja.Undefined(), vm.ToValue(input))
		if err != nil {
			return nil, fmt.Errorf("syncdag: call %s: %w", entryPoint, err)
		}
		if resultVal == nil || goja.IsUndefined(resultVal) || goja.IsNull(resultVal) {
			return nil, nil
		}

		exported := resultVal.Export()
		var items []any
		switch v := exported.(type) {
		case []any:
			items = v
		default:
			items = []any{v}
		}

		parent := e.Identity()
		children := make([]syncentity.Entity, 0, len(items))
		for i, item := range items {
			fields, err := asFieldMap(item)
			if err != nil {
				return nil, fmt.Errorf("syncdag: script output item %d: %w", i, err)
			}
			children = append(children, &syncentity.ChunkEntity{
				Ident: syncentity.Identity{
					SourceName: parent.SourceName,
					EntityID:   fmt.Sprintf("%s:%d", parent.EntityID, i),
					SyncID:     parent.SyncID,
					SyncJobID:  parent.SyncJobID,
					ParentID:   parent.EntityID,
				},
				EntityType: outputEntityType,
				Fields:     fields,
			})
		}
		return children, nil
	}
}

func asFieldMap(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("script output is not an object: %w", err)
	}
	return m, nil
}

// entityFieldsJSON re-encodes an entity's own JSON representation so
// scripts receive the same shape a destination would see.
func entityFieldsJSON(e syncentity.Entity) ([]byte, error) {
	return json.Marshal(e)
}
