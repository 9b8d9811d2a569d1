package neo4jdestination

import "github.com/R3E-Network/syncengine/internal/registry"

// Register adds this connector's entry to r.
func Register(r *registry.Registry) {
	r.RegisterDestination(registry.DestinationEntry{
		ShortName: ShortName,
		Factory:   New,
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"uri":      map[string]any{"type": "string"},
				"username": map[string]any{"type": "string"},
				"password": map[string]any{"type": "string"},
				"sync_id":  map[string]any{"type": "string"},
			},
			"required": []string{"uri", "sync_id"},
		},
	})
}
