package sharepointsource

import "github.com/R3E-Network/syncengine/internal/registry"

// Register adds this connector's entry to r.
func Register(r *registry.Registry) {
	r.RegisterSource(registry.SourceEntry{
		ShortName: ShortName,
		Factory:   New,
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"site_id": map[string]any{"type": "string"},
			},
			"required": []string{"site_id"},
		},
		AuthConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tenant_id":     map[string]any{"type": "string"},
				"client_id":     map[string]any{"type": "string"},
				"client_secret": map[string]any{"type": "string"},
			},
			"required": []string{"tenant_id", "client_id", "client_secret"},
		},
		Capabilities: (&Source{}).Capabilities(),
	})
}
