package githubsource

import "github.com/R3E-Network/syncengine/internal/registry"

// Register adds this connector's entry to r. Callers import
// connectors/githubsource and invoke Register during process bootstrap
// rather than relying on a package-level init, so the CLI controls exactly
// which connectors are wired into a given run.
func Register(r *registry.Registry) {
	r.RegisterSource(registry.SourceEntry{
		ShortName: ShortName,
		Factory:   New,
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"owner": map[string]any{"type": "string"},
				"repo":  map[string]any{"type": "string"},
			},
			"required": []string{"owner", "repo"},
		},
		AuthConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"access_token": map[string]any{"type": "string"},
			},
			"required": []string{"access_token"},
		},
		Capabilities: (&Source{}).Capabilities(),
	})
}
