// Package registry maps connector short_names to the factories and schemas
// needed to construct and validate them (SPEC_FULL §6), resolved once at
// process start. It has no knowledge of any specific connector — each
// connector package exposes a Register function that the process calls
// explicitly during bootstrap, the same
// service-locator-by-string-key shape the teacher uses for its marble
// service factories (infrastructure/service/runner.go), without the
// marble/enclave machinery that file also carries.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/R3E-Network/syncengine/internal/syncdest"
	"github.com/R3E-Network/syncengine/internal/syncsource"
)

// SourceEntry describes one registered source connector.
type SourceEntry struct {
	ShortName        string
	Factory          syncsource.Factory
	AuthConfigSchema map[string]any
	ConfigSchema     map[string]any
	Capabilities     syncsource.Capabilities
}

// DestinationEntry describes one registered destination connector.
type DestinationEntry struct {
	ShortName    string
	Factory      syncdest.Factory
	ConfigSchema map[string]any
}

// Registry is the process-wide set of known connectors. The zero value is
// not usable; construct with New.
type Registry struct {
	mu           sync.RWMutex
	sources      map[string]SourceEntry
	destinations map[string]DestinationEntry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		sources:      make(map[string]SourceEntry),
		destinations: make(map[string]DestinationEntry),
	}
}

// RegisterSource adds a source connector, or replaces an existing one with
// the same short_name — re-registration is allowed so tests can swap in
// fakes without a package-private escape hatch.
func (r *Registry) RegisterSource(entry SourceEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[entry.ShortName] = entry
}

// RegisterDestination adds a destination connector.
func (r *Registry) RegisterDestination(entry DestinationEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destinations[entry.ShortName] = entry
}

// Source looks up a source connector's entry by short_name.
func (r *Registry) Source(shortName string) (SourceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sources[shortName]
	return entry, ok
}

// Destination looks up a destination connector's entry by short_name.
func (r *Registry) Destination(shortName string) (DestinationEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.destinations[shortName]
	return entry, ok
}

// BuildSource resolves short_name and constructs a Source from cfg.
func (r *Registry) BuildSource(ctx context.Context, shortName string, cfg syncsource.Config) (syncsource.Source, error) {
	entry, ok := r.Source(shortName)
	if !ok {
		return nil, fmt.Errorf("registry: unknown source %q (available: %v)", shortName, r.SourceNames())
	}
	return entry.Factory(ctx, cfg)
}

// BuildDestination resolves short_name and constructs a Destination from config.
func (r *Registry) BuildDestination(ctx context.Context, shortName string, config map[string]any) (syncdest.Destination, error) {
	entry, ok := r.Destination(shortName)
	if !ok {
		return nil, fmt.Errorf("registry: unknown destination %q (available: %v)", shortName, r.DestinationNames())
	}
	return entry.Factory(ctx, config)
}

// SourceNames returns every registered source short_name, sorted.
func (r *Registry) SourceNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DestinationNames returns every registered destination short_name, sorted.
func (r *Registry) DestinationNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.destinations))
	for name := range r.destinations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
