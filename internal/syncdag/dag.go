// Package syncdag routes an entity through a sync's transformer DAG
// (SPEC_FULL §4.6): given the node an entity was produced by and the
// entity's type, it resolves the ordered transformer chain leading toward a
// destination, applies it, and returns every entity that should be
// persisted.
package syncdag

import (
	"context"
	"fmt"
	"sync"

	"github.com/R3E-Network/syncengine/internal/syncentity"
)

// NodeKind distinguishes the three roles a DAG node can play.
type NodeKind string

const (
	NodeSource      NodeKind = "source"
	NodeTransformer NodeKind = "transformer"
	NodeDestination NodeKind = "destination"
)

// Transformer maps one entity to zero or more output entities.
type Transformer func(ctx context.Context, e syncentity.Entity) ([]syncentity.Entity, error)

// Node is one vertex of the DAG. InputType/OutputType are entity-type
// strings (source modules declare these in their entity definitions);
// a transformer node only runs against entities whose type matches
// InputType.
type Node struct {
	ID          string
	Kind        NodeKind
	InputType   string
	OutputType  string
	Transformer Transformer
	// Destination is the configured short_name, set only for NodeDestination.
	Destination string
}

// DAG is a directed graph of nodes connected by producer -> consumer edges.
type DAG struct {
	Nodes map[string]*Node
	edges map[string][]string // node id -> ids of nodes it feeds
}

// NewDAG builds a DAG from a node list and an edge list (from, to) pairs.
func NewDAG(nodes []*Node, edges [][2]string) *DAG {
	d := &DAG{
		Nodes: make(map[string]*Node, len(nodes)),
		edges: make(map[string][]string, len(nodes)),
	}
	for _, n := range nodes {
		d.Nodes[n.ID] = n
	}
	for _, e := range edges {
		d.edges[e[0]] = append(d.edges[e[0]], e[1])
	}
	return d
}

// reachesDestination reports whether any path from nodeID (following edges
// whose downstream node accepts entityType, or is itself a destination)
// leads to a NodeDestination.
func (d *DAG) reachesDestination(nodeID, entityType string, visited map[string]bool) bool {
	if visited[nodeID] {
		return false
	}
	visited[nodeID] = true

	for _, next := range d.edges[nodeID] {
		n, ok := d.Nodes[next]
		if !ok {
			continue
		}
		switch n.Kind {
		case NodeDestination:
			return true
		case NodeTransformer:
			if n.InputType != "" && n.InputType != entityType {
				continue
			}
			if d.reachesDestination(next, n.OutputType, visited) {
				return true
			}
		default:
			if d.reachesDestination(next, entityType, visited) {
				return true
			}
		}
	}
	return false
}

// chain returns the ordered list of transformer node IDs reachable from
// producerID whose input type matches entityType at each step and whose
// path leads toward at least one destination. Returns nil if no such path
// exists (spec.md §4.6: a DAG with no path to a destination yields KEEP).
func (d *DAG) chain(producerID, entityType string) []string {
	var walk func(nodeID, entityType string) []string
	walk = func(nodeID, entityType string) []string {
		for _, next := range d.edges[nodeID] {
			n, ok := d.Nodes[next]
			if !ok {
				continue
			}
			switch n.Kind {
			case NodeTransformer:
				if n.InputType != "" && n.InputType != entityType {
					continue
				}
				if !d.reachesDestination(next, n.OutputType, map[string]bool{}) && n.OutputType != "" {
					continue
				}
				return append([]string{next}, walk(next, n.OutputType)...)
			case NodeDestination:
				return nil
			default:
				if rest := walk(next, entityType); rest != nil || len(d.edges[next]) > 0 {
					return rest
				}
			}
		}
		return nil
	}

	if !d.reachesDestination(producerID, entityType, map[string]bool{}) {
		return nil
	}
	return walk(producerID, entityType)
}

// collectDestinations accumulates the short_name of every NodeDestination
// reachable from nodeID under the same type-gating rules as
// reachesDestination, deduplicated.
func (d *DAG) collectDestinations(nodeID, entityType string, visited map[string]bool, out map[string]bool) {
	if visited[nodeID] {
		return
	}
	visited[nodeID] = true

	for _, next := range d.edges[nodeID] {
		n, ok := d.Nodes[next]
		if !ok {
			continue
		}
		switch n.Kind {
		case NodeDestination:
			out[n.Destination] = true
		case NodeTransformer:
			if n.InputType != "" && n.InputType != entityType {
				continue
			}
			d.collectDestinations(next, n.OutputType, visited, out)
		default:
			d.collectDestinations(next, entityType, visited, out)
		}
	}
}

// Router resolves and caches the transformer chain for a (producer node,
// entity type) pair, so repeated entities of the same type from the same
// node skip path resolution.
type Router struct {
	dag   *DAG
	mu    sync.RWMutex
	cache map[cacheKey][]string
}

type cacheKey struct {
	producerID string
	entityType string
}

// NewRouter wraps a DAG with a memoizing router.
func NewRouter(dag *DAG) *Router {
	return &Router{dag: dag, cache: make(map[cacheKey][]string)}
}

func (r *Router) resolve(producerID, entityType string) []string {
	key := cacheKey{producerID, entityType}

	r.mu.RLock()
	chain, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return chain
	}

	chain = r.dag.chain(producerID, entityType)

	r.mu.Lock()
	r.cache[key] = chain
	r.mu.Unlock()
	return chain
}

// ProcessEntity runs e through the memoized transformer chain for
// (producerID, e's type). It returns every entity that should be
// persisted: the original plus every entity emitted along the chain. An
// empty chain (no path to a destination) returns just [e], signalling KEEP
// to the caller once combined with the action-decision step.
func (r *Router) ProcessEntity(ctx context.Context, producerID, entityType string, e syncentity.Entity) ([]syncentity.Entity, error) {
	chain := r.resolve(producerID, entityType)
	if len(chain) == 0 {
		return []syncentity.Entity{e}, nil
	}

	out := []syncentity.Entity{e}
	frontier := []syncentity.Entity{e}

	for _, nodeID := range chain {
		node, ok := r.dag.Nodes[nodeID]
		if !ok || node.Transformer == nil {
			return nil, fmt.Errorf("syncdag: node %q has no transformer", nodeID)
		}

		var next []syncentity.Entity
		for _, in := range frontier {
			children, err := node.Transformer(ctx, in)
			if err != nil {
				return nil, fmt.Errorf("syncdag: transformer %q: %w", nodeID, err)
			}
			next = append(next, children...)
		}
		out = append(out, next...)
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}

	return out, nil
}

// DestinationsFor returns the distinct destination short_names reachable
// from producerID for an entity of entityType, used by the orchestrator to
// fan a routed entity out to every destination it feeds (SPEC_FULL §4.5).
func (r *Router) DestinationsFor(producerID, entityType string) []string {
	set := make(map[string]bool)
	r.dag.collectDestinations(producerID, entityType, map[string]bool{}, set)

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	return names
}
