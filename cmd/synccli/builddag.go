package main

import (
	"fmt"
	"os"

	"github.com/R3E-Network/syncengine/internal/syncdag"
)

// buildDAG turns a syncDefinition's node/edge lists into a *syncdag.DAG,
// loading each transformer node's script from disk.
func buildDAG(def *syncDefinition) (*syncdag.DAG, error) {
	nodes := make([]*syncdag.Node, 0, len(def.DAG.Nodes))
	for _, n := range def.DAG.Nodes {
		node := &syncdag.Node{
			ID:         n.ID,
			InputType:  n.InputType,
			OutputType: n.OutputType,
		}

		switch n.Kind {
		case "source":
			node.Kind = syncdag.NodeSource
		case "destination":
			node.Kind = syncdag.NodeDestination
			node.Destination = n.DestinationRef
		case "transformer":
			node.Kind = syncdag.NodeTransformer
			if n.ScriptPath == "" {
				return nil, fmt.Errorf("dag node %q: transformer requires script_path", n.ID)
			}
			script, err := os.ReadFile(n.ScriptPath)
			if err != nil {
				return nil, fmt.Errorf("dag node %q: read script %s: %w", n.ID, n.ScriptPath, err)
			}
			entryPoint := n.EntryPoint
			if entryPoint == "" {
				entryPoint = "transform"
			}
			node.Transformer = syncdag.ScriptTransformer(string(script), entryPoint, n.OutputType)
		default:
			return nil, fmt.Errorf("dag node %q: unknown kind %q", n.ID, n.Kind)
		}

		nodes = append(nodes, node)
	}

	edges := make([][2]string, 0, len(def.DAG.Edges))
	for _, e := range def.DAG.Edges {
		edges = append(edges, [2]string(e))
	}

	return syncdag.NewDAG(nodes, edges), nil
}
