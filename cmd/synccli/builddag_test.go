package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/syncengine/internal/syncdag"
	"github.com/R3E-Network/syncengine/internal/syncentity"
)

func TestBuildDAGWiresSourceTransformerDestination(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "upper.js")
	script := `function transform(input) { return [{ title: input.content.toUpperCase() }]; }`
	require.NoError(t, os.WriteFile(scriptPath, []byte(script), 0o600))

	def := &syncDefinition{}
	def.DAG.Nodes = []dagNodeDef{
		{ID: "source", Kind: "source"},
		{ID: "xform", Kind: "transformer", InputType: "issue", OutputType: "derived", ScriptPath: scriptPath},
		{ID: "dest", Kind: "destination", DestinationRef: "qdrant"},
	}
	def.DAG.Edges = []dagEdgeDef{{"source", "xform"}, {"xform", "dest"}}

	dag, err := buildDAG(def)
	require.NoError(t, err)

	router := syncdag.NewRouter(dag)
	e := &syncentity.ChunkEntity{
		Ident:      syncentity.Identity{EntityID: "e1"},
		EntityType: "issue",
		Content:    "hello",
	}
	out, err := router.ProcessEntity(context.Background(), "source", "issue", e)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestBuildDAGRejectsUnknownKind(t *testing.T) {
	def := &syncDefinition{}
	def.DAG.Nodes = []dagNodeDef{{ID: "n1", Kind: "bogus"}}

	_, err := buildDAG(def)
	require.Error(t, err)
}

func TestBuildDAGTransformerRequiresScriptPath(t *testing.T) {
	def := &syncDefinition{}
	def.DAG.Nodes = []dagNodeDef{{ID: "n1", Kind: "transformer"}}

	_, err := buildDAG(def)
	require.Error(t, err)
}
