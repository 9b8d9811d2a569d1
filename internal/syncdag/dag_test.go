package syncdag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/syncengine/internal/syncentity"
)

func upperTransformer(ctx context.Context, e syncentity.Entity) ([]syncentity.Entity, error) {
	chunk := e.(*syncentity.ChunkEntity)
	return []syncentity.Entity{&syncentity.ChunkEntity{
		Ident:   syncentity.Identity{EntityID: chunk.Ident.EntityID + ":child"},
		EntityType: "derived",
		Content:    chunk.Content,
	}}, nil
}

func buildTestDAG() *DAG {
	nodes := []*Node{
		{ID: "source", Kind: NodeSource},
		{ID: "transform", Kind: NodeTransformer, InputType: "issue", OutputType: "derived", Transformer: upperTransformer},
		{ID: "dest", Kind: NodeDestination, Destination: "qdrant"},
	}
	edges := [][2]string{{"source", "transform"}, {"transform", "dest"}}
	return NewDAG(nodes, edges)
}

func TestRouterProcessEntityAppliesChain(t *testing.T) {
	router := NewRouter(buildTestDAG())
	e := &syncentity.ChunkEntity{Ident: syncentity.Identity{EntityID: "e1"}, EntityType: "issue", Content: "hello"}

	out, err := router.ProcessEntity(context.Background(), "source", "issue", e)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "e1", out[0].Identity().EntityID)
	require.Equal(t, "e1:child", out[1].Identity().EntityID)
}

func TestRouterReturnsKeepWhenNoPathToDestination(t *testing.T) {
	nodes := []*Node{
		{ID: "source", Kind: NodeSource},
		{ID: "dest", Kind: NodeDestination},
	}
	// no edge from source to dest
	dag := NewDAG(nodes, nil)
	router := NewRouter(dag)

	e := &syncentity.ChunkEntity{Ident: syncentity.Identity{EntityID: "e1"}, EntityType: "issue"}
	out, err := router.ProcessEntity(context.Background(), "source", "issue", e)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Same(t, e, out[0])
}

func TestRouterMemoizesChainResolution(t *testing.T) {
	router := NewRouter(buildTestDAG())
	e1 := &syncentity.ChunkEntity{Ident: syncentity.Identity{EntityID: "e1"}, EntityType: "issue", Content: "a"}
	e2 := &syncentity.ChunkEntity{Ident: syncentity.Identity{EntityID: "e2"}, EntityType: "issue", Content: "b"}

	_, err := router.ProcessEntity(context.Background(), "source", "issue", e1)
	require.NoError(t, err)

	key := cacheKey{producerID: "source", entityType: "issue"}
	router.mu.RLock()
	cached, ok := router.cache[key]
	router.mu.RUnlock()
	require.True(t, ok)
	require.Equal(t, []string{"transform"}, cached)

	_, err = router.ProcessEntity(context.Background(), "source", "issue", e2)
	require.NoError(t, err)
}

func TestRouterEntityTypeMismatchSkipsTransformer(t *testing.T) {
	router := NewRouter(buildTestDAG())
	e := &syncentity.ChunkEntity{Ident: syncentity.Identity{EntityID: "e1"}, EntityType: "comment"}

	out, err := router.ProcessEntity(context.Background(), "source", "comment", e)
	require.NoError(t, err)
	require.Len(t, out, 1)
}
