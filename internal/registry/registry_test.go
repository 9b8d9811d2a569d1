package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/syncengine/internal/syncdest"
	"github.com/R3E-Network/syncengine/internal/syncentity"
	"github.com/R3E-Network/syncengine/internal/syncsource"
)

type fakeSource struct{}

func (fakeSource) Validate(ctx context.Context) error { return nil }
func (fakeSource) GenerateEntities(ctx context.Context, emit func(syncentity.Entity) error) error {
	return nil
}
func (fakeSource) Capabilities() syncsource.Capabilities {
	return syncsource.Capabilities{SupportedAuth: []syncsource.AuthMethod{syncsource.AuthMethodAPIKey}}
}

type fakeDestination struct{}

func (fakeDestination) SetupCollection(ctx context.Context, syncID string) error { return nil }
func (fakeDestination) BulkInsert(ctx context.Context, entities []syncentity.Entity) error {
	return nil
}
func (fakeDestination) Delete(ctx context.Context, dbEntityID string) error          { return nil }
func (fakeDestination) BulkDeleteByParentID(ctx context.Context, parentID string) error { return nil }
func (fakeDestination) SearchForSyncID(ctx context.Context, query, syncID string, limit int) ([]syncdest.SearchResult, error) {
	return nil, nil
}
func (fakeDestination) Close(ctx context.Context) error { return nil }

func TestRegisterAndBuildSource(t *testing.T) {
	r := New()
	r.RegisterSource(SourceEntry{
		ShortName: "fake",
		Factory: func(ctx context.Context, cfg syncsource.Config) (syncsource.Source, error) {
			return fakeSource{}, nil
		},
	})

	src, err := r.BuildSource(context.Background(), "fake", syncsource.Config{})
	require.NoError(t, err)
	require.NotNil(t, src)
	require.Equal(t, []string{"fake"}, r.SourceNames())
}

func TestBuildSourceUnknownShortName(t *testing.T) {
	r := New()
	_, err := r.BuildSource(context.Background(), "missing", syncsource.Config{})
	require.Error(t, err)
}

func TestRegisterAndBuildDestination(t *testing.T) {
	r := New()
	r.RegisterDestination(DestinationEntry{
		ShortName: "fake",
		Factory: func(ctx context.Context, config map[string]any) (syncdest.Destination, error) {
			return fakeDestination{}, nil
		},
	})

	dest, err := r.BuildDestination(context.Background(), "fake", nil)
	require.NoError(t, err)
	require.NotNil(t, dest)
	require.Equal(t, []string{"fake"}, r.DestinationNames())
}

func TestBuildDestinationUnknownShortName(t *testing.T) {
	r := New()
	_, err := r.BuildDestination(context.Background(), "missing", nil)
	require.Error(t, err)
}

func TestRegisterSourceOverwritesExisting(t *testing.T) {
	r := New()
	calls := 0
	r.RegisterSource(SourceEntry{ShortName: "fake", Factory: func(ctx context.Context, cfg syncsource.Config) (syncsource.Source, error) {
		calls++
		return fakeSource{}, nil
	}})
	r.RegisterSource(SourceEntry{ShortName: "fake", Factory: func(ctx context.Context, cfg syncsource.Config) (syncsource.Source, error) {
		calls += 10
		return fakeSource{}, nil
	}})

	_, err := r.BuildSource(context.Background(), "fake", syncsource.Config{})
	require.NoError(t, err)
	require.Equal(t, 10, calls)
}
