package sharepointsource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/syncengine/internal/syncentity"
	"github.com/R3E-Network/syncengine/internal/synctoken"
)

func newTestSource(srv *httptest.Server) *Source {
	src := &Source{
		siteID:       "site1",
		connectionID: "org-1:sync-1",
		syncID:       "sync-1",
		baseURL:      srv.URL,
		mgr:          defaultManager(),
	}
	src.refreshFn = func(context.Context, *synctoken.Token) (*synctoken.Token, error) {
		return &synctoken.Token{AccessToken: "graph-tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	return src
}

func TestValidateChecksSite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sites/site1", r.URL.Path)
		require.Equal(t, "Bearer graph-tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	src := newTestSource(srv)
	require.NoError(t, src.Validate(context.Background()))
}

func TestGenerateEntitiesSkipsFoldersAndFollowsNextLink(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		switch calls {
		case 1:
			json.NewEncoder(w).Encode(driveItemPage{
				Value: []driveItem{
					{ID: "f1", Name: "report.pdf", Size: 10, File: &struct {
						MimeType string `json:"mimeType"`
					}{MimeType: "application/pdf"}},
					{ID: "folder1", Name: "Archive", Folder: &struct {
						ChildCount int `json:"childCount"`
					}{ChildCount: 2}},
				},
				NextLink: "https://graph.microsoft.com/v1.0/sites/site1/drive/root/children?$skip=1",
			})
		default:
			json.NewEncoder(w).Encode(driveItemPage{})
		}
	}))
	defer srv.Close()

	src := newTestSource(srv)

	var got []syncentity.Entity
	err := src.GenerateEntities(context.Background(), func(e syncentity.Entity) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Len(t, got, 1)
	require.Equal(t, "f1", got[0].Identity().EntityID)
}

func TestGetACLChangesReturnsBasicSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/sites/site1":
			json.NewEncoder(w).Encode(siteMeta{DisplayName: "Engineering Docs"})
		case "/sites/site1/drive/root/permissions":
			json.NewEncoder(w).Encode(permissionPage{
				Value: []permission{
					{ID: "p1", GrantedToV2: &grantee{User: &struct {
						ID string `json:"id"`
					}{ID: "user-1"}}},
					{ID: "p2", GrantedToV2: &grantee{Group: &struct {
						ID string `json:"id"`
					}{ID: "group-1"}}},
				},
			})
		default:
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	src := newTestSource(srv)
	result, err := src.GetACLChanges(context.Background(), "")
	require.NoError(t, err)
	require.False(t, result.IncrementalValues)
	require.Equal(t, []string{"site1"}, result.ModifiedGroupIDs)
	require.Len(t, result.Changes, 2)
	require.Equal(t, "user-1", result.Changes[0].MemberID)
	require.Equal(t, "user", result.Changes[0].MemberType)
	require.Equal(t, "Engineering Docs", result.Changes[0].GroupName)
	require.Equal(t, "group-1", result.Changes[1].MemberID)
	require.Equal(t, "group", result.Changes[1].MemberType)
}
