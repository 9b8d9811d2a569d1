// Package sharepointsource is an OAuth-BYOC source reading a SharePoint
// document library through Microsoft Graph. Auth is grounded on
// github.com/Azure/azure-sdk-for-go/sdk/azidentity's ClientSecretCredential
// (client-credentials flow) — not in the teacher's own go.mod usage (the
// teacher only lists it as a transitive dependency) but a real ecosystem
// library for exactly this auth method, named per DESIGN.md.
package sharepointsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/R3E-Network/syncengine/internal/syncentity"
	"github.com/R3E-Network/syncengine/internal/syncerr"
	"github.com/R3E-Network/syncengine/internal/synctoken"
	"github.com/R3E-Network/syncengine/internal/syncsource"
)

const (
	graphBaseURL = "https://graph.microsoft.com/v1.0"
	graphScope   = "https://graph.microsoft.com/.default"
)

// ShortName is this connector's registry key.
const ShortName = "sharepoint"

type driveItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	File *struct {
		MimeType string `json:"mimeType"`
	} `json:"file"`
	Folder *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder"`
	WebURL string `json:"webUrl"`
}

type driveItemPage struct {
	Value    []driveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

type permission struct {
	ID          string   `json:"id"`
	GrantedTo   *grantee `json:"grantedTo"`
	GrantedToV2 *grantee `json:"grantedToV2"`
	Roles       []string `json:"roles"`
}

type grantee struct {
	User *struct {
		ID string `json:"id"`
	} `json:"user"`
	Group *struct {
		ID string `json:"id"`
	} `json:"group"`
}

type permissionPage struct {
	Value []permission `json:"value"`
}

type siteMeta struct {
	DisplayName string `json:"displayName"`
}

// Source walks a SharePoint site's default document library.
type Source struct {
	siteID       string
	connectionID string
	syncID       string
	baseURL      string

	cred      *azidentity.ClientSecretCredential
	mgr       *synctoken.Manager
	refreshFn synctoken.Refresher
}

// New constructs a Source. Settings must carry "site_id"; Credentials must
// carry "tenant_id", "client_id", "client_secret" (the BYOC app registration).
func New(ctx context.Context, cfg syncsource.Config) (syncsource.Source, error) {
	siteID, _ := cfg.Settings["site_id"].(string)
	if siteID == "" {
		return nil, syncerr.Validation("settings.site_id", "site_id is required")
	}

	tenantID, _ := cfg.Credentials["tenant_id"].(string)
	clientID, _ := cfg.Credentials["client_id"].(string)
	clientSecret, _ := cfg.Credentials["client_secret"].(string)
	if tenantID == "" || clientID == "" || clientSecret == "" {
		return nil, syncerr.Validation("credentials", "tenant_id, client_id and client_secret are required for BYOC")
	}

	cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	if err != nil {
		return nil, syncerr.Validation("credentials", fmt.Sprintf("invalid BYOC credential: %v", err))
	}

	src := &Source{
		siteID:       siteID,
		connectionID: cfg.OrganizationID + ":" + cfg.SyncID,
		syncID:       cfg.SyncID,
		baseURL:      graphBaseURL,
		cred:         cred,
		mgr:          defaultManager(),
	}
	src.refreshFn = src.refreshFromCredential
	return src, nil
}

// refreshFromCredential exchanges the BYOC client credential for a fresh
// Graph access token. It ignores current — azidentity's credential caches
// internally, so every call either returns the cached token or performs a
// real token request, never both.
func (s *Source) refreshFromCredential(ctx context.Context, _ *synctoken.Token) (*synctoken.Token, error) {
	tok, err := s.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{graphScope}})
	if err != nil {
		return nil, fmt.Errorf("sharepointsource: acquire token: %w", err)
	}
	return &synctoken.Token{AccessToken: tok.Token, ExpiresAt: tok.ExpiresOn}, nil
}

func (s *Source) Validate(ctx context.Context) error {
	resp, err := s.do(ctx, fmt.Sprintf("/sites/%s", s.siteID))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return syncerr.Validation("site_id", fmt.Sprintf("site lookup returned %d", resp.StatusCode))
	}
	return nil
}

func (s *Source) Capabilities() syncsource.Capabilities {
	return syncsource.Capabilities{
		RequiresBYOC:  true,
		SupportedAuth: []syncsource.AuthMethod{syncsource.AuthMethodOAuthBYOC},
	}
}

// GenerateEntities walks the site's default document library root, emitting
// one FileEntity per drive item (folders are not emitted, only files).
func (s *Source) GenerateEntities(ctx context.Context, emit func(syncentity.Entity) error) error {
	path := fmt.Sprintf("/sites/%s/drive/root/children", s.siteID)
	for path != "" {
		resp, err := s.do(ctx, path)
		if err != nil {
			return err
		}

		var page driveItemPage
		decodeErr := json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if decodeErr != nil {
			return syncerr.TransientIO("sharepoint_children_decode", decodeErr)
		}
		if resp.StatusCode != http.StatusOK {
			return syncerr.TransientIO("sharepoint_children", fmt.Errorf("status %d", resp.StatusCode))
		}

		for _, item := range page.Value {
			if item.File == nil {
				continue // folder; SharePoint nesting is out of scope for this example connector
			}
			if err := emit(s.toEntity(item)); err != nil {
				return err
			}
		}

		path = relativeFromNextLink(page.NextLink)
	}
	return nil
}

func (s *Source) toEntity(item driveItem) *syncentity.FileEntity {
	mime := ""
	if item.File != nil {
		mime = item.File.MimeType
	}
	return &syncentity.FileEntity{
		Ident: syncentity.Identity{
			SourceName: ShortName,
			EntityID:   item.ID,
			SyncID:     s.syncID,
		},
		EntityType: "sharepoint_file",
		MimeType:   mime,
		SizeBytes:  item.Size,
	}
}

// GetACLChanges reads the document library's sharing permissions and reports
// them as a single BASIC (non-incremental) snapshot — Graph's permissions
// endpoint does not expose a delta token for this resource, so every poll
// carries the full current membership rather than a true delta feed.
func (s *Source) GetACLChanges(ctx context.Context, _ string) (*syncsource.DirSyncResult, error) {
	groupName, err := s.siteDisplayName(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.do(ctx, fmt.Sprintf("/sites/%s/drive/root/permissions", s.siteID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var page permissionPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, syncerr.TransientIO("sharepoint_permissions_decode", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, syncerr.TransientIO("sharepoint_permissions", fmt.Errorf("status %d", resp.StatusCode))
	}

	changes := make([]syncsource.DirSyncChange, 0, len(page.Value))
	for _, p := range page.Value {
		who, memberType := grantedMember(p)
		if who == "" {
			continue
		}
		changes = append(changes, syncsource.DirSyncChange{
			Op:         "ADD",
			GroupID:    s.siteID,
			GroupName:  groupName,
			MemberID:   who,
			MemberType: memberType,
		})
	}

	return &syncsource.DirSyncResult{
		Changes:           changes,
		ModifiedGroupIDs:  []string{s.siteID},
		IncrementalValues: false,
	}, nil
}

// siteDisplayName looks up the site's display name to stamp onto every
// membership row as group_name.
func (s *Source) siteDisplayName(ctx context.Context) (string, error) {
	resp, err := s.do(ctx, fmt.Sprintf("/sites/%s", s.siteID))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", syncerr.TransientIO("sharepoint_site", fmt.Errorf("status %d", resp.StatusCode))
	}

	var meta siteMeta
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", syncerr.TransientIO("sharepoint_site_decode", err)
	}
	return meta.DisplayName, nil
}

// grantedMember returns the id and member_type ("user" or "group") a
// permission was granted to, preferring the v2 identity set. An empty id
// means the permission grants to neither a user nor a group (e.g. an
// anonymous link) and should be skipped.
func grantedMember(p permission) (id, memberType string) {
	for _, g := range []*grantee{p.GrantedToV2, p.GrantedTo} {
		if g == nil {
			continue
		}
		if g.User != nil && g.User.ID != "" {
			return g.User.ID, "user"
		}
		if g.Group != nil && g.Group.ID != "" {
			return g.Group.ID, "group"
		}
	}
	return "", ""
}

func relativeFromNextLink(nextLink string) string {
	if nextLink == "" {
		return ""
	}
	idx := strings.Index(nextLink, "/v1.0")
	if idx == -1 {
		return ""
	}
	return nextLink[idx+len("/v1.0"):]
}

func (s *Source) do(ctx context.Context, path string) (*http.Response, error) {
	return s.mgr.Do(ctx, s.connectionID, &synctoken.Token{}, s.refreshFn, func(tok *synctoken.Token) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		return req, nil
	})
}
