// Package githubsource is a REST-based ticketing/VCS source: it walks a
// repository's issues, turning each into a ChunkEntity. It is grounded on
// the teacher's rate-limited HTTP client (infrastructure/ratelimit) via
// internal/synctoken.Manager, since GitHub's REST API enforces its own
// per-token rate limit that a connector must respect independently of
// whatever limit the destination imposes.
package githubsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/R3E-Network/syncengine/internal/syncentity"
	"github.com/R3E-Network/syncengine/internal/syncerr"
	"github.com/R3E-Network/syncengine/internal/synctoken"
	"github.com/R3E-Network/syncengine/internal/syncsource"
)

const defaultBaseURL = "https://api.github.com"

// ShortName is this connector's registry key.
const ShortName = "github"

// errNoRefresh marks an attempted refresh of a static personal-access-token
// credential; GitHub PATs don't rotate through this connector.
var errNoRefresh = errors.New("githubsource: personal access tokens do not refresh")

type issue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
	HTMLURL   string    `json:"html_url"`
	Labels    []struct {
		Name string `json:"name"`
	} `json:"labels"`
	PullRequest json.RawMessage `json:"pull_request,omitempty"`
}

// Source walks a single repository's issues.
type Source struct {
	owner, repo  string
	baseURL      string
	connectionID string
	syncID       string

	mgr   *synctoken.Manager
	token *synctoken.Token
}

// New constructs a Source from decoded connector config. Settings must carry
// "owner" and "repo"; Credentials must carry "access_token".
func New(ctx context.Context, cfg syncsource.Config) (syncsource.Source, error) {
	owner, _ := cfg.Settings["owner"].(string)
	repo, _ := cfg.Settings["repo"].(string)
	if owner == "" || repo == "" {
		return nil, syncerr.Validation("settings.owner/repo", "owner and repo are required")
	}

	accessToken, _ := cfg.Credentials["access_token"].(string)
	if accessToken == "" {
		return nil, syncerr.Validation("credentials.access_token", "access_token is required")
	}

	baseURL := defaultBaseURL
	if v, ok := cfg.Settings["base_url"].(string); ok && v != "" {
		baseURL = strings.TrimSuffix(v, "/")
	}

	return &Source{
		owner:        owner,
		repo:         repo,
		baseURL:      baseURL,
		connectionID: cfg.OrganizationID + ":" + cfg.SyncID,
		syncID:       cfg.SyncID,
		mgr:          defaultManager(),
		token: &synctoken.Token{
			AccessToken: accessToken,
			// Personal access tokens carry no exp claim; treat as valid for
			// a long horizon so GetValidToken never attempts to refresh one.
			ExpiresAt: time.Now().Add(100 * 365 * 24 * time.Hour),
		},
	}, nil
}

func (s *Source) refresh(_ context.Context, _ *synctoken.Token) (*synctoken.Token, error) {
	return nil, errNoRefresh
}

func (s *Source) Validate(ctx context.Context) error {
	resp, err := s.do(ctx, "GET", fmt.Sprintf("/repos/%s/%s", s.owner, s.repo), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return syncerr.Validation("credentials", fmt.Sprintf("repository check returned %d", resp.StatusCode))
	}
	return nil
}

func (s *Source) Capabilities() syncsource.Capabilities {
	return syncsource.Capabilities{
		SupportedAuth: []syncsource.AuthMethod{syncsource.AuthMethodAPIKey},
	}
}

// GenerateEntities pages through the repository's issues (GitHub's issues
// endpoint includes pull requests; those are skipped).
func (s *Source) GenerateEntities(ctx context.Context, emit func(syncentity.Entity) error) error {
	page := 1
	for {
		path := fmt.Sprintf("/repos/%s/%s/issues?state=all&per_page=100&page=%d", s.owner, s.repo, page)
		resp, err := s.do(ctx, "GET", path, nil)
		if err != nil {
			return err
		}

		var issues []issue
		decodeErr := json.NewDecoder(resp.Body).Decode(&issues)
		resp.Body.Close()
		if decodeErr != nil {
			return syncerr.TransientIO("github_issues_decode", decodeErr)
		}
		if resp.StatusCode != http.StatusOK {
			return syncerr.TransientIO("github_issues", fmt.Errorf("status %d", resp.StatusCode))
		}
		if len(issues) == 0 {
			return nil
		}

		for _, iss := range issues {
			if len(iss.PullRequest) > 0 {
				continue // pull requests surface on the issues endpoint too
			}
			entity := s.toEntity(iss)
			if err := emit(entity); err != nil {
				return err
			}
		}
		page++
	}
}

func (s *Source) toEntity(iss issue) *syncentity.ChunkEntity {
	labels := make([]string, 0, len(iss.Labels))
	for _, l := range iss.Labels {
		labels = append(labels, l.Name)
	}

	return &syncentity.ChunkEntity{
		Ident: syncentity.Identity{
			SourceName: ShortName,
			EntityID:   strconv.Itoa(iss.Number),
			SyncID:     s.syncID,
		},
		EntityType: "github_issue",
		Content:    iss.Title + "\n\n" + iss.Body,
		Fields: map[string]any{
			"title":  iss.Title,
			"state":  iss.State,
			"url":    iss.HTMLURL,
			"labels": labels,
		},
	}
}

func (s *Source) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	full, err := url.JoinPath(s.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("githubsource: join url: %w", err)
	}

	return s.mgr.Do(ctx, s.connectionID, s.token, s.refresh, func(tok *synctoken.Token) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, full, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		req.Header.Set("Accept", "application/vnd.github+json")
		return req, nil
	})
}
