// Package syncsource defines the contract every connector implements to
// produce entities and, optionally, ACL change feeds (SPEC_FULL §4.2).
package syncsource

import (
	"context"

	"github.com/R3E-Network/syncengine/internal/syncentity"
	"github.com/R3E-Network/syncengine/internal/syncstream"
)

// AuthMethod enumerates how a connector authenticates.
type AuthMethod string

const (
	AuthMethodOAuthBrowser AuthMethod = "oauth_browser"
	AuthMethodOAuthBYOC    AuthMethod = "oauth_byoc"
	AuthMethodAPIKey       AuthMethod = "api_key"
	AuthMethodNone         AuthMethod = "none"
)

// Capabilities are the class-level feature flags spec.md §4.2 requires a
// source to declare.
type Capabilities struct {
	FederatedSearch    bool
	SupportsContinuous bool
	RequiresBYOC       bool
	SupportedAuth      []AuthMethod
}

// Config is the decoded, source-specific configuration (connector config
// JSON plus decrypted credentials) passed to Create.
type Config struct {
	OrganizationID string
	SyncID         string
	Credentials    map[string]any
	Settings       map[string]any
}

// DirSyncChange is one ADD/REMOVE event from an ACL change feed (spec.md §6:
// changes: [{type, member_id, member_type, group_id, group_name?}]).
type DirSyncChange struct {
	Op         string // "ADD" or "REMOVE"
	MemberID   string
	MemberType string // "user" or "group" (nested-group membership)
	GroupID    string
	GroupName  string
}

// DirSyncResult is the output of GetACLChanges (spec.md §4.2, §4.9).
type DirSyncResult struct {
	Changes           []DirSyncChange
	ModifiedGroupIDs  []string
	DeletedGroupIDs   []string
	IncrementalValues bool
	Cookie            string
}

// Source is the contract every connector implements.
type Source interface {
	// Validate performs a cheap, non-destructive connectivity check.
	Validate(ctx context.Context) error

	// GenerateEntities drains the source into emit. Implementations should
	// be written against syncstream.Generator's contract: return emit's
	// error promptly, return nil when exhausted.
	GenerateEntities(ctx context.Context, emit func(syncentity.Entity) error) error

	// Capabilities reports this source's class-level feature flags.
	Capabilities() Capabilities
}

// ACLSource is implemented by sources that support directory-sync style ACL
// reconciliation (spec.md §4.9). Not every Source supports it.
type ACLSource interface {
	Source
	GetACLChanges(ctx context.Context, cursor string) (*DirSyncResult, error)
}

// Factory constructs a Source from Config, failing with a
// *syncerr.SyncError wrapping ErrCodeValidation on bad credentials/config.
type Factory func(ctx context.Context, cfg Config) (Source, error)

// AsGenerator adapts a Source to syncstream.Generator for Open.
func AsGenerator(src Source) syncstream.Generator {
	return func(ctx context.Context, emit func(syncentity.Entity) error) error {
		return src.GenerateEntities(ctx, emit)
	}
}
