// Package syncentity defines the unit of sync: a typed, hashable record
// emitted by a source and carried through the DAG to destinations.
package syncentity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// DeletionStatus enumerates how a DeletionEntity should be treated by
// destinations.
type DeletionStatus string

const (
	DeletionRemoved  DeletionStatus = "removed"
	DeletionArchived DeletionStatus = "archived"
)

// Breadcrumb is one step of an entity's ancestor path: the parent's own
// identity and a human display name.
type Breadcrumb struct {
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
}

// Identity holds the fields that make an entity addressable and that the
// orchestrator enriches before routing (spec.md §4.5 step 1).
type Identity struct {
	SourceName   string            `json:"source_name"`
	EntityID     string            `json:"entity_id"`
	SyncID       string            `json:"sync_id"`
	SyncJobID    string            `json:"sync_job_id"`
	ParentID     string            `json:"parent_id,omitempty"`
	Breadcrumbs  []Breadcrumb      `json:"breadcrumbs"`
	SyncMetadata map[string]string `json:"sync_metadata,omitempty"`

	// DBEntityID is the destination-assigned identifier, stamped by a
	// destination's BulkInsert when the entity arrives without one. Empty
	// until persisted.
	DBEntityID string `json:"db_entity_id,omitempty"`
}

// Entity is the unit of sync. Concrete payload kinds (Chunk, File, Deletion)
// hold an Identity in their Ident field and add their own fields; EntityKind distinguishes them at
// the contract boundary so the orchestrator and router can type-switch
// without reflection.
type Entity interface {
	Identity() *Identity
	Kind() EntityKind
	// ContentHash returns a deterministic digest of the payload, excluding
	// volatile fields (timestamps, server-assigned ids). Pure: calling it
	// twice on the same logical content yields the same value, including
	// across a serialize/deserialize round trip (spec.md §8 property 2).
	ContentHash() (string, error)
}

// EntityKind distinguishes the concrete entity subtype without reflection.
type EntityKind string

const (
	KindChunk    EntityKind = "chunk"
	KindFile     EntityKind = "file"
	KindDeletion EntityKind = "deletion"
)

// ChunkEntity carries a text/binary payload destined for vector or graph
// stores.
type ChunkEntity struct {
	Ident      Identity
	EntityType string         `json:"entity_type"`
	Content    string         `json:"content"`
	Fields     map[string]any `json:"fields,omitempty"`
}

func (e *ChunkEntity) Identity() *Identity { return &e.Ident }
func (e *ChunkEntity) Kind() EntityKind    { return KindChunk }

func (e *ChunkEntity) ContentHash() (string, error) {
	return canonicalHash(struct {
		EntityType string         `json:"entity_type"`
		Content    string         `json:"content"`
		Fields     map[string]any `json:"fields,omitempty"`
	}{e.EntityType, e.Content, e.Fields})
}

// FileEntity carries a local file handle reference plus MIME information.
type FileEntity struct {
	Ident      Identity
	EntityType string `json:"entity_type"`
	LocalPath  string `json:"local_path"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
	Checksum   string `json:"checksum,omitempty"`
}

func (e *FileEntity) Identity() *Identity { return &e.Ident }
func (e *FileEntity) Kind() EntityKind    { return KindFile }

func (e *FileEntity) ContentHash() (string, error) {
	// Hash over content-identifying fields only: LocalPath is a transient
	// filesystem location, not part of the logical content.
	return canonicalHash(struct {
		EntityType string `json:"entity_type"`
		MimeType   string `json:"mime_type"`
		SizeBytes  int64  `json:"size_bytes"`
		Checksum   string `json:"checksum,omitempty"`
	}{e.EntityType, e.MimeType, e.SizeBytes, e.Checksum})
}

// DeletionEntity signals that a previously-seen record has been removed
// from the source. It carries only identity fields plus a DeletionStatus;
// breadcrumbs are empty by construction.
type DeletionEntity struct {
	Ident  Identity
	Status DeletionStatus `json:"deletion_status"`
}

// NewDeletionEntity constructs a DeletionEntity, failing if deletion_status
// is missing (spec.md §4.1).
func NewDeletionEntity(id Identity, status DeletionStatus) (*DeletionEntity, error) {
	if status != DeletionRemoved && status != DeletionArchived {
		return nil, fmt.Errorf("syncentity: deletion_status is required and must be %q or %q", DeletionRemoved, DeletionArchived)
	}
	id.Breadcrumbs = nil
	return &DeletionEntity{Ident: id, Status: status}, nil
}

func (e *DeletionEntity) Identity() *Identity { return &e.Ident }
func (e *DeletionEntity) Kind() EntityKind    { return KindDeletion }

func (e *DeletionEntity) ContentHash() (string, error) {
	return canonicalHash(struct {
		Status DeletionStatus `json:"deletion_status"`
	}{e.Status})
}

// canonicalHash serializes v through a key-sorted JSON encoding and returns
// its SHA-256 hex digest. Go's encoding/json already sorts map keys, but we
// additionally round-trip through a generic map so struct field order never
// leaks into the digest — only field names and values do.
func canonicalHash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("syncentity: marshal for hash: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("syncentity: normalize for hash: %w", err)
	}

	canonical, err := marshalCanonical(generic)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// marshalCanonical re-encodes a decoded JSON value with map keys sorted at
// every level, so hashing is insensitive to key re-ordering.
func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			vb, err := marshalCanonical(val[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, vb...)
		}
		buf = append(buf, '}')
		return buf, nil
	case []any:
		buf := []byte{'['}
		for i, item := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			ib, err := marshalCanonical(item)
			if err != nil {
				return nil, err
			}
			buf = append(buf, ib...)
		}
		buf = append(buf, ']')
		return buf, nil
	default:
		return json.Marshal(val)
	}
}
