package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/R3E-Network/syncengine/internal/syncdag"
	"github.com/R3E-Network/syncengine/internal/synccrypto"
)

// sourceDef is the source half of a syncDefinition file: the connector
// short_name plus its settings and credentials. Credentials may be given in
// the clear (local development) or as an envelope-encrypted blob, in which
// case encryptedCredentials carries the ciphertext and Credentials is left
// nil.
type sourceDef struct {
	ShortName            string         `json:"short_name"`
	Settings             map[string]any `json:"settings"`
	Credentials          map[string]any `json:"credentials,omitempty"`
	EncryptedCredentials string         `json:"encrypted_credentials,omitempty"`

	// ACLCursor is the cookie GetACLChanges returned last time this sync
	// reconciled ACL membership (spec.md §4.9). There is no dedicated
	// cursor table for it, so the operator carries it forward between runs
	// by copying the value `sync run` logs at the end of a reconcile into
	// the next definition file.
	ACLCursor string `json:"acl_cursor,omitempty"`
}

// destinationDef is one entry of a syncDefinition's destination list. This
// mirrors the sync_destination table's columns so a definition file can
// seed it: RunSync replaces that sync's sync_destination rows with this
// list and then reads the destinations back from the table, so they need
// not already be rows in Postgres.
type destinationDef struct {
	ShortName string         `json:"short_name"`
	Config    map[string]any `json:"config"`
}

// dagNodeDef is one node of a syncDefinition's transformer DAG. Transformer
// nodes name a script file on disk rather than embedding the script inline,
// so definitions stay readable.
type dagNodeDef struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"` // "source", "transformer", "destination"
	InputType      string `json:"input_type,omitempty"`
	OutputType     string `json:"output_type,omitempty"`
	ScriptPath     string `json:"script_path,omitempty"`
	EntryPoint     string `json:"entry_point,omitempty"`
	DestinationRef string `json:"destination_ref,omitempty"` // short_name, for kind=destination
}

type dagEdgeDef [2]string

// relationDef is the snake_case-on-the-wire form of syncdag.RelationDescriptor.
type relationDef struct {
	SourceType    string `json:"source_type"`
	SourceIDField string `json:"source_id_field"`
	TargetType    string `json:"target_type"`
	TargetIDField string `json:"target_id_field"`
	RelationType  string `json:"relation_type"`
}

func (r relationDef) toDescriptor() syncdag.RelationDescriptor {
	return syncdag.RelationDescriptor{
		SourceType:    r.SourceType,
		SourceIDField: r.SourceIDField,
		TargetType:    r.TargetType,
		TargetIDField: r.TargetIDField,
		RelationType:  r.RelationType,
	}
}

// syncDefinition is the full description of one sync run: everything
// RunJob needs that has no dedicated database table (source config, DAG
// topology, relation descriptors). Destinations are included here too,
// rather than requiring a prior sync_destination row, so a definition file
// is self-contained; `sync run` still persists stats/cursor through the
// Postgres-backed job and state stores.
type syncDefinition struct {
	OrganizationID string                       `json:"organization_id"`
	SyncID         string                        `json:"sync_id"`
	FullSync       bool                          `json:"full_sync"`
	Source         sourceDef                     `json:"source"`
	Destinations   []destinationDef               `json:"destinations"`
	DAG            struct {
		Nodes []dagNodeDef `json:"nodes"`
		Edges []dagEdgeDef `json:"edges"`
	} `json:"dag"`
	Relations []relationDef `json:"relations,omitempty"`
}

// loadSyncDefinition reads and decodes a definition file, decrypting its
// source credentials if they were given as an envelope and an encryption
// key is configured.
func loadSyncDefinition(path string, masterKey []byte) (*syncDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sync definition %s: %w", path, err)
	}

	var def syncDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("parse sync definition %s: %w", path, err)
	}

	if def.Source.EncryptedCredentials != "" {
		if len(masterKey) == 0 {
			return nil, fmt.Errorf("sync definition %s carries encrypted credentials but no encryption key is configured", path)
		}
		plaintext, err := synccrypto.DecryptEnvelope(masterKey, []byte(def.SyncID), "source_credentials", []byte(def.Source.EncryptedCredentials))
		if err != nil {
			return nil, fmt.Errorf("decrypt source credentials for sync %s: %w", def.SyncID, err)
		}
		if err := json.Unmarshal(plaintext, &def.Source.Credentials); err != nil {
			return nil, fmt.Errorf("decode decrypted credentials for sync %s: %w", def.SyncID, err)
		}
	}

	if def.SyncID == "" {
		return nil, fmt.Errorf("sync definition %s: sync_id is required", path)
	}
	if def.Source.ShortName == "" {
		return nil, fmt.Errorf("sync definition %s: source.short_name is required", path)
	}

	return &def, nil
}

// relationDescriptors converts a definition's wire-format relations to the
// syncdag type RunJob's Orchestrator expects.
func (def *syncDefinition) relationDescriptors() []syncdag.RelationDescriptor {
	out := make([]syncdag.RelationDescriptor, 0, len(def.Relations))
	for _, r := range def.Relations {
		out = append(out, r.toDescriptor())
	}
	return out
}
