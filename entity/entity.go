// Package entity defines the knowledge entity model: the current-state
// record, the immutable change record, and the field-level diff between
// two versions of an entity.
package entity

import (
	"strings"
	"time"

	"github.com/cairnstack/cairn/errors"
)

// Type discriminates the kinds of knowledge entities.
type Type string

const (
	TypeProduct  Type = "product"
	TypeDocument Type = "document"
	TypeOther    Type = "other"
)

// NormalizeType maps arbitrary input to a known Type, defaulting to
// TypeOther for anything unrecognized.
func NormalizeType(s string) Type {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeProduct:
		return TypeProduct
	case TypeDocument:
		return TypeDocument
	default:
		return TypeOther
	}
}

// Metadata holds the searchable annotations attached to an entity.
type Metadata struct {
	Keywords   []string          `json:"keywords,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Category   string            `json:"category,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Entity is the unit of knowledge tracked by the current-state store.
// At most one current record exists per ID; Version is strictly
// increasing and gap-free for that ID.
type Entity struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	Name          string    `json:"name"`
	Content       string    `json:"content"`
	SearchText    string    `json:"search_text,omitempty"`
	Metadata      Metadata  `json:"metadata"`
	Relationships []string  `json:"relationships,omitempty"`
	Version       int64     `json:"version"`
	ChangeCount   int64     `json:"change_count"`
	LastModified  time.Time `json:"last_modified"`
}

// Validate checks the entity is acceptable for upsert.
func (e *Entity) Validate() error {
	if e == nil {
		return errors.Wrap(errors.ErrValidation, "entity is nil")
	}
	if strings.TrimSpace(e.ID) == "" {
		return errors.Wrap(errors.ErrValidation, "entity id is empty")
	}
	return nil
}

// Action describes what a change record did to an entity.
type Action string

const (
	ActionCreated  Action = "created"
	ActionModified Action = "modified"
)

// ChangeRecord is an immutable fact describing one mutation to an
// entity. Records are never updated after creation; they are deleted
// only after successful archival, or retained forever in the archive.
type ChangeRecord struct {
	ID             int64                  `json:"id,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	EntityID       string                 `json:"entity_id"`
	EntityType     Type                   `json:"entity_type"`
	Action         Action                 `json:"action"`
	ChangedFields  map[string]FieldChange `json:"changed_fields"`
	PreviousDigest *Digest                `json:"previous_digest,omitempty"`
	NewDigest      Digest                 `json:"new_digest"`
}
