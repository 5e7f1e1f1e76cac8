package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Digest is a compact projection of an entity plus a content hash,
// embedded in change records for integrity verification.
type Digest struct {
	EntityID    string `json:"entity_id"`
	Type        Type   `json:"type"`
	Name        string `json:"name"`
	Version     int64  `json:"version"`
	ContentHash string `json:"content_hash"`
}

// ComputeDigest builds the digest for an entity. The content hash is
// SHA-256 over the entity's canonical JSON encoding, so any field
// change produces a different hash.
func ComputeDigest(e *Entity) Digest {
	d := Digest{
		EntityID: e.ID,
		Type:     e.Type,
		Name:     e.Name,
		Version:  e.Version,
	}

	// Hash the canonical encoding; json.Marshal emits struct fields in
	// declaration order and sorts map keys, so the encoding is stable.
	b, err := json.Marshal(e)
	if err != nil {
		return d
	}
	sum := sha256.Sum256(b)
	d.ContentHash = hex.EncodeToString(sum[:])
	return d
}

// Verify reports whether the digest still matches the entity.
func (d Digest) Verify(e *Entity) bool {
	return d.ContentHash != "" && d.ContentHash == ComputeDigest(e).ContentHash
}
