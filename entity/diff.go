package entity

import (
	"encoding/json"
	"slices"
)

// FieldChange records the old and new value of one changed field.
// Values are the canonical JSON encoding of the field so that list and
// map fields diff deterministically.
type FieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Diff computes the field-level difference between the prior and next
// version of an entity via explicit field comparison (no reflection).
// prev may be nil for a newly created entity, in which case every
// non-zero field of next is reported against an empty old value.
func Diff(prev, next *Entity) map[string]FieldChange {
	changes := make(map[string]FieldChange)

	var base Entity
	if prev != nil {
		base = *prev
	}

	if base.Name != next.Name {
		changes["name"] = FieldChange{Old: jsonValue(base.Name), New: jsonValue(next.Name)}
	}
	if base.Type != next.Type {
		changes["type"] = FieldChange{Old: jsonValue(string(base.Type)), New: jsonValue(string(next.Type))}
	}
	if base.Content != next.Content {
		changes["content"] = FieldChange{Old: jsonValue(base.Content), New: jsonValue(next.Content)}
	}
	if base.SearchText != next.SearchText {
		changes["search_text"] = FieldChange{Old: jsonValue(base.SearchText), New: jsonValue(next.SearchText)}
	}
	if !metadataEqual(base.Metadata, next.Metadata) {
		changes["metadata"] = FieldChange{Old: jsonValue(base.Metadata), New: jsonValue(next.Metadata)}
	}
	if !slices.Equal(base.Relationships, next.Relationships) {
		changes["relationships"] = FieldChange{Old: jsonValue(base.Relationships), New: jsonValue(next.Relationships)}
	}

	return changes
}

func metadataEqual(a, b Metadata) bool {
	if a.Category != b.Category {
		return false
	}
	if !slices.Equal(a.Keywords, b.Keywords) {
		return false
	}
	if !slices.Equal(a.Tags, b.Tags) {
		return false
	}
	if len(a.Attributes) != len(b.Attributes) {
		return false
	}
	for k, v := range a.Attributes {
		if bv, ok := b.Attributes[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// jsonValue encodes v as JSON, falling back to an empty string on
// marshal failure. All Entity fields are plain data so failure is not
// expected in practice.
func jsonValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
