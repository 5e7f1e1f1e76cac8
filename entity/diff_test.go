package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffNewEntity(t *testing.T) {
	next := &Entity{
		ID:      "P1",
		Type:    TypeProduct,
		Name:    "epoxy adhesive",
		Content: "two-part epoxy",
		Metadata: Metadata{
			Keywords: []string{"adhesive"},
		},
	}

	changes := Diff(nil, next)

	require.Contains(t, changes, "name")
	require.Contains(t, changes, "content")
	require.Contains(t, changes, "metadata")
	assert.Equal(t, `"epoxy adhesive"`, changes["name"].New)
	assert.Equal(t, `""`, changes["name"].Old)
}

func TestDiffModifiedFields(t *testing.T) {
	prev := &Entity{
		ID:      "P1",
		Type:    TypeProduct,
		Name:    "epoxy adhesive",
		Content: "two-part epoxy",
	}
	next := &Entity{
		ID:            "P1",
		Type:          TypeProduct,
		Name:          "epoxy adhesive",
		Content:       "two-part marine epoxy",
		Relationships: []string{"D7"},
	}

	changes := Diff(prev, next)

	assert.Len(t, changes, 2)
	assert.Contains(t, changes, "content")
	assert.Contains(t, changes, "relationships")
	assert.NotContains(t, changes, "name")
}

func TestDiffIdenticalEntities(t *testing.T) {
	e := &Entity{
		ID:   "P1",
		Type: TypeProduct,
		Name: "epoxy adhesive",
		Metadata: Metadata{
			Tags:       []string{"a", "b"},
			Attributes: map[string]string{"color": "grey"},
		},
	}
	clone := *e

	assert.Empty(t, Diff(e, &clone))
}

func TestDiffMetadataAttributes(t *testing.T) {
	prev := &Entity{ID: "P1", Metadata: Metadata{Attributes: map[string]string{"color": "grey"}}}
	next := &Entity{ID: "P1", Metadata: Metadata{Attributes: map[string]string{"color": "white"}}}

	changes := Diff(prev, next)
	require.Contains(t, changes, "metadata")
}

func TestValidate(t *testing.T) {
	assert.Error(t, (&Entity{}).Validate())
	assert.Error(t, (&Entity{ID: "   "}).Validate())
	assert.NoError(t, (&Entity{ID: "P1"}).Validate())
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, TypeProduct, NormalizeType("Product"))
	assert.Equal(t, TypeDocument, NormalizeType(" document "))
	assert.Equal(t, TypeOther, NormalizeType("widget"))
	assert.Equal(t, TypeOther, NormalizeType(""))
}
