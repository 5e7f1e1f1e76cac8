package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDigest(t *testing.T) {
	e := &Entity{
		ID:      "P1",
		Type:    TypeProduct,
		Name:    "epoxy adhesive",
		Content: "two-part epoxy",
		Version: 3,
	}

	d := ComputeDigest(e)

	assert.Equal(t, "P1", d.EntityID)
	assert.Equal(t, int64(3), d.Version)
	require.NotEmpty(t, d.ContentHash)
	assert.True(t, d.Verify(e))
}

func TestDigestDetectsMutation(t *testing.T) {
	e := &Entity{ID: "P1", Type: TypeProduct, Name: "epoxy", Version: 1}
	d := ComputeDigest(e)

	e.Content = "tampered"
	assert.False(t, d.Verify(e))
}

func TestDigestStable(t *testing.T) {
	e := &Entity{
		ID:       "P1",
		Metadata: Metadata{Attributes: map[string]string{"b": "2", "a": "1"}},
	}

	// Map key ordering must not change the hash.
	assert.Equal(t, ComputeDigest(e).ContentHash, ComputeDigest(e).ContentHash)
}
