package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairnstack/cairn/errors"
)

func TestRoundTrip(t *testing.T) {
	c := Default()

	cases := map[string][]byte{
		"empty":  {},
		"short":  []byte("hello"),
		"json":   []byte(`{"entity_id":"P1","changes":[{"field":"content"}]}`),
		"large":  []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 10000)),
		"binary": {0x00, 0xff, 0x10, 0x80, 0x7f},
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			compressed, err := c.Compress(payload)
			require.NoError(t, err)

			restored, err := c.Decompress(compressed)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(payload, restored))
		})
	}
}

func TestCompressionShrinksRepetitivePayloads(t *testing.T) {
	c := Default()
	payload := []byte(strings.Repeat("change record for entity P1 ", 1000))

	compressed, err := c.Compress(payload)
	require.NoError(t, err)

	assert.Less(t, len(compressed), len(payload))
	assert.Less(t, Ratio(len(compressed), len(payload)), 1.0)
}

func TestDecompressCorruptInput(t *testing.T) {
	c := Default()

	_, err := c.Decompress([]byte("not a gzip stream"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecompression))
}

func TestDecompressTruncatedStream(t *testing.T) {
	c := Default()

	compressed, err := c.Compress([]byte(strings.Repeat("abc", 5000)))
	require.NoError(t, err)

	_, err = c.Decompress(compressed[:len(compressed)/2])
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecompression))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio(10, 0))
	assert.Equal(t, 0.5, Ratio(50, 100))
}

func TestInvalidLevelFallsBack(t *testing.T) {
	c := New(99)
	compressed, err := c.Compress([]byte("payload"))
	require.NoError(t, err)

	restored, err := c.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), restored)
}
