package webauthn

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 16, 32, 255} {
		buf := make([]byte, n)
		_, err := rand.Read(buf)
		require.NoError(t, err)

		encoded := EncodeBytes(buf)
		decoded, err := DecodeBytes(encoded)
		require.NoError(t, err)
		assert.Equal(t, buf, decoded, "length %d", n)
		assert.Equal(t, encoded, EncodeBytes(decoded), "length %d", n)
	}
}

func TestEncodeBytes_NoPaddingURLAlphabet(t *testing.T) {
	encoded := EncodeBytes([]byte{0xfb, 0xff, 0xfe})
	assert.NotContains(t, encoded, "=")
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")
}

func TestDecodeBytes_AcceptsStandardAlphabetAndPadding(t *testing.T) {
	// 0xfb 0xff 0xfe is "+//+" in the standard alphabet, "-__-" in the
	// URL-safe one; both spellings must decode
	want := []byte{0xfb, 0xff, 0xfe}

	got, err := DecodeBytes("+//+")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = DecodeBytes("-__-")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = DecodeBytes("AQID")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	got, err = DecodeBytes("AQI=")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got)
}

func TestDecodeBytes_RejectsGarbage(t *testing.T) {
	_, err := DecodeBytes("not base64 at all!")
	assert.Error(t, err)
}
