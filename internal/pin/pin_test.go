package pin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("1234")
	require.NoError(t, err)
	assert.NotEqual(t, "1234", hash)

	assert.True(t, h.Verify(hash, "1234"))
	assert.False(t, h.Verify(hash, "9999"))
	assert.False(t, h.Verify(hash, ""))

	// salted: same secret, different digests
	other, err := h.Hash("1234")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other)
	assert.True(t, h.Verify(other, "1234"))

	_, err = h.Hash("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestBcryptHasher_InvalidCostFallsBack(t *testing.T) {
	h := NewBcryptHasher(0)
	assert.Equal(t, bcrypt.DefaultCost, h.cost)
}

func TestHMACHasher(t *testing.T) {
	h, err := NewHMACHasher("server-key")
	require.NoError(t, err)

	a, err := h.Hash("1234")
	require.NoError(t, err)
	b, err := h.Hash("1234")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.True(t, h.Verify(a, "1234"))
	assert.False(t, h.Verify(a, "4321"))

	other, _ := NewHMACHasher("another-key")
	c, _ := other.Hash("1234")
	assert.NotEqual(t, a, c)

	_, err = NewHMACHasher("")
	assert.Error(t, err)
}

func TestPlaceholderNeverVerifies(t *testing.T) {
	hm, _ := NewHMACHasher("k")
	for _, h := range []Hasher{NewBcryptHasher(bcrypt.MinCost), hm} {
		assert.False(t, h.Verify(PlaceholderHash, ""))
		assert.False(t, h.Verify(PlaceholderHash, "1234"))
		assert.False(t, h.Verify(PlaceholderHash, PlaceholderHash))
	}
}

func TestNew(t *testing.T) {
	h, err := New("", bcrypt.MinCost, "")
	require.NoError(t, err)
	assert.IsType(t, &BcryptHasher{}, h)

	h, err = New("HMAC", 0, "key")
	require.NoError(t, err)
	assert.IsType(t, &HMACHasher{}, h)

	_, err = New("hmac", 0, "")
	assert.Error(t, err)

	_, err = New("md5", 0, "")
	assert.Error(t, err)
}
