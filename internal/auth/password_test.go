package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasher(bcrypt.MinCost)

	for _, secret := range []string{"pw1", "correct horse battery staple", "ünïcødé", " spaced "} {
		hash, err := h.Hash(secret)
		require.NoError(t, err)
		assert.NotEqual(t, secret, hash)

		ok, err := h.Verify(secret, hash)
		require.NoError(t, err)
		assert.True(t, ok, "secret %q should verify", secret)
	}
}

func TestPasswordHasher_SaltsEachHash(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasher(bcrypt.MinCost)

	first, err := h.Hash("same")
	require.NoError(t, err)
	second, err := h.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestPasswordHasher_MismatchIsNotAnError(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasher(bcrypt.MinCost)
	hash, err := h.Hash("pw1")
	require.NoError(t, err)

	ok, err := h.Verify("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHasher_MalformedHash(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasher(bcrypt.MinCost)

	ok, err := h.Verify("pw1", "not-a-bcrypt-hash")
	require.ErrorIs(t, err, ErrMalformedHash)
	assert.False(t, ok)
}

func TestPasswordHasher_EmptySecret(t *testing.T) {
	t.Parallel()

	_, err := NewPasswordHasher(bcrypt.MinCost).Hash("")
	require.ErrorIs(t, err, ErrEmptySecret)
}

func TestPasswordHasher_SecretTooLong(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasher(bcrypt.MinCost)

	_, err := h.Hash(strings.Repeat("a", MaxSecretBytes+1))
	require.ErrorIs(t, err, ErrSecretTooLong)

	hash, err := h.Hash(strings.Repeat("a", MaxSecretBytes))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}

func TestNewPasswordHasher_InvalidCostFallsBack(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasher(1)
	assert.Equal(t, bcrypt.DefaultCost, h.cost)
}
