package cryptox

import (
	"strings"
	"testing"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Low cost keeps the suite fast; the derivation itself is what's under test.
func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(2000, LegacyIterations)
	require.NoError(t, err)
	return h
}

func TestNewHasher_Validation(t *testing.T) {
	_, err := NewHasher(0, 0)
	require.ErrorIs(t, err, common.ErrConfiguration)

	_, err = NewHasher(10, -1)
	require.ErrorIs(t, err, common.ErrConfiguration)

	h, err := NewHasher(DefaultIterations, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultIterations, h.Iterations)
}

func TestHash_Format(t *testing.T) {
	stored, err := newTestHasher(t).Hash("correct horse")
	require.NoError(t, err)

	salt, hash, ok := strings.Cut(stored, ":")
	require.True(t, ok)
	assert.Len(t, salt, 2*credentialSaltSize)
	assert.Len(t, hash, 2*derivedKeySize)
}

func TestHashVerify(t *testing.T) {
	h := newTestHasher(t)

	for _, pw := range []string{"", "p", "Password123!", "пароль", strings.Repeat("x", 200)} {
		stored, err := h.Hash(pw)
		require.NoError(t, err)

		assert.True(t, h.Verify(pw, stored), "password %q", pw)
		assert.False(t, h.Verify(pw+"x", stored), "password %q", pw)
	}
}

func TestHash_SaltDiffers(t *testing.T) {
	h := newTestHasher(t)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("same", a))
	assert.True(t, h.Verify("same", b))
}

func TestVerify_LegacyIterations(t *testing.T) {
	legacy := &Hasher{Iterations: LegacyIterations}
	stored, err := legacy.Hash("old-account")
	require.NoError(t, err)

	withFallback := newTestHasher(t)
	assert.True(t, withFallback.Verify("old-account", stored))

	noFallback := &Hasher{Iterations: 2000}
	assert.False(t, noFallback.Verify("old-account", stored))
}

func TestVerify_Bcrypt(t *testing.T) {
	b, err := bcrypt.GenerateFromPassword([]byte("from-register-route"), bcrypt.MinCost)
	require.NoError(t, err)

	h := newTestHasher(t)
	assert.True(t, h.Verify("from-register-route", string(b)))
	assert.False(t, h.Verify("nope", string(b)))
}

func TestVerify_MalformedReturnsFalse(t *testing.T) {
	h := newTestHasher(t)
	good, err := h.Hash("pw")
	require.NoError(t, err)
	salt, hash, _ := strings.Cut(good, ":")

	for _, stored := range []string{
		"",
		":",
		"nocolon",
		salt + ":",
		":" + hash,
		"zz:" + hash,
		salt + ":zz",
		salt + ":" + hash[:len(hash)-2],
		salt + ":" + hash + ":extra",
		"$2a$broken",
	} {
		assert.NotPanics(t, func() {
			assert.False(t, h.Verify("pw", stored), "stored %q", stored)
		})
	}
}
