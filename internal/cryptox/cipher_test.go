package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipherFromHex(testKeyHex)
	require.NoError(t, err)
	return c
}

func TestParseKey_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"not hex", strings.Repeat("zz", 32)},
		{"too short", "0011"},
		{"too long", testKeyHex + "00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseKey(tt.key)
			require.ErrorIs(t, err, common.ErrConfiguration)

			_, err = NewCipherFromHex(tt.key)
			require.ErrorIs(t, err, common.ErrConfiguration)
		})
	}
}

func TestNewCipher_RejectsWrongLength(t *testing.T) {
	_, err := NewCipher(make([]byte, 16))
	require.ErrorIs(t, err, common.ErrConfiguration)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c := newTestCipher(t)

	inputs := [][]byte{
		{},
		[]byte("a"),
		[]byte("I-589 supporting statement"),
		common.GenerateRandByteArray(4096),
	}
	for _, in := range inputs {
		blob, err := c.Encrypt(in)
		require.NoError(t, err)

		out, err := c.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, len(in), len(out))
		assert.Equal(t, string(in), string(out))
	}
}

func TestEncrypt_Layout(t *testing.T) {
	c := newTestCipher(t)
	plaintext := []byte("passport scan")

	blob, err := c.Encrypt(plaintext)
	require.NoError(t, err)

	assert.Equal(t, blob, strings.ToLower(blob), "blob must be lowercase hex")
	assert.Len(t, blob, 2*(NonceSize+TagSize+len(plaintext)))

	// Rebuild with the standard library to pin nonce | tag | ciphertext.
	raw, err := hex.DecodeString(blob)
	require.NoError(t, err)
	key, _ := hex.DecodeString(testKeyHex)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	require.NoError(t, err)

	nonce, tag, ct := raw[:NonceSize], raw[NonceSize:NonceSize+TagSize], raw[NonceSize+TagSize:]
	out, err := gcm.Open(nil, nonce, append(append([]byte{}, ct...), tag...), nil)
	require.NoError(t, err)
	assert.Equal(t, plaintext, out)
}

func TestDecrypt_AcceptsBlobBuiltByOtherProducer(t *testing.T) {
	key, _ := hex.DecodeString(testKeyHex)
	block, _ := aes.NewCipher(key)
	gcm, _ := cipher.NewGCMWithNonceSize(block, NonceSize)

	nonce := []byte("0123456789abcdef")
	sealed := gcm.Seal(nil, nonce, []byte("hello"), nil)
	ct, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]
	blob := hex.EncodeToString(nonce) + strings.ToUpper(hex.EncodeToString(tag)) + hex.EncodeToString(ct)

	out, err := newTestCipher(t).Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestDecrypt_EveryBitFlipFails(t *testing.T) {
	c := newTestCipher(t)

	blob, err := c.Encrypt([]byte("A-number 012-345-678"))
	require.NoError(t, err)
	raw, err := hex.DecodeString(blob)
	require.NoError(t, err)

	for i := 0; i < len(raw); i++ {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte{}, raw...)
			tampered[i] ^= 1 << bit

			out, err := c.Decrypt(hex.EncodeToString(tampered))
			require.ErrorIs(t, err, common.ErrIntegrity, "byte %d bit %d", i, bit)
			require.Nil(t, out)
		}
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	blob, err := newTestCipher(t).Encrypt([]byte("secret"))
	require.NoError(t, err)

	other, err := NewCipher(common.GenerateRandByteArray(KeySize))
	require.NoError(t, err)

	out, err := other.Decrypt(blob)
	require.ErrorIs(t, err, common.ErrIntegrity)
	assert.Nil(t, out)
}

func TestDecrypt_MalformedInput(t *testing.T) {
	c := newTestCipher(t)
	for _, blob := range []string{"", "abc", "zz", strings.Repeat("00", headerSize-1)} {
		out, err := c.Decrypt(blob)
		require.ErrorIs(t, err, common.ErrIntegrity, "blob %q", blob)
		assert.Nil(t, out)
	}
}

func TestDecrypt_TruncatedCiphertextFails(t *testing.T) {
	c := newTestCipher(t)
	blob, err := c.Encrypt([]byte("truncate me please"))
	require.NoError(t, err)

	_, err = c.Decrypt(blob[:len(blob)-2])
	require.ErrorIs(t, err, common.ErrIntegrity)
}

func TestEncrypt_NonceNeverRepeats(t *testing.T) {
	c := newTestCipher(t)
	plaintext := []byte("same input every time")

	const trials = 10_000
	seen := make(map[string]struct{}, trials)
	for i := 0; i < trials; i++ {
		blob, err := c.Encrypt(plaintext)
		require.NoError(t, err)

		nonce := blob[:2*NonceSize]
		_, dup := seen[nonce]
		require.False(t, dup, "nonce repeated after %d encryptions", i)
		seen[nonce] = struct{}{}
	}
}
