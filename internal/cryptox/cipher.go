// Package cryptox implements document encryption at rest and one-way
// credential hashing.
//
// Encrypted blobs use AES-256-GCM with a 16-byte random nonce and are stored
// as lowercase hex of nonce | tag | ciphertext. The layout is shared with data
// written by earlier versions of the portal and must not change.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/dmitrijs2005/casevault/internal/common"
)

const (
	// KeySize is the AES-256 key length in bytes (64 hex characters).
	KeySize   = 32
	NonceSize = 16
	TagSize   = 16

	headerSize = NonceSize + TagSize
)

// Cipher encrypts and decrypts document payloads under one process-wide key.
// It holds no mutable state and is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// ParseKey decodes a 64-character hex key. Any other shape is an
// ErrConfiguration.
func ParseKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("%w: encryption key is not set", common.ErrConfiguration)
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: encryption key is not valid hex", common.ErrConfiguration)
	}
	if len(key) != KeySize {
		common.WipeByteArray(key)
		return nil, fmt.Errorf("%w: encryption key must be %d bytes, got %d", common.ErrConfiguration, KeySize, len(key))
	}
	return key, nil
}

// NewCipher builds a Cipher from a raw 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: encryption key must be %d bytes, got %d", common.ErrConfiguration, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	return &Cipher{aead: aead}, nil
}

// NewCipherFromHex parses hexKey and builds a Cipher. The decoded key bytes
// are wiped once the AES key schedule has been derived.
func NewCipherFromHex(hexKey string) (*Cipher, error) {
	key, err := ParseKey(hexKey)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)
	return NewCipher(key)
}

// Encrypt seals plaintext under a fresh random nonce and returns the hex
// encoded blob.
//
// Parameters:
//   - plaintext: the bytes to seal. It may be empty.
//
// Returns:
//   - blob: lowercase hex of nonce | tag | ciphertext.
//   - err: non-nil if the random source or the AEAD fails.
//
// Example:
//
//	c, err := NewCipherFromHex(os.Getenv("ENCRYPTION_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	blob, err := c.Encrypt([]byte("retainer agreement"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println(blob)
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}

	// Seal appends the tag after the ciphertext; the stored layout puts it first.
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	ct, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	out := make([]byte, 0, headerSize+len(ct))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)

	return hex.EncodeToString(out), nil
}

// Decrypt authenticates and opens a blob produced by Encrypt. Any failure
// (bad hex, truncated input, wrong key, modified bytes) is reported as
// ErrIntegrity and no plaintext is returned.
//
// Parameters:
//   - blob: the hex string returned by Encrypt.
//
// Returns:
//   - plaintext: the original bytes.
//   - err: common.ErrIntegrity if the blob cannot be authenticated.
//
// Example:
//
//	plaintext, err := c.Decrypt(blob)
//	if errors.Is(err, common.ErrIntegrity) {
//	    log.Printf("document was modified at rest")
//	    return
//	}
//
//	fmt.Printf("%s\n", plaintext)
func (c *Cipher) Decrypt(blob string) ([]byte, error) {
	raw, err := hex.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: blob is not valid hex", common.ErrIntegrity)
	}
	if len(raw) < headerSize {
		return nil, fmt.Errorf("%w: blob is too short", common.ErrIntegrity)
	}

	nonce, tag, ct := raw[:NonceSize], raw[NonceSize:headerSize], raw[headerSize:]

	sealed := make([]byte, 0, len(ct)+TagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: message authentication failed", common.ErrIntegrity)
	}
	return plaintext, nil
}
