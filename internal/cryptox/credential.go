package cryptox

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/casevault/internal/common"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations follows current PBKDF2-HMAC-SHA512 guidance.
	DefaultIterations = 210_000

	// LegacyIterations is the count used for credentials stored before the
	// cost was made configurable.
	LegacyIterations = 1000

	credentialSaltSize = 16
	derivedKeySize     = 64
)

// Hasher derives and verifies "<salt-hex>:<hash-hex>" credentials with
// PBKDF2-HMAC-SHA512.
//
// The stored format carries no iteration count, so verification tries
// Iterations first and then LegacyIterations (when non-zero). Hashes produced
// by bcrypt ("$2a$", "$2b$", ...) are also accepted for accounts created by
// the old registration flow.
type Hasher struct {
	Iterations       int
	LegacyIterations int
}

// NewHasher validates the cost parameters. iterations must be positive;
// legacy may be zero to disable the fallback.
func NewHasher(iterations, legacy int) (*Hasher, error) {
	if iterations <= 0 {
		return nil, fmt.Errorf("%w: credential iterations must be positive", common.ErrConfiguration)
	}
	if legacy < 0 {
		return nil, fmt.Errorf("%w: legacy credential iterations must not be negative", common.ErrConfiguration)
	}
	return &Hasher{Iterations: iterations, LegacyIterations: legacy}, nil
}

// Hash returns a new salted credential. Two calls with the same password
// never return the same string.
//
// Parameters:
//   - password: the plaintext password.
//
// Returns:
//   - credential: "<salt-hex>:<hash-hex>" derived with h.Iterations rounds.
//   - err: non-nil if the salt cannot be generated.
//
// Example:
//
//	h, err := NewHasher(210000, 10000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stored, err := h.Hash("correct horse battery staple")
//	if err != nil {
//	    log.Fatal(err)
//	}
func (h *Hasher) Hash(password string) (string, error) {
	salt, err := common.MakeRandHexString(credentialSaltSize)
	if err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	dk := derive(password, salt, h.Iterations)
	return salt + ":" + hex.EncodeToString(dk), nil
}

// Verify reports whether password matches stored. Malformed stored values
// yield false.
//
// Parameters:
//   - password: the plaintext password to check.
//   - stored: a credential produced by Hash, by the legacy iteration count,
//     or a bcrypt hash.
//
// Returns:
//   - ok: true only if password derives to the stored hash.
//
// Example:
//
//	if !h.Verify(req.Password, user.Password) {
//	    return common.ErrorUnauthorized
//	}
func (h *Hasher) Verify(password, stored string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}

	salt, hashHex, ok := strings.Cut(stored, ":")
	if !ok || salt == "" || strings.Contains(hashHex, ":") {
		return false
	}
	if _, err := hex.DecodeString(salt); err != nil {
		return false
	}
	want, err := hex.DecodeString(hashHex)
	if err != nil || len(want) != derivedKeySize {
		return false
	}

	if subtle.ConstantTimeCompare(derive(password, salt, h.Iterations), want) == 1 {
		return true
	}
	if h.LegacyIterations > 0 && h.LegacyIterations != h.Iterations {
		return subtle.ConstantTimeCompare(derive(password, salt, h.LegacyIterations), want) == 1
	}
	return false
}

// derive uses the hex salt string itself as the PBKDF2 salt bytes, which is
// how existing credentials were produced.
func derive(password, saltHex string, iterations int) []byte {
	return pbkdf2.Key([]byte(password), []byte(saltHex), iterations, derivedKeySize, sha512.New)
}
