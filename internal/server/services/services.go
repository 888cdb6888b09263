// Package services contains server-side business logic: the payment
// reconciler, encrypted document storage and user accounts.
package services

// Cipher seals document content. *cryptox.Cipher implements it.
type Cipher interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(blob string) ([]byte, error)
}

// CredentialHasher derives and checks stored passwords. *cryptox.Hasher
// implements it.
type CredentialHasher interface {
	Hash(password string) (string, error)
	Verify(password, stored string) bool
}
