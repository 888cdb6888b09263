// Package common defines shared constants, helpers and sentinel errors used
// across casevault layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")

	// ErrConfiguration means key material or other startup settings are
	// missing or malformed. It is fatal at process start.
	ErrConfiguration = errors.New("configuration error")

	// ErrIntegrity means an encrypted blob failed authentication.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrValidation means caller-supplied data violates a precondition.
	ErrValidation = errors.New("validation error")

	// ErrPersistence means a storage operation failed or left local and
	// external state out of step. Retryable.
	ErrPersistence = errors.New("persistence error")

	// ErrReconciliation means a provider event implies a transition the
	// payment state machine does not permit.
	ErrReconciliation = errors.New("reconciliation error")

	// ErrAuthentication means an inbound signature or token did not verify.
	ErrAuthentication = errors.New("authentication failed")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)

// kinds is ordered: the first match wins when an error wraps several sentinels.
var kinds = []struct {
	err  error
	name string
}{
	{ErrConfiguration, "configuration"},
	{ErrIntegrity, "integrity"},
	{ErrAuthentication, "authentication"},
	{ErrInvalidToken, "authentication"},
	{ErrValidation, "validation"},
	{ErrReconciliation, "reconciliation"},
	{ErrPersistence, "persistence"},
	{ErrorUnauthorized, "unauthorized"},
	{ErrForbidden, "forbidden"},
	{ErrAlreadyExists, "already_exists"},
	{ErrorNotFound, "not_found"},
}

// Kind returns a short, log-friendly name for the error kind carried by err,
// or "internal" when err wraps none of the known sentinels.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}
