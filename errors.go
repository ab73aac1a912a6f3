package authsync

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	textCodeInvalidCredentials = "INVALID_CREDENTIALS"
	textCodeProviderError      = "AUTH_PROVIDER_ERROR"
	textCodeNetworkError       = "NETWORK_ERROR"
	textCodeProfileNotFound    = "PROFILE_NOT_FOUND"
	textCodeNotAuthenticated   = "NOT_AUTHENTICATED"
	textCodeMissingDependency  = "MISSING_DEPENDENCY"
)

// ErrInvalidCredentials is returned when the identity provider rejects the
// supplied email/password pair.
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrNotAuthenticated is the local precondition failure for actions that
// require a current user.
var ErrNotAuthenticated = goerrors.New("no authenticated user", goerrors.CategoryAuth).
	WithTextCode(textCodeNotAuthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityNotFound is returned when the provider reports no identity for
// the current session.
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrProfileNotFound is the named sentinel for the benign missing-profile
// condition (new identity not yet provisioned, or a provisioning race). It
// is deliberately backend-agnostic: repositories map their own not-found
// signal to it rather than leaking an upstream error code.
var ErrProfileNotFound = goerrors.New("profile record not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeProfileNotFound).
	WithCode(goerrors.CodeNotFound)

// NewProfileNotFound returns a fresh missing-profile error carrying the
// identity id. The shared ErrProfileNotFound sentinel is never decorated;
// predicates match on category, not identity.
func NewProfileNotFound(id uuid.UUID) *goerrors.Error {
	return goerrors.New("profile record not found", goerrors.CategoryNotFound).
		WithTextCode(textCodeProfileNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{"id": id.String()})
}

// NewProviderError wraps an identity operation rejection that is not a
// credential mismatch.
func NewProviderError(status int, message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithTextCode(textCodeProviderError).
		WithCode(status)
}

// NewNetworkError wraps a transport failure talking to a remote
// collaborator. Network errors are transient and are never retried
// automatically; the caller decides.
func NewNetworkError(err error, message string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, message).
		WithTextCode(textCodeNetworkError)
}

// IsProfileNotFound reports whether err is the benign missing-profile
// sentinel rather than a genuine fetch failure.
func IsProfileNotFound(err error) bool {
	if err == nil {
		return false
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryNotFound
	}

	return false
}

// IsNetworkError reports whether err represents a transport failure.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryOperation
	}

	return false
}

// IsNotAuthenticated reports whether err is the local not-authenticated
// precondition failure.
func IsNotAuthenticated(err error) bool {
	if err == nil {
		return false
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode == textCodeNotAuthenticated
	}

	return false
}
