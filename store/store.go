// Package store provides the persistent credential cache backing session
// restoration. The cache is strictly best-effort: every failure degrades to
// a cache miss or a logged warning, because losing a cached credential only
// costs the user a re-authentication while a raised error would break the
// auth flow outright.
package store

import (
	"context"
)

// Backend is the platform-specific persistence under the cache: an OS
// keychain, an encrypted database, or plain memory. Backends report errors;
// the SecureStore decides they don't matter.
type Backend interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// ErrNotFound is returned by backends for a missing key.
var errNotFound = errorString("store: key not found")

type errorString string

func (e errorString) Error() string { return string(e) }

// IsNotFound reports whether a backend error means "key absent" rather than
// a genuine failure.
func IsNotFound(err error) bool {
	return err == errNotFound
}

// Logger is the subset of logging the store needs.
type Logger interface {
	Warn(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Option customizes a SecureStore.
type Option func(*SecureStore)

// WithLogger sets the logger used to report swallowed backend failures.
func WithLogger(logger Logger) Option {
	return func(s *SecureStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// SecureStore wraps a Backend with the swallow-and-log error policy. A
// failed read is a miss, a failed write is a warning, and a multi-key
// removal attempts every key independently.
type SecureStore struct {
	backend Backend
	logger  Logger
}

// New creates a SecureStore over the given backend.
func New(backend Backend, opts ...Option) *SecureStore {
	s := &SecureStore{
		backend: backend,
		logger:  noopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Get returns the value for key. Missing keys and backend failures both
// report ok=false; a failure is additionally logged.
func (s *SecureStore) Get(ctx context.Context, key string) (string, bool) {
	value, err := s.backend.GetItem(ctx, key)
	if err != nil {
		if !IsNotFound(err) {
			s.logger.Warn("store: get %q failed: %v", key, err)
		}
		return "", false
	}
	return value, true
}

// Set persists value under key. Failures are logged and dropped.
func (s *SecureStore) Set(ctx context.Context, key, value string) {
	if err := s.backend.SetItem(ctx, key, value); err != nil {
		s.logger.Warn("store: set %q failed: %v", key, err)
	}
}

// Remove deletes key. Failures are logged and dropped.
func (s *SecureStore) Remove(ctx context.Context, key string) {
	if err := s.backend.RemoveItem(ctx, key); err != nil && !IsNotFound(err) {
		s.logger.Warn("store: remove %q failed: %v", key, err)
	}
}

// RemoveAll deletes every key, continuing past individual failures so one
// bad entry cannot leave the rest of the credential material behind.
func (s *SecureStore) RemoveAll(ctx context.Context, keys []string) {
	for _, key := range keys {
		s.Remove(ctx, key)
	}
}
