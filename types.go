package authsync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// EventKind identifies a session lifecycle event pushed by the identity
// provider. Providers may emit other kinds upstream; only these are acted on.
type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// EventHandler receives session lifecycle events. The session is nil for
// EventSignedOut.
type EventHandler func(kind EventKind, session *Session)

// Subscription is a scoped acquisition over a push-event registration. It
// must be released exactly once during teardown.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to the Subscription interface.
type SubscriptionFunc func()

// Unsubscribe implements Subscription.
func (f SubscriptionFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}

// SignUpResult is the outcome of a successful identity account creation.
// RequiresVerification is a success state, not an error: the account exists
// but has no verified identity yet, so no session is issued until the user
// confirms their email.
type SignUpResult struct {
	Session              *Session
	User                 *IdentityUser
	RequiresVerification bool
}

// IdentityClient wraps the remote identity provider: request/response
// operations plus a push-event channel for session lifecycle changes. The
// event channel is the only push-based input to the system and is the source
// of truth for session state after startup.
type IdentityClient interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*SignUpResult, error)
	SignOut(ctx context.Context) error
	ResetPasswordRequest(ctx context.Context, email string) error
	UpdateMetadata(ctx context.Context, partial map[string]any) error

	// CurrentSession and CurrentUser report the provider's locally known
	// session/identity, restoring persisted state if needed. Both return
	// (nil, nil) when no session exists.
	CurrentSession(ctx context.Context) (*Session, error)
	CurrentUser(ctx context.Context) (*IdentityUser, error)

	Subscribe(handler EventHandler) Subscription
}

// Profiles is the store for application-level profile records, keyed by
// identity id. A missing record surfaces as ErrProfileNotFound, which is
// benign and distinguishable from a genuine fetch failure.
type Profiles interface {
	Fetch(ctx context.Context, id uuid.UUID) (*ProfileRecord, error)
	Create(ctx context.Context, record *ProfileRecord) (*ProfileRecord, error)
	Update(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*ProfileRecord, error)
	Enroll(ctx context.Context, id uuid.UUID, certificationID string) (*ProfileRecord, bool, error)
}

// CredentialStore is the best-effort persistent cache for credential
// material. Implementations never raise: failures are logged and degrade to
// a cache miss, since a lost cache entry only forces a re-authentication.
type CredentialStore interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
	Remove(ctx context.Context, key string)
	RemoveAll(ctx context.Context, keys []string)
}

// DefaultLogger returns the package's stdout logger.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHSYNC "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHSYNC "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHSYNC "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHSYNC "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
