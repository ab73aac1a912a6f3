package authsync

import (
	"context"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultCredentialKeys are the cache entries scrubbed during sign-out.
// Providers that persist under additional keys should extend the list via
// WithCredentialKeys.
var DefaultCredentialKeys = []string{
	"supabase.auth.token",
	"userData",
}

// ActionResult is the uniform outcome of a coordinator action. Actions never
// panic and never return bare errors; callers branch on Success and inspect
// Err without touching global state.
type ActionResult struct {
	Success              bool
	RequiresVerification bool
	AlreadyEnrolled      bool
	Session              *Session
	User                 *CompositeUser
	Err                  error
}

func failure(err error) ActionResult {
	return ActionResult{Err: err}
}

// Option customizes coordinator construction.
type Option func(*Coordinator)

// WithLogger overrides the default logger.
func WithLogger(logger Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish lifecycle events.
func WithActivitySink(sink ActivitySink) Option {
	return func(c *Coordinator) {
		c.activitySink = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithCredentialKeys replaces the set of cache keys scrubbed on sign-out.
func WithCredentialKeys(keys ...string) Option {
	return func(c *Coordinator) {
		c.credentialKeys = append([]string(nil), keys...)
	}
}

// Coordinator owns the canonical AuthState: it drives initialization,
// subscribes to identity session events, merges identity and profile data,
// and serializes every state transition through a single generation-guarded
// writer. One instance lives for the process lifetime.
type Coordinator struct {
	client   IdentityClient
	profiles Profiles
	store    CredentialStore

	logger         Logger
	activitySink   ActivitySink
	now            func() time.Time
	credentialKeys []string

	mu         sync.Mutex
	state      AuthState
	generation uint64
	watchers   map[uint64]func(AuthState)
	nextWatch  uint64
	started    bool
	closed     bool
	sub        Subscription

	closeOnce sync.Once
}

// New creates a coordinator bound to its three collaborators. It fails fast
// on a missing dependency rather than deferring the failure to first use.
func New(client IdentityClient, profiles Profiles, store CredentialStore, opts ...Option) (*Coordinator, error) {
	missing := ""
	switch {
	case client == nil:
		missing = "identity client"
	case profiles == nil:
		missing = "profile repository"
	case store == nil:
		missing = "credential store"
	}
	if missing != "" {
		return nil, goerrors.New("coordinator is missing a required dependency", goerrors.CategoryBadInput).
			WithTextCode(textCodeMissingDependency).
			WithMetadata(map[string]any{"dependency": missing})
	}

	c := &Coordinator{
		client:         client,
		profiles:       profiles,
		store:          store,
		logger:         defLogger{},
		activitySink:   noopActivitySink{},
		now:            time.Now,
		credentialKeys: append([]string(nil), DefaultCredentialKeys...),
		state: AuthState{
			Status:  StatusInitializing,
			Loading: true,
		},
		watchers: map[uint64]func(AuthState){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// Start subscribes to the provider's push events and launches the startup
// restoration fetch. The two paths race by design: both funnel through the
// generation-guarded transition function, so whichever trigger is newest
// wins regardless of completion order.
func (c *Coordinator) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return goerrors.New("coordinator already started", goerrors.CategoryConflict).
			WithCode(goerrors.CodeConflict)
	}
	c.started = true
	gen := c.nextGenerationLocked()
	c.mu.Unlock()

	sub := c.client.Subscribe(func(kind EventKind, session *Session) {
		c.handleEvent(ctx, kind, session)
	})

	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	go c.initialize(ctx, gen)

	return nil
}

// Close releases the push-event subscription. Idempotent: only the first
// call unsubscribes.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		sub := c.sub
		c.sub = nil
		c.mu.Unlock()

		if sub != nil {
			sub.Unsubscribe()
		}
	})
}

// Snapshot returns a copy of the canonical auth state.
func (c *Coordinator) Snapshot() AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// OnChange registers a watcher invoked with a state copy after every applied
// transition. The returned subscription removes the watcher.
func (c *Coordinator) OnChange(fn func(AuthState)) Subscription {
	if fn == nil {
		return SubscriptionFunc(nil)
	}

	c.mu.Lock()
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = fn
	c.mu.Unlock()

	return SubscriptionFunc(func() {
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
	})
}

// SignIn authenticates the email/password pair against the identity
// provider. The authenticated state itself arrives through the provider's
// SignedIn event; identity failures are mirrored into AuthState.Err for
// passive observers and returned to the caller.
func (c *Coordinator) SignIn(ctx context.Context, email, password string) ActionResult {
	if err := validateCredentials(email, password); err != nil {
		return failure(err)
	}

	c.mutate(func(s *AuthState) {
		s.Loading = true
		s.Err = nil
	})

	session, err := c.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		c.logger.Error("sign in failed: %v", err)
		c.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventSignInFailure,
			Metadata:  map[string]any{"email": email, "error": err.Error()},
		})
		c.mutate(func(s *AuthState) {
			s.Loading = false
			s.Err = err
		})
		return failure(err)
	}

	c.mutate(func(s *AuthState) {
		s.Loading = false
	})

	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignInSuccess,
		UserID:    session.GetUserID(),
		Metadata:  map[string]any{"email": email},
	})

	return ActionResult{Success: true, Session: session.Clone()}
}

// SignUp creates an identity account and provisions its profile row. Profile
// provisioning is deliberately non-fatal: the identity account already
// exists and cannot be rolled back from here, and a missing row self-heals
// as an empty profile on the next sign-in.
func (c *Coordinator) SignUp(ctx context.Context, email, password, name string) ActionResult {
	if err := validateCredentials(email, password); err != nil {
		return failure(err)
	}

	c.mutate(func(s *AuthState) {
		s.Loading = true
		s.Err = nil
	})

	result, err := c.client.SignUp(ctx, email, password, map[string]any{"name": name})
	if err != nil {
		c.logger.Error("sign up failed: %v", err)
		c.mutate(func(s *AuthState) {
			s.Loading = false
			s.Err = err
		})
		return failure(err)
	}

	if result.User != nil {
		record := &ProfileRecord{
			ID:    result.User.ID,
			Name:  name,
			Email: strings.ToLower(email),
		}
		if _, perr := c.profiles.Create(ctx, record); perr != nil {
			c.logger.Warn("sign up: profile create failed, account remains valid: %v", perr)
			c.recordActivity(ctx, ActivityEvent{
				EventType: ActivityEventProfileWarning,
				UserID:    result.User.ID.String(),
				Metadata:  map[string]any{"operation": "create", "error": perr.Error()},
			})
		}
	} else {
		c.logger.Warn("sign up: provider returned no identity, skipping profile provisioning")
	}

	c.mutate(func(s *AuthState) {
		s.Loading = false
	})

	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignUp,
		UserID:    signUpUserID(result),
		Metadata:  map[string]any{"email": email, "requires_verification": result.RequiresVerification},
	})

	return ActionResult{
		Success:              true,
		RequiresVerification: result.RequiresVerification,
		Session:              result.Session.Clone(),
	}
}

// SignOut tears down the session. Local teardown runs regardless of the
// provider outcome and regardless of individual storage failures: the worst
// case is a user back in Unauthenticated with a stale server-side session.
func (c *Coordinator) SignOut(ctx context.Context) ActionResult {
	c.mutate(func(s *AuthState) {
		s.Loading = true
		s.Err = nil
	})

	signOutErr := c.client.SignOut(ctx)
	if signOutErr != nil {
		c.logger.Error("sign out: provider error: %v", signOutErr)
	}

	c.apply(c.nextGeneration(), func(s *AuthState) {
		s.Status = StatusUnauthenticated
		s.Session = nil
		s.User = nil
		s.Loading = false
		s.Err = signOutErr
	})

	c.store.RemoveAll(ctx, c.credentialKeys)

	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignOut,
		Metadata:  map[string]any{"provider_error": signOutErr != nil},
	})

	if signOutErr != nil {
		return failure(signOutErr)
	}
	return ActionResult{Success: true}
}

// ResetPassword triggers the provider's out-of-band reset email. No session
// is created or destroyed.
func (c *Coordinator) ResetPassword(ctx context.Context, email string) ActionResult {
	if err := validateEmail(email); err != nil {
		return failure(err)
	}

	c.mutate(func(s *AuthState) {
		s.Err = nil
	})

	if err := c.client.ResetPasswordRequest(ctx, email); err != nil {
		c.logger.Error("password reset request failed: %v", err)
		c.mutate(func(s *AuthState) {
			s.Err = err
		})
		return failure(err)
	}

	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		Metadata:  map[string]any{"email": email},
	})

	return ActionResult{Success: true}
}

// UpdateUserProfile updates provider-side display metadata and the profile
// record, then re-derives the composite user. A metadata update failure is
// logged and does not block the profile write.
func (c *Coordinator) UpdateUserProfile(ctx context.Context, patch ProfilePatch) ActionResult {
	user := c.currentUser()
	if user == nil {
		return failure(ErrNotAuthenticated)
	}

	if err := validatePatch(patch); err != nil {
		return failure(err)
	}

	c.mutate(func(s *AuthState) {
		s.Loading = true
		s.Err = nil
	})

	if patch.Name != nil {
		if err := c.client.UpdateMetadata(ctx, map[string]any{"name": *patch.Name}); err != nil {
			c.logger.Warn("profile update: metadata sync failed: %v", err)
		}
	}

	updated, err := c.profiles.Update(ctx, user.ID, patch)
	if err != nil {
		c.logger.Error("profile update failed: %v", err)
		c.mutate(func(s *AuthState) {
			s.Loading = false
			s.Err = err
		})
		return failure(err)
	}

	refreshed := c.RefreshUser(ctx)

	c.mutate(func(s *AuthState) {
		s.Loading = false
	})

	if refreshed.Success {
		return ActionResult{Success: true, User: refreshed.User}
	}

	// The write landed but the re-derive did not; install the updated record
	// locally so observers still see it.
	c.logger.Warn("profile update: user refresh failed, applying updated record locally: %v", refreshed.Err)
	c.mutate(func(s *AuthState) {
		if s.User != nil {
			s.User.Profile = *updated.Clone()
		}
	})

	return ActionResult{Success: true, User: c.Snapshot().User}
}

// RefreshUser re-fetches identity and profile data and re-derives the
// composite user. Fails with ErrNotAuthenticated when no user is current.
func (c *Coordinator) RefreshUser(ctx context.Context) ActionResult {
	if c.currentUser() == nil {
		return failure(ErrNotAuthenticated)
	}

	gen := c.nextGeneration()

	identity, err := c.client.CurrentUser(ctx)
	if err != nil {
		c.logger.Error("refresh user: identity fetch failed: %v", err)
		return failure(err)
	}
	if identity == nil {
		return failure(ErrIdentityNotFound)
	}

	profile := c.fetchProfile(ctx, identity.ID)
	merged := MergeUser(identity, profile)

	applied := c.apply(gen, func(s *AuthState) {
		s.Status = StatusAuthenticated
		s.User = merged
	})
	if !applied {
		c.logger.Debug("refresh user: discarding stale result (generation %d)", gen)
	}

	return ActionResult{Success: true, User: merged.Clone()}
}

// EnrollInCertification appends a certification to the profile's enrollment
// set. Enrolling twice is reported, not an error.
func (c *Coordinator) EnrollInCertification(ctx context.Context, certificationID string) ActionResult {
	user := c.currentUser()
	if user == nil {
		return failure(ErrNotAuthenticated)
	}
	if strings.TrimSpace(certificationID) == "" {
		return failure(goerrors.New("certification id is required", goerrors.CategoryBadInput))
	}

	record, already, err := c.profiles.Enroll(ctx, user.ID, certificationID)
	if err != nil {
		c.logger.Error("enrollment failed: %v", err)
		return failure(err)
	}

	c.mutate(func(s *AuthState) {
		if s.User != nil {
			s.User.Profile = *record.Clone()
		}
	})

	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventEnrollment,
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"certification_id": certificationID, "already_enrolled": already},
	})

	return ActionResult{Success: true, AlreadyEnrolled: already, User: c.Snapshot().User}
}

// initialize is the startup restoration path: ask the provider for a
// persisted session, resolve its identity and profile, and transition. Any
// result arriving after a newer event is discarded by the generation guard.
func (c *Coordinator) initialize(ctx context.Context, gen uint64) {
	session, err := c.client.CurrentSession(ctx)
	if err != nil {
		c.logger.Error("auth init: session restore failed: %v", err)
		c.apply(gen, func(s *AuthState) {
			s.Status = StatusUnauthenticated
			s.Loading = false
		})
		return
	}

	if session == nil {
		c.apply(gen, func(s *AuthState) {
			s.Status = StatusUnauthenticated
			s.Session = nil
			s.User = nil
			s.Loading = false
		})
		return
	}

	identity, err := c.client.CurrentUser(ctx)
	if err != nil || identity == nil {
		if err != nil {
			c.logger.Error("auth init: identity fetch failed: %v", err)
		}
		c.apply(gen, func(s *AuthState) {
			s.Status = StatusUnauthenticated
			s.Session = nil
			s.User = nil
			s.Loading = false
		})
		return
	}

	profile := c.fetchProfile(ctx, identity.ID)

	applied := c.apply(gen, func(s *AuthState) {
		s.Status = StatusAuthenticated
		s.Session = session.Clone()
		s.User = MergeUser(identity, profile)
		s.Loading = false
		s.Err = nil
	})
	if !applied {
		c.logger.Debug("auth init: discarding stale restoration (generation %d)", gen)
	}
}

// handleEvent folds a provider push event into canonical state. Runs on the
// provider's emit path; each event is a fresh trigger generation.
func (c *Coordinator) handleEvent(ctx context.Context, kind EventKind, session *Session) {
	switch kind {
	case EventSignedIn, EventTokenRefreshed:
		if session == nil {
			c.logger.Warn("ignoring %s event without a session", kind)
			return
		}

		gen, ok := c.claimEventGeneration()
		if !ok {
			return
		}

		c.apply(gen, func(s *AuthState) {
			s.Loading = true
			s.Session = session.Clone()
		})
		c.resolveUser(ctx, gen, kind, session)

	case EventSignedOut:
		gen, ok := c.claimEventGeneration()
		if !ok {
			return
		}

		c.apply(gen, func(s *AuthState) {
			s.Status = StatusUnauthenticated
			s.Session = nil
			s.User = nil
			s.Loading = false
		})

	default:
		c.logger.Debug("ignoring auth event %q", kind)
	}
}

// claimEventGeneration takes a fresh trigger generation unless the
// coordinator is closed. Ignored events never claim one, so they cannot
// invalidate a resolution in flight.
func (c *Coordinator) claimEventGeneration() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, false
	}
	return c.nextGenerationLocked(), true
}

// resolveUser completes a SignedIn/TokenRefreshed transition: fetch the
// identity and profile for the event's session, then atomically install the
// merged user. Identity validity is never gated on the profile store.
func (c *Coordinator) resolveUser(ctx context.Context, gen uint64, kind EventKind, session *Session) {
	identity, err := c.client.CurrentUser(ctx)
	if err != nil || identity == nil {
		if err != nil {
			c.logger.Warn("auth event: identity fetch failed, using session identity: %v", err)
		}
		identity = &IdentityUser{ID: session.UserID}
	}

	profile := c.fetchProfile(ctx, identity.ID)

	applied := c.apply(gen, func(s *AuthState) {
		s.Status = StatusAuthenticated
		s.Session = session.Clone()
		s.User = MergeUser(identity, profile)
		s.Loading = false
	})
	if !applied {
		c.logger.Debug("auth event %s: discarding stale result (generation %d)", kind, gen)
		return
	}

	if kind == EventTokenRefreshed {
		c.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventTokenRefreshed,
			UserID:    identity.ID.String(),
		})
	}
}

// fetchProfile returns nil both for the benign not-found case and for
// genuine fetch failures; the latter are logged, never surfaced, because a
// secondary data store's availability must not gate authentication.
func (c *Coordinator) fetchProfile(ctx context.Context, id uuid.UUID) *ProfileRecord {
	profile, err := c.profiles.Fetch(ctx, id)
	if err != nil {
		if !IsProfileNotFound(err) {
			c.logger.Warn("profile fetch failed, continuing with empty profile: %v", err)
			c.recordActivity(ctx, ActivityEvent{
				EventType: ActivityEventProfileWarning,
				UserID:    id.String(),
				Metadata:  map[string]any{"operation": "fetch", "error": err.Error()},
			})
		}
		return nil
	}
	return profile
}

func (c *Coordinator) currentUser() *CompositeUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.User
}

func (c *Coordinator) nextGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextGenerationLocked()
}

func (c *Coordinator) nextGenerationLocked() uint64 {
	c.generation++
	return c.generation
}

// apply runs fn against canonical state iff gen is still the newest
// session trigger, then notifies watchers with a copy outside the lock.
// Reports whether the transition was applied. Only session-bearing triggers
// (startup restoration, push events, sign-out, user refresh) claim
// generations; other actions must use mutate so they can never invalidate
// an in-flight session resolution.
func (c *Coordinator) apply(gen uint64, fn func(*AuthState)) bool {
	c.mu.Lock()
	if gen < c.generation {
		c.mu.Unlock()
		return false
	}

	c.commitLocked(fn)
	return true
}

// mutate applies action-side bookkeeping (Loading and Err toggles, profile
// installs) unconditionally.
func (c *Coordinator) mutate(fn func(*AuthState)) {
	c.mu.Lock()
	c.commitLocked(fn)
}

// commitLocked mutates state, releases c.mu, and notifies watchers with a
// copy.
func (c *Coordinator) commitLocked(fn func(*AuthState)) {
	fn(&c.state)
	snapshot := c.state.clone()

	watchers := make([]func(AuthState), 0, len(c.watchers))
	for _, w := range c.watchers {
		watchers = append(watchers, w)
	}
	c.mu.Unlock()

	for _, w := range watchers {
		w(snapshot)
	}
}

func (c *Coordinator) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = c.now()
	}

	sink := normalizeActivitySink(c.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error: %v", err)
	}
}

func signUpUserID(result *SignUpResult) string {
	if result == nil || result.User == nil {
		return ""
	}
	return result.User.ID.String()
}
