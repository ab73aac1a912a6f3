package authsync_test

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/intellect-prep/go-authsync"
)

// stubClient implements authsync.IdentityClient with overridable behavior
// per method and a synchronous emit helper standing in for the provider's
// push channel.
type stubClient struct {
	mu           sync.Mutex
	handlers     []authsync.EventHandler
	unsubscribes int

	signInCalls int
	signUpCalls int

	signInFn         func(ctx context.Context, email, password string) (*authsync.Session, error)
	signUpFn         func(ctx context.Context, email, password string, metadata map[string]any) (*authsync.SignUpResult, error)
	signOutFn        func(ctx context.Context) error
	resetFn          func(ctx context.Context, email string) error
	updateMetadataFn func(ctx context.Context, partial map[string]any) error
	currentSessionFn func(ctx context.Context) (*authsync.Session, error)
	currentUserFn    func(ctx context.Context) (*authsync.IdentityUser, error)
}

func (s *stubClient) SignInWithPassword(ctx context.Context, email, password string) (*authsync.Session, error) {
	s.mu.Lock()
	s.signInCalls++
	fn := s.signInFn
	s.mu.Unlock()

	if fn == nil {
		return nil, authsync.ErrInvalidCredentials
	}
	return fn(ctx, email, password)
}

func (s *stubClient) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*authsync.SignUpResult, error) {
	s.mu.Lock()
	s.signUpCalls++
	fn := s.signUpFn
	s.mu.Unlock()

	if fn == nil {
		return &authsync.SignUpResult{RequiresVerification: true}, nil
	}
	return fn(ctx, email, password, metadata)
}

func (s *stubClient) SignOut(ctx context.Context) error {
	if s.signOutFn == nil {
		return nil
	}
	return s.signOutFn(ctx)
}

func (s *stubClient) ResetPasswordRequest(ctx context.Context, email string) error {
	if s.resetFn == nil {
		return nil
	}
	return s.resetFn(ctx, email)
}

func (s *stubClient) UpdateMetadata(ctx context.Context, partial map[string]any) error {
	if s.updateMetadataFn == nil {
		return nil
	}
	return s.updateMetadataFn(ctx, partial)
}

func (s *stubClient) CurrentSession(ctx context.Context) (*authsync.Session, error) {
	if s.currentSessionFn == nil {
		return nil, nil
	}
	return s.currentSessionFn(ctx)
}

func (s *stubClient) CurrentUser(ctx context.Context) (*authsync.IdentityUser, error) {
	if s.currentUserFn == nil {
		return nil, nil
	}
	return s.currentUserFn(ctx)
}

func (s *stubClient) Subscribe(handler authsync.EventHandler) authsync.Subscription {
	s.mu.Lock()
	s.handlers = append(s.handlers, handler)
	s.mu.Unlock()

	return authsync.SubscriptionFunc(func() {
		s.mu.Lock()
		s.unsubscribes++
		s.mu.Unlock()
	})
}

// emit delivers an event to every subscriber, synchronously, the way the
// provider adapters do.
func (s *stubClient) emit(kind authsync.EventKind, session *authsync.Session) {
	s.mu.Lock()
	handlers := append([]authsync.EventHandler(nil), s.handlers...)
	s.mu.Unlock()

	for _, h := range handlers {
		h(kind, session)
	}
}

func (s *stubClient) unsubscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribes
}

// MockProfiles implements authsync.Profiles
type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) Fetch(ctx context.Context, id uuid.UUID) (*authsync.ProfileRecord, error) {
	args := m.Called(ctx, id)
	record, _ := args.Get(0).(*authsync.ProfileRecord)
	return record, args.Error(1)
}

func (m *MockProfiles) Create(ctx context.Context, record *authsync.ProfileRecord) (*authsync.ProfileRecord, error) {
	args := m.Called(ctx, record)
	created, _ := args.Get(0).(*authsync.ProfileRecord)
	return created, args.Error(1)
}

func (m *MockProfiles) Update(ctx context.Context, id uuid.UUID, patch authsync.ProfilePatch) (*authsync.ProfileRecord, error) {
	args := m.Called(ctx, id, patch)
	updated, _ := args.Get(0).(*authsync.ProfileRecord)
	return updated, args.Error(1)
}

func (m *MockProfiles) Enroll(ctx context.Context, id uuid.UUID, certificationID string) (*authsync.ProfileRecord, bool, error) {
	args := m.Called(ctx, id, certificationID)
	record, _ := args.Get(0).(*authsync.ProfileRecord)
	return record, args.Bool(1), args.Error(2)
}

// fakeStore implements authsync.CredentialStore, recording removals.
type fakeStore struct {
	mu             sync.Mutex
	items          map[string]string
	removeAllCalls [][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: map[string]string{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.items[key]
	return value, ok
}

func (f *fakeStore) Set(_ context.Context, key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[key] = value
}

func (f *fakeStore) Remove(_ context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, key)
}

func (f *fakeStore) RemoveAll(ctx context.Context, keys []string) {
	f.mu.Lock()
	f.removeAllCalls = append(f.removeAllCalls, append([]string(nil), keys...))
	f.mu.Unlock()

	for _, key := range keys {
		f.Remove(ctx, key)
	}
}

func (f *fakeStore) removeAllHistory() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.removeAllCalls...)
}
