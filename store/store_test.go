package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/intellect-prep/go-authsync/store"
)

type recordingLogger struct {
	mu       sync.Mutex
	warnings []string
}

func (l *recordingLogger) Warn(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warnings)
}

func TestSecureStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := store.New(store.NewMemoryBackend())

	_, ok := s.Get(ctx, "token")
	assert.False(t, ok)

	s.Set(ctx, "token", "value-1")
	value, ok := s.Get(ctx, "token")
	require.True(t, ok)
	assert.Equal(t, "value-1", value)

	s.Set(ctx, "token", "value-2")
	value, _ = s.Get(ctx, "token")
	assert.Equal(t, "value-2", value)

	s.Remove(ctx, "token")
	_, ok = s.Get(ctx, "token")
	assert.False(t, ok)
}

func TestSecureStoreSwallowsBackendFailures(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	logger := &recordingLogger{}
	s := store.New(backend, store.WithLogger(logger))

	backend.FailOn("token", errors.New("keychain locked"))

	s.Set(ctx, "token", "value")
	_, ok := s.Get(ctx, "token")
	assert.False(t, ok, "backend failure degrades to a miss")
	s.Remove(ctx, "token")

	assert.Equal(t, 3, logger.count())
}

func TestSecureStoreRemoveAllContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	logger := &recordingLogger{}
	s := store.New(backend, store.WithLogger(logger))

	s.Set(ctx, "a", "1")
	s.Set(ctx, "b", "2")
	s.Set(ctx, "c", "3")

	backend.FailOn("b", errors.New("keychain locked"))

	s.RemoveAll(ctx, []string{"a", "b", "c"})

	_, okA := s.Get(ctx, "a")
	_, okC := s.Get(ctx, "c")
	assert.False(t, okA)
	assert.False(t, okC)
	assert.Equal(t, 1, logger.count(), "only the failing key warns")

	backend.FailOn("b", nil)
	value, ok := s.Get(ctx, "b")
	require.True(t, ok, "failed removal leaves the entry behind")
	assert.Equal(t, "2", value)
}

func TestSecureStoreRemoveMissingKeyIsQuiet(t *testing.T) {
	logger := &recordingLogger{}
	s := store.New(store.NewMemoryBackend(), store.WithLogger(logger))

	s.Remove(context.Background(), "never-set")
	assert.Zero(t, logger.count())
}

func setupBunBackend(t *testing.T) *store.BunBackend {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	backend := store.NewBunBackend(bunDB)
	require.NoError(t, backend.Init(context.Background()))

	return backend
}

func TestBunBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := setupBunBackend(t)

	_, err := backend.GetItem(ctx, "token")
	assert.True(t, store.IsNotFound(err))

	require.NoError(t, backend.SetItem(ctx, "token", "value-1"))
	value, err := backend.GetItem(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "value-1", value)

	require.NoError(t, backend.SetItem(ctx, "token", "value-2"))
	value, err = backend.GetItem(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "value-2", value, "second set upserts")

	require.NoError(t, backend.RemoveItem(ctx, "token"))
	_, err = backend.GetItem(ctx, "token")
	assert.True(t, store.IsNotFound(err))
}

func TestBunBackendThroughSecureStore(t *testing.T) {
	ctx := context.Background()
	s := store.New(setupBunBackend(t))

	s.Set(ctx, "supabase.auth.token", `{"access_token":"tok"}`)
	value, ok := s.Get(ctx, "supabase.auth.token")
	require.True(t, ok)
	assert.Equal(t, `{"access_token":"tok"}`, value)

	s.RemoveAll(ctx, []string{"supabase.auth.token", "userData"})
	_, ok = s.Get(ctx, "supabase.auth.token")
	assert.False(t, ok)
}
