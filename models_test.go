package authsync_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellect-prep/go-authsync"
)

func TestMergeUser(t *testing.T) {
	id := uuid.New()

	t.Run("nil identity yields nil", func(t *testing.T) {
		assert.Nil(t, authsync.MergeUser(nil, &authsync.ProfileRecord{ID: id}))
	})

	t.Run("nil profile yields empty profile keyed by identity", func(t *testing.T) {
		user := authsync.MergeUser(&authsync.IdentityUser{ID: id, Email: "ann@example.com"}, nil)
		require.NotNil(t, user)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, id, user.Profile.ID)
		assert.Empty(t, user.Profile.Name)
		assert.Empty(t, user.Profile.SubscriptionStatus)
	})

	t.Run("merge copies both halves", func(t *testing.T) {
		identity := &authsync.IdentityUser{
			ID:       id,
			Email:    "ann@example.com",
			Metadata: map[string]any{"name": "Ann"},
		}
		profile := &authsync.ProfileRecord{
			ID:                     id,
			Name:                   "Ann",
			SubscriptionStatus:     authsync.SubscriptionFree,
			EnrolledCertifications: []string{"aws-saa"},
		}

		user := authsync.MergeUser(identity, profile)
		require.NotNil(t, user)

		profile.EnrolledCertifications[0] = "mutated"
		identity.Metadata["name"] = "mutated"

		assert.Equal(t, []string{"aws-saa"}, user.Profile.EnrolledCertifications)
		assert.Equal(t, "Ann", user.Name())
	})
}

func TestProfileRecordEnrolled(t *testing.T) {
	record := &authsync.ProfileRecord{EnrolledCertifications: []string{"aws-saa", "az-900"}}

	assert.True(t, record.Enrolled("aws-saa"))
	assert.False(t, record.Enrolled("ccna"))
	assert.False(t, (*authsync.ProfileRecord)(nil).Enrolled("aws-saa"))
}

func TestProfilePatchIsZero(t *testing.T) {
	assert.True(t, authsync.ProfilePatch{}.IsZero())

	name := "Ann"
	assert.False(t, authsync.ProfilePatch{Name: &name}.IsZero())

	tests := 0
	assert.False(t, authsync.ProfilePatch{TestsRemaining: &tests}.IsZero())
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, (&authsync.Session{ExpiresAt: &past}).Expired(now))
	assert.False(t, (&authsync.Session{ExpiresAt: &future}).Expired(now))
	assert.False(t, (&authsync.Session{}).Expired(now), "sessions without expiry never expire locally")
	assert.True(t, (*authsync.Session)(nil).Expired(now))
}

func TestSessionStringRedactsTokens(t *testing.T) {
	session := authsync.Session{
		AccessToken:  "super-secret-access",
		RefreshToken: "super-secret-refresh",
		TokenType:    "bearer",
		UserID:       uuid.New(),
	}

	out := session.String()
	assert.NotContains(t, out, "super-secret-access")
	assert.NotContains(t, out, "super-secret-refresh")
	assert.Contains(t, out, session.UserID.String())
}

func TestAuthStateIsAuthenticated(t *testing.T) {
	assert.False(t, authsync.AuthState{Status: authsync.StatusAuthenticated}.IsAuthenticated(),
		"authentication is derived from the user, not the status label")
	assert.True(t, authsync.AuthState{User: &authsync.CompositeUser{}}.IsAuthenticated())
}
