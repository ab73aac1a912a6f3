package authsync

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session mirrors the provider-issued token bundle. The tokens themselves
// are opaque to this core; only the identity id and expiry are interpreted.
type Session struct {
	AccessToken  string     `json:"access_token,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	UserID       uuid.UUID  `json:"user_id,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// GetUserID returns the identity id the session was issued for.
func (s *Session) GetUserID() string {
	if s == nil {
		return ""
	}
	return s.UserID.String()
}

// Expired reports whether the session's access token has expired at the
// given instant. Sessions without an expiry never expire locally.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt == nil {
		return false
	}
	return !now.Before(*s.ExpiresAt)
}

// Clone returns an independent copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.ExpiresAt != nil {
		exp := *s.ExpiresAt
		out.ExpiresAt = &exp
	}
	return &out
}

// String redacts token material.
func (s Session) String() string {
	expires := "<nil>"
	if s.ExpiresAt != nil {
		expires = s.ExpiresAt.Format(time.RFC1123)
	}
	return fmt.Sprintf("user=%s type=%s expires=%s", s.UserID, s.TokenType, expires)
}

// IdentityUser holds the provider-side view of an identity. It is immutable
// from this core's perspective except through explicit metadata updates.
type IdentityUser struct {
	ID            uuid.UUID      `json:"id,omitempty"`
	Email         string         `json:"email,omitempty"`
	EmailVerified bool           `json:"email_verified,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Name returns the display name recorded in provider metadata, if any.
func (u *IdentityUser) Name() string {
	if u == nil || u.Metadata == nil {
		return ""
	}
	if name, ok := u.Metadata["name"].(string); ok {
		return name
	}
	return ""
}

// Clone returns an independent copy of the identity record.
func (u *IdentityUser) Clone() *IdentityUser {
	if u == nil {
		return nil
	}
	out := *u
	if u.Metadata != nil {
		out.Metadata = make(map[string]any, len(u.Metadata))
		for k, v := range u.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
