package authsync

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SubscriptionStatus is the profile's subscription tier
type SubscriptionStatus = string

const (
	// SubscriptionFree is the default tier every new profile starts on
	SubscriptionFree SubscriptionStatus = "free"
	// SubscriptionPremium is the paid tier
	SubscriptionPremium SubscriptionStatus = "premium"
)

// DefaultTestsRemaining is the practice-test allowance granted at signup.
const DefaultTestsRemaining = 3

// ProfileRecord is the application-owned data about a user, separate from
// the provider identity. Created exactly once at sign-up; never deleted by
// this core.
type ProfileRecord struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`

	ID                     uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Name                   string     `bun:"name" json:"name,omitempty"`
	Email                  string     `bun:"email" json:"email,omitempty"`
	IsAdmin                bool       `bun:"is_admin" json:"is_admin,omitempty"`
	SubscriptionStatus     string     `bun:"subscription_status,notnull" json:"subscription_status,omitempty"`
	TestsRemaining         int        `bun:"tests_remaining" json:"tests_remaining,omitempty"`
	SubscriptionExpiry     *time.Time `bun:"subscription_expiry,nullzero" json:"subscription_expiry,omitempty"`
	EnrolledCertifications []string   `bun:"enrolled_certifications" json:"enrolled_certifications,omitempty"`
	CreatedAt              *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Enrolled reports whether the profile already lists the certification.
func (p *ProfileRecord) Enrolled(certificationID string) bool {
	if p == nil {
		return false
	}
	for _, id := range p.EnrolledCertifications {
		if id == certificationID {
			return true
		}
	}
	return false
}

// Clone returns an independent copy of the record.
func (p *ProfileRecord) Clone() *ProfileRecord {
	if p == nil {
		return nil
	}
	out := *p
	if p.SubscriptionExpiry != nil {
		exp := *p.SubscriptionExpiry
		out.SubscriptionExpiry = &exp
	}
	if p.EnrolledCertifications != nil {
		out.EnrolledCertifications = append([]string(nil), p.EnrolledCertifications...)
	}
	return &out
}

// ProfilePatch is a partial update to a profile record. Nil fields are left
// untouched.
type ProfilePatch struct {
	Name                   *string    `json:"name,omitempty"`
	Email                  *string    `json:"email,omitempty"`
	SubscriptionStatus     *string    `json:"subscription_status,omitempty"`
	TestsRemaining         *int       `json:"tests_remaining,omitempty"`
	SubscriptionExpiry     *time.Time `json:"subscription_expiry,omitempty"`
	EnrolledCertifications *[]string  `json:"enrolled_certifications,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p ProfilePatch) IsZero() bool {
	return p.Name == nil &&
		p.Email == nil &&
		p.SubscriptionStatus == nil &&
		p.TestsRemaining == nil &&
		p.SubscriptionExpiry == nil &&
		p.EnrolledCertifications == nil
}

// CompositeUser is the merged view of identity and profile exposed to
// consumers. It exists only when a session is active and both constituent
// fetches have resolved; a missing profile resolves to a zero-value profile
// carrying the identity's id, never an absent user.
type CompositeUser struct {
	IdentityUser
	Profile ProfileRecord `json:"profile"`
}

// MergeUser combines an identity with its profile record. A nil identity
// yields nil; a nil profile yields an empty profile keyed by the identity.
func MergeUser(identity *IdentityUser, profile *ProfileRecord) *CompositeUser {
	if identity == nil {
		return nil
	}

	user := &CompositeUser{IdentityUser: *identity.Clone()}
	if profile != nil {
		user.Profile = *profile.Clone()
	} else {
		user.Profile = ProfileRecord{ID: identity.ID}
	}

	return user
}

// Clone returns an independent copy of the composite user.
func (u *CompositeUser) Clone() *CompositeUser {
	if u == nil {
		return nil
	}
	return MergeUser(&u.IdentityUser, &u.Profile)
}
