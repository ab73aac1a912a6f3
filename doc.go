// Package authsync reconciles a remote identity provider's session
// lifecycle with locally persisted credentials and a separately stored
// profile record, exposing a single consistent auth state.
//
// State model:
//   - AuthState is the only consumer-facing view. It moves from Initializing
//     to Unauthenticated or Authenticated and stays observable through
//     Snapshot and OnChange. The User field is a CompositeUser merging the
//     provider identity with its ProfileRecord; consumers never see a
//     half-merged user, and a missing profile yields an empty profile rather
//     than an absent user.
//   - Every transition funnels through a single writer. Session-bearing
//     triggers (startup restoration, push events, sign-out, user refresh)
//     claim generations; the trigger that started last wins, regardless of
//     which finished first. Other actions only toggle bookkeeping fields and
//     can never invalidate an in-flight session resolution.
//
// Collaborators:
//   - IdentityClient wraps the provider (see provider/supabase): password
//     sign-in, sign-up, sign-out, password reset, metadata updates, and a
//     push-event subscription for SIGNED_IN, SIGNED_OUT and TOKEN_REFRESHED.
//   - Profiles stores the application-owned profile rows keyed by identity
//     id. The bun-backed implementation lives in repo_profiles.go; the
//     missing-row case surfaces as ErrProfileNotFound and is benign.
//   - CredentialStore (see the store package) caches credential material
//     best-effort: a storage failure is a cache miss, never an auth error.
//
// Activity sinks:
//   - ActivitySink receives audit events for sign-ins, sign-ups, sign-outs,
//     token refreshes, password resets, and profile anomalies. Sinks run
//     best-effort so telemetry can never block authentication.
package authsync
