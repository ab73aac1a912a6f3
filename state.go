package authsync

// Status is the coordinator's lifecycle phase. Initializing is the sole
// initial state; there is no terminal state.
type Status string

const (
	StatusInitializing    Status = "initializing"
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticated   Status = "authenticated"
)

// AuthState is the canonical view of "who is the current user". Consumers
// only ever observe fully formed configurations: the status never reports
// Authenticated while a merge is still pending, and IsAuthenticated is
// derived, never stored.
type AuthState struct {
	Status  Status
	Session *Session
	User    *CompositeUser
	Loading bool
	Err     error
}

// IsAuthenticated reports whether a composite user is present.
func (s AuthState) IsAuthenticated() bool {
	return s.User != nil
}

// clone returns a copy safe to hand to observers: pointer fields are
// duplicated so readers cannot mutate canonical state.
func (s AuthState) clone() AuthState {
	out := s
	out.Session = s.Session.Clone()
	out.User = s.User.Clone()
	return out
}
