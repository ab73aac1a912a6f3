// Package supabase implements the identity client against the Supabase
// GoTrue HTTP API. It owns session persistence and the proactive token
// refresh loop, and surfaces session lifecycle changes as push events.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/intellect-prep/go-authsync"
)

// Client talks to a Supabase project's auth endpoints and implements
// authsync.IdentityClient. A single client holds at most one session.
type Client struct {
	cfg    Config
	http   *http.Client
	store  authsync.CredentialStore
	logger authsync.Logger

	mu           sync.Mutex
	session      *authsync.Session
	user         *authsync.IdentityUser
	restored     bool
	listeners    map[uint64]authsync.EventHandler
	nextListener uint64
	refreshTimer *time.Timer
	closed       bool
}

var _ authsync.IdentityClient = (*Client)(nil)

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithLogger overrides the default logger.
func WithLogger(logger authsync.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a GoTrue client persisting its session in store.
func New(cfg Config, store authsync.CredentialStore, opts ...ClientOption) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("supabase: credential store is required")
	}
	cfg.setDefaults()

	c := &Client{
		cfg:       cfg,
		http:      cfg.HTTPClient,
		store:     store,
		logger:    authsync.DefaultLogger(),
		listeners: map[uint64]authsync.EventHandler{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// Close stops the refresh loop and drops all listeners. The persisted
// session is left in place so the next launch can restore it.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.stopRefreshLocked()
	c.listeners = map[uint64]authsync.EventHandler{}
}

// Subscribe registers a session lifecycle handler.
func (c *Client) Subscribe(handler authsync.EventHandler) authsync.Subscription {
	if handler == nil {
		return authsync.SubscriptionFunc(nil)
	}

	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = handler
	c.mu.Unlock()

	return authsync.SubscriptionFunc(func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	})
}

// SignInWithPassword exchanges an email/password pair for a session and
// emits SIGNED_IN on success.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*authsync.Session, error) {
	payload := map[string]string{"email": email, "password": password}

	var out tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"password"}}, payload, "", &out)
	if err != nil {
		return nil, err
	}

	session := out.toSession(time.Now())
	user := out.User.toIdentity()

	c.installSession(ctx, session, user)
	c.emit(authsync.EventSignedIn, session.Clone())

	return session.Clone(), nil
}

// SignUp creates an identity account. When the project requires email
// confirmation GoTrue issues no session; that surfaces as
// RequiresVerification without an event.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*authsync.SignUpResult, error) {
	payload := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		payload["data"] = metadata
	}

	var out signUpResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", nil, payload, "", &out); err != nil {
		return nil, err
	}

	result := &authsync.SignUpResult{User: out.identity()}

	if out.AccessToken != "" {
		session := out.tokenResponse.toSession(time.Now())
		result.Session = session.Clone()

		c.installSession(ctx, session, result.User)
		c.emit(authsync.EventSignedIn, session.Clone())
	} else {
		result.RequiresVerification = true
	}

	return result, nil
}

// SignOut revokes the session server-side and always tears down local
// session state, so a dead network cannot pin a user to a signed-in view.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := ""
	if c.session != nil {
		token = c.session.AccessToken
	}
	c.session = nil
	c.user = nil
	c.restored = true
	c.stopRefreshLocked()
	c.mu.Unlock()

	c.store.Remove(ctx, c.cfg.StorageKey)
	c.emit(authsync.EventSignedOut, nil)

	if token == "" {
		return nil
	}

	if err := c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, token, nil); err != nil {
		return err
	}
	return nil
}

// ResetPasswordRequest triggers the password recovery email.
func (c *Client) ResetPasswordRequest(ctx context.Context, email string) error {
	var query url.Values
	if c.cfg.ResetRedirectURL != "" {
		query = url.Values{"redirect_to": {c.cfg.ResetRedirectURL}}
	}

	payload := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", query, payload, "", nil)
}

// UpdateMetadata patches the identity's user metadata.
func (c *Client) UpdateMetadata(ctx context.Context, partial map[string]any) error {
	c.mu.Lock()
	token := ""
	if c.session != nil {
		token = c.session.AccessToken
	}
	c.mu.Unlock()

	if token == "" {
		return authsync.ErrNotAuthenticated
	}

	payload := map[string]any{"data": partial}

	var out wireUser
	if err := c.do(ctx, http.MethodPut, "/auth/v1/user", nil, payload, token, &out); err != nil {
		return err
	}

	c.mu.Lock()
	c.user = out.toIdentity()
	c.mu.Unlock()

	return nil
}

// CurrentSession returns the active session, restoring a persisted one on
// first call. Returns (nil, nil) when no session exists.
func (c *Client) CurrentSession(ctx context.Context) (*authsync.Session, error) {
	c.mu.Lock()
	if c.session != nil {
		session := c.session.Clone()
		c.mu.Unlock()
		return session, nil
	}
	restored := c.restored
	c.restored = true
	c.mu.Unlock()

	if restored {
		return nil, nil
	}

	return c.restoreSession(ctx)
}

// CurrentUser returns the identity behind the current session, fetching it
// from GoTrue when not cached. Returns (nil, nil) when no session exists.
func (c *Client) CurrentUser(ctx context.Context) (*authsync.IdentityUser, error) {
	session, err := c.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	c.mu.Lock()
	if c.user != nil {
		user := c.user.Clone()
		c.mu.Unlock()
		return user, nil
	}
	c.mu.Unlock()

	var out wireUser
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, nil, session.AccessToken, &out); err != nil {
		return nil, err
	}

	user := out.toIdentity()

	c.mu.Lock()
	c.user = user
	c.mu.Unlock()

	return user.Clone(), nil
}

// restoreSession loads the persisted session from the credential cache,
// refreshing it when the access token has expired. An expired session with
// no refresh token is scrubbed rather than reported.
func (c *Client) restoreSession(ctx context.Context) (*authsync.Session, error) {
	raw, ok := c.store.Get(ctx, c.cfg.StorageKey)
	if !ok {
		return nil, nil
	}

	session := &authsync.Session{}
	if err := json.Unmarshal([]byte(raw), session); err != nil {
		c.logger.Warn("supabase: discarding unreadable persisted session: %v", err)
		c.store.Remove(ctx, c.cfg.StorageKey)
		return nil, nil
	}

	hydrateFromToken(session)

	if session.Expired(time.Now()) {
		if session.RefreshToken == "" {
			c.store.Remove(ctx, c.cfg.StorageKey)
			return nil, nil
		}
		return c.refreshWith(ctx, session.RefreshToken)
	}

	c.installSession(ctx, session, nil)
	return session.Clone(), nil
}

// refreshWith exchanges a refresh token for a new session.
func (c *Client) refreshWith(ctx context.Context, refreshToken string) (*authsync.Session, error) {
	payload := map[string]string{"refresh_token": refreshToken}

	var out tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"refresh_token"}}, payload, "", &out)
	if err != nil {
		return nil, err
	}

	session := out.toSession(time.Now())
	c.installSession(ctx, session, out.User.toIdentity())

	return session.Clone(), nil
}

// installSession makes session the client's current session: caches it,
// persists it, and arms the refresh timer. user may be nil when the caller
// has no fresh identity payload.
func (c *Client) installSession(ctx context.Context, session *authsync.Session, user *authsync.IdentityUser) {
	c.mu.Lock()
	c.session = session.Clone()
	if user != nil {
		c.user = user.Clone()
	}
	c.restored = true
	c.armRefreshLocked(session)
	c.mu.Unlock()

	if raw, err := json.Marshal(session); err == nil {
		c.store.Set(ctx, c.cfg.StorageKey, string(raw))
	} else {
		c.logger.Warn("supabase: session not persisted: %v", err)
	}
}

func (c *Client) armRefreshLocked(session *authsync.Session) {
	c.stopRefreshLocked()

	if !c.cfg.AutoRefresh || c.closed || session.ExpiresAt == nil || session.RefreshToken == "" {
		return
	}

	delay := time.Until(session.ExpiresAt.Add(-c.cfg.RefreshMargin))
	if delay < 0 {
		delay = 0
	}

	refreshToken := session.RefreshToken
	c.refreshTimer = time.AfterFunc(delay, func() {
		c.backgroundRefresh(refreshToken)
	})
}

func (c *Client) stopRefreshLocked() {
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
}

func (c *Client) backgroundRefresh(refreshToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	session, err := c.refreshWith(ctx, refreshToken)
	if err != nil {
		c.logger.Warn("supabase: background token refresh failed: %v", err)
		return
	}

	c.emit(authsync.EventTokenRefreshed, session)
}

// emit fans an event out to listeners. Handlers run outside the client lock
// since they commonly call back into the client.
func (c *Client) emit(kind authsync.EventKind, session *authsync.Session) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	handlers := make([]authsync.EventHandler, 0, len(c.listeners))
	for _, h := range c.listeners {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(kind, session.Clone())
	}
}

// do performs one GoTrue request. token selects the bearer credential; the
// anon key is always sent as the apikey header.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any, token string, out any) error {
	endpoint := c.cfg.ProjectURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("supabase: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("supabase: build request: %w", err)
	}

	req.Header.Set("apikey", c.cfg.AnonKey)
	if token == "" {
		token = c.cfg.AnonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return authsync.NewNetworkError(err, "supabase: request failed")
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return authsync.NewNetworkError(err, "supabase: read response")
	}

	if res.StatusCode >= 400 {
		return mapAPIError(res.StatusCode, raw)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("supabase: decode response: %w", err)
		}
	}

	return nil
}

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e apiError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func mapAPIError(status int, raw []byte) error {
	var payload apiError
	_ = json.Unmarshal(raw, &payload)

	message := payload.text()
	if message == "" {
		message = http.StatusText(status)
	}

	if isCredentialRejection(status, payload) {
		return authsync.ErrInvalidCredentials
	}

	return authsync.NewProviderError(status, "supabase: "+message)
}

func isCredentialRejection(status int, payload apiError) bool {
	if status != http.StatusBadRequest && status != http.StatusUnauthorized {
		return false
	}
	if payload.Error == "invalid_grant" || payload.ErrorCode == "invalid_credentials" {
		return true
	}
	return strings.Contains(strings.ToLower(payload.text()), "invalid login credentials")
}

type wireUser struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt string         `json:"email_confirmed_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
}

func (u *wireUser) toIdentity() *authsync.IdentityUser {
	if u == nil || u.ID == "" {
		return nil
	}

	id, err := uuid.Parse(u.ID)
	if err != nil {
		return nil
	}

	return &authsync.IdentityUser{
		ID:            id,
		Email:         u.Email,
		EmailVerified: u.EmailConfirmedAt != "",
		Metadata:      u.UserMetadata,
	}
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	RefreshToken string    `json:"refresh_token"`
	User         *wireUser `json:"user"`
}

func (t tokenResponse) toSession(now time.Time) *authsync.Session {
	session := &authsync.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}

	if t.ExpiresIn > 0 {
		expires := now.Add(time.Duration(t.ExpiresIn) * time.Second)
		session.ExpiresAt = &expires
	}

	if t.User != nil {
		if id, err := uuid.Parse(t.User.ID); err == nil {
			session.UserID = id
		}
	}

	hydrateFromToken(session)

	return session
}

// signUpResponse covers both GoTrue sign-up shapes: a bare user object when
// email confirmation is pending, or a full token grant when it is not.
type signUpResponse struct {
	tokenResponse
	wireUser
}

func (r signUpResponse) identity() *authsync.IdentityUser {
	if r.User != nil {
		return r.User.toIdentity()
	}
	return r.wireUser.toIdentity()
}

// hydrateFromToken fills the session's identity id and expiry from the JWT
// claims when the wire payload didn't carry them. The signature is NOT
// verified; the token is only trusted as far as the server that issued it.
func hydrateFromToken(session *authsync.Session) {
	if session == nil || session.AccessToken == "" {
		return
	}
	if session.UserID != uuid.Nil && session.ExpiresAt != nil {
		return
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(session.AccessToken, claims); err != nil {
		return
	}

	if session.UserID == uuid.Nil {
		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			if id, err := uuid.Parse(sub); err == nil {
				session.UserID = id
			}
		}
	}

	if session.ExpiresAt == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			expires := exp.Time
			session.ExpiresAt = &expires
		}
	}
}
