package supabase

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultStorageKey is the credential cache key the session is persisted
	// under between launches.
	DefaultStorageKey = "supabase.auth.token"

	// DefaultRefreshMargin is how long before access token expiry the client
	// refreshes proactively.
	DefaultRefreshMargin = time.Minute
)

// Config configures the Supabase GoTrue client.
type Config struct {
	// ProjectURL is the Supabase project base URL, e.g.
	// https://xyzcompany.supabase.co
	ProjectURL string

	// AnonKey is the project's public anon API key.
	AnonKey string

	// ResetRedirectURL is the deep link the password reset email sends the
	// user back to, e.g. intellectv1://reset-password
	ResetRedirectURL string

	// StorageKey overrides the credential cache key for the persisted
	// session. Defaults to DefaultStorageKey.
	StorageKey string

	// RefreshMargin overrides how far ahead of expiry tokens are refreshed.
	RefreshMargin time.Duration

	// AutoRefresh enables the background token refresh loop.
	AutoRefresh bool

	// HTTPClient overrides the HTTP client used for GoTrue calls.
	HTTPClient *http.Client
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.ProjectURL) == "" {
		return fmt.Errorf("supabase: project URL is required")
	}
	if strings.TrimSpace(c.AnonKey) == "" {
		return fmt.Errorf("supabase: anon key is required")
	}
	return nil
}

func (c *Config) setDefaults() {
	c.ProjectURL = strings.TrimRight(strings.TrimSpace(c.ProjectURL), "/")

	if c.StorageKey == "" {
		c.StorageKey = DefaultStorageKey
	}
	if c.RefreshMargin <= 0 {
		c.RefreshMargin = DefaultRefreshMargin
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
}
