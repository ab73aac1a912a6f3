package authsync_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/intellect-prep/go-authsync"
)

func TestIsProfileNotFound(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "profile not found sentinel",
			err:      authsync.ErrProfileNotFound,
			expected: true,
		},
		{
			name:     "identity not found",
			err:      authsync.ErrIdentityNotFound,
			expected: true,
		},
		{
			name:     "invalid credentials",
			err:      authsync.ErrInvalidCredentials,
			expected: false,
		},
		{
			name:     "plain error",
			err:      errors.New("profiles table locked"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, authsync.IsProfileNotFound(tt.err))
		})
	}
}

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "wrapped transport failure",
			err:      authsync.NewNetworkError(errors.New("connection refused"), "request failed"),
			expected: true,
		},
		{
			name:     "provider rejection",
			err:      authsync.NewProviderError(422, "user already registered"),
			expected: false,
		},
		{
			name:     "plain error",
			err:      errors.New("connection refused"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, authsync.IsNetworkError(tt.err))
		})
	}
}

func TestIsNotAuthenticated(t *testing.T) {
	assert.True(t, authsync.IsNotAuthenticated(authsync.ErrNotAuthenticated))
	assert.False(t, authsync.IsNotAuthenticated(authsync.ErrInvalidCredentials))
	assert.False(t, authsync.IsNotAuthenticated(errors.New("no authenticated user")))
	assert.False(t, authsync.IsNotAuthenticated(nil))
}
