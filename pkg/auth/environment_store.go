package auth

import (
	"os"
	"time"
)

const (
	envCookies   = "IGHARVEST_COOKIES"
	envUserAgent = "IGHARVEST_USER_AGENT"
	cookieDomain = ".instagram.com"
)

// EnvironmentStore implements CredentialStore from a Cookie header held in
// IGHARVEST_COOKIES. It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	cookies := ParseCookieHeader(os.Getenv(envCookies), cookieDomain)
	if RequireSession(cookies) != nil {
		return nil, ErrCredentialsNotFound
	}

	// Environment variables don't store username, so we use "default" or the provided one
	if username == "" {
		username = "default"
	}

	return &Account{
		Username:     username,
		Cookies:      cookies,
		UserAgent:    os.Getenv(envUserAgent),
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
