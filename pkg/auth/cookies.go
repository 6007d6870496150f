package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	errs "igharvest/pkg/errors"
	"igharvest/pkg/models"
)

// Cookies the site needs for a logged-in session
const (
	SessionCookie = "sessionid"
	CSRFCookie    = "csrftoken"
)

// LoadCookieFile reads a cookie export. Both a bare JSON array and an object
// with a "cookies" array are accepted; the second is what browser
// extensions usually write.
func LoadCookieFile(path string) ([]models.Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Setup("load cookies", "cookie file not found: "+path)
		}
		return nil, errs.Wrap(errs.ErrorTypeSetup, "load cookies", err)
	}

	var cookies []models.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		var wrapped struct {
			Cookies []models.Cookie `json:"cookies"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, errs.Wrap(errs.ErrorTypeSetup, "load cookies", fmt.Errorf("parse %s: %w", path, err))
		}
		cookies = wrapped.Cookies
	}

	if err := RequireSession(cookies); err != nil {
		return nil, err
	}
	return cookies, nil
}

// RequireSession fails with a setup error when cookies carry no session
func RequireSession(cookies []models.Cookie) error {
	if cookieValue(cookies, SessionCookie) == "" {
		return errs.Setup("cookies", "no "+SessionCookie+" cookie; log in and export cookies again")
	}
	return nil
}

// ParseCookieHeader parses a "name=value; name2=value2" header into cookies
// scoped to domain
func ParseCookieHeader(header, domain string) []models.Cookie {
	var cookies []models.Cookie
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, models.Cookie{
			Name:   name,
			Value:  value,
			Domain: domain,
			Path:   "/",
			Secure: true,
		})
	}
	return cookies
}

// HeaderValue renders cookies as a Cookie request header
func HeaderValue(cookies []models.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

func cookieValue(cookies []models.Cookie, name string) string {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// Import loads a cookie export and stores it under username
func (m *Manager) Import(path, username, userAgent string) (*Account, error) {
	cookies, err := LoadCookieFile(path)
	if err != nil {
		return nil, err
	}
	account := &Account{Username: username, Cookies: cookies, UserAgent: userAgent}
	if err := m.Store(account); err != nil {
		return nil, err
	}
	return account, nil
}

// Resolve picks the session for a run. An explicit cookie file wins, then
// the named stored account, then any stored account. m may be nil when only
// a cookie file is used.
func Resolve(m *Manager, cookieFile, account string) (*Account, error) {
	if cookieFile != "" {
		cookies, err := LoadCookieFile(cookieFile)
		if err != nil {
			return nil, err
		}
		return &Account{Username: account, Cookies: cookies}, nil
	}

	if m == nil {
		return nil, errs.Setup("credentials", "no cookie file configured")
	}

	var (
		acc *Account
		err error
	)
	if account != "" {
		acc, err = m.Retrieve(account)
	} else {
		acc, err = m.RetrieveDefault()
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeSetup, "credentials", fmt.Errorf("%w; run `igharvest auth import`", err))
	}
	if err := RequireSession(acc.Cookies); err != nil {
		return nil, err
	}
	return acc, nil
}
