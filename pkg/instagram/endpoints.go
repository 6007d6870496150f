package instagram

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// PostSegment and ReelSegment prefix post paths
	PostSegment = "p"
	ReelSegment = "reel"
)

// ProfileURL returns the public profile URL for a user
func ProfileURL(username string) string {
	if username == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/", BaseURL, username)
}

// ProfileAnchor returns the relative link a post uses to point at its author
func ProfileAnchor(username string) string {
	return "/" + username + "/"
}

// PostURL returns the URL of a post
func PostURL(shortcode string) string {
	if shortcode == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s/", BaseURL, PostSegment, shortcode)
}

// Shortcode extracts the post shortcode from a post or reel URL. Both
// /p/<code>/ and /<user>/p/<code>/ forms are accepted.
func Shortcode(postURL string) (string, bool) {
	u, err := url.Parse(postURL)
	if err != nil {
		return "", false
	}
	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == PostSegment || parts[i] == ReelSegment {
			return parts[i+1], true
		}
	}
	return "", false
}

// SamePost reports whether two links lead to the same post. Links with a
// shortcode compare by shortcode; others compare without query, fragment or
// trailing slash.
func SamePost(a, b string) bool {
	ca, okA := Shortcode(a)
	cb, okB := Shortcode(b)
	if okA && okB {
		return ca == cb
	}
	return bareLink(a) != "" && bareLink(a) == bareLink(b)
}

func bareLink(link string) string {
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		link = link[:i]
	}
	return strings.TrimRight(strings.TrimSpace(link), "/")
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}

	// Instagram usernames can only contain letters, numbers, periods, and underscores
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername strips a leading @, a profile URL prefix and trailing
// slashes or spaces
func SanitizeUsername(username string) string {
	username = strings.TrimSpace(username)
	username = strings.TrimPrefix(username, BaseURL+"/")
	username = strings.TrimPrefix(username, "@")
	return strings.TrimRight(username, "/ ")
}
