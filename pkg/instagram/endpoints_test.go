package instagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfileAndPostURLs(t *testing.T) {
	assert.Equal(t, "https://www.instagram.com/alice/", ProfileURL("alice"))
	assert.Equal(t, "", ProfileURL(""))
	assert.Equal(t, "/alice/", ProfileAnchor("alice"))
	assert.Equal(t, "https://www.instagram.com/p/Cx1y2z/", PostURL("Cx1y2z"))
	assert.Equal(t, "", PostURL(""))
}

func TestShortcode(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		want   string
		wantOK bool
	}{
		{"post", "https://www.instagram.com/p/Cx1y2z/", "Cx1y2z", true},
		{"post without slash", "https://www.instagram.com/p/Cx1y2z", "Cx1y2z", true},
		{"profile scoped post", "https://www.instagram.com/alice/p/Cx1y2z/", "Cx1y2z", true},
		{"reel", "https://www.instagram.com/reel/R9/", "R9", true},
		{"query string", "https://www.instagram.com/p/Cx1y2z/?img_index=2", "Cx1y2z", true},
		{"profile", "https://www.instagram.com/alice/", "", false},
		{"bare p", "https://www.instagram.com/p/", "", false},
		{"garbage", "://", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Shortcode(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSamePost(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"profile scoped and plain", "https://www.instagram.com/alice/p/Cx1/", "https://www.instagram.com/p/Cx1/?img_index=1", true},
		{"different shortcodes", "https://www.instagram.com/p/Cx1/", "https://www.instagram.com/p/Cx2/", false},
		{"no shortcode, trailing slash", "https://example.com/a/", "https://example.com/a#top", true},
		{"no shortcode, different", "https://example.com/a", "https://example.com/b", false},
		{"blank", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SamePost(tt.a, tt.b))
		})
	}
}

func TestIsValidUsername(t *testing.T) {
	tests := []struct {
		username string
		valid    bool
	}{
		{"testuser", true},
		{"test_user", true},
		{"test.user", true},
		{"user123", true},
		{"", false},
		{"test-user", false},
		{"test user", false},
		{"test@user", false},
		{"abcdefghijklmnopqrstuvwxyz12345", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidUsername(tt.username), tt.username)
	}
}

func TestSanitizeUsername(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"testuser", "testuser"},
		{"@testuser", "testuser"},
		{"testuser/", "testuser"},
		{" @testuser/ ", "testuser"},
		{"https://www.instagram.com/testuser/", "testuser"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeUsername(tt.in), tt.in)
	}
}
