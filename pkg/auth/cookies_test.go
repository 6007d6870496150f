package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "igharvest/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadCookieFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		want    int
	}{
		{
			name:    "array",
			content: `[{"name":"sessionid","value":"s1","domain":".instagram.com"},{"name":"csrftoken","value":"c1"}]`,
			want:    2,
		},
		{
			name:    "wrapped",
			content: `{"url":"https://www.instagram.com","cookies":[{"name":"sessionid","value":"s1","expiry":1893456000}]}`,
			want:    1,
		},
		{
			name:    "no session",
			content: `[{"name":"csrftoken","value":"c1"}]`,
			wantErr: true,
		},
		{
			name:    "garbage",
			content: `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cookies, err := LoadCookieFile(writeFile(t, "cookies.json", tt.content))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.Is(err, errs.ErrorTypeSetup), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Len(t, cookies, tt.want)
			assert.Equal(t, "s1", cookieValue(cookies, SessionCookie))
		})
	}
}

func TestLoadCookieFileMissing(t *testing.T) {
	_, err := LoadCookieFile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeSetup))
	assert.Contains(t, err.Error(), "cookie file not found")
}

func TestCookieHeaderRoundTrip(t *testing.T) {
	cookies := ParseCookieHeader(" sessionid=abc ; csrftoken=def;;broken; mid=x=y", ".instagram.com")
	require.Len(t, cookies, 3)
	assert.Equal(t, "x=y", cookies[2].Value)
	assert.Equal(t, ".instagram.com", cookies[0].Domain)
	assert.Equal(t, "sessionid=abc; csrftoken=def; mid=x=y", HeaderValue(cookies))
}

func TestResolve(t *testing.T) {
	manager, _ := NewMockManager()
	require.NoError(t, manager.Store(&Account{Username: "alice", Cookies: sessionCookies("stored", "c")}))

	t.Run("cookie file wins", func(t *testing.T) {
		path := writeFile(t, "c.json", `[{"name":"sessionid","value":"from-file"}]`)
		acc, err := Resolve(manager, path, "alice")
		require.NoError(t, err)
		assert.Equal(t, "from-file", acc.SessionID())
	})

	t.Run("named account", func(t *testing.T) {
		acc, err := Resolve(manager, "", "alice")
		require.NoError(t, err)
		assert.Equal(t, "stored", acc.SessionID())
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := Resolve(manager, "", "bob")
		assert.True(t, errs.Is(err, errs.ErrorTypeSetup))
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := Resolve(nil, "", "")
		assert.True(t, errs.Is(err, errs.ErrorTypeSetup))
	})
}

func TestImport(t *testing.T) {
	manager, store := NewMockManager()
	path := writeFile(t, "c.json", `[{"name":"sessionid","value":"imp"}]`)

	acc, err := manager.Import(path, "carol", "UA/1")
	require.NoError(t, err)
	assert.Equal(t, "imp", acc.SessionID())
	assert.True(t, store.Exists("carol"))
	assert.False(t, acc.LastModified.IsZero())
}
