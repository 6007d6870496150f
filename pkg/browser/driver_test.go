package browser

import (
	"context"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igharvest/pkg/models"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name   string
		before []Handle
		after  []Handle
		want   []Handle
	}{
		{"new tab", []Handle{"a"}, []Handle{"a", "b"}, []Handle{"b"}},
		{"no change", []Handle{"a", "b"}, []Handle{"b", "a"}, nil},
		{"closed and opened", []Handle{"a", "b"}, []Handle{"a", "c"}, []Handle{"c"}},
		{"from empty", nil, []Handle{"x", "y"}, []Handle{"x", "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Diff(tt.before, tt.after))
		})
	}

	assert.True(t, Contains([]Handle{"a", "b"}, "b"))
	assert.False(t, Contains(nil, "b"))
}

func TestResult(t *testing.T) {
	var v struct {
		N int `json:"n"`
	}
	require.NoError(t, Result(`{"n":3}`).Decode(&v))
	assert.Equal(t, 3, v.N)

	assert.True(t, Result("null").IsNull())
	assert.True(t, Result(nil).IsNull())
	assert.False(t, Result("[]").IsNull())
}

func TestCookieParams(t *testing.T) {
	params := CookieParams([]models.Cookie{
		{Name: "sessionid", Value: "v", Domain: ".instagram.com", Expiry: 1767225600.75, Secure: true, HTTPOnly: true, SameSite: "Lax"},
		{Name: "csrftoken", Value: "t", Domain: ".instagram.com", Path: "/x"},
	})

	require.Len(t, params, 2)
	assert.Equal(t, "/", params[0].Path)
	assert.Equal(t, proto.TimeSinceEpoch(1767225600), params[0].Expires)
	assert.Equal(t, proto.NetworkCookieSameSiteLax, params[0].SameSite)
	assert.True(t, params[0].HTTPOnly)
	assert.Equal(t, "/x", params[1].Path)
	assert.Zero(t, params[1].Expires)
}

func TestFakeTabs(t *testing.T) {
	ctx := context.Background()
	f := NewFake("https://www.instagram.com/alice/")
	main := f.Main()

	before, err := f.Handles(ctx)
	require.NoError(t, err)

	require.NoError(t, f.OpenTab(ctx, main, "https://www.instagram.com/p/a/"))
	after, err := f.Handles(ctx)
	require.NoError(t, err)

	added := Diff(before, after)
	require.Len(t, added, 1)
	u, err := f.URL(ctx, added[0])
	require.NoError(t, err)
	assert.Equal(t, "https://www.instagram.com/p/a/", u)

	f.BlockOpen = func(string) bool { return true }
	require.NoError(t, f.OpenTab(ctx, main, "https://www.instagram.com/p/b/"))
	again, _ := f.Handles(ctx)
	assert.Len(t, again, 2)

	require.NoError(t, f.CloseTab(ctx, added[0]))
	assert.Equal(t, []Handle{added[0]}, f.Closed)
	_, err = f.URL(ctx, added[0])
	assert.Error(t, err)

	f.OnEval = func(h Handle, url, js string, args []interface{}) (interface{}, error) {
		return map[string]interface{}{"url": url}, nil
	}
	res, err := f.Eval(ctx, main, "() => location.href")
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://www.instagram.com/alice/"}`, string(res))
}
