package urlstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "igharvest/pkg/errors"
	"igharvest/pkg/logger"
	"igharvest/pkg/storage"
)

func init() {
	logger.SetLogger(logger.NewNopLogger())
}

func TestCandidatesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alice", "posts.json")

	urls, found, err := LoadCandidates(path)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, urls)

	want := []string{"https://www.instagram.com/p/a/", "https://www.instagram.com/p/b/"}
	require.NoError(t, SaveCandidates(path, want))

	urls, found, err = LoadCandidates(path)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, urls)

	// overwrite semantics
	require.NoError(t, SaveCandidates(path, want[:1]))
	urls, _, err = LoadCandidates(path)
	require.NoError(t, err)
	assert.Equal(t, want[:1], urls)
}

func TestSaveCandidatesEmptyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	require.NoError(t, SaveCandidates(path, nil))

	urls, found, err := LoadCandidates(path)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, urls)
}

func TestLoadCandidatesCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	require.NoError(t, os.WriteFile(path, []byte(`["a",`), 0644))

	_, _, err := LoadCandidates(path)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeSetup))
}

func TestLoadProcessed(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		set, err := LoadProcessed(filepath.Join(dir, "missing.jsonl"))
		require.NoError(t, err)
		assert.Empty(t, set)
	})

	t.Run("skips malformed and anonymous lines", func(t *testing.T) {
		path := filepath.Join(dir, "metadata.jsonl")
		content := `{"post_url":"u1","post_id":"post_0"}
not json at all
{"post_id":"post_1"}

{"post_url":"u2"}
{"post_url":"u1"}
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		set, err := LoadProcessed(path)
		require.NoError(t, err)
		assert.Len(t, set, 2)
		assert.True(t, set.Has("u1"))
		assert.True(t, set.Has("u2"))
	})
}

func TestOutstanding(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		processed  []string
		want       []string
	}{
		{"nothing processed", []string{"a", "b", "c"}, nil, []string{"a", "b", "c"}},
		{"keeps order", []string{"c", "a", "b"}, []string{"a"}, []string{"c", "b"}},
		{"all processed", []string{"a"}, []string{"a", "z"}, []string{}},
		{"empty candidates", nil, []string{"a"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := make(Set)
			for _, p := range tt.processed {
				set.Add(p)
			}
			assert.Equal(t, tt.want, Outstanding(tt.candidates, set))
		})
	}
}

func TestResumeProcessesOnlyTheDifference(t *testing.T) {
	dir := t.TempDir()
	metadata := filepath.Join(dir, "metadata.jsonl")
	candidates := []string{"a", "b", "c", "d", "e"}

	// first run finished a and c before being interrupted
	require.NoError(t, storage.AppendJSONLines(metadata,
		map[string]string{"post_url": "a"},
		map[string]string{"post_url": "c"},
	))

	processed, err := LoadProcessed(metadata)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d", "e"}, Outstanding(candidates, processed))

	// second run finishes the rest; a third run has nothing left
	require.NoError(t, storage.AppendJSONLines(metadata,
		map[string]string{"post_url": "b"},
		map[string]string{"post_url": "d"},
		map[string]string{"post_url": "e"},
	))

	processed, err = LoadProcessed(metadata)
	require.NoError(t, err)
	assert.Len(t, processed, 5)
	assert.Empty(t, Outstanding(candidates, processed))
}
