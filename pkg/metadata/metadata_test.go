package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igharvest/pkg/models"
)

func sampleRecord() models.PostRecord {
	return models.PostRecord{
		PostURL: "https://www.instagram.com/p/abc/",
		PostID:  "post_4",
		Profile: "alice",
		Title: &models.TitleData{
			TimeDatetime: "2024-05-01T10:00:00.000Z",
			SiblingTexts: []string{"Sunset", "#beach"},
			Hashtags:     []string{"#beach"},
		},
		Images: []models.MediaRef{
			{Src: "https://cdn/1.jpg", Alt: "one", Attributes: map[string]string{"src": "https://cdn/1.jpg"}},
			{Src: "https://cdn/2.jpg"},
		},
		Likes:    &models.Engagement{LikesText: "1,024 likes", LikesNumber: 1024},
		Comments: []models.Comment{{Handle: "bob"}, {Handle: "eve"}},
	}
}

func TestFromRecord(t *testing.T) {
	meta := FromRecord(sampleRecord(), "abc", 1, "image/jpeg", 2048)

	assert.Equal(t, "post_4", meta.PostID)
	assert.Equal(t, "abc", meta.Shortcode)
	assert.Equal(t, 1, meta.Index)
	assert.Equal(t, "https://cdn/2.jpg", meta.SourceURL)
	assert.Equal(t, "Sunset\n#beach", meta.Caption)
	assert.Equal(t, []string{"#beach"}, meta.Hashtags)
	assert.Equal(t, "2024-05-01T10:00:00.000Z", meta.PostedAt)
	assert.Equal(t, 1024.0, meta.LikesCount)
	assert.Equal(t, 2, meta.CommentsCount)
	assert.Equal(t, int64(2048), meta.FileSize)
	assert.False(t, meta.DownloadedAt.IsZero())
}

func TestFromRecordWithoutOptionalFields(t *testing.T) {
	rec := models.PostRecord{PostURL: "u", PostID: "post_0"}
	meta := FromRecord(rec, "", 3, "", 0)

	assert.Empty(t, meta.SourceURL)
	assert.Empty(t, meta.Caption)
	assert.Zero(t, meta.LikesCount)
}

func TestSaveLoadAndOrphans(t *testing.T) {
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "post_4", "media_00.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(mediaPath), 0755))
	require.NoError(t, os.WriteFile(mediaPath, []byte("jpeg"), 0644))

	meta := FromRecord(sampleRecord(), "abc", 0, "image/jpeg", 4)
	require.NoError(t, meta.Save(mediaPath))
	assert.True(t, MetadataExists(mediaPath))

	loaded, err := Load(mediaPath)
	require.NoError(t, err)
	assert.Equal(t, meta.SourceURL, loaded.SourceURL)
	assert.Equal(t, meta.Attributes, loaded.Attributes)

	orphan := filepath.Join(dir, "post_4", "media_01.png")
	require.NoError(t, FromRecord(sampleRecord(), "abc", 1, "image/png", 0).Save(orphan))

	removed, err := CleanOrphanedMetadata(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, MetadataExists(orphan))
	assert.True(t, MetadataExists(mediaPath))
}

func TestCleanOrphanedMetadataMissingDir(t *testing.T) {
	removed, err := CleanOrphanedMetadata(filepath.Join(t.TempDir(), "missing"))
	assert.NoError(t, err)
	assert.Zero(t, removed)
}

func TestGetFormattedCaption(t *testing.T) {
	m := &MediaMetadata{Caption: "Sunset  over\nthe bay"}
	assert.Equal(t, "Sunset over the bay", m.GetFormattedCaption(50))
	assert.Equal(t, "Sunset ...", m.GetFormattedCaption(10))
	assert.Equal(t, "", (&MediaMetadata{}).GetFormattedCaption(10))
}
