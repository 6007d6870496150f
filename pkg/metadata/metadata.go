// Package metadata writes a JSON sidecar next to every downloaded media
// file describing the post it came from.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"igharvest/pkg/models"
	"igharvest/pkg/storage"
)

// MediaMetadata describes one downloaded media file
type MediaMetadata struct {
	// Core identifiers
	PostID    string `json:"post_id"`
	PostURL   string `json:"post_url"`
	Shortcode string `json:"shortcode,omitempty"`
	Profile   string `json:"profile,omitempty"`
	Index     int    `json:"index"`

	// File
	SourceURL   string            `json:"source_url"`
	ContentType string            `json:"content_type,omitempty"`
	FileSize    int64             `json:"file_size"`
	Alt         string            `json:"alt,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`

	// Post content
	Caption  string   `json:"caption,omitempty"`
	Hashtags []string `json:"hashtags,omitempty"`
	PostedAt string   `json:"posted_at,omitempty"`

	// Engagement
	LikesText     string  `json:"likes_text,omitempty"`
	LikesCount    float64 `json:"likes_count"`
	CommentsCount int     `json:"comments_count"`

	DownloadedAt time.Time `json:"downloaded_at"`
}

// FromRecord describes the index-th media file of rec
func FromRecord(rec models.PostRecord, shortcode string, index int, contentType string, size int64) *MediaMetadata {
	meta := &MediaMetadata{
		PostID:        rec.PostID,
		PostURL:       rec.PostURL,
		Shortcode:     shortcode,
		Profile:       rec.Profile,
		Index:         index,
		ContentType:   contentType,
		FileSize:      size,
		CommentsCount: len(rec.Comments),
		DownloadedAt:  time.Now().UTC(),
	}

	if index >= 0 && index < len(rec.Images) {
		img := rec.Images[index]
		meta.SourceURL = img.Src
		meta.Alt = img.Alt
		meta.Attributes = img.Attributes
	}

	if rec.Title != nil {
		meta.Caption = strings.Join(rec.Title.SiblingTexts, "\n")
		meta.Hashtags = rec.Title.Hashtags
		meta.PostedAt = rec.Title.TimeDatetime
	}

	if rec.Likes != nil {
		meta.LikesText = rec.Likes.LikesText
		meta.LikesCount = rec.Likes.LikesNumber
	}

	return meta
}

// Save writes the sidecar for the media file at mediaPath
func (m *MediaMetadata) Save(mediaPath string) error {
	if err := storage.WriteJSONAtomic(mediaPath+".json", m); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// Load reads the sidecar of the media file at mediaPath
func Load(mediaPath string) (*MediaMetadata, error) {
	data, err := os.ReadFile(mediaPath + ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta MediaMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &meta, nil
}

// GetFormattedCaption returns the caption on one line, cut to maxLength runes
func (m *MediaMetadata) GetFormattedCaption(maxLength int) string {
	caption := strings.Join(strings.Fields(m.Caption), " ")
	if maxLength <= 3 || utf8.RuneCountInString(caption) <= maxLength {
		return caption
	}
	runes := []rune(caption)
	return string(runes[:maxLength-3]) + "..."
}

// MetadataExists checks if a sidecar exists for the media file
func MetadataExists(mediaPath string) bool {
	_, err := os.Stat(mediaPath + ".json")
	return err == nil
}

// CleanOrphanedMetadata removes sidecars whose media file is gone and
// returns how many were removed
func CleanOrphanedMetadata(directory string) (int, error) {
	removed := 0
	err := filepath.Walk(directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == directory {
				return filepath.SkipDir
			}
			return err
		}

		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		mediaPath := strings.TrimSuffix(path, ".json")
		if _, err := os.Stat(mediaPath); os.IsNotExist(err) {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove orphaned metadata %s: %w", path, err)
			}
			removed++
		}
		return nil
	})
	return removed, err
}
