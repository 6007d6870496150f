package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Manager stores downloaded post media under <mediaDir>/<post_id>/ and
// remembers what is already on disk so reruns skip finished files.
type Manager struct {
	mediaDir   string
	downloaded map[string]string // key -> path
	mu         sync.RWMutex
}

// NewManager creates a media manager rooted at mediaDir
func NewManager(mediaDir string) (*Manager, error) {
	if err := os.MkdirAll(mediaDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	manager := &Manager{
		mediaDir:   mediaDir,
		downloaded: make(map[string]string),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// MediaKey names the index-th media file of a post, independent of extension
func MediaKey(postID string, index int) string {
	return fmt.Sprintf("%s/media_%02d", postID, index)
}

func (m *Manager) scanExistingFiles() error {
	postDirs, err := os.ReadDir(m.mediaDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, postDir := range postDirs {
		if !postDir.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(m.mediaDir, postDir.Name()))
		if err != nil {
			return fmt.Errorf("failed to read directory: %w", err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".json") || !strings.HasPrefix(name, "media_") {
				continue
			}
			base := strings.TrimSuffix(name, filepath.Ext(name))
			m.downloaded[postDir.Name()+"/"+base] = filepath.Join(m.mediaDir, postDir.Name(), name)
		}
	}

	return nil
}

// Lookup returns the stored path for key, if the file exists
func (m *Manager) Lookup(key string) (string, bool) {
	m.mu.RLock()
	path, ok := m.downloaded[key]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}

	if _, err := os.Stat(path); err != nil {
		m.mu.Lock()
		delete(m.downloaded, key)
		m.mu.Unlock()
		return "", false
	}
	return path, true
}

// IsDownloaded reports whether the media file for key is on disk
func (m *Manager) IsDownloaded(key string) bool {
	_, ok := m.Lookup(key)
	return ok
}

// SaveMedia writes r to the file for key with the given extension and
// returns its path. The write goes through a temporary file and a rename.
func (m *Manager) SaveMedia(r io.Reader, key, ext string) (string, error) {
	filename := filepath.Join(m.mediaDir, filepath.FromSlash(key)+ext)
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return "", fmt.Errorf("failed to create post directory: %w", err)
	}

	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to save media data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.downloaded[key] = filename
	m.mu.Unlock()

	return filename, nil
}

// GetDownloadedCount returns the number of media files known to be on disk
func (m *Manager) GetDownloadedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.downloaded)
}
