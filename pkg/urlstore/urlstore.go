// Package urlstore persists the candidate post list of a profile and
// rebuilds the set of posts already present in the durable metadata store,
// so an interrupted run resumes with only the outstanding work.
package urlstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	errs "igharvest/pkg/errors"
	"igharvest/pkg/logger"
	"igharvest/pkg/storage"
)

// Set is a membership set of post URLs
type Set map[string]struct{}

// Add inserts url into the set
func (s Set) Add(url string) {
	s[url] = struct{}{}
}

// Has reports whether url is in the set
func (s Set) Has(url string) bool {
	_, ok := s[url]
	return ok
}

// LoadCandidates returns the cached candidate list. The boolean is false
// when no cache exists and the feed has to be collected.
func LoadCandidates(path string) ([]string, bool, error) {
	var urls []string
	found, err := storage.ReadJSON(path, &urls)
	if err != nil {
		return nil, found, errs.Wrap(errs.ErrorTypeSetup, "load candidates", err)
	}
	if !found {
		return nil, false, nil
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"path":  path,
		"count": len(urls),
	}).Info("Loaded cached candidates")

	return urls, true, nil
}

// SaveCandidates replaces the cache at path with urls
func SaveCandidates(path string, urls []string) error {
	if urls == nil {
		urls = []string{}
	}
	if err := storage.WriteJSONAtomic(path, urls); err != nil {
		return fmt.Errorf("failed to save candidates: %w", err)
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"path":  path,
		"count": len(urls),
	}).Info("Saved candidates")
	return nil
}

type processedLine struct {
	PostURL string `json:"post_url"`
}

// LoadProcessed scans the JSON-lines metadata store and returns the post
// URLs it contains. Malformed lines and records without a post_url are
// skipped. A missing store yields an empty set.
func LoadProcessed(metadataPath string) (Set, error) {
	processed := make(Set)
	malformed := 0

	err := storage.ScanJSONLines(metadataPath, func(lineNo int, raw []byte) {
		var line processedLine
		if err := json.Unmarshal(raw, &line); err != nil {
			malformed++
			return
		}
		if line.PostURL == "" {
			return
		}
		processed.Add(line.PostURL)
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return processed, nil
		}
		return nil, fmt.Errorf("failed to load processed posts: %w", err)
	}

	log := logger.GetLogger().WithFields(map[string]interface{}{
		"path":      metadataPath,
		"processed": len(processed),
	})
	if malformed > 0 {
		log.WithField("malformed", malformed).Warn("Skipped malformed metadata lines")
	} else {
		log.Debug("Loaded processed posts")
	}

	return processed, nil
}

// Outstanding returns the candidates not yet processed, in candidate order
func Outstanding(candidates []string, processed Set) []string {
	out := make([]string, 0, len(candidates))
	for _, url := range candidates {
		if processed.Has(url) {
			continue
		}
		out = append(out, url)
	}
	return out
}
