package checkpoint

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"igharvest/pkg/logger"
	"igharvest/pkg/storage"
)

// Run statuses recorded in the manifest
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
)

// Manifest summarizes one run against one profile. Recorded is the size of
// the processed set when the run ended.
type Manifest struct {
	RunID            string     `json:"run_id"`
	Profile          string     `json:"profile"`
	StartedAt        time.Time  `json:"started_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Candidates       int        `json:"candidates"`
	ProcessedAtStart int        `json:"processed_at_start"`
	Succeeded        int        `json:"succeeded"`
	Skipped          int        `json:"skipped"`
	Recorded         int        `json:"recorded"`
	GuardViolations  int        `json:"guard_violations"`
	Status           string     `json:"status"`
	Reason           string     `json:"reason,omitempty"`
	Version          int        `json:"version"`
}

// Outstanding returns how many candidates were left when the run started
func (m *Manifest) Outstanding() int {
	n := m.Candidates - m.ProcessedAtStart
	if n < 0 {
		return 0
	}
	return n
}

// Manager reads and writes the run manifest of a profile
type Manager struct {
	manifestPath string
	logger       logger.Logger
}

// NewManager creates a manifest manager for the file at path
func NewManager(path string) *Manager {
	return &Manager{
		manifestPath: path,
		logger:       logger.GetLogger(),
	}
}

// Path returns the manifest file path
func (m *Manager) Path() string {
	return m.manifestPath
}

// Create starts a new run manifest and saves it
func (m *Manager) Create(profile string, candidates, processedAtStart int) (*Manifest, error) {
	now := time.Now()
	manifest := &Manifest{
		RunID:            uuid.NewString(),
		Profile:          profile,
		StartedAt:        now,
		UpdatedAt:        now,
		Candidates:       candidates,
		ProcessedAtStart: processedAtStart,
		Status:           StatusRunning,
		Version:          1,
	}

	if err := m.Save(manifest); err != nil {
		return nil, fmt.Errorf("failed to save initial manifest: %w", err)
	}

	m.logger.InfoWithFields("Run manifest created", map[string]interface{}{
		"run_id":  manifest.RunID,
		"profile": profile,
		"path":    m.manifestPath,
	})

	return manifest, nil
}

// Load reads the manifest. It returns nil without error when none exists.
func (m *Manager) Load() (*Manifest, error) {
	var manifest Manifest
	found, err := storage.ReadJSON(m.manifestPath, &manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &manifest, nil
}

// Save writes the manifest atomically
func (m *Manager) Save(manifest *Manifest) error {
	manifest.UpdatedAt = time.Now()

	if err := storage.WriteJSONAtomic(m.manifestPath, manifest); err != nil {
		return err
	}

	m.logger.DebugWithFields("Run manifest saved", map[string]interface{}{
		"run_id":    manifest.RunID,
		"succeeded": manifest.Succeeded,
		"skipped":   manifest.Skipped,
		"status":    manifest.Status,
	})

	return nil
}

// Progress records the running totals
func (m *Manager) Progress(manifest *Manifest, succeeded, skipped int) error {
	manifest.Succeeded = succeeded
	manifest.Skipped = skipped
	return m.Save(manifest)
}

// Complete marks the run finished
func (m *Manager) Complete(manifest *Manifest, succeeded, skipped int) error {
	return m.finish(manifest, StatusCompleted, "", succeeded, skipped)
}

// Abort marks the run stopped early
func (m *Manager) Abort(manifest *Manifest, reason string, succeeded, skipped int) error {
	return m.finish(manifest, StatusAborted, reason, succeeded, skipped)
}

func (m *Manager) finish(manifest *Manifest, status, reason string, succeeded, skipped int) error {
	now := time.Now()
	manifest.Status = status
	manifest.Reason = reason
	manifest.Succeeded = succeeded
	manifest.Skipped = skipped
	manifest.CompletedAt = &now
	return m.Save(manifest)
}

// Exists checks if a manifest file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.manifestPath)
	return err == nil
}

// Info returns a summary of the manifest for display
func (m *Manager) Info() (map[string]interface{}, error) {
	manifest, err := m.Load()
	if err != nil {
		return nil, err
	}
	if manifest == nil {
		return nil, nil
	}

	return map[string]interface{}{
		"run_id":      manifest.RunID,
		"profile":     manifest.Profile,
		"status":      manifest.Status,
		"candidates":  manifest.Candidates,
		"outstanding": manifest.Outstanding(),
		"succeeded":   manifest.Succeeded,
		"skipped":     manifest.Skipped,
		"recorded":    manifest.Recorded,
		"violations":  manifest.GuardViolations,
		"started_at":  manifest.StartedAt,
		"updated_at":  manifest.UpdatedAt,
		"age":         time.Since(manifest.UpdatedAt),
	}, nil
}
