package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FSStore implements the Store interface using filesystem-based persistence.
// Runs are stored in a directory structure: <baseDir>/runs/<runID>/
//
// Thread-safety: summaries are written with temp file + rename, so
// concurrent callers never observe a partially written file.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSStore{
		baseDir: baseDir,
	}, nil
}

// RunDir returns the directory path for a given run ID.
func (fs *FSStore) RunDir(runID string) string {
	return RunDir(fs.baseDir, runID)
}

// RunDir returns <baseDir>/runs/<runID>
func RunDir(baseDir, runID string) string {
	return filepath.Join(baseDir, "runs", runID)
}

func (fs *FSStore) summaryPath(runID string) string {
	return filepath.Join(fs.RunDir(runID), "summary.json")
}

// SaveSummary atomically saves a run summary.
func (fs *FSStore) SaveSummary(summary *RunSummary) error {
	if summary == nil {
		return fmt.Errorf("summary cannot be nil")
	}
	if err := summary.Validate(); err != nil {
		return err
	}

	runDir := fs.RunDir(summary.RunID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	tempPath := fs.summaryPath(summary.RunID) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp summary file: %w", err)
	}

	finalPath := fs.summaryPath(summary.RunID)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename summary file: %w", err)
	}

	slog.Debug("Run summary saved", "run_id", summary.RunID, "path", finalPath)
	return nil
}

// LoadSummary retrieves the summary for the given run.
func (fs *FSStore) LoadSummary(runID string) (*RunSummary, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}

	path := fs.summaryPath(runID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{RunID: runID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read summary file: %w", err)
	}

	var summary RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to deserialize summary: %w", err)
	}
	return &summary, nil
}

// ListSummaries returns metadata for all stored runs.
func (fs *FSStore) ListSummaries() ([]RunInfo, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")

	entries, err := os.ReadDir(runsDir)
	if os.IsNotExist(err) {
		return []RunInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := []RunInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		summary, err := fs.LoadSummary(entry.Name())
		if err != nil {
			// Runs that crashed before finishing have a progress log but no summary
			slog.Debug("Skipping run without summary", "run_id", entry.Name(), "error", err)
			continue
		}
		infos = append(infos, summary.ToInfo())
	}

	slog.Debug("Listed runs", "count", len(infos))
	return infos, nil
}

// DeleteRun removes the run directory and everything in it.
func (fs *FSStore) DeleteRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	runDir := fs.RunDir(runID)
	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		return &NotFoundError{RunID: runID}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(runDir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	slog.Debug("Run deleted", "run_id", runID, "path", runDir)
	return nil
}
