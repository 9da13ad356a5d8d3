package store

// Store defines the interface for run summary persistence operations.
// Implementations must be thread-safe and handle concurrent access gracefully.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return ErrNotFound if the run doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveSummary atomically saves the summary of a finished run,
	// overwriting any previous summary for the same run.
	SaveSummary(summary *RunSummary) error

	// LoadSummary retrieves the summary for the given run.
	// Returns ErrNotFound if no summary exists for this runID.
	LoadSummary(runID string) (*RunSummary, error)

	// ListSummaries returns metadata for all stored runs.
	ListSummaries() ([]RunInfo, error)

	// DeleteRun removes the run directory including its progress log.
	// Returns ErrNotFound if the run does not exist.
	DeleteRun(runID string) error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run or record error.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
