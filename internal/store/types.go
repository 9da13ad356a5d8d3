package store

import (
	"time"
)

// RunSummary is the persisted outcome of one portfolio run.
type RunSummary struct {
	// RunID is the unique identifier of the run (also its directory name)
	RunID string `json:"runId"`

	// Function and Dim identify the benchmark instance
	Function string `json:"function"`
	Dim      int    `json:"dim"`
	Seed     int64  `json:"seed"`

	// Methods assigned round-robin to population members
	Methods []string `json:"methods"`
	Members int      `json:"members"`

	// Strategy, Assign and Accrual name the selection and credit policies
	Strategy string `json:"strategy"`
	Assign   string `json:"assign"`
	Accrual  string `json:"accrual"`

	Evaluations int `json:"evaluations"`
	Iterations  int `json:"iterations"`

	// BestDelta is the best value found minus the known optimum
	BestDelta float64 `json:"bestDelta"`

	// SolvedBy names the method that reached the target, empty if none did
	SolvedBy string `json:"solvedBy,omitempty"`

	// Error is the failure that aborted the run, empty for runs that ended
	// on target, budget or interrupt
	Error string `json:"error,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// RunInfo is the listing view of a RunSummary.
type RunInfo struct {
	RunID       string    `json:"runId"`
	Function    string    `json:"function"`
	Dim         int       `json:"dim"`
	Evaluations int       `json:"evaluations"`
	BestDelta   float64   `json:"bestDelta"`
	SolvedBy    string    `json:"solvedBy,omitempty"`
	Failed      bool      `json:"failed,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ToInfo converts a full summary to its listing view.
func (s *RunSummary) ToInfo() RunInfo {
	return RunInfo{
		RunID:       s.RunID,
		Function:    s.Function,
		Dim:         s.Dim,
		Evaluations: s.Evaluations,
		BestDelta:   s.BestDelta,
		SolvedBy:    s.SolvedBy,
		Failed:      s.Error != "",
		Timestamp:   s.Timestamp,
	}
}

// Validate checks if the summary has valid data.
func (s *RunSummary) Validate() error {
	if s.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if s.Function == "" {
		return &ValidationError{Field: "Function", Reason: "cannot be empty"}
	}
	if s.Dim <= 0 {
		return &ValidationError{Field: "Dim", Reason: "must be positive"}
	}
	if len(s.Methods) == 0 {
		return &ValidationError{Field: "Methods", Reason: "cannot be empty"}
	}
	if s.Members <= 0 {
		return &ValidationError{Field: "Members", Reason: "must be positive"}
	}
	if s.Evaluations < 0 {
		return &ValidationError{Field: "Evaluations", Reason: "cannot be negative"}
	}
	if s.Iterations < 0 {
		return &ValidationError{Field: "Iterations", Reason: "cannot be negative"}
	}
	if s.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a summary validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
