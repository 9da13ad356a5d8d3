// Package replay substitutes recorded optimizer progress for live
// computation. A Sequence yields the (evaluations, value) steps of one
// recorded run; Interpolate synthesizes the evaluations in between.
package replay

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cwbudde/portfolio/internal/store"
)

// Step is one recorded member step: the evaluations it consumed and the
// value it reached.
type Step struct {
	Evaluations int
	Y           float64
}

// Sequence replays recorded steps in order. Once exhausted it keeps
// returning the last step and warns once.
type Sequence struct {
	method string
	source string
	steps  []Step
	pos    int
	warned bool
}

// Path returns the replay source file for a method inside dir
func Path(dir, method string) string {
	return filepath.Join(dir, method+".mdat")
}

// Open loads record number record of method's replay file in dir. fopt is
// added back to the logged deltas. A missing file yields an error matching
// os.ErrNotExist so callers can fall back to a live member.
func Open(dir, method string, record int, fopt float64) (*Sequence, error) {
	path := Path(dir, method)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay source: %w", err)
	}
	defer f.Close()

	steps, err := Load(f, record, fopt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	slog.Info("Loaded replay", "method", method, "record", record, "path", path, "steps", len(steps))
	seq := NewSequence(method, steps)
	seq.source = path
	return seq, nil
}

// Load reads one record from a progress log and converts it to steps.
// Cumulative evaluation counts become per-step deltas.
func Load(r io.Reader, record int, fopt float64) ([]Step, error) {
	records, err := store.ReadRun(r, record)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("replay record %d is empty", record)
	}

	steps := make([]Step, 0, len(records))
	base := 0
	for _, rec := range records {
		steps = append(steps, Step{Evaluations: rec.Evaluations - base, Y: rec.Delta + fopt})
		base = rec.Evaluations
	}
	return steps, nil
}

// NewSequence wraps already loaded steps. steps must not be empty.
func NewSequence(method string, steps []Step) *Sequence {
	return &Sequence{method: method, steps: steps}
}

// Method returns the name of the recorded method
func (s *Sequence) Method() string { return s.method }

// Len returns the number of recorded steps
func (s *Sequence) Len() int { return len(s.steps) }

// Exhausted reports whether every recorded step has been returned
func (s *Sequence) Exhausted() bool { return s.pos >= len(s.steps) }

// Next returns the next recorded step, or the last one again once the
// record is exhausted.
func (s *Sequence) Next() Step {
	if s.pos > len(s.steps)-1 {
		if !s.warned {
			slog.Warn("Replay exhausted, repeating last step",
				"method", s.method,
				"source", s.source,
				"steps", len(s.steps),
				"evaluations", s.steps[len(s.steps)-1].Evaluations)
			s.warned = true
		}
		s.pos = len(s.steps) - 1
	}
	step := s.steps[s.pos]
	s.pos++
	return step
}
