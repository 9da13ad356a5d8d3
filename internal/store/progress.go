package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// ProgressRecord is one completed portfolio step. Serialized as a single
// whitespace-separated line:
//
//	evaluations iteration member method memberIteration delta [x1 x2 ...]
type ProgressRecord struct {
	// Evaluations is the global evaluation count after the step
	Evaluations int
	// Iteration is the global portfolio iteration count
	Iteration int
	Member    int
	Method    string
	// MemberIteration is the member-local iteration count
	MemberIteration int
	// Delta is the member's value minus the known optimum
	Delta float64
	// X is the solution, omitted when nil
	X []float64
}

// String formats the record as a progress log line (without newline)
func (r ProgressRecord) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %d %d %s %d %+.9e", r.Evaluations, r.Iteration, r.Member, r.Method, r.MemberIteration, r.Delta)
	for _, v := range r.X {
		fmt.Fprintf(&b, " %+.9e", v)
	}
	return b.String()
}

// errMalformed marks a line that cannot be parsed as a record
var errMalformed = errors.New("malformed progress record")

// ParseProgressRecord parses one progress log line. Lines whose evaluation
// count or delta do not parse to finite numbers are rejected.
func ParseProgressRecord(line string) (ProgressRecord, error) {
	items := strings.Fields(line)
	if len(items) < 6 {
		return ProgressRecord{}, fmt.Errorf("%w: %d fields", errMalformed, len(items))
	}

	var rec ProgressRecord
	var err error
	if rec.Evaluations, err = strconv.Atoi(items[0]); err != nil {
		return ProgressRecord{}, fmt.Errorf("%w: evaluations: %v", errMalformed, err)
	}
	if rec.Iteration, err = strconv.Atoi(items[1]); err != nil {
		return ProgressRecord{}, fmt.Errorf("%w: iteration: %v", errMalformed, err)
	}
	if rec.Member, err = strconv.Atoi(items[2]); err != nil {
		return ProgressRecord{}, fmt.Errorf("%w: member: %v", errMalformed, err)
	}
	rec.Method = items[3]
	if rec.MemberIteration, err = strconv.Atoi(items[4]); err != nil {
		return ProgressRecord{}, fmt.Errorf("%w: member iteration: %v", errMalformed, err)
	}
	rec.Delta, err = strconv.ParseFloat(items[5], 64)
	if err != nil || math.IsNaN(rec.Delta) {
		return ProgressRecord{}, fmt.Errorf("%w: delta %q", errMalformed, items[5])
	}

	if len(items) > 6 {
		rec.X = make([]float64, 0, len(items)-6)
		for _, item := range items[6:] {
			v, err := strconv.ParseFloat(item, 64)
			if err != nil {
				return ProgressRecord{}, fmt.Errorf("%w: coordinate %q", errMalformed, item)
			}
			rec.X = append(rec.X, v)
		}
	}
	return rec, nil
}

// ProgressWriter appends progress records to a log file. Every record is
// flushed as soon as it is written so a crash loses at most the step in
// flight. It is safe for concurrent use.
type ProgressWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
}

// ProgressPath returns <baseDir>/runs/<runID>/progress.mdat
func ProgressPath(baseDir, runID string) string {
	return filepath.Join(RunDir(baseDir, runID), "progress.mdat")
}

// NewProgressWriter opens the progress log at path. If appendMode is true new
// records are appended to an existing file, otherwise it is truncated.
func NewProgressWriter(path string, appendMode bool) (*ProgressWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create progress directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress file: %w", err)
	}

	return &ProgressWriter{
		file:   file,
		writer: bufio.NewWriter(file),
		path:   path,
	}, nil
}

// Begin starts a new run section with a '%' header line
func (pw *ProgressWriter) Begin(header string) error {
	return pw.writeLine("% " + strings.ReplaceAll(header, "\n", " "))
}

// Write appends a record and flushes it.
func (pw *ProgressWriter) Write(rec ProgressRecord) error {
	return pw.writeLine(rec.String())
}

func (pw *ProgressWriter) writeLine(line string) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if _, err := pw.writer.WriteString(line); err != nil {
		return fmt.Errorf("failed to write progress record: %w", err)
	}
	if err := pw.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := pw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush progress record: %w", err)
	}
	return nil
}

// Close syncs and closes the progress file.
func (pw *ProgressWriter) Close() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if err := pw.writer.Flush(); err != nil {
		pw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := pw.file.Sync(); err != nil {
		pw.file.Close()
		return fmt.Errorf("failed to sync progress file: %w", err)
	}
	if err := pw.file.Close(); err != nil {
		return fmt.Errorf("failed to close progress file: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the progress file.
func (pw *ProgressWriter) Path() string {
	return pw.path
}

// ProgressReader reads records from a progress log. Run sections are
// delimited by '%' header lines; malformed lines are skipped.
type ProgressReader struct {
	scanner *bufio.Scanner
	run     int
	skipped int
}

// NewProgressReader reads progress records from r.
func NewProgressReader(r io.Reader) *ProgressReader {
	scanner := bufio.NewScanner(r)
	// Long lines when solutions are recorded in high dimension
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &ProgressReader{scanner: scanner, run: -1}
}

// Read returns the next record and the index of the run section it belongs
// to (-1 before the first header). Returns io.EOF at the end of input.
func (pr *ProgressReader) Read() (ProgressRecord, int, error) {
	for pr.scanner.Scan() {
		line := strings.TrimSpace(pr.scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "%") {
			pr.run++
			continue
		}
		rec, err := ParseProgressRecord(line)
		if err != nil {
			pr.skipped++
			continue
		}
		return rec, pr.run, nil
	}
	if err := pr.scanner.Err(); err != nil {
		return ProgressRecord{}, pr.run, fmt.Errorf("failed to scan progress line: %w", err)
	}
	return ProgressRecord{}, pr.run, io.EOF
}

// Skipped returns how many malformed lines have been skipped so far
func (pr *ProgressReader) Skipped() int {
	return pr.skipped
}

// ReadRun returns all records of the run-th section of the log. Returns
// ErrNotFound when the log has fewer sections.
func ReadRun(r io.Reader, run int) ([]ProgressRecord, error) {
	pr := NewProgressReader(r)
	var records []ProgressRecord
	found := false
	for {
		rec, section, err := pr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if section > run {
			break
		}
		if section == run {
			found = true
			records = append(records, rec)
		}
	}
	if !found && pr.run < run {
		return nil, &NotFoundError{RunID: fmt.Sprintf("record %d", run)}
	}
	return records, nil
}
