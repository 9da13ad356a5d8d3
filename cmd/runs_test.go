package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/cwbudde/portfolio/internal/opt"
	"github.com/cwbudde/portfolio/internal/step"
	"github.com/cwbudde/portfolio/internal/store"
)

func testSummary(runID string, ts time.Time) *store.RunSummary {
	return &store.RunSummary{
		RunID:       runID,
		Function:    "sphere",
		Dim:         2,
		Methods:     []string{"bfgs"},
		Members:     1,
		Evaluations: 100,
		Timestamp:   ts,
	}
}

func TestSelectRunsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", Timestamp: now.AddDate(0, 0, -10)}, // 10 days old
		{RunID: "run2", Timestamp: now.AddDate(0, 0, -5)},  // 5 days old
		{RunID: "run3", Timestamp: now.AddDate(0, 0, -1)},  // 1 day old
		{RunID: "run4", Timestamp: now.AddDate(0, 0, -30)}, // 30 days old
	}

	toDelete := selectRunsForDeletion(infos, 0, 7, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	ids := []string{toDelete[0].RunID, toDelete[1].RunID}
	if !(contains(ids, "run1") && contains(ids, "run4")) {
		t.Errorf("Expected run1 and run4 to be selected for deletion, got %v", ids)
	}
}

func TestSelectRunsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", Timestamp: now.AddDate(0, 0, -10)},
		{RunID: "run2", Timestamp: now.AddDate(0, 0, -5)},
		{RunID: "run3", Timestamp: now.AddDate(0, 0, -1)},
		{RunID: "run4", Timestamp: now.AddDate(0, 0, -30)},
	}

	toDelete := selectRunsForDeletion(infos, 2, 0, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	// Oldest first
	if toDelete[0].RunID != "run4" || toDelete[1].RunID != "run1" {
		t.Errorf("Expected run4 and run1 (oldest), got %s and %s", toDelete[0].RunID, toDelete[1].RunID)
	}
}

func TestSelectRunsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", Timestamp: now.AddDate(0, 0, -10)},
		{RunID: "run2", Timestamp: now.AddDate(0, 0, -5)},
		{RunID: "run3", Timestamp: now.AddDate(0, 0, -1)},
		{RunID: "run4", Timestamp: now.AddDate(0, 0, -30)},
		{RunID: "run5", Timestamp: now.AddDate(0, 0, -2)},
	}

	// Age selects run4 and run1; keeping 3 selects the same two, no duplicates
	toDelete := selectRunsForDeletion(infos, 3, 7, now)
	if len(toDelete) != 2 {
		t.Errorf("Expected 2 runs to delete, got %d", len(toDelete))
	}

	// Keeping 2 adds run2
	toDelete = selectRunsForDeletion(infos, 2, 7, now)
	if len(toDelete) != 3 {
		t.Errorf("Expected 3 runs to delete, got %d", len(toDelete))
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestGetDirSize(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "progress.mdat")
	content := []byte("% run\n10 1 0 bfgs 1 +5.000000000e+00\n")
	if err := os.WriteFile(testFile, content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	size, err := getDirSize(tmpDir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}

	if size < int64(len(content)) {
		t.Errorf("Expected size >= %d, got %d", len(content), size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		result := formatBytes(tt.bytes)
		if result != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, result, tt.expected)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "0123456789ab..." {
		t.Errorf("shortID = %s", got)
	}
	if got := shortID("short"); got != "short" {
		t.Errorf("shortID = %s", got)
	}
}

func TestRunsListCommand_NoRuns(t *testing.T) {
	originalDataDir := runsDataDir
	runsDataDir = t.TempDir()
	defer func() { runsDataDir = originalDataDir }()

	if err := runListRuns(nil, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestRunsListCommand_WithRuns(t *testing.T) {
	tmpDir := t.TempDir()

	runStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := runStore.SaveSummary(testSummary("test-run-id", time.Now())); err != nil {
		t.Fatalf("Failed to save summary: %v", err)
	}

	originalDataDir := runsDataDir
	runsDataDir = tmpDir
	defer func() { runsDataDir = originalDataDir }()

	if err := runListRuns(nil, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestRunsCleanCommand_NoFlags(t *testing.T) {
	originalDataDir := runsDataDir
	runsDataDir = t.TempDir()
	defer func() { runsDataDir = originalDataDir }()

	keepLast = 0
	olderThanDays = 0

	if err := runCleanRuns(nil, nil); err == nil {
		t.Error("Expected error when no flags specified")
	}
}

func TestRunsCleanCommand_WithForce(t *testing.T) {
	tmpDir := t.TempDir()

	runStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := runStore.SaveSummary(testSummary("old-run", time.Now().AddDate(0, 0, -30))); err != nil {
		t.Fatalf("Failed to save summary: %v", err)
	}
	if err := runStore.SaveSummary(testSummary("new-run", time.Now())); err != nil {
		t.Fatalf("Failed to save summary: %v", err)
	}

	originalDataDir := runsDataDir
	runsDataDir = tmpDir
	defer func() { runsDataDir = originalDataDir }()

	keepLast = 0
	olderThanDays = 7
	forceClean = true
	defer func() { olderThanDays, forceClean = 0, false }()

	if err := runCleanRuns(nil, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if _, err := runStore.LoadSummary("old-run"); err == nil {
		t.Error("Expected old run to be deleted")
	}
	if _, err := runStore.LoadSummary("new-run"); err != nil {
		t.Errorf("Expected new run to survive, got %v", err)
	}
}

// setRunFlags sets flags on the run command. Slice flags are replaced
// rather than appended to, so tests do not see each other's values.
func setRunFlags(t *testing.T, values map[string]string) {
	t.Helper()
	flags := runCmd.Flags()
	for name, value := range values {
		if sv, ok := flags.Lookup(name).Value.(pflag.SliceValue); ok {
			if err := sv.Replace(strings.Split(value, ",")); err != nil {
				t.Fatalf("Replace(%s): %v", name, err)
			}
			flags.Lookup(name).Changed = true
			continue
		}
		if err := flags.Set(name, value); err != nil {
			t.Fatalf("Set(%s): %v", name, err)
		}
	}
}

func TestRunCommandRecordsRun(t *testing.T) {
	dataDir := t.TempDir()
	setRunFlags(t, map[string]string{
		"function":      "sphere",
		"dim":           "2",
		"evals-per-dim": "200",
		"methods":       "nelder-mead,bfgs",
		"strategy":      "roundrobin",
		"accrual":       "adapt0.5r",
		"data-dir":      dataDir,
	})

	if err := runPortfolio(runCmd, nil); err != nil {
		t.Fatalf("runPortfolio failed: %v", err)
	}

	runStore, err := store.NewFSStore(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	infos, err := runStore.ListSummaries()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Fatalf("Expected one recorded run, got %d", len(infos))
	}
	summary, err := runStore.LoadSummary(infos[0].RunID)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Members != 2 || summary.Strategy != "roundrobin" || summary.Accrual != "adapt0.5r" {
		t.Errorf("unexpected summary: %+v", summary)
	}

	data, err := os.ReadFile(store.ProgressPath(dataDir, infos[0].RunID))
	if err != nil {
		t.Fatalf("progress log missing: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if !strings.HasPrefix(lines[0], "%") {
		t.Errorf("progress log should open with a header, got %q", lines[0])
	}
	records, err := store.ReadRun(strings.NewReader(string(data)), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) == 0 || len(records) != len(lines)-1 {
		t.Errorf("Expected every step recorded, got %d records for %d lines", len(records), len(lines))
	}
}

var errBlowUp = errors.New("objective blew up")

// blowUp fails before reporting a single iteration
type blowUp struct{}

func (blowUp) Minimize(context.Context, opt.Objective, []float64, opt.IterFunc) (opt.Point, error) {
	return opt.Point{}, errBlowUp
}

func init() {
	opt.Register("blow-up", func(opt.MethodConfig) (opt.Optimizer, error) { return blowUp{}, nil })
}

func TestRunCommandRecordsFailedRun(t *testing.T) {
	dataDir := t.TempDir()
	setRunFlags(t, map[string]string{
		"function":      "sphere",
		"dim":           "2",
		"evals-per-dim": "200",
		"methods":       "blow-up",
		"members":       "2",
		"strategy":      "roundrobin",
		"accrual":       "latest",
		"data-dir":      dataDir,
	})

	err := runPortfolio(runCmd, nil)
	var werr *step.WorkerError
	if !errors.As(err, &werr) || !errors.Is(err, errBlowUp) {
		t.Fatalf("Expected the optimizer failure, got %v", err)
	}

	runStore, err := store.NewFSStore(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	infos, err := runStore.ListSummaries()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Fatalf("A failed run should still leave a summary, got %d", len(infos))
	}
	if !infos[0].Failed {
		t.Errorf("listing should mark the run failed: %+v", infos[0])
	}
	summary, err := runStore.LoadSummary(infos[0].RunID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(summary.Error, errBlowUp.Error()) || summary.SolvedBy != "" {
		t.Errorf("unexpected summary: %+v", summary)
	}
}
