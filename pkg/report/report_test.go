package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

func testRecords(t *testing.T, ids ...string) []core.TestRecord {
	t.Helper()
	out := make([]core.TestRecord, len(ids))
	for i, id := range ids {
		r, err := core.NewTestRecord(core.RecordSpec{CaseID: id, Expected: "success", Index: i})
		if err != nil {
			t.Fatalf("NewTestRecord(%q) error = %v", id, err)
		}
		out[i] = r
	}
	return out
}

func TestBuildSkeleton(t *testing.T) {
	idx := BuildSkeleton(testRecords(t, "TC01", "TC02", "TC03"), BuilderConfig{
		RunID:    "run-1",
		Scenario: "login",
		Platform: &core.PlatformInfo{Driver: "mock"},
	})

	if idx.Status != RunPending {
		t.Errorf("Status = %q, want %q", idx.Status, RunPending)
	}
	if idx.Runner.Driver != "mock" {
		t.Errorf("Runner.Driver = %q, want %q", idx.Runner.Driver, "mock")
	}
	if idx.Summary.Total != 3 || idx.Summary.Pending != 3 {
		t.Errorf("Summary = %+v, want 3 pending of 3", idx.Summary)
	}
	for i, e := range idx.Records {
		if e.Index != i || e.Status != core.StatusPending {
			t.Errorf("Records[%d] = %+v", i, e)
		}
	}
}

func TestIndexWriter_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	w := NewIndexWriter(dir, BuildSkeleton(testRecords(t, "TC01", "TC02"), BuilderConfig{RunID: "r"}), nil)

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	w.RecordStarted(0, "0001_tc01")
	if err := w.RecordFinished(0, core.ExecutionResult{
		CaseID: "TC01", RecordID: "0001_tc01", Status: core.StatusPassed, Attempts: 1, Duration: 1500 * time.Millisecond,
	}); err != nil {
		t.Fatalf("RecordFinished() error = %v", err)
	}
	if err := w.RecordFinished(1, core.ExecutionResult{
		CaseID: "TC02", RecordID: "0002_tc02", Status: core.StatusFailed, Category: core.ErrCategoryAssertion,
		Message: "title mismatch", ArtifactPaths: []string{"artifacts/0002_tc02_20260101_000000.png"},
	}); err != nil {
		t.Fatalf("RecordFinished() error = %v", err)
	}
	// Out of range is ignored.
	if err := w.RecordFinished(7, core.ExecutionResult{}); err != nil {
		t.Errorf("RecordFinished(7) error = %v", err)
	}
	if err := w.End(false); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	idx, err := ReadIndex(filepath.Join(dir, IndexFile))
	if err != nil {
		t.Fatalf("ReadIndex() error = %v", err)
	}
	if idx.Status != RunFailed {
		t.Errorf("Status = %q, want %q", idx.Status, RunFailed)
	}
	if idx.EndTime == nil {
		t.Error("EndTime not set")
	}
	want := Summary{RunSummary: core.RunSummary{Total: 2, Passed: 1, Failed: 1}}
	if diff := cmp.Diff(want, idx.Summary); diff != "" {
		t.Errorf("Summary mismatch (-want +got):\n%s", diff)
	}
	rec := idx.Records[1]
	if rec.Category != core.ErrCategoryAssertion || rec.Error != "title mismatch" || len(rec.Artifacts) != 1 {
		t.Errorf("Records[1] = %+v", rec)
	}
	if d := idx.Records[0].Duration; d == nil || *d != 1500 {
		t.Errorf("Records[0].Duration = %v, want 1500", d)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("output dir has %d entries, want only %s", len(entries), IndexFile)
	}
}

func TestIndexWriter_RunStatus(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []core.Status
		cancelled bool
		want      RunStatus
	}{
		{"all passed", []core.Status{core.StatusPassed, core.StatusPassed}, false, RunPassed},
		{"skipped counts as success", []core.Status{core.StatusPassed, core.StatusSkipped}, false, RunPassed},
		{"errored", []core.Status{core.StatusPassed, core.StatusErrored}, false, RunFailed},
		{"still pending", []core.Status{core.StatusPassed, core.StatusPending}, false, RunRunning},
		{"cancelled", []core.Status{core.StatusErrored, core.StatusSkipped}, true, RunCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &Index{Records: make([]RecordEntry, len(tt.statuses))}
			for i, s := range tt.statuses {
				idx.Records[i].Status = s
			}
			w := NewIndexWriter(t.TempDir(), idx, nil)
			if got := w.runStatus(tt.cancelled); got != tt.want {
				t.Errorf("runStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIndexWriter_DebouncedProgress(t *testing.T) {
	dir := t.TempDir()
	w := NewIndexWriter(dir, BuildSkeleton(testRecords(t, "TC01"), BuilderConfig{}), nil)
	w.RecordStarted(0, "0001_tc01")

	deadline := time.Now().Add(2 * time.Second)
	for {
		idx, err := ReadIndex(w.Path())
		if err == nil && idx.Records[0].Status == core.StatusRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("running status never flushed")
		}
		time.Sleep(20 * time.Millisecond)
	}
	if snap := w.Snapshot(); snap.Summary.Running != 1 {
		t.Errorf("Snapshot().Summary.Running = %d, want 1", snap.Summary.Running)
	}
}

func TestWriteAndReadResults(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := &core.RunResult{
		RunID:     "run-1",
		Scenario:  "login",
		StartTime: start,
		Results: []core.ExecutionResult{
			{CaseID: "TC01", RecordID: "0001_tc01", Status: core.StatusPassed, StartTime: start, Attempts: 1},
			{CaseID: "TC02", RecordID: "0002_tc02", Status: core.StatusErrored, Category: core.ErrCategoryTimeout, StartTime: start, Attempts: 1},
		},
	}
	path, err := WriteResults(dir, run)
	if err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}
	got, err := ReadResults(path)
	if err != nil {
		t.Fatalf("ReadResults() error = %v", err)
	}
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	if got.Summary.Errored != 1 || got.Summary.Passed != 1 {
		t.Errorf("Summary = %+v", got.Summary)
	}
}

func TestWriteSessionResults(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	results := []core.ExecutionResult{
		{CaseID: "TC03", RecordID: "0003_tc03", Status: core.StatusFailed, Category: core.ErrCategoryAssertion, StartTime: start, Attempts: 2},
	}

	path, err := WriteSessionResults(dir, 1, results)
	if err != nil {
		t.Fatalf("WriteSessionResults() error = %v", err)
	}
	if want := filepath.Join(dir, SessionsDir, "session-1.json"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	got, err := ReadSessionResults(path)
	if err != nil {
		t.Fatalf("ReadSessionResults() error = %v", err)
	}
	if diff := cmp.Diff(results, got); diff != "" {
		t.Errorf("session results mismatch (-want +got):\n%s", diff)
	}

	empty, err := WriteSessionResults(dir, 0, nil)
	if err != nil {
		t.Fatalf("WriteSessionResults(nil) error = %v", err)
	}
	data, err := os.ReadFile(empty)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("empty session file = %q, want []", data)
	}
}

func TestArtifactWriter_Save(t *testing.T) {
	dir := t.TempDir()
	w, err := NewArtifactWriter(dir)
	if err != nil {
		t.Fatalf("NewArtifactWriter() error = %v", err)
	}
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	att := core.NewScreenshotAttachment("0001_tc01", at, []byte("png"))

	first, err := w.Save(att)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if want := filepath.Join(ArtifactsDir, "0001_tc01_20260301_100000.png"); first != want {
		t.Errorf("Save() = %q, want %q", first, want)
	}
	second, err := w.Save(att)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if want := filepath.Join(ArtifactsDir, "0001_tc01_20260301_100000-1.png"); second != want {
		t.Errorf("Save() = %q, want %q", second, want)
	}
	data, err := os.ReadFile(filepath.Join(dir, first))
	if err != nil || string(data) != "png" {
		t.Errorf("artifact content = %q, %v", data, err)
	}
}

func TestReadIndex_Missing(t *testing.T) {
	_, err := ReadIndex(filepath.Join(t.TempDir(), IndexFile))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadIndex() error = %v, want not exist", err)
	}
}
