package core

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSummarize(t *testing.T) {
	results := []ExecutionResult{
		{CaseID: "TC1", Status: StatusPassed, Attempts: 1},
		{CaseID: "TC2", Status: StatusPassed, Attempts: 2},
		{CaseID: "TC3", Status: StatusFailed, Attempts: 1},
		{CaseID: "TC4", Status: StatusErrored, Attempts: 3},
		{CaseID: "TC5", Status: StatusSkipped},
	}

	s := Summarize(results)

	if s.Total != 5 {
		t.Errorf("Total = %d, want 5", s.Total)
	}
	if s.Passed != 2 {
		t.Errorf("Passed = %d, want 2", s.Passed)
	}
	if s.Failed != 1 {
		t.Errorf("Failed = %d, want 1", s.Failed)
	}
	if s.Errored != 1 {
		t.Errorf("Errored = %d, want 1", s.Errored)
	}
	if s.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", s.Skipped)
	}
	if s.Flaky != 1 {
		t.Errorf("Flaky = %d, want 1", s.Flaky)
	}
}

func TestRunResult_Success(t *testing.T) {
	tests := []struct {
		name    string
		results []ExecutionResult
		want    bool
	}{
		{"empty", nil, false},
		{"all passed", []ExecutionResult{{Status: StatusPassed}, {Status: StatusPassed}}, true},
		{"passed and skipped", []ExecutionResult{{Status: StatusPassed}, {Status: StatusSkipped}}, true},
		{"one failed", []ExecutionResult{{Status: StatusPassed}, {Status: StatusFailed}}, false},
		{"one errored", []ExecutionResult{{Status: StatusErrored}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := &RunResult{Results: tt.results}
			if got := run.Success(); got != tt.want {
				t.Errorf("Success() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExecutionResult_JSON(t *testing.T) {
	res := ExecutionResult{
		CaseID:        "TC2",
		RecordID:      "0002_tc2",
		Status:        StatusFailed,
		Category:      ErrCategoryAssertion,
		Message:       "error banner missing",
		ArtifactPaths: []string{"artifacts/0002_tc2_20240101_120000.png"},
		Attempts:      1,
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got := string(data)
	for _, want := range []string{`"case_id":"TC2"`, `"outcome":"failed"`, `"error_category":"assertion"`, `"artifact_paths":[`} {
		if !strings.Contains(got, want) {
			t.Errorf("Marshal() = %s, missing %s", got, want)
		}
	}

	passed, _ := json.Marshal(ExecutionResult{CaseID: "TC1", Status: StatusPassed})
	if strings.Contains(string(passed), "error_category") {
		t.Errorf("passed result should omit error_category: %s", passed)
	}
}
