package core

import (
	"time"
)

// ExecutionResult captures the outcome of one TestRecord. It is created once
// and never mutated after being appended to a session.
type ExecutionResult struct {
	// Identity
	CaseID   string `json:"case_id"`
	RecordID string `json:"record_id"` // {seq:04d}_{slug(case_id)}, prefix of artifact names
	Bucket   string `json:"bucket,omitempty"`
	Expected string `json:"expected,omitempty"`

	// Status
	Status   Status        `json:"outcome"`
	Category ErrorCategory `json:"error_category,omitempty"`
	Message  string        `json:"message,omitempty"`

	// Timing
	StartTime time.Time     `json:"start"`
	Duration  time.Duration `json:"duration"`

	// Retry tracking
	Attempts    int      `json:"attempts"`
	RetryErrors []string `json:"retry_errors,omitempty"` // Errors from earlier attempts

	ArtifactPaths []string `json:"artifact_paths,omitempty"`
}

// Flaky reports whether the record passed only after a retry.
func (r ExecutionResult) Flaky() bool {
	return r.Status == StatusPassed && r.Attempts > 1
}

// RunSummary holds per-outcome counts.
type RunSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
	Flaky   int `json:"flaky,omitempty"`
}

// Summarize counts results by outcome.
func Summarize(results []ExecutionResult) RunSummary {
	s := RunSummary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusErrored:
			s.Errored++
		case StatusSkipped:
			s.Skipped++
		}
		if r.Flaky() {
			s.Flaky++
		}
	}
	return s
}

// RunResult captures the complete outcome of a run
type RunResult struct {
	// Identity
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario"`
	Data     string `json:"data,omitempty"` // data file path

	Platform *PlatformInfo `json:"platform,omitempty"`

	// Timing
	StartTime time.Time     `json:"start"`
	Duration  time.Duration `json:"duration"`

	Results []ExecutionResult `json:"results"`
	Summary RunSummary        `json:"summary"`
}

// ComputeSummary recalculates Summary from Results
func (r *RunResult) ComputeSummary() {
	r.Summary = Summarize(r.Results)
}

// Success returns true if there was at least one result and none failed or errored
func (r *RunResult) Success() bool {
	for _, res := range r.Results {
		if !res.Status.IsSuccess() {
			return false
		}
	}
	return len(r.Results) > 0
}
