// Package report writes run output: a live index (report.json) that is
// rewritten atomically as records finish, the final results.json, and the
// per-record diagnostic artifacts.
//
// Layout under the output directory:
//   - report.json: run status, summary, one entry per record
//   - results.json: the final RunResult
//   - sessions/session-{n}.json: the results one session ran, written as it closes
//   - artifacts/{record_id}_{timestamp}.{ext}
package report

import (
	"time"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// File and directory names under the output directory.
const (
	IndexFile    = "report.json"
	ResultsFile  = "results.json"
	MetricsFile  = "metrics.prom"
	TraceFile    = "trace.jsonl"
	ArtifactsDir = "artifacts"
	SessionsDir  = "sessions"
)

// RunStatus is the status of the run as a whole.
type RunStatus string

const (
	RunPending  RunStatus = "pending"
	RunRunning  RunStatus = "running"
	RunPassed   RunStatus = "passed"
	RunFailed   RunStatus = "failed"
	RunCanceled RunStatus = "canceled"
)

// Index is report.json. Consumers poll it and use UpdateSeq to detect change.
type Index struct {
	Version     string             `json:"version"`
	RunID       string             `json:"runId"`
	UpdateSeq   uint64             `json:"updateSeq"`
	Status      RunStatus          `json:"status"`
	Scenario    string             `json:"scenario"`
	DataFile    string             `json:"dataFile,omitempty"`
	StartTime   time.Time          `json:"startTime"`
	EndTime     *time.Time         `json:"endTime,omitempty"`
	LastUpdated time.Time          `json:"lastUpdated"`
	Platform    *core.PlatformInfo `json:"platform,omitempty"`
	CI          *CI                `json:"ci,omitempty"`
	Runner      RunnerInfo         `json:"runner"`
	Summary     Summary            `json:"summary"`
	Records     []RecordEntry      `json:"records"`
}

// CI contains CI build information.
type CI struct {
	Provider string `json:"provider,omitempty"`
	BuildID  string `json:"buildId,omitempty"`
	BuildURL string `json:"buildUrl,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Commit   string `json:"commit,omitempty"`
}

// RunnerInfo identifies the tool that produced the report.
type RunnerInfo struct {
	Version string `json:"version"`
	Driver  string `json:"driver"`
}

// Summary counts records by status, pending and running included.
type Summary struct {
	core.RunSummary
	Running int `json:"running"`
	Pending int `json:"pending"`
}

// RecordEntry is the index entry for one record.
type RecordEntry struct {
	Index     int                `json:"index"`
	CaseID    string             `json:"caseId"`
	RecordID  string             `json:"recordId,omitempty"`
	Bucket    string             `json:"bucket,omitempty"`
	Expected  string             `json:"expected,omitempty"`
	Status    core.Status        `json:"status"`
	Category  core.ErrorCategory `json:"category,omitempty"`
	UpdateSeq uint64             `json:"updateSeq"`
	StartTime *time.Time         `json:"startTime,omitempty"`
	Duration  *int64             `json:"duration,omitempty"` // milliseconds
	Attempts  int                `json:"attempts"`
	Error     string             `json:"error,omitempty"`
	Artifacts []string           `json:"artifacts,omitempty"`
}
