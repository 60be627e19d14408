package report

import (
	"time"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// BuilderConfig describes the run for the index skeleton.
type BuilderConfig struct {
	RunID         string
	Scenario      string
	DataFile      string
	Platform      *core.PlatformInfo
	CI            *CI
	RunnerVersion string
}

// BuildSkeleton creates the initial index with every record pending. It is
// written before execution starts so consumers see the full run up front.
func BuildSkeleton(records []core.TestRecord, cfg BuilderConfig) *Index {
	now := time.Now()
	driver := ""
	if cfg.Platform != nil {
		driver = cfg.Platform.Driver
	}
	index := &Index{
		Version:     Version,
		RunID:       cfg.RunID,
		Status:      RunPending,
		Scenario:    cfg.Scenario,
		DataFile:    cfg.DataFile,
		StartTime:   now,
		LastUpdated: now,
		Platform:    cfg.Platform,
		CI:          cfg.CI,
		Runner:      RunnerInfo{Version: cfg.RunnerVersion, Driver: driver},
		Records:     make([]RecordEntry, len(records)),
	}
	for i, r := range records {
		index.Records[i] = RecordEntry{
			Index:    i,
			CaseID:   r.CaseID(),
			Bucket:   r.Bucket(),
			Expected: r.Expected(),
			Status:   core.StatusPending,
		}
	}
	index.Summary = summarize(index.Records)
	return index
}

func summarize(entries []RecordEntry) Summary {
	var s Summary
	for _, e := range entries {
		s.Total++
		switch e.Status {
		case core.StatusPassed:
			s.Passed++
		case core.StatusFailed:
			s.Failed++
		case core.StatusErrored:
			s.Errored++
		case core.StatusSkipped:
			s.Skipped++
		case core.StatusRunning:
			s.Running++
		case core.StatusPending:
			s.Pending++
		}
	}
	return s
}
