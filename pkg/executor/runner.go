// Package executor runs scenarios over data records, one fault boundary per
// record, and feeds results to reports, metrics and traces.
package executor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/report"
)

// DefaultRecordTimeout bounds one attempt of one record.
const DefaultRecordTimeout = 2 * time.Minute

// RunnerConfig configures the record runner.
type RunnerConfig struct {
	RecordTimeout time.Duration // Per attempt; 0 means DefaultRecordTimeout, <0 disables
	Retries       int           // Extra attempts after a non-passing outcome
	StopOnFail    bool          // Skip remaining records after the first failure

	// Index receives live progress. Optional.
	Index *report.IndexWriter

	// Live progress callbacks
	OnRecordStart func(idx, total int, recordID string, rec core.TestRecord)
	OnRecordEnd   func(idx, total int, res core.ExecutionResult)
}

// PanicError is the outcome of a scenario that panicked.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("scenario panicked: %v", e.Value)
}

// Runner drives records through a scenario.
type Runner struct {
	config RunnerConfig
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.RecordTimeout == 0 {
		cfg.RecordTimeout = DefaultRecordTimeout
	}
	return &Runner{config: cfg}
}

// Run executes records in order on one session and returns one result per
// record. Once ctx is cancelled the running record is ERRORED and the rest
// are SKIPPED.
func (r *Runner) Run(ctx context.Context, s *Session, sc Scenario, records []core.TestRecord) []core.ExecutionResult {
	results := make([]core.ExecutionResult, len(records))
	var stopped atomic.Bool
	for i := range records {
		results[i] = r.next(ctx, s, sc, records, i, &stopped)
	}
	return results
}

// next runs or skips records[i].
func (r *Runner) next(ctx context.Context, s *Session, sc Scenario, records []core.TestRecord, i int, stopped *atomic.Bool) core.ExecutionResult {
	switch {
	case ctx.Err() != nil:
		return r.skip(s, records, i, "run cancelled")
	case stopped.Load():
		return r.skip(s, records, i, "run stopped after a failure")
	}
	res := r.runRecord(ctx, s, sc, records, i)
	if r.config.StopOnFail && !res.Status.IsSuccess() {
		if !stopped.Swap(true) {
			s.logger.Info("stopping after failure", zap.String("record_id", res.RecordID))
		}
	}
	return res
}

func (r *Runner) skip(s *Session, records []core.TestRecord, i int, reason string) core.ExecutionResult {
	rec := records[i]
	res := core.ExecutionResult{
		CaseID:    rec.CaseID(),
		RecordID:  s.NextRecordID(rec.CaseID()),
		Bucket:    rec.Bucket(),
		Expected:  rec.Expected(),
		Status:    core.StatusSkipped,
		Message:   reason,
		StartTime: time.Now(),
	}
	r.finish(s, records, i, res)
	return res
}

// runRecord takes one record from PENDING to a terminal state.
func (r *Runner) runRecord(ctx context.Context, s *Session, sc Scenario, records []core.TestRecord, i int) core.ExecutionResult {
	rec := records[i]
	recordID := s.NextRecordID(rec.CaseID())
	logger := s.logger.With(zap.String("record_id", recordID), zap.String("case_id", rec.CaseID()))

	status := core.StatusPending
	advance := func(next core.Status) {
		if !status.CanTransitionTo(next) {
			logger.Error("illegal status transition", zap.Stringer("from", status), zap.Stringer("to", next))
		}
		status = next
	}

	res := core.ExecutionResult{
		CaseID:    rec.CaseID(),
		RecordID:  recordID,
		Bucket:    rec.Bucket(),
		Expected:  rec.Expected(),
		StartTime: time.Now(),
	}
	advance(core.StatusRunning)
	if r.config.Index != nil {
		r.config.Index.RecordStarted(i, recordID)
	}
	if r.config.OnRecordStart != nil {
		r.config.OnRecordStart(i, len(records), recordID, rec)
	}
	logger.Info("record started", zap.String("expected", rec.Expected()))

	ctx, span := s.telemetry.StartSpan(ctx, "record", map[string]string{
		"pageflow.record_id": recordID,
		"pageflow.case_id":   rec.CaseID(),
		"pageflow.scenario":  sc.Name(),
	})

	env := s.envFor(recordID)
	var err error
	for attempt := 1; ; attempt++ {
		res.Attempts = attempt
		err = r.attempt(ctx, sc, env, rec)
		st, _ := core.Classify(err)
		if st.IsSuccess() || attempt > r.config.Retries || ctx.Err() != nil {
			break
		}
		res.RetryErrors = append(res.RetryErrors, err.Error())
		logger.Warn("record attempt failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
	}

	st, cat := core.Classify(err)
	if ctx.Err() != nil && !st.IsSuccess() {
		st, cat = core.StatusErrored, core.ErrCategoryTimeout
		err = fmt.Errorf("interrupted: %w", err)
	}
	advance(st)
	res.Status = st
	res.Category = cat
	if err != nil {
		res.Message = err.Error()
	}
	if p, ok := err.(*PanicError); ok {
		logger.Error("scenario panicked", zap.Any("value", p.Value), zap.ByteString("stack", p.Stack))
	}

	res.ArtifactPaths = append(res.ArtifactPaths, env.saved...)
	if s.capture.ShouldCapture(st) {
		res.ArtifactPaths = append(res.ArtifactPaths, s.captureDiagnostics(ctx, recordID)...)
	}
	res.Duration = time.Since(res.StartTime)

	s.telemetry.End(span, st.String(), err)
	if s.metrics != nil {
		s.metrics.ObserveRecord(sc.Name(), st, res.Duration)
	}
	logger.Info("record finished",
		zap.Stringer("outcome", st),
		zap.Duration("duration", res.Duration),
		zap.Int("attempts", res.Attempts),
		zap.String("message", res.Message),
	)
	r.finish(s, records, i, res)
	return res
}

// attempt is the fault boundary: a panic or a hung scenario ends only the
// current attempt.
func (r *Runner) attempt(ctx context.Context, sc Scenario, env *Env, rec core.TestRecord) (err error) {
	if r.config.RecordTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.RecordTimeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Value: p, Stack: debug.Stack()}
		}
	}()
	return sc.Run(ctx, env, rec)
}

func (r *Runner) finish(s *Session, records []core.TestRecord, i int, res core.ExecutionResult) {
	s.Append(res)
	if r.config.Index != nil {
		if err := r.config.Index.RecordFinished(i, res); err != nil {
			s.logger.Warn("index update failed", zap.Error(err))
		}
	}
	if r.config.OnRecordEnd != nil {
		r.config.OnRecordEnd(i, len(records), res)
	}
}
