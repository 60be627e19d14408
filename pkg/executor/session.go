package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/action"
	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/metrics"
	"github.com/devicelab-dev/pageflow/pkg/page"
	"github.com/devicelab-dev/pageflow/pkg/report"
	"github.com/devicelab-dev/pageflow/pkg/telemetry"
	"github.com/devicelab-dev/pageflow/pkg/wait"
)

// SessionConfig configures a Session.
type SessionConfig struct {
	Driver  core.Driver
	BaseURL string

	// ActionTimeout bounds executor preconditions (default 15s).
	ActionTimeout time.Duration
	PollInterval  time.Duration

	// OutputDir receives artifacts. Empty disables capture.
	OutputDir string
	Artifacts core.ArtifactConfig

	Pages     *page.Registry // default page.DefaultRegistry()
	Logger    *zap.Logger
	Metrics   *metrics.Collector
	Telemetry *telemetry.Telemetry

	// RunID and Sequence are shared by parallel sessions of one run.
	RunID    string
	Sequence *atomic.Int64

	// Flush is called once from Close with the session's results.
	Flush func(results []core.ExecutionResult) error
}

// Session owns one driver connection for the length of a run. Results are
// append-only and Close tears everything down exactly once.
type Session struct {
	id        string
	driver    core.Driver
	exec      *action.Executor
	env       Env
	seq       *atomic.Int64
	artifacts *report.ArtifactWriter
	capture   core.ArtifactConfig
	logger    *zap.Logger
	metrics   *metrics.Collector
	telemetry *telemetry.Telemetry
	flush     func([]core.ExecutionResult) error

	mu      sync.Mutex
	results []core.ExecutionResult

	closeOnce sync.Once
	closeErr  error
}

// NewSession wires the wait engine and executor to cfg.Driver. Setup
// failures are fatal to the run.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Driver == nil {
		return nil, core.ErrInvalidConfig.WithMessage("session needs a driver")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	seq := cfg.Sequence
	if seq == nil {
		seq = new(atomic.Int64)
	}
	pages := cfg.Pages
	if pages == nil {
		pages = page.DefaultRegistry()
	}

	waitOpts := []wait.Option{wait.WithLogger(logger)}
	if cfg.Metrics != nil {
		waitOpts = append(waitOpts, wait.WithObserver(cfg.Metrics.ObserveWait))
	}
	exec := action.New(wait.New(cfg.Driver, waitOpts...),
		action.WithTimeout(cfg.ActionTimeout),
		action.WithInterval(cfg.PollInterval),
		action.WithLogger(logger),
	)

	s := &Session{
		id:        runID,
		driver:    cfg.Driver,
		exec:      exec,
		seq:       seq,
		capture:   cfg.Artifacts,
		logger:    logger.With(zap.String("run_id", runID)),
		metrics:   cfg.Metrics,
		telemetry: cfg.Telemetry,
		flush:     cfg.Flush,
	}
	if cfg.OutputDir != "" {
		w, err := report.NewArtifactWriter(cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		s.artifacts = w
	}
	s.env = Env{
		Exec:    exec,
		Pages:   pages,
		BaseURL: cfg.BaseURL,
		Logger:  s.logger,
		save:    s.saveArtifact,
	}
	return s, nil
}

// ID returns the run ID.
func (s *Session) ID() string { return s.id }

// Executor returns the session's action executor.
func (s *Session) Executor() *action.Executor { return s.exec }

// Info returns the driver's platform info.
func (s *Session) Info() *core.PlatformInfo { return s.driver.Info() }

// NextRecordID reserves the next sequence number for caseID.
func (s *Session) NextRecordID(caseID string) string {
	return core.RecordID(s.seq.Add(1), caseID)
}

// Append adds a finished result.
func (s *Session) Append(res core.ExecutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
}

// Results returns a copy of the results so far.
func (s *Session) Results() []core.ExecutionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ExecutionResult(nil), s.results...)
}

// Close closes the driver and flushes results. Later calls return the
// first call's error.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.flush != nil {
			if err := s.flush(s.Results()); err != nil {
				errs = append(errs, fmt.Errorf("flush results: %w", err))
			}
		}
		if err := s.driver.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close driver: %w", err))
		}
		if len(errs) > 0 {
			s.closeErr = errors.Join(errs...)
		}
		s.logger.Debug("session closed", zap.Int("results", len(s.Results())))
	})
	return s.closeErr
}

// envFor returns the per-record view of the environment.
func (s *Session) envFor(recordID string) *Env {
	env := s.env
	env.RecordID = recordID
	return &env
}

func (s *Session) saveArtifact(att core.Attachment) (string, error) {
	if s.artifacts == nil {
		return "", fmt.Errorf("artifacts disabled: no output directory")
	}
	return s.artifacts.Save(att)
}

// captureDiagnostics saves a screenshot and the page source for recordID.
// Failures are logged and never fail the record.
func (s *Session) captureDiagnostics(ctx context.Context, recordID string) []string {
	if s.artifacts == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	now := time.Now()
	var paths []string
	if s.capture.Screenshot {
		if png, err := s.exec.Screenshot(ctx); err != nil {
			s.logger.Warn("screenshot capture failed", zap.String("record_id", recordID), zap.Error(err))
		} else if p, err := s.artifacts.Save(core.NewScreenshotAttachment(recordID, now, png)); err != nil {
			s.logger.Warn("screenshot save failed", zap.String("record_id", recordID), zap.Error(err))
		} else {
			paths = append(paths, p)
		}
	}
	if s.capture.PageSource {
		if src, err := s.exec.PageSource(ctx); err != nil {
			s.logger.Warn("page source capture failed", zap.String("record_id", recordID), zap.Error(err))
		} else if p, err := s.artifacts.Save(core.NewPageSourceAttachment(recordID, now, src)); err != nil {
			s.logger.Warn("page source save failed", zap.String("record_id", recordID), zap.Error(err))
		} else {
			paths = append(paths, p)
		}
	}
	return paths
}
