package report

import (
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// debounce delays progress-only flushes; terminal updates flush at once.
const debounce = 100 * time.Millisecond

// IndexWriter provides thread-safe updates to report.json. Parallel workers
// update it concurrently.
type IndexWriter struct {
	mu     sync.Mutex
	path   string
	index  *Index
	timer  *time.Timer
	closed bool
	logger *zap.Logger
}

// NewIndexWriter creates an IndexWriter for outputDir/report.json.
func NewIndexWriter(outputDir string, index *Index, logger *zap.Logger) *IndexWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexWriter{
		path:   filepath.Join(outputDir, IndexFile),
		index:  index,
		logger: logger,
	}
}

// Path returns the index file location.
func (w *IndexWriter) Path() string { return w.path }

// Start marks the run as started and writes the skeleton.
func (w *IndexWriter) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.index.Status = RunRunning
	w.index.StartTime = time.Now()
	return w.flushLocked()
}

// RecordStarted marks record i as running. The write is debounced.
func (w *IndexWriter) RecordStarted(i int, recordID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e := w.entry(i)
	if e == nil {
		return
	}
	now := time.Now()
	e.Status = core.StatusRunning
	e.RecordID = recordID
	e.StartTime = &now
	e.UpdateSeq++

	if w.timer == nil && !w.closed {
		w.timer = time.AfterFunc(debounce, func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			w.timer = nil
			if w.closed {
				return
			}
			if err := w.flushLocked(); err != nil {
				w.logger.Warn("index flush failed", zap.Error(err))
			}
		})
	}
}

// RecordFinished stores the final result for record i and flushes.
func (w *IndexWriter) RecordFinished(i int, res core.ExecutionResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	e := w.entry(i)
	if e == nil {
		return nil
	}
	e.RecordID = res.RecordID
	e.Status = res.Status
	e.Category = res.Category
	e.Attempts = res.Attempts
	e.Error = res.Message
	e.Artifacts = res.ArtifactPaths
	if !res.StartTime.IsZero() {
		start := res.StartTime
		e.StartTime = &start
	}
	ms := res.Duration.Milliseconds()
	e.Duration = &ms
	e.UpdateSeq++
	return w.flushLocked()
}

// End marks the run complete. cancelled wins over the per-record outcome.
func (w *IndexWriter) End(cancelled bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	w.index.EndTime = &now
	w.index.Status = w.runStatus(cancelled)
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	return w.flushLocked()
}

// Snapshot returns a copy of the current index.
func (w *IndexWriter) Snapshot() Index {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := *w.index
	cp.Records = append([]RecordEntry(nil), w.index.Records...)
	return cp
}

func (w *IndexWriter) entry(i int) *RecordEntry {
	if i < 0 || i >= len(w.index.Records) {
		return nil
	}
	return &w.index.Records[i]
}

func (w *IndexWriter) flushLocked() error {
	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = summarize(w.index.Records)
	return atomicWriteJSON(w.path, w.index)
}

func (w *IndexWriter) runStatus(cancelled bool) RunStatus {
	if cancelled {
		return RunCanceled
	}
	for _, e := range w.index.Records {
		if !e.Status.IsTerminal() {
			return RunRunning
		}
		if !e.Status.IsSuccess() {
			return RunFailed
		}
	}
	return RunPassed
}

// ReadIndex loads a report.json.
func ReadIndex(path string) (*Index, error) {
	var idx Index
	if err := readJSON(path, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}
