package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/action"
	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/page"
)

// Env is what a scenario sees of its session while running one record.
type Env struct {
	Exec     *action.Executor
	Pages    *page.Registry
	BaseURL  string
	RecordID string
	Logger   *zap.Logger

	save  func(core.Attachment) (string, error)
	saved []string
}

// Page builds the named page model bound to this environment.
func (e *Env) Page(name string) (page.Model, error) {
	return e.Pages.New(name, e.Exec, e.BaseURL)
}

// SaveScreenshot captures the viewport as an artifact of the current record
// and returns its path relative to the output directory.
func (e *Env) SaveScreenshot(ctx context.Context, label string) (string, error) {
	png, err := e.Exec.Screenshot(ctx)
	if err != nil {
		return "", err
	}
	id := e.RecordID
	if label != "" {
		id += "_" + core.Slug(label)
	}
	if e.save == nil {
		return "", nil
	}
	path, err := e.save(core.NewScreenshotAttachment(id, time.Now(), png))
	if err != nil {
		return "", err
	}
	e.saved = append(e.saved, path)
	return path, nil
}

// Scenario executes one record. A nil error means PASSED; see core.Classify
// for how errors map to outcomes.
type Scenario interface {
	Name() string
	Run(ctx context.Context, env *Env, rec core.TestRecord) error
}

// ScenarioFunc adapts a function to Scenario.
type ScenarioFunc struct {
	ScenarioName string
	Fn           func(ctx context.Context, env *Env, rec core.TestRecord) error
}

func (f ScenarioFunc) Name() string { return f.ScenarioName }

func (f ScenarioFunc) Run(ctx context.Context, env *Env, rec core.TestRecord) error {
	return f.Fn(ctx, env, rec)
}
