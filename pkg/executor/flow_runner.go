package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/expect"
	"github.com/devicelab-dev/pageflow/pkg/flow"
	"github.com/devicelab-dev/pageflow/pkg/page"
	"github.com/devicelab-dev/pageflow/pkg/wait"
)

// FlowScenario runs a YAML flow once per record. Step values may reference
// record fields as ${field} and environment variables as $NAME.
type FlowScenario struct {
	flow *flow.Flow
}

// NewFlowScenario wraps a parsed flow.
func NewFlowScenario(f *flow.Flow) *FlowScenario {
	return &FlowScenario{flow: f}
}

// Name returns the flow name.
func (fs *FlowScenario) Name() string { return fs.flow.Name() }

// Flow returns the wrapped flow.
func (fs *FlowScenario) Flow() *flow.Flow { return fs.flow }

// Run executes every step in order. The first failing non-optional step ends
// the record.
func (fs *FlowScenario) Run(ctx context.Context, env *Env, rec core.TestRecord) error {
	if t := fs.flow.Config.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	se := NewScriptEngine(env.Logger)
	se.ImportSystemEnv()
	se.SetVariables(fs.flow.Config.Env)
	se.SetRecord(rec)

	sr := &stepRunner{
		env:     env,
		rec:     rec,
		vars:    se,
		baseURL: env.BaseURL,
	}
	if fs.flow.Config.URL != "" {
		sr.baseURL = strings.TrimRight(se.ExpandVariables(fs.flow.Config.URL), "/")
	}

	for i, step := range fs.flow.Steps {
		start := time.Now()
		err := sr.run(ctx, step)
		fields := []zap.Field{
			zap.String("record_id", env.RecordID),
			zap.Int("step", i+1),
			zap.String("desc", step.Describe()),
			zap.Duration("duration", time.Since(start)),
		}
		if err == nil {
			env.Logger.Debug("step passed", fields...)
			continue
		}
		if step.IsOptional() && ctx.Err() == nil {
			env.Logger.Info("optional step failed", append(fields, zap.Error(err))...)
			continue
		}
		return fmt.Errorf("step %d (%s): %w", i+1, step.Describe(), err)
	}
	return nil
}

type stepRunner struct {
	env     *Env
	rec     core.TestRecord
	vars    *ScriptEngine
	baseURL string
}

func (sr *stepRunner) run(ctx context.Context, step flow.Step) error {
	exec := sr.env.Exec
	timeout := step.StepTimeout()
	if timeout <= 0 {
		timeout = exec.Timeout()
	}

	switch s := step.(type) {
	case *flow.OpenStep:
		return exec.Navigate(ctx, sr.resolveURL(sr.vars.ExpandVariables(s.URL)))

	case *flow.TypeStep:
		loc, err := sr.vars.ExpandLocator(s.Selector)
		if err != nil {
			return err
		}
		return exec.TypeText(ctx, loc, sr.vars.ExpandVariables(s.Text))

	case *flow.ClickStep:
		loc, err := sr.vars.ExpandLocator(s.Selector)
		if err != nil {
			return err
		}
		return exec.Click(ctx, loc)

	case *flow.ClickScriptStep:
		loc, err := sr.vars.ExpandLocator(s.Selector)
		if err != nil {
			return err
		}
		return exec.ClickByScript(ctx, loc, s.Index)

	case *flow.PageStep:
		return sr.runPage(ctx, s)

	case *flow.WaitURLStep:
		return exec.AwaitWithin(ctx, wait.URLContains(sr.vars.ExpandVariables(s.Fragment)), timeout)

	case *flow.WaitVisibleStep:
		loc, err := sr.vars.ExpandLocator(s.Selector)
		if err != nil {
			return err
		}
		return exec.AwaitWithin(ctx, wait.PresenceOf(loc), timeout)

	case *flow.WaitCountStep:
		loc, err := sr.vars.ExpandLocator(s.Selector)
		if err != nil {
			return err
		}
		return exec.AwaitWithin(ctx, wait.CountAtLeast(loc, s.Count), timeout)

	case *flow.AssertTextStep:
		return sr.assertText(ctx, s, timeout)

	case *flow.AssertURLStep:
		fragment := sr.vars.ExpandVariables(s.Fragment)
		err := exec.AwaitWithin(ctx, wait.URLContains(fragment), timeout)
		if isPlainTimeout(err) {
			url, _ := exec.CurrentURL(ctx)
			return core.Mismatch("url does not contain fragment", fragment, url)
		}
		return err

	case *flow.AssertCountStep:
		loc, err := sr.vars.ExpandLocator(s.Selector)
		if err != nil {
			return err
		}
		n, err := exec.Count(ctx, loc)
		if err != nil {
			return err
		}
		if n != s.Count {
			return core.Mismatch(fmt.Sprintf("count of %s", loc), s.Count, n)
		}
		return nil

	case *flow.AssertExprStep:
		obs, err := sr.observe(ctx)
		if err != nil {
			return err
		}
		return expect.Check(sr.vars.ExpandVariables(s.Expr), obs)

	case *flow.ScreenshotStep:
		path, err := sr.env.SaveScreenshot(ctx, sr.vars.ExpandVariables(s.Name))
		if err != nil {
			return err
		}
		sr.env.Logger.Debug("screenshot saved", zap.String("path", path))
		return nil
	}
	return fmt.Errorf("unsupported step type %q", step.Type())
}

func (sr *stepRunner) assertText(ctx context.Context, s *flow.AssertTextStep, timeout time.Duration) error {
	exec := sr.env.Exec
	loc, err := sr.vars.ExpandLocator(s.Selector)
	if err != nil {
		return err
	}
	if err := exec.AwaitWithin(ctx, wait.PresenceOf(loc), timeout); err != nil {
		return err
	}
	text, err := exec.ReadText(ctx, loc)
	if err != nil {
		return err
	}
	if s.Equals != nil {
		want := sr.vars.ExpandVariables(*s.Equals)
		if text != want {
			return core.Mismatch(fmt.Sprintf("text of %s", loc), want, text)
		}
	}
	if s.Contains != "" {
		want := sr.vars.ExpandVariables(s.Contains)
		if !strings.Contains(text, want) {
			return core.Mismatch(fmt.Sprintf("text of %s does not contain", loc), want, text)
		}
	}
	return nil
}

func (sr *stepRunner) runPage(ctx context.Context, s *flow.PageStep) error {
	env := sr.env
	arg := func(name string) string {
		if v, ok := s.Args[name]; ok {
			return sr.vars.ExpandVariables(v)
		}
		return sr.rec.String(name)
	}
	index := func() (int, error) {
		raw := arg("index")
		if raw == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("page %s: index %q is not an integer", s.Action, raw))
		}
		return n, nil
	}

	switch s.Action {
	case flow.PageLogin:
		p, err := page.Get[*page.LoginPage](env.Pages, page.LoginName, env.Exec, sr.baseURL)
		if err != nil {
			return err
		}
		if err := p.Load(ctx); err != nil {
			return err
		}
		return p.Login(ctx, arg("username"), arg("password"))

	case flow.PageAddToCart:
		i, err := index()
		if err != nil {
			return err
		}
		p, err := page.Get[*page.InventoryPage](env.Pages, page.InventoryName, env.Exec, sr.baseURL)
		if err != nil {
			return err
		}
		return p.AddProductToCart(ctx, i)

	case flow.PageOpenCart:
		p, err := page.Get[*page.InventoryPage](env.Pages, page.InventoryName, env.Exec, sr.baseURL)
		if err != nil {
			return err
		}
		return p.OpenCart(ctx)

	case flow.PageRemoveFromCart:
		i, err := index()
		if err != nil {
			return err
		}
		p, err := page.Get[*page.CartPage](env.Pages, page.CartName, env.Exec, sr.baseURL)
		if err != nil {
			return err
		}
		return p.RemoveItem(ctx, i)

	case flow.PageResetAppState:
		p, err := page.Get[*page.InventoryPage](env.Pages, page.InventoryName, env.Exec, sr.baseURL)
		if err != nil {
			return err
		}
		return p.ResetAppState(ctx)
	}
	return fmt.Errorf("unknown page action %q", s.Action)
}

// observe collects the values assertExpr expressions can read: url, the
// cart badge count and every record field.
func (sr *stepRunner) observe(ctx context.Context) (expect.Observations, error) {
	obs := expect.Observations{}
	for k, v := range sr.rec.Fields() {
		obs[k] = v
	}
	url, err := sr.env.Exec.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}
	obs["url"] = url

	inv, err := page.Get[*page.InventoryPage](sr.env.Pages, page.InventoryName, sr.env.Exec, sr.baseURL)
	if err != nil {
		return nil, err
	}
	count, err := inv.CartCount(ctx)
	if err != nil {
		return nil, err
	}
	obs["cart_count"] = count
	return obs, nil
}

func (sr *stepRunner) resolveURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return sr.baseURL + u
}

// isPlainTimeout reports a wait that ran out of time without being cancelled.
func isPlainTimeout(err error) bool {
	var wt *core.WaitTimeoutError
	return errors.As(err, &wt) && !wt.Cancelled()
}
