package mock

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// element is a handle to one node of a rendered page. It goes stale as soon
// as the page is rendered again.
type element struct {
	d   *Driver
	gen int
	sel *goquery.Selection
}

func (e *element) lock(ctx context.Context, op string) error {
	e.d.mu.Lock()
	if err := e.d.check(ctx, op); err != nil {
		e.d.mu.Unlock()
		return err
	}
	if e.gen != e.d.gen {
		e.d.mu.Unlock()
		return core.ErrStaleElement
	}
	return nil
}

func (e *element) Click(ctx context.Context) error {
	if delay := e.d.cfg.ActionDelay; delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	if err := e.lock(ctx, "click"); err != nil {
		return err
	}
	defer e.d.mu.Unlock()
	if !e.visible() || e.disabled() {
		return core.ErrElementNotInteractable
	}
	e.d.dispatch(e.sel)
	return nil
}

func (e *element) Clear(ctx context.Context) error {
	if err := e.lock(ctx, "clear"); err != nil {
		return err
	}
	defer e.d.mu.Unlock()
	id, err := e.inputID()
	if err != nil {
		return err
	}
	delete(e.d.st.form, id)
	return nil
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	if err := e.lock(ctx, "send_keys"); err != nil {
		return err
	}
	defer e.d.mu.Unlock()
	id, err := e.inputID()
	if err != nil {
		return err
	}
	e.d.st.form[id] += text
	return nil
}

// Text returns the visible text, or the current value for inputs.
func (e *element) Text(ctx context.Context) (string, error) {
	if err := e.lock(ctx, "text"); err != nil {
		return "", err
	}
	defer e.d.mu.Unlock()
	if goquery.NodeName(e.sel) == "input" {
		if id, ok := e.sel.Attr("id"); ok {
			if v, ok := e.d.st.form[id]; ok {
				return v, nil
			}
		}
		v, _ := e.sel.Attr("value")
		return v, nil
	}
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e *element) IsDisplayed(ctx context.Context) (bool, error) {
	if err := e.lock(ctx, "is_displayed"); err != nil {
		return false, err
	}
	defer e.d.mu.Unlock()
	return e.visible(), nil
}

func (e *element) IsEnabled(ctx context.Context) (bool, error) {
	if err := e.lock(ctx, "is_enabled"); err != nil {
		return false, err
	}
	defer e.d.mu.Unlock()
	return !e.disabled(), nil
}

func (e *element) visible() bool {
	return e.sel.Closest("[hidden]").Length() == 0
}

func (e *element) disabled() bool {
	_, ok := e.sel.Attr("disabled")
	return ok
}

func (e *element) inputID() (string, error) {
	if goquery.NodeName(e.sel) != "input" {
		return "", core.ErrElementNotInteractable
	}
	if t, _ := e.sel.Attr("type"); t == "submit" {
		return "", core.ErrElementNotInteractable
	}
	id, ok := e.sel.Attr("id")
	if !ok {
		return "", core.ErrElementNotInteractable
	}
	return id, nil
}
