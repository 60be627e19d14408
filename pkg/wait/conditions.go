package wait

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// Condition is a predicate over live driver state.
type Condition struct {
	Description string
	Check       func(ctx context.Context, d core.Driver) (bool, error)
}

// Custom wraps an arbitrary predicate.
func Custom(description string, fn func(ctx context.Context, d core.Driver) (bool, error)) Condition {
	return Condition{Description: description, Check: fn}
}

// PresenceOf holds when at least one element matches loc.
func PresenceOf(loc core.Locator) Condition {
	return Condition{
		Description: "presence of " + loc.String(),
		Check: func(ctx context.Context, d core.Driver) (bool, error) {
			els, err := d.Find(ctx, loc)
			if err != nil {
				return false, err
			}
			return len(els) > 0, nil
		},
	}
}

// AbsenceOf holds when nothing matches loc.
func AbsenceOf(loc core.Locator) Condition {
	return Condition{
		Description: "absence of " + loc.String(),
		Check: func(ctx context.Context, d core.Driver) (bool, error) {
			els, err := d.Find(ctx, loc)
			if err != nil {
				return false, err
			}
			return len(els) == 0, nil
		},
	}
}

// ClickableAt holds when some match of loc is displayed and enabled.
func ClickableAt(loc core.Locator) Condition {
	return Condition{
		Description: "clickable " + loc.String(),
		Check: func(ctx context.Context, d core.Driver) (bool, error) {
			el, err := FirstClickable(ctx, d, loc)
			if err != nil {
				return false, err
			}
			return el != nil, nil
		},
	}
}

// EnabledAt holds when loc has more than index matches and the index-th is
// enabled. Display is not required: scripted clicks reach elements a closed
// menu hides.
func EnabledAt(loc core.Locator, index int) Condition {
	return Condition{
		Description: fmt.Sprintf("enabled %s[%d]", loc, index),
		Check: func(ctx context.Context, d core.Driver) (bool, error) {
			els, err := d.Find(ctx, loc)
			if err != nil || index < 0 || index >= len(els) {
				return false, err
			}
			return els[index].IsEnabled(ctx)
		},
	}
}

// URLContains holds when the current URL contains fragment.
func URLContains(fragment string) Condition {
	return Condition{
		Description: fmt.Sprintf("url contains %q", fragment),
		Check: func(ctx context.Context, d core.Driver) (bool, error) {
			url, err := d.CurrentURL(ctx)
			if err != nil {
				return false, err
			}
			return strings.Contains(url, fragment), nil
		},
	}
}

// CountAtLeast holds when at least n elements match loc.
func CountAtLeast(loc core.Locator, n int) Condition {
	return Condition{
		Description: fmt.Sprintf("at least %d of %s", n, loc),
		Check: func(ctx context.Context, d core.Driver) (bool, error) {
			els, err := d.Find(ctx, loc)
			if err != nil {
				return false, err
			}
			return len(els) >= n, nil
		},
	}
}

// TextContains holds when the first match of loc contains text.
func TextContains(loc core.Locator, text string) Condition {
	return Condition{
		Description: fmt.Sprintf("%s text contains %q", loc, text),
		Check: func(ctx context.Context, d core.Driver) (bool, error) {
			els, err := d.Find(ctx, loc)
			if err != nil || len(els) == 0 {
				return false, err
			}
			got, err := els[0].Text(ctx)
			if err != nil {
				return false, err
			}
			return strings.Contains(got, text), nil
		},
	}
}

// AnyOf holds as soon as one of conds holds. Transient errors from one
// branch do not hide success of another.
func AnyOf(conds ...Condition) Condition {
	descs := make([]string, len(conds))
	for i, c := range conds {
		descs[i] = c.Description
	}
	return Condition{
		Description: strings.Join(descs, " or "),
		Check: func(ctx context.Context, d core.Driver) (bool, error) {
			var firstErr error
			for _, c := range conds {
				ok, err := c.Check(ctx, d)
				if err != nil {
					if !core.IsTransient(err) {
						return false, err
					}
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				if ok {
					return true, nil
				}
			}
			return false, firstErr
		},
	}
}

// FirstClickable returns the first displayed and enabled match of loc, or
// nil when none is.
func FirstClickable(ctx context.Context, d core.Driver, loc core.Locator) (core.ElementHandle, error) {
	els, err := d.Find(ctx, loc)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		displayed, err := el.IsDisplayed(ctx)
		if err != nil {
			return nil, err
		}
		if !displayed {
			continue
		}
		enabled, err := el.IsEnabled(ctx)
		if err != nil {
			return nil, err
		}
		if enabled {
			return el, nil
		}
	}
	return nil, nil
}
