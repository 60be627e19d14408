package mock

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// query resolves loc against the current document. Must be called with d.mu held.
func (d *Driver) query(loc core.Locator) (*goquery.Selection, error) {
	v := loc.Value()
	switch loc.Strategy() {
	case core.StrategyID:
		return d.doc.Find(`[id="` + quoteAttr(v) + `"]`), nil
	case core.StrategyClass:
		return d.doc.Find(`[class~="` + quoteAttr(v) + `"]`), nil
	case core.StrategyCSS:
		return d.doc.Find(v), nil
	case core.StrategyXPath:
		return d.findXPath(v)
	}
	return nil, fmt.Errorf("mock: %w: locator %s", core.ErrInvalidConfig, loc)
}

func quoteAttr(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// findXPath evaluates expr over the parsed page and returns the element
// matches in document order. Text and attribute results are dropped.
func (d *Driver) findXPath(expr string) (*goquery.Selection, error) {
	nodes, err := htmlquery.QueryAll(d.doc.Nodes[0], expr)
	if err != nil {
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("mock: invalid xpath %q", expr)).WithCause(err)
	}
	return d.doc.FindNodes(nodes...).Filter("*"), nil
}
