package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// ExecuteScript runs script as a function body. Element handles passed in
// args arrive as DOM-like objects exposing click(), scrollIntoView(),
// textContent and getAttribute(). The page exposes document.title,
// document.documentElement.outerHTML, document.querySelectorAll and
// window.location.href.
func (d *Driver) ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx, "execute_script"); err != nil {
		return nil, err
	}

	rt := d.js.Runtime()
	jsArgs := make([]interface{}, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case *element:
			if v.d != d {
				return nil, fmt.Errorf("mock: argument %d belongs to another session", i)
			}
			jsArgs[i] = d.jsElement(rt, v)
		case core.ElementHandle:
			return nil, fmt.Errorf("mock: argument %d is a foreign element handle %T", i, a)
		default:
			jsArgs[i] = a
		}
	}
	rt.Set("document", d.jsDocument(rt))
	rt.Set("window", d.jsWindow(rt))

	out, err := d.js.RunBody(script, jsArgs...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Driver) jsDocument(rt *goja.Runtime) *goja.Object {
	doc := rt.NewObject()
	_ = doc.Set("title", "Swag Labs")
	root := rt.NewObject()
	_ = root.DefineAccessorProperty("outerHTML", rt.ToValue(func() string { return d.source }), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = doc.Set("documentElement", root)
	_ = doc.Set("querySelectorAll", func(selector string) *goja.Object {
		gen := d.gen
		var items []interface{}
		d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			items = append(items, d.jsElement(rt, &element{d: d, gen: gen, sel: s}))
		})
		return rt.NewArray(items...)
	})
	return doc
}

func (d *Driver) jsWindow(rt *goja.Runtime) *goja.Object {
	w := rt.NewObject()
	loc := rt.NewObject()
	_ = loc.DefineAccessorProperty("href", rt.ToValue(func() string { return d.cfg.BaseURL + pagePaths[d.st.page] }), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = w.Set("location", loc)
	return w
}

// jsElement wraps el for scripts. Runs with d.mu held, so it touches driver
// state directly instead of going through the element methods.
func (d *Driver) jsElement(rt *goja.Runtime, el *element) *goja.Object {
	obj := rt.NewObject()
	stale := func() {
		if el.gen != d.gen {
			d.js.Throw(core.ErrStaleElement)
		}
	}
	_ = obj.Set("tagName", strings.ToUpper(goquery.NodeName(el.sel)))
	_ = obj.Set("textContent", el.sel.Text())
	_ = obj.Set("getAttribute", func(name string) interface{} {
		if v, ok := el.sel.Attr(name); ok {
			return v
		}
		return nil
	})
	_ = obj.Set("scrollIntoView", func() {
		stale()
	})
	// Script clicks bypass visibility, the way a DOM click() does.
	_ = obj.Set("click", func() {
		stale()
		d.dispatch(el.sel)
	})
	return obj
}
