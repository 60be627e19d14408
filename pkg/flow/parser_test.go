package flow

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

func TestParseFile_Checkout(t *testing.T) {
	f, err := ParseFile(filepath.Join("..", "..", "testdata", "checkout_flow.yaml"))
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	if f.Name() != "add first product and open cart" {
		t.Errorf("Name() = %q", f.Name())
	}
	if f.Config.Timeout != 10*time.Second {
		t.Errorf("Config.Timeout = %v, want 10s", f.Config.Timeout)
	}
	if f.Config.Env["USER"] != "standard_user" {
		t.Errorf("Config.Env[USER] = %q", f.Config.Env["USER"])
	}
	if !f.HasTag("smoke") || f.HasTag("nightly") {
		t.Errorf("tags = %v", f.Config.Tags)
	}

	wantTypes := []StepType{
		StepOpen, StepTypeText, StepTypeText, StepClick, StepWaitURL, StepClickScript,
		StepAssertText, StepClick, StepAssertURL, StepAssertCount, StepScreenshot,
	}
	if len(f.Steps) != len(wantTypes) {
		t.Fatalf("len(Steps) = %d, want %d", len(f.Steps), len(wantTypes))
	}
	for i, want := range wantTypes {
		if got := f.Steps[i].Type(); got != want {
			t.Errorf("Steps[%d].Type() = %q, want %q", i, got, want)
		}
	}

	typ := f.Steps[1].(*TypeStep)
	if typ.Selector != core.ByID("user-name") || typ.Text != "${username}" {
		t.Errorf("type step = %+v", typ)
	}
	cs := f.Steps[5].(*ClickScriptStep)
	if cs.Selector.Strategy() != core.StrategyXPath || cs.Index != 0 {
		t.Errorf("clickScript step = %+v", cs)
	}
	at := f.Steps[6].(*AssertTextStep)
	if at.Equals == nil || *at.Equals != "1" {
		t.Errorf("assertText equals = %v", at.Equals)
	}
	if got := f.Steps[10].(*ScreenshotStep).Name; got != "cart" {
		t.Errorf("screenshot name = %q", got)
	}
}

func TestParse_StepsOnly(t *testing.T) {
	src := `
- open: /inventory.html
- click: id=login-button
- waitVisible: {class: title, optional: true, timeout: 2s}
- page:
    action: addToCart
    index: 2
- assertExpr: cart_count == 1
- screenshot
`
	f, err := Parse([]byte(src), "flows/smoke.yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if f.Name() != "smoke" {
		t.Errorf("Name() = %q, want smoke", f.Name())
	}
	if got := f.Steps[1].(*ClickStep).Selector; got != core.ByID("login-button") {
		t.Errorf("click selector = %s", got)
	}
	wv := f.Steps[2].(*WaitVisibleStep)
	if !wv.IsOptional() || wv.StepTimeout() != 2*time.Second || wv.Selector != core.ByClass("title") {
		t.Errorf("waitVisible = %+v", wv)
	}
	ps := f.Steps[3].(*PageStep)
	if ps.Action != PageAddToCart || ps.Args["index"] != "2" {
		t.Errorf("page step = %+v", ps)
	}
	if got := f.Steps[4].(*AssertExprStep).Expr; got != "cart_count == 1" {
		t.Errorf("assertExpr = %q", got)
	}
	if got := f.Steps[5].Type(); got != StepScreenshot {
		t.Errorf("Steps[5].Type() = %q", got)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"empty", "", 1},
		{"unknown step", "- tapOn: Login\n", 1},
		{"unknown scalar step", "- open: /\n- swipe\n", 2},
		{"multi-key step", "- open: /\n  click: id=x\n", 1},
		{"missing selector", "- type:\n    text: hi\n", 2},
		{"bad locator", "- click: nope\n", 1},
		{"unknown page action", "- page: checkout\n", 1},
		{"assertText needs expectation", "- assertText:\n    selector: {id: x}\n", 2},
		{"waitCount zero", "- waitCount:\n    selector: {id: x}\n    count: 0\n", 2},
		{"steps not a list", "open: /\n", 1},
		{"three documents", "name: a\n---\n- open: /\n---\n- open: /\n", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.yaml")
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Parse() error = %v, want *ParseError", err)
			}
			if pe.Line != tt.line {
				t.Errorf("ParseError.Line = %d, want %d (%v)", pe.Line, tt.line, pe)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	equals := "1"
	tests := []struct {
		step Step
		want string
	}{
		{&OpenStep{URL: "/"}, "open /"},
		{&ClickStep{Selector: core.ByID("login-button")}, "click id=login-button"},
		{&ClickStep{BaseStep: BaseStep{StepLabel: "Submit"}, Selector: core.ByID("x")}, "Submit"},
		{&AssertCountStep{Selector: core.ByClass("cart_item"), Count: 2}, "assert 2 of class=cart_item"},
		{&AssertTextStep{Selector: core.ByClass("badge"), Equals: &equals}, "assert text of class=badge"},
	}
	for _, tt := range tests {
		if got := tt.step.Describe(); got != tt.want {
			t.Errorf("Describe() = %q, want %q", got, tt.want)
		}
	}
}
