package jsengine

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEval(t *testing.T) {
	engine := New()

	tests := []struct {
		name     string
		script   string
		expected interface{}
	}{
		{"simple number", "1 + 2", int64(3)},
		{"string concat", "'hello' + ' ' + 'world'", "hello world"},
		{"boolean", "true && false", false},
		{"null coalescing", "null ?? 'default'", "default"},
		{"array length", "[1, 2, 3].length", int64(3)},
		{"object property", "({name: 'test'}).name", "test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(tt.script)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v (%T), got %v (%T)", tt.expected, tt.expected, result, result)
			}
		})
	}
}

func TestSetVariables_SkipsNonIdentifiers(t *testing.T) {
	engine := New()
	engine.SetVariables(map[string]interface{}{
		"username":        "standard_user",
		"expected_result": "success",
		"not-a-name":      "x",
		"1st":             "y",
	})

	got, err := engine.EvalString("username + '/' + expected_result")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "standard_user/success" {
		t.Errorf("got %q", got)
	}
	if _, err := engine.Eval("typeof this['not-a-name']"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExpandVariables(t *testing.T) {
	engine := New()

	engine.SetVariable("username", "locked_out_user")
	engine.SetVariable("index", 2)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple var", "user ${username}", "user locked_out_user"},
		{"expression", "item ${index + 1}", "item 3"},
		{"multiple vars", "${username}:${index}", "locked_out_user:2"},
		{"no vars", "plain text", "plain text"},
		{"method call", "${username.toUpperCase()}", "LOCKED_OUT_USER"},
		{"nested braces", "${({a: 1}).a}", "1"},
		{"unknown left as-is", "x ${missing} y", "x ${missing} y"},
		{"unknown with fallback", "${coupon || 'none'}", "none"},
		{"typeof unknown", "${typeof discount}", "undefined"},
		{"null left as-is", "${null}", "${null}"},
		{"unmatched brace", "x ${username", "x ${username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.ExpandVariables(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestConsole_LogsToZap(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	engine := New(WithLogger(zap.New(core)))

	if _, err := engine.Eval(`console.log("cart", 2); console.warn("slow")`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if logs.Len() != 2 {
		t.Fatalf("expected 2 log entries, got %d", logs.Len())
	}
	if msg := logs.All()[0].Message; msg != "cart 2" {
		t.Errorf("expected 'cart 2', got %q", msg)
	}
}

func TestJSON(t *testing.T) {
	engine := New()

	name, err := engine.EvalString(`json('{"name": "test", "value": 123}').name`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "test" {
		t.Errorf("expected 'test', got %q", name)
	}
}

func TestRunBody(t *testing.T) {
	engine := New()

	result, err := engine.RunBody("return arguments[0] + arguments[1];", 2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != int64(5) {
		t.Errorf("expected 5, got %v", result)
	}

	result, err = engine.RunBody("var x = 1;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil for no return, got %v", result)
	}
}

func TestRunBody_HostError(t *testing.T) {
	engine := New()
	sentinel := errors.New("stale element")
	engine.Runtime().Set("fail", func() { engine.Throw(sentinel) })

	_, err := engine.RunBody("fail(); return 1;")
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got %v", err)
	}
}

func TestRunBody_Errors(t *testing.T) {
	engine := New()

	if _, err := engine.RunBody("return {{{{"); err == nil || !strings.Contains(err.Error(), "compile") {
		t.Errorf("expected compile error, got %v", err)
	}
	if _, err := engine.RunBody("return undefinedVariable.property;"); err == nil {
		t.Error("expected runtime error for undefined variable")
	}
}

func TestDefineUndefinedIfMissing(t *testing.T) {
	engine := New()
	engine.DefineUndefinedIfMissing("optionalField")

	result, err := engine.Eval("typeof optionalField")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "undefined" {
		t.Errorf("expected 'undefined', got %v", result)
	}
}

func TestExpandTemplate_LiteralsOnly(t *testing.T) {
	engine := New()
	engine.SetVariable("password", "pa$HOME")

	upper := func(s string) string { return strings.ToUpper(s) }
	tests := []struct {
		input    string
		expected string
	}{
		{"${password}", "pa$HOME"},
		{"user:${password}:end", "USER:pa$HOME:END"},
		{"${bad syntax (}x", "${BAD SYNTAX (}X"},
		{"tail ${password", "TAIL ${PASSWORD"},
	}
	for _, tt := range tests {
		if got := engine.ExpandTemplate(tt.input, upper); got != tt.expected {
			t.Errorf("ExpandTemplate(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestReferencedNames(t *testing.T) {
	tests := []struct {
		expr string
		want []string
	}{
		{"username", []string{"username"}},
		{"user.name.first", []string{"user"}},
		{"a + 'b c' + \"d\" + e", []string{"a", "e"}},
		{"typeof x === 'undefined'", []string{"x"}},
		{"items[0] + 1e3", []string{"items"}},
		{"s.toUpperCase()", []string{"s"}},
	}
	for _, tt := range tests {
		got := referencedNames(tt.expr)
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("referencedNames(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}
