// Package jsengine evaluates JavaScript for flows and for simulated pages.
package jsengine

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Engine wraps a goja runtime
type Engine struct {
	runtime   *goja.Runtime
	variables map[string]interface{}
	logger    *zap.Logger
	mu        sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger routes console.* to l.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates a new JS engine instance
func New(opts ...Option) *Engine {
	e := &Engine{
		runtime:   goja.New(),
		variables: make(map[string]interface{}),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.setupBuiltins()
	return e
}

// setupBuiltins registers all built-in functions and objects
func (e *Engine) setupBuiltins() {
	e.setupConsole()

	// JSON helper
	e.runtime.Set("json", e.jsonFunc())
}

// setupConsole adds console.log, console.error, console.warn
func (e *Engine) setupConsole() {
	makeConsoleFunc := func(log func(string, ...zap.Field)) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = fmt.Sprint(arg.Export())
			}
			log(strings.Join(parts, " "), zap.String("source", "script"))
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeConsoleFunc(e.logger.Info))
	console.Set("error", makeConsoleFunc(e.logger.Error))
	console.Set("warn", makeConsoleFunc(e.logger.Warn))
	e.runtime.Set("console", console)
}

// jsonFunc returns the json() helper function
func (e *Engine) jsonFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(e.runtime.NewTypeError("json requires 1 argument"))
		}

		str := call.Arguments[0].String()

		result, err := e.runtime.RunString(fmt.Sprintf("JSON.parse(%q)", str))
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}

		return result
	}
}

// Runtime exposes the underlying runtime for callers that build host objects.
// Callers must not use it concurrently with other Engine methods.
func (e *Engine) Runtime() *goja.Runtime {
	return e.runtime
}

// SetVariable sets a variable accessible in JS as a global
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.variables[name] = value
	e.runtime.Set(name, value)
}

// SetVariables sets multiple variables
func (e *Engine) SetVariables(vars map[string]interface{}) {
	for k, v := range vars {
		if !isIdentifier(k) {
			continue
		}
		e.SetVariable(k, v)
	}
}

// Eval evaluates a JavaScript expression and returns the result
func (e *Engine) Eval(script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("JS eval error: %w", err)
	}

	return result.Export(), nil
}

// EvalString evaluates a JavaScript expression and returns string result
func (e *Engine) EvalString(script string) (string, error) {
	result, err := e.Eval(script)
	if err != nil {
		return "", err
	}

	if result == nil {
		return "", nil
	}

	return fmt.Sprintf("%v", result), nil
}

// RunBody runs script as the body of a function called with args, the way
// WebDriver's execute/sync does. Host errors raised with Throw are returned
// unchanged.
func (e *Engine) RunBody(script string, args ...interface{}) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn, err := e.runtime.RunString("(function() {\n" + script + "\n})")
	if err != nil {
		return nil, fmt.Errorf("JS compile error: %w", err)
	}
	call, ok := goja.AssertFunction(fn)
	if !ok {
		return nil, errors.New("JS compile error: not a function")
	}

	jsArgs := make([]goja.Value, len(args))
	for i, a := range args {
		if v, ok := a.(goja.Value); ok {
			jsArgs[i] = v
			continue
		}
		jsArgs[i] = e.runtime.ToValue(a)
	}

	result, err := call(goja.Undefined(), jsArgs...)
	if err != nil {
		var ex *goja.Exception
		if errors.As(err, &ex) {
			if inner := errors.Unwrap(ex); inner != nil {
				return nil, inner
			}
			if obj, ok := ex.Value().(*goja.Object); ok {
				if v := obj.Get("value"); v != nil {
					if goErr, ok := v.Export().(error); ok {
						return nil, goErr
					}
				}
			}
		}
		return nil, fmt.Errorf("JS runtime error: %w", err)
	}
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, nil
	}
	return result.Export(), nil
}

// Throw aborts the running script with a Go error that RunBody returns as-is.
func (e *Engine) Throw(err error) {
	panic(e.runtime.NewGoError(err))
}

// DefineUndefinedIfMissing defines a variable as undefined if it's not already defined.
// This prevents ReferenceError when scripts reference variables that may not exist.
func (e *Engine) DefineUndefinedIfMissing(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	val := e.runtime.Get(name)
	if val == nil || goja.IsUndefined(val) {
		if _, exists := e.variables[name]; !exists {
			e.runtime.Set(name, goja.Undefined())
		}
	}
}

// ExpandVariables expands ${...} expressions in a string using JS evaluation.
// Expressions that fail to evaluate are left as-is.
func (e *Engine) ExpandVariables(text string) (string, error) {
	return e.ExpandTemplate(text, nil), nil
}

// ExpandTemplate expands ${...} expressions in text. Names an expression
// references but nobody set evaluate to undefined, so ${coupon || 'none'}
// works without a coupon field. An expression that fails, or yields
// undefined or null, is left as written. literal, when non-nil, rewrites the
// text between expressions; expression results are never passed to it.
func (e *Engine) ExpandTemplate(text string, literal func(string) string) string {
	if literal == nil {
		literal = func(s string) string { return s }
	}
	var b strings.Builder
	lit := 0
	start := 0
	for {
		idx := strings.Index(text[start:], "${")
		if idx == -1 {
			break
		}
		idx += start

		depth := 1
		end := idx + 2
		for end < len(text) && depth > 0 {
			if text[end] == '{' {
				depth++
			} else if text[end] == '}' {
				depth--
			}
			end++
		}
		if depth != 0 {
			// Unmatched brace: the rest is literal.
			break
		}

		value, ok := e.evalTemplateExpr(text[idx+2 : end-1])
		if !ok {
			start = end
			continue
		}
		b.WriteString(literal(text[lit:idx]))
		b.WriteString(value)
		lit = end
		start = end
	}
	b.WriteString(literal(text[lit:]))
	return b.String()
}

func (e *Engine) evalTemplateExpr(expr string) (string, bool) {
	for _, name := range referencedNames(expr) {
		e.DefineUndefinedIfMissing(name)
	}
	v, err := e.Eval(expr)
	if err != nil || v == nil {
		return "", false
	}
	return fmt.Sprintf("%v", v), true
}

var reservedWords = map[string]bool{
	"true": true, "false": true, "null": true, "undefined": true, "this": true,
	"typeof": true, "instanceof": true, "in": true, "new": true, "void": true,
	"delete": true, "NaN": true, "Infinity": true,
}

// referencedNames returns the free identifiers in expr: names outside string
// literals that are not property accesses or reserved words.
func referencedNames(expr string) []string {
	var names []string
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' || c == '`' {
			quote = c
			continue
		}
		if !isIdentStart(c) {
			if c >= '0' && c <= '9' {
				for i+1 < len(expr) && isIdentPart(expr[i+1]) {
					i++
				}
			}
			continue
		}
		j := i + 1
		for j < len(expr) && isIdentPart(expr[j]) {
			j++
		}
		name := expr[i:j]
		if !precededByDot(expr, i) && !reservedWords[name] {
			names = append(names, name)
		}
		i = j - 1
	}
	return names
}

func precededByDot(expr string, i int) bool {
	for i--; i >= 0; i-- {
		switch expr[i] {
		case ' ', '\t':
			continue
		case '.':
			return true
		}
		return false
	}
	return false
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
