// Package expect evaluates boolean expectation expressions (expr-lang)
// against observations collected while a record runs.
package expect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// Observations are the variables an expression can read, e.g. cart_count,
// url, items.
type Observations map[string]interface{}

// Eval compiles and runs expression against obs. It fails for anything that
// does not produce a bool.
func Eval(expression string, obs Observations) (bool, error) {
	env := map[string]interface{}(obs)
	if env == nil {
		env = map[string]interface{}{}
	}
	program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compile expectation %q: %w", expression, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval expectation %q: %w", expression, err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("expectation %q returned %T, not bool", expression, out)
	}
	return ok, nil
}

// Compile checks expression syntax without observations, so it can run
// before any record does.
func Compile(expression string) error {
	if strings.TrimSpace(expression) == "" {
		return nil
	}
	if _, err := expr.Compile(expression, expr.AllowUndefinedVariables()); err != nil {
		return fmt.Errorf("compile expectation %q: %w", expression, err)
	}
	return nil
}

// Check returns nil when expression holds. A false result, or an expression
// that cannot be evaluated, is an *core.AssertionError. An empty expression
// always holds.
func Check(expression string, obs Observations) error {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil
	}
	ok, err := Eval(expression, obs)
	if err != nil {
		return core.Failf("%v", err)
	}
	if !ok {
		return core.Failf("expectation %q not met (%s)", expression, obs)
	}
	return nil
}

// String renders observations as sorted key=value pairs.
func (o Observations) String() string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, o[k])
	}
	return strings.Join(parts, ", ")
}
