package executor

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/jsengine"
)

// envVarPattern matches ALL_CAPS names that are imported from the process
// environment.
var envVarPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{2,}$`)

// ScriptEngine resolves ${expr} and $VAR references in step values. Record
// fields are JS globals; $VAR names come from the flow env and the process
// environment.
type ScriptEngine struct {
	js        *jsengine.Engine
	variables map[string]string
}

// NewScriptEngine creates an engine with no variables.
func NewScriptEngine(logger *zap.Logger) *ScriptEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScriptEngine{
		js:        jsengine.New(jsengine.WithLogger(logger)),
		variables: make(map[string]string),
	}
}

// SetVariable sets a $VAR value, also visible to ${} expressions.
func (se *ScriptEngine) SetVariable(name, value string) {
	se.variables[name] = value
	se.js.SetVariable(name, value)
}

// SetVariables sets multiple variables.
func (se *ScriptEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		se.SetVariable(k, v)
	}
}

// SetRecord exposes every record field to ${} expressions, plus case_id and
// expected.
func (se *ScriptEngine) SetRecord(rec core.TestRecord) {
	se.js.SetVariables(rec.Fields())
	se.js.SetVariable("case_id", rec.CaseID())
	se.js.SetVariable("expected", rec.Expected())
}

// ImportSystemEnv imports upper-case process environment variables.
func (se *ScriptEngine) ImportSystemEnv() {
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if ok && envVarPattern.MatchString(name) {
			se.SetVariable(name, value)
		}
	}
}

// GetVariable returns a $VAR value.
func (se *ScriptEngine) GetVariable(name string) string {
	return se.variables[name]
}

// ExpandVariables expands ${expr} and $VAR references. $VAR applies to the
// template text only: values produced by ${} (record data included) are
// inserted verbatim.
func (se *ScriptEngine) ExpandVariables(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}
	return se.js.ExpandTemplate(text, se.expandDollars)
}

func (se *ScriptEngine) expandDollars(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}
	// Longest first so $USER_NAME is not eaten by $USER.
	names := make([]string, 0, len(se.variables))
	for name := range se.variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})
	for _, name := range names {
		text = expandDollarVar(text, name, se.variables[name])
	}
	return text
}

// ExpandLocator expands variables in the locator value.
func (se *ScriptEngine) ExpandLocator(loc core.Locator) (core.Locator, error) {
	v := se.ExpandVariables(loc.Value())
	if v == loc.Value() {
		return loc, nil
	}
	return core.NewLocator(loc.Strategy(), v)
}

// expandDollarVar replaces $name with value where the reference is not a
// prefix of a longer identifier.
func expandDollarVar(text, name, value string) string {
	pattern := "$" + name
	idx := 0
	for {
		pos := strings.Index(text[idx:], pattern)
		if pos == -1 {
			return text
		}
		pos += idx
		end := pos + len(pattern)
		if end < len(text) && isIdentByte(text[end]) {
			idx = end
			continue
		}
		text = text[:pos] + value + text[end:]
		idx = pos + len(value)
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
