package flow

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// Page actions accepted by the page step.
const (
	PageLogin          = "login"
	PageAddToCart      = "addToCart"
	PageOpenCart       = "openCart"
	PageRemoveFromCart = "removeFromCart"
	PageResetAppState  = "resetAppState"
)

var pageActions = map[string]bool{
	PageLogin:          true,
	PageAddToCart:      true,
	PageOpenCart:       true,
	PageRemoveFromCart: true,
	PageResetAppState:  true,
}

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a single YAML flow file.
func ParseFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided flow file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses flow YAML. One document is a step list; two documents are a
// config followed by a step list.
func Parse(data []byte, sourcePath string) (*Flow, error) {
	var docs []*yaml.Node
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid yaml: %v", err)}
		}
		if len(doc.Content) > 0 {
			docs = append(docs, doc.Content[0])
		}
	}

	flow := &Flow{SourcePath: sourcePath}
	switch len(docs) {
	case 0:
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "empty flow file"}
	case 1:
		if err := parseSteps(docs[0], flow); err != nil {
			return nil, err
		}
	case 2:
		if err := docs[0].Decode(&flow.Config); err != nil {
			return nil, wrapParseError(sourcePath, docs[0].Line, fmt.Errorf("invalid config: %w", err))
		}
		if err := parseSteps(docs[1], flow); err != nil {
			return nil, err
		}
	default:
		return nil, &ParseError{Path: sourcePath, Line: docs[2].Line, Message: "expected at most a config and a step list"}
	}

	if len(flow.Steps) == 0 {
		return nil, &ParseError{Path: sourcePath, Message: "flow has no steps"}
	}
	return flow, nil
}

func parseSteps(node *yaml.Node, flow *Flow) error {
	if node.Kind != yaml.SequenceNode {
		return &ParseError{Path: flow.SourcePath, Line: node.Line, Message: "steps must be a list"}
	}
	for _, item := range node.Content {
		step, err := parseStep(item, flow.SourcePath)
		if err != nil {
			return err
		}
		flow.Steps = append(flow.Steps, step)
	}
	return nil
}

func parseStep(node *yaml.Node, sourcePath string) (Step, error) {
	if node.Kind == yaml.ScalarNode {
		// "- screenshot" / "- page" with no parameters
		if !isStepType(node.Value) {
			return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: fmt.Sprintf("unknown step type: %s", node.Value)}
		}
		return decodeStep(StepType(node.Value), &yaml.Node{Kind: yaml.MappingNode, Line: node.Line}, sourcePath)
	}
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: "step must be a single-key mapping or step name"}
	}
	key := node.Content[0]
	if !isStepType(key.Value) {
		return nil, &ParseError{Path: sourcePath, Line: key.Line, Message: fmt.Sprintf("unknown step type: %s", key.Value)}
	}
	return decodeStep(StepType(key.Value), node.Content[1], sourcePath)
}

func isStepType(key string) bool {
	switch StepType(key) {
	case StepOpen, StepTypeText, StepClick, StepClickScript, StepPage,
		StepWaitURL, StepWaitVisible, StepWaitCount,
		StepAssertText, StepAssertURL, StepAssertCount, StepAssertExpr,
		StepScreenshot:
		return true
	}
	return false
}

//nolint:gocyclo
func decodeStep(stepType StepType, valueNode *yaml.Node, sourcePath string) (Step, error) {
	line := valueNode.Line
	fail := func(format string, args ...interface{}) (Step, error) {
		return nil, &ParseError{Path: sourcePath, Line: line, Message: fmt.Sprintf("%s: ", stepType) + fmt.Sprintf(format, args...)}
	}

	switch stepType {
	case StepOpen:
		var s OpenStep
		if err := decodeScalarOr(valueNode, &s, &s.URL); err != nil {
			return nil, wrapParseError(sourcePath, line, err)
		}
		if s.URL == "" {
			return fail("url is required")
		}
		s.StepType = stepType
		return &s, nil

	case StepTypeText:
		var s TypeStep
		if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, line, err)
		}
		if s.Selector.IsZero() {
			return fail("selector is required")
		}
		s.StepType = stepType
		return &s, nil

	case StepClick:
		var s ClickStep
		if err := decodeTarget(valueNode, &s, &s.BaseStep, &s.Selector); err != nil {
			return nil, wrapParseError(sourcePath, line, err)
		}
		s.StepType = stepType
		return &s, nil

	case StepClickScript:
		var s ClickScriptStep
		if err := decodeTarget(valueNode, &s, &s.BaseStep, &s.Selector); err != nil {
			return nil, wrapParseError(sourcePath, line, err)
		}
		if s.Index < 0 {
			return fail("index must be >= 0")
		}
		s.StepType = stepType
		return &s, nil

	case StepPage:
		var s PageStep
		if err := decodeScalarOr(valueNode, &s, &s.Action); err != nil {
			return nil, wrapParseError(sourcePath, line, err)
		}
		if !pageActions[s.Action] {
			return fail("unknown page action %q", s.Action)
		}
		s.StepType = stepType
		return &s, nil

	case StepWaitURL:
		var s WaitURLStep
		if err := decodeScalarOr(valueNode, &s, &s.Fragment); err != nil {
			return nil, wrapParseError(sourcePath, line, err)
		}
		if s.Fragment == "" {
			return fail("url fragment is required")
		}
		s.StepType = stepType
		return &s, nil

	case StepWaitVisible:
		var s WaitVisibleStep
		if err := decodeTarget(valueNode, &s, &s.BaseStep, &s.Selector); err != nil {
			return nil, wrapParseError(sourcePath, line, err)
		}
		s.StepType = stepType
		return &s, nil

	case StepWaitCount:
		var s WaitCountStep
		if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, line, err)
		}
		if s.Selector.IsZero() {
			return fail("selector is required")
		}
		if s.Count < 1 {
			return fail("count must be >= 1")
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertText:
		var s AssertTextStep
		if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, line, err)
		}
		if s.Selector.IsZero() {
			return fail("selector is required")
		}
		if s.Equals == nil && s.Contains == "" {
			return fail("one of equals or contains is required")
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertURL:
		var s AssertURLStep
		if err := decodeScalarOr(valueNode, &s, &s.Fragment); err != nil {
			return nil, wrapParseError(sourcePath, line, err)
		}
		if s.Fragment == "" {
			return fail("url fragment is required")
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertCount:
		var s AssertCountStep
		if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, line, err)
		}
		if s.Selector.IsZero() {
			return fail("selector is required")
		}
		if s.Count < 0 {
			return fail("count must be >= 0")
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertExpr:
		var s AssertExprStep
		if err := decodeScalarOr(valueNode, &s, &s.Expr); err != nil {
			return nil, wrapParseError(sourcePath, line, err)
		}
		if strings.TrimSpace(s.Expr) == "" {
			return fail("expression is required")
		}
		s.StepType = stepType
		return &s, nil

	case StepScreenshot:
		var s ScreenshotStep
		if err := decodeScalarOr(valueNode, &s, &s.Name); err != nil {
			return nil, wrapParseError(sourcePath, line, err)
		}
		s.StepType = stepType
		return &s, nil
	}

	return nil, &ParseError{Path: sourcePath, Line: line, Message: fmt.Sprintf("unknown step type: %s", stepType)}
}

// decodeScalarOr stores a scalar value in *scalar, or decodes a mapping
// into step.
func decodeScalarOr(node *yaml.Node, step interface{}, scalar *string) error {
	if node.Kind == yaml.ScalarNode {
		*scalar = node.Value
		return nil
	}
	return node.Decode(step)
}

func wrapParseError(path string, line int, err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return err
	}
	return &ParseError{Path: path, Line: line, Message: err.Error()}
}

// decodeTarget accepts the short forms "id=x" and {id: x, optional: true}
// as well as {selector: {...}, ...}.
func decodeTarget(node *yaml.Node, step interface{}, base *BaseStep, loc *core.Locator) error {
	switch {
	case node.Kind == yaml.ScalarNode:
		parsed, err := core.ParseLocator(node.Value)
		if err != nil {
			return err
		}
		*loc = parsed
	case node.Kind == yaml.MappingNode && hasKey(node, "selector"):
		if err := node.Decode(step); err != nil {
			return err
		}
	case node.Kind == yaml.MappingNode:
		if err := node.Decode(loc); err != nil {
			return err
		}
		if err := node.Decode(base); err != nil {
			return err
		}
	default:
		return fmt.Errorf("expected a locator")
	}
	if loc.IsZero() {
		return fmt.Errorf("selector is required")
	}
	return nil
}

func hasKey(node *yaml.Node, key string) bool {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}
