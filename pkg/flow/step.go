package flow

import (
	"fmt"
	"time"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	// Navigation & interaction
	StepOpen        StepType = "open"
	StepTypeText    StepType = "type"
	StepClick       StepType = "click"
	StepClickScript StepType = "clickScript"
	StepPage        StepType = "page"

	// Waits
	StepWaitURL     StepType = "waitUrl"
	StepWaitVisible StepType = "waitVisible"
	StepWaitCount   StepType = "waitCount"

	// Assertions
	StepAssertText  StepType = "assertText"
	StepAssertURL   StepType = "assertUrl"
	StepAssertCount StepType = "assertCount"
	StepAssertExpr  StepType = "assertExpr"

	// Media
	StepScreenshot StepType = "screenshot"
)

// Step is the interface for all flow steps.
type Step interface {
	Type() StepType
	IsOptional() bool
	Label() string
	Describe() string
	StepTimeout() time.Duration
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType      `yaml:"-"`
	Optional  bool          `yaml:"optional"`
	StepLabel string        `yaml:"label"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// IsOptional returns whether the step may fail without failing the flow.
func (b *BaseStep) IsOptional() bool { return b.Optional }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// StepTimeout returns the per-step wait override, or 0.
func (b *BaseStep) StepTimeout() time.Duration { return b.Timeout }

// Describe returns the label when set, otherwise the step type.
func (b *BaseStep) Describe() string {
	if b.StepLabel != "" {
		return b.StepLabel
	}
	return string(b.StepType)
}

// OpenStep navigates to URL; a path is resolved against the base URL.
type OpenStep struct {
	BaseStep `yaml:",inline"`
	URL      string `yaml:"url"`
}

func (s *OpenStep) Describe() string { return describe(&s.BaseStep, "open "+s.URL) }

// TypeStep replaces the content of an input.
type TypeStep struct {
	BaseStep `yaml:",inline"`
	Selector core.Locator `yaml:"selector"`
	Text     string       `yaml:"text"`
}

func (s *TypeStep) Describe() string {
	return describe(&s.BaseStep, fmt.Sprintf("type %q into %s", s.Text, s.Selector))
}

// ClickStep clicks the first clickable match.
type ClickStep struct {
	BaseStep `yaml:",inline"`
	Selector core.Locator `yaml:"selector"`
}

func (s *ClickStep) Describe() string { return describe(&s.BaseStep, "click "+s.Selector.String()) }

// ClickScriptStep clicks the index-th match through script.
type ClickScriptStep struct {
	BaseStep `yaml:",inline"`
	Selector core.Locator `yaml:"selector"`
	Index    int          `yaml:"index"`
}

func (s *ClickScriptStep) Describe() string {
	return describe(&s.BaseStep, fmt.Sprintf("script click %s[%d]", s.Selector, s.Index))
}

// PageStep calls a named page-model operation. Args holds every other key.
type PageStep struct {
	BaseStep `yaml:",inline"`
	Action   string            `yaml:"action"`
	Args     map[string]string `yaml:",inline"`
}

func (s *PageStep) Describe() string { return describe(&s.BaseStep, "page "+s.Action) }

// WaitURLStep waits until the URL contains Fragment.
type WaitURLStep struct {
	BaseStep `yaml:",inline"`
	Fragment string `yaml:"contains"`
}

func (s *WaitURLStep) Describe() string { return describe(&s.BaseStep, "wait for url "+s.Fragment) }

// WaitVisibleStep waits until Selector matches.
type WaitVisibleStep struct {
	BaseStep `yaml:",inline"`
	Selector core.Locator `yaml:"selector"`
}

func (s *WaitVisibleStep) Describe() string {
	return describe(&s.BaseStep, "wait for "+s.Selector.String())
}

// WaitCountStep waits until Selector matches at least Count elements.
type WaitCountStep struct {
	BaseStep `yaml:",inline"`
	Selector core.Locator `yaml:"selector"`
	Count    int          `yaml:"count"`
}

func (s *WaitCountStep) Describe() string {
	return describe(&s.BaseStep, fmt.Sprintf("wait for %d of %s", s.Count, s.Selector))
}

// AssertTextStep checks the text of the first match.
type AssertTextStep struct {
	BaseStep `yaml:",inline"`
	Selector core.Locator `yaml:"selector"`
	Equals   *string      `yaml:"equals"`
	Contains string       `yaml:"contains"`
}

func (s *AssertTextStep) Describe() string {
	return describe(&s.BaseStep, "assert text of "+s.Selector.String())
}

// AssertURLStep checks that the current URL contains Fragment.
type AssertURLStep struct {
	BaseStep `yaml:",inline"`
	Fragment string `yaml:"contains"`
}

func (s *AssertURLStep) Describe() string { return describe(&s.BaseStep, "assert url "+s.Fragment) }

// AssertCountStep checks the exact number of matches.
type AssertCountStep struct {
	BaseStep `yaml:",inline"`
	Selector core.Locator `yaml:"selector"`
	Count    int          `yaml:"count"`
}

func (s *AssertCountStep) Describe() string {
	return describe(&s.BaseStep, fmt.Sprintf("assert %d of %s", s.Count, s.Selector))
}

// AssertExprStep evaluates a boolean expression over observations.
type AssertExprStep struct {
	BaseStep `yaml:",inline"`
	Expr     string `yaml:"expr"`
}

func (s *AssertExprStep) Describe() string { return describe(&s.BaseStep, "assert "+s.Expr) }

// ScreenshotStep saves a screenshot artifact.
type ScreenshotStep struct {
	BaseStep `yaml:",inline"`
	Name     string `yaml:"name"`
}

func (s *ScreenshotStep) Describe() string {
	return describe(&s.BaseStep, "screenshot "+s.Name)
}

func describe(b *BaseStep, fallback string) string {
	if b.StepLabel != "" {
		return b.StepLabel
	}
	return fallback
}
