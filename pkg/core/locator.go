package core

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Strategy is the lookup mechanism of a Locator.
type Strategy int

const (
	StrategyID    Strategy = iota + 1 // element id attribute
	StrategyClass                     // single CSS class name
	StrategyXPath                     // XPath expression
	StrategyCSS                       // CSS selector
)

// String returns the wire name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyID:
		return "id"
	case StrategyClass:
		return "class"
	case StrategyXPath:
		return "xpath"
	case StrategyCSS:
		return "css"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a strategy name into a Strategy.
// Accepts the Selenium spellings as well ("class name", "css selector").
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "id":
		return StrategyID, nil
	case "class", "class name", "classname":
		return StrategyClass, nil
	case "xpath":
		return StrategyXPath, nil
	case "css", "css selector", "selector":
		return StrategyCSS, nil
	default:
		return 0, fmt.Errorf("unknown locator strategy %q", name)
	}
}

// Locator describes how to find an element. It is a value type and never
// caches a resolved element.
type Locator struct {
	strategy Strategy
	value    string
}

// NewLocator validates and builds a Locator.
func NewLocator(strategy Strategy, value string) (Locator, error) {
	if strategy < StrategyID || strategy > StrategyCSS {
		return Locator{}, fmt.Errorf("invalid locator strategy %d", strategy)
	}
	if strings.TrimSpace(value) == "" {
		return Locator{}, fmt.Errorf("empty %s locator", strategy)
	}
	return Locator{strategy: strategy, value: value}, nil
}

// MustLocator is NewLocator that panics on error. Intended for package-level
// locator tables.
func MustLocator(strategy Strategy, value string) Locator {
	loc, err := NewLocator(strategy, value)
	if err != nil {
		panic(err)
	}
	return loc
}

// ByID locates by id attribute.
func ByID(id string) Locator { return MustLocator(StrategyID, id) }

// ByClass locates by class name.
func ByClass(class string) Locator { return MustLocator(StrategyClass, class) }

// ByXPath locates by XPath expression.
func ByXPath(expr string) Locator { return MustLocator(StrategyXPath, expr) }

// ByCSS locates by CSS selector.
func ByCSS(selector string) Locator { return MustLocator(StrategyCSS, selector) }

// Strategy returns the lookup strategy.
func (l Locator) Strategy() Strategy { return l.strategy }

// Value returns the selector string.
func (l Locator) Value() string { return l.value }

// IsZero reports whether the locator was never set.
func (l Locator) IsZero() bool { return l.strategy == 0 && l.value == "" }

// String renders the locator as strategy=value.
func (l Locator) String() string {
	if l.IsZero() {
		return "<empty locator>"
	}
	return l.strategy.String() + "=" + l.value
}

// locatorDoc is the long form: {strategy: id, value: x}.
type locatorDoc struct {
	Strategy string `yaml:"strategy" json:"strategy"`
	Value    string `yaml:"value" json:"value"`
	ID       string `yaml:"id" json:"id"`
	Class    string `yaml:"class" json:"class"`
	XPath    string `yaml:"xpath" json:"xpath"`
	CSS      string `yaml:"css" json:"css"`
}

func (d locatorDoc) toLocator() (Locator, error) {
	set := 0
	var loc Locator
	var err error
	if d.Strategy != "" || d.Value != "" {
		set++
		var s Strategy
		if s, err = ParseStrategy(d.Strategy); err != nil {
			return Locator{}, err
		}
		loc, err = NewLocator(s, d.Value)
	}
	for _, short := range []struct {
		s Strategy
		v string
	}{{StrategyID, d.ID}, {StrategyClass, d.Class}, {StrategyXPath, d.XPath}, {StrategyCSS, d.CSS}} {
		if short.v == "" {
			continue
		}
		set++
		loc, err = NewLocator(short.s, short.v)
	}
	if set == 0 {
		return Locator{}, fmt.Errorf("locator needs one of id, class, xpath, css or strategy/value")
	}
	if set > 1 {
		return Locator{}, fmt.Errorf("locator must use exactly one strategy")
	}
	return loc, err
}

// UnmarshalYAML accepts {id: x}, {strategy: id, value: x} or the scalar "id=x".
func (l *Locator) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		parsed, err := ParseLocator(node.Value)
		if err != nil {
			return err
		}
		*l = parsed
		return nil
	}
	var doc locatorDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}
	parsed, err := doc.toLocator()
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalYAML writes the long form.
func (l Locator) MarshalYAML() (interface{}, error) {
	return map[string]string{"strategy": l.strategy.String(), "value": l.value}, nil
}

// MarshalText renders strategy=value, so locators round-trip through JSON.
func (l Locator) MarshalText() ([]byte, error) {
	if l.IsZero() {
		return []byte{}, nil
	}
	return []byte(l.String()), nil
}

// UnmarshalText parses strategy=value.
func (l *Locator) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*l = Locator{}
		return nil
	}
	parsed, err := ParseLocator(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLocator parses "strategy=value". The value may itself contain '='.
func ParseLocator(s string) (Locator, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return Locator{}, fmt.Errorf("locator %q: want strategy=value", s)
	}
	strategy, err := ParseStrategy(name)
	if err != nil {
		return Locator{}, err
	}
	return NewLocator(strategy, value)
}
