// Package flow parses declarative YAML flows: an optional config document
// followed by a list of web steps.
package flow

import (
	"path/filepath"
	"strings"
	"time"
)

// Flow is a parsed flow file.
type Flow struct {
	SourcePath string
	Config     Config
	Steps      []Step
}

// Config is the optional first document of a flow file.
type Config struct {
	Name    string            `yaml:"name"`
	Tags    []string          `yaml:"tags"`
	URL     string            `yaml:"url"`     // base URL, overrides the run's
	Timeout time.Duration     `yaml:"timeout"` // whole-flow deadline
	Env     map[string]string `yaml:"env"`
}

// Name returns Config.Name, or the file name without extension.
func (f *Flow) Name() string {
	if f.Config.Name != "" {
		return f.Config.Name
	}
	base := filepath.Base(f.SourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// HasTag reports whether the flow carries tag.
func (f *Flow) HasTag(tag string) bool {
	for _, t := range f.Config.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
