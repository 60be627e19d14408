// Package validator checks data and flow files before a run. Every file is
// loaded the same way the runner would load it, so a file that validates
// will not fail at load time.
package validator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/data"
	"github.com/devicelab-dev/pageflow/pkg/expect"
	"github.com/devicelab-dev/pageflow/pkg/flow"
)

// Kind tells data files from flow files.
type Kind string

const (
	KindData Kind = "data"
	KindFlow Kind = "flow"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// FileResult describes one valid file.
type FileResult struct {
	Path string
	Kind Kind
	// Records is the record count for data files.
	Records int
	// Steps is the step count for flows.
	Steps int
	// Skipped is set for flows filtered out by tags.
	Skipped bool
}

// Result contains the validation result.
type Result struct {
	Files  []FileResult
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Records sums the records across valid data files.
func (r *Result) Records() int {
	n := 0
	for _, f := range r.Files {
		n += f.Records
	}
	return n
}

// Validator validates data and flow files.
type Validator struct {
	data        data.Options
	includeTags []string
	excludeTags []string
}

// New creates a Validator. opts are the loading options the run would use.
func New(opts data.Options, includeTags, excludeTags []string) *Validator {
	return &Validator{
		data:        opts,
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

var knownExts = map[string]bool{".csv": true, ".xlsx": true, ".json": true, ".yaml": true, ".yml": true}

// Validate validates files and directories. Directories are scanned
// recursively; JSON Schema files (*.schema.json) are ignored.
func (v *Validator) Validate(paths ...string) *Result {
	result := &Result{}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("cannot access: %v", err),
				Cause:   err,
			})
			continue
		}

		files := []string{path}
		if info.IsDir() {
			files, err = collectFiles(path)
			if err != nil {
				result.Errors = append(result.Errors, &ValidationError{
					File:    path,
					Message: fmt.Sprintf("failed to scan directory: %v", err),
					Cause:   err,
				})
				continue
			}
		}
		for _, f := range files {
			v.validateFile(f, result)
		}
	}
	return result
}

func collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".schema.json") {
			return nil
		}
		if knownExts[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

func (v *Validator) validateFile(path string, result *Result) {
	kind, err := Detect(path)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{File: path, Message: err.Error(), Cause: err})
		return
	}
	switch kind {
	case KindFlow:
		v.validateFlow(path, result)
	default:
		v.validateData(path, result)
	}
}

func (v *Validator) validateData(path string, result *Result) {
	records, err := data.Load(path, v.data)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{File: path, Message: describeDataError(err), Cause: err})
		return
	}
	result.Files = append(result.Files, FileResult{Path: path, Kind: KindData, Records: len(records)})
}

func describeDataError(err error) string {
	var dfe *core.DataFormatError
	if errors.As(err, &dfe) {
		return "rejected: " + dfe.Error()
	}
	return err.Error()
}

func (v *Validator) validateFlow(path string, result *Result) {
	f, err := flow.ParseFile(path)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    path,
			Message: fmt.Sprintf("parse error: %v", err),
			Cause:   err,
		})
		return
	}
	if !ShouldInclude(f, v.includeTags, v.excludeTags) {
		result.Files = append(result.Files, FileResult{Path: path, Kind: KindFlow, Steps: len(f.Steps), Skipped: true})
		return
	}

	ok := true
	for i, step := range f.Steps {
		if msg := checkStep(step); msg != "" {
			ok = false
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("step %d (%s): %s", i+1, step.Type(), msg),
			})
		}
	}
	if ok {
		result.Files = append(result.Files, FileResult{Path: path, Kind: KindFlow, Steps: len(f.Steps)})
	}
}

// checkStep catches mistakes the parser accepts but a run would trip on.
func checkStep(step flow.Step) string {
	if s, ok := step.(*flow.AssertExprStep); ok {
		if err := expect.Compile(s.Expr); err != nil {
			return err.Error()
		}
	}
	return ""
}

// ShouldInclude applies tag filters: a flow must carry one of include (when
// given) and none of exclude.
func ShouldInclude(f *flow.Flow, include, exclude []string) bool {
	for _, tag := range exclude {
		if f.HasTag(tag) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, tag := range include {
		if f.HasTag(tag) {
			return true
		}
	}
	return false
}

// Detect classifies path. YAML files are flows when their last document is a
// step list and data otherwise; every other known extension is data.
func Detect(path string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !knownExts[ext] {
		return "", fmt.Errorf("unsupported file type %q", ext)
	}
	if ext != ".yaml" && ext != ".yml" {
		return KindData, nil
	}

	raw, err := os.ReadFile(path) //#nosec G304 -- user-provided file
	if err != nil {
		return "", err
	}
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	var last *yaml.Node
	for {
		var doc yaml.Node
		if err := dec.Decode(&doc); err != nil {
			break
		}
		if len(doc.Content) > 0 {
			last = doc.Content[0]
		}
	}
	if last != nil && last.Kind == yaml.SequenceNode {
		return KindFlow, nil
	}
	return KindData, nil
}
