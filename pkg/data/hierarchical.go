package data

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// JSON loads files shaped as {"bucket": [{...}, ...], ...}. Bucket order is
// the order in the file.
type JSON struct {
	opts Options
}

// NewJSON creates a JSON source.
func NewJSON(opts Options) *JSON { return &JSON{opts: opts.withDefaults()} }

func (s *JSON) Load(path string) ([]core.TestRecord, error) {
	raw, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := validateSchema(path, s.opts.Schema, raw); err != nil {
		return nil, err
	}

	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &core.DataFormatError{Path: path, Reason: "top level must be an object of buckets"}
	}
	top := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(raw, top); err != nil {
		return nil, &core.DataFormatError{Path: path, Reason: "top level must be an object of buckets: " + err.Error()}
	}

	var buckets []bucket
	for pair := top.Oldest(); pair != nil; pair = pair.Next() {
		var items []map[string]interface{}
		if err := json.Unmarshal(pair.Value, &items); err != nil {
			return nil, &core.DataFormatError{Path: path, Reason: fmt.Sprintf("bucket %q must be a list of objects", pair.Key)}
		}
		buckets = append(buckets, bucket{name: pair.Key, items: items})
	}
	return normalize(path, buckets, s.opts)
}

// YAML loads the same shape as JSON from YAML. Errors carry source lines.
type YAML struct {
	opts Options
}

// NewYAML creates a YAML source.
func NewYAML(opts Options) *YAML { return &YAML{opts: opts.withDefaults()} }

func (s *YAML) Load(path string) ([]core.TestRecord, error) {
	raw, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, &core.DataFormatError{Path: path, Reason: err.Error()}
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, &core.DataFormatError{Path: path, Line: doc.Line, Reason: "top level must be a mapping of buckets"}
	}

	if s.opts.Schema != "" {
		// The schema sees the same JSON value model as for JSON files.
		var generic interface{}
		if err := doc.Decode(&generic); err != nil {
			return nil, &core.DataFormatError{Path: path, Reason: err.Error()}
		}
		asJSON, err := json.Marshal(generic)
		if err != nil {
			return nil, &core.DataFormatError{Path: path, Reason: "not representable as JSON: " + err.Error()}
		}
		if err := validateSchema(path, s.opts.Schema, asJSON); err != nil {
			return nil, err
		}
	}

	root := doc.Content[0]
	var buckets []bucket
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if val.Kind != yaml.SequenceNode {
			return nil, &core.DataFormatError{Path: path, Line: val.Line, Reason: fmt.Sprintf("bucket %q must be a list of objects", key.Value)}
		}
		b := bucket{name: key.Value}
		for _, item := range val.Content {
			var obj map[string]interface{}
			if item.Kind != yaml.MappingNode || item.Decode(&obj) != nil {
				return nil, &core.DataFormatError{Path: path, Line: item.Line, Reason: fmt.Sprintf("bucket %q: entry is not an object", key.Value)}
			}
			b.items = append(b.items, obj)
			b.lines = append(b.lines, item.Line)
		}
		buckets = append(buckets, b)
	}
	return normalize(path, buckets, s.opts)
}

type bucket struct {
	name  string
	items []map[string]interface{}
	lines []int // source line per item, YAML only
}

func (b bucket) line(i int) int {
	if i < len(b.lines) {
		return b.lines[i]
	}
	return 0
}

// normalize checks every object and turns them into records. All problems
// are collected so one error lists them together.
func normalize(path string, buckets []bucket, opts Options) ([]core.TestRecord, error) {
	buckets, err := selectBuckets(path, buckets, opts.Buckets)
	if err != nil {
		return nil, err
	}

	var (
		records    []core.TestRecord
		lines      []int
		violations []string
	)
	for _, b := range buckets {
		for i, item := range b.items {
			where := fmt.Sprintf("%s[%d]", b.name, i)
			if l := b.line(i); l > 0 {
				where = fmt.Sprintf("%s (line %d)", where, l)
			}

			id := scalar(item[IDField])
			if id == "" {
				violations = append(violations, where+": missing "+IDField)
				continue
			}
			if descriptionOf(item, opts.DescriptionFields) == "" {
				violations = append(violations, fmt.Sprintf("%s: missing one of %s", where, strings.Join(opts.DescriptionFields, ", ")))
				continue
			}
			expected := scalar(item[DefaultExpectedField])
			if expected == "" {
				expected = opts.DefaultExpected
			}
			rec, err := core.NewTestRecord(core.RecordSpec{
				CaseID:   b.name + "/" + id,
				Expected: expected,
				Source:   path,
				Bucket:   b.name,
				Index:    len(records),
				Fields:   item,
			})
			if err != nil {
				violations = append(violations, where+": "+err.Error())
				continue
			}
			records = append(records, rec)
			lines = append(lines, b.line(i))
		}
	}
	if len(violations) > 0 {
		return nil, &core.DataFormatError{Path: path, Reason: "invalid records", Violations: violations}
	}
	if err := dedupe(path, records, lines); err != nil {
		return nil, err
	}
	return records, nil
}

func selectBuckets(path string, all []bucket, names []string) ([]bucket, error) {
	if len(names) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []bucket
	for _, b := range all {
		if want[b.name] {
			out = append(out, b)
			delete(want, b.name)
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for n := range want {
			unknown = append(unknown, n)
		}
		sort.Strings(unknown)
		return nil, &core.DataFormatError{Path: path, Reason: "unknown buckets: " + strings.Join(unknown, ", ")}
	}
	return out, nil
}

func descriptionOf(item map[string]interface{}, fields []string) string {
	for _, f := range fields {
		if s := scalar(item[f]); s != "" {
			return s
		}
	}
	return ""
}

// scalar renders a string or number; anything else is "".
func scalar(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int, int64, uint64:
		return fmt.Sprint(val)
	}
	return ""
}

// validateSchema checks doc against the schema file at schemaPath. Every leaf
// violation is reported.
func validateSchema(path, schemaPath string, doc []byte) error {
	if schemaPath == "" {
		return nil
	}
	schemaRaw, err := readFile(schemaPath)
	if err != nil {
		return err
	}
	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaRaw))
	if err != nil {
		return &core.DataFormatError{Path: schemaPath, Reason: "schema is not JSON: " + err.Error()}
	}
	loc, err := filepath.Abs(schemaPath)
	if err != nil {
		return err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(loc, schemaDoc); err != nil {
		return &core.DataFormatError{Path: schemaPath, Reason: "add schema: " + err.Error()}
	}
	sch, err := c.Compile(loc)
	if err != nil {
		return &core.DataFormatError{Path: schemaPath, Reason: "compile schema: " + err.Error()}
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return &core.DataFormatError{Path: path, Reason: "not valid JSON: " + err.Error()}
	}
	if err := sch.Validate(inst); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return &core.DataFormatError{Path: path, Reason: "schema validation: " + err.Error()}
		}
		var violations []string
		for _, leaf := range flatten(ve) {
			violations = append(violations, fmt.Sprintf("/%s: %v", strings.Join(leaf.InstanceLocation, "/"), leaf.ErrorKind))
		}
		return &core.DataFormatError{Path: path, Reason: "schema violations", Violations: violations}
	}
	return nil
}

func flatten(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, flatten(c)...)
	}
	return out
}
