package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TestRecord is one unit of test input. Immutable once loaded.
type TestRecord struct {
	caseID   string
	expected string
	source   string
	bucket   string
	index    int
	fields   map[string]interface{}
}

// RecordSpec holds the values used to build a TestRecord.
type RecordSpec struct {
	CaseID   string
	Expected string
	Source   string
	Bucket   string
	Index    int
	Fields   map[string]interface{}
}

// NewTestRecord validates spec and builds a record. CaseID and Expected are
// mandatory.
func NewTestRecord(spec RecordSpec) (TestRecord, error) {
	if strings.TrimSpace(spec.CaseID) == "" {
		return TestRecord{}, ErrMissingRequired.WithMessage("record has no case id")
	}
	if strings.TrimSpace(spec.Expected) == "" {
		return TestRecord{}, ErrMissingRequired.WithMessage(fmt.Sprintf("record %s has no expected outcome", spec.CaseID))
	}
	return TestRecord{
		caseID:   spec.CaseID,
		expected: spec.Expected,
		source:   spec.Source,
		bucket:   spec.Bucket,
		index:    spec.Index,
		fields:   cloneFields(spec.Fields),
	}, nil
}

// CaseID returns the stable identifier of the record.
func (r TestRecord) CaseID() string { return r.caseID }

// Expected returns the expected outcome (success, locked, error, ...).
func (r TestRecord) Expected() string { return r.expected }

// Source returns the data file the record came from.
func (r TestRecord) Source() string { return r.source }

// Bucket returns the top-level group of a hierarchical record.
func (r TestRecord) Bucket() string { return r.bucket }

// Index returns the 0-based position in the source.
func (r TestRecord) Index() int { return r.index }

// Get returns a copy of the raw value of a field.
func (r TestRecord) Get(key string) (interface{}, bool) {
	v, ok := r.fields[key]
	return cloneValue(v), ok
}

// Has reports whether a field is present.
func (r TestRecord) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

// String returns a field rendered as a string, "" when absent.
func (r TestRecord) String(key string) string {
	v, ok := r.fields[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// Int returns a numeric field.
func (r TestRecord) Int(key string) (int, error) {
	v, ok := r.fields[key]
	if !ok {
		return 0, fmt.Errorf("field %q not present", key)
	}
	return toInt(v)
}

// Ints returns a list of integers. Accepts a sequence or a comma separated string.
func (r TestRecord) Ints(key string) ([]int, error) {
	v, ok := r.fields[key]
	if !ok {
		return nil, fmt.Errorf("field %q not present", key)
	}
	switch val := v.(type) {
	case []int:
		return append([]int(nil), val...), nil
	case []interface{}:
		out := make([]int, 0, len(val))
		for i, item := range val {
			n, err := toInt(item)
			if err != nil {
				return nil, fmt.Errorf("field %q[%d]: %w", key, i, err)
			}
			out = append(out, n)
		}
		return out, nil
	case string:
		var out []int
		for _, part := range strings.Split(val, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			out = append(out, n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %q: cannot convert %T to []int", key, v)
	}
}

// Fields returns a deep copy of all fields.
func (r TestRecord) Fields() map[string]interface{} {
	return cloneFields(r.fields)
}

func cloneFields(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the container types decoders produce. Scalars are
// returned as-is.
func cloneValue(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		return cloneFields(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), v...)
	case []int:
		return append([]int(nil), v...)
	case []float64:
		return append([]float64(nil), v...)
	default:
		return v
	}
}

// MarshalJSON renders the record for reports and `validate` output.
func (r TestRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		CaseID   string                 `json:"case_id"`
		Expected string                 `json:"expected"`
		Bucket   string                 `json:"bucket,omitempty"`
		Index    int                    `json:"index"`
		Source   string                 `json:"source,omitempty"`
		Fields   map[string]interface{} `json:"fields"`
	}{r.caseID, r.expected, r.bucket, r.index, r.source, r.fields})
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}
