package core

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func newRecord(t *testing.T, fields map[string]interface{}) TestRecord {
	t.Helper()
	rec, err := NewTestRecord(RecordSpec{
		CaseID:   "cart/2",
		Expected: "success",
		Source:   "products.json",
		Bucket:   "cart",
		Index:    1,
		Fields:   fields,
	})
	if err != nil {
		t.Fatalf("NewTestRecord() error = %v", err)
	}
	return rec
}

func TestNewTestRecord_Required(t *testing.T) {
	if _, err := NewTestRecord(RecordSpec{Expected: "success"}); !errors.Is(err, ErrMissingRequired) {
		t.Errorf("missing case id: error = %v, want ErrMissingRequired", err)
	}
	if _, err := NewTestRecord(RecordSpec{CaseID: "TC1"}); !errors.Is(err, ErrMissingRequired) {
		t.Errorf("missing expected: error = %v, want ErrMissingRequired", err)
	}
}

func TestTestRecord_Accessors(t *testing.T) {
	rec := newRecord(t, map[string]interface{}{"username": "standard_user", "expected_count": float64(2)})

	if rec.CaseID() != "cart/2" || rec.Expected() != "success" || rec.Bucket() != "cart" || rec.Index() != 1 || rec.Source() != "products.json" {
		t.Errorf("accessors = %q %q %q %d %q", rec.CaseID(), rec.Expected(), rec.Bucket(), rec.Index(), rec.Source())
	}
	if got := rec.String("username"); got != "standard_user" {
		t.Errorf("String(username) = %q", got)
	}
	if got := rec.String("expected_count"); got != "2" {
		t.Errorf("String(expected_count) = %q, want 2", got)
	}
	if got := rec.String("missing"); got != "" {
		t.Errorf("String(missing) = %q, want empty", got)
	}
	if !rec.Has("username") || rec.Has("password") {
		t.Error("Has() mismatch")
	}
	n, err := rec.Int("expected_count")
	if err != nil || n != 2 {
		t.Errorf("Int() = %d, %v", n, err)
	}
}

func TestTestRecord_Immutable(t *testing.T) {
	src := map[string]interface{}{"username": "standard_user"}
	rec := newRecord(t, src)

	src["username"] = "changed"
	if got := rec.String("username"); got != "standard_user" {
		t.Errorf("record changed through source map: %q", got)
	}

	fields := rec.Fields()
	fields["username"] = "changed"
	if got := rec.String("username"); got != "standard_user" {
		t.Errorf("record changed through Fields(): %q", got)
	}
}

func TestTestRecord_ImmutableNested(t *testing.T) {
	indices := []interface{}{float64(0), float64(2)}
	address := map[string]interface{}{"zip": "12345", "lines": []interface{}{"a", "b"}}
	rec := newRecord(t, map[string]interface{}{"productos_indices": indices, "address": address})

	indices[0] = float64(9)
	address["zip"] = "00000"

	fields := rec.Fields()
	fields["productos_indices"].([]interface{})[1] = float64(7)
	fields["address"].(map[string]interface{})["lines"].([]interface{})[0] = "z"

	v, _ := rec.Get("address")
	v.(map[string]interface{})["zip"] = "99999"

	got, err := rec.Ints("productos_indices")
	if err != nil || !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("Ints(productos_indices) = %v, %v, want [0 2]", got, err)
	}
	want := map[string]interface{}{"zip": "12345", "lines": []interface{}{"a", "b"}}
	if v, _ := rec.Get("address"); !reflect.DeepEqual(v, want) {
		t.Errorf("address = %v, want %v", v, want)
	}
}

func TestTestRecord_Ints(t *testing.T) {
	tests := []struct {
		value   interface{}
		want    []int
		wantErr bool
	}{
		{[]interface{}{float64(0), float64(2)}, []int{0, 2}, false},
		{"0, 1,2", []int{0, 1, 2}, false},
		{[]int{3}, []int{3}, false},
		{[]interface{}{"a"}, nil, true},
		{float64(1.5), nil, true},
	}

	for _, tt := range tests {
		rec := newRecord(t, map[string]interface{}{"product_indices": tt.value})
		got, err := rec.Ints("product_indices")
		if (err != nil) != tt.wantErr {
			t.Errorf("Ints(%v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Ints(%v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestTestRecord_MarshalJSON(t *testing.T) {
	rec := newRecord(t, map[string]interface{}{"id": "2"})
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got["case_id"] != "cart/2" || got["bucket"] != "cart" {
		t.Errorf("Marshal() = %s", data)
	}
}
