package validator

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/data"
)

const testdata = "../../testdata"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestValidate_Fixtures(t *testing.T) {
	v := New(data.Options{}, nil, nil)
	result := v.Validate(
		filepath.Join(testdata, "login.csv"),
		filepath.Join(testdata, "products.json"),
		filepath.Join(testdata, "checkout_flow.yaml"),
	)

	if !result.IsValid() {
		t.Fatalf("expected valid result, got errors: %v", result.Errors)
	}
	if len(result.Files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(result.Files))
	}
	wantKinds := []Kind{KindData, KindData, KindFlow}
	for i, f := range result.Files {
		if f.Kind != wantKinds[i] {
			t.Errorf("Files[%d].Kind = %q, want %q", i, f.Kind, wantKinds[i])
		}
	}
	if got := result.Records(); got != 16 {
		t.Errorf("Records() = %d, want 16", got)
	}
	if result.Files[2].Steps == 0 {
		t.Error("flow reported zero steps")
	}
}

func TestValidate_MissingColumnRejectsFile(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "bad.csv", "test_case,username,password\nc1,standard_user,secret_sauce\n")

	result := New(data.Options{}, nil, nil).Validate(file)
	if result.IsValid() {
		t.Fatal("expected invalid result")
	}
	if len(result.Files) != 0 {
		t.Errorf("rejected file still listed: %v", result.Files)
	}

	var dfe *core.DataFormatError
	if !errors.As(result.Errors[0], &dfe) {
		t.Fatalf("error = %v, want DataFormatError", result.Errors[0])
	}
	if !strings.Contains(result.Errors[0].Error(), "expected_result") {
		t.Errorf("error %q does not name the missing column", result.Errors[0])
	}
}

func TestValidate_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "login.csv", "test_case,username,password,expected_result\nc1,standard_user,secret_sauce,success\n")
	writeFile(t, dir, "smoke.yaml", "- open: /\n- waitUrl: index\n")
	writeFile(t, dir, "records.yaml", "usuarios:\n  - {id: u1, descripcion: first}\n")
	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "records.schema.json", "{}")

	result := New(data.Options{}, nil, nil).Validate(dir)
	if !result.IsValid() {
		t.Fatalf("expected valid result, got errors: %v", result.Errors)
	}
	if len(result.Files) != 3 {
		t.Fatalf("expected 3 files, got %v", result.Files)
	}
	kinds := map[string]Kind{}
	for _, f := range result.Files {
		kinds[filepath.Base(f.Path)] = f.Kind
	}
	if kinds["smoke.yaml"] != KindFlow || kinds["records.yaml"] != KindData {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestValidate_FlowErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad expression", "- open: /\n- assertExpr: {expr: 'cart_count =='}\n", "step 2"},
		{"negative index", "- clickScript:\n    selector: {css: button}\n    index: -1\n", "index must be >= 0"},
		{"unknown step", "- tapOn: Login\n", "parse error"},
		{"empty", "", "flow.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			file := writeFile(t, dir, "flow.yaml", tt.content)
			result := New(data.Options{}, nil, nil).Validate(file)
			if result.IsValid() {
				t.Fatal("expected invalid result")
			}
			if !strings.Contains(result.Errors[0].Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", result.Errors[0], tt.want)
			}
		})
	}
}

func TestValidate_TagFilters(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "flow.yaml", "name: tagged\ntags: [smoke, wip]\n---\n- open: /\n")

	tests := []struct {
		name        string
		include     []string
		exclude     []string
		wantSkipped bool
	}{
		{"no filters", nil, nil, false},
		{"included", []string{"smoke"}, nil, false},
		{"not included", []string{"regression"}, nil, true},
		{"excluded wins", []string{"smoke"}, []string{"wip"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := New(data.Options{}, tt.include, tt.exclude).Validate(file)
			if !result.IsValid() {
				t.Fatalf("unexpected errors: %v", result.Errors)
			}
			if got := result.Files[0].Skipped; got != tt.wantSkipped {
				t.Errorf("Skipped = %v, want %v", got, tt.wantSkipped)
			}
		})
	}
}

func TestValidate_NonExistent(t *testing.T) {
	result := New(data.Options{}, nil, nil).Validate("/nonexistent/path")
	if result.IsValid() {
		t.Error("expected invalid result for missing path")
	}
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    Kind
		wantErr bool
	}{
		{"steps.yaml", "- open: /\n", KindFlow, false},
		{"config_and_steps.yml", "name: x\n---\n- open: /\n", KindFlow, false},
		{"buckets.yaml", "bucket:\n  - {id: 1}\n", KindData, false},
		{"table.csv", "a,b\n", KindData, false},
		{"sheet.xlsx", "", KindData, false},
		{"notes.md", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(writeFile(t, dir, tt.name, tt.content))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Detect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Detect() = %q, want %q", got, tt.want)
			}
		})
	}
}
