package telemetry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestInit_Disabled(t *testing.T) {
	tel, shutdown, err := Init(context.Background(), Config{}, nil)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if tel.Enabled() {
		t.Error("Enabled() = true, want false")
	}
	_, span := tel.StartSpan(context.Background(), "record", nil)
	tel.End(span, "passed", nil)
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestInit_RequiresPath(t *testing.T) {
	if _, _, err := Init(context.Background(), Config{Enabled: true}, nil); err == nil {
		t.Error("Init() without path should fail")
	}
}

func TestSpansWritten(t *testing.T) {
	var buf bytes.Buffer
	tel, shutdown, err := Init(context.Background(), Config{Enabled: true, Writer: &buf, RunID: "r1"}, nil)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx, run := tel.StartSpan(context.Background(), "run", map[string]string{"scenario": "login"})
	_, rec := tel.StartSpan(ctx, "record", map[string]string{"record_id": "0001_TC01"})
	tel.End(rec, "failed", errors.New("title mismatch"))
	tel.End(run, "done", nil)

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"Name":"record"`, `"Name":"run"`, "0001_TC01", "title mismatch"} {
		if !strings.Contains(out, want) {
			t.Errorf("trace output missing %q", want)
		}
	}
}

func TestNilTelemetry(t *testing.T) {
	var tel *Telemetry
	ctx, span := tel.StartSpan(context.Background(), "x", nil)
	if ctx == nil || span == nil {
		t.Fatal("StartSpan on nil Telemetry returned nil")
	}
	tel.End(span, "passed", nil)
}
