package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    zap.AtomicLevel
		wantErr bool
	}{
		{"", zap.NewAtomicLevelAt(zap.InfoLevel), false},
		{"DEBUG", zap.NewAtomicLevelAt(zap.DebugLevel), false},
		{"warning", zap.NewAtomicLevelAt(zap.WarnLevel), false},
		{"error", zap.NewAtomicLevelAt(zap.ErrorLevel), false},
		{"trace", zap.NewAtomicLevelAt(zap.InfoLevel), true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want.Level() {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want.Level())
		}
	}
}

func TestConfigure_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pageflow.log")
	if err := Configure(Options{Level: "debug", Format: "json", FilePath: path, Quiet: true}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	Info("record %s finished", "TC1")
	L().Debug("wait done", zap.String("case_id", "TC1"))
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "record TC1 finished") {
		t.Errorf("log file missing info line: %s", content)
	}
	if !strings.Contains(content, `"case_id":"TC1"`) {
		t.Errorf("log file missing structured field: %s", content)
	}
}

func TestNew_UnknownLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("New() with unknown level should fail")
	}
}

func TestClose_ResetsToNop(t *testing.T) {
	Close()
	// Must not panic after Close.
	Warn("ignored %d", 1)
	if L() == nil {
		t.Error("L() = nil after Close()")
	}
}
