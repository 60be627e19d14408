package core

import (
	"encoding/json"
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusPending, "pending"},
		{StatusRunning, "running"},
		{StatusPassed, "passed"},
		{StatusFailed, "failed"},
		{StatusErrored, "errored"},
		{StatusSkipped, "skipped"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.expected)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for st := StatusPending; st <= StatusSkipped; st++ {
		got, err := ParseStatus(st.String())
		if err != nil {
			t.Fatalf("ParseStatus(%q) error = %v", st, err)
		}
		if got != st {
			t.Errorf("ParseStatus(%q) = %v, want %v", st, got, st)
		}
	}
	if _, err := ParseStatus("warned"); err == nil {
		t.Error("ParseStatus(warned) should fail")
	}
}

func TestStatus_JSON(t *testing.T) {
	data, err := json.Marshal(StatusErrored)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `"errored"` {
		t.Errorf("Marshal() = %s, want \"errored\"", data)
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if st != StatusErrored {
		t.Errorf("Unmarshal() = %v, want errored", st)
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	terminalStatuses := []Status{StatusPassed, StatusFailed, StatusErrored, StatusSkipped}
	nonTerminalStatuses := []Status{StatusPending, StatusRunning}

	for _, s := range terminalStatuses {
		if !s.IsTerminal() {
			t.Errorf("Status(%s).IsTerminal() = false, want true", s)
		}
	}

	for _, s := range nonTerminalStatuses {
		if s.IsTerminal() {
			t.Errorf("Status(%s).IsTerminal() = true, want false", s)
		}
	}
}

func TestStatus_IsSuccess(t *testing.T) {
	successStatuses := []Status{StatusPassed, StatusSkipped}
	failureStatuses := []Status{StatusPending, StatusRunning, StatusFailed, StatusErrored}

	for _, s := range successStatuses {
		if !s.IsSuccess() {
			t.Errorf("Status(%s).IsSuccess() = false, want true", s)
		}
	}

	for _, s := range failureStatuses {
		if s.IsSuccess() {
			t.Errorf("Status(%s).IsSuccess() = true, want false", s)
		}
	}
}

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusSkipped, true},
		{StatusPending, StatusPassed, false},
		{StatusRunning, StatusPassed, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusErrored, true},
		{StatusRunning, StatusPending, false},
		{StatusPassed, StatusFailed, false},
		{StatusErrored, StatusRunning, false},
		{StatusSkipped, StatusRunning, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s.CanTransitionTo(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestErrorCategory_String(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected string
	}{
		{ErrCategoryNone, "none"},
		{ErrCategoryAssertion, "assertion"},
		{ErrCategoryTimeout, "timeout"},
		{ErrCategoryConnection, "connection"},
		{ErrCategoryData, "data"},
		{ErrCategoryConfig, "config"},
		{ErrCategoryInternal, "internal"},
		{ErrorCategory(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.category.String(); got != tt.expected {
			t.Errorf("ErrorCategory(%d).String() = %q, want %q", tt.category, got, tt.expected)
		}
	}
}

func TestErrorCategory_UnmarshalText(t *testing.T) {
	var c ErrorCategory
	if err := c.UnmarshalText([]byte("connection")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if c != ErrCategoryConnection {
		t.Errorf("UnmarshalText() = %v, want connection", c)
	}
	if err := c.UnmarshalText([]byte("app")); err == nil {
		t.Error("UnmarshalText(app) should fail")
	}
}
