package config

import (
	"path/filepath"
	"testing"
)

func TestGetHome_EnvVar(t *testing.T) {
	ResetHome()
	t.Cleanup(ResetHome)
	t.Setenv("PAGEFLOW_HOME", "/custom/path")

	if got := GetHome(); got != "/custom/path" {
		t.Errorf("GetHome() = %q, want %q", got, "/custom/path")
	}
}

func TestGetHome_Fallback(t *testing.T) {
	ResetHome()
	t.Cleanup(ResetHome)
	t.Setenv("PAGEFLOW_HOME", "")

	if got := GetHome(); got == "" {
		t.Error("GetHome() returned empty string")
	}
}

func TestGetHome_Cached(t *testing.T) {
	ResetHome()
	t.Cleanup(ResetHome)
	t.Setenv("PAGEFLOW_HOME", "/first")
	first := GetHome()

	t.Setenv("PAGEFLOW_HOME", "/second")
	if second := GetHome(); first != second {
		t.Errorf("GetHome() not cached: first=%q, second=%q", first, second)
	}
}

func TestGetDriversDir(t *testing.T) {
	ResetHome()
	t.Cleanup(ResetHome)
	t.Setenv("PAGEFLOW_HOME", "/opt/pageflow")

	want := filepath.Join("/opt/pageflow", "drivers", "playwright")
	if got := GetDriversDir("playwright"); got != want {
		t.Errorf("GetDriversDir() = %q, want %q", got, want)
	}
}
