package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = EnvPrefix + "HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the pageflow home directory.
//
// Resolution order:
//  1. $PAGEFLOW_HOME
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. Current working directory
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetDriversDir returns <home>/drivers/<backend>, where browser drivers are
// installed.
func GetDriversDir(backend string) string {
	return filepath.Join(GetHome(), "drivers", backend)
}

func resolveHome() string {
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	// Binary-relative: <home>/bin/pageflow
	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
