package report

import (
	"fmt"
	"path/filepath"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// WriteResults writes run as outputDir/results.json and returns the path.
func WriteResults(outputDir string, run *core.RunResult) (string, error) {
	run.ComputeSummary()
	path := filepath.Join(outputDir, ResultsFile)
	if err := atomicWriteJSON(path, run); err != nil {
		return "", err
	}
	return path, nil
}

// WriteSessionResults writes the results of session n as
// outputDir/sessions/session-n.json and returns the path. An empty session
// still gets a file.
func WriteSessionResults(outputDir string, n int, results []core.ExecutionResult) (string, error) {
	if results == nil {
		results = []core.ExecutionResult{}
	}
	path := filepath.Join(outputDir, SessionsDir, fmt.Sprintf("session-%d.json", n))
	if err := atomicWriteJSON(path, results); err != nil {
		return "", err
	}
	return path, nil
}

// ReadSessionResults loads a file written by WriteSessionResults.
func ReadSessionResults(path string) ([]core.ExecutionResult, error) {
	var results []core.ExecutionResult
	if err := readJSON(path, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// ReadResults loads a results.json.
func ReadResults(path string) (*core.RunResult, error) {
	var run core.RunResult
	if err := readJSON(path, &run); err != nil {
		return nil, err
	}
	return &run, nil
}
