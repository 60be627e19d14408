package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/config"
	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/driver/mock"
	"github.com/devicelab-dev/pageflow/pkg/report"
)

var testdata = filepath.Join("..", "..", "testdata")

// newTestApp returns an app whose output lands in buf and whose exit codes
// come back as errors instead of terminating the test binary.
func newTestApp(buf *bytes.Buffer) *cli.App {
	app := NewApp()
	app.Writer = buf
	app.ErrWriter = buf
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

func TestRun_LoginFixture(t *testing.T) {
	out := t.TempDir()
	var buf bytes.Buffer
	err := newTestApp(&buf).Run([]string{"pageflow", "--no-ansi", "run",
		"--scenario", "login",
		"--data", filepath.Join(testdata, "login.csv"),
		"--driver", "mock",
		"--output", out,
		"--metrics",
	})
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, buf.String())
	}

	for _, name := range []string{report.ResultsFile, report.IndexFile, report.MetricsFile, filepath.Join(report.SessionsDir, "session-0.json")} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("expected %s in output: %v", name, err)
		}
	}
	got := buf.String()
	for _, want := range []string{"Scenario: login", "8 passing", "valid_standard_user", "TOTAL"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRun_FailingRecordExitsNonZero(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "bad.csv", "test_case,username,password,expected_result\n"+
		"valid_user_expects_error,standard_user,secret_sauce,error\n")

	var buf bytes.Buffer
	err := newTestApp(&buf).Run([]string{"pageflow", "run",
		"--data", data,
		"--output", filepath.Join(dir, "out"),
	})
	if code := exitCode(err); code != 1 {
		t.Fatalf("exit code = %d (err %v), want 1", code, err)
	}
	if !strings.Contains(buf.String(), "1 failing") {
		t.Errorf("summary missing failure:\n%s", buf.String())
	}
	artifacts, _ := os.ReadDir(filepath.Join(dir, "out", report.ArtifactsDir))
	if len(artifacts) == 0 {
		t.Error("expected failure artifacts")
	}
}

// closeFailingDriver is the in-process storefront with a teardown that fails.
type closeFailingDriver struct {
	*mock.Driver
}

func (d closeFailingDriver) Close() error {
	_ = d.Driver.Close()
	return errors.New("browser went away")
}

func TestExecuteRun_TeardownFailureIsFatal(t *testing.T) {
	out := t.TempDir()
	var buf bytes.Buffer
	rc := &RunConfig{
		Config:    config.Default(),
		Scenario:  "login",
		DataFile:  filepath.Join(testdata, "login.csv"),
		OutputDir: out,
		Filter:    "locked",
		Logger:    zap.NewNop(),
		Out:       &buf,
		NewDriver: func(_ context.Context, cfg *config.Config, log *zap.Logger) (core.Driver, error) {
			return closeFailingDriver{mock.New(mock.Config{BaseURL: cfg.Browser.BaseURL, Logger: log})}, nil
		},
	}

	run, err := executeRun(context.Background(), rc)
	if err == nil || !strings.Contains(err.Error(), "browser went away") {
		t.Fatalf("executeRun() error = %v, want teardown failure", err)
	}
	if run == nil || !run.Success() {
		t.Fatalf("records should still pass: %+v", run)
	}
	if finish(run, err) == nil {
		t.Error("finish() = nil, want the teardown error")
	}

	session, err := report.ReadSessionResults(filepath.Join(out, report.SessionsDir, "session-0.json"))
	if err != nil {
		t.Fatalf("session results not flushed: %v", err)
	}
	if len(session) != 1 || session[0].CaseID != "locked_out_user" {
		t.Errorf("session results = %+v", session)
	}
	if _, err := os.Stat(filepath.Join(out, report.ResultsFile)); err != nil {
		t.Errorf("results.json missing: %v", err)
	}
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	missingCol := writeFile(t, dir, "missing.csv", "test_case,username,expected_result\nx,standard_user,success\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no matching records", []string{"--data", filepath.Join(testdata, "login.csv"), "--filter", "nothing"}, "no records"},
		{"rejected data", []string{"--data", missingCol}, "password"},
		{"unknown scenario", []string{"--data", filepath.Join(testdata, "login.csv"), "--scenario", "nope"}, "unknown scenario"},
		{"unknown driver", []string{"--data", filepath.Join(testdata, "login.csv"), "--driver", "carrier-pigeon"}, "driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			args := append([]string{"pageflow", "run", "--output", filepath.Join(dir, tt.name)}, tt.args...)
			err := newTestApp(&buf).Run(args)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[],"page":1}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	data := writeFile(t, dir, "api.json", `{"users": [
  {"id": "list", "description": "list users", "path": "/api/users", "expect_status": 200, "expect_keys": ["data", "page"]},
  {"id": "missing", "description": "unknown path", "path": "/api/nope", "expect_status": 404}
]}`)

	var buf bytes.Buffer
	err := newTestApp(&buf).Run([]string{"pageflow", "api",
		"--data", data,
		"--base-url", srv.URL,
		"--output", filepath.Join(dir, "out"),
	})
	if err != nil {
		t.Fatalf("api run failed: %v\n%s", err, buf.String())
	}
	if !strings.Contains(buf.String(), "2 passing") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestAPI_RequiresBaseURL(t *testing.T) {
	t.Setenv("PAGEFLOW_API_BASE_URL", "")
	var buf bytes.Buffer
	err := newTestApp(&buf).Run([]string{"pageflow", "api", "--data", filepath.Join(testdata, "api.json")})
	if err == nil || !strings.Contains(err.Error(), "base-url") {
		t.Errorf("expected base-url error, got %v", err)
	}
}

func TestValidateCommand(t *testing.T) {
	var buf bytes.Buffer
	err := newTestApp(&buf).Run([]string{"pageflow", "--no-ansi", "validate",
		filepath.Join(testdata, "login.csv"),
		filepath.Join(testdata, "checkout_flow.yaml"),
	})
	if err != nil {
		t.Fatalf("validate failed: %v\n%s", err, buf.String())
	}
	if !strings.Contains(buf.String(), "(8 records)") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}

	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.csv", "test_case,username\nx,y\n")
	buf.Reset()
	err = newTestApp(&buf).Run([]string{"pageflow", "validate", bad})
	if code := exitCode(err); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(buf.String(), "bad.csv") {
		t.Errorf("rejection not reported:\n%s", buf.String())
	}

	if err := newTestApp(&buf).Run([]string{"pageflow", "validate"}); err == nil {
		t.Error("expected error without paths")
	}
}

func TestScenariosCommand(t *testing.T) {
	var buf bytes.Buffer
	if err := newTestApp(&buf).Run([]string{"pageflow", "scenarios"}); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "api\ncart\nlogin\n"; got != want {
		t.Errorf("scenarios = %q, want %q", got, want)
	}
}

func TestGlobalFlags(t *testing.T) {
	var buf bytes.Buffer
	if err := newTestApp(&buf).Run([]string{"pageflow", "-v"}); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "pageflow version "+Version+"\n"; got != want {
		t.Errorf("-v = %q, want %q", got, want)
	}

	buf.Reset()
	if err := newTestApp(&buf).Run([]string{"pageflow", "--verbose", "--no-ansi", "scenarios"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "login\n") {
		t.Errorf("scenarios with --verbose = %q", buf.String())
	}
}

func TestResolveOutputDir(t *testing.T) {
	if got := resolveOutputDir("./custom", "reports"); got != "./custom" {
		t.Errorf("explicit output = %q", got)
	}
	dir := resolveOutputDir("", "")
	if !strings.HasPrefix(dir, "reports"+string(filepath.Separator)) {
		t.Errorf("default dir = %q, want reports/<timestamp>", dir)
	}
	if dir := resolveOutputDir("", "out"); filepath.Dir(dir) != "out" {
		t.Errorf("base dir = %q, want out/<timestamp>", dir)
	}
}

func TestParseEnvVars(t *testing.T) {
	got := parseEnvVars([]string{"USER=standard_user", "URL=http://x?a=b", "broken", "=empty"})
	if len(got) != 2 {
		t.Fatalf("got %d vars, want 2: %v", len(got), got)
	}
	if got["USER"] != "standard_user" {
		t.Errorf("USER = %q", got["USER"])
	}
	if got["URL"] != "http://x?a=b" {
		t.Errorf("URL = %q", got["URL"])
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{59 * time.Second, "59.0s"},
		{125 * time.Second, "2m 5s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestDetectCI(t *testing.T) {
	env := func(m map[string]string) func(string) (string, bool) {
		return func(k string) (string, bool) {
			v, ok := m[k]
			return v, ok
		}
	}

	if ci := detectCI(env(nil)); ci != nil {
		t.Errorf("expected no CI, got %+v", ci)
	}

	gh := detectCI(env(map[string]string{
		"GITHUB_ACTIONS":    "true",
		"GITHUB_RUN_ID":     "42",
		"GITHUB_SERVER_URL": "https://github.com",
		"GITHUB_REPOSITORY": "acme/shop",
		"GITHUB_SHA":        "abc123",
	}))
	if gh == nil || gh.Provider != "github" {
		t.Fatalf("github not detected: %+v", gh)
	}
	if gh.BuildURL != "https://github.com/acme/shop/actions/runs/42" {
		t.Errorf("BuildURL = %q", gh.BuildURL)
	}

	if ci := detectCI(env(map[string]string{"GITLAB_CI": "true", "CI_PIPELINE_ID": "7"})); ci == nil || ci.Provider != "gitlab" || ci.BuildID != "7" {
		t.Errorf("gitlab not detected: %+v", ci)
	}
	if ci := detectCI(env(map[string]string{"CI": "1"})); ci == nil || ci.Provider != "generic" {
		t.Errorf("generic CI not detected: %+v", ci)
	}
	if ci := detectCI(env(map[string]string{"CI": "false"})); ci != nil {
		t.Errorf("CI=false should not count: %+v", ci)
	}
}

func TestPrinter_RecordEnd(t *testing.T) {
	old := colorsEnabled
	colorsEnabled = false
	defer func() { colorsEnabled = old }()

	var buf bytes.Buffer
	p := newPrinter(&buf, false)
	p.recordEnd(0, 2, core.ExecutionResult{CaseID: "ok", Status: core.StatusPassed, Attempts: 2, Duration: 1200 * time.Millisecond})
	p.recordEnd(1, 2, core.ExecutionResult{CaseID: "bad", Status: core.StatusFailed, Message: "text mismatch\nmore", Attempts: 1})

	got := buf.String()
	for _, want := range []string{"✓ ok (1.2s) (flaky, 2 attempts)", "✗ bad", "╰─ text mismatch\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "more") {
		t.Errorf("only the first message line should print:\n%s", got)
	}
}

func TestColor(t *testing.T) {
	old := colorsEnabled
	defer func() { colorsEnabled = old }()

	colorsEnabled = true
	if got := color(colorGreen); got != colorGreen {
		t.Errorf("color enabled = %q", got)
	}
	colorsEnabled = false
	if got := color(colorGreen); got != "" {
		t.Errorf("color disabled = %q", got)
	}
}
