package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/config"
	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/data"
	"github.com/devicelab-dev/pageflow/pkg/executor"
	"github.com/devicelab-dev/pageflow/pkg/httpclient"
	"github.com/devicelab-dev/pageflow/pkg/logger"
	"github.com/devicelab-dev/pageflow/pkg/metrics"
	"github.com/devicelab-dev/pageflow/pkg/report"
	"github.com/devicelab-dev/pageflow/pkg/scenario"
	"github.com/devicelab-dev/pageflow/pkg/telemetry"
)

var runFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "scenario",
		Aliases: []string{"s"},
		Usage:   "Built-in scenario name (login, cart, api) or a flow file",
		Value:   scenario.LoginName,
	},
	&cli.StringFlag{
		Name:     "data",
		Usage:    "Data file (.csv, .xlsx, .json, .yaml)",
		Required: true,
	},
	&cli.StringFlag{
		Name:    "driver",
		Aliases: []string{"d"},
		Usage:   "Driver to use (mock, webdriver, playwright)",
	},
	&cli.StringFlag{
		Name:  "webdriver-url",
		Usage: "WebDriver server URL (for webdriver driver)",
	},
	&cli.StringFlag{
		Name:  "browser",
		Usage: "Browser name (chrome, firefox, edge, webkit)",
	},
	&cli.BoolFlag{
		Name:  "headless",
		Usage: "Run the browser headless",
	},
	&cli.StringFlag{
		Name:  "base-url",
		Usage: "Site under test",
	},
	&cli.IntFlag{
		Name:  "parallel",
		Usage: "Run records on N browser sessions",
		Value: 1,
	},
	&cli.StringFlag{
		Name:  "output",
		Usage: "Output directory for reports (default: ./reports/<timestamp>)",
	},
	&cli.IntFlag{
		Name:  "retries",
		Usage: "Extra attempts for records that do not pass",
	},
	&cli.BoolFlag{
		Name:  "stop-on-fail",
		Usage: "Skip remaining records after the first failure",
	},
	&cli.StringFlag{
		Name:  "filter",
		Usage: "Only run records whose expected_result equals this value",
	},
	&cli.StringSliceFlag{
		Name:  "bucket",
		Usage: "Only load these buckets of a hierarchical file",
	},
	&cli.StringFlag{
		Name:  "schema",
		Usage: "JSON Schema checked against hierarchical data before loading",
	},
	&cli.StringSliceFlag{
		Name:    "env",
		Aliases: []string{"e"},
		Usage:   "Flow variables (KEY=VALUE)",
	},
	&cli.BoolFlag{
		Name:  "metrics",
		Usage: "Write Prometheus metrics to <output>/metrics.prom",
	},
	&cli.BoolFlag{
		Name:  "trace",
		Usage: "Write OpenTelemetry spans to <output>/trace.jsonl",
	},
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Run a scenario once per data record",
	Description: `Run a built-in scenario or a flow file against every record of a data file.

Reports are written to the output directory:
  - results.json  every record outcome
  - report.json   live index, updated as records finish
  - artifacts/    screenshots and page sources of failing records
  - metrics.prom  with --metrics

Examples:
  pageflow run --scenario login --data testdata/login.csv
  pageflow run --scenario login --data testdata/login.csv --filter locked
  pageflow run -s cart --data testdata/products.json --bucket compras_multiples
  pageflow run -s flows/checkout.yaml --data testdata/login.csv -e USER=standard_user`,
	Flags:  runFlags,
	Action: runAction,
}

var apiCommand = &cli.Command{
	Name:  "api",
	Usage: "Run API records against a base URL",
	Description: `Each record describes one request: method, path, body, expect_status,
expect_keys and max_ms. No browser is started.

Example:
  pageflow api --data testdata/api.json --base-url https://reqres.in`,
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "data", Usage: "API data file", Required: true},
		&cli.StringFlag{Name: "base-url", Usage: "API base URL"},
		&cli.StringFlag{Name: "output", Usage: "Output directory for reports"},
		&cli.StringFlag{Name: "filter", Usage: "Only run records with this expected_result"},
		&cli.StringSliceFlag{Name: "bucket", Usage: "Only load these buckets"},
		&cli.StringSliceFlag{Name: "header", Aliases: []string{"H"}, Usage: "Extra request header (Name=Value)"},
		&cli.IntFlag{Name: "retries", Usage: "Extra attempts for records that do not pass"},
		&cli.BoolFlag{Name: "skip-on-blocked", Usage: "Report 401/403/429 exhaustion as SKIPPED"},
		&cli.Float64Flag{Name: "rate", Usage: "Client-side rate limit in requests per second"},
		&cli.BoolFlag{Name: "metrics", Usage: "Write Prometheus metrics"},
	},
	Action: apiAction,
}

// RunConfig is everything a run needs after flags and config are merged.
type RunConfig struct {
	Config    *config.Config
	Scenario  string
	DataFile  string
	OutputDir string
	Parallel  int
	Filter    string
	Verbose   bool

	// API runs have no browser under test.
	API bool

	Logger *zap.Logger
	Out    io.Writer

	// NewDriver opens the driver for one session. Defaults to createDriver.
	NewDriver func(ctx context.Context, cfg *config.Config, log *zap.Logger) (core.Driver, error)
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyRunFlags(c, cfg)

	rc := &RunConfig{
		Config:    cfg,
		Scenario:  c.String("scenario"),
		DataFile:  c.String("data"),
		OutputDir: c.String("output"),
		Parallel:  c.Int("parallel"),
		Filter:    firstNonEmpty(c.String("filter"), cfg.Data.Filter),
		Verbose:   c.Bool("verbose"),
		Out:       c.App.Writer,
	}
	return finish(executeRun(c.Context, rc))
}

func apiAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if v := c.String("base-url"); v != "" {
		cfg.HTTP.BaseURL = v
	}
	if c.IsSet("bucket") {
		cfg.Data.Buckets = c.StringSlice("bucket")
	}
	if c.IsSet("retries") {
		cfg.Retry.Records = c.Int("retries")
	}
	if c.IsSet("skip-on-blocked") {
		cfg.HTTP.SkipOnBlocked = c.Bool("skip-on-blocked")
	}
	if c.IsSet("rate") {
		cfg.HTTP.RateLimit = c.Float64("rate")
	}
	if c.IsSet("metrics") {
		cfg.Metrics.Enabled = c.Bool("metrics")
	}
	if cfg.HTTP.Headers == nil {
		cfg.HTTP.Headers = map[string]string{}
	}
	for k, v := range parseEnvVars(c.StringSlice("header")) {
		cfg.HTTP.Headers[k] = v
	}
	if cfg.HTTP.BaseURL == "" {
		return fmt.Errorf("--base-url or http.baseUrl is required")
	}

	rc := &RunConfig{
		Config:    cfg,
		Scenario:  scenario.APIName,
		DataFile:  c.String("data"),
		OutputDir: c.String("output"),
		Parallel:  1,
		Filter:    c.String("filter"),
		Verbose:   c.Bool("verbose"),
		API:       true,
		Out:       c.App.Writer,
	}
	return finish(executeRun(c.Context, rc))
}

// finish maps a run onto the exit code: 1 unless every record passed or
// was skipped.
func finish(run *core.RunResult, err error) error {
	if err != nil {
		return err
	}
	if !run.Success() {
		return cli.Exit("", 1)
	}
	return nil
}

// loadConfig merges defaults, the config file, .env and PAGEFLOW_*
// variables, then the global flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	envFile := c.String("env-file")
	if err := config.LoadEnvFile(envFile, envFile != ""); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.ApplyCI(os.LookupEnv)

	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := c.String("log-format"); v != "" {
		cfg.Log.Format = v
	}
	if c.Bool("verbose") {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func applyRunFlags(c *cli.Context, cfg *config.Config) {
	if v := c.String("driver"); v != "" {
		cfg.Driver.Name = v
	}
	if v := c.String("webdriver-url"); v != "" {
		cfg.Driver.ServerURL = v
	}
	if v := c.String("browser"); v != "" {
		cfg.Browser.Name = v
	}
	if c.IsSet("headless") {
		cfg.Browser.Headless = c.Bool("headless")
	}
	if v := c.String("base-url"); v != "" {
		cfg.Browser.BaseURL = v
	}
	if c.IsSet("retries") {
		cfg.Retry.Records = c.Int("retries")
	}
	if c.IsSet("stop-on-fail") {
		cfg.Retry.StopOnFail = c.Bool("stop-on-fail")
	}
	if c.IsSet("bucket") {
		cfg.Data.Buckets = c.StringSlice("bucket")
	}
	if v := c.String("schema"); v != "" {
		cfg.Data.Schema = v
	}
	if c.IsSet("metrics") {
		cfg.Metrics.Enabled = c.Bool("metrics")
	}
	if c.IsSet("trace") {
		cfg.Telemetry.Enabled = c.Bool("trace")
	}
	for k, v := range parseEnvVars(c.StringSlice("env")) {
		cfg.Env[k] = v
	}
}

// resolveOutputDir defaults to ./reports/<timestamp>.
func resolveOutputDir(output, base string) string {
	if output != "" {
		return output
	}
	if base == "" {
		base = "reports"
	}
	return filepath.Join(base, time.Now().Format("2006-01-02_15-04-05"))
}

// executeRun loads records, opens sessions, runs the scenario and writes
// the reports. The returned run is complete even when records failed.
func executeRun(parent context.Context, rc *RunConfig) (*core.RunResult, error) {
	cfg := rc.Config
	if rc.API {
		// API records never touch the page; the in-process driver stands in
		// for the session and failure artifacts would be meaningless.
		cfg.Driver.Name = "mock"
		cfg.Output.Screenshots = boolPtr(false)
		cfg.Output.PageSource = boolPtr(false)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rc.Parallel < 1 {
		rc.Parallel = 1
	}
	if rc.Out == nil {
		rc.Out = os.Stdout
	}
	if rc.NewDriver == nil {
		rc.NewDriver = createDriver
	}

	// 1. Output directory and logging
	rc.OutputDir = resolveOutputDir(rc.OutputDir, cfg.Output.Dir)
	if err := os.MkdirAll(rc.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	log := rc.Logger
	if log == nil {
		logPath := cfg.Log.File
		if logPath == "" {
			logPath = filepath.Join(rc.OutputDir, "pageflow.log")
		}
		err := logger.Configure(logger.Options{
			Level:    cfg.Log.Level,
			Format:   cfg.Log.Format,
			FilePath: logPath,
			Quiet:    !rc.Verbose,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		log = logger.L()
		defer logger.Close()
		logger.Info("pageflow %s writing to %s", Version, rc.OutputDir)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Records
	records, err := data.Load(rc.DataFile, data.Options{
		Schema:  cfg.Data.Schema,
		Buckets: cfg.Data.Buckets,
		Sheet:   cfg.Data.Sheet,
	})
	if err != nil {
		logger.Error("data file %s rejected: %v", rc.DataFile, err)
		return nil, err
	}
	if rc.Filter != "" {
		records = data.FilterByExpected(records, rc.Filter)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to run in %s", rc.DataFile)
	}
	log.Info("records loaded", zap.String("file", rc.DataFile), zap.Int("count", len(records)))

	// 3. Observability
	collector := metrics.NewCollector()
	runID := newRunID()
	tracePath := cfg.Telemetry.Path
	if tracePath == "" {
		tracePath = filepath.Join(rc.OutputDir, report.TraceFile)
	}
	tel, shutdownTrace, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Path:        tracePath,
		ServiceName: "pageflow",
		RunID:       runID,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdownTrace(flushCtx); err != nil {
			log.Warn("trace flush failed", zap.Error(err))
		}
	}()

	// 4. Scenario
	client := httpclient.New(httpclient.Config{
		BaseURL:     cfg.HTTP.BaseURL,
		Timeout:     cfg.HTTP.Timeout.Std(),
		MaxAttempts: cfg.HTTP.MaxAttempts,
		RateLimit:   cfg.HTTP.RateLimit,
		Headers:     cfg.HTTP.Headers,
		Logger:      log,
		Observer:    collector.ObserveHTTP,
	})
	sc, err := scenario.Lookup(rc.Scenario, scenario.Options{
		HTTP:          client,
		SkipOnBlocked: cfg.HTTP.SkipOnBlocked,
		LoginUser:     cfg.Env["LOGIN_USER"],
		LoginPassword: cfg.Env["LOGIN_PASSWORD"],
	})
	if err != nil {
		return nil, err
	}

	// 5. Sessions
	sessions, err := openSessions(ctx, rc, runID, collector, tel, log)
	if err != nil {
		return nil, err
	}
	// Covers early returns. The result is ignored here; Close caches it for
	// the teardown below.
	defer func() { _ = closeSessions(sessions) }()
	platform := sessions[0].Info()
	collector.SetRunInfo(runID, platform.Driver, sc.Name())

	// 6. Live index
	index := report.NewIndexWriter(rc.OutputDir, report.BuildSkeleton(records, report.BuilderConfig{
		RunID:         runID,
		Scenario:      sc.Name(),
		DataFile:      rc.DataFile,
		Platform:      platform,
		CI:            detectCI(os.LookupEnv),
		RunnerVersion: Version,
	}), log)
	if err := index.Start(); err != nil {
		return nil, fmt.Errorf("failed to write report index: %w", err)
	}

	// 7. Execute
	p := newPrinter(rc.Out, rc.Verbose)
	p.header(sc.Name(), rc.DataFile, platform, len(records), rc.Parallel)

	runner := executor.NewRunner(executor.RunnerConfig{
		RecordTimeout: cfg.Timeouts.Record.Std(),
		Retries:       cfg.Retry.Records,
		StopOnFail:    cfg.Retry.StopOnFail,
		Index:         index,
		OnRecordStart: p.recordStart,
		OnRecordEnd:   p.recordEnd,
	})

	runCtx, span := tel.StartSpan(ctx, "run", map[string]string{
		"scenario": sc.Name(),
		"data":     rc.DataFile,
		"driver":   platform.Driver,
	})
	start := time.Now()
	results, err := runner.RunParallel(runCtx, sessions, sc, records)
	if err != nil {
		tel.End(span, "errored", err)
		return nil, errors.Join(err, closeSessions(sessions))
	}

	run := &core.RunResult{
		RunID:     runID,
		Scenario:  sc.Name(),
		Data:      rc.DataFile,
		Platform:  platform,
		StartTime: start,
		Duration:  time.Since(start),
		Results:   results,
	}
	run.ComputeSummary()
	runStatus := "passed"
	if !run.Success() {
		runStatus = "failed"
	}
	tel.End(span, runStatus, nil)

	// 8. Reports
	cancelled := ctx.Err() != nil
	if cancelled {
		logger.Warn("run interrupted after %d of %d records", countExecuted(results), len(records))
	}
	if err := index.End(cancelled); err != nil {
		log.Warn("failed to finalize report index", zap.Error(err))
	}
	resultsPath, err := report.WriteResults(rc.OutputDir, run)
	if err != nil {
		return nil, fmt.Errorf("failed to write results: %w", err)
	}
	var metricsPath string
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
		if metricsPath == "" {
			metricsPath = filepath.Join(rc.OutputDir, report.MetricsFile)
		}
		if err := collector.WriteTextfile(metricsPath); err != nil {
			log.Warn("failed to write metrics", zap.Error(err))
			metricsPath = ""
		}
	}

	// 9. Teardown flushes per-session results and closes the drivers. A
	// failure here fails the run whatever the records did.
	teardownErr := closeSessions(sessions)
	if teardownErr != nil {
		log.Error("session teardown failed", zap.Error(teardownErr))
	}

	log.Info("run finished",
		zap.String("run_id", runID),
		zap.Int("passed", run.Summary.Passed),
		zap.Int("failed", run.Summary.Failed),
		zap.Int("errored", run.Summary.Errored),
		zap.Int("skipped", run.Summary.Skipped),
		zap.Bool("cancelled", cancelled),
		zap.Duration("duration", run.Duration))

	p.summary(run)
	p.reports(resultsPath, index.Path(), metricsPath, cfg.Telemetry.Enabled, tracePath)
	if teardownErr != nil {
		return run, fmt.Errorf("session teardown: %w", teardownErr)
	}
	return run, nil
}

// openSessions creates one session per parallel slot. Sessions share the
// run ID and the record sequence. On error every session opened so far is
// closed.
func openSessions(ctx context.Context, rc *RunConfig, runID string, collector *metrics.Collector, tel *telemetry.Telemetry, log *zap.Logger) ([]*executor.Session, error) {
	cfg := rc.Config
	seq := new(atomic.Int64)
	var sessions []*executor.Session
	for i := 0; i < rc.Parallel; i++ {
		drv, err := rc.NewDriver(ctx, cfg, log.With(zap.Int("session", i)))
		if err == nil {
			var s *executor.Session
			s, err = executor.NewSession(executor.SessionConfig{
				Driver:        drv,
				BaseURL:       cfg.Browser.BaseURL,
				ActionTimeout: cfg.Timeouts.Action.Std(),
				PollInterval:  cfg.Timeouts.Poll.Std(),
				OutputDir:     rc.OutputDir,
				Artifacts:     cfg.ArtifactConfig(),
				Logger:        log.With(zap.Int("session", i)),
				Metrics:       collector,
				Telemetry:     tel,
				RunID:         runID,
				Sequence:      seq,
				Flush:         sessionFlusher(rc.OutputDir, i),
			})
			if err != nil {
				_ = drv.Close()
			} else {
				logger.Debug("session %d/%d opened on %s", i+1, rc.Parallel, s.Info().Driver)
				sessions = append(sessions, s)
				continue
			}
		}
		return nil, errors.Join(fmt.Errorf("session %d: %w", i, err), closeSessions(sessions))
	}
	return sessions, nil
}

func sessionFlusher(outputDir string, n int) func([]core.ExecutionResult) error {
	return func(results []core.ExecutionResult) error {
		_, err := report.WriteSessionResults(outputDir, n, results)
		return err
	}
}

// closeSessions closes every session and joins their errors.
func closeSessions(sessions []*executor.Session) error {
	var errs []error
	for i, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// countExecuted counts results that were not skipped.
func countExecuted(results []core.ExecutionResult) int {
	n := 0
	for _, r := range results {
		if r.Status != core.StatusSkipped {
			n++
		}
	}
	return n
}

func boolPtr(b bool) *bool { return &b }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
