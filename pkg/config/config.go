// Package config loads pageflow settings from config.yaml, .env files and
// PAGEFLOW_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PAGEFLOW_"

// Config represents the workspace configuration (config.yaml).
type Config struct {
	Driver    DriverConfig    `yaml:"driver"`
	Browser   BrowserConfig   `yaml:"browser"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
	Data      DataConfig      `yaml:"data"`
	Output    OutputConfig    `yaml:"output"`
	Retry     RetryConfig     `yaml:"retry"`
	HTTP      HTTPConfig      `yaml:"http"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`

	// Env is passed to flows as variables.
	Env map[string]string `yaml:"env"`
}

// DriverConfig selects the browser backend.
type DriverConfig struct {
	Name      string `yaml:"name"`      // mock, webdriver, playwright
	ServerURL string `yaml:"serverUrl"` // webdriver endpoint
	Install   bool   `yaml:"install"`   // playwright: download browsers
}

// BrowserConfig controls the launched browser.
type BrowserConfig struct {
	Name     string   `yaml:"name"`
	Headless bool     `yaml:"headless"`
	Width    int      `yaml:"width"`
	Height   int      `yaml:"height"`
	Args     []string `yaml:"args"`
	BaseURL  string   `yaml:"baseUrl"`
}

// TimeoutConfig holds wait and record budgets.
type TimeoutConfig struct {
	Action Duration `yaml:"action"`
	Poll   Duration `yaml:"poll"`
	Record Duration `yaml:"record"`
}

// DataConfig tunes data loading.
type DataConfig struct {
	Schema  string   `yaml:"schema"`
	Buckets []string `yaml:"buckets"`
	Sheet   string   `yaml:"sheet"`
	Filter  string   `yaml:"filter"` // keep records with this expected_result
}

// OutputConfig selects where reports and artifacts go.
type OutputConfig struct {
	Dir           string `yaml:"dir"`
	CaptureOnPass bool   `yaml:"captureOnPass"`
	Screenshots   *bool  `yaml:"screenshots"`
	PageSource    *bool  `yaml:"pageSource"`
}

// RetryConfig controls record-level retries.
type RetryConfig struct {
	Records    int  `yaml:"records"`
	StopOnFail bool `yaml:"stopOnFail"`
}

// HTTPConfig configures the API client.
type HTTPConfig struct {
	BaseURL       string            `yaml:"baseUrl"`
	Timeout       Duration          `yaml:"timeout"`
	MaxAttempts   int               `yaml:"maxAttempts"`
	RateLimit     float64           `yaml:"rateLimit"`
	Headers       map[string]string `yaml:"headers"`
	SkipOnBlocked bool              `yaml:"skipOnBlocked"`
}

// MetricsConfig enables the Prometheus textfile.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TelemetryConfig enables span export.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Duration reads YAML values like "15s" or plain seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return v, nil
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Driver:  DriverConfig{Name: "mock", ServerURL: "http://localhost:9515"},
		Browser: BrowserConfig{Name: "chrome", Width: 1280, Height: 800, BaseURL: "https://www.saucedemo.com"},
		Timeouts: TimeoutConfig{
			Action: Duration(15 * time.Second),
			Poll:   Duration(500 * time.Millisecond),
			Record: Duration(2 * time.Minute),
		},
		Output: OutputConfig{Dir: "reports"},
		HTTP: HTTPConfig{
			Timeout:     Duration(30 * time.Second),
			MaxAttempts: 3,
		},
		Log: LogConfig{Level: "info", Format: "console"},
		Env: map[string]string{},
	}
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithCause(fmt.Errorf("%s: %w", path, err))
	}
	if cfg.Env == nil {
		cfg.Env = map[string]string{}
	}
	return cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"config.yaml", "config.yml", "pageflow.yaml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	// No config file found, use defaults
	return Default(), nil
}

// LoadEnvFile loads a dotenv file into the process environment without
// overriding variables that are already set. A missing default .env is not
// an error; a missing explicit file is.
func LoadEnvFile(path string, explicit bool) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// ApplyEnv overlays PAGEFLOW_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var errs []string
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, EnvPrefix+name)
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, EnvPrefix+name)
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *Duration) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, EnvPrefix+name)
				return
			}
			*dst = Duration(d)
		}
	}

	str("DRIVER", &c.Driver.Name)
	str("WEBDRIVER_URL", &c.Driver.ServerURL)
	str("BROWSER", &c.Browser.Name)
	str("BASE_URL", &c.Browser.BaseURL)
	boolean("HEADLESS", &c.Browser.Headless)
	integer("WINDOW_WIDTH", &c.Browser.Width)
	integer("WINDOW_HEIGHT", &c.Browser.Height)
	duration("ACTION_TIMEOUT", &c.Timeouts.Action)
	duration("POLL_INTERVAL", &c.Timeouts.Poll)
	duration("RECORD_TIMEOUT", &c.Timeouts.Record)
	str("OUTPUT_DIR", &c.Output.Dir)
	integer("RETRIES", &c.Retry.Records)
	str("API_BASE_URL", &c.HTTP.BaseURL)
	boolean("SKIP_ON_BLOCKED", &c.HTTP.SkipOnBlocked)
	boolean("METRICS", &c.Metrics.Enabled)
	boolean("TELEMETRY", &c.Telemetry.Enabled)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if len(errs) > 0 {
		return core.ErrInvalidConfig.WithMessage("invalid environment override: " + strings.Join(errs, ", "))
	}
	return nil
}

// IsCI reports whether a CI environment is detected.
func IsCI(lookup func(string) (string, bool)) bool {
	for _, name := range []string{"CI", "GITHUB_ACTIONS"} {
		if v, ok := lookup(name); ok && v != "" && v != "false" && v != "0" {
			return true
		}
	}
	return false
}

// ApplyCI forces a headless 1920x1080 browser when running under CI.
func (c *Config) ApplyCI(lookup func(string) (string, bool)) bool {
	if !IsCI(lookup) {
		return false
	}
	c.Browser.Headless = true
	c.Browser.Width = 1920
	c.Browser.Height = 1080
	return true
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	var problems []string
	switch c.Driver.Name {
	case "mock", "webdriver", "playwright":
	default:
		problems = append(problems, fmt.Sprintf("unknown driver %q", c.Driver.Name))
	}
	if c.Driver.Name == "webdriver" && c.Driver.ServerURL == "" {
		problems = append(problems, "webdriver needs driver.serverUrl")
	}
	if c.Timeouts.Action.Std() <= 0 {
		problems = append(problems, "timeouts.action must be positive")
	}
	if c.Timeouts.Poll.Std() <= 0 {
		problems = append(problems, "timeouts.poll must be positive")
	}
	if c.Timeouts.Poll.Std() > c.Timeouts.Action.Std() {
		problems = append(problems, "timeouts.poll must not exceed timeouts.action")
	}
	if c.Retry.Records < 0 {
		problems = append(problems, "retry.records must not be negative")
	}
	if c.HTTP.MaxAttempts < 1 {
		problems = append(problems, "http.maxAttempts must be at least 1")
	}
	if len(problems) > 0 {
		return core.ErrInvalidConfig.WithMessage("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

// ArtifactConfig derives the capture settings.
func (c *Config) ArtifactConfig() core.ArtifactConfig {
	a := core.DefaultArtifactConfig()
	a.CaptureOnSuccess = c.Output.CaptureOnPass
	if c.Output.Screenshots != nil {
		a.Screenshot = *c.Output.Screenshots
	}
	if c.Output.PageSource != nil {
		a.PageSource = *c.Output.PageSource
	}
	return a
}
