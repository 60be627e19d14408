package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/config"
	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/driver/mock"
	"github.com/devicelab-dev/pageflow/pkg/driver/playwright"
	"github.com/devicelab-dev/pageflow/pkg/driver/webdriver"
	"github.com/devicelab-dev/pageflow/pkg/report"
)

// createDriver opens the backend named by cfg.Driver.Name.
func createDriver(ctx context.Context, cfg *config.Config, log *zap.Logger) (core.Driver, error) {
	switch cfg.Driver.Name {
	case "mock":
		return mock.New(mock.Config{BaseURL: cfg.Browser.BaseURL, Logger: log}), nil

	case "webdriver":
		return webdriver.New(ctx, webdriver.Config{
			ServerURL:    cfg.Driver.ServerURL,
			Browser:      cfg.Browser.Name,
			Headless:     cfg.Browser.Headless,
			WindowWidth:  cfg.Browser.Width,
			WindowHeight: cfg.Browser.Height,
			Args:         cfg.Browser.Args,
			Logger:       log,
		})

	case "playwright":
		return playwright.New(ctx, playwright.Config{
			Browser:      cfg.Browser.Name,
			Headless:     cfg.Browser.Headless,
			WindowWidth:  cfg.Browser.Width,
			WindowHeight: cfg.Browser.Height,
			Args:         cfg.Browser.Args,
			Install:      cfg.Driver.Install,
			DriverDir:    config.GetDriversDir("playwright"),
			Logger:       log,
		})
	}
	return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown driver %q (use mock, webdriver or playwright)", cfg.Driver.Name))
}

func newRunID() string { return uuid.NewString() }

// detectCI reads build metadata from well-known CI variables. Nil outside CI.
func detectCI(lookup func(string) (string, bool)) *report.CI {
	get := func(name string) string {
		v, _ := lookup(name)
		return v
	}
	switch {
	case get("GITHUB_ACTIONS") != "":
		ci := &report.CI{
			Provider: "github",
			BuildID:  get("GITHUB_RUN_ID"),
			Branch:   get("GITHUB_REF_NAME"),
			Commit:   get("GITHUB_SHA"),
		}
		if server, repo := get("GITHUB_SERVER_URL"), get("GITHUB_REPOSITORY"); server != "" && repo != "" && ci.BuildID != "" {
			ci.BuildURL = server + "/" + repo + "/actions/runs/" + ci.BuildID
		}
		return ci
	case get("GITLAB_CI") != "":
		return &report.CI{
			Provider: "gitlab",
			BuildID:  get("CI_PIPELINE_ID"),
			BuildURL: get("CI_PIPELINE_URL"),
			Branch:   get("CI_COMMIT_REF_NAME"),
			Commit:   get("CI_COMMIT_SHA"),
		}
	case get("JENKINS_URL") != "":
		return &report.CI{
			Provider: "jenkins",
			BuildID:  get("BUILD_NUMBER"),
			BuildURL: get("BUILD_URL"),
			Branch:   get("GIT_BRANCH"),
			Commit:   get("GIT_COMMIT"),
		}
	case config.IsCI(lookup):
		return &report.CI{Provider: "generic"}
	}
	return nil
}

// parseEnvVars parses KEY=VALUE pairs; entries without "=" are ignored.
func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 && parts[0] != "" {
			result[parts[0]] = parts[1]
		}
	}
	return result
}
