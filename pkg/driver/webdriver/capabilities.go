package webdriver

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// Capabilities builds the alwaysMatch capabilities for cfg.Browser.
func Capabilities(cfg Config) (map[string]interface{}, error) {
	browser := strings.ToLower(cfg.Browser)
	args := append([]string(nil), cfg.Args...)

	switch browser {
	case "chrome", "chromium", "edge", "msedge":
		if cfg.Headless {
			args = append(args, "--headless=new")
		}
		if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
			args = append(args, fmt.Sprintf("--window-size=%d,%d", cfg.WindowWidth, cfg.WindowHeight))
		}
		name, optionsKey := "chrome", "goog:chromeOptions"
		if browser == "edge" || browser == "msedge" {
			name, optionsKey = "MicrosoftEdge", "ms:edgeOptions"
		}
		return map[string]interface{}{
			"browserName": name,
			optionsKey:    map[string]interface{}{"args": args},
		}, nil

	case "firefox":
		if cfg.Headless {
			args = append(args, "-headless")
		}
		if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
			args = append(args, "-width", fmt.Sprint(cfg.WindowWidth), "-height", fmt.Sprint(cfg.WindowHeight))
		}
		return map[string]interface{}{
			"browserName":        "firefox",
			"moz:firefoxOptions": map[string]interface{}{"args": args},
		}, nil
	}
	return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("webdriver: unsupported browser %q", cfg.Browser))
}
