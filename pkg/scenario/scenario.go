// Package scenario holds the built-in scenarios and resolves scenario names
// given on the command line.
package scenario

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devicelab-dev/pageflow/pkg/executor"
	"github.com/devicelab-dev/pageflow/pkg/flow"
	"github.com/devicelab-dev/pageflow/pkg/httpclient"
)

// Options carries what built-in scenarios need besides the session.
type Options struct {
	// HTTP is used by the api scenario.
	HTTP *httpclient.Client
	// SkipOnBlocked turns retry exhaustion on 401/403/429 into SKIPPED.
	SkipOnBlocked bool
	// LoginUser and LoginPassword are used by scenarios that need a
	// logged-in session. Defaults to the standard demo user.
	LoginUser     string
	LoginPassword string
}

type factory func(opts Options) (executor.Scenario, error)

var builtins = map[string]factory{
	LoginName: func(Options) (executor.Scenario, error) { return &LoginScenario{}, nil },
	CartName: func(opts Options) (executor.Scenario, error) {
		return &CartScenario{User: opts.LoginUser, Password: opts.LoginPassword}, nil
	},
	APIName: func(opts Options) (executor.Scenario, error) {
		if opts.HTTP == nil {
			return nil, fmt.Errorf("scenario %q needs an HTTP client", APIName)
		}
		return &APIScenario{Client: opts.HTTP, SkipOnBlocked: opts.SkipOnBlocked}, nil
	},
}

// Names lists the built-in scenarios.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves name to a scenario. A path ending in .yaml or .yml is
// parsed as a flow file.
func Lookup(name string, opts Options) (executor.Scenario, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		f, err := flow.ParseFile(name)
		if err != nil {
			return nil, err
		}
		return executor.NewFlowScenario(f), nil
	}
	build, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q (built-in: %s; or a flow .yaml file)", name, strings.Join(Names(), ", "))
	}
	return build(opts)
}
