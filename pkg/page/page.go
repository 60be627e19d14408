// Package page holds page models for the demo storefront. Models group the
// locators of one screen and expose business operations built only on
// *action.Executor; none of them touches the driver directly.
package page

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/pageflow/pkg/action"
	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/wait"
)

// Model is any page model.
type Model interface {
	Name() string
}

// Base carries what every model needs.
type Base struct {
	*action.Executor
	BaseURL string
}

// NewBase creates a Base. baseURL has its trailing slash removed.
func NewBase(e *action.Executor, baseURL string) Base {
	return Base{Executor: e, BaseURL: strings.TrimRight(baseURL, "/")}
}

// URL joins path onto the base URL.
func (b Base) URL(path string) string {
	return b.BaseURL + "/" + strings.TrimLeft(path, "/")
}

// Open navigates to path relative to the base URL.
func (b Base) Open(ctx context.Context, path string) error {
	return b.Navigate(ctx, b.URL(path))
}

// WaitForURL waits until the current URL contains fragment.
func (b Base) WaitForURL(ctx context.Context, fragment string) error {
	return b.Await(ctx, wait.URLContains(fragment))
}

// OnURL reports whether the current URL contains fragment, without waiting.
func (b Base) OnURL(ctx context.Context, fragment string) (bool, error) {
	url, err := b.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(url, fragment), nil
}

// presentWithin waits up to d for loc. A plain timeout reports false.
func (b Base) presentWithin(ctx context.Context, loc core.Locator, d time.Duration) (bool, error) {
	err := b.AwaitWithin(ctx, wait.PresenceOf(loc), d)
	if err == nil {
		return true, nil
	}
	var wte *core.WaitTimeoutError
	if errors.As(err, &wte) && !wte.Cancelled() {
		return false, nil
	}
	return false, err
}

// Factory builds a model bound to an executor.
type Factory func(e *action.Executor, baseURL string) Model

// Registry maps model names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding the storefront models.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(LoginName, func(e *action.Executor, u string) Model { return NewLoginPage(e, u) })
	r.MustRegister(InventoryName, func(e *action.Executor, u string) Model { return NewInventoryPage(e, u) })
	r.MustRegister(CartName, func(e *action.Executor, u string) Model { return NewCartPage(e, u) })
	return r
}

// Register adds a factory. Names are unique.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("page: %w: name and factory are required", core.ErrInvalidConfig)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("page: %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// New builds the named model.
func (r *Registry) New(name string, e *action.Executor, baseURL string) (Model, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("page: unknown model %q", name)
	}
	return f(e, baseURL), nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get builds the named model and asserts its type.
func Get[T Model](r *Registry, name string, e *action.Executor, baseURL string) (T, error) {
	var zero T
	m, err := r.New(name, e, baseURL)
	if err != nil {
		return zero, err
	}
	t, ok := m.(T)
	if !ok {
		return zero, fmt.Errorf("page: model %q is %T, not %T", name, m, zero)
	}
	return t, nil
}
