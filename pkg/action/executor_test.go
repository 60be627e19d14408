package action

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/wait"
)

// field is an input element that accumulates keys like a browser does.
type field struct {
	mu        sync.Mutex
	value     string
	displayed bool
	enabled   bool
	clicks    int
}

func (f *field) Click(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks++
	return nil
}
func (f *field) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = ""
	return nil
}
func (f *field) SendKeys(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value += text
	return nil
}
func (f *field) Text(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, nil
}
func (f *field) IsDisplayed(context.Context) (bool, error) { return f.displayed, nil }
func (f *field) IsEnabled(context.Context) (bool, error)   { return f.enabled, nil }

type fakeDriver struct {
	elements map[string][]core.ElementHandle
	url      string
	scripts  []string
	findErr  error
}

func (d *fakeDriver) Find(_ context.Context, loc core.Locator) ([]core.ElementHandle, error) {
	if d.findErr != nil {
		return nil, d.findErr
	}
	return d.elements[loc.String()], nil
}
func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	d.url = url
	return nil
}
func (d *fakeDriver) CurrentURL(context.Context) (string, error) { return d.url, nil }
func (d *fakeDriver) Screenshot(context.Context) ([]byte, error) {
	return []byte{0x89, 'P', 'N', 'G'}, nil
}
func (d *fakeDriver) ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	d.scripts = append(d.scripts, script)
	if script == scriptPageSource {
		return "<html><body></body></html>", nil
	}
	if len(args) > 0 {
		if el, ok := args[0].(core.ElementHandle); ok {
			return true, el.Click(ctx)
		}
	}
	return nil, nil
}
func (d *fakeDriver) Close() error             { return nil }
func (d *fakeDriver) Info() *core.PlatformInfo { return &core.PlatformInfo{Driver: "fake"} }

func newExecutor(d core.Driver) *Executor {
	return New(wait.New(d), WithTimeout(100*time.Millisecond), WithInterval(10*time.Millisecond))
}

func TestTypeText_Idempotent(t *testing.T) {
	user := &field{displayed: true, enabled: true}
	d := &fakeDriver{elements: map[string][]core.ElementHandle{"id=user-name": {user}}}
	e := newExecutor(d)
	loc := core.ByID("user-name")

	require.NoError(t, e.TypeText(context.Background(), loc, "standard_user"))
	require.NoError(t, e.TypeText(context.Background(), loc, "standard_user"))

	got, err := e.ReadText(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, "standard_user", got)
}

func TestTypeText_IdempotentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.String().Draw(t, "initial")
		text := rapid.String().Draw(t, "text")
		times := rapid.IntRange(1, 4).Draw(t, "times")

		input := &field{value: initial, displayed: true, enabled: true}
		d := &fakeDriver{elements: map[string][]core.ElementHandle{"id=password": {input}}}
		e := newExecutor(d)

		for i := 0; i < times; i++ {
			if err := e.TypeText(context.Background(), core.ByID("password"), text); err != nil {
				t.Fatalf("TypeText() error = %v", err)
			}
		}
		if input.value != text {
			t.Fatalf("field = %q after %d calls, want %q", input.value, times, text)
		}
	})
}

func TestClick_FirstClickableMatch(t *testing.T) {
	hidden := &field{displayed: false, enabled: true}
	visible := &field{displayed: true, enabled: true}
	d := &fakeDriver{elements: map[string][]core.ElementHandle{"id=login-button": {hidden, visible}}}

	require.NoError(t, newExecutor(d).Click(context.Background(), core.ByID("login-button")))

	assert.Equal(t, 0, hidden.clicks)
	assert.Equal(t, 1, visible.clicks)
}

func TestClick_PreconditionTimeout(t *testing.T) {
	disabled := &field{displayed: true, enabled: false}
	d := &fakeDriver{elements: map[string][]core.ElementHandle{"id=login-button": {disabled}}}

	err := newExecutor(d).Click(context.Background(), core.ByID("login-button"))

	var ate *core.ActionTimeoutError
	require.ErrorAs(t, err, &ate)
	assert.Equal(t, "click", ate.Action)
	assert.Equal(t, core.ByID("login-button"), ate.Locator)
	require.NotNil(t, ate.Wait)
	assert.GreaterOrEqual(t, ate.Wait.Elapsed, 100*time.Millisecond)
	assert.Equal(t, 0, disabled.clicks)

	status, _ := core.Classify(err)
	assert.Equal(t, core.StatusErrored, status)
}

func TestReadText_Missing(t *testing.T) {
	_, err := newExecutor(&fakeDriver{}).ReadText(context.Background(), core.ByCSS("[data-test='error']"))

	var ate *core.ActionTimeoutError
	require.ErrorAs(t, err, &ate)
	assert.Equal(t, "read_text", ate.Action)
}

func TestAction_DriverFailureIsNotTimeout(t *testing.T) {
	connErr := &core.DriverConnectionError{Driver: "fake", Op: "find", Cause: errors.New("EOF")}
	d := &fakeDriver{findErr: connErr}

	err := newExecutor(d).Click(context.Background(), core.ByID("x"))

	assert.ErrorIs(t, err, connErr)
	var ate *core.ActionTimeoutError
	assert.False(t, errors.As(err, &ate))
}

func TestClickByScript(t *testing.T) {
	first := &field{displayed: true, enabled: true}
	second := &field{displayed: true, enabled: true}
	loc := core.ByXPath("//button[contains(text(), 'Add to cart')]")
	d := &fakeDriver{elements: map[string][]core.ElementHandle{loc.String(): {first, second}}}

	require.NoError(t, newExecutor(d).ClickByScript(context.Background(), loc, 1))

	assert.Equal(t, 0, first.clicks)
	assert.Equal(t, 1, second.clicks)
	assert.Equal(t, []string{scriptClick}, d.scripts)
}

func TestClickByScript_WaitsForIndexedEnabled(t *testing.T) {
	enabled := &field{displayed: true, enabled: true}
	disabled := &field{displayed: true}
	loc := core.ByXPath("//button[contains(text(), 'Add to cart')]")
	d := &fakeDriver{elements: map[string][]core.ElementHandle{loc.String(): {enabled, disabled}}}

	err := newExecutor(d).ClickByScript(context.Background(), loc, 1)

	var ate *core.ActionTimeoutError
	require.ErrorAs(t, err, &ate)
	assert.Equal(t, "click_script", ate.Action)
	assert.Equal(t, 0, enabled.clicks+disabled.clicks)
}

func TestClickByScript_HiddenButEnabled(t *testing.T) {
	link := &field{enabled: true}
	loc := core.ByID("reset_sidebar_link")
	d := &fakeDriver{elements: map[string][]core.ElementHandle{loc.String(): {link}}}

	require.NoError(t, newExecutor(d).ClickByScript(context.Background(), loc, 0))
	assert.Equal(t, 1, link.clicks)
}

func TestClickByScript_IndexOutOfRange(t *testing.T) {
	loc := core.ByXPath("//button")
	d := &fakeDriver{elements: map[string][]core.ElementHandle{loc.String(): {&field{}}}}

	err := newExecutor(d).ClickByScript(context.Background(), loc, 3)

	var ate *core.ActionTimeoutError
	require.ErrorAs(t, err, &ate)
}

func TestCountAndPresence(t *testing.T) {
	loc := core.ByClass("inventory_item")
	d := &fakeDriver{elements: map[string][]core.ElementHandle{loc.String(): {&field{}, &field{}}}}
	e := newExecutor(d)

	n, err := e.Count(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	present, err := e.IsPresent(context.Background(), core.ByClass("shopping_cart_badge"))
	require.NoError(t, err)
	assert.False(t, present)
}

func TestReadAll(t *testing.T) {
	loc := core.ByClass("inventory_item_name")
	d := &fakeDriver{elements: map[string][]core.ElementHandle{loc.String(): {
		&field{value: "Sauce Labs Backpack"}, &field{value: "Sauce Labs Bike Light"},
	}}}

	names, err := newExecutor(d).ReadAll(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sauce Labs Backpack", "Sauce Labs Bike Light"}, names)
}

func TestNavigateAndPageSource(t *testing.T) {
	d := &fakeDriver{}
	e := newExecutor(d)

	require.NoError(t, e.Navigate(context.Background(), "https://www.saucedemo.com/"))
	url, err := e.CurrentURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://www.saucedemo.com/", url)

	src, err := e.PageSource(context.Background())
	require.NoError(t, err)
	assert.Contains(t, src, "<html>")

	png, err := e.Screenshot(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}

func TestAwait_ReturnsBareWaitTimeout(t *testing.T) {
	err := newExecutor(&fakeDriver{url: "https://www.saucedemo.com/"}).
		Await(context.Background(), wait.URLContains("inventory.html"))

	var wte *core.WaitTimeoutError
	require.ErrorAs(t, err, &wte)
	var ate *core.ActionTimeoutError
	assert.False(t, errors.As(err, &ate))

	status, _ := core.Classify(err)
	assert.Equal(t, core.StatusFailed, status)
}
