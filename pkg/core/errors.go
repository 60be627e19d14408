package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, stale_element, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches another ExecutionError with the same code, so copies made by
// WithCause/WithMessage still match the predefined values.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok || t.Code == "" {
		return false
	}
	return t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors (W3C WebDriver error codes where one exists)
var (
	// Element errors. The first three are transient while waiting.
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrStaleElement = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "stale_element",
		Message:  "element is no longer attached to the page",
	}
	ErrElementNotInteractable = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_interactable",
		Message:  "element is not interactable",
	}
	ErrTextMismatch = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "text_mismatch",
		Message:  "text does not match expected value",
	}
	ErrConditionNotMet = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "condition_not_met",
		Message:  "condition was not met",
	}

	// Timeout errors
	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "wait condition timed out",
	}
	ErrActionTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "action_timeout",
		Message:  "action precondition timed out",
	}

	// Connection errors
	ErrDriverUnreachable = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "driver_unreachable",
		Message:  "could not connect to browser driver",
	}
	ErrSessionNotCreated = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "session_not_created",
		Message:  "browser session could not be created",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrMissingRequired = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "missing_required",
		Message:  "missing required field",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// IsTransient reports whether err only means "not ready yet" while polling.
func IsTransient(err error) bool {
	return errors.Is(err, ErrElementNotFound) ||
		errors.Is(err, ErrStaleElement) ||
		errors.Is(err, ErrElementNotInteractable)
}

// WaitTimeoutError is returned when a wait condition never became true.
type WaitTimeoutError struct {
	Condition string        // Human-readable condition description
	Timeout   time.Duration // Budget that was allowed
	Elapsed   time.Duration // Wall-clock time actually spent
	Cause     error         // Context error when the wait was cancelled
	LastErr   error         // Last transient error seen while polling
}

func (e *WaitTimeoutError) Error() string {
	elapsed := e.Elapsed.Round(time.Millisecond)
	if e.Cause != nil {
		return fmt.Sprintf("wait for %s aborted after %s: %v", e.Condition, elapsed, e.Cause)
	}
	msg := fmt.Sprintf("timed out after %s waiting for %s", elapsed, e.Condition)
	if e.LastErr != nil {
		msg += fmt.Sprintf(" (last error: %v)", e.LastErr)
	}
	return msg
}

// Unwrap exposes both the cancellation cause and the last poll error.
func (e *WaitTimeoutError) Unwrap() []error {
	var errs []error
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	if e.LastErr != nil {
		errs = append(errs, e.LastErr)
	}
	return errs
}

// Is matches ErrWaitTimeout.
func (e *WaitTimeoutError) Is(target error) bool {
	return target == ErrWaitTimeout
}

// Cancelled reports whether the wait was cut short by its context.
func (e *WaitTimeoutError) Cancelled() bool {
	return errors.Is(e.Cause, context.Canceled) || errors.Is(e.Cause, context.DeadlineExceeded)
}

// Category returns ErrCategoryTimeout.
func (e *WaitTimeoutError) Category() ErrorCategory { return ErrCategoryTimeout }

// ActionTimeoutError is returned when the precondition of a UI action never held.
type ActionTimeoutError struct {
	Action  string
	Locator Locator
	Wait    *WaitTimeoutError
}

func (e *ActionTimeoutError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Action, e.Locator, e.Wait)
}

func (e *ActionTimeoutError) Unwrap() error {
	if e.Wait == nil {
		return nil
	}
	return e.Wait
}

// Is matches ErrActionTimeout.
func (e *ActionTimeoutError) Is(target error) bool {
	return target == ErrActionTimeout
}

// Category returns ErrCategoryTimeout.
func (e *ActionTimeoutError) Category() ErrorCategory { return ErrCategoryTimeout }

// DataFormatError rejects a whole data file.
type DataFormatError struct {
	Path       string
	Line       int      // 1-based row or line, 0 when not applicable
	Reason     string
	Missing    []string // required fields that were absent
	Violations []string // schema violations, one per entry
}

func (e *DataFormatError) Error() string {
	var b strings.Builder
	b.WriteString(e.Path)
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, " (missing: %s)", strings.Join(e.Missing, ", "))
	}
	if len(e.Violations) > 0 {
		b.WriteString(":\n  ")
		b.WriteString(strings.Join(e.Violations, "\n  "))
	}
	return b.String()
}

// Category returns ErrCategoryData.
func (e *DataFormatError) Category() ErrorCategory { return ErrCategoryData }

// DataNotFoundError means the data path does not resolve.
type DataNotFoundError struct {
	Path  string
	Cause error
}

func (e *DataNotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("data file %s not found: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("data file %s not found", e.Path)
}

func (e *DataNotFoundError) Unwrap() error { return e.Cause }

// Category returns ErrCategoryData.
func (e *DataNotFoundError) Category() ErrorCategory { return ErrCategoryData }

// DriverConnectionError is an infrastructure failure talking to the UI driver.
type DriverConnectionError struct {
	Driver string // webdriver, playwright, mock
	Op     string // operation that failed
	Cause  error
}

func (e *DriverConnectionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Driver, e.Op, e.Cause)
}

func (e *DriverConnectionError) Unwrap() error { return e.Cause }

// Is matches ErrDriverUnreachable.
func (e *DriverConnectionError) Is(target error) bool {
	return target == ErrDriverUnreachable
}

// Category returns ErrCategoryConnection.
func (e *DriverConnectionError) Category() ErrorCategory { return ErrCategoryConnection }

// AssertionError is a business-level mismatch: the UI did not reach the
// state the record expected.
type AssertionError struct {
	Message  string
	Expected interface{}
	Actual   interface{}
}

// Failf builds an AssertionError without expected/actual values.
func Failf(format string, args ...interface{}) *AssertionError {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// Mismatch builds an AssertionError carrying both values.
func Mismatch(message string, expected, actual interface{}) *AssertionError {
	return &AssertionError{Message: message, Expected: expected, Actual: actual}
}

func (e *AssertionError) Error() string {
	if e.Expected == nil && e.Actual == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: expected %v, got %v", e.Message, e.Expected, e.Actual)
}

// Category returns ErrCategoryAssertion.
func (e *AssertionError) Category() ErrorCategory { return ErrCategoryAssertion }

// SkipError asks the runner to record the case as skipped.
type SkipError struct {
	Reason string
}

// Skip builds a SkipError.
func Skip(format string, args ...interface{}) *SkipError {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

// Classify maps a scenario error to the record outcome and error category.
//
// Assertion mismatches and post-condition wait timeouts are FAILED. Action
// precondition timeouts, driver failures, cancellations and anything
// unrecognised are ERRORED.
func Classify(err error) (Status, ErrorCategory) {
	if err == nil {
		return StatusPassed, ErrCategoryNone
	}

	var skip *SkipError
	if errors.As(err, &skip) {
		return StatusSkipped, ErrCategoryNone
	}
	var action *ActionTimeoutError
	if errors.As(err, &action) {
		return StatusErrored, ErrCategoryTimeout
	}
	var conn *DriverConnectionError
	if errors.As(err, &conn) {
		return StatusErrored, ErrCategoryConnection
	}
	var wait *WaitTimeoutError
	if errors.As(err, &wait) {
		if wait.Cancelled() {
			return StatusErrored, ErrCategoryTimeout
		}
		return StatusFailed, ErrCategoryTimeout
	}
	var assertion *AssertionError
	if errors.As(err, &assertion) {
		return StatusFailed, ErrCategoryAssertion
	}
	var dataFormat *DataFormatError
	var dataMissing *DataNotFoundError
	if errors.As(err, &dataFormat) || errors.As(err, &dataMissing) {
		return StatusErrored, ErrCategoryData
	}
	var exec *ExecutionError
	if errors.As(err, &exec) {
		if exec.Category == ErrCategoryAssertion {
			return StatusFailed, ErrCategoryAssertion
		}
		return StatusErrored, exec.Category
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return StatusErrored, ErrCategoryTimeout
	}
	return StatusErrored, ErrCategoryInternal
}
