package cerr

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Category classifies errors by their nature and appropriate handling strategy.
type Category int

const (
	// CategoryUser represents errors caused by an invalid mutation or query.
	// Examples: dangling foreign keys, negative quantities, duplicate keys.
	// These errors are fixable only by correcting the submitted mutation.
	CategoryUser Category = iota

	// CategoryConcurrency represents commit-time conflicts between
	// transactions. The caller is expected to retry with a fresh transaction,
	// typically with bounded backoff.
	CategoryConcurrency

	// CategorySystem represents misconfiguration or internal invariant
	// failures, such as a malformed schema definition at startup. These are
	// not resolved by retrying or by changing the mutation.
	CategorySystem
)

// Error codes for the consistency core. ConcurrencyConflict is the only code
// callers are expected to retry automatically.
const (
	CodeUnknownTable         = "UNKNOWN_TABLE"
	CodeNoSuchEdge           = "NO_SUCH_EDGE"
	CodeForeignKeyNotFound   = "FOREIGN_KEY_NOT_FOUND"
	CodeDomainConstraint     = "DOMAIN_CONSTRAINT_VIOLATION"
	CodeUniqueConstraint     = "UNIQUE_CONSTRAINT_VIOLATION"
	CodeReferentialIntegrity = "REFERENTIAL_INTEGRITY_VIOLATION"
	CodeInsufficientStock    = "INSUFFICIENT_STOCK"
	CodeConcurrencyConflict  = "CONCURRENCY_CONFLICT"
	CodeInvalidSchema        = "INVALID_SCHEMA"
	CodeInvalidMutation      = "INVALID_MUTATION"
	CodeInvalidQuery         = "INVALID_QUERY"
	CodeTransactionNotActive = "TRANSACTION_NOT_ACTIVE"
	CodeTransactionNotFound  = "TRANSACTION_NOT_FOUND"
)

// CoreError represents a structured engine error with context information.
type CoreError struct {
	// Code is the taxonomy identifier for this error (e.g. FOREIGN_KEY_NOT_FOUND).
	Code string

	// Category classifies the error for the caller's handling strategy.
	Category Category

	// Message is a human-readable description of what went wrong.
	Message string

	// Detail provides context about the specific instance.
	// Example: "order_items.product_id=99 has no matching row in products".
	Detail string

	// Operation identifies the engine operation in progress, e.g. "Commit".
	Operation string

	// Component identifies where the error originated, e.g. "ConstraintValidator".
	Component string

	// Cause is the underlying error, if any.
	Cause error

	// Stack holds the call stack captured at construction time.
	Stack []uintptr
}

// New creates a CoreError with the given code, category and message.
func New(category Category, code, message string) *CoreError {
	return &CoreError{
		Code:     code,
		Category: category,
		Message:  message,
		Stack:    captureStack(),
	}
}

// Newf creates a CoreError whose detail is built from a format string.
func Newf(category Category, code, message, detailFormat string, args ...any) *CoreError {
	err := New(category, code, message)
	err.Detail = fmt.Sprintf(detailFormat, args...)
	return err
}

// Wrap attaches operation and component context to an existing error.
// A CoreError is enriched in place (only unset context is filled in); any
// other error becomes the cause of a new system-category CoreError.
func Wrap(err error, code, operation, component string) *CoreError {
	if err == nil {
		return nil
	}

	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		if coreErr.Operation == "" {
			coreErr.Operation = operation
		}
		if coreErr.Component == "" {
			coreErr.Component = component
		}
		return coreErr
	}

	return &CoreError{
		Code:      code,
		Category:  CategorySystem,
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

// WithDetail sets the detail text and returns the error for chaining.
func (e *CoreError) WithDetail(format string, args ...any) *CoreError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithOperation sets the operation context and returns the error for chaining.
func (e *CoreError) WithOperation(op string) *CoreError {
	e.Operation = op
	return e
}

// WithComponent sets the component context and returns the error for chaining.
func (e *CoreError) WithComponent(component string) *CoreError {
	e.Component = component
	return e
}

// Error implements the standard error interface.
//
// The format follows the pattern:
// [ERROR_CODE] Message: Detail (operation: Operation, component: Component) caused by: underlying error
func (e *CoreError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Detail != "" {
		b.WriteString(fmt.Sprintf(": %s", e.Detail))
	}

	if e.Operation != "" {
		b.WriteString(fmt.Sprintf(" (operation: %s", e.Operation))
		if e.Component != "" {
			b.WriteString(fmt.Sprintf(", component: %s", e.Component))
		}
		b.WriteString(")")
	}

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(" caused by: %v", e.Cause))
	}

	return b.String()
}

// Unwrap returns the underlying cause, enabling errors.Is / errors.As.
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// CodeOf extracts the taxonomy code from err, or "" for non-core errors.
func CodeOf(err error) string {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given taxonomy code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether the caller should retry the whole transaction.
// Only commit-time concurrency conflicts qualify.
func IsRetryable(err error) bool {
	return HasCode(err, CodeConcurrencyConflict)
}

// captureStack captures the current call stack, skipping the frames of the
// constructor itself.
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

// FormatStack returns a human-readable stack trace for debugging purposes.
func (e *CoreError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(e.Stack)

	b.WriteString("Stack trace:\n")
	for {
		f, more := frames.Next()
		b.WriteString(fmt.Sprintf("  %s\n    %s:%d\n", f.Function, f.File, f.Line))
		if !more {
			break
		}
	}

	return b.String()
}
