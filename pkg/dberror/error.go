package dberror

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorCategory classifies errors by their nature and appropriate handling strategy.
type ErrorCategory int

const (
	// ErrCategoryUser represents errors caused by invalid caller input, such as a
	// tuple that does not match the table schema.
	ErrCategoryUser ErrorCategory = iota

	// ErrCategoryTransient represents errors that may succeed once the caller
	// frees resources, such as a buffer pool with no clean page to evict.
	ErrCategoryTransient

	// ErrCategorySystem represents errors requiring operator intervention:
	// I/O failures, bad configuration, missing files.
	ErrCategorySystem

	// ErrCategoryData represents corrupt or truncated on-disk data.
	ErrCategoryData

	// ErrCategoryConcurrency represents transaction conflicts. The transaction
	// has been rolled back and may be retried.
	ErrCategoryConcurrency
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryUser:
		return "user"
	case ErrCategoryTransient:
		return "transient"
	case ErrCategorySystem:
		return "system"
	case ErrCategoryData:
		return "data"
	case ErrCategoryConcurrency:
		return "concurrency"
	default:
		return "unknown"
	}
}

// DBError represents a structured storage engine error.
type DBError struct {
	// Code is a unique identifier for this error type (e.g., "TXN_ABORTED").
	// Two DBErrors with the same code match under errors.Is.
	Code string

	// Category classifies the error for appropriate handling strategy.
	Category ErrorCategory

	// Message is a human-readable description of what went wrong.
	Message string

	// Detail provides context about the specific error instance.
	Detail string

	// Operation identifies the operation being performed, e.g. "GetPage".
	Operation string

	// Component identifies where the error originated, e.g. "PageStore".
	Component string

	// Cause is the underlying error, if any.
	Cause error

	// Stack is the call stack captured by New, Errorf and Wrap.
	Stack []uintptr
}

// New creates a new DBError with the specified code, category, and message.
func New(category ErrorCategory, code, message string) *DBError {
	return &DBError{
		Code:     code,
		Category: category,
		Message:  message,
		Stack:    captureStack(),
	}
}

// Errorf returns a copy of base carrying a formatted detail and a fresh stack.
// The result still matches base under errors.Is.
func Errorf(base *DBError, format string, args ...any) *DBError {
	return &DBError{
		Code:     base.Code,
		Category: base.Category,
		Message:  base.Message,
		Detail:   fmt.Sprintf(format, args...),
		Stack:    captureStack(),
	}
}

// Wrap attaches operation and component context to err.
//
// If err already carries a DBError, the returned error keeps that code and
// category so callers can still match the original condition; code is used
// only for foreign errors. Wrap returns nil for a nil err.
func Wrap(err error, code, operation, component string) *DBError {
	if err == nil {
		return nil
	}

	var inner *DBError
	if errors.As(err, &inner) {
		return &DBError{
			Code:      inner.Code,
			Category:  inner.Category,
			Message:   inner.Message,
			Operation: operation,
			Component: component,
			Cause:     err,
			Stack:     captureStack(),
		}
	}

	return &DBError{
		Code:      code,
		Category:  categoryOf(code),
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

// captureStack skips runtime.Callers, captureStack and the constructor.
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

// Error implements the error interface.
//
// Format: [CODE] Message: Detail (operation: Op, component: Comp) caused by: cause
func (e *DBError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)

	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}

	if e.Operation != "" {
		fmt.Fprintf(&b, " (operation: %s", e.Operation)
		if e.Component != "" {
			fmt.Fprintf(&b, ", component: %s", e.Component)
		}
		b.WriteString(")")
	}

	if e.Cause != nil {
		fmt.Fprintf(&b, " caused by: %v", e.Cause)
	}

	return b.String()
}

// Unwrap returns the underlying cause.
func (e *DBError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DBError with the same code.
func (e *DBError) Is(target error) bool {
	t, ok := target.(*DBError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// FormatStack returns a human-readable stack trace.
func (e *DBError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(e.Stack)

	b.WriteString("Stack trace:\n")
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "  %s\n    %s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}

	return b.String()
}

// CategoryOf returns the category of the first DBError in err's chain, or
// ErrCategorySystem for foreign errors.
func CategoryOf(err error) ErrorCategory {
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr.Category
	}
	return ErrCategorySystem
}
