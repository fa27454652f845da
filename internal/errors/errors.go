// Package errors defines the typed errors shared by the miners. The type
// tells callers whether a failure means "no data here" (NotFound), a
// transient service problem (External, Network) or a broken run.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// ErrorTypeConfig - missing or invalid configuration
	ErrorTypeConfig ErrorType = iota
	// ErrorTypeValidation - invalid input data
	ErrorTypeValidation
	// ErrorTypeNotFound - a file or revision that does not exist at the
	// queried point in history. Callers treat it as "no data".
	ErrorTypeNotFound
	// ErrorTypeExternal - issue tracker or hosting service failures
	ErrorTypeExternal
	// ErrorTypeNetwork - transport failures talking to those services
	ErrorTypeNetwork
	// ErrorTypePrecondition - a computation got input it is not defined for
	ErrorTypePrecondition
	// ErrorTypeDatabase - run persistence failures
	ErrorTypeDatabase
	// ErrorTypeFileSystem - dataset file I/O failures
	ErrorTypeFileSystem
	// ErrorTypeInternal - anything untyped
	ErrorTypeInternal
)

var typeNames = map[ErrorType]string{
	ErrorTypeConfig:       "CONFIG",
	ErrorTypeValidation:   "VALIDATION",
	ErrorTypeNotFound:     "NOT_FOUND",
	ErrorTypeExternal:     "EXTERNAL",
	ErrorTypeNetwork:      "NETWORK",
	ErrorTypePrecondition: "PRECONDITION",
	ErrorTypeDatabase:     "DATABASE",
	ErrorTypeFileSystem:   "FILESYSTEM",
	ErrorTypeInternal:     "INTERNAL",
}

func (t ErrorType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - expected condition, continue without data
	SeverityLow Severity = iota
	// SeverityMedium - transient, worth a retry
	SeverityMedium
	// SeverityHigh - the current item fails
	SeverityHigh
	// SeverityCritical - the run stops
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	}
	return "UNKNOWN"
}

// Error is a typed error with optional cause and key/value context
type Error struct {
	Type     ErrorType
	Severity Severity
	Message  string
	Cause    error
	Context  map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair shown by DetailedString
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is matches any *Error of the same type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsFatal returns true if this error should stop the run
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityCritical
}

// DetailedString renders the error with its cause and sorted context, one
// item per line
func (e *Error) DetailedString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] [%s] %s\n", e.Severity, e.Type, e.Message)

	if e.Cause != nil {
		fmt.Fprintf(&sb, "Caused by: %v\n", e.Cause)
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("Context:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %v\n", k, e.Context[k])
		}
	}

	return sb.String()
}

// New creates a new error with the given type, severity, and message
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{Type: errType, Severity: severity, Message: message}
}

// Wrap wraps err. It returns nil for a nil err.
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: errType, Severity: severity, Message: message, Cause: err}
}

func wrapf(err error, errType ErrorType, severity Severity, format string, args []interface{}) *Error {
	return Wrap(err, errType, severity, fmt.Sprintf(format, args...))
}

// ConfigError creates a configuration error
func ConfigError(message string) *Error {
	return New(ErrorTypeConfig, SeverityCritical, message)
}

// ValidationErrorf creates a validation error
func ValidationErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeValidation, SeverityHigh, fmt.Sprintf(format, args...))
}

// NotFoundError wraps a "does not exist at this revision" failure. It is
// low severity: the caller skips the cell and moves on.
func NotFoundError(err error, message string) *Error {
	return Wrap(err, ErrorTypeNotFound, SeverityLow, message)
}

// NotFoundErrorf is NotFoundError with formatting
func NotFoundErrorf(err error, format string, args ...interface{}) *Error {
	return wrapf(err, ErrorTypeNotFound, SeverityLow, format, args)
}

// ExternalErrorf wraps a failure reported by an external service
func ExternalErrorf(err error, format string, args ...interface{}) *Error {
	return wrapf(err, ErrorTypeExternal, SeverityMedium, format, args)
}

// RetriesExhausted marks a transient external failure that kept failing past
// the retry budget. The run cannot continue without the data.
func RetriesExhausted(err error, format string, args ...interface{}) *Error {
	return wrapf(err, ErrorTypeExternal, SeverityCritical, format, args)
}

// NetworkErrorf wraps a transport failure
func NetworkErrorf(err error, format string, args ...interface{}) *Error {
	return wrapf(err, ErrorTypeNetwork, SeverityHigh, format, args)
}

// PreconditionError creates a precondition violation error
func PreconditionError(message string) *Error {
	return New(ErrorTypePrecondition, SeverityCritical, message)
}

// DatabaseErrorf wraps a persistence failure
func DatabaseErrorf(err error, format string, args ...interface{}) *Error {
	return wrapf(err, ErrorTypeDatabase, SeverityCritical, format, args)
}

// FileSystemErrorf wraps a dataset file failure
func FileSystemErrorf(err error, format string, args ...interface{}) *Error {
	return wrapf(err, ErrorTypeFileSystem, SeverityCritical, format, args)
}

// IsFatal checks if an error is fatal (should stop execution)
func IsFatal(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.IsFatal()
	}
	return false
}

// IsNotFound reports whether err (or anything it wraps) is an expected
// absence of a file or revision.
func IsNotFound(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == ErrorTypeNotFound
	}
	return false
}

// GetSeverity returns the severity of an error. Untyped errors are medium.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityLow
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Severity
	}
	return SeverityMedium
}

// GetType returns the type of an error. Untyped errors are internal.
func GetType(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// Detailed returns the detailed rendering of the outermost typed error in
// err's chain, or err's message when there is none
func Detailed(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		if e.Error() == err.Error() {
			return e.DetailedString()
		}
		return err.Error() + "\n" + e.DetailedString()
	}
	return err.Error()
}
