// # internal/core/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorCode string

const (
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeValidationError  ErrorCode = "VALIDATION_ERROR"
	CodeInternal         ErrorCode = "INTERNAL_ERROR"
	CodeNotSupported     ErrorCode = "NOT_SUPPORTED"
	CodeCompile          ErrorCode = "COMPILE_ERROR"
	CodeMissingFile      ErrorCode = "MISSING_FILE"
	CodeParse            ErrorCode = "PARSE_ERROR"
	CodeOverlappingEdit  ErrorCode = "OVERLAPPING_EDIT"
	CodeDependencyFailed ErrorCode = "DEPENDENCY_FAILED"
)

// Context keys.
const (
	CtxPath       = "path"
	CtxOperation  = "operation"
	CtxFile       = "file"
	CtxPosition   = "position"
	CtxDependency = "dependency"
)

// Field is one piece of context, kept in the order it was attached.
type Field struct {
	Key   string
	Value any
}

// DomainError is a coded error shown to users. Message is the sentence a
// user sees; Fields locate it. A DomainError with an empty Message only
// carries fields for the error it wraps.
type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Fields  []Field
}

// With sets key, replacing an earlier value for the same key.
func (e *DomainError) With(key string, value any) *DomainError {
	for i := range e.Fields {
		if e.Fields[i].Key == key {
			e.Fields[i].Value = value
			return e
		}
	}
	e.Fields = append(e.Fields, Field{Key: key, Value: value})
	return e
}

// Field returns the value attached under key, looking through to the
// wrapped DomainError when e does not set it.
func (e *DomainError) Field(key string) (any, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	if inner, ok := AsDomain(e.Err); ok {
		return inner.Field(key)
	}
	return nil, false
}

// Origin is the DomainError holding the message, skipping field carriers.
func (e *DomainError) Origin() *DomainError {
	for e.Message == "" {
		inner, ok := AsDomain(e.Err)
		if !ok {
			break
		}
		e = inner
	}
	return e
}

func (e *DomainError) clone() *DomainError {
	c := *e
	c.Fields = append([]Field(nil), e.Fields...)
	return &c
}

// Summary is the error without its context fields.
func (e *DomainError) Summary() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DomainError) Error() string {
	if len(e.Fields) == 0 {
		return e.Summary()
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s=%v", f.Key, f.Value)
	}
	return e.Summary() + " (" + strings.Join(parts, ", ") + ")"
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// MissingFile reports a relative import whose target is not in the file store.
// The importing file, when known, goes under CtxFile.
func MissingFile(filename string) error {
	de := &DomainError{Code: CodeMissingFile, Message: fmt.Sprintf("File %q does not exist.", filename)}
	return de.With(CtxPath, filename)
}

// AddContext returns err with a field attached and never modifies err,
// since the same error value may be stored on several files. A DomainError
// is copied. An error that wraps one, such as a fmt.Errorf %w chain, gets a
// carrier with the inner code so its text is kept. Anything else becomes an
// INTERNAL_ERROR.
func AddContext(err error, key string, value any) error {
	if de, ok := err.(*DomainError); ok {
		return de.clone().With(key, value)
	}
	if inner, ok := AsDomain(err); ok {
		return (&DomainError{Code: inner.Code, Err: err}).With(key, value)
	}
	return (&DomainError{Code: CodeInternal, Message: "unexpected error", Err: err}).With(key, value)
}

// AsDomain finds the first DomainError in err's chain.
func AsDomain(err error) (*DomainError, bool) {
	var de *DomainError
	ok := errors.As(err, &de)
	return de, ok
}

func IsCode(err error, code ErrorCode) bool {
	de, ok := AsDomain(err)
	return ok && de.Code == code
}

// CodeOf returns the code of the first DomainError in err's chain, or CodeInternal.
func CodeOf(err error) ErrorCode {
	if de, ok := AsDomain(err); ok {
		return de.Code
	}
	return CodeInternal
}

// Display prints domain errors without their context fields.
func Display(err error) string {
	if de, ok := AsDomain(err); ok {
		return de.Summary()
	}
	return err.Error()
}
