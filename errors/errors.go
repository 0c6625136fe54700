// Package errors provides a rich error type in the style of
// `github.com/go-errors/errors`, extended with error codes, public messages,
// and HTTP status mapping.
//
// It provides the type *Error which implements the standard golang error
// interface, so you can use this library interchangeably with code that is
// expecting a normal error return.
//
// Codes classify failures for the HTTP surface and for logging:
//
//	return errors.NewC("keys: no active signing key", errors.Unavailable).
//		WithPublicMessage("Sign-in is temporarily unavailable")
package errors

import (
	"bytes"
	"fmt"
	"net/http"
	"reflect"
	"runtime"
)

// The maximum number of stackframes on any error.
var MaxStackDepth = 50

// Code classifies an error for transport mapping and logging.
type Code int

const (
	Unknown Code = iota

	// InvalidArgument covers malformed or missing request parameters.
	InvalidArgument

	// Unauthenticated covers token and login-protocol failures.
	Unauthenticated

	// PermissionDenied covers authenticated-but-not-authorized failures.
	PermissionDenied

	// NotFound covers missing records and unknown key ids.
	NotFound

	// FailedPrecondition covers configuration problems surfaced at runtime.
	FailedPrecondition

	// Unavailable covers upstream outages and unconfigured signing material.
	Unavailable

	// Internal covers everything that should never happen.
	Internal
)

func (c Code) String() string {
	switch c {
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case Unauthenticated:
		return "UNAUTHENTICATED"
	case PermissionDenied:
		return "PERMISSION_DENIED"
	case NotFound:
		return "NOT_FOUND"
	case FailedPrecondition:
		return "FAILED_PRECONDITION"
	case Unavailable:
		return "UNAVAILABLE"
	case Internal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Error is an error with an attached stacktrace, code and public message. It
// can be used wherever the builtin error interface is expected.
type Error struct {
	Err    error
	stack  []uintptr
	frames []StackFrame
	prefix string

	code           Code
	httpStatusCode int
	publicMessage  string
}

// New makes an Error from the given value. If that value is already an error
// then it will be used directly, if not, it will be passed to
// fmt.Errorf("%v"). The stacktrace will point to the line of code that
// called New.
//
//go:noinline
func New(e interface{}) *Error {
	return newE(e, Unknown, 1)
}

// NewC makes an Error with a code defined.
func NewC(e interface{}, code Code) *Error {
	return newE(e, code, 1)
}

func newE(e interface{}, code Code, skip int) *Error {
	var err error
	switch e := e.(type) {
	case error:
		err = e
	default:
		err = fmt.Errorf("%v", e)
	}
	stack := make([]uintptr, MaxStackDepth)
	length := runtime.Callers(2+skip, stack[:])
	return &Error{
		Err:   err,
		stack: stack[:length],
		code:  code,
	}
}

// Wrap makes an Error from the given value. If that value is already an
// *Error it is returned unchanged. The skip parameter indicates how far up
// the stack to start the stacktrace. 0 is from the current call, 1 from its
// caller, etc.
func Wrap(e interface{}, skip int) *Error {
	if e == nil {
		return nil
	}
	switch e := e.(type) {
	case *Error:
		return e
	default:
		return newE(e, Unknown, 1+skip)
	}
}

// WrapPrefix makes an Error from the given value with a message prefix that
// is prepended when calling Error(). The wrapped error stays in the Unwrap
// chain, so errors.Is against sentinel values still matches.
func WrapPrefix(e interface{}, prefix string, skip int) *Error {
	if e == nil {
		return nil
	}
	err := Wrap(e, 1+skip)
	return &Error{
		Err:            err,
		stack:          err.stack,
		code:           err.code,
		httpStatusCode: err.httpStatusCode,
		publicMessage:  err.publicMessage,
		prefix:         prefix,
	}
}

// Errorf creates a new error with the given message. You can use it as a
// drop-in replacement for fmt.Errorf() to provide descriptive errors in
// return values.
func Errorf(format string, a ...interface{}) *Error {
	return newE(fmt.Errorf(format, a...), Unknown, 1)
}

// Codef creates a new error with a code and a formatted message.
func Codef(code Code, format string, a ...interface{}) *Error {
	return newE(fmt.Errorf(format, a...), code, 1)
}

// WithCode takes an error and adds a code to it. If the error is not already
// an *Error, it will be wrapped in one.
func WithCode(err error, code Code) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, 1).WithCode(code)
}

// WithPublicMessage takes an error and adds a public message to it. If the
// error is not already an *Error, it will be wrapped in one.
func WithPublicMessage(err error, publicMessage string) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, 1).WithPublicMessage(publicMessage)
}

// Error returns the underlying error's message.
func (err *Error) Error() string {
	msg := err.Err.Error()
	if err.prefix != "" {
		msg = fmt.Sprintf("%s: %s", err.prefix, msg)
	}
	return msg
}

// Append adds additional context to the error message.
func (err *Error) Append(msg string) *Error {
	return WrapPrefix(err, msg, 1)
}

// Stack returns the callstack formatted the same way that go does in
// runtime/debug.Stack().
func (err *Error) Stack() []byte {
	buf := bytes.Buffer{}
	for _, frame := range err.StackFrames() {
		buf.WriteString(frame.String())
	}
	return buf.Bytes()
}

// ErrorStack returns a string that contains both the error message and the
// callstack.
func (err *Error) ErrorStack() string {
	return err.TypeName() + " " + err.Error() + "\n" + string(err.Stack())
}

// StackFrames returns an array of frames containing information about the
// stack.
func (err *Error) StackFrames() []StackFrame {
	if err.frames == nil {
		err.frames = make([]StackFrame, len(err.stack))
		for i, pc := range err.stack {
			err.frames[i] = NewStackFrame(pc)
		}
	}
	return err.frames
}

// TypeName returns the type of this error. e.g. *errors.stringError.
func (err *Error) TypeName() string {
	return reflect.TypeOf(err.Err).String()
}

// Unwrap the error (implements api for As and Is functions).
func (err *Error) Unwrap() error {
	return err.Err
}

// Code returns the code associated with the error.
func (err *Error) Code() Code {
	return err.code
}

// WithCode sets the code associated with the error.
func (err *Error) WithCode(code Code) *Error {
	err.code = code
	return err
}

// HTTPStatusCode returns the HTTP status code that should be returned to the
// client. If an explicit status is set, it will be used, otherwise a default
// is derived from the code.
func (err *Error) HTTPStatusCode() int {
	if err.httpStatusCode != 0 {
		return err.httpStatusCode
	}
	switch err.code {
	case InvalidArgument:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case PermissionDenied:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case FailedPrecondition:
		return http.StatusPreconditionFailed
	case Unavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// WithHTTPStatusCode sets an explicit HTTP status code, overriding the status
// mapped from the code.
func (err *Error) WithHTTPStatusCode(code int) *Error {
	err.httpStatusCode = code
	return err
}

// PublicMessage returns the error string that should be shown to the client.
func (err *Error) PublicMessage() string {
	if err.publicMessage != "" {
		return err.publicMessage
	}
	return err.Error()
}

// WithPublicMessage sets the error string that should be shown to the client.
func (err *Error) WithPublicMessage(publicMessage string) *Error {
	err.publicMessage = publicMessage
	return err
}

// CodeOf returns the code for an error. If the error exposes a `Code()`
// method, that is returned, otherwise Unknown.
func CodeOf(err error) Code {
	if e, ok := err.(codedError); ok {
		return e.Code()
	}
	return Unknown
}

// HTTPStatusCode returns an HTTP status code for an error. If the error is
// nil, it returns http.StatusOK. If the error exposes a `HTTPStatusCode()`
// method, that is returned. Otherwise http.StatusInternalServerError.
func HTTPStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if e, ok := err.(httpError); ok {
		return e.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the client-safe message for an error. Errors without
// one fall back to a generic message so internal details never leak.
func PublicMessage(err error) string {
	if e, ok := err.(publicError); ok {
		return e.PublicMessage()
	}
	return "An unexpected error occurred"
}

type codedError interface {
	Code() Code
}

type httpError interface {
	HTTPStatusCode() int
}

type publicError interface {
	PublicMessage() string
}
