package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfiguration Kind = "configuration_error"
	KindParse         Kind = "parse_error"
	KindExternalTool  Kind = "external_tool_error"
	KindStorage       Kind = "storage_error"
	KindTemplate      Kind = "template_error"
	KindDuplicateJob  Kind = "duplicate_job"
	KindInternal      Kind = "internal_error"
)

// Error is the pipeline's error envelope. Op names the operation that failed
// (e.g. "convert", "pairtree.put") and Internal keeps the underlying cause.
type Error struct {
	Kind     Kind
	Op       string
	Message  string
	Internal error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Internal != nil {
		return msg + ": " + e.Internal.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Internal
}

// Is matches another *Error by Kind so that errors.Is(err, apperror.ErrParse)
// works against the sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Op == "" && t.Internal == nil && t.Kind == e.Kind
	}
	return false
}

var (
	ErrConfiguration = &Error{Kind: KindConfiguration, Message: "invalid configuration"}
	ErrParse         = &Error{Kind: KindParse, Message: "malformed manifest"}
	ErrExternalTool  = &Error{Kind: KindExternalTool, Message: "external tool failed"}
	ErrStorage       = &Error{Kind: KindStorage, Message: "storage operation failed"}
	ErrTemplate      = &Error{Kind: KindTemplate, Message: "invalid access url template"}
	ErrDuplicateJob  = &Error{Kind: KindDuplicateJob, Message: "job already in flight"}
)

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Internal: err}
}

func Configuration(format string, args ...any) *Error {
	return Newf(KindConfiguration, "config", format, args...)
}

func Is(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
