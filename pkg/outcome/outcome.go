// Package outcome defines the error taxonomy shared by the backup and restore
// orchestrators and converts errors into user-facing results.
package outcome

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an orchestration failure
type Kind string

const (
	KindValidation Kind = "validation"
	KindConnection Kind = "connection"
	KindBackup     Kind = "backup"
	KindRestore    Kind = "restore"
	KindNotFound   Kind = "not_found"
	KindConfig     Kind = "config"
	KindTimeout    Kind = "timeout"
)

// Error is a classified failure. Message is safe to show to the operator;
// Detail carries diagnostics such as captured tool output.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so errors.Is(err, outcome.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is checks
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrConnection = &Error{Kind: KindConnection}
	ErrBackup     = &Error{Kind: KindBackup}
	ErrRestore    = &Error{Kind: KindRestore}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrConfig     = &Error{Kind: KindConfig}
	ErrTimeout    = &Error{Kind: KindTimeout}
)

func ValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func ConnectionError(message string, err error) *Error {
	return &Error{Kind: KindConnection, Message: message, Err: err}
}

func BackupError(message, detail string, err error) *Error {
	return &Error{Kind: KindBackup, Message: message, Detail: detail, Err: err}
}

func RestoreError(message, detail string, err error) *Error {
	return &Error{Kind: KindRestore, Message: message, Detail: detail, Err: err}
}

func NotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func ConfigError(message string, err error) *Error {
	return &Error{Kind: KindConfig, Message: message, Err: err}
}

func TimeoutError(message string, err error) *Error {
	return &Error{Kind: KindTimeout, Message: message, Err: err}
}

// KindOf returns the Kind of err, or "" when err is not classified
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return ""
}

// Status values reported to the presentation layer
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Outcome is the {status, message} pair rendered by the presentation layer
type Outcome struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Success builds a successful outcome
func Success(format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusSuccess, Message: fmt.Sprintf(format, args...)}
}

// FromError converts any error into an error outcome
func FromError(err error) Outcome {
	if err == nil {
		return Outcome{Status: StatusSuccess}
	}

	var oe *Error
	if errors.As(err, &oe) {
		return Outcome{
			Status:  StatusError,
			Message: oe.Message,
			Kind:    oe.Kind,
			Detail:  oe.Detail,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Outcome{Status: StatusError, Message: "Operation timed out.", Kind: KindTimeout}
	}

	return Outcome{Status: StatusError, Message: err.Error()}
}
