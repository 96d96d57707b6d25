/*
Copyright 2026 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package opterrors provides simple error handling primitives for the
// pipeline optimizer.
//
// Every error created here carries an ErrCode (the coarse class, mappable onto
// transport status codes) and optionally a State (the precise reason, such as
// UnsupportedStage). Wrapping an error keeps the code and state of the cause:
//
//	err := opterrors.NewErrorf(opterrors.Unimplemented, opterrors.UnsupportedStage, "unsupported stage: %q", op)
//	err = opterrors.Wrapf(err, "stage %d", id)
//	opterrors.ErrState(err) // UnsupportedStage
//
// Stack traces are captured at creation and only printed when LogErrStacks is
// set.
package opterrors

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// LogErrStacks controls whether or not printing errors includes the
// embedded stack trace in the output.
var LogErrStacks bool

// New returns an error with the supplied message.
// New also records the stack trace at the point it was called.
func New(code ErrCode, message string) error {
	return &fundamental{
		msg:   message,
		code:  code,
		stack: callers(),
	}
}

// Errorf formats according to a format specifier and returns the string
// as a value that satisfies error.
// Errorf also records the stack trace at the point it was called.
func Errorf(code ErrCode, format string, args ...any) error {
	return &fundamental{
		msg:   fmt.Sprintf(format, args...),
		code:  code,
		stack: callers(),
	}
}

// NewErrorf formats according to a format specifier and returns the string
// as a value that satisfies error. It also records the State of the error.
func NewErrorf(code ErrCode, state State, format string, args ...any) error {
	return &fundamental{
		msg:   fmt.Sprintf(format, args...),
		code:  code,
		state: state,
		stack: callers(),
	}
}

// fundamental is an error that has a message and a stack, but no caller.
type fundamental struct {
	msg   string
	code  ErrCode
	state State
	*stack
}

func (f *fundamental) Error() string { return f.msg }

func (f *fundamental) ErrorCode() ErrCode { return f.code }

func (f *fundamental) ErrorState() State { return f.state }

func (f *fundamental) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		_, _ = io.WriteString(s, f.msg)
		if LogErrStacks || s.Flag('+') {
			f.stack.Format(s, verb)
		}
	case 's':
		_, _ = io.WriteString(s, f.msg)
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", f.msg)
	}
}

// Wrap returns an error annotating err with a stack trace
// at the point Wrap is called, and the supplied message.
// If err is nil, Wrap returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrapping{
		cause: err,
		msg:   message,
		stack: callers(),
	}
}

// Wrapf returns an error annotating err with a stack trace
// at the point Wrapf is called, and the format specifier.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, format string, args ...any) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

type wrapping struct {
	cause error
	msg   string
	*stack
}

func (w *wrapping) Error() string { return w.msg + ": " + w.cause.Error() }

func (w *wrapping) Cause() error { return w.cause }

func (w *wrapping) Unwrap() error { return w.cause }

func (w *wrapping) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		_, _ = io.WriteString(s, w.Error())
		if LogErrStacks || s.Flag('+') {
			w.stack.Format(s, verb)
		}
	case 's':
		_, _ = io.WriteString(s, w.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", w.Error())
	}
}

// Code returns the error code if it's an optimizer error.
// If err is nil, it returns OK.
func Code(err error) ErrCode {
	if err == nil {
		return OK
	}
	var withCode ErrorWithCode
	if errors.As(err, &withCode) {
		return withCode.ErrorCode()
	}

	// Handle some special cases.
	switch {
	case errors.Is(err, context.Canceled):
		return Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return DeadlineExceeded
	}
	return Unknown
}

// ErrState returns the error state if it's an optimizer error.
// If err is nil, it returns Undefined.
func ErrState(err error) State {
	var withState ErrorWithState
	if errors.As(err, &withState) {
		return withState.ErrorState()
	}
	return Undefined
}

// RootCause returns the root cause of an error.
// It unwraps wrapping errors until it reaches one that does not have a cause.
func RootCause(err error) error {
	for {
		cause := Cause(err)
		if cause == nil {
			return err
		}
		err = cause
	}
}

// Cause returns the direct cause of an error created by Wrap or Wrapf,
// or nil if err was not produced by them.
func Cause(err error) error {
	type causer interface {
		Cause() error
	}

	if c, ok := err.(causer); ok {
		return c.Cause()
	}
	return nil
}
