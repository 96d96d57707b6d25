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

package opterrors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "no error"))
	assert.Nil(t, Wrapf(nil, "no error %d", 1))
}

func TestWrap(t *testing.T) {
	tests := []struct {
		err         error
		message     string
		wantMessage string
		wantCode    ErrCode
	}{
		{io.EOF, "read error", "read error: EOF", Unknown},
		{New(InvalidArgument, "oops"), "stage 3", "stage 3: oops", InvalidArgument},
	}

	for _, tt := range tests {
		got := Wrap(tt.err, tt.message)
		assert.Equal(t, tt.wantMessage, got.Error())
		assert.Equal(t, tt.wantCode, Code(got))
	}
}

func TestRootCauseAndCause(t *testing.T) {
	x := New(Internal, "error")

	assert.Nil(t, RootCause(nil))
	assert.Equal(t, io.EOF, RootCause(io.EOF))
	assert.Equal(t, io.EOF, RootCause(Wrap(Wrap(io.EOF, "inner"), "outer")))
	assert.Equal(t, x, RootCause(x))

	assert.Nil(t, Cause(nil))
	assert.Nil(t, Cause(io.EOF))
	assert.Nil(t, Cause(x))
	assert.Equal(t, io.EOF, Cause(Wrap(io.EOF, "ignored")))
}

func TestWrapf(t *testing.T) {
	tests := []struct {
		err     error
		message string
		want    string
	}{
		{io.EOF, "read error", "read error: EOF"},
		{Wrapf(io.EOF, "read error without format specifiers"), "client error", "client error: read error without format specifiers: EOF"},
		{Wrapf(io.EOF, "read error with %d format specifier", 1), "client error", "client error: read error with 1 format specifier: EOF"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Wrapf(tt.err, "%s", tt.message).Error())
	}
}

func TestNewErrorfState(t *testing.T) {
	err := NewErrorf(Unimplemented, UnsupportedStage, "unsupported stage: %q", "$out")
	assert.Equal(t, `unsupported stage: "$out"`, err.Error())
	assert.Equal(t, Unimplemented, Code(err))
	assert.Equal(t, UnsupportedStage, ErrState(err))

	wrapped := Wrapf(err, "stage %d", 4)
	assert.Equal(t, Unimplemented, Code(wrapped))
	assert.Equal(t, UnsupportedStage, ErrState(wrapped))
	assert.Equal(t, "UnsupportedStage", ErrState(wrapped).String())

	assert.Equal(t, Undefined, ErrState(io.EOF))
	assert.Equal(t, Undefined, ErrState(nil))
}

func TestErrorsIs(t *testing.T) {
	err := Wrap(io.ErrUnexpectedEOF, "decoding stage")
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	var withState ErrorWithState
	require.True(t, errors.As(Wrap(NewErrorf(InvalidArgument, MalformedStage, "x"), "y"), &withState))
	assert.Equal(t, MalformedStage, withState.ErrorState())
}

func TestCode(t *testing.T) {
	testcases := []struct {
		in   error
		want ErrCode
	}{
		{in: nil, want: OK},
		{in: errors.New("generic"), want: Unknown},
		{in: New(Canceled, "generic"), want: Canceled},
		{in: context.Canceled, want: Canceled},
		{in: fmt.Errorf("batch: %w", context.DeadlineExceeded), want: DeadlineExceeded},
	}
	for _, tcase := range testcases {
		assert.Equal(t, tcase.want, Code(tcase.in), "Code(%v)", tcase.in)
	}
	assert.Equal(t, "UNIMPLEMENTED", Unimplemented.String())
	assert.Equal(t, "UNKNOWN", ErrCode(99).String())
}

func innerMost() error {
	return Wrap(io.ErrNoProgress, "oh noes")
}

func middle() error {
	return innerMost()
}

func outer() error {
	return middle()
}

func TestStackFormat(t *testing.T) {
	err := outer()
	got := fmt.Sprintf("%v", err)

	assert.NotContains(t, got, "innerMost")
	assert.NotContains(t, got, "middle")

	LogErrStacks = true
	defer func() { LogErrStacks = false }()
	got = fmt.Sprintf("%v", err)
	assert.Contains(t, got, "innerMost")
	assert.Contains(t, got, "middle")
	assert.Contains(t, got, "outer")
}

func TestWrapping(t *testing.T) {
	err1 := Errorf(Internal, "foo")
	err2 := Wrapf(err1, "bar")
	err3 := Wrapf(err2, "baz")
	errorWithoutStack := fmt.Sprintf("%v", err3)
	errorWithStack := fmt.Sprintf("%+v", err3)

	assert.Equal(t, "baz: bar: foo", err3.Error())
	assert.Equal(t, "baz: bar: foo", errorWithoutStack)
	assert.False(t, strings.Contains(errorWithoutStack, "TestWrapping"))
	assert.True(t, strings.Contains(errorWithStack, "TestWrapping"))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(NewErrorf(InvalidArgument, MalformedStage, "bad")))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(NewErrorf(Unimplemented, UnsupportedOperator, "bad")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(io.EOF))

	long := New(Internal, strings.Repeat("x", maxMessageLen+10))
	assert.True(t, strings.HasSuffix(Message(long), "[remainder of the error is truncated]"))
	assert.Equal(t, "", Message(nil))
}
