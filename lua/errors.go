// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lua

import (
	"fmt"

	"golang.org/x/xerrors"
)

// Status is a result code for chunk execution and protected calls.
type Status int

const (
	StatusOK Status = iota
	_
	StatusRuntimeError
	StatusSyntaxError
	StatusMemoryError
	StatusErrorInErrorHandler
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRuntimeError:
		return "runtime error"
	case StatusSyntaxError:
		return "syntax error"
	case StatusMemoryError:
		return "memory error"
	case StatusErrorInErrorHandler:
		return "error in error handler"
	default:
		return "unknown status"
	}
}

// Error is the error type raised by every core operation that can
// fail. Value carries whatever Lua value `error()` was called with
// (usually a string, but any value is legal); Status records which
// kind of failure produced it.
//
// Error chains through golang.org/x/xerrors so a host embedder can
// use xerrors.As to recover it out of an error returned across a Go
// API boundary (e.g. from (*State).PCall).
type Error struct {
	Status  Status
	Value   Value
	wrapped error
}

func (e *Error) Error() string {
	if s, ok := e.Value.(*Str); ok {
		return s.s
	}
	if e.wrapped != nil {
		return e.wrapped.Error()
	}
	if e.Value == nil {
		return e.Status.String()
	}
	return fmt.Sprintf("%s: %v", e.Status, e.Value)
}

func (e *Error) Unwrap() error { return e.wrapped }

// newRuntimeError builds a runtime-error Value the way luaG_runerror
// does: "chunkname:line: message", attached to the currently executing
// frame when one is available.
func (s *State) newRuntimeError(format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if pos := s.currentPosition(); pos != "" {
		msg = pos + ": " + msg
	}
	return &Error{Status: StatusRuntimeError, Value: s.g.intern(msg)}
}

// Where returns a "source:line: " position prefix for the function
// `level` calls above the currently running one, or "" if that level
// is a Go function or doesn't exist (luaL_where). level 0 means "no
// position info".
func (s *State) Where(level int) string {
	idx := len(s.callInfo) - 1 - level
	if level <= 0 || idx < 0 || idx >= len(s.callInfo) {
		return ""
	}
	ci := s.callInfo[idx]
	lc, ok := ci.closure.(*LuaClosure)
	if !ok {
		return ""
	}
	line := 0
	if ci.savedPC-1 >= 0 && ci.savedPC-1 < len(lc.Proto.LineInfo) {
		line = lc.Proto.LineInfo[ci.savedPC-1]
	}
	return fmt.Sprintf("%s:%d: ", lc.Proto.Source, line)
}

// RuntimeErrorf builds a runtime error positioned at the Lua caller
// of the currently running Go function (luaL_error's behavior), for
// use by host functions and stdlib builtins that want to return an
// error rather than panic directly.
func (s *State) RuntimeErrorf(format string, args ...any) error {
	msg := s.Where(1) + fmt.Sprintf(format, args...)
	return &Error{Status: StatusRuntimeError, Value: s.g.intern(msg)}
}

func (s *State) currentPosition() string {
	if len(s.callInfo) == 0 {
		return ""
	}
	ci := s.callInfo[len(s.callInfo)-1]
	if ci.closure == nil {
		return ""
	}
	lc, ok := ci.closure.(*LuaClosure)
	if !ok {
		return ""
	}
	line := 0
	if ci.savedPC-1 >= 0 && ci.savedPC-1 < len(lc.Proto.LineInfo) {
		line = lc.Proto.LineInfo[ci.savedPC-1]
	}
	return fmt.Sprintf("%s:%d", lc.Proto.Source, line)
}

// NewSyntaxError builds a syntax error with the "chunkname:line:
// message" formatting used throughout parsing. It is exported for the
// compiler package, which reports parse failures in the same shape as
// a runtime error but cannot construct one directly (that would need
// an import back into this package's internals).
func NewSyntaxError(chunkname string, line int, format string, args ...any) *Error {
	msg := fmt.Sprintf("%s:%d: %s", chunkname, line, fmt.Sprintf(format, args...))
	return &Error{Status: StatusSyntaxError, wrapped: xerrors.New(msg)}
}

// errorInHandler wraps an error raised by an error-message handler
// itself.
func errorInHandler(inner error) *Error {
	return &Error{Status: StatusErrorInErrorHandler, wrapped: xerrors.Errorf("error in error handling: %w", inner)}
}

// IsMemoryError reports whether err is (or wraps) a memory error,
// letting a host embedder special-case allocation failure the way
// lua_pcall's caller inspects the returned status code.
func IsMemoryError(err error) bool {
	var e *Error
	return xerrors.As(err, &e) && e.Status == StatusMemoryError
}
