// Package chainerr defines the error taxonomy shared by every layer of the
// transaction execution core. Every exported operation in this
// module returns errors built through New/Wrap so callers can classify
// failures with errors.Is / As without string matching.
package chainerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by category. Kind is not itself an error;
// pair it with New or Wrap.
type Kind string

const (
	Parse              Kind = "parse"
	Serialization       Kind = "serialization"
	Authorization       Kind = "authorization"
	ActionValidation    Kind = "action_validation"
	Transaction         Kind = "transaction"
	WasmRuntime         Kind = "wasm_runtime"
	ResourceExhausted   Kind = "resource_exhausted"
	Internal            Kind = "internal"
	NotFound            Kind = "not_found"
)

// Error is the concrete error type returned across package boundaries.
type Error struct {
	Kind Kind
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.err }

// Is lets errors.Is(err, chainerr.Sentinel(chainerr.Authorization)) work
// by comparing Kind against a bare Kind sentinel wrapped as an *Error
// with no message.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds a fresh error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind/context to an underlying error without discarding it.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), err: err}
}

// Sentinel returns a zero-message error usable only with errors.Is to test
// the Kind of an arbitrary error, e.g. errors.Is(err, chainerr.Sentinel(NotFound)).
func Sentinel(kind Kind) error { return &Error{Kind: kind} }

// OfKind reports whether err (or any error in its chain) carries kind.
func OfKind(err error, kind Kind) bool {
	return errors.Is(err, Sentinel(kind))
}
