// Package bronerr classifies every error the pipeline can produce into the
// six kinds spec.md §7 names: NotFound, Transient, Decode, Arithmetic,
// Protocol, Fatal. A stage returns a plain Go error; the BlockPipeline
// inspects its kind with Is/As to decide retry vs record-and-continue vs
// shutdown.
package bronerr

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

type Kind int

const (
	KindNotFound Kind = iota
	KindTransient
	KindDecode
	KindArithmetic
	KindProtocol
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	case KindDecode:
		return "decode"
	case KindArithmetic:
		return "arithmetic"
	case KindProtocol:
		return "protocol"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a classified error carrying its Kind plus remediation context
// (stage, block, offending key) so the BlockPipeline can emit the
// per-block log line spec.md §7 requires: "block number, stage, error
// kind, and remediation hint".
type Error struct {
	Kind        Kind
	Stage       string
	Block       uint64
	Key         string
	Remediation string
	cause       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] stage=%s block=%d", e.Kind, e.Stage, e.Block)
	if e.Key != "" {
		msg += fmt.Sprintf(" key=%s", e.Key)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	if e.Remediation != "" {
		msg += " (" + e.Remediation + ")"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

type Option func(*Error)

func WithBlock(b uint64) Option      { return func(e *Error) { e.Block = b } }
func WithKey(k string) Option        { return func(e *Error) { e.Key = k } }
func WithRemediation(r string) Option { return func(e *Error) { e.Remediation = r } }

func newErr(kind Kind, stage string, cause error, opts ...Option) *Error {
	e := &Error{Kind: kind, Stage: stage, cause: cause}
	for _, o := range opts {
		o(e)
	}
	return e
}

func NotFound(stage string, opts ...Option) *Error {
	return newErr(KindNotFound, stage, nil, opts...)
}

// Transient wraps a cause with a stack trace (pkgerrors.WithStack) so retry
// logging keeps the original call site even after N backoff attempts.
func Transient(stage string, cause error, opts ...Option) *Error {
	return newErr(KindTransient, stage, pkgerrors.WithStack(cause), opts...)
}

func Decode(stage string, cause error, opts ...Option) *Error {
	return newErr(KindDecode, stage, cause, opts...)
}

func Arithmetic(stage string, cause error, opts ...Option) *Error {
	return newErr(KindArithmetic, stage, cause, opts...)
}

func Protocol(stage string, cause error, opts ...Option) *Error {
	return newErr(KindProtocol, stage, cause, opts...)
}

// Fatal captures a stack trace unconditionally: per spec.md §7, Fatal
// triggers graceful shutdown and the operator needs to see where it
// originated.
func Fatal(stage string, cause error, opts ...Option) *Error {
	return newErr(KindFatal, stage, pkgerrors.WithStack(cause), opts...)
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func IsKind(err error, k Kind) bool {
	kind, ok := KindOf(err)
	return ok && kind == k
}
