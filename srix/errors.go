package srix

import (
	"fmt"
	"strings"
)

// Kind categorizes a tag error.
type Kind string

const (
	KindTransport      Kind = "transport"       // reader not ready, exchange failed, bad response length
	KindIdentity       Kind = "identity"        // manufacturer code mismatch
	KindVerification   Kind = "verification"    // read-back after write differs
	KindRange          Kind = "range"           // block index outside 0..127
	KindNotInitialized Kind = "not_initialized" // memory has no tag loaded
)

// Error is the error type returned by the tag memory engine.
type Error struct {
	Err    error
	Kind   Kind
	Op     string
	Detail string
	Block  int // -1 when the error is not tied to a block
}

// Sentinels for errors.Is; matching is by Kind only.
var (
	ErrTransport      = &Error{Kind: KindTransport, Block: -1}
	ErrIdentity       = &Error{Kind: KindIdentity, Block: -1}
	ErrVerification   = &Error{Kind: KindVerification, Block: -1}
	ErrRange          = &Error{Kind: KindRange, Block: -1}
	ErrNotInitialized = &Error{Kind: KindNotInitialized, Block: -1}
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("srix")
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	if e.Block >= 0 {
		fmt.Fprintf(&b, " block %d", e.Block)
	}
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func transportErr(op string, block int, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Block: block, Err: err}
}

func newErr(kind Kind, op string, block int, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Block: block, Detail: fmt.Sprintf(format, args...)}
}
