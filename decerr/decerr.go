// Package decerr defines the error taxonomy shared by every decoder in this
// module: cursor, ebcdic, recfmt, textunit, xmi, awstape and iebcopy all
// return *decerr.Error values (or wrap them) rather than ad-hoc errors, so
// callers can classify a failure with errors.As regardless of which layer
// produced it.
package decerr

import (
	"errors"
	"fmt"
)

// Kind classifies a decoding failure per the taxonomy in the format
// specification. Kind values are never used for control flow inside this
// package; they exist so callers (in particular the orchestrator's
// propagation policy) can decide whether to abort or warn.
type Kind int

const (
	// TruncatedKind means a read ran past the end of the available buffer.
	TruncatedKind Kind = iota
	// UnknownContainer means the root container sniff matched nothing.
	UnknownContainer
	// MalformedRecord means an internal structural check failed: a bad
	// BDW/RDW, a missing eye-catcher, an out-of-order segment.
	MalformedRecord
	// UnsupportedUtility means an INMR02 named a utility this decoder
	// refuses to process (AMSCIPHR, or an unrecognized INMUTILN).
	UnsupportedUtility
	// UnsupportedFeature means a recognized-but-unimplemented corner of
	// the format was encountered. An AWS block with a compression flag
	// fails the tape decode with it; the orchestrator also uses it for the
	// non-fatal findings it records as warnings (orphan member data,
	// descriptor count mismatches). Nested-depth overflow is reported as
	// PolicyViolation.
	UnsupportedFeature
	// DecodingError means an EBCDIC table or similar total mapping was
	// found incomplete. Should be unreachable with shipped tables.
	DecodingError
	// PolicyViolation means a configured resource bound (max_record_bytes,
	// max_nested) was exceeded.
	PolicyViolation
)

func (k Kind) String() string {
	switch k {
	case TruncatedKind:
		return "Truncated"
	case UnknownContainer:
		return "UnknownContainer"
	case MalformedRecord:
		return "MalformedRecord"
	case UnsupportedUtility:
		return "UnsupportedUtility"
	case UnsupportedFeature:
		return "UnsupportedFeature"
	case DecodingError:
		return "DecodingError"
	case PolicyViolation:
		return "PolicyViolation"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by every package in this
// module. Offset is the byte offset within the buffer or stream that was
// being read when the failure occurred, or -1 when not applicable.
type Error struct {
	Kind    Kind
	Offset  int64
	Context string
	Cause   error
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		if e.Cause != nil {
			return fmt.Sprintf("%s at offset %d: %s: %v", e.Kind, e.Offset, e.Context, e.Cause)
		}
		return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Offset, e.Context)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a *Error of the same Kind, so callers can
// write errors.Is(err, &decerr.Error{Kind: decerr.TruncatedKind}).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// Truncated builds a Truncated error describing a short read.
func Truncated(offset int64, need, have int) *Error {
	return &Error{
		Kind:    TruncatedKind,
		Offset:  offset,
		Context: fmt.Sprintf("need %d bytes, have %d", need, have),
	}
}

// Malformed builds a MalformedRecord error.
func Malformed(offset int64, context string) *Error {
	return &Error{Kind: MalformedRecord, Offset: offset, Context: context}
}

// Unsupported builds an UnsupportedFeature error.
func Unsupported(offset int64, context string) *Error {
	return &Error{Kind: UnsupportedFeature, Offset: offset, Context: context}
}

// UnsupportedUtil builds an UnsupportedUtility error for a named utility.
func UnsupportedUtil(name string) *Error {
	return &Error{Kind: UnsupportedUtility, Offset: -1, Context: name}
}

// Policy builds a PolicyViolation error.
func Policy(offset int64, context string) *Error {
	return &Error{Kind: PolicyViolation, Offset: offset, Context: context}
}

// Unknown builds an UnknownContainer error.
func Unknown(context string) *Error {
	return &Error{Kind: UnknownContainer, Offset: 0, Context: context}
}

// KindOf extracts the Kind of err, if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
