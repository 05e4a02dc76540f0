// Package recfmt implements the shared record-format engine: given
// (RECFM, LRECL, BLKSIZE) it deblocks a stream of physical blocks into
// logical records, and reblocks logical records back into physical
// blocks. The xmi and iebcopy framers and the orchestrator's tape-file
// path are built on top of it instead of hand-rolling fixed-width
// slicing, per the composition-over-inheritance design note in the
// format specification.
//
// The two directions are Deblocker.Feed and Reblocker.Reblock, both over
// byte slices; that symmetry is grounded on golang-tools' archive/tar
// package (a paired tar.Reader/tar.Writer over an io.Reader/io.Writer) and
// on bgilmore-jpar's Reader, which layers a higher-level reader over a
// lower-level one rather than duplicating framing logic per format.
package recfmt

import (
	"github.com/mainframed/xmi/decerr"
)

// Base is the fundamental record shape, independent of blocking/spanning.
type Base byte

const (
	BaseF Base = 'F' // fixed
	BaseV Base = 'V' // variable
	BaseU Base = 'U' // undefined
)

// Carriage identifies the first-byte carriage-control convention. The
// engine preserves the first byte of every record verbatim regardless of
// this value; Carriage only affects presentation, per the spec.
type Carriage byte

const (
	CarriageNone    Carriage = 0
	CarriageANSI    Carriage = 'A'
	CarriageMachine Carriage = 'M'
)

// RECFM fully describes a record format: base shape, blocked, spanned, and
// carriage convention.
type RECFM struct {
	Base     Base
	Blocked  bool
	Spanned  bool
	Carriage Carriage
}

// String renders the canonical short form: F, FB, V, VB, VS, VBS, U, FBA, ...
func (r RECFM) String() string {
	s := string(r.Base)
	if r.Blocked {
		s += "B"
	}
	if r.Spanned {
		s += "S"
	}
	if r.Carriage != CarriageNone {
		s += string(r.Carriage)
	}
	return s
}

// Parse accepts the letter RECFM spelling found in a tape HDR2 label
// ("F", "FB", "V", "VB", "VS", "VBS", "U", with an optional trailing "A"
// or "M" carriage suffix) and returns the structured form.
func Parse(s string) (RECFM, error) {
	if len(s) == 0 {
		return RECFM{}, decerr.Malformed(-1, "empty RECFM")
	}
	var r RECFM
	switch s[0] {
	case 'F':
		r.Base = BaseF
	case 'V':
		r.Base = BaseV
	case 'U':
		r.Base = BaseU
	default:
		return RECFM{}, decerr.Malformed(-1, "unrecognized RECFM base: "+s)
	}
	rest := s[1:]
	for len(rest) > 0 {
		switch rest[0] {
		case 'B':
			r.Blocked = true
		case 'S':
			r.Spanned = true
		case 'A':
			r.Carriage = CarriageANSI
		case 'M':
			r.Carriage = CarriageMachine
		default:
			return RECFM{}, decerr.Malformed(-1, "unrecognized RECFM suffix: "+s)
		}
		rest = rest[1:]
	}
	if r.Base == BaseU && (r.Blocked || r.Spanned) {
		return RECFM{}, decerr.Malformed(-1, "RECFM=U cannot be blocked or spanned: "+s)
	}
	return r, nil
}

// FromDS1RECFM translates the packed one-byte DS1RECFM encoding used in
// IEBCOPY's COPYR1 control record (see the Glossary) into structured form.
//
//	bits 7-6: 10=F, 01=V, 11=U
//	bit  4:   blocked
//	bit  3:   spanned
//	bits 2-1: 01=machine carriage, 10=ANSI carriage, 00=none
func FromDS1RECFM(b byte) (RECFM, error) {
	var r RECFM
	switch b >> 6 {
	case 0b10:
		r.Base = BaseF
	case 0b01:
		r.Base = BaseV
	case 0b11:
		r.Base = BaseU
	default:
		return RECFM{}, decerr.Malformed(-1, "unrecognized DS1RECFM format bits")
	}
	r.Blocked = b&0x10 != 0
	r.Spanned = b&0x08 != 0
	switch (b >> 1) & 0x03 {
	case 0b01:
		r.Carriage = CarriageMachine
	case 0b10:
		r.Carriage = CarriageANSI
	}
	if r.Base == BaseU {
		r.Blocked = false
		r.Spanned = false
	}
	return r, nil
}

// ToDS1RECFM is the inverse of FromDS1RECFM.
func ToDS1RECFM(r RECFM) byte {
	var b byte
	switch r.Base {
	case BaseF:
		b |= 0b10 << 6
	case BaseV:
		b |= 0b01 << 6
	case BaseU:
		b |= 0b11 << 6
	}
	if r.Blocked {
		b |= 0x10
	}
	if r.Spanned {
		b |= 0x08
	}
	switch r.Carriage {
	case CarriageMachine:
		b |= 0b01 << 1
	case CarriageANSI:
		b |= 0b10 << 1
	}
	return b
}

// Params bundles the three values the engine needs beyond the record
// stream itself.
type Params struct {
	Recfm   RECFM
	Lrecl   int
	Blksize int
}
