// Package textunit decodes IBM text units: the tagged key/value encoding
// used inside XMI's INMR01..INMR07 control records. Layout per unit is a
// 2-byte big-endian key, a 2-byte big-endian count n, then n repetitions of
// (2-byte big-endian length + value bytes).
//
// The {Str,Int,Bytes,Timestamp} tagged-variant dispatch below is grounded
// on other_examples/indrora-ponzu's unmarshalMetadata, which switches on a
// numeric record-type tag to decide how to interpret a payload; here the
// switch is over the known INM key registry instead of a CBOR preamble.
package textunit

import (
	"fmt"
	"time"

	"github.com/mainframed/xmi/cursor"
	"github.com/mainframed/xmi/decerr"
	"github.com/mainframed/xmi/ebcdic"
)

// Kind identifies how a text unit's value(s) should be interpreted.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBytes
	KindTimestamp
)

// Value is the decoded value of a single text unit. Values may carry more
// than one repetition (n > 1); most known keys carry exactly one.
type Value struct {
	Key     uint16
	Kind    Kind
	Strings []string
	Ints    []uint64
	Raw     [][]byte
	Times   []time.Time
}

// Known INM text-unit keys and their value kind, per IBM's own text-unit
// registry (the format specification names these keys symbolically
// without giving wire values; the numeric assignments below come
// straight from IBM_text_units in original_source/xmi/__init__.py).
const (
	INMDSNAM = 0x0002
	INMDIR   = 0x000C
	INMBLKSZ = 0x0030
	INMDSORG = 0x003C
	INMLRECL = 0x0042
	INMRECFM = 0x0049
	INMTNODE = 0x1001
	INMTUID  = 0x1002
	INMFNODE = 0x1011
	INMFUID  = 0x1012
	INMCREAT = 0x1022
	INMFVERS = 0x1023
	INMFTIME = 0x1024
	INMFACK  = 0x1026
	INMUTILN = 0x1028
	INMUSERP = 0x1029
	INMSIZE  = 0x102C
	INMNUMF  = 0x102F
	INMTYPE  = 0x8012
)

var registry = map[uint16]Kind{
	INMFTIME: KindTimestamp,
	INMFNODE: KindString,
	INMTNODE: KindString,
	INMFUID:  KindString,
	INMTUID:  KindString,
	INMFACK:  KindString,
	INMUTILN: KindString,
	INMDSNAM: KindString,
	INMCREAT: KindTimestamp,
	INMFVERS: KindString,
	INMNUMF:  KindInt,
	INMUSERP: KindString,
	// INMTYPE, INMDSORG, and INMRECFM are IBM's "hex" text-unit type: a
	// packed flag byte (DS1RECFM-shaped for INMRECFM), not an EBCDIC
	// string, so they stay raw here and get decoded by their specific
	// byte layout at the call site instead of through cp.Decode.
	INMTYPE:  KindBytes,
	INMDSORG: KindBytes,
	INMLRECL: KindInt,
	INMRECFM: KindBytes,
	INMBLKSZ: KindInt,
	INMDIR:   KindInt,
	INMSIZE:  KindInt,
}

// KeyName returns a human-readable name for known keys, or a numeric
// fallback for unknown ones -- used by the JSON projection and debug trace.
func KeyName(key uint16) string {
	names := map[uint16]string{
		INMFTIME: "INMFTIME", INMFNODE: "INMFNODE", INMTNODE: "INMTNODE",
		INMFUID: "INMFUID", INMTUID: "INMTUID", INMFACK: "INMFACK",
		INMUTILN: "INMUTILN", INMDSNAM: "INMDSNAM", INMCREAT: "INMCREAT",
		INMFVERS: "INMFVERS", INMNUMF: "INMNUMF", INMUSERP: "INMUSERP",
		INMTYPE: "INMTYPE", INMDSORG: "INMDSORG", INMLRECL: "INMLRECL",
		INMRECFM: "INMRECFM", INMBLKSZ: "INMBLKSZ", INMDIR: "INMDIR",
		INMSIZE: "INMSIZE",
	}
	if n, ok := names[key]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN_%04X", key)
}

// DecodeAll reads text units from c until the cursor is exhausted, using
// cp to transcode string-valued units.
func DecodeAll(c *cursor.Cursor, cp *ebcdic.CodePage) ([]Value, error) {
	var out []Value
	for !c.EOF() {
		v, err := decodeOne(c, cp)
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeOne(c *cursor.Cursor, cp *ebcdic.CodePage) (Value, error) {
	key, err := c.ReadU16BE()
	if err != nil {
		return Value{}, err
	}
	n, err := c.ReadU16BE()
	if err != nil {
		return Value{}, err
	}
	kind, known := registry[key]
	if !known {
		kind = KindBytes
	}
	v := Value{Key: key, Kind: kind}
	for i := uint16(0); i < n; i++ {
		l, err := c.ReadU16BE()
		if err != nil {
			return Value{}, err
		}
		raw, err := c.ReadBytes(int(l))
		if err != nil {
			return Value{}, err
		}
		switch kind {
		case KindString:
			v.Strings = append(v.Strings, cp.Decode(raw))
		case KindInt:
			var iv uint64
			for _, b := range raw {
				iv = iv<<8 | uint64(b)
			}
			v.Ints = append(v.Ints, iv)
		case KindTimestamp:
			ts, err := decodePackedTimestamp(raw, cp)
			if err != nil {
				return Value{}, err
			}
			v.Times = append(v.Times, ts)
		default:
			v.Raw = append(v.Raw, raw)
		}
	}
	return v, nil
}

// decodePackedTimestamp decodes the YYYYMMDDhhmmss packed-decimal
// timestamp used by INMFTIME/INMCREAT. The value arrives as EBCDIC digit
// characters, not true packed BCD nibbles, per observed XMI samples.
func decodePackedTimestamp(raw []byte, cp *ebcdic.CodePage) (time.Time, error) {
	s := cp.Decode(raw)
	if len(s) < 14 {
		return time.Time{}, decerr.Malformed(-1, "short text-unit timestamp: "+s)
	}
	layout := "20060102150405"
	t, err := time.Parse(layout, s[:14])
	if err != nil {
		return time.Time{}, &decerr.Error{Kind: decerr.MalformedRecord, Offset: -1, Context: "bad timestamp " + s, Cause: err}
	}
	return t, nil
}
