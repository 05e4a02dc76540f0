package recfmt

import "github.com/mainframed/xmi/decerr"

// segComplete/segFirst/segLast/segMiddle are the RDW segment indicators for
// spanned records, stored in the low byte of the RDW's reserved halfword.
const (
	segComplete byte = 0
	segFirst    byte = 1
	segLast     byte = 2
	segMiddle   byte = 3
)

const rdwLen = 4
const bdwLen = 4

// Deblocker consumes physical blocks in order and yields completed logical
// records. It is a pull consumer, not a pull producer: callers Feed() one
// physical block at a time (as produced by the outer AWS/XMI/IEBCOPY
// framer) and receive zero or more completed logical records back,
// matching the streaming model in the spec's concurrency section --
// callers may materialize blocks lazily and hand them to Feed as they
// arrive.
type Deblocker struct {
	p Params

	// spanned-record accumulation state.
	pending    []byte
	inSpan     bool
	sawFirst   bool
}

// NewDeblocker constructs a Deblocker for the given parameters.
func NewDeblocker(p Params) *Deblocker {
	return &Deblocker{p: p}
}

// Feed processes one physical block and returns the logical records it
// completed. For F/FB/U formats a block always yields all of its records
// immediately (spanning is only meaningful for V-family formats). For
// V/VB a block may yield zero records if every record in it is a
// non-terminal spanned segment.
func (d *Deblocker) Feed(block []byte) ([][]byte, error) {
	switch d.p.Recfm.Base {
	case BaseF:
		return d.feedFixed(block)
	case BaseU:
		return [][]byte{append([]byte(nil), block...)}, nil
	case BaseV:
		return d.feedVariable(block)
	default:
		return nil, decerr.Malformed(-1, "unsupported RECFM base for deblocking")
	}
}

func (d *Deblocker) feedFixed(block []byte) ([][]byte, error) {
	lrecl := d.p.Lrecl
	if lrecl <= 0 {
		return nil, decerr.Malformed(-1, "LRECL must be positive for RECFM=F")
	}
	if !d.p.Recfm.Blocked {
		if len(block) != lrecl {
			return nil, decerr.Malformed(-1, "RECFM=F block length mismatch")
		}
		return [][]byte{append([]byte(nil), block...)}, nil
	}
	if len(block)%lrecl != 0 {
		return nil, decerr.Malformed(-1, "RECFM=FB block length is not a multiple of LRECL")
	}
	n := len(block) / lrecl
	if d.p.Blksize > 0 && n > d.p.Blksize/lrecl {
		return nil, decerr.Malformed(-1, "RECFM=FB block holds more records than BLKSIZE allows")
	}
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		rec := make([]byte, lrecl)
		copy(rec, block[i*lrecl:(i+1)*lrecl])
		out = append(out, rec)
	}
	return out, nil
}

func (d *Deblocker) feedVariable(block []byte) ([][]byte, error) {
	if len(block) < bdwLen {
		return nil, decerr.Truncated(0, bdwLen, len(block))
	}
	bdwSize := int(block[0])<<8 | int(block[1])
	if bdwSize < bdwLen || bdwSize > len(block) {
		return nil, decerr.Malformed(0, "invalid BDW length")
	}
	var out [][]byte
	pos := bdwLen
	for pos < bdwSize {
		if pos+rdwLen > bdwSize {
			return nil, decerr.Truncated(int64(pos), rdwLen, bdwSize-pos)
		}
		rdwSize := int(block[pos])<<8 | int(block[pos+1])
		seg := block[pos+3]
		if rdwSize < rdwLen {
			return nil, decerr.Malformed(int64(pos), "invalid RDW length")
		}
		if pos+rdwSize > bdwSize {
			return nil, decerr.Truncated(int64(pos), rdwSize, bdwSize-pos)
		}
		payload := block[pos+rdwLen : pos+rdwSize]

		if !d.p.Recfm.Spanned {
			if seg != segComplete {
				return nil, decerr.Malformed(int64(pos), "segment indicator set on non-spanned RECFM")
			}
			rec := make([]byte, len(payload))
			copy(rec, payload)
			out = append(out, rec)
		} else {
			rec, completed, err := d.consumeSegment(seg, payload, pos)
			if err != nil {
				return nil, err
			}
			if completed {
				out = append(out, rec)
			}
		}
		pos += rdwSize
	}
	return out, nil
}

func (d *Deblocker) consumeSegment(seg byte, payload []byte, offset int) (rec []byte, completed bool, err error) {
	switch seg {
	case segComplete:
		if d.inSpan {
			return nil, false, decerr.Malformed(int64(offset), "complete segment while a span is open")
		}
		rec = make([]byte, len(payload))
		copy(rec, payload)
		return rec, true, nil
	case segFirst:
		if d.inSpan {
			return nil, false, decerr.Malformed(int64(offset), "first segment while a span is already open")
		}
		d.pending = append([]byte(nil), payload...)
		d.inSpan = true
		d.sawFirst = true
		return nil, false, nil
	case segMiddle:
		if !d.inSpan {
			return nil, false, decerr.Malformed(int64(offset), "middle segment with no open span")
		}
		d.pending = append(d.pending, payload...)
		return nil, false, nil
	case segLast:
		if !d.inSpan {
			return nil, false, decerr.Malformed(int64(offset), "last segment with no open span")
		}
		d.pending = append(d.pending, payload...)
		rec = d.pending
		d.pending = nil
		d.inSpan = false
		d.sawFirst = false
		return rec, true, nil
	default:
		return nil, false, decerr.Malformed(int64(offset), "unrecognized segment indicator")
	}
}

// Flush reports an error if a spanned record was left incomplete at the
// end of the stream.
func (d *Deblocker) Flush() error {
	if d.inSpan {
		return decerr.Malformed(-1, "stream ended with an incomplete spanned record")
	}
	return nil
}
