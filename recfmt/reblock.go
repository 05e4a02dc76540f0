package recfmt

import "github.com/mainframed/xmi/decerr"

// Reblocker is the inverse of Deblocker: it packs logical records back
// into physical blocks. It exists to make the deblock/reblock identity
// property testable; the recfmt tests are its only callers in this
// module.
type Reblocker struct {
	p Params
}

// NewReblocker constructs a Reblocker for the given parameters.
func NewReblocker(p Params) *Reblocker {
	return &Reblocker{p: p}
}

// Reblock packs records into physical blocks.
func (r *Reblocker) Reblock(records [][]byte) ([][]byte, error) {
	switch r.p.Recfm.Base {
	case BaseF:
		return r.reblockFixed(records)
	case BaseU:
		out := make([][]byte, len(records))
		for i, rec := range records {
			out[i] = append([]byte(nil), rec...)
		}
		return out, nil
	case BaseV:
		return r.reblockVariable(records)
	default:
		return nil, decerr.Malformed(-1, "unsupported RECFM base for reblocking")
	}
}

func (r *Reblocker) reblockFixed(records [][]byte) ([][]byte, error) {
	lrecl := r.p.Lrecl
	if lrecl <= 0 {
		return nil, decerr.Malformed(-1, "LRECL must be positive for RECFM=F")
	}
	for _, rec := range records {
		if len(rec) != lrecl {
			return nil, decerr.Malformed(-1, "record length does not match LRECL")
		}
	}
	if !r.p.Recfm.Blocked {
		out := make([][]byte, len(records))
		for i, rec := range records {
			out[i] = append([]byte(nil), rec...)
		}
		return out, nil
	}
	perBlock := r.p.Blksize / lrecl
	if perBlock < 1 {
		perBlock = 1
	}
	var out [][]byte
	for i := 0; i < len(records); i += perBlock {
		end := i + perBlock
		if end > len(records) {
			end = len(records)
		}
		block := make([]byte, 0, (end-i)*lrecl)
		for _, rec := range records[i:end] {
			block = append(block, rec...)
		}
		out = append(out, block)
	}
	return out, nil
}

func (r *Reblocker) reblockVariable(records [][]byte) ([][]byte, error) {
	var blocks [][]byte
	var cur []byte

	flush := func() {
		if len(cur) == 0 {
			return
		}
		blkLen := bdwLen + len(cur)
		blk := make([]byte, blkLen)
		blk[0] = byte(blkLen >> 8)
		blk[1] = byte(blkLen)
		copy(blk[bdwLen:], cur)
		blocks = append(blocks, blk)
		cur = nil
	}

	maxPayload := r.p.Blksize - bdwLen - rdwLen
	if maxPayload <= 0 {
		return nil, decerr.Malformed(-1, "BLKSIZE too small to hold any RDW")
	}

	appendSeg := func(payload []byte, seg byte) error {
		segLen := rdwLen + len(payload)
		avail := r.p.Blksize - bdwLen - len(cur)
		if segLen > avail {
			flush()
			avail = r.p.Blksize - bdwLen
			if segLen > avail {
				return decerr.Malformed(-1, "segment does not fit within BLKSIZE")
			}
		}
		rdw := []byte{byte(segLen >> 8), byte(segLen), 0, seg}
		cur = append(cur, rdw...)
		cur = append(cur, payload...)
		if !r.p.Recfm.Blocked {
			flush()
		}
		return nil
	}

	for _, rec := range records {
		if len(rec) <= maxPayload {
			if err := appendSeg(rec, segComplete); err != nil {
				return nil, err
			}
			continue
		}
		if !r.p.Recfm.Spanned {
			return nil, decerr.Malformed(-1, "record too large for BLKSIZE and RECFM is not spanned")
		}
		remaining := rec
		first := true
		for len(remaining) > 0 {
			chunk := maxPayload
			if chunk > len(remaining) {
				chunk = len(remaining)
			}
			isLast := chunk == len(remaining)
			var seg byte
			switch {
			case first:
				seg = segFirst
			case isLast:
				seg = segLast
			default:
				seg = segMiddle
			}
			if err := appendSeg(remaining[:chunk], seg); err != nil {
				return nil, err
			}
			remaining = remaining[chunk:]
			first = false
		}
	}
	flush()
	return blocks, nil
}
