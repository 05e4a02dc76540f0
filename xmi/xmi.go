// Package xmi frames NETDATA/XMI streams: INMR01..INMR07 control records
// and the INMCOPY-segmented payload they wrap. Control records are
// recognized by their 6-byte ASCII tag (INMRxx); any logical record
// without that tag belongs to the current data segment.
//
// The tag-dispatch loop is the same DecodedRecord iterator shape used by
// awstape, grounded on other_examples/indrora-ponzu's tag-then-payload
// dispatch: here the tag is a 6-byte ASCII string instead of a numeric
// preamble.
package xmi

import (
	"io"

	"github.com/mainframed/xmi/cursor"
	"github.com/mainframed/xmi/decerr"
	"github.com/mainframed/xmi/decrec"
	"github.com/mainframed/xmi/ebcdic"
	"github.com/mainframed/xmi/recfmt"
	"github.com/mainframed/xmi/textunit"
)

// Control record tags recognized by the framer.
const (
	TagINMR01 = "INMR01"
	TagINMR02 = "INMR02"
	TagINMR03 = "INMR03"
	TagINMR04 = "INMR04"
	TagINMR06 = "INMR06"
	TagINMR07 = "INMR07"
)

// FileDescriptor is one INMR02: the text units describing a dataset (or,
// for the first INMR02 naming INMCOPY with no INMDSNAM, the message).
type FileDescriptor struct {
	Units      []textunit.Value
	UtilName   string
	DatasetName string
	IsMessage  bool
}

// Segment is one INMR03 data-format descriptor paired with the data
// bytes that followed it, up to the next control record.
type Segment struct {
	Units []textunit.Value
	Data  []byte
}

// Stream is the fully-parsed control-record structure of one XMI: the
// INMR01 header units, the ordered file descriptors, their data
// segments, and any installation-exit payloads.
type Stream struct {
	Header      []textunit.Value
	Descriptors []FileDescriptor
	Segments    []Segment
	Exits       [][]byte
}

// tagOf reads a fixed 6-byte slice as an EBCDIC-decoded tag; on
// mis-decode (non-ASCII) callers treat it as untagged data.
func tagOf(raw []byte, cp *ebcdic.CodePage) string {
	if len(raw) < 6 {
		return ""
	}
	return cp.Decode(raw[:6])
}

// isControlTag reports whether s looks like one of the INMRxx tags this
// framer recognizes.
func isControlTag(s string) bool {
	switch s {
	case TagINMR01, TagINMR02, TagINMR03, TagINMR04, TagINMR06, TagINMR07:
		return true
	}
	return false
}

// Decode parses an entire XMI byte stream (already deblocked into
// logical records by the caller when the container is text-framed; see
// Reader below for the raw-bytes entry point) into a Stream.
func Decode(records [][]byte, cp *ebcdic.CodePage) (*Stream, error) {
	s := &Stream{}
	var curSegment *Segment
	sawR01 := false
	sawR06 := false

	flushSegment := func() {
		if curSegment != nil {
			s.Segments = append(s.Segments, *curSegment)
			curSegment = nil
		}
	}

	for _, rec := range records {
		if sawR06 {
			// Trailing records after INMR06 are ignored; the terminator
			// ends decoding per the format specification.
			break
		}
		tag := tagOf(rec, cp)
		if !isControlTag(tag) {
			if curSegment == nil {
				return s, decerr.Malformed(0, "data record with no open INMCOPY segment")
			}
			curSegment.Data = append(curSegment.Data, rec...)
			continue
		}

		body := rec[6:]
		units, err := textunit.DecodeAll(cursor.New(body), cp)
		if err != nil {
			return s, err
		}

		switch tag {
		case TagINMR01:
			sawR01 = true
			s.Header = units
		case TagINMR02:
			fd := FileDescriptor{Units: units}
			for _, u := range units {
				switch u.Key {
				case textunit.INMUTILN:
					if len(u.Strings) > 0 {
						fd.UtilName = u.Strings[0]
					}
				case textunit.INMDSNAM:
					if len(u.Strings) > 0 {
						fd.DatasetName = u.Strings[0]
					}
				}
			}
			if fd.UtilName == "AMSCIPHR" {
				return s, decerr.UnsupportedUtil("AMSCIPHR")
			}
			if len(s.Descriptors) == 0 && fd.UtilName == "INMCOPY" && fd.DatasetName == "" {
				fd.IsMessage = true
			}
			s.Descriptors = append(s.Descriptors, fd)
		case TagINMR03:
			flushSegment()
			curSegment = &Segment{Units: units}
		case TagINMR04:
			s.Exits = append(s.Exits, body)
		case TagINMR06:
			flushSegment()
			sawR06 = true
		case TagINMR07:
			// Notification: ignored per the format specification.
		}
	}
	flushSegment()
	if !sawR01 {
		return s, decerr.Malformed(0, "missing INMR01")
	}
	if !sawR06 {
		return s, decerr.Malformed(0, "missing INMR06 terminator")
	}
	return s, nil
}

// Reader wraps a text-framed XMI (80-byte-line-framed logical records)
// and yields decrec.Record values, delegating the outer deblocking to
// recfmt instead of hand-slicing fixed-width lines.
type Reader struct {
	deblocker *recfmt.Deblocker
	cp        *ebcdic.CodePage
	c         *cursor.Cursor
	pending   [][]byte
	pos       int
}

// NewReader constructs a Reader over raw bytes framed as 80-byte fixed
// blocked records (RECFM=FB, LRECL=80), the layout standalone XMI files
// use on disk.
func NewReader(raw []byte, cp *ebcdic.CodePage) *Reader {
	params := recfmt.Params{
		Recfm:   recfmt.RECFM{Base: recfmt.BaseF, Blocked: true},
		Lrecl:   80,
		Blksize: 80,
	}
	return &Reader{
		deblocker: recfmt.NewDeblocker(params),
		cp:        cp,
		c:         cursor.New(raw),
	}
}

// Next returns the next decrec.XMIControl or decrec.XMIData record, or
// io.EOF when the underlying buffer is exhausted.
func (r *Reader) Next() (decrec.Record, error) {
	for r.pos >= len(r.pending) {
		if r.c.EOF() {
			return nil, io.EOF
		}
		chunk, err := r.c.ReadBytes(int(min(int64(80), r.c.Remaining())))
		if err != nil {
			return nil, err
		}
		recs, err := r.deblocker.Feed(chunk)
		if err != nil {
			return nil, err
		}
		r.pending = recs
		r.pos = 0
		if len(recs) == 0 && r.c.EOF() {
			return nil, io.EOF
		}
	}
	rec := r.pending[r.pos]
	r.pos++
	tag := tagOf(rec, r.cp)
	if isControlTag(tag) {
		return decrec.XMIControl{Tag: tag, Raw: rec}, nil
	}
	return decrec.XMIData{Bytes: rec}, nil
}

// AllLogicalRecords drains every logical record out of the (possibly
// text-line-framed) underlying stream, for callers -- such as Decode's
// caller in the archive orchestrator -- that already have the plain
// deblocked record slices and don't need Reader's incremental framing.
func AllLogicalRecords(raw []byte, cp *ebcdic.CodePage) ([][]byte, error) {
	r := NewReader(raw, cp)
	var out [][]byte
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		switch v := rec.(type) {
		case decrec.XMIControl:
			out = append(out, v.Raw)
		case decrec.XMIData:
			out = append(out, v.Bytes)
		}
	}
}
