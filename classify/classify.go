// Package classify decides whether a terminal byte stream (a PS dataset's
// bytes or a PDS member's bytes) is text or binary, and applies the
// `unnum` sequence-number trim to fixed-80 text. It is a consumer of the
// archive model, not a dependency of it: nothing in package archive
// imports this package, per the format specification's split between the
// core decoder and its collaborators.
package classify

import (
	"net/http"

	"github.com/mainframed/xmi/ebcdic"
	"github.com/mainframed/xmi/recfmt"
)

// Kind is the binary/text verdict for one byte stream.
type Kind int

const (
	Binary Kind = iota
	Text
)

func (k Kind) String() string {
	if k == Text {
		return "Text"
	}
	return "Binary"
}

// Options controls the classification and unnum trim, mirroring the
// force/binary/unnum knobs the format specification exposes through
// Config.
type Options struct {
	// Force always classifies as Text regardless of RECFM/LRECL, matching
	// the CLI's --force flag.
	Force bool
	// BinaryOnly always classifies as Binary, matching the CLI's --binary
	// flag. Takes precedence over Force when both are set, since a user
	// asking for --binary explicitly overrides the heuristic entirely.
	BinaryOnly bool
	// Unnum strips the trailing 8-byte sequence-number field from each
	// 80-byte chunk of RECFM F/FB, LRECL=80 text whose last 8 bytes are
	// digits or spaces.
	Unnum bool
}

// sniffWindow is how much of the stream the printable-ASCII ratio and the
// MIME sniff both look at; §4.9 specifies "the first 4 KB".
const sniffWindow = 4096

// Classify decides Binary or Text for raw (RECFM/LRECL-aware for the
// fast-path heuristic; the fallback MIME check applies regardless of
// format) and returns the decoded stream: EBCDIC-transcoded UTF-8 bytes
// for Text, raw bytes unchanged for Binary. When kind is Text and
// opts.Unnum is set, the returned bytes have sequence numbers already
// trimmed.
func Classify(raw []byte, recfm recfmt.RECFM, lrecl int, cp *ebcdic.CodePage, opts Options) (Kind, []byte) {
	if opts.BinaryOnly {
		return Binary, raw
	}

	window := raw
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}
	decodedWindow := cp.Decode(window)

	kind := Binary
	switch {
	case opts.Force:
		kind = Text
	case recfm.Base == recfmt.BaseF && lrecl <= 255 && printableRatio(decodedWindow) >= 0.95:
		kind = Text
	default:
		mime := http.DetectContentType([]byte(decodedWindow))
		if isTextMIME(mime) {
			kind = Text
		}
	}

	if kind == Binary {
		return Binary, raw
	}

	trimmed := raw
	if opts.Unnum && recfm.Base == recfmt.BaseF && lrecl == 80 {
		trimmed = unnum(trimmed, cp)
	}
	return Text, []byte(cp.Decode(trimmed))
}

// SniffMIME returns the MIME type http.DetectContentType guesses for raw
// after EBCDIC decoding, with any parameter (";charset=...") stripped. It
// exists so collaborators like the filesystem-output layout can pick a
// file extension for binary streams without duplicating the sniff window
// or re-running Classify's own decision.
func SniffMIME(raw []byte, cp *ebcdic.CodePage) string {
	window := raw
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}
	mime := http.DetectContentType([]byte(cp.Decode(window)))
	for i := 0; i < len(mime); i++ {
		if mime[i] == ';' {
			return mime[:i]
		}
	}
	return mime
}

// printableRatio is the fraction of s that is printable ASCII (0x20-0x7E)
// or one of tab/newline/carriage-return, per §4.9's "printable ASCII +
// \t\n\r" wording.
func printableRatio(s string) float64 {
	if len(s) == 0 {
		return 1
	}
	runes := []rune(s)
	n := 0
	for _, r := range runes {
		if isPrintable(r) {
			n++
		}
	}
	return float64(n) / float64(len(runes))
}

func isPrintable(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return r >= 0x20 && r < 0x7F
}

// isTextMIME reports whether http.DetectContentType's guess counts as
// "text" for classification purposes: the sniffer's own text/plain result
// carries a charset parameter, so a prefix match is required rather than
// exact equality.
func isTextMIME(mime string) bool {
	for i := 0; i < len(mime); i++ {
		if mime[i] == ';' {
			mime = mime[:i]
			break
		}
	}
	return len(mime) >= 5 && mime[:5] == "text/"
}

// unnum trims the trailing 8 bytes of every 80-byte EBCDIC chunk when that
// trailer decodes to all digits or spaces, leaving chunks that don't
// qualify (a short trailing partial chunk, a non-numeric sequence area)
// untouched. Working in the raw EBCDIC domain rather than after decoding
// keeps every column a single byte -- some code pages map bytes to
// multi-byte UTF-8 runes, which would desync a byte-offset trim done after
// Decode. A stream shorter than 80 bytes (one already-stripped 72-byte
// line, say) is passed through as-is. A longer already-stripped stream is
// not: unnum re-chunks it at 80 bytes, so each chunk's last 8 bytes are
// the first 8 bytes of the next line, and they are trimmed again when
// they are all digits or spaces.
func unnum(raw []byte, cp *ebcdic.CodePage) []byte {
	var out []byte
	for pos := 0; pos < len(raw); pos += 80 {
		end := pos + 80
		if end > len(raw) {
			out = append(out, raw[pos:]...)
			break
		}
		chunk := raw[pos:end]
		if isSeqField(chunk[72:80], cp) {
			out = append(out, chunk[:72]...)
		} else {
			out = append(out, chunk...)
		}
	}
	return out
}

func isSeqField(b []byte, cp *ebcdic.CodePage) bool {
	for _, r := range cp.Decode(b) {
		if !((r >= '0' && r <= '9') || r == ' ') {
			return false
		}
	}
	return true
}
