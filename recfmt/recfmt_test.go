package recfmt

import (
	"bytes"
	"testing"
)

func mustDeblockAll(t *testing.T, p Params, blocks [][]byte) [][]byte {
	t.Helper()
	d := NewDeblocker(p)
	var out [][]byte
	for _, b := range blocks {
		recs, err := d.Feed(b)
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		out = append(out, recs...)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return out
}

func TestParseAndString(t *testing.T) {
	cases := []string{"F", "FB", "V", "VB", "VS", "VBS", "U", "FBA", "VBM"}
	for _, c := range cases {
		r, err := Parse(c)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c, err)
		}
		if got := r.String(); got != c {
			t.Fatalf("Parse(%q).String() = %q", c, got)
		}
	}
}

func TestDS1RECFMRoundTrip(t *testing.T) {
	for _, c := range []string{"F", "FB", "V", "VB", "VS", "VBS", "U"} {
		want, err := Parse(c)
		if err != nil {
			t.Fatal(err)
		}
		b := ToDS1RECFM(want)
		got, err := FromDS1RECFM(b)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("DS1RECFM round trip for %s: got %+v, want %+v", c, got, want)
		}
	}
}

func TestFixedUnblocked(t *testing.T) {
	p := Params{Recfm: RECFM{Base: BaseF}, Lrecl: 4}
	records := mustDeblockAll(t, p, [][]byte{[]byte("abcd"), []byte("efgh")})
	if len(records) != 2 || string(records[0]) != "abcd" || string(records[1]) != "efgh" {
		t.Fatalf("got %v", records)
	}
}

func TestFixedBlockedRoundTrip(t *testing.T) {
	p := Params{Recfm: RECFM{Base: BaseF, Blocked: true}, Lrecl: 4, Blksize: 12}
	var recs [][]byte
	for i := 0; i < 7; i++ {
		recs = append(recs, []byte{byte(i), byte(i), byte(i), byte(i)})
	}
	rb := NewReblocker(p)
	blocks, err := rb.Reblock(recs)
	if err != nil {
		t.Fatal(err)
	}
	got := mustDeblockAll(t, p, blocks)
	if len(got) != len(recs) {
		t.Fatalf("got %d records, want %d", len(got), len(recs))
	}
	for i := range recs {
		if !bytes.Equal(got[i], recs[i]) {
			t.Fatalf("record %d mismatch: got %v want %v", i, got[i], recs[i])
		}
	}
}

func TestUndefined(t *testing.T) {
	p := Params{Recfm: RECFM{Base: BaseU}}
	records := mustDeblockAll(t, p, [][]byte{[]byte("short"), []byte("a longer one here")})
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
}

func buildVBlock(recs [][]byte) []byte {
	var body []byte
	for _, r := range recs {
		rdwLen := 4 + len(r)
		body = append(body, byte(rdwLen>>8), byte(rdwLen), 0, segComplete)
		body = append(body, r...)
	}
	blkLen := 4 + len(body)
	blk := make([]byte, 0, blkLen)
	blk = append(blk, byte(blkLen>>8), byte(blkLen))
	blk = append(blk, 0, 0)
	blk = append(blk, body...)
	return blk
}

func TestVariableBlocked(t *testing.T) {
	p := Params{Recfm: RECFM{Base: BaseV, Blocked: true}, Blksize: 200}
	block := buildVBlock([][]byte{[]byte("hello"), []byte("world!")})
	records := mustDeblockAll(t, p, [][]byte{block})
	if len(records) != 2 || string(records[0]) != "hello" || string(records[1]) != "world!" {
		t.Fatalf("got %v", records)
	}
}

func TestVariableSpannedRoundTrip(t *testing.T) {
	p := Params{Recfm: RECFM{Base: BaseV, Blocked: true, Spanned: true}, Blksize: 20}
	big := bytes.Repeat([]byte("X"), 50)
	recs := [][]byte{[]byte("small"), big, []byte("tail")}
	rb := NewReblocker(p)
	blocks, err := rb.Reblock(recs)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) < 2 {
		t.Fatalf("expected the big record to span multiple blocks, got %d blocks", len(blocks))
	}
	got := mustDeblockAll(t, p, blocks)
	if len(got) != len(recs) {
		t.Fatalf("got %d records, want %d", len(got), len(recs))
	}
	for i := range recs {
		if !bytes.Equal(got[i], recs[i]) {
			t.Fatalf("record %d mismatch: got len %d want len %d", i, len(got[i]), len(recs[i]))
		}
	}
}

func TestSpannedMisorderedSegmentFails(t *testing.T) {
	p := Params{Recfm: RECFM{Base: BaseV, Blocked: true, Spanned: true}, Blksize: 200}
	body := []byte{0, 4 + 3, 0, segMiddle}
	body = append(body, []byte("abc")...)
	blkLen := 4 + len(body)
	blk := []byte{byte(blkLen >> 8), byte(blkLen), 0, 0}
	blk = append(blk, body...)

	d := NewDeblocker(p)
	if _, err := d.Feed(blk); err == nil {
		t.Fatal("expected MalformedRecord for a middle segment with no open span")
	}
}

func TestUnspannedTooLargeFails(t *testing.T) {
	p := Params{Recfm: RECFM{Base: BaseV, Blocked: true}, Blksize: 20}
	rb := NewReblocker(p)
	if _, err := rb.Reblock([][]byte{bytes.Repeat([]byte("Y"), 50)}); err == nil {
		t.Fatal("expected error for oversized record on non-spanned RECFM")
	}
}
