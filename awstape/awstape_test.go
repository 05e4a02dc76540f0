package awstape

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/mainframed/xmi/cursor"
	"github.com/mainframed/xmi/decerr"
	"github.com/mainframed/xmi/decrec"
	"github.com/mainframed/xmi/ebcdic"
)

func codePage(t *testing.T) *ebcdic.CodePage {
	t.Helper()
	cp, err := ebcdic.Lookup(ebcdic.DefaultCodePage)
	if err != nil {
		t.Fatal(err)
	}
	return cp
}

func ebc(t *testing.T, cp *ebcdic.CodePage, s string) []byte {
	t.Helper()
	b, err := cp.Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// padField writes s into a field of the given width, right-padded with
// EBCDIC spaces.
func padField(t *testing.T, cp *ebcdic.CodePage, s string, width int) []byte {
	t.Helper()
	out := make([]byte, width)
	sp := ebc(t, cp, " ")[0]
	for i := range out {
		out[i] = sp
	}
	copy(out, ebc(t, cp, s))
	return out
}

func appendBlock(t *testing.T, buf *bytes.Buffer, body []byte, newRec, endRec, mark bool, comp byte) {
	t.Helper()
	var flagHi byte
	if newRec {
		flagHi |= flagNewRec
	}
	if endRec {
		flagHi |= flagEndRec
	}
	if mark {
		flagHi |= flagEOF
	}
	sz := len(body)
	buf.WriteByte(byte(sz))
	buf.WriteByte(byte(sz >> 8))
	buf.WriteByte(0)
	buf.WriteByte(0)
	buf.WriteByte(flagHi)
	buf.WriteByte(comp)
	buf.Write(body)
}

func writeRecord(t *testing.T, buf *bytes.Buffer, body []byte) {
	t.Helper()
	appendBlock(t, buf, body, true, true, false, CompressNone)
}

func writeMark(t *testing.T, buf *bytes.Buffer) {
	t.Helper()
	appendBlock(t, buf, nil, false, false, true, CompressNone)
}

func buildLabelGroup(t *testing.T, cp *ebcdic.CodePage, dsname, recfm string, blksize, lrecl int) [][]byte {
	t.Helper()
	vol1 := append(ebc(t, cp, "VOL1"), padField(t, cp, "XMILIB", 76)...)
	hdr1 := append(ebc(t, cp, "HDR1"), padField(t, cp, dsname, 17)...)
	hdr1 = append(hdr1, padField(t, cp, "XMILIB", 6)...)
	hdr1 = append(hdr1, padField(t, cp, "0001", 4)...)
	hdr1 = append(hdr1, padField(t, cp, "00010001", 8)...)
	for len(hdr1) < 80 {
		hdr1 = append(hdr1, padField(t, cp, "", 1)...)
	}
	hdr2 := append(ebc(t, cp, "HDR2"), ebc(t, cp, recfm)...)
	hdr2 = append(hdr2, padField(t, cp, itoa5(blksize), 5)...)
	hdr2 = append(hdr2, padField(t, cp, itoa5(lrecl), 5)...)
	for len(hdr2) < 80 {
		hdr2 = append(hdr2, padField(t, cp, "", 1)...)
	}
	return [][]byte{vol1[:80], hdr1[:80], hdr2[:80]}
}

func itoa5(n int) string {
	digits := []byte{}
	if n == 0 {
		digits = []byte{'0'}
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	s := string(digits)
	for len(s) < 5 {
		s = "0" + s
	}
	return s
}

func TestUnlabeledSingleFile(t *testing.T) {
	cp := codePage(t)
	var buf bytes.Buffer
	writeRecord(t, &buf, []byte("HELLO WORLD SEQUENTIAL RECORD ONE HERE PADDED TO EIGHTY BYTES XXXXXXXXXXXXXXXX"))
	writeRecord(t, &buf, []byte("HELLO WORLD SEQUENTIAL RECORD TWO HERE PADDED TO EIGHTY BYTES XXXXXXXXXXXXXXXX"))
	writeMark(t, &buf)
	writeMark(t, &buf)

	r := NewReader(cursor.New(buf.Bytes()), false)
	files, err := LogicalRecords(r, cp)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 unlabeled file, got %d", len(files))
	}
	if files[0].Labels != nil {
		t.Fatalf("expected no labels for unlabeled tape")
	}
	if len(files[0].Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(files[0].Records))
	}
}

func TestLabeledTwoDatasets(t *testing.T) {
	cp := codePage(t)
	var buf bytes.Buffer

	for _, group := range buildLabelGroup(t, cp, "PYTHON.XMI.SEQ", "F", 3200, 80) {
		writeRecord(t, &buf, group)
	}
	writeMark(t, &buf)
	writeRecord(t, &buf, bytes.Repeat([]byte{0xC1}, 80))
	writeMark(t, &buf)
	eof1 := append(ebc(t, cp, "EOF1"), padField(t, cp, "PYTHON.XMI.SEQ", 17)...)
	for len(eof1) < 80 {
		eof1 = append(eof1, 0x40)
	}
	writeRecord(t, &buf, eof1[:80])
	writeMark(t, &buf)

	for _, group := range buildLabelGroup(t, cp, "PYTHON.XMI.PDS", "V", 3625, 0) {
		writeRecord(t, &buf, group)
	}
	writeMark(t, &buf)
	writeRecord(t, &buf, bytes.Repeat([]byte{0xC2}, 40))
	writeMark(t, &buf)
	eof2 := append(ebc(t, cp, "EOF1"), padField(t, cp, "PYTHON.XMI.PDS", 17)...)
	for len(eof2) < 80 {
		eof2 = append(eof2, 0x40)
	}
	writeRecord(t, &buf, eof2[:80])
	writeMark(t, &buf)
	writeMark(t, &buf)

	r := NewReader(cursor.New(buf.Bytes()), false)
	files, err := LogicalRecords(r, cp)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 datasets, got %d", len(files))
	}
	if files[0].Labels == nil || files[0].Labels.DatasetName != "PYTHON.XMI.SEQ" {
		t.Fatalf("got labels %+v", files[0].Labels)
	}
	if files[0].Labels.VolumeSerial != "XMILIB" {
		t.Fatalf("got volume serial %q", files[0].Labels.VolumeSerial)
	}
	if files[0].Labels.VolSeq != 1 || files[0].Labels.DatasetSeq != 1 || files[0].Labels.GenerationSeq != 1 {
		t.Fatalf("got vol/dataset/generation seq %d/%d/%d", files[0].Labels.VolSeq,
			files[0].Labels.DatasetSeq, files[0].Labels.GenerationSeq)
	}
	if len(files[0].Records) != 1 {
		t.Fatalf("expected 1 data record in first dataset, got %d", len(files[0].Records))
	}
	if len(files[0].Labels.Records) != 3 {
		t.Fatalf("expected 3 header label records (VOL1/HDR1/HDR2), got %d", len(files[0].Labels.Records))
	}
	if files[0].Labels.Records[0].Kind != "VOL1" || files[0].Labels.Records[1].Kind != "HDR1" ||
		files[0].Labels.Records[2].Kind != "HDR2" {
		t.Fatalf("got label record kinds %q %q %q", files[0].Labels.Records[0].Kind,
			files[0].Labels.Records[1].Kind, files[0].Labels.Records[2].Kind)
	}
	if len(files[0].Trailer) != 1 || files[0].Trailer[0].Kind != "EOF1" {
		t.Fatalf("got trailer %+v", files[0].Trailer)
	}
	if files[1].Labels == nil || files[1].Labels.DatasetName != "PYTHON.XMI.PDS" {
		t.Fatalf("got labels %+v", files[1].Labels)
	}
}

func TestAWSRejectsCompressionFlag(t *testing.T) {
	var buf bytes.Buffer
	appendBlock(t, &buf, []byte("irrelevant"), true, true, false, CompressBzip2)
	r := NewReader(cursor.New(buf.Bytes()), false)
	_, err := r.Next()
	if err == nil {
		t.Fatal("expected error for compressed block on AWS reader")
	}
	if kind, ok := decerr.KindOf(err); !ok || kind != decerr.UnsupportedFeature {
		t.Fatalf("expected UnsupportedFeature, got %v", err)
	}
}

func TestHETInflatesZlibBlock(t *testing.T) {
	var zbuf bytes.Buffer
	zw := zlib.NewWriter(&zbuf)
	payload := []byte("this is the deflated body of a HET-compressed logical record")
	if _, err := zw.Write(payload); err != nil {
		t.Fatal(err)
	}
	zw.Close()

	var buf bytes.Buffer
	appendBlock(t, &buf, zbuf.Bytes(), true, true, false, CompressZlib)

	r := NewReader(cursor.New(buf.Bytes()), true)
	rec, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	tb, ok := rec.(decrec.TapeBlock)
	if !ok {
		t.Fatalf("expected TapeBlock, got %T", rec)
	}
	if string(tb.Body) != string(payload) {
		t.Fatalf("got %q, want %q", tb.Body, payload)
	}
}

func TestJulianDateWorkedExample(t *testing.T) {
	got, err := JulianToTime("21067")
	if err != nil {
		t.Fatal(err)
	}
	if got.Year() != 2021 || got.Month() != 3 || got.Day() != 8 {
		t.Fatalf("got %v, want 2021-03-08", got)
	}
}

func TestTwoConsecutiveMarksEndTape(t *testing.T) {
	cp := codePage(t)
	var buf bytes.Buffer
	writeRecord(t, &buf, bytes.Repeat([]byte{0xD1}, 80))
	writeMark(t, &buf)
	writeMark(t, &buf)
	// trailing garbage after end-of-tape must be ignored
	writeRecord(t, &buf, bytes.Repeat([]byte{0xD2}, 80))

	r := NewReader(cursor.New(buf.Bytes()), false)
	files, err := LogicalRecords(r, cp)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file before end-of-tape, got %d", len(files))
	}
}
