package iebcopy

import (
	"testing"
	"time"

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

func ebcName(t *testing.T, cp *ebcdic.CodePage, s string, width int) []byte {
	t.Helper()
	out := make([]byte, width)
	sp, err := cp.Encode(" ")
	if err != nil {
		t.Fatal(err)
	}
	for i := range out {
		out[i] = sp[0]
	}
	enc, err := cp.Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	copy(out, enc)
	return out
}

func buildCopyr1(t *testing.T) []byte {
	t.Helper()
	wr := make([]byte, 38)
	wr[1], wr[2], wr[3] = 0xCA, 0x6D, 0x0F
	wr[4], wr[5] = 0x02, 0x00 // DS1DSORG
	wr[6], wr[7] = 0x0C, 0x80 // DS1BLKL = 3200
	wr[8], wr[9] = 0x00, 0x50 // DS1LRECL = 80
	wr[10] = 0x90             // RECFM=FB
	wr[11] = 0                // DS1KEYL
	wr[12] = 0                // DS1OPTCD
	wr[13] = 0                // DS1SMSFG
	wr[14], wr[15] = 0x0C, 0x80
	wr[36], wr[37] = 0x00, 0x02
	return wr
}

func buildCopyr2(t *testing.T) []byte {
	t.Helper()
	return make([]byte, 256)
}

func be16Bytes(n int) [2]byte { return [2]byte{byte(n >> 8), byte(n)} }
func be24Bytes(n int) [3]byte { return [3]byte{byte(n >> 16), byte(n >> 8), byte(n)} }

func buildDirectoryBlock(t *testing.T, cp *ebcdic.CodePage) []byte {
	t.Helper()
	block := make([]byte, 276)

	var info []byte

	// TESTING: TTR 0x000401, ISPF stats present, modified 2021-03-08T22:53:29Z, owner PHIL.
	info = append(info, ebcName(t, cp, "TESTING", 8)...)
	ttr := be24Bytes(0x000401)
	info = append(info, ttr[:]...)
	info = append(info, 0x10) // flag: no alias, notes=0, halfwords=16 (32 parm bytes)
	parms := make([]byte, 32)
	parms[0], parms[1] = 1, 0 // version "01.00"
	parms[2] = 0x00           // flags: no extended line counts
	parms[3] = 0x29           // modify seconds -> hex "29" -> 29
	// createdate: 2021-03-08T00:00:00
	parms[4], parms[5], parms[6], parms[7] = 0x01, 0x21, 0x06, 0x70
	// modifydate: 2021-03-08T22:53:xx (seconds from parms[3])
	parms[8], parms[9], parms[10], parms[11], parms[12], parms[13] = 0x01, 0x21, 0x06, 0x70, 0x22, 0x53
	lines := be16Bytes(10)
	copy(parms[14:16], lines[:])
	copy(parms[20:28], ebcName(t, cp, "PHIL", 8))
	info = append(info, parms...)

	// Z15IMG: TTR 0x00050E, no ISPF stats.
	info = append(info, ebcName(t, cp, "Z15IMG", 8)...)
	ttr2 := be24Bytes(0x00050E)
	info = append(info, ttr2[:]...)
	info = append(info, 0x00)

	// end of directory marker
	info = append(info, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}...)

	lenField := be16Bytes(len(info) + 2)
	copy(block[20:22], lenField[:])
	copy(block[22:22+len(info)], info)
	return block
}

func memberHeader(ttr int, dataLen int) []byte {
	h := make([]byte, 12)
	ttrB := be24Bytes(ttr)
	copy(h[6:9], ttrB[:])
	dl := be16Bytes(dataLen)
	copy(h[10:12], dl[:])
	return h
}

func buildMemberBlocks(t *testing.T) []byte {
	t.Helper()
	var buf []byte

	testingData := []byte("TESTING MEMBER PAYLOAD PADDED OUT TO EIGHTY BYTES FOR RECFM=FB LRECL=80 XX")
	for len(testingData) < 80 {
		testingData = append(testingData, ' ')
	}
	buf = append(buf, memberHeader(0x000401, len(testingData))...)
	buf = append(buf, testingData...)
	buf = append(buf, memberHeader(0x000401, 0)...)

	z15Data := []byte("Z15IMG MEMBER PAYLOAD, NOT A FULL RECORD LENGTH")
	buf = append(buf, memberHeader(0x00050E, len(z15Data))...)
	buf = append(buf, z15Data...)
	buf = append(buf, memberHeader(0x00050E, 0)...)

	return buf
}

func buildResult(t *testing.T) *Result {
	t.Helper()
	cp := codePage(t)
	records := [][]byte{
		buildCopyr1(t),
		buildCopyr2(t),
		buildDirectoryBlock(t, cp),
		buildMemberBlocks(t),
	}
	r, err := Decode(records, cp)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestDecodePDSDirectoryAndMembers(t *testing.T) {
	r := buildResult(t)

	if r.Copyr1.Type != "PDS" {
		t.Fatalf("expected PDS, got %s", r.Copyr1.Type)
	}
	if r.Copyr1.Lrecl != 80 || r.Copyr1.Blkl != 3200 {
		t.Fatalf("got LRECL=%d BLKL=%d", r.Copyr1.Lrecl, r.Copyr1.Blkl)
	}
	if !r.Copyr1.Recfm.Blocked {
		t.Fatalf("expected blocked RECFM")
	}

	if len(r.Entries) != 2 {
		t.Fatalf("expected 2 directory entries, got %d", len(r.Entries))
	}
	if len(r.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(r.Members))
	}
}

func TestTestingMemberISPFStats(t *testing.T) {
	r := buildResult(t)
	m, ok := r.Lookup("TESTING")
	if !ok {
		t.Fatal("TESTING member not found")
	}
	if m.Ispf == nil {
		t.Fatal("expected ISPF stats on TESTING")
	}
	if m.Ispf.Version != "01.00" {
		t.Fatalf("got version %q", m.Ispf.Version)
	}
	if m.Ispf.User != "PHIL" {
		t.Fatalf("got owner %q", m.Ispf.User)
	}
	want := time.Date(2021, 3, 8, 22, 53, 29, 0, time.UTC)
	if !m.Ispf.ModifyDate.Equal(want) {
		t.Fatalf("got modify date %v, want %v", m.Ispf.ModifyDate, want)
	}
	if len(m.Bytes) == 0 {
		t.Fatal("expected TESTING member bytes")
	}
}

func TestZ15IMGHasNoISPFStats(t *testing.T) {
	r := buildResult(t)
	m, ok := r.Lookup("Z15IMG")
	if !ok {
		t.Fatal("Z15IMG member not found")
	}
	if m.Ispf != nil {
		t.Fatalf("expected no ISPF stats, got %+v", m.Ispf)
	}
	if len(m.Bytes) == 0 {
		t.Fatal("expected Z15IMG member bytes")
	}
}

func TestMemberByteLengthInvariant(t *testing.T) {
	r := buildResult(t)
	var sum int64
	for _, m := range r.Members {
		sum += int64(len(m.Bytes))
	}
	if sum != r.TotalBytes() {
		t.Fatalf("TotalBytes() = %d, sum of member bytes = %d", r.TotalBytes(), sum)
	}
	if r.MemberCount() != len(r.Entries) {
		t.Fatalf("expected member count to match directory entry count (no orphans in this fixture)")
	}
}
