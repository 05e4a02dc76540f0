package ebcdic

import "testing"

func TestRoundTripAlphabet(t *testing.T) {
	for name := range registry {
		cp, err := Lookup(name)
		if err != nil {
			t.Fatal(err)
		}
		var all []byte
		for i := 0; i < 256; i++ {
			all = append(all, byte(i))
		}
		s := cp.Decode(all)
		back, err := cp.Encode(s)
		if err != nil {
			t.Fatalf("%s: encode failed: %v", name, err)
		}
		if len(back) != 256 {
			t.Fatalf("%s: round trip length = %d", name, len(back))
		}
		for i := range all {
			if back[i] != all[i] {
				t.Fatalf("%s: byte %#x round-tripped to %#x", name, all[i], back[i])
			}
		}
	}
}

func TestKnownDatasetName(t *testing.T) {
	cp, err := Lookup(DefaultCodePage)
	if err != nil {
		t.Fatal(err)
	}
	// "TESTING" in EBCDIC cp1140.
	ebcdicBytes := []byte{0xE3, 0xC5, 0xE2, 0xE3, 0xC9, 0xD5, 0xC7}
	got := cp.Decode(ebcdicBytes)
	if got != "TESTING" {
		t.Fatalf("got %q, want TESTING", got)
	}
}

func TestCp1140EuroDifference(t *testing.T) {
	cp1140, _ := Lookup("cp1140")
	cp037, _ := Lookup("cp037")
	if cp1140.DecodeByte(0x9F) == cp037.DecodeByte(0x9F) {
		t.Fatal("expected cp1140 and cp037 to differ at 0x9F")
	}
	if cp1140.DecodeByte(0x9F) != '€' {
		t.Fatalf("expected euro sign, got %q", cp1140.DecodeByte(0x9F))
	}
}

func TestUnknownCodePage(t *testing.T) {
	if _, err := Lookup("cp-does-not-exist"); err == nil {
		t.Fatal("expected error for unknown code page")
	}
}
