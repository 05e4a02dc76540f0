package textunit

import (
	"testing"
	"time"

	"github.com/mainframed/xmi/cursor"
	"github.com/mainframed/xmi/ebcdic"
)

func encodeUnit(t *testing.T, cp *ebcdic.CodePage, key uint16, values ...string) []byte {
	t.Helper()
	var buf []byte
	buf = append(buf, byte(key>>8), byte(key))
	buf = append(buf, 0, byte(len(values)))
	for _, v := range values {
		enc, err := cp.Encode(v)
		if err != nil {
			t.Fatal(err)
		}
		buf = append(buf, byte(len(enc)>>8), byte(len(enc)))
		buf = append(buf, enc...)
	}
	return buf
}

func TestDecodeStringUnit(t *testing.T) {
	cp, _ := ebcdic.Lookup(ebcdic.DefaultCodePage)
	buf := encodeUnit(t, cp, INMDSNAM, "PYTHON.XMI.PDS")
	units, err := DecodeAll(cursor.New(buf), cp)
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 1 || units[0].Kind != KindString || units[0].Strings[0] != "PYTHON.XMI.PDS" {
		t.Fatalf("got %+v", units)
	}
}

func TestDecodeIntUnit(t *testing.T) {
	cp, _ := ebcdic.Lookup(ebcdic.DefaultCodePage)
	var buf []byte
	buf = append(buf, byte(INMLRECL>>8), byte(INMLRECL), 0, 1, 0, 2, 0, 80)
	units, err := DecodeAll(cursor.New(buf), cp)
	if err != nil {
		t.Fatal(err)
	}
	if units[0].Ints[0] != 80 {
		t.Fatalf("got %d", units[0].Ints[0])
	}
}

func TestDecodeTimestamp(t *testing.T) {
	cp, _ := ebcdic.Lookup(ebcdic.DefaultCodePage)
	buf := encodeUnit(t, cp, INMFTIME, "20210309045318")
	units, err := DecodeAll(cursor.New(buf), cp)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2021, 3, 9, 4, 53, 18, 0, time.UTC)
	if !units[0].Times[0].Equal(want) {
		t.Fatalf("got %v want %v", units[0].Times[0], want)
	}
}

func TestUnknownKeyPreservedAsBytes(t *testing.T) {
	cp, _ := ebcdic.Lookup(ebcdic.DefaultCodePage)
	var buf []byte
	buf = append(buf, 0x99, 0x99, 0, 1, 0, 2, 0xAB, 0xCD)
	units, err := DecodeAll(cursor.New(buf), cp)
	if err != nil {
		t.Fatal(err)
	}
	if units[0].Kind != KindBytes || len(units[0].Raw[0]) != 2 {
		t.Fatalf("got %+v", units[0])
	}
	if KeyName(0x9999) != "UNKNOWN_9999" {
		t.Fatalf("got %s", KeyName(0x9999))
	}
}
