package archivejson

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mainframed/xmi/archive"
	"github.com/mainframed/xmi/classify"
	"github.com/mainframed/xmi/ebcdic"
	"github.com/mainframed/xmi/recfmt"
)

func TestProjectSequentialDataset(t *testing.T) {
	cp, err := ebcdic.Lookup(ebcdic.DefaultCodePage)
	if err != nil {
		t.Fatal(err)
	}
	hello, err := cp.Encode("HELLO")
	if err != nil {
		t.Fatal(err)
	}
	created := time.Date(2021, 3, 9, 4, 53, 18, 0, time.UTC)
	a := &archive.Archive{
		Kind:       archive.KindXMI,
		OriginNode: "ORIGNODE",
		TargetNode: "DESTNODE",
		SourceTime: created,
		Datasets: []*archive.Dataset{
			{
				Name:         "PYTHON.XMI.SEQ",
				Organization: archive.OrgPS,
				Recfm:        recfmt.RECFM{Base: recfmt.BaseF, Blocked: true},
				Lrecl:        80,
				Bytes:        hello,
				Created:      created,
			},
		},
	}

	doc := Project(a, Options{Text: true, CodePage: cp, Classify: classify.Options{Force: true}})
	if doc.Kind != "XMI" {
		t.Fatalf("got kind %q", doc.Kind)
	}
	ds, ok := doc.File["PYTHON.XMI.SEQ"]
	if !ok {
		t.Fatal("expected dataset in file map")
	}
	if ds.Contents != "HELLO" {
		t.Fatalf("got contents %q", ds.Contents)
	}

	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var round map[string]any
	if err := json.Unmarshal(b, &round); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if round["source_time"] != "2021-03-09T04:53:18.000000" {
		t.Fatalf("got source_time %v", round["source_time"])
	}
}

func TestProjectMemberWithoutIspfIsFalse(t *testing.T) {
	ds := &archive.Dataset{
		Name:         "PYTHON.XMI.PDS",
		Organization: archive.OrgPO,
		Members: []archive.Member{
			{Name: "Z15IMG", TTR: 2},
		},
	}
	a := &archive.Archive{Kind: archive.KindXMI, Datasets: []*archive.Dataset{ds}}

	doc := Project(a, Options{})
	m := doc.File["PYTHON.XMI.PDS"].Members["Z15IMG"]
	if m == nil {
		t.Fatal("expected member Z15IMG")
	}
	if v, ok := m.Ispf.(bool); !ok || v != false {
		t.Fatalf("expected ispf=false, got %#v", m.Ispf)
	}

	b, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var round map[string]any
	if err := json.Unmarshal(b, &round); err != nil {
		t.Fatal(err)
	}
	if round["ispf"] != false {
		t.Fatalf("expected marshaled ispf=false, got %v", round["ispf"])
	}
}
