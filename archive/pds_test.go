package archive

import (
	"testing"

	"github.com/mainframed/xmi/config"
	"github.com/mainframed/xmi/recfmt"
)

// TestBuildDatasetEnforcesMaxRecordBytes checks the resource-bounds
// requirement directly against buildDataset: a payload whose summed
// record length exceeds Config.MaxRecordBytes must fail rather than
// allocate an unbounded flat buffer.
func TestBuildDatasetEnforcesMaxRecordBytes(t *testing.T) {
	cp := cp1140(t)
	recfm, err := recfmt.Parse("FB")
	if err != nil {
		t.Fatal(err)
	}
	records := [][]byte{make([]byte, 80), make([]byte, 80)}
	cfg := config.New(config.WithMaxRecordBytes(100))
	a := &Archive{}

	_, err = buildDataset("PYTHON.XMI.BIG", recfm, 80, 80, records, cp, a, cfg)
	if err == nil {
		t.Fatal("expected an error once the payload exceeds MaxRecordBytes")
	}
}

// TestBuildDatasetAllowsPayloadUnderLimit is the inverse check: a
// payload within the configured ceiling decodes normally.
func TestBuildDatasetAllowsPayloadUnderLimit(t *testing.T) {
	cp := cp1140(t)
	recfm, err := recfmt.Parse("FB")
	if err != nil {
		t.Fatal(err)
	}
	records := [][]byte{make([]byte, 80)}
	cfg := config.New(config.WithMaxRecordBytes(1000))
	a := &Archive{}

	ds, err := buildDataset("PYTHON.XMI.SMALL", recfm, 80, 80, records, cp, a, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Organization != OrgPS || len(ds.Bytes) != 80 {
		t.Fatalf("got org=%q bytes=%d", ds.Organization, len(ds.Bytes))
	}
}
