// Package archive is the orchestrator: it sniffs a container's kind,
// dispatches to the matching framer (xmi, awstape, iebcopy), and
// assembles the results into one Archive tree. It owns no framing logic
// of its own -- every byte-level decision lives in the framer packages --
// but it owns the correlation, error-propagation, and nested-container
// policy that ties them together, per the orchestration split described
// in DESIGN.md.
package archive

import (
	"fmt"
	"time"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/mainframed/xmi/config"
	"github.com/mainframed/xmi/decerr"
	"github.com/mainframed/xmi/ebcdic"
	"github.com/mainframed/xmi/iebcopy"
	"github.com/mainframed/xmi/recfmt"
)

// Kind identifies a root container format.
type Kind string

const (
	KindXMI Kind = "XMI"
	KindAWS Kind = "AWS"
	KindHET Kind = "HET"
)

// Organization is a dataset's DSORG classification.
type Organization string

const (
	OrgPS  Organization = "PS"
	OrgPO  Organization = "PO"
	OrgPOE Organization = "PO-E"
)

// IspfStats is a member's ISPF statistics area. It is the same shape
// iebcopy.Result already produces; the archive model re-exports it
// rather than duplicating field-for-field, since nothing about it
// changes crossing the package boundary.
type IspfStats = iebcopy.IspfStats

// Member is one file inside a PO Dataset.
type Member struct {
	Name      string
	TTR       uint32
	Alias     bool
	NoteCount int
	Parms     []byte
	Ispf      *IspfStats
	Bytes     []byte
	Orphan    bool
}

// ControlRecordMeta preserves one control record's fields verbatim, for
// observability in the JSON dump. Fields holds whatever a framer chose
// to expose: text-unit values, COPYR1/COPYR2 field values, and so on.
type ControlRecordMeta struct {
	Tag    string
	Fields map[string]any
}

// Dataset is one mainframe file, sequential or partitioned.
type Dataset struct {
	Name         string
	Organization Organization
	Recfm        recfmt.RECFM
	Lrecl        int
	Blksize      int
	TotalBytes   int64
	Created      time.Time

	// Members is populated iff Organization is PO or PO-E.
	Members []Member
	// Bytes is populated iff Organization is PS.
	Bytes []byte

	Copyr1 *iebcopy.Copyr1
	Copyr2 *iebcopy.Copyr2

	// result is the decoded IEBCOPY stream Members was built from, kept
	// around so LookupMember can serve repeated by-name lookups (the
	// CLI's --print flag) from its LRU-backed index instead of
	// rescanning Members. Nil for a PS Dataset.
	result *iebcopy.Result

	// Nested is set when this dataset's payload was itself an XMI
	// stream; its datasets have already been spliced into the parent
	// Archive in order, and Nested is kept only so callers can still
	// see the wrapping relationship.
	Nested *Archive

	ControlRecords []ControlRecordMeta
}

// Archive is the root of one decoded input file.
type Archive struct {
	Kind Kind

	Datasets []*Dataset
	// Message is a PS dataset with no name carrying operator text, at
	// most one per Archive, also present (first) in Datasets.
	Message *Dataset

	SourceTime time.Time
	OriginNode string
	OriginUser string
	TargetNode string
	TargetUser string

	ControlRecords []ControlRecordMeta

	// Warnings accumulates non-aborting conditions: UnsupportedFeature,
	// orphaned member data, invariant mismatches reported but not
	// fatal. Aggregated with hashicorp/go-multierror (see DESIGN.md).
	Warnings *multierror.Error
}

// LookupMember finds a member of a PO/PO-E Dataset by name, routing
// through the decoded iebcopy.Result's LRU-backed index when one is
// available (the case for every Dataset buildDataset assembles) and
// falling back to a linear scan of Members otherwise -- a Dataset built
// by hand for tests, for instance, carries no Result to look up.
func (ds *Dataset) LookupMember(name string) (Member, bool) {
	if ds.result != nil {
		if m, ok := ds.result.Lookup(name); ok {
			return Member{
				Name: m.Name, TTR: m.TTR, Alias: m.Alias,
				NoteCount: m.NoteCount, Parms: m.Parms,
				Ispf: m.Ispf, Bytes: m.Bytes, Orphan: m.Orphan,
			}, true
		}
		return Member{}, false
	}
	for _, m := range ds.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

func (a *Archive) warn(err error) {
	a.Warnings = multierror.Append(a.Warnings, err)
}

// logWarn appends err to a.Warnings and writes it to cfg.Logger whenever
// a Logger is set, quiet mode included -- warnings are exactly what quiet
// mode still shows per spec.md §7 ("quiet mode emits only warnings/errors").
func (a *Archive) logWarn(cfg config.Config, err error) {
	a.warn(err)
	if cfg.Logger != nil {
		cfg.Logger.Printf("warning: %v", err)
	}
}

// trace emits a debug-mode per-record line: offset, record tag, and
// whatever detail the caller supplies, per spec.md §7's debug-mode
// contract. A no-op unless cfg.Debug is set.
func trace(cfg config.Config, offset int64, tag string, detail string) {
	if !cfg.Debug || cfg.Logger == nil {
		return
	}
	cfg.Logger.Printf("debug: offset=%d tag=%s %s", offset, tag, detail)
}

// PartialError wraps a fatal decode error together with whatever Archive
// state had been assembled up to the failure point, per the
// partially-populated-on-abort propagation policy.
type PartialError struct {
	Archive *Archive
	Err     error
}

func (e *PartialError) Error() string { return e.Err.Error() }
func (e *PartialError) Unwrap() error { return e.Err }

// Decode sniffs raw's container kind and fully decodes it.
func Decode(raw []byte, cfg config.Config) (*Archive, error) {
	cp, err := ebcdic.Lookup(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	return decode(raw, cp, cfg, 0)
}

func decode(raw []byte, cp *ebcdic.CodePage, cfg config.Config, depth int) (*Archive, error) {
	if depth > cfg.MaxNested {
		return nil, decerr.Policy(0, "nested container recursion exceeded max_nested")
	}
	kind := sniff(raw, cp)
	trace(cfg, 0, string(kind), fmt.Sprintf("sniffed at depth %d", depth))
	switch kind {
	case KindXMI:
		return decodeXMI(raw, cp, cfg, depth)
	case KindAWS:
		return decodeTape(raw, cp, cfg, KindAWS)
	case KindHET:
		return decodeTape(raw, cp, cfg, KindHET)
	default:
		return nil, decerr.Unknown("root container sniff matched neither XMI tag nor AWS/HET block header")
	}
}

// sniff classifies raw's first bytes per the container-kind rules: an
// EBCDIC INMR01 tag at offset 0 means XMI; otherwise a 6-byte AWS/HET
// block header with the NEWREC flag set and a recognized low byte means
// a tape image.
func sniff(raw []byte, cp *ebcdic.CodePage) Kind {
	if len(raw) >= 6 && cp.Decode(raw[0:6]) == "INMR01" {
		return KindXMI
	}
	if len(raw) >= 6 {
		flagHi, flagLo := raw[4], raw[5]
		if flagHi&0x80 != 0 {
			switch flagLo {
			case 0x00:
				return KindAWS
			case 0x01, 0x02:
				return KindHET
			}
		}
	}
	return ""
}
