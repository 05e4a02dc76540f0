// Package archivejson projects an *archive.Archive onto plain,
// encoding/json-tagged structs, the way the source library's dump_json
// renders its internal dict: a top-level object keyed by dataset name
// under "file", COPYR1/COPYR2/member detail nested underneath, and dates
// rendered as ISO-8601 with microseconds. archive itself never imports
// encoding/json -- this package is the narrow consumer spec.md's
// interface split calls for.
package archivejson

import (
	"encoding/hex"
	"time"

	"github.com/mainframed/xmi/archive"
	"github.com/mainframed/xmi/classify"
	"github.com/mainframed/xmi/ebcdic"
	"github.com/mainframed/xmi/recfmt"
)

// Options controls the projection.
type Options struct {
	// Text adds a "contents" field to every text-classified stream,
	// holding its UTF-8 decoding.
	Text bool
	// Classify supplies the force/binary/unnum knobs classify.Classify
	// needs when Text is set.
	Classify classify.Options
	CodePage *ebcdic.CodePage
}

// Document is the top-level projection.
type Document struct {
	Kind       string              `json:"kind"`
	SourceTime *jsonTime           `json:"source_time,omitempty"`
	OriginNode string              `json:"origin_node,omitempty"`
	OriginUser string              `json:"origin_user,omitempty"`
	TargetNode string              `json:"target_node,omitempty"`
	TargetUser string              `json:"target_user,omitempty"`
	Message    *Dataset            `json:"message,omitempty"`
	File       map[string]*Dataset `json:"file"`
	Warnings   []string            `json:"warnings,omitempty"`
}

// Dataset is one PS or PO(-E) dataset's projection.
type Dataset struct {
	Organization string             `json:"dsorg"`
	Recfm        string             `json:"recfm"`
	Lrecl        int                `json:"lrecl"`
	Blksize      int                `json:"blksize"`
	TotalBytes   int64              `json:"total_bytes"`
	Created      *jsonTime          `json:"created,omitempty"`
	Copyr1       *Copyr1            `json:"COPYR1,omitempty"`
	Copyr2       *Copyr2            `json:"COPYR2,omitempty"`
	Members      map[string]*Member `json:"members,omitempty"`
	Contents     string             `json:"contents,omitempty"`
	Nested       *Document          `json:"nested,omitempty"`
}

// Copyr1 is COPYR1's projection.
type Copyr1 struct {
	Type          string `json:"type"`
	Dsorg         uint16 `json:"dsorg"`
	Blkl          int    `json:"blkl"`
	Lrecl         int    `json:"lrecl"`
	Recfm         string `json:"recfm"`
	Keyl          byte   `json:"keyl"`
	Optcd         byte   `json:"optcd"`
	Smsfg         byte   `json:"smsfg"`
	TapeBlocksize int    `json:"tape_blocksize"`
	Refd          string `json:"refd,omitempty"`
}

// Copyr2 is COPYR2's projection: the DEB area plus its sixteen hex-escaped
// 16-byte extent descriptors.
type Copyr2 struct {
	Deb     string   `json:"deb"`
	Extents []string `json:"extents"`
}

// Member is one PDS/PDSE member's projection. Ispf is either an *Ispf or
// the literal boolean false, matching dump_json's "object or false"
// contract for members with no ISPF statistics block.
type Member struct {
	TTR       uint32 `json:"ttr"`
	Alias     bool   `json:"alias"`
	Halfwords int    `json:"halfwords"`
	Notes     int    `json:"notes"`
	Parms     string `json:"parms,omitempty"`
	Ispf      any    `json:"ispf"`
	Orphan    bool   `json:"orphan,omitempty"`
	Contents  string `json:"contents,omitempty"`
}

// Ispf is the ISPF member-statistics block projection.
type Ispf struct {
	Version    string    `json:"version"`
	CreateDate *jsonTime `json:"createdate,omitempty"`
	ModifyDate *jsonTime `json:"modifydate,omitempty"`
	Lines      int       `json:"lines,omitempty"`
	NewLines   int       `json:"newlines,omitempty"`
	ModLines   int       `json:"modlines,omitempty"`
	User       string    `json:"user"`
}

// jsonTime renders as ISO-8601 with microsecond precision, matching
// dump_json's `default=str` rendering of Python datetimes.
type jsonTime time.Time

func (t jsonTime) MarshalJSON() ([]byte, error) {
	s := time.Time(t).Format("2006-01-02T15:04:05.000000")
	return []byte(`"` + s + `"`), nil
}

func timePtr(t time.Time) *jsonTime {
	if t.IsZero() {
		return nil
	}
	jt := jsonTime(t)
	return &jt
}

// Project renders a as a Document under opts.
func Project(a *archive.Archive, opts Options) *Document {
	doc := &Document{
		Kind:       string(a.Kind),
		SourceTime: timePtr(a.SourceTime),
		OriginNode: a.OriginNode,
		OriginUser: a.OriginUser,
		TargetNode: a.TargetNode,
		TargetUser: a.TargetUser,
		File:       map[string]*Dataset{},
	}
	if a.Warnings != nil {
		for _, w := range a.Warnings.Errors {
			doc.Warnings = append(doc.Warnings, w.Error())
		}
	}

	for _, ds := range a.Datasets {
		if ds == a.Message {
			doc.Message = projectDataset(ds, opts)
			continue
		}
		doc.File[ds.Name] = projectDataset(ds, opts)
	}
	return doc
}

func projectDataset(ds *archive.Dataset, opts Options) *Dataset {
	out := &Dataset{
		Organization: string(ds.Organization),
		Recfm:        ds.Recfm.String(),
		Lrecl:        ds.Lrecl,
		Blksize:      ds.Blksize,
		TotalBytes:   ds.TotalBytes,
		Created:      timePtr(ds.Created),
	}
	if ds.Copyr1 != nil {
		out.Copyr1 = &Copyr1{
			Type: ds.Copyr1.Type, Dsorg: ds.Copyr1.Dsorg, Blkl: ds.Copyr1.Blkl,
			Lrecl: ds.Copyr1.Lrecl, Recfm: ds.Copyr1.Recfm.String(), Keyl: ds.Copyr1.Keyl,
			Optcd: ds.Copyr1.Optcd, Smsfg: ds.Copyr1.Smsfg,
			TapeBlocksize: ds.Copyr1.TapeBlocksize, Refd: ds.Copyr1.Refd,
		}
	}
	if ds.Copyr2 != nil {
		extents := make([]string, 0, 16)
		for _, e := range ds.Copyr2.Extents {
			extents = append(extents, hex.EncodeToString(e[:]))
		}
		out.Copyr2 = &Copyr2{Deb: hex.EncodeToString(ds.Copyr2.Deb[:]), Extents: extents}
	}
	if len(ds.Members) > 0 {
		out.Members = make(map[string]*Member, len(ds.Members))
		for _, m := range ds.Members {
			out.Members[m.Name] = projectMember(m, ds, opts)
		}
	}
	if ds.Organization == archive.OrgPS && opts.Text && opts.CodePage != nil {
		out.Contents = classifyContents(ds.Bytes, ds.Recfm, ds.Lrecl, opts)
	}
	if ds.Nested != nil {
		out.Nested = Project(ds.Nested, opts)
	}
	return out
}

func projectMember(m archive.Member, ds *archive.Dataset, opts Options) *Member {
	out := &Member{
		TTR:       m.TTR,
		Alias:     m.Alias,
		Halfwords: len(m.Parms) / 2,
		Notes:     m.NoteCount,
		Orphan:    m.Orphan,
		Ispf:      false,
	}
	if len(m.Parms) > 0 {
		out.Parms = hex.EncodeToString(m.Parms)
	}
	if m.Ispf != nil {
		out.Ispf = &Ispf{
			Version:    m.Ispf.Version,
			CreateDate: timePtr(m.Ispf.CreateDate),
			ModifyDate: timePtr(m.Ispf.ModifyDate),
			Lines:      m.Ispf.Lines,
			NewLines:   m.Ispf.NewLines,
			ModLines:   m.Ispf.ModLines,
			User:       m.Ispf.User,
		}
	}
	if opts.Text && opts.CodePage != nil {
		out.Contents = classifyContents(m.Bytes, ds.Recfm, ds.Lrecl, opts)
	}
	return out
}

func classifyContents(raw []byte, recfm recfmt.RECFM, lrecl int, opts Options) string {
	kind, decoded := classify.Classify(raw, recfm, lrecl, opts.CodePage, opts.Classify)
	if kind != classify.Text {
		return ""
	}
	return string(decoded)
}
