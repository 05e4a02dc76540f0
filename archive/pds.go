package archive

import (
	"errors"

	"github.com/mainframed/xmi/config"
	"github.com/mainframed/xmi/decerr"
	"github.com/mainframed/xmi/ebcdic"
	"github.com/mainframed/xmi/iebcopy"
	"github.com/mainframed/xmi/recfmt"
)

// tryPDS attempts to decode records as an IEBCOPY unload stream. A first
// record that ParseCopyr1 rejects as malformed (a missing eye-catcher) or
// truncated (too short to hold COPYR1) is not a fatal condition here --
// it means the dataset is really sequential -- so it is reported via
// ok=false rather than as an error; any failure after COPYR1 parses
// (truncation, a bad BDW/RDW downstream) is a genuine decode error and
// propagates per the abort policy.
//
// This mirrors the reference decoder's own approach in get_xmi_files:
// it tries iebcopy_record_1 on the first record and falls back to a
// plain sequential file on failure, rather than deciding PS vs PO from
// a DSORG field up front.
func tryPDS(records [][]byte, cp *ebcdic.CodePage) (*iebcopy.Result, bool, error) {
	if len(records) == 0 {
		return nil, false, nil
	}
	if _, err := iebcopy.ParseCopyr1(records[0]); err != nil {
		var derr *decerr.Error
		if errors.As(err, &derr) && (derr.Kind == decerr.MalformedRecord || derr.Kind == decerr.TruncatedKind) {
			return nil, false, nil
		}
		return nil, false, err
	}
	res, err := iebcopy.Decode(records, cp)
	if err != nil {
		return nil, false, err
	}
	return res, true, nil
}

// buildDataset assembles a Dataset from a resolved (RECFM, LRECL,
// BLKSIZE) triple and the outer-deblocked logical records that make up
// its payload, trying IEBCOPY first and falling back to a flat
// sequential byte stream.
func buildDataset(name string, recfm recfmt.RECFM, lrecl, blksize int, records [][]byte, cp *ebcdic.CodePage, a *Archive, cfg config.Config) (*Dataset, error) {
	ds := &Dataset{
		Name:    name,
		Recfm:   recfm,
		Lrecl:   lrecl,
		Blksize: blksize,
	}

	var total int64
	for _, r := range records {
		total += int64(len(r))
	}
	if cfg.MaxRecordBytes > 0 && total > cfg.MaxRecordBytes {
		return ds, decerr.Policy(-1, "dataset payload exceeds max_record_bytes")
	}

	res, ok, err := tryPDS(records, cp)
	if err != nil {
		return ds, err
	}
	if ok {
		ds.Organization = OrgPS
		if res.Copyr1.Type == "PDSE" {
			ds.Organization = OrgPOE
		} else {
			ds.Organization = OrgPO
		}
		ds.Copyr1 = &res.Copyr1
		ds.Copyr2 = &res.Copyr2
		ds.TotalBytes = res.TotalBytes()
		ds.result = res
		for _, m := range res.Members {
			ds.Members = append(ds.Members, Member{
				Name: m.Name, TTR: m.TTR, Alias: m.Alias,
				NoteCount: m.NoteCount, Parms: m.Parms,
				Ispf: m.Ispf, Bytes: m.Bytes, Orphan: m.Orphan,
			})
			if m.Orphan {
				a.logWarn(cfg, decerr.Unsupported(-1, "orphaned member data recovered as "+m.Name))
			}
		}
		for _, w := range res.Warnings {
			a.logWarn(cfg, decerr.Unsupported(-1, w))
		}
		ds.ControlRecords = append(ds.ControlRecords, copyr1Meta(res.Copyr1), copyr2Meta(res.Copyr2))
		return ds, nil
	}

	ds.Organization = OrgPS
	var flat []byte
	for _, r := range records {
		flat = append(flat, r...)
	}
	ds.Bytes = flat
	ds.TotalBytes = int64(len(flat))
	return ds, nil
}

func copyr1Meta(c iebcopy.Copyr1) ControlRecordMeta {
	return ControlRecordMeta{Tag: "COPYR1", Fields: map[string]any{
		"type": c.Type, "dsorg": c.Dsorg, "blkl": c.Blkl, "lrecl": c.Lrecl,
		"recfm": c.Recfm.String(), "keyl": c.Keyl, "optcd": c.Optcd,
		"smsfg": c.Smsfg, "tape_blocksize": c.TapeBlocksize, "refd": c.Refd,
	}}
}

func copyr2Meta(c iebcopy.Copyr2) ControlRecordMeta {
	return ControlRecordMeta{Tag: "COPYR2", Fields: map[string]any{
		"deb": append([]byte(nil), c.Deb[:]...),
	}}
}
