package archive

import (
	"fmt"
	"time"

	"github.com/mainframed/xmi/awstape"
	"github.com/mainframed/xmi/config"
	"github.com/mainframed/xmi/cursor"
	"github.com/mainframed/xmi/decrec"
	"github.com/mainframed/xmi/ebcdic"
	"github.com/mainframed/xmi/recfmt"
)

// decodeTape decodes raw as an AWSTAPE or HET virtual tape image.
func decodeTape(raw []byte, cp *ebcdic.CodePage, cfg config.Config, kind Kind) (*Archive, error) {
	a := &Archive{Kind: kind}
	reader := awstape.NewReader(cursor.New(raw), kind == KindHET)
	files, err := awstape.LogicalRecords(reader, cp)
	if err != nil {
		return a, &PartialError{Archive: a, Err: err}
	}

	unlabeledSeq := 0
	for fileIdx, f := range files {
		trace(cfg, int64(fileIdx), "TAPEFILE", fmt.Sprintf("%d physical blocks, labeled=%v", len(f.Records), f.Labels != nil))
		name, recfmStr, lrecl, blksize, created := "", "U", 0, 0, time.Time{}
		if f.Labels != nil {
			name = f.Labels.DatasetName
			recfmStr = f.Labels.Recfm
			lrecl = f.Labels.Lrecl
			blksize = f.Labels.Blksize
			created = f.Labels.CreationDate
			for _, lbl := range f.Labels.Records {
				a.ControlRecords = append(a.ControlRecords, ControlRecordMeta{Tag: lbl.Kind, Fields: labelFields(lbl)})
			}
			for _, lbl := range f.Trailer {
				a.ControlRecords = append(a.ControlRecords, ControlRecordMeta{Tag: lbl.Kind, Fields: labelFields(lbl)})
			}
		} else {
			unlabeledSeq++
			name = fmt.Sprintf("FILE%04d", unlabeledSeq)
			if len(f.Records) > 0 {
				lrecl = len(f.Records[0])
			}
			blksize = lrecl
		}

		if cfg.LreclOverride > 0 {
			lrecl = cfg.LreclOverride
		}

		recfmVal, err := parseTapeRecfm(recfmStr, lrecl, blksize)
		if err != nil {
			return a, &PartialError{Archive: a, Err: err}
		}

		var records [][]byte
		if f.Labels == nil {
			// Unlabeled tapes carry RECFM=U: each physical block is
			// already exactly one logical record.
			records = f.Records
		} else {
			d := recfmt.NewDeblocker(recfmt.Params{Recfm: recfmVal, Lrecl: lrecl, Blksize: blksize})
			for _, block := range f.Records {
				recs, err := d.Feed(block)
				if err != nil {
					return a, &PartialError{Archive: a, Err: err}
				}
				records = append(records, recs...)
			}
		}

		ds, err := buildDataset(name, recfmVal, lrecl, blksize, records, cp, a, cfg)
		ds.Created = created
		if err != nil {
			a.Datasets = append(a.Datasets, ds)
			return a, &PartialError{Archive: a, Err: err}
		}
		a.Datasets = append(a.Datasets, ds)
	}

	return a, nil
}

// labelFields widens a decrec.Label's string-valued Fields map to the
// map[string]any shape ControlRecordMeta carries for every other record
// kind (XMI text units, COPYR1/COPYR2 fields).
func labelFields(lbl decrec.Label) map[string]any {
	fields := make(map[string]any, len(lbl.Fields))
	for k, v := range lbl.Fields {
		fields[k] = v
	}
	return fields
}

// parseTapeRecfm interprets a tape label's single-character RECFM byte,
// inferring the blocked flag from BLKSIZE exceeding LRECL since HDR2
// carries no separate blocked indicator at the byte offsets this
// decoder reads.
func parseTapeRecfm(s string, lrecl, blksize int) (recfmt.RECFM, error) {
	if s == "" {
		s = "U"
	}
	r, err := recfmt.Parse(s)
	if err != nil {
		return recfmt.RECFM{}, err
	}
	if r.Base == recfmt.BaseF && blksize > lrecl && lrecl > 0 {
		r.Blocked = true
	}
	return r, nil
}
