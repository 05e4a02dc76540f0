package archive

import (
	"fmt"

	"github.com/mainframed/xmi/config"
	"github.com/mainframed/xmi/decerr"
	"github.com/mainframed/xmi/ebcdic"
	"github.com/mainframed/xmi/recfmt"
	"github.com/mainframed/xmi/textunit"
	"github.com/mainframed/xmi/xmi"
)

// decodeXMI decodes raw as a NETDATA/XMI stream and assembles an
// Archive from its control records and INMCOPY data segments.
func decodeXMI(raw []byte, cp *ebcdic.CodePage, cfg config.Config, depth int) (*Archive, error) {
	records, err := xmi.AllLogicalRecords(raw, cp)
	if err != nil {
		return nil, err
	}
	stream, err := xmi.Decode(records, cp)
	if err != nil {
		partial := &Archive{Kind: KindXMI}
		return partial, &PartialError{Archive: partial, Err: err}
	}

	a := &Archive{Kind: KindXMI}
	a.ControlRecords = append(a.ControlRecords, ControlRecordMeta{Tag: "INMR01", Fields: unitFields(stream.Header)})
	trace(cfg, 0, "INMR01", fmt.Sprintf("%d header units", len(stream.Header)))

	var declaredNumf int
	haveNumf := false
	for _, u := range stream.Header {
		switch u.Key {
		case textunit.INMFTIME:
			if len(u.Times) > 0 {
				a.SourceTime = u.Times[0]
			}
		case textunit.INMFNODE:
			if len(u.Strings) > 0 {
				a.OriginNode = u.Strings[0]
			}
		case textunit.INMTNODE:
			if len(u.Strings) > 0 {
				a.TargetNode = u.Strings[0]
			}
		case textunit.INMFUID:
			if len(u.Strings) > 0 {
				a.OriginUser = u.Strings[0]
			}
		case textunit.INMTUID:
			if len(u.Strings) > 0 {
				a.TargetUser = u.Strings[0]
			}
		case textunit.INMNUMF:
			if len(u.Ints) > 0 {
				declaredNumf = int(u.Ints[0])
				haveNumf = true
			}
		}
	}

	// A PO dataset's directory-companion INMR02 (utility IEBCOPY) has no
	// data segment of its own; only the message descriptor and every
	// INMCOPY descriptor consume one segment each, in order.
	var dataDescriptors []xmi.FileDescriptor
	for _, fd := range stream.Descriptors {
		a.ControlRecords = append(a.ControlRecords, ControlRecordMeta{Tag: "INMR02", Fields: unitFields(fd.Units)})
		if fd.IsMessage || fd.UtilName != "IEBCOPY" {
			dataDescriptors = append(dataDescriptors, fd)
		}
	}

	if len(dataDescriptors) != len(stream.Segments) {
		a.logWarn(cfg, decerr.Unsupported(-1, "INMR02/INMR03 count mismatch: correlating by position up to the shorter list"))
	}

	n := len(dataDescriptors)
	if len(stream.Segments) < n {
		n = len(stream.Segments)
	}

	for i := 0; i < n; i++ {
		fd := dataDescriptors[i]
		seg := stream.Segments[i]
		a.ControlRecords = append(a.ControlRecords, ControlRecordMeta{Tag: "INMR03", Fields: unitFields(seg.Units)})
		trace(cfg, int64(i), "INMR03", fmt.Sprintf("dataset %q, %d payload bytes", fd.DatasetName, len(seg.Data)))

		recfmVal, lrecl, blksize := resolveFormat(fd.Units, seg.Units, cfg)

		records, err := deblockPayload(seg.Data, recfmVal, lrecl, blksize)
		if err != nil {
			return a, &PartialError{Archive: a, Err: err}
		}

		ds, err := buildDataset(fd.DatasetName, recfmVal, lrecl, blksize, records, cp, a, cfg)
		if err != nil {
			if ds != nil {
				a.Datasets = append(a.Datasets, ds)
			}
			return a, &PartialError{Archive: a, Err: err}
		}

		if fd.IsMessage {
			ds.Name = ""
			a.Message = ds
			a.Datasets = append(a.Datasets, ds)
			continue
		}

		if ds.Organization == OrgPS && len(ds.Bytes) >= 6 && cp.Decode(ds.Bytes[0:6]) == "INMR01" {
			nested, err := decode(ds.Bytes, cp, cfg, depth+1)
			if err != nil {
				a.Datasets = append(a.Datasets, ds)
				return a, &PartialError{Archive: a, Err: err}
			}
			ds.Nested = nested
			if nested.Message != nil {
				a.Datasets = append(a.Datasets, nested.Message)
			}
			for _, nds := range nested.Datasets {
				if nds == nested.Message {
					continue
				}
				a.Datasets = append(a.Datasets, nds)
			}
			continue
		}

		a.Datasets = append(a.Datasets, ds)
	}

	if haveNumf && declaredNumf != len(dataDescriptors) {
		a.logWarn(cfg, decerr.Unsupported(-1, fmt.Sprintf("INMNUMF declared %d files, decoded %d descriptors", declaredNumf, len(dataDescriptors))))
	}

	return a, nil
}

// resolveFormat pulls RECFM/LRECL/BLKSIZE from the INMR03 segment
// descriptor first (the data-format descriptor per the format
// specification), falling back to the INMR02 file descriptor. A positive
// config.LreclOverride replaces whatever LRECL the descriptors carry.
// INMRECFM carries a single DS1RECFM-style flag
// byte, the same encoding Copyr1.Recfm decodes in iebcopy/copyr1.go, so
// it is decoded with recfmt.FromDS1RECFM rather than recfmt.Parse.
func resolveFormat(fdUnits, segUnits []textunit.Value, cfg config.Config) (recfm recfmt.RECFM, lrecl, blksize int) {
	recfm = recfmt.RECFM{Base: recfmt.BaseU}
	take := func(units []textunit.Value) {
		for _, u := range units {
			switch u.Key {
			case textunit.INMRECFM:
				if len(u.Raw) > 0 && len(u.Raw[0]) > 0 {
					if v, err := recfmt.FromDS1RECFM(u.Raw[0][0]); err == nil {
						recfm = v
					}
				}
			case textunit.INMLRECL:
				if len(u.Ints) > 0 {
					lrecl = int(u.Ints[0])
				}
			case textunit.INMBLKSZ:
				if len(u.Ints) > 0 {
					blksize = int(u.Ints[0])
				}
			}
		}
	}
	take(fdUnits)
	take(segUnits)
	if cfg.LreclOverride > 0 {
		lrecl = cfg.LreclOverride
	}
	if blksize == 0 {
		blksize = lrecl
	}
	return recfm, lrecl, blksize
}

// deblockPayload deblocks one segment's concatenated raw bytes into
// logical records. XMI segment data has no preserved physical-block
// boundaries (the framer appends every following data record into one
// running buffer), so undefined-format payloads -- device geometry
// aside, the common case for an IEBCOPY unload stream inside XMI -- are
// passed through as a single logical record; fixed and variable formats
// are deblocked against the resolved LRECL/BLKSIZE.
func deblockPayload(data []byte, recfm recfmt.RECFM, lrecl, blksize int) ([][]byte, error) {
	if recfm.Base == recfmt.BaseU {
		return [][]byte{data}, nil
	}
	d := recfmt.NewDeblocker(recfmt.Params{Recfm: recfm, Lrecl: lrecl, Blksize: blksize})
	if recfm.Base == recfmt.BaseF {
		blk := blksize
		if blk <= 0 {
			blk = lrecl
		}
		var out [][]byte
		for pos := 0; pos < len(data); pos += blk {
			end := pos + blk
			if end > len(data) {
				end = len(data)
			}
			recs, err := d.Feed(data[pos:end])
			if err != nil {
				return nil, err
			}
			out = append(out, recs...)
		}
		return out, nil
	}
	// Variable format: each BDW-prefixed block is walked independently
	// since blocks are still whole records within one flat buffer here.
	var out [][]byte
	pos := 0
	for pos < len(data) {
		if pos+4 > len(data) {
			break
		}
		bdwSize := int(data[pos])<<8 | int(data[pos+1])
		if bdwSize < 4 || pos+bdwSize > len(data) {
			break
		}
		recs, err := d.Feed(data[pos : pos+bdwSize])
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
		pos += bdwSize
	}
	return out, nil
}

func unitFields(units []textunit.Value) map[string]any {
	fields := make(map[string]any, len(units))
	for _, u := range units {
		key := textunit.KeyName(u.Key)
		switch u.Kind {
		case textunit.KindString:
			fields[key] = u.Strings
		case textunit.KindInt:
			fields[key] = u.Ints
		case textunit.KindTimestamp:
			fields[key] = u.Times
		default:
			fields[key] = u.Raw
		}
	}
	return fields
}
