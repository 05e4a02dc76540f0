package iebcopy

import (
	"fmt"

	"github.com/mainframed/xmi/decerr"
	"github.com/mainframed/xmi/recfmt"
)

// Member is one named entry in the unloaded dataset: its directory
// metadata plus the concatenated, deblocked bytes stored under its
// TTR. Aliases share the same byte slice as the entry that owns their
// TTR rather than a materialized copy, since IEBCOPY never stores an
// alias's data twice.
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

// collectMemberData walks the flat member-data stream that follows a
// PDS/PDSE directory: a run of 12-byte control headers (extent, bin,
// cylinder, TTR at offset 6, key length, data length at offset 10)
// each followed by data-length bytes of payload. A data length of zero
// closes the member currently being accumulated; a TTR change with no
// intervening zero-length terminator (seen in some PDSE unloads) closes
// it implicitly. Variable-format members are deblocked record-by-record
// via recfmt so member bytes never carry RDW headers.
func collectMemberData(memberBlocks []byte, recfm recfmt.RECFM, lrecl int) (map[uint32][]byte, []uint32, error) {
	out := map[uint32][]byte{}
	var order []uint32
	var data []byte
	var curTTR uint32
	haveOpen := false

	deblocker := recfmt.NewDeblocker(recfmt.Params{Recfm: recfm, Lrecl: lrecl})

	flush := func() {
		if !haveOpen {
			return
		}
		out[curTTR] = append(out[curTTR], data...)
		data = nil
		haveOpen = false
	}

	loc := 0
	for loc+12 <= len(memberBlocks) {
		dataLen := int(be16(memberBlocks[loc+10 : loc+12]))
		ttr := be24(memberBlocks[loc+6 : loc+9])
		if ttr == 0 && dataLen == 0 {
			loc += 12
			continue
		}
		end := loc + 12 + dataLen
		if end > len(memberBlocks) {
			return out, order, decerr.Truncated(int64(loc+12), dataLen, len(memberBlocks)-loc-12)
		}
		if !haveOpen {
			curTTR = ttr
			haveOpen = true
			if _, seen := out[curTTR]; !seen {
				order = append(order, curTTR)
			}
		} else if ttr != curTTR {
			flush()
			curTTR = ttr
			haveOpen = true
			if _, seen := out[curTTR]; !seen {
				order = append(order, curTTR)
			}
		}

		chunk := memberBlocks[loc+12 : end]
		if recfm.Base == recfmt.BaseV {
			recs, err := deblocker.Feed(chunk)
			if err != nil {
				return out, order, err
			}
			for _, r := range recs {
				data = append(data, r...)
			}
		} else {
			data = append(data, chunk...)
		}

		if dataLen == 0 {
			flush()
		}
		loc = end
	}
	flush()
	return out, order, nil
}

// buildMembers pairs directory entries with their extracted byte data
// by TTR equality (not by positional order against a sorted TTR list,
// per the format's ambiguity in how deleted/renamed members shift that
// ordering) and reports any member-data group whose TTR matches no
// directory entry as an orphan.
func buildMembers(entries []DirEntry, dataByTTR map[uint32][]byte, ttrOrder []uint32) ([]Member, []string) {
	var members []Member
	var warnings []string
	claimed := map[uint32]bool{}

	for _, e := range entries {
		bytes, ok := dataByTTR[e.TTR]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("directory entry %q (TTR %06X) has no matching member data", e.Name, e.TTR))
		}
		claimed[e.TTR] = true
		members = append(members, Member{
			Name:      e.Name,
			TTR:       e.TTR,
			Alias:     e.Alias,
			NoteCount: e.NoteCount,
			Parms:     e.Parms,
			Ispf:      e.Ispf,
			Bytes:     bytes,
		})
	}

	for _, ttr := range ttrOrder {
		if claimed[ttr] {
			continue
		}
		name := fmt.Sprintf("__ORPHAN_%06X__", ttr)
		warnings = append(warnings, fmt.Sprintf("member data at TTR %06X has no directory entry, recovered as %s", ttr, name))
		members = append(members, Member{Name: name, TTR: ttr, Bytes: dataByTTR[ttr], Orphan: true})
	}
	return members, warnings
}
