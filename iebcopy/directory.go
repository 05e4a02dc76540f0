package iebcopy

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mainframed/xmi/decerr"
	"github.com/mainframed/xmi/ebcdic"
)

var endMarker = [8]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// DirEntry is one member's directory entry: its TTR pointer, alias and
// note-count flags, and any user data (ISPF statistics, when present)
// packed into the entry's parameter area.
type DirEntry struct {
	Name      string
	TTR       uint32
	Alias     bool
	NoteCount int
	Parms     []byte
	Ispf      *IspfStats
}

// IspfStats is the ISPF member-statistics block recognized inside a
// directory entry's parameter area: version, creation/modification
// timestamps, and line counts.
type IspfStats struct {
	Version    string
	Flags      byte
	CreateDate time.Time
	ModifyDate time.Time
	Lines      int
	NewLines   int
	ModLines   int
	User       string
}

// splitDirectory walks flat 276-byte-aligned blocks from the front and
// returns the byte offset one past the block that carries the all-0xFF
// end-of-directory marker: flat[:n] is the directory, flat[n:] is the
// member-data stream that follows it.
func splitDirectory(flat []byte) (int, error) {
	loc := 0
	for loc < len(flat) {
		if loc+22 > len(flat) {
			return 0, decerr.Truncated(int64(loc), 22, len(flat)-loc)
		}
		dirLen := int(be16(flat[loc+20:loc+22])) - 2
		if dirLen < 0 || loc+22+dirLen > len(flat) {
			return 0, decerr.Malformed(int64(loc), "directory block length field out of range")
		}
		info := flat[loc+22 : loc+22+dirLen]
		p := 0
		for p+8 <= len(info) {
			if [8]byte(info[p:p+8]) == endMarker {
				return loc + 276, nil
			}
			p += 8 + 3 + 1 + int(info[p+11]&0x1F)*2
		}
		loc += 276
	}
	return 0, decerr.Malformed(0, "no end-of-directory marker found")
}

// parseDirectory walks a run of 276-byte-aligned directory blocks and
// returns the ordered member entries, stopping at the all-0xFF end
// marker.
func parseDirectory(buf []byte, cp *ebcdic.CodePage) ([]DirEntry, error) {
	var entries []DirEntry
	blockLoc := 0
	for blockLoc < len(buf) {
		if blockLoc+22 > len(buf) {
			return entries, decerr.Truncated(int64(blockLoc), 22, len(buf)-blockLoc)
		}
		dirLen := int(be16(buf[blockLoc+20:blockLoc+22])) - 2
		if dirLen < 0 || blockLoc+22+dirLen > len(buf) {
			return entries, decerr.Malformed(int64(blockLoc), "directory block length field out of range")
		}
		info := buf[blockLoc+22 : blockLoc+22+dirLen]

		loc := 0
		done := false
		for loc < dirLen {
			if loc+8 > len(info) {
				return entries, decerr.Truncated(int64(blockLoc+22+loc), 8, len(info)-loc)
			}
			if [8]byte(info[loc:loc+8]) == endMarker {
				done = true
				break
			}
			if loc+12 > len(info) {
				return entries, decerr.Truncated(int64(blockLoc+22+loc), 12, len(info)-loc)
			}
			flag := info[loc+11]
			halfwordBytes := int(flag&0x1F) * 2
			parmsEnd := loc + 12 + halfwordBytes
			if parmsEnd > len(info) {
				return entries, decerr.Truncated(int64(blockLoc+22+loc+12), halfwordBytes, len(info)-loc-12)
			}
			entry := DirEntry{
				Name:      trimTrailing(cp.Decode(info[loc : loc+8])),
				TTR:       be24(info[loc+8 : loc+11]),
				Alias:     flag&0x80 != 0,
				NoteCount: int(flag&0x60) >> 5,
				Parms:     append([]byte(nil), info[loc+12:parmsEnd]...),
			}
			if len(entry.Parms) >= 30 && entry.NoteCount == 0 {
				ispf, err := parseIspfStats(entry.Parms, cp)
				if err != nil {
					return entries, err
				}
				entry.Ispf = ispf
			}
			entries = append(entries, entry)
			loc += 12 + halfwordBytes
		}
		blockLoc += 276
		if done {
			break
		}
	}
	return entries, nil
}

// parseIspfStats decodes the ISPF member-statistics block from a
// directory entry's parameter area. The version field is plain decimal
// digits; the date fields are packed BCD read out through a hex
// formatter, the conventional trick for this on-disk layout.
func parseIspfStats(parms []byte, cp *ebcdic.CodePage) (*IspfStats, error) {
	stats := &IspfStats{
		Version: fmt.Sprintf("%02d.%02d", parms[0], parms[1]),
		Flags:   parms[2],
	}
	created, err := ispfDate(parms[4:8], 0)
	if err == nil {
		stats.CreateDate = created
	}
	modified, err := ispfDate(parms[8:14], parms[3])
	if err == nil {
		stats.ModifyDate = modified
	}
	stats.Lines = int(be16(parms[14:16]))
	stats.NewLines = int(be16(parms[16:18]))
	stats.ModLines = int(be16(parms[18:20]))
	stats.User = trimTrailing(cp.Decode(parms[20:28]))

	if len(parms) >= 40 && stats.Flags&0x10 == 0x10 {
		stats.Lines = int(be32(parms[28:32]))
		stats.NewLines = int(be32(parms[32:36]))
		stats.ModLines = int(be32(parms[36:40]))
	}
	return stats, nil
}

// ispfDate reconstructs an ISPF packed date field. Byte 0 is a plain
// binary century offset from 1900; every other field is the byte's hex
// digits read as decimal (e.g. 0x21 means the value 21), the standard
// trick for this packed layout. seconds is supplied out-of-band because
// the modification date's seconds live in a separate byte of the entry
// from the six-byte date/time field itself.
func ispfDate(raw []byte, seconds byte) (time.Time, error) {
	if len(raw) < 4 {
		return time.Time{}, decerr.Truncated(0, 4, len(raw))
	}
	century := 19 + int(raw[0])
	year, err := strconv.Atoi(fmt.Sprintf("%02x", raw[1]))
	if err != nil {
		return time.Time{}, decerr.Malformed(0, "ISPF year field not packed decimal")
	}
	dayStr := fmt.Sprintf("%02x", raw[2]) + fmt.Sprintf("%02x", raw[3])[:1]
	if dayStr == "000" {
		dayStr = "001"
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return time.Time{}, decerr.Malformed(0, "ISPF day field not packed decimal")
	}
	hours, minutes := 0, 0
	if len(raw) > 4 {
		hours, _ = strconv.Atoi(fmt.Sprintf("%02x", raw[4]))
		minutes, _ = strconv.Atoi(fmt.Sprintf("%02x", raw[5]))
	}
	secs := 0
	if seconds != 0 {
		secs, _ = strconv.Atoi(fmt.Sprintf("%02x", seconds))
	}
	fullYear := century*100 + year
	return time.Date(fullYear, time.January, 1, hours, minutes, secs, 0, time.UTC).AddDate(0, 0, day-1), nil
}

func trimTrailing(s string) string {
	end := len(s)
	for end > 0 && (s[end-1] == ' ' || s[end-1] == 0) {
		end--
	}
	return s[:end]
}
