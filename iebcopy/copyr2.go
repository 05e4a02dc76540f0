package iebcopy

import "github.com/mainframed/xmi/decerr"

// Copyr2 is the parsed COPYR2 control record: the DEB (Data Extent
// Block) area and up to sixteen 16-byte extent descriptors. The DEB
// and the first extent occupy the same sixteen bytes in the on-tape
// layout; both fields are kept, matching the reference decoder's own
// treatment of the record rather than resolving the apparent overlap.
type Copyr2 struct {
	Deb     [16]byte
	Extents [16][16]byte
}

// ParseCopyr2 decodes the COPYR2 control record.
func ParseCopyr2(raw []byte) (Copyr2, error) {
	if len(raw) < 256 {
		return Copyr2{}, decerr.Truncated(0, 256, len(raw))
	}
	var c Copyr2
	copy(c.Deb[:], raw[0:16])
	for i := 0; i < 16; i++ {
		copy(c.Extents[i][:], raw[i*16:i*16+16])
	}
	return c, nil
}
