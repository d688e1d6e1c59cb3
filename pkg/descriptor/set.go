package descriptor

import "github.com/voliso/voliso/pkg/consts"

// Set collects every volume descriptor read from, or to be written to, an
// image's system area.
type Set struct {
	Boot          *BootRecord
	Primary       *Primary
	Partition     []*Partition
	Supplementary []*Supplementary
	Terminator    *Terminator
}

// PeekType returns the Volume Descriptor Type byte of a raw 2048-byte
// sector without fully decoding it, so the caller can dispatch to the
// right concrete Unmarshal.
func PeekType(sector [consts.ISO9660_SECTOR_SIZE]byte) Type {
	return Type(sector[0])
}
