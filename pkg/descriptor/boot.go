package descriptor

import (
	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/encoding"
	"github.com/voliso/voliso/pkg/errs"
)

const bootSystemUseSize = consts.ISO9660_SECTOR_SIZE - 7 - 32 - 32 - 4

// BootRecord is the Boot Record Volume Descriptor (ECMA-119 8.2), which
// El Torito uses to point at its boot catalog.
type BootRecord struct {
	Header

	BootSystemIdentifier string
	BootIdentifier       string

	// BootCatalogPointer is the LBA of the El Torito boot catalog, stored
	// little-endian in the first 4 bytes of BootSystemUse.
	BootCatalogPointer uint32
}

// NewElToritoBootRecord returns a BootRecord identifying the El Torito
// specification, with catalogPointer already encoded into BootSystemUse.
func NewElToritoBootRecord(catalogPointer uint32) *BootRecord {
	return &BootRecord{
		Header: Header{
			Type:       TypeBootRecord,
			Identifier: consts.ISO9660_STD_IDENTIFIER,
			Version:    consts.ISO9660_VOLUME_DESC_VERSION,
		},
		BootSystemIdentifier: consts.EL_TORITO_BOOT_SYSTEM_ID,
		BootCatalogPointer:   catalogPointer,
	}
}

// Marshal serializes the Boot Record to its 2048-byte form.
func (b *BootRecord) Marshal() ([consts.ISO9660_SECTOR_SIZE]byte, error) {
	var out [consts.ISO9660_SECTOR_SIZE]byte
	header := b.Header.Marshal()
	copy(out[0:HeaderSize], header[:])

	pos := HeaderSize
	copy(out[pos:pos+32], padRight(b.BootSystemIdentifier, 32))
	pos += 32
	copy(out[pos:pos+32], padRight(b.BootIdentifier, 32))
	pos += 32

	ptr := encoding.MarshalBothByteOrders32(b.BootCatalogPointer)
	// El Torito stores only the little-endian half here (ECMA-119 doesn't
	// define both-byte-order for this field; this follows genisoimage's
	// convention of little-endian-only).
	copy(out[pos:pos+4], ptr[0:4])

	return out, nil
}

// Unmarshal decodes a 2048-byte Boot Record sector.
func (b *BootRecord) Unmarshal(data [consts.ISO9660_SECTOR_SIZE]byte) error {
	var hdr [HeaderSize]byte
	copy(hdr[:], data[:HeaderSize])
	if err := b.Header.Unmarshal(hdr); err != nil {
		return err
	}
	if b.Header.Type != TypeBootRecord {
		return errs.Malformedf(0, 0, "volume descriptor type %d is not a boot record", b.Header.Type)
	}

	pos := HeaderSize
	b.BootSystemIdentifier = trimPadded(data[pos : pos+32])
	pos += 32
	b.BootIdentifier = trimPadded(data[pos : pos+32])
	pos += 32

	var le [8]byte
	copy(le[0:4], data[pos:pos+4])
	b.BootCatalogPointer = uint32(le[0]) | uint32(le[1])<<8 | uint32(le[2])<<16 | uint32(le[3])<<24

	return nil
}
