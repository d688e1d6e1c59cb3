package descriptor

import (
	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/errs"
)

// Terminator is the Volume Descriptor Set Terminator (ECMA-119 8.3),
// closing the sequence of volume descriptors in the system area.
type Terminator struct {
	Header
}

// NewTerminator returns a Terminator with its header already filled in.
func NewTerminator() *Terminator {
	return &Terminator{
		Header: Header{
			Type:       TypeTerminator,
			Identifier: consts.ISO9660_STD_IDENTIFIER,
			Version:    consts.ISO9660_VOLUME_DESC_VERSION,
		},
	}
}

// Marshal serializes the Terminator to its 2048-byte form.
func (t *Terminator) Marshal() ([consts.ISO9660_SECTOR_SIZE]byte, error) {
	var out [consts.ISO9660_SECTOR_SIZE]byte
	header := t.Header.Marshal()
	copy(out[0:HeaderSize], header[:])
	return out, nil
}

// Unmarshal decodes a 2048-byte Terminator sector.
func (t *Terminator) Unmarshal(data [consts.ISO9660_SECTOR_SIZE]byte) error {
	var hdr [HeaderSize]byte
	copy(hdr[:], data[:HeaderSize])
	if err := t.Header.Unmarshal(hdr); err != nil {
		return err
	}
	if t.Header.Type != TypeTerminator {
		return errs.Malformedf(0, 0, "volume descriptor type %d is not a set terminator", t.Header.Type)
	}
	return nil
}
