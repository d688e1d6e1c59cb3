// Package udf implements the ECMA-167/UDF bridge volume structures this
// module layers on top of an ISO9660 image: descriptor tags, the anchor
// volume descriptor pointer, the volume descriptor sequence, the file set
// descriptor, file (and extended file) entries, and file identifier
// descriptors.
package udf

import (
	"encoding/binary"

	"github.com/voliso/voliso/pkg/errs"
)

const TagSize = 16

// Tag is the Descriptor Tag (ECMA-167 3/7.2) prefixing every UDF
// descriptor.
type Tag struct {
	Identifier   uint16
	Version      uint16
	Checksum     byte
	SerialNumber uint16
	CRC          uint16
	CRCLength    uint16
	TagLocation  uint32
}

// Marshal serializes the tag, assuming CRC/CRCLength were already
// computed by BuildTag over the descriptor body.
func (t *Tag) Marshal() [TagSize]byte {
	var out [TagSize]byte
	binary.LittleEndian.PutUint16(out[0:2], t.Identifier)
	binary.LittleEndian.PutUint16(out[2:4], t.Version)
	out[4] = t.Checksum
	out[5] = 0 // reserved
	binary.LittleEndian.PutUint16(out[6:8], t.SerialNumber)
	binary.LittleEndian.PutUint16(out[8:10], t.CRC)
	binary.LittleEndian.PutUint16(out[10:12], t.CRCLength)
	binary.LittleEndian.PutUint32(out[12:16], t.TagLocation)
	out[4] = tagChecksum(out)
	return out
}

// Unmarshal decodes a tag and verifies its checksum.
func (t *Tag) Unmarshal(data [TagSize]byte) error {
	want := data[4]
	if got := tagChecksum(data); got != want {
		return errs.Malformedf(0, 0, "udf descriptor tag checksum mismatch: got %#x, want %#x", got, want)
	}
	t.Identifier = binary.LittleEndian.Uint16(data[0:2])
	t.Version = binary.LittleEndian.Uint16(data[2:4])
	t.Checksum = data[4]
	t.SerialNumber = binary.LittleEndian.Uint16(data[6:8])
	t.CRC = binary.LittleEndian.Uint16(data[8:10])
	t.CRCLength = binary.LittleEndian.Uint16(data[10:12])
	t.TagLocation = binary.LittleEndian.Uint32(data[12:16])
	return nil
}

// tagChecksum is the byte sum of the tag's 16 bytes excluding the
// checksum byte itself (ECMA-167 3/7.2.5).
func tagChecksum(tag [TagSize]byte) byte {
	var sum byte
	for i, b := range tag {
		if i == 4 {
			continue
		}
		sum += b
	}
	return sum
}

// crc16Table is the standard CRC-CCITT (XModem: poly 0x1021, init 0,
// no reflect, no final xor) table UDF uses for descriptor CRCs.
var crc16Table = func() [256]uint16 {
	var table [256]uint16
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}()

// ComputeCRC16 computes the ISO/IEC 13239 CRC UDF stores in a descriptor
// tag's CRC field, over the descriptor body following the tag.
func ComputeCRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = crc<<8 ^ crc16Table[byte(crc>>8)^b]
	}
	return crc
}

// BuildTag assembles a complete tag for a descriptor body, computing its
// CRC and checksum.
func BuildTag(identifier uint16, serialNumber uint16, location uint32, body []byte) Tag {
	return Tag{
		Identifier:   identifier,
		Version:      2,
		SerialNumber: serialNumber,
		CRC:          ComputeCRC16(body),
		CRCLength:    uint16(len(body)),
		TagLocation:  location,
	}
}
