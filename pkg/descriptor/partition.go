package descriptor

import (
	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/encoding"
	"github.com/voliso/voliso/pkg/errs"
)

const partitionSystemUseSize = consts.ISO9660_SECTOR_SIZE - 88

// Partition is the Volume Partition Descriptor (ECMA-119 8.6), an optional
// descriptor naming a sub-region of the volume space as its own partition.
type Partition struct {
	Header

	SystemIdentifier          string
	VolumePartitionIdentifier string
	VolumePartitionLocation   uint32
	VolumePartitionSize       uint32
	SystemUse                 [partitionSystemUseSize]byte
}

// Marshal serializes the Volume Partition Descriptor to its 2048-byte form.
func (p *Partition) Marshal() ([consts.ISO9660_SECTOR_SIZE]byte, error) {
	var out [consts.ISO9660_SECTOR_SIZE]byte
	header := p.Header.Marshal()
	copy(out[0:HeaderSize], header[:])

	pos := HeaderSize
	out[pos] = 0 // unused field
	pos++
	copy(out[pos:pos+32], padRight(p.SystemIdentifier, 32))
	pos += 32
	copy(out[pos:pos+32], padRight(p.VolumePartitionIdentifier, 32))
	pos += 32

	loc := encoding.MarshalBothByteOrders32(p.VolumePartitionLocation)
	copy(out[pos:pos+8], loc[:])
	pos += 8
	size := encoding.MarshalBothByteOrders32(p.VolumePartitionSize)
	copy(out[pos:pos+8], size[:])
	pos += 8

	copy(out[pos:pos+partitionSystemUseSize], p.SystemUse[:])

	return out, nil
}

// Unmarshal decodes a 2048-byte Volume Partition Descriptor sector.
func (p *Partition) Unmarshal(data [consts.ISO9660_SECTOR_SIZE]byte) error {
	var hdr [HeaderSize]byte
	copy(hdr[:], data[:HeaderSize])
	if err := p.Header.Unmarshal(hdr); err != nil {
		return err
	}
	if p.Header.Type != TypePartition {
		return errs.Malformedf(0, 0, "volume descriptor type %d is not a volume partition descriptor", p.Header.Type)
	}

	pos := HeaderSize + 1 // unused field
	p.SystemIdentifier = trimPadded(data[pos : pos+32])
	pos += 32
	p.VolumePartitionIdentifier = trimPadded(data[pos : pos+32])
	pos += 32

	var loc [8]byte
	copy(loc[:], data[pos:pos+8])
	l, err := encoding.UnmarshalUint32LSBMSB(loc)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "volume partition location")
	}
	p.VolumePartitionLocation = l
	pos += 8

	var size [8]byte
	copy(size[:], data[pos:pos+8])
	sz, err := encoding.UnmarshalUint32LSBMSB(size)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "volume partition size")
	}
	p.VolumePartitionSize = sz
	pos += 8

	copy(p.SystemUse[:], data[pos:pos+partitionSystemUseSize])
	return nil
}
