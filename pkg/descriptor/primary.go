package descriptor

import (
	"encoding/binary"
	"time"

	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/directory"
	"github.com/voliso/voliso/pkg/encoding"
	"github.com/voliso/voliso/pkg/errs"
)

const (
	rootDirectoryRecordSize = 34
	primaryBodySize         = 2041
	primaryReservedSize     = 653
)

// Primary is the Primary Volume Descriptor (ECMA-119 8.4).
type Primary struct {
	Header

	SystemIdentifier     string
	VolumeIdentifier     string
	VolumeSpaceSize      uint32
	VolumeSetSize        uint16
	VolumeSequenceNumber uint16
	LogicalBlockSize     uint16
	PathTableSize        uint32

	LocationOfTypeLPathTable         uint32
	LocationOfOptionalTypeLPathTable uint32
	LocationOfTypeMPathTable         uint32
	LocationOfOptionalTypeMPathTable uint32

	RootDirectoryRecord *directory.Record

	VolumeSetIdentifier         string
	PublisherIdentifier         string
	DataPreparerIdentifier      string
	ApplicationIdentifier       string
	CopyrightFileIdentifier     string
	AbstractFileIdentifier      string
	BibliographicFileIdentifier string

	VolumeCreationDateAndTime     time.Time
	VolumeModificationDateAndTime time.Time
	VolumeExpirationDateAndTime   time.Time
	VolumeEffectiveDateAndTime    time.Time

	FileStructureVersion uint8
	ApplicationUse       [consts.ISO9660_APPLICATION_USE_SIZE]byte
}

// NewPrimary returns a Primary with the fixed identifying header fields set.
func NewPrimary() *Primary {
	return &Primary{
		Header: Header{
			Type:       TypePrimary,
			Identifier: consts.ISO9660_STD_IDENTIFIER,
			Version:    consts.ISO9660_VOLUME_DESC_VERSION,
		},
		FileStructureVersion: 1,
	}
}

func marshalRootDirectoryRecord(r *directory.Record) ([rootDirectoryRecordSize]byte, error) {
	var out [rootDirectoryRecordSize]byte
	if r == nil {
		return out, errs.InvalidInputf("root directory record is nil")
	}
	b, err := r.Marshal()
	if err != nil {
		return out, err
	}
	if len(b) > rootDirectoryRecordSize {
		return out, errs.InvalidInputf("root directory record is %d bytes, exceeds the fixed %d-byte field", len(b), rootDirectoryRecordSize)
	}
	copy(out[:], b)
	return out, nil
}

// Marshal serializes the Primary Volume Descriptor to its 2048-byte form.
func (p *Primary) Marshal() ([consts.ISO9660_SECTOR_SIZE]byte, error) {
	var out [consts.ISO9660_SECTOR_SIZE]byte
	header := p.Header.Marshal()
	copy(out[0:HeaderSize], header[:])

	body := make([]byte, 0, primaryBodySize)
	body = append(body, 0) // unused field 1

	body = append(body, padRight(p.SystemIdentifier, 32)...)
	body = append(body, padRight(p.VolumeIdentifier, 32)...)
	body = append(body, make([]byte, 8)...) // unused field 2

	vss := encoding.MarshalBothByteOrders32(p.VolumeSpaceSize)
	body = append(body, vss[:]...)
	body = append(body, make([]byte, 32)...) // unused field 3

	vsetSize := encoding.MarshalBothByteOrders16(p.VolumeSetSize)
	body = append(body, vsetSize[:]...)
	vseq := encoding.MarshalBothByteOrders16(p.VolumeSequenceNumber)
	body = append(body, vseq[:]...)
	lbs := encoding.MarshalBothByteOrders16(p.LogicalBlockSize)
	body = append(body, lbs[:]...)
	pts := encoding.MarshalBothByteOrders32(p.PathTableSize)
	body = append(body, pts[:]...)

	var le [4]byte
	binary.LittleEndian.PutUint32(le[:], p.LocationOfTypeLPathTable)
	body = append(body, le[:]...)
	binary.LittleEndian.PutUint32(le[:], p.LocationOfOptionalTypeLPathTable)
	body = append(body, le[:]...)
	var be [4]byte
	binary.BigEndian.PutUint32(be[:], p.LocationOfTypeMPathTable)
	body = append(body, be[:]...)
	binary.BigEndian.PutUint32(be[:], p.LocationOfOptionalTypeMPathTable)
	body = append(body, be[:]...)

	rootBytes, err := marshalRootDirectoryRecord(p.RootDirectoryRecord)
	if err != nil {
		return out, err
	}
	body = append(body, rootBytes[:]...)

	body = append(body, padRight(p.VolumeSetIdentifier, 128)...)
	body = append(body, padRight(p.PublisherIdentifier, 128)...)
	body = append(body, padRight(p.DataPreparerIdentifier, 128)...)
	body = append(body, padRight(p.ApplicationIdentifier, 128)...)
	body = append(body, padRight(p.CopyrightFileIdentifier, 37)...)
	body = append(body, padRight(p.AbstractFileIdentifier, 37)...)
	body = append(body, padRight(p.BibliographicFileIdentifier, 37)...)

	for _, t := range []time.Time{
		p.VolumeCreationDateAndTime,
		p.VolumeModificationDateAndTime,
		p.VolumeExpirationDateAndTime,
		p.VolumeEffectiveDateAndTime,
	} {
		dt, err := encoding.MarshalDateTime(t)
		if err != nil {
			return out, err
		}
		body = append(body, dt[:]...)
	}

	body = append(body, p.FileStructureVersion)
	body = append(body, 0) // reserved field 1
	body = append(body, p.ApplicationUse[:]...)
	body = append(body, make([]byte, primaryReservedSize)...)

	if len(body) != primaryBodySize {
		return out, errs.Internalf("primary volume descriptor body is %d bytes, want %d", len(body), primaryBodySize)
	}
	copy(out[HeaderSize:], body)
	return out, nil
}

// Unmarshal decodes a 2048-byte Primary Volume Descriptor sector.
func (p *Primary) Unmarshal(data [consts.ISO9660_SECTOR_SIZE]byte) error {
	var hdr [HeaderSize]byte
	copy(hdr[:], data[:HeaderSize])
	if err := p.Header.Unmarshal(hdr); err != nil {
		return err
	}
	if p.Header.Type != TypePrimary {
		return errs.Malformedf(0, 0, "volume descriptor type %d is not a primary volume descriptor", p.Header.Type)
	}

	body := data[HeaderSize:]
	pos := 1 // skip unused field 1

	p.SystemIdentifier = trimPadded(body[pos : pos+32])
	pos += 32
	p.VolumeIdentifier = trimPadded(body[pos : pos+32])
	pos += 32
	pos += 8 // unused field 2

	var vss [8]byte
	copy(vss[:], body[pos:pos+8])
	vs, err := encoding.UnmarshalUint32LSBMSB(vss)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "volume space size")
	}
	p.VolumeSpaceSize = vs
	pos += 8
	pos += 32 // unused field 3

	var vsetBytes [4]byte
	copy(vsetBytes[:], body[pos:pos+4])
	vset, err := encoding.UnmarshalUint16LSBMSB(vsetBytes)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "volume set size")
	}
	p.VolumeSetSize = vset
	pos += 4

	var vseqBytes [4]byte
	copy(vseqBytes[:], body[pos:pos+4])
	vseq, err := encoding.UnmarshalUint16LSBMSB(vseqBytes)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "volume sequence number")
	}
	p.VolumeSequenceNumber = vseq
	pos += 4

	var lbsBytes [4]byte
	copy(lbsBytes[:], body[pos:pos+4])
	lbs, err := encoding.UnmarshalUint16LSBMSB(lbsBytes)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "logical block size")
	}
	p.LogicalBlockSize = lbs
	pos += 4

	var ptsBytes [8]byte
	copy(ptsBytes[:], body[pos:pos+8])
	pts, err := encoding.UnmarshalUint32LSBMSB(ptsBytes)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "path table size")
	}
	p.PathTableSize = pts
	pos += 8

	p.LocationOfTypeLPathTable = binary.LittleEndian.Uint32(body[pos : pos+4])
	pos += 4
	p.LocationOfOptionalTypeLPathTable = binary.LittleEndian.Uint32(body[pos : pos+4])
	pos += 4
	p.LocationOfTypeMPathTable = binary.BigEndian.Uint32(body[pos : pos+4])
	pos += 4
	p.LocationOfOptionalTypeMPathTable = binary.BigEndian.Uint32(body[pos : pos+4])
	pos += 4

	root := &directory.Record{}
	if err := root.Unmarshal(body[pos:pos+rootDirectoryRecordSize], 16, int64(pos)); err != nil {
		return errs.MalformedWrap(0, 0, err, "root directory record")
	}
	p.RootDirectoryRecord = root
	pos += rootDirectoryRecordSize

	p.VolumeSetIdentifier = trimPadded(body[pos : pos+128])
	pos += 128
	p.PublisherIdentifier = trimPadded(body[pos : pos+128])
	pos += 128
	p.DataPreparerIdentifier = trimPadded(body[pos : pos+128])
	pos += 128
	p.ApplicationIdentifier = trimPadded(body[pos : pos+128])
	pos += 128
	p.CopyrightFileIdentifier = trimPadded(body[pos : pos+37])
	pos += 37
	p.AbstractFileIdentifier = trimPadded(body[pos : pos+37])
	pos += 37
	p.BibliographicFileIdentifier = trimPadded(body[pos : pos+37])
	pos += 37

	dates := []*time.Time{
		&p.VolumeCreationDateAndTime,
		&p.VolumeModificationDateAndTime,
		&p.VolumeExpirationDateAndTime,
		&p.VolumeEffectiveDateAndTime,
	}
	for _, dst := range dates {
		var b [17]byte
		copy(b[:], body[pos:pos+17])
		t, err := encoding.UnmarshalDateTime(b)
		if err != nil {
			return errs.MalformedWrap(0, 0, err, "volume descriptor date/time")
		}
		*dst = t
		pos += 17
	}

	p.FileStructureVersion = body[pos]
	pos++
	pos++ // reserved field 1

	copy(p.ApplicationUse[:], body[pos:pos+consts.ISO9660_APPLICATION_USE_SIZE])
	pos += consts.ISO9660_APPLICATION_USE_SIZE

	return nil
}
