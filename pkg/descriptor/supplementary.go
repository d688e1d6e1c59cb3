package descriptor

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/directory"
	"github.com/voliso/voliso/pkg/encoding"
	"github.com/voliso/voliso/pkg/errs"
)

// Supplementary is the Supplementary Volume Descriptor (ECMA-119 8.5) used
// to carry a Joliet tree: identical in shape to Primary but with UCS-2BE
// string fields and an escape-sequences field naming the character set.
type Supplementary struct {
	Header

	// VolumeFlags bit 0: 1 if EscapeSequences names a set outside the
	// ISO 2375 registry.
	VolumeFlags byte

	SystemIdentifier string
	VolumeIdentifier string

	VolumeSpaceSize uint32

	// EscapeSequences identifies the Joliet UCS-2 level; see
	// consts.JOLIET_LEVEL_{1,2,3}_ESCAPE.
	EscapeSequences [32]byte

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

// NewSupplementary returns a Supplementary Volume Descriptor set up for the
// Joliet level-3 (UCS-2) character set.
func NewSupplementary() *Supplementary {
	sv := &Supplementary{
		Header: Header{
			Type:       TypeSupplementary,
			Identifier: consts.ISO9660_STD_IDENTIFIER,
			Version:    consts.ISO9660_VOLUME_DESC_VERSION,
		},
		FileStructureVersion: 1,
	}
	copy(sv.EscapeSequences[:], consts.JOLIET_LEVEL_3_ESCAPE)
	return sv
}

func padUCS2(s string, n int) ([]byte, error) {
	enc, err := encoding.EncodeUCS2BigEndian(s)
	if err != nil {
		return nil, err
	}
	if len(enc) > n {
		return nil, errs.InvalidInputf("%q is %d bytes after UCS-2BE encoding, exceeds the %d-byte field", s, len(enc), n)
	}
	out := make([]byte, n)
	copy(out, enc)
	for i := len(enc); i < n; i += 2 {
		out[i], out[i+1] = 0x00, 0x20 // UCS-2BE space padding
	}
	return out, nil
}

// Marshal serializes the Supplementary Volume Descriptor to its 2048-byte
// form.
func (s *Supplementary) Marshal() ([consts.ISO9660_SECTOR_SIZE]byte, error) {
	var out [consts.ISO9660_SECTOR_SIZE]byte
	header := s.Header.Marshal()
	copy(out[0:HeaderSize], header[:])

	body := make([]byte, 0, primaryBodySize)
	body = append(body, s.VolumeFlags)

	sysID, err := padUCS2(s.SystemIdentifier, 32)
	if err != nil {
		return out, err
	}
	body = append(body, sysID...)

	volID, err := padUCS2(s.VolumeIdentifier, 32)
	if err != nil {
		return out, err
	}
	body = append(body, volID...)

	body = append(body, make([]byte, 8)...) // unused field

	vss := encoding.MarshalBothByteOrders32(s.VolumeSpaceSize)
	body = append(body, vss[:]...)
	body = append(body, s.EscapeSequences[:]...)

	vsetSize := encoding.MarshalBothByteOrders16(s.VolumeSetSize)
	body = append(body, vsetSize[:]...)
	vseq := encoding.MarshalBothByteOrders16(s.VolumeSequenceNumber)
	body = append(body, vseq[:]...)
	lbs := encoding.MarshalBothByteOrders16(s.LogicalBlockSize)
	body = append(body, lbs[:]...)
	pts := encoding.MarshalBothByteOrders32(s.PathTableSize)
	body = append(body, pts[:]...)

	var le [4]byte
	binary.LittleEndian.PutUint32(le[:], s.LocationOfTypeLPathTable)
	body = append(body, le[:]...)
	binary.LittleEndian.PutUint32(le[:], s.LocationOfOptionalTypeLPathTable)
	body = append(body, le[:]...)
	var be [4]byte
	binary.BigEndian.PutUint32(be[:], s.LocationOfTypeMPathTable)
	body = append(body, be[:]...)
	binary.BigEndian.PutUint32(be[:], s.LocationOfOptionalTypeMPathTable)
	body = append(body, be[:]...)

	rootBytes, err := marshalRootDirectoryRecord(s.RootDirectoryRecord)
	if err != nil {
		return out, err
	}
	body = append(body, rootBytes[:]...)

	for _, f := range []string{
		s.VolumeSetIdentifier,
		s.PublisherIdentifier,
		s.DataPreparerIdentifier,
		s.ApplicationIdentifier,
	} {
		enc, err := padUCS2(f, 128)
		if err != nil {
			return out, err
		}
		body = append(body, enc...)
	}
	// The three file-reference identifiers name a file in the root
	// directory hierarchy by its d-character name, the same in every
	// volume descriptor; they are not UCS-2 encoded even in the SVD.
	body = append(body, padRight(s.CopyrightFileIdentifier, 37)...)
	body = append(body, padRight(s.AbstractFileIdentifier, 37)...)
	body = append(body, padRight(s.BibliographicFileIdentifier, 37)...)

	for _, t := range []time.Time{
		s.VolumeCreationDateAndTime,
		s.VolumeModificationDateAndTime,
		s.VolumeExpirationDateAndTime,
		s.VolumeEffectiveDateAndTime,
	} {
		dt, err := encoding.MarshalDateTime(t)
		if err != nil {
			return out, err
		}
		body = append(body, dt[:]...)
	}

	body = append(body, s.FileStructureVersion)
	body = append(body, 0) // reserved field 1
	body = append(body, s.ApplicationUse[:]...)
	body = append(body, make([]byte, primaryReservedSize)...)

	if len(body) != primaryBodySize {
		return out, errs.Internalf("supplementary volume descriptor body is %d bytes, want %d", len(body), primaryBodySize)
	}
	copy(out[HeaderSize:], body)
	return out, nil
}

// Unmarshal decodes a 2048-byte Supplementary Volume Descriptor sector.
func (s *Supplementary) Unmarshal(data [consts.ISO9660_SECTOR_SIZE]byte) error {
	var hdr [HeaderSize]byte
	copy(hdr[:], data[:HeaderSize])
	if err := s.Header.Unmarshal(hdr); err != nil {
		return err
	}
	if s.Header.Type != TypeSupplementary {
		return errs.Malformedf(0, 0, "volume descriptor type %d is not a supplementary volume descriptor", s.Header.Type)
	}

	body := data[HeaderSize:]
	pos := 0
	s.VolumeFlags = body[pos]
	pos++

	s.SystemIdentifier = strings.TrimRight(encoding.DecodeUCS2BigEndian(body[pos:pos+32]), " ")
	pos += 32
	s.VolumeIdentifier = strings.TrimRight(encoding.DecodeUCS2BigEndian(body[pos:pos+32]), " ")
	pos += 32
	pos += 8 // unused field

	var vss [8]byte
	copy(vss[:], body[pos:pos+8])
	vs, err := encoding.UnmarshalUint32LSBMSB(vss)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "volume space size")
	}
	s.VolumeSpaceSize = vs
	pos += 8

	copy(s.EscapeSequences[:], body[pos:pos+32])
	pos += 32

	var vsetBytes [4]byte
	copy(vsetBytes[:], body[pos:pos+4])
	vset, err := encoding.UnmarshalUint16LSBMSB(vsetBytes)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "volume set size")
	}
	s.VolumeSetSize = vset
	pos += 4

	var vseqBytes [4]byte
	copy(vseqBytes[:], body[pos:pos+4])
	vseq, err := encoding.UnmarshalUint16LSBMSB(vseqBytes)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "volume sequence number")
	}
	s.VolumeSequenceNumber = vseq
	pos += 4

	var lbsBytes [4]byte
	copy(lbsBytes[:], body[pos:pos+4])
	lbs, err := encoding.UnmarshalUint16LSBMSB(lbsBytes)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "logical block size")
	}
	s.LogicalBlockSize = lbs
	pos += 4

	var ptsBytes [8]byte
	copy(ptsBytes[:], body[pos:pos+8])
	pts, err := encoding.UnmarshalUint32LSBMSB(ptsBytes)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "path table size")
	}
	s.PathTableSize = pts
	pos += 8

	s.LocationOfTypeLPathTable = binary.LittleEndian.Uint32(body[pos : pos+4])
	pos += 4
	s.LocationOfOptionalTypeLPathTable = binary.LittleEndian.Uint32(body[pos : pos+4])
	pos += 4
	s.LocationOfTypeMPathTable = binary.BigEndian.Uint32(body[pos : pos+4])
	pos += 4
	s.LocationOfOptionalTypeMPathTable = binary.BigEndian.Uint32(body[pos : pos+4])
	pos += 4

	root := &directory.Record{Joliet: true}
	if err := root.Unmarshal(body[pos:pos+rootDirectoryRecordSize], 16, int64(pos)); err != nil {
		return errs.MalformedWrap(0, 0, err, "root directory record")
	}
	s.RootDirectoryRecord = root
	pos += rootDirectoryRecordSize

	for _, dst := range []*string{
		&s.VolumeSetIdentifier,
		&s.PublisherIdentifier,
		&s.DataPreparerIdentifier,
		&s.ApplicationIdentifier,
	} {
		*dst = strings.TrimRight(encoding.DecodeUCS2BigEndian(body[pos:pos+128]), " ")
		pos += 128
	}
	s.CopyrightFileIdentifier = trimPadded(body[pos : pos+37])
	pos += 37
	s.AbstractFileIdentifier = trimPadded(body[pos : pos+37])
	pos += 37
	s.BibliographicFileIdentifier = trimPadded(body[pos : pos+37])
	pos += 37

	dates := []*time.Time{
		&s.VolumeCreationDateAndTime,
		&s.VolumeModificationDateAndTime,
		&s.VolumeExpirationDateAndTime,
		&s.VolumeEffectiveDateAndTime,
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

	s.FileStructureVersion = body[pos]
	pos++
	pos++ // reserved field 1

	copy(s.ApplicationUse[:], body[pos:pos+consts.ISO9660_APPLICATION_USE_SIZE])
	pos += consts.ISO9660_APPLICATION_USE_SIZE

	return nil
}
