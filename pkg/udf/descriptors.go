package udf

import (
	"encoding/binary"
	"time"

	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/errs"
)

// AnchorVolumeDescriptorPointer locates the main and reserve volume
// descriptor sequences. It always lives at UDF_ANCHOR_BLOCK.
type AnchorVolumeDescriptorPointer struct {
	Tag
	MainVolumeDescriptorSequenceExtent    ExtentAD
	ReserveVolumeDescriptorSequenceExtent ExtentAD
}

func (a *AnchorVolumeDescriptorPointer) Marshal() [consts.UDF_SECTOR_SIZE]byte {
	var out [consts.UDF_SECTOR_SIZE]byte
	body := make([]byte, 0, 16)
	main := a.MainVolumeDescriptorSequenceExtent.Marshal()
	body = append(body, main[:]...)
	reserve := a.ReserveVolumeDescriptorSequenceExtent.Marshal()
	body = append(body, reserve[:]...)

	tag := BuildTag(consts.UDF_TAG_ANCHOR_VOLUME_DESCRIPTOR_PTR, 0, consts.UDF_ANCHOR_BLOCK, body)
	tagBytes := tag.Marshal()
	copy(out[0:TagSize], tagBytes[:])
	copy(out[TagSize:], body)
	return out
}

func (a *AnchorVolumeDescriptorPointer) Unmarshal(data [consts.UDF_SECTOR_SIZE]byte) error {
	var tagBytes [TagSize]byte
	copy(tagBytes[:], data[:TagSize])
	if err := a.Tag.Unmarshal(tagBytes); err != nil {
		return err
	}
	if a.Tag.Identifier != consts.UDF_TAG_ANCHOR_VOLUME_DESCRIPTOR_PTR {
		return errs.Malformedf(0, 0, "udf tag %d is not an anchor volume descriptor pointer", a.Tag.Identifier)
	}
	body := data[TagSize : TagSize+16]
	a.MainVolumeDescriptorSequenceExtent = unmarshalExtentAD(body[0:8])
	a.ReserveVolumeDescriptorSequenceExtent = unmarshalExtentAD(body[8:16])
	return nil
}

// PrimaryVolumeDescriptor (ECMA-167 3/10.1) names the volume and its
// implementation/application identities.
type PrimaryVolumeDescriptor struct {
	Tag
	VolumeDescriptorSequenceNumber              uint32
	PrimaryVolumeDescriptorNumber               uint32
	VolumeIdentifier                            string
	VolumeSequenceNumber                        uint16
	MaximumVolumeSequenceNumber                 uint16
	InterchangeLevel                            uint16
	MaximumInterchangeLevel                     uint16
	CharacterSetList                            uint32
	MaximumCharacterSetList                     uint32
	VolumeSetIdentifier                         string
	RecordingDateAndTime                        time.Time
	ImplementationIdentifier                    EntityID
	PredecessorVolumeDescriptorSequenceLocation uint32
	Flags                                       uint16
}

func (p *PrimaryVolumeDescriptor) Marshal(location uint32) ([consts.UDF_SECTOR_SIZE]byte, error) {
	var out [consts.UDF_SECTOR_SIZE]byte
	body := make([]byte, 0, 480)

	seq := make([]byte, 8)
	binary.LittleEndian.PutUint32(seq[0:4], p.VolumeDescriptorSequenceNumber)
	binary.LittleEndian.PutUint32(seq[4:8], p.PrimaryVolumeDescriptorNumber)
	body = append(body, seq...)

	volID := padCS0(p.VolumeIdentifier, 32)
	body = append(body, volID...)

	rest := make([]byte, 8)
	binary.LittleEndian.PutUint16(rest[0:2], p.VolumeSequenceNumber)
	binary.LittleEndian.PutUint16(rest[2:4], p.MaximumVolumeSequenceNumber)
	binary.LittleEndian.PutUint16(rest[4:6], 2) // interchange level 2
	binary.LittleEndian.PutUint16(rest[6:8], 2)
	body = append(body, rest...)

	charsets := make([]byte, 8)
	binary.LittleEndian.PutUint32(charsets[0:4], 1)
	binary.LittleEndian.PutUint32(charsets[4:8], 1)
	body = append(body, charsets...)

	body = append(body, padCS0(p.VolumeSetIdentifier, 128)...)
	descCS := CS0CharSpec.Marshal()
	body = append(body, descCS[:]...)
	explCS := CS0CharSpec.Marshal()
	body = append(body, explCS[:]...)

	abstractExtent := ExtentAD{}.Marshal()
	body = append(body, abstractExtent[:]...)
	copyrightExtent := ExtentAD{}.Marshal()
	body = append(body, copyrightExtent[:]...)

	appID := NewEntityID("*UDF Application").Marshal()
	body = append(body, appID[:]...)

	rec := MarshalTimestamp(p.RecordingDateAndTime)
	body = append(body, rec[:]...)

	implID := p.ImplementationIdentifier.Marshal()
	body = append(body, implID[:]...)

	body = append(body, make([]byte, 64)...) // implementation use

	tail := make([]byte, 6)
	binary.LittleEndian.PutUint32(tail[0:4], p.PredecessorVolumeDescriptorSequenceLocation)
	binary.LittleEndian.PutUint16(tail[4:6], p.Flags)
	body = append(body, tail...)

	if len(body) < 480 {
		body = append(body, make([]byte, 480-len(body))...)
	}

	tag := BuildTag(consts.UDF_TAG_PRIMARY_VOLUME_DESCRIPTOR, 0, location, body)
	tagBytes := tag.Marshal()
	copy(out[0:TagSize], tagBytes[:])
	copy(out[TagSize:], body)
	return out, nil
}

func (p *PrimaryVolumeDescriptor) Unmarshal(data [consts.UDF_SECTOR_SIZE]byte) error {
	var tagBytes [TagSize]byte
	copy(tagBytes[:], data[:TagSize])
	if err := p.Tag.Unmarshal(tagBytes); err != nil {
		return err
	}
	if p.Tag.Identifier != consts.UDF_TAG_PRIMARY_VOLUME_DESCRIPTOR {
		return errs.Malformedf(0, 0, "udf tag %d is not a primary volume descriptor", p.Tag.Identifier)
	}
	body := data[TagSize:]
	p.VolumeDescriptorSequenceNumber = binary.LittleEndian.Uint32(body[0:4])
	p.PrimaryVolumeDescriptorNumber = binary.LittleEndian.Uint32(body[4:8])
	volID, err := decodeCS0(body[8:40])
	if err != nil {
		return err
	}
	p.VolumeIdentifier = volID
	p.VolumeSequenceNumber = binary.LittleEndian.Uint16(body[40:42])
	p.MaximumVolumeSequenceNumber = binary.LittleEndian.Uint16(body[42:44])
	p.InterchangeLevel = binary.LittleEndian.Uint16(body[44:46])
	p.MaximumInterchangeLevel = binary.LittleEndian.Uint16(body[46:48])
	p.CharacterSetList = binary.LittleEndian.Uint32(body[48:52])
	p.MaximumCharacterSetList = binary.LittleEndian.Uint32(body[52:56])
	setID, err := decodeCS0(body[56:184])
	if err != nil {
		return err
	}
	p.VolumeSetIdentifier = setID
	// 184:248 descriptor character set, 248:312 explanatory character set,
	// 312:320 abstract extent, 320:328 copyright extent, 328:360 application id.
	rec, err := UnmarshalTimestamp([timestampSize]byte(body[360:372]))
	if err != nil {
		return err
	}
	p.RecordingDateAndTime = rec
	p.ImplementationIdentifier = unmarshalEntityID(body[372:404])
	// 404:468 implementation use.
	p.PredecessorVolumeDescriptorSequenceLocation = binary.LittleEndian.Uint32(body[468:472])
	p.Flags = binary.LittleEndian.Uint16(body[472:474])
	return nil
}

// PartitionDescriptor (ECMA-167 3/10.5) names the bounds of one
// partition within the logical volume.
type PartitionDescriptor struct {
	Tag
	VolumeDescriptorSequenceNumber uint32
	PartitionFlags                 uint16
	PartitionNumber                uint16
	PartitionContents              EntityID
	AccessType                     uint32
	PartitionStartingLocation      uint32
	PartitionLength                uint32
	ImplementationIdentifier       EntityID
}

func (p *PartitionDescriptor) Marshal(location uint32) [consts.UDF_SECTOR_SIZE]byte {
	var out [consts.UDF_SECTOR_SIZE]byte
	body := make([]byte, 0, 356)

	head := make([]byte, 8)
	binary.LittleEndian.PutUint32(head[0:4], p.VolumeDescriptorSequenceNumber)
	binary.LittleEndian.PutUint16(head[4:6], p.PartitionFlags)
	binary.LittleEndian.PutUint16(head[6:8], p.PartitionNumber)
	body = append(body, head...)

	contents := p.PartitionContents.Marshal()
	body = append(body, contents[:]...)
	body = append(body, make([]byte, 128)...) // partition contents use

	tail := make([]byte, 12)
	binary.LittleEndian.PutUint32(tail[0:4], p.AccessType)
	binary.LittleEndian.PutUint32(tail[4:8], p.PartitionStartingLocation)
	binary.LittleEndian.PutUint32(tail[8:12], p.PartitionLength)
	body = append(body, tail...)

	implID := p.ImplementationIdentifier.Marshal()
	body = append(body, implID[:]...)
	body = append(body, make([]byte, 128)...) // implementation use

	if len(body) < 356 {
		body = append(body, make([]byte, 356-len(body))...)
	}

	tag := BuildTag(consts.UDF_TAG_PARTITION_DESCRIPTOR, 0, location, body)
	tagBytes := tag.Marshal()
	copy(out[0:TagSize], tagBytes[:])
	copy(out[TagSize:], body)
	return out
}

func (p *PartitionDescriptor) Unmarshal(data [consts.UDF_SECTOR_SIZE]byte) error {
	var tagBytes [TagSize]byte
	copy(tagBytes[:], data[:TagSize])
	if err := p.Tag.Unmarshal(tagBytes); err != nil {
		return err
	}
	if p.Tag.Identifier != consts.UDF_TAG_PARTITION_DESCRIPTOR {
		return errs.Malformedf(0, 0, "udf tag %d is not a partition descriptor", p.Tag.Identifier)
	}
	body := data[TagSize:]
	p.VolumeDescriptorSequenceNumber = binary.LittleEndian.Uint32(body[0:4])
	p.PartitionFlags = binary.LittleEndian.Uint16(body[4:6])
	p.PartitionNumber = binary.LittleEndian.Uint16(body[6:8])
	p.PartitionContents = unmarshalEntityID(body[8:40])
	p.AccessType = binary.LittleEndian.Uint32(body[168:172])
	p.PartitionStartingLocation = binary.LittleEndian.Uint32(body[172:176])
	p.PartitionLength = binary.LittleEndian.Uint32(body[176:180])
	p.ImplementationIdentifier = unmarshalEntityID(body[180:212])
	return nil
}

// LogicalVolumeDescriptor (ECMA-167 3/10.6) joins one or more partitions
// into the logical volume the file set lives on.
type LogicalVolumeDescriptor struct {
	Tag
	VolumeDescriptorSequenceNumber uint32
	LogicalVolumeIdentifier        string
	LogicalBlockSize               uint32
	DomainIdentifier               EntityID
	LogicalVolumeContentsUse       LongAD // fileset descriptor location
	IntegritySequenceExtent        ExtentAD
}

func (l *LogicalVolumeDescriptor) Marshal(location uint32) [consts.UDF_SECTOR_SIZE]byte {
	var out [consts.UDF_SECTOR_SIZE]byte
	body := make([]byte, 0, 440)

	head := make([]byte, 4)
	binary.LittleEndian.PutUint32(head, l.VolumeDescriptorSequenceNumber)
	body = append(body, head...)

	charSpec := CS0CharSpec.Marshal()
	body = append(body, charSpec[:]...)
	body = append(body, padCS0(l.LogicalVolumeIdentifier, 128)...)

	blockSize := make([]byte, 4)
	binary.LittleEndian.PutUint32(blockSize, l.LogicalBlockSize)
	body = append(body, blockSize...)

	domainID := l.DomainIdentifier.Marshal()
	body = append(body, domainID[:]...)

	contentsUse := l.LogicalVolumeContentsUse.Marshal()
	body = append(body, contentsUse[:]...)

	mapTableLength := make([]byte, 8)
	binary.LittleEndian.PutUint32(mapTableLength[0:4], 0)
	binary.LittleEndian.PutUint32(mapTableLength[4:8], 0)
	body = append(body, mapTableLength...)

	implID := NewEntityID("*UDF LV Info").Marshal()
	body = append(body, implID[:]...)
	body = append(body, make([]byte, 128)...) // implementation use

	integrity := l.IntegritySequenceExtent.Marshal()
	body = append(body, integrity[:]...)

	if len(body) < 440 {
		body = append(body, make([]byte, 440-len(body))...)
	}

	tag := BuildTag(consts.UDF_TAG_LOGICAL_VOLUME_DESCRIPTOR, 0, location, body)
	tagBytes := tag.Marshal()
	copy(out[0:TagSize], tagBytes[:])
	copy(out[TagSize:], body)
	return out
}

func (l *LogicalVolumeDescriptor) Unmarshal(data [consts.UDF_SECTOR_SIZE]byte) error {
	var tagBytes [TagSize]byte
	copy(tagBytes[:], data[:TagSize])
	if err := l.Tag.Unmarshal(tagBytes); err != nil {
		return err
	}
	if l.Tag.Identifier != consts.UDF_TAG_LOGICAL_VOLUME_DESCRIPTOR {
		return errs.Malformedf(0, 0, "udf tag %d is not a logical volume descriptor", l.Tag.Identifier)
	}
	body := data[TagSize:]
	l.VolumeDescriptorSequenceNumber = binary.LittleEndian.Uint32(body[0:4])
	volID, err := decodeCS0(body[68:196])
	if err != nil {
		return err
	}
	l.LogicalVolumeIdentifier = volID
	l.LogicalBlockSize = binary.LittleEndian.Uint32(body[196:200])
	l.DomainIdentifier = unmarshalEntityID(body[200:232])
	l.LogicalVolumeContentsUse = unmarshalLongAD(body[232:248])
	l.IntegritySequenceExtent = unmarshalExtentAD(body[416:424])
	return nil
}

// UnallocatedSpaceDescriptor (ECMA-167 3/10.8) describes unallocated
// extents in the volume; this module writes it with zero entries.
type UnallocatedSpaceDescriptor struct {
	Tag
	VolumeDescriptorSequenceNumber uint32
}

func (u *UnallocatedSpaceDescriptor) Marshal(location uint32) [consts.UDF_SECTOR_SIZE]byte {
	var out [consts.UDF_SECTOR_SIZE]byte
	body := make([]byte, 8)
	binary.LittleEndian.PutUint32(body[0:4], u.VolumeDescriptorSequenceNumber)
	tag := BuildTag(consts.UDF_TAG_UNALLOCATED_SPACE_DESCRIPTOR, 0, location, body)
	tagBytes := tag.Marshal()
	copy(out[0:TagSize], tagBytes[:])
	copy(out[TagSize:], body)
	return out
}

// TerminatingDescriptor (ECMA-167 3/10.9) closes a volume descriptor
// sequence.
type TerminatingDescriptor struct {
	Tag
}

func (t *TerminatingDescriptor) Marshal(location uint32) [consts.UDF_SECTOR_SIZE]byte {
	var out [consts.UDF_SECTOR_SIZE]byte
	tag := BuildTag(consts.UDF_TAG_TERMINATING_DESCRIPTOR, 0, location, nil)
	tagBytes := tag.Marshal()
	copy(out[0:TagSize], tagBytes[:])
	return out
}

func (t *TerminatingDescriptor) Unmarshal(data [consts.UDF_SECTOR_SIZE]byte) error {
	var tagBytes [TagSize]byte
	copy(tagBytes[:], data[:TagSize])
	if err := t.Tag.Unmarshal(tagBytes); err != nil {
		return err
	}
	if t.Tag.Identifier != consts.UDF_TAG_TERMINATING_DESCRIPTOR {
		return errs.Malformedf(0, 0, "udf tag %d is not a terminating descriptor", t.Tag.Identifier)
	}
	return nil
}

// LogicalVolumeIntegrityDescriptor (ECMA-167 3/10.10) records whether the
// logical volume was closed cleanly and tracks free-space/unique-id
// counters.
type LogicalVolumeIntegrityDescriptor struct {
	Tag
	RecordingDateAndTime     time.Time
	IntegrityType            uint32
	NextIntegrityExtent      ExtentAD
	LogicalVolumeContentsUse uint64 // unique id counter
	NumberOfPartitions       uint32
	FreeSpaceTable           []uint32
	SizeTable                []uint32
}

const (
	IntegrityOpen   = 0
	IntegrityClosed = 1
)

func (i *LogicalVolumeIntegrityDescriptor) Marshal(location uint32) [consts.UDF_SECTOR_SIZE]byte {
	var out [consts.UDF_SECTOR_SIZE]byte
	body := make([]byte, 0, 80)

	rec := MarshalTimestamp(i.RecordingDateAndTime)
	body = append(body, rec[:]...)

	head := make([]byte, 4)
	binary.LittleEndian.PutUint32(head, i.IntegrityType)
	body = append(body, head...)

	next := i.NextIntegrityExtent.Marshal()
	body = append(body, next[:]...)

	logicalVolumeContentsUse := make([]byte, 32)
	binary.LittleEndian.PutUint64(logicalVolumeContentsUse[0:8], i.LogicalVolumeContentsUse)
	body = append(body, logicalVolumeContentsUse...)

	counts := make([]byte, 8)
	binary.LittleEndian.PutUint32(counts[0:4], uint32(len(i.FreeSpaceTable)))
	binary.LittleEndian.PutUint32(counts[4:8], i.NumberOfPartitions)
	body = append(body, counts...)

	for _, v := range i.FreeSpaceTable {
		f := make([]byte, 4)
		binary.LittleEndian.PutUint32(f, v)
		body = append(body, f...)
	}
	for _, v := range i.SizeTable {
		s := make([]byte, 4)
		binary.LittleEndian.PutUint32(s, v)
		body = append(body, s...)
	}

	tag := BuildTag(consts.UDF_TAG_LOGICAL_VOLUME_INTEGRITY_DESC, 0, location, body)
	tagBytes := tag.Marshal()
	copy(out[0:TagSize], tagBytes[:])
	copy(out[TagSize:], body)
	return out
}
