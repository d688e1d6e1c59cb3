package udf

import (
	"encoding/binary"
	"time"

	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/errs"
)

// ICBTag (ECMA-167 4/14.6) precedes every File Entry / Extended File
// Entry and names the file's type and ICB strategy.
type ICBTag struct {
	PriorRecordedNumberOfDirectEntries uint32
	StrategyType                       uint16
	NumEntries                         uint16
	FileType                           byte
	ParentICBLocation                  LBAddr
	Flags                              uint16
}

const icbTagSize = 20

func (t ICBTag) Marshal() [icbTagSize]byte {
	var out [icbTagSize]byte
	binary.LittleEndian.PutUint32(out[0:4], t.PriorRecordedNumberOfDirectEntries)
	binary.LittleEndian.PutUint16(out[4:6], t.StrategyType)
	binary.LittleEndian.PutUint16(out[6:8], 0) // strategy parameter
	binary.LittleEndian.PutUint16(out[8:10], t.NumEntries)
	out[10] = 0 // reserved
	out[11] = t.FileType
	loc := t.ParentICBLocation.Marshal()
	copy(out[12:18], loc[:])
	binary.LittleEndian.PutUint16(out[18:20], t.Flags)
	return out
}

func unmarshalICBTag(data []byte) ICBTag {
	return ICBTag{
		PriorRecordedNumberOfDirectEntries: binary.LittleEndian.Uint32(data[0:4]),
		StrategyType:                       binary.LittleEndian.Uint16(data[4:6]),
		NumEntries:                         binary.LittleEndian.Uint16(data[8:10]),
		FileType:                           data[11],
		ParentICBLocation:                  unmarshalLBAddr(data[12:18]),
		Flags:                              binary.LittleEndian.Uint16(data[18:20]),
	}
}

// FileEntry (ECMA-167 4/14.9) describes one file or directory: its
// permissions, size, timestamps and allocation descriptors.
type FileEntry struct {
	Tag
	ICBTag
	UID, GID                     uint32
	Permissions                  uint32
	FileLinkCount                uint16
	RecordFormat                 byte
	InformationLength            uint64
	LogicalBlocksRecorded        uint64
	AccessTime, ModificationTime time.Time
	AttributeTime                time.Time
	Checkpoint                   uint32
	ExtendedAttributeICB         LongAD
	ImplementationIdentifier     EntityID
	UniqueID                     uint64
	ExtendedAttributes           []byte
	AllocationDescriptors        []LongAD
}

func (f *FileEntry) Marshal(location uint32) ([]byte, error) {
	body := make([]byte, 0, 176)

	icb := f.ICBTag.Marshal()
	body = append(body, icb[:]...)

	ids := make([]byte, 8)
	binary.LittleEndian.PutUint32(ids[0:4], f.UID)
	binary.LittleEndian.PutUint32(ids[4:8], f.GID)
	body = append(body, ids...)

	perm := make([]byte, 4)
	binary.LittleEndian.PutUint32(perm, f.Permissions)
	body = append(body, perm...)

	links := make([]byte, 4)
	binary.LittleEndian.PutUint16(links[0:2], f.FileLinkCount)
	links[2] = f.RecordFormat
	links[3] = 0 // record display attributes
	body = append(body, links...)

	recLen := make([]byte, 4)
	body = append(body, recLen...) // record length: 0, no fixed-length records

	lengths := make([]byte, 16)
	binary.LittleEndian.PutUint64(lengths[0:8], f.InformationLength)
	binary.LittleEndian.PutUint64(lengths[8:16], f.LogicalBlocksRecorded)
	body = append(body, lengths...)

	access := MarshalTimestamp(f.AccessTime)
	body = append(body, access[:]...)
	modify := MarshalTimestamp(f.ModificationTime)
	body = append(body, modify[:]...)
	attr := MarshalTimestamp(f.AttributeTime)
	body = append(body, attr[:]...)

	checkpoint := make([]byte, 4)
	binary.LittleEndian.PutUint32(checkpoint, f.Checkpoint)
	body = append(body, checkpoint...)

	eaICB := f.ExtendedAttributeICB.Marshal()
	body = append(body, eaICB[:]...)

	implID := f.ImplementationIdentifier.Marshal()
	body = append(body, implID[:]...)

	unique := make([]byte, 8)
	binary.LittleEndian.PutUint64(unique, f.UniqueID)
	body = append(body, unique...)

	eaLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(eaLen, uint32(len(f.ExtendedAttributes)))
	body = append(body, eaLen...)

	adLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(adLen, uint32(len(f.AllocationDescriptors)*16))
	body = append(body, adLen...)

	body = append(body, f.ExtendedAttributes...)
	for _, ad := range f.AllocationDescriptors {
		b := ad.Marshal()
		body = append(body, b[:]...)
	}

	tag := BuildTag(consts.UDF_TAG_FILE_ENTRY, 0, location, body)
	tagBytes := tag.Marshal()
	out := make([]byte, 0, TagSize+len(body))
	out = append(out, tagBytes[:]...)
	out = append(out, body...)
	return out, nil
}

const fileEntryFixedBodySize = icbTagSize + 8 + 4 + 4 + 4 + 16 + 3*timestampSize + 4 + 16 + 32 + 8 + 4 + 4

func (f *FileEntry) Unmarshal(data []byte) error {
	if len(data) < TagSize+fileEntryFixedBodySize {
		return errs.Malformedf(0, 0, "udf file entry truncated")
	}
	var tagBytes [TagSize]byte
	copy(tagBytes[:], data[:TagSize])
	if err := f.Tag.Unmarshal(tagBytes); err != nil {
		return err
	}
	if f.Tag.Identifier != consts.UDF_TAG_FILE_ENTRY {
		return errs.Malformedf(0, 0, "udf tag %d is not a file entry", f.Tag.Identifier)
	}
	body := data[TagSize:]
	f.ICBTag = unmarshalICBTag(body[0:icbTagSize])
	pos := icbTagSize

	f.UID = binary.LittleEndian.Uint32(body[pos : pos+4])
	f.GID = binary.LittleEndian.Uint32(body[pos+4 : pos+8])
	pos += 8
	f.Permissions = binary.LittleEndian.Uint32(body[pos : pos+4])
	pos += 4
	f.FileLinkCount = binary.LittleEndian.Uint16(body[pos : pos+2])
	f.RecordFormat = body[pos+2]
	pos += 4
	pos += 4 // record length
	f.InformationLength = binary.LittleEndian.Uint64(body[pos : pos+8])
	f.LogicalBlocksRecorded = binary.LittleEndian.Uint64(body[pos+8 : pos+16])
	pos += 16

	var accessBytes [timestampSize]byte
	copy(accessBytes[:], body[pos:pos+timestampSize])
	access, err := UnmarshalTimestamp(accessBytes)
	if err != nil {
		return err
	}
	f.AccessTime = access
	pos += timestampSize

	var modifyBytes [timestampSize]byte
	copy(modifyBytes[:], body[pos:pos+timestampSize])
	modify, err := UnmarshalTimestamp(modifyBytes)
	if err != nil {
		return err
	}
	f.ModificationTime = modify
	pos += timestampSize

	var attrBytes [timestampSize]byte
	copy(attrBytes[:], body[pos:pos+timestampSize])
	attr, err := UnmarshalTimestamp(attrBytes)
	if err != nil {
		return err
	}
	f.AttributeTime = attr
	pos += timestampSize

	f.Checkpoint = binary.LittleEndian.Uint32(body[pos : pos+4])
	pos += 4

	f.ExtendedAttributeICB = unmarshalLongAD(body[pos : pos+16])
	pos += 16

	f.ImplementationIdentifier = unmarshalEntityID(body[pos : pos+32])
	pos += 32

	f.UniqueID = binary.LittleEndian.Uint64(body[pos : pos+8])
	pos += 8

	eaLen := binary.LittleEndian.Uint32(body[pos : pos+4])
	pos += 4
	adLen := binary.LittleEndian.Uint32(body[pos : pos+4])
	pos += 4

	if pos+int(eaLen)+int(adLen) > len(body) {
		return errs.Malformedf(0, 0, "udf file entry extended attribute/allocation descriptor lengths exceed record")
	}
	f.ExtendedAttributes = append([]byte(nil), body[pos:pos+int(eaLen)]...)
	pos += int(eaLen)

	adCount := int(adLen) / 16
	f.AllocationDescriptors = make([]LongAD, 0, adCount)
	for i := 0; i < adCount; i++ {
		f.AllocationDescriptors = append(f.AllocationDescriptors, unmarshalLongAD(body[pos:pos+16]))
		pos += 16
	}
	return nil
}

// ExtendedFileEntry (ECMA-167 4/14.17, introduced for UDF 2.00+) widens
// FileEntry with a creation timestamp and a 64-bit object size, and is
// what this module always writes for new files.
type ExtendedFileEntry struct {
	Tag
	ICBTag
	UID, GID                                   uint32
	Permissions                                uint32
	FileLinkCount                              uint16
	RecordFormat                               byte
	InformationLength                          uint64
	ObjectSize                                 uint64
	LogicalBlocksRecorded                      uint64
	AccessTime, ModificationTime, CreationTime time.Time
	AttributeTime                              time.Time
	Checkpoint                                 uint32
	ExtendedAttributeICB                       LongAD
	StreamDirectoryICB                         LongAD
	ImplementationIdentifier                   EntityID
	UniqueID                                   uint64
	ExtendedAttributes                         []byte
	AllocationDescriptors                      []LongAD
}

func (f *ExtendedFileEntry) Marshal(location uint32) ([]byte, error) {
	body := make([]byte, 0, 216)

	icb := f.ICBTag.Marshal()
	body = append(body, icb[:]...)

	ids := make([]byte, 8)
	binary.LittleEndian.PutUint32(ids[0:4], f.UID)
	binary.LittleEndian.PutUint32(ids[4:8], f.GID)
	body = append(body, ids...)

	perm := make([]byte, 4)
	binary.LittleEndian.PutUint32(perm, f.Permissions)
	body = append(body, perm...)

	links := make([]byte, 4)
	binary.LittleEndian.PutUint16(links[0:2], f.FileLinkCount)
	links[2] = f.RecordFormat
	body = append(body, links...)

	body = append(body, make([]byte, 4)...) // record length

	lengths := make([]byte, 24)
	binary.LittleEndian.PutUint64(lengths[0:8], f.InformationLength)
	binary.LittleEndian.PutUint64(lengths[8:16], f.ObjectSize)
	binary.LittleEndian.PutUint64(lengths[16:24], f.LogicalBlocksRecorded)
	body = append(body, lengths...)

	for _, ts := range []time.Time{f.AccessTime, f.ModificationTime, f.CreationTime, f.AttributeTime} {
		b := MarshalTimestamp(ts)
		body = append(body, b[:]...)
	}

	checkpoint := make([]byte, 8) // checkpoint + reserved
	binary.LittleEndian.PutUint32(checkpoint[0:4], f.Checkpoint)
	body = append(body, checkpoint...)

	eaICB := f.ExtendedAttributeICB.Marshal()
	body = append(body, eaICB[:]...)
	streamICB := f.StreamDirectoryICB.Marshal()
	body = append(body, streamICB[:]...)

	implID := f.ImplementationIdentifier.Marshal()
	body = append(body, implID[:]...)

	unique := make([]byte, 8)
	binary.LittleEndian.PutUint64(unique, f.UniqueID)
	body = append(body, unique...)

	eaLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(eaLen, uint32(len(f.ExtendedAttributes)))
	body = append(body, eaLen...)

	adLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(adLen, uint32(len(f.AllocationDescriptors)*16))
	body = append(body, adLen...)

	body = append(body, f.ExtendedAttributes...)
	for _, ad := range f.AllocationDescriptors {
		b := ad.Marshal()
		body = append(body, b[:]...)
	}

	tag := BuildTag(consts.UDF_TAG_EXTENDED_FILE_ENTRY, 0, location, body)
	tagBytes := tag.Marshal()
	out := make([]byte, 0, TagSize+len(body))
	out = append(out, tagBytes[:]...)
	out = append(out, body...)
	return out, nil
}

const extendedFileEntryFixedBodySize = icbTagSize + 8 + 4 + 4 + 4 + 24 + 4*timestampSize + 8 + 16 + 16 + 32 + 8 + 4 + 4

// Unmarshal decodes an Extended File Entry, mirroring Marshal's field
// order exactly.
func (f *ExtendedFileEntry) Unmarshal(data []byte) error {
	if len(data) < TagSize+extendedFileEntryFixedBodySize {
		return errs.Malformedf(0, 0, "udf extended file entry truncated")
	}
	var tagBytes [TagSize]byte
	copy(tagBytes[:], data[:TagSize])
	if err := f.Tag.Unmarshal(tagBytes); err != nil {
		return err
	}
	if f.Tag.Identifier != consts.UDF_TAG_EXTENDED_FILE_ENTRY {
		return errs.Malformedf(0, 0, "udf tag %d is not an extended file entry", f.Tag.Identifier)
	}
	body := data[TagSize:]
	f.ICBTag = unmarshalICBTag(body[0:icbTagSize])
	pos := icbTagSize

	f.UID = binary.LittleEndian.Uint32(body[pos : pos+4])
	f.GID = binary.LittleEndian.Uint32(body[pos+4 : pos+8])
	pos += 8
	f.Permissions = binary.LittleEndian.Uint32(body[pos : pos+4])
	pos += 4
	f.FileLinkCount = binary.LittleEndian.Uint16(body[pos : pos+2])
	f.RecordFormat = body[pos+2]
	pos += 4
	pos += 4 // record length

	f.InformationLength = binary.LittleEndian.Uint64(body[pos : pos+8])
	f.ObjectSize = binary.LittleEndian.Uint64(body[pos+8 : pos+16])
	f.LogicalBlocksRecorded = binary.LittleEndian.Uint64(body[pos+16 : pos+24])
	pos += 24

	readTimestamp := func() (time.Time, error) {
		var b [timestampSize]byte
		copy(b[:], body[pos:pos+timestampSize])
		t, err := UnmarshalTimestamp(b)
		pos += timestampSize
		return t, err
	}
	var err error
	if f.AccessTime, err = readTimestamp(); err != nil {
		return err
	}
	if f.ModificationTime, err = readTimestamp(); err != nil {
		return err
	}
	if f.CreationTime, err = readTimestamp(); err != nil {
		return err
	}
	if f.AttributeTime, err = readTimestamp(); err != nil {
		return err
	}

	f.Checkpoint = binary.LittleEndian.Uint32(body[pos : pos+4])
	pos += 8 // checkpoint + reserved

	f.ExtendedAttributeICB = unmarshalLongAD(body[pos : pos+16])
	pos += 16
	f.StreamDirectoryICB = unmarshalLongAD(body[pos : pos+16])
	pos += 16

	f.ImplementationIdentifier = unmarshalEntityID(body[pos : pos+32])
	pos += 32

	f.UniqueID = binary.LittleEndian.Uint64(body[pos : pos+8])
	pos += 8

	eaLen := binary.LittleEndian.Uint32(body[pos : pos+4])
	pos += 4
	adLen := binary.LittleEndian.Uint32(body[pos : pos+4])
	pos += 4

	if pos+int(eaLen)+int(adLen) > len(body) {
		return errs.Malformedf(0, 0, "udf extended file entry extended attribute/allocation descriptor lengths exceed record")
	}
	f.ExtendedAttributes = append([]byte(nil), body[pos:pos+int(eaLen)]...)
	pos += int(eaLen)

	adCount := int(adLen) / 16
	f.AllocationDescriptors = make([]LongAD, 0, adCount)
	for i := 0; i < adCount; i++ {
		f.AllocationDescriptors = append(f.AllocationDescriptors, unmarshalLongAD(body[pos:pos+16]))
		pos += 16
	}
	return nil
}
