package udf

import (
	"encoding/binary"
	"time"

	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/errs"
)

// FileSetDescriptor (ECMA-167 4/14.1) is the entry point into a UDF
// file system: it names the root directory's ICB.
type FileSetDescriptor struct {
	Tag
	RecordingDateAndTime     time.Time
	InterchangeLevel         uint16
	MaximumInterchangeLevel  uint16
	CharacterSetList         uint32
	MaximumCharacterSetList  uint32
	FileSetNumber            uint32
	FileSetDescriptorNumber  uint32
	LogicalVolumeIdentifier  string
	FileSetIdentifier        string
	CopyrightFileIdentifier  string
	AbstractFileIdentifier   string
	RootDirectoryICB         LongAD
	DomainIdentifier         EntityID
	NextExtent               LongAD
	SystemStreamDirectoryICB LongAD
}

func (fs *FileSetDescriptor) Marshal(location uint32) []byte {
	body := make([]byte, 0, fileSetDescriptorBodySize)

	rec := MarshalTimestamp(fs.RecordingDateAndTime)
	body = append(body, rec[:]...)

	levels := make([]byte, 16)
	binary.LittleEndian.PutUint16(levels[0:2], fs.InterchangeLevel)
	binary.LittleEndian.PutUint16(levels[2:4], fs.MaximumInterchangeLevel)
	binary.LittleEndian.PutUint32(levels[4:8], fs.CharacterSetList)
	binary.LittleEndian.PutUint32(levels[8:12], fs.MaximumCharacterSetList)
	binary.LittleEndian.PutUint32(levels[12:16], fs.FileSetNumber)
	body = append(body, levels...)

	fsNum := make([]byte, 4)
	binary.LittleEndian.PutUint32(fsNum, fs.FileSetDescriptorNumber)
	body = append(body, fsNum...)

	lviCS := CS0CharSpec.Marshal()
	body = append(body, lviCS[:]...)
	body = append(body, padCS0(fs.LogicalVolumeIdentifier, 128)...)

	fsCS := CS0CharSpec.Marshal()
	body = append(body, fsCS[:]...)
	body = append(body, padCS0(fs.FileSetIdentifier, 32)...)
	body = append(body, padCS0(fs.CopyrightFileIdentifier, 32)...)
	body = append(body, padCS0(fs.AbstractFileIdentifier, 32)...)

	rootICB := fs.RootDirectoryICB.Marshal()
	body = append(body, rootICB[:]...)

	domainID := fs.DomainIdentifier.Marshal()
	body = append(body, domainID[:]...)

	nextExtent := fs.NextExtent.Marshal()
	body = append(body, nextExtent[:]...)

	systemStream := fs.SystemStreamDirectoryICB.Marshal()
	body = append(body, systemStream[:]...)

	body = append(body, make([]byte, 32)...) // reserved

	tag := BuildTag(consts.UDF_TAG_FILE_SET_DESCRIPTOR, 0, location, body)
	tagBytes := tag.Marshal()
	out := make([]byte, 0, TagSize+len(body))
	out = append(out, tagBytes[:]...)
	out = append(out, body...)
	return out
}

const fileSetDescriptorBodySize = 496

func (fs *FileSetDescriptor) Unmarshal(data []byte) error {
	if len(data) < TagSize+fileSetDescriptorBodySize {
		return errs.Malformedf(0, 0, "udf file set descriptor truncated")
	}
	var tagBytes [TagSize]byte
	copy(tagBytes[:], data[:TagSize])
	if err := fs.Tag.Unmarshal(tagBytes); err != nil {
		return err
	}
	if fs.Tag.Identifier != consts.UDF_TAG_FILE_SET_DESCRIPTOR {
		return errs.Malformedf(0, 0, "udf tag %d is not a file set descriptor", fs.Tag.Identifier)
	}
	body := data[TagSize:]

	var recBytes [timestampSize]byte
	copy(recBytes[:], body[0:timestampSize])
	rec, err := UnmarshalTimestamp(recBytes)
	if err != nil {
		return err
	}
	fs.RecordingDateAndTime = rec

	fs.InterchangeLevel = binary.LittleEndian.Uint16(body[12:14])
	fs.MaximumInterchangeLevel = binary.LittleEndian.Uint16(body[14:16])
	fs.CharacterSetList = binary.LittleEndian.Uint32(body[16:20])
	fs.MaximumCharacterSetList = binary.LittleEndian.Uint32(body[20:24])
	fs.FileSetNumber = binary.LittleEndian.Uint32(body[24:28])
	fs.FileSetDescriptorNumber = binary.LittleEndian.Uint32(body[28:32])

	lvi, err := decodeCS0(body[96:224])
	if err != nil {
		return err
	}
	fs.LogicalVolumeIdentifier = lvi

	fsID, err := decodeCS0(body[288:320])
	if err != nil {
		return err
	}
	fs.FileSetIdentifier = fsID

	copyright, err := decodeCS0(body[320:352])
	if err != nil {
		return err
	}
	fs.CopyrightFileIdentifier = copyright

	abstract, err := decodeCS0(body[352:384])
	if err != nil {
		return err
	}
	fs.AbstractFileIdentifier = abstract

	fs.RootDirectoryICB = unmarshalLongAD(body[384:400])
	fs.DomainIdentifier = unmarshalEntityID(body[400:432])
	fs.NextExtent = unmarshalLongAD(body[432:448])
	fs.SystemStreamDirectoryICB = unmarshalLongAD(body[448:464])
	return nil
}
