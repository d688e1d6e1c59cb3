package udf

import (
	"encoding/binary"

	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/encoding"
	"github.com/voliso/voliso/pkg/errs"
)

// FileIdentifierDescriptor (ECMA-167 4/14.4) names one entry of a
// directory: its characteristics bits, the ICB of the entry, and its
// CS0-encoded name. Padded to a multiple of 4 bytes on disk.
type FileIdentifierDescriptor struct {
	Tag
	FileVersionNumber   uint16
	FileCharacteristics byte
	ICB                 LongAD
	ImplementationUse   []byte
	FileIdentifier      string
}

const fileIDFixedSize = 4 + 16 // version+characteristics+idlen (4), then ICB(16); impllen(2) follows

func (f *FileIdentifierDescriptor) Marshal(location uint32) []byte {
	nameBytes := encoding.EncodeCS0(f.FileIdentifier)
	if f.FileIdentifier == "" {
		nameBytes = nil
	}

	body := make([]byte, 0, fileIDFixedSize+len(f.ImplementationUse)+len(nameBytes)+4)
	head := make([]byte, 4)
	binary.LittleEndian.PutUint16(head[0:2], f.FileVersionNumber)
	head[2] = f.FileCharacteristics
	head[3] = byte(len(nameBytes))
	body = append(body, head...)

	icb := f.ICB.Marshal()
	body = append(body, icb[:]...)

	implLen := make([]byte, 2)
	binary.LittleEndian.PutUint16(implLen, uint16(len(f.ImplementationUse)))
	body = append(body, implLen...)

	body = append(body, f.ImplementationUse...)
	body = append(body, nameBytes...)

	for len(body)%4 != 0 {
		body = append(body, 0)
	}

	tag := BuildTag(consts.UDF_TAG_FILE_IDENTIFIER_DESCRIPTOR, 0, location, body)
	tagBytes := tag.Marshal()
	out := make([]byte, 0, TagSize+len(body))
	out = append(out, tagBytes[:]...)
	out = append(out, body...)
	return out
}

// Unmarshal decodes a File Identifier Descriptor from data, returning
// its total on-disk length (including 4-byte padding) so the caller can
// advance to the next descriptor in the directory stream.
func (f *FileIdentifierDescriptor) Unmarshal(data []byte) (int, error) {
	if len(data) < TagSize+fileIDFixedSize+2 {
		return 0, errs.Malformedf(0, 0, "udf file identifier descriptor truncated")
	}
	var tagBytes [TagSize]byte
	copy(tagBytes[:], data[:TagSize])
	if err := f.Tag.Unmarshal(tagBytes); err != nil {
		return 0, err
	}
	if f.Tag.Identifier != consts.UDF_TAG_FILE_IDENTIFIER_DESCRIPTOR {
		return 0, errs.Malformedf(0, 0, "udf tag %d is not a file identifier descriptor", f.Tag.Identifier)
	}

	body := data[TagSize:]
	f.FileVersionNumber = binary.LittleEndian.Uint16(body[0:2])
	f.FileCharacteristics = body[2]
	idLen := int(body[3])
	f.ICB = unmarshalLongAD(body[4:20])
	implLen := int(binary.LittleEndian.Uint16(body[20:22]))

	pos := 22
	if pos+implLen+idLen > len(body) {
		return 0, errs.Malformedf(0, 0, "udf file identifier descriptor name/implementation-use lengths exceed record")
	}
	f.ImplementationUse = append([]byte(nil), body[pos:pos+implLen]...)
	pos += implLen

	if idLen == 0 {
		f.FileIdentifier = ""
	} else {
		name, err := encoding.DecodeCS0(body[pos : pos+idLen])
		if err != nil {
			return 0, err
		}
		f.FileIdentifier = name
	}
	pos += idLen

	for pos%4 != 0 {
		pos++
	}
	return TagSize + pos, nil
}

// IsParent reports whether this entry is the ".." parent-directory
// pseudo-entry (UDF_FID_CHAR_PARENT).
func (f *FileIdentifierDescriptor) IsParent() bool {
	return f.FileCharacteristics&consts.UDF_FID_CHAR_PARENT != 0
}

// IsDirectory reports whether the named entry is itself a directory.
func (f *FileIdentifierDescriptor) IsDirectory() bool {
	return f.FileCharacteristics&consts.UDF_FID_CHAR_DIRECTORY != 0
}

// IsDeleted reports whether the entry is a tombstone for a deleted file.
func (f *FileIdentifierDescriptor) IsDeleted() bool {
	return f.FileCharacteristics&consts.UDF_FID_CHAR_DELETED != 0
}

// IsHidden reports whether the entry's hidden bit is set.
func (f *FileIdentifierDescriptor) IsHidden() bool {
	return f.FileCharacteristics&consts.UDF_FID_CHAR_HIDDEN != 0
}
