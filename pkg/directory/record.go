// Package directory implements the ISO9660/Joliet directory record
// (component C2): a variable-length, self-delimited structure with a
// fixed header, a name field, and a trailing system-use area that SUSP
// (package susp) parses independently.
package directory

import (
	"time"

	"github.com/voliso/voliso/pkg/encoding"
	"github.com/voliso/voliso/pkg/errs"
)

// Record is one on-disk directory record (ECMA-119 9.1). SystemUse holds
// the raw trailing bytes; callers that care about Rock Ridge/SUSP decode
// it with package susp.
type Record struct {
	LengthOfDirectoryRecord       uint8     `json:"length_of_directory_record"`
	ExtendedAttributeRecordLength uint8     `json:"extended_attribute_record_length"`
	LocationOfExtent              uint32    `json:"location_of_extent"`
	DataLength                    uint32    `json:"data_length"`
	RecordingDateAndTime          time.Time `json:"recording_date_and_time"`
	FileFlags                     FileFlags `json:"file_flags"`
	FileUnitSize                  uint8     `json:"file_unit_size"`
	InterleaveGapSize             uint8     `json:"interleave_gap_size"`
	VolumeSequenceNumber          uint16    `json:"volume_sequence_number"`
	LengthOfFileIdentifier        uint8     `json:"length_of_file_identifier"`
	FileIdentifier                string    `json:"file_identifier"`
	SystemUse                     []byte    `json:"system_use"`

	// Joliet marks this record as belonging to a Supplementary Volume
	// Descriptor tree, so FileIdentifier is decoded/encoded as UCS-2BE
	// (except the single-byte "." and ".." special identifiers).
	Joliet bool `json:"joliet"`
}

// IsSpecial reports whether this is the "." or ".." record.
func (r *Record) IsSpecial() bool {
	return r.FileIdentifier == "\x00" || r.FileIdentifier == "\x01"
}

// Marshal serializes the record, computing LengthOfDirectoryRecord and the
// optional name-padding byte. It returns invalid-input if the resulting
// record would exceed the 255-byte maximum ECMA-119 allows.
func (r *Record) Marshal() ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, 0) // length placeholder
	buf = append(buf, r.ExtendedAttributeRecordLength)

	loc := encoding.MarshalBothByteOrders32(r.LocationOfExtent)
	buf = append(buf, loc[:]...)

	dl := encoding.MarshalBothByteOrders32(r.DataLength)
	buf = append(buf, dl[:]...)

	recTime, err := encoding.MarshalRecordingDateTime(r.RecordingDateAndTime)
	if err != nil {
		return nil, err
	}
	buf = append(buf, recTime[:]...)

	buf = append(buf, r.FileFlags.Marshal())
	buf = append(buf, r.FileUnitSize)
	buf = append(buf, r.InterleaveGapSize)

	vsn := encoding.MarshalBothByteOrders16(r.VolumeSequenceNumber)
	buf = append(buf, vsn[:]...)

	var idBytes []byte
	if r.Joliet && !r.IsSpecial() {
		idBytes, err = encoding.EncodeUCS2BigEndian(r.FileIdentifier)
		if err != nil {
			return nil, err
		}
	} else {
		idBytes = []byte(r.FileIdentifier)
	}
	if len(idBytes) > 222 {
		return nil, errs.InvalidInputf("file identifier %q is too long for a directory record", r.FileIdentifier)
	}
	fiLen := uint8(len(idBytes))
	buf = append(buf, fiLen)
	buf = append(buf, idBytes...)
	if fiLen%2 == 0 {
		buf = append(buf, 0x00)
	}

	buf = append(buf, r.SystemUse...)

	if len(buf) > 255 {
		return nil, errs.InvalidInputf("directory record for %q is %d bytes, exceeds the 255-byte maximum", r.FileIdentifier, len(buf))
	}
	buf[0] = uint8(len(buf))
	r.LengthOfDirectoryRecord = buf[0]
	r.LengthOfFileIdentifier = fiLen
	return buf, nil
}

// Unmarshal decodes a Record from data, which must hold at least
// LengthOfDirectoryRecord bytes. block/offset are used only to annotate
// malformed-iso errors.
func (r *Record) Unmarshal(data []byte, block, offset int64) error {
	if len(data) < 1 {
		return errs.Malformedf(block, offset, "directory record buffer is empty")
	}
	recordLength := data[0]
	r.LengthOfDirectoryRecord = recordLength
	if recordLength == 0 {
		return errs.Malformedf(block, offset, "directory record length is zero")
	}
	if len(data) < int(recordLength) {
		return errs.Malformedf(block, offset, "directory record declares length %d but only %d bytes remain in the block", recordLength, len(data))
	}

	pos := 1
	r.ExtendedAttributeRecordLength = data[pos]
	pos++

	if pos+8 > int(recordLength) {
		return errs.Malformedf(block, offset, "directory record truncated before location-of-extent")
	}
	var locBytes [8]byte
	copy(locBytes[:], data[pos:pos+8])
	loc, err := encoding.UnmarshalUint32LSBMSB(locBytes)
	if err != nil {
		return errs.MalformedWrap(block, offset, err, "location-of-extent")
	}
	r.LocationOfExtent = loc
	pos += 8

	if pos+8 > int(recordLength) {
		return errs.Malformedf(block, offset, "directory record truncated before data-length")
	}
	var dlBytes [8]byte
	copy(dlBytes[:], data[pos:pos+8])
	dl, err := encoding.UnmarshalUint32LSBMSB(dlBytes)
	if err != nil {
		return errs.MalformedWrap(block, offset, err, "data-length")
	}
	r.DataLength = dl
	pos += 8

	if pos+7 > int(recordLength) {
		return errs.Malformedf(block, offset, "directory record truncated before recording date/time")
	}
	var recTime [7]byte
	copy(recTime[:], data[pos:pos+7])
	rt, err := encoding.UnmarshalRecordingDateTime(recTime)
	if err != nil {
		return errs.MalformedWrap(block, offset, err, "recording date/time")
	}
	r.RecordingDateAndTime = rt
	pos += 7

	if pos+1 > int(recordLength) {
		return errs.Malformedf(block, offset, "directory record truncated before file flags")
	}
	ff, err := UnmarshalFileFlags(data[pos])
	if err != nil {
		return err
	}
	r.FileFlags = ff
	pos++

	if pos+2 > int(recordLength) {
		return errs.Malformedf(block, offset, "directory record truncated before file-unit/interleave fields")
	}
	r.FileUnitSize = data[pos]
	r.InterleaveGapSize = data[pos+1]
	pos += 2

	if pos+4 > int(recordLength) {
		return errs.Malformedf(block, offset, "directory record truncated before volume sequence number")
	}
	var vsnBytes [4]byte
	copy(vsnBytes[:], data[pos:pos+4])
	vsn, err := encoding.UnmarshalUint16LSBMSB(vsnBytes)
	if err != nil {
		return errs.MalformedWrap(block, offset, err, "volume sequence number")
	}
	r.VolumeSequenceNumber = vsn
	pos += 4

	if pos+1 > int(recordLength) {
		return errs.Malformedf(block, offset, "directory record truncated before file identifier length")
	}
	fiLen := int(data[pos])
	r.LengthOfFileIdentifier = uint8(fiLen)
	pos++

	if pos+fiLen > int(recordLength) {
		return errs.Malformedf(block, offset, "directory record truncated within file identifier")
	}
	idBytes := data[pos : pos+fiLen]
	if r.Joliet && fiLen > 1 {
		r.FileIdentifier = encoding.DecodeUCS2BigEndian(idBytes)
	} else {
		r.FileIdentifier = string(idBytes)
	}
	pos += fiLen

	if fiLen%2 == 0 {
		if pos+1 > int(recordLength) {
			return errs.Malformedf(block, offset, "directory record missing name padding byte")
		}
		pos++
	}

	if pos < int(recordLength) {
		r.SystemUse = make([]byte, int(recordLength)-pos)
		copy(r.SystemUse, data[pos:recordLength])
	} else {
		r.SystemUse = nil
	}

	return nil
}
