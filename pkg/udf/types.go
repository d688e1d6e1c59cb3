package udf

import (
	"encoding/binary"
	"time"

	"github.com/voliso/voliso/pkg/encoding"
	"github.com/voliso/voliso/pkg/errs"
)

// padCS0 encodes s as CS0 and pads/truncates it to exactly n bytes, the
// way dstring fields (ECMA-167 1/7.2.13) are stored: content followed by
// zero padding, with the final byte reserved for the content length.
func padCS0(s string, n int) []byte {
	enc := encoding.EncodeCS0(s)
	out := make([]byte, n)
	length := len(enc)
	if length > n-1 {
		length = n - 1
	}
	copy(out, enc[:length])
	out[n-1] = byte(length)
	return out
}

// decodeCS0 decodes a dstring field written by padCS0.
func decodeCS0(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	length := int(b[len(b)-1])
	if length > len(b)-1 {
		length = len(b) - 1
	}
	if length == 0 {
		return "", nil
	}
	return encoding.DecodeCS0(b[:length])
}

// ExtentAD is an extent descriptor: length and starting block of a
// contiguous run (ECMA-167 3/7.1).
type ExtentAD struct {
	Length   uint32
	Location uint32
}

func (e ExtentAD) Marshal() [8]byte {
	var out [8]byte
	binary.LittleEndian.PutUint32(out[0:4], e.Length)
	binary.LittleEndian.PutUint32(out[4:8], e.Location)
	return out
}

func unmarshalExtentAD(data []byte) ExtentAD {
	return ExtentAD{
		Length:   binary.LittleEndian.Uint32(data[0:4]),
		Location: binary.LittleEndian.Uint32(data[4:8]),
	}
}

// LBAddr is a logical block address: a block number plus the partition
// it is relative to (ECMA-167 4/7.1).
type LBAddr struct {
	LogicalBlockNumber       uint32
	PartitionReferenceNumber uint16
}

func (a LBAddr) Marshal() [6]byte {
	var out [6]byte
	binary.LittleEndian.PutUint32(out[0:4], a.LogicalBlockNumber)
	binary.LittleEndian.PutUint16(out[4:6], a.PartitionReferenceNumber)
	return out
}

func unmarshalLBAddr(data []byte) LBAddr {
	return LBAddr{
		LogicalBlockNumber:       binary.LittleEndian.Uint32(data[0:4]),
		PartitionReferenceNumber: binary.LittleEndian.Uint16(data[4:6]),
	}
}

// ShortAD is a short allocation descriptor: an extent relative to the
// containing ICB's own partition (ECMA-167 4/14.14.1).
type ShortAD struct {
	ExtentLength   uint32
	ExtentPosition uint32
}

func (a ShortAD) Marshal() [8]byte {
	var out [8]byte
	binary.LittleEndian.PutUint32(out[0:4], a.ExtentLength)
	binary.LittleEndian.PutUint32(out[4:8], a.ExtentPosition)
	return out
}

func unmarshalShortAD(data []byte) ShortAD {
	return ShortAD{
		ExtentLength:   binary.LittleEndian.Uint32(data[0:4]),
		ExtentPosition: binary.LittleEndian.Uint32(data[4:8]),
	}
}

// LongAD is a long allocation descriptor: an extent named by a full
// LBAddr, used whenever the extent can live in a different partition than
// its ICB (ECMA-167 4/14.14.2).
type LongAD struct {
	ExtentLength      uint32
	ExtentLocation    LBAddr
	ImplementationUse [6]byte
}

func (a LongAD) Marshal() [16]byte {
	var out [16]byte
	binary.LittleEndian.PutUint32(out[0:4], a.ExtentLength)
	loc := a.ExtentLocation.Marshal()
	copy(out[4:10], loc[:])
	copy(out[10:16], a.ImplementationUse[:])
	return out
}

func unmarshalLongAD(data []byte) LongAD {
	return LongAD{
		ExtentLength:   binary.LittleEndian.Uint32(data[0:4]),
		ExtentLocation: unmarshalLBAddr(data[4:10]),
	}
}

// CharSpec names the character set used by a dstring field (ECMA-167
// 1/7.2.1). This module only ever writes CS0 (CharacterSetType 0).
type CharSpec struct {
	CharacterSetType byte
	CharacterSetInfo [63]byte
}

func (c CharSpec) Marshal() [64]byte {
	var out [64]byte
	out[0] = c.CharacterSetType
	copy(out[1:64], c.CharacterSetInfo[:])
	return out
}

// CS0CharSpec is the fixed CharSpec value every CS0-encoded field in
// this module is written against.
var CS0CharSpec = CharSpec{
	CharacterSetType: 0,
	CharacterSetInfo: func() [63]byte {
		var b [63]byte
		copy(b[:], "OSTA Compressed Unicode")
		return b
	}(),
}

// EntityID identifies the implementation or standard responsible for a
// structure (ECMA-167 1/7.4), also known as a "regid".
type EntityID struct {
	Flags            byte
	Identifier       [23]byte
	IdentifierSuffix [8]byte
}

func NewEntityID(identifier string) EntityID {
	var e EntityID
	copy(e.Identifier[:], identifier)
	return e
}

func (e EntityID) Marshal() [32]byte {
	var out [32]byte
	out[0] = e.Flags
	copy(out[1:24], e.Identifier[:])
	copy(out[24:32], e.IdentifierSuffix[:])
	return out
}

func unmarshalEntityID(data []byte) EntityID {
	var e EntityID
	e.Flags = data[0]
	copy(e.Identifier[:], data[1:24])
	copy(e.IdentifierSuffix[:], data[24:32])
	return e
}

// Timestamp is the UDF on-disk timestamp (ECMA-167 1/7.3): a distinct,
// finer-grained format from the ISO9660 recording date/time.
type Timestamp struct {
	TypeAndTimezone        uint16
	Year                   int16
	Month, Day             uint8
	Hour, Minute, Second   uint8
	Centiseconds           uint8
	HundredsOfMicroseconds uint8
	Microseconds           uint8
}

const timestampSize = 12

func MarshalTimestamp(t time.Time) [timestampSize]byte {
	var out [timestampSize]byte
	binary.LittleEndian.PutUint16(out[0:2], 1<<12) // type 1: local time, offset 0
	binary.LittleEndian.PutUint16(out[2:4], uint16(int16(t.Year())))
	out[4] = uint8(t.Month())
	out[5] = uint8(t.Day())
	out[6] = uint8(t.Hour())
	out[7] = uint8(t.Minute())
	out[8] = uint8(t.Second())
	centi := t.Nanosecond() / 10_000_000
	out[9] = uint8(centi)
	return out
}

func UnmarshalTimestamp(data [timestampSize]byte) (time.Time, error) {
	year := int16(binary.LittleEndian.Uint16(data[2:4]))
	month := data[4]
	day := data[5]
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, errs.Malformedf(0, 0, "udf timestamp has invalid month/day %d/%d", month, day)
	}
	nanos := int(data[9]) * 10_000_000
	return time.Date(int(year), time.Month(month), int(day),
		int(data[6]), int(data[7]), int(data[8]), nanos, time.UTC), nil
}
