// Package encoding implements the fixed-width byte codec shared by every
// ISO9660, Joliet, and UDF structure: both-endian integers, the two
// on-disk date formats, and UCS-2BE/CS0 string transcoding.
package encoding

import (
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/errs"
)

// MarshalBothByteOrders32 encodes val as 4 little-endian bytes followed by
// 4 big-endian bytes, per ECMA-119 7.3.3.
func MarshalBothByteOrders32(val uint32) [8]byte {
	var data [8]byte
	binary.LittleEndian.PutUint32(data[0:4], val)
	binary.BigEndian.PutUint32(data[4:8], val)
	return data
}

// UnmarshalUint32LSBMSB decodes a both-byte-order uint32, returning a
// malformed-iso error if the two halves disagree.
func UnmarshalUint32LSBMSB(data [8]byte) (uint32, error) {
	little := binary.LittleEndian.Uint32(data[0:4])
	big := binary.BigEndian.Uint32(data[4:8])
	if little != big {
		return 0, errs.Malformedf(0, 0, "both-endian mismatch: LE=%d BE=%d", little, big)
	}
	return little, nil
}

// MarshalBothByteOrders16 encodes val as 2 little-endian bytes followed by
// 2 big-endian bytes, per ECMA-119 7.2.3.
func MarshalBothByteOrders16(val uint16) [4]byte {
	var data [4]byte
	binary.LittleEndian.PutUint16(data[0:2], val)
	binary.BigEndian.PutUint16(data[2:4], val)
	return data
}

// UnmarshalUint16LSBMSB decodes a both-byte-order uint16, returning a
// malformed-iso error if the two halves disagree.
func UnmarshalUint16LSBMSB(data [4]byte) (uint16, error) {
	little := binary.LittleEndian.Uint16(data[0:2])
	big := binary.BigEndian.Uint16(data[2:4])
	if little != big {
		return 0, errs.Malformedf(0, 0, "both-endian mismatch: LE=%d BE=%d", little, big)
	}
	return little, nil
}

// MarshalDateTime encodes a time.Time into the 17-byte volume descriptor
// date format (ECMA-119 8.4.26.1): 16 ASCII digits YYYYMMDDhhmmsscc
// followed by a signed GMT offset in 15-minute units. The zero time
// round-trips as the "unspecified" all-'0' form.
func MarshalDateTime(t time.Time) ([17]byte, error) {
	var out [17]byte
	if t.IsZero() {
		for i := 0; i < 16; i++ {
			out[i] = '0'
		}
		out[16] = 0
		return out, nil
	}

	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	hundredths := t.Nanosecond() / 10_000_000
	s := fmt.Sprintf("%04d%02d%02d%02d%02d%02d%02d", y, int(m), d, hh, mm, ss, hundredths)
	copy(out[:16], s)

	_, offsetSec := t.Zone()
	offset15 := int8(offsetSec / 900)
	if offset15 < -48 || offset15 > 52 {
		return [17]byte{}, errs.InvalidInputf("gmt offset %d out of ISO9660 bounds", offset15)
	}
	out[16] = byte(offset15)
	return out, nil
}

// UnmarshalDateTime is the inverse of MarshalDateTime.
func UnmarshalDateTime(b [17]byte) (time.Time, error) {
	isUnspecified := true
	for i := 0; i < 16; i++ {
		if b[i] != '0' {
			isUnspecified = false
			break
		}
	}
	if isUnspecified && b[16] == 0 {
		return time.Time{}, nil
	}

	var year, mon, day, hour, minute, second, hundredths int
	if _, err := fmt.Sscanf(string(b[:16]), "%4d%2d%2d%2d%2d%2d%2d",
		&year, &mon, &day, &hour, &minute, &second, &hundredths); err != nil {
		return time.Time{}, errs.MalformedWrap(0, 0, err, "failed to parse volume descriptor date/time")
	}
	nsec := hundredths * 10_000_000

	offset15 := int8(b[16])
	offsetSec := int(offset15) * 900
	loc := time.UTC
	if offsetSec != 0 {
		loc = time.FixedZone("", offsetSec)
	}
	return time.Date(year, time.Month(mon), day, hour, minute, second, nsec, loc), nil
}

// MarshalRecordingDateTime encodes a time.Time into the 7-byte directory
// record date format (ECMA-119 9.1.5). The zero time round-trips as the
// all-zero "unspecified" field.
func MarshalRecordingDateTime(t time.Time) ([7]byte, error) {
	var b [7]byte
	if t.IsZero() {
		return b, nil
	}
	year, month, day := t.Date()
	hour, minute, second := t.Clock()

	if year < 1900 || year > 2155 {
		return b, errs.InvalidInputf("year %d out of range for recording date/time", year)
	}
	b[0] = byte(year - 1900)
	b[1] = byte(month)
	b[2] = byte(day)
	b[3] = byte(hour)
	b[4] = byte(minute)
	b[5] = byte(second)

	_, offsetSec := t.Zone()
	offset15 := int8(offsetSec / 900)
	if offset15 < -48 || offset15 > 52 {
		return b, errs.InvalidInputf("gmt offset %d out of ISO9660 bounds", offset15)
	}
	b[6] = byte(offset15)
	return b, nil
}

// UnmarshalRecordingDateTime is the inverse of MarshalRecordingDateTime. An
// all-zero field is the documented "unspecified" value and round-trips as
// the zero time.
func UnmarshalRecordingDateTime(b [7]byte) (time.Time, error) {
	allZero := true
	for _, v := range b {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return time.Time{}, nil
	}

	year := int(b[0]) + 1900
	month := time.Month(b[1])
	day := int(b[2])
	hour := int(b[3])
	minute := int(b[4])
	second := int(b[5])
	offsetSec := int(int8(b[6])) * 900

	loc := time.FixedZone("ISO9660", offsetSec)
	return time.Date(year, month, day, hour, minute, second, 0, loc), nil
}

// DecodeUCS2BigEndian decodes a UCS-2BE byte string into a Go string.
func DecodeUCS2BigEndian(ucs2 []byte) string {
	if len(ucs2)%2 != 0 {
		return ""
	}
	units := make([]uint16, len(ucs2)/2)
	for i := range units {
		units[i] = uint16(ucs2[2*i])<<8 | uint16(ucs2[2*i+1])
	}
	return string(utf16.Decode(units))
}

// EncodeUCS2BigEndian encodes a Go string as UCS-2BE. Joliet names may
// only contain Basic Multilingual Plane code points; any code point that
// would require a UTF-16 surrogate pair is rejected with a format error
// rather than silently encoded as a surrogate pair.
func EncodeUCS2BigEndian(s string) ([]byte, error) {
	runes := []rune(s)
	out := make([]byte, 0, 2*len(runes))
	for _, r := range runes {
		if r > 0xFFFF {
			return nil, errs.InvalidInputf("rune %U exceeds the Basic Multilingual Plane; Joliet names must be BMP-only", r)
		}
		unit := uint16(r)
		out = append(out, byte(unit>>8), byte(unit&0xFF))
	}
	return out, nil
}

// EncodeCS0 encodes a string using the UDF "compressed unicode" (CS0)
// format of ECMA-167 1/7.2.12: a leading compression-id byte (8 = Latin-1
// subset, one byte per code unit; 16 = UCS-2BE, two bytes per code unit)
// followed by the encoded characters. 8-bit compression is used whenever
// every rune fits in a byte.
func EncodeCS0(s string) []byte {
	runes := []rune(s)
	eightBit := true
	for _, r := range runes {
		if r > 0xFF {
			eightBit = false
			break
		}
	}
	if eightBit {
		out := make([]byte, 1+len(runes))
		out[0] = consts.UDF_CS0_COMPRESSION_8
		for i, r := range runes {
			out[1+i] = byte(r)
		}
		return out
	}
	out := make([]byte, 1+2*len(runes))
	out[0] = consts.UDF_CS0_COMPRESSION_16
	for i, r := range runes {
		binary.BigEndian.PutUint16(out[1+2*i:], uint16(r))
	}
	return out
}

// DecodeCS0 decodes a CS0-encoded byte string.
func DecodeCS0(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	switch b[0] {
	case consts.UDF_CS0_COMPRESSION_8:
		return string(b[1:]), nil
	case consts.UDF_CS0_COMPRESSION_16:
		payload := b[1:]
		if len(payload)%2 != 0 {
			return "", errs.Malformedf(0, 0, "CS0 16-bit payload has odd length %d", len(payload))
		}
		units := make([]uint16, len(payload)/2)
		for i := range units {
			units[i] = binary.BigEndian.Uint16(payload[2*i:])
		}
		return string(utf16.Decode(units)), nil
	default:
		return "", errs.Malformedf(0, 0, "unsupported CS0 compression id 0x%02x", b[0])
	}
}
