package encoding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBothByteOrders32RoundTrip(t *testing.T) {
	data := MarshalBothByteOrders32(0x12345678)
	got, err := UnmarshalUint32LSBMSB(data)
	require.NoError(t, err)
	require.Equal(t, uint32(0x12345678), got)
}

func TestBothByteOrders32Mismatch(t *testing.T) {
	data := MarshalBothByteOrders32(1)
	data[4] ^= 0xFF
	_, err := UnmarshalUint32LSBMSB(data)
	require.Error(t, err)
}

func TestBothByteOrders16RoundTrip(t *testing.T) {
	data := MarshalBothByteOrders16(0x1234)
	got, err := UnmarshalUint16LSBMSB(data)
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), got)
}

func TestDateTimeUnspecifiedRoundTrip(t *testing.T) {
	var zeros [17]byte
	for i := 0; i < 16; i++ {
		zeros[i] = '0'
	}

	tm, err := UnmarshalDateTime(zeros)
	require.NoError(t, err)
	require.True(t, tm.IsZero())

	reBytes, err := MarshalDateTime(tm)
	require.NoError(t, err)
	require.Equal(t, zeros, reBytes)
}

func TestDateTimeRoundTrip(t *testing.T) {
	want := time.Date(2023, 6, 1, 12, 0, 0, 500_000_000, time.UTC)
	data, err := MarshalDateTime(want)
	require.NoError(t, err)

	got, err := UnmarshalDateTime(data)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestRecordingDateTimeUnspecifiedRoundTrip(t *testing.T) {
	var zeros [7]byte
	tm, err := UnmarshalRecordingDateTime(zeros)
	require.NoError(t, err)
	require.True(t, tm.IsZero())

	reBytes, err := MarshalRecordingDateTime(tm)
	require.NoError(t, err)
	require.Equal(t, zeros, reBytes)
}

func TestRecordingDateTimeRoundTrip(t *testing.T) {
	want := time.Date(2024, 3, 15, 8, 30, 45, 0, time.UTC)
	data, err := MarshalRecordingDateTime(want)
	require.NoError(t, err)

	got, err := UnmarshalRecordingDateTime(data)
	require.NoError(t, err)
	require.True(t, want.Equal(got))
}

func TestUCS2RoundTrip(t *testing.T) {
	want := "hello, world"
	encoded, err := EncodeUCS2BigEndian(want)
	require.NoError(t, err)
	require.Equal(t, want, DecodeUCS2BigEndian(encoded))
}

func TestUCS2RejectsNonBMP(t *testing.T) {
	_, err := EncodeUCS2BigEndian("\U0001F600") // emoji, outside the BMP
	require.Error(t, err)
}

func TestCS0RoundTripEightBit(t *testing.T) {
	want := "REPORT.TXT"
	encoded := EncodeCS0(want)
	require.Equal(t, byte(8), encoded[0])

	got, err := DecodeCS0(encoded)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestCS0RoundTripSixteenBit(t *testing.T) {
	want := "日本語.txt"
	encoded := EncodeCS0(want)
	require.Equal(t, byte(16), encoded[0])

	got, err := DecodeCS0(encoded)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
