package susp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseRoundTripSimple(t *testing.T) {
	entries := &Entries{List: []*Entry{EncodeSP(), EncodeER("RRIP_1991A", "THE ROCK RIDGE INTERCHANGE PROTOCOL", "PLEASE CONTACT...", 1)}}
	var raw []byte
	for _, e := range entries.List {
		b, err := e.Marshal()
		require.NoError(t, err)
		raw = append(raw, b...)
	}
	raw = append(raw, func() []byte { b, _ := EncodeST().Marshal(); return b }()...)

	parsed, err := Parse(raw, nil)
	require.NoError(t, err)
	require.Len(t, parsed.List, 2)
	require.Equal(t, TagSP, parsed.List[0].Tag)
	require.Equal(t, TagER, parsed.List[1].Tag)
}

func TestCEContinuationChain(t *testing.T) {
	inner := &Entry{Tag: TagPX, Version: 1, Data: make([]byte, 32)}
	innerBytes, err := inner.Marshal()
	require.NoError(t, err)

	ce := EncodeCE(100, 0, uint32(len(innerBytes)))
	ceBytes, err := ce.Marshal()
	require.NoError(t, err)

	read := func(extent, offset, length uint32) ([]byte, error) {
		require.EqualValues(t, 100, extent)
		require.EqualValues(t, 0, offset)
		return innerBytes, nil
	}

	parsed, err := Parse(ceBytes, read)
	require.NoError(t, err)
	require.Len(t, parsed.List, 2)
	require.Equal(t, TagCE, parsed.List[0].Tag)
	require.Equal(t, TagPX, parsed.List[1].Tag)
}

func TestRockRidgePXRoundTrip(t *testing.T) {
	mode := uint32(0o100644)
	uid := uint32(1000)
	gid := uint32(1000)
	nlink := uint32(1)
	rr := &RockRidge{Mode: &mode, UID: &uid, GID: &gid, Nlink: &nlink}

	entries, err := BuildEntries(rr)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, TagPX, entries[0].Tag)

	got, err := DecodeRockRidge(&Entries{List: entries})
	require.NoError(t, err)
	require.Equal(t, mode, *got.Mode)
	require.Equal(t, uid, *got.UID)
	require.Equal(t, gid, *got.GID)
}

func TestRockRidgeNameSplitAndRejoin(t *testing.T) {
	longName := make([]byte, 400)
	for i := range longName {
		longName[i] = byte('a' + i%26)
	}
	rr := &RockRidge{Name: string(longName)}

	entries, err := BuildEntries(rr)
	require.NoError(t, err)
	require.Greater(t, len(entries), 1, "name should require multiple NM entries")

	got, err := DecodeRockRidge(&Entries{List: entries})
	require.NoError(t, err)
	require.Equal(t, string(longName), got.Name)
}

func TestRockRidgeSymlinkRoundTrip(t *testing.T) {
	rr := &RockRidge{Symlink: "/usr/local/bin"}
	entries, err := BuildEntries(rr)
	require.NoError(t, err)

	got, err := DecodeRockRidge(&Entries{List: entries})
	require.NoError(t, err)
	require.Equal(t, "/usr/local/bin", got.Symlink)
}

func TestRockRidgeSymlinkWithDotDot(t *testing.T) {
	rr := &RockRidge{Symlink: "../sibling/target"}
	entries, err := BuildEntries(rr)
	require.NoError(t, err)

	got, err := DecodeRockRidge(&Entries{List: entries})
	require.NoError(t, err)
	require.Equal(t, "../sibling/target", got.Symlink)
}

func TestRockRidgeTimestampsRoundTrip(t *testing.T) {
	mtime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	rr := &RockRidge{Modify: &mtime}
	entries, err := BuildEntries(rr)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got, err := DecodeRockRidge(&Entries{List: entries})
	require.NoError(t, err)
	require.NotNil(t, got.Modify)
	require.True(t, mtime.Equal(*got.Modify))
}

func TestRockRidgeRelocation(t *testing.T) {
	rr := &RockRidge{Relocated: true}
	entries, err := BuildEntries(rr)
	require.NoError(t, err)

	got, err := DecodeRockRidge(&Entries{List: entries})
	require.NoError(t, err)
	require.True(t, got.Relocated)
}

func TestPackFitsWithoutContinuation(t *testing.T) {
	mode := uint32(0o755)
	rr := &RockRidge{Mode: &mode, Name: "small.txt"}
	entries, err := BuildEntries(rr)
	require.NoError(t, err)

	result, err := Pack(entries, 200, 2048)
	require.NoError(t, err)
	require.Empty(t, result.Continuation)
	require.NotEmpty(t, result.Inline)
}

func TestPackSpillsToContinuation(t *testing.T) {
	longName := make([]byte, 600)
	for i := range longName {
		longName[i] = byte('a' + i%26)
	}
	rr := &RockRidge{Name: string(longName)}
	entries, err := BuildEntries(rr)
	require.NoError(t, err)

	result, err := Pack(entries, 32, 2048)
	require.NoError(t, err)
	require.NotEmpty(t, result.Continuation)

	err = result.Relocate(-1, 500, 0, uint32(len(result.Continuation[0])))
	require.NoError(t, err)

	read := func(extent, offset, length uint32) ([]byte, error) {
		require.EqualValues(t, 500, extent)
		return result.Continuation[0], nil
	}
	parsed, err := Parse(result.Inline, read)
	require.NoError(t, err)
	require.NotEmpty(t, parsed.List)
}
