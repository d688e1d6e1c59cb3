package descriptor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/voliso/voliso/pkg/directory"
)

func sampleRoot() *directory.Record {
	return &directory.Record{
		FileFlags:            directory.FileFlags{Directory: true},
		LocationOfExtent:     20,
		DataLength:           2048,
		RecordingDateAndTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		FileIdentifier:       "\x00",
	}
}

func TestPrimaryRoundTrip(t *testing.T) {
	p := NewPrimary()
	p.SystemIdentifier = "LINUX"
	p.VolumeIdentifier = "MY_VOLUME"
	p.VolumeSpaceSize = 1000
	p.LogicalBlockSize = 2048
	p.VolumeSetSize = 1
	p.VolumeSequenceNumber = 1
	p.RootDirectoryRecord = sampleRoot()
	p.VolumeCreationDateAndTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	data, err := p.Marshal()
	require.NoError(t, err)

	var got Primary
	require.NoError(t, got.Unmarshal(data))
	require.Equal(t, "LINUX", got.SystemIdentifier)
	require.Equal(t, "MY_VOLUME", got.VolumeIdentifier)
	require.Equal(t, uint32(1000), got.VolumeSpaceSize)
	require.Equal(t, uint16(2048), got.LogicalBlockSize)
}

func TestSupplementaryRoundTripUCS2(t *testing.T) {
	s := NewSupplementary()
	s.SystemIdentifier = "LINUX"
	s.VolumeIdentifier = "日本語ボリューム"
	s.RootDirectoryRecord = sampleRoot()

	data, err := s.Marshal()
	require.NoError(t, err)

	var got Supplementary
	require.NoError(t, got.Unmarshal(data))
	require.Equal(t, "日本語ボリューム", got.VolumeIdentifier)
	require.Equal(t, [32]byte(s.EscapeSequences), got.EscapeSequences)
}

func TestBootRecordRoundTrip(t *testing.T) {
	b := NewElToritoBootRecord(19)
	data, err := b.Marshal()
	require.NoError(t, err)

	var got BootRecord
	require.NoError(t, got.Unmarshal(data))
	require.Equal(t, "EL TORITO SPECIFICATION", got.BootSystemIdentifier)
	require.EqualValues(t, 19, got.BootCatalogPointer)
}

func TestPartitionRoundTrip(t *testing.T) {
	p := &Partition{
		Header:                    Header{Type: TypePartition, Identifier: "CD001", Version: 1},
		SystemIdentifier:          "LINUX",
		VolumePartitionIdentifier: "PART1",
		VolumePartitionLocation:   100,
		VolumePartitionSize:       50,
	}
	data, err := p.Marshal()
	require.NoError(t, err)

	var got Partition
	require.NoError(t, got.Unmarshal(data))
	require.Equal(t, "PART1", got.VolumePartitionIdentifier)
	require.EqualValues(t, 100, got.VolumePartitionLocation)
}

func TestTerminatorRoundTrip(t *testing.T) {
	term := NewTerminator()
	data, err := term.Marshal()
	require.NoError(t, err)

	var got Terminator
	require.NoError(t, got.Unmarshal(data))
	require.Equal(t, TypeTerminator, got.Header.Type)
}

func TestPeekType(t *testing.T) {
	term := NewTerminator()
	data, err := term.Marshal()
	require.NoError(t, err)
	require.Equal(t, TypeTerminator, PeekType(data))
}
