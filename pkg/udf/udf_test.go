package udf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/voliso/voliso/pkg/consts"
)

func TestTagRoundTrip(t *testing.T) {
	tag := BuildTag(consts.UDF_TAG_FILE_SET_DESCRIPTOR, 1, 42, []byte("payload"))
	data := tag.Marshal()

	var got Tag
	require.NoError(t, got.Unmarshal(data))
	require.Equal(t, tag.Identifier, got.Identifier)
	require.Equal(t, tag.CRC, got.CRC)
	require.EqualValues(t, 42, got.TagLocation)
}

func TestTagRejectsBadChecksum(t *testing.T) {
	tag := BuildTag(consts.UDF_TAG_FILE_SET_DESCRIPTOR, 1, 42, []byte("payload"))
	data := tag.Marshal()
	data[0] ^= 0xFF

	var got Tag
	require.Error(t, got.Unmarshal(data))
}

func TestAnchorVolumeDescriptorPointerRoundTrip(t *testing.T) {
	a := AnchorVolumeDescriptorPointer{
		MainVolumeDescriptorSequenceExtent:    ExtentAD{Length: 32768, Location: 257},
		ReserveVolumeDescriptorSequenceExtent: ExtentAD{Length: 32768, Location: 273},
	}
	data := a.Marshal()

	var got AnchorVolumeDescriptorPointer
	require.NoError(t, got.Unmarshal(data))
	require.EqualValues(t, 257, got.MainVolumeDescriptorSequenceExtent.Location)
	require.EqualValues(t, 273, got.ReserveVolumeDescriptorSequenceExtent.Location)
}

func TestPrimaryVolumeDescriptorRoundTrip(t *testing.T) {
	p := PrimaryVolumeDescriptor{
		VolumeIdentifier:          "MY_VOLUME",
		VolumeSetIdentifier:       "MY_VOLUME_SET",
		RecordingDateAndTime:      time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		ImplementationIdentifier:  NewEntityID("*voliso"),
	}
	data, err := p.Marshal(257)
	require.NoError(t, err)

	var got PrimaryVolumeDescriptor
	require.NoError(t, got.Unmarshal(data))
	require.Equal(t, "MY_VOLUME", got.VolumeIdentifier)
	require.Equal(t, "MY_VOLUME_SET", got.VolumeSetIdentifier)
	require.Equal(t, 2024, got.RecordingDateAndTime.Year())
}

func TestPartitionDescriptorRoundTrip(t *testing.T) {
	p := PartitionDescriptor{
		PartitionNumber:           0,
		PartitionContents:         NewEntityID("+NSR02"),
		AccessType:                1,
		PartitionStartingLocation: 300,
		PartitionLength:           10000,
	}
	data := p.Marshal(258)

	var got PartitionDescriptor
	require.NoError(t, got.Unmarshal(data))
	require.EqualValues(t, 300, got.PartitionStartingLocation)
	require.EqualValues(t, 10000, got.PartitionLength)
}

func TestLogicalVolumeDescriptorRoundTrip(t *testing.T) {
	l := LogicalVolumeDescriptor{
		LogicalVolumeIdentifier: "MY_VOLUME",
		LogicalBlockSize:        consts.UDF_SECTOR_SIZE,
		DomainIdentifier:        NewDomainIdentifier(),
		LogicalVolumeContentsUse: LongAD{
			ExtentLength:   consts.UDF_SECTOR_SIZE,
			ExtentLocation: LBAddr{LogicalBlockNumber: 0, PartitionReferenceNumber: 0},
		},
		IntegritySequenceExtent: ExtentAD{Length: consts.UDF_SECTOR_SIZE, Location: 301},
	}
	data := l.Marshal(259)

	var got LogicalVolumeDescriptor
	require.NoError(t, got.Unmarshal(data))
	require.Equal(t, "MY_VOLUME", got.LogicalVolumeIdentifier)
	require.EqualValues(t, consts.UDF_SECTOR_SIZE, got.LogicalBlockSize)
}

func TestTerminatingDescriptorRoundTrip(t *testing.T) {
	var term TerminatingDescriptor
	data := term.Marshal(260)

	var got TerminatingDescriptor
	require.NoError(t, got.Unmarshal(data))
	require.EqualValues(t, consts.UDF_TAG_TERMINATING_DESCRIPTOR, got.Identifier)
}

func TestFileSetDescriptorRoundTrip(t *testing.T) {
	fs := FileSetDescriptor{
		RecordingDateAndTime:    time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		LogicalVolumeIdentifier: "MY_VOLUME",
		FileSetIdentifier:       "",
		DomainIdentifier:        NewDomainIdentifier(),
		RootDirectoryICB: LongAD{
			ExtentLength:   consts.UDF_SECTOR_SIZE,
			ExtentLocation: LBAddr{LogicalBlockNumber: 303, PartitionReferenceNumber: 0},
		},
	}
	data := fs.Marshal(302)

	var got FileSetDescriptor
	require.NoError(t, got.Unmarshal(data))
	require.Equal(t, "MY_VOLUME", got.LogicalVolumeIdentifier)
	require.EqualValues(t, 303, got.RootDirectoryICB.ExtentLocation.LogicalBlockNumber)
}

func TestFileIdentifierDescriptorRoundTrip(t *testing.T) {
	fid := FileIdentifierDescriptor{
		FileCharacteristics: consts.UDF_FID_CHAR_DIRECTORY,
		ICB: LongAD{
			ExtentLength:   consts.UDF_SECTOR_SIZE,
			ExtentLocation: LBAddr{LogicalBlockNumber: 310},
		},
		FileIdentifier: "subdir",
	}
	data := fid.Marshal(304)

	var got FileIdentifierDescriptor
	consumed, err := got.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, len(data), consumed)
	require.Equal(t, "subdir", got.FileIdentifier)
	require.True(t, got.IsDirectory())
	require.False(t, got.IsParent())
}

func TestFileIdentifierDescriptorParentEntry(t *testing.T) {
	fid := FileIdentifierDescriptor{
		FileCharacteristics: consts.UDF_FID_CHAR_DIRECTORY | consts.UDF_FID_CHAR_PARENT,
		ICB: LongAD{
			ExtentLocation: LBAddr{LogicalBlockNumber: 257},
		},
	}
	data := fid.Marshal(305)

	var got FileIdentifierDescriptor
	_, err := got.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, "", got.FileIdentifier)
	require.True(t, got.IsParent())
}

func TestFileEntryRoundTrip(t *testing.T) {
	fe := FileEntry{
		ICBTag: ICBTag{
			FileType: consts.UDF_ICB_FILE_TYPE_FILE,
		},
		UID:                1000,
		GID:                1000,
		Permissions:        0644,
		FileLinkCount:      1,
		InformationLength:  4096,
		AccessTime:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ModificationTime:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		AttributeTime:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ImplementationIdentifier: NewEntityID("*voliso"),
		AllocationDescriptors: []LongAD{
			{ExtentLength: 4096, ExtentLocation: LBAddr{LogicalBlockNumber: 500}},
		},
	}
	data, err := fe.Marshal(400)
	require.NoError(t, err)

	var got FileEntry
	require.NoError(t, got.Unmarshal(data))
	require.EqualValues(t, 4096, got.InformationLength)
	require.Len(t, got.AllocationDescriptors, 1)
	require.EqualValues(t, 500, got.AllocationDescriptors[0].ExtentLocation.LogicalBlockNumber)
}

func TestExtendedFileEntryMarshal(t *testing.T) {
	efe := ExtendedFileEntry{
		ICBTag: ICBTag{
			FileType: consts.UDF_ICB_FILE_TYPE_FILE,
		},
		InformationLength: 8192,
		ObjectSize:        8192,
		CreationTime:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	data, err := efe.Marshal(401)
	require.NoError(t, err)
	require.Greater(t, len(data), TagSize)
}

func TestVolumeMainSequenceRoundTrip(t *testing.T) {
	v := &Volume{
		Primary: PrimaryVolumeDescriptor{
			VolumeIdentifier:         "MY_VOLUME",
			ImplementationIdentifier: NewEntityID("*voliso"),
		},
		Partition: PartitionDescriptor{
			PartitionContents:         NewEntityID("+NSR02"),
			PartitionStartingLocation: 300,
			PartitionLength:           1000,
		},
		LogicalVolume: LogicalVolumeDescriptor{
			LogicalVolumeIdentifier: "MY_VOLUME",
			LogicalBlockSize:        consts.UDF_SECTOR_SIZE,
			DomainIdentifier:        NewDomainIdentifier(),
		},
	}

	sectors, err := v.MainSequenceSectors(257)
	require.NoError(t, err)
	require.Len(t, sectors, 5)

	var parsed Volume
	require.NoError(t, parsed.ParseMainSequence(sectors))
	require.Equal(t, "MY_VOLUME", parsed.Primary.VolumeIdentifier)
	require.EqualValues(t, 300, parsed.Partition.PartitionStartingLocation)
}

func TestComputeCRC16Nonzero(t *testing.T) {
	require.NotZero(t, ComputeCRC16([]byte("hello udf")))
	require.Equal(t, uint16(0), ComputeCRC16(nil))
}
