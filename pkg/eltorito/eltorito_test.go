package eltorito

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalogRoundTripInitialOnly(t *testing.T) {
	c := &Catalog{
		Initial: &Entry{
			Bootable:    true,
			Platform:    PlatformBIOS,
			Emulation:   NoEmulation,
			SectorCount: 4,
			Location:    25,
		},
	}

	data, err := c.Marshal()
	require.NoError(t, err)

	var got Catalog
	require.NoError(t, got.Unmarshal(data))
	require.True(t, got.Initial.Bootable)
	require.Equal(t, NoEmulation, got.Initial.Emulation)
	require.EqualValues(t, 4, got.Initial.SectorCount)
	require.EqualValues(t, 25, got.Initial.Location)
	require.Empty(t, got.Sections)
}

func TestCatalogRoundTripWithSections(t *testing.T) {
	c := &Catalog{
		Initial: &Entry{
			Bootable:    true,
			Platform:    PlatformBIOS,
			Emulation:   NoEmulation,
			SectorCount: 4,
			Location:    25,
		},
		Sections: []*Section{
			{
				Platform: PlatformEFI,
				Entries: []*Entry{
					{Bootable: true, Platform: PlatformEFI, Emulation: NoEmulation, SectorCount: 8, Location: 40},
					{Bootable: true, Platform: PlatformEFI, Emulation: NoEmulation, SectorCount: 8, Location: 48,
						Selection: &SelectionCriteria{Type: 1, Data: [19]byte{0x01, 0x02}}},
				},
			},
		},
	}

	data, err := c.Marshal()
	require.NoError(t, err)

	var got Catalog
	require.NoError(t, got.Unmarshal(data))
	require.Len(t, got.Sections, 1)
	require.Equal(t, PlatformEFI, got.Sections[0].Platform)
	require.Len(t, got.Sections[0].Entries, 2)
	require.EqualValues(t, 40, got.Sections[0].Entries[0].Location)
	require.Nil(t, got.Sections[0].Entries[0].Selection)
	require.NotNil(t, got.Sections[0].Entries[1].Selection)
	require.Equal(t, byte(1), got.Sections[0].Entries[1].Selection.Type)
}

func TestCatalogRejectsMissingInitialEntry(t *testing.T) {
	c := &Catalog{}
	_, err := c.Marshal()
	require.Error(t, err)
}

func TestCatalogRejectsBadChecksum(t *testing.T) {
	c := &Catalog{Initial: &Entry{Platform: PlatformBIOS}}
	data, err := c.Marshal()
	require.NoError(t, err)
	data[2] ^= 0xFF

	var got Catalog
	require.Error(t, got.Unmarshal(data))
}

func TestPlatformAndEmulationStrings(t *testing.T) {
	require.Equal(t, "EFI", PlatformEFI.String())
	require.Equal(t, "Unknown", Platform(0x77).String())
	require.Equal(t, "1.44MFloppy", Floppy144Emulation.String())
	require.Equal(t, "Unknown", Emulation(0x77).String())
}
