// Package eltorito builds and parses the El Torito boot catalog: a single
// 2048-byte extent of fixed 32-byte records pointed to by a Boot Record
// Volume Descriptor's BootCatalogPointer.
package eltorito

import (
	"encoding/binary"

	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/errs"
)

// Platform identifies the target booting system for a boot entry or
// section header.
type Platform byte

const (
	PlatformBIOS Platform = 0x00
	PlatformPPC  Platform = 0x01
	PlatformMac  Platform = 0x02
	PlatformEFI  Platform = 0xef
)

func (p Platform) String() string {
	switch p {
	case PlatformBIOS:
		return "BIOS"
	case PlatformPPC:
		return "PowerPC"
	case PlatformMac:
		return "Macintosh"
	case PlatformEFI:
		return "EFI"
	default:
		return "Unknown"
	}
}

// Emulation is the floppy/hard-disk emulation mode of a boot entry.
type Emulation byte

const (
	NoEmulation        Emulation = 0x00
	Floppy12Emulation  Emulation = 0x01
	Floppy144Emulation Emulation = 0x02
	Floppy288Emulation Emulation = 0x03
	HardDiskEmulation  Emulation = 0x04
)

func (e Emulation) String() string {
	switch e {
	case NoEmulation:
		return "NoEmul"
	case Floppy12Emulation:
		return "1.2MFloppy"
	case Floppy144Emulation:
		return "1.44MFloppy"
	case Floppy288Emulation:
		return "2.88MFloppy"
	case HardDiskEmulation:
		return "HardDisk"
	default:
		return "Unknown"
	}
}

// Entry is one initial/default or section boot entry.
type Entry struct {
	Bootable    bool
	Platform    Platform
	Emulation   Emulation
	LoadSegment uint16
	// SystemType mirrors the partition type byte of the emulated disk's
	// partition table (only meaningful for HardDiskEmulation).
	SystemType byte
	// SectorCount is the number of 512-byte virtual sectors to load.
	SectorCount uint16
	// Location is the starting extent of the boot image, in logical
	// blocks. Zero until the layout stage assigns it.
	Location uint32
	Selection *SelectionCriteria
}

// SelectionCriteria is the optional vendor-specific selection criteria
// carried in the trailing 20 bytes of a section entry (El Torito 2.2).
type SelectionCriteria struct {
	Type byte
	Data [19]byte
}

// Section groups entries under a non-default platform, introduced by a
// section header record.
type Section struct {
	Platform Platform
	IDString [28]byte
	Entries  []*Entry
}

// Catalog is the full boot catalog: a mandatory validation entry, a
// mandatory initial/default entry, and zero or more sections.
type Catalog struct {
	Initial  *Entry
	Sections []*Section
}

const recordSize = 32

// Marshal serializes the catalog into one 2048-byte extent.
func (c *Catalog) Marshal() ([consts.ISO9660_SECTOR_SIZE]byte, error) {
	var out [consts.ISO9660_SECTOR_SIZE]byte
	if c.Initial == nil {
		return out, errs.InvalidInputf("boot catalog has no initial/default entry")
	}

	pos := 0
	validation := buildValidationEntry(c.Initial.Platform)
	copy(out[pos:pos+recordSize], validation[:])
	pos += recordSize

	initial := marshalInitialEntry(c.Initial)
	if pos+recordSize > len(out) {
		return out, errs.InvalidInputf("boot catalog exceeds one extent")
	}
	copy(out[pos:pos+recordSize], initial[:])
	pos += recordSize

	for si, section := range c.Sections {
		last := si == len(c.Sections)-1
		header := marshalSectionHeader(section, last)
		if pos+recordSize > len(out) {
			return out, errs.InvalidInputf("boot catalog exceeds one extent")
		}
		copy(out[pos:pos+recordSize], header[:])
		pos += recordSize

		for _, entry := range section.Entries {
			rec := marshalSectionEntry(entry)
			if pos+recordSize > len(out) {
				return out, errs.InvalidInputf("boot catalog exceeds one extent")
			}
			copy(out[pos:pos+recordSize], rec[:])
			pos += recordSize
		}
	}

	return out, nil
}

// Unmarshal decodes a 2048-byte boot catalog extent.
func (c *Catalog) Unmarshal(data [consts.ISO9660_SECTOR_SIZE]byte) error {
	if err := validateValidationEntry(data[0:recordSize]); err != nil {
		return err
	}

	pos := recordSize
	initial, err := unmarshalInitialEntry(data[pos : pos+recordSize])
	if err != nil {
		return err
	}
	c.Initial = initial
	pos += recordSize

	c.Sections = nil
	for pos+recordSize <= len(data) {
		rec := data[pos : pos+recordSize]
		switch rec[0] {
		case 0x00:
			return nil
		case consts.EL_TORITO_SECTION_HEADER_MORE, consts.EL_TORITO_SECTION_HEADER_FINAL:
			last := rec[0] == consts.EL_TORITO_SECTION_HEADER_FINAL
			count := binary.LittleEndian.Uint16(rec[2:4])
			section := &Section{Platform: Platform(rec[1])}
			copy(section.IDString[:], rec[4:32])
			pos += recordSize

			for i := 0; i < int(count); i++ {
				if pos+recordSize > len(data) {
					return errs.Malformedf(0, int64(pos), "boot catalog section entry truncated")
				}
				erec := data[pos : pos+recordSize]
				section.Entries = append(section.Entries, unmarshalSectionEntry(erec))
				pos += recordSize
			}
			c.Sections = append(c.Sections, section)
			if last {
				return nil
			}
		default:
			return errs.Malformedf(0, int64(pos), "unexpected boot catalog record id %#x", rec[0])
		}
	}
	return nil
}

func buildValidationEntry(p Platform) [recordSize]byte {
	var rec [recordSize]byte
	rec[0] = consts.EL_TORITO_HEADER_ID
	rec[1] = byte(p)
	copy(rec[4:28], consts.EL_TORITO_BOOT_SYSTEM_ID)
	rec[30] = consts.EL_TORITO_KEY_BYTE_1
	rec[31] = consts.EL_TORITO_KEY_BYTE_2

	checksum := uint16(0)
	for i := 0; i < recordSize; i += 2 {
		checksum += binary.LittleEndian.Uint16(rec[i : i+2])
	}
	binary.LittleEndian.PutUint16(rec[28:30], 0-checksum)
	return rec
}

func validateValidationEntry(data []byte) error {
	if len(data) < recordSize {
		return errs.Malformedf(0, 0, "boot catalog validation entry truncated")
	}
	if data[0] != consts.EL_TORITO_HEADER_ID {
		return errs.Malformedf(0, 0, "boot catalog validation entry has header id %#x, want %#x", data[0], consts.EL_TORITO_HEADER_ID)
	}
	checksum := uint16(0)
	for i := 0; i < recordSize; i += 2 {
		checksum += binary.LittleEndian.Uint16(data[i : i+2])
	}
	if checksum != 0 {
		return errs.Malformedf(0, 0, "boot catalog validation entry checksum invalid")
	}
	if data[30] != consts.EL_TORITO_KEY_BYTE_1 || data[31] != consts.EL_TORITO_KEY_BYTE_2 {
		return errs.Malformedf(0, 0, "boot catalog validation entry key bytes %#x%#x invalid", data[30], data[31])
	}
	return nil
}

func marshalInitialEntry(e *Entry) [recordSize]byte {
	var rec [recordSize]byte
	if e.Bootable {
		rec[0] = consts.EL_TORITO_BOOTABLE
	}
	rec[1] = byte(e.Emulation)
	rec[2] = e.SystemType
	binary.LittleEndian.PutUint16(rec[4:6], e.LoadSegment)
	binary.LittleEndian.PutUint16(rec[6:8], e.SectorCount)
	binary.LittleEndian.PutUint32(rec[8:12], e.Location)
	return rec
}

func unmarshalInitialEntry(data []byte) (*Entry, error) {
	return &Entry{
		Bootable:    data[0] == consts.EL_TORITO_BOOTABLE,
		Emulation:   Emulation(data[1]),
		SystemType:  data[2],
		LoadSegment: binary.LittleEndian.Uint16(data[4:6]),
		SectorCount: binary.LittleEndian.Uint16(data[6:8]),
		Location:    binary.LittleEndian.Uint32(data[8:12]),
	}, nil
}

func marshalSectionHeader(s *Section, last bool) [recordSize]byte {
	var rec [recordSize]byte
	if last {
		rec[0] = consts.EL_TORITO_SECTION_HEADER_FINAL
	} else {
		rec[0] = consts.EL_TORITO_SECTION_HEADER_MORE
	}
	rec[1] = byte(s.Platform)
	binary.LittleEndian.PutUint16(rec[2:4], uint16(len(s.Entries)))
	copy(rec[4:32], s.IDString[:])
	return rec
}

// marshalSectionEntry lays out a section entry exactly like the initial
// entry for its first 12 bytes, then packs any selection criteria into
// the trailing 20 bytes of the same record (El Torito 2.2) instead of a
// separate continuation record.
func marshalSectionEntry(e *Entry) [recordSize]byte {
	var rec [recordSize]byte
	if e.Bootable {
		rec[0] = consts.EL_TORITO_BOOTABLE
	}
	rec[1] = byte(e.Emulation)
	rec[2] = e.SystemType
	binary.LittleEndian.PutUint16(rec[4:6], e.LoadSegment)
	binary.LittleEndian.PutUint16(rec[6:8], e.SectorCount)
	binary.LittleEndian.PutUint32(rec[8:12], e.Location)
	if e.Selection != nil {
		rec[12] = e.Selection.Type
		copy(rec[13:32], e.Selection.Data[:])
	}
	return rec
}

func unmarshalSectionEntry(data []byte) *Entry {
	e := &Entry{
		Bootable:    data[0] == consts.EL_TORITO_BOOTABLE,
		Emulation:   Emulation(data[1]),
		SystemType:  data[2],
		LoadSegment: binary.LittleEndian.Uint16(data[4:6]),
		SectorCount: binary.LittleEndian.Uint16(data[6:8]),
		Location:    binary.LittleEndian.Uint32(data[8:12]),
	}
	if data[12] != 0 {
		sel := &SelectionCriteria{Type: data[12]}
		copy(sel.Data[:], data[13:32])
		e.Selection = sel
	}
	return e
}
