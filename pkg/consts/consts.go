// Package consts collects the fixed values defined by ISO 9660, Joliet,
// El Torito and ECMA-167/UDF that the rest of the module needs.
package consts

const (
	// Number of system area sectors reserved at the start of every image.
	ISO9660_SYSTEM_AREA_SECTORS = 16

	// Standard ISO9660 identifier.
	ISO9660_STD_IDENTIFIER = "CD001"

	// ISO9660 volume descriptor version (always 1).
	ISO9660_VOLUME_DESC_VERSION = 1

	// Logical block / sector size. Fixed for the whole image.
	ISO9660_SECTOR_SIZE = 2048

	// ISO9660 volume descriptor header size.
	ISO9660_VOLUME_DESC_HEADER_SIZE = 7

	// ISO9660 application-use area size.
	ISO9660_APPLICATION_USE_SIZE = 512

	// Joliet level 1, 2, and 3 escape sequences (UCS-2 level indicator).
	JOLIET_LEVEL_1_ESCAPE = "%/@"
	JOLIET_LEVEL_2_ESCAPE = "%/C"
	JOLIET_LEVEL_3_ESCAPE = "%/E"

	// El Torito bootable cdrom system identifier.
	EL_TORITO_BOOT_SYSTEM_ID = "EL TORITO SPECIFICATION"

	// Logical sector holding the El Torito boot catalog pointer's target
	// is whatever the Boot Record Volume Descriptor names; EL_TORITO_SECTOR
	// is only the conventional first-free sector cdrkit/genisoimage use.
	EL_TORITO_SECTOR = 0x11

	// El Torito validation-entry header id / platform bytes.
	EL_TORITO_HEADER_ID = 0x01
	// El Torito validation entry key bytes (must be 0x55, 0xAA).
	EL_TORITO_KEY_BYTE_1 = 0x55
	EL_TORITO_KEY_BYTE_2 = 0xAA
	// Boot indicator: bootable initial/default entry.
	EL_TORITO_BOOTABLE = 0x88
	// Boot catalog sector entry terminator / section header ids.
	EL_TORITO_SECTION_HEADER_MORE  = 0x90
	EL_TORITO_SECTION_HEADER_FINAL = 0x91

	// a-characters: the subset of the International Reference Version
	// used for system/publisher/preparer/application identifiers.
	A_CHARACTERS = " !\"%&'()*+,-./0123456789:;<=>?ABCDEFGHIJKLMNOPQRSTUVWXYZ_"

	// d-characters: the 37-character subset used for file/volume identifiers.
	D_CHARACTERS = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_"

	// Separators allowed by ISO9660 in file identifiers.
	ISO9660_SEPARATOR_1 = "."
	ISO9660_SEPARATOR_2 = ";"

	// ISO9660 padding filler byte (space).
	ISO9660_FILLER = " "

	// Maximum strict ISO9660 directory nesting depth (root = depth 1).
	ISO9660_MAX_DEPTH = 8

	// ---- UDF / ECMA-167 ----

	// Standard identifiers for the Volume Recognition Sequence.
	UDF_STD_IDENTIFIER_BEA = "BEA01"
	UDF_STD_IDENTIFIER_NSR = "NSR02"
	UDF_STD_IDENTIFIER_TEA = "TEA01"

	// UDF default sector size; must match the ISO9660 logical block size
	// for a bridge disc.
	UDF_SECTOR_SIZE = 2048

	// Block number of the first Anchor Volume Descriptor Pointer.
	UDF_ANCHOR_BLOCK = 256

	// Descriptor tag identifiers (ECMA-167 3/7.2).
	UDF_TAG_PRIMARY_VOLUME_DESCRIPTOR       = 0x0001
	UDF_TAG_ANCHOR_VOLUME_DESCRIPTOR_PTR    = 0x0002
	UDF_TAG_VOLUME_DESCRIPTOR_PTR           = 0x0003
	UDF_TAG_IMPLEMENTATION_USE_VOL_DESC     = 0x0004
	UDF_TAG_PARTITION_DESCRIPTOR            = 0x0005
	UDF_TAG_LOGICAL_VOLUME_DESCRIPTOR       = 0x0006
	UDF_TAG_UNALLOCATED_SPACE_DESCRIPTOR    = 0x0007
	UDF_TAG_TERMINATING_DESCRIPTOR          = 0x0008
	UDF_TAG_LOGICAL_VOLUME_INTEGRITY_DESC   = 0x0009
	UDF_TAG_FILE_SET_DESCRIPTOR             = 0x0100
	UDF_TAG_FILE_IDENTIFIER_DESCRIPTOR      = 0x0101
	UDF_TAG_ALLOCATION_EXTENT_DESCRIPTOR    = 0x0102
	UDF_TAG_INDIRECT_ENTRY                  = 0x0103
	UDF_TAG_TERMINAL_ENTRY                  = 0x0104
	UDF_TAG_FILE_ENTRY                      = 0x0105
	UDF_TAG_EXTENDED_ATTRIBUTE_HEADER_DESC  = 0x0106
	UDF_TAG_EXTENDED_FILE_ENTRY             = 0x010A

	// File characteristics bits (File Identifier Descriptor).
	UDF_FID_CHAR_HIDDEN    = 0x01
	UDF_FID_CHAR_DIRECTORY = 0x02
	UDF_FID_CHAR_DELETED   = 0x04
	UDF_FID_CHAR_PARENT    = 0x08
	UDF_FID_CHAR_METADATA  = 0x10

	// ICB tag file types (used in File Entry).
	UDF_ICB_FILE_TYPE_DIRECTORY = 4
	UDF_ICB_FILE_TYPE_FILE      = 5
	UDF_ICB_FILE_TYPE_SYMLINK   = 12

	// CS0 compression ids used for UDF string fields.
	UDF_CS0_COMPRESSION_8  = 8
	UDF_CS0_COMPRESSION_16 = 16
)
