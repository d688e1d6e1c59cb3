package directory

import "github.com/voliso/voliso/pkg/errs"

// FileFlags holds the bit-flag values from a directory record's File
// Flags byte (ECMA-119 9.1.6).
type FileFlags struct {
	Existence      bool `json:"existence"`       // bit 0: hide the file from directory listings
	Directory      bool `json:"directory"`       // bit 1
	AssociatedFile bool `json:"associated_file"` // bit 2
	RecordFormat   bool `json:"record_format"`   // bit 3
	Protection     bool `json:"protection"`      // bit 4
	MultiExtent    bool `json:"multi_extent"`    // bit 7
}

func (ff FileFlags) Marshal() byte {
	var b byte
	if ff.Existence {
		b |= 0x01
	}
	if ff.Directory {
		b |= 0x02
	}
	if ff.AssociatedFile {
		b |= 0x04
	}
	if ff.RecordFormat {
		b |= 0x08
	}
	if ff.Protection {
		b |= 0x10
	}
	if ff.MultiExtent {
		b |= 0x80
	}
	return b
}

// UnmarshalFileFlags decodes a File Flags byte, rejecting set reserved
// bits (5 and 6).
func UnmarshalFileFlags(b byte) (FileFlags, error) {
	if b&0x60 != 0 {
		return FileFlags{}, errs.Malformedf(0, 0, "invalid file flags: reserved bits set, got 0x%02X", b)
	}
	return FileFlags{
		Existence:      b&0x01 != 0,
		Directory:      b&0x02 != 0,
		AssociatedFile: b&0x04 != 0,
		RecordFormat:   b&0x08 != 0,
		Protection:     b&0x10 != 0,
		MultiExtent:    b&0x80 != 0,
	}, nil
}
