// Package susp implements the System Use Sharing Protocol (IEEE P1281)
// sub-record stream carried in a directory record's system-use area, and
// the Rock Ridge (RRIP) extensions layered on top of it (component C3).
package susp

import (
	"github.com/voliso/voliso/pkg/encoding"
	"github.com/voliso/voliso/pkg/errs"
)

// Tag is the 2-byte SUSP/RRIP signature identifying an entry's type.
type Tag [2]byte

func (t Tag) String() string { return string(t[:]) }

var (
	TagSP = Tag{'S', 'P'} // Sharing Protocol indicator (root "." only)
	TagCE = Tag{'C', 'E'} // Continuation area pointer
	TagER = Tag{'E', 'R'} // Extension reference
	TagES = Tag{'E', 'S'} // Extension selector
	TagST = Tag{'S', 'T'} // Terminator
	TagPX = Tag{'P', 'X'} // POSIX file attributes
	TagPN = Tag{'P', 'N'} // POSIX device number
	TagSL = Tag{'S', 'L'} // Symbolic link
	TagNM = Tag{'N', 'M'} // Alternate (long) name
	TagCL = Tag{'C', 'L'} // Child link (relocated directory)
	TagPL = Tag{'P', 'L'} // Parent link (relocated directory)
	TagRE = Tag{'R', 'E'} // Relocated directory marker
	TagTF = Tag{'T', 'F'} // Timestamps
	TagSF = Tag{'S', 'F'} // Sparse file
	TagAA = Tag{'A', 'A'} // Apple extension (legacy)
	TagAL = Tag{'A', 'L'} // Apple extension (legacy, long)
)

// Entry is one raw, already-delimited SUSP sub-record: tag + version +
// payload. The 4-byte SUSP header (2-byte tag, 1-byte length, 1-byte
// version) is not included in Data; Length() recomputes it.
type Entry struct {
	Tag     Tag
	Version byte
	Data    []byte
}

// Length returns the on-disk length of this entry, header included.
func (e *Entry) Length() int { return 4 + len(e.Data) }

// Marshal serializes the entry to its SUSP wire form.
func (e *Entry) Marshal() ([]byte, error) {
	n := e.Length()
	if n > 255 {
		return nil, errs.InvalidInputf("SUSP entry %s is %d bytes, exceeds the 255-byte maximum", e.Tag, n)
	}
	buf := make([]byte, 4, n)
	buf[0], buf[1] = e.Tag[0], e.Tag[1]
	buf[2] = byte(n)
	buf[3] = e.Version
	buf = append(buf, e.Data...)
	return buf, nil
}

// Entries is an ordered stream of parsed SUSP sub-records.
type Entries struct {
	List []*Entry
}

// ContinuationReader resolves a CE entry's (extent, offset, length) to the
// raw bytes of the continuation area. Implementations read directly from
// the source image.
type ContinuationReader func(extent uint32, offset uint32, length uint32) ([]byte, error)

// Parse decodes a flat byte stream into a sequence of SUSP entries,
// following CE continuation chains via read. A nil read is fine as long
// as the stream contains no CE entries (e.g. a freshly-built record whose
// continuation has not been placed yet).
func Parse(data []byte, read ContinuationReader) (*Entries, error) {
	out := &Entries{}
	if _, err := parseOne(data, out, read); err != nil {
		return nil, err
	}
	return out, nil
}

// parseOne walks a single system-use byte stream (and any CE chain it
// contains) into out.List. It returns false once there is nothing left to
// parse (fewer than 4 bytes remain, or an ST entry was hit).
func parseOne(data []byte, out *Entries, read ContinuationReader) (bool, error) {
	for len(data) >= 4 {
		tag := Tag{data[0], data[1]}
		length := int(data[2])
		version := data[3]
		if length < 4 {
			return false, errs.Malformedf(0, 0, "SUSP entry %s declares length %d, must be >= 4", tag, length)
		}
		if length > len(data) {
			return false, errs.Malformedf(0, 0, "SUSP entry %s declares length %d but only %d bytes remain", tag, length, len(data))
		}
		payload := append([]byte(nil), data[4:length]...)
		entry := &Entry{Tag: tag, Version: version, Data: payload}

		if tag == TagST {
			return false, nil
		}
		out.List = append(out.List, entry)

		if tag == TagCE {
			ce, err := DecodeCE(entry)
			if err != nil {
				return false, err
			}
			if read == nil {
				return false, errs.Internalf("SUSP stream contains a CE entry but no continuation reader was supplied")
			}
			contData, err := read(ce.ExtentBlock, ce.Offset, ce.Length)
			if err != nil {
				return false, err
			}
			if _, err := parseOne(contData, out, read); err != nil {
				return false, err
			}
		}

		data = data[length:]
	}
	return false, nil
}

// Find returns the first entry with the given tag, or nil.
func (e *Entries) Find(tag Tag) *Entry {
	for _, entry := range e.List {
		if entry.Tag == tag {
			return entry
		}
	}
	return nil
}

// FindAll returns every entry with the given tag, in stream order.
func (e *Entries) FindAll(tag Tag) []*Entry {
	var out []*Entry
	for _, entry := range e.List {
		if entry.Tag == tag {
			out = append(out, entry)
		}
	}
	return out
}

// CEPointer is the decoded payload of a CE entry: a pointer to more SUSP
// bytes living in a continuation area extent.
type CEPointer struct {
	ExtentBlock uint32
	Offset      uint32
	Length      uint32
}

// DecodeCE decodes a CE entry's three both-endian uint32 fields.
func DecodeCE(e *Entry) (*CEPointer, error) {
	if e.Tag != TagCE || len(e.Data) != 24 {
		return nil, errs.Malformedf(0, 0, "malformed CE entry")
	}
	fields := make([]uint32, 3)
	for i := 0; i < 3; i++ {
		var b [8]byte
		copy(b[:], e.Data[i*8:i*8+8])
		v, err := encoding.UnmarshalUint32LSBMSB(b)
		if err != nil {
			return nil, err
		}
		fields[i] = v
	}
	return &CEPointer{ExtentBlock: fields[0], Offset: fields[1], Length: fields[2]}, nil
}

// EncodeCE builds a CE entry pointing at (extent, offset, length).
func EncodeCE(extent, offset, length uint32) *Entry {
	data := make([]byte, 0, 24)
	extentBytes := encoding.MarshalBothByteOrders32(extent)
	offsetBytes := encoding.MarshalBothByteOrders32(offset)
	lengthBytes := encoding.MarshalBothByteOrders32(length)
	data = append(data, extentBytes[:]...)
	data = append(data, offsetBytes[:]...)
	data = append(data, lengthBytes[:]...)
	return &Entry{Tag: TagCE, Version: 1, Data: data}
}

// EncodeSP builds the root-only Sharing Protocol indicator entry.
func EncodeSP() *Entry {
	return &Entry{Tag: TagSP, Version: 1, Data: []byte{0xBE, 0xEF}}
}

// EncodeER builds an Extension Reference entry identifying the RRIP
// revision in use.
func EncodeER(id, description, source string, extVersion byte) *Entry {
	data := make([]byte, 0, 4+len(id)+len(description)+len(source))
	data = append(data, byte(len(id)), byte(len(description)), byte(len(source)), extVersion)
	data = append(data, id...)
	data = append(data, description...)
	data = append(data, source...)
	return &Entry{Tag: TagER, Version: 1, Data: data}
}

// EncodeST builds the terminator entry.
func EncodeST() *Entry {
	return &Entry{Tag: TagST, Version: 1, Data: nil}
}

// RockRidgeER returns the ER entry identifying RRIP 1.09, the revision
// whose signature readers look for on the root directory's continuation
// area.
func RockRidgeER() *Entry {
	return EncodeER(
		"RRIP_1991A",
		"THE ROCK RIDGE INTERCHANGE PROTOCOL PROVIDES SUPPORT FOR POSIX FILE SYSTEM SEMANTICS",
		"PLEASE CONTACT DISC PUBLISHER FOR SPECIFICATION SOURCE.  SEE PUBLISHER IDENTIFIER IN PRIMARY VOLUME DESCRIPTOR FOR CONTACT INFORMATION.",
		1,
	)
}
