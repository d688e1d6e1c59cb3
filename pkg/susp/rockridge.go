package susp

import (
	"strings"
	"time"

	"github.com/voliso/voliso/pkg/encoding"
	"github.com/voliso/voliso/pkg/errs"
)

// NM flag bits (RRIP 4.1.4).
const (
	nmContinue = 0x01
	nmCurrent  = 0x02 // name is "."
	nmParent   = 0x04 // name is ".."
)

// SL flag bits (RRIP 4.1.3.1), component-record level.
const (
	slComponentContinue = 0x01
	slComponentCurrent  = 0x02
	slComponentParent   = 0x04
	slComponentRoot     = 0x08
)

// SL record-level flag bit: the final component continues into the next SL entry.
const slRecordContinue = 0x01

// TF timestamp bits (RRIP 4.1.6).
const (
	tfCreation   = 0x01
	tfModify     = 0x02
	tfAccess     = 0x04
	tfAttributes = 0x08
	tfBackup     = 0x10
	tfExpiration = 0x20
	tfEffective  = 0x40
	tfLongForm   = 0x80
)

// DeviceNumber is a POSIX device number's major/minor pair, carried in a PN
// entry for character- and block-special files.
type DeviceNumber struct {
	Major uint32
	Minor uint32
}

// RockRidge is the decoded set of Rock Ridge attributes attached to one
// directory record.
type RockRidge struct {
	Mode     *uint32 // PX: st_mode
	Nlink    *uint32 // PX: st_nlink
	UID      *uint32 // PX: st_uid
	GID      *uint32 // PX: st_gid
	Serial   *uint32 // PX: st_ino (RRIP 1.12 extension)
	Device   *DeviceNumber
	Name    string // reassembled NM name, possibly spanning several entries
	Symlink string // reassembled SL target, "/"-joined components

	Relocated        bool    // RE present: this directory was relocated
	ChildLinkExtent  *uint32 // CL: real location of a relocated child directory
	ParentLinkExtent *uint32 // PL: real location of a relocated directory's parent

	Creation   *time.Time
	Modify     *time.Time
	Access     *time.Time
	Attributes *time.Time
	Backup     *time.Time
	Expiration *time.Time
	Effective  *time.Time

	SparseFileSize *uint64 // SF: real (unsparse) file size
}

// DecodeRockRidge extracts Rock Ridge fields from an already-parsed SUSP
// entry stream. Unrecognized entries (ES, AA/AL, vendor-specific) are
// ignored.
func DecodeRockRidge(entries *Entries) (*RockRidge, error) {
	rr := &RockRidge{}

	if px := entries.Find(TagPX); px != nil {
		if err := decodePX(px, rr); err != nil {
			return nil, err
		}
	}
	if pn := entries.Find(TagPN); pn != nil {
		if err := decodePN(pn, rr); err != nil {
			return nil, err
		}
	}
	if name, err := decodeNM(entries.FindAll(TagNM)); err != nil {
		return nil, err
	} else {
		rr.Name = name
	}
	if target, err := decodeSL(entries.FindAll(TagSL)); err != nil {
		return nil, err
	} else {
		rr.Symlink = target
	}
	if cl := entries.Find(TagCL); cl != nil {
		loc, err := decodeExtentPointer(cl)
		if err != nil {
			return nil, err
		}
		rr.ChildLinkExtent = &loc
	}
	if pl := entries.Find(TagPL); pl != nil {
		loc, err := decodeExtentPointer(pl)
		if err != nil {
			return nil, err
		}
		rr.ParentLinkExtent = &loc
	}
	if entries.Find(TagRE) != nil {
		rr.Relocated = true
	}
	if tf := entries.Find(TagTF); tf != nil {
		if err := decodeTF(tf, rr); err != nil {
			return nil, err
		}
	}
	if sf := entries.Find(TagSF); sf != nil {
		if err := decodeSF(sf, rr); err != nil {
			return nil, err
		}
	}

	return rr, nil
}

func decodeExtentPointer(e *Entry) (uint32, error) {
	if len(e.Data) != 8 {
		return 0, errs.Malformedf(0, 0, "%s entry has %d data bytes, want 8", e.Tag, len(e.Data))
	}
	var b [8]byte
	copy(b[:], e.Data)
	return encoding.UnmarshalUint32LSBMSB(b)
}

func decodePX(e *Entry, rr *RockRidge) error {
	// PX payload (RRIP 4.1.2): mode(8) links(8) uid(8) gid(8) [serial(8)]
	if len(e.Data) != 32 && len(e.Data) != 40 {
		return errs.Malformedf(0, 0, "PX entry has %d data bytes, want 32 or 40", len(e.Data))
	}
	readField := func(off int) (uint32, error) {
		var b [8]byte
		copy(b[:], e.Data[off:off+8])
		return encoding.UnmarshalUint32LSBMSB(b)
	}
	mode, err := readField(0)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "PX mode")
	}
	links, err := readField(8)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "PX nlink")
	}
	uid, err := readField(16)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "PX uid")
	}
	gid, err := readField(24)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "PX gid")
	}
	rr.Mode, rr.Nlink, rr.UID, rr.GID = &mode, &links, &uid, &gid
	if len(e.Data) == 40 {
		serial, err := readField(32)
		if err != nil {
			return errs.MalformedWrap(0, 0, err, "PX serial")
		}
		rr.Serial = &serial
	}
	return nil
}

func decodePN(e *Entry, rr *RockRidge) error {
	if len(e.Data) != 16 {
		return errs.Malformedf(0, 0, "PN entry has %d data bytes, want 16", len(e.Data))
	}
	var hi, lo [8]byte
	copy(hi[:], e.Data[0:8])
	copy(lo[:], e.Data[8:16])
	major, err := encoding.UnmarshalUint32LSBMSB(hi)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "PN major device number")
	}
	minor, err := encoding.UnmarshalUint32LSBMSB(lo)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "PN minor device number")
	}
	rr.Device = &DeviceNumber{Major: major, Minor: minor}
	return nil
}

func decodeNM(entries []*Entry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	var b strings.Builder
	for i, e := range entries {
		if len(e.Data) < 1 {
			return "", errs.Malformedf(0, 0, "NM entry has no flags byte")
		}
		flags := e.Data[0]
		name := e.Data[1:]
		if flags&nmCurrent != 0 {
			return ".", nil
		}
		if flags&nmParent != 0 {
			return "..", nil
		}
		b.Write(name)
		continues := flags&nmContinue != 0
		if !continues && i != len(entries)-1 {
			return "", errs.Malformedf(0, 0, "NM entry %d lacks the CONTINUE flag but more NM entries follow", i)
		}
	}
	return b.String(), nil
}

func decodeSL(entries []*Entry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	var parts []string
	var pending strings.Builder
	flushPending := func() {
		if pending.Len() > 0 {
			parts = append(parts, pending.String())
			pending.Reset()
		}
	}
	for ei, e := range entries {
		if len(e.Data) < 1 {
			return "", errs.Malformedf(0, 0, "SL entry has no flags byte")
		}
		recordFlags := e.Data[0]
		comps := e.Data[1:]
		pos := 0
		for pos < len(comps) {
			if pos+2 > len(comps) {
				return "", errs.Malformedf(0, 0, "SL component record truncated")
			}
			cflags := comps[pos]
			clen := int(comps[pos+1])
			pos += 2
			if pos+clen > len(comps) {
				return "", errs.Malformedf(0, 0, "SL component declares length %d beyond entry bounds", clen)
			}
			text := comps[pos : pos+clen]
			pos += clen

			switch {
			case cflags&slComponentCurrent != 0:
				flushPending()
				parts = append(parts, ".")
			case cflags&slComponentParent != 0:
				flushPending()
				parts = append(parts, "..")
			case cflags&slComponentRoot != 0:
				flushPending()
				parts = append(parts, "/")
			default:
				pending.Write(text)
				if cflags&slComponentContinue == 0 {
					flushPending()
				}
			}
		}
		if recordFlags&slRecordContinue == 0 && ei != len(entries)-1 {
			return "", errs.Malformedf(0, 0, "SL entry %d lacks the CONTINUE flag but more SL entries follow", ei)
		}
	}
	flushPending()
	if len(parts) > 0 && parts[0] == "/" {
		// The root component already supplies the leading separator.
		return "/" + strings.Join(parts[1:], "/"), nil
	}
	return strings.Join(parts, "/"), nil
}

func decodeTF(e *Entry, rr *RockRidge) error {
	if len(e.Data) < 1 {
		return errs.Malformedf(0, 0, "TF entry has no flags byte")
	}
	flags := e.Data[0]
	long := flags&tfLongForm != 0
	fieldSize := 7
	if long {
		fieldSize = 17
	}
	pos := 1

	readField := func() (time.Time, error) {
		if pos+fieldSize > len(e.Data) {
			return time.Time{}, errs.Malformedf(0, 0, "TF entry truncated")
		}
		var t time.Time
		var err error
		if long {
			var b [17]byte
			copy(b[:], e.Data[pos:pos+17])
			t, err = encoding.UnmarshalDateTime(b)
		} else {
			var b [7]byte
			copy(b[:], e.Data[pos:pos+7])
			t, err = encoding.UnmarshalRecordingDateTime(b)
		}
		pos += fieldSize
		return t, err
	}

	order := []struct {
		bit  byte
		dest **time.Time
	}{
		{tfCreation, &rr.Creation},
		{tfModify, &rr.Modify},
		{tfAccess, &rr.Access},
		{tfAttributes, &rr.Attributes},
		{tfBackup, &rr.Backup},
		{tfExpiration, &rr.Expiration},
		{tfEffective, &rr.Effective},
	}
	for _, o := range order {
		if flags&o.bit == 0 {
			continue
		}
		t, err := readField()
		if err != nil {
			return errs.MalformedWrap(0, 0, err, "TF timestamp")
		}
		tCopy := t
		*o.dest = &tCopy
	}
	return nil
}

// encodeTF builds the TF entry for whichever timestamps rr sets, using the
// 7-byte recording-date form. Returns nil if no timestamp is set.
func encodeTF(rr *RockRidge) *Entry {
	type field struct {
		bit byte
		t   *time.Time
	}
	fields := []field{
		{tfCreation, rr.Creation},
		{tfModify, rr.Modify},
		{tfAccess, rr.Access},
		{tfAttributes, rr.Attributes},
		{tfBackup, rr.Backup},
		{tfExpiration, rr.Expiration},
		{tfEffective, rr.Effective},
	}
	var flags byte
	var data []byte
	for _, f := range fields {
		if f.t == nil {
			continue
		}
		flags |= f.bit
		b, err := encoding.MarshalRecordingDateTime(*f.t)
		if err != nil {
			continue
		}
		data = append(data, b[:]...)
	}
	if flags == 0 {
		return nil
	}
	return &Entry{Tag: TagTF, Version: 1, Data: append([]byte{flags}, data...)}
}

func decodeSF(e *Entry, rr *RockRidge) error {
	if len(e.Data) != 16 && len(e.Data) != 17 {
		return errs.Malformedf(0, 0, "SF entry has %d data bytes, want 16 or 17", len(e.Data))
	}
	var hi, lo [8]byte
	copy(hi[:], e.Data[0:8])
	copy(lo[:], e.Data[8:16])
	high, err := encoding.UnmarshalUint32LSBMSB(hi)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "SF high size")
	}
	low, err := encoding.UnmarshalUint32LSBMSB(lo)
	if err != nil {
		return errs.MalformedWrap(0, 0, err, "SF low size")
	}
	size := uint64(high)<<32 | uint64(low)
	rr.SparseFileSize = &size
	return nil
}
