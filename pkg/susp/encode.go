package susp

import (
	"strings"

	"github.com/voliso/voliso/pkg/encoding"
	"github.com/voliso/voliso/pkg/errs"
)

// maxEntryPayload is the largest payload a single SUSP entry can carry
// (255-byte entry ceiling minus the 4-byte header).
const maxEntryPayload = 255 - 4

// BuildEntries assembles the ordered, atomic list of SUSP/RRIP entries
// (PX, PN, SL, NM, CL, PL, RE, TF, SF) describing rr, excluding SP/ER/CE/ST
// which are record- or system-use-area-level concerns handled by the
// caller. NM and SL are pre-split into as many entries as their content
// requires.
func BuildEntries(rr *RockRidge) ([]*Entry, error) {
	var out []*Entry

	if rr.Mode != nil {
		out = append(out, encodePX(rr))
	}
	if rr.Device != nil {
		out = append(out, encodePN(rr.Device))
	}
	if rr.Symlink != "" {
		entries, err := encodeSL(rr.Symlink)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	if rr.Name != "" {
		out = append(out, encodeNM(rr.Name)...)
	}
	if rr.ChildLinkExtent != nil {
		out = append(out, encodeExtentPointer(TagCL, *rr.ChildLinkExtent))
	}
	if rr.ParentLinkExtent != nil {
		out = append(out, encodeExtentPointer(TagPL, *rr.ParentLinkExtent))
	}
	if rr.Relocated {
		out = append(out, &Entry{Tag: TagRE, Version: 1})
	}
	if tf := encodeTF(rr); tf != nil {
		out = append(out, tf)
	}
	if rr.SparseFileSize != nil {
		out = append(out, encodeSF(*rr.SparseFileSize))
	}

	return out, nil
}

func encodePX(rr *RockRidge) *Entry {
	deref := func(p *uint32) uint32 {
		if p == nil {
			return 0
		}
		return *p
	}
	data := make([]byte, 0, 40)
	mode := encoding.MarshalBothByteOrders32(deref(rr.Mode))
	nlink := encoding.MarshalBothByteOrders32(deref(rr.Nlink))
	uid := encoding.MarshalBothByteOrders32(deref(rr.UID))
	gid := encoding.MarshalBothByteOrders32(deref(rr.GID))
	data = append(data, mode[:]...)
	data = append(data, nlink[:]...)
	data = append(data, uid[:]...)
	data = append(data, gid[:]...)
	if rr.Serial != nil {
		serial := encoding.MarshalBothByteOrders32(*rr.Serial)
		data = append(data, serial[:]...)
	}
	return &Entry{Tag: TagPX, Version: 1, Data: data}
}

func encodePN(dev *DeviceNumber) *Entry {
	major := encoding.MarshalBothByteOrders32(dev.Major)
	minor := encoding.MarshalBothByteOrders32(dev.Minor)
	data := make([]byte, 0, 16)
	data = append(data, major[:]...)
	data = append(data, minor[:]...)
	return &Entry{Tag: TagPN, Version: 1, Data: data}
}

func encodeExtentPointer(tag Tag, extent uint32) *Entry {
	loc := encoding.MarshalBothByteOrders32(extent)
	return &Entry{Tag: tag, Version: 1, Data: append([]byte(nil), loc[:]...)}
}

// encodeNM splits name across as many NM entries as needed, each carrying
// at most maxEntryPayload-1 bytes of name after its flags byte.
func encodeNM(name string) []*Entry {
	if name == "." {
		return []*Entry{{Tag: TagNM, Version: 1, Data: []byte{nmCurrent}}}
	}
	if name == ".." {
		return []*Entry{{Tag: TagNM, Version: 1, Data: []byte{nmParent}}}
	}

	const chunkSize = maxEntryPayload - 1
	raw := []byte(name)
	var out []*Entry
	for i := 0; i < len(raw); i += chunkSize {
		end := i + chunkSize
		if end > len(raw) {
			end = len(raw)
		}
		var flags byte
		if end < len(raw) {
			flags = nmContinue
		}
		data := make([]byte, 0, 1+(end-i))
		data = append(data, flags)
		data = append(data, raw[i:end]...)
		out = append(out, &Entry{Tag: TagNM, Version: 1, Data: data})
	}
	return out
}

// encodeSL emits the SL entry chain for a symlink target, splitting on "/"
// and marking "." and ".." components per RRIP 4.1.3.1.
func encodeSL(target string) ([]*Entry, error) {
	if target == "" {
		return nil, errs.InvalidInputf("symbolic link target must not be empty")
	}
	type component struct {
		flags byte
		text  []byte
	}
	var comps []component
	rooted := strings.HasPrefix(target, "/")
	segments := strings.Split(strings.Trim(target, "/"), "/")
	if rooted {
		comps = append(comps, component{flags: slComponentRoot})
	}
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		switch seg {
		case ".":
			comps = append(comps, component{flags: slComponentCurrent})
		case "..":
			comps = append(comps, component{flags: slComponentParent})
		default:
			raw := []byte(seg)
			const maxComponent = maxEntryPayload - 3 // record flags + component flags + length
			for i := 0; i < len(raw); i += maxComponent {
				end := i + maxComponent
				if end > len(raw) {
					end = len(raw)
				}
				var flags byte
				if end < len(raw) {
					flags = slComponentContinue
				}
				comps = append(comps, component{flags: flags, text: raw[i:end]})
			}
		}
	}

	// Pack components into SL entries, each bounded by maxEntryPayload
	// (1 record-flags byte + component headers + text).
	var entries []*Entry
	var cur []byte
	flush := func(recordContinues bool) {
		var flags byte
		if recordContinues {
			flags = slRecordContinue
		}
		data := append([]byte{flags}, cur...)
		entries = append(entries, &Entry{Tag: TagSL, Version: 1, Data: data})
		cur = nil
	}
	for _, c := range comps {
		compBytes := append([]byte{c.flags, byte(len(c.text))}, c.text...)
		if len(cur)+len(compBytes)+1 > maxEntryPayload {
			flush(true)
		}
		cur = append(cur, compBytes...)
	}
	flush(false)
	return entries, nil
}

func encodeSF(size uint64) *Entry {
	high := encoding.MarshalBothByteOrders32(uint32(size >> 32))
	low := encoding.MarshalBothByteOrders32(uint32(size))
	data := make([]byte, 0, 16)
	data = append(data, high[:]...)
	data = append(data, low[:]...)
	return &Entry{Tag: TagSF, Version: 1, Data: data}
}
