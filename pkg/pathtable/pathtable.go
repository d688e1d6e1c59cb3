// Package pathtable implements the ISO9660/Joliet path table (ECMA-119
// 9.4): a flat, depth-sorted index of every directory's name, extent, and
// parent directory number, stored in both L-Type (little-endian) and
// M-Type (big-endian) forms.
package pathtable

import (
	"encoding/binary"

	"github.com/voliso/voliso/pkg/errs"
)

// Record is one path table entry (ECMA-119 9.4).
type Record struct {
	// DirectoryIdentifier is the directory's name in this namespace, for
	// the caller's reference; Marshal and Unmarshal do not use it.
	DirectoryIdentifier string
	// ExtentLocation is the directory's first extent.
	ExtentLocation uint32
	// ParentDirectoryNumber is the 1-based index, in this same table, of
	// the record for this directory's parent (root's parent is itself: 1).
	ParentDirectoryNumber uint16
	// IdentifierBytes is the identifier as stored on disk, already
	// encoded by the caller (UCS-2BE for Joliet); this package only
	// handles raw bytes. Empty marshals as the root's single 0x00 byte.
	IdentifierBytes []byte
}

func recordLength(idLen int) int {
	n := 8 + idLen
	if idLen%2 != 0 {
		n++
	}
	return n
}

// marshalOne serializes one record in either little- or big-endian form.
func marshalOne(r *Record, bigEndian bool) []byte {
	idBytes := r.IdentifierBytes
	if len(idBytes) == 0 {
		idBytes = []byte{0x00}
	}
	n := recordLength(len(idBytes))
	buf := make([]byte, n)
	buf[0] = byte(len(idBytes))
	buf[1] = 0 // extended attribute record length, unused
	order := binary.ByteOrder(binary.LittleEndian)
	if bigEndian {
		order = binary.BigEndian
	}
	order.PutUint32(buf[2:6], r.ExtentLocation)
	order.PutUint16(buf[6:8], r.ParentDirectoryNumber)
	copy(buf[8:8+len(idBytes)], idBytes)
	return buf
}

// Marshal serializes an ordered slice of records (already sorted by the
// caller per ECMA-119 9.4: depth, then parent directory number, then
// name) into one path table's bytes, in the given byte order.
func Marshal(records []*Record, bigEndian bool) []byte {
	var out []byte
	for _, r := range records {
		out = append(out, marshalOne(r, bigEndian)...)
	}
	return out
}

// Unmarshal decodes a path table from data, which may be padded with
// trailing zero bytes to a sector boundary.
func Unmarshal(data []byte, bigEndian bool) ([]*Record, error) {
	var records []*Record
	pos := 0
	order := binary.ByteOrder(binary.LittleEndian)
	if bigEndian {
		order = binary.BigEndian
	}
	for pos < len(data) {
		if pos+1 > len(data) {
			break
		}
		idLen := int(data[pos])
		if idLen == 0 {
			break
		}
		n := recordLength(idLen)
		if pos+n > len(data) {
			return nil, errs.Malformedf(0, int64(pos), "path table record truncated")
		}
		rec := data[pos : pos+n]
		idBytes := append([]byte(nil), rec[8:8+idLen]...)
		records = append(records, &Record{
			IdentifierBytes:       idBytes,
			ExtentLocation:        order.Uint32(rec[2:6]),
			ParentDirectoryNumber: order.Uint16(rec[6:8]),
		})
		pos += n
	}
	return records, nil
}

// Sort orders records per ECMA-119 9.4: directories at the same depth are
// grouped by their parent's directory number, then sorted by identifier
// bytes within that group; the root is always first. depth and
// parentNumber are supplied by the caller (the layout planner), which
// already knows the tree shape; Sort performs only the final stable,
// depth-major ordering.
func Sort(entries []*Entry) []*Entry {
	out := make([]*Entry, len(entries))
	copy(out, entries)
	insertionSortStable(out, func(a, b *Entry) bool {
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		if a.Record.ParentDirectoryNumber != b.Record.ParentDirectoryNumber {
			return a.Record.ParentDirectoryNumber < b.Record.ParentDirectoryNumber
		}
		return compareBytes(a.Record.IdentifierBytes, b.Record.IdentifierBytes) < 0
	})
	return out
}

// Entry pairs a path table Record with the depth of its directory (root
// is depth 1), used only during Sort; ExtentLocation/ParentDirectoryNumber
// must already be resolvable relative to the final record order, which is
// why the layout planner assigns directory numbers in a first pass before
// calling Sort.
type Entry struct {
	Depth  int
	Record *Record
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// insertionSortStable is a small stable sort so this package does not
// need to import "sort" for what is, in practice, a handful of entries
// per directory level; kept explicit because Entry's comparator depends
// on fields filled in across two passes (depth, then final directory
// numbers), which is easiest to reason about without a closure over
// sort.Slice's unstable partitioning for equal keys.
func insertionSortStable(s []*Entry, less func(a, b *Entry) bool) {
	for i := 1; i < len(s); i++ {
		j := i
		for j > 0 && less(s[j], s[j-1]) {
			s[j], s[j-1] = s[j-1], s[j]
			j--
		}
	}
}
