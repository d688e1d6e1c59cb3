// Package parser implements Open (component C7): reading an existing
// image's volume descriptors, walking its ISO9660 and (if present)
// Joliet directory trees, decoding Rock Ridge and El Torito, and
// reconciling everything onto one node arena.
package parser

import (
	"encoding/binary"
	"io"

	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/descriptor"
	"github.com/voliso/voliso/pkg/directory"
	"github.com/voliso/voliso/pkg/eltorito"
	"github.com/voliso/voliso/pkg/errs"
	"github.com/voliso/voliso/pkg/node"
	"github.com/voliso/voliso/pkg/option"
	"github.com/voliso/voliso/pkg/susp"
	"github.com/voliso/voliso/pkg/udf"
)

const sectorSize = consts.ISO9660_SECTOR_SIZE

// Result bundles everything Open decodes beyond the node arena: the raw
// descriptor set, the boot catalog (if any), and the UDF volume
// structures (if the bridge sequence was present and enabled).
type Result struct {
	Descriptors *descriptor.Set
	BootCatalog *eltorito.Catalog
	UDF         *udf.Volume
}

// existingPayload implements node.Source by reading back bytes already on
// the opened image, so a parsed node's payload can be re-written verbatim
// by a later Write without the caller re-supplying the original content.
type existingPayload struct {
	r      io.ReaderAt
	extent uint32
	size   int64
}

func (p *existingPayload) Open() (io.ReadCloser, error) {
	return io.NopCloser(io.NewSectionReader(p.r, int64(p.extent)*sectorSize, p.size)), nil
}

func (p *existingPayload) Size() int64 { return p.size }

// Open parses an ISO image readable through r and returns a populated
// node arena plus the raw structures decoded along the way.
func Open(r io.ReaderAt, opts option.OpenOptions) (*node.Arena, *Result, error) {
	set, err := readVolumeDescriptorSet(r)
	if err != nil {
		return nil, nil, err
	}
	if set.Primary == nil {
		return nil, nil, errs.Malformedf(16, 0, "image has no primary volume descriptor")
	}

	result := &Result{Descriptors: set}

	var enabled []node.Namespace
	enabled = append(enabled, node.ISO9660)
	haveJoliet := len(set.Supplementary) > 0
	if haveJoliet {
		enabled = append(enabled, node.Joliet)
	}
	if opts.UDFEnabled {
		if vol, uerr := tryReadUDF(r); uerr == nil && vol != nil {
			result.UDF = vol
			enabled = append(enabled, node.UDF)
		}
	}

	arena := node.NewArena(enabled...)

	isoRoot, err := arena.Get(mustRoot(arena, node.ISO9660))
	if err != nil {
		return nil, nil, err
	}
	// Records naming the same extent and length are hard links to one
	// payload; sharing the Payload pointer is what keeps them one group.
	payloads := map[payloadKey]*node.Payload{}
	if err := buildTree(r, arena, node.ISO9660, isoRoot, set.Primary.RootDirectoryRecord, opts, payloads); err != nil {
		return nil, nil, err
	}

	if haveJoliet {
		svd := set.Supplementary[0]
		jolietRoot, err := arena.Get(mustRoot(arena, node.Joliet))
		if err != nil {
			return nil, nil, err
		}
		index := buildExtentIndex(arena)
		if err := buildJolietTree(r, arena, jolietRoot, svd.RootDirectoryRecord, index, payloads); err != nil {
			return nil, nil, err
		}
	}

	if opts.ElToritoEnabled && set.Boot != nil {
		cat, err := readBootCatalog(r, set.Boot.BootCatalogPointer)
		if err != nil {
			return nil, nil, err
		}
		result.BootCatalog = cat
	}

	if opts.RockRidgeEnabled {
		if err := resolveRelocations(arena, isoRoot); err != nil {
			return nil, nil, err
		}
	}

	if result.UDF != nil {
		matchNS := node.ISO9660
		if haveJoliet {
			matchNS = node.Joliet
		}
		if err := buildUDFTree(r, arena, result.UDF, matchNS); err != nil {
			return nil, nil, err
		}
	}

	arena.Dirty = false
	return arena, result, nil
}

// resolveRelocations undoes the RRIP 4.1.5 tree surgery a writer performs
// for directories deeper than ISO9660's 8-level limit: every placeholder
// record carrying a CL entry is replaced in its true parent by the real
// directory found under RR_MOVED, so callers see one coherent tree rather
// than the on-disk relocation artifacts.
func resolveRelocations(arena *node.Arena, isoRoot *node.Node) error {
	movedDir, ok := arena.ChildByName(node.ISO9660, isoRoot, "RR_MOVED")
	if !ok {
		return nil
	}

	realByExtent := map[uint32]*node.Node{}
	for _, cid := range movedDir.Children[node.ISO9660] {
		child, err := arena.Get(cid)
		if err != nil {
			return err
		}
		realByExtent[child.Extent] = child
	}

	var placeholders []*node.Node
	rootID, err := arena.Root(node.ISO9660)
	if err != nil {
		return err
	}
	if err := arena.Walk(node.ISO9660, rootID, func(_ string, n *node.Node) error {
		if n.RockRidge != nil && n.RockRidge.ChildLinkExtent != nil {
			placeholders = append(placeholders, n)
		}
		return nil
	}); err != nil {
		return err
	}

	for _, placeholder := range placeholders {
		extent := *placeholder.RockRidge.ChildLinkExtent
		real, ok := realByExtent[extent]
		if !ok {
			return errs.Malformedf(int64(extent), 0, "CL entry points at extent %d, which is not a child of RR_MOVED", extent)
		}
		trueParentID, ok := placeholder.Parent[node.ISO9660]
		if !ok {
			return errs.Malformedf(0, 0, "relocation placeholder has no iso9660 parent")
		}
		trueParent, err := arena.Get(trueParentID)
		if err != nil {
			return err
		}
		name := placeholder.Name[node.ISO9660]

		if err := arena.Unlink(node.ISO9660, movedDir, real); err != nil {
			return err
		}
		if err := arena.Unlink(node.ISO9660, trueParent, placeholder); err != nil {
			return err
		}
		arena.Link(node.ISO9660, trueParent, real, name)
	}

	if len(movedDir.Children[node.ISO9660]) == 0 {
		rootDir, err := arena.Get(rootID)
		if err != nil {
			return err
		}
		_ = arena.Unlink(node.ISO9660, rootDir, movedDir)
	}

	return nil
}

// buildUDFTree reads the File Set Descriptor r's UDF sequence points at
// and walks its File Identifier Descriptor streams, linking each entry
// onto the node already created for it in matchNS (the same shared node
// the ISO9660/Joliet walk produced) rather than creating a parallel tree.
func buildUDFTree(r io.ReaderAt, arena *node.Arena, vol *udf.Volume, matchNS node.Namespace) error {
	fsdLoc := vol.LogicalVolume.LogicalVolumeContentsUse.ExtentLocation.LogicalBlockNumber
	sector, err := readSector(r, fsdLoc)
	if err != nil {
		return err
	}
	var fsd udf.FileSetDescriptor
	if err := fsd.Unmarshal(sector[:]); err != nil {
		return err
	}
	vol.FileSet = fsd

	rootID, err := arena.Root(matchNS)
	if err != nil {
		return err
	}
	root, err := arena.Get(rootID)
	if err != nil {
		return err
	}
	return buildUDFDirectory(r, arena, root, matchNS, fsd.RootDirectoryICB.ExtentLocation.LogicalBlockNumber)
}

// buildUDFDirectory decodes dir's File Entry and, for non-empty
// directories, its File Identifier Descriptor stream, linking each
// identifier onto the existing node found by name in matchNS.
func buildUDFDirectory(r io.ReaderAt, arena *node.Arena, dir *node.Node, matchNS node.Namespace, icbExtent uint32) error {
	fe, err := readUDFFileEntry(r, icbExtent)
	if err != nil {
		return err
	}
	if len(fe.AllocationDescriptors) == 0 {
		return nil
	}
	ad := fe.AllocationDescriptors[0]

	fids, err := readUDFDirectoryEntries(r, ad.ExtentLocation.LogicalBlockNumber, ad.ExtentLength)
	if err != nil {
		return err
	}

	for _, fid := range fids {
		if fid.IsParent() || fid.IsDeleted() {
			continue
		}
		child, ok := arena.ChildByName(matchNS, dir, fid.FileIdentifier)
		if !ok {
			return errs.Malformedf(0, 0, "udf directory entry %q has no matching node in namespace %v; trees diverge", fid.FileIdentifier, matchNS)
		}
		arena.Link(node.UDF, dir, child, fid.FileIdentifier)
		if fid.IsDirectory() {
			if err := buildUDFDirectory(r, arena, child, matchNS, fid.ICB.ExtentLocation.LogicalBlockNumber); err != nil {
				return err
			}
		}
	}
	return nil
}

// readUDFFileEntry decodes the ICB at extent, accepting either a plain
// File Entry (written by pre-2.00 implementations) or the Extended File
// Entry this module writes, normalized to the extended form.
func readUDFFileEntry(r io.ReaderAt, extent uint32) (*udf.ExtendedFileEntry, error) {
	sector, err := readSector(r, extent)
	if err != nil {
		return nil, err
	}
	switch udf.PeekTagIdentifier(sector) {
	case consts.UDF_TAG_FILE_ENTRY:
		plain := &udf.FileEntry{}
		if err := plain.Unmarshal(sector[:]); err != nil {
			return nil, err
		}
		return &udf.ExtendedFileEntry{
			Tag:                   plain.Tag,
			ICBTag:                plain.ICBTag,
			UID:                   plain.UID,
			GID:                   plain.GID,
			Permissions:           plain.Permissions,
			FileLinkCount:         plain.FileLinkCount,
			RecordFormat:          plain.RecordFormat,
			InformationLength:     plain.InformationLength,
			ObjectSize:            plain.InformationLength,
			LogicalBlocksRecorded: plain.LogicalBlocksRecorded,
			AccessTime:            plain.AccessTime,
			ModificationTime:      plain.ModificationTime,
			AttributeTime:         plain.AttributeTime,
			AllocationDescriptors: plain.AllocationDescriptors,
		}, nil
	default:
		fe := &udf.ExtendedFileEntry{}
		if err := fe.Unmarshal(sector[:]); err != nil {
			return nil, err
		}
		return fe, nil
	}
}

// readUDFDirectoryEntries decodes a directory's File Identifier
// Descriptor stream. Entries are not sector-aligned, so PeekTagIdentifier
// (which only accepts a fixed 2048-byte sector) can't be reused here; the
// zero tag identifier that marks the end of real content within the
// reserved extent is read directly instead.
func readUDFDirectoryEntries(r io.ReaderAt, extent, length uint32) ([]*udf.FileIdentifierDescriptor, error) {
	sectors := (length + sectorSize - 1) / sectorSize
	buf := make([]byte, 0, sectors*sectorSize)
	for s := uint32(0); s < sectors; s++ {
		sector, err := readSector(r, extent+s)
		if err != nil {
			return nil, err
		}
		buf = append(buf, sector[:]...)
	}

	var fids []*udf.FileIdentifierDescriptor
	pos := 0
	for pos+2 <= len(buf) {
		if binary.LittleEndian.Uint16(buf[pos:pos+2]) == 0 {
			break // zero padding past the real content
		}
		fid := &udf.FileIdentifierDescriptor{}
		n, err := fid.Unmarshal(buf[pos:])
		if err != nil {
			return nil, err
		}
		fids = append(fids, fid)
		pos += n
	}
	return fids, nil
}

func mustRoot(arena *node.Arena, ns node.Namespace) int {
	id, err := arena.Root(ns)
	if err != nil {
		return 0
	}
	return id
}

func readSector(r io.ReaderAt, extent uint32) ([sectorSize]byte, error) {
	var buf [sectorSize]byte
	if _, err := r.ReadAt(buf[:], int64(extent)*sectorSize); err != nil {
		return buf, errs.MalformedWrap(int64(extent), 0, err, "reading logical block %d", extent)
	}
	return buf, nil
}

func readVolumeDescriptorSet(r io.ReaderAt) (*descriptor.Set, error) {
	set := &descriptor.Set{}
	for extent := uint32(consts.ISO9660_SYSTEM_AREA_SECTORS); ; extent++ {
		sector, err := readSector(r, extent)
		if err != nil {
			return nil, err
		}
		switch descriptor.PeekType(sector) {
		case descriptor.TypePrimary:
			pvd := &descriptor.Primary{}
			if err := pvd.Unmarshal(sector); err != nil {
				return nil, err
			}
			set.Primary = pvd
		case descriptor.TypeSupplementary:
			svd := &descriptor.Supplementary{}
			if err := svd.Unmarshal(sector); err != nil {
				return nil, err
			}
			set.Supplementary = append(set.Supplementary, svd)
		case descriptor.TypeBootRecord:
			boot := &descriptor.BootRecord{}
			if err := boot.Unmarshal(sector); err != nil {
				return nil, err
			}
			set.Boot = boot
		case descriptor.TypeTerminator:
			term := &descriptor.Terminator{}
			if err := term.Unmarshal(sector); err != nil {
				return nil, err
			}
			set.Terminator = term
			return set, nil
		case descriptor.TypePartition:
			part := &descriptor.Partition{}
			if err := part.Unmarshal(sector); err != nil {
				return nil, err
			}
			set.Partition = append(set.Partition, part)
		default:
			return nil, errs.Malformedf(int64(extent), 0, "unexpected volume descriptor type %d", descriptor.PeekType(sector))
		}
	}
}

// readDirectoryRecords decodes every record in a directory's extent,
// skipping the zero-length padding ECMA-119 9.1.1 uses to avoid a record
// straddling a sector boundary.
func readDirectoryRecords(r io.ReaderAt, extent, length uint32, joliet bool) ([]*directory.Record, error) {
	sectors := (length + sectorSize - 1) / sectorSize
	var records []*directory.Record
	for s := uint32(0); s < sectors; s++ {
		sector, err := readSector(r, extent+s)
		if err != nil {
			return nil, err
		}
		pos := 0
		for pos < sectorSize {
			if sector[pos] == 0 {
				break // rest of sector is padding
			}
			rec := &directory.Record{Joliet: joliet}
			if err := rec.Unmarshal(sector[pos:], int64(extent+s), int64(pos)); err != nil {
				return nil, err
			}
			records = append(records, rec)
			pos += int(rec.LengthOfDirectoryRecord)
		}
	}
	return records, nil
}

func readContinuation(r io.ReaderAt) susp.ContinuationReader {
	return func(extent, offset, length uint32) ([]byte, error) {
		sector, err := readSector(r, extent)
		if err != nil {
			return nil, err
		}
		if int(offset)+int(length) > sectorSize {
			return nil, errs.Malformedf(int64(extent), int64(offset), "SUSP continuation area overruns its sector")
		}
		return sector[offset : offset+length], nil
	}
}

// payloadKey identifies one stored byte range; records sharing it are
// hard links.
type payloadKey struct {
	extent uint32
	length uint32
}

// sharedPayload returns the Payload for (extent, length), creating it on
// first sight. Zero-length files are the exception: with no stored
// bytes, every empty file gets its own payload rather than being fused
// into one accidental hard-link group at extent 0.
func sharedPayload(r io.ReaderAt, payloads map[payloadKey]*node.Payload, extent, length uint32) *node.Payload {
	mk := func() *node.Payload {
		return &node.Payload{
			Source: &existingPayload{r: r, extent: extent, size: int64(length)},
			Extent: extent,
		}
	}
	if length == 0 {
		return mk()
	}
	key := payloadKey{extent: extent, length: length}
	if p, ok := payloads[key]; ok {
		return p
	}
	p := mk()
	payloads[key] = p
	return p
}

func buildTree(r io.ReaderAt, arena *node.Arena, ns node.Namespace, parent *node.Node, rootRec *directory.Record, opts option.OpenOptions, payloads map[payloadKey]*node.Payload) error {
	parent.Extent = rootRec.LocationOfExtent
	parent.Length = rootRec.DataLength
	parent.ModTime = rootRec.RecordingDateAndTime
	return buildChildren(r, arena, ns, parent, opts, payloads)
}

func buildChildren(r io.ReaderAt, arena *node.Arena, ns node.Namespace, parent *node.Node, opts option.OpenOptions, payloads map[payloadKey]*node.Payload) error {
	records, err := readDirectoryRecords(r, parent.Extent, parent.Length, false)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if rec.IsSpecial() {
			continue
		}
		name := rec.FileIdentifier
		if opts.StripVersionInfo {
			name = stripVersion(name)
		}

		var child *node.Node
		kind := node.KindFile
		if rec.FileFlags.Directory {
			kind = node.KindDirectory
		}
		child = arena.New(kind)
		child.Extent = rec.LocationOfExtent
		child.Length = rec.DataLength
		child.ModTime = rec.RecordingDateAndTime
		if !rec.FileFlags.Directory {
			child.Payload = sharedPayload(r, payloads, rec.LocationOfExtent, rec.DataLength)
		}

		if opts.RockRidgeEnabled && len(rec.SystemUse) > 0 {
			entries, perr := susp.Parse(rec.SystemUse, readContinuation(r))
			if perr != nil {
				return perr
			}
			rr, derr := susp.DecodeRockRidge(entries)
			if derr != nil {
				return derr
			}
			// The record's own identifier stays the node's ISO9660 name so
			// version suffixes round-trip; the Rock Ridge name remains on
			// child.RockRidge.Name, where path resolution also consults it.
			child.RockRidge = rr
			if rr.Symlink != "" {
				child.Kind = node.KindSymlink
				child.SymlinkTarget = rr.Symlink
			}
		}

		arena.Link(ns, parent, child, name)

		if kind == node.KindDirectory {
			if err := buildChildren(r, arena, ns, child, opts, payloads); err != nil {
				return err
			}
		}
	}
	return nil
}

// extentKey identifies a node's on-disk location for cross-namespace
// matching: a directory is keyed by its extent alone, a file by its
// extent and byte length.
type extentKey struct {
	extent uint32
	length uint32
	dir    bool
}

// buildExtentIndex maps every ISO9660-reachable node to its extent key,
// so a later namespace pass can attach its records to the node the
// payload already belongs to. Multiple nodes can share a key (hard links
// to the same payload); candidates are consumed in walk order.
func buildExtentIndex(arena *node.Arena) map[extentKey][]*node.Node {
	index := map[extentKey][]*node.Node{}
	rootID, err := arena.Root(node.ISO9660)
	if err != nil {
		return index
	}
	_ = arena.Walk(node.ISO9660, rootID, func(_ string, n *node.Node) error {
		if n.Parent[node.ISO9660] == -1 && n.ID != rootID {
			return nil
		}
		key := extentKey{extent: n.Extent, length: n.Length, dir: n.IsDirectory()}
		if key.dir {
			key.length = 0
		}
		index[key] = append(index[key], n)
		return nil
	})
	return index
}

// buildJolietTree walks the raw Joliet directory records and attaches
// each one to the node its extent and payload length already identify in
// the ISO9660 tree; a record with no ISO9660 counterpart (a Joliet-only
// file) gets a synthetic node of its own.
func buildJolietTree(r io.ReaderAt, arena *node.Arena, jolietParent *node.Node, rec *directory.Record, index map[extentKey][]*node.Node, payloads map[payloadKey]*node.Payload) error {
	jolietParent.Extent = rec.LocationOfExtent
	jolietParent.Length = rec.DataLength
	jolietParent.ModTime = rec.RecordingDateAndTime

	records, err := readDirectoryRecords(r, rec.LocationOfExtent, rec.DataLength, true)
	if err != nil {
		return err
	}

	for _, jr := range records {
		if jr.IsSpecial() {
			continue
		}
		key := extentKey{extent: jr.LocationOfExtent, length: jr.DataLength, dir: jr.FileFlags.Directory}
		if key.dir {
			key.length = 0
		}
		var child *node.Node
		if candidates := index[key]; len(candidates) > 0 {
			for _, c := range candidates {
				if !c.In(node.Joliet) {
					child = c
					break
				}
			}
		}
		if child == nil {
			kind := node.KindFile
			if jr.FileFlags.Directory {
				kind = node.KindDirectory
			}
			child = arena.New(kind)
			child.Extent = jr.LocationOfExtent
			child.Length = jr.DataLength
			child.ModTime = jr.RecordingDateAndTime
			if !jr.FileFlags.Directory {
				child.Payload = sharedPayload(r, payloads, jr.LocationOfExtent, jr.DataLength)
			}
		}
		arena.Link(node.Joliet, jolietParent, child, jr.FileIdentifier)
		if jr.FileFlags.Directory {
			if err := buildJolietTree(r, arena, child, jr, index, payloads); err != nil {
				return err
			}
		}
	}
	return nil
}

func stripVersion(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == ';' {
			return name[:i]
		}
	}
	return name
}

func readBootCatalog(r io.ReaderAt, pointer uint32) (*eltorito.Catalog, error) {
	sector, err := readSector(r, pointer)
	if err != nil {
		return nil, err
	}
	cat := &eltorito.Catalog{}
	if err := cat.Unmarshal(sector); err != nil {
		return nil, err
	}
	return cat, nil
}

func tryReadUDF(r io.ReaderAt) (*udf.Volume, error) {
	sector, err := readSector(r, consts.UDF_ANCHOR_BLOCK)
	if err != nil {
		return nil, err
	}
	var anchor udf.AnchorVolumeDescriptorPointer
	if err := anchor.Unmarshal(sector); err != nil {
		return nil, err
	}
	vol := &udf.Volume{Anchor: anchor}

	count := anchor.MainVolumeDescriptorSequenceExtent.Length / sectorSize
	var sectors [][sectorSize]byte
	for i := uint32(0); i < count; i++ {
		s, err := readSector(r, anchor.MainVolumeDescriptorSequenceExtent.Location+i)
		if err != nil {
			return nil, err
		}
		sectors = append(sectors, s)
	}
	if err := vol.ParseMainSequence(sectors); err != nil {
		return nil, err
	}
	return vol, nil
}

