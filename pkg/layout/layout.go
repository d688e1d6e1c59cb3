// Package layout implements the layout planner (component C8): it walks
// the node arena and assigns every directory, file, path table, boot
// catalog and UDF structure a logical-block extent, producing an ordered
// set of blocks the writer can stream out without ever seeking backward.
package layout

import (
	"sort"
	"time"

	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/descriptor"
	"github.com/voliso/voliso/pkg/directory"
	"github.com/voliso/voliso/pkg/eltorito"
	"github.com/voliso/voliso/pkg/encoding"
	"github.com/voliso/voliso/pkg/errs"
	"github.com/voliso/voliso/pkg/node"
	"github.com/voliso/voliso/pkg/pathtable"
	"github.com/voliso/voliso/pkg/susp"
	"github.com/voliso/voliso/pkg/udf"
)

const sectorSize = consts.ISO9660_SECTOR_SIZE

// Block is one sector-aligned extent of output, in the final on-disk
// order the writer must emit blocks.
type Block struct {
	Extent uint32
	Data   []byte
}

// ProgressFunc reports per-file progress while payload bytes are copied
// into the plan: the file's name, cumulative bytes copied so far, the
// total payload bytes, the 1-based index of the current file, and the
// total file count. Mirrors option.ProgressCallback's signature so the
// public API can hand its callback straight through.
type ProgressFunc func(
	currentFilename string,
	bytesTransferred int64,
	totalBytes int64,
	currentFileNumber int,
	totalFileCount int,
)

// VolumeInfo carries the identifying strings and feature toggles the
// planner needs but that live on the public API's options, not the node
// arena itself.
type VolumeInfo struct {
	VolumeIdentifier string
	PublisherID      string
	ApplicationID    string
	SystemID         string
	JolietEnabled    bool
	UDFEnabled       bool
	RockRidgeEnabled bool
	BootCatalog      *eltorito.Catalog
	Progress         ProgressFunc
}

// Plan is the complete, ready-to-write output of Reconcile.
type Plan struct {
	TotalSectors uint32
	Blocks       []Block

	// BootCatalogExtent is 0 if no El Torito catalog was planned.
	BootCatalogExtent uint32
	// NodeExtents and NodeLengths map each node's arena index to its
	// assigned extent and byte length (nodes sharing a payload share its
	// extent), for callers that need to cross-reference
	// GetRecord/GetFileFromISO results against the plan.
	NodeExtents map[int]uint32
	NodeLengths map[int]uint32
}

type builder struct {
	arena  *node.Arena
	info   VolumeInfo
	next   uint32
	blocks []Block

	nodeExtent    map[int]uint32
	nodeLength    map[int]uint32
	payloadExtent map[*node.Payload]uint32

	// rrContinuation is the extent of the continuation area holding the
	// root's ER entry; 0 unless Rock Ridge is enabled.
	rrContinuation uint32

	relocations map[int]*susp.RelocationPlan
	movedDirID  int

	pathTableStarts  map[node.Namespace]uint32
	pathTableSectors map[node.Namespace]uint32
	pathTableBytes   map[node.Namespace]uint32

	udfNodes  map[int]*udfNodeInfo
	buildTime time.Time
}

// udfNodeInfo records the extents assigned to one UDF node: one sector
// for its (Extended) File Entry, and -- for directories -- the extent and
// byte length of its File Identifier Descriptor stream.
type udfNodeInfo struct {
	icbExtent uint32
	fidExtent uint32
	fidLength uint32
}

// Reconcile assigns extents to every structure the arena and info
// describe and returns a Plan ready for package writer. It is the only
// place that advances the "current extent" cursor, so every other
// component treats extents as opaque until Reconcile has run.
func Reconcile(arena *node.Arena, info VolumeInfo) (*Plan, error) {
	b := &builder{
		arena:            arena,
		info:             info,
		next:             consts.ISO9660_SYSTEM_AREA_SECTORS,
		nodeExtent:       map[int]uint32{},
		nodeLength:       map[int]uint32{},
		payloadExtent:    map[*node.Payload]uint32{},
		relocations:      map[int]*susp.RelocationPlan{},
		pathTableStarts:  map[node.Namespace]uint32{},
		pathTableSectors: map[node.Namespace]uint32{},
		pathTableBytes:   map[node.Namespace]uint32{},
		udfNodes:         map[int]*udfNodeInfo{},
	}

	if err := b.planRelocations(); err != nil {
		return nil, err
	}
	if err := b.applyRelocations(); err != nil {
		return nil, err
	}
	b.sortChildren()

	// Reserve space for the volume descriptor set: PVD, optional SVD,
	// optional Boot Record, Terminator.
	vdStart := b.next
	vdCount := uint32(2) // PVD + Terminator
	if info.JolietEnabled {
		vdCount++
	}
	if info.BootCatalog != nil {
		vdCount++
	}
	b.next += vdCount

	var bootCatalogExtent uint32
	if info.BootCatalog != nil {
		bootCatalogExtent = b.next
		b.next++
	}

	var udfAnchorExtent uint32
	if info.UDFEnabled {
		// Bridge discs place the UDF anchor at the fixed block 256;
		// everything between the ISO9660 volume descriptor set and the
		// anchor is padding the writer fills with zero sectors. The main
		// sequence itself is placed later, by assignUDFStructures.
		if b.next > consts.UDF_ANCHOR_BLOCK {
			return nil, errs.InvalidInputf("volume descriptor area overruns the fixed UDF anchor block %d", consts.UDF_ANCHOR_BLOCK)
		}
		udfAnchorExtent = consts.UDF_ANCHOR_BLOCK
		b.next = udfAnchorExtent + 1
	}

	// Path tables: 4 sets (PVD L/M, SVD L/M if Joliet), each written twice
	// (primary + optional copy), per ECMA-119 8.4.14-8.4.17.
	pvdPTLSize, pvdPTMSize, err := b.reservePathTables(node.ISO9660)
	if err != nil {
		return nil, err
	}
	b.pathTableSectors[node.ISO9660] = pvdPTLSize
	var svdPTLSize, svdPTMSize uint32
	if info.JolietEnabled {
		svdPTLSize, svdPTMSize, err = b.reservePathTables(node.Joliet)
		if err != nil {
			return nil, err
		}
		b.pathTableSectors[node.Joliet] = svdPTLSize
	}

	// Directory extents, ISO9660 first, then Joliet if enabled.
	if err := b.assignDirectoryExtents(node.ISO9660); err != nil {
		return nil, err
	}
	if err := b.finalizeRelocations(); err != nil {
		return nil, err
	}
	if info.JolietEnabled {
		if err := b.assignDirectoryExtents(node.Joliet); err != nil {
			return nil, err
		}
	}

	// File payload extents, shared across namespaces via Payload identity.
	if err := b.assignFileExtents(); err != nil {
		return nil, err
	}
	b.propagateFileExtents()

	if info.RockRidgeEnabled {
		b.rrContinuation = b.next
		b.next++
	}

	// Directory extents are emitted before the UDF pass because packing a
	// record's Rock Ridge entries can spill into continuation areas, which
	// allocate extents of their own; the UDF partition must cover them.
	if err := b.emitDirectoryBlocks(node.ISO9660); err != nil {
		return nil, err
	}
	if info.RockRidgeEnabled {
		if err := b.emitRockRidgeER(); err != nil {
			return nil, err
		}
	}
	if info.JolietEnabled {
		if err := b.emitDirectoryBlocks(node.Joliet); err != nil {
			return nil, err
		}
	}

	var udfVol *udf.Volume
	if info.UDFEnabled {
		udfVol, err = b.assignUDFStructures(udfAnchorExtent)
		if err != nil {
			return nil, err
		}
	}

	// Now that every extent is known, build the volume descriptors,
	// path tables, and UDF sectors that reference them.
	pvd, svd, err := b.buildVolumeDescriptors(vdStart, bootCatalogExtent)
	if err != nil {
		return nil, err
	}

	if err := b.emitVolumeDescriptorBlocks(vdStart, pvd, svd, info.BootCatalog, bootCatalogExtent); err != nil {
		return nil, err
	}

	if info.UDFEnabled {
		if err := b.emitUDFBlocks(udfAnchorExtent, udfVol); err != nil {
			return nil, err
		}
	}

	if err := b.emitPathTables(node.ISO9660, pvdPTLSize, pvdPTMSize); err != nil {
		return nil, err
	}
	if info.JolietEnabled {
		if err := b.emitPathTables(node.Joliet, svdPTLSize, svdPTMSize); err != nil {
			return nil, err
		}
	}

	if err := b.emitFileBlocks(); err != nil {
		return nil, err
	}

	sort.Slice(b.blocks, func(i, j int) bool { return b.blocks[i].Extent < b.blocks[j].Extent })

	arena.Dirty = false

	return &Plan{
		TotalSectors:      b.next,
		Blocks:            b.blocks,
		BootCatalogExtent: bootCatalogExtent,
		NodeExtents:       b.nodeExtent,
		NodeLengths:       b.nodeLength,
	}, nil
}

// sortChildren orders every directory's child list per its namespace's
// collation: ISO9660 and Joliet compare the encoded identifier bytes,
// which for d-characters and BMP code points is the same order as Go's
// native string comparison. Path tables, directory record streams, and
// the traversal order of every later pass all inherit this order.
func (b *builder) sortChildren() {
	for _, ns := range b.arena.EnabledNamespaces() {
		for _, n := range b.arena.Nodes {
			ids := n.Children[ns]
			if !n.IsDirectory() || len(ids) < 2 {
				continue
			}
			sort.SliceStable(ids, func(i, j int) bool {
				return b.arena.Nodes[ids[i]].Name[ns] < b.arena.Nodes[ids[j]].Name[ns]
			})
		}
	}
}

// planRelocations finds the topmost directory on each branch whose
// ISO9660 depth would exceed the 8-level limit and records a
// RelocationPlan for it. Walk visits ancestors before descendants, so
// relocatedAncestor correctly skips every directory already covered by an
// ancestor's move: once a branch is relocated under RR_MOVED, its whole
// subtree moves with it and none of its descendants need their own entry.
func (b *builder) planRelocations() error {
	if !b.arena.HasNamespace(node.ISO9660) {
		return nil
	}
	rootID, err := b.arena.Root(node.ISO9660)
	if err != nil {
		return err
	}
	return b.arena.Walk(node.ISO9660, rootID, func(path string, n *node.Node) error {
		if !n.IsDirectory() {
			return nil
		}
		if b.relocatedAncestor(n.ID) {
			return nil
		}
		depth, err := b.arena.Depth(node.ISO9660, n.ID)
		if err != nil {
			return err
		}
		if depth > consts.ISO9660_MAX_DEPTH {
			b.relocations[n.ID] = &susp.RelocationPlan{}
		}
		return nil
	})
}

// relocatedAncestor reports whether any ISO9660 ancestor of id (not
// including id itself) is already planned for relocation.
func (b *builder) relocatedAncestor(id int) bool {
	n, err := b.arena.Get(id)
	if err != nil {
		return false
	}
	cur, ok := n.Parent[node.ISO9660]
	for ok {
		if b.relocations[cur] != nil {
			return true
		}
		parent, err := b.arena.Get(cur)
		if err != nil {
			return false
		}
		cur, ok = parent.Parent[node.ISO9660]
	}
	return false
}

// applyRelocations performs the tree surgery planRelocations identified:
// each over-deep directory is unlinked from its true parent, a shallow
// placeholder node takes its place there, and the real directory is
// relinked under a single RR_MOVED directory directly beneath the
// ISO9660 root. Real extents are not known yet; finalizeRelocations fills
// in the RelocationPlan and builds the CL/RE/PL Rock Ridge fields once
// assignDirectoryExtents has run.
func (b *builder) applyRelocations() error {
	if len(b.relocations) == 0 {
		return nil
	}
	rootID, err := b.arena.Root(node.ISO9660)
	if err != nil {
		return err
	}
	root, err := b.arena.Get(rootID)
	if err != nil {
		return err
	}

	movedDir, exists := b.arena.ChildByName(node.ISO9660, root, "RR_MOVED")
	if !exists {
		movedDir = b.arena.New(node.KindDirectory)
		movedDir.ModTime = time.Now()
		mode := uint32(0040555)
		movedDir.RockRidge = &susp.RockRidge{Mode: &mode}
		b.arena.Link(node.ISO9660, root, movedDir, "RR_MOVED")
	}
	b.movedDirID = movedDir.ID

	var ids []int
	for id := range b.relocations {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		plan := b.relocations[id]
		n, err := b.arena.Get(id)
		if err != nil {
			return err
		}
		trueParentID := n.Parent[node.ISO9660]
		trueParent, err := b.arena.Get(trueParentID)
		if err != nil {
			return err
		}
		name := n.Name[node.ISO9660]

		base := n.RockRidge
		if base == nil {
			base = &susp.RockRidge{}
		}
		// The placeholder is a zero-length file record, not a directory:
		// readers that understand Rock Ridge follow its CL entry, and a
		// file record keeps it out of the path table and the depth count,
		// so a second reconcile does not try to relocate it again.
		placeholder := b.arena.New(node.KindFile)
		placeholder.ModTime = n.ModTime
		// RealExtent is still zero here; finalizeRelocations rebuilds this
		// once assignDirectoryExtents has run, so the placeholder's final
		// CL entry points at the right place. Building the CL entry now,
		// rather than after extents are known, lets directoryContentSize
		// size the placeholder's record correctly from the start.
		placeholder.RockRidge = plan.PlaceholderRockRidge(base)

		if err := b.arena.Unlink(node.ISO9660, trueParent, n); err != nil {
			return err
		}
		b.arena.Link(node.ISO9660, trueParent, placeholder, name)
		b.arena.Link(node.ISO9660, movedDir, n, name)

		plan.PlaceholderID = placeholder.ID
		plan.TrueParentID = trueParent.ID
		n.Relocated = plan
	}
	return nil
}

// finalizeRelocations fills in each RelocationPlan's real extents, now
// that assignDirectoryExtents has run over the post-surgery ISO9660 tree,
// and rebuilds the placeholder's CL-bearing Rock Ridge attributes. It
// scans the whole arena rather than just this pass's moves: directories
// relocated by an earlier reconcile keep their plan on Node.Relocated,
// and their extents can shift when the tree changes between reconciles.
func (b *builder) finalizeRelocations() error {
	for _, n := range b.arena.Nodes {
		plan := n.Relocated
		if plan == nil {
			continue
		}
		trueParent, err := b.arena.Get(plan.TrueParentID)
		if err != nil {
			return err
		}
		placeholder, err := b.arena.Get(plan.PlaceholderID)
		if err != nil {
			return err
		}
		plan.RealExtent = n.Extent
		plan.TrueParentExtent = trueParent.Extent

		base := n.RockRidge
		if base == nil {
			base = &susp.RockRidge{}
		}
		placeholder.RockRidge = plan.PlaceholderRockRidge(base)
	}
	return nil
}

// directoryContentSize returns the size a directory's "." and ".."
// records plus one record per child will occupy, used to compute how
// many sectors a directory extent needs.
func (b *builder) directoryContentSize(ns node.Namespace, id int) (int, error) {
	n, err := b.arena.Get(id)
	if err != nil {
		return 0, err
	}
	rootID, err := b.arena.Root(ns)
	if err != nil {
		return 0, err
	}

	// Simulate the same sector-boundary packing emitOneDirectory performs:
	// a record never straddles a boundary, so the gap before it counts
	// toward the stream length. Estimated record lengths are upper bounds
	// on the emitted ones, which keeps the simulated total an upper bound.
	size := 0
	add := func(recLen int) {
		if size%sectorSize+recLen > sectorSize {
			size = ((size + sectorSize - 1) / sectorSize) * sectorSize
		}
		size += recLen
	}

	selfLen, parentLen := 34, 34
	if ns == node.ISO9660 && b.info.RockRidgeEnabled {
		if id == rootID {
			selfLen += 7 + 28 // SP plus the CE pointing at the ER continuation
		}
		if n.Relocated != nil {
			selfLen += 4    // RE on "."
			parentLen += 12 // PL on ".."
		}
	}
	add(selfLen)
	add(parentLen)

	for _, cid := range n.Children[ns] {
		child, err := b.arena.Get(cid)
		if err != nil {
			return 0, err
		}
		name := child.Name[ns]
		nameLen := len(name)
		if ns == node.Joliet {
			nameLen = len(name) * 2
		}
		recLen := 33 + nameLen
		if nameLen%2 == 0 {
			recLen++
		}
		if ns == node.ISO9660 && b.info.RockRidgeEnabled {
			recLen += b.estimateSystemUseSize(child)
		}
		if recLen > 255 {
			recLen = 255 // Pack spills the overflow into a continuation area
		}
		add(recLen)
	}
	return size, nil
}

// estimateSystemUseSize returns the inline SUSP bytes a child's directory
// record will carry, ignoring continuation overflow (rare, and handled by
// susp.Pack reserving a CE entry that this estimate already budgets for
// via the fixed per-record overhead below).
func (b *builder) estimateSystemUseSize(n *node.Node) int {
	if n.RockRidge == nil {
		return 0
	}
	entries, err := susp.BuildEntries(n.RockRidge)
	if err != nil {
		return 0
	}
	total := 0
	for _, e := range entries {
		total += e.Length()
	}
	return total + 28 // headroom for a possible trailing CE entry
}

func sectorsFor(bytes int) uint32 {
	if bytes <= 0 {
		return 0
	}
	return uint32((bytes + sectorSize - 1) / sectorSize)
}

// pathTableRecordLength mirrors pathtable's own (unexported) record-length
// formula: an 8-byte fixed header plus the identifier bytes, padded to an
// even length.
func pathTableRecordLength(idLen int) int {
	n := 8 + idLen
	if idLen%2 != 0 {
		n++
	}
	return n
}

func (b *builder) reservePathTables(ns node.Namespace) (lSize, mSize uint32, err error) {
	rootID, err := b.arena.Root(ns)
	if err != nil {
		return 0, 0, err
	}
	size := 0
	err = b.arena.Walk(ns, rootID, func(_ string, n *node.Node) error {
		if !n.IsDirectory() {
			return nil
		}
		idLen := 1 // root's identifier is a single 0x00 byte
		if n.ID != rootID {
			if ns == node.Joliet {
				idBytes, eerr := encoding.EncodeUCS2BigEndian(n.Name[ns])
				if eerr != nil {
					return eerr
				}
				idLen = len(idBytes)
			} else {
				idLen = len(n.Name[ns])
			}
		}
		size += pathTableRecordLength(idLen)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	b.pathTableBytes[ns] = uint32(size)
	n := sectorsFor(size)
	if n == 0 {
		n = 1
	}
	b.pathTableStarts[ns] = b.next
	b.next += n * 4 // L + M, primary + optional copy each
	return n, n, nil
}

func (b *builder) assignDirectoryExtents(ns node.Namespace) error {
	rootID, err := b.arena.Root(ns)
	if err != nil {
		return err
	}
	return b.arena.Walk(ns, rootID, func(_ string, n *node.Node) error {
		if !n.IsDirectory() {
			return nil
		}
		size, err := b.directoryContentSize(ns, n.ID)
		if err != nil {
			return err
		}
		sectors := sectorsFor(size)
		if sectors == 0 {
			sectors = 1
		}
		n.Extent = b.next
		n.Length = sectors * sectorSize
		b.nodeExtent[n.ID] = n.Extent
		b.nodeLength[n.ID] = n.Length
		b.next += sectors
		return nil
	})
}

func (b *builder) assignFileExtents() error {
	seen := map[*node.Payload]bool{}
	visit := func(ns node.Namespace) error {
		if !b.arena.HasNamespace(ns) {
			return nil
		}
		rootID, err := b.arena.Root(ns)
		if err != nil {
			return err
		}
		return b.arena.Walk(ns, rootID, func(_ string, n *node.Node) error {
			if n.Payload == nil || seen[n.Payload] {
				return nil
			}
			seen[n.Payload] = true
			sectors := sectorsFor(int(n.Payload.Source.Size()))
			if sectors == 0 {
				// zero-length file: representable, but no extent allocated
				n.Payload.Extent = 0
				return nil
			}
			n.Payload.Extent = b.next
			b.payloadExtent[n.Payload] = n.Payload.Extent
			b.next += sectors
			return nil
		})
	}
	if err := visit(node.ISO9660); err != nil {
		return err
	}
	if err := visit(node.Joliet); err != nil {
		return err
	}
	return visit(node.UDF)
}

// propagateFileExtents stamps every node sharing a payload with that
// payload's assigned extent/length, run after assignFileExtents so hard
// links in either namespace resolve to the same location.
func (b *builder) propagateFileExtents() {
	for _, n := range b.arena.Nodes {
		if n.Payload == nil {
			continue
		}
		n.Extent = n.Payload.Extent
		n.Length = uint32(n.Payload.Source.Size())
		b.nodeExtent[n.ID] = n.Extent
		b.nodeLength[n.ID] = n.Length
	}
}

// assignUDFStructures lays out the whole UDF bridge: one (Extended) File
// Entry per node in the UDF tree, one File Identifier Descriptor stream
// per UDF directory, the File Set Descriptor naming the root ICB, the
// Logical Volume Integrity Descriptor, and finally the fixed five-sector
// main volume descriptor sequence. The single UDF partition spans the
// whole image (location 0, partition reference 0), so every LBAddr below
// is just the absolute sector number.
func (b *builder) assignUDFStructures(anchorExtent uint32) (*udf.Volume, error) {
	vol := &udf.Volume{}

	rootID, err := b.arena.Root(node.UDF)
	if err != nil {
		return nil, err
	}

	var order []int
	if err := b.arena.Walk(node.UDF, rootID, func(_ string, n *node.Node) error {
		b.udfNodes[n.ID] = &udfNodeInfo{}
		order = append(order, n.ID)
		return nil
	}); err != nil {
		return nil, err
	}

	for _, id := range order {
		b.udfNodes[id].icbExtent = b.next
		b.next++
	}

	for _, id := range order {
		n, err := b.arena.Get(id)
		if err != nil {
			return nil, err
		}
		if !n.IsDirectory() {
			continue
		}
		size, err := b.udfDirectoryContentSize(n)
		if err != nil {
			return nil, err
		}
		sectors := sectorsFor(size)
		if sectors == 0 {
			sectors = 1
		}
		info := b.udfNodes[id]
		info.fidExtent = b.next
		info.fidLength = sectors * sectorSize
		b.next += sectors
	}

	fsdExtent := b.next
	b.next++

	lvidExtent := b.next
	b.next++

	mainSeq := b.next
	b.next += 5 // Primary, Partition, LogicalVolume, UnallocatedSpace, Terminating

	vol.Anchor = udf.AnchorVolumeDescriptorPointer{
		MainVolumeDescriptorSequenceExtent: udf.ExtentAD{Length: 5 * sectorSize, Location: mainSeq},
	}

	vol.Primary = udf.PrimaryVolumeDescriptor{
		VolumeIdentifier:            b.info.VolumeIdentifier,
		VolumeSequenceNumber:        1,
		MaximumVolumeSequenceNumber: 1,
		VolumeSetIdentifier:         b.info.VolumeIdentifier,
		RecordingDateAndTime:        b.now(),
		ImplementationIdentifier:    udf.NewDomainIdentifier(),
	}

	vol.Partition = udf.PartitionDescriptor{
		VolumeDescriptorSequenceNumber: 1,
		PartitionFlags:                 1, // allocated
		PartitionNumber:                0,
		PartitionContents:              udf.NewEntityID("+NSR02"),
		AccessType:                     1, // overwritable
		PartitionStartingLocation:      0,
		ImplementationIdentifier:       udf.NewDomainIdentifier(),
	}

	rootInfo := b.udfNodes[rootID]
	vol.LogicalVolume = udf.LogicalVolumeDescriptor{
		VolumeDescriptorSequenceNumber: 2,
		LogicalVolumeIdentifier:        b.info.VolumeIdentifier,
		LogicalBlockSize:               sectorSize,
		DomainIdentifier:               udf.NewDomainIdentifier(),
		LogicalVolumeContentsUse: udf.LongAD{
			ExtentLength:   sectorSize,
			ExtentLocation: udf.LBAddr{LogicalBlockNumber: fsdExtent},
		},
		IntegritySequenceExtent: udf.ExtentAD{Length: sectorSize, Location: lvidExtent},
	}

	vol.FileSet = udf.FileSetDescriptor{
		RecordingDateAndTime:    b.now(),
		InterchangeLevel:        3,
		MaximumInterchangeLevel: 3,
		CharacterSetList:        1,
		MaximumCharacterSetList: 1,
		LogicalVolumeIdentifier: b.info.VolumeIdentifier,
		DomainIdentifier:        udf.NewDomainIdentifier(),
		RootDirectoryICB: udf.LongAD{
			ExtentLength:   sectorSize,
			ExtentLocation: udf.LBAddr{LogicalBlockNumber: rootInfo.icbExtent},
		},
	}

	// Partition length is only known once every UDF structure this pass
	// allocates has its extent, which is every allocation this builder
	// still has to make: nothing after assignUDFStructures advances next.
	vol.Partition.PartitionLength = b.next

	vol.Integrity = udf.LogicalVolumeIntegrityDescriptor{
		RecordingDateAndTime: b.now(),
		IntegrityType:        udf.IntegrityClosed,
		NumberOfPartitions:   1,
		FreeSpaceTable:       []uint32{0},
		SizeTable:            []uint32{vol.Partition.PartitionLength},
	}

	return vol, nil
}

// udfDirectoryContentSize measures the byte length of n's File Identifier
// Descriptor stream: one parent-link entry plus one entry per child. The
// ICB/extent values used here are placeholders -- they do not affect a
// FID's marshaled length, only its content -- so this can run before
// every node's extent is assigned.
func (b *builder) udfDirectoryContentSize(n *node.Node) (int, error) {
	size := 0
	parentFID := &udf.FileIdentifierDescriptor{
		FileCharacteristics: consts.UDF_FID_CHAR_PARENT | consts.UDF_FID_CHAR_DIRECTORY,
	}
	size += len(parentFID.Marshal(0))
	for _, cid := range n.Children[node.UDF] {
		child, err := b.arena.Get(cid)
		if err != nil {
			return 0, err
		}
		fid := &udf.FileIdentifierDescriptor{FileIdentifier: child.Name[node.UDF]}
		if child.IsDirectory() {
			fid.FileCharacteristics = consts.UDF_FID_CHAR_DIRECTORY
		}
		size += len(fid.Marshal(0))
	}
	return size, nil
}

func (b *builder) buildVolumeDescriptors(vdStart, bootCatalogExtent uint32) (*descriptor.Primary, *descriptor.Supplementary, error) {
	rootISO, err := b.arena.Get(mustRoot(b.arena, node.ISO9660))
	if err != nil {
		return nil, nil, err
	}

	pvd := descriptor.NewPrimary()
	pvd.SystemIdentifier = b.info.SystemID
	pvd.VolumeIdentifier = b.info.VolumeIdentifier
	pvd.VolumeSpaceSize = b.next
	pvd.VolumeSetSize = 1
	pvd.VolumeSequenceNumber = 1
	pvd.LogicalBlockSize = sectorSize
	pvd.RootDirectoryRecord = &directory.Record{
		FileIdentifier:       "\x00",
		LocationOfExtent:     rootISO.Extent,
		DataLength:           rootISO.Length,
		FileFlags:            directory.FileFlags{Directory: true},
		RecordingDateAndTime: rootISO.ModTime,
	}
	pvd.PublisherIdentifier = b.info.PublisherID
	pvd.ApplicationIdentifier = b.info.ApplicationID
	pvd.VolumeCreationDateAndTime = time.Now()
	pvd.VolumeModificationDateAndTime = time.Now()

	pvdSectors := b.pathTableSectors[node.ISO9660]
	pvdStart := b.pathTableStarts[node.ISO9660]
	pvd.PathTableSize = b.pathTableBytes[node.ISO9660]
	pvd.LocationOfTypeLPathTable = pvdStart
	pvd.LocationOfOptionalTypeLPathTable = pvdStart + pvdSectors
	pvd.LocationOfTypeMPathTable = pvdStart + 2*pvdSectors
	pvd.LocationOfOptionalTypeMPathTable = pvdStart + 3*pvdSectors

	var svd *descriptor.Supplementary
	if b.info.JolietEnabled {
		rootJoliet, err := b.arena.Get(mustRoot(b.arena, node.Joliet))
		if err != nil {
			return nil, nil, err
		}
		svd = descriptor.NewSupplementary()
		svd.SystemIdentifier = b.info.SystemID
		svd.VolumeIdentifier = b.info.VolumeIdentifier
		svd.VolumeSpaceSize = b.next
		svd.VolumeSetSize = 1
		svd.VolumeSequenceNumber = 1
		svd.LogicalBlockSize = sectorSize
		svd.RootDirectoryRecord = &directory.Record{
			FileIdentifier:       "\x00",
			LocationOfExtent:     rootJoliet.Extent,
			DataLength:           rootJoliet.Length,
			FileFlags:            directory.FileFlags{Directory: true},
			RecordingDateAndTime: rootJoliet.ModTime,
			Joliet:               true,
		}
		svd.PublisherIdentifier = b.info.PublisherID
		svd.ApplicationIdentifier = b.info.ApplicationID

		svdSectors := b.pathTableSectors[node.Joliet]
		svdStart := b.pathTableStarts[node.Joliet]
		svd.PathTableSize = b.pathTableBytes[node.Joliet]
		svd.LocationOfTypeLPathTable = svdStart
		svd.LocationOfOptionalTypeLPathTable = svdStart + svdSectors
		svd.LocationOfTypeMPathTable = svdStart + 2*svdSectors
		svd.LocationOfOptionalTypeMPathTable = svdStart + 3*svdSectors
	}

	_ = bootCatalogExtent
	return pvd, svd, nil
}

func mustRoot(arena *node.Arena, ns node.Namespace) int {
	id, err := arena.Root(ns)
	if err != nil {
		return 0
	}
	return id
}

func (b *builder) emitVolumeDescriptorBlocks(vdStart uint32, pvd *descriptor.Primary, svd *descriptor.Supplementary, cat *eltorito.Catalog, catExtent uint32) error {
	sector := vdStart

	pvdBytes, err := pvd.Marshal()
	if err != nil {
		return err
	}
	b.emit(sector, pvdBytes[:])
	sector++

	if svd != nil {
		svdBytes, err := svd.Marshal()
		if err != nil {
			return err
		}
		b.emit(sector, svdBytes[:])
		sector++
	}

	if cat != nil {
		boot := descriptor.NewElToritoBootRecord(catExtent)
		bootBytes, err := boot.Marshal()
		if err != nil {
			return err
		}
		b.emit(sector, bootBytes[:])
		sector++

		catBytes, err := cat.Marshal()
		if err != nil {
			return err
		}
		b.emit(catExtent, catBytes[:])
	}

	term := descriptor.NewTerminator()
	termBytes, err := term.Marshal()
	if err != nil {
		return err
	}
	b.emit(sector, termBytes[:])

	return nil
}

func (b *builder) emitUDFBlocks(anchorExtent uint32, vol *udf.Volume) error {
	anchorBytes := vol.Anchor.Marshal()
	b.emit(anchorExtent, anchorBytes[:])

	sectors, err := vol.MainSequenceSectors(vol.Anchor.MainVolumeDescriptorSequenceExtent.Location)
	if err != nil {
		return err
	}
	for i, s := range sectors {
		b.emit(vol.Anchor.MainVolumeDescriptorSequenceExtent.Location+uint32(i), s[:])
	}

	lvidExtent := vol.LogicalVolume.IntegritySequenceExtent.Location
	lvidBytes := vol.Integrity.Marshal(lvidExtent)
	b.emit(lvidExtent, lvidBytes[:])

	fsdExtent := vol.LogicalVolume.LogicalVolumeContentsUse.ExtentLocation.LogicalBlockNumber
	fsdBytes := vol.FileSet.Marshal(fsdExtent)
	b.emit(fsdExtent, fsdBytes)

	return b.emitUDFFileStructures()
}

// emitUDFFileStructures writes one (Extended) File Entry per UDF node,
// plus one File Identifier Descriptor stream per UDF directory. It is the
// UDF analogue of emitDirectoryBlocks/emitFileBlocks, but walks node.UDF
// rather than node.ISO9660/node.Joliet since the three trees can diverge
// after relocation.
func (b *builder) emitUDFFileStructures() error {
	rootID, err := b.arena.Root(node.UDF)
	if err != nil {
		return err
	}
	return b.arena.Walk(node.UDF, rootID, func(_ string, n *node.Node) error {
		info := b.udfNodes[n.ID]

		parentICB := info.icbExtent
		if n.Parent[node.UDF] != -1 {
			if parentInfo := b.udfNodes[n.Parent[node.UDF]]; parentInfo != nil {
				parentICB = parentInfo.icbExtent
			}
		}

		icb := udf.ICBTag{
			StrategyType:      4,
			NumEntries:        1,
			FileType:          udfFileType(n),
			ParentICBLocation: udf.LBAddr{LogicalBlockNumber: parentICB},
		}

		var allocs []udf.LongAD
		var infoLength, size uint64
		switch {
		case n.IsDirectory():
			allocs = []udf.LongAD{{
				ExtentLength:   info.fidLength,
				ExtentLocation: udf.LBAddr{LogicalBlockNumber: info.fidExtent},
			}}
			infoLength = uint64(info.fidLength)
			size = infoLength
		case n.Payload != nil:
			payloadSize := n.Payload.Source.Size()
			if payloadSize > 0 {
				allocs = []udf.LongAD{{
					ExtentLength:   uint32(payloadSize),
					ExtentLocation: udf.LBAddr{LogicalBlockNumber: n.Payload.Extent},
				}}
			}
			infoLength = uint64(payloadSize)
			size = infoLength
		}

		now := b.now()
		fe := &udf.ExtendedFileEntry{
			ICBTag:                   icb,
			Permissions:              udfPermissions(n),
			FileLinkCount:            1,
			InformationLength:        infoLength,
			ObjectSize:               size,
			AccessTime:               now,
			ModificationTime:         now,
			CreationTime:             now,
			AttributeTime:            now,
			ImplementationIdentifier: udf.NewDomainIdentifier(),
			AllocationDescriptors:    allocs,
		}
		feBytes, err := fe.Marshal(info.icbExtent)
		if err != nil {
			return err
		}
		b.emit(info.icbExtent, feBytes)

		if n.IsDirectory() {
			return b.emitUDFDirectory(n, info)
		}
		return nil
	})
}

// emitUDFDirectory marshals n's File Identifier Descriptor stream: a
// parent-link entry followed by one entry per child, in arena order.
func (b *builder) emitUDFDirectory(n *node.Node, info *udfNodeInfo) error {
	buf := make([]byte, 0, info.fidLength)

	parentICB := info.icbExtent
	if n.Parent[node.UDF] != -1 {
		if parentInfo := b.udfNodes[n.Parent[node.UDF]]; parentInfo != nil {
			parentICB = parentInfo.icbExtent
		}
	}
	parentFID := &udf.FileIdentifierDescriptor{
		FileCharacteristics: consts.UDF_FID_CHAR_PARENT | consts.UDF_FID_CHAR_DIRECTORY,
		ICB:                 udf.LongAD{ExtentLocation: udf.LBAddr{LogicalBlockNumber: parentICB}},
	}
	buf = append(buf, parentFID.Marshal(info.fidExtent)...)

	for _, cid := range n.Children[node.UDF] {
		child, err := b.arena.Get(cid)
		if err != nil {
			return err
		}
		childInfo := b.udfNodes[cid]
		fid := &udf.FileIdentifierDescriptor{
			FileIdentifier: child.Name[node.UDF],
			ICB:            udf.LongAD{ExtentLocation: udf.LBAddr{LogicalBlockNumber: childInfo.icbExtent}},
		}
		if child.IsDirectory() {
			fid.FileCharacteristics = consts.UDF_FID_CHAR_DIRECTORY
		}
		buf = append(buf, fid.Marshal(info.fidExtent)...)
	}

	if uint32(len(buf)) > info.fidLength {
		return errs.Internalf("udf directory %q file identifier stream (%d bytes) exceeds reserved length %d", n.Name[node.UDF], len(buf), info.fidLength)
	}
	b.emitPadded(info.fidExtent, buf, info.fidLength/sectorSize)
	return nil
}

// udfFileType maps a node's kind to the ICBTag FileType byte.
func udfFileType(n *node.Node) byte {
	switch n.Kind {
	case node.KindDirectory:
		return consts.UDF_ICB_FILE_TYPE_DIRECTORY
	case node.KindSymlink:
		return consts.UDF_ICB_FILE_TYPE_SYMLINK
	default:
		return consts.UDF_ICB_FILE_TYPE_FILE
	}
}

// udfPermissions derives UDF's 32-bit permission field from a node's Rock
// Ridge mode when present, otherwise a directory/file default.
func udfPermissions(n *node.Node) uint32 {
	if n.RockRidge != nil && n.RockRidge.Mode != nil {
		return *n.RockRidge.Mode & 0o7777
	}
	if n.IsDirectory() {
		return 0o755
	}
	return 0o644
}

// now returns the timestamp stamped onto UDF structures this pass
// writes; every file entry in one image build shares a single wall-clock
// moment rather than recording a separate one per node.
func (b *builder) now() time.Time {
	if b.buildTime.IsZero() {
		b.buildTime = time.Now()
	}
	return b.buildTime
}

func (b *builder) emitPathTables(ns node.Namespace, lSectors, mSectors uint32) error {
	rootID, err := b.arena.Root(ns)
	if err != nil {
		return err
	}

	type dirInfo struct {
		id     int
		depth  int
		number uint16
	}
	var dirs []dirInfo
	if err := b.arena.Walk(ns, rootID, func(_ string, n *node.Node) error {
		if !n.IsDirectory() {
			return nil
		}
		depth, derr := b.arena.Depth(ns, n.ID)
		if derr != nil {
			return derr
		}
		dirs = append(dirs, dirInfo{id: n.ID, depth: depth})
		return nil
	}); err != nil {
		return err
	}

	sort.SliceStable(dirs, func(i, j int) bool { return dirs[i].depth < dirs[j].depth })
	numberOf := map[int]uint16{}
	for i := range dirs {
		dirs[i].number = uint16(i + 1)
		numberOf[dirs[i].id] = dirs[i].number
	}

	var records []*pathtable.Record
	for _, d := range dirs {
		n, err := b.arena.Get(d.id)
		if err != nil {
			return err
		}
		parentID := n.Parent[ns]
		if n.ID == rootID {
			parentID = rootID
		}
		var idBytes []byte
		if n.ID == rootID {
			idBytes = []byte{0x00}
		} else if ns == node.Joliet {
			idBytes, err = encoding.EncodeUCS2BigEndian(n.Name[ns])
			if err != nil {
				return err
			}
		} else {
			idBytes = []byte(n.Name[ns])
		}
		records = append(records, &pathtable.Record{
			ExtentLocation:        n.Extent,
			ParentDirectoryNumber: numberOf[parentID],
			IdentifierBytes:       idBytes,
		})
	}

	lBytes := pathtable.Marshal(records, false)
	mBytes := pathtable.Marshal(records, true)

	// Locations of the path tables were reserved in Reconcile's
	// reservePathTables pass, which recorded each namespace's starting
	// extent; emitting at that recorded extent puts the bytes where the
	// volume descriptor says they are.
	// Primary copy, then optional copy, L then M.
	start := b.pathTableStart(ns)
	b.emitPadded(start, lBytes, lSectors)
	b.emitPadded(start+lSectors, lBytes, lSectors)
	b.emitPadded(start+2*lSectors, mBytes, mSectors)
	b.emitPadded(start+2*lSectors+mSectors, mBytes, mSectors)

	return nil
}

// pathTableStart returns the first extent of namespace ns's path tables,
// as recorded by reservePathTables when it reserved them.
func (b *builder) pathTableStart(ns node.Namespace) uint32 {
	return b.pathTableStarts[ns]
}

func (b *builder) emit(sector uint32, data []byte) {
	buf := make([]byte, sectorSize)
	copy(buf, data)
	b.blocks = append(b.blocks, Block{Extent: sector, Data: buf})
}

func (b *builder) emitPadded(startSector uint32, data []byte, sectors uint32) {
	for i := uint32(0); i < sectors; i++ {
		lo := int(i) * sectorSize
		hi := lo + sectorSize
		if lo >= len(data) {
			b.emit(startSector+i, nil)
			continue
		}
		if hi > len(data) {
			hi = len(data)
		}
		b.emit(startSector+i, data[lo:hi])
	}
}

func (b *builder) emitDirectoryBlocks(ns node.Namespace) error {
	rootID, err := b.arena.Root(ns)
	if err != nil {
		return err
	}
	return b.arena.Walk(ns, rootID, func(_ string, n *node.Node) error {
		if !n.IsDirectory() {
			return nil
		}
		return b.emitOneDirectory(ns, n)
	})
}

// attachSystemUse packs rr's Rock Ridge entries into rec's system-use
// area. Overflow that does not fit inline (a long NM or SL chain) spills
// into continuation areas: each one gets a fresh extent here, emitted
// immediately, with the CE chain rewritten to point at the real extents.
func (b *builder) attachSystemUse(rec *directory.Record, rr *susp.RockRidge) error {
	entries, err := susp.BuildEntries(rr)
	if err != nil {
		return err
	}
	header := 33 + len(rec.FileIdentifier)
	if len(rec.FileIdentifier)%2 == 0 {
		header++ // name padding byte
	}
	packed, err := susp.Pack(entries, 255-header, sectorSize)
	if err != nil {
		return err
	}
	if len(packed.Continuation) > 0 {
		extents := make([]uint32, len(packed.Continuation))
		for i := range extents {
			extents[i] = b.next
			b.next++
		}
		for i, block := range packed.Continuation {
			if err := packed.Relocate(i-1, extents[i], 0, uint32(len(block))); err != nil {
				return err
			}
		}
		for i, block := range packed.Continuation {
			b.emit(extents[i], block)
		}
	}
	rec.SystemUse = packed.Inline
	return nil
}

// emitRockRidgeER writes the continuation area the root's "." record
// points at via CE: the single ER entry identifying the Rock Ridge
// revision in use.
func (b *builder) emitRockRidgeER() error {
	er, err := susp.RockRidgeER().Marshal()
	if err != nil {
		return err
	}
	b.emit(b.rrContinuation, er)
	return nil
}

func (b *builder) emitOneDirectory(ns node.Namespace, n *node.Node) error {
	var buf []byte

	self := &directory.Record{
		FileIdentifier:       "\x00",
		LocationOfExtent:     n.Extent,
		DataLength:           n.Length,
		FileFlags:            directory.FileFlags{Directory: true},
		RecordingDateAndTime: n.ModTime,
		Joliet:               ns == node.Joliet,
	}
	if ns == node.ISO9660 && b.info.RockRidgeEnabled {
		rootID, rerr := b.arena.Root(node.ISO9660)
		if rerr != nil {
			return rerr
		}
		if n.ID == rootID {
			// SUSP requires SP on the root's "." record; the ER entry
			// identifying the RRIP revision lives in a continuation area
			// because it does not fit a 255-byte record alongside SP.
			sp, merr := susp.EncodeSP().Marshal()
			if merr != nil {
				return merr
			}
			erLen := uint32(susp.RockRidgeER().Length())
			ce, merr := susp.EncodeCE(b.rrContinuation, 0, erLen).Marshal()
			if merr != nil {
				return merr
			}
			self.SystemUse = append(sp, ce...)
		}
		if n.Relocated != nil {
			if err := b.attachSystemUse(self, n.Relocated.RelocatedSelfRockRidge(&susp.RockRidge{})); err != nil {
				return err
			}
		}
	}
	selfBytes, err := self.Marshal()
	if err != nil {
		return err
	}
	buf = append(buf, selfBytes...)

	parentID := n.Parent[ns]
	parent, err := b.arena.Get(parentID)
	if err != nil {
		// root's ".." points at itself
		parent = n
	}
	parentRec := &directory.Record{
		FileIdentifier:       "\x01",
		LocationOfExtent:     parent.Extent,
		DataLength:           parent.Length,
		FileFlags:            directory.FileFlags{Directory: true},
		RecordingDateAndTime: parent.ModTime,
		Joliet:               ns == node.Joliet,
	}
	if ns == node.ISO9660 && b.info.RockRidgeEnabled && n.Relocated != nil {
		if err := b.attachSystemUse(parentRec, n.Relocated.RelocatedParentRockRidge(&susp.RockRidge{})); err != nil {
			return err
		}
	}
	parentBytes, err := parentRec.Marshal()
	if err != nil {
		return err
	}
	buf = append(buf, parentBytes...)

	for _, cid := range n.Children[ns] {
		child, err := b.arena.Get(cid)
		if err != nil {
			return err
		}
		rec := &directory.Record{
			FileIdentifier:       child.Name[ns],
			LocationOfExtent:     child.Extent,
			DataLength:           child.Length,
			RecordingDateAndTime: child.ModTime,
			Joliet:               ns == node.Joliet,
			FileFlags:            directory.FileFlags{Directory: child.IsDirectory()},
		}
		if ns == node.ISO9660 && b.info.RockRidgeEnabled && child.RockRidge != nil {
			if err := b.attachSystemUse(rec, child.RockRidge); err != nil {
				return err
			}
		}
		recBytes, err := rec.Marshal()
		if err != nil {
			return err
		}
		if len(buf)+len(recBytes) > sectorSize && len(buf)%sectorSize != 0 {
			pad := sectorSize - len(buf)%sectorSize
			buf = append(buf, make([]byte, pad)...)
		}
		buf = append(buf, recBytes...)
	}

	if len(buf) > int(n.Length) {
		return errs.Internalf("directory %q record stream is %d bytes, exceeds its reserved %d bytes", n.Name[ns], len(buf), n.Length)
	}
	b.emitPadded(n.Extent, buf, n.Length/sectorSize)
	return nil
}

func (b *builder) emitFileBlocks() error {
	// Collect the distinct payloads first so progress reporting can name
	// a total up front; order matches extent assignment (first ISO9660
	// appearance, then Joliet, then UDF).
	type pending struct {
		name    string
		payload *node.Payload
	}
	var files []pending
	var totalBytes int64
	seen := map[*node.Payload]bool{}
	collect := func(ns node.Namespace) error {
		if !b.arena.HasNamespace(ns) {
			return nil
		}
		rootID, err := b.arena.Root(ns)
		if err != nil {
			return err
		}
		return b.arena.Walk(ns, rootID, func(_ string, n *node.Node) error {
			if n.Payload == nil || seen[n.Payload] {
				return nil
			}
			seen[n.Payload] = true
			files = append(files, pending{name: n.Name[ns], payload: n.Payload})
			totalBytes += n.Payload.Source.Size()
			return nil
		})
	}
	if err := collect(node.ISO9660); err != nil {
		return err
	}
	if err := collect(node.Joliet); err != nil {
		return err
	}
	if err := collect(node.UDF); err != nil {
		return err
	}

	var transferred int64
	for i, f := range files {
		transferred += f.payload.Source.Size()
		sectors := sectorsFor(int(f.payload.Source.Size()))
		if sectors == 0 {
			// zero-length file, no extent to fill
			if b.info.Progress != nil {
				b.info.Progress(f.name, transferred, totalBytes, i+1, len(files))
			}
			continue
		}
		r, err := f.payload.Source.Open()
		if err != nil {
			return errs.Internalf("opening payload for %s: %v", f.name, err)
		}
		data := make([]byte, sectors*sectorSize)
		total := 0
		for {
			cnt, rerr := r.Read(data[total:])
			total += cnt
			if rerr != nil {
				break
			}
		}
		r.Close()
		for s := uint32(0); s < sectors; s++ {
			lo := int(s) * sectorSize
			b.emit(f.payload.Extent+s, data[lo:lo+sectorSize])
		}
		if b.info.Progress != nil {
			b.info.Progress(f.name, transferred, totalBytes, i+1, len(files))
		}
	}
	return nil
}
