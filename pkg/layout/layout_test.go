package layout

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/node"
)

type memSource struct {
	data []byte
}

func (s *memSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}
func (s *memSource) Size() int64 { return int64(len(s.data)) }

func addFile(t *testing.T, arena *node.Arena, parent *node.Node, name string, content []byte) *node.Node {
	t.Helper()
	n := arena.New(node.KindFile)
	n.Payload = &node.Payload{Source: &memSource{data: content}}
	arena.Link(node.ISO9660, parent, n, name)
	return n
}

func addDir(arena *node.Arena, parent *node.Node, name string) *node.Node {
	n := arena.New(node.KindDirectory)
	arena.Link(node.ISO9660, parent, n, name)
	return n
}

func TestReconcileAssignsDisjointExtents(t *testing.T) {
	arena := node.NewArena(node.ISO9660)
	root, err := arena.Get(0)
	require.NoError(t, err)

	addFile(t, arena, root, "FOO.;1", []byte("foo\n"))
	dir := addDir(arena, root, "DIR1")
	addFile(t, arena, dir, "BAR.;1", bytes.Repeat([]byte("b"), 3000))

	plan, err := Reconcile(arena, VolumeInfo{VolumeIdentifier: "TEST"})
	require.NoError(t, err)
	require.False(t, arena.Dirty)

	seen := map[uint32]bool{}
	for _, block := range plan.Blocks {
		require.False(t, seen[block.Extent], "extent %d written twice", block.Extent)
		seen[block.Extent] = true
		require.Less(t, block.Extent, plan.TotalSectors)
		require.GreaterOrEqual(t, block.Extent, uint32(consts.ISO9660_SYSTEM_AREA_SECTORS))
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	arena := node.NewArena(node.ISO9660)
	root, err := arena.Get(0)
	require.NoError(t, err)
	addFile(t, arena, root, "A.;1", []byte("aaaa"))
	addDir(arena, root, "SUB")

	info := VolumeInfo{VolumeIdentifier: "TEST"}
	first, err := Reconcile(arena, info)
	require.NoError(t, err)
	second, err := Reconcile(arena, info)
	require.NoError(t, err)

	require.Equal(t, first.TotalSectors, second.TotalSectors)
	require.Equal(t, first.NodeExtents, second.NodeExtents)
	require.Equal(t, first.NodeLengths, second.NodeLengths)
}

func TestReconcileSortsSiblingsByEncodedName(t *testing.T) {
	arena := node.NewArena(node.ISO9660)
	root, err := arena.Get(0)
	require.NoError(t, err)
	addFile(t, arena, root, "ZED.;1", []byte("z"))
	addFile(t, arena, root, "ALPHA.;1", []byte("a"))
	addFile(t, arena, root, "MID.;1", []byte("m"))

	_, err = Reconcile(arena, VolumeInfo{VolumeIdentifier: "TEST"})
	require.NoError(t, err)

	var names []string
	for _, id := range root.Children[node.ISO9660] {
		child, gerr := arena.Get(id)
		require.NoError(t, gerr)
		names = append(names, child.Name[node.ISO9660])
	}
	require.Equal(t, []string{"ALPHA.;1", "MID.;1", "ZED.;1"}, names)
}

func TestReconcileZeroLengthFileGetsNoExtent(t *testing.T) {
	arena := node.NewArena(node.ISO9660)
	root, err := arena.Get(0)
	require.NoError(t, err)
	empty := addFile(t, arena, root, "EMPTY.;1", nil)

	plan, err := Reconcile(arena, VolumeInfo{VolumeIdentifier: "TEST"})
	require.NoError(t, err)
	require.Zero(t, empty.Payload.Extent)
	require.Zero(t, plan.NodeLengths[empty.ID])
}

// TestReconcileRelocatesDeepDirectories drives the CL/RE/PL relocation:
// nesting one level past the 8-deep limit moves the over-deep directory
// under RR_MOVED while its placeholder keeps the original spot.
func TestReconcileRelocatesDeepDirectories(t *testing.T) {
	arena := node.NewArena(node.ISO9660)
	parent, err := arena.Get(0)
	require.NoError(t, err)

	dirs := make([]*node.Node, 0, 9)
	for i := 0; i < 9; i++ {
		parent = addDir(arena, parent, "D"+string(rune('1'+i)))
		dirs = append(dirs, parent)
	}

	_, err = Reconcile(arena, VolumeInfo{VolumeIdentifier: "TEST", RockRidgeEnabled: true})
	require.NoError(t, err)

	root, err := arena.Get(0)
	require.NoError(t, err)
	movedDir, ok := arena.ChildByName(node.ISO9660, root, "RR_MOVED")
	require.True(t, ok, "RR_MOVED should exist after relocation")

	// D8 is the topmost directory past the limit (depth 9, root = 1), so
	// it is the one relocated; D9 moves along inside its subtree.
	deep := dirs[7]
	require.NotNil(t, deep.Relocated)
	require.Equal(t, movedDir.ID, deep.Parent[node.ISO9660])
	require.Equal(t, deep.Extent, deep.Relocated.RealExtent)
	require.Equal(t, dirs[6].Extent, deep.Relocated.TrueParentExtent)
	require.Equal(t, dirs[7].ID, dirs[8].Parent[node.ISO9660])

	placeholder, err := arena.Get(deep.Relocated.PlaceholderID)
	require.NoError(t, err)
	require.False(t, placeholder.IsDirectory())
	require.NotNil(t, placeholder.RockRidge)
	require.NotNil(t, placeholder.RockRidge.ChildLinkExtent)
	require.Equal(t, deep.Extent, *placeholder.RockRidge.ChildLinkExtent)
	require.Equal(t, dirs[6].ID, placeholder.Parent[node.ISO9660])

	// A second reconcile must not relocate the placeholder again.
	_, err = Reconcile(arena, VolumeInfo{VolumeIdentifier: "TEST", RockRidgeEnabled: true})
	require.NoError(t, err)
	require.Len(t, movedDir.Children[node.ISO9660], 1)
}

func TestReconcileSharedPayloadGetsOneExtent(t *testing.T) {
	arena := node.NewArena(node.ISO9660)
	root, err := arena.Get(0)
	require.NoError(t, err)

	original := addFile(t, arena, root, "ONE.;1", []byte("shared"))
	link := arena.New(node.KindFile)
	link.Payload = original.Payload
	arena.Link(node.ISO9660, root, link, "TWO.;1")

	_, err = Reconcile(arena, VolumeInfo{VolumeIdentifier: "TEST"})
	require.NoError(t, err)
	require.Equal(t, original.Extent, link.Extent)
	require.NotZero(t, original.Extent)
}
