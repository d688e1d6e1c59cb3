// Package node implements the in-memory filesystem model (component C6):
// a flat arena of nodes linked by parent/child and hard-link edges stored
// as arena indices, with one child list per namespace (ISO9660, Joliet,
// UDF, BootCatalog) so that a single node can occupy different positions
// -- or be entirely absent -- in each tree the image exposes.
package node

import (
	"io"
	"sort"
	"strings"
	"time"

	"github.com/voliso/voliso/pkg/errs"
	"github.com/voliso/voliso/pkg/susp"
)

// Namespace identifies one of the parallel directory hierarchies a single
// arena can expose at once.
type Namespace int

const (
	ISO9660 Namespace = iota
	Joliet
	UDF
	BootCatalog
	namespaceCount
)

func (ns Namespace) String() string {
	switch ns {
	case ISO9660:
		return "iso9660"
	case Joliet:
		return "joliet"
	case UDF:
		return "udf"
	case BootCatalog:
		return "boot-catalog"
	default:
		return "unknown"
	}
}

// Kind is the type of filesystem object a Node represents.
type Kind int

const (
	KindDirectory Kind = iota
	KindFile
	KindSymlink
	KindBootImage
)

// noParent marks a node with no parent in a given namespace (either the
// root, or simply absent from that namespace's tree).
const noParent = -1

// Source supplies a payload's bytes on demand. AddFile backs this with an
// *os.File opened lazily at write time; AddFp backs it with a buffered
// copy of the reader handed to it, since the caller's io.Reader may not
// be re-readable once the call returns.
type Source interface {
	// Open returns a fresh reader positioned at the start of the payload.
	Open() (io.ReadCloser, error)
	// Size is the payload's length in bytes.
	Size() int64
}

// Payload is file content shared by every hard-linked Node that points at
// it. Identity, not byte equality, defines a hard-link group: two nodes
// sharing a Payload pointer are links to the same file.
type Payload struct {
	Source Source
	// Extent is assigned by the layout planner; zero until then.
	Extent uint32
}

// Node is one filesystem object in the arena, addressed by its index.
type Node struct {
	ID   int
	Kind Kind

	// Parent maps a namespace to the arena index of this node's directory
	// parent in that namespace's tree, or noParent if the node is that
	// namespace's root or was never linked into it. Unlink deletes the
	// namespace's key, so a node removed from a tree has no entry there.
	Parent map[Namespace]int

	// Children lists child arena indices in on-disk order for each
	// namespace this node participates in as a directory.
	Children map[Namespace][]int

	// Name holds this node's identifier as it appears under its parent in
	// each namespace (ISO9660 8.3-mangled, Joliet UTF-16-safe, UDF CS0).
	Name map[Namespace]string

	// Payload is non-nil for KindFile and KindSymlink nodes whose content
	// lives on the image; multiple nodes share one Payload when hard
	// linked.
	Payload *Payload

	// SymlinkTarget holds the link text for KindSymlink nodes.
	SymlinkTarget string

	RockRidge *susp.RockRidge

	ModTime time.Time

	// Extent/Length are filled in by the layout planner for directories
	// (content is the marshaled child directory records) and are derived
	// from Payload for files.
	Extent uint32
	Length uint32

	// Relocated is set by the layout planner when this directory's real
	// depth exceeds ISO9660's 8-level limit and it had to be linked in via
	// the Rock Ridge CL/RE/PL triangle.
	Relocated *susp.RelocationPlan
}

func newNode(id int, kind Kind) *Node {
	return &Node{
		ID:       id,
		Kind:     kind,
		Parent:   map[Namespace]int{ISO9660: noParent, Joliet: noParent, UDF: noParent, BootCatalog: noParent},
		Children: map[Namespace][]int{},
		Name:     map[Namespace]string{},
	}
}

// IsDirectory reports whether n is a directory in any namespace.
func (n *Node) IsDirectory() bool { return n.Kind == KindDirectory }

// In reports whether n participates in namespace ns (has a name there).
func (n *Node) In(ns Namespace) bool {
	_, ok := n.Name[ns]
	return ok
}

// Arena is the flat node store backing every namespace tree exposed by an
// open image. Index 0 is always the root directory, shared across every
// namespace the image enables.
type Arena struct {
	Nodes []*Node
	// Roots maps a namespace to its root node index; a namespace absent
	// from this map is disabled entirely (e.g. no UDF bridge requested).
	Roots map[Namespace]int
	// Dirty is set by every mutating operation and cleared by the layout
	// planner's reconcile pass; readers of derived fields (extents,
	// lengths, path tables) must check it and refuse to serve stale data.
	Dirty bool
}

// NewArena creates an empty arena with a single root directory node
// present in every namespace listed in enabled.
func NewArena(enabled ...Namespace) *Arena {
	a := &Arena{Roots: map[Namespace]int{}}
	root := newNode(0, KindDirectory)
	root.ModTime = time.Now()
	for _, ns := range enabled {
		root.Name[ns] = ""
		a.Roots[ns] = 0
	}
	a.Nodes = append(a.Nodes, root)
	a.Dirty = true
	return a
}

// EnabledNamespaces reports which namespaces the root participates in.
func (a *Arena) EnabledNamespaces() []Namespace {
	var out []Namespace
	for ns := ISO9660; ns < namespaceCount; ns++ {
		if _, ok := a.Roots[ns]; ok {
			out = append(out, ns)
		}
	}
	return out
}

// HasNamespace reports whether ns is enabled for this arena.
func (a *Arena) HasNamespace(ns Namespace) bool {
	_, ok := a.Roots[ns]
	return ok
}

// Root returns the root node index for namespace ns.
func (a *Arena) Root(ns Namespace) (int, error) {
	id, ok := a.Roots[ns]
	if !ok {
		return 0, errs.InvalidInputf("namespace %s is not enabled on this image", ns)
	}
	return id, nil
}

// Get returns the node at index id.
func (a *Arena) Get(id int) (*Node, error) {
	if id < 0 || id >= len(a.Nodes) {
		return nil, errs.Internalf("node index %d out of range", id)
	}
	return a.Nodes[id], nil
}

// New allocates a fresh node of the given kind and appends it to the
// arena, returning its index. It is not linked into any namespace tree
// until the caller appends it to a parent's Children and sets its Name.
func (a *Arena) New(kind Kind) *Node {
	n := newNode(len(a.Nodes), kind)
	a.Nodes = append(a.Nodes, n)
	a.Dirty = true
	return n
}

// Link appends child as a new entry of parent in namespace ns, setting
// child's name and parent pointer in that namespace. It does not check
// for name collisions; callers (the public API) do that before calling
// Link so they can return a precise invalid-input error.
func (a *Arena) Link(ns Namespace, parent, child *Node, name string) {
	child.Parent[ns] = parent.ID
	child.Name[ns] = name
	parent.Children[ns] = append(parent.Children[ns], child.ID)
	a.Dirty = true
}

// Unlink removes child from parent's child list in namespace ns.
func (a *Arena) Unlink(ns Namespace, parent, child *Node) error {
	list := parent.Children[ns]
	for i, id := range list {
		if id == child.ID {
			parent.Children[ns] = append(list[:i], list[i+1:]...)
			delete(child.Parent, ns)
			delete(child.Name, ns)
			a.Dirty = true
			return nil
		}
	}
	return errs.InvalidInputf("node %d is not a child of node %d in namespace %s", child.ID, parent.ID, ns)
}

// ChildByName looks up a direct child of parent in namespace ns by its
// on-disk name in that namespace, using the namespace's comparator.
func (a *Arena) ChildByName(ns Namespace, parent *Node, name string) (*Node, bool) {
	cmp := comparator(ns)
	for _, id := range parent.Children[ns] {
		child := a.Nodes[id]
		if cmp(child.Name[ns], name) {
			return child, true
		}
	}
	return nil, false
}

// childByRockRidgeName looks up a direct child of parent in the ISO9660
// tree by its Rock Ridge alternate name.
func (a *Arena) childByRockRidgeName(parent *Node, name string) (*Node, bool) {
	for _, id := range parent.Children[ISO9660] {
		child := a.Nodes[id]
		if child.RockRidge != nil && child.RockRidge.Name == name {
			return child, true
		}
	}
	return nil, false
}

// comparator returns the per-namespace name-equality function: ISO9660
// compares space-padded d-character bytes case-sensitively (names are
// already upper-cased by the caller), Joliet and UDF compare the decoded
// Unicode text directly.
func comparator(ns Namespace) func(a, b string) bool {
	switch ns {
	case ISO9660, BootCatalog:
		return func(a, b string) bool {
			return strings.TrimRight(a, " ") == strings.TrimRight(b, " ")
		}
	default:
		return func(a, b string) bool { return a == b }
	}
}

// Resolve walks a "/"-separated path from namespace ns's root and returns
// the node it names.
func (a *Arena) Resolve(ns Namespace, path string) (*Node, error) {
	rootID, err := a.Root(ns)
	if err != nil {
		return nil, err
	}
	cur := a.Nodes[rootID]
	path = strings.Trim(path, "/")
	if path == "" {
		return cur, nil
	}
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		if !cur.IsDirectory() {
			return nil, errs.InvalidInputf("%q is not a directory", part)
		}
		next, ok := a.ChildByName(ns, cur, part)
		if !ok && ns == ISO9660 {
			// A path into the ISO9660 tree may use Rock Ridge names; they
			// live alongside the 8.3 identifiers rather than replacing them.
			next, ok = a.childByRockRidgeName(cur, part)
		}
		if !ok {
			return nil, errs.InvalidInputf("path component %q not found", part)
		}
		cur = next
	}
	return cur, nil
}

// Path reconstructs the "/"-separated path of node id in namespace ns,
// from its root.
func (a *Arena) Path(ns Namespace, id int) (string, error) {
	var parts []string
	cur := id
	rootID, err := a.Root(ns)
	if err != nil {
		return "", err
	}
	for cur != rootID {
		n, err := a.Get(cur)
		if err != nil {
			return "", err
		}
		parts = append([]string{n.Name[ns]}, parts...)
		parent, ok := n.Parent[ns]
		if !ok {
			return "", errs.Internalf("node %d has no parent in namespace %s", cur, ns)
		}
		cur = parent
	}
	return "/" + strings.Join(parts, "/"), nil
}

// Depth returns the number of directories between node id and the root of
// namespace ns, inclusive of the root (the root itself is depth 1).
func (a *Arena) Depth(ns Namespace, id int) (int, error) {
	depth := 1
	rootID, err := a.Root(ns)
	if err != nil {
		return 0, err
	}
	cur := id
	for cur != rootID {
		n, err := a.Get(cur)
		if err != nil {
			return 0, err
		}
		parent, ok := n.Parent[ns]
		if !ok {
			return 0, errs.Internalf("node %d has no parent in namespace %s", cur, ns)
		}
		cur = parent
		depth++
		if depth > len(a.Nodes)+1 {
			return 0, errs.Internalf("cycle detected while computing depth of node %d", id)
		}
	}
	return depth, nil
}

// Walk visits node id and every descendant in namespace ns, depth first,
// in on-disk child order, calling fn with each node's reconstructed path.
func (a *Arena) Walk(ns Namespace, id int, fn func(path string, n *Node) error) error {
	path, err := a.Path(ns, id)
	if err != nil {
		return err
	}
	return a.walk(ns, id, path, fn)
}

func (a *Arena) walk(ns Namespace, id int, path string, fn func(path string, n *Node) error) error {
	n, err := a.Get(id)
	if err != nil {
		return err
	}
	if err := fn(path, n); err != nil {
		return err
	}
	children := append([]int(nil), n.Children[ns]...)
	sort.Slice(children, func(i, j int) bool {
		return a.Nodes[children[i]].Name[ns] < a.Nodes[children[j]].Name[ns]
	})
	for _, cid := range children {
		child := a.Nodes[cid]
		childPath := strings.TrimRight(path, "/") + "/" + child.Name[ns]
		if err := a.walk(ns, cid, childPath, fn); err != nil {
			return err
		}
	}
	return nil
}

// HardLinkGroup returns every node sharing id's Payload, including id
// itself, in arena order.
func (a *Arena) HardLinkGroup(id int) ([]*Node, error) {
	n, err := a.Get(id)
	if err != nil {
		return nil, err
	}
	if n.Payload == nil {
		return []*Node{n}, nil
	}
	var group []*Node
	for _, other := range a.Nodes {
		if other.Payload == n.Payload {
			group = append(group, other)
		}
	}
	return group, nil
}

// NLink returns the hard-link count (RRIP PX st_nlink) for node id: the
// number of directory entries across every namespace that name it, plus
// one per subdirectory for its own ".." entry as ECMA-119/POSIX convention
// requires for directories.
func (a *Arena) NLink(id int) (int, error) {
	group, err := a.HardLinkGroup(id)
	if err != nil {
		return 0, err
	}
	links := 0
	for _, n := range group {
		for ns := range n.Parent {
			if n.In(ns) {
				links++
			}
		}
	}
	if group[0].IsDirectory() {
		for _, cid := range group[0].Children[ISO9660] {
			if a.Nodes[cid].IsDirectory() {
				links++ // one ".." per child subdirectory
			}
		}
		links++ // the directory's own "." entry
	}
	return links, nil
}
