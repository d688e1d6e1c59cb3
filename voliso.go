// Package voliso builds and reads ISO9660/Joliet/Rock Ridge/El Torito/UDF
// optical disc images. It is the public API (component C10): New/Open
// construct or parse an image onto a single node arena, mutating methods
// stage changes on that arena, and Write/WriteFp reconcile the layout and
// stream the result.
package voliso

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/eltorito"
	"github.com/voliso/voliso/pkg/errs"
	"github.com/voliso/voliso/pkg/layout"
	"github.com/voliso/voliso/pkg/logging"
	"github.com/voliso/voliso/pkg/node"
	"github.com/voliso/voliso/pkg/option"
	"github.com/voliso/voliso/pkg/parser"
	"github.com/voliso/voliso/pkg/susp"
	"github.com/voliso/voliso/pkg/writer"
)

// Image is an open ISO image, either newly created or parsed from an
// existing file, with every namespace's tree held in a single node
// arena.
type Image struct {
	arena  *node.Arena
	log    *logging.Logger
	closed bool

	createOpts option.CreateOptions
	openOpts   option.OpenOptions
	fromOpen   bool

	bootCatalog *eltorito.Catalog
	bootFile    *bootFileRef
	hybridMBR   []byte

	plan *layout.Plan

	// source is the file Open acquired for the lifetime of this Image,
	// when it was constructed by Open rather than OpenFP/New. Closed by
	// Close; nil for images with no owned file (OpenFP's caller owns its
	// own reader).
	source *os.File

	// reader is the random-access source the image was parsed from, kept
	// for reads of byte ranges the directory trees do not reach (hidden
	// boot images). Nil for images built with New.
	reader io.ReaderAt
}

type bootFileRef struct {
	node     *node.Node
	platform eltorito.Platform
}

// New initialises an empty volume with the namespaces opts.JolietEnabled/
// RockRidgeEnabled/UDFEnabled request.
func New(opts ...option.CreateOption) (*Image, error) {
	cfg := option.DefaultCreateOptions()
	for _, o := range opts {
		o(&cfg)
	}

	var enabled []node.Namespace
	enabled = append(enabled, node.ISO9660)
	if cfg.JolietEnabled {
		enabled = append(enabled, node.Joliet)
	}
	if cfg.UDFEnabled {
		enabled = append(enabled, node.UDF)
	}

	return &Image{
		arena:      node.NewArena(enabled...),
		log:        cfg.Logger,
		createOpts: cfg,
	}, nil
}

// Open parses an existing image read from local path location. The
// underlying file is held open for the lifetime of the returned Image,
// since node payloads read from it reference byte ranges lazily; Close
// releases it.
func Open(location string, opts ...option.OpenOption) (*Image, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, errs.InvalidInputf("opening %q: %v", location, err)
	}
	img, err := OpenFP(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	img.source = f
	return img, nil
}

// OpenFP parses an existing image from an already-open random-access
// stream.
func OpenFP(r io.ReaderAt, opts ...option.OpenOption) (*Image, error) {
	cfg := option.DefaultOpenOptions()
	for _, o := range opts {
		o(&cfg)
	}

	arena, result, err := parser.Open(r, cfg)
	if err != nil {
		return nil, err
	}

	img := &Image{
		arena:       arena,
		log:         cfg.Logger,
		openOpts:    cfg,
		fromOpen:    true,
		bootCatalog: result.BootCatalog,
		reader:      r,
	}
	if img.bootCatalog != nil && img.bootCatalog.Initial != nil {
		// Re-link the initial entry to the node whose extent it names, so
		// RmElTorito on a parsed image can drop the staged boot file too.
		_ = arena.Walk(node.ISO9660, 0, func(_ string, n *node.Node) error {
			if !n.IsDirectory() && n.Extent == img.bootCatalog.Initial.Location && n.Extent != 0 {
				img.bootFile = &bootFileRef{node: n, platform: img.bootCatalog.Initial.Platform}
			}
			return nil
		})
	}
	// The PVD and SVD each carry their own identity fields; PreferJoliet
	// selects which descriptor's values the image carries forward into
	// the next write.
	volumeID := result.Descriptors.Primary.VolumeIdentifier
	publisherID := result.Descriptors.Primary.PublisherIdentifier
	applicationID := result.Descriptors.Primary.ApplicationIdentifier
	systemID := result.Descriptors.Primary.SystemIdentifier
	if cfg.PreferJoliet && len(result.Descriptors.Supplementary) > 0 {
		svd := result.Descriptors.Supplementary[0]
		volumeID = svd.VolumeIdentifier
		publisherID = svd.PublisherIdentifier
		applicationID = svd.ApplicationIdentifier
		systemID = svd.SystemIdentifier
	}
	img.createOpts = option.CreateOptions{
		JolietEnabled:    arena.HasNamespace(node.Joliet),
		RockRidgeEnabled: cfg.RockRidgeEnabled,
		UDFEnabled:       arena.HasNamespace(node.UDF),
		VolumeIdentifier: volumeID,
		PublisherID:      publisherID,
		ApplicationID:    applicationID,
		SystemID:         systemID,
		Logger:           cfg.Logger,
	}
	return img, nil
}

// Close releases img's resources and invalidates it for further use.
func (img *Image) Close() error {
	img.closed = true
	img.arena = nil
	img.reader = nil
	if img.source != nil {
		err := img.source.Close()
		img.source = nil
		return err
	}
	return nil
}

func (img *Image) checkOpen() error {
	if img.closed {
		return errs.InvalidInputf("operation attempted on a closed image")
	}
	return nil
}

// fileSource adapts an io.Reader the caller may only be able to read
// once into a node.Source by buffering it; large payloads should use
// AddFile instead, which streams directly from the local filesystem at
// write time.
type fileSource struct {
	data []byte
}

func (s *fileSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(s.data))), nil
}
func (s *fileSource) Size() int64 { return int64(len(s.data)) }

type osFileSource struct {
	path string
	size int64
}

func (s *osFileSource) Open() (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errs.InvalidInputf("opening %q: %v", s.path, err)
	}
	return f, nil
}
func (s *osFileSource) Size() int64 { return s.size }

// AddFpOptions names the destination paths and metadata for AddFp/AddFile.
type AddFpOptions struct {
	ISOPath    string
	RRName     string
	JolietPath string
	UDFPath    string
	FileMode   uint32
}

func splitPath(p string) (dir, name string) {
	p = strings.TrimRight(p, "/")
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "/", p
	}
	if i == 0 {
		return "/", p[1:]
	}
	return p[:i], p[i+1:]
}

func (img *Image) resolveParent(ns node.Namespace, dir string) (*node.Node, error) {
	n, err := img.arena.Resolve(ns, dir)
	if err != nil {
		return nil, err
	}
	if !n.IsDirectory() {
		return nil, errs.InvalidInputf("%q is not a directory", dir)
	}
	return n, nil
}

// AddFp adds a file whose content is read from r, which must yield
// exactly length bytes, linking it into every namespace a destination
// path names.
func (img *Image) AddFp(r io.Reader, length int64, opts AddFpOptions) error {
	if err := img.checkOpen(); err != nil {
		return err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return errs.InvalidInputf("reading file content: %v", err)
	}
	return img.addFile(&fileSource{data: buf}, opts)
}

// AddFile adds a file by reading it from the local filesystem at write
// time, rather than buffering it in memory now.
func (img *Image) AddFile(localPath string, opts AddFpOptions) error {
	if err := img.checkOpen(); err != nil {
		return err
	}
	fi, err := os.Stat(localPath)
	if err != nil {
		return errs.InvalidInputf("stat %q: %v", localPath, err)
	}
	return img.addFile(&osFileSource{path: localPath, size: fi.Size()}, opts)
}

func (img *Image) addFile(src node.Source, opts AddFpOptions) error {
	if opts.ISOPath == "" && opts.JolietPath == "" && opts.UDFPath == "" {
		return errs.InvalidInputf("add_fp/add_file requires at least one destination path")
	}
	if img.createOpts.RockRidgeEnabled && opts.ISOPath != "" && opts.RRName == "" {
		return errs.InvalidInputf("rock ridge is enabled; rr_name is required when iso_path is supplied")
	}

	file := img.arena.New(node.KindFile)
	file.Payload = &node.Payload{Source: src}
	file.ModTime = time.Now()
	img.log.Debug("staging file", "isoPath", opts.ISOPath, "jolietPath", opts.JolietPath, "udfPath", opts.UDFPath, "size", src.Size())
	if img.createOpts.RockRidgeEnabled {
		mode := opts.FileMode
		if mode == 0 {
			mode = 0100644
		}
		file.RockRidge = &susp.RockRidge{Mode: &mode, Name: opts.RRName}
	}

	if opts.ISOPath != "" {
		dir, name := splitPath(opts.ISOPath)
		parent, err := img.resolveParent(node.ISO9660, dir)
		if err != nil {
			return err
		}
		if _, exists := img.arena.ChildByName(node.ISO9660, parent, name); exists {
			return errs.InvalidInputf("%q already exists", opts.ISOPath)
		}
		img.arena.Link(node.ISO9660, parent, file, name)
	}
	if opts.JolietPath != "" {
		dir, name := splitPath(opts.JolietPath)
		parent, err := img.resolveParent(node.Joliet, dir)
		if err != nil {
			return err
		}
		if _, exists := img.arena.ChildByName(node.Joliet, parent, name); exists {
			return errs.InvalidInputf("%q already exists", opts.JolietPath)
		}
		img.arena.Link(node.Joliet, parent, file, name)
	}
	if opts.UDFPath != "" {
		dir, name := splitPath(opts.UDFPath)
		parent, err := img.resolveParent(node.UDF, dir)
		if err != nil {
			return err
		}
		img.arena.Link(node.UDF, parent, file, name)
	}

	return img.maybeReconcile()
}

// RmFile removes the file's links in every namespace that names it. The
// path identifies the file through one namespace; the other namespaces'
// links to the same node are removed too.
func (img *Image) RmFile(ns node.Namespace, path string) error {
	if err := img.checkOpen(); err != nil {
		return err
	}
	n, err := img.arena.Resolve(ns, path)
	if err != nil {
		return err
	}
	if n.IsDirectory() {
		return errs.InvalidInputf("%q is a directory; use rm_directory", path)
	}
	for _, other := range img.arena.EnabledNamespaces() {
		if !n.In(other) {
			continue
		}
		parent, err := img.arena.Get(n.Parent[other])
		if err != nil {
			return err
		}
		if err := img.arena.Unlink(other, parent, n); err != nil {
			return err
		}
	}
	return img.maybeReconcile()
}

// AddDirectory creates an empty directory at path in namespace ns.
func (img *Image) AddDirectory(ns node.Namespace, path string) error {
	if err := img.checkOpen(); err != nil {
		return err
	}
	dir, name := splitPath(path)
	parent, err := img.resolveParent(ns, dir)
	if err != nil {
		return err
	}
	if _, exists := img.arena.ChildByName(ns, parent, name); exists {
		return errs.InvalidInputf("%q already exists", path)
	}
	if ns == node.ISO9660 && !img.createOpts.RockRidgeEnabled {
		parentDepth, err := img.arena.Depth(node.ISO9660, parent.ID)
		if err != nil {
			return err
		}
		if parentDepth+1 > consts.ISO9660_MAX_DEPTH {
			return errs.InvalidInputf("%q would exceed the %d-level iso9660 directory depth limit; enable rock ridge to allow relocation", path, consts.ISO9660_MAX_DEPTH)
		}
	}
	d := img.arena.New(node.KindDirectory)
	d.ModTime = time.Now()
	if img.createOpts.RockRidgeEnabled {
		mode := uint32(0040755)
		d.RockRidge = &susp.RockRidge{Mode: &mode}
	}
	img.arena.Link(ns, parent, d, name)
	img.log.Debug("created directory", "namespace", ns.String(), "path", path)
	return img.maybeReconcile()
}

// RmDirectory removes an empty directory at path in namespace ns.
func (img *Image) RmDirectory(ns node.Namespace, path string) error {
	if err := img.checkOpen(); err != nil {
		return err
	}
	n, err := img.arena.Resolve(ns, path)
	if err != nil {
		return err
	}
	if !n.IsDirectory() {
		return errs.InvalidInputf("%q is not a directory", path)
	}
	if len(n.Children[ns]) > 0 {
		return errs.InvalidInputf("%q is not empty", path)
	}
	dir, _ := splitPath(path)
	parent, err := img.arena.Resolve(ns, dir)
	if err != nil {
		return err
	}
	if err := img.arena.Unlink(ns, parent, n); err != nil {
		return err
	}
	return img.maybeReconcile()
}

// AddHardLink links the file already present at oldPath in namespace ns
// to an additional name newPath, without touching any other namespace's
// links to it. The link is a fresh node sharing the original's payload:
// payload identity, not node identity, is what makes them one hard-link
// group, and it leaves each link free to carry its own name per
// namespace.
func (img *Image) AddHardLink(ns node.Namespace, oldPath, newPath string) error {
	if err := img.checkOpen(); err != nil {
		return err
	}
	existing, err := img.arena.Resolve(ns, oldPath)
	if err != nil {
		return err
	}
	if existing.IsDirectory() {
		return errs.InvalidInputf("hard links to directories are not supported")
	}
	dir, name := splitPath(newPath)
	parent, err := img.resolveParent(ns, dir)
	if err != nil {
		return err
	}
	if _, exists := img.arena.ChildByName(ns, parent, name); exists {
		return errs.InvalidInputf("%q already exists", newPath)
	}
	link := img.arena.New(existing.Kind)
	link.Payload = existing.Payload
	link.ModTime = existing.ModTime
	link.SymlinkTarget = existing.SymlinkTarget
	if existing.RockRidge != nil {
		rr := *existing.RockRidge
		rr.Name = name
		if i := strings.LastIndex(rr.Name, ";"); i >= 0 {
			rr.Name = rr.Name[:i]
		}
		link.RockRidge = &rr
	}
	img.arena.Link(ns, parent, link, name)
	return img.maybeReconcile()
}

// RmHardLink removes a single namespace link to a file without affecting
// its other links; the file's record in that namespace is destroyed when
// this was its last link there.
func (img *Image) RmHardLink(ns node.Namespace, path string) error {
	if err := img.checkOpen(); err != nil {
		return err
	}
	n, err := img.arena.Resolve(ns, path)
	if err != nil {
		return err
	}
	if n.IsDirectory() {
		return errs.InvalidInputf("hard links to directories are not supported")
	}
	dir, _ := splitPath(path)
	parent, err := img.arena.Resolve(ns, dir)
	if err != nil {
		return err
	}
	if err := img.arena.Unlink(ns, parent, n); err != nil {
		return err
	}
	return img.maybeReconcile()
}

// AddElToritoOptions configures AddElTorito. BootFilePath is staged into
// the ISO9660 root as a plain file; the boot catalog itself is a system
// structure the writer places directly, not a node in the tree.
type AddElToritoOptions struct {
	BootFilePath string
	LoadSegment  uint16
	BootLoadSize uint16
	PlatformID   eltorito.Platform
	Emulation    eltorito.Emulation
}

// AddElTorito installs a boot catalog naming bootFilePath as the default
// entry.
func (img *Image) AddElTorito(opts AddElToritoOptions) error {
	if err := img.checkOpen(); err != nil {
		return err
	}
	fi, err := os.Stat(opts.BootFilePath)
	if err != nil {
		return errs.InvalidInputf("stat %q: %v", opts.BootFilePath, err)
	}

	_, name := splitPath(opts.BootFilePath)
	isoDir, isoName := "/", strings.ToUpper(name)
	if !strings.Contains(isoName, ";") {
		isoName += ";1"
	}
	parent, err := img.resolveParent(node.ISO9660, isoDir)
	if err != nil {
		return err
	}

	bootFile := img.arena.New(node.KindFile)
	bootFile.Payload = &node.Payload{Source: &osFileSource{path: opts.BootFilePath, size: fi.Size()}}
	bootFile.ModTime = time.Now()
	if _, exists := img.arena.ChildByName(node.ISO9660, parent, isoName); !exists {
		img.arena.Link(node.ISO9660, parent, bootFile, isoName)
	}

	sectorCount := opts.BootLoadSize
	if sectorCount == 0 {
		sectorCount = uint16((fi.Size() + 511) / 512)
	}
	img.bootCatalog = &eltorito.Catalog{
		Initial: &eltorito.Entry{
			Bootable:    true,
			Platform:    opts.PlatformID,
			Emulation:   opts.Emulation,
			LoadSegment: opts.LoadSegment,
			SectorCount: sectorCount,
		},
	}
	img.bootFile = &bootFileRef{node: bootFile, platform: opts.PlatformID}
	img.log.Info("installed el torito boot catalog", "bootFile", opts.BootFilePath, "platform", opts.PlatformID.String())

	return img.maybeReconcile()
}

// RmElTorito removes the boot catalog, if any, along with the boot image
// file it staged into the ISO9660 tree.
func (img *Image) RmElTorito() error {
	if err := img.checkOpen(); err != nil {
		return err
	}
	if img.bootFile != nil {
		if parentID, ok := img.bootFile.node.Parent[node.ISO9660]; ok {
			if parent, err := img.arena.Get(parentID); err == nil {
				_ = img.arena.Unlink(node.ISO9660, parent, img.bootFile.node)
			}
		}
	}
	img.bootCatalog = nil
	img.bootFile = nil
	return img.maybeReconcile()
}

// AddIsoHybrid installs boot code into the reserved system-area blocks
// (0-15) so the same image boots as a USB disk image (isohybrid-style).
// Non-goal beyond storing the supplied MBR bytes for the writer to place
// at block 0; this module does not compute partition table geometry.
func (img *Image) AddIsoHybrid(mbr []byte) error {
	if err := img.checkOpen(); err != nil {
		return err
	}
	if len(mbr) > 16*2048 {
		return errs.InvalidInputf("isohybrid MBR image is %d bytes, exceeds the 16-sector system area", len(mbr))
	}
	img.hybridMBR = mbr
	return nil
}

// RmIsoHybrid removes any previously installed hybrid boot code.
func (img *Image) RmIsoHybrid() error {
	if err := img.checkOpen(); err != nil {
		return err
	}
	img.hybridMBR = nil
	return nil
}

// ModifyFileInPlace overwrites an existing file's content without moving
// its extent, failing if length exceeds the space already reserved for
// it (rounded up to the sector size).
func (img *Image) ModifyFileInPlace(r io.Reader, length int64, isoPath string) error {
	if err := img.checkOpen(); err != nil {
		return err
	}
	n, err := img.arena.Resolve(node.ISO9660, isoPath)
	if err != nil {
		return err
	}
	if n.IsDirectory() {
		return errs.InvalidInputf("%q is a directory", isoPath)
	}
	if n.Payload == nil {
		return errs.InvalidInputf("%q has no content to modify", isoPath)
	}
	size := int64(n.Length)
	if size == 0 {
		size = n.Payload.Source.Size()
	}
	// The reserved space is the extent-aligned length, not the byte length.
	capacity := ((size + consts.ISO9660_SECTOR_SIZE - 1) / consts.ISO9660_SECTOR_SIZE) * consts.ISO9660_SECTOR_SIZE
	if length > capacity {
		return errs.InvalidInputf("new content is %d bytes, exceeds the %d bytes already reserved for %q", length, capacity, isoPath)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return errs.InvalidInputf("reading replacement content: %v", err)
	}
	// Swap the source inside the existing payload so every hard link in
	// every namespace keeps pointing at the same (now modified) content.
	n.Payload.Source = &fileSource{data: buf}
	return nil
}

// ForceConsistency runs the layout planner immediately instead of waiting
// for the next Write/WriteFp. When a boot catalog is present, the default
// entry's Location field depends on the boot image's assigned extent, so
// this reconciles twice: once to learn that extent, then again with the
// catalog's Location filled in so the boot record it emits is accurate.
func (img *Image) ForceConsistency() error {
	if err := img.checkOpen(); err != nil {
		return err
	}
	plan, err := layout.Reconcile(img.arena, img.volumeInfo())
	if err != nil {
		return err
	}
	if img.bootCatalog != nil && img.bootFile != nil {
		img.bootCatalog.Initial.Location = img.bootFile.node.Extent
		plan, err = layout.Reconcile(img.arena, img.volumeInfo())
		if err != nil {
			return err
		}
	}
	img.plan = plan
	return nil
}

func (img *Image) volumeInfo() layout.VolumeInfo {
	var progress layout.ProgressFunc
	if img.createOpts.ProgressCallback != nil {
		progress = layout.ProgressFunc(img.createOpts.ProgressCallback)
	} else if img.openOpts.ProgressCallback != nil {
		progress = layout.ProgressFunc(img.openOpts.ProgressCallback)
	}
	return layout.VolumeInfo{
		VolumeIdentifier: img.createOpts.VolumeIdentifier,
		PublisherID:      img.createOpts.PublisherID,
		ApplicationID:    img.createOpts.ApplicationID,
		SystemID:         img.createOpts.SystemID,
		JolietEnabled:    img.arena.HasNamespace(node.Joliet),
		UDFEnabled:       img.arena.HasNamespace(node.UDF),
		RockRidgeEnabled: img.createOpts.RockRidgeEnabled,
		BootCatalog:      img.bootCatalog,
		Progress:         progress,
	}
}

func (img *Image) maybeReconcile() error {
	if img.createOpts.AlwaysConsistent || img.openOpts.AlwaysConsistent {
		return img.ForceConsistency()
	}
	return nil
}

// Write reconciles the image if needed and streams it to a new file at
// localPath.
func (img *Image) Write(localPath string) error {
	if err := img.checkOpen(); err != nil {
		return err
	}
	f, err := os.Create(localPath)
	if err != nil {
		return errs.InvalidInputf("creating %q: %v", localPath, err)
	}
	defer f.Close()
	return img.WriteFp(f)
}

// WriteFp reconciles the image if needed and streams it to sink.
func (img *Image) WriteFp(sink writer.Sink) error {
	if err := img.checkOpen(); err != nil {
		return err
	}
	if img.arena.Dirty || img.plan == nil {
		if err := img.ForceConsistency(); err != nil {
			return err
		}
	}
	if err := writer.WriteSystemArea(sink); err != nil {
		return err
	}
	if len(img.hybridMBR) > 0 {
		if _, err := sink.WriteAt(img.hybridMBR, 0); err != nil {
			return errs.Internalf("writing isohybrid MBR: %v", err)
		}
	}
	img.log.Info("writing image", "sectors", img.plan.TotalSectors)
	return writer.Write(sink, img.plan)
}

// Walk visits every node reachable from path in namespace ns.
func (img *Image) Walk(ns node.Namespace, path string, fn func(path string, n *node.Node) error) error {
	if err := img.checkOpen(); err != nil {
		return err
	}
	start, err := img.arena.Resolve(ns, path)
	if err != nil {
		return err
	}
	return img.arena.Walk(ns, start.ID, fn)
}

// ListChildren returns the direct children of path in namespace ns.
func (img *Image) ListChildren(ns node.Namespace, path string) ([]*node.Node, error) {
	if err := img.checkOpen(); err != nil {
		return nil, err
	}
	n, err := img.arena.Resolve(ns, path)
	if err != nil {
		return nil, err
	}
	var out []*node.Node
	for _, id := range n.Children[ns] {
		child, err := img.arena.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

// GetRecord returns the node at path in namespace ns.
func (img *Image) GetRecord(ns node.Namespace, path string) (*node.Node, error) {
	if err := img.checkOpen(); err != nil {
		return nil, err
	}
	return img.arena.Resolve(ns, path)
}

// GetFileFromISO reads a whole file's content from path in namespace ns.
func (img *Image) GetFileFromISO(ns node.Namespace, path string) ([]byte, error) {
	rc, err := img.OpenFileFromISO(ns, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// OpenFileFromISO returns a streaming reader for the file at path in
// namespace ns.
func (img *Image) OpenFileFromISO(ns node.Namespace, path string) (io.ReadCloser, error) {
	if err := img.checkOpen(); err != nil {
		return nil, err
	}
	n, err := img.arena.Resolve(ns, path)
	if err != nil {
		return nil, err
	}
	if n.IsDirectory() {
		return nil, errs.InvalidInputf("%q is a directory", path)
	}
	if n.Payload == nil {
		return nil, errs.InvalidInputf("%q has no content", path)
	}
	return n.Payload.Source.Open()
}

// Facade narrows Image's read-only inspection methods to one fixed
// namespace, so callers comparing trees across namespaces (e.g. checking
// whether Joliet and Rock Ridge names for the same file agree) do not
// have to pass the namespace at every call.
type Facade struct {
	img *Image
	ns  node.Namespace
}

func (f *Facade) Walk(path string, fn func(path string, n *node.Node) error) error {
	return f.img.Walk(f.ns, path, fn)
}

func (f *Facade) ListChildren(path string) ([]*node.Node, error) {
	return f.img.ListChildren(f.ns, path)
}

func (f *Facade) GetRecord(path string) (*node.Node, error) {
	return f.img.GetRecord(f.ns, path)
}

func (f *Facade) GetFileFromISO(path string) ([]byte, error) {
	return f.img.GetFileFromISO(f.ns, path)
}

func (f *Facade) OpenFileFromISO(path string) (io.ReadCloser, error) {
	return f.img.OpenFileFromISO(f.ns, path)
}

// GetIso9660Facade scopes inspection methods to the plain ISO9660 tree.
func (img *Image) GetIso9660Facade() *Facade {
	return &Facade{img: img, ns: node.ISO9660}
}

// GetJolietFacade scopes inspection methods to the Joliet tree; callers
// should check HasNamespace(node.Joliet) first, since Resolve on a
// disabled namespace always fails.
func (img *Image) GetJolietFacade() *Facade {
	return &Facade{img: img, ns: node.Joliet}
}

// GetRockRidgeFacade scopes inspection methods to the ISO9660 tree read
// with Rock Ridge names and metadata attached to each node's RockRidge
// field, since Rock Ridge extends rather than replaces ISO9660 records.
func (img *Image) GetRockRidgeFacade() *Facade {
	return &Facade{img: img, ns: node.ISO9660}
}

// GetUdfFacade scopes inspection methods to the UDF bridge tree.
func (img *Image) GetUdfFacade() *Facade {
	return &Facade{img: img, ns: node.UDF}
}

// HasNamespace reports whether namespace ns is present on this image.
func (img *Image) HasNamespace(ns node.Namespace) bool {
	return img.arena.HasNamespace(ns)
}

// HasElTorito reports whether the image carries an El Torito boot catalog.
func (img *Image) HasElTorito() bool {
	return img.bootCatalog != nil
}

// ExtractBootImages writes every boot image the El Torito catalog names
// into destDir, creating it if needed, and returns the paths written.
// An empty destDir falls back to the boot file location supplied at Open
// time. Boot images are read straight from the source image by extent:
// they are frequently absent from every directory tree, so the node
// model cannot serve them.
func (img *Image) ExtractBootImages(destDir string) ([]string, error) {
	if err := img.checkOpen(); err != nil {
		return nil, err
	}
	if img.bootCatalog == nil {
		return nil, nil
	}
	if img.reader == nil {
		return nil, errs.InvalidInputf("boot images can only be extracted from an image opened from a source")
	}
	if destDir == "" {
		destDir = img.openOpts.BootFileLocation
	}
	if destDir == "" {
		destDir = "[BOOT]"
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, errs.InvalidInputf("creating %q: %v", destDir, err)
	}

	entries := []*eltorito.Entry{img.bootCatalog.Initial}
	for _, section := range img.bootCatalog.Sections {
		entries = append(entries, section.Entries...)
	}

	var written []string
	for i, entry := range entries {
		if entry == nil || entry.Location == 0 {
			continue
		}
		size := int64(entry.SectorCount) * 512
		if size == 0 {
			size = consts.ISO9660_SECTOR_SIZE
		}
		name := fmt.Sprintf("%d-Boot-%s.img", i+1, entry.Emulation)
		dest := filepath.Join(destDir, name)
		out, err := os.Create(dest)
		if err != nil {
			return written, errs.InvalidInputf("creating %q: %v", dest, err)
		}
		src := io.NewSectionReader(img.reader, int64(entry.Location)*consts.ISO9660_SECTOR_SIZE, size)
		_, err = io.Copy(out, src)
		closeErr := out.Close()
		if err != nil {
			return written, errs.Malformedf(int64(entry.Location), 0, "reading boot image: %v", err)
		}
		if closeErr != nil {
			return written, errs.InvalidInputf("closing %q: %v", dest, closeErr)
		}
		img.log.Info("extracted boot image", "path", dest, "platform", entry.Platform.String())
		written = append(written, dest)
	}
	return written, nil
}

// Arena exposes the underlying node arena for callers that need direct
// access to the tree, such as validation tooling that walks every
// namespace at once.
func (img *Image) Arena() *node.Arena {
	return img.arena
}
