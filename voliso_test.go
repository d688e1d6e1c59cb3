package voliso_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voliso/voliso"
	"github.com/voliso/voliso/pkg/eltorito"
	"github.com/voliso/voliso/pkg/errs"
	"github.com/voliso/voliso/pkg/node"
	"github.com/voliso/voliso/pkg/option"
)

// TestNewFileAndDirectory builds a minimal image with one file and one
// empty directory.
func TestNewFileAndDirectory(t *testing.T) {
	img, err := voliso.New()
	require.NoError(t, err)

	require.NoError(t, img.AddFp(bytes.NewBufferString("foo\n"), 4, voliso.AddFpOptions{
		ISOPath: "/FOO.;1",
	}))
	require.NoError(t, img.AddDirectory(node.ISO9660, "/DIR1"))

	out := filepath.Join(t.TempDir(), "minimal.iso")
	require.NoError(t, img.Write(out))

	opened, err := voliso.Open(out)
	require.NoError(t, err)
	defer opened.Close()

	content, err := opened.GetFileFromISO(node.ISO9660, "/FOO.;1")
	require.NoError(t, err)
	require.Equal(t, "foo\n", string(content))

	dir, err := opened.GetRecord(node.ISO9660, "/DIR1")
	require.NoError(t, err)
	require.True(t, dir.IsDirectory())
	children, err := opened.ListChildren(node.ISO9660, "/DIR1")
	require.NoError(t, err)
	require.Empty(t, children)
}

// TestJolietSharesPayload checks that a file reachable by both ISO9660
// and Joliet shares one payload, verified by extent equality.
func TestJolietSharesPayload(t *testing.T) {
	img, err := voliso.New(option.WithJoliet(true))
	require.NoError(t, err)

	require.NoError(t, img.AddFp(bytes.NewBufferString("foo\n"), 4, voliso.AddFpOptions{
		ISOPath:    "/FOO.;1",
		JolietPath: "/foo",
	}))

	out := filepath.Join(t.TempDir(), "joliet_shared.iso")
	require.NoError(t, img.Write(out))

	opened, err := voliso.Open(out)
	require.NoError(t, err)
	defer opened.Close()

	require.True(t, opened.HasNamespace(node.Joliet))

	isoRec, err := opened.GetRecord(node.ISO9660, "/FOO.;1")
	require.NoError(t, err)
	jolietRec, err := opened.GetRecord(node.Joliet, "/foo")
	require.NoError(t, err)
	require.Equal(t, isoRec.Extent, jolietRec.Extent)

	content, err := opened.GetFileFromISO(node.Joliet, "/foo")
	require.NoError(t, err)
	require.Equal(t, "foo\n", string(content))
}

// TestHardLinkAndRemove adds a hard link in ISO9660 and removes a
// Joliet link, leaving ISO9660 untouched.
func TestHardLinkAndRemove(t *testing.T) {
	img, err := voliso.New(option.WithJoliet(true))
	require.NoError(t, err)

	require.NoError(t, img.AddFp(bytes.NewBufferString("foo\n"), 4, voliso.AddFpOptions{
		ISOPath:    "/FOO.;1",
		JolietPath: "/foo",
	}))
	require.NoError(t, img.AddHardLink(node.ISO9660, "/FOO.;1", "/BAR.;1"))
	require.NoError(t, img.RmHardLink(node.Joliet, "/foo"))

	out := filepath.Join(t.TempDir(), "hardlink.iso")
	require.NoError(t, img.Write(out))

	opened, err := voliso.Open(out)
	require.NoError(t, err)
	defer opened.Close()

	_, err = opened.GetRecord(node.ISO9660, "/FOO.;1")
	require.NoError(t, err)
	_, err = opened.GetRecord(node.ISO9660, "/BAR.;1")
	require.NoError(t, err)
	_, err = opened.GetRecord(node.Joliet, "/foo")
	require.Error(t, err)
}

// TestElToritoBootCatalog checks that an image written with a boot
// catalog reopens with El Torito present and with the boot file staged
// in the ISO9660 root at a nonzero extent.
func TestElToritoBootCatalog(t *testing.T) {
	img, err := voliso.New()
	require.NoError(t, err)

	bootPath := filepath.Join(t.TempDir(), "boot.img")
	require.NoError(t, os.WriteFile(bootPath, []byte("bootb"), 0o644))

	require.NoError(t, img.AddElTorito(voliso.AddElToritoOptions{
		BootFilePath: bootPath,
		PlatformID:   eltorito.PlatformBIOS,
		Emulation:    eltorito.NoEmulation,
	}))

	out := filepath.Join(t.TempDir(), "eltorito.iso")
	require.NoError(t, img.Write(out))

	opened, err := voliso.Open(out, option.WithElToritoEnabled(true))
	require.NoError(t, err)
	defer opened.Close()

	require.True(t, opened.HasElTorito())

	bootRec, err := opened.GetRecord(node.ISO9660, "/BOOT.IMG;1")
	require.NoError(t, err)
	require.NotZero(t, bootRec.Extent)
}

// TestWriteReportsProgress checks that the progress callback supplied at
// New fires once per file while Write copies payloads, ending on the
// final file with the full byte total.
func TestWriteReportsProgress(t *testing.T) {
	type report struct {
		name        string
		transferred int64
		total       int64
		fileNum     int
		fileCount   int
	}
	var reports []report

	img, err := voliso.New(option.WithCreateProgress(func(name string, transferred, total int64, fileNum, fileCount int) {
		reports = append(reports, report{name, transferred, total, fileNum, fileCount})
	}))
	require.NoError(t, err)

	require.NoError(t, img.AddFp(bytes.NewBufferString("first"), 5, voliso.AddFpOptions{ISOPath: "/A.;1"}))
	require.NoError(t, img.AddFp(bytes.NewBufferString("secondfile"), 10, voliso.AddFpOptions{ISOPath: "/B.;1"}))

	out := filepath.Join(t.TempDir(), "progress.iso")
	require.NoError(t, img.Write(out))

	require.NotEmpty(t, reports)
	last := reports[len(reports)-1]
	require.Equal(t, last.fileCount, last.fileNum)
	require.EqualValues(t, 15, last.total)
	require.Equal(t, last.total, last.transferred)
}

// TestExtractBootImages writes a bootable image, reopens it, and pulls
// the boot image back out of the catalog by extent.
func TestExtractBootImages(t *testing.T) {
	img, err := voliso.New()
	require.NoError(t, err)

	bootPath := filepath.Join(t.TempDir(), "boot.img")
	require.NoError(t, os.WriteFile(bootPath, []byte("bootb"), 0o644))
	require.NoError(t, img.AddElTorito(voliso.AddElToritoOptions{
		BootFilePath: bootPath,
		PlatformID:   eltorito.PlatformBIOS,
		Emulation:    eltorito.NoEmulation,
	}))

	out := filepath.Join(t.TempDir(), "bootable.iso")
	require.NoError(t, img.Write(out))

	bootDir := filepath.Join(t.TempDir(), "bootout")
	opened, err := voliso.Open(out, option.WithBootFileLocation(bootDir))
	require.NoError(t, err)
	defer opened.Close()

	written, err := opened.ExtractBootImages("")
	require.NoError(t, err)
	require.Len(t, written, 1)

	content, err := os.ReadFile(written[0])
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(content, []byte("bootb")))
}

// TestModifyFileInPlace replaces a file's content without moving any
// metadata as long as it still fits in the extent already reserved for
// it.
func TestModifyFileInPlace(t *testing.T) {
	img, err := voliso.New()
	require.NoError(t, err)
	require.NoError(t, img.AddFp(bytes.NewBufferString("foo\n"), 4, voliso.AddFpOptions{
		ISOPath: "/FOO.;1",
	}))

	original := filepath.Join(t.TempDir(), "original.iso")
	require.NoError(t, img.Write(original))

	opened, err := voliso.Open(original)
	require.NoError(t, err)

	require.NoError(t, opened.ModifyFileInPlace(bytes.NewBufferString("bazzzzzz\n"), 9, "/FOO.;1"))

	modified := filepath.Join(t.TempDir(), "modified.iso")
	require.NoError(t, opened.Write(modified))
	opened.Close()

	reopened, err := voliso.Open(modified)
	require.NoError(t, err)
	defer reopened.Close()

	content, err := reopened.GetFileFromISO(node.ISO9660, "/FOO.;1")
	require.NoError(t, err)
	require.Equal(t, "bazzzzzz\n", string(content))
}

// TestModifyFileInPlaceRejectsOversizedContent covers the boundary
// behavior: replacement content longer than the extent-aligned original
// length fails with invalid-input rather than silently relocating data.
func TestModifyFileInPlaceRejectsOversizedContent(t *testing.T) {
	img, err := voliso.New()
	require.NoError(t, err)
	require.NoError(t, img.AddFp(bytes.NewBufferString("foo\n"), 4, voliso.AddFpOptions{
		ISOPath: "/FOO.;1",
	}))

	out := filepath.Join(t.TempDir(), "oversized.iso")
	require.NoError(t, img.Write(out))

	opened, err := voliso.Open(out)
	require.NoError(t, err)
	defer opened.Close()

	oversized := make([]byte, 4000)
	err = opened.ModifyFileInPlace(bytes.NewReader(oversized), int64(len(oversized)), "/FOO.;1")
	require.Error(t, err)
}

// TestZeroLengthFileRoundTrips covers the boundary behavior that a
// zero-length file is representable and round-trips with no extent.
func TestZeroLengthFileRoundTrips(t *testing.T) {
	img, err := voliso.New()
	require.NoError(t, err)
	require.NoError(t, img.AddFp(bytes.NewReader(nil), 0, voliso.AddFpOptions{
		ISOPath: "/EMPTY.;1",
	}))

	out := filepath.Join(t.TempDir(), "empty.iso")
	require.NoError(t, img.Write(out))

	opened, err := voliso.Open(out)
	require.NoError(t, err)
	defer opened.Close()

	content, err := opened.GetFileFromISO(node.ISO9660, "/EMPTY.;1")
	require.NoError(t, err)
	require.Empty(t, content)
}

// TestOpenThenWriteSamePathStreamsUnmodifiedPayloads reproduces the
// read-modify-write pattern volctl's add/rm/eltorito/isohybrid
// subcommands use: an image opened from disk must still be able to
// stream every unmodified file's payload at Write time, since the
// parser only records a byte range into the still-open source file
// rather than buffering content eagerly.
func TestOpenThenWriteSamePathStreamsUnmodifiedPayloads(t *testing.T) {
	img, err := voliso.New()
	require.NoError(t, err)
	require.NoError(t, img.AddFp(bytes.NewBufferString("untouched\n"), 10, voliso.AddFpOptions{
		ISOPath: "/KEEP.;1",
	}))

	path := filepath.Join(t.TempDir(), "reopen.iso")
	require.NoError(t, img.Write(path))

	opened, err := voliso.Open(path)
	require.NoError(t, err)

	require.NoError(t, opened.AddDirectory(node.ISO9660, "/NEWDIR"))

	tmp, err := os.CreateTemp(filepath.Dir(path), ".reopen-*.iso.tmp")
	require.NoError(t, err)
	require.NoError(t, opened.WriteFp(tmp))
	require.NoError(t, tmp.Close())
	require.NoError(t, opened.Close())
	require.NoError(t, os.Rename(tmp.Name(), path))

	reopened, err := voliso.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	content, err := reopened.GetFileFromISO(node.ISO9660, "/KEEP.;1")
	require.NoError(t, err)
	require.Equal(t, "untouched\n", string(content))

	_, err = reopened.GetRecord(node.ISO9660, "/NEWDIR")
	require.NoError(t, err)
}

// TestDeepDirectoryRelocationRoundTrips nests directories two levels past
// the ISO9660 depth limit with Rock Ridge enabled: the written image
// stores the over-deep directory under RR_MOVED with a CL/RE/PL triangle,
// and reopening it grafts the subtree back so the original path resolves.
func TestDeepDirectoryRelocationRoundTrips(t *testing.T) {
	img, err := voliso.New(option.WithRockRidge(true))
	require.NoError(t, err)

	path := ""
	for i := 1; i <= 9; i++ {
		path = fmt.Sprintf("%s/D%d", path, i)
		require.NoError(t, img.AddDirectory(node.ISO9660, path))
	}

	out := filepath.Join(t.TempDir(), "deep.iso")
	require.NoError(t, img.Write(out))

	opened, err := voliso.Open(out)
	require.NoError(t, err)
	defer opened.Close()

	deep, err := opened.GetRecord(node.ISO9660, "/D1/D2/D3/D4/D5/D6/D7/D8/D9")
	require.NoError(t, err)
	require.True(t, deep.IsDirectory())

	_, err = opened.GetRecord(node.ISO9660, "/RR_MOVED")
	require.Error(t, err, "RR_MOVED should be dissolved after relocation resolution")
}

// TestDeepDirectoryRejectedWithoutRockRidge covers the other half of the
// boundary: without Rock Ridge there is no relocation escape hatch, so
// the ninth nesting level is refused outright.
func TestDeepDirectoryRejectedWithoutRockRidge(t *testing.T) {
	img, err := voliso.New()
	require.NoError(t, err)

	path := ""
	var addErr error
	for i := 1; i <= 9; i++ {
		path = fmt.Sprintf("%s/D%d", path, i)
		if addErr = img.AddDirectory(node.ISO9660, path); addErr != nil {
			break
		}
	}
	require.Error(t, addErr)
	require.True(t, errors.Is(addErr, errs.ErrInvalidInput))
}

// TestOpenFileFromISOStreams exercises OpenFileFromISO's streaming
// contract directly, rather than buffering the whole payload via
// GetFileFromISO.
func TestOpenFileFromISOStreams(t *testing.T) {
	img, err := voliso.New()
	require.NoError(t, err)
	payload := bytes.Repeat([]byte("x"), 5000)
	require.NoError(t, img.AddFp(bytes.NewReader(payload), int64(len(payload)), voliso.AddFpOptions{
		ISOPath: "/BIG.;1",
	}))

	out := filepath.Join(t.TempDir(), "big.iso")
	require.NoError(t, img.Write(out))

	opened, err := voliso.Open(out)
	require.NoError(t, err)
	defer opened.Close()

	rc, err := opened.OpenFileFromISO(node.ISO9660, "/BIG.;1")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}
