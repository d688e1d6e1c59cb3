// Package writer implements the image writer (component C9): it streams
// a layout.Plan's blocks to an io.WriterAt-shaped sink in ascending
// extent order, leaving any gap between blocks unwritten, and, when the
// sink supports Truncate, sizing the final image to its declared total.
package writer

import (
	"io"

	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/errs"
	"github.com/voliso/voliso/pkg/layout"
)

const sectorSize = consts.ISO9660_SECTOR_SIZE

// Sink is the minimal interface the writer needs from its output: a
// random-access byte sink, satisfied by *os.File and any in-memory
// equivalent tests construct.
type Sink interface {
	io.WriterAt
}

// Write streams every block of plan to sink at its sector-aligned offset
// and, if sink also implements Truncate (as *os.File does), resizes the
// output to the plan's declared total size so trailing sparse sectors
// still read back as zero.
func Write(sink Sink, plan *layout.Plan) error {
	for _, block := range plan.Blocks {
		if len(block.Data) == 0 {
			continue
		}
		offset := int64(block.Extent) * sectorSize
		if _, err := sink.WriteAt(block.Data, offset); err != nil {
			return errs.Internalf("writing extent %d: %v", block.Extent, err)
		}
	}

	if t, ok := sink.(interface{ Truncate(size int64) error }); ok {
		total := int64(plan.TotalSectors) * sectorSize
		if err := t.Truncate(total); err != nil {
			return errs.Internalf("resizing image to %d bytes: %v", total, err)
		}
	}

	return nil
}

// WriteSystemArea zero-fills the 16 reserved system-area sectors; callers
// only need this for brand-new images, since Write never emits a block
// for a sector the plan did not assign, and a freshly truncated sink
// already reads back as zero there on most filesystems -- called
// explicitly anyway so behavior does not depend on that assumption.
func WriteSystemArea(sink Sink) error {
	zero := make([]byte, sectorSize)
	for i := uint32(0); i < consts.ISO9660_SYSTEM_AREA_SECTORS; i++ {
		if _, err := sink.WriteAt(zero, int64(i)*sectorSize); err != nil {
			return errs.Internalf("writing system area sector %d: %v", i, err)
		}
	}
	return nil
}
