package susp

import "github.com/voliso/voliso/pkg/errs"

// ceEntrySize is the on-disk size of a CE entry (4-byte header + 24-byte
// payload), reserved whenever a packed stream must continue elsewhere.
const ceEntrySize = 28

// PackResult is the outcome of packing a set of SUSP entries into a
// directory record's system-use area plus however many continuation
// blocks were needed.
type PackResult struct {
	// Inline is the byte stream to place directly in the directory
	// record's system-use area, CE entry included if Continuation is
	// non-empty.
	Inline []byte

	// Continuation holds the byte streams of each continuation area, in
	// the order they must be written. The first one is pointed to by the
	// CE entry appended to Inline; each subsequent one is pointed to by a
	// CE entry appended to the previous continuation block.
	Continuation [][]byte
}

// Pack lays out entries into a directory record's system-use area, which
// has firstBudget bytes available, spilling overflow into one or more
// continuation areas of at most blockBudget bytes apiece (the logical
// sector size). The caller (the layout planner) is responsible for
// assigning real extents to each Continuation block and rewriting the
// placeholder CE pointers via Relocate before the image is written.
func Pack(entries []*Entry, firstBudget, blockBudget int) (*PackResult, error) {
	for _, e := range entries {
		if e.Length() > blockBudget {
			return nil, errs.InvalidInputf("SUSP entry %s is %d bytes, larger than the %d-byte continuation block budget", e.Tag, e.Length(), blockBudget)
		}
	}

	result := &PackResult{}
	remaining := entries
	budget := firstBudget
	first := true

	for {
		var fitted []*Entry
		consumed := 0
		for i, e := range remaining {
			n := e.Length()
			effectiveBudget := budget
			// Reserve room for a trailing CE entry unless every
			// remaining entry (after this one) also fits.
			if i < len(remaining)-1 {
				effectiveBudget -= ceEntrySize
			}
			if consumed+n > effectiveBudget {
				break
			}
			fitted = append(fitted, e)
			consumed += n
		}
		// With nothing fitting, the record's own area can still hold just
		// the CE pointing at the continuation; a continuation block cannot.
		if len(fitted) == 0 && len(remaining) > 0 && (!first || budget < ceEntrySize) {
			return nil, errs.InvalidInputf("SUSP entry %s does not fit in the available %d-byte budget", remaining[0].Tag, budget)
		}

		var block []byte
		for _, e := range fitted {
			b, err := e.Marshal()
			if err != nil {
				return nil, err
			}
			block = append(block, b...)
		}
		remaining = remaining[len(fitted):]

		if len(remaining) > 0 {
			// Placeholder CE: extent 0 is a sentinel the layout planner
			// must overwrite via Relocate once continuation extents are
			// assigned.
			ce := EncodeCE(0, 0, 0)
			ceBytes, err := ce.Marshal()
			if err != nil {
				return nil, err
			}
			block = append(block, ceBytes...)
		}

		if first {
			result.Inline = block
			first = false
		} else {
			result.Continuation = append(result.Continuation, block)
		}

		if len(remaining) == 0 {
			break
		}
		budget = blockBudget
	}

	return result, nil
}

// Relocate rewrites the placeholder CE entry at the tail of block (Inline
// or one of Continuation[:n]) to point at the real extent/offset/length of
// the next block in the chain. index selects which block's trailing CE to
// rewrite: -1 for Inline, or the index into Continuation.
func (p *PackResult) Relocate(index int, extent, offset, length uint32) error {
	var block *[]byte
	if index < 0 {
		block = &p.Inline
	} else {
		if index >= len(p.Continuation) {
			return errs.Internalf("continuation index %d out of range", index)
		}
		block = &p.Continuation[index]
	}
	b := *block
	if len(b) < ceEntrySize {
		return errs.Internalf("block has no trailing CE entry to relocate")
	}
	tail := b[len(b)-ceEntrySize:]
	if tail[0] != TagCE[0] || tail[1] != TagCE[1] {
		return errs.Internalf("block's trailing entry is not a CE entry")
	}
	ce := EncodeCE(extent, offset, length)
	ceBytes, err := ce.Marshal()
	if err != nil {
		return err
	}
	copy(tail, ceBytes)
	return nil
}
