// Package descriptor implements the ISO9660 volume descriptors (component
// C4): Primary, Supplementary (Joliet), Boot Record, Volume Partition, and
// the Set Terminator, each a fixed 2048-byte logical sector.
package descriptor

import (
	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/errs"
)

// Type is the Volume Descriptor Type byte (ECMA-119 8.1).
type Type uint8

const (
	TypeBootRecord    Type = 0
	TypePrimary       Type = 1
	TypeSupplementary Type = 2
	TypePartition     Type = 3
	TypeTerminator    Type = 255
)

// HeaderSize is the on-disk size of Header.
const HeaderSize = consts.ISO9660_VOLUME_DESC_HEADER_SIZE

// Header is the common 7-byte prefix of every volume descriptor.
type Header struct {
	Type       Type
	Identifier string
	Version    uint8
}

func (h *Header) Marshal() [HeaderSize]byte {
	var buf [HeaderSize]byte
	buf[0] = byte(h.Type)
	id := padRight(h.Identifier, 5)
	copy(buf[1:6], id)
	buf[6] = h.Version
	return buf
}

func (h *Header) Unmarshal(data [HeaderSize]byte) error {
	h.Type = Type(data[0])
	h.Identifier = string(data[1:6])
	h.Version = data[6]
	if h.Identifier != consts.ISO9660_STD_IDENTIFIER {
		return errs.Malformedf(0, 0, "unexpected standard identifier %q, want %q", h.Identifier, consts.ISO9660_STD_IDENTIFIER)
	}
	return nil
}

func padRight(s string, n int) []byte {
	out := make([]byte, n)
	copy(out, s)
	for i := len(s); i < n; i++ {
		out[i] = ' '
	}
	return out
}

func trimPadded(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return string(b[:end])
}
