package udf

import (
	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/errs"
)

// Volume collects every UDF structure this module writes for a bridge
// disc: the anchor pointer, the main volume descriptor sequence, the
// integrity descriptor and the file set descriptor naming the root ICB.
type Volume struct {
	Anchor           AnchorVolumeDescriptorPointer
	Primary          PrimaryVolumeDescriptor
	Partition        PartitionDescriptor
	LogicalVolume    LogicalVolumeDescriptor
	UnallocatedSpace UnallocatedSpaceDescriptor
	Integrity        LogicalVolumeIntegrityDescriptor
	FileSet          FileSetDescriptor
}

// NewDomainIdentifier returns the standard UDF domain entity id stamped
// into logical volume descriptors and ICBs.
func NewDomainIdentifier() EntityID {
	id := NewEntityID("*OSTA UDF Compliant")
	id.IdentifierSuffix[0] = 0x60 // UDF revision 2.60, encoded as BCD 0x0260 split LE
	id.IdentifierSuffix[1] = 0x02
	return id
}

// MainSequenceSectors returns, in order, the sectors of the main volume
// descriptor sequence (Primary, Partition, LogicalVolume,
// UnallocatedSpace, Terminating), assigning them consecutive locations
// starting at firstSector.
func (v *Volume) MainSequenceSectors(firstSector uint32) ([][consts.UDF_SECTOR_SIZE]byte, error) {
	var sectors [][consts.UDF_SECTOR_SIZE]byte

	pvd, err := v.Primary.Marshal(firstSector)
	if err != nil {
		return nil, err
	}
	sectors = append(sectors, pvd)

	sectors = append(sectors, v.Partition.Marshal(firstSector+1))
	sectors = append(sectors, v.LogicalVolume.Marshal(firstSector+2))
	sectors = append(sectors, v.UnallocatedSpace.Marshal(firstSector+3))

	var term TerminatingDescriptor
	sectors = append(sectors, term.Marshal(firstSector+4))

	return sectors, nil
}

// ParseMainSequence reads volume descriptors from an extent until a
// Terminating Descriptor is found, dispatching each sector by its tag
// identifier.
func (v *Volume) ParseMainSequence(sectors [][consts.UDF_SECTOR_SIZE]byte) error {
	for _, sector := range sectors {
		id := PeekTagIdentifier(sector)
		switch id {
		case consts.UDF_TAG_PRIMARY_VOLUME_DESCRIPTOR:
			if err := v.Primary.Unmarshal(sector); err != nil {
				return err
			}
		case consts.UDF_TAG_PARTITION_DESCRIPTOR:
			if err := v.Partition.Unmarshal(sector); err != nil {
				return err
			}
		case consts.UDF_TAG_LOGICAL_VOLUME_DESCRIPTOR:
			if err := v.LogicalVolume.Unmarshal(sector); err != nil {
				return err
			}
		case consts.UDF_TAG_UNALLOCATED_SPACE_DESCRIPTOR:
			// zero entries written by this module; nothing to decode
		case consts.UDF_TAG_TERMINATING_DESCRIPTOR:
			var term TerminatingDescriptor
			return term.Unmarshal(sector)
		default:
			return errs.Malformedf(0, 0, "unexpected udf volume descriptor tag %d", id)
		}
	}
	return errs.Malformedf(0, 0, "udf volume descriptor sequence missing terminating descriptor")
}

// PeekTagIdentifier returns the Descriptor Tag's identifier field of a
// raw UDF sector without fully decoding or checksum-validating it.
func PeekTagIdentifier(sector [consts.UDF_SECTOR_SIZE]byte) uint16 {
	return uint16(sector[0]) | uint16(sector[1])<<8
}
