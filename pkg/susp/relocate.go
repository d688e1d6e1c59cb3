package susp

// RelocationPlan describes one directory whose real position in the tree
// is deeper than ISO9660's 8-level path-table limit allows, so it must be
// linked in at a shallow synthetic location. Package layout builds one of
// these per affected directory and uses the fields below to emit the
// CL/RE/PL triangle (RRIP 4.1.5): a placeholder record in the directory's
// true parent carries CL pointing at the real directory, the real
// directory's own "." record carries RE, and its ".." record carries PL
// pointing back at the true parent.
type RelocationPlan struct {
	// RealExtent is the LBA of the relocated directory's own extent.
	RealExtent uint32
	// TrueParentExtent is the LBA of the directory's real (deep) parent,
	// recorded in its relocated ".." entry via PL.
	TrueParentExtent uint32
	// PlaceholderID and TrueParentID are the arena indices of the
	// CL-bearing placeholder and the real parent, kept so a later
	// reconcile can refresh both extents after the tree changes.
	PlaceholderID int
	TrueParentID  int
}

// PlaceholderRockRidge returns the Rock Ridge attributes for the shallow
// placeholder record left in the true parent, pointing at the relocated
// directory via CL.
func (p RelocationPlan) PlaceholderRockRidge(base *RockRidge) *RockRidge {
	out := *base
	extent := p.RealExtent
	out.ChildLinkExtent = &extent
	return &out
}

// RelocatedSelfRockRidge returns the Rock Ridge attributes for the "."
// record of the relocated directory itself, marked RE.
func (p RelocationPlan) RelocatedSelfRockRidge(base *RockRidge) *RockRidge {
	out := *base
	out.Relocated = true
	return &out
}

// RelocatedParentRockRidge returns the Rock Ridge attributes for the ".."
// record of the relocated directory, carrying PL back to its true parent
// so that "cd .." still resolves correctly for readers that understand
// Rock Ridge.
func (p RelocationPlan) RelocatedParentRockRidge(base *RockRidge) *RockRidge {
	out := *base
	extent := p.TrueParentExtent
	out.ParentLinkExtent = &extent
	return &out
}
