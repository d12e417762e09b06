package market

// ActiveIndex tracks the asset identifiers of currently sellable listings. It
// pairs an ordered sequence with a one-based reverse lookup (0 meaning "not
// present") so membership tests, inserts and removals are O(1) and paginated
// reads are O(limit). Removal swaps the last element into the vacated slot
// before shrinking, keeping every lookup entry pointed at its true position.
type ActiveIndex struct {
	ids []uint64
	pos map[uint64]int
}

// NewActiveIndex builds an index seeded with the provided identifiers,
// preserving their order. Duplicates in the seed are ignored after the first
// occurrence.
func NewActiveIndex(seed []uint64) *ActiveIndex {
	idx := &ActiveIndex{pos: make(map[uint64]int, len(seed))}
	for _, id := range seed {
		idx.Add(id)
	}
	return idx
}

// Add appends the identifier unless it is already present, in which case the
// call is a silent no-op.
func (idx *ActiveIndex) Add(id uint64) {
	if idx.pos[id] != 0 {
		return
	}
	idx.ids = append(idx.ids, id)
	idx.pos[id] = len(idx.ids)
}

// Remove deletes the identifier via swap-remove. Absent identifiers are a
// silent no-op.
func (idx *ActiveIndex) Remove(id uint64) {
	p := idx.pos[id]
	if p == 0 {
		return
	}
	last := len(idx.ids)
	if p != last {
		moved := idx.ids[last-1]
		idx.ids[p-1] = moved
		idx.pos[moved] = p
	}
	idx.ids = idx.ids[:last-1]
	delete(idx.pos, id)
}

// Contains reports whether the identifier is present.
func (idx *ActiveIndex) Contains(id uint64) bool {
	return idx.pos[id] != 0
}

// Count returns the number of active identifiers.
func (idx *ActiveIndex) Count() int {
	return len(idx.ids)
}

// Slice returns up to limit identifiers starting at offset, clipped to the
// sequence end. An offset beyond the sequence yields an empty result.
func (idx *ActiveIndex) Slice(offset, limit int) []uint64 {
	if offset < 0 || limit <= 0 || offset >= len(idx.ids) {
		return []uint64{}
	}
	end := offset + limit
	if end > len(idx.ids) {
		end = len(idx.ids)
	}
	out := make([]uint64, end-offset)
	copy(out, idx.ids[offset:end])
	return out
}

// Snapshot returns a copy of the ordered sequence for persistence.
func (idx *ActiveIndex) Snapshot() []uint64 {
	out := make([]uint64, len(idx.ids))
	copy(out, idx.ids)
	return out
}
