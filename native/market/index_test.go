package market

import (
	"math/rand"
	"testing"
)

func checkIndexInvariant(t *testing.T, idx *ActiveIndex) {
	t.Helper()
	if len(idx.ids) != len(idx.pos) {
		t.Fatalf("sequence length %d != lookup size %d", len(idx.ids), len(idx.pos))
	}
	for i, id := range idx.ids {
		if idx.pos[id] != i+1 {
			t.Fatalf("lookup for %d points at %d, true position %d", id, idx.pos[id], i+1)
		}
	}
}

func TestActiveIndexAddRemove(t *testing.T) {
	idx := NewActiveIndex(nil)
	for _, id := range []uint64{10, 20, 30, 40} {
		idx.Add(id)
	}
	checkIndexInvariant(t, idx)
	if idx.Count() != 4 || !idx.Contains(30) {
		t.Fatalf("unexpected index contents")
	}

	// Duplicate add is a silent no-op.
	idx.Add(20)
	if idx.Count() != 4 {
		t.Fatalf("duplicate add changed the index")
	}
	checkIndexInvariant(t, idx)

	// Removing from the middle swaps the tail element in.
	idx.Remove(20)
	checkIndexInvariant(t, idx)
	if idx.Contains(20) || idx.Count() != 3 {
		t.Fatalf("remove failed")
	}
	if got := idx.Snapshot(); got[1] != 40 {
		t.Fatalf("expected tail element swapped into slot, got %v", got)
	}

	// Removing an absent id is a silent no-op.
	idx.Remove(99)
	if idx.Count() != 3 {
		t.Fatalf("absent remove changed the index")
	}

	idx.Remove(40)
	idx.Remove(10)
	idx.Remove(30)
	checkIndexInvariant(t, idx)
	if idx.Count() != 0 {
		t.Fatalf("index not empty after removing everything")
	}
}

func TestActiveIndexSlice(t *testing.T) {
	idx := NewActiveIndex([]uint64{1, 2, 3, 4, 5})
	cases := []struct {
		offset, limit int
		want          []uint64
	}{
		{0, 2, []uint64{1, 2}},
		{3, 10, []uint64{4, 5}},
		{4, 1, []uint64{5}},
		{5, 3, []uint64{}},
		{99, 3, []uint64{}},
		{0, 0, []uint64{}},
		{-1, 2, []uint64{}},
	}
	for _, tc := range cases {
		got := idx.Slice(tc.offset, tc.limit)
		if len(got) != len(tc.want) {
			t.Fatalf("slice(%d,%d): got %v want %v", tc.offset, tc.limit, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("slice(%d,%d): got %v want %v", tc.offset, tc.limit, got, tc.want)
			}
		}
	}
}

func TestActiveIndexRandomChurn(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	idx := NewActiveIndex(nil)
	live := make(map[uint64]bool)
	for i := 0; i < 2_000; i++ {
		id := uint64(rng.Intn(200) + 1)
		if rng.Intn(2) == 0 {
			idx.Add(id)
			live[id] = true
		} else {
			idx.Remove(id)
			delete(live, id)
		}
	}
	checkIndexInvariant(t, idx)
	if idx.Count() != len(live) {
		t.Fatalf("count %d != live set %d", idx.Count(), len(live))
	}
	for id := range live {
		if !idx.Contains(id) {
			t.Fatalf("live id %d missing from index", id)
		}
	}
}
