package market

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"ciphermarket/native/common"
)

type mockState struct {
	listings     map[uint64]*Listing
	index        []uint64
	indexPut     int
	failIndexPut bool
}

func newMockState() *mockState {
	return &mockState{listings: make(map[uint64]*Listing)}
}

func (m *mockState) ListingGet(assetID uint64) (*Listing, bool, error) {
	listing, ok := m.listings[assetID]
	if !ok {
		return nil, false, nil
	}
	return listing.Clone(), true, nil
}

func (m *mockState) ListingPut(l *Listing) error {
	sanitized, err := SanitizeListing(l)
	if err != nil {
		return err
	}
	m.listings[sanitized.AssetID] = sanitized.Clone()
	return nil
}

func (m *mockState) ActiveIndexGet() ([]uint64, error) {
	return append([]uint64(nil), m.index...), nil
}

func (m *mockState) ActiveIndexPut(ids []uint64) error {
	if m.failIndexPut {
		return fmt.Errorf("mock index write failure")
	}
	m.index = append([]uint64(nil), ids...)
	m.indexPut++
	return nil
}

type mockOwners struct {
	owners map[uint64][20]byte
}

func (m *mockOwners) OwnerOf(assetID uint64) ([20]byte, bool, error) {
	owner, ok := m.owners[assetID]
	return owner, ok, nil
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestHash(fill byte) [32]byte {
	var h [32]byte
	copy(h[:], bytes.Repeat([]byte{fill}, 32))
	return h
}

var (
	seller   = newTestAddress(0x02)
	stranger = newTestAddress(0x05)
)

func newTestEngine(state *mockState, owned ...uint64) *Engine {
	owners := &mockOwners{owners: make(map[uint64][20]byte)}
	for _, id := range owned {
		owners.owners[id] = seller
	}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetOwnershipVerifier(owners)
	engine.SetNowFunc(func() int64 { return 1_000 })
	return engine
}

func list(t *testing.T, engine *Engine, assetID uint64, price int64) *Listing {
	t.Helper()
	listing, err := engine.List(seller, assetID, newTestHash(0x11), newTestHash(0x22), newTestHash(0x33), big.NewInt(price))
	if err != nil {
		t.Fatalf("list asset %d: %v", assetID, err)
	}
	return listing
}

func TestListActivatesAndIndexes(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, 7)

	listing := list(t, engine, 7, 100)
	if !listing.Active {
		t.Fatalf("listing not active")
	}
	count, err := engine.ActiveCount()
	if err != nil || count != 1 {
		t.Fatalf("expected one active listing, got %d (%v)", count, err)
	}
	ids, err := engine.ActiveSlice(0, 10)
	if err != nil || len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("expected slice [7], got %v (%v)", ids, err)
	}
	if len(state.index) != 1 || state.index[0] != 7 {
		t.Fatalf("index not persisted: %v", state.index)
	}

	// The second activation attempt fails while the first is live.
	if _, err := engine.List(seller, 7, newTestHash(0x11), newTestHash(0x22), newTestHash(0x33), big.NewInt(50)); !errors.Is(err, ErrAlreadyListed) {
		t.Fatalf("expected already listed, got %v", err)
	}
}

func TestListValidation(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, 7)

	if _, err := engine.List(stranger, 7, newTestHash(0x11), newTestHash(0x22), newTestHash(0x33), big.NewInt(100)); !errors.Is(err, ErrNotAssetOwner) {
		t.Fatalf("expected owner check, got %v", err)
	}
	if _, err := engine.List(seller, 8, newTestHash(0x11), newTestHash(0x22), newTestHash(0x33), big.NewInt(100)); !errors.Is(err, ErrNotAssetOwner) {
		t.Fatalf("expected owner check for unregistered asset, got %v", err)
	}
	if _, err := engine.List(seller, 7, [32]byte{}, newTestHash(0x22), newTestHash(0x33), big.NewInt(100)); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected zero cid rejection, got %v", err)
	}
	if _, err := engine.List(seller, 7, newTestHash(0x11), [32]byte{}, newTestHash(0x33), big.NewInt(100)); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected zero prompt commitment rejection, got %v", err)
	}
	if _, err := engine.List(seller, 7, newTestHash(0x11), newTestHash(0x22), [32]byte{}, big.NewInt(100)); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected zero key commitment rejection, got %v", err)
	}
	if _, err := engine.List(seller, 7, newTestHash(0x11), newTestHash(0x22), newTestHash(0x33), big.NewInt(0)); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected zero price rejection, got %v", err)
	}
	if count, _ := engine.ActiveCount(); count != 0 {
		t.Fatalf("failed lists leaked into the index")
	}
}

func TestUpdatePrice(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, 7)
	list(t, engine, 7, 100)

	if _, err := engine.UpdatePrice(stranger, 7, big.NewInt(200)); !errors.Is(err, ErrNotSeller) {
		t.Fatalf("expected seller check, got %v", err)
	}
	if _, err := engine.UpdatePrice(seller, 9, big.NewInt(200)); !errors.Is(err, ErrListingMissing) {
		t.Fatalf("expected unknown listing, got %v", err)
	}
	if _, err := engine.UpdatePrice(seller, 7, big.NewInt(-1)); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected price validation, got %v", err)
	}
	updated, err := engine.UpdatePrice(seller, 7, big.NewInt(250))
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if updated.Price.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("price not updated: %s", updated.Price)
	}
	stored, _, _ := engine.Get(7)
	if stored.Price.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("price not persisted")
	}
}

func TestUnlist(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, 7, 8)
	list(t, engine, 7, 100)
	list(t, engine, 8, 200)

	if err := engine.Unlist(stranger, 7); !errors.Is(err, ErrNotSeller) {
		t.Fatalf("expected seller check, got %v", err)
	}
	if err := engine.Unlist(seller, 7); err != nil {
		t.Fatalf("unlist: %v", err)
	}
	if err := engine.Unlist(seller, 7); !errors.Is(err, ErrNotListed) {
		t.Fatalf("expected not listed on second unlist, got %v", err)
	}

	stored, ok, _ := engine.Get(7)
	if !ok || stored.Active {
		t.Fatalf("listing should remain readable but inactive")
	}
	count, _ := engine.ActiveCount()
	if count != 1 {
		t.Fatalf("expected one remaining active listing, got %d", count)
	}
	ids, _ := engine.ActiveSlice(0, 10)
	if len(ids) != 1 || ids[0] != 8 {
		t.Fatalf("expected slice [8], got %v", ids)
	}

	// Updates on the delisted asset fail until it is listed again.
	if _, err := engine.UpdatePrice(seller, 7, big.NewInt(300)); !errors.Is(err, ErrNotListed) {
		t.Fatalf("expected not listed, got %v", err)
	}

	// Relisting reactivates the asset with fresh terms.
	relisted := list(t, engine, 7, 500)
	if !relisted.Active || relisted.Price.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("relist failed: %+v", relisted)
	}
	count, _ = engine.ActiveCount()
	if count != 2 {
		t.Fatalf("expected two active listings after relist, got %d", count)
	}
}

func TestListRollsBackWhenIndexWriteFails(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, 7)

	state.failIndexPut = true
	if _, err := engine.List(seller, 7, newTestHash(0x11), newTestHash(0x22), newTestHash(0x33), big.NewInt(100)); err == nil {
		t.Fatalf("expected index write failure to surface")
	}
	if stored, ok := state.listings[7]; ok && stored.Active {
		t.Fatalf("listing left durably active without index membership")
	}
	if len(state.index) != 0 {
		t.Fatalf("index persisted despite failure: %v", state.index)
	}
	if count, _ := engine.ActiveCount(); count != 0 {
		t.Fatalf("cached index not rolled back, count %d", count)
	}

	// A retry after the store recovers succeeds cleanly.
	state.failIndexPut = false
	list(t, engine, 7, 100)
	if count, _ := engine.ActiveCount(); count != 1 {
		t.Fatalf("expected one active listing after retry, got %d", count)
	}
	if len(state.index) != 1 || state.index[0] != 7 {
		t.Fatalf("index not persisted on retry: %v", state.index)
	}
}

func TestUnlistRollsBackWhenIndexWriteFails(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, 7)
	list(t, engine, 7, 100)

	state.failIndexPut = true
	if err := engine.Unlist(seller, 7); err == nil {
		t.Fatalf("expected index write failure to surface")
	}
	if stored := state.listings[7]; !stored.Active {
		t.Fatalf("listing deactivated while still in the persisted index")
	}
	if len(state.index) != 1 || state.index[0] != 7 {
		t.Fatalf("persisted index mutated despite failure: %v", state.index)
	}
	if count, _ := engine.ActiveCount(); count != 1 {
		t.Fatalf("cached index not rolled back, count %d", count)
	}

	state.failIndexPut = false
	if err := engine.Unlist(seller, 7); err != nil {
		t.Fatalf("unlist after recovery: %v", err)
	}
	if stored := state.listings[7]; stored.Active {
		t.Fatalf("listing still active after recovered unlist")
	}
	if len(state.index) != 0 {
		t.Fatalf("index still carries the id: %v", state.index)
	}
}
