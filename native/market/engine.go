package market

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"ciphermarket/core/events"
	"ciphermarket/core/types"
	"ciphermarket/native/common"
)

var (
	errNilState       = errors.New("market engine: state not configured")
	errNilOwners      = errors.New("market engine: ownership registry not configured")
	ErrNotAssetOwner  = fmt.Errorf("%w: caller does not own the asset", common.ErrUnauthorized)
	ErrNotSeller      = fmt.Errorf("%w: caller is not the listing seller", common.ErrUnauthorized)
	ErrAlreadyListed  = fmt.Errorf("%w: listing already active", common.ErrInvalidState)
	ErrNotListed      = fmt.Errorf("%w: listing not active", common.ErrInvalidState)
	ErrListingMissing = fmt.Errorf("%w: listing unknown", common.ErrNotFound)
)

type engineState interface {
	ListingGet(assetID uint64) (*Listing, bool, error)
	ListingPut(*Listing) error
	ActiveIndexGet() ([]uint64, error)
	ActiveIndexPut(ids []uint64) error
}

// OwnershipVerifier consults the external asset-ownership registry. The
// marketplace only ever asks "who owns this asset"; minting and transfers
// happen elsewhere.
type OwnershipVerifier interface {
	OwnerOf(assetID uint64) ([20]byte, bool, error)
}

// Engine owns listing records and the active-listing index. All index writes
// go through the engine so the membership/position invariant holds before any
// operation returns.
type Engine struct {
	mu      sync.Mutex
	state   engineState
	owners  OwnershipVerifier
	emitter events.Emitter
	nowFn   func() int64
	idx     *ActiveIndex
}

// NewEngine constructs a listing engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetOwnershipVerifier configures the external ownership registry.
func (e *Engine) SetOwnershipVerifier(v OwnershipVerifier) { e.owners = v }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: evt})
}

func (e *Engine) index() (*ActiveIndex, error) {
	if e.idx != nil {
		return e.idx, nil
	}
	if e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.ActiveIndexGet()
	if err != nil {
		return nil, err
	}
	e.idx = NewActiveIndex(ids)
	return e.idx, nil
}

func (e *Engine) persistIndex(idx *ActiveIndex) error {
	return e.state.ActiveIndexPut(idx.Snapshot())
}

// List registers a new active listing for the asset. The caller must be the
// verified owner of the asset and no listing may currently be active for it.
func (e *Engine) List(seller [20]byte, assetID uint64, cid, hPrompt, hKeyBase [32]byte, price *big.Int) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.owners == nil {
		return nil, errNilOwners
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	owner, ok, err := e.owners.OwnerOf(assetID)
	if err != nil {
		return nil, err
	}
	if !ok || owner != seller {
		return nil, ErrNotAssetOwner
	}
	existing, ok, err := e.state.ListingGet(assetID)
	if err != nil {
		return nil, err
	}
	if ok && existing.Active {
		return nil, ErrAlreadyListed
	}
	now := e.nowFn()
	listing, err := SanitizeListing(&Listing{
		AssetID:   assetID,
		Seller:    seller,
		Price:     price,
		CID:       cid,
		HPrompt:   hPrompt,
		HKeyBase:  hKeyBase,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	idx, err := e.index()
	if err != nil {
		return nil, err
	}
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	idx.Add(assetID)
	if err := e.persistIndex(idx); err != nil {
		// The listing is already durably active; undo it so the record and
		// the persisted index never disagree across a restart.
		idx.Remove(assetID)
		rollback := existing
		if rollback == nil {
			rollback = listing.Clone()
			rollback.Active = false
		}
		if putErr := e.state.ListingPut(rollback); putErr != nil {
			return nil, fmt.Errorf("market engine: rollback failed after index error: %v (index: %w)", putErr, err)
		}
		return nil, err
	}
	e.emit(NewListedEvent(listing))
	return listing.Clone(), nil
}

// UpdatePrice changes the asking price of an active listing. Escrows opened
// before the change keep the price they snapshotted.
func (e *Engine) UpdatePrice(seller [20]byte, assetID uint64, newPrice *big.Int) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	listing, err := e.requireActive(assetID, seller)
	if err != nil {
		return nil, err
	}
	if newPrice == nil || newPrice.Sign() <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", common.ErrInvalidInput)
	}
	listing.Price = new(big.Int).Set(newPrice)
	listing.UpdatedAt = e.nowFn()
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(NewPriceUpdatedEvent(listing))
	return listing.Clone(), nil
}

// Unlist deactivates a listing and drops it from the active index.
func (e *Engine) Unlist(seller [20]byte, assetID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	listing, err := e.requireActive(assetID, seller)
	if err != nil {
		return err
	}
	idx, err := e.index()
	if err != nil {
		return err
	}
	prev := listing.Clone()
	listing.Active = false
	listing.UpdatedAt = e.nowFn()
	if err := e.state.ListingPut(listing); err != nil {
		return err
	}
	idx.Remove(assetID)
	if err := e.persistIndex(idx); err != nil {
		// Reactivate the record; the persisted index still carries the id.
		idx.Add(assetID)
		if putErr := e.state.ListingPut(prev); putErr != nil {
			return fmt.Errorf("market engine: rollback failed after index error: %v (index: %w)", putErr, err)
		}
		return err
	}
	e.emit(NewUnlistedEvent(listing))
	return nil
}

// Get returns the listing for the asset if one was ever registered.
func (e *Engine) Get(assetID uint64) (*Listing, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	listing, ok, err := e.state.ListingGet(assetID)
	if err != nil || !ok {
		return nil, false, err
	}
	return listing.Clone(), true, nil
}

// ActiveCount returns the number of currently sellable listings.
func (e *Engine) ActiveCount() (int, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, err := e.index()
	if err != nil {
		return 0, err
	}
	return idx.Count(), nil
}

// ActiveSlice returns a page of active asset identifiers.
func (e *Engine) ActiveSlice(offset, limit int) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, err := e.index()
	if err != nil {
		return nil, err
	}
	return idx.Slice(offset, limit), nil
}

func (e *Engine) requireActive(assetID uint64, seller [20]byte) (*Listing, error) {
	listing, ok, err := e.state.ListingGet(assetID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrListingMissing
	}
	if !listing.Active {
		return nil, ErrNotListed
	}
	if listing.Seller != seller {
		return nil, ErrNotSeller
	}
	return listing, nil
}
