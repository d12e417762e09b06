package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"ciphermarket/core/events"
	"ciphermarket/core/types"
	"ciphermarket/native/common"
	"ciphermarket/native/market"
	"ciphermarket/native/platform"
)

// ModuleName identifies the escrow module to the pause guard. Pausing blocks
// new escrows only; funds already in custody stay recoverable.
const ModuleName = "escrow"

// Timeout duration bounds for a new escrow, in seconds.
const (
	MinTimeoutSeconds = 3_600
	MaxTimeoutSeconds = 2_592_000
)

var (
	errNilState     = errors.New("escrow engine: state not configured")
	errNilAuthority = errors.New("escrow engine: authority not configured")

	ErrNotOracle         = fmt.Errorf("%w: caller lacks the oracle role", common.ErrUnauthorized)
	ErrNotBuyer          = fmt.Errorf("%w: caller is not the escrow buyer", common.ErrUnauthorized)
	ErrEscrowMissing     = fmt.Errorf("%w: escrow unknown", common.ErrNotFound)
	ErrListingInactive   = fmt.Errorf("%w: listing not active", common.ErrInvalidState)
	ErrAlreadyDelivered  = fmt.Errorf("%w: already delivered", common.ErrInvalidState)
	ErrAlreadyRefunded   = fmt.Errorf("%w: already refunded", common.ErrInvalidState)
	ErrTimeoutNotReached = fmt.Errorf("%w: timeout not reached", common.ErrInvalidState)
	ErrSelfPurchase      = fmt.Errorf("%w: seller cannot buy own listing", common.ErrInvalidInput)
	ErrBadPubKey         = fmt.Errorf("%w: buyer public key must be 32 bytes", common.ErrInvalidInput)
	ErrTimeoutRange      = fmt.Errorf("%w: timeout duration out of range", common.ErrInvalidInput)
	ErrInsufficientPay   = fmt.Errorf("%w: payment below listing price", common.ErrInvalidInput)
	ErrChannelMetadata   = fmt.Errorf("%w: delivery channel metadata missing", common.ErrInvalidInput)
	ErrProofMismatch     = fmt.Errorf("%w: delivery proof does not bind to escrow", common.ErrProofMismatch)
)

type engineState interface {
	EscrowGet(id uint64) (*Escrow, bool, error)
	EscrowPut(*Escrow) error
	NextEscrowID() (uint64, error)
	ListingGet(assetID uint64) (*market.Listing, bool, error)
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
	EscrowVaultAddress() [20]byte
	ParamsGet() (*platform.Params, error)
	PlatformBalanceGet() (*big.Int, error)
	PlatformBalanceSet(*big.Int) error
}

// Authority resolves role membership for capability checks. The state machine
// itself never inspects role storage.
type Authority interface {
	HasRole(role string, addr [20]byte) bool
}

// Engine drives the escrow state machine: payment custody at open, the
// oracle-gated Delivered transition and the timeout-gated Refunded transition.
// Every public operation runs under the engine mutex, which doubles as the
// non-reentrant section required around payouts: a callback cannot re-enter
// any mutating operation before the first call's effects are committed.
type Engine struct {
	mu        sync.Mutex
	state     engineState
	authority Authority
	pauses    common.PauseView
	emitter   events.Emitter
	nowFn     func() int64
}

// NewEngine creates an escrow engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuthority configures the role resolver used for oracle checks.
func (e *Engine) SetAuthority(authority Authority) { e.authority = authority }

// SetPauses configures the pause view guarding new escrows.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
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
	e.emitter.Emit(escrowEvent{evt: evt})
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// transfer is the custody primitive used by every payout path. It moves value
// between ledger accounts and fails without side effects when the source
// balance is short.
func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("escrow engine: negative transfer amount")
	}
	fromAcc, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to)
	if err != nil {
		return err
	}
	if fromAcc.Balance == nil || fromAcc.Balance.Cmp(amt) < 0 {
		return fmt.Errorf("%w: insufficient balance", common.ErrPayout)
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	if toAcc.Balance == nil {
		toAcc.Balance = big.NewInt(0)
	}
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	if err := e.state.PutAccount(to, toAcc); err != nil {
		// Return the debit so a failed credit never destroys value.
		fromAcc.Balance = new(big.Int).Add(fromAcc.Balance, amt)
		if putErr := e.state.PutAccount(from, fromAcc); putErr != nil {
			return fmt.Errorf("escrow engine: rollback failed after credit error: %v (credit: %w)", putErr, err)
		}
		return err
	}
	return nil
}

// Open creates a new escrow against an active listing, taking custody of the
// listing price and returning any overpayment to the buyer within the same
// atomic operation.
func (e *Engine) Open(buyer [20]byte, assetID uint64, buyerPubKey []byte, timeoutSeconds int64, payment *big.Int) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	listing, ok, err := e.state.ListingGet(assetID)
	if err != nil {
		return nil, err
	}
	if !ok || !listing.Active {
		return nil, ErrListingInactive
	}
	if buyer == listing.Seller {
		return nil, ErrSelfPurchase
	}
	if len(buyerPubKey) != 32 {
		return nil, ErrBadPubKey
	}
	if timeoutSeconds < MinTimeoutSeconds || timeoutSeconds > MaxTimeoutSeconds {
		return nil, ErrTimeoutRange
	}
	price := cloneBigInt(listing.Price)
	sent := cloneBigInt(payment)
	if sent.Cmp(price) < 0 {
		return nil, ErrInsufficientPay
	}

	vault := e.state.EscrowVaultAddress()
	if err := e.transfer(buyer, vault, sent); err != nil {
		return nil, err
	}
	overpay := new(big.Int).Sub(sent, price)
	if overpay.Sign() > 0 {
		if err := e.transfer(vault, buyer, overpay); err != nil {
			return nil, err
		}
	}

	id, err := e.state.NextEscrowID()
	if err != nil {
		// Return custody before surfacing the failure.
		_ = e.transfer(vault, buyer, price)
		return nil, err
	}
	now := e.nowFn()
	esc := &Escrow{
		ID:        id,
		AssetID:   assetID,
		Buyer:     buyer,
		Seller:    listing.Seller,
		Amount:    price,
		Timeout:   now + timeoutSeconds,
		CID:       listing.CID,
		HKeyBase:  listing.HKeyBase,
		CreatedAt: now,
	}
	copy(esc.BuyerPubKey[:], buyerPubKey)
	if err := e.state.EscrowPut(esc); err != nil {
		_ = e.transfer(vault, buyer, price)
		return nil, err
	}
	e.emit(NewOpenedEvent(esc))
	return esc.Clone(), nil
}

// ConfirmDelivery settles an open escrow in the seller's favour once the
// oracle presents the binding delivery proof. The escrow is marked delivered
// before any value moves; if the payout cannot complete, the transition is
// rolled back so the ledger is never left delivered-but-unpaid.
func (e *Engine) ConfirmDelivery(caller [20]byte, escrowID uint64, proof [32]byte, channelTopic [32]byte, channelRound uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.authority == nil {
		return errNilAuthority
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.authority.HasRole(platform.RoleOracle, caller) {
		return ErrNotOracle
	}
	esc, err := e.loadEscrow(escrowID)
	if err != nil {
		return err
	}
	if esc.Delivered {
		return ErrAlreadyDelivered
	}
	if esc.Refunded {
		return ErrAlreadyRefunded
	}
	if channelTopic == ([32]byte{}) || channelRound == 0 {
		return ErrChannelMetadata
	}
	if proof != BindProof(esc.ID, esc.HKeyBase) {
		return ErrProofMismatch
	}
	params, err := e.state.ParamsGet()
	if err != nil {
		return err
	}
	amount := cloneBigInt(esc.Amount)
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(params.FeeBps)))
	fee.Div(fee, big.NewInt(10_000))
	sellerNet := new(big.Int).Sub(amount, fee)

	prev := esc.Clone()
	esc.Delivered = true
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	if err := e.settleDelivery(esc, fee, sellerNet); err != nil {
		if putErr := e.state.EscrowPut(prev); putErr != nil {
			return fmt.Errorf("escrow engine: rollback failed after payout error: %v (payout: %w)", putErr, err)
		}
		return err
	}
	e.emit(NewDeliveredEvent(esc, fee, sellerNet))
	return nil
}

func (e *Engine) settleDelivery(esc *Escrow, fee, sellerNet *big.Int) error {
	vault := e.state.EscrowVaultAddress()
	prevBalance, err := e.state.PlatformBalanceGet()
	if err != nil {
		return err
	}
	if fee.Sign() > 0 {
		if err := e.state.PlatformBalanceSet(new(big.Int).Add(prevBalance, fee)); err != nil {
			return err
		}
	}
	if err := e.transfer(vault, esc.Seller, sellerNet); err != nil {
		if fee.Sign() > 0 {
			_ = e.state.PlatformBalanceSet(prevBalance)
		}
		return err
	}
	return nil
}

// ClaimRefund returns the full escrowed amount to the buyer once the timeout
// has elapsed without a delivery confirmation.
func (e *Engine) ClaimRefund(caller [20]byte, escrowID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	esc, err := e.loadEscrow(escrowID)
	if err != nil {
		return err
	}
	if caller != esc.Buyer {
		return ErrNotBuyer
	}
	if esc.Delivered {
		return ErrAlreadyDelivered
	}
	if esc.Refunded {
		return ErrAlreadyRefunded
	}
	if e.nowFn() < esc.Timeout {
		return ErrTimeoutNotReached
	}
	prev := esc.Clone()
	esc.Refunded = true
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	if err := e.transfer(e.state.EscrowVaultAddress(), esc.Buyer, esc.Amount); err != nil {
		if putErr := e.state.EscrowPut(prev); putErr != nil {
			return fmt.Errorf("escrow engine: rollback failed after payout error: %v (payout: %w)", putErr, err)
		}
		return err
	}
	e.emit(NewRefundedEvent(esc))
	return nil
}

// CanRefund reports whether the buyer could claim a refund right now.
func (e *Engine) CanRefund(escrowID uint64) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	esc, err := e.loadEscrow(escrowID)
	if err != nil {
		return false, err
	}
	return esc.Open() && e.nowFn() >= esc.Timeout, nil
}

// Get returns the escrow record if it exists. Records are never deleted; a
// settled escrow stays readable as an audit trail.
func (e *Engine) Get(escrowID uint64) (*Escrow, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	esc, ok, err := e.state.EscrowGet(escrowID)
	if err != nil || !ok {
		return nil, false, err
	}
	return esc.Clone(), true, nil
}

func (e *Engine) loadEscrow(id uint64) (*Escrow, error) {
	esc, ok, err := e.state.EscrowGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || esc.Buyer == ([20]byte{}) {
		return nil, ErrEscrowMissing
	}
	return esc, nil
}
