package platform

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"ciphermarket/core/events"
	"ciphermarket/core/types"
	"ciphermarket/native/common"
)

var (
	errNilState     = errors.New("platform engine: state not configured")
	errNilAuthority = errors.New("platform engine: authority not configured")

	ErrNotAdmin     = fmt.Errorf("%w: caller lacks the admin role", common.ErrUnauthorized)
	ErrFeeTooHigh   = fmt.Errorf("%w: fee exceeds cap", common.ErrInvalidInput)
	ErrNullTreasury = fmt.Errorf("%w: treasury address must not be empty", common.ErrInvalidInput)
	ErrNoTreasury   = fmt.Errorf("%w: treasury not configured", common.ErrInvalidState)
	ErrNothingOwed  = fmt.Errorf("%w: platform balance is zero", common.ErrInvalidState)
)

type engineState interface {
	ParamsGet() (*Params, error)
	ParamsPut(*Params) error
	PlatformBalanceGet() (*big.Int, error)
	PlatformBalanceSet(*big.Int) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
	EscrowVaultAddress() [20]byte
}

// Authority resolves role membership for capability checks.
type Authority interface {
	HasRole(role string, addr [20]byte) bool
}

// Engine gates the administrative surface: fee rate, treasury address, the
// pause switch and platform-earnings withdrawal.
type Engine struct {
	mu        sync.Mutex
	state     engineState
	authority Authority
	emitter   events.Emitter
}

// NewEngine constructs a platform engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuthority configures the role resolver used for admin checks.
func (e *Engine) SetAuthority(authority Authority) { e.authority = authority }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(platformEvent{evt: evt})
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	if e.authority == nil {
		return errNilAuthority
	}
	if !e.authority.HasRole(RoleAdmin, caller) {
		return ErrNotAdmin
	}
	return nil
}

// Params returns the current platform configuration.
func (e *Engine) Params() (*Params, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	params, err := e.state.ParamsGet()
	if err != nil {
		return nil, err
	}
	return params.Clone(), nil
}

// PlatformBalance returns the accumulated, unwithdrawn fee revenue.
func (e *Engine) PlatformBalance() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.PlatformBalanceGet()
}

// SetFeeBps updates the settlement fee rate, capped at MaxFeeBps.
func (e *Engine) SetFeeBps(caller [20]byte, bps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if bps > MaxFeeBps {
		return ErrFeeTooHigh
	}
	params, err := e.state.ParamsGet()
	if err != nil {
		return err
	}
	params.FeeBps = bps
	if err := e.state.ParamsPut(params); err != nil {
		return err
	}
	e.emit(NewFeeUpdatedEvent(params))
	return nil
}

// SetTreasury updates the address receiving withdrawn platform earnings.
func (e *Engine) SetTreasury(caller [20]byte, treasury [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if treasury == ([20]byte{}) {
		return ErrNullTreasury
	}
	params, err := e.state.ParamsGet()
	if err != nil {
		return err
	}
	params.Treasury = treasury
	if err := e.state.ParamsPut(params); err != nil {
		return err
	}
	e.emit(NewTreasuryUpdatedEvent(params))
	return nil
}

// Pause blocks new escrow openings. Delivery confirmations and refund claims
// stay available so escrowed funds remain recoverable.
func (e *Engine) Pause(caller [20]byte) error { return e.setPaused(caller, true) }

// Unpause re-enables new escrow openings.
func (e *Engine) Unpause(caller [20]byte) error { return e.setPaused(caller, false) }

func (e *Engine) setPaused(caller [20]byte, paused bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	params, err := e.state.ParamsGet()
	if err != nil {
		return err
	}
	params.Paused = paused
	if err := e.state.ParamsPut(params); err != nil {
		return err
	}
	e.emit(NewPauseEvent(paused))
	return nil
}

// WithdrawPlatformEarnings transfers the entire accumulated platform balance
// from the escrow vault to the treasury and zeroes the balance.
func (e *Engine) WithdrawPlatformEarnings(caller [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	params, err := e.state.ParamsGet()
	if err != nil {
		return nil, err
	}
	if params.Treasury == ([20]byte{}) {
		return nil, ErrNoTreasury
	}
	balance, err := e.state.PlatformBalanceGet()
	if err != nil {
		return nil, err
	}
	if balance.Sign() <= 0 {
		return nil, ErrNothingOwed
	}
	vault := e.state.EscrowVaultAddress()
	vaultAcc, err := e.state.GetAccount(vault)
	if err != nil {
		return nil, err
	}
	if vaultAcc.Balance == nil || vaultAcc.Balance.Cmp(balance) < 0 {
		return nil, fmt.Errorf("%w: vault underfunded", common.ErrPayout)
	}
	treasuryAcc, err := e.state.GetAccount(params.Treasury)
	if err != nil {
		return nil, err
	}
	vaultAcc.Balance = new(big.Int).Sub(vaultAcc.Balance, balance)
	treasuryAcc.Balance = new(big.Int).Add(treasuryAcc.Balance, balance)
	if err := e.state.PutAccount(vault, vaultAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(params.Treasury, treasuryAcc); err != nil {
		return nil, err
	}
	if err := e.state.PlatformBalanceSet(big.NewInt(0)); err != nil {
		return nil, err
	}
	withdrawn := new(big.Int).Set(balance)
	e.emit(NewWithdrawalEvent(params, withdrawn))
	return withdrawn, nil
}
