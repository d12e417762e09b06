package escrow

import (
	"errors"
	"fmt"
	"math/big"
)

// Escrow captures one purchase of an encrypted asset. The record is created
// when a buyer opens the escrow and mutated exactly once, by whichever
// terminal transition fires first. Amount, CID and the key commitment are
// snapshots of the listing at open time; later listing edits never reach an
// open escrow.
type Escrow struct {
	ID          uint64
	AssetID     uint64
	Buyer       [20]byte
	Seller      [20]byte
	Amount      *big.Int
	Timeout     int64
	CID         [32]byte
	HKeyBase    [32]byte
	BuyerPubKey [32]byte
	CreatedAt   int64
	Delivered   bool
	Refunded    bool
}

// StatusOpen, StatusDelivered and StatusRefunded name the three reachable
// escrow states for reporting surfaces.
const (
	StatusOpen      = "open"
	StatusDelivered = "delivered"
	StatusRefunded  = "refunded"
)

// Status derives the reporting state from the terminal flags.
func (e *Escrow) Status() string {
	switch {
	case e == nil:
		return ""
	case e.Delivered:
		return StatusDelivered
	case e.Refunded:
		return StatusRefunded
	default:
		return StatusOpen
	}
}

// Open reports whether neither terminal transition has fired.
func (e *Escrow) Open() bool {
	return e != nil && !e.Delivered && !e.Refunded
}

// Clone returns a deep copy of the escrow so callers can mutate the copy
// without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(big.Int).Set(e.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// SanitizeEscrow validates invariants that must hold for any stored escrow
// and returns a clone with a non-nil amount. The original is not mutated.
func SanitizeEscrow(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, errors.New("nil escrow")
	}
	clone := e.Clone()
	if clone.ID == 0 {
		return nil, fmt.Errorf("escrow id must not be zero")
	}
	if clone.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("escrow amount must be positive")
	}
	if clone.Delivered && clone.Refunded {
		return nil, fmt.Errorf("escrow cannot be both delivered and refunded")
	}
	if clone.Buyer == ([20]byte{}) {
		return nil, fmt.Errorf("escrow buyer must not be empty")
	}
	return clone, nil
}
