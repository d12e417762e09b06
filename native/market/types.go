package market

import (
	"errors"
	"fmt"
	"math/big"
)

// Listing describes a single sellable piece of encrypted content. At most one
// listing exists per asset identifier; delisting flips Active rather than
// deleting the record so historical escrows keep a resolvable seller.
type Listing struct {
	AssetID   uint64
	Seller    [20]byte
	Price     *big.Int
	CID       [32]byte
	HPrompt   [32]byte
	HKeyBase  [32]byte
	Active    bool
	CreatedAt int64
	UpdatedAt int64
}

// Clone returns a deep copy of the listing so callers can mutate the copy
// without affecting the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// SanitizeListing validates the supplied listing and returns a cloned instance
// with a non-nil price. The original value is not mutated.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, errors.New("nil listing")
	}
	clone := l.Clone()
	if clone.Price == nil || clone.Price.Sign() <= 0 {
		return nil, fmt.Errorf("listing price must be positive")
	}
	if clone.CID == ([32]byte{}) {
		return nil, fmt.Errorf("listing cid must not be zero")
	}
	if clone.HPrompt == ([32]byte{}) {
		return nil, fmt.Errorf("listing prompt commitment must not be zero")
	}
	if clone.HKeyBase == ([32]byte{}) {
		return nil, fmt.Errorf("listing key commitment must not be zero")
	}
	return clone, nil
}
