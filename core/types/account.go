package types

import "math/big"

// Account holds the spendable balance tracked for a marketplace participant.
// Module vaults (escrow custody, treasury) are ordinary accounts addressed by
// derived identifiers.
type Account struct {
	Nonce   uint64
	Balance *big.Int
}

// NewAccount returns an account with a zero balance.
func NewAccount() *Account {
	return &Account{Balance: big.NewInt(0)}
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := &Account{Nonce: a.Nonce, Balance: big.NewInt(0)}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return clone
}
