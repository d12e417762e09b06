package platform

import (
	"errors"
	"fmt"
)

// Fee configuration bounds, in basis points. The cap keeps platform
// extraction below 10% of any settlement.
const (
	DefaultFeeBps uint32 = 250
	MaxFeeBps     uint32 = 1_000
)

// Roles recognised by the capability layer.
const (
	RoleAdmin  = "ROLE_ADMIN"
	RoleOracle = "ROLE_ORACLE"
)

// Params holds the administrator-settable platform configuration.
type Params struct {
	FeeBps   uint32
	Treasury [20]byte
	Paused   bool
}

// DefaultParams returns the configuration applied before any administrator
// action. The treasury starts unset and must be configured before fees can be
// withdrawn.
func DefaultParams() *Params {
	return &Params{FeeBps: DefaultFeeBps}
}

// Clone returns a copy of the params.
func (p *Params) Clone() *Params {
	if p == nil {
		return DefaultParams()
	}
	clone := *p
	return &clone
}

// SanitizeParams validates the configuration, returning a clone.
func SanitizeParams(p *Params) (*Params, error) {
	if p == nil {
		return nil, errors.New("nil params")
	}
	if p.FeeBps > MaxFeeBps {
		return nil, fmt.Errorf("fee bps %d exceeds cap %d", p.FeeBps, MaxFeeBps)
	}
	return p.Clone(), nil
}
