package common

import "errors"

// Category sentinels shared by the native engines. Engine-specific failures
// wrap exactly one of these so callers (and the RPC layer) can classify any
// error with errors.Is without string matching.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("invalid state")
	ErrInvalidInput  = errors.New("invalid input")
	ErrProofMismatch = errors.New("proof mismatch")
	ErrPayout        = errors.New("payout failed")
)
