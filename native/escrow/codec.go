package escrow

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// BindProof derives the per-escrow delivery commitment from the escrow
// identifier and the listing's base key commitment. The base commitment is
// shared by every escrow opened against the same listing, so a proof is only
// accepted when it was produced for this exact escrow identifier; a proof
// minted for one buyer cannot settle another buyer's escrow.
func BindProof(escrowID uint64, hKeyBase [32]byte) [32]byte {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], escrowID)
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(id[:], hKeyBase[:]))
	return out
}
