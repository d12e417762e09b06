package state

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"ciphermarket/core/types"
	"ciphermarket/native/escrow"
	"ciphermarket/native/market"
	"ciphermarket/native/platform"
	"ciphermarket/storage"
)

// Manager provides the persisted ledger state: accounts, listings, escrows,
// the active-listing index, platform parameters, role memberships and the
// asset-ownership records the listing registry consults. Keys are keccak'd
// prefixed byte strings; values are RLP.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func prefixedKey(prefix []byte, suffix []byte) []byte {
	buf := make([]byte, 0, len(prefix)+len(suffix))
	buf = append(buf, prefix...)
	buf = append(buf, suffix...)
	return ethcrypto.Keccak256(buf)
}

func uint64Suffix(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) load(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode: %w", err)
	}
	return true, nil
}

func (m *Manager) store(key []byte, in interface{}) error {
	data, err := rlp.EncodeToBytes(in)
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	return m.db.Put(key, data)
}

// --- Accounts ---

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// GetAccount returns the account for the address, defaulting to a zero
// balance when none was persisted yet.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.load(prefixedKey(balancePrefix, addr[:]), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewAccount(), nil
	}
	acc := &types.Account{Nonce: stored.Nonce, Balance: stored.Balance}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc, nil
}

// PutAccount persists the account record.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		account = types.NewAccount()
	}
	balance := account.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	return m.store(prefixedKey(balancePrefix, addr[:]), &storedAccount{Nonce: account.Nonce, Balance: balance})
}

// --- Roles ---

func roleKey(role string) []byte {
	return prefixedKey(rolePrefix, []byte(strings.TrimSpace(role)))
}

// SetRole associates an address with the specified role. Duplicate
// assignments are a no-op.
func (m *Manager) SetRole(role string, addr [20]byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	key := roleKey(trimmed)
	var members [][]byte
	if _, err := m.load(key, &members); err != nil {
		return err
	}
	for _, member := range members {
		if len(member) == 20 && [20]byte(member) == addr {
			return nil
		}
	}
	members = append(members, addr[:])
	return m.store(key, members)
}

// HasRole reports whether the address holds the role. Read failures degrade
// to false so authorization never passes on a broken store.
func (m *Manager) HasRole(role string, addr [20]byte) bool {
	var members [][]byte
	ok, err := m.load(roleKey(role), &members)
	if err != nil || !ok {
		return false
	}
	for _, member := range members {
		if len(member) == 20 && [20]byte(member) == addr {
			return true
		}
	}
	return false
}

// --- Asset ownership (external registry view) ---

// SetAssetOwner records the owner of an asset. In a full deployment this
// mirrors the ownership registry; the listing engine only ever reads it.
func (m *Manager) SetAssetOwner(assetID uint64, owner [20]byte) error {
	return m.store(prefixedKey(assetOwnerPrefix, uint64Suffix(assetID)), owner[:])
}

// OwnerOf returns the recorded owner of the asset.
func (m *Manager) OwnerOf(assetID uint64) ([20]byte, bool, error) {
	var raw []byte
	ok, err := m.load(prefixedKey(assetOwnerPrefix, uint64Suffix(assetID)), &raw)
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	if len(raw) != 20 {
		return [20]byte{}, false, fmt.Errorf("state: malformed asset owner record")
	}
	return [20]byte(raw), true, nil
}

// --- Listings ---

type storedListing struct {
	AssetID   uint64
	Seller    [20]byte
	Price     *big.Int
	CID       [32]byte
	HPrompt   [32]byte
	HKeyBase  [32]byte
	Active    bool
	CreatedAt uint64
	UpdatedAt uint64
}

// ListingPut persists the listing after sanitising it.
func (m *Manager) ListingPut(l *market.Listing) error {
	sanitized, err := market.SanitizeListing(l)
	if err != nil {
		return err
	}
	stored := &storedListing{
		AssetID:   sanitized.AssetID,
		Seller:    sanitized.Seller,
		Price:     sanitized.Price,
		CID:       sanitized.CID,
		HPrompt:   sanitized.HPrompt,
		HKeyBase:  sanitized.HKeyBase,
		Active:    sanitized.Active,
		CreatedAt: uint64(sanitized.CreatedAt),
		UpdatedAt: uint64(sanitized.UpdatedAt),
	}
	return m.store(prefixedKey(listingPrefix, uint64Suffix(sanitized.AssetID)), stored)
}

// ListingGet loads the listing for the asset if one exists.
func (m *Manager) ListingGet(assetID uint64) (*market.Listing, bool, error) {
	var stored storedListing
	ok, err := m.load(prefixedKey(listingPrefix, uint64Suffix(assetID)), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &market.Listing{
		AssetID:   stored.AssetID,
		Seller:    stored.Seller,
		Price:     stored.Price,
		CID:       stored.CID,
		HPrompt:   stored.HPrompt,
		HKeyBase:  stored.HKeyBase,
		Active:    stored.Active,
		CreatedAt: int64(stored.CreatedAt),
		UpdatedAt: int64(stored.UpdatedAt),
	}, true, nil
}

// ActiveIndexPut persists the ordered active-listing sequence. The reverse
// lookup is rebuilt from the sequence on load.
func (m *Manager) ActiveIndexPut(ids []uint64) error {
	return m.store(kvKey(activeIndexKeyBytes), ids)
}

// ActiveIndexGet loads the ordered active-listing sequence.
func (m *Manager) ActiveIndexGet() ([]uint64, error) {
	var ids []uint64
	if _, err := m.load(kvKey(activeIndexKeyBytes), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// --- Escrows ---

type storedEscrow struct {
	ID          uint64
	AssetID     uint64
	Buyer       [20]byte
	Seller      [20]byte
	Amount      *big.Int
	Timeout     uint64
	CID         [32]byte
	HKeyBase    [32]byte
	BuyerPubKey [32]byte
	CreatedAt   uint64
	Delivered   bool
	Refunded    bool
}

// EscrowPut persists the escrow after sanitising it.
func (m *Manager) EscrowPut(e *escrow.Escrow) error {
	sanitized, err := escrow.SanitizeEscrow(e)
	if err != nil {
		return err
	}
	stored := &storedEscrow{
		ID:          sanitized.ID,
		AssetID:     sanitized.AssetID,
		Buyer:       sanitized.Buyer,
		Seller:      sanitized.Seller,
		Amount:      sanitized.Amount,
		Timeout:     uint64(sanitized.Timeout),
		CID:         sanitized.CID,
		HKeyBase:    sanitized.HKeyBase,
		BuyerPubKey: sanitized.BuyerPubKey,
		CreatedAt:   uint64(sanitized.CreatedAt),
		Delivered:   sanitized.Delivered,
		Refunded:    sanitized.Refunded,
	}
	return m.store(prefixedKey(escrowPrefix, uint64Suffix(sanitized.ID)), stored)
}

// EscrowGet loads the escrow record if it exists.
func (m *Manager) EscrowGet(id uint64) (*escrow.Escrow, bool, error) {
	var stored storedEscrow
	ok, err := m.load(prefixedKey(escrowPrefix, uint64Suffix(id)), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &escrow.Escrow{
		ID:          stored.ID,
		AssetID:     stored.AssetID,
		Buyer:       stored.Buyer,
		Seller:      stored.Seller,
		Amount:      stored.Amount,
		Timeout:     int64(stored.Timeout),
		CID:         stored.CID,
		HKeyBase:    stored.HKeyBase,
		BuyerPubKey: stored.BuyerPubKey,
		CreatedAt:   int64(stored.CreatedAt),
		Delivered:   stored.Delivered,
		Refunded:    stored.Refunded,
	}, true, nil
}

// NextEscrowID allocates the next escrow identifier. The sequence starts at 1
// and never reuses a value; 0 stays reserved as "no escrow".
func (m *Manager) NextEscrowID() (uint64, error) {
	key := kvKey(escrowSequenceKeyBytes)
	var current uint64
	if _, err := m.load(key, &current); err != nil {
		return 0, err
	}
	next := current + 1
	if err := m.store(key, next); err != nil {
		return 0, err
	}
	return next, nil
}

// EscrowVaultAddress returns the module account holding escrowed payments.
// The address is derived deterministically so it has no known private key.
func (m *Manager) EscrowVaultAddress() [20]byte {
	digest := ethcrypto.Keccak256([]byte("ciphermarket/escrow-vault"))
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}

// --- Platform parameters ---

type storedParams struct {
	FeeBps   uint32
	Treasury [20]byte
	Paused   bool
}

// ParamsPut persists the platform configuration.
func (m *Manager) ParamsPut(p *platform.Params) error {
	sanitized, err := platform.SanitizeParams(p)
	if err != nil {
		return err
	}
	stored := &storedParams{FeeBps: sanitized.FeeBps, Treasury: sanitized.Treasury, Paused: sanitized.Paused}
	return m.store(kvKey(platformParamsKeyBytes), stored)
}

// ParamsGet loads the platform configuration, defaulting when unset.
func (m *Manager) ParamsGet() (*platform.Params, error) {
	var stored storedParams
	ok, err := m.load(kvKey(platformParamsKeyBytes), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return platform.DefaultParams(), nil
	}
	return &platform.Params{FeeBps: stored.FeeBps, Treasury: stored.Treasury, Paused: stored.Paused}, nil
}

// IsPaused satisfies the pause guard consulted before new escrows open.
func (m *Manager) IsPaused(module string) bool {
	if module != escrow.ModuleName {
		return false
	}
	params, err := m.ParamsGet()
	if err != nil {
		return false
	}
	return params.Paused
}

// --- Platform balance ---

// PlatformBalanceGet returns the accumulated fee revenue.
func (m *Manager) PlatformBalanceGet() (*big.Int, error) {
	var balance *big.Int
	ok, err := m.load(kvKey(platformBalanceKeyBytes), &balance)
	if err != nil {
		return nil, err
	}
	if !ok || balance == nil {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// PlatformBalanceSet overwrites the accumulated fee revenue.
func (m *Manager) PlatformBalanceSet(balance *big.Int) error {
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Sign() < 0 {
		return fmt.Errorf("state: platform balance must not be negative")
	}
	return m.store(kvKey(platformBalanceKeyBytes), balance)
}
