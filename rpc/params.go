package rpc

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"ciphermarket/crypto"
	escrowengine "ciphermarket/native/escrow"
	marketengine "ciphermarket/native/market"
)

func parseAddress(value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, err
	}
	if addr.Prefix() != crypto.CMPrefix {
		return [20]byte{}, fmt.Errorf("unexpected address prefix %q", addr.Prefix())
	}
	return addr.Array(), nil
}

func formatAddress(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.CMPrefix, addr).String()
}

func parseHash32(value string) ([32]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return [32]byte{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(raw) != 32 {
		return [32]byte{}, fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	var out [32]byte
	copy(out[:], raw)
	return out, nil
}

func parseBytes(value string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return raw, nil
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

type listingJSON struct {
	AssetID   uint64 `json:"assetId"`
	Seller    string `json:"seller"`
	Price     string `json:"price"`
	CID       string `json:"cid"`
	HPrompt   string `json:"hPrompt"`
	HKeyBase  string `json:"hKeyBase"`
	Active    bool   `json:"active"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

func listingToJSON(l *marketengine.Listing) *listingJSON {
	if l == nil {
		return nil
	}
	price := "0"
	if l.Price != nil {
		price = l.Price.String()
	}
	return &listingJSON{
		AssetID:   l.AssetID,
		Seller:    formatAddress(l.Seller),
		Price:     price,
		CID:       hex.EncodeToString(l.CID[:]),
		HPrompt:   hex.EncodeToString(l.HPrompt[:]),
		HKeyBase:  hex.EncodeToString(l.HKeyBase[:]),
		Active:    l.Active,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

type escrowJSON struct {
	ID          uint64 `json:"id"`
	AssetID     uint64 `json:"assetId"`
	Buyer       string `json:"buyer"`
	Seller      string `json:"seller"`
	Amount      string `json:"amount"`
	Timeout     int64  `json:"timeout"`
	CID         string `json:"cid"`
	HKeyBase    string `json:"hKeyBase"`
	BuyerPubKey string `json:"buyerPubKey"`
	CreatedAt   int64  `json:"createdAt"`
	Status      string `json:"status"`
}

func escrowToJSON(e *escrowengine.Escrow) *escrowJSON {
	if e == nil {
		return nil
	}
	amount := "0"
	if e.Amount != nil {
		amount = e.Amount.String()
	}
	return &escrowJSON{
		ID:          e.ID,
		AssetID:     e.AssetID,
		Buyer:       formatAddress(e.Buyer),
		Seller:      formatAddress(e.Seller),
		Amount:      amount,
		Timeout:     e.Timeout,
		CID:         hex.EncodeToString(e.CID[:]),
		HKeyBase:    hex.EncodeToString(e.HKeyBase[:]),
		BuyerPubKey: hex.EncodeToString(e.BuyerPubKey[:]),
		CreatedAt:   e.CreatedAt,
		Status:      e.Status(),
	}
}
