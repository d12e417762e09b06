package escrow

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"ciphermarket/core/types"
)

const (
	EventTypeOpened    = "escrow.opened"
	EventTypeDelivered = "escrow.delivered"
	EventTypeRefunded  = "escrow.refunded"
)

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// NewOpenedEvent returns the canonical payload for a newly opened escrow. The
// buyer's encryption public key rides along so the off-ledger key exchange can
// address the right recipient.
func NewOpenedEvent(e *Escrow) *types.Event {
	evt := newEscrowEvent(EventTypeOpened, e)
	if e != nil {
		evt.Attributes["buyerPubKey"] = hex.EncodeToString(e.BuyerPubKey[:])
		evt.Attributes["timeout"] = strconv.FormatInt(e.Timeout, 10)
	}
	return evt
}

// NewDeliveredEvent returns the payload emitted when the oracle settles an
// escrow, carrying the fee split.
func NewDeliveredEvent(e *Escrow, fee, sellerNet *big.Int) *types.Event {
	evt := newEscrowEvent(EventTypeDelivered, e)
	if fee != nil {
		evt.Attributes["fee"] = fee.String()
	}
	if sellerNet != nil {
		evt.Attributes["sellerNet"] = sellerNet.String()
	}
	return evt
}

// NewRefundedEvent returns the payload emitted when the buyer reclaims an
// expired escrow.
func NewRefundedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeRefunded, e) }

func newEscrowEvent(eventType string, e *Escrow) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(e.ID, 10)
	attrs["assetId"] = strconv.FormatUint(e.AssetID, 10)
	attrs["buyer"] = hex.EncodeToString(e.Buyer[:])
	attrs["seller"] = hex.EncodeToString(e.Seller[:])
	if e.Amount != nil {
		attrs["amount"] = e.Amount.String()
	}
	attrs["status"] = e.Status()
	return &types.Event{Type: eventType, Attributes: attrs}
}
