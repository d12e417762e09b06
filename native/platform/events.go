package platform

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"ciphermarket/core/types"
)

const (
	EventTypeFeeUpdated      = "platform.fee_updated"
	EventTypeTreasuryUpdated = "platform.treasury_updated"
	EventTypePaused          = "platform.paused"
	EventTypeUnpaused        = "platform.unpaused"
	EventTypeWithdrawal      = "platform.withdrawal"
)

type platformEvent struct {
	evt *types.Event
}

func (e platformEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e platformEvent) Event() *types.Event { return e.evt }

// NewFeeUpdatedEvent returns the payload emitted after a fee-rate change.
func NewFeeUpdatedEvent(p *Params) *types.Event {
	attrs := map[string]string{}
	if p != nil {
		attrs["feeBps"] = strconv.FormatUint(uint64(p.FeeBps), 10)
	}
	return &types.Event{Type: EventTypeFeeUpdated, Attributes: attrs}
}

// NewTreasuryUpdatedEvent returns the payload emitted after a treasury change.
func NewTreasuryUpdatedEvent(p *Params) *types.Event {
	attrs := map[string]string{}
	if p != nil {
		attrs["treasury"] = hex.EncodeToString(p.Treasury[:])
	}
	return &types.Event{Type: EventTypeTreasuryUpdated, Attributes: attrs}
}

// NewPauseEvent returns the payload for a pause-switch flip.
func NewPauseEvent(paused bool) *types.Event {
	eventType := EventTypeUnpaused
	if paused {
		eventType = EventTypePaused
	}
	return &types.Event{Type: eventType, Attributes: map[string]string{}}
}

// NewWithdrawalEvent returns the payload emitted when platform earnings are
// swept to the treasury.
func NewWithdrawalEvent(p *Params, amount *big.Int) *types.Event {
	attrs := map[string]string{}
	if p != nil {
		attrs["treasury"] = hex.EncodeToString(p.Treasury[:])
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: EventTypeWithdrawal, Attributes: attrs}
}
