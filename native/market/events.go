package market

import (
	"encoding/hex"
	"strconv"

	"ciphermarket/core/types"
)

const (
	EventTypeListed       = "market.listing.created"
	EventTypePriceUpdated = "market.listing.price_updated"
	EventTypeUnlisted     = "market.listing.delisted"
)

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// NewListedEvent returns the canonical payload for a freshly activated listing.
func NewListedEvent(l *Listing) *types.Event { return newListingEvent(EventTypeListed, l) }

// NewPriceUpdatedEvent returns the payload emitted after a price change.
func NewPriceUpdatedEvent(l *Listing) *types.Event { return newListingEvent(EventTypePriceUpdated, l) }

// NewUnlistedEvent returns the payload emitted when a listing is deactivated.
func NewUnlistedEvent(l *Listing) *types.Event { return newListingEvent(EventTypeUnlisted, l) }

func newListingEvent(eventType string, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["assetId"] = strconv.FormatUint(l.AssetID, 10)
	attrs["seller"] = hex.EncodeToString(l.Seller[:])
	if l.Price != nil {
		attrs["price"] = l.Price.String()
	}
	attrs["cid"] = hex.EncodeToString(l.CID[:])
	attrs["active"] = strconv.FormatBool(l.Active)
	attrs["updatedAt"] = strconv.FormatInt(l.UpdatedAt, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}
