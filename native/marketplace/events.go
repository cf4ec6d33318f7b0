package marketplace

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"fracmarket/core/types"
)

const (
	EventTypeNewOffer           = "marketplace.offer.created"
	EventTypeOfferSale          = "marketplace.offer.sale"
	EventTypeCommissionDispatch = "marketplace.commission.dispatched"
	EventTypeOfferCancellation  = "marketplace.offer.cancelled"
)

// NewOfferEvent returns the canonical event payload for a freshly created
// listing, carrying the resolved royalty denomination and receiver.
func NewOfferEvent(o *Offer) *types.Event {
	attrs := make(map[string]string)
	if o == nil {
		return &types.Event{Type: EventTypeNewOffer, Attributes: attrs}
	}
	sanitized, err := SanitizeOffer(o)
	if err != nil {
		return &types.Event{Type: EventTypeNewOffer, Attributes: attrs}
	}
	attrs["offerId"] = strconv.FormatUint(sanitized.ID, 10)
	attrs["tokenId"] = strconv.FormatUint(sanitized.TokenID, 10)
	attrs["seller"] = hex.EncodeToString(sanitized.Seller[:])
	attrs["sellingAmount"] = sanitized.SellingAmount.String()
	attrs["unitPrice"] = sanitized.UnitPrice.String()
	attrs["currency"] = sanitized.Currency
	attrs["divisible"] = strconv.FormatBool(sanitized.Divisible)
	attrs["royaltyDenomination"] = sanitized.RoyaltyDenomination.String()
	attrs["royaltyReceiver"] = hex.EncodeToString(sanitized.RoyaltyReceiver[:])
	return &types.Event{Type: EventTypeNewOffer, Attributes: attrs}
}

// NewSaleEvent returns the canonical event payload for a completed purchase
// leg.
func NewSaleEvent(o *Offer, buyer [20]byte, amount, value, royaltyAmount *big.Int) *types.Event {
	attrs := make(map[string]string)
	if o == nil {
		return &types.Event{Type: EventTypeOfferSale, Attributes: attrs}
	}
	attrs["offerId"] = strconv.FormatUint(o.ID, 10)
	attrs["tokenId"] = strconv.FormatUint(o.TokenID, 10)
	attrs["buyer"] = hex.EncodeToString(buyer[:])
	attrs["amount"] = cloneBigInt(amount).String()
	attrs["value"] = cloneBigInt(value).String()
	attrs["royaltyAmount"] = cloneBigInt(royaltyAmount).String()
	attrs["royaltyReceiver"] = hex.EncodeToString(o.RoyaltyReceiver[:])
	attrs["state"] = o.State.String()
	return &types.Event{Type: EventTypeOfferSale, Attributes: attrs}
}

// NewCommissionDispatchEvent returns the event payload emitted when a broker
// commission leg is paid alongside a sale.
func NewCommissionDispatchEvent(o *Offer, c *Commission) *types.Event {
	attrs := make(map[string]string)
	if o == nil || c == nil {
		return &types.Event{Type: EventTypeCommissionDispatch, Attributes: attrs}
	}
	attrs["offerId"] = strconv.FormatUint(o.ID, 10)
	attrs["broker"] = hex.EncodeToString(c.Broker[:])
	attrs["commissionAmount"] = cloneBigInt(c.Amount).String()
	attrs["currency"] = NormalizeCurrency(o.Currency)
	return &types.Event{Type: EventTypeCommissionDispatch, Attributes: attrs}
}

// NewCancellationEvent returns the event payload for a cancelled listing.
func NewCancellationEvent(o *Offer, caller [20]byte) *types.Event {
	attrs := make(map[string]string)
	if o == nil {
		return &types.Event{Type: EventTypeOfferCancellation, Attributes: attrs}
	}
	attrs["offerId"] = strconv.FormatUint(o.ID, 10)
	attrs["tokenId"] = strconv.FormatUint(o.TokenID, 10)
	attrs["seller"] = hex.EncodeToString(o.Seller[:])
	attrs["caller"] = hex.EncodeToString(caller[:])
	attrs["soldAmount"] = cloneBigInt(o.SoldAmount).String()
	return &types.Event{Type: EventTypeOfferCancellation, Attributes: attrs}
}
