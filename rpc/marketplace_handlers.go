package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"fracmarket/native/marketplace"
)

// OfferResult is the RPC representation of a stored offer.
type OfferResult struct {
	ID                  uint64 `json:"id"`
	TokenID             uint64 `json:"tokenId"`
	Seller              string `json:"seller"`
	SellingAmount       string `json:"sellingAmount"`
	SoldAmount          string `json:"soldAmount"`
	UnitPrice           string `json:"unitPrice"`
	Currency            string `json:"currency"`
	Divisible           bool   `json:"divisible"`
	RoyaltyDenomination string `json:"royaltyDenomination"`
	RoyaltyReceiver     string `json:"royaltyReceiver"`
	State               string `json:"state"`
	Anchor              string `json:"anchor"`
}

func offerResult(o *marketplace.Offer) *OfferResult {
	anchor := marketplace.OfferAnchor(o)
	return &OfferResult{
		ID:                  o.ID,
		TokenID:             o.TokenID,
		Seller:              hex.EncodeToString(o.Seller[:]),
		SellingAmount:       o.SellingAmount.String(),
		SoldAmount:          o.SoldAmount.String(),
		UnitPrice:           o.UnitPrice.String(),
		Currency:            o.Currency,
		Divisible:           o.Divisible,
		RoyaltyDenomination: o.RoyaltyDenomination.String(),
		RoyaltyReceiver:     hex.EncodeToString(o.RoyaltyReceiver[:]),
		State:               o.State.String(),
		Anchor:              hex.EncodeToString(anchor[:]),
	}
}

func parseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != 20 {
		return addr, fmt.Errorf("invalid address: %q", raw)
	}
	copy(addr[:], decoded)
	return addr, nil
}

func parseAmount(raw string, required bool) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		if required {
			return nil, fmt.Errorf("amount required")
		}
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %q", raw)
	}
	return value, nil
}

func parseAnchor(raw string) ([32]byte, error) {
	var anchor [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != 32 {
		return anchor, fmt.Errorf("invalid anchor: %q", raw)
	}
	copy(anchor[:], decoded)
	return anchor, nil
}

func offerIDFromURL(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, marketplace.ErrInvalidOfferID
	}
	return id, nil
}

func (s *Server) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	id, err := offerIDFromURL(r)
	if err != nil {
		s.writeError(w, "getOffer", err)
		return
	}
	offer, err := s.engine.GetOffer(id)
	if err != nil {
		s.writeError(w, "getOffer", err)
		return
	}
	writeJSON(w, http.StatusOK, offerResult(offer))
}

type listParams struct {
	Seller        string `json:"seller"`
	TokenID       uint64 `json:"tokenId"`
	SellingAmount string `json:"sellingAmount"`
	UnitPrice     string `json:"unitPrice"`
	Currency      string `json:"currency"`
	Divisible     bool   `json:"divisible"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	timer := time.Now()
	var params listParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeError(w, "list", fmt.Errorf("invalid request body: %w", err))
		return
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		s.writeError(w, "list", err)
		return
	}
	sellingAmount, err := parseAmount(params.SellingAmount, true)
	if err != nil {
		s.writeError(w, "list", err)
		return
	}
	unitPrice, err := parseAmount(params.UnitPrice, true)
	if err != nil {
		s.writeError(w, "list", err)
		return
	}
	offer, err := s.engine.List(seller, params.TokenID, sellingAmount, unitPrice, params.Currency, params.Divisible)
	if err != nil {
		s.writeError(w, "list", err)
		return
	}
	s.metrics.Listings.Inc()
	s.metrics.Latency.WithLabelValues("list").Observe(time.Since(timer).Seconds())
	writeJSON(w, http.StatusCreated, offerResult(offer))
}

type buyParams struct {
	Buyer  string `json:"buyer"`
	Amount string `json:"amount,omitempty"`
	Anchor string `json:"anchor,omitempty"`
	Value  string `json:"value,omitempty"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	timer := time.Now()
	id, err := offerIDFromURL(r)
	if err != nil {
		s.writeError(w, "buy", err)
		return
	}
	var params buyParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeError(w, "buy", fmt.Errorf("invalid request body: %w", err))
		return
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		s.writeError(w, "buy", err)
		return
	}
	value, err := parseAmount(params.Value, false)
	if err != nil {
		s.writeError(w, "buy", err)
		return
	}
	partial := strings.TrimSpace(params.Amount) != ""
	var amount *big.Int
	if partial {
		if amount, err = parseAmount(params.Amount, true); err != nil {
			s.writeError(w, "buy", err)
			return
		}
	}
	guarded := strings.TrimSpace(params.Anchor) != ""
	var anchor [32]byte
	if guarded {
		if anchor, err = parseAnchor(params.Anchor); err != nil {
			s.writeError(w, "buy", err)
			return
		}
	}
	switch {
	case partial && guarded:
		err = s.engine.SafeBuyPart(buyer, id, amount, anchor, value)
	case partial:
		err = s.engine.BuyPart(buyer, id, amount, value)
	case guarded:
		err = s.engine.SafeBuy(buyer, id, anchor, value)
	default:
		err = s.engine.Buy(buyer, id, value)
	}
	if err != nil {
		s.writeError(w, "buy", err)
		return
	}
	offer, err := s.engine.GetOffer(id)
	if err != nil {
		s.writeError(w, "buy", err)
		return
	}
	rail := "token"
	if marketplace.IsNativeCurrency(offer.Currency) {
		rail = "native"
	}
	s.metrics.Sales.WithLabelValues(rail).Inc()
	s.metrics.Latency.WithLabelValues("buy").Observe(time.Since(timer).Seconds())
	writeJSON(w, http.StatusOK, offerResult(offer))
}

type cancelParams struct {
	Caller string `json:"caller"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := offerIDFromURL(r)
	if err != nil {
		s.writeError(w, "cancel", err)
		return
	}
	var params cancelParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeError(w, "cancel", fmt.Errorf("invalid request body: %w", err))
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		s.writeError(w, "cancel", err)
		return
	}
	if err := s.engine.Cancel(caller, id); err != nil {
		s.writeError(w, "cancel", err)
		return
	}
	s.metrics.Cancellations.Inc()
	offer, err := s.engine.GetOffer(id)
	if err != nil {
		s.writeError(w, "cancel", err)
		return
	}
	writeJSON(w, http.StatusOK, offerResult(offer))
}
