package marketplace

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// Storage abstracts the subset of state manager functionality required by the
// offer ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	offerRecordPrefix = []byte("market/offer/")
	offerSequenceKey  = []byte("market/offer/seq")
)

// storedOffer is the persisted shape of an offer record. big.Int fields are
// kept as big.Int; rlp encodes them losslessly as unsigned integers.
type storedOffer struct {
	ID                  uint64
	TokenID             uint64
	Seller              [20]byte
	SellingAmount       *big.Int
	SoldAmount          *big.Int
	UnitPrice           *big.Int
	Currency            string
	Divisible           bool
	RoyaltyDenomination *big.Int
	RoyaltyReceiver     [20]byte
	State               uint8
}

func toStoredOffer(o *Offer) *storedOffer {
	return &storedOffer{
		ID:                  o.ID,
		TokenID:             o.TokenID,
		Seller:              o.Seller,
		SellingAmount:       cloneBigInt(o.SellingAmount),
		SoldAmount:          cloneBigInt(o.SoldAmount),
		UnitPrice:           cloneBigInt(o.UnitPrice),
		Currency:            o.Currency,
		Divisible:           o.Divisible,
		RoyaltyDenomination: cloneBigInt(o.RoyaltyDenomination),
		RoyaltyReceiver:     o.RoyaltyReceiver,
		State:               uint8(o.State),
	}
}

func fromStoredOffer(s *storedOffer) *Offer {
	return &Offer{
		ID:                  s.ID,
		TokenID:             s.TokenID,
		Seller:              s.Seller,
		SellingAmount:       cloneBigInt(s.SellingAmount),
		SoldAmount:          cloneBigInt(s.SoldAmount),
		UnitPrice:           cloneBigInt(s.UnitPrice),
		Currency:            s.Currency,
		Divisible:           s.Divisible,
		RoyaltyDenomination: cloneBigInt(s.RoyaltyDenomination),
		RoyaltyReceiver:     s.RoyaltyReceiver,
		State:               OfferState(s.State),
	}
}

func offerKey(id uint64) []byte {
	key := make([]byte, len(offerRecordPrefix)+8)
	copy(key, offerRecordPrefix)
	binary.BigEndian.PutUint64(key[len(offerRecordPrefix):], id)
	return key
}

// Ledger owns the offer records and the monotonic identifier sequence. It is
// pure state: no external collaborator is ever consulted here.
type Ledger struct {
	store Storage
}

// NewLedger constructs an offer ledger bound to the provided storage backend.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

// Count returns the number of offers ever created. Identifiers run from 1 to
// Count and are never reused.
func (l *Ledger) Count() (uint64, error) {
	if l == nil || l.store == nil {
		return 0, fmt.Errorf("marketplace: ledger not initialised")
	}
	var seq uint64
	if _, err := l.store.KVGet(offerSequenceKey, &seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// Create assigns the next identifier to the offer, persists it, and returns a
// clone carrying the assigned id.
func (l *Ledger) Create(offer *Offer) (*Offer, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("marketplace: ledger not initialised")
	}
	sanitized, err := SanitizeOffer(offer)
	if err != nil {
		return nil, err
	}
	seq, err := l.Count()
	if err != nil {
		return nil, err
	}
	sanitized.ID = seq + 1
	if err := l.store.KVPut(offerKey(sanitized.ID), toStoredOffer(sanitized)); err != nil {
		return nil, err
	}
	if err := l.store.KVPut(offerSequenceKey, sanitized.ID); err != nil {
		return nil, err
	}
	return sanitized.Clone(), nil
}

// Get retrieves the offer with the supplied identifier. Identifier 0 and
// identifiers beyond the current count fail with ErrInvalidOfferID.
func (l *Ledger) Get(id uint64) (*Offer, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("marketplace: ledger not initialised")
	}
	if id == 0 {
		return nil, ErrInvalidOfferID
	}
	var stored storedOffer
	ok, err := l.store.KVGet(offerKey(id), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidOfferID
	}
	return fromStoredOffer(&stored), nil
}

// Update persists a mutated offer record. The offer must already exist.
func (l *Ledger) Update(offer *Offer) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("marketplace: ledger not initialised")
	}
	sanitized, err := SanitizeOffer(offer)
	if err != nil {
		return err
	}
	if sanitized.ID == 0 {
		return ErrInvalidOfferID
	}
	ok, err := l.store.KVGet(offerKey(sanitized.ID), nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidOfferID
	}
	return l.store.KVPut(offerKey(sanitized.ID), toStoredOffer(sanitized))
}
