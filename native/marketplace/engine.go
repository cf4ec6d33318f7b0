package marketplace

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"fracmarket/core/events"
	"fracmarket/core/types"
	nativecommon "fracmarket/native/common"
)

var (
	errNilLedger     = errors.New("marketplace engine: offer ledger not configured")
	errNilAssets     = errors.New("marketplace engine: asset ledger not configured")
	errNilCurrencies = errors.New("marketplace engine: currency registry not configured")
	errNilNativeRail = errors.New("marketplace engine: native rail not configured")
	errNilTokenRail  = errors.New("marketplace engine: token rail not configured")
)

const moduleName = "marketplace"

// AssetLedger is the ownership ledger collaborator. It owns fractional unit
// balances, availability, transfer approval and per-token royalty terms.
type AssetLedger interface {
	BalanceOf(addr [20]byte, tokenID uint64) (*big.Int, error)
	IsAvailable(tokenID uint64) bool
	SafeTransferUnits(from, to [20]byte, tokenID uint64, amount *big.Int) error
	DecimalsOf(tokenID uint64) (uint8, error)
	RoyaltyInfo(tokenID uint64, price *big.Int) ([20]byte, *big.Int, error)
}

// CurrencyRegistry is the settlement currency allow-list and exclusive
// discount oracle.
type CurrencyRegistry interface {
	IsRegisteredAndAvailable(currency string) bool
	IsExclusive(currency string) bool
	ExclusiveDiscountOf(currency string) uint32
}

// CommissionRegistry resolves the broker and commission rate for a token's
// zone. A nil broker means no commission leg.
type CommissionRegistry interface {
	CommissionOf(tokenID uint64) (*[20]byte, uint32, error)
}

// AccessControl answers zone manager membership and module pause state. It
// satisfies nativecommon.PauseView.
type AccessControl interface {
	IsManagerInZoneOf(tokenID uint64, addr [20]byte) bool
	IsPaused(module string) bool
}

// NativeRail pushes native coin between accounts. Pushes may execute payee
// code before returning, which is why every mutator holds the call guard.
type NativeRail interface {
	Transfer(from, to [20]byte, amount *big.Int) error
}

// StateTransactions scopes a mutator's state writes. When configured, the
// engine opens a transaction on entry and commits only after every settlement
// leg succeeded; any failure rolls the staged writes back, so no partial
// settlement is ever observable.
type StateTransactions interface {
	Begin()
	Commit() error
	Rollback()
}

// TokenRail moves fungible settlement tokens. TransferFrom is the
// allowance-gated inbound pull; Transfer pushes outbound legs.
type TokenRail interface {
	TransferFrom(currency string, from, to [20]byte, amount *big.Int) error
	Transfer(currency string, from, to [20]byte, amount *big.Int) error
}

// marketVaultAddress briefly holds inbound settlement funds while the legs
// are pushed out.
var marketVaultAddress = func() [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256([]byte("fracmarket/marketplace/vault"))[12:])
	return addr
}()

// VaultAddress returns the module vault account used by the settlement
// router.
func VaultAddress() [20]byte { return marketVaultAddress }

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

// Engine wires the marketplace business logic with the offer ledger, the
// external collaborators and the event emitter. Every externally callable
// mutator holds a non-reentrant call guard for its full duration.
type Engine struct {
	ledger      *Ledger
	assets      AssetLedger
	currencies  CurrencyRegistry
	commissions *CommissionResolver
	fees        *FeeResolver
	access      AccessControl
	native      NativeRail
	tokens      TokenRail
	txns        StateTransactions
	emitter     events.Emitter
	guard       nativecommon.CallGuard
}

// NewEngine creates a marketplace engine with a no-op emitter. Callers
// configure collaborators via the setters before use.
func NewEngine(ledger *Ledger) *Engine {
	return &Engine{
		ledger:  ledger,
		emitter: events.NoopEmitter{},
	}
}

// SetAssetLedger configures the ownership ledger collaborator.
func (e *Engine) SetAssetLedger(assets AssetLedger) {
	e.assets = assets
	e.fees = NewFeeResolver(assets, e.currencies)
}

// SetCurrencyRegistry configures the currency registry collaborator.
func (e *Engine) SetCurrencyRegistry(currencies CurrencyRegistry) {
	e.currencies = currencies
	e.fees = NewFeeResolver(e.assets, currencies)
}

// SetCommissionRegistry configures the broker commission registry.
func (e *Engine) SetCommissionRegistry(registry CommissionRegistry) {
	e.commissions = NewCommissionResolver(registry)
}

// SetAccessControl configures the admin/authorization collaborator.
func (e *Engine) SetAccessControl(access AccessControl) { e.access = access }

// SetNativeRail configures the native coin payment rail.
func (e *Engine) SetNativeRail(rail NativeRail) { e.native = rail }

// SetTokenRail configures the fungible token payment rail.
func (e *Engine) SetTokenRail(rail TokenRail) { e.tokens = rail }

// SetStateTransactions configures the transaction boundary shared by the offer
// ledger and the collaborators. Deployments whose collaborators write through
// one state manager must set this so a failed leg unwinds the unit transfer.
func (e *Engine) SetStateTransactions(txns StateTransactions) { e.txns = txns }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) withTransaction(fn func() error) error {
	if e.txns == nil {
		return fn()
	}
	e.txns.Begin()
	if err := fn(); err != nil {
		e.txns.Rollback()
		return err
	}
	if err := e.txns.Commit(); err != nil {
		return fmt.Errorf("marketplace: commit state transaction: %w", err)
	}
	return nil
}

func (e *Engine) pauseView() nativecommon.PauseView {
	if e == nil || e.access == nil {
		return nil
	}
	return e.access
}

// GetOffer returns the offer with the supplied identifier. Reads require no
// guard since they only observe committed state between transactions.
func (e *Engine) GetOffer(id uint64) (*Offer, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	return e.ledger.Get(id)
}

// List validates and creates a new offer on behalf of caller. The royalty
// denomination and receiver are resolved once here and cached on the offer,
// already adjusted for any currency-exclusive discount.
func (e *Engine) List(caller [20]byte, tokenID uint64, sellingAmount, unitPrice *big.Int, currency string, divisible bool) (*Offer, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	if e.assets == nil {
		return nil, errNilAssets
	}
	if e.currencies == nil {
		return nil, errNilCurrencies
	}
	if err := e.guard.Enter(); err != nil {
		return nil, err
	}
	defer e.guard.Exit()
	if err := nativecommon.Guard(e.pauseView(), moduleName); err != nil {
		return nil, err
	}
	var created *Offer
	err := e.withTransaction(func() error {
		if !e.assets.IsAvailable(tokenID) {
			return ErrInvalidTokenID
		}
		if unitPrice == nil || unitPrice.Sign() <= 0 {
			return ErrInvalidUnitPrice
		}
		if err := checkUint256("unit price", unitPrice); err != nil {
			return ErrInvalidUnitPrice
		}
		normalized := NormalizeCurrency(currency)
		if !IsNativeCurrency(normalized) && !e.currencies.IsRegisteredAndAvailable(normalized) {
			return ErrInvalidCurrency
		}
		if sellingAmount == nil || sellingAmount.Sign() <= 0 {
			return ErrInvalidSellingAmount
		}
		if err := checkUint256("selling amount", sellingAmount); err != nil {
			return ErrInvalidSellingAmount
		}
		holding, err := e.assets.BalanceOf(caller, tokenID)
		if err != nil {
			return err
		}
		if holding == nil || sellingAmount.Cmp(holding) > 0 {
			return ErrInvalidSellingAmount
		}
		receiver, denomination, err := e.fees.RoyaltyFor(tokenID, unitPrice, normalized)
		if err != nil {
			return err
		}
		offer := &Offer{
			TokenID:             tokenID,
			Seller:              caller,
			SellingAmount:       cloneBigInt(sellingAmount),
			SoldAmount:          big.NewInt(0),
			UnitPrice:           cloneBigInt(unitPrice),
			Currency:            normalized,
			Divisible:           divisible,
			RoyaltyDenomination: denomination,
			RoyaltyReceiver:     receiver,
			State:               OfferSelling,
		}
		created, err = e.ledger.Create(offer)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.emit(NewOfferEvent(created))
	return created.Clone(), nil
}

// Buy consumes the entire remaining quantity of the offer in one transaction.
// Allowed regardless of divisibility. The attached value is debited on the
// native rail; any excess over the settlement total is refunded.
func (e *Engine) Buy(buyer [20]byte, offerID uint64, value *big.Int) error {
	return e.executeBuy(buyRequest{buyer: buyer, offerID: offerID, value: value})
}

// BuyPart consumes exactly amount units of a divisible offer.
func (e *Engine) BuyPart(buyer [20]byte, offerID uint64, amount, value *big.Int) error {
	return e.executeBuy(buyRequest{buyer: buyer, offerID: offerID, amount: amount, partial: true, value: value})
}

// SafeBuy behaves like Buy but first asserts that the caller-supplied anchor
// still matches the offer's current economic terms.
func (e *Engine) SafeBuy(buyer [20]byte, offerID uint64, anchor [32]byte, value *big.Int) error {
	return e.executeBuy(buyRequest{buyer: buyer, offerID: offerID, anchor: &anchor, value: value})
}

// SafeBuyPart behaves like BuyPart with the anchor assertion of SafeBuy.
func (e *Engine) SafeBuyPart(buyer [20]byte, offerID uint64, amount *big.Int, anchor [32]byte, value *big.Int) error {
	return e.executeBuy(buyRequest{buyer: buyer, offerID: offerID, amount: amount, partial: true, anchor: &anchor, value: value})
}

type buyRequest struct {
	buyer   [20]byte
	offerID uint64
	amount  *big.Int
	anchor  *[32]byte
	value   *big.Int
	partial bool
}

func (e *Engine) executeBuy(req buyRequest) error {
	if e == nil || e.ledger == nil {
		return errNilLedger
	}
	if e.assets == nil {
		return errNilAssets
	}
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()
	if err := nativecommon.Guard(e.pauseView(), moduleName); err != nil {
		return err
	}
	var (
		offer  *Offer
		amount *big.Int
		legs   *settlementLegs
	)
	err := e.withTransaction(func() error {
		var err error
		offer, err = e.ledger.Get(req.offerID)
		if err != nil {
			return err
		}
		if req.anchor != nil && OfferAnchor(offer) != *req.anchor {
			return ErrBadAnchor
		}
		if offer.State != OfferSelling {
			return ErrInvalidBuying
		}
		if req.buyer == offer.Seller {
			return ErrInvalidBuying
		}
		if !e.assets.IsAvailable(offer.TokenID) {
			return ErrInvalidTokenID
		}
		remaining := offer.Remaining()
		amount = remaining
		if req.partial {
			if !offer.Divisible {
				return ErrNotDivisible
			}
			if req.amount == nil || req.amount.Sign() <= 0 {
				return ErrInvalidBuying
			}
			if req.amount.Cmp(remaining) > 0 {
				return ErrNotEnoughTokensToSell
			}
			amount = cloneBigInt(req.amount)
		} else if remaining.Sign() <= 0 {
			return ErrNotEnoughTokensToSell
		}
		legs, err = e.computeLegs(offer, amount)
		if err != nil {
			return err
		}
		// Units move before any payment push so a reentrant payee observes
		// the buyer as owner but the offer as not yet marked sold; the call
		// guard blocks the re-entry itself, and the transaction discards the
		// unit transfer when a later leg fails.
		if err := e.assets.SafeTransferUnits(offer.Seller, req.buyer, offer.TokenID, amount); err != nil {
			return err
		}
		if IsNativeCurrency(offer.Currency) {
			if err := e.settleNative(req.buyer, offer, legs, req.value); err != nil {
				return err
			}
		} else {
			if err := e.settleToken(req.buyer, offer, legs); err != nil {
				return err
			}
		}
		offer.SoldAmount = new(big.Int).Add(offer.SoldAmount, amount)
		if offer.SoldAmount.Cmp(offer.SellingAmount) == 0 {
			offer.State = OfferSold
		}
		return e.ledger.Update(offer)
	})
	if err != nil {
		return err
	}
	e.emit(NewSaleEvent(offer, req.buyer, amount, legs.value, legs.royalty))
	if legs.commission != nil {
		e.emit(NewCommissionDispatchEvent(offer, legs.commission))
	}
	return nil
}

// Cancel terminates a live offer. Only the seller or a manager of the asset's
// zone may cancel, and only while the offer is still selling. No funds move.
func (e *Engine) Cancel(caller [20]byte, offerID uint64) error {
	if e == nil || e.ledger == nil {
		return errNilLedger
	}
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()
	if err := nativecommon.Guard(e.pauseView(), moduleName); err != nil {
		return err
	}
	var offer *Offer
	err := e.withTransaction(func() error {
		var err error
		offer, err = e.ledger.Get(offerID)
		if err != nil {
			return err
		}
		if caller != offer.Seller {
			if e.access == nil || !e.access.IsManagerInZoneOf(offer.TokenID, caller) {
				return ErrUnauthorized
			}
		}
		if offer.State != OfferSelling {
			return ErrInvalidCancelling
		}
		offer.State = OfferCancelled
		return e.ledger.Update(offer)
	})
	if err != nil {
		return err
	}
	e.emit(NewCancellationEvent(offer, caller))
	return nil
}

func (e *Engine) commissionFor(tokenID uint64, royaltyAmount *big.Int) (*Commission, error) {
	if e.commissions == nil {
		return nil, nil
	}
	commission, err := e.commissions.CommissionFor(tokenID, royaltyAmount)
	if err != nil {
		return nil, fmt.Errorf("marketplace: commission lookup: %w", err)
	}
	return commission, nil
}
