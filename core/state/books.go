package state

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

var (
	assetMetaPrefix     = []byte("assets/token/")
	assetBalancePrefix  = []byte("assets/balance/")
	assetApprovalPrefix = []byte("assets/approval/")
	currencyPrefix      = []byte("currencies/")
	commissionPrefix    = []byte("commissions/")
	zoneManagerPrefix   = []byte("access/zone/")
	zoneOfTokenPrefix   = []byte("access/token-zone/")
	pausedModulePrefix  = []byte("access/paused/")
)

func tokenIDKey(prefix []byte, tokenID uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], tokenID)
	return key
}

func tokenAddrKey(prefix []byte, tokenID uint64, addr [20]byte) []byte {
	key := make([]byte, len(prefix)+8+20)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], tokenID)
	copy(key[len(prefix)+8:], addr[:])
	return key
}

type storedAssetMeta struct {
	Decimals        uint8
	Available       bool
	RoyaltyReceiver [20]byte
	RoyaltyBps      uint32
}

// AssetBook is a state-backed ownership ledger for fractional units. It
// implements the marketplace AssetLedger collaborator for deployments that
// keep asset custody on the same database.
type AssetBook struct {
	state *Manager
}

// NewAssetBook constructs an asset book bound to the state manager.
func NewAssetBook(state *Manager) *AssetBook {
	return &AssetBook{state: state}
}

// RegisterToken records the metadata for a fractional asset token.
func (b *AssetBook) RegisterToken(tokenID uint64, decimals uint8, royaltyReceiver [20]byte, royaltyBps uint32, available bool) error {
	if b == nil || b.state == nil {
		return fmt.Errorf("state: asset book not initialised")
	}
	if royaltyBps > 10_000 {
		return fmt.Errorf("state: royalty bps out of range: %d", royaltyBps)
	}
	meta := &storedAssetMeta{
		Decimals:        decimals,
		Available:       available,
		RoyaltyReceiver: royaltyReceiver,
		RoyaltyBps:      royaltyBps,
	}
	return b.state.KVPut(tokenIDKey(assetMetaPrefix, tokenID), meta)
}

func (b *AssetBook) meta(tokenID uint64) (*storedAssetMeta, bool, error) {
	var meta storedAssetMeta
	ok, err := b.state.KVGet(tokenIDKey(assetMetaPrefix, tokenID), &meta)
	if err != nil || !ok {
		return nil, false, err
	}
	return &meta, true, nil
}

// SetAvailable flips the availability flag of a registered token.
func (b *AssetBook) SetAvailable(tokenID uint64, available bool) error {
	meta, ok, err := b.meta(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("state: unknown token %d", tokenID)
	}
	meta.Available = available
	return b.state.KVPut(tokenIDKey(assetMetaPrefix, tokenID), meta)
}

// IsAvailable reports whether the token is registered and currently
// available.
func (b *AssetBook) IsAvailable(tokenID uint64) bool {
	if b == nil || b.state == nil {
		return false
	}
	meta, ok, err := b.meta(tokenID)
	if err != nil || !ok {
		return false
	}
	return meta.Available
}

// DecimalsOf returns the fractional-decimals scale of the token.
func (b *AssetBook) DecimalsOf(tokenID uint64) (uint8, error) {
	meta, ok, err := b.meta(tokenID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("state: unknown token %d", tokenID)
	}
	return meta.Decimals, nil
}

// RoyaltyInfo returns the royalty receiver and the royalty owed for the
// supplied price, floored.
func (b *AssetBook) RoyaltyInfo(tokenID uint64, price *big.Int) ([20]byte, *big.Int, error) {
	meta, ok, err := b.meta(tokenID)
	if err != nil {
		return [20]byte{}, nil, err
	}
	if !ok {
		return [20]byte{}, nil, fmt.Errorf("state: unknown token %d", tokenID)
	}
	amount := big.NewInt(0)
	if price != nil && price.Sign() > 0 && meta.RoyaltyBps > 0 {
		amount = new(big.Int).Mul(price, big.NewInt(int64(meta.RoyaltyBps)))
		amount.Div(amount, big.NewInt(10_000))
	}
	return meta.RoyaltyReceiver, amount, nil
}

// BalanceOf returns the holder's fractional unit balance for the token.
func (b *AssetBook) BalanceOf(addr [20]byte, tokenID uint64) (*big.Int, error) {
	if b == nil || b.state == nil {
		return nil, fmt.Errorf("state: asset book not initialised")
	}
	value := new(big.Int)
	ok, err := b.state.KVGet(tokenAddrKey(assetBalancePrefix, tokenID, addr), value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

// MintUnits credits fractional units to a holder.
func (b *AssetBook) MintUnits(to [20]byte, tokenID uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: mint amount must be positive")
	}
	if _, ok, err := b.meta(tokenID); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("state: unknown token %d", tokenID)
	}
	balance, err := b.BalanceOf(to, tokenID)
	if err != nil {
		return err
	}
	return b.state.KVPut(tokenAddrKey(assetBalancePrefix, tokenID, to), new(big.Int).Add(balance, amount))
}

// SetTransferApproval grants or revokes the marketplace's right to move the
// owner's units of the token.
func (b *AssetBook) SetTransferApproval(owner [20]byte, tokenID uint64, approved bool) error {
	if b == nil || b.state == nil {
		return fmt.Errorf("state: asset book not initialised")
	}
	return b.state.KVPut(tokenAddrKey(assetApprovalPrefix, tokenID, owner), approved)
}

// SafeTransferUnits moves fractional units between holders, failing loudly on
// insufficient balance or missing transfer approval.
func (b *AssetBook) SafeTransferUnits(from, to [20]byte, tokenID uint64, amount *big.Int) error {
	if b == nil || b.state == nil {
		return fmt.Errorf("state: asset book not initialised")
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: transfer amount must be positive")
	}
	var approved bool
	ok, err := b.state.KVGet(tokenAddrKey(assetApprovalPrefix, tokenID, from), &approved)
	if err != nil {
		return err
	}
	if !ok || !approved {
		return fmt.Errorf("state: transfer of token %d not approved by holder", tokenID)
	}
	fromBalance, err := b.BalanceOf(from, tokenID)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("state: insufficient unit balance for token %d", tokenID)
	}
	toBalance, err := b.BalanceOf(to, tokenID)
	if err != nil {
		return err
	}
	if err := b.state.KVPut(tokenAddrKey(assetBalancePrefix, tokenID, from), new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return b.state.KVPut(tokenAddrKey(assetBalancePrefix, tokenID, to), new(big.Int).Add(toBalance, amount))
}

type storedCurrency struct {
	Registered  bool
	Available   bool
	Exclusive   bool
	DiscountBps uint32
}

// CurrencyBook is a state-backed currency allow-list and exclusive discount
// oracle implementing the marketplace CurrencyRegistry collaborator.
type CurrencyBook struct {
	state *Manager
}

// NewCurrencyBook constructs a currency book bound to the state manager.
func NewCurrencyBook(state *Manager) *CurrencyBook {
	return &CurrencyBook{state: state}
}

func currencyKey(currency string) []byte {
	return append(append([]byte(nil), currencyPrefix...), currency...)
}

// Register records a settlement currency with its availability and exclusive
// discount terms.
func (b *CurrencyBook) Register(currency string, available, exclusive bool, discountBps uint32) error {
	if b == nil || b.state == nil {
		return fmt.Errorf("state: currency book not initialised")
	}
	if discountBps > 10_000 {
		return fmt.Errorf("state: discount bps out of range: %d", discountBps)
	}
	stored := &storedCurrency{Registered: true, Available: available, Exclusive: exclusive, DiscountBps: discountBps}
	return b.state.KVPut(currencyKey(currency), stored)
}

func (b *CurrencyBook) lookup(currency string) (*storedCurrency, bool) {
	if b == nil || b.state == nil {
		return nil, false
	}
	var stored storedCurrency
	ok, err := b.state.KVGet(currencyKey(currency), &stored)
	if err != nil || !ok {
		return nil, false
	}
	return &stored, true
}

// IsRegisteredAndAvailable reports whether the currency may settle new
// listings.
func (b *CurrencyBook) IsRegisteredAndAvailable(currency string) bool {
	stored, ok := b.lookup(currency)
	return ok && stored.Registered && stored.Available
}

// IsExclusive reports whether the currency carries an exclusive discount.
func (b *CurrencyBook) IsExclusive(currency string) bool {
	stored, ok := b.lookup(currency)
	return ok && stored.Exclusive
}

// ExclusiveDiscountOf returns the discount rate in bps for an exclusive
// currency.
func (b *CurrencyBook) ExclusiveDiscountOf(currency string) uint32 {
	stored, ok := b.lookup(currency)
	if !ok {
		return 0
	}
	return stored.DiscountBps
}

type storedCommission struct {
	HasBroker bool
	Broker    [20]byte
	RateBps   uint32
}

// CommissionBook is a state-backed broker registry implementing the
// marketplace CommissionRegistry collaborator.
type CommissionBook struct {
	state *Manager
}

// NewCommissionBook constructs a commission book bound to the state manager.
func NewCommissionBook(state *Manager) *CommissionBook {
	return &CommissionBook{state: state}
}

// SetBroker records the broker and commission rate for a token's zone.
func (b *CommissionBook) SetBroker(tokenID uint64, broker [20]byte, rateBps uint32) error {
	if b == nil || b.state == nil {
		return fmt.Errorf("state: commission book not initialised")
	}
	if rateBps > 10_000 {
		return fmt.Errorf("state: commission bps out of range: %d", rateBps)
	}
	stored := &storedCommission{HasBroker: true, Broker: broker, RateBps: rateBps}
	return b.state.KVPut(tokenIDKey(commissionPrefix, tokenID), stored)
}

// ClearBroker removes any broker registered for the token.
func (b *CommissionBook) ClearBroker(tokenID uint64) error {
	if b == nil || b.state == nil {
		return fmt.Errorf("state: commission book not initialised")
	}
	return b.state.KVPut(tokenIDKey(commissionPrefix, tokenID), &storedCommission{})
}

// CommissionOf resolves the broker and rate for the token. A nil broker means
// no commission leg applies.
func (b *CommissionBook) CommissionOf(tokenID uint64) (*[20]byte, uint32, error) {
	if b == nil || b.state == nil {
		return nil, 0, fmt.Errorf("state: commission book not initialised")
	}
	var stored storedCommission
	ok, err := b.state.KVGet(tokenIDKey(commissionPrefix, tokenID), &stored)
	if err != nil {
		return nil, 0, err
	}
	if !ok || !stored.HasBroker {
		return nil, 0, nil
	}
	broker := stored.Broker
	return &broker, stored.RateBps, nil
}

// AccessBook is a state-backed admin collaborator: zone manager membership
// and per-module pause flags.
type AccessBook struct {
	state *Manager
}

// NewAccessBook constructs an access book bound to the state manager.
func NewAccessBook(state *Manager) *AccessBook {
	return &AccessBook{state: state}
}

// SetTokenZone assigns a token to an administrative zone.
func (b *AccessBook) SetTokenZone(tokenID, zoneID uint64) error {
	if b == nil || b.state == nil {
		return fmt.Errorf("state: access book not initialised")
	}
	return b.state.KVPut(tokenIDKey(zoneOfTokenPrefix, tokenID), zoneID)
}

// SetManager grants or revokes manager authorization for an account in a
// zone.
func (b *AccessBook) SetManager(zoneID uint64, addr [20]byte, granted bool) error {
	if b == nil || b.state == nil {
		return fmt.Errorf("state: access book not initialised")
	}
	return b.state.KVPut(tokenAddrKey(zoneManagerPrefix, zoneID, addr), granted)
}

// IsManagerInZoneOf reports whether addr holds manager authorization in the
// token's zone.
func (b *AccessBook) IsManagerInZoneOf(tokenID uint64, addr [20]byte) bool {
	if b == nil || b.state == nil {
		return false
	}
	var zoneID uint64
	ok, err := b.state.KVGet(tokenIDKey(zoneOfTokenPrefix, tokenID), &zoneID)
	if err != nil || !ok {
		return false
	}
	var granted bool
	ok, err = b.state.KVGet(tokenAddrKey(zoneManagerPrefix, zoneID, addr), &granted)
	if err != nil || !ok {
		return false
	}
	return granted
}

// SetPaused flips the pause flag for a module.
func (b *AccessBook) SetPaused(module string, paused bool) error {
	if b == nil || b.state == nil {
		return fmt.Errorf("state: access book not initialised")
	}
	key := append(append([]byte(nil), pausedModulePrefix...), module...)
	return b.state.KVPut(key, paused)
}

// IsPaused reports whether the module is paused.
func (b *AccessBook) IsPaused(module string) bool {
	if b == nil || b.state == nil {
		return false
	}
	key := append(append([]byte(nil), pausedModulePrefix...), module...)
	var paused bool
	ok, err := b.state.KVGet(key, &paused)
	if err != nil || !ok {
		return false
	}
	return paused
}
