package state

import (
	"math/big"
	"strings"
	"testing"

	"fracmarket/storage"
)

func TestAssetBookMetadata(t *testing.T) {
	book := NewAssetBook(NewManager(storage.NewMemDB()))
	receiver := newTestAddress(0x33)

	if book.IsAvailable(1) {
		t.Fatal("unregistered token should be unavailable")
	}
	if err := book.RegisterToken(1, 3, receiver, 1_000, true); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !book.IsAvailable(1) {
		t.Fatal("registered token should be available")
	}
	decimals, err := book.DecimalsOf(1)
	if err != nil || decimals != 3 {
		t.Fatalf("decimals mismatch: %d err=%v", decimals, err)
	}
	gotReceiver, royalty, err := book.RoyaltyInfo(1, big.NewInt(100))
	if err != nil {
		t.Fatalf("royalty info: %v", err)
	}
	if gotReceiver != receiver || royalty.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("royalty mismatch: receiver ok=%v amount=%s", gotReceiver == receiver, royalty)
	}

	if err := book.SetAvailable(1, false); err != nil {
		t.Fatalf("set available: %v", err)
	}
	if book.IsAvailable(1) {
		t.Fatal("token should be unavailable after flip")
	}
	if err := book.RegisterToken(2, 0, receiver, 10_001, true); err == nil {
		t.Fatal("expected royalty bps rejection")
	}
}

func TestAssetBookTransferRequiresApproval(t *testing.T) {
	book := NewAssetBook(NewManager(storage.NewMemDB()))
	owner := newTestAddress(0x01)
	buyer := newTestAddress(0x02)

	if err := book.RegisterToken(1, 3, newTestAddress(0x33), 1_000, true); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := book.MintUnits(owner, 1, big.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	err := book.SafeTransferUnits(owner, buyer, 1, big.NewInt(100))
	if err == nil || !strings.Contains(err.Error(), "not approved") {
		t.Fatalf("expected approval rejection, got %v", err)
	}

	if err := book.SetTransferApproval(owner, 1, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := book.SafeTransferUnits(owner, buyer, 1, big.NewInt(100)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	balance, _ := book.BalanceOf(buyer, 1)
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("buyer balance mismatch: %s", balance)
	}
	if err := book.SafeTransferUnits(owner, buyer, 1, big.NewInt(10_000)); err == nil {
		t.Fatal("expected insufficient balance rejection")
	}
}

func TestCurrencyBook(t *testing.T) {
	book := NewCurrencyBook(NewManager(storage.NewMemDB()))

	if book.IsRegisteredAndAvailable("USDT") {
		t.Fatal("unregistered currency should be unavailable")
	}
	if err := book.Register("USDT", true, false, 0); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !book.IsRegisteredAndAvailable("USDT") {
		t.Fatal("registered currency should be available")
	}
	if book.IsExclusive("USDT") {
		t.Fatal("USDT should not be exclusive")
	}

	if err := book.Register("EXC", true, true, 2_000); err != nil {
		t.Fatalf("register exclusive: %v", err)
	}
	if !book.IsExclusive("EXC") || book.ExclusiveDiscountOf("EXC") != 2_000 {
		t.Fatal("exclusive terms mismatch")
	}
	if err := book.Register("BAD", true, true, 10_001); err == nil {
		t.Fatal("expected discount bps rejection")
	}
}

func TestCommissionBook(t *testing.T) {
	book := NewCommissionBook(NewManager(storage.NewMemDB()))
	broker := newTestAddress(0x44)

	gotBroker, rate, err := book.CommissionOf(1)
	if err != nil || gotBroker != nil || rate != 0 {
		t.Fatalf("expected no broker for fresh token: %v %v %d", err, gotBroker, rate)
	}
	if err := book.SetBroker(1, broker, 2_500); err != nil {
		t.Fatalf("set broker: %v", err)
	}
	gotBroker, rate, err = book.CommissionOf(1)
	if err != nil {
		t.Fatalf("commission of: %v", err)
	}
	if gotBroker == nil || *gotBroker != broker || rate != 2_500 {
		t.Fatal("broker terms mismatch")
	}
	if err := book.ClearBroker(1); err != nil {
		t.Fatalf("clear broker: %v", err)
	}
	gotBroker, _, err = book.CommissionOf(1)
	if err != nil || gotBroker != nil {
		t.Fatalf("expected cleared broker, got %v err=%v", gotBroker, err)
	}
	if err := book.SetBroker(2, broker, 10_001); err == nil {
		t.Fatal("expected commission bps rejection")
	}
}

func TestAccessBook(t *testing.T) {
	book := NewAccessBook(NewManager(storage.NewMemDB()))
	manager := newTestAddress(0x55)

	if book.IsManagerInZoneOf(1, manager) {
		t.Fatal("unassigned token should have no managers")
	}
	if err := book.SetTokenZone(1, 9); err != nil {
		t.Fatalf("set token zone: %v", err)
	}
	if err := book.SetManager(9, manager, true); err != nil {
		t.Fatalf("set manager: %v", err)
	}
	if !book.IsManagerInZoneOf(1, manager) {
		t.Fatal("manager should be recognised via the token's zone")
	}
	if err := book.SetManager(9, manager, false); err != nil {
		t.Fatalf("revoke manager: %v", err)
	}
	if book.IsManagerInZoneOf(1, manager) {
		t.Fatal("revoked manager should not be recognised")
	}

	if book.IsPaused("marketplace") {
		t.Fatal("fresh module should not be paused")
	}
	if err := book.SetPaused("marketplace", true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !book.IsPaused("marketplace") {
		t.Fatal("module should be paused")
	}
}
