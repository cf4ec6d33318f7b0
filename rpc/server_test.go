package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"fracmarket/core/state"
	"fracmarket/native/marketplace"
	"fracmarket/storage"
)

type testEnv struct {
	router http.Handler
	access *state.AccessBook

	seller [20]byte
	buyer  [20]byte
}

func newTestAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func addrHex(addr [20]byte) string { return hex.EncodeToString(addr[:]) }

// newTestEnv stands up a server over an in-memory state: token 1 with 3
// decimals and a 10% royalty, an approved seller holding 1,000,000 units and a
// funded buyer.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	assets := state.NewAssetBook(manager)
	currencies := state.NewCurrencyBook(manager)
	commissions := state.NewCommissionBook(manager)
	access := state.NewAccessBook(manager)
	native := state.NewNativeLedger(manager)

	env := &testEnv{
		access: access,
		seller: newTestAddr(0x11),
		buyer:  newTestAddr(0x22),
	}
	feeReceiver := newTestAddr(0x33)
	require.NoError(t, assets.RegisterToken(1, 3, feeReceiver, 1_000, true))
	require.NoError(t, assets.MintUnits(env.seller, 1, big.NewInt(1_000_000)))
	require.NoError(t, assets.SetTransferApproval(env.seller, 1, true))
	require.NoError(t, currencies.Register("USDT", true, false, 0))
	require.NoError(t, native.Mint(env.buyer, big.NewInt(1_000_000)))

	engine := marketplace.NewEngine(marketplace.NewLedger(manager))
	engine.SetAssetLedger(assets)
	engine.SetCurrencyRegistry(currencies)
	engine.SetCommissionRegistry(commissions)
	engine.SetAccessControl(access)
	engine.SetNativeRail(native)
	engine.SetTokenRail(state.NewTokenBook(manager))
	engine.SetStateTransactions(manager)

	env.router = NewServer(engine, nil).Router()
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	recorder := httptest.NewRecorder()
	env.router.ServeHTTP(recorder, req)
	return recorder
}

func (env *testEnv) createOffer(t *testing.T, amount, price int64, divisible bool) OfferResult {
	t.Helper()
	recorder := env.do(t, http.MethodPost, "/v1/marketplace/offers", listParams{
		Seller:        addrHex(env.seller),
		TokenID:       1,
		SellingAmount: fmt.Sprintf("%d", amount),
		UnitPrice:     fmt.Sprintf("%d", price),
		Currency:      "NATIVE",
		Divisible:     divisible,
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	var result OfferResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	return result
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	recorder := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "ok", recorder.Body.String())
}

func TestOfferLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	created := env.createOffer(t, 150_000, 100, true)
	require.Equal(t, "selling", created.State)
	require.Equal(t, "10", created.RoyaltyDenomination)

	recorder := env.do(t, http.MethodGet, "/v1/marketplace/offers/1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	// Partial fill of 100,000 units guarded by the served anchor.
	recorder = env.do(t, http.MethodPost, "/v1/marketplace/offers/1/buy", buyParams{
		Buyer:  addrHex(env.buyer),
		Amount: "100000",
		Anchor: created.Anchor,
		Value:  "11000",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var afterPartial OfferResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &afterPartial))
	require.Equal(t, "100000", afterPartial.SoldAmount)
	require.Equal(t, "selling", afterPartial.State)

	// Whole-remainder buy without anchor.
	recorder = env.do(t, http.MethodPost, "/v1/marketplace/offers/1/buy", buyParams{
		Buyer: addrHex(env.buyer),
		Value: "5500",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var afterFull OfferResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &afterFull))
	require.Equal(t, "sold", afterFull.State)
	require.Equal(t, "150000", afterFull.SoldAmount)
}

func TestBuyErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	env.createOffer(t, 1_000, 100, true)

	// Stale anchor conflicts.
	stale := marketplace.ComputeAnchor(1, big.NewInt(99))
	recorder := env.do(t, http.MethodPost, "/v1/marketplace/offers/1/buy", buyParams{
		Buyer:  addrHex(env.buyer),
		Anchor: hex.EncodeToString(stale[:]),
		Value:  "110",
	})
	require.Equal(t, http.StatusConflict, recorder.Code)

	// Underfunded purchase.
	recorder = env.do(t, http.MethodPost, "/v1/marketplace/offers/1/buy", buyParams{
		Buyer: addrHex(env.buyer),
		Value: "50",
	})
	require.Equal(t, http.StatusPaymentRequired, recorder.Code)

	// Self-buy conflicts.
	recorder = env.do(t, http.MethodPost, "/v1/marketplace/offers/1/buy", buyParams{
		Buyer: addrHex(env.seller),
		Value: "110",
	})
	require.Equal(t, http.StatusConflict, recorder.Code)

	// Unknown offers and malformed addresses are bad requests.
	recorder = env.do(t, http.MethodPost, "/v1/marketplace/offers/99/buy", buyParams{
		Buyer: addrHex(env.buyer),
		Value: "110",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	recorder = env.do(t, http.MethodPost, "/v1/marketplace/offers/1/buy", buyParams{
		Buyer: "nonsense",
		Value: "110",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.True(t, strings.Contains(recorder.Body.String(), "invalid address"))
}

func TestCancelOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.createOffer(t, 1_000, 100, true)

	// A stranger is forbidden.
	recorder := env.do(t, http.MethodPost, "/v1/marketplace/offers/1/cancel", cancelParams{
		Caller: addrHex(newTestAddr(0x66)),
	})
	require.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = env.do(t, http.MethodPost, "/v1/marketplace/offers/1/cancel", cancelParams{
		Caller: addrHex(env.seller),
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var cancelled OfferResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &cancelled))
	require.Equal(t, "cancelled", cancelled.State)

	// Terminal state conflicts on repeat cancel.
	recorder = env.do(t, http.MethodPost, "/v1/marketplace/offers/1/cancel", cancelParams{
		Caller: addrHex(env.seller),
	})
	require.Equal(t, http.StatusConflict, recorder.Code)
}

func TestPausedModuleMapsToServiceUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.createOffer(t, 1_000, 100, true)
	require.NoError(t, env.access.SetPaused("marketplace", true))

	recorder := env.do(t, http.MethodPost, "/v1/marketplace/offers/1/buy", buyParams{
		Buyer: addrHex(env.buyer),
		Value: "110",
	})
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}

func TestIndivisibleOfferOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.createOffer(t, 50_000, 100, false)

	recorder := env.do(t, http.MethodPost, "/v1/marketplace/offers/1/buy", buyParams{
		Buyer:  addrHex(env.buyer),
		Amount: "10000",
		Value:  "10000",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = env.do(t, http.MethodPost, "/v1/marketplace/offers/1/buy", buyParams{
		Buyer: addrHex(env.buyer),
		Value: "5500",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
}
