package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/rovshanmuradov/swap-router/internal/dex"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var usdc = types.Token{
	Symbol:   "USDC",
	Mint:     solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
	Decimals: 6,
}

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		SwapURL:    srv.URL + "/swap/v1",
		TriggerURL: srv.URL + "/trigger/v1",
		PriceURL:   srv.URL + "/price/v2",
	}, dex.Deps{
		HTTPClient: srv.Client(),
		Tokens:     dex.NewStaticTokens(usdc),
		Logger:     zap.NewNop(),
	})
}

func TestGetQuote(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/swap/v1/quote", r.URL.Path)
		assert.Equal(t, "1000000000", r.URL.Query().Get("amount"))
		assert.Equal(t, "50", r.URL.Query().Get("slippageBps"))
		assert.Equal(t, "true", r.URL.Query().Get("asLegacyTransaction"))
		_, _ = w.Write([]byte(`{
			"inputMint": "So11111111111111111111111111111111111111112",
			"inAmount": "1000000000",
			"outputMint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			"outAmount": "151230000",
			"slippageBps": 50,
			"priceImpactPct": "0.0012",
			"routePlan": [{"swapInfo": {"ammKey": "x", "label": "Whirlpool"}, "percent": 100}]
		}`))
	})

	q, err := a.GetQuote(context.Background(), dex.QuoteRequest{
		InputToken: types.NativeSOL, OutputToken: usdc, Amount: 1_000_000_000, SlippageBps: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, types.VenueJupiter, q.Venue)
	assert.Equal(t, uint64(151_230_000), q.OutputAmount)
	assert.InDelta(t, 0.12, q.PriceImpactPct, 1e-12, "fraction converted to percent")

	data, ok := q.RouteData.(RouteData)
	require.True(t, ok)
	assert.Equal(t, []string{"Whirlpool"}, data.Labels)
	assert.True(t, json.Valid(data.Raw))
}

func TestGetQuoteNoRoute(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Could not find any route","errorCode":"COULD_NOT_FIND_ANY_ROUTE"}`))
	})

	_, err := a.GetQuote(context.Background(), dex.QuoteRequest{InputToken: types.NativeSOL, OutputToken: usdc, Amount: 1})
	assert.Equal(t, types.KindNoRoute, types.KindOf(err))
}

func TestGetQuoteServerError(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := a.GetQuote(context.Background(), dex.QuoteRequest{InputToken: types.NativeSOL, OutputToken: usdc, Amount: 1})
	assert.Equal(t, types.KindUnavailable, types.KindOf(err))
}

func TestBuildSwapInstructions(t *testing.T) {
	signer := solana.NewWallet().PublicKey()
	program := solana.NewWallet().PublicKey()
	ix := func(data string) map[string]any {
		return map[string]any{
			"programId": program.String(),
			"accounts":  []map[string]any{{"pubkey": signer.String(), "isSigner": true, "isWritable": true}},
			"data":      base64.StdEncoding.EncodeToString([]byte(data)),
		}
	}

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/swap/v1/swap-instructions", r.URL.Path)
		var req swapInstructionsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, signer.String(), req.UserPublicKey)
		assert.True(t, req.AsLegacyTransaction)
		assert.JSONEq(t, `{"outAmount":"5"}`, string(req.QuoteResponse))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"computeBudgetInstructions": []any{ix("cb")},
			"setupInstructions":         []any{ix("setup")},
			"swapInstruction":           ix("swap"),
			"cleanupInstruction":        ix("cleanup"),
		})
	})

	route := types.NewRoute(types.Quote{
		Venue:     types.VenueJupiter,
		RouteData: RouteData{Raw: json.RawMessage(`{"outAmount":"5"}`)},
	})
	out, err := a.BuildSwapInstructions(context.Background(), route, signer)
	require.NoError(t, err)
	require.Len(t, out.Setup, 1)
	require.Len(t, out.Swap, 1)
	require.Len(t, out.Cleanup, 1)

	data, err := out.Swap[0].Data()
	require.NoError(t, err)
	assert.Equal(t, "swap", string(data))
	assert.True(t, out.Swap[0].Accounts()[0].IsSigner)
}

func TestBuildSwapInstructionsRejectsForeignRoute(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := a.BuildSwapInstructions(context.Background(), types.NewRoute(types.Quote{RouteData: "raydium"}), solana.NewWallet().PublicKey())
	assert.Equal(t, types.KindInvalidParams, types.KindOf(err))
}

func TestGetOpenOrders(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	orderKey := solana.NewWallet().PublicKey()
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trigger/v1/getTriggerOrders", r.URL.Path)
		assert.Equal(t, owner.String(), r.URL.Query().Get("user"))
		_, _ = w.Write([]byte(`{"orders":[{
			"userPubkey": "` + owner.String() + `",
			"orderKey": "` + orderKey.String() + `",
			"inputMint": "So11111111111111111111111111111111111111112",
			"outputMint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			"makingAmount": "2",
			"takingAmount": "320",
			"rawMakingAmount": "2000000000",
			"rawTakingAmount": "320000000",
			"expiredAt": null,
			"createdAt": "2025-01-02T03:04:05Z",
			"status": "Open"
		}],"totalPages":1,"page":1}`))
	})

	orders, err := a.GetOpenOrders(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	o := orders[0]
	assert.Equal(t, orderKey.String(), o.ID)
	assert.Equal(t, types.OrderOpen, o.Status)
	assert.Equal(t, "160", o.Price.String())
	assert.Equal(t, "USDC", o.OutputToken.Symbol)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), o.CreatedAt.UTC())
	assert.True(t, o.Expiry.IsZero())
}

func TestPlaceAndCancelOrder(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	tx, err := solana.NewTransaction([]solana.Instruction{
		system.NewTransferInstruction(1, owner, solana.NewWallet().PublicKey()).Build(),
	}, solana.Hash{3}, solana.TransactionPayer(owner))
	require.NoError(t, err)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	encoded := base64.StdEncoding.EncodeToString(raw)

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/trigger/v1/createOrder":
			var req createOrderRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "1000", req.Params.MakingAmount)
			assert.Equal(t, owner.String(), req.Maker)
		case "/trigger/v1/cancelOrder":
			var req cancelOrderRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "order-1", req.Order)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(orderTxResponse{Order: "order-1", Transaction: encoded})
	})

	placed, err := a.BuildPlaceOrderInstructions(context.Background(), dex.OrderRequest{
		Owner: owner, InputToken: types.NativeSOL, OutputToken: usdc, InputAmount: 1000, OutputAmount: 160,
	})
	require.NoError(t, err)
	assert.Len(t, placed.Swap, 1)

	cancelled, err := a.BuildCancelOrderInstructions(context.Background(),
		types.Order{ID: "order-1", Venue: types.VenueJupiter, Owner: owner}, owner)
	require.NoError(t, err)
	assert.Len(t, cancelled.Swap, 1)

	_, err = a.BuildCancelOrderInstructions(context.Background(),
		types.Order{ID: "order-1", Venue: types.VenueRaydium}, owner)
	assert.Equal(t, types.KindInvalidParams, types.KindOf(err))
}

func TestPriceInSOL(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/price/v2", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v":{"id":"x","type":"derivedPrice","price":"0.0066"}}}`))
	})

	price, err := a.PriceInSOL(context.Background(), usdc)
	require.NoError(t, err)
	assert.InDelta(t, 0.0066, price, 1e-12)

	one, err := a.PriceInSOL(context.Background(), types.NativeSOL)
	require.NoError(t, err)
	assert.Equal(t, 1.0, one)
}

func TestImpactPercent(t *testing.T) {
	assert.InDelta(t, 1.0, impactPercent("0.01"), 1e-12)
	assert.InDelta(t, 2.5, impactPercent("-0.025"), 1e-12)
	assert.Equal(t, 0.0, impactPercent(""))
	assert.Equal(t, 0.0, impactPercent("n/a"))
}
