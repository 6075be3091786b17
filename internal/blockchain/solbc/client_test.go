package solbc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/rovshanmuradov/swap-router/internal/blockchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// rpcServer отвечает на JSON-RPC вызовы заранее заданными результатами.
func rpcServer(t *testing.T, results map[string]func() any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     any    `json:"id"`
			Method string `json:"method"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		fn, ok := results[req.Method]
		if !ok {
			t.Errorf("unexpected method %s", req.Method)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  fn(),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func withContext(value any) any {
	return map[string]any{"context": map[string]any{"slot": 1}, "value": value}
}

func TestClient_GetBalance(t *testing.T) {
	srv := rpcServer(t, map[string]func() any{
		"getBalance": func() any { return withContext(5_000_000) },
	})
	client := NewClient(srv.URL, blockchain.TransactionOptions{}, zap.NewNop())

	balance, err := client.GetBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000), balance)
}

func TestClient_AccountExists(t *testing.T) {
	srv := rpcServer(t, map[string]func() any{
		"getAccountInfo": func() any { return withContext(nil) },
	})
	client := NewClient(srv.URL, blockchain.TransactionOptions{}, zap.NewNop())

	exists, err := client.AccountExists(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = client.GetAccountData(context.Background(), solana.NewWallet().PublicKey())
	assert.True(t, errors.Is(err, blockchain.ErrAccountNotFound))
}

func TestClient_ConfirmSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := rpcServer(t, map[string]func() any{
		"getSignatureStatuses": func() any {
			if calls.Add(1) < 2 {
				return withContext([]any{nil})
			}
			return withContext([]any{map[string]any{
				"slot":               10,
				"confirmations":      1,
				"err":                nil,
				"confirmationStatus": "confirmed",
			}})
		},
	})
	client := NewClient(srv.URL, blockchain.TransactionOptions{}, zap.NewNop())
	client.pollInterval = 10 * time.Millisecond

	err := client.Confirm(context.Background(), solana.Signature{1}, time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestClient_ConfirmTimeout(t *testing.T) {
	srv := rpcServer(t, map[string]func() any{
		"getSignatureStatuses": func() any { return withContext([]any{nil}) },
	})
	client := NewClient(srv.URL, blockchain.TransactionOptions{}, zap.NewNop())
	client.pollInterval = 10 * time.Millisecond

	err := client.Confirm(context.Background(), solana.Signature{2}, 50*time.Millisecond)
	assert.True(t, errors.Is(err, blockchain.ErrConfirmationTimeout))
}

func TestClient_ConfirmOnChainFailure(t *testing.T) {
	srv := rpcServer(t, map[string]func() any{
		"getSignatureStatuses": func() any {
			return withContext([]any{map[string]any{
				"slot":               10,
				"confirmations":      nil,
				"err":                map[string]any{"InstructionError": []any{2, map[string]any{"Custom": 6001}}},
				"confirmationStatus": "processed",
			}})
		},
	})
	client := NewClient(srv.URL, blockchain.TransactionOptions{}, zap.NewNop())
	client.pollInterval = 10 * time.Millisecond

	err := client.Confirm(context.Background(), solana.Signature{3}, time.Second)
	assert.True(t, errors.Is(err, blockchain.ErrTransactionFailed))
}

func TestClassifySubmitError(t *testing.T) {
	simulation := &jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed: Error processing Instruction 2: custom program error: 0x1771",
		Data: map[string]interface{}{
			"logs": []interface{}{
				"Program log: AnchorError occurred. Error Code: SlippageExceeded. Error Number: 6001. Error Message: Slippage tolerance exceeded.",
			},
		},
	}
	se := classifySubmitError(simulation)
	assert.False(t, se.Transient)
	require.Len(t, se.Logs, 1)

	anchorErr, ok := FindAnchorError(se.Logs)
	require.True(t, ok)
	assert.Equal(t, 6001, anchorErr.Code)
	assert.Equal(t, "SlippageExceeded", anchorErr.Name)

	blockhash := &jsonrpc.RPCError{Code: -32002, Message: "Transaction simulation failed: Blockhash not found"}
	assert.True(t, classifySubmitError(blockhash).Transient)

	assert.True(t, classifySubmitError(&jsonrpc.RPCError{Code: -32005, Message: "Node is behind"}).Transient)
	assert.True(t, classifySubmitError(errors.New("http 429 too many requests")).Transient)
	assert.False(t, classifySubmitError(errors.New("invalid transaction: signature verification failure")).Transient)
}
