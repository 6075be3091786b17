package solbc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/rovshanmuradov/swap-router/internal/blockchain"
)

// JSON-RPC коды, после которых повторная отправка безопасна.
const (
	codeNodeUnhealthy = -32005
	codeRateLimited   = 429
)

// AnchorError represents an error from Anchor framework
type AnchorError struct {
	Code int
	Name string
	Msg  string
}

// classifySubmitError decides whether a failed send may be retried.
// Simulation failures and malformed transactions are terminal; network and
// node-availability problems are transient.
func classifySubmitError(err error) *blockchain.SubmitError {
	se := &blockchain.SubmitError{Err: err}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		se.Logs = simulationLogs(rpcErr)
		switch {
		case strings.Contains(rpcErr.Message, "Blockhash not found"),
			strings.Contains(rpcErr.Message, "BlockhashNotFound"):
			se.Transient = true
		case rpcErr.Code == codeNodeUnhealthy, rpcErr.Code == codeRateLimited:
			se.Transient = true
		}
		return se
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.DeadlineExceeded):
		se.Transient = true
		return se
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "too many requests", "connection reset", "connection refused", "timeout", "503", "502"} {
		if strings.Contains(msg, marker) {
			se.Transient = true
			break
		}
	}
	return se
}

// simulationLogs extracts program logs from a preflight failure.
func simulationLogs(rpcErr *jsonrpc.RPCError) []string {
	dataMap, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := dataMap["logs"].([]interface{})
	if !ok {
		return nil
	}
	logs := make([]string, 0, len(raw))
	for _, entry := range raw {
		if s, ok := entry.(string); ok {
			logs = append(logs, s)
		}
	}
	return logs
}

// FindAnchorError returns the first Anchor error found in simulation logs.
func FindAnchorError(logs []string) (AnchorError, bool) {
	for _, logStr := range logs {
		if strings.Contains(logStr, "AnchorError occurred") {
			return parseAnchorErrorLog(logStr), true
		}
	}
	return AnchorError{}, false
}

// parseAnchorErrorLog parses an Anchor error log string
// Example: "Program log: AnchorError occurred. Error Code: InstructionFallbackNotFound. Error Number: 101. Error Message: Fallback functions are not supported."
func parseAnchorErrorLog(logStr string) AnchorError {
	result := AnchorError{}

	if parts := strings.Split(logStr, "Error Number:"); len(parts) > 1 {
		numParts := strings.Split(parts[1], ".")
		fmt.Sscanf(strings.TrimSpace(numParts[0]), "%d", &result.Code)
	}
	if parts := strings.Split(logStr, "Error Code:"); len(parts) > 1 {
		result.Name = strings.TrimSpace(strings.Split(parts[1], ".")[0])
	}
	if parts := strings.Split(logStr, "Error Message:"); len(parts) > 1 {
		result.Msg = strings.TrimSpace(strings.Split(parts[1], ".")[0])
	}

	return result
}
