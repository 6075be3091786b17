// ==========================================
// File: internal/dex/types.go
// ==========================================
package dex

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/swap-router/internal/types"
)

// QuoteRequest is the input of Adapter.GetQuote. Amount is in input base units.
type QuoteRequest struct {
	InputToken  types.Token
	OutputToken types.Token
	Amount      uint64
	SlippageBps uint16
}

func (r QuoteRequest) String() string {
	return fmt.Sprintf("%d %s -> %s @%dbps", r.Amount, r.InputToken, r.OutputToken, r.SlippageBps)
}

// SwapInstructions is a venue's instruction sequence for one action.
// Setup prepares accounts (ATA creation, SOL wrapping), Cleanup unwraps.
type SwapInstructions struct {
	Setup   []solana.Instruction
	Swap    []solana.Instruction
	Cleanup []solana.Instruction
}

// All returns setup, swap and cleanup in execution order.
func (s *SwapInstructions) All() []solana.Instruction {
	out := make([]solana.Instruction, 0, len(s.Setup)+len(s.Swap)+len(s.Cleanup))
	out = append(out, s.Setup...)
	out = append(out, s.Swap...)
	return append(out, s.Cleanup...)
}

// OrderRequest describes a limit order to place.
type OrderRequest struct {
	Venue        types.Venue
	Owner        solana.PublicKey
	InputToken   types.Token
	OutputToken  types.Token
	InputAmount  uint64
	OutputAmount uint64
	// Expiry is optional; zero means good-till-cancelled.
	Expiry time.Time
}

// Validate rejects requests that no venue could place.
func (r OrderRequest) Validate() error {
	switch {
	case r.Owner.IsZero():
		return fmt.Errorf("order owner is not set")
	case r.InputAmount == 0 || r.OutputAmount == 0:
		return fmt.Errorf("order amounts must be positive")
	case r.InputToken.Mint.Equals(r.OutputToken.Mint):
		return fmt.Errorf("input and output tokens are the same")
	case !r.Expiry.IsZero() && r.Expiry.Before(time.Now()):
		return fmt.Errorf("order expiry %s is in the past", r.Expiry.Format(time.RFC3339))
	}
	return nil
}

// TokenDirectory resolves mints returned by venue APIs into known tokens.
type TokenDirectory interface {
	Lookup(mint solana.PublicKey) (types.Token, bool)
}

// StaticTokens is a TokenDirectory backed by configured tokens.
type StaticTokens map[solana.PublicKey]types.Token

func NewStaticTokens(tokens ...types.Token) StaticTokens {
	s := make(StaticTokens, len(tokens)+1)
	s[types.NativeSOL.Mint] = types.NativeSOL
	for _, t := range tokens {
		s[t.Mint] = t
	}
	return s
}

func (s StaticTokens) Lookup(mint solana.PublicKey) (types.Token, bool) {
	t, ok := s[mint]
	return t, ok
}

// ResolveToken returns the known token or a bare token carrying only the mint.
func ResolveToken(dir TokenDirectory, mint solana.PublicKey) types.Token {
	if dir != nil {
		if t, ok := dir.Lookup(mint); ok {
			return t
		}
	}
	return types.Token{Symbol: shortMint(mint), Mint: mint}
}

func shortMint(mint solana.PublicKey) string {
	s := mint.String()
	if len(s) <= 8 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}
