// internal/dex/raydium/types.go
package raydium

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// computeResponse is the envelope of /compute/swap-base-in.
type computeResponse struct {
	ID      string       `json:"id"`
	Success bool         `json:"success"`
	Msg     string       `json:"msg"`
	Data    *computeData `json:"data"`
}

type computeData struct {
	SwapType             string      `json:"swapType"`
	InputMint            string      `json:"inputMint"`
	InputAmount          string      `json:"inputAmount"`
	OutputMint           string      `json:"outputMint"`
	OutputAmount         string      `json:"outputAmount"`
	OtherAmountThreshold string      `json:"otherAmountThreshold"`
	SlippageBps          uint16      `json:"slippageBps"`
	PriceImpactPct       float64     `json:"priceImpactPct"`
	RoutePlan            []routeStep `json:"routePlan"`
}

type routeStep struct {
	PoolID     string `json:"poolId"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	FeeRate    int    `json:"feeRate"`
	FeeAmount  string `json:"feeAmount"`
}

type apiMint struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
}

// apiPoolKeys is one element of /pools/key/ids.
type apiPoolKeys struct {
	ProgramID string  `json:"programId"`
	ID        string  `json:"id"`
	MintA     apiMint `json:"mintA"`
	MintB     apiMint `json:"mintB"`
	Vault     struct {
		A string `json:"A"`
		B string `json:"B"`
	} `json:"vault"`
	Authority        string `json:"authority"`
	OpenOrders       string `json:"openOrders"`
	TargetOrders     string `json:"targetOrders"`
	MarketProgramID  string `json:"marketProgramId"`
	MarketID         string `json:"marketId"`
	MarketAuthority  string `json:"marketAuthority"`
	MarketBaseVault  string `json:"marketBaseVault"`
	MarketQuoteVault string `json:"marketQuoteVault"`
	MarketBids       string `json:"marketBids"`
	MarketAsks       string `json:"marketAsks"`
	MarketEventQueue string `json:"marketEventQueue"`
}

type poolKeysResponse struct {
	Success bool          `json:"success"`
	Msg     string        `json:"msg"`
	Data    []apiPoolKeys `json:"data"`
}

type poolInfo struct {
	ID        string  `json:"id"`
	ProgramID string  `json:"programId"`
	Type      string  `json:"type"`
	MarketID  string  `json:"marketId"`
	MintA     apiMint `json:"mintA"`
	MintB     apiMint `json:"mintB"`
}

type poolsByMintResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Count int        `json:"count"`
		Data  []poolInfo `json:"data"`
	} `json:"data"`
}

// PoolKeys are the AMM v4 accounts a swapBaseIn touches. Coin is mint A, PC is mint B.
type PoolKeys struct {
	ID               solana.PublicKey
	Authority        solana.PublicKey
	OpenOrders       solana.PublicKey
	TargetOrders     solana.PublicKey
	CoinMint         solana.PublicKey
	PCMint           solana.PublicKey
	CoinVault        solana.PublicKey
	PCVault          solana.PublicKey
	MarketProgramID  solana.PublicKey
	MarketID         solana.PublicKey
	MarketAuthority  solana.PublicKey
	MarketBaseVault  solana.PublicKey
	MarketQuoteVault solana.PublicKey
	MarketBids       solana.PublicKey
	MarketAsks       solana.PublicKey
	MarketEventQueue solana.PublicKey
}

// RouteData is carried in types.Quote.RouteData for Raydium quotes.
type RouteData struct {
	PoolID string
	Keys   *PoolKeys
}

func (k apiPoolKeys) parse() (*PoolKeys, error) {
	keys := &PoolKeys{}
	fields := []struct {
		name string
		raw  string
		dst  *solana.PublicKey
	}{
		{"id", k.ID, &keys.ID},
		{"authority", k.Authority, &keys.Authority},
		{"openOrders", k.OpenOrders, &keys.OpenOrders},
		{"targetOrders", k.TargetOrders, &keys.TargetOrders},
		{"mintA", k.MintA.Address, &keys.CoinMint},
		{"mintB", k.MintB.Address, &keys.PCMint},
		{"vault.A", k.Vault.A, &keys.CoinVault},
		{"vault.B", k.Vault.B, &keys.PCVault},
		{"marketProgramId", k.MarketProgramID, &keys.MarketProgramID},
		{"marketId", k.MarketID, &keys.MarketID},
		{"marketAuthority", k.MarketAuthority, &keys.MarketAuthority},
		{"marketBaseVault", k.MarketBaseVault, &keys.MarketBaseVault},
		{"marketQuoteVault", k.MarketQuoteVault, &keys.MarketQuoteVault},
		{"marketBids", k.MarketBids, &keys.MarketBids},
		{"marketAsks", k.MarketAsks, &keys.MarketAsks},
		{"marketEventQueue", k.MarketEventQueue, &keys.MarketEventQueue},
	}
	for _, f := range fields {
		pk, err := solana.PublicKeyFromBase58(f.raw)
		if err != nil {
			return nil, fmt.Errorf("pool key %s: %w", f.name, err)
		}
		*f.dst = pk
	}
	return keys, nil
}
