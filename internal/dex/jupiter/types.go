// internal/dex/jupiter/types.go
package jupiter

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	DefaultSwapURL    = "https://lite-api.jup.ag/swap/v1"
	DefaultTriggerURL = "https://lite-api.jup.ag/trigger/v1"
	DefaultPriceURL   = "https://lite-api.jup.ag/price/v2"

	errCodeNoRoute = "COULD_NOT_FIND_ANY_ROUTE"
)

// quoteResponse is the subset of /quote we read. The raw body is kept as RouteData.
type quoteResponse struct {
	InputMint      string `json:"inputMint"`
	InAmount       string `json:"inAmount"`
	OutputMint     string `json:"outputMint"`
	OutAmount      string `json:"outAmount"`
	SlippageBps    uint16 `json:"slippageBps"`
	PriceImpactPct string `json:"priceImpactPct"`
	RoutePlan      []struct {
		SwapInfo struct {
			AmmKey string `json:"ammKey"`
			Label  string `json:"label"`
		} `json:"swapInfo"`
		Percent int `json:"percent"`
	} `json:"routePlan"`
}

type apiError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// RouteData is carried in types.Quote.RouteData for Jupiter quotes.
type RouteData struct {
	Raw    json.RawMessage
	Labels []string
}

type swapInstructionsRequest struct {
	QuoteResponse           json.RawMessage `json:"quoteResponse"`
	UserPublicKey           string          `json:"userPublicKey"`
	WrapAndUnwrapSol        bool            `json:"wrapAndUnwrapSol"`
	AsLegacyTransaction     bool            `json:"asLegacyTransaction"`
	DynamicComputeUnitLimit bool            `json:"dynamicComputeUnitLimit"`
}

type apiAccountMeta struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

type apiInstruction struct {
	ProgramID string           `json:"programId"`
	Accounts  []apiAccountMeta `json:"accounts"`
	Data      string           `json:"data"`
}

type swapInstructionsResponse struct {
	ComputeBudgetInstructions   []apiInstruction `json:"computeBudgetInstructions"`
	SetupInstructions           []apiInstruction `json:"setupInstructions"`
	SwapInstruction             *apiInstruction  `json:"swapInstruction"`
	CleanupInstruction          *apiInstruction  `json:"cleanupInstruction"`
	OtherInstructions           []apiInstruction `json:"otherInstructions"`
	AddressLookupTableAddresses []string         `json:"addressLookupTableAddresses"`
	Error                       string           `json:"error"`
}

// toInstruction converts the API JSON form into a solana instruction.
func (ai apiInstruction) toInstruction() (solana.Instruction, error) {
	programID, err := solana.PublicKeyFromBase58(ai.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid program id %q: %w", ai.ProgramID, err)
	}
	metas := make([]*solana.AccountMeta, 0, len(ai.Accounts))
	for _, acc := range ai.Accounts {
		pk, err := solana.PublicKeyFromBase58(acc.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("invalid account %q: %w", acc.Pubkey, err)
		}
		metas = append(metas, solana.NewAccountMeta(pk, acc.IsWritable, acc.IsSigner))
	}
	data, err := base64.StdEncoding.DecodeString(ai.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid instruction data: %w", err)
	}
	return solana.NewInstruction(programID, metas, data), nil
}

func toInstructions(in []apiInstruction) ([]solana.Instruction, error) {
	out := make([]solana.Instruction, 0, len(in))
	for _, ai := range in {
		ix, err := ai.toInstruction()
		if err != nil {
			return nil, err
		}
		out = append(out, ix)
	}
	return out, nil
}

// Trigger API.

type createOrderParams struct {
	MakingAmount string `json:"makingAmount"`
	TakingAmount string `json:"takingAmount"`
	ExpiredAt    string `json:"expiredAt,omitempty"`
}

type createOrderRequest struct {
	InputMint        string            `json:"inputMint"`
	OutputMint       string            `json:"outputMint"`
	Maker            string            `json:"maker"`
	Payer            string            `json:"payer"`
	Params           createOrderParams `json:"params"`
	ComputeUnitPrice string            `json:"computeUnitPrice"`
	WrapAndUnwrapSol bool              `json:"wrapAndUnwrapSol"`
}

type cancelOrderRequest struct {
	Maker            string `json:"maker"`
	Order            string `json:"order"`
	ComputeUnitPrice string `json:"computeUnitPrice"`
}

type orderTxResponse struct {
	Order       string `json:"order"`
	Transaction string `json:"transaction"`
	RequestID   string `json:"requestId"`
}

type triggerOrder struct {
	UserPubkey      string  `json:"userPubkey"`
	OrderKey        string  `json:"orderKey"`
	InputMint       string  `json:"inputMint"`
	OutputMint      string  `json:"outputMint"`
	MakingAmount    string  `json:"makingAmount"`
	TakingAmount    string  `json:"takingAmount"`
	RawMakingAmount string  `json:"rawMakingAmount"`
	RawTakingAmount string  `json:"rawTakingAmount"`
	ExpiredAt       *string `json:"expiredAt"`
	CreatedAt       string  `json:"createdAt"`
	Status          string  `json:"status"`
}

type triggerOrdersResponse struct {
	Orders     []triggerOrder `json:"orders"`
	TotalPages int            `json:"totalPages"`
	Page       int            `json:"page"`
}

// Price API.

type priceInfo struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Price string `json:"price"`
}

type priceResponse struct {
	Data map[string]*priceInfo `json:"data"`
}
