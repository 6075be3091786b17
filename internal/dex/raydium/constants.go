// internal/dex/raydium/constants.go
package raydium

import "github.com/gagliardetto/solana-go"

const (
	DefaultComputeURL = "https://transaction-v1.raydium.io"
	DefaultAPIURL     = "https://api-v3.raydium.io"

	// swapBaseIn в программе AMM v4
	swapBaseInInstruction uint8 = 9
	swapInstructionSize         = 17 // 1 (тип) + 8 (amountIn) + 8 (minAmountOut)
)

var (
	AmmV4ProgramID    = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	OpenBookProgramID = solana.MustPublicKeyFromBase58("srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX")
)

// Смещения MarketStateV3 (5 байт padding + account flags в начале).
const (
	marketBaseMintOffset     = 53
	marketQuoteMintOffset    = 85
	marketBidsOffset         = 285
	marketAsksOffset         = 317
	marketBaseLotSizeOffset  = 349
	marketQuoteLotSizeOffset = 357
	marketLayoutSize         = 388
)

// Слэб ордербука: заголовок и узлы по 72 байта.
const (
	slabBumpIndexOffset = 13
	slabNodesOffset     = 45
	slabNodeSize        = 72
	slabLeafTag         = 2
)
