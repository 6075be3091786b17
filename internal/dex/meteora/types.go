// internal/dex/meteora/types.go
package meteora

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	DefaultAPIURL = "https://dlmm-api.meteora.ag"

	maxBinPerArray = 70
)

var DefaultProgramID = solana.MustPublicKeyFromBase58("LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo")

// swapDiscriminator - anchor дискриминатор инструкции swap.
var swapDiscriminator = func() [8]byte {
	sum := sha256.Sum256([]byte("global:swap"))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}()

// pairResponse is the subset of GET /pair/{address} we use.
type pairResponse struct {
	Address           string  `json:"address"`
	Name              string  `json:"name"`
	MintX             string  `json:"mint_x"`
	MintY             string  `json:"mint_y"`
	ReserveX          string  `json:"reserve_x"`
	ReserveY          string  `json:"reserve_y"`
	ReserveXAmount    uint64  `json:"reserve_x_amount"`
	ReserveYAmount    uint64  `json:"reserve_y_amount"`
	BinStep           int     `json:"bin_step"`
	BaseFeePercentage string  `json:"base_fee_percentage"`
	CurrentPrice      float64 `json:"current_price"`
	Hide              bool    `json:"hide"`
}

// Смещения в аккаунте LbPair.
const (
	lbPairActiveIDOffset   = 76
	lbPairTokenXMintOffset = 88
	lbPairTokenYMintOffset = 120
	lbPairReserveXOffset   = 152
	lbPairReserveYOffset   = 184
	lbPairOracleOffset     = 552
	lbPairMinSize          = lbPairOracleOffset + 32
)

// lbPairState - поля LbPair, нужные для инструкции swap.
type lbPairState struct {
	ActiveID   int32
	TokenXMint solana.PublicKey
	TokenYMint solana.PublicKey
	ReserveX   solana.PublicKey
	ReserveY   solana.PublicKey
	Oracle     solana.PublicKey
}

func decodeLbPair(data []byte) (*lbPairState, error) {
	if len(data) < lbPairMinSize {
		return nil, fmt.Errorf("lb pair data too short: %d", len(data))
	}
	key := func(off int) solana.PublicKey { return solana.PublicKeyFromBytes(data[off : off+32]) }
	return &lbPairState{
		ActiveID:   int32(binary.LittleEndian.Uint32(data[lbPairActiveIDOffset : lbPairActiveIDOffset+4])),
		TokenXMint: key(lbPairTokenXMintOffset),
		TokenYMint: key(lbPairTokenYMintOffset),
		ReserveX:   key(lbPairReserveXOffset),
		ReserveY:   key(lbPairReserveYOffset),
		Oracle:     key(lbPairOracleOffset),
	}, nil
}

// RouteData is carried in types.Quote.RouteData for Meteora quotes.
type RouteData struct {
	Pair     solana.PublicKey
	State    *lbPairState
	SwapForY bool
}

// swapArgs - аргументы инструкции swap в порядке anchor.
type swapArgs struct {
	Discriminator [8]byte
	AmountIn      uint64
	MinAmountOut  uint64
}
