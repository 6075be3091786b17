// internal/dex/raydium/instruction.go
package raydium

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// SwapInstructionAccounts содержит все аккаунты для swapBaseIn.
type SwapInstructionAccounts struct {
	// Пользовательские аккаунты
	UserAuthority   solana.PublicKey
	UserSourceToken solana.PublicKey
	UserDestToken   solana.PublicKey

	Pool *PoolKeys
}

// SwapInstructionData содержит данные для инструкции свапа
type SwapInstructionData struct {
	AmountIn     uint64
	MinAmountOut uint64
}

// BuildSwapInstruction создает инструкцию swapBaseIn программы AMM v4.
func BuildSwapInstruction(programID solana.PublicKey, data SwapInstructionData, accounts SwapInstructionAccounts) solana.Instruction {
	return solana.NewInstruction(programID, buildAccountMetas(accounts), serializeInstructionData(data))
}

// buildAccountMetas строит список аккаунтов в порядке, который ожидает программа.
func buildAccountMetas(a SwapInstructionAccounts) []*solana.AccountMeta {
	p := a.Pool
	return []*solana.AccountMeta{
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(p.ID, true, false),
		solana.NewAccountMeta(p.Authority, false, false),
		solana.NewAccountMeta(p.OpenOrders, true, false),
		solana.NewAccountMeta(p.TargetOrders, true, false),
		solana.NewAccountMeta(p.CoinVault, true, false),
		solana.NewAccountMeta(p.PCVault, true, false),
		// OpenBook маркет
		solana.NewAccountMeta(p.MarketProgramID, false, false),
		solana.NewAccountMeta(p.MarketID, true, false),
		solana.NewAccountMeta(p.MarketBids, true, false),
		solana.NewAccountMeta(p.MarketAsks, true, false),
		solana.NewAccountMeta(p.MarketEventQueue, true, false),
		solana.NewAccountMeta(p.MarketBaseVault, true, false),
		solana.NewAccountMeta(p.MarketQuoteVault, true, false),
		solana.NewAccountMeta(p.MarketAuthority, false, false),
		// пользователь
		solana.NewAccountMeta(a.UserSourceToken, true, false),
		solana.NewAccountMeta(a.UserDestToken, true, false),
		solana.NewAccountMeta(a.UserAuthority, false, true),
	}
}

func serializeInstructionData(d SwapInstructionData) []byte {
	data := make([]byte, swapInstructionSize)
	data[0] = swapBaseInInstruction
	binary.LittleEndian.PutUint64(data[1:9], d.AmountIn)
	binary.LittleEndian.PutUint64(data[9:17], d.MinAmountOut)
	return data
}
