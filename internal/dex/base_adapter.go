package dex

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/rovshanmuradov/swap-router/internal/types"
)

// KeyedCache memoises static venue data (pool keys, layouts) per key.
// Reserves and prices must never go through it.
type KeyedCache[T any] struct {
	mu    sync.Mutex
	items map[string]T
}

// GetOrLoad returns the cached value or calls load outside the lock.
func (c *KeyedCache[T]) GetOrLoad(key string, load func() (T, error)) (T, error) {
	c.mu.Lock()
	if c.items == nil {
		c.items = make(map[string]T)
	}
	if v, ok := c.items[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	// вне lock вызываем load (сетевой вызов)
	v, err := load()
	if err != nil {
		return v, err
	}

	c.mu.Lock()
	c.items[key] = v
	c.mu.Unlock()
	return v, nil
}

// CreateATAIdempotentInstruction creates the owner's associated token account for mint if missing.
func CreateATAIdempotentInstruction(payer, owner, mint solana.PublicKey) (solana.Instruction, solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("derive ATA for %s: %w", mint, err)
	}

	ix := solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		[]*solana.AccountMeta{
			{PublicKey: payer, IsWritable: true, IsSigner: true},
			{PublicKey: ata, IsWritable: true, IsSigner: false},
			{PublicKey: owner, IsWritable: false, IsSigner: false},
			{PublicKey: mint, IsWritable: false, IsSigner: false},
			{PublicKey: solana.SystemProgramID, IsWritable: false, IsSigner: false},
			{PublicKey: solana.TokenProgramID, IsWritable: false, IsSigner: false},
		},
		[]byte{1}, // CreateIdempotent
	)
	return ix, ata, nil
}

// TokenAccounts are the signer's accounts for one swap plus the
// instructions that prepare and tear them down.
type TokenAccounts struct {
	Source      solana.PublicKey
	Destination solana.PublicKey
	Setup       []solana.Instruction
	Cleanup     []solana.Instruction
}

// PrepareTokenAccounts resolves source and destination ATAs. SOL input is
// wrapped into a temporary wSOL account and SOL output is unwrapped after the
// swap. The only chain read is whether the destination account exists.
func PrepareTokenAccounts(
	ctx context.Context,
	accounts AccountReader,
	owner solana.PublicKey,
	input, output types.Token,
	amountIn uint64,
) (*TokenAccounts, error) {
	res := &TokenAccounts{}

	createSrc, src, err := CreateATAIdempotentInstruction(owner, owner, input.Mint)
	if err != nil {
		return nil, err
	}
	res.Source = src
	if input.IsSOL() {
		res.Setup = append(res.Setup, createSrc)
		res.Setup = append(res.Setup, WrapSOLInstructions(owner, src, amountIn)...)
		res.Cleanup = append(res.Cleanup, UnwrapSOLInstruction(src, owner))
	}

	createDst, dst, err := CreateATAIdempotentInstruction(owner, owner, output.Mint)
	if err != nil {
		return nil, err
	}
	res.Destination = dst

	exists, err := accounts.AccountExists(ctx, dst)
	if err != nil {
		return nil, fmt.Errorf("check destination account %s: %w", dst, err)
	}
	if !exists || output.IsSOL() {
		res.Setup = append(res.Setup, createDst)
	}
	if output.IsSOL() {
		res.Cleanup = append(res.Cleanup, UnwrapSOLInstruction(dst, owner))
	}
	return res, nil
}

// WrapSOLInstructions transfers lamports into a wSOL account and syncs it.
func WrapSOLInstructions(owner, wsolAccount solana.PublicKey, lamports uint64) []solana.Instruction {
	return []solana.Instruction{
		system.NewTransferInstruction(lamports, owner, wsolAccount).Build(),
		token.NewSyncNativeInstruction(wsolAccount).Build(),
	}
}

// UnwrapSOLInstruction closes a wSOL account back into the owner.
func UnwrapSOLInstruction(wsolAccount, owner solana.PublicKey) solana.Instruction {
	return token.NewCloseAccountInstruction(wsolAccount, owner, owner, []solana.PublicKey{}).Build()
}

// InstructionsFromTransaction decompiles a base64 legacy transaction returned
// by a venue API. Compute budget instructions are dropped; the assembler sets its own.
func InstructionsFromTransaction(encoded string) ([]solana.Instruction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("parse transaction: %w", err)
	}
	msg := tx.Message
	if len(msg.AddressTableLookups) > 0 {
		return nil, fmt.Errorf("transactions with address lookup tables are not supported")
	}

	keys := msg.AccountKeys
	numSigners := int(msg.Header.NumRequiredSignatures)
	writableSigned := numSigners - int(msg.Header.NumReadonlySignedAccounts)
	writableUnsigned := len(keys) - int(msg.Header.NumReadonlyUnsignedAccounts)

	out := make([]solana.Instruction, 0, len(msg.Instructions))
	for i, ci := range msg.Instructions {
		if int(ci.ProgramIDIndex) >= len(keys) {
			return nil, fmt.Errorf("instruction %d: program index %d out of range", i, ci.ProgramIDIndex)
		}
		programID := keys[ci.ProgramIDIndex]
		if programID.Equals(computebudget.ProgramID) {
			continue
		}

		metas := make([]*solana.AccountMeta, 0, len(ci.Accounts))
		for _, idx := range ci.Accounts {
			k := int(idx)
			if k >= len(keys) {
				return nil, fmt.Errorf("instruction %d: account index %d out of range", i, idx)
			}
			signer := k < numSigners
			writable := (signer && k < writableSigned) || (!signer && k < writableUnsigned)
			metas = append(metas, solana.NewAccountMeta(keys[k], writable, signer))
		}
		out = append(out, solana.NewInstruction(programID, metas, []byte(ci.Data)))
	}
	return out, nil
}
