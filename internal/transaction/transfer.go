// internal/transaction/transfer.go
package transaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/rovshanmuradov/swap-router/internal/dex"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"go.uber.org/zap"
)

// TransferRequest moves amount base units of Token from From to To.
type TransferRequest struct {
	Token  types.Token
	From   solana.PublicKey
	To     solana.PublicKey
	Amount uint64
}

func (r TransferRequest) Validate() error {
	switch {
	case r.Amount == 0:
		return errors.New("amount must be positive")
	case r.From.IsZero():
		return errors.New("sender is not set")
	case r.To.IsZero():
		return errors.New("recipient is not set")
	case r.From.Equals(r.To):
		return errors.New("sender and recipient are the same account")
	case r.Token.Mint.IsZero():
		return errors.New("token mint is not set")
	}
	return nil
}

// AssembleTransfer builds [fee, priority..., create recipient ATA?, transfer].
// SOL goes through the system program; SPL tokens go ATA to ATA with
// TransferChecked, creating the recipient's account when it does not exist.
// Transfers pay the flat minimum fee.
func (a *Assembler) AssembleTransfer(ctx context.Context, accounts dex.AccountReader, req TransferRequest) (*types.PendingTransaction, error) {
	const op = "AssembleTransfer"
	if err := req.Validate(); err != nil {
		return nil, types.NewVenueError(types.VenueWallet, types.KindValidation, op, err)
	}

	ixs, err := transferInstructions(ctx, accounts, req)
	if err != nil {
		return nil, types.NewVenueError(types.VenueWallet, types.KindBuild, op, err)
	}
	feeIx, lamports, err := a.fees.BuildFlatFeeInstruction(req.From)
	if err != nil {
		return nil, types.NewVenueError(types.VenueWallet, types.KindBuild, op, err)
	}
	ptx, err := a.compose(types.VenueWallet, req.From, feeIx, lamports, ixs)
	if err != nil {
		return nil, types.NewVenueError(types.VenueWallet, types.KindBuild, op, err)
	}
	a.logger.Debug("transfer assembled",
		zap.String("token", req.Token.Symbol),
		zap.Stringer("to", req.To),
		zap.Uint64("amount", req.Amount),
		zap.Int("instructions", len(ptx.Instructions)))
	return ptx, nil
}

func transferInstructions(ctx context.Context, accounts dex.AccountReader, req TransferRequest) (*dex.SwapInstructions, error) {
	if req.Token.IsSOL() {
		return &dex.SwapInstructions{
			Swap: []solana.Instruction{system.NewTransferInstruction(req.Amount, req.From, req.To).Build()},
		}, nil
	}

	src, _, err := solana.FindAssociatedTokenAddress(req.From, req.Token.Mint)
	if err != nil {
		return nil, fmt.Errorf("derive sender ATA for %s: %w", req.Token.Mint, err)
	}
	createDst, dst, err := dex.CreateATAIdempotentInstruction(req.From, req.To, req.Token.Mint)
	if err != nil {
		return nil, err
	}

	out := &dex.SwapInstructions{}
	exists, err := accounts.AccountExists(ctx, dst)
	if err != nil {
		return nil, fmt.Errorf("check recipient account %s: %w", dst, err)
	}
	if !exists {
		out.Setup = append(out.Setup, createDst)
	}
	out.Swap = append(out.Swap, token.NewTransferCheckedInstruction(
		req.Amount,
		req.Token.Decimals,
		src,
		req.Token.Mint,
		dst,
		req.From,
		[]solana.PublicKey{},
	).Build())
	return out, nil
}
