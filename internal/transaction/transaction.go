// internal/transaction/transaction.go
package transaction

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/rovshanmuradov/swap-router/internal/dex"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"go.uber.org/zap"
)

// Assembler turns a route or an order action into a PendingTransaction:
// [fee transfer, priority..., setup..., swap..., cleanup...].
type Assembler struct {
	registry *dex.Registry
	fees     *FeePolicy
	priority types.PriorityLevel
	logger   *zap.Logger
}

// NewAssembler создает сборщик транзакций.
func NewAssembler(registry *dex.Registry, fees *FeePolicy, priority types.PriorityLevel, logger *zap.Logger) *Assembler {
	if priority == "" {
		priority = types.PriorityNone
	}
	return &Assembler{
		registry: registry,
		fees:     fees,
		priority: priority,
		logger:   logger.Named("tx-assembler"),
	}
}

// AssembleSwap builds the swap for route. Any failure is a KindBuild error and no transaction.
func (a *Assembler) AssembleSwap(ctx context.Context, route types.Route, signer solana.PublicKey) (*types.PendingTransaction, error) {
	const op = "AssembleSwap"
	if signer.IsZero() {
		return nil, types.NewVenueError(route.Venue, types.KindBuild, op, errors.New("signer is not set"))
	}
	adapter, ok := a.registry.Get(route.Venue)
	if !ok {
		return nil, types.NewVenueError(route.Venue, types.KindBuild, op, fmt.Errorf("venue %s is not registered", route.Venue))
	}

	venueIxs, err := adapter.BuildSwapInstructions(ctx, route, signer)
	if err != nil {
		return nil, types.NewVenueError(route.Venue, types.KindBuild, op, err)
	}
	feeIx, lamports, err := a.fees.BuildFeeInstruction(signer, route.NotionalSOL)
	if err != nil {
		return nil, types.NewVenueError(route.Venue, types.KindBuild, op, err)
	}

	ptx, err := a.compose(route.Venue, signer, feeIx, lamports, venueIxs)
	if err != nil {
		return nil, types.NewVenueError(route.Venue, types.KindBuild, op, err)
	}
	a.logger.Debug("swap assembled",
		zap.String("venue", string(route.Venue)),
		zap.Uint64("fee_lamports", lamports),
		zap.Uint64("min_received", route.MinimumReceived),
		zap.Int("instructions", len(ptx.Instructions)))
	return ptx, nil
}

// AssemblePlaceOrder builds a limit order placement; the fee follows the order notional.
func (a *Assembler) AssemblePlaceOrder(ctx context.Context, req dex.OrderRequest, notionalSOL float64) (*types.PendingTransaction, error) {
	const op = "AssemblePlaceOrder"
	venue, ok := a.registry.OrderVenue(req.Venue)
	if !ok {
		return nil, types.NewVenueError(req.Venue, types.KindBuild, op, fmt.Errorf("venue %s does not accept orders", req.Venue))
	}
	venueIxs, err := venue.BuildPlaceOrderInstructions(ctx, req)
	if err != nil {
		return nil, types.NewVenueError(req.Venue, types.KindBuild, op, err)
	}
	feeIx, lamports, err := a.fees.BuildFeeInstruction(req.Owner, notionalSOL)
	if err != nil {
		return nil, types.NewVenueError(req.Venue, types.KindBuild, op, err)
	}
	ptx, err := a.compose(req.Venue, req.Owner, feeIx, lamports, venueIxs)
	if err != nil {
		return nil, types.NewVenueError(req.Venue, types.KindBuild, op, err)
	}
	return ptx, nil
}

// AssembleCancelOrder builds a cancellation charged the flat minimum fee.
func (a *Assembler) AssembleCancelOrder(ctx context.Context, order types.Order, owner solana.PublicKey) (*types.PendingTransaction, error) {
	const op = "AssembleCancelOrder"
	venue, ok := a.registry.OrderVenue(order.Venue)
	if !ok {
		return nil, types.NewVenueError(order.Venue, types.KindBuild, op, fmt.Errorf("venue %s does not accept orders", order.Venue))
	}
	venueIxs, err := venue.BuildCancelOrderInstructions(ctx, order, owner)
	if err != nil {
		return nil, types.NewVenueError(order.Venue, types.KindBuild, op, err)
	}
	feeIx, lamports, err := a.fees.BuildFlatFeeInstruction(owner)
	if err != nil {
		return nil, types.NewVenueError(order.Venue, types.KindBuild, op, err)
	}
	ptx, err := a.compose(order.Venue, owner, feeIx, lamports, venueIxs)
	if err != nil {
		return nil, types.NewVenueError(order.Venue, types.KindBuild, op, err)
	}
	return ptx, nil
}

func (a *Assembler) compose(venue types.Venue, signer solana.PublicKey, feeIx solana.Instruction, lamports uint64, venueIxs *dex.SwapInstructions) (*types.PendingTransaction, error) {
	if venueIxs == nil || len(venueIxs.Swap) == 0 {
		return nil, errors.New("venue returned no instructions")
	}
	priority, err := types.PriorityInstructions(a.priority)
	if err != nil {
		return nil, err
	}

	ixs := make([]solana.Instruction, 0, 1+len(priority)+len(venueIxs.Setup)+len(venueIxs.Swap)+len(venueIxs.Cleanup))
	ixs = append(ixs, feeIx)
	ixs = append(ixs, priority...)
	ixs = append(ixs, venueIxs.All()...)

	ptx := &types.PendingTransaction{
		Instructions: ixs,
		Signer:       signer,
		Venue:        venue,
		FeeLamports:  lamports,
		Status:       types.TxBuilt,
	}
	if err := NewValidator(a.fees.Recipient()).Validate(ptx); err != nil {
		return nil, err
	}
	return ptx, nil
}

// Validator checks a PendingTransaction before it is handed to the signer.
type Validator struct {
	recipient solana.PublicKey
}

func NewValidator(recipient solana.PublicKey) *Validator {
	return &Validator{recipient: recipient}
}

// Validate requires a signer and a system transfer of the fee to the recipient at index 0.
func (v *Validator) Validate(ptx *types.PendingTransaction) error {
	if ptx == nil || len(ptx.Instructions) == 0 {
		return errors.New("transaction has no instructions")
	}
	if ptx.Signer.IsZero() {
		return errors.New("transaction signer is not set")
	}

	fee := ptx.Instructions[0]
	if !fee.ProgramID().Equals(solana.SystemProgramID) {
		return fmt.Errorf("first instruction must be the fee transfer, got program %s", fee.ProgramID())
	}
	accounts := fee.Accounts()
	if len(accounts) < 2 || !accounts[0].PublicKey.Equals(ptx.Signer) || !accounts[1].PublicKey.Equals(v.recipient) {
		return errors.New("fee transfer must go from the signer to the fee recipient")
	}
	data, err := fee.Data()
	if err != nil {
		return fmt.Errorf("fee transfer data: %w", err)
	}
	if len(data) < 12 || binary.LittleEndian.Uint32(data[:4]) != system.Instruction_Transfer {
		return errors.New("first instruction is not a system transfer")
	}
	if lamports := binary.LittleEndian.Uint64(data[4:12]); lamports != ptx.FeeLamports {
		return fmt.Errorf("fee transfer of %d lamports does not match %d", lamports, ptx.FeeLamports)
	}
	return nil
}

// NewSolanaTransaction компилирует PendingTransaction с blockhash; плательщик - подписант.
func NewSolanaTransaction(ptx *types.PendingTransaction, blockhash solana.Hash) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(ptx.Instructions, blockhash, solana.TransactionPayer(ptx.Signer))
	if err != nil {
		return nil, fmt.Errorf("failed to create new transaction: %w", err)
	}
	return tx, nil
}
