package transaction

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	args := m.Called(ctx, account)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccounts) GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	args := m.Called(ctx, account)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockAccounts) GetMultipleAccountData(ctx context.Context, accounts []solana.PublicKey) ([][]byte, error) {
	args := m.Called(ctx, accounts)
	data, _ := args.Get(0).([][]byte)
	return data, args.Error(1)
}

var usdc = types.Token{Symbol: "USDC", Mint: solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"), Decimals: 6}

func TestAssembleTransferSOL(t *testing.T) {
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	accounts := &MockAccounts{}
	a := newAssembler(t, types.PriorityNone)

	ptx, err := a.AssembleTransfer(context.Background(), accounts, TransferRequest{
		Token: types.NativeSOL, From: from, To: to, Amount: 250_000_000,
	})
	require.NoError(t, err)
	accounts.AssertNotCalled(t, "AccountExists", mock.Anything, mock.Anything)

	require.Len(t, ptx.Instructions, 2)
	assert.Equal(t, types.VenueWallet, ptx.Venue)
	assert.Equal(t, uint64(1_000_000), ptx.FeeLamports, "transfers pay the flat minimum")
	assert.NoError(t, NewValidator(DefaultFeeRecipient).Validate(ptx))

	send := ptx.Instructions[1]
	assert.Equal(t, solana.SystemProgramID, send.ProgramID())
	assert.Equal(t, from, send.Accounts()[0].PublicKey)
	assert.Equal(t, to, send.Accounts()[1].PublicKey)
	data, err := send.Data()
	require.NoError(t, err)
	assert.Equal(t, uint64(250_000_000), binary.LittleEndian.Uint64(data[4:12]))
}

func TestAssembleTransferToken(t *testing.T) {
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	src, _, err := solana.FindAssociatedTokenAddress(from, usdc.Mint)
	require.NoError(t, err)
	dst, _, err := solana.FindAssociatedTokenAddress(to, usdc.Mint)
	require.NoError(t, err)

	tests := []struct {
		name      string
		exists    bool
		wantIxs   int
		createsAt int
	}{
		{name: "recipient account missing", exists: false, wantIxs: 3, createsAt: 1},
		{name: "recipient account exists", exists: true, wantIxs: 2, createsAt: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := &MockAccounts{}
			accounts.On("AccountExists", mock.Anything, dst).Return(tt.exists, nil).Once()
			a := newAssembler(t, types.PriorityNone)

			ptx, err := a.AssembleTransfer(context.Background(), accounts, TransferRequest{
				Token: usdc, From: from, To: to, Amount: 5_000_000,
			})
			require.NoError(t, err)
			accounts.AssertExpectations(t)
			require.Len(t, ptx.Instructions, tt.wantIxs)
			assert.Equal(t, solana.SystemProgramID, ptx.Instructions[0].ProgramID(), "fee goes first")

			if tt.createsAt >= 0 {
				create := ptx.Instructions[tt.createsAt]
				assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, create.ProgramID())
				assert.Equal(t, from, create.Accounts()[0].PublicKey, "sender pays for the account")
				assert.Equal(t, dst, create.Accounts()[1].PublicKey)
				assert.Equal(t, to, create.Accounts()[2].PublicKey)
			}

			send := ptx.Instructions[len(ptx.Instructions)-1]
			assert.Equal(t, solana.TokenProgramID, send.ProgramID())
			metas := send.Accounts()
			require.GreaterOrEqual(t, len(metas), 4)
			assert.Equal(t, src, metas[0].PublicKey)
			assert.Equal(t, usdc.Mint, metas[1].PublicKey)
			assert.Equal(t, dst, metas[2].PublicKey)
			assert.Equal(t, from, metas[3].PublicKey)
		})
	}
}

func TestAssembleTransferFailures(t *testing.T) {
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	a := newAssembler(t, types.PriorityNone)

	invalid := map[string]TransferRequest{
		"zero amount":   {Token: usdc, From: from, To: to},
		"no recipient":  {Token: usdc, From: from, Amount: 1},
		"self transfer": {Token: usdc, From: from, To: from, Amount: 1},
		"no sender":     {Token: usdc, To: to, Amount: 1},
		"token not set": {From: from, To: to, Amount: 1},
	}
	for name, req := range invalid {
		ptx, err := a.AssembleTransfer(context.Background(), &MockAccounts{}, req)
		assert.Nil(t, ptx, name)
		assert.Equal(t, types.KindValidation, types.KindOf(err), name)
	}

	accounts := &MockAccounts{}
	accounts.On("AccountExists", mock.Anything, mock.Anything).Return(false, errors.New("rpc down"))
	ptx, err := a.AssembleTransfer(context.Background(), accounts, TransferRequest{Token: usdc, From: from, To: to, Amount: 1})
	assert.Nil(t, ptx)
	assert.Equal(t, types.KindBuild, types.KindOf(err))
	assert.Contains(t, err.Error(), "rpc down")
}
