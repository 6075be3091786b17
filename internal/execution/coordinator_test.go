package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rovshanmuradov/swap-router/internal/blockchain"
	"github.com/rovshanmuradov/swap-router/internal/transaction"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"github.com/rovshanmuradov/swap-router/internal/utils/metrics"
	"github.com/rovshanmuradov/swap-router/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockSigner для тестов.
type MockSigner struct {
	mock.Mock
}

func (m *MockSigner) Sign(ctx context.Context, tx *solana.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

// MockChain - мок ChainSubmitter.
type MockChain struct {
	mock.Mock
}

func (m *MockChain) RecentBlockhash(ctx context.Context) (solana.Hash, error) {
	args := m.Called(ctx)
	return args.Get(0).(solana.Hash), args.Error(1)
}

func (m *MockChain) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *MockChain) Confirm(ctx context.Context, sig solana.Signature, timeout time.Duration) error {
	return m.Called(ctx, sig, timeout).Error(0)
}

var testSig = solana.Signature{7}

func pending(t *testing.T, signer solana.PublicKey) *types.PendingTransaction {
	t.Helper()
	fee := system.NewTransferInstruction(1_000_000, signer, transaction.DefaultFeeRecipient).Build()
	return &types.PendingTransaction{
		Instructions: []solana.Instruction{fee},
		Signer:       signer,
		Venue:        types.VenueOrca,
		FeeLamports:  1_000_000,
		Status:       types.TxBuilt,
	}
}

func testConfig() Config {
	return Config{
		MaxSubmitRetries: 2,
		InitialBackoff:   time.Millisecond,
		MaxBackoff:       2 * time.Millisecond,
		ConfirmTimeout:   time.Second,
	}
}

func newCoordinator(t *testing.T, signer Signer, chain ChainSubmitter) *Coordinator {
	t.Helper()
	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	c, err := NewCoordinator(signer, chain, transaction.NewValidator(transaction.DefaultFeeRecipient), testConfig(), collector, zap.NewNop())
	require.NoError(t, err)
	return c
}

func states(history []Transition) []types.TxStatus {
	out := []types.TxStatus{types.TxBuilt}
	for _, h := range history {
		out = append(out, h.To)
	}
	return out
}

func TestExecuteConfirmed(t *testing.T) {
	w := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	chain := new(MockChain)
	chain.On("RecentBlockhash", mock.Anything).Return(solana.Hash{1}, nil)
	chain.On("Submit", mock.Anything, mock.Anything).Return(testSig, nil).Once()
	chain.On("Confirm", mock.Anything, testSig, time.Second).Return(nil)

	ptx := pending(t, w.PublicKey)
	res, err := newCoordinator(t, w, chain).Execute(context.Background(), ptx)
	require.NoError(t, err)
	chain.AssertExpectations(t)

	assert.Equal(t, types.TxConfirmed, res.State)
	assert.Equal(t, testSig, res.Signature)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, []types.TxStatus{types.TxBuilt, types.TxSigned, types.TxSubmitted, types.TxConfirmed}, states(res.History))
	assert.Equal(t, types.TxConfirmed, ptx.Status)

	// повторное исполнение той же транзакции запрещено
	_, err = newCoordinator(t, w, chain).Execute(context.Background(), ptx)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestExecuteSigningRejected(t *testing.T) {
	signer := new(MockSigner)
	signer.On("Sign", mock.Anything, mock.Anything).Return(errors.New("user rejected")).Once()
	chain := new(MockChain)
	chain.On("RecentBlockhash", mock.Anything).Return(solana.Hash{1}, nil)

	res, err := newCoordinator(t, signer, chain).Execute(context.Background(), pending(t, solana.NewWallet().PublicKey()))
	assert.Equal(t, types.KindSigning, types.KindOf(err))
	assert.True(t, errors.Is(err, types.ErrSigning))
	require.NotNil(t, res)
	assert.Equal(t, types.TxFailed, res.State)
	assert.Equal(t, types.KindSigning, res.History[len(res.History)-1].Kind)
	chain.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	signer.AssertExpectations(t)
}

func TestExecuteWrongSignerWallet(t *testing.T) {
	w := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	chain := new(MockChain)
	chain.On("RecentBlockhash", mock.Anything).Return(solana.Hash{1}, nil)

	_, err := newCoordinator(t, w, chain).Execute(context.Background(), pending(t, solana.NewWallet().PublicKey()))
	assert.Equal(t, types.KindSigning, types.KindOf(err))
}

func TestExecuteRetriesTransientSubmit(t *testing.T) {
	signer := new(MockSigner)
	signer.On("Sign", mock.Anything, mock.Anything).Return(nil)
	chain := new(MockChain)
	chain.On("RecentBlockhash", mock.Anything).Return(solana.Hash{1}, nil)
	transient := &blockchain.SubmitError{Err: errors.New("blockhash not found"), Transient: true}
	chain.On("Submit", mock.Anything, mock.Anything).Return(solana.Signature{}, transient).Twice()
	chain.On("Submit", mock.Anything, mock.Anything).Return(testSig, nil).Once()
	chain.On("Confirm", mock.Anything, testSig, mock.Anything).Return(nil)

	res, err := newCoordinator(t, signer, chain).Execute(context.Background(), pending(t, solana.NewWallet().PublicKey()))
	require.NoError(t, err)
	assert.Equal(t, types.TxConfirmed, res.State)
	chain.AssertNumberOfCalls(t, "Submit", 3)
}

func TestExecuteSubmitRetriesBounded(t *testing.T) {
	signer := new(MockSigner)
	signer.On("Sign", mock.Anything, mock.Anything).Return(nil)
	chain := new(MockChain)
	chain.On("RecentBlockhash", mock.Anything).Return(solana.Hash{1}, nil)
	chain.On("Submit", mock.Anything, mock.Anything).
		Return(solana.Signature{}, &blockchain.SubmitError{Err: errors.New("node is behind"), Transient: true})

	res, err := newCoordinator(t, signer, chain).Execute(context.Background(), pending(t, solana.NewWallet().PublicKey()))
	assert.Equal(t, types.KindSubmission, types.KindOf(err))
	assert.Equal(t, types.TxFailed, res.State)
	chain.AssertNumberOfCalls(t, "Submit", testConfig().MaxSubmitRetries+1)
	chain.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecuteNonTransientSubmit(t *testing.T) {
	signer := new(MockSigner)
	signer.On("Sign", mock.Anything, mock.Anything).Return(nil)
	chain := new(MockChain)
	chain.On("RecentBlockhash", mock.Anything).Return(solana.Hash{1}, nil)
	chain.On("Submit", mock.Anything, mock.Anything).
		Return(solana.Signature{}, &blockchain.SubmitError{Err: errors.New("insufficient funds")})

	_, err := newCoordinator(t, signer, chain).Execute(context.Background(), pending(t, solana.NewWallet().PublicKey()))
	assert.Equal(t, types.KindSubmission, types.KindOf(err))
	chain.AssertNumberOfCalls(t, "Submit", 1)
}

func TestExecuteConfirmationTimeoutNotResubmitted(t *testing.T) {
	signer := new(MockSigner)
	signer.On("Sign", mock.Anything, mock.Anything).Return(nil)
	chain := new(MockChain)
	chain.On("RecentBlockhash", mock.Anything).Return(solana.Hash{1}, nil)
	chain.On("Submit", mock.Anything, mock.Anything).Return(testSig, nil)
	chain.On("Confirm", mock.Anything, testSig, mock.Anything).Return(blockchain.ErrConfirmationTimeout)

	res, err := newCoordinator(t, signer, chain).Execute(context.Background(), pending(t, solana.NewWallet().PublicKey()))
	assert.Equal(t, types.KindConfirmation, types.KindOf(err))
	assert.Equal(t, types.RemediationCheckChainState, types.RemediationFor(err))
	assert.Equal(t, types.TxFailed, res.State)
	assert.Equal(t, testSig, res.Signature)
	chain.AssertNumberOfCalls(t, "Submit", 1)
}

func TestExecuteOnChainFailure(t *testing.T) {
	signer := new(MockSigner)
	signer.On("Sign", mock.Anything, mock.Anything).Return(nil)
	chain := new(MockChain)
	chain.On("RecentBlockhash", mock.Anything).Return(solana.Hash{1}, nil)
	chain.On("Submit", mock.Anything, mock.Anything).Return(testSig, nil)
	chain.On("Confirm", mock.Anything, testSig, mock.Anything).
		Return(&blockchain.TxError{Signature: testSig.String(), Detail: "slippage exceeded"})

	_, err := newCoordinator(t, signer, chain).Execute(context.Background(), pending(t, solana.NewWallet().PublicKey()))
	assert.Equal(t, types.KindExecutionFail, types.KindOf(err))
}

func TestExecutePreSignCheck(t *testing.T) {
	signer := new(MockSigner)
	chain := new(MockChain)

	ptx := pending(t, solana.NewWallet().PublicKey())
	ptx.FeeLamports = 1 // не совпадает с переводом

	res, err := newCoordinator(t, signer, chain).Execute(context.Background(), ptx)
	assert.Equal(t, types.KindBuild, types.KindOf(err))
	assert.Equal(t, types.RemediationRefreshQuote, types.RemediationFor(err))
	require.NotNil(t, res)
	assert.Equal(t, types.TxFailed, res.State)
	assert.Equal(t, types.TxFailed, ptx.Status)
	assert.Equal(t, []types.TxStatus{types.TxBuilt, types.TxFailed}, states(res.History))
	signer.AssertNotCalled(t, "Sign", mock.Anything, mock.Anything)
	chain.AssertNotCalled(t, "RecentBlockhash", mock.Anything)
}

func TestExecuteUncompilableTransaction(t *testing.T) {
	signer := new(MockSigner)
	chain := new(MockChain)
	chain.On("RecentBlockhash", mock.Anything).Return(solana.Hash{1}, nil)

	// без проверки перед подписью пустая транзакция доходит до компиляции
	c, err := NewCoordinator(signer, chain, nil, testConfig(), nil, zap.NewNop())
	require.NoError(t, err)
	ptx := &types.PendingTransaction{Signer: solana.NewWallet().PublicKey(), Venue: types.VenueOrca, Status: types.TxBuilt}

	res, err := c.Execute(context.Background(), ptx)
	assert.Equal(t, types.KindBuild, types.KindOf(err))
	require.NotNil(t, res)
	assert.Equal(t, types.TxFailed, res.State)
	assert.Equal(t, types.TxFailed, ptx.Status)
	signer.AssertNotCalled(t, "Sign", mock.Anything, mock.Anything)
}
