// internal/execution/coordinator.go
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rovshanmuradov/swap-router/internal/blockchain"
	"github.com/rovshanmuradov/swap-router/internal/transaction"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"github.com/rovshanmuradov/swap-router/internal/utils/metrics"
	"go.uber.org/zap"
)

// Signer signs a compiled transaction on behalf of the user.
type Signer interface {
	Sign(ctx context.Context, tx *solana.Transaction) error
}

// ChainSubmitter broadcasts and confirms transactions.
type ChainSubmitter interface {
	RecentBlockhash(ctx context.Context) (solana.Hash, error)
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	Confirm(ctx context.Context, signature solana.Signature, timeout time.Duration) error
}

// PreSignCheck inspects a transaction before it reaches the signer.
type PreSignCheck interface {
	Validate(ptx *types.PendingTransaction) error
}

type Config struct {
	MaxSubmitRetries int           `mapstructure:"max_submit_retries"`
	InitialBackoff   time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff       time.Duration `mapstructure:"max_backoff"`
	ConfirmTimeout   time.Duration `mapstructure:"confirm_timeout"`
}

func DefaultConfig() Config {
	return Config{
		MaxSubmitRetries: 3,
		InitialBackoff:   500 * time.Millisecond,
		MaxBackoff:       4 * time.Second,
		ConfirmTimeout:   60 * time.Second,
	}
}

// Result is the outcome of one execution run.
type Result struct {
	ID        string
	Venue     types.Venue
	State     types.TxStatus
	Signature solana.Signature
	History   []Transition
}

// Coordinator drives PendingTransactions through sign, submit and confirm.
// Runs share no mutable state; one Coordinator may serve concurrent runs.
type Coordinator struct {
	signer  Signer
	chain   ChainSubmitter
	check   PreSignCheck
	cfg     Config
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
}

// NewCoordinator создает координатор исполнения. check и collector могут быть nil.
func NewCoordinator(signer Signer, chain ChainSubmitter, check PreSignCheck, cfg Config, collector *metrics.Collector, logger *zap.Logger) (*Coordinator, error) {
	if signer == nil {
		return nil, errors.New("signer cannot be nil")
	}
	if chain == nil {
		return nil, errors.New("chain submitter cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	def := DefaultConfig()
	if cfg.MaxSubmitRetries < 0 {
		cfg.MaxSubmitRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = def.ConfirmTimeout
	}
	return &Coordinator{
		signer:  signer,
		chain:   chain,
		check:   check,
		cfg:     cfg,
		metrics: collector,
		logger:  logger.Named("executor"),
		now:     time.Now,
	}, nil
}

// Execute runs ptx to a terminal state. On failure the returned Result still
// carries the history and the error has one of KindBuild, KindSigning, KindSubmission,
// KindConfirmation or KindExecutionFail. A confirmation timeout is never
// resubmitted: the transaction may still land.
func (c *Coordinator) Execute(ctx context.Context, ptx *types.PendingTransaction) (*Result, error) {
	const op = "Execute"
	if ptx == nil {
		return nil, types.Errorf(types.KindValidation, op, "transaction is nil")
	}
	if ptx.Status != types.TxBuilt {
		return nil, types.Errorf(types.KindValidation, op, "transaction is %s, only built transactions can be executed", ptx.Status)
	}

	id := uuid.New().String()
	logger := c.logger.With(
		zap.String("execution_id", id),
		zap.String("venue", string(ptx.Venue)),
		zap.Uint64("fee_lamports", ptx.FeeLamports))
	m := newMachine(c.now)
	res := &Result{ID: id, Venue: ptx.Venue}

	fail := func(kind types.ErrorKind, err error) (*Result, error) {
		if mErr := m.move(types.TxFailed, kind); mErr != nil {
			logger.Error("state machine rejected failure", zap.Error(mErr))
		}
		ptx.Status = m.state
		res.State, res.History = m.state, m.history
		c.metrics.ExecutionOutcome(string(m.state))
		logger.Error("execution failed", zap.String("kind", string(kind)), zap.Error(err))
		return res, types.NewVenueError(ptx.Venue, kind, op, err)
	}

	if c.check != nil {
		if err := c.check.Validate(ptx); err != nil {
			return fail(types.KindBuild, fmt.Errorf("pre-sign check: %w", err))
		}
	}

	// built -> signed
	blockhash, err := c.chain.RecentBlockhash(ctx)
	if err != nil {
		return fail(types.KindSubmission, fmt.Errorf("recent blockhash: %w", err))
	}
	tx, err := transaction.NewSolanaTransaction(ptx, blockhash)
	if err != nil {
		return fail(types.KindBuild, err)
	}
	if err := c.signer.Sign(ctx, tx); err != nil {
		return fail(types.KindSigning, err)
	}
	if err := m.move(types.TxSigned, ""); err != nil {
		return fail(types.KindSigning, err)
	}
	ptx.Status = m.state
	logger.Debug("transaction signed")

	// signed -> submitted
	sig, err := c.submit(ctx, tx, logger)
	if err != nil {
		return fail(types.KindSubmission, err)
	}
	if err := m.move(types.TxSubmitted, ""); err != nil {
		return fail(types.KindSubmission, err)
	}
	ptx.Status = m.state
	res.Signature = sig
	logger = logger.With(zap.String("signature", sig.String()))
	logger.Info("transaction submitted")

	// submitted -> confirmed
	if err := c.chain.Confirm(ctx, sig, c.cfg.ConfirmTimeout); err != nil {
		switch {
		case errors.Is(err, blockchain.ErrTransactionFailed):
			return fail(types.KindExecutionFail, err)
		default:
			// таймаут или потеря связи: итог неизвестен, повторная отправка запрещена
			return fail(types.KindConfirmation, err)
		}
	}
	if err := m.move(types.TxConfirmed, ""); err != nil {
		return fail(types.KindConfirmation, err)
	}
	ptx.Status = m.state
	res.State, res.History = m.state, m.history
	c.metrics.ExecutionOutcome(string(m.state))
	logger.Info("transaction confirmed")
	return res, nil
}

// submit retries transient RPC errors with exponential backoff, at most
// MaxSubmitRetries times after the first attempt.
func (c *Coordinator) submit(ctx context.Context, tx *solana.Transaction, logger *zap.Logger) (solana.Signature, error) {
	attempt := 0
	operation := func() (solana.Signature, error) {
		attempt++
		sig, err := c.chain.Submit(ctx, tx)
		if err == nil {
			return sig, nil
		}
		var submitErr *blockchain.SubmitError
		if errors.As(err, &submitErr) && submitErr.Transient {
			return solana.Signature{}, err
		}
		return solana.Signature{}, backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff

	sig, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.cfg.MaxSubmitRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.metrics.SubmitRetry()
			logger.Warn("Retrying transaction send",
				zap.Int("attempt", attempt),
				zap.Duration("next_in", next),
				zap.Error(err))
		}),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("after %d attempt(s): %w", attempt, err)
	}
	return sig, nil
}
