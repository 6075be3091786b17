// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rovshanmuradov/swap-router/internal/blockchain"
	"go.uber.org/zap"
)

const defaultPollInterval = 500 * time.Millisecond

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
type Client struct {
	rpc          *rpc.Client
	opts         blockchain.TransactionOptions
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewClient создаёт новый клиент, принимая RPC URL и логгер через dependency injection.
func NewClient(rpcURL string, opts blockchain.TransactionOptions, logger *zap.Logger) *Client {
	if opts.PreflightCommitment == "" {
		opts.PreflightCommitment = rpc.CommitmentConfirmed
	}
	return &Client{
		rpc:          rpc.New(rpcURL),
		opts:         opts,
		pollInterval: defaultPollInterval,
		logger:       logger.Named("solbc-client"),
	}
}

// RecentBlockhash получает последний blockhash.
func (c *Client) RecentBlockhash(ctx context.Context) (solana.Hash, error) {
	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		c.logger.Error("GetLatestBlockhash error", zap.Error(err))
		return solana.Hash{}, classifySubmitError(err)
	}
	return result.Value.Blockhash, nil
}

// Submit отправляет подписанную транзакцию. Ошибки оборачиваются в *blockchain.SubmitError.
func (c *Client) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       c.opts.SkipPreflight,
		PreflightCommitment: c.opts.PreflightCommitment,
	})
	if err != nil {
		subErr := classifySubmitError(err)
		if anchorErr, ok := FindAnchorError(subErr.Logs); ok {
			c.logger.Warn("Anchor error detected",
				zap.Int("code", anchorErr.Code),
				zap.String("name", anchorErr.Name),
				zap.String("message", anchorErr.Msg))
		}
		c.logger.Warn("SendTransaction error",
			zap.Bool("transient", subErr.Transient),
			zap.Strings("logs", subErr.Logs),
			zap.Error(err))
		return solana.Signature{}, subErr
	}
	return sig, nil
}

// Confirm ждёт статуса confirmed/finalized не дольше timeout.
func (c *Client) Confirm(ctx context.Context, signature solana.Signature, timeout time.Duration) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%s after %s: %w", signature, timeout, blockchain.ErrConfirmationTimeout)
		case <-ticker.C:
			done, err := c.checkConfirmation(ctx, signature)
			if err != nil {
				var txErr *blockchain.TxError
				if errors.As(err, &txErr) {
					return err
				}
				c.logger.Warn("Confirmation check failed", zap.Error(err))
				continue
			}
			if done {
				return nil
			}
		}
	}
}

// checkConfirmation проверяет, подтверждена ли транзакция
func (c *Client) checkConfirmation(ctx context.Context, signature solana.Signature) (bool, error) {
	response, err := c.rpc.GetSignatureStatuses(ctx, false, signature)
	if err != nil {
		return false, fmt.Errorf("failed to get signature status: %w", err)
	}
	if response == nil || len(response.Value) == 0 || response.Value[0] == nil {
		return false, nil
	}

	status := response.Value[0]
	if status.Err != nil {
		return false, &blockchain.TxError{Signature: signature.String(), Detail: status.Err}
	}

	return status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
		status.ConfirmationStatus == rpc.ConfirmationStatusFinalized, nil
}

// AccountExists проверяет существование аккаунта.
func (c *Client) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	_, err := c.GetAccountData(ctx, account)
	if errors.Is(err, blockchain.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetAccountData возвращает сырые данные аккаунта.
func (c *Client) GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	result, err := c.rpc.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && (result == nil || result.Value == nil)) {
		return nil, fmt.Errorf("%s: %w", account, blockchain.ErrAccountNotFound)
	}
	if err != nil {
		c.logger.Debug("GetAccountInfo error",
			zap.String("pubkey", account.String()),
			zap.Error(err))
		return nil, err
	}
	return result.Value.Data.GetBinary(), nil
}

// GetMultipleAccountData получает данные нескольких аккаунтов за один запрос.
func (c *Client) GetMultipleAccountData(ctx context.Context, accounts []solana.PublicKey) ([][]byte, error) {
	if len(accounts) == 0 {
		return nil, nil
	}

	res, err := c.rpc.GetMultipleAccountsWithOpts(ctx, accounts, &rpc.GetMultipleAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		c.logger.Debug("GetMultipleAccounts error", zap.Error(err))
		return nil, err
	}

	out := make([][]byte, len(accounts))
	for i, acc := range res.Value {
		if i >= len(out) {
			break
		}
		if acc != nil && acc.Data != nil {
			out[i] = acc.Data.GetBinary()
		}
	}
	return out, nil
}

// GetBalance получает баланс аккаунта в lamports.
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	result, err := c.rpc.GetBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		c.logger.Error("GetBalance error", zap.Error(err))
		return 0, err
	}
	return result.Value, nil
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
