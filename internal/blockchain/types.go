// internal/blockchain/types.go
package blockchain

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

// Client определяет общий интерфейс для взаимодействия с блокчейном.
type Client interface {
	// Последний blockhash для сборки транзакции.
	RecentBlockhash(ctx context.Context) (solana.Hash, error)
	// Отправить подписанную транзакцию.
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// Дождаться подтверждения не дольше timeout.
	Confirm(ctx context.Context, signature solana.Signature, timeout time.Duration) error
	// Существует ли аккаунт в сети.
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
	// Сырые данные аккаунта; ErrAccountNotFound если аккаунта нет.
	GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error)
	// Данные нескольких аккаунтов одним запросом, nil для отсутствующих.
	GetMultipleAccountData(ctx context.Context, accounts []solana.PublicKey) ([][]byte, error)
	// Баланс в lamports.
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}
