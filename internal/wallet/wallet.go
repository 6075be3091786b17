// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrNotRequiredSigner is returned when a transaction does not list the wallet as a signer.
var ErrNotRequiredSigner = errors.New("wallet is not a required signer of the transaction")

// Wallet представляет кошелёк Solana.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
	ataCache   sync.Map // mint -> ATA
}

// NewWallet создаёт новый кошелёк из base58-encoded приватного ключа.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	return FromPrivateKey(solana.PrivateKey(privateKeyBytes)), nil
}

// FromPrivateKey wraps an already decoded key.
func FromPrivateKey(key solana.PrivateKey) *Wallet {
	return &Wallet{
		PrivateKey: key,
		PublicKey:  key.PublicKey(),
	}
}

// LoadWallets reads "name,private_key" rows. A header row, blank lines and
// lines starting with # are skipped; names must be unique.
func LoadWallets(path string) (map[string]*Wallet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallets file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.Comment = '#'
	r.FieldsPerRecord = 2
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read wallets CSV: %w", err)
	}

	wallets := make(map[string]*Wallet, len(records))
	for i, record := range records {
		name := strings.TrimSpace(record[0])
		if i == 0 && strings.EqualFold(name, "name") {
			continue
		}
		if _, dup := wallets[name]; dup {
			return nil, fmt.Errorf("duplicate wallet %q", name)
		}
		w, err := NewWallet(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("wallet %q: %w", name, err)
		}
		wallets[name] = w
	}
	if len(wallets) == 0 {
		return nil, errors.New("wallets file has no entries")
	}
	return wallets, nil
}

// Account returns the signer account.
func (w *Wallet) Account() solana.PublicKey {
	return w.PublicKey
}

// Sign подписывает транзакцию приватным ключом кошелька.
// Отказ, если кошелёк не указан среди подписантов.
func (w *Wallet) Sign(ctx context.Context, tx *solana.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !tx.Message.IsSigner(w.PublicKey) {
		return ErrNotRequiredSigner
	}
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.PublicKey) {
			return &w.PrivateKey
		}
		return nil
	})
	return err
}

// GetATA возвращает адрес ассоциированного токен-аккаунта (ATA) для заданного токена (mint).
// Если адрес уже был вычислен ранее, возвращается значение из кеша.
func (w *Wallet) GetATA(mint solana.PublicKey) (solana.PublicKey, error) {
	if ata, ok := w.ataCache.Load(mint); ok {
		return ata.(solana.PublicKey), nil
	}
	ata, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	w.ataCache.Store(mint, ata)
	return ata, nil
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
