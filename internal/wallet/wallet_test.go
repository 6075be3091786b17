package wallet

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTx(t *testing.T, payer solana.PublicKey) *solana.Transaction {
	t.Helper()
	ix := system.NewTransferInstruction(1, payer, solana.NewWallet().PublicKey()).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{9}, solana.TransactionPayer(payer))
	require.NoError(t, err)
	return tx
}

func TestNewWallet(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	w, err := NewWallet(base58.Encode(key))
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), w.PublicKey)

	_, err = NewWallet(base58.Encode([]byte{1, 2, 3}))
	assert.Error(t, err)
}

func TestWallet_Sign(t *testing.T) {
	w := FromPrivateKey(solana.NewWallet().PrivateKey)
	tx := newTestTx(t, w.PublicKey)

	require.NoError(t, w.Sign(context.Background(), tx))
	require.Len(t, tx.Signatures, 1)
	assert.NoError(t, tx.VerifySignatures())
}

func TestWallet_SignRejectsForeignTransaction(t *testing.T) {
	w := FromPrivateKey(solana.NewWallet().PrivateKey)
	tx := newTestTx(t, solana.NewWallet().PublicKey())

	assert.ErrorIs(t, w.Sign(context.Background(), tx), ErrNotRequiredSigner)
}

func TestWallet_GetATACached(t *testing.T) {
	w := FromPrivateKey(solana.NewWallet().PrivateKey)
	first, err := w.GetATA(solana.SolMint)
	require.NoError(t, err)
	second, err := w.GetATA(solana.SolMint)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	expected, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, solana.SolMint)
	require.NoError(t, err)
	assert.Equal(t, expected, first)
}

func TestLoadWallets(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	path := filepath.Join(t.TempDir(), "wallets.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,private_key\nmain,"+base58.Encode(key)+"\n"), 0o600))

	wallets, err := LoadWallets(path)
	require.NoError(t, err)
	require.Contains(t, wallets, "main")
	assert.Equal(t, key.PublicKey(), wallets["main"].PublicKey)
}

func TestLoadWalletsRejectsBadFiles(t *testing.T) {
	key := base58.Encode(solana.NewWallet().PrivateKey)
	cases := map[string]string{
		"empty":     "name,private_key\n",
		"duplicate": "a," + key + "\na," + key + "\n",
		"bad key":   "a,not-a-key\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "wallets.csv")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := LoadWallets(path)
			assert.Error(t, err)
		})
	}

	path := filepath.Join(t.TempDir(), "wallets.csv")
	require.NoError(t, os.WriteFile(path, []byte("# trading keys\nalt, "+key+"\n"), 0o600))
	wallets, err := LoadWallets(path)
	require.NoError(t, err)
	assert.Contains(t, wallets, "alt")
}
