// internal/blockchain/blockchain.go
package blockchain

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrTransactionFailed   = errors.New("transaction failed on-chain")
)

// SubmitError описывает отказ RPC при отправке транзакции.
// Transient ошибки можно безопасно повторить: транзакция не попала в сеть.
type SubmitError struct {
	Err       error
	Transient bool
	Logs      []string
}

func (e *SubmitError) Error() string {
	if e.Transient {
		return fmt.Sprintf("submit (transient): %v", e.Err)
	}
	return fmt.Sprintf("submit: %v", e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// TxError is an on-chain execution failure reported during confirmation.
type TxError struct {
	Signature string
	Detail    any
}

func (e *TxError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Detail)
}

func (e *TxError) Unwrap() error {
	return ErrTransactionFailed
}
