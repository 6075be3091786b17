// internal/types/errors.go
package types

import (
	"errors"
	"fmt"
)

// ErrorKind distinguishes failures so callers can offer a specific remediation.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"

	// Venue-level kinds, absorbed by the aggregator.
	KindUnavailable   ErrorKind = "venue_unavailable"
	KindNoRoute       ErrorKind = "no_route"
	KindInvalidParams ErrorKind = "invalid_params"

	KindNoLiquidity   ErrorKind = "no_liquidity"
	KindPriceImpact   ErrorKind = "price_impact_exceeded"
	KindBuild         ErrorKind = "build"
	KindSigning       ErrorKind = "signing_rejected"
	KindSubmission    ErrorKind = "submission"
	KindConfirmation  ErrorKind = "confirmation_timeout"
	KindExecutionFail ErrorKind = "execution_failed"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrUnavailable   = &Error{Kind: KindUnavailable}
	ErrNoRoute       = &Error{Kind: KindNoRoute}
	ErrInvalidParams = &Error{Kind: KindInvalidParams}
	ErrNoLiquidity   = &Error{Kind: KindNoLiquidity}
	ErrPriceImpact   = &Error{Kind: KindPriceImpact}
	ErrBuild         = &Error{Kind: KindBuild}
	ErrSigning       = &Error{Kind: KindSigning}
	ErrSubmission    = &Error{Kind: KindSubmission}
	ErrConfirmation  = &Error{Kind: KindConfirmation}
	ErrExecution     = &Error{Kind: KindExecutionFail}
)

// Error wraps an underlying error with its kind and the failing operation.
type Error struct {
	Kind  ErrorKind
	Op    string
	Venue Venue
	Err   error
}

// NewError creates a kinded error for op.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewVenueError creates a kinded error attributed to a venue.
func NewVenueError(venue Venue, kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Venue: venue, Err: err}
}

// Errorf is a shorthand for NewError with a formatted message.
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Venue != "" {
		msg = string(e.Venue) + ": " + msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the outermost *Error in the chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Remediation is the user-facing next step for a failure kind.
type Remediation string

const (
	RemediationNone            Remediation = ""
	RemediationReenterAmount   Remediation = "re-enter amount"
	RemediationReconnectWallet Remediation = "reconnect wallet"
	RemediationRetryLater      Remediation = "try again later"
	RemediationRefreshQuote    Remediation = "refresh quote"
	RemediationCheckChainState Remediation = "check transaction status before retrying"
)

// RemediationFor maps an error to the action a caller should present.
func RemediationFor(err error) Remediation {
	switch KindOf(err) {
	case KindValidation, KindInvalidParams:
		return RemediationReenterAmount
	case KindSigning:
		return RemediationReconnectWallet
	case KindUnavailable, KindNoRoute, KindNoLiquidity, KindSubmission:
		return RemediationRetryLater
	case KindPriceImpact, KindBuild, KindExecutionFail:
		return RemediationRefreshQuote
	case KindConfirmation:
		return RemediationCheckChainState
	default:
		return RemediationNone
	}
}
