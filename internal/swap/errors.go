package swap

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/reconcile"
	"github.com/roach88/tokenswap/internal/tokens"
)

// Error is a workflow rejection or failure.
//
// Precondition errors (NotActive, InvalidAccount, OnCooldown, the feature
// flags, NotPrivileged) have no side effects. The rest are raised after the
// cooldown started, and the cooldown stays in place.
//
// Ledger rejections are not Errors: they come back as the
// *ledger.TransferError the ledger produced.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// RequestToken identifies the request that failed.
	RequestToken string `json:"request_token,omitempty"`

	// Since and Remaining are set for OnCooldown.
	Since     *time.Time    `json:"since,omitempty"`
	Remaining time.Duration `json:"remaining,omitempty"`

	// TxID is set for StaleIndexer: the payout the indexer has not caught up with.
	TxID *ledger.TxID `json:"tx_id,omitempty"`

	// Balance is set for InsufficientFunds (NEW scale).
	Balance *tokens.Amount `json:"balance,omitempty"`

	// Underflow is set for IndexUnderflow.
	Underflow *UnderflowDetails `json:"underflow,omitempty"`

	// GenericCode classifies GenericError.
	GenericCode GenericCode `json:"generic_code,omitempty"`

	// Err is the underlying cause of a GenericError.
	Err error `json:"-"`
}

// ErrorCode categorizes workflow errors.
type ErrorCode string

const (
	ErrCodeNotActive             ErrorCode = "NOT_ACTIVE"
	ErrCodeInvalidAccount        ErrorCode = "INVALID_ACCOUNT"
	ErrCodeOnCooldown            ErrorCode = "ON_COOLDOWN"
	ErrCodeConversionsNotAllowed ErrorCode = "CONVERSIONS_NOT_ALLOWED"
	ErrCodeBurnsNotAllowed       ErrorCode = "BURNS_NOT_ALLOWED"
	ErrCodeNotPrivileged         ErrorCode = "NOT_PRIVILEGED"
	ErrCodeInvalidSettings       ErrorCode = "INVALID_SETTINGS"
	ErrCodeStaleIndexer          ErrorCode = "STALE_INDEXER"
	ErrCodeIsSeeder              ErrorCode = "IS_SEEDER"
	ErrCodeInsufficientFunds     ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeIndexUnderflow        ErrorCode = "INDEX_UNDERFLOW"
	ErrCodeGenericError          ErrorCode = "GENERIC_ERROR"
)

// GenericCode says which collaborator a GenericError came from.
type GenericCode uint64

const (
	GenericIndexer  GenericCode = 1
	GenericLedger   GenericCode = 2
	GenericStorage  GenericCode = 3
	GenericInternal GenericCode = 4
)

// UnderflowDetails carries every directional sum and both underflow figures.
type UnderflowDetails struct {
	OldSentAccountToSystem tokens.Amount `json:"old_sent_acc_to_swap"`
	OldSentSystemToAccount tokens.Amount `json:"old_sent_swap_to_acc"`
	NewSentAccountToSystem tokens.Amount `json:"new_sent_acc_to_swap"`
	NewSentSystemToAccount tokens.Amount `json:"new_sent_swap_to_acc"`
	OldUnderflow           tokens.Amount `json:"old_underflow"`
	NewUnderflow           tokens.Amount `json:"new_underflow"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.RequestToken != "" {
		return fmt.Sprintf("%s: %s (request=%s)", e.Code, e.Message, e.RequestToken)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause of a GenericError.
func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the ErrorCode of err, or "" when err is not an *Error.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsOnCooldown returns true if err is an OnCooldown error.
// Uses errors.As to handle wrapped errors.
func IsOnCooldown(err error) bool { return CodeOf(err) == ErrCodeOnCooldown }

// IsStaleIndexer returns true if err is a StaleIndexer error.
func IsStaleIndexer(err error) bool { return CodeOf(err) == ErrCodeStaleIndexer }

// IsIndexUnderflow returns true if err is an IndexUnderflow error.
func IsIndexUnderflow(err error) bool { return CodeOf(err) == ErrCodeIndexUnderflow }

// IsNotPrivileged returns true if err is a NotPrivileged error.
func IsNotPrivileged(err error) bool { return CodeOf(err) == ErrCodeNotPrivileged }

func newError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// NewNotActiveError reports that a service identity is still a placeholder.
func NewNotActiveError() *Error {
	return newError(ErrCodeNotActive, "external service identities are not configured")
}

// NewInvalidAccountError wraps an account validation failure.
func NewInvalidAccountError(cause error) *Error {
	e := newError(ErrCodeInvalidAccount, cause.Error())
	e.Err = cause
	return e
}

// NewOnCooldownError reports an active cooldown.
func NewOnCooldownError(since time.Time, remaining time.Duration) *Error {
	e := newError(ErrCodeOnCooldown, fmt.Sprintf("on cooldown for another %s", remaining))
	e.Since = &since
	e.Remaining = remaining
	return e
}

// NewStaleIndexerError reports an indexer that has not seen payout id yet.
func NewStaleIndexerError(id ledger.TxID) *Error {
	e := newError(ErrCodeStaleIndexer, fmt.Sprintf("indexer has not caught up with transaction %d", id))
	e.TxID = &id
	return e
}

// NewInsufficientFundsError reports a balance too small for the request.
func NewInsufficientFundsError(balance tokens.Amount) *Error {
	e := newError(ErrCodeInsufficientFunds, fmt.Sprintf("convertible balance %s is insufficient", balance))
	e.Balance = &balance
	return e
}

// NewIndexUnderflowError reports directional sums that imply a negative balance.
func NewIndexUnderflowError(acct *reconcile.IndexedAccount) *Error {
	e := newError(ErrCodeIndexUnderflow, fmt.Sprintf(
		"history implies a negative balance (old underflow %s, new underflow %s)",
		acct.OldUnderflow, acct.NewUnderflow))
	e.Underflow = &UnderflowDetails{
		OldSentAccountToSystem: acct.OldSentAccountToSystem,
		OldSentSystemToAccount: acct.OldSentSystemToAccount,
		NewSentAccountToSystem: acct.NewSentAccountToSystem,
		NewSentSystemToAccount: acct.NewSentSystemToAccount,
		OldUnderflow:           acct.OldUnderflow,
		NewUnderflow:           acct.NewUnderflow,
	}
	return e
}

// NewGenericError wraps a collaborator failure.
func NewGenericError(code GenericCode, cause error) *Error {
	e := newError(ErrCodeGenericError, cause.Error())
	e.GenericCode = code
	e.Err = cause
	return e
}
