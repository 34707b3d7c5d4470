package ledger

import (
	"errors"
	"fmt"

	"github.com/roach88/tokenswap/internal/tokens"
)

// TransferErrorCode names a ledger-side rejection.
type TransferErrorCode string

const (
	ErrCodeBadFee                 TransferErrorCode = "BadFee"
	ErrCodeBadBurn                TransferErrorCode = "BadBurn"
	ErrCodeInsufficientFunds      TransferErrorCode = "InsufficientFunds"
	ErrCodeTooOld                 TransferErrorCode = "TooOld"
	ErrCodeCreatedInFuture        TransferErrorCode = "CreatedInFuture"
	ErrCodeDuplicate              TransferErrorCode = "Duplicate"
	ErrCodeTemporarilyUnavailable TransferErrorCode = "TemporarilyUnavailable"
	ErrCodeGenericError           TransferErrorCode = "GenericError"
)

// TransferError is a rejection reported by a ledger for a transfer or burn.
// The swap hands it to its caller unchanged.
type TransferError struct {
	Code TransferErrorCode `json:"code"`

	// ExpectedFee is set for BadFee.
	ExpectedFee *tokens.Amount `json:"expected_fee,omitempty"`

	// MinBurnAmount is set for BadBurn.
	MinBurnAmount *tokens.Amount `json:"min_burn_amount,omitempty"`

	// Balance is set for InsufficientFunds.
	Balance *tokens.Amount `json:"balance,omitempty"`

	// DuplicateOf is set for Duplicate.
	DuplicateOf *TxID `json:"duplicate_of,omitempty"`

	// ErrorCode and Message are set for GenericError.
	ErrorCode uint64 `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (e *TransferError) Error() string {
	switch e.Code {
	case ErrCodeBadFee:
		if e.ExpectedFee != nil {
			return fmt.Sprintf("ledger rejected transfer: %s (expected fee %s)", e.Code, e.ExpectedFee)
		}
	case ErrCodeInsufficientFunds:
		if e.Balance != nil {
			return fmt.Sprintf("ledger rejected transfer: %s (balance %s)", e.Code, e.Balance)
		}
	case ErrCodeDuplicate:
		if e.DuplicateOf != nil {
			return fmt.Sprintf("ledger rejected transfer: %s of %d", e.Code, *e.DuplicateOf)
		}
	case ErrCodeGenericError:
		return fmt.Sprintf("ledger rejected transfer: %s %d: %s", e.Code, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("ledger rejected transfer: %s", e.Code)
}

// AsTransferError extracts a ledger rejection from err.
func AsTransferError(err error) (*TransferError, bool) {
	var te *TransferError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
