package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/swap"
	"github.com/roach88/tokenswap/internal/tokens"
)

// errorBody is the JSON error shape of every endpoint.
type errorBody struct {
	Code         string                 `json:"code"`
	Message      string                 `json:"message"`
	RequestToken string                 `json:"request_token,omitempty"`
	Since        *time.Time             `json:"since,omitempty"`
	Remaining    string                 `json:"remaining,omitempty"`
	TxID         *ledger.TxID           `json:"tx_id,omitempty"`
	Balance      *tokens.Amount         `json:"balance,omitempty"`
	Underflow    *swap.UnderflowDetails `json:"underflow,omitempty"`
	GenericCode  swap.GenericCode       `json:"generic_code,omitempty"`
	LedgerError  *ledger.TransferError  `json:"ledger_error,omitempty"`
}

// statusOf maps a workflow error code to an HTTP status.
func statusOf(code swap.ErrorCode) int {
	switch code {
	case swap.ErrCodeInvalidAccount, swap.ErrCodeInvalidSettings:
		return http.StatusBadRequest
	case swap.ErrCodeNotPrivileged:
		return http.StatusForbidden
	case swap.ErrCodeOnCooldown, swap.ErrCodeStaleIndexer:
		return http.StatusConflict
	case swap.ErrCodeConversionsNotAllowed, swap.ErrCodeBurnsNotAllowed,
		swap.ErrCodeIsSeeder, swap.ErrCodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case swap.ErrCodeNotActive:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err and aborts the request.
func writeError(c *gin.Context, err error) {
	if te, ok := ledger.AsTransferError(err); ok {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": errorBody{
			Code:        "LEDGER_REJECTED",
			Message:     te.Error(),
			LedgerError: te,
		}})
		return
	}

	var se *swap.Error
	if !errors.As(err, &se) {
		abortWithMessage(c, http.StatusInternalServerError, string(swap.ErrCodeGenericError), err.Error())
		return
	}

	body := errorBody{
		Code:         string(se.Code),
		Message:      se.Message,
		RequestToken: se.RequestToken,
		Since:        se.Since,
		TxID:         se.TxID,
		Balance:      se.Balance,
		Underflow:    se.Underflow,
		GenericCode:  se.GenericCode,
	}
	if se.Code == swap.ErrCodeOnCooldown {
		body.Remaining = se.Remaining.String()
	}
	c.AbortWithStatusJSON(statusOf(se.Code), gin.H{"error": body})
}

func abortWithMessage(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Code: code, Message: msg}})
}
