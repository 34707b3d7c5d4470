package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/settings"
	"github.com/roach88/tokenswap/internal/swap"
	"github.com/roach88/tokenswap/internal/tokens"
)

type handler struct {
	svc    *swap.Service
	health HealthChecker
}

type convertRequest struct {
	// Owner defaults to the caller.
	Owner      *account.Principal `json:"owner"`
	Subaccount string             `json:"subaccount"`
	Amount     *string            `json:"amount"`
}

type burnRequest struct {
	Amount string `json:"amount" binding:"required"`
}

type txResponse struct {
	TxID ledger.TxID `json:"tx_id"`
}

func (h *handler) healthCheck(c *gin.Context) {
	if h.health != nil {
		if err := h.health.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "active": h.svc.ServiceIDs(c.Request.Context()).Active()})
}

func (h *handler) getAccount(c *gin.Context) {
	owner, err := account.ParsePrincipal(c.Param("owner"))
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, string(swap.ErrCodeInvalidAccount), err.Error())
		return
	}
	sub, err := account.ParseSubaccount(c.Query("subaccount"))
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, string(swap.ErrCodeInvalidAccount), err.Error())
		return
	}

	indexed, err := h.svc.GetAccount(c.Request.Context(), account.Account{Owner: owner, Subaccount: sub})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, indexed)
}

func (h *handler) convert(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithMessage(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	caller := CallerFrom(c)
	owner := caller
	if req.Owner != nil {
		owner = *req.Owner
	}
	sub, err := account.ParseSubaccount(req.Subaccount)
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, string(swap.ErrCodeInvalidAccount), err.Error())
		return
	}

	args := swap.ConvertArgs{
		Caller:  caller,
		Account: account.Account{Owner: owner, Subaccount: sub},
	}
	if req.Amount != nil {
		amount, err := tokens.Parse(tokens.ScaleNew, *req.Amount)
		if err != nil {
			abortWithMessage(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
		args.Amount = &amount
	}

	id, err := h.svc.ConvertAccount(c.Request.Context(), args)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txResponse{TxID: id})
}

func (h *handler) burn(c *gin.Context) {
	var req burnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithMessage(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	amount, err := tokens.Parse(tokens.ScaleOld, req.Amount)
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	id, err := h.svc.BurnOldTokens(c.Request.Context(), CallerFrom(c), amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txResponse{TxID: id})
}

func (h *handler) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Settings(c.Request.Context()))
}

// setSettings replaces the settings. Fields absent from the body take
// their default, not their current value.
func (h *handler) setSettings(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	cfg, err := settings.Parse(body, settings.FormatJSON)
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, string(swap.ErrCodeInvalidSettings), err.Error())
		return
	}

	ok, err := h.svc.SetSettings(c.Request.Context(), CallerFrom(c), cfg)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": ok})
}

func (h *handler) getServiceIDs(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ServiceIDs(c.Request.Context()))
}

func (h *handler) setServiceIDs(c *gin.Context) {
	var ids ledger.ServiceIDs
	if err := c.ShouldBindJSON(&ids); err != nil {
		abortWithMessage(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if err := h.svc.SetServiceIDs(c.Request.Context(), CallerFrom(c), ids); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ids)
}
