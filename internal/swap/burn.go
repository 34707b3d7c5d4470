package swap

import (
	"context"
	"log/slog"

	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/tokens"
)

// BurnMemo tags every burn on the OLD ledger.
var BurnMemo = []byte("tokenswap:burn")

// BurnOldTokens burns amount of the OLD tokens the swap holds. Privileged.
//
// The cooldown is keyed by the caller, so a repeated administrative request
// cannot burn twice within the window. Burning does not change any
// account's convertible balance.
func (s *Service) BurnOldTokens(ctx context.Context, caller Caller, amount tokens.Amount) (ledger.TxID, error) {
	token := s.tokens.Generate()
	logger := slog.With("request", token, "op", "burn", "caller", caller.String())

	if !hasScale(amount, tokens.ScaleOld) {
		return 0, withToken(NewGenericError(GenericInternal, errScale(tokens.ScaleOld, amount.Scale())), token)
	}

	s.mu.Lock()
	cfg, ids := s.settings.Clone(), s.ids
	if !ids.Active() {
		s.mu.Unlock()
		return 0, withToken(NewNotActiveError(), token)
	}
	if !s.privilegedLocked(caller) {
		s.mu.Unlock()
		return 0, withToken(newError(ErrCodeNotPrivileged, "caller may not burn"), token)
	}
	if st, cooling := s.guard.OnCooldown(caller, cfg.CooldownDuration); cooling {
		s.mu.Unlock()
		return 0, withToken(NewOnCooldownError(st.Since, st.Remaining), token)
	}
	if !cfg.AllowBurns {
		s.mu.Unlock()
		return 0, withToken(newError(ErrCodeBurnsNotAllowed, "burns are disabled"), token)
	}
	s.guard.Start(caller, cfg.CooldownDuration)
	s.mu.Unlock()

	now := s.clock.Now()
	id, err := s.connector.Connect(ids).OldLedger.Burn(ctx, ledger.BurnArgs{
		Amount:    amount.WithScale(tokens.ScaleOld),
		Memo:      BurnMemo,
		CreatedAt: &now,
	})
	if err != nil {
		if te, ok := ledger.AsTransferError(err); ok {
			logger.Warn("old ledger rejected burn", "code", te.Code)
			return 0, te
		}
		logger.Warn("burn failed", "error", err)
		return 0, withToken(NewGenericError(GenericLedger, err), token)
	}
	logger.Info("burned", "tx_id", uint64(id), "amount", amount.String())
	return id, nil
}
