package swap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/reconcile"
	"github.com/roach88/tokenswap/internal/tokens"
)

// ConvertMemo tags every conversion payout on the NEW ledger.
var ConvertMemo = []byte("tokenswap:convert")

// ConvertArgs is a conversion request.
type ConvertArgs struct {
	Caller  Caller
	Account account.Account

	// Amount is the NEW amount to pay out. Nil pays out the whole balance
	// minus the fee. Only the owner or a privileged caller may set it; anyone
	// may trigger a whole-balance payout, which always goes to the owner.
	Amount *tokens.Amount
}

// GetAccount reconciles acct without side effects: no cooldown, no payout.
func (s *Service) GetAccount(ctx context.Context, acct account.Account) (*reconcile.IndexedAccount, error) {
	token := s.tokens.Generate()
	logger := slog.With("request", token, "op", "get_account", "account", acct.String())

	s.mu.Lock()
	cfg, ids := s.settings.Clone(), s.ids
	s.mu.Unlock()

	if !ids.Active() {
		return nil, withToken(NewNotActiveError(), token)
	}
	if err := account.Validate(acct); err != nil {
		return nil, withToken(NewInvalidAccountError(err), token)
	}

	indexed, err := s.engine.Account(ctx, reconcile.Input{
		Account:  acct,
		Self:     s.self,
		Services: s.connector.Connect(ids),
		IDs:      ids,
		Settings: cfg,
		Logger:   logger,
	})
	if err != nil {
		logger.Warn("reconciliation failed", "error", err)
		return nil, withToken(NewGenericError(GenericIndexer, err), token)
	}
	return indexed, nil
}

// ConvertAccount pays out args.Account's convertible balance in NEW tokens.
//
// Checks run in order and the first failure is returned: not active,
// invalid account, an explicit amount from someone other than the owner or
// a privileged caller, on cooldown, conversions disabled. Then the cooldown
// starts and stays set whatever happens next: reconciliation, stale
// indexer, seeder, underflow, insufficient funds, the transfer itself.
//
// A ledger rejection is returned as the *ledger.TransferError it produced.
// On success the payout id is recorded for staleness checks.
func (s *Service) ConvertAccount(ctx context.Context, args ConvertArgs) (ledger.TxID, error) {
	token := s.tokens.Generate()
	owner := args.Account.Owner
	logger := slog.With("request", token, "op", "convert", "account", args.Account.String(), "caller", args.Caller.String())

	if args.Amount != nil && !hasScale(*args.Amount, tokens.ScaleNew) {
		return 0, withToken(NewGenericError(GenericInternal, errScale(tokens.ScaleNew, args.Amount.Scale())), token)
	}

	s.mu.Lock()
	cfg, ids := s.settings.Clone(), s.ids
	if !ids.Active() {
		s.mu.Unlock()
		return 0, withToken(NewNotActiveError(), token)
	}
	if err := account.Validate(args.Account); err != nil {
		s.mu.Unlock()
		return 0, withToken(NewInvalidAccountError(err), token)
	}
	if args.Amount != nil && args.Caller != owner && !s.privilegedLocked(args.Caller) {
		s.mu.Unlock()
		logger.Info("conversion rejected: amount chosen by a third party")
		return 0, withToken(newError(ErrCodeNotPrivileged, "only the owner or a privileged caller may choose the amount"), token)
	}
	if st, cooling := s.guard.OnCooldown(owner, cfg.CooldownDuration); cooling {
		s.mu.Unlock()
		logger.Info("conversion rejected: on cooldown", "remaining", st.Remaining)
		return 0, withToken(NewOnCooldownError(st.Since, st.Remaining), token)
	}
	if !cfg.AllowConversions {
		s.mu.Unlock()
		return 0, withToken(newError(ErrCodeConversionsNotAllowed, "conversions are disabled"), token)
	}
	s.guard.Start(owner, cfg.CooldownDuration)
	s.mu.Unlock()

	services := s.connector.Connect(ids)
	indexed, err := s.engine.Account(ctx, reconcile.Input{
		Account:  args.Account,
		Self:     s.self,
		Services: services,
		IDs:      ids,
		Settings: cfg,
		Logger:   logger,
	})
	if err != nil {
		logger.Warn("reconciliation failed", "error", err)
		return 0, withToken(NewGenericError(GenericIndexer, err), token)
	}

	if id, stale := indexed.Stale(); stale {
		logger.Info("conversion rejected: stale indexer", "tx_id", uint64(id))
		return 0, withToken(NewStaleIndexerError(id), token)
	}
	if indexed.IsSeeder && !cfg.AllowSeederConversions {
		logger.Info("conversion rejected: seeder")
		return 0, withToken(newError(ErrCodeIsSeeder, "seeder accounts may not convert"), token)
	}
	// Underflow clamps the total to zero, so it must be told apart from an
	// empty balance before the funds check.
	if indexed.Underflowed() {
		logger.Error("index underflow",
			"old_underflow", indexed.OldUnderflow.String(),
			"new_underflow", indexed.NewUnderflow.String(),
		)
		return 0, withToken(NewIndexUnderflowError(indexed), token)
	}
	if !indexed.Total.IsPositive() {
		logger.Info("conversion rejected: nothing to convert")
		return 0, withToken(NewInsufficientFundsError(tokens.Zero(tokens.ScaleNew)), token)
	}

	amount, ok := SelectAmount(indexed.Total, cfg.NewFee, args.Amount)
	if !ok {
		logger.Info("conversion rejected: insufficient funds", "balance", indexed.Total.String())
		return 0, withToken(NewInsufficientFundsError(indexed.Total), token)
	}

	now := s.clock.Now()
	fee := cfg.NewFee
	id, err := services.NewLedger.Transfer(ctx, ledger.TransferArgs{
		To:        args.Account,
		Amount:    amount,
		Fee:       &fee,
		Memo:      ConvertMemo,
		CreatedAt: &now,
	})
	if err != nil {
		if te, ok := ledger.AsTransferError(err); ok {
			logger.Warn("new ledger rejected payout", "code", te.Code)
			return 0, te
		}
		logger.Warn("payout failed", "error", err)
		return 0, withToken(NewGenericError(GenericLedger, err), token)
	}

	// The payout happened; a registry failure only weakens the next
	// staleness check and must not be reported as a failed conversion.
	if err := s.registry.Record(ctx, tokens.AssetNew, args.Account, id); err != nil {
		logger.Error("payout not recorded", "tx_id", uint64(id), "error", err)
	}
	logger.Info("converted", "tx_id", uint64(id), "amount", amount.String(), "balance", indexed.Total.String())
	return id, nil
}

// SelectAmount picks the payout for a balance.
//
// With no request, or a request for the whole balance, the fee comes out
// of the balance. It fails when the payout would be zero or balance cannot
// cover payout plus fee.
func SelectAmount(balance, fee tokens.Amount, requested *tokens.Amount) (tokens.Amount, bool) {
	var amount tokens.Amount
	if requested == nil || requested.WithScale(tokens.ScaleNew).Equal(balance) {
		diff, ok := balance.Sub(fee)
		if !ok {
			return tokens.Amount{}, false
		}
		amount = diff
	} else {
		amount = requested.WithScale(tokens.ScaleNew)
	}
	if !amount.IsPositive() {
		return tokens.Amount{}, false
	}
	if balance.LessThan(amount.Add(fee)) {
		return tokens.Amount{}, false
	}
	return amount, true
}

// hasScale reports whether a is tagged with scale or untagged.
func hasScale(a tokens.Amount, scale tokens.Scale) bool {
	return a.Scale() == 0 || a.Scale() == scale
}

func errScale(want, got tokens.Scale) error {
	return fmt.Errorf("amount must be a %s amount, got %s", want, got)
}
