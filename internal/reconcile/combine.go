package reconcile

import (
	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/tokens"
)

// IndexedAccount is the reconciled view of one account.
type IndexedAccount struct {
	Account account.Account `json:"account"`

	// Total is the convertible balance (NEW scale).
	Total tokens.Amount `json:"total"`

	// OldBalanceNewScale is the OLD balance truncated to NEW units.
	OldBalanceNewScale tokens.Amount `json:"old_balance_new_scale"`

	OldUnderflow tokens.Amount `json:"old_underflow"`
	NewUnderflow tokens.Amount `json:"new_underflow"`

	OldSentAccountToSystem tokens.Amount `json:"old_sent_acc_to_swap"`
	OldSentSystemToAccount tokens.Amount `json:"old_sent_swap_to_acc"`
	NewSentAccountToSystem tokens.Amount `json:"new_sent_acc_to_swap"`
	NewSentSystemToAccount tokens.Amount `json:"new_sent_swap_to_acc"`

	IsSeeder bool `json:"is_seeder"`

	OldSentTxID *ledger.TxID `json:"old_sent_tx_id,omitempty"`
	OldFound    bool         `json:"old_sent_found"`
	NewSentTxID *ledger.TxID `json:"new_sent_tx_id,omitempty"`
	NewFound    bool         `json:"new_sent_found"`
}

// Combine merges both reductions into one NEW-scale balance:
//
//	total = floor(old.Balance / scaleFactor) + new.SentAccountToSystem − new.SentSystemToAccount
//
// clamped at zero with the shortfall in NewUnderflow.
func Combine(acct account.Account, old OldIndex, nw NewIndex, scaleFactor uint64) IndexedAccount {
	oldNew := old.Balance.ToNewScale(scaleFactor)
	total, short := oldNew.Add(nw.SentAccountToSystem).SubSaturating(nw.SentSystemToAccount)

	return IndexedAccount{
		Account:                acct,
		Total:                  total,
		OldBalanceNewScale:     oldNew,
		OldUnderflow:           old.Underflow,
		NewUnderflow:           short,
		OldSentAccountToSystem: old.SentAccountToSystem,
		OldSentSystemToAccount: old.SentSystemToAccount,
		NewSentAccountToSystem: nw.SentAccountToSystem,
		NewSentSystemToAccount: nw.SentSystemToAccount,
		IsSeeder:               nw.IsSeeder,
		OldSentTxID:            old.SentTxID,
		OldFound:               old.Found,
		NewSentTxID:            nw.SentTxID,
		NewFound:               nw.Found,
	}
}

// Stale returns the recorded payout id an indexer has not caught up with,
// checking OLD before NEW.
func (a IndexedAccount) Stale() (ledger.TxID, bool) {
	if a.OldSentTxID != nil && !a.OldFound {
		return *a.OldSentTxID, true
	}
	if a.NewSentTxID != nil && !a.NewFound {
		return *a.NewSentTxID, true
	}
	return 0, false
}

// Underflowed reports whether either underflow figure is positive.
func (a IndexedAccount) Underflowed() bool {
	return a.OldUnderflow.IsPositive() || a.NewUnderflow.IsPositive()
}
