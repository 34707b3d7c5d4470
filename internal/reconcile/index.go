package reconcile

import (
	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/tokens"
)

// OldIndex is the reduction of an account's OLD history (OLD scale).
type OldIndex struct {
	SentAccountToSystem tokens.Amount
	SentSystemToAccount tokens.Amount

	// Balance is max(SentAccountToSystem − SentSystemToAccount, 0).
	Balance tokens.Amount

	// Underflow totals every clamp taken while reducing.
	Underflow tokens.Amount

	// SentTxID echoes the recorded payout id; Found reports whether the
	// history contains it.
	SentTxID *ledger.TxID
	Found    bool
}

// NewIndex is the reduction of an account's NEW history (NEW scale).
type NewIndex struct {
	SentAccountToSystem tokens.Amount
	SentSystemToAccount tokens.Amount

	IsSeeder bool

	SentTxID *ledger.TxID
	Found    bool
}

// IndexOld folds OLD transactions between acct and system.
//
// Deposits are fee-inclusive: each one credits amount − oldFee. A deposit
// smaller than the fee credits zero and counts its shortfall as underflow.
func IndexOld(txs []ledger.Transaction, acct, system account.Account, oldFee tokens.Amount, sent *ledger.TxID) OldIndex {
	idx := OldIndex{
		SentAccountToSystem: tokens.Zero(tokens.ScaleOld),
		SentSystemToAccount: tokens.Zero(tokens.ScaleOld),
		Underflow:           tokens.Zero(tokens.ScaleOld),
		SentTxID:            sent,
	}

	for _, tx := range txs {
		if sent != nil && tx.ID == *sent {
			idx.Found = true
		}
		switch direction(tx, acct, system) {
		case toSystem:
			credit, short := tx.Transfer.Amount.WithScale(tokens.ScaleOld).SubSaturating(oldFee)
			idx.SentAccountToSystem = idx.SentAccountToSystem.Add(credit)
			idx.Underflow = idx.Underflow.Add(short)
		case fromSystem:
			idx.SentSystemToAccount = idx.SentSystemToAccount.Add(tx.Transfer.Amount.WithScale(tokens.ScaleOld))
		}
	}

	balance, short := idx.SentAccountToSystem.SubSaturating(idx.SentSystemToAccount)
	idx.Balance = balance
	idx.Underflow = idx.Underflow.Add(short)
	return idx
}

// IndexNew folds NEW transactions between acct and system.
//
// Payouts are fee-exclusive: each one debits amount + newFee, the true cost
// to the system. The account is a seeder once its deposits reach seederMin.
func IndexNew(txs []ledger.Transaction, acct, system account.Account, newFee, seederMin tokens.Amount, sent *ledger.TxID) NewIndex {
	idx := NewIndex{
		SentAccountToSystem: tokens.Zero(tokens.ScaleNew),
		SentSystemToAccount: tokens.Zero(tokens.ScaleNew),
		SentTxID:            sent,
	}

	for _, tx := range txs {
		if sent != nil && tx.ID == *sent {
			idx.Found = true
		}
		switch direction(tx, acct, system) {
		case toSystem:
			idx.SentAccountToSystem = idx.SentAccountToSystem.Add(tx.Transfer.Amount.WithScale(tokens.ScaleNew))
		case fromSystem:
			idx.SentSystemToAccount = idx.SentSystemToAccount.Add(tx.Transfer.Amount.WithScale(tokens.ScaleNew).Add(newFee))
		}
	}

	idx.IsSeeder = idx.SentAccountToSystem.GreaterThanOrEqual(seederMin)
	return idx
}

type flow int

const (
	unrelated flow = iota
	toSystem
	fromSystem
)

// direction classifies a transaction relative to the (acct, system) pair.
// Only transfers count; mints, burns and approvals are unrelated.
func direction(tx ledger.Transaction, acct, system account.Account) flow {
	if tx.Kind != ledger.KindTransfer || tx.Transfer == nil {
		return unrelated
	}
	t := tx.Transfer
	switch {
	case account.Equal(t.From, acct) && account.Equal(t.To, system):
		return toSystem
	case account.Equal(t.From, system) && account.Equal(t.To, acct):
		return fromSystem
	default:
		return unrelated
	}
}
