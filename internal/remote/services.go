package remote

import (
	"context"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/tokens"
)

// Request methods.
const (
	MethodTransfer         = "transfer"
	MethodBurn             = "burn"
	MethodTransactions     = "get_account_transactions"
	MethodSynchArchiveFull = "synch_archive_full"
)

// OldLedger is the OLD ledger over NATS.
type OldLedger struct {
	c  *Client
	id account.Principal
}

// Transfer implements ledger.OldLedger.
func (l *OldLedger) Transfer(ctx context.Context, args ledger.TransferArgs) (ledger.TxID, error) {
	var id ledger.TxID
	err := l.c.call(ctx, l.id, MethodTransfer, args, &id)
	return id, tagRejection(err, tokens.ScaleOld)
}

// Burn implements ledger.OldLedger.
func (l *OldLedger) Burn(ctx context.Context, args ledger.BurnArgs) (ledger.TxID, error) {
	var id ledger.TxID
	err := l.c.call(ctx, l.id, MethodBurn, args, &id)
	return id, tagRejection(err, tokens.ScaleOld)
}

// NewLedger is the NEW ledger over NATS.
type NewLedger struct {
	c  *Client
	id account.Principal
}

// Transfer implements ledger.NewLedger.
func (l *NewLedger) Transfer(ctx context.Context, args ledger.TransferArgs) (ledger.TxID, error) {
	var id ledger.TxID
	err := l.c.call(ctx, l.id, MethodTransfer, args, &id)
	return id, tagRejection(err, tokens.ScaleNew)
}

// OldIndexer is the OLD indexer over NATS.
type OldIndexer struct {
	c  *Client
	id account.Principal
}

type ownerRequest struct {
	Owner account.Principal `json:"owner"`
}

type syncRequest struct {
	LedgerID account.Principal `json:"ledger_id"`
}

// GetAccountTransactions implements ledger.OldIndexer.
func (x *OldIndexer) GetAccountTransactions(ctx context.Context, owner account.Principal) ([]ledger.Transaction, error) {
	var txs []ledger.Transaction
	if err := x.c.call(ctx, x.id, MethodTransactions, ownerRequest{Owner: owner}, &txs); err != nil {
		return nil, err
	}
	tagTransactions(txs, tokens.ScaleOld)
	return txs, nil
}

// SynchArchiveFull implements ledger.OldIndexer.
func (x *OldIndexer) SynchArchiveFull(ctx context.Context, ledgerID account.Principal) error {
	return x.c.call(ctx, x.id, MethodSynchArchiveFull, syncRequest{LedgerID: ledgerID}, nil)
}

// NewIndexer is the NEW indexer over NATS.
type NewIndexer struct {
	c  *Client
	id account.Principal
}

// GetAccountTransactions implements ledger.NewIndexer.
func (x *NewIndexer) GetAccountTransactions(ctx context.Context, req ledger.TransactionsRequest) (*ledger.TransactionsPage, error) {
	var page ledger.TransactionsPage
	if err := x.c.call(ctx, x.id, MethodTransactions, req, &page); err != nil {
		return nil, err
	}
	tagTransactions(page.Transactions, tokens.ScaleNew)
	return &page, nil
}

// tagTransactions sets the ledger's scale on decoded amounts.
func tagTransactions(txs []ledger.Transaction, scale tokens.Scale) {
	for i := range txs {
		t := txs[i].Transfer
		if t == nil {
			continue
		}
		t.Amount = t.Amount.WithScale(scale)
		if t.Fee != nil {
			fee := t.Fee.WithScale(scale)
			t.Fee = &fee
		}
	}
}

func tagRejection(err error, scale tokens.Scale) error {
	te, ok := ledger.AsTransferError(err)
	if !ok {
		return err
	}
	for _, a := range []*tokens.Amount{te.ExpectedFee, te.MinBurnAmount, te.Balance} {
		if a != nil {
			*a = a.WithScale(scale)
		}
	}
	return te
}
