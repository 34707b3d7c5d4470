// Package ledger describes the external services the swap talks to: the OLD
// and NEW token ledgers and their transaction indexers.
//
// Only the interface boundary lives here. Transport implementations are in
// internal/remote, fakes in internal/testutil.
package ledger

import (
	"context"
	"time"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/tokens"
)

// TxID is the ordinal index of a transaction on its ledger.
type TxID uint64

// Kind is the operation a transaction performed.
type Kind string

const (
	KindTransfer Kind = "transfer"
	KindMint     Kind = "mint"
	KindBurn     Kind = "burn"
	KindApprove  Kind = "approve"
)

// Transfer is the payload of a KindTransfer transaction.
type Transfer struct {
	From   account.Account `json:"from"`
	To     account.Account `json:"to"`
	Amount tokens.Amount   `json:"amount"`
	Fee    *tokens.Amount  `json:"fee,omitempty"`
	Memo   []byte          `json:"memo,omitempty"`
}

// Transaction is one entry of an indexer's account history.
// Transfer is set only for KindTransfer.
type Transaction struct {
	ID        TxID      `json:"id"`
	Kind      Kind      `json:"kind"`
	Transfer  *Transfer `json:"transfer,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TransferArgs is the request of an outbound transfer.
type TransferArgs struct {
	FromSubaccount []byte          `json:"from_subaccount,omitempty"`
	To             account.Account `json:"to"`
	Amount         tokens.Amount   `json:"amount"`
	Fee            *tokens.Amount  `json:"fee,omitempty"`
	Memo           []byte          `json:"memo,omitempty"`
	CreatedAt      *time.Time      `json:"created_at_time,omitempty"`
}

// BurnArgs is the request of a burn of the caller's holdings.
type BurnArgs struct {
	FromSubaccount []byte        `json:"from_subaccount,omitempty"`
	Amount         tokens.Amount `json:"amount"`
	Memo           []byte        `json:"memo,omitempty"`
	CreatedAt      *time.Time    `json:"created_at_time,omitempty"`
}

// TransactionsRequest pages through an account's history on the NEW
// indexer, newest first. A nil Start begins at the most recent transaction.
type TransactionsRequest struct {
	Account    account.Account `json:"account"`
	MaxResults uint64          `json:"max_results"`
	Start      *TxID           `json:"start,omitempty"`
}

// TransactionsPage is one page of NEW indexer history.
type TransactionsPage struct {
	Transactions []Transaction `json:"transactions"`

	// OldestTxID is the oldest transaction of the account, if any.
	OldestTxID *TxID `json:"oldest_tx_id,omitempty"`
}

// OldLedger is the ledger of the asset being retired.
type OldLedger interface {
	Transfer(ctx context.Context, args TransferArgs) (TxID, error)
	Burn(ctx context.Context, args BurnArgs) (TxID, error)
}

// NewLedger is the ledger of the successor asset.
type NewLedger interface {
	Transfer(ctx context.Context, args TransferArgs) (TxID, error)
}

// OldIndexer serves OLD ledger history by owner.
type OldIndexer interface {
	GetAccountTransactions(ctx context.Context, owner account.Principal) ([]Transaction, error)

	// SynchArchiveFull asks the indexer to catch up with the ledger archive.
	// It is best effort; callers ignore its failure.
	SynchArchiveFull(ctx context.Context, ledgerID account.Principal) error
}

// NewIndexer serves NEW ledger history by account.
type NewIndexer interface {
	GetAccountTransactions(ctx context.Context, req TransactionsRequest) (*TransactionsPage, error)
}
