package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/tokens"
)

// FakeOldIndexer serves OLD history by owner from memory.
type FakeOldIndexer struct {
	mu  sync.Mutex
	txs []ledger.Transaction

	// Err fails GetAccountTransactions when set.
	Err error

	// SyncErr fails SynchArchiveFull when set.
	SyncErr error

	Calls     int
	SyncCalls int
}

// Add appends transactions to the history.
func (f *FakeOldIndexer) Add(txs ...ledger.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, txs...)
}

// GetAccountTransactions returns every transaction touching owner, any subaccount.
func (f *FakeOldIndexer) GetAccountTransactions(_ context.Context, owner account.Principal) ([]ledger.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	var out []ledger.Transaction
	for _, tx := range f.txs {
		if tx.Transfer != nil && (tx.Transfer.From.Owner == owner || tx.Transfer.To.Owner == owner) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// SynchArchiveFull records the nudge.
func (f *FakeOldIndexer) SynchArchiveFull(context.Context, account.Principal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SyncCalls++
	return f.SyncErr
}

// FakeNewIndexer serves NEW history by account, newest first, in pages.
type FakeNewIndexer struct {
	mu  sync.Mutex
	txs []ledger.Transaction

	Err      error
	Calls    int
	Requests []ledger.TransactionsRequest
}

// Add appends transactions to the history.
func (f *FakeNewIndexer) Add(txs ...ledger.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, txs...)
}

// GetAccountTransactions pages through the account's transactions.
// Start is exclusive: the page begins below it.
func (f *FakeNewIndexer) GetAccountTransactions(_ context.Context, req ledger.TransactionsRequest) (*ledger.TransactionsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.Requests = append(f.Requests, req)
	if f.Err != nil {
		return nil, f.Err
	}

	var matching []ledger.Transaction
	for _, tx := range f.txs {
		if tx.Transfer != nil && (account.Equal(tx.Transfer.From, req.Account) || account.Equal(tx.Transfer.To, req.Account)) {
			matching = append(matching, tx)
		}
	}
	slices.SortFunc(matching, func(a, b ledger.Transaction) int {
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})

	page := &ledger.TransactionsPage{Transactions: []ledger.Transaction{}}
	if len(matching) > 0 {
		oldest := matching[len(matching)-1].ID
		page.OldestTxID = &oldest
	}
	for _, tx := range matching {
		if req.Start != nil && tx.ID >= *req.Start {
			continue
		}
		if req.MaxResults > 0 && uint64(len(page.Transactions)) >= req.MaxResults {
			break
		}
		page.Transactions = append(page.Transactions, tx)
	}
	return page, nil
}

// FakeLedger implements both ledger.OldLedger and ledger.NewLedger.
//
// Successful transfers get consecutive ids starting at NextID. When an
// indexer is attached with Index, each successful transfer from Self is
// appended to it so follow-up reads observe the payout.
type FakeLedger struct {
	mu sync.Mutex

	// Self is the account transfers are sent from.
	Self account.Account

	// NextID is the id of the next successful transfer or burn.
	NextID ledger.TxID

	// Err fails the next calls when set.
	Err error

	// BeforeReply runs during a call, outside the fake's lock, before it
	// answers. Tests use it to interleave a second request.
	BeforeReply func()

	Transfers []ledger.TransferArgs
	Burns     []ledger.BurnArgs

	indexOld *FakeOldIndexer
	indexNew *FakeNewIndexer
}

// IndexInto makes successful transfers visible on an OLD indexer.
func (f *FakeLedger) IndexInto(idx *FakeOldIndexer) { f.indexOld = idx }

// IndexIntoNew makes successful transfers visible on a NEW indexer.
func (f *FakeLedger) IndexIntoNew(idx *FakeNewIndexer) { f.indexNew = idx }

// Transfer records args and returns the next id or Err.
func (f *FakeLedger) Transfer(_ context.Context, args ledger.TransferArgs) (ledger.TxID, error) {
	if hook := f.BeforeReply; hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Transfers = append(f.Transfers, args)
	if f.Err != nil {
		return 0, f.Err
	}

	id := f.NextID
	f.NextID++

	tx := ledger.Transaction{
		ID:   id,
		Kind: ledger.KindTransfer,
		Transfer: &ledger.Transfer{
			From:   f.Self,
			To:     args.To,
			Amount: args.Amount,
			Fee:    args.Fee,
			Memo:   args.Memo,
		},
	}
	if args.CreatedAt != nil {
		tx.Timestamp = *args.CreatedAt
	}
	if f.indexOld != nil {
		f.indexOld.Add(tx)
	}
	if f.indexNew != nil {
		f.indexNew.Add(tx)
	}
	return id, nil
}

// Burn records args and returns the next id or Err.
func (f *FakeLedger) Burn(_ context.Context, args ledger.BurnArgs) (ledger.TxID, error) {
	if hook := f.BeforeReply; hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Burns = append(f.Burns, args)
	if f.Err != nil {
		return 0, f.Err
	}
	id := f.NextID
	f.NextID++
	return id, nil
}

// TransferCount returns the number of recorded transfer calls.
func (f *FakeLedger) TransferCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Transfers)
}

// Fakes bundles one fake per external service and a connector returning them.
type Fakes struct {
	OldLedger  *FakeLedger
	NewLedger  *FakeLedger
	OldIndexer *FakeOldIndexer
	NewIndexer *FakeNewIndexer

	// Connected records the identities of every Connect call.
	Connected []ledger.ServiceIDs
	mu        sync.Mutex
}

// NewFakes creates fakes whose ledgers send from self and index their own
// payouts.
func NewFakes(self account.Principal) *Fakes {
	f := &Fakes{
		OldLedger:  &FakeLedger{Self: account.New(self), NextID: 1},
		NewLedger:  &FakeLedger{Self: account.New(self), NextID: 1},
		OldIndexer: &FakeOldIndexer{},
		NewIndexer: &FakeNewIndexer{},
	}
	f.OldLedger.IndexInto(f.OldIndexer)
	f.NewLedger.IndexIntoNew(f.NewIndexer)
	return f
}

// Connect implements ledger.Connector.
func (f *Fakes) Connect(ids ledger.ServiceIDs) ledger.Services {
	f.mu.Lock()
	f.Connected = append(f.Connected, ids)
	f.mu.Unlock()
	return ledger.Services{
		OldLedger:  f.OldLedger,
		NewLedger:  f.NewLedger,
		OldIndexer: f.OldIndexer,
		NewIndexer: f.NewIndexer,
	}
}

// OldTransfer builds an OLD transfer transaction.
func OldTransfer(id ledger.TxID, from, to account.Account, units uint64) ledger.Transaction {
	return transferTx(id, from, to, tokens.Old(units))
}

// NewTransfer builds a NEW transfer transaction.
func NewTransfer(id ledger.TxID, from, to account.Account, units uint64) ledger.Transaction {
	return transferTx(id, from, to, tokens.New(units))
}

func transferTx(id ledger.TxID, from, to account.Account, amount tokens.Amount) ledger.Transaction {
	return ledger.Transaction{
		ID:   id,
		Kind: ledger.KindTransfer,
		Transfer: &ledger.Transfer{
			From:   from,
			To:     to,
			Amount: amount,
		},
	}
}
