// Package registry remembers the last payout the swap sent each account, one
// table per asset.
//
// The registry feeds staleness detection only. It never enters balance
// arithmetic: an indexer view that does not contain the recorded id is
// older than a transfer the swap already made.
//
// Entries are keyed by the account normalized with account.Normalize. The
// NEW indexer answers per account, so a payout to one subaccount must not be
// expected in the history of the owner's other accounts.
package registry

import (
	"context"
	"sync"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/tokens"
)

// Registry maps (asset, account) to the last payout tx id.
// Entries are created or replaced after a successful transfer and never
// deleted.
type Registry interface {
	Last(ctx context.Context, asset tokens.Asset, acct account.Account) (ledger.TxID, bool, error)
	Record(ctx context.Context, asset tokens.Asset, acct account.Account, id ledger.TxID) error
}

// Memory is a process-local Registry. A restart empties it.
type Memory struct {
	mu      sync.RWMutex
	entries map[tokens.Asset]map[string]ledger.TxID
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		entries: map[tokens.Asset]map[string]ledger.TxID{
			tokens.AssetOld: {},
			tokens.AssetNew: {},
		},
	}
}

// Last returns the recorded id for acct on asset.
func (m *Memory) Last(_ context.Context, asset tokens.Asset, acct account.Account) (ledger.TxID, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.entries[asset][key(acct)]
	return id, ok, nil
}

// Record replaces the recorded id for acct on asset.
func (m *Memory) Record(_ context.Context, asset tokens.Asset, acct account.Account, id ledger.TxID) error {
	if !asset.Valid() {
		return errUnknownAsset(asset)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[asset][key(acct)] = id
	return nil
}

func key(acct account.Account) string {
	return account.Normalize(acct).String()
}
