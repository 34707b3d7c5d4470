package registry

import (
	"context"
	"fmt"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/store"
	"github.com/roach88/tokenswap/internal/tokens"
)

// Durable is a Registry kept in the SQLite store. It survives restarts, so
// staleness protection holds across them.
type Durable struct {
	store *store.Store
}

// NewDurable wraps s.
func NewDurable(s *store.Store) *Durable {
	return &Durable{store: s}
}

// Last returns the recorded id for acct on asset.
func (d *Durable) Last(ctx context.Context, asset tokens.Asset, acct account.Account) (ledger.TxID, bool, error) {
	return d.store.LastSent(ctx, asset, account.Normalize(acct))
}

// Record replaces the recorded id for acct on asset.
func (d *Durable) Record(ctx context.Context, asset tokens.Asset, acct account.Account, id ledger.TxID) error {
	return d.store.RecordSent(ctx, asset, account.Normalize(acct), id)
}

func errUnknownAsset(asset tokens.Asset) error {
	return fmt.Errorf("registry: unknown asset %q", string(asset))
}
