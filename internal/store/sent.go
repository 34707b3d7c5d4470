package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/tokens"
)

// LastSent returns the last payout tx id recorded for acct on asset.
//
// Rows are keyed by acct's textual form. Callers pass normalized accounts so
// that an all-zero subaccount and an absent one share a row.
func (s *Store) LastSent(ctx context.Context, asset tokens.Asset, acct account.Account) (ledger.TxID, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT tx_id FROM sent_transactions
		WHERE asset = ? AND account = ?
	`, string(asset), acct.String()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read sent transaction: %w", err)
	}
	return ledger.TxID(id), true, nil
}

// RecordSent stores id as the last payout to acct on asset, replacing any
// previous entry. Entries are never deleted.
func (s *Store) RecordSent(ctx context.Context, asset tokens.Asset, acct account.Account, id ledger.TxID) error {
	if !asset.Valid() {
		return fmt.Errorf("record sent transaction: unknown asset %q", string(asset))
	}
	if uint64(id) > math.MaxInt64 {
		return fmt.Errorf("record sent transaction: tx id %d out of range", uint64(id))
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sent_transactions (asset, account, tx_id, recorded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(asset, account) DO UPDATE SET tx_id = excluded.tx_id, recorded_at = excluded.recorded_at
	`, string(asset), acct.String(), int64(id), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("record sent transaction: %w", err)
	}
	return nil
}
