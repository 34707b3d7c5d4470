package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/registry"
	"github.com/roach88/tokenswap/internal/settings"
	"github.com/roach88/tokenswap/internal/tokens"
)

// DefaultPageSize is the NEW indexer page size.
const DefaultPageSize = 1000

// maxPages bounds NEW indexer paging so a misbehaving indexer cannot keep a
// request alive forever.
const maxPages = 10_000

// Engine fetches and reconciles account histories.
//
// Thread-safety: Engine holds no mutable state and is safe for concurrent use.
type Engine struct {
	registry registry.Registry
	pageSize uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithPageSize sets the NEW indexer page size.
func WithPageSize(n uint64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// NewEngine creates an engine reading recorded payouts from reg.
func NewEngine(reg registry.Registry, opts ...Option) *Engine {
	e := &Engine{registry: reg, pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Input is everything one reconciliation reads.
type Input struct {
	Account account.Account

	// Self is the swap's own identity; its default account is the system
	// side of every transfer.
	Self account.Principal

	Services ledger.Services
	IDs      ledger.ServiceIDs
	Settings settings.Settings

	// Logger carries request attributes. Nil means slog.Default().
	Logger *slog.Logger
}

// Account reconciles in.Account. Both indexers are queried concurrently;
// any indexer or registry failure fails the whole call.
func (e *Engine) Account(ctx context.Context, in Input) (*IndexedAccount, error) {
	logger := in.Logger
	if logger == nil {
		logger = slog.Default()
	}
	owner := in.Account.Owner
	system := account.New(in.Self)

	// The OLD indexer answers per owner, the NEW indexer per account; each
	// registry lookup uses the key its indexer's history is fetched by.
	oldSent, err := e.lastSent(ctx, tokens.AssetOld, account.New(owner))
	if err != nil {
		return nil, err
	}
	newSent, err := e.lastSent(ctx, tokens.AssetNew, in.Account)
	if err != nil {
		return nil, err
	}

	var oldTxs, newTxs []ledger.Transaction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := in.Services.OldIndexer.SynchArchiveFull(gctx, in.IDs.OldLedger); err != nil {
			logger.Debug("old indexer archive sync failed, continuing", "error", err)
		}
		txs, err := in.Services.OldIndexer.GetAccountTransactions(gctx, owner)
		if err != nil {
			return fmt.Errorf("old indexer: %w", err)
		}
		oldTxs = txs
		return nil
	})
	g.Go(func() error {
		txs, err := e.newHistory(gctx, in.Services.NewIndexer, in.Account)
		if err != nil {
			return fmt.Errorf("new indexer: %w", err)
		}
		newTxs = txs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cfg := in.Settings
	oldIdx := IndexOld(oldTxs, in.Account, system, cfg.OldFee, oldSent)
	newIdx := IndexNew(newTxs, in.Account, system, cfg.NewFee, cfg.SeederMinAmount, newSent)
	result := Combine(in.Account, oldIdx, newIdx, cfg.ScaleFactor)

	logger.Debug("account reconciled",
		"account", in.Account.String(),
		"old_txs", len(oldTxs),
		"new_txs", len(newTxs),
		"total", result.Total.String(),
		"seeder", result.IsSeeder,
	)
	return &result, nil
}

func (e *Engine) lastSent(ctx context.Context, asset tokens.Asset, acct account.Account) (*ledger.TxID, error) {
	id, ok, err := e.registry.Last(ctx, asset, acct)
	if err != nil {
		return nil, fmt.Errorf("read %s registry: %w", asset, err)
	}
	if !ok {
		return nil, nil
	}
	return &id, nil
}

// newHistory pages backwards through the account's NEW history until the
// oldest transaction has been read.
func (e *Engine) newHistory(ctx context.Context, idx ledger.NewIndexer, acct account.Account) ([]ledger.Transaction, error) {
	var (
		all   []ledger.Transaction
		start *ledger.TxID
	)
	for page := 0; page < maxPages; page++ {
		resp, err := idx.GetAccountTransactions(ctx, ledger.TransactionsRequest{
			Account:    acct,
			MaxResults: e.pageSize,
			Start:      start,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Transactions...)

		if len(resp.Transactions) == 0 || resp.OldestTxID == nil {
			return all, nil
		}
		last := resp.Transactions[len(resp.Transactions)-1].ID
		if last <= *resp.OldestTxID {
			return all, nil
		}
		if start != nil && last >= *start {
			return nil, fmt.Errorf("page starting below %d returned tx %d", *start, last)
		}
		start = &last
	}
	return nil, fmt.Errorf("history longer than %d pages", maxPages)
}
