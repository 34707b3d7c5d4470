package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/store"
	"github.com/roach88/tokenswap/internal/tokens"
)

func TestRegistries(t *testing.T) {
	impls := map[string]func(t *testing.T) Registry{
		"memory": func(*testing.T) Registry { return NewMemory() },
		"durable": func(t *testing.T) Registry {
			s, err := store.Open(filepath.Join(t.TempDir(), "registry.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return NewDurable(s)
		},
	}

	alice := account.New(account.MustParsePrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai"))
	bob := account.New(account.MustParsePrincipal("ryjl3-tyaaa-aaaaa-aaaba-cai"))

	for name, newRegistry := range impls {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := newRegistry(t)

			_, ok, err := r.Last(ctx, tokens.AssetNew, alice)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, r.Record(ctx, tokens.AssetNew, alice, 7))
			require.NoError(t, r.Record(ctx, tokens.AssetNew, alice, 9))
			require.NoError(t, r.Record(ctx, tokens.AssetOld, bob, 3))

			id, ok, err := r.Last(ctx, tokens.AssetNew, alice)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, ledger.TxID(9), id, "later record replaces earlier")

			_, ok, err = r.Last(ctx, tokens.AssetOld, alice)
			require.NoError(t, err)
			assert.False(t, ok, "tables are per asset")

			id, ok, err = r.Last(ctx, tokens.AssetOld, bob)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, ledger.TxID(3), id)

			assert.Error(t, r.Record(ctx, tokens.Asset("gold"), alice, 1))
		})
	}
}

func TestRegistries_KeyedByNormalizedAccount(t *testing.T) {
	impls := map[string]func(t *testing.T) Registry{
		"memory": func(*testing.T) Registry { return NewMemory() },
		"durable": func(t *testing.T) Registry {
			s, err := store.Open(filepath.Join(t.TempDir(), "registry.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return NewDurable(s)
		},
	}

	owner := account.MustParsePrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai")
	sub := make([]byte, account.SubaccountLen)
	sub[31] = 1
	other := account.Account{Owner: owner, Subaccount: sub}
	zero := account.Account{Owner: owner, Subaccount: make([]byte, account.SubaccountLen)}

	for name, newRegistry := range impls {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := newRegistry(t)

			require.NoError(t, r.Record(ctx, tokens.AssetNew, other, 5))

			_, ok, err := r.Last(ctx, tokens.AssetNew, account.New(owner))
			require.NoError(t, err)
			assert.False(t, ok, "a payout to one subaccount is not recorded for the default account")

			require.NoError(t, r.Record(ctx, tokens.AssetNew, zero, 6))
			id, ok, err := r.Last(ctx, tokens.AssetNew, account.New(owner))
			require.NoError(t, err)
			assert.True(t, ok, "the zero subaccount is the default account")
			assert.Equal(t, ledger.TxID(6), id)

			id, ok, err = r.Last(ctx, tokens.AssetNew, other)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, ledger.TxID(5), id)
		})
	}
}
