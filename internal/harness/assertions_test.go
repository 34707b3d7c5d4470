package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/store"
	"github.com/roach88/tokenswap/internal/testutil"
	"github.com/roach88/tokenswap/internal/tokens"
)

func sampleTrace() []TraceEvent {
	r := NewResult()
	r.AddTrace(TraceEvent{Op: OpConvert, Outcome: OutcomeOK, Result: map[string]any{"tx_id": json.Number("5")}})
	r.AddTrace(TraceEvent{Op: OpAdvance, Outcome: OutcomeOK})
	r.AddTrace(TraceEvent{Op: OpConvert, Outcome: "ON_COOLDOWN"})
	return r.Trace
}

func TestAddTrace_NumbersSteps(t *testing.T) {
	trace := sampleTrace()
	for i, ev := range trace {
		assert.Equal(t, i+1, ev.Seq)
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpConvert}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpConvert, Outcome: "ON_COOLDOWN"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpConvert, Result: map[string]any{"tx_id": 5}}))

	err := assertTraceContains(trace, Assertion{Op: OpConvert, Result: map[string]any{"tx_id": 6}})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "Full trace:")

	assert.Error(t, assertTraceContains(trace, Assertion{Op: OpBurn}))
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpConvert, OpAdvance}}))

	err := assertTraceOrder(trace, Assertion{Ops: []string{OpAdvance, OpConvert}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertTraceOrder(trace, Assertion{Ops: []string{OpConvert, OpBurn}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing op: burn")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpConvert, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpConvert, Outcome: OutcomeOK, Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpBurn, Count: 0}))
	assert.Error(t, assertTraceCount(trace, Assertion{Op: OpConvert, Count: 3}))
}

func TestAssertLedgerCalls(t *testing.T) {
	fakes := testutil.NewFakes(account.MustParsePrincipal(DefaultPrincipals["swap"]))

	assert.NoError(t, assertLedgerCalls(fakes, Assertion{Ledger: "new", Kind: "transfer", Count: 0}))
	assert.NoError(t, assertLedgerCalls(fakes, Assertion{Ledger: "old", Kind: "burn", Count: 0}))
	assert.Error(t, assertLedgerCalls(fakes, Assertion{Ledger: "new", Kind: "transfer", Count: 1}))
}

func TestAssertFinalState(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	alice := account.MustParsePrincipal(DefaultPrincipals["alice"])
	bob := account.MustParsePrincipal(DefaultPrincipals["bob"])
	require.NoError(t, st.RecordSent(ctx, tokens.AssetNew, account.New(alice), 42))
	require.NoError(t, st.RecordSent(ctx, tokens.AssetNew, account.New(bob), 43))

	match := Assertion{
		Table:  "sent_transactions",
		Where:  map[string]any{"asset": "new", "account": alice.String()},
		Expect: map[string]any{"tx_id": 42},
	}
	assert.NoError(t, assertFinalState(ctx, st, match))

	wrong := match
	wrong.Expect = map[string]any{"tx_id": 43}
	assert.Error(t, assertFinalState(ctx, st, wrong))

	missingColumn := match
	missingColumn.Expect = map[string]any{"amount": 1}
	assert.Error(t, assertFinalState(ctx, st, missingColumn))

	ambiguous := match
	ambiguous.Where = map[string]any{"asset": "new"}
	err = assertFinalState(ctx, st, ambiguous)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")

	noRow := match
	noRow.Where = map[string]any{"asset": "old"}
	err = assertFinalState(ctx, st, noRow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row not found")

	injected := match
	injected.Table = "sent_transactions; DROP TABLE config"
	assert.Error(t, assertFinalState(ctx, st, injected))

	badColumn := match
	badColumn.Where = map[string]any{"account = account OR 1": 1}
	assert.Error(t, assertFinalState(ctx, st, badColumn))
}

func TestValuesEqual(t *testing.T) {
	cases := []struct {
		actual, expected any
		want             bool
	}{
		{json.Number("1000"), 1000, true},
		{"1000", 1000, true},
		{json.Number("1000"), "1000", true},
		{true, true, true},
		{false, true, false},
		{[]byte("new"), "new", true},
		{nil, nil, true},
		{nil, "x", false},
		{"x", nil, false},
		{map[string]any{"a": "1", "b": "2"}, map[string]any{"a": 1}, true},
		{map[string]any{"a": "1"}, map[string]any{"c": 1}, false},
		{"1", map[string]any{"a": 1}, false},
		{[]any{"1", "2"}, []any{1, 2}, true},
		{[]any{"1"}, []any{1, 2}, false},
		{map[string]any{}, "x", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, valuesEqual(tc.actual, tc.expected), "%#v vs %#v", tc.actual, tc.expected)
	}
}

func TestEvaluateAssertions_MissingContext(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertFinalState, Table: "config", Expect: map[string]any{"key": "settings"}},
		{Type: AssertLedgerCalls, Ledger: "new", Kind: "transfer"},
		{Type: "vibes"},
	}, nil)
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "requires database context")
	assert.Contains(t, errs[1], "requires ledger context")
	assert.Contains(t, errs[2], "unknown assertion type")
}
