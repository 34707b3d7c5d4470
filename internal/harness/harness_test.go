package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "golden files are named after the scenario")
			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

func TestRun_ReportsUnmetExpectations(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_expectation
description: "expects a payout that cannot happen"
flow:
  - op: convert
    caller: alice
    account: alice
    expect:
      outcome: ok
assertions:
  - type: ledger_calls
    ledger: new
    kind: transfer
    count: 1
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected outcome ok, got CONVERSIONS_NOT_ALLOWED")
	assert.Contains(t, result.Errors[1], "ledger_calls")
}

func TestRun_ResultMismatch(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_result
description: "expects the wrong payout id"
settings: { allow_conversions: true, new_fee: 0 }
history:
  new:
    - { id: 1, from: alice, to: swap, amount: "5000" }
flow:
  - op: convert
    caller: alice
    account: alice
    expect:
      outcome: ok
      result: { tx_id: 2 }
assertions:
  - type: trace_count
    op: convert
    count: 1
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected result")
}

func TestRun_Subaccounts(t *testing.T) {
	sub := strings.Repeat("01", 32)
	scenario, err := ParseScenario([]byte(`
name: subaccounts
description: "deposits from a subaccount belong to that subaccount only"
settings: { allow_conversions: true, new_fee: 0 }
history:
  new:
    - { id: 1, from: alice.` + sub + `, to: swap, amount: "5000" }
flow:
  - op: convert
    caller: alice
    account: alice
    expect:
      outcome: INSUFFICIENT_FUNDS
  - op: convert
    caller: alice
    account: alice.` + sub + `
    expect:
      outcome: ON_COOLDOWN
  - op: advance
    duration: 1m
  - op: convert
    caller: alice
    account: alice.` + sub + `
    expect:
      outcome: ok
      result: { tx_id: 1 }
assertions:
  - type: ledger_calls
    ledger: new
    kind: transfer
    count: 1
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_BadScenarioData(t *testing.T) {
	cases := map[string]string{
		"unknown principal": `
name: x
description: x
flow:
  - { op: convert, caller: nobody, account: alice }
assertions:
  - { type: trace_count, op: convert, count: 1 }
`,
		"invalid settings": `
name: x
description: x
settings: { scale_factor: 0 }
flow:
  - { op: advance, duration: 1s }
assertions:
  - { type: trace_count, op: advance, count: 1 }
`,
		"bad amount": `
name: x
description: x
flow:
  - { op: burn, caller: operator, amount: "-5" }
assertions:
  - { type: trace_count, op: burn, count: 1 }
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			scenario, err := ParseScenario([]byte(doc))
			require.NoError(t, err)
			_, err = Run(scenario)
			assert.Error(t, err)
		})
	}
}
