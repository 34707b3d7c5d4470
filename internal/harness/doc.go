// Package harness runs swap scenarios written in YAML against in-process
// ledgers and indexers.
//
// # Scenario Format
//
//	name: convert_old_deposit
//	description: "OLD deposit converts at the scale factor"
//	request_token: test-request-1
//	settings: { allow_conversions: true, new_fee: 1000, old_fee: 0 }
//	controllers: [operator]
//	history:
//	  old:
//	    - { id: 1, from: alice, to: swap, amount: "12000000000000" }
//	flow:
//	  - op: convert
//	    caller: alice
//	    account: alice
//	    expect:
//	      outcome: ok
//	      result: { tx_id: 1 }
//	  - op: advance
//	    duration: 61s
//	assertions:
//	  - type: ledger_calls
//	    ledger: new
//	    kind: transfer
//	    count: 1
//	  - type: final_state
//	    table: sent_transactions
//	    where: { asset: new }
//	    expect: { tx_id: 1 }
//
// Principals are written as aliases (swap, alice, bob, operator, anonymous
// and the four service names) or textual principals. Accounts append
// ".<hex>" for a subaccount.
//
// # Operations
//
// convert, get_account, burn, set_settings and set_service_ids call the
// service. advance moves the clock, deposit appends a transfer to an
// indexer, reject makes a ledger refuse every later call with the given
// code, and pause_indexer stops a ledger's payouts from reaching its
// indexer.
//
// # Assertion Types
//
//   - trace_contains: a step with the op, and outcome and result when given
//   - trace_order: ops first appear in the given order
//   - trace_count: a step occurs exactly N times
//   - final_state: one row of a database table holds the expected values
//   - ledger_calls: a ledger received exactly N transfers or burns
//
// # Deterministic Testing
//
// Every scenario gets a fresh in-memory SQLite database backing the
// sent-transaction registry and configuration, a fake clock starting at
// testutil.Epoch, and a fixed request token, so traces are identical
// across runs and can be compared against golden files.
package harness
