// Package reconcile derives an account's convertible NEW balance from its
// OLD and NEW transaction histories.
//
// The package has two layers:
//   - Pure reducers: IndexOld and IndexNew fold one ledger's history into
//     directional sums; Combine merges both into an IndexedAccount.
//   - Engine: fetches both histories from the indexers and reads the
//     sent-transaction registry, then runs the reducers.
//
// # Fee Semantics
//
// The two ledgers report amounts differently. OLD transfers are
// fee-inclusive, so a deposit credits amount−old_fee. NEW transfers are
// fee-exclusive, so a payout debits amount+new_fee.
//
// # Underflow
//
// A balance is never negative. Wherever a subtraction would go below zero
// the result is clamped to zero and the shortfall is added to the matching
// underflow figure, which callers must treat as a fault.
package reconcile
