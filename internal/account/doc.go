// Package account models ledger accounts: an owner principal plus an
// optional 32-byte subaccount.
//
// Two accounts are the same account when their owners match and their
// subaccounts are equal, where an absent subaccount and the all-zero
// subaccount are interchangeable. Every ledger in the system applies this
// rule, so transaction history filtering must apply it too.
package account
