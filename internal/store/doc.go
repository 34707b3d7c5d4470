// Package store provides SQLite-backed durable state for tokenswap.
//
// Three kinds of state live here:
//   - Settings: the privileged-caller-editable configuration, as JSON
//   - Service identities: the four external services, as JSON
//   - Sent transactions: per asset, the last payout tx id sent to each owner
//
// Cooldown entries are deliberately absent. They are working state and a
// restart clears them.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Transaction ids are stored as SQLite INTEGER (int64). Ids above
// math.MaxInt64 are rejected on write.
package store
