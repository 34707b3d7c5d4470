// Package swap implements the conversion and burn workflows.
//
// A Service is the one explicit state object of the process: settings,
// service identities, the sent-transaction registry and the cooldown guard.
// Every public operation takes it as receiver; nothing is global.
//
// # Interleaving
//
// Requests run concurrently. A workflow holds the service mutex only
// between external calls, so its precondition checks and the cooldown start
// are atomic with respect to other requests, while a second request for the
// same owner may run during the first one's indexer or ledger calls. The
// cooldown timestamp, written before the first external call, is what keeps
// that second request from paying out twice.
package swap
