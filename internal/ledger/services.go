package ledger

import "github.com/roach88/tokenswap/internal/account"

// ServiceIDs are the identities of the four external services.
// A placeholder (empty) identity means the service is not configured yet.
type ServiceIDs struct {
	OldLedger  account.Principal `json:"old_ledger" yaml:"old_ledger"`
	NewLedger  account.Principal `json:"new_ledger" yaml:"new_ledger"`
	OldIndexer account.Principal `json:"old_indexer" yaml:"old_indexer"`
	NewIndexer account.Principal `json:"new_indexer" yaml:"new_indexer"`
}

// Active reports whether every service identity is configured.
func (ids ServiceIDs) Active() bool {
	return !ids.OldLedger.IsPlaceholder() &&
		!ids.NewLedger.IsPlaceholder() &&
		!ids.OldIndexer.IsPlaceholder() &&
		!ids.NewIndexer.IsPlaceholder()
}

// Services bundles clients for the four external services.
type Services struct {
	OldLedger  OldLedger
	NewLedger  NewLedger
	OldIndexer OldIndexer
	NewIndexer NewIndexer
}

// Connector builds clients addressed at the given identities. It is
// consulted on every request so identity changes take effect immediately.
type Connector interface {
	Connect(ids ServiceIDs) Services
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ids ServiceIDs) Services

// Connect calls f(ids).
func (f ConnectorFunc) Connect(ids ServiceIDs) Services {
	return f(ids)
}
