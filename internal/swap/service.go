package swap

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/cooldown"
	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/reconcile"
	"github.com/roach88/tokenswap/internal/registry"
	"github.com/roach88/tokenswap/internal/settings"
)

// Caller is the authenticated identity issuing a request.
type Caller = account.Principal

// ConfigStore persists configuration changes. *store.Store implements it.
type ConfigStore interface {
	SaveSettings(ctx context.Context, cfg settings.Settings) error
	SaveServiceIDs(ctx context.Context, ids ledger.ServiceIDs) error
}

// Service holds the swap's state and runs its workflows.
//
// Thread-safety: all methods are safe for concurrent use.
type Service struct {
	mu       sync.Mutex
	settings settings.Settings
	ids      ledger.ServiceIDs

	self        account.Principal
	controllers []account.Principal
	connector   ledger.Connector
	registry    registry.Registry
	guard       *cooldown.Guard
	engine      *reconcile.Engine
	clock       cooldown.Clock
	tokens      RequestTokenGenerator
	config      ConfigStore
	pageSize    uint64
}

// Option configures a Service.
type Option func(*Service)

// WithSettings sets the initial settings. The default is settings.Default().
func WithSettings(cfg settings.Settings) Option {
	return func(s *Service) { s.settings = cfg.Clone() }
}

// WithServiceIDs sets the initial service identities. The default leaves
// all four as placeholders, so the service starts inactive.
func WithServiceIDs(ids ledger.ServiceIDs) Option {
	return func(s *Service) { s.ids = ids }
}

// WithControllers adds operator identities that are privileged regardless
// of the admin list in settings.
func WithControllers(ps ...account.Principal) Option {
	return func(s *Service) { s.controllers = append(s.controllers, ps...) }
}

// WithRegistry sets the sent-transaction registry. The default is in memory.
func WithRegistry(r registry.Registry) Option {
	return func(s *Service) { s.registry = r }
}

// WithClock sets the clock used for cooldowns and transfer timestamps.
func WithClock(c cooldown.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithRequestTokens sets the request token generator.
func WithRequestTokens(g RequestTokenGenerator) Option {
	return func(s *Service) { s.tokens = g }
}

// WithConfigStore persists settings and identity updates.
func WithConfigStore(cs ConfigStore) Option {
	return func(s *Service) { s.config = cs }
}

// WithPageSize sets the NEW indexer page size.
func WithPageSize(n uint64) Option {
	return func(s *Service) { s.pageSize = n }
}

// New creates a service acting as self, reaching external services through
// connector.
func New(self account.Principal, connector ledger.Connector, opts ...Option) *Service {
	s := &Service{
		settings:  settings.Default(),
		self:      self,
		connector: connector,
		clock:     cooldown.SystemClock{},
		tokens:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = registry.NewMemory()
	}
	s.guard = cooldown.New(s.clock)
	s.engine = reconcile.NewEngine(s.registry, reconcile.WithPageSize(s.pageSize))
	return s
}

// Settings returns a copy of the current settings.
func (s *Service) Settings(context.Context) settings.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Clone()
}

// SetSettings replaces the settings. Privileged.
func (s *Service) SetSettings(ctx context.Context, caller Caller, cfg settings.Settings) (bool, error) {
	token := s.tokens.Generate()
	logger := slog.With("request", token, "op", "set_settings", "caller", caller.String())

	if err := cfg.Validate(); err != nil {
		e := newError(ErrCodeInvalidSettings, err.Error())
		e.Err = err
		return false, withToken(e, token)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.privilegedLocked(caller) {
		return false, withToken(newError(ErrCodeNotPrivileged, "caller may not change settings"), token)
	}
	if s.config != nil {
		if err := s.config.SaveSettings(ctx, cfg); err != nil {
			logger.Error("settings not saved", "error", err)
			return false, withToken(NewGenericError(GenericStorage, err), token)
		}
	}
	s.settings = cfg.Clone()
	logger.Info("settings updated",
		"allow_conversions", cfg.AllowConversions,
		"allow_burns", cfg.AllowBurns,
		"allow_seeder_conversions", cfg.AllowSeederConversions,
	)
	return true, nil
}

// ServiceIDs returns the current service identities.
func (s *Service) ServiceIDs(context.Context) ledger.ServiceIDs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids
}

// SetServiceIDs replaces the service identities. Privileged.
func (s *Service) SetServiceIDs(ctx context.Context, caller Caller, ids ledger.ServiceIDs) error {
	token := s.tokens.Generate()
	logger := slog.With("request", token, "op", "set_canister_ids", "caller", caller.String())

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.privilegedLocked(caller) {
		return withToken(newError(ErrCodeNotPrivileged, "caller may not change service identities"), token)
	}
	if s.config != nil {
		if err := s.config.SaveServiceIDs(ctx, ids); err != nil {
			logger.Error("service identities not saved", "error", err)
			return withToken(NewGenericError(GenericStorage, err), token)
		}
	}
	s.ids = ids
	logger.Info("service identities updated", "active", ids.Active())
	return nil
}

// privilegedLocked reports whether caller is a controller or a settings
// admin. s.mu must be held.
func (s *Service) privilegedLocked(caller Caller) bool {
	if caller.IsAnonymous() || caller.IsPlaceholder() {
		return false
	}
	return slices.Contains(s.controllers, caller) || s.settings.IsAdmin(caller)
}

func withToken(e *Error, token string) *Error {
	e.RequestToken = token
	return e
}
