package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/api"
	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/registry"
	"github.com/roach88/tokenswap/internal/remote"
	"github.com/roach88/tokenswap/internal/settings"
	"github.com/roach88/tokenswap/internal/store"
	"github.com/roach88/tokenswap/internal/swap"
)

// jwtSecretEnv supplies --jwt-secret when the flag is empty.
const jwtSecretEnv = "TOKENSWAP_JWT_SECRET"

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database        string
	Listen          string
	NATSURL         string
	SubjectPrefix   string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	JWTSecret       string
	Self            string
	Controllers     []string
	SettingsFile    string

	OldLedger  string
	NewLedger  string
	OldIndexer string
	NewIndexer string

	// Connector overrides the NATS connection (for testing).
	Connector ledger.Connector

	// Ready is called with the bound address once the listener is open (for testing).
	Ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the swap HTTP service",
		Long: `Run the swap service.

The service reaches the OLD and NEW ledgers and indexers over NATS and
exposes convert, burn and configuration operations over HTTP. Callers
authenticate with an HS256 bearer token whose subject is their principal.

With --db, settings, service identities and the sent-transaction
registries survive restarts. Without it everything is kept in memory.

A --settings file or service identity flag overrides the stored value and
is written back to the database.

Example:
  tokenswap serve --self rrkah-fqaaa-aaaaa-aaaaq-cai --db ./swap.db \
    --controller r7inp-6aaaa-aaaaa-aaabq-cai --settings ./settings.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (in-memory state when empty)")
	cmd.Flags().StringVar(&opts.Listen, "listen", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&opts.NATSURL, "nats-url", "nats://127.0.0.1:4222", "NATS server URL")
	cmd.Flags().StringVar(&opts.SubjectPrefix, "subject-prefix", remote.DefaultSubjectPrefix, "NATS subject prefix for ledger requests")
	cmd.Flags().DurationVar(&opts.RequestTimeout, "request-timeout", remote.DefaultTimeout, "timeout for a single ledger or indexer request")
	cmd.Flags().DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight HTTP requests")
	cmd.Flags().StringVar(&opts.JWTSecret, "jwt-secret", "", "HS256 secret for bearer tokens (default $"+jwtSecretEnv+")")
	cmd.Flags().StringVar(&opts.Self, "self", "", "principal the swap acts as (required)")
	cmd.Flags().StringSliceVar(&opts.Controllers, "controller", nil, "operator principal, always privileged (repeatable)")
	cmd.Flags().StringVar(&opts.SettingsFile, "settings", "", "settings file (.yaml, .json or .cue)")
	cmd.Flags().StringVar(&opts.OldLedger, "old-ledger", "", "OLD ledger principal")
	cmd.Flags().StringVar(&opts.NewLedger, "new-ledger", "", "NEW ledger principal")
	cmd.Flags().StringVar(&opts.OldIndexer, "old-indexer", "", "OLD indexer principal")
	cmd.Flags().StringVar(&opts.NewIndexer, "new-indexer", "", "NEW indexer principal")
	_ = cmd.MarkFlagRequired("self")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logger := setupLogging(opts.RootOptions, cmd.ErrOrStderr())

	secret := opts.JWTSecret
	if secret == "" {
		secret = os.Getenv(jwtSecretEnv)
	}
	if secret == "" {
		return NewExitError(ExitCommandError, "--jwt-secret or $"+jwtSecretEnv+" is required")
	}

	self, err := account.ParsePrincipal(opts.Self)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --self", err)
	}
	controllers := make([]account.Principal, 0, len(opts.Controllers))
	for _, text := range opts.Controllers {
		p, err := account.ParsePrincipal(text)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid --controller %q", text), err)
		}
		controllers = append(controllers, p)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	svcOpts := []swap.Option{swap.WithControllers(controllers...)}

	var st *store.Store
	if opts.Database != "" {
		slog.Info("opening database", "path", opts.Database)
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		svcOpts = append(svcOpts, swap.WithRegistry(registry.NewDurable(st)), swap.WithConfigStore(st))
	} else {
		slog.Warn("no --db given, state is kept in memory")
	}

	cfg, err := resolveSettings(ctx, opts, st)
	if err != nil {
		return err
	}
	ids, err := resolveServiceIDs(ctx, opts, st)
	if err != nil {
		return err
	}
	svcOpts = append(svcOpts, swap.WithSettings(cfg), swap.WithServiceIDs(ids))
	if !ids.Active() {
		slog.Warn("service identities are not fully configured, the swap is inactive")
	}

	connector := opts.Connector
	if connector == nil {
		conn, err := remote.Dial(remote.Config{
			URL:            opts.NATSURL,
			Name:           "tokenswap",
			ReconnectWait:  2 * time.Second,
			MaxReconnects:  -1,
			ConnectTimeout: 5 * time.Second,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to NATS", err)
		}
		defer func() {
			if drainErr := conn.Drain(); drainErr != nil {
				slog.Error("error draining NATS connection", "error", drainErr)
			}
		}()
		slog.Info("connected to NATS", "url", conn.ConnectedUrl())
		connector = remote.NewClient(conn,
			remote.WithSubjectPrefix(opts.SubjectPrefix),
			remote.WithTimeout(opts.RequestTimeout))
	}

	svc := swap.New(self, connector, svcOpts...)

	if !opts.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	routerCfg := api.Config{JWTSecret: []byte(secret)}
	if st != nil {
		routerCfg.Health = st
	}
	srv := &http.Server{
		Handler:           api.NewRouter(svc, routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	addr := ln.Addr().String()
	logger.Info("swap starting", "self", self, "listen", addr, "active", ids.Active())
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", addr)
	if opts.Ready != nil {
		opts.Ready(addr)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancelShutdown()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	slog.Info("swap stopped gracefully")
	return nil
}

// resolveSettings picks the --settings file, then the stored settings,
// then the defaults. A file is persisted so later restarts keep it.
func resolveSettings(ctx context.Context, opts *ServeOptions, st *store.Store) (settings.Settings, error) {
	if opts.SettingsFile != "" {
		cfg, err := settings.Load(opts.SettingsFile)
		if err != nil {
			return settings.Settings{}, WrapExitError(ExitCommandError, "failed to load settings", err)
		}
		if st != nil {
			if err := st.SaveSettings(ctx, cfg); err != nil {
				return settings.Settings{}, WrapExitError(ExitCommandError, "failed to persist settings", err)
			}
		}
		slog.Info("settings loaded", "file", opts.SettingsFile)
		return cfg, nil
	}

	if st != nil {
		cfg, found, err := st.LoadSettings(ctx)
		if err != nil {
			return settings.Settings{}, WrapExitError(ExitCommandError, "failed to read stored settings", err)
		}
		if found {
			slog.Debug("using stored settings")
			return cfg, nil
		}
	}
	return settings.Default(), nil
}

// resolveServiceIDs overlays the identity flags onto the stored identities.
func resolveServiceIDs(ctx context.Context, opts *ServeOptions, st *store.Store) (ledger.ServiceIDs, error) {
	var ids ledger.ServiceIDs
	if st != nil {
		stored, found, err := st.LoadServiceIDs(ctx)
		if err != nil {
			return ledger.ServiceIDs{}, WrapExitError(ExitCommandError, "failed to read stored service ids", err)
		}
		if found {
			ids = stored
		}
	}

	overrides := []struct {
		flag string
		text string
		dst  *account.Principal
	}{
		{"old-ledger", opts.OldLedger, &ids.OldLedger},
		{"new-ledger", opts.NewLedger, &ids.NewLedger},
		{"old-indexer", opts.OldIndexer, &ids.OldIndexer},
		{"new-indexer", opts.NewIndexer, &ids.NewIndexer},
	}
	changed := false
	for _, o := range overrides {
		if o.text == "" {
			continue
		}
		p, err := account.ParsePrincipal(o.text)
		if err != nil {
			return ledger.ServiceIDs{}, WrapExitError(ExitCommandError, "invalid --"+o.flag, err)
		}
		*o.dst = p
		changed = true
	}

	if changed && st != nil {
		if err := st.SaveServiceIDs(ctx, ids); err != nil {
			return ledger.ServiceIDs{}, WrapExitError(ExitCommandError, "failed to persist service ids", err)
		}
	}
	return ids, nil
}
