package cli

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/api"
)

// PrincipalInfo describes a decoded principal.
type PrincipalInfo struct {
	Principal   string `json:"principal"`
	Hex         string `json:"hex"`
	Anonymous   bool   `json:"anonymous"`
	Placeholder bool   `json:"placeholder"`
}

// String renders the text output.
func (p PrincipalInfo) String() string {
	return fmt.Sprintf("principal:   %s\nhex:         %s\nanonymous:   %t\nplaceholder: %t",
		p.Principal, p.Hex, p.Anonymous, p.Placeholder)
}

// NewPrincipalCommand creates the principal command group.
func NewPrincipalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "principal",
		Short: "Convert principals and issue caller tokens",
	}

	cmd.AddCommand(newPrincipalDecodeCommand(rootOpts))
	cmd.AddCommand(newPrincipalEncodeCommand(rootOpts))
	cmd.AddCommand(newPrincipalTokenCommand(rootOpts))

	return cmd
}

func newPrincipalDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "decode <principal>",
		Short:         "Decode a textual principal to its raw bytes",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			p, err := account.ParsePrincipal(args[0])
			if err != nil {
				_ = formatter.Error(ErrCodeInvalidInput, err.Error(), nil)
				return WrapExitError(ExitFailure, "invalid principal", err)
			}
			return formatter.Success(describePrincipal(p))
		},
	}
}

func newPrincipalEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "encode <hex>",
		Short:         "Encode raw principal bytes in textual form",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			raw, err := hex.DecodeString(args[0])
			if err == nil && len(raw) > account.MaxPrincipalLen {
				err = fmt.Errorf("principal is %d bytes, at most %d allowed", len(raw), account.MaxPrincipalLen)
			}
			if err != nil {
				_ = formatter.Error(ErrCodeInvalidInput, err.Error(), nil)
				return WrapExitError(ExitFailure, "invalid principal bytes", err)
			}
			return formatter.Success(describePrincipal(account.PrincipalFromBytes(raw)))
		},
	}
}

func newPrincipalTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <principal>",
		Short: "Issue a bearer token that identifies a caller",
		Long: `Issue an HS256 bearer token whose subject is the given principal.

The secret must match the one the swap service was started with.

Example:
  tokenswap principal token r7inp-6aaaa-aaaaa-aaabq-cai --jwt-secret s3cret --ttl 1h`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			if secret == "" {
				secret = os.Getenv(jwtSecretEnv)
			}
			if secret == "" {
				return NewExitError(ExitCommandError, "--jwt-secret or $"+jwtSecretEnv+" is required")
			}

			p, err := account.ParsePrincipal(args[0])
			if err != nil {
				_ = formatter.Error(ErrCodeInvalidInput, err.Error(), nil)
				return WrapExitError(ExitFailure, "invalid principal", err)
			}
			if p.IsAnonymous() || p.IsPlaceholder() {
				err := fmt.Errorf("%s cannot authenticate", p)
				_ = formatter.Error(ErrCodeInvalidInput, err.Error(), nil)
				return WrapExitError(ExitFailure, "invalid principal", err)
			}

			token, err := api.IssueToken([]byte(secret), p, ttl, time.Now())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to sign token", err)
			}
			if formatter.Format == "json" {
				return formatter.Success(map[string]string{"principal": p.String(), "token": token})
			}
			return formatter.Success(token)
		},
	}

	cmd.Flags().StringVar(&secret, "jwt-secret", "", "HS256 secret (default $"+jwtSecretEnv+")")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for no expiry)")

	return cmd
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func describePrincipal(p account.Principal) PrincipalInfo {
	return PrincipalInfo{
		Principal:   p.String(),
		Hex:         hex.EncodeToString(p.Bytes()),
		Anonymous:   p.IsAnonymous(),
		Placeholder: p.IsPlaceholder(),
	}
}
