package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tokenswap/internal/settings"
)

// NewSettingsCommand creates the settings command group.
func NewSettingsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and validate swap settings files",
	}

	cmd.AddCommand(newSettingsValidateCommand(rootOpts))
	cmd.AddCommand(newSettingsDefaultsCommand(rootOpts))

	return cmd
}

func newSettingsValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a settings file and print the resolved settings",
		Long: `Validate a settings file against the settings schema.

YAML, JSON and CUE files are accepted; the format follows the extension.
Fields absent from the file take their default, and the resolved settings
are printed on success.

Exit codes:
  0 - Settings are valid
  1 - Settings are invalid
  2 - Command error (unreadable file, unknown extension)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsValidate(rootOpts, args[0], cmd)
		},
	}
}

func newSettingsDefaultsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "defaults",
		Short:         "Print the settings a fresh deployment starts with",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return outputSettings(formatter, settings.Default())
		},
	}
}

func runSettingsValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := settings.FormatFromPath(path); err != nil {
		_ = formatter.Error(ErrCodeInvalidInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "unsupported settings file", err)
	}

	formatter.VerboseLog("Validating %s", path)
	cfg, err := settings.Load(path)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidSettings, err.Error(), map[string]string{"file": path})
		return WrapExitError(ExitFailure, "settings are invalid", err)
	}

	return outputSettings(formatter, cfg)
}

// outputSettings prints cfg as its JSON document, or as YAML in text mode.
func outputSettings(formatter *OutputFormatter, cfg settings.Settings) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	if formatter.Format == "json" {
		return formatter.Success(doc)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("render settings: %w", err)
	}
	_, err = formatter.Writer.Write(out)
	return err
}
