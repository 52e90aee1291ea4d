package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arzzra/phone_integration/pkg/config"
	"github.com/arzzra/phone_integration/pkg/logger"
)

func newValidateCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and print the effective values",
		Long: `Load the configuration file and PIL_* environment overrides, check the
credentials and logger settings, then print the effective configuration
with the password masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			return runValidate(cmd, cfg)
		},
	}
}

func runValidate(cmd *cobra.Command, cfg *config.Config) error {
	if err := cfg.Auth.Validate(); err != nil {
		return fmt.Errorf("invalid auth: %w", err)
	}
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("invalid log config: %w", err)
	}
	uri, err := cfg.Auth.RegistrarURI()
	if err != nil {
		return err
	}

	data, err := config.Dump(cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# registrar: %s\n", uri.String())
	_, err = out.Write(data)
	return err
}
