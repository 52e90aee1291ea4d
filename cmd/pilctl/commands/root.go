// Package commands реализует команды pilctl
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arzzra/phone_integration/pkg/config"
)

type rootOptions struct {
	configFile string
}

// NewRootCommand создает корневую команду pilctl
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "pilctl",
		Short: "Phone integration layer tooling",
		Long: `pilctl checks phone integration configuration and runs scripted call
flows against the in-memory engine, printing every lifecycle event.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file path (YAML)")
	rootCmd.AddCommand(newValidateCommand(opts))
	rootCmd.AddCommand(newSimulateCommand(opts))

	return rootCmd
}

// Execute запускает pilctl
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
