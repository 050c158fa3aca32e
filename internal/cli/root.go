package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/service-ticket/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "ticketctl",
	Short: "Administrative tool for the ticket service",
	Long: `ticketctl runs the ticket service's offline operations against the
configured store: schema migrations, CSV export and import, the automated
status sweep and user provisioning.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !needsConfig(cmd) {
			return nil
		}
		var err error
		if cfgFile != "" {
			cfg, err = config.LoadFile(cfgFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ticketctl %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults to APP_CONFIG_FILE)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(automateCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(transitionsCmd)
	rootCmd.AddCommand(versionCmd)
}

func needsConfig(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", "version", "transitions":
		return false
	}
	return true
}

func SetVersion(v string) {
	version = v
}

func Execute() error {
	return rootCmd.Execute()
}

func Root() *cobra.Command {
	return rootCmd
}
