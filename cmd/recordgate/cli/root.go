package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/faucetdb/recordgate/internal/config"
)

var (
	cfgFile    string
	appVersion string // set in Execute, reported by /health and the OpenAPI document
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recordgate",
		Short: "Record API behind a token-verifying gateway",
		Long: `recordgate serves a small record-management API. Every request passes an
edge authorizer that verifies signed bearer tokens, a gateway that resolves the
caller and enforces a per-caller request budget, and an error mapper that turns
every failure into a fixed response vocabulary.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultFileName+")")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAuthorizeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

// loadViper reads the config file and environment. Flags are bound by the
// caller before Load.
func loadViper() (*viper.Viper, error) {
	return config.NewViper(cfgFile)
}
