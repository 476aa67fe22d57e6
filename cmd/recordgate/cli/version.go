package cli

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faucetdb/recordgate/internal/config"
	"github.com/faucetdb/recordgate/internal/store"
)

func newVersionCmd(version, commit, date string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Long: `Print the build stamp together with the record store drivers compiled
into this binary and the store and counter backends the current configuration
selects.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version":    version,
				"commit":     commit,
				"built":      date,
				"go_version": runtime.Version(),
				"platform":   runtime.GOOS + "/" + runtime.GOARCH,
				"drivers":    strings.Join(store.AvailableDrivers(), ","),
			}

			// An unreadable config only drops the runtime fields.
			if v, err := loadViper(); err == nil {
				if cfg, err := config.Load(v); err == nil {
					info["store"] = cfg.Store.Driver
					info["ratelimit"] = cfg.RateLimit.Backend
				}
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "recordgate %s (%s, built %s)\n", version, commit, date)
			fmt.Fprintf(out, "  go:        %s %s\n", info["go_version"], info["platform"])
			fmt.Fprintf(out, "  drivers:   %s\n", info["drivers"])
			if info["store"] != "" {
				fmt.Fprintf(out, "  store:     %s\n", info["store"])
				fmt.Fprintf(out, "  ratelimit: %s\n", info["ratelimit"])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	return cmd
}
