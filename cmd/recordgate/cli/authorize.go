package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/faucetdb/recordgate/internal/config"
	"github.com/faucetdb/recordgate/internal/model"
)

func newAuthorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Evaluate one authorizer event read from stdin",
		Long: `Read an authorizer event ({"type", "authorizationToken", "methodArn"}) as JSON
from stdin and print the Allow or Deny policy document to stdout. The command
only fails on unreadable input; rejected credentials produce a Deny document.`,
		Example: `  echo '{"type":"TOKEN","authorizationToken":"Bearer eyJ...","methodArn":"arn:aws:execute-api:us-east-1:123:api/prod/GET/records"}' | recordgate authorize`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadViper()
			if err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			// Diagnostics go to stderr so stdout carries only the document.
			logger := newLogger(cfg.Logging, cmd.ErrOrStderr())
			return runAuthorize(cmd.InOrStdin(), cmd.OutOrStdout(), cfg.Auth, logger)
		},
	}
	return cmd
}

func runAuthorize(in io.Reader, out io.Writer, auth config.AuthConfig, logger *slog.Logger) error {
	var req model.AuthorizerRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("read authorizer event: %w", err)
	}

	resp := newAuthorizer(auth, logger).Authorize(cmdContext(), req)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
