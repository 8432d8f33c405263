package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/router/internal/config"
	"firestige.xyz/router/internal/route"
)

var validateCmd = &cobra.Command{
	Use:   "validate [routing-table] [interface...]",
	Short: "Validate configuration and routing table",
	Long: `Validate the configuration and the routing table it names without opening
any interface.

Examples:
  router validate -c /etc/router/router.yml
  router validate rtable0.txt r-0 r-1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(configFile, args, cmd.OutOrStdout())
	},
}

func runValidate(path string, args []string, w io.Writer) error {
	cfg, err := config.Load(path, args...)
	if err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}

	table, err := route.Load(cfg.RoutingTable)
	if err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}
	if err := table.CheckInterfaces(len(cfg.Interfaces)); err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}

	fmt.Fprintf(w, "VALID: %d route(s), %d interface(s)\n", table.Len(), len(cfg.Interfaces))
	return nil
}
