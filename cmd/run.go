package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/router/internal/config"
	"firestige.xyz/router/internal/daemon"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [routing-table] [interface...]",
	Short: "Run the router in foreground",
	Long: `Run the router in foreground.

The router will:
  1. Load configuration (file, environment, then positional arguments)
  2. Initialize logging and metrics
  3. Load the routing table
  4. Open every interface and start forwarding
  5. Stop gracefully on SIGTERM or SIGINT

Examples:
  router run rtable0.txt r-0 r-1 rr-0-1
  router run -c /etc/router/router.yml
  router run -c /etc/router/router.yml rtable1.txt`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runRouter(args); err != nil {
			exitWithError("router failed", err)
		}
	},
}

var pidFile string

func init() {
	runCmd.Flags().StringVarP(&pidFile, "pidfile", "p", "",
		"PID file path (empty: none)")
}

func runRouter(args []string) error {
	cfg, err := config.Load(configFile, args...)
	if err != nil {
		return err
	}

	d := daemon.New(cfg, pidFile, daemon.OpenAFPacket)
	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start router: %w", err)
	}

	// Run main loop (blocks until shutdown)
	return d.Run()
}
