package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/router/internal/core/header"
	"firestige.xyz/router/internal/route"
)

var routesCmd = &cobra.Command{
	Use:   "routes <routing-table>",
	Short: "Print a routing table in lookup order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRoutes(args[0], cmd.OutOrStdout())
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <routing-table> <address>...",
	Short: "Show the route chosen for each address",
	Long: `Show the route the router would choose for each destination address.

Examples:
  router lookup rtable0.txt 192.168.1.7 10.0.0.1`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLookup(args[0], args[1:], cmd.OutOrStdout())
	},
}

func runRoutes(path string, w io.Writer) error {
	table, err := route.Load(path)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PREFIX\tNEXT HOP\tMASK\tIFACE")
	for _, e := range table.Entries() {
		fmt.Fprintf(tw, "%s/%d\t%s\t%s\t%d\n",
			header.FormatAddr(e.Prefix), e.MaskLen(),
			header.FormatAddr(e.NextHop), header.FormatAddr(e.Mask), e.Interface)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d route(s)\n", table.Len())
	return nil
}

func runLookup(path string, addrs []string, w io.Writer) error {
	table, err := route.Load(path)
	if err != nil {
		return err
	}

	for _, s := range addrs {
		addr, err := header.ParseAddr(s)
		if err != nil {
			return err
		}
		if e, ok := table.LongestPrefixMatch(addr); ok {
			fmt.Fprintf(w, "%s: %s\n", s, e)
		} else {
			fmt.Fprintf(w, "%s: no route (destination unreachable)\n", s)
		}
	}
	return nil
}
