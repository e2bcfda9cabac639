package main

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/proto/a2s"
	"github.com/spf13/cobra"
)

func queryCmd() *cobra.Command {
	var (
		rules   bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query ADDR",
		Short: "Query an advertised server over A2S",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			c := &a2s.Client{Timeout: timeout}

			info, err := c.QueryInfo(ctx, args[0])
			if err != nil {
				return fmt.Errorf("error querying info: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush()

			fmt.Fprintf(tw, "name\t%s\n", info.ServerName)
			fmt.Fprintf(tw, "map\t%s\n", info.Map)
			fmt.Fprintf(tw, "game\t%s\n", info.GameName)
			fmt.Fprintf(tw, "app\t%d\n", info.AppID)
			fmt.Fprintf(tw, "players\t%d/%d\n", info.Players, info.MaxPlayers)
			fmt.Fprintf(tw, "ping\t%s\n", info.Ping.Round(time.Millisecond))

			if !rules {
				return nil
			}

			kv, err := c.QueryRules(ctx, args[0])
			if err != nil {
				return fmt.Errorf("error querying rules: %w", err)
			}

			keys := make([]string, 0, len(kv))
			for k := range kv {
				keys = append(keys, k)
			}

			sort.Strings(keys)

			for _, k := range keys {
				fmt.Fprintf(tw, "rule %s\t%s\n", k, kv[k])
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&rules, "rules", true, "also query the server rules")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "query timeout")

	return cmd
}
