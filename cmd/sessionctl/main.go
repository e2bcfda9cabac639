// Command sessionctl inspects sessions from outside a game: it searches the
// LAN and the matchmaking directory and queries advertised servers.
package main

import (
	"fmt"
	"os"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var version = "dev"

type globals struct {
	configFile string
	logLevel   string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "sessionctl",
		Short: "Search for and query game sessions",
		Long: `sessionctl searches for game sessions the way a game client does.

It searches the LAN with the discovery beacon, searches the lobby and
server directory of the redis backend, and queries advertised servers
over A2S.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&g.configFile, "config", "", "path to a sessiond config file, json or toml")
	cmd.PersistentFlags().StringVar(&g.logLevel, "loglevel", "warn", "log level for the logger")

	cmd.AddCommand(
		lanSearchCmd(g),
		searchCmd(g),
		queryCmd(),
		versionCmd(),
	)

	return cmd
}

// load returns the configuration and a logger writing to stderr.
func (g *globals) load() (*config.Config, *logrus.Entry, error) {
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return nil, nil, err
	}

	l := logrus.New()
	l.Out = os.Stderr

	ll, err := logrus.ParseLevel(g.logLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", g.logLevel, err)
	}

	l.SetLevel(ll)

	return cfg, logrus.NewEntry(l), nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
