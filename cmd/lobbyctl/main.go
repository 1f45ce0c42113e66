// Command lobbyctl drives a lobby session from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rickgao/lobby-client/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.teardown()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "lobbyctl",
		Short:         "Lobby session client",
		Long:          `lobbyctl opens a lobby session and runs party, friends, chat and matchmaking operations.`,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to YAML config file")
	flags.StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "dotenv files loaded before the config")
	flags.StringVar(&a.token, "token", "", "access token (overrides config and LOBBY_TOKEN)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (overrides config)")

	root.AddCommand(
		newVersionCmd(),
		newListenCmd(a),
		newPartyCmd(a),
		newChatCmd(a),
		newFriendsCmd(a),
		newNotificationsCmd(a),
		newMatchmakeCmd(a),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lobbyctl %s\n", version.String())
		},
	}
}

// printJSON writes v as one line of JSON.
func printJSON(cmd *cobra.Command, v any) error {
	return json.NewEncoder(cmd.OutOrStdout()).Encode(v)
}
