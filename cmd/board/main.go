package main

import (
	"fmt"
	"os"

	"github.com/alfredjeanlab/commentfeed/internal/client"
	"github.com/alfredjeanlab/commentfeed/internal/config"
	"github.com/alfredjeanlab/commentfeed/internal/ui"
	"github.com/spf13/cobra"
)

var (
	httpURL      string
	serverAddr   string
	token        string
	natsURL      string
	transport    string
	notifierMode string
	remotesPath  string
	jsonOutput   bool

	boardClient client.RemoteStore
)

// endpoint is the resolved set of addresses a client command talks to.
type endpoint struct {
	HTTPURL  string
	GRPCAddr string
	Token    string
	NATSURL  string
}

// resolveEndpoint fills each address from, in order: an explicit flag, the
// environment, the active remote and the built-in default.
func resolveEndpoint(cmd *cobra.Command, remotes *config.Remotes, getenv func(string) string) endpoint {
	active, _ := remotes.ActiveRemote()
	pick := func(flag, value, env, fromRemote, fallback string) string {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			return value
		}
		if v := getenv(env); v != "" {
			return v
		}
		if fromRemote != "" {
			return fromRemote
		}
		return fallback
	}
	return endpoint{
		HTTPURL:  pick("url", httpURL, "BOARD_HTTP_URL", active.URL, "http://localhost:8080"),
		GRPCAddr: pick("server", serverAddr, "BOARD_SERVER", active.GRPCAddr, "localhost:9090"),
		Token:    pick("token", token, "BOARD_TOKEN", active.Token, ""),
		NATSURL:  pick("nats", natsURL, "BOARD_NATS_URL", active.NATSURL, ""),
	}
}

func newRemoteStore(ep endpoint) (client.RemoteStore, error) {
	switch transport {
	case "http":
		return client.NewHTTPClient(ep.HTTPURL, ep.Token), nil
	case "grpc":
		c, err := client.NewGRPCClient(ep.GRPCAddr, ep.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to server: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
	}
}

func loadRemotes() (*config.Remotes, error) {
	path := remotesPath
	if path == "" {
		p, err := config.DefaultRemotesPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return config.LoadRemotes(path)
}

// currentEndpoint is set by the root pre-run for commands that need it.
var currentEndpoint endpoint

var rootCmd = &cobra.Command{
	Use:           "board <command>",
	Short:         "CLI client and server for the comment board",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		remotes, err := loadRemotes()
		if err != nil {
			return err
		}
		currentEndpoint = resolveEndpoint(cmd, remotes, os.Getenv)
		boardClient, err = newRemoteStore(currentEndpoint)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if boardClient != nil {
			boardClient.Close()
		}
	},
}

// skipClient overrides the root pre-run for commands that never dial.
func skipClient(cmd *cobra.Command, args []string) error { return nil }

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "url", "", "HTTP server URL (default from remote or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "", "gRPC server address (default from remote or localhost:9090)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token")
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats", "", "NATS URL for --notifier nats")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().StringVar(&notifierMode, "notifier", "auto", "insert notifications: auto, stream or nats")
	rootCmd.PersistentFlags().StringVar(&remotesPath, "remotes", "", "remotes file (default ~/.local/state/commentfeed/remotes.toml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "comments", Title: "Comments:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(deleteCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError("Error: "+err.Error()))
		os.Exit(1)
	}
}
