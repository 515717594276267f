package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/arborlabs/arbor/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor evaluates decision trees judged by an external oracle",
	Long: `Arbor executes node trees that mix deterministic sequences with
decision points. Each decision opens a session with an oracle (an
interactive console, a scripted file, a judge subprocess, or a remote
client over HTTP/MCP) which steers evaluation through "do" tool calls.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging to stderr")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
}

// resolveLogLevel maps the persistent logging flags to a slog level.
// --debug wins over --log-level.
func resolveLogLevel(cmd *cobra.Command) (slog.Level, error) {
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		return slog.LevelDebug, nil
	}
	name, _ := cmd.Flags().GetString("log-level")
	return logging.ParseLevel(name)
}
