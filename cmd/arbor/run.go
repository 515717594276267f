package main

import (
	"fmt"
	"os"

	"github.com/arborlabs/arbor/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <tree-file>",
	Short: "Evaluate a tree file",
	Long: `Evaluates the given tree file against the selected oracle.

Oracles:
  console   interactive: you judge decisions from the terminal (default)
  scripted  deterministic: a YAML script file plays the oracle (--script)
  judge     a subprocess speaks the newline-delimited JSON judge protocol (--judge)`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		oracle, _ := cmd.Flags().GetString("oracle")
		script, _ := cmd.Flags().GetString("script")
		judge, _ := cmd.Flags().GetString("judge")
		quiet, _ := cmd.Flags().GetBool("quiet")
		maxDepth, _ := cmd.Flags().GetInt("max-depth")
		transcripts, _ := cmd.Flags().GetBool("transcripts")
		redisAddr, _ := cmd.Flags().GetString("redis")
		redisPassword, _ := cmd.Flags().GetString("redis-password")
		redisDB, _ := cmd.Flags().GetInt("redis-db")
		encryptKey, _ := cmd.Flags().GetString("encrypt-key")
		fallbackKeys, _ := cmd.Flags().GetStringSlice("fallback-key")
		maskPatterns, _ := cmd.Flags().GetStringSlice("mask")

		// Selecting a script or judge file implies the matching oracle.
		if !cmd.Flags().Changed("oracle") {
			switch {
			case script != "":
				oracle = "scripted"
			case judge != "":
				oracle = "judge"
			}
		}

		err := cli.Execute(cli.RunOptions{
			TreePath:      args[0],
			Oracle:        oracle,
			ScriptPath:    script,
			JudgePath:     judge,
			Transcripts:   transcripts,
			RedisAddr:     redisAddr,
			RedisPassword: redisPassword,
			RedisDB:       redisDB,
			EncryptKey:    encryptKey,
			FallbackKeys:  fallbackKeys,
			MaskPatterns:  maskPatterns,
			MaxDepth:      maxDepth,
			Debug:         debug,
			Quiet:         quiet,
		})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("oracle", "console", "Oracle transport: console, scripted or judge")
	runCmd.Flags().String("script", "", "Session script file for the scripted oracle")
	runCmd.Flags().String("judge", "", "Judge process config file for the judge oracle")
	runCmd.Flags().Bool("quiet", false, "Suppress system messages and lint findings")
	runCmd.Flags().Int("max-depth", 0, "Override the maximum decision nesting depth")
	runCmd.Flags().Bool("transcripts", false, "Record per-session transcripts in memory")
	runCmd.Flags().String("redis", "", "Redis address for transcript persistence (implies --transcripts)")
	runCmd.Flags().String("redis-password", "", "Redis password")
	runCmd.Flags().Int("redis-db", 0, "Redis database number")
	runCmd.Flags().String("encrypt-key", "", "Hex-encoded AES-256 key for transcript encryption")
	runCmd.Flags().StringSlice("fallback-key", nil, "Hex-encoded fallback decryption keys (repeatable)")
	runCmd.Flags().StringSlice("mask", nil, "Regex patterns masked out of transcripts (repeatable)")
}
