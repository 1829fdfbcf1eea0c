package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "baton",
	Short: "Baton is a conversation-routing engine for multi-agent swarms",
	Long: `Baton routes conversations between agents, humans and tools.
Flocks are declared in a YAML file: participants, hand-off rules,
fallback policies and the manager strategy.`,
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
	rootCmd.PersistentFlags().StringP("flock", "f", "flock.yaml", "Path to the flock file")
	rootCmd.PersistentFlags().String("redis", "", "Redis address for durable sessions (empty = in-memory)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
}
