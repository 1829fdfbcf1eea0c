package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/batonlabs/baton"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the baton version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("baton %s\n", baton.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
