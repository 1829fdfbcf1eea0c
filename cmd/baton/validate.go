package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a flock file without running it",
	Long: `Loads the flock file and runs the full static validation:
unknown hand-off targets, missing responders, malformed condition
expressions and manager/human wiring are all reported here.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("flock")

		_, components, err := loadOrchestrator(cmd)
		if err != nil {
			return err
		}

		fmt.Printf("%s is valid: %d participants, initial %q\n",
			path, components.Roster.Len(), components.Initial)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
