package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored sessions",
	Long: `Inspect and manage persisted sessions. Only useful with a durable
backend (--redis); the in-memory store does not outlive the process.`,
}

var sessionLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List stored session IDs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, cleanup, err := getStore(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		ids, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("no sessions found")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:     "inspect <session-id>",
	Aliases: []string{"show"},
	Short:   "Print a stored session as JSON",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, cleanup, err := getStore(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		state, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:     "rm <session-id>",
	Aliases: []string{"delete"},
	Short:   "Delete a stored session",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, cleanup, err := getStore(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := store.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("session %s deleted\n", args[0])
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	rootCmd.AddCommand(sessionCmd)
}
