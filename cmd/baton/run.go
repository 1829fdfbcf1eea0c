package main

import (
	"github.com/spf13/cobra"

	"github.com/batonlabs/baton/internal/presentation/tui"
	"github.com/batonlabs/baton/pkg/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a flock interactively",
	Long: `Loads the flock file and drives the session in the terminal.
Agent turns are printed as they happen; when routing reaches the human
seat, the prompt waits for your input (empty input skips the gate,
"exit" or "quit" leaves the session).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		headless, _ := cmd.Flags().GetBool("headless")
		sessionID, _ := cmd.Flags().GetString("session")

		logger := getLogger(cmd)

		orch, _, err := loadOrchestrator(cmd)
		if err != nil {
			return err
		}

		store, _, cleanup, err := getStore(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		r := runner.NewRunner()
		r.Logger = logger
		r.Store = store
		r.Headless = headless
		if !headless {
			tui.PrintBanner()
			r.Renderer = tui.NewRenderer()
		}

		return r.Run(orch, nil, sessionID)
	},
}

func init() {
	runCmd.Flags().String("session", "", "Session ID (generated when omitted)")
	runCmd.Flags().Bool("headless", false, "Plain output, no banner or markdown rendering")

	rootCmd.AddCommand(runCmd)

	// Default action: `baton` behaves like `baton run`.
	rootCmd.RunE = runCmd.RunE
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
}
