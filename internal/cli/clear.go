package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	clearSession string
	clearAll     bool
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete conversation history",
	Long: `Delete one session's history, or all of the current user's
history with --all.

Examples:
  parley clear --session planning
  parley clear --all`,
	RunE: runClear,
}

func init() {
	clearCmd.Flags().StringVarP(&clearSession, "session", "s", "", "session to clear")
	clearCmd.Flags().BoolVar(&clearAll, "all", false, "clear every session of the current user")
}

func runClear(cmd *cobra.Command, args []string) error {
	if clearSession == "" && !clearAll {
		return fmt.Errorf("specify --session <id> or --all")
	}

	mgr, _, err := openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	removed, err := mgr.ClearConversation(context.Background(), userID, clearSession)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Println("Nothing to clear.")
		return nil
	}

	if clearSession != "" {
		fmt.Printf("Cleared session %s.\n", clearSession)
	} else {
		fmt.Printf("Cleared all sessions for %s.\n", userID)
	}
	return nil
}
