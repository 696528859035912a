package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	historySession string
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show conversation history",
	Long: `Show recent exchanges, oldest first. With --session, only that
thread; without, the most recent exchanges across all of your sessions.

Examples:
  parley history --session planning
  parley history --limit 20`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historySession, "session", "s", "", "limit to one session")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "maximum entries to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	mgr, _, err := openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	entries, err := mgr.History(context.Background(), userID, historySession, historyLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No conversation history.")
		return nil
	}

	for _, e := range entries {
		fmt.Printf("[%s] (%s) %s\n", e.Timestamp.Format("2006-01-02 15:04"), e.SessionID, e.AgentType)
		fmt.Printf("  > %s\n", e.UserMessage)
		fmt.Printf("  < %s\n\n", e.AgentResponse)
	}
	return nil
}
