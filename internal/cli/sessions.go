package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List your conversation sessions",
	Long:  "List every session of the current user, most recently active first.",
	RunE:  runSessions,
}

func runSessions(cmd *cobra.Command, args []string) error {
	mgr, _, err := openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	threads, err := mgr.ListThreads(context.Background(), userID)
	if err != nil {
		return err
	}
	if len(threads) == 0 {
		fmt.Println("No sessions.")
		return nil
	}

	fmt.Printf("%-36s  %-16s  %-16s  %s\n", "SESSION", "STARTED", "LAST ACTIVE", "MESSAGES")
	for _, t := range threads {
		fmt.Printf("%-36s  %-16s  %-16s  %d\n",
			t.SessionID,
			t.StartTime.Format("2006-01-02 15:04"),
			t.LastTime.Format("2006-01-02 15:04"),
			t.MessageCount)
	}
	return nil
}
