package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search your conversations across all sessions",
	Long: `Search every session of the current user for matching exchanges,
most relevant first.

Examples:
  parley search "database migration"
  parley search --limit 3 deploy`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum matches to show")
}

func runSearch(cmd *cobra.Command, args []string) error {
	mgr, _, err := openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	query := strings.Join(args, " ")
	entries, err := mgr.SearchConversations(context.Background(), userID, query, searchLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	for i, e := range entries {
		fmt.Printf("%d. [%s] (%s)\n", i+1, e.Timestamp.Format("2006-01-02 15:04"), e.SessionID)
		fmt.Printf("   > %s\n", e.UserMessage)
		fmt.Printf("   < %s\n\n", e.AgentResponse)
	}
	return nil
}
