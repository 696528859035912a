package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parley-oss/parley/internal/ingest"
)

var (
	knowledgeSource      string
	knowledgeSearchLimit int
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the knowledge base",
	Long: `Add, search and maintain the knowledge base used for retrieval.

Examples:
  parley knowledge add "Our API rate limit is 100 req/min" --source runbook
  parley knowledge ingest ./docs/handbook.md
  parley knowledge ingest https://example.com/faq.html
  parley knowledge search "rate limit"
  parley knowledge delete <id>
  parley knowledge purge`,
}

var knowledgeAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Add a piece of knowledge directly",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runKnowledgeAdd,
}

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runKnowledgeSearch,
}

var knowledgeIngestCmd = &cobra.Command{
	Use:   "ingest <file-or-url>",
	Short: "Chunk and store a document or web page",
	Args:  cobra.ExactArgs(1),
	RunE:  runKnowledgeIngest,
}

var knowledgeDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a knowledge document by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runKnowledgeDelete,
}

var knowledgePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete the entire knowledge base",
	RunE:  runKnowledgePurge,
}

func init() {
	knowledgeAddCmd.Flags().StringVar(&knowledgeSource, "source", "manual", "provenance label for the content")
	knowledgeIngestCmd.Flags().StringVar(&knowledgeSource, "source", "", "provenance label (defaults to filename or URL)")
	knowledgeSearchCmd.Flags().IntVarP(&knowledgeSearchLimit, "limit", "n", 5, "maximum matches to show")

	knowledgeCmd.AddCommand(knowledgeAddCmd)
	knowledgeCmd.AddCommand(knowledgeSearchCmd)
	knowledgeCmd.AddCommand(knowledgeIngestCmd)
	knowledgeCmd.AddCommand(knowledgeDeleteCmd)
	knowledgeCmd.AddCommand(knowledgePurgeCmd)
}

func runKnowledgeAdd(cmd *cobra.Command, args []string) error {
	mgr, _, err := openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	content := strings.Join(args, " ")
	id, err := mgr.AddKnowledge(context.Background(), content, knowledgeSource, nil)
	if err != nil {
		return err
	}

	fmt.Printf("Stored %s\n", shortID(id))
	return nil
}

func runKnowledgeSearch(cmd *cobra.Command, args []string) error {
	mgr, _, err := openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	query := strings.Join(args, " ")
	results, err := mgr.SearchKnowledge(context.Background(), query, knowledgeSearchLimit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	for i, r := range results {
		content := r.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		fmt.Printf("%d. %s  (source: %s, relevance: %.2f)\n", i+1, shortID(r.ID), r.Source, r.Relevance)
		fmt.Printf("   %s\n\n", content)
	}
	return nil
}

func runKnowledgeIngest(cmd *cobra.Command, args []string) error {
	mgr, cfg, err := openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	ctx := context.Background()
	processor := ingest.NewProcessor(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap, newLogger(cfg))

	target := args[0]
	var res *ingest.Result
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		res, err = processor.ProcessURL(ctx, target, knowledgeSource)
	} else {
		res, err = processor.ProcessFile(target, knowledgeSource)
	}
	if err != nil {
		return err
	}

	ids, err := processor.Store(ctx, mgr.Knowledge(), res)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %s: %d chunks stored.\n", res.Source, len(ids))
	return nil
}

func runKnowledgeDelete(cmd *cobra.Command, args []string) error {
	mgr, _, err := openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	removed, err := mgr.DeleteKnowledge(context.Background(), args[0])
	if err != nil {
		return err
	}
	if !removed {
		fmt.Println("No document with that ID.")
		return nil
	}
	fmt.Println("Deleted.")
	return nil
}

func runKnowledgePurge(cmd *cobra.Command, args []string) error {
	mgr, _, err := openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	if err := mgr.PurgeKnowledge(context.Background()); err != nil {
		return err
	}
	fmt.Println("Knowledge base purged.")
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
