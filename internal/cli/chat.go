package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parley-oss/parley/internal/agent"
	"github.com/parley-oss/parley/internal/provider/anthropic"
)

var (
	chatSession string
	chatSystem  string
	chatName    string
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send one message to a memory-backed agent",
	Long: `Send a message to the agent. The agent sees this thread's history,
related exchanges from your other sessions, and matching knowledge, and the
exchange is recorded afterwards.

Examples:
  parley chat "what did we decide about the schema?"
  parley chat --session planning "recap our last discussion"
  parley chat --user alice --session s1 "hello"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "session ID (a new one is generated when omitted)")
	chatCmd.Flags().StringVar(&chatSystem, "system", "", "override the agent's system prompt")
	chatCmd.Flags().StringVar(&chatName, "agent", "assistant", "agent name recorded with the exchange")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	mgr, cfg, err := openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	sessionID := chatSession
	if sessionID == "" {
		sessionID = agent.NewSessionID()
		fmt.Fprintln(os.Stderr, "Session:", sessionID)
	}

	client := anthropic.NewClient(cfg.Provider.APIKey, cfg.Provider.Model)
	a := agent.NewMemoryAgent(chatName, chatSystem, cfg.Provider.Model, client)

	message := strings.Join(args, " ")
	reply, err := agent.Ask(ctx, a, mgr, newLogger(cfg), userID, sessionID, message)
	if err != nil {
		return err
	}

	fmt.Println(reply)
	return nil
}
