package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/parley-oss/parley/internal/memory"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment and configuration",
	Long:  "Validate that configuration, storage backends and API keys are properly set up.",
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("parley doctor - checking your environment")
	fmt.Println()
	allOK := true

	// 1. Go version
	fmt.Printf("  Go version: %s ✓\n", runtime.Version())

	// 2. OS/Arch
	fmt.Printf("  Platform:   %s/%s ✓\n", runtime.GOOS, runtime.GOARCH)

	// 3. Provider API key
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey != "" {
		fmt.Printf("  API key:    set (***%s) ✓\n", apiKey[max(0, len(apiKey)-4):])
	} else {
		fmt.Println("  API key:    NOT SET ✗")
		fmt.Println("    → Set ANTHROPIC_API_KEY environment variable")
		allOK = false
	}

	// 4. Configuration
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  Config:     INVALID (%s) ✗\n", err)
		allOK = false
	} else {
		fmt.Printf("  Config:     %s v%s ✓\n", cfg.Name, cfg.Version)
	}

	// 5. Storage backends
	if cfg != nil {
		mgr, err := memory.Open(cfg, newLogger(cfg))
		if err != nil {
			fmt.Printf("  Storage:    FAILED (%s) ✗\n", err)
			allOK = false
		} else {
			mgr.Close()
			fmt.Printf("  Memory:     %s (%s) ✓\n", cfg.Memory.Backend, cfg.Memory.Path)
			fmt.Printf("  Knowledge:  %s (%s) ✓\n", cfg.Knowledge.Backend, cfg.Knowledge.Path)
		}

		// 6. Embedding provider
		switch cfg.Embedding.Provider {
		case "api":
			if cfg.Embedding.APIKey != "" {
				fmt.Printf("  Embedding:  api (%s) ✓\n", cfg.Embedding.Model)
			} else {
				fmt.Println("  Embedding:  api but OPENAI_API_KEY NOT SET ✗")
				fmt.Println("    → Set OPENAI_API_KEY or switch embedding.provider to none")
				allOK = false
			}
		default:
			fmt.Printf("  Embedding:  %s ✓\n", cfg.Embedding.Provider)
		}
	}

	fmt.Println()
	if allOK {
		fmt.Println("All checks passed!")
	} else {
		fmt.Println("Some checks failed. See above for details.")
	}

	return nil
}
