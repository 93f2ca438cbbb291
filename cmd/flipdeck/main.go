package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/conorfennell/flipdeck/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "flipdeck",
		Short:        "Flashcards with spaced repetition and multiple-choice quizzes",
		SilenceUsage: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd(), newProgressCmd())
	return root
}

// loadConfig reads settings for cmd, including flags inherited from the root.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.Options{DotEnv: ".env", Flags: cmd.Flags()})
}
