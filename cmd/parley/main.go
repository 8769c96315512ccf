package main

import (
	"os"

	"github.com/spf13/cobra"

	"parley/cmd/parley/serve"
	"parley/internal/logger"
)

func main() {
	logger.Init()

	rootCmd := &cobra.Command{
		Use:   "parley",
		Short: "Parley is a chat gateway whose tools can pause to ask the user questions",
	}

	rootCmd.AddCommand(serve.Cmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
