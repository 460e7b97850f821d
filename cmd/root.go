// Package cmd implements the troly command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "troly",
	Short: "Trợ lý ảo TBU - RAG chatbot service for Thai Binh University",
	Long: `Trợ lý ảo TBU answers student and staff questions about schedules,
news, announcements and university documents. It retrieves relevant
content from a pgvector store and generates grounded Vietnamese answers
with a local Ollama model.

Running troly without a subcommand starts the HTTP API server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
