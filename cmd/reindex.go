package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vhoang/troly/internal/app"
	"github.com/vhoang/troly/internal/config"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild all embeddings from the database and exit",
	Long: `Reindex loads every active schedule, news article, announcement and
stored reference document from PostgreSQL, regenerates their embeddings
and replaces the vector store content. The query cache is cleared
afterwards.

Run this after bulk content imports; the API server also exposes the same
operation as POST /api/v1/reindex.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReindex(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	counts, err := a.Indexer.ReindexAll(ctx)
	if err != nil {
		return fmt.Errorf("reindexing: %w", err)
	}

	fmt.Printf("Reindex complete: %d schedules, %d news chunks, %d announcement chunks, %d document chunks\n",
		counts.Schedules, counts.News, counts.Announcements, counts.Documents)
	return nil
}
