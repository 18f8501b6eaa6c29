package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vkharvest/pkg/harvester"
	"vkharvest/pkg/logger"
	"vkharvest/pkg/ratelimit"
	"vkharvest/pkg/resolver"
	"vkharvest/pkg/store"
	"vkharvest/pkg/vk"
)

// backfillCmd represents the backfill command
var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Harvest comments for every already-stored post",
	Long: `Backfill pages the comments of every post stored for the configured
feeds, newest post first. Comments that are already in the database are
skipped, so this completes posts whose comment pages were cut off by an
exhausted budget in an earlier run.

Note that unlike harvest, backfill spends at least one request per stored
post, so budget the run accordingly.`,
	Example: `  # Backfill comments for the configured feeds
  vkharvest backfill

  # Backfill a single feed
  vkharvest backfill --feeds 123 --budget 2000`,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().StringVar(&feedList, "feeds", "", "comma-separated group ids to backfill")
	backfillCmd.Flags().IntVar(&requestBudget, "budget", 0, "request budget for this run")
	backfillCmd.Flags().StringVar(&databaseDSN, "dsn", "", "Postgres connection string")
	backfillCmd.Flags().StringVarP(&tokenProfile, "profile", "p", "", "stored token profile to use")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	cfg, err := loadEffectiveConfig()
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	ctx := context.Background()

	st, err := store.NewPostgres(ctx, cfg.Database.DSN, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	budget := ratelimit.NewBudget(cfg.Harvest.RequestBudget)
	client := vk.NewClient(cfg, budget, log)
	res := resolver.New(client, st, log)
	h := harvester.New(client, res, st, cfg.Harvest.PageSize, log)

	total := 0
	for _, feedID := range cfg.Harvest.Feeds {
		comments, err := h.BackfillComments(ctx, feedID)
		total += len(comments)
		if err != nil {
			if vk.IsAuthError(err) {
				log.Error("access token has expired, get a new one and run again")
				os.Exit(1)
			}
			log.WithError(err).WithField("feed_id", feedID).Error("backfill failed, continuing with next feed")
		}
	}

	fmt.Printf("Backfilled %d comments (%d requests spent)\n", total, budget.Spent())
	return nil
}
