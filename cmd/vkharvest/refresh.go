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

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the stored comment counters of already-harvested posts",
	Long: `Refresh re-reads each configured feed newest-first and updates the
comment counter of every post already in the database, stopping once it has
paged past the oldest stored post or the request budget runs out.

This is the only operation that modifies posts after creation; the harvest
itself never updates existing rows.`,
	Example: `  # Refresh counters for the configured feeds
  vkharvest refresh

  # Refresh a single feed with a small budget
  vkharvest refresh --feeds 123 --budget 100`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)

	refreshCmd.Flags().StringVar(&feedList, "feeds", "", "comma-separated group ids to refresh")
	refreshCmd.Flags().IntVar(&requestBudget, "budget", 0, "request budget for this run")
	refreshCmd.Flags().StringVar(&databaseDSN, "dsn", "", "Postgres connection string")
	refreshCmd.Flags().StringVarP(&tokenProfile, "profile", "p", "", "stored token profile to use")
}

func runRefresh(cmd *cobra.Command, args []string) error {
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
		updated, err := h.RefreshCommentCounts(ctx, feedID)
		total += updated
		if err != nil {
			if vk.IsAuthError(err) {
				log.Error("access token has expired, get a new one and run again")
				os.Exit(1)
			}
			log.WithError(err).WithField("feed_id", feedID).Error("refresh failed, continuing with next feed")
		}
	}

	fmt.Printf("Refreshed comment counters of %d posts (%d requests spent)\n", total, budget.Spent())
	return nil
}
