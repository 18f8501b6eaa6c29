package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"vkharvest/pkg/auth"
	"vkharvest/pkg/config"
	"vkharvest/pkg/harvester"
	"vkharvest/pkg/logger"
	"vkharvest/pkg/ratelimit"
	"vkharvest/pkg/resolver"
	"vkharvest/pkg/store"
	"vkharvest/pkg/vk"
)

// summaryPrecision rounds the reported wall-clock duration
const summaryPrecision = time.Millisecond

var (
	// Harvest command flags
	feedList      string
	requestBudget int
	databaseDSN   string
	tokenProfile  string
)

// harvestCmd represents the harvest command
var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest new posts and comments from the configured feeds",
	Long: `Harvest walks every configured feed, collects posts newer than the
feed's stored high-water mark, then collects the comments of those posts.

The run spends at most the configured request budget and stops early once it
is exhausted; the next run resumes from the persisted state without
duplicating rows. An expired access token aborts the run immediately.`,
	Example: `  # Harvest the feeds from the config file
  vkharvest harvest

  # Override feeds and budget for one run
  vkharvest harvest --feeds 123,456 --budget 500`,
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	harvestCmd.Flags().StringVar(&feedList, "feeds", "", "comma-separated group ids to harvest")
	harvestCmd.Flags().IntVar(&requestBudget, "budget", 0, "request budget for this run")
	harvestCmd.Flags().StringVar(&databaseDSN, "dsn", "", "Postgres connection string")
	harvestCmd.Flags().StringVarP(&tokenProfile, "profile", "p", "", "stored token profile to use")
}

func runHarvest(cmd *cobra.Command, args []string) error {
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

	log.InfoWithFields("starting harvest run", map[string]interface{}{
		"feeds":          cfg.Harvest.Feeds,
		"request_budget": cfg.Harvest.RequestBudget,
	})

	summary, err := h.Run(ctx, cfg.Harvest.Feeds)
	if err != nil {
		if vk.IsAuthError(err) {
			log.Error("access token has expired, get a new one and run again")
			os.Exit(1)
		}
		return err
	}

	fmt.Printf("Harvested %d posts and %d comments across %d feeds in %s (%d requests spent)\n",
		summary.NewPosts, summary.NewComments, summary.Feeds, summary.Duration.Round(summaryPrecision), summary.SpentBudget)
	return nil
}

// loadEffectiveConfig builds the configuration from file, environment,
// stored token and command-line overrides.
func loadEffectiveConfig() (*config.Config, error) {
	flags := make(map[string]interface{})
	if databaseDSN != "" {
		flags["dsn"] = databaseDSN
	}
	if requestBudget > 0 {
		flags["budget"] = requestBudget
	}
	if feedList != "" {
		feeds, err := config.ParseFeedList(feedList)
		if err != nil {
			return nil, err
		}
		flags["feeds"] = feeds
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	// Fall back to the stored token when config and environment carry none
	if cfg.VK.Token == "" {
		if manager, err := auth.NewManager(); err == nil {
			if token, err := manager.Retrieve(tokenProfile); err == nil {
				cfg.VK.Token = token.Value
			}
		}
	}

	return cfg, nil
}
