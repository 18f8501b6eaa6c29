package harvester

import (
	"context"
	"time"

	"vkharvest/pkg/logger"
	"vkharvest/pkg/store"
	"vkharvest/pkg/vk"
)

// Harvester orchestrates the incremental harvest: for every feed it pages
// new posts first, then the comments of those posts, sharing one request
// budget and one persisted store across all components.
type Harvester struct {
	client   Client
	resolver IdentityResolver
	store    store.Store
	logger   logger.Logger
	pageSize int
}

// New creates a Harvester. pageSize is the item stride used for both wall
// and comment pagination.
func New(client Client, res IdentityResolver, st store.Store, pageSize int, log logger.Logger) *Harvester {
	if log == nil {
		log = logger.GetLogger()
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Harvester{
		client:   client,
		resolver: res,
		store:    st,
		logger:   log,
		pageSize: pageSize,
	}
}

// RunSummary reports what a harvest run achieved
type RunSummary struct {
	Feeds       int
	NewPosts    int
	NewComments int
	SpentBudget int
	Duration    time.Duration
}

// Run processes the given feeds strictly sequentially. A failure below the
// feed level never aborts sibling feeds; only the expired-credential error
// stops the run, leaving already-persisted rows in place for the next one.
func (h *Harvester) Run(ctx context.Context, feedIDs []int64) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{Feeds: len(feedIDs)}

	for _, feedID := range feedIDs {
		log := h.logger.WithField("feed_id", feedID)
		log.Info("harvesting feed")

		posts, err := h.HarvestPosts(ctx, feedID)
		summary.NewPosts += len(posts)
		if err != nil {
			if vk.IsAuthError(err) {
				h.finish(summary, start)
				return summary, err
			}
			log.WithError(err).Error("feed harvest failed, continuing with next feed")
			continue
		}

		comments, err := h.HarvestComments(ctx, feedID, posts)
		summary.NewComments += len(comments)
		if err != nil {
			if vk.IsAuthError(err) {
				h.finish(summary, start)
				return summary, err
			}
			log.WithError(err).Error("comment harvest failed, continuing with next feed")
		}
	}

	h.finish(summary, start)
	return summary, nil
}

func (h *Harvester) finish(summary *RunSummary, start time.Time) {
	summary.SpentBudget = h.client.Budget().Spent()
	summary.Duration = time.Since(start)

	h.logger.InfoWithFields("harvest run finished", map[string]interface{}{
		"feeds":        summary.Feeds,
		"new_posts":    summary.NewPosts,
		"new_comments": summary.NewComments,
		"spent_budget": summary.SpentBudget,
		"duration":     summary.Duration,
	})
}
