package harvester

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vkharvest/pkg/store"
	"vkharvest/pkg/vk"
)

// RefreshCommentCounts re-reads a feed's wall newest-first and updates the
// stored comment counter of every post it passes, stopping once it has paged
// past the oldest persisted post or the budget runs out. This is the only
// operation that touches posts after creation; the harvest itself never
// updates them.
func (h *Harvester) RefreshCommentCounts(ctx context.Context, feedID int64) (int, error) {
	minDate, err := h.store.MinPostDate(ctx, feedID)
	if errors.Is(err, store.ErrNotFound) {
		h.logger.WithField("feed_id", feedID).Info("no stored posts, nothing to refresh")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read oldest post date for feed %d: %w", feedID, err)
	}

	log := h.logger.WithField("feed_id", feedID)

	updated := 0
	offset := 0

	for {
		if h.client.Budget().Exhausted() {
			log.WarnWithFields("request budget exhausted while refreshing counters", map[string]interface{}{
				"offset": offset,
			})
			break
		}

		page, err := h.client.GetWall(ctx, feedID, offset, h.pageSize)
		if err != nil {
			if vk.IsAuthError(err) {
				return updated, err
			}
			log.WithError(err).WarnWithFields("wall page unavailable, stopping refresh", map[string]interface{}{
				"offset": offset,
			})
			break
		}

		if len(page.Items) == 0 {
			break
		}

		reachedOldest := false
		for _, item := range page.Items {
			if time.Unix(item.Date, 0).Before(minDate) {
				reachedOldest = true
				continue
			}
			if item.Comments == nil {
				continue
			}
			if err := h.store.UpdateCommentCount(ctx, feedID, item.ID, item.Comments.Count); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				log.WithError(err).WithField("post_id", item.ID).Error("failed to update comment count")
				continue
			}
			updated++
		}

		log.InfoWithFields("refresh page processed", map[string]interface{}{
			"offset":           offset,
			"updated":          updated,
			"budget_remaining": h.client.Budget().Remaining(),
		})

		if reachedOldest {
			break
		}
		offset += h.pageSize
	}

	log.InfoWithFields("comment count refresh finished", map[string]interface{}{
		"updated": updated,
	})

	return updated, nil
}
