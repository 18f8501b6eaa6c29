package harvester

import (
	"context"
	"fmt"
	"time"

	"vkharvest/pkg/logger"
	"vkharvest/pkg/models"
	"vkharvest/pkg/vk"
)

// HarvestComments pages the comments of each given post. The request budget
// is shared across all posts in the call: once it runs out, harvesting stops
// even mid-list. Comments are flushed per post so an exhausted budget loses
// at most the page still in flight.
func (h *Harvester) HarvestComments(ctx context.Context, feedID int64, posts []models.Post) ([]models.Comment, error) {
	log := h.logger.WithField("feed_id", feedID)

	var all []models.Comment

	for _, post := range posts {
		if h.client.Budget().Exhausted() {
			log.WarnWithFields("request budget exhausted, stopping comment harvest", map[string]interface{}{
				"new_comments": len(all),
			})
			break
		}

		batch, err := h.harvestPostComments(ctx, feedID, post.PostID, log)

		if flushErr := h.flushComments(ctx, batch, log); flushErr == nil {
			all = append(all, batch...)
		}

		if err != nil {
			if vk.IsAuthError(err) {
				return all, err
			}
			log.WithError(err).WarnWithFields("comment paging stopped early", map[string]interface{}{
				"post_id": post.PostID,
			})
		}
	}

	log.InfoWithFields("comment harvest finished", map[string]interface{}{
		"new_comments": len(all),
	})

	return all, nil
}

// BackfillComments harvests comments for every stored post of a feed, not
// just freshly harvested ones. A run whose budget ran out mid-comments
// leaves posts without their comments; this completes them. Already
// persisted comments are skipped, so repeating it is cheap in rows if not
// in requests.
func (h *Harvester) BackfillComments(ctx context.Context, feedID int64) ([]models.Comment, error) {
	ids, err := h.store.PostIDs(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored posts for feed %d: %w", feedID, err)
	}

	posts := make([]models.Post, 0, len(ids))
	for _, id := range ids {
		posts = append(posts, models.Post{PostID: id, OwnerID: feedID})
	}

	h.logger.InfoWithFields("backfilling comments", map[string]interface{}{
		"feed_id":      feedID,
		"stored_posts": len(posts),
	})

	return h.HarvestComments(ctx, feedID, posts)
}

// harvestPostComments pages one post's comments until the reported total is
// covered, the page comes back empty, or the budget runs out.
func (h *Harvester) harvestPostComments(ctx context.Context, feedID, postID int64, log logger.Logger) ([]models.Comment, error) {
	var batch []models.Comment
	offset := 0

	for {
		if h.client.Budget().Exhausted() {
			break
		}

		page, err := h.client.GetComments(ctx, feedID, postID, offset, h.pageSize)
		if err != nil {
			// One retry already happened inside the client; failing again
			// means no data for this post, fatal or not.
			return batch, err
		}

		if len(page.Items) == 0 {
			break
		}

		for _, item := range page.Items {
			comment, keep, err := h.mapComment(ctx, feedID, postID, item)
			if err != nil {
				return batch, err
			}
			if keep {
				batch = append(batch, comment)
			}
		}

		log.InfoWithFields("comment page processed", map[string]interface{}{
			"post_id":          postID,
			"offset":           offset,
			"total":            page.Count,
			"budget_remaining": h.client.Budget().Remaining(),
		})

		offset += h.pageSize
		if offset >= page.Count {
			break
		}
	}

	return batch, nil
}

// mapComment maps one wire item; already-persisted ids are skipped and an
// author id of exactly zero means anonymous (no resolution call is made).
// A comment whose author cannot be resolved is dropped, not persisted
// authorless: the store skips only existing ids, so a later run picks the
// comment up again. The expired-credential error is returned as fatal.
func (h *Harvester) mapComment(ctx context.Context, feedID, postID int64, item vk.CommentPayload) (models.Comment, bool, error) {
	exists, err := h.store.CommentExists(ctx, item.ID, feedID)
	if err != nil {
		h.logger.WithError(err).WithField("comment_id", item.ID).Error("comment existence check failed")
		return models.Comment{}, false, nil
	}
	if exists {
		return models.Comment{}, false, nil
	}

	comment := models.Comment{
		ID:      item.ID,
		PostID:  postID,
		OwnerID: feedID,
		Date:    time.Unix(item.Date, 0),
		Text:    item.Text,
	}
	if item.PostID != 0 {
		comment.PostID = item.PostID
	}

	if item.FromID != 0 {
		author, err := h.resolver.ResolveUser(ctx, item.FromID)
		if err != nil {
			if vk.IsAuthError(err) {
				return models.Comment{}, false, err
			}
			h.logger.WithError(err).WithField("user_id", item.FromID).Warn("failed to resolve comment author, leaving comment for a later run")
			return models.Comment{}, false, nil
		}
		fromID := author.ID
		comment.FromID = &fromID
	}

	return comment, true, nil
}

// flushComments persists one post's accumulated comments
func (h *Harvester) flushComments(ctx context.Context, batch []models.Comment, log logger.Logger) error {
	if len(batch) == 0 {
		return nil
	}
	if err := h.store.InsertComments(ctx, batch); err != nil {
		log.WithError(err).Error("failed to persist comment batch")
		return err
	}
	return nil
}
