package harvester

import (
	"context"
	"fmt"
	"time"

	"vkharvest/pkg/models"
	"vkharvest/pkg/vk"
)

// HarvestPosts pages a feed's wall backwards in time and returns the posts
// that were not yet persisted. Paging is bounded three ways: an empty page,
// an exhausted request budget, and the feed's high-water mark — once the
// newest item of a page falls at or below the stored maximum the feed is
// caught up. The boundary page itself is still fetched in full so no post
// straddling the mark is lost.
func (h *Harvester) HarvestPosts(ctx context.Context, feedID int64) ([]models.Post, error) {
	maxID, err := h.store.MaxPostID(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to read high-water mark for feed %d: %w", feedID, err)
	}

	// Materialize the owning group before paging so referential integrity
	// holds even when the feed has nothing new.
	if _, err := h.resolver.ResolveGroup(ctx, feedID); err != nil {
		return nil, err
	}

	log := h.logger.WithField("feed_id", feedID)
	log.InfoWithFields("paging posts", map[string]interface{}{
		"max_post_id":      maxID,
		"budget_remaining": h.client.Budget().Remaining(),
	})

	var (
		posts    []models.Post
		offset   int
		fatalErr error
	)

	for {
		if h.client.Budget().Exhausted() {
			log.WarnWithFields("request budget exhausted while paging posts", map[string]interface{}{
				"offset": offset,
			})
			break
		}

		page, err := h.client.GetWall(ctx, feedID, offset, h.pageSize)
		if err != nil {
			if vk.IsAuthError(err) {
				fatalErr = err
				break
			}
			// One retry already happened inside the client; a page that
			// still fails is treated as carrying no data.
			log.WithError(err).WarnWithFields("wall page unavailable, stopping feed", map[string]interface{}{
				"offset": offset,
			})
			break
		}

		if len(page.Items) == 0 {
			log.Debug("empty wall page, feed exhausted")
			break
		}

		for _, item := range page.Items {
			if item.ID <= maxID {
				continue
			}
			post, ok := mapPost(feedID, item)
			if !ok {
				log.WarnWithFields("skipping malformed post", map[string]interface{}{
					"post_id": item.ID,
				})
				continue
			}
			posts = append(posts, post)
		}

		log.InfoWithFields("wall page processed", map[string]interface{}{
			"offset":           offset,
			"page_items":       len(page.Items),
			"new_posts":        len(posts),
			"budget_remaining": h.client.Budget().Remaining(),
		})

		if page.Items[0].ID <= maxID {
			log.DebugWithFields("reached high-water mark", map[string]interface{}{
				"max_post_id": maxID,
			})
			break
		}

		offset += h.pageSize
	}

	if err := h.store.InsertPosts(ctx, posts); err != nil {
		// A conflict with a concurrent writer must not sink the remaining
		// feeds; the rows exist either way.
		log.WithError(err).Error("failed to persist post batch")
	}

	log.InfoWithFields("post harvest finished", map[string]interface{}{
		"new_posts": len(posts),
	})

	return posts, fatalErr
}

// mapPost maps a wire item defensively. An item missing one of the required
// counter blocks is rejected rather than persisted half-empty.
func mapPost(feedID int64, item vk.PostPayload) (models.Post, bool) {
	if item.Likes == nil || item.Reposts == nil || item.Views == nil {
		return models.Post{}, false
	}

	post := models.Post{
		PostID:      item.ID,
		OwnerID:     feedID,
		Date:        time.Unix(item.Date, 0),
		MarkedAsAds: item.MarkedAsAds != 0,
		PostType:    item.PostType,
		Text:        item.Text,
		LikesCount:  item.Likes.Count,
		RepostCount: item.Reposts.Count,
		ViewsCount:  item.Views.Count,
	}
	if item.Comments != nil {
		post.CommentCount = item.Comments.Count
	}
	return post, true
}
