package store

import (
	"context"
	"errors"
	"time"

	"vkharvest/pkg/models"
)

// ErrNotFound is returned by lookups when no row matches
var ErrNotFound = errors.New("store: not found")

// Store is the persistence collaborator of the harvester. Lookups are
// narrow, key-based accessors; inserts are batch-oriented and must tolerate
// duplicate keys so that repeated runs stay idempotent.
type Store interface {
	// Identity cache
	GetGroup(ctx context.Context, id int64) (*models.Group, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	InsertGroup(ctx context.Context, group *models.Group) error
	InsertUsers(ctx context.Context, users []models.User) error

	// Posts
	MaxPostID(ctx context.Context, feedID int64) (int64, error)
	InsertPosts(ctx context.Context, posts []models.Post) error
	PostIDs(ctx context.Context, feedID int64) ([]int64, error)
	MinPostDate(ctx context.Context, feedID int64) (time.Time, error)
	UpdateCommentCount(ctx context.Context, feedID, postID int64, count int) error

	// Comments
	CommentExists(ctx context.Context, id, ownerID int64) (bool, error)
	InsertComments(ctx context.Context, comments []models.Comment) error

	Close()
}
