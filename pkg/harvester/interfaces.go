package harvester

import (
	"context"

	"vkharvest/pkg/models"
	"vkharvest/pkg/ratelimit"
	"vkharvest/pkg/vk"
)

// Client defines the VK API operations the harvester depends on
type Client interface {
	GetWall(ctx context.Context, ownerID int64, offset, count int) (*vk.WallPage, error)
	GetComments(ctx context.Context, ownerID, postID int64, offset, count int) (*vk.CommentPage, error)
	Budget() *ratelimit.Budget
}

// IdentityResolver defines the cache-or-fetch operations for users and groups
type IdentityResolver interface {
	ResolveUser(ctx context.Context, id int64) (*models.User, error)
	ResolveGroup(ctx context.Context, id int64) (*models.Group, error)
}
