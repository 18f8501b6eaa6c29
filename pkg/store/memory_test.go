package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vkharvest/pkg/models"
)

func TestMemoryGroupRoundTrip(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.GetGroup(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.InsertGroup(ctx, &models.Group{ID: 42, Name: "First", ScreenName: "first"}))

	got, err := s.GetGroup(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "First", got.Name)

	// a second insert with the same id does not overwrite
	require.NoError(t, s.InsertGroup(ctx, &models.Group{ID: 42, Name: "Second"}))
	got, err = s.GetGroup(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "First", got.Name)
}

func TestMemoryUsersFirstWriteWins(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.InsertUsers(ctx, []models.User{
		{ID: 1, FirstName: "Ann"},
		{ID: 2, FirstName: "Bob"},
	}))
	require.NoError(t, s.InsertUsers(ctx, []models.User{
		{ID: 1, FirstName: "Overwritten"},
		{ID: 3, FirstName: "Cleo"},
	}))

	got, err := s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.FirstName)

	_, users, _, _ := s.Counts()
	assert.Equal(t, 3, users)
}

func TestMemoryMaxPostID(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	max, err := s.MaxPostID(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, max, "an empty feed has high-water mark 0")

	require.NoError(t, s.InsertPosts(ctx, []models.Post{
		{PostID: 100, OwnerID: 7},
		{PostID: 250, OwnerID: 7},
		{PostID: 999, OwnerID: 8}, // different feed
	}))

	max, err = s.MaxPostID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(250), max)
}

func TestMemoryInsertPostsIdempotent(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	posts := []models.Post{
		{PostID: 1, OwnerID: 7, Text: "original"},
		{PostID: 2, OwnerID: 7},
	}
	require.NoError(t, s.InsertPosts(ctx, posts))
	require.NoError(t, s.InsertPosts(ctx, posts))

	_, _, count, _ := s.Counts()
	assert.Equal(t, 2, count)
}

func TestMemoryPostIDsNewestFirst(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.InsertPosts(ctx, []models.Post{
		{PostID: 5, OwnerID: 7},
		{PostID: 12, OwnerID: 7},
		{PostID: 1, OwnerID: 7},
		{PostID: 3, OwnerID: 9},
	}))

	ids, err := s.PostIDs(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []int64{12, 5, 1}, ids)
}

func TestMemoryMinPostDate(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.MinPostDate(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)

	oldest := time.Unix(1600000000, 0)
	require.NoError(t, s.InsertPosts(ctx, []models.Post{
		{PostID: 1, OwnerID: 7, Date: time.Unix(1700000000, 0)},
		{PostID: 2, OwnerID: 7, Date: oldest},
	}))

	min, err := s.MinPostDate(ctx, 7)
	require.NoError(t, err)
	assert.True(t, min.Equal(oldest))
}

func TestMemoryUpdateCommentCount(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	assert.ErrorIs(t, s.UpdateCommentCount(ctx, 7, 1, 5), ErrNotFound)

	require.NoError(t, s.InsertPosts(ctx, []models.Post{{PostID: 1, OwnerID: 7, CommentCount: 2}}))
	require.NoError(t, s.UpdateCommentCount(ctx, 7, 1, 5))

	// re-inserting the post must not roll the counter back
	require.NoError(t, s.InsertPosts(ctx, []models.Post{{PostID: 1, OwnerID: 7, CommentCount: 2}}))

	ids, err := s.PostIDs(ctx, 7)
	require.NoError(t, err)
	require.Len(t, ids, 1)
}

func TestMemoryComments(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	exists, err := s.CommentExists(ctx, 1, 7)
	require.NoError(t, err)
	assert.False(t, exists)

	author := int64(33)
	require.NoError(t, s.InsertComments(ctx, []models.Comment{
		{ID: 1, OwnerID: 7, PostID: 100, FromID: &author},
		{ID: 1, OwnerID: 8, PostID: 200}, // same id, other feed
	}))
	require.NoError(t, s.InsertComments(ctx, []models.Comment{
		{ID: 1, OwnerID: 7, PostID: 100},
	}))

	exists, err = s.CommentExists(ctx, 1, 7)
	require.NoError(t, err)
	assert.True(t, exists)

	_, _, _, comments := s.Counts()
	assert.Equal(t, 2, comments, "comments are keyed by (id, owner)")
}
