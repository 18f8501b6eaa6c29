package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"vkharvest/pkg/models"
)

type commentKey struct {
	id      int64
	ownerID int64
}

type postKey struct {
	postID  int64
	ownerID int64
}

// Memory implements Store with plain maps. It backs unit tests and small
// dry runs where no database is available.
type Memory struct {
	mu       sync.Mutex
	groups   map[int64]models.Group
	users    map[int64]models.User
	posts    map[postKey]models.Post
	comments map[commentKey]models.Comment
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		groups:   make(map[int64]models.Group),
		users:    make(map[int64]models.User),
		posts:    make(map[postKey]models.Post),
		comments: make(map[commentKey]models.Comment),
	}
}

// GetGroup looks a group up by id
func (s *Memory) GetGroup(ctx context.Context, id int64) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

// GetUser looks a user up by id
func (s *Memory) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// InsertGroup persists a group; an existing row wins
func (s *Memory) InsertGroup(ctx context.Context, group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[group.ID]; !ok {
		s.groups[group.ID] = *group
	}
	return nil
}

// InsertUsers persists a batch of users; existing rows win
func (s *Memory) InsertUsers(ctx context.Context, users []models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range users {
		if _, ok := s.users[u.ID]; !ok {
			s.users[u.ID] = u
		}
	}
	return nil
}

// MaxPostID returns the feed's high-water mark, 0 when none
func (s *Memory) MaxPostID(ctx context.Context, feedID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var max int64
	for key := range s.posts {
		if key.ownerID == feedID && key.postID > max {
			max = key.postID
		}
	}
	return max, nil
}

// InsertPosts persists a batch of posts; existing rows win
func (s *Memory) InsertPosts(ctx context.Context, posts []models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range posts {
		key := postKey{postID: p.PostID, ownerID: p.OwnerID}
		if _, ok := s.posts[key]; !ok {
			s.posts[key] = p
		}
	}
	return nil
}

// PostIDs returns all stored post ids for a feed, newest first
func (s *Memory) PostIDs(ctx context.Context, feedID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for key := range s.posts {
		if key.ownerID == feedID {
			ids = append(ids, key.postID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return ids, nil
}

// MinPostDate returns the oldest stored publication timestamp for a feed
func (s *Memory) MinPostDate(ctx context.Context, feedID int64) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var min time.Time
	found := false
	for key, p := range s.posts {
		if key.ownerID != feedID {
			continue
		}
		if !found || p.Date.Before(min) {
			min = p.Date
			found = true
		}
	}
	if !found {
		return time.Time{}, ErrNotFound
	}
	return min, nil
}

// UpdateCommentCount refreshes the stored comment counter of a post
func (s *Memory) UpdateCommentCount(ctx context.Context, feedID, postID int64, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := postKey{postID: postID, ownerID: feedID}
	p, ok := s.posts[key]
	if !ok {
		return ErrNotFound
	}
	p.CommentCount = count
	s.posts[key] = p
	return nil
}

// CommentExists reports whether a comment is already persisted
func (s *Memory) CommentExists(ctx context.Context, id, ownerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.comments[commentKey{id: id, ownerID: ownerID}]
	return ok, nil
}

// InsertComments persists a batch of comments; existing rows win
func (s *Memory) InsertComments(ctx context.Context, comments []models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range comments {
		key := commentKey{id: c.ID, ownerID: c.OwnerID}
		if _, ok := s.comments[key]; !ok {
			s.comments[key] = c
		}
	}
	return nil
}

// Close is a no-op for the in-memory store
func (s *Memory) Close() {}

// Counts returns the number of stored rows per table, for tests and the
// run summary
func (s *Memory) Counts() (groups, users, posts, comments int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.groups), len(s.users), len(s.posts), len(s.comments)
}
