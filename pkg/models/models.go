package models

import "time"

// Group is a community whose wall gets harvested. Created on first
// resolution and never re-fetched afterwards.
type Group struct {
	ID          int64
	Name        string
	ScreenName  string
	IsClosed    bool
	Description string
}

// User is a profile referenced as a group contact or a comment author.
// Like Group, it is immutable once persisted.
type User struct {
	ID          int64
	FirstName   string
	LastName    string
	Deactivated bool
	IsClosed    bool
	About       string
}

// Post is a single wall entry. PostID is only unique within its owning
// feed, so the identity is the (PostID, OwnerID) pair.
type Post struct {
	PostID       int64
	OwnerID      int64
	Date         time.Time
	MarkedAsAds  bool
	PostType     string
	Text         string
	LikesCount   int
	RepostCount  int
	ViewsCount   int
	CommentCount int
}

// Comment belongs to a post on a specific feed; identity is (ID, OwnerID).
// FromID is nil for anonymous comments (the API reports author id 0).
type Comment struct {
	ID      int64
	FromID  *int64
	PostID  int64
	OwnerID int64
	Date    time.Time
	Text    string
}
