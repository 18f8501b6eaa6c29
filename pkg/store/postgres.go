package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vkharvest/pkg/logger"
	"vkharvest/pkg/models"
)

// Postgres implements Store on top of a pgx connection pool
type Postgres struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// NewPostgres connects to the database and ensures the schema exists
func NewPostgres(ctx context.Context, dsn string, log logger.Logger) (*Postgres, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	s := &Postgres{pool: pool, logger: log}
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// InitSchema creates the harvest tables when they do not exist yet.
// The extra user columns (activities, bdate, last_seen) are part of the
// schema but not populated by harvesting.
func (s *Postgres) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS groups (
			id          BIGINT PRIMARY KEY,
			name        TEXT,
			screen_name VARCHAR(255),
			is_closed   BOOLEAN DEFAULT FALSE,
			description TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id          BIGINT PRIMARY KEY,
			first_name  VARCHAR(255),
			last_name   VARCHAR(255),
			deactivated BOOLEAN DEFAULT FALSE,
			is_closed   BOOLEAN DEFAULT TRUE,
			about       TEXT,
			activities  TEXT,
			bdate       TIMESTAMP,
			last_seen   TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS posts (
			post_id       BIGINT,
			owner_id      BIGINT REFERENCES groups(id),
			date          TIMESTAMP,
			marked_as_ads BOOLEAN DEFAULT FALSE,
			post_type     TEXT,
			text          TEXT,
			likes_count   INT,
			repost_count  INT,
			views_count   INT,
			comment_count INT,
			PRIMARY KEY (post_id, owner_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_owner ON posts (owner_id)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id       BIGINT,
			from_id  BIGINT REFERENCES users(id),
			post_id  BIGINT,
			owner_id BIGINT REFERENCES groups(id),
			date     TIMESTAMP,
			text     TEXT,
			PRIMARY KEY (id, owner_id),
			FOREIGN KEY (post_id, owner_id) REFERENCES posts (post_id, owner_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_owner ON comments (owner_id)`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

// GetGroup looks a group up by primary key
func (s *Postgres) GetGroup(ctx context.Context, id int64) (*models.Group, error) {
	var g models.Group
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, screen_name, is_closed, description FROM groups WHERE id = $1`,
		id,
	).Scan(&g.ID, &g.Name, &g.ScreenName, &g.IsClosed, &g.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group %d: %w", id, err)
	}
	return &g, nil
}

// GetUser looks a user up by primary key
func (s *Postgres) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, first_name, last_name, deactivated, is_closed, about FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Deactivated, &u.IsClosed, &u.About)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &u, nil
}

// InsertGroup persists a group; duplicate keys are ignored
func (s *Postgres) InsertGroup(ctx context.Context, group *models.Group) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO groups (id, name, screen_name, is_closed, description)
		 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
		group.ID, group.Name, group.ScreenName, group.IsClosed, group.Description)
	if err != nil {
		return fmt.Errorf("failed to insert group %d: %w", group.ID, err)
	}
	return nil
}

// InsertUsers persists a batch of users; duplicate keys are ignored
func (s *Postgres) InsertUsers(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, u := range users {
		batch.Queue(
			`INSERT INTO users (id, first_name, last_name, deactivated, is_closed, about)
			 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO NOTHING`,
			u.ID, u.FirstName, u.LastName, u.Deactivated, u.IsClosed, u.About)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range users {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert user batch: %w", err)
		}
	}
	return nil
}

// MaxPostID returns the feed's high-water mark, 0 when no post is stored yet
func (s *Postgres) MaxPostID(ctx context.Context, feedID int64) (int64, error) {
	var max *int64
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(post_id) FROM posts WHERE owner_id = $1`, feedID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to query max post id for feed %d: %w", feedID, err)
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// InsertPosts persists a batch of posts; duplicate keys are ignored
func (s *Postgres) InsertPosts(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range posts {
		batch.Queue(
			`INSERT INTO posts (post_id, owner_id, date, marked_as_ads, post_type, text,
			                    likes_count, repost_count, views_count, comment_count)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (post_id, owner_id) DO NOTHING`,
			p.PostID, p.OwnerID, p.Date, p.MarkedAsAds, p.PostType, p.Text,
			p.LikesCount, p.RepostCount, p.ViewsCount, p.CommentCount)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range posts {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert post batch: %w", err)
		}
	}
	return nil
}

// PostIDs returns all stored post ids for a feed, newest first
func (s *Postgres) PostIDs(ctx context.Context, feedID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT post_id FROM posts WHERE owner_id = $1 ORDER BY post_id DESC`, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to query post ids for feed %d: %w", feedID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan post id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MinPostDate returns the publication timestamp of the oldest stored post
// for a feed; ErrNotFound when the feed has no posts
func (s *Postgres) MinPostDate(ctx context.Context, feedID int64) (time.Time, error) {
	var min *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT MIN(date) FROM posts WHERE owner_id = $1`, feedID,
	).Scan(&min)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query min post date for feed %d: %w", feedID, err)
	}
	if min == nil {
		return time.Time{}, ErrNotFound
	}
	return *min, nil
}

// UpdateCommentCount refreshes the stored comment counter of a post;
// ErrNotFound when the post is not persisted
func (s *Postgres) UpdateCommentCount(ctx context.Context, feedID, postID int64, count int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE posts SET comment_count = $1 WHERE owner_id = $2 AND post_id = $3`,
		count, feedID, postID)
	if err != nil {
		return fmt.Errorf("failed to update comment count for post %d: %w", postID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CommentExists reports whether a comment is already persisted
func (s *Postgres) CommentExists(ctx context.Context, id, ownerID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1 AND owner_id = $2)`,
		id, ownerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check comment %d: %w", id, err)
	}
	return exists, nil
}

// InsertComments persists a batch of comments; duplicate keys are ignored
func (s *Postgres) InsertComments(ctx context.Context, comments []models.Comment) error {
	if len(comments) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range comments {
		batch.Queue(
			`INSERT INTO comments (id, from_id, post_id, owner_id, date, text)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id, owner_id) DO NOTHING`,
			c.ID, c.FromID, c.PostID, c.OwnerID, c.Date, c.Text)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range comments {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert comment batch: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool
func (s *Postgres) Close() {
	s.pool.Close()
}
