package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/model"
	"github.com/sakif/techblogs/internal/repository"
)

var _ repository.PostRepository = (*DB)(nil)

const postColumns = `id, user_id, user_name, user_profile_pic, description, media, comments, created_at, updated_at`

// CreatePost inserts a post, generating its ID and timestamps.
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now

	media, comments, err := encodePostLists(post)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.UserID,
		post.UserName,
		post.UserProfilePic,
		post.Description,
		media,
		comments,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating post: %w", err)
	}
	return nil
}

// GetPostByID retrieves a single post.
// Returns apperror.ErrNotFound if the post doesn't exist.
func (db *DB) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id)

	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}
	return p, nil
}

// ListPosts returns posts newest first. opts.Limit of 0 returns everything.
func (db *DB) ListPosts(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means no limit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	return collectPosts(rows)
}

// ListPostsByUser returns one user's posts newest first.
func (db *DB) ListPostsByUser(ctx context.Context, userID string) ([]model.Post, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts for user %s: %w", userID, err)
	}
	return collectPosts(rows)
}

// UpdatePost overwrites every mutable field of a post. created_at is kept.
func (db *DB) UpdatePost(ctx context.Context, post *model.Post) error {
	post.UpdatedAt = time.Now().UTC()

	media, comments, err := encodePostLists(post)
	if err != nil {
		return err
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE posts
		 SET user_id = ?, user_name = ?, user_profile_pic = ?, description = ?,
		     media = ?, comments = ?, updated_at = ?
		 WHERE id = ?`,
		post.UserID,
		post.UserName,
		post.UserProfilePic,
		post.Description,
		media,
		comments,
		post.UpdatedAt,
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating post %s: %w", post.ID, err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("post", post.ID)
	}
	return nil
}

// DeletePost removes a post. Its comments are not deleted.
func (db *DB) DeletePost(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("post", id)
	}
	return nil
}

func encodePostLists(post *model.Post) (media, comments string, err error) {
	if media, err = encodeJSON(post.Media); err != nil {
		return "", "", fmt.Errorf("sqlite: encoding post media: %w", err)
	}
	if comments, err = encodeJSON(post.Comments); err != nil {
		return "", "", fmt.Errorf("sqlite: encoding post comments: %w", err)
	}
	return media, comments, nil
}

func collectPosts(rows *sql.Rows) ([]model.Post, error) {
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}
	return posts, nil
}

func scanPost(s scanner) (*model.Post, error) {
	var (
		p               model.Post
		media, comments string
	)
	if err := s.Scan(
		&p.ID,
		&p.UserID,
		&p.UserName,
		&p.UserProfilePic,
		&p.Description,
		&media,
		&comments,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if p.Media, err = decodeJSON[model.Media](media); err != nil {
		return nil, fmt.Errorf("decoding media: %w", err)
	}
	if p.Comments, err = decodeJSON[string](comments); err != nil {
		return nil, fmt.Errorf("decoding comments: %w", err)
	}
	return &p, nil
}
