package firestore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/xid"

	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/model"
)

type commentDoc struct {
	ID        string    `firestore:"id"`
	PostID    string    `firestore:"postId"`
	UserID    string    `firestore:"userId"`
	UserName  string    `firestore:"userName"`
	Content   string    `firestore:"content"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (d commentDoc) model() model.Comment {
	return model.Comment(d)
}

func (s *Store) CreateComment(ctx context.Context, c *model.Comment) error {
	c.ID = xid.New().String()
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	if _, err := s.col(commentsCollection).Doc(c.ID).Create(ctx, commentDoc(*c)); err != nil {
		return fmt.Errorf("firestore: creating comment: %w", err)
	}
	return nil
}

func (s *Store) GetCommentByID(ctx context.Context, id string) (*model.Comment, error) {
	snap, err := s.col(commentsCollection).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("firestore: getting comment %s: %w", id, err)
	}

	var d commentDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("firestore: decoding comment %s: %w", id, err)
	}
	c := d.model()
	return &c, nil
}

// ListComments returns comments oldest first, optionally for one post.
func (s *Store) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	q := s.col(commentsCollection).Query
	if postID != "" {
		q = q.Where("postId", "==", postID)
	}

	docs, err := collect[commentDoc](q.Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("firestore: listing comments: %w", err)
	}
	comments := make([]model.Comment, 0, len(docs))
	for _, d := range docs {
		comments = append(comments, d.model())
	}
	sort.SliceStable(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

func (s *Store) UpdateComment(ctx context.Context, c *model.Comment) error {
	c.UpdatedAt = time.Now().UTC()

	_, err := s.col(commentsCollection).Doc(c.ID).Update(ctx, []firestore.Update{
		{Path: "postId", Value: c.PostID},
		{Path: "userId", Value: c.UserID},
		{Path: "userName", Value: c.UserName},
		{Path: "content", Value: c.Content},
		{Path: "updatedAt", Value: c.UpdatedAt},
	})
	if err != nil {
		if isNotFound(err) {
			return apperror.NotFound("comment", c.ID)
		}
		return fmt.Errorf("firestore: updating comment %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	return s.deleteDoc(ctx, commentsCollection, "comment", id)
}
