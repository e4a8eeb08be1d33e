package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/model"
	"github.com/sakif/techblogs/internal/repository"
)

const (
	guestCommentName   = "Guest"
	unknownCommentName = "Unknown User"
)

// CommentService manages comments and keeps each post's comment list in
// step with them.
type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	users    repository.UserRepository
	logger   *slog.Logger
}

func NewCommentService(
	comments repository.CommentRepository,
	posts repository.PostRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *CommentService {
	return &CommentService{comments: comments, posts: posts, users: users, logger: logger}
}

// CreateCommentInput is a new comment. UserName, when set, wins over the
// stored name of UserID.
type CreateCommentInput struct {
	PostID   string
	UserID   string
	UserName string
	Content  string
}

// Create stores a comment and appends its ID to the parent post. A failure
// to update the post is logged and does not fail the call.
func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (*model.Comment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "Comment content is required")
	}
	postID := strings.TrimSpace(in.PostID)
	if postID == "" {
		return nil, apperror.ValidationFailed("postId", "Post ID is required")
	}

	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		userID = model.GuestUserID
	}

	comment := &model.Comment{
		PostID:   postID,
		UserID:   userID,
		UserName: s.authorName(ctx, userID, in.UserName),
		Content:  content,
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("service/comment: creating comment: %w", err)
	}

	s.attachToPost(ctx, comment)

	s.logger.Info("comment created",
		slog.String("commentID", comment.ID),
		slog.String("postID", postID),
		slog.String("userID", userID),
	)
	return comment, nil
}

// List returns comments in creation order, optionally filtered to one post.
func (s *CommentService) List(ctx context.Context, postID string) ([]model.Comment, error) {
	comments, err := s.comments.ListComments(ctx, strings.TrimSpace(postID))
	if err != nil {
		return nil, fmt.Errorf("service/comment: listing comments: %w", err)
	}
	return comments, nil
}

func (s *CommentService) Get(ctx context.Context, id string) (*model.Comment, error) {
	return s.comments.GetCommentByID(ctx, id)
}

// Update replaces the content of a comment.
func (s *CommentService) Update(ctx context.Context, id, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "Comment content is required")
	}

	comment, err := s.comments.GetCommentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	comment.Content = content
	if err := s.comments.UpdateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("service/comment: updating comment %s: %w", id, err)
	}
	return comment, nil
}

// Delete removes a comment when callerID wrote it or wrote the parent post.
// Any other caller, and a comment that does not exist, get a silent no-op:
// deleted is false and err is nil. A missing parent post still lets the
// comment author delete.
func (s *CommentService) Delete(ctx context.Context, id, callerID string) (deleted bool, err error) {
	comment, err := s.comments.GetCommentByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Info("comment delete ignored: no such comment", slog.String("commentID", id))
			return false, nil
		}
		return false, fmt.Errorf("service/comment: loading comment %s: %w", id, err)
	}

	post, err := s.posts.GetPostByID(ctx, comment.PostID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return false, fmt.Errorf("service/comment: loading post %s: %w", comment.PostID, err)
		}
		post = nil
	}

	allowed := callerID != "" && (comment.UserID == callerID || (post != nil && post.UserID == callerID))
	if !allowed {
		s.logger.Info("comment delete ignored",
			slog.String("commentID", id),
			slog.String("callerID", callerID),
		)
		return false, nil
	}

	if err := s.comments.DeleteComment(ctx, id); err != nil {
		return false, fmt.Errorf("service/comment: deleting comment %s: %w", id, err)
	}

	if post != nil && post.HasComment(id) {
		post.RemoveComment(id)
		if err := s.posts.UpdatePost(ctx, post); err != nil {
			s.logger.Warn("failed to detach comment from post",
				slog.String("commentID", id),
				slog.String("postID", post.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("comment deleted", slog.String("commentID", id), slog.String("callerID", callerID))
	return true, nil
}

// authorName picks the name stored on a new comment: the supplied name, then
// "Guest" for the guest ID, then the author's profile name.
func (s *CommentService) authorName(ctx context.Context, userID, supplied string) string {
	if name := strings.TrimSpace(supplied); name != "" {
		return name
	}
	if userID == model.GuestUserID {
		return guestCommentName
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("failed to look up comment author",
				slog.String("userID", userID),
				slog.String("error", err.Error()),
			)
		}
		return unknownCommentName
	}
	if user.Name == "" {
		return unknownCommentName
	}
	return user.Name
}

func (s *CommentService) attachToPost(ctx context.Context, comment *model.Comment) {
	post, err := s.posts.GetPostByID(ctx, comment.PostID)
	if err == nil {
		post.AddComment(comment.ID)
		err = s.posts.UpdatePost(ctx, post)
	}
	if err != nil {
		s.logger.Warn("failed to attach comment to post",
			slog.String("commentID", comment.ID),
			slog.String("postID", comment.PostID),
			slog.String("error", err.Error()),
		)
	}
}
