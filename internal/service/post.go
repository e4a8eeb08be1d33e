package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/auth"
	"github.com/sakif/techblogs/internal/media"
	"github.com/sakif/techblogs/internal/model"
	"github.com/sakif/techblogs/internal/repository"
)

// MediaURLPrefix is where stored post media is served from.
const MediaURLPrefix = "/api/uploads/"

// PostService creates, edits and deletes posts and stores their media.
type PostService struct {
	posts    repository.PostRepository
	identity *IdentityResolver
	policy   *OwnershipPolicy
	sink     media.Sink
	logger   *slog.Logger
}

func NewPostService(
	posts repository.PostRepository,
	identity *IdentityResolver,
	policy *OwnershipPolicy,
	sink media.Sink,
	logger *slog.Logger,
) *PostService {
	return &PostService{
		posts:    posts,
		identity: identity,
		policy:   policy,
		sink:     sink,
		logger:   logger,
	}
}

// CreatePostInput is a new post. UserName overrides the display name used
// when the author has to be synthesized.
type CreatePostInput struct {
	Identity    auth.Identity
	Description string
	UserName    string
	Files       []Upload
}

// Create resolves the author, stores up to MaxPostMedia files and saves the
// post with the author's current name and picture copied onto it.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*model.Post, error) {
	if len(in.Files) > model.MaxPostMedia {
		return nil, tooManyFiles()
	}

	user, err := s.identity.Resolve(ctx, in.Identity, in.UserName)
	if err != nil {
		return nil, err
	}

	mediaList, err := s.storeMedia(ctx, in.Files)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		UserID:         user.ID,
		UserName:       user.Name,
		UserProfilePic: user.ProfilePic,
		Description:    strings.TrimSpace(in.Description),
		Media:          mediaList,
		Comments:       []string{},
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		s.logger.Error("failed to create post",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/post: creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.String("postID", post.ID),
		slog.String("userID", post.UserID),
		slog.Int("media", len(post.Media)),
	)
	return post, nil
}

// List returns posts newest first.
func (s *PostService) List(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	if opts.Limit < 0 {
		opts.Limit = 0
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	posts, err := s.posts.ListPosts(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("service/post: listing posts: %w", err)
	}
	return posts, nil
}

// ListByUser returns one user's posts newest first.
func (s *PostService) ListByUser(ctx context.Context, userID string) ([]model.Post, error) {
	posts, err := s.posts.ListPostsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/post: listing posts for %s: %w", userID, err)
	}
	return posts, nil
}

func (s *PostService) Get(ctx context.Context, id string) (*model.Post, error) {
	return s.posts.GetPostByID(ctx, id)
}

// Update replaces the description of a post the caller owns.
func (s *PostService) Update(ctx context.Context, id, callerID, description string) (*model.Post, error) {
	description, err := requireDescription(description)
	if err != nil {
		return nil, err
	}

	post, err := s.authorizedPost(ctx, id, callerID)
	if err != nil {
		return nil, err
	}

	post.Description = description
	if err := s.posts.UpdatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("service/post: updating post %s: %w", id, err)
	}

	s.logger.Info("post updated", slog.String("postID", id), slog.String("callerID", callerID))
	return post, nil
}

// UpdateWithMediaInput edits a post's description and media together.
// KeepExisting keeps the current media and appends Files after it;
// otherwise Files replace it.
type UpdateWithMediaInput struct {
	PostID       string
	CallerID     string
	Description  string
	KeepExisting bool
	Files        []Upload
}

// UpdateWithMedia applies the same MaxPostMedia cap as Create, counted on
// the resulting list.
func (s *PostService) UpdateWithMedia(ctx context.Context, in UpdateWithMediaInput) (*model.Post, error) {
	description, err := requireDescription(in.Description)
	if err != nil {
		return nil, err
	}

	post, err := s.authorizedPost(ctx, in.PostID, in.CallerID)
	if err != nil {
		return nil, err
	}

	base := []model.Media{}
	if in.KeepExisting {
		base = append(base, post.Media...)
	}
	if len(base)+countNonEmpty(in.Files) > model.MaxPostMedia {
		return nil, tooManyFiles()
	}

	added, err := s.storeMedia(ctx, in.Files)
	if err != nil {
		return nil, err
	}

	post.Description = description
	post.Media = append(base, added...)
	if err := s.posts.UpdatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("service/post: updating post %s: %w", in.PostID, err)
	}

	s.logger.Info("post media updated",
		slog.String("postID", in.PostID),
		slog.Bool("keepExisting", in.KeepExisting),
		slog.Int("media", len(post.Media)),
	)
	return post, nil
}

// Delete removes a post the caller owns. Its comments stay behind.
func (s *PostService) Delete(ctx context.Context, id, callerID string) error {
	if _, err := s.authorizedPost(ctx, id, callerID); err != nil {
		return err
	}
	if err := s.posts.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("service/post: deleting post %s: %w", id, err)
	}

	s.logger.Info("post deleted", slog.String("postID", id), slog.String("callerID", callerID))
	return nil
}

// Claim hands a post to newOwnerID. Anyone holding the post ID may call it;
// there is no ownership check.
func (s *PostService) Claim(ctx context.Context, id, newOwnerID string) (*model.Post, error) {
	newOwnerID = strings.TrimSpace(newOwnerID)
	if newOwnerID == "" {
		return nil, apperror.ValidationFailed("userId", "User ID is required")
	}

	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := post.UserID
	post.UserID = newOwnerID
	if err := s.posts.UpdatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("service/post: claiming post %s: %w", id, err)
	}

	s.logger.Warn("post claimed",
		slog.String("postID", id),
		slog.String("from", previous),
		slog.String("to", newOwnerID),
	)
	return post, nil
}

// OpenMedia opens a stored media file by its stored name.
func (s *PostService) OpenMedia(ctx context.Context, name string) (*MediaFile, error) {
	rc, contentType, err := s.sink.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &MediaFile{Name: name, ContentType: contentType, Body: rc}, nil
}

func (s *PostService) authorizedPost(ctx context.Context, id, callerID string) (*model.Post, error) {
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, post.UserID, callerID); err != nil {
		return nil, err
	}
	return post, nil
}

// storeMedia saves every non-empty upload in order and returns their media
// entries. Empty or unnamed files are skipped.
func (s *PostService) storeMedia(ctx context.Context, files []Upload) ([]model.Media, error) {
	out := []model.Media{}
	for _, f := range files {
		if f.empty() {
			s.logger.Debug("skipping empty upload", slog.String("filename", f.Filename))
			continue
		}

		name, err := saveUpload(ctx, s.sink, f)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Media{
			URL:  MediaURLPrefix + name,
			Type: media.Classify(f.ContentType),
		})
	}
	return out, nil
}

func saveUpload(ctx context.Context, sink media.Sink, f Upload) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("service: opening upload %s: %w", f.Filename, err)
	}
	defer rc.Close()

	name, err := sink.Save(ctx, f.Filename, f.ContentType, rc)
	if err != nil {
		return "", fmt.Errorf("service: saving upload %s: %w", f.Filename, err)
	}
	return name, nil
}

func requireDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", apperror.ValidationFailed("description", "Description cannot be empty")
	}
	return description, nil
}

func tooManyFiles() error {
	return apperror.ValidationFailed("files",
		fmt.Sprintf("Maximum %d media files allowed", model.MaxPostMedia))
}
