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
	"github.com/sakif/techblogs/internal/repository"
)

type mediaDoc struct {
	URL  string `firestore:"url"`
	Type string `firestore:"type"`
}

type postDoc struct {
	ID             string     `firestore:"id"`
	UserID         string     `firestore:"userId"`
	UserName       string     `firestore:"userName"`
	UserProfilePic string     `firestore:"userProfilePic"`
	Description    string     `firestore:"description"`
	Media          []mediaDoc `firestore:"media"`
	Comments       []string   `firestore:"comments"`
	CreatedAt      time.Time  `firestore:"createdAt"`
	UpdatedAt      time.Time  `firestore:"updatedAt"`
}

func toMediaDocs(media []model.Media) []mediaDoc {
	out := make([]mediaDoc, 0, len(media))
	for _, m := range media {
		out = append(out, mediaDoc{URL: m.URL, Type: string(m.Type)})
	}
	return out
}

func toPostDoc(p *model.Post) postDoc {
	return postDoc{
		ID:             p.ID,
		UserID:         p.UserID,
		UserName:       p.UserName,
		UserProfilePic: p.UserProfilePic,
		Description:    p.Description,
		Media:          toMediaDocs(p.Media),
		Comments:       orEmpty(p.Comments),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (d postDoc) model() model.Post {
	media := make([]model.Media, 0, len(d.Media))
	for _, m := range d.Media {
		media = append(media, model.Media{URL: m.URL, Type: model.MediaType(m.Type)})
	}
	return model.Post{
		ID:             d.ID,
		UserID:         d.UserID,
		UserName:       d.UserName,
		UserProfilePic: d.UserProfilePic,
		Description:    d.Description,
		Media:          media,
		Comments:       orEmpty(d.Comments),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func postModels(docs []postDoc) []model.Post {
	posts := make([]model.Post, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, d.model())
	}
	return posts
}

func (s *Store) CreatePost(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now

	if _, err := s.col(postsCollection).Doc(post.ID).Create(ctx, toPostDoc(post)); err != nil {
		return fmt.Errorf("firestore: creating post: %w", err)
	}
	return nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	snap, err := s.col(postsCollection).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("firestore: getting post %s: %w", id, err)
	}

	var d postDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("firestore: decoding post %s: %w", id, err)
	}
	p := d.model()
	return &p, nil
}

// ListPosts returns posts newest first. A zero opts.Limit returns everything.
func (s *Store) ListPosts(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	q := s.col(postsCollection).OrderBy("createdAt", firestore.Desc)
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	docs, err := collect[postDoc](q.Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("firestore: listing posts: %w", err)
	}
	return postModels(docs), nil
}

func (s *Store) ListPostsByUser(ctx context.Context, userID string) ([]model.Post, error) {
	docs, err := collect[postDoc](s.col(postsCollection).Where("userId", "==", userID).Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("firestore: listing posts for user %s: %w", userID, err)
	}
	posts := postModels(docs)
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	return posts, nil
}

func (s *Store) UpdatePost(ctx context.Context, post *model.Post) error {
	post.UpdatedAt = time.Now().UTC()

	_, err := s.col(postsCollection).Doc(post.ID).Update(ctx, []firestore.Update{
		{Path: "userId", Value: post.UserID},
		{Path: "userName", Value: post.UserName},
		{Path: "userProfilePic", Value: post.UserProfilePic},
		{Path: "description", Value: post.Description},
		{Path: "media", Value: toMediaDocs(post.Media)},
		{Path: "comments", Value: orEmpty(post.Comments)},
		{Path: "updatedAt", Value: post.UpdatedAt},
	})
	if err != nil {
		if isNotFound(err) {
			return apperror.NotFound("post", post.ID)
		}
		return fmt.Errorf("firestore: updating post %s: %w", post.ID, err)
	}
	return nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	return s.deleteDoc(ctx, postsCollection, "post", id)
}
