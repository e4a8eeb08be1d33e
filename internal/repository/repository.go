// Package repository declares the storage contracts the services depend on.
// Each backend (sqlite, firestore) implements all of them on one type.
//
// Every method returns an *apperror.AppError wrapping apperror.ErrNotFound
// when the requested ID does not resolve.
package repository

import (
	"context"

	"github.com/sakif/techblogs/internal/model"
)

// ListOptions pages a listing. A zero Limit means "no limit".
type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository stores user profiles. CreateUser assigns an ID when the
// user has none and returns apperror.ErrConflict when the email is taken.
// UpdateUser overwrites every field, including password hash and follow sets.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id string) error
}

// PostRepository stores posts. Listings are ordered by creation time, newest first.
type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPostByID(ctx context.Context, id string) (*model.Post, error)
	ListPosts(ctx context.Context, opts ListOptions) ([]model.Post, error)
	ListPostsByUser(ctx context.Context, userID string) ([]model.Post, error)
	UpdatePost(ctx context.Context, post *model.Post) error
	DeletePost(ctx context.Context, id string) error
}

// CommentRepository stores comments. ListComments returns comments in
// insertion order; an empty postID lists every comment.
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetCommentByID(ctx context.Context, id string) (*model.Comment, error)
	ListComments(ctx context.Context, postID string) ([]model.Comment, error)
	UpdateComment(ctx context.Context, comment *model.Comment) error
	DeleteComment(ctx context.Context, id string) error
}

// CourseRepository stores the course catalog.
type CourseRepository interface {
	CreateCourse(ctx context.Context, course *model.Course) error
	GetCourseByID(ctx context.Context, id string) (*model.Course, error)
	ListCourses(ctx context.Context) ([]model.Course, error)
	UpdateCourse(ctx context.Context, course *model.Course) error
	DeleteCourse(ctx context.Context, id string) error
}

// Store is a complete backend. The server opens one at startup and closes it
// on shutdown.
type Store interface {
	UserRepository
	PostRepository
	CommentRepository
	CourseRepository
	Close() error
}
