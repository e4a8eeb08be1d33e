package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/auth"
	"github.com/sakif/techblogs/internal/model"
	"github.com/sakif/techblogs/internal/repository"
)

// =========================================================================
// IN-MEMORY STORE
// =========================================================================

// fakeStore implements every repository interface in memory. Records are
// copied in and out so services cannot mutate stored state by accident.
type fakeStore struct {
	mu       sync.Mutex
	seq      int
	users    map[string]model.User
	posts    map[string]model.Post
	comments map[string]model.Comment
	courses  map[string]model.Course
	order    map[string]int

	// failUserUpdate makes UpdateUser fail for the given IDs.
	failUserUpdate map[string]error
	// failPostUpdate makes UpdatePost fail.
	failPostUpdate error
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:          make(map[string]model.User),
		posts:          make(map[string]model.Post),
		comments:       make(map[string]model.Comment),
		courses:        make(map[string]model.Course),
		order:          make(map[string]int),
		failUserUpdate: make(map[string]error),
	}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeStore) stamp(id string) time.Time {
	f.seq++
	f.order[id] = f.seq
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.seq) * time.Second)
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return apperror.ConflictMsg("email already registered")
		}
	}
	if u.ID == "" {
		u.ID = f.nextID("u")
	}
	if _, ok := f.users[u.ID]; ok {
		return apperror.Conflict("user", u.ID)
	}
	u.CreatedAt = f.stamp(u.ID)
	u.UpdatedAt = u.CreatedAt
	f.users[u.ID] = cloneUser(*u)
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	out := cloneUser(u)
	return &out, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			out := cloneUser(u)
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) ListUsers(_ context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return f.order[out[i].ID] < f.order[out[j].ID] })
	return out, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failUserUpdate[u.ID]; err != nil {
		return err
	}
	if _, ok := f.users[u.ID]; !ok {
		return apperror.NotFound("user", u.ID)
	}
	f.users[u.ID] = cloneUser(*u)
	return nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	return nil
}

func (f *fakeStore) CreatePost(_ context.Context, p *model.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.nextID("p")
	p.CreatedAt = f.stamp(p.ID)
	p.UpdatedAt = p.CreatedAt
	f.posts[p.ID] = clonePost(*p)
	return nil
}

func (f *fakeStore) GetPostByID(_ context.Context, id string) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	out := clonePost(p)
	return &out, nil
}

func (f *fakeStore) ListPosts(_ context.Context, opts repository.ListOptions) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.sortedPosts("")
	if opts.Offset >= len(all) {
		return []model.Post{}, nil
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, nil
}

func (f *fakeStore) ListPostsByUser(_ context.Context, userID string) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedPosts(userID), nil
}

func (f *fakeStore) sortedPosts(userID string) []model.Post {
	out := []model.Post{}
	for _, p := range f.posts {
		if userID == "" || p.UserID == userID {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return f.order[out[i].ID] > f.order[out[j].ID] })
	return out
}

func (f *fakeStore) UpdatePost(_ context.Context, p *model.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPostUpdate != nil {
		return f.failPostUpdate
	}
	if _, ok := f.posts[p.ID]; !ok {
		return apperror.NotFound("post", p.ID)
	}
	f.posts[p.ID] = clonePost(*p)
	return nil
}

func (f *fakeStore) DeletePost(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return apperror.NotFound("post", id)
	}
	delete(f.posts, id)
	return nil
}

func (f *fakeStore) CreateComment(_ context.Context, c *model.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.nextID("c")
	c.CreatedAt = f.stamp(c.ID)
	c.UpdatedAt = c.CreatedAt
	f.comments[c.ID] = *c
	return nil
}

func (f *fakeStore) GetCommentByID(_ context.Context, id string) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return nil, apperror.NotFound("comment", id)
	}
	return &c, nil
}

func (f *fakeStore) ListComments(_ context.Context, postID string) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Comment{}
	for _, c := range f.comments {
		if postID == "" || c.PostID == postID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return f.order[out[i].ID] < f.order[out[j].ID] })
	return out, nil
}

func (f *fakeStore) UpdateComment(_ context.Context, c *model.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.comments[c.ID]; !ok {
		return apperror.NotFound("comment", c.ID)
	}
	f.comments[c.ID] = *c
	return nil
}

func (f *fakeStore) DeleteComment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.comments[id]; !ok {
		return apperror.NotFound("comment", id)
	}
	delete(f.comments, id)
	return nil
}

func (f *fakeStore) CreateCourse(_ context.Context, c *model.Course) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.nextID("course")
	c.CreatedAt = f.stamp(c.ID)
	c.UpdatedAt = c.CreatedAt
	f.courses[c.ID] = *c
	return nil
}

func (f *fakeStore) GetCourseByID(_ context.Context, id string) (*model.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[id]
	if !ok {
		return nil, apperror.NotFound("course", id)
	}
	return &c, nil
}

func (f *fakeStore) ListCourses(_ context.Context) ([]model.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Course{}
	for _, c := range f.courses {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return f.order[out[i].ID] < f.order[out[j].ID] })
	return out, nil
}

func (f *fakeStore) UpdateCourse(_ context.Context, c *model.Course) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.courses[c.ID]
	if !ok {
		return apperror.NotFound("course", c.ID)
	}
	c.CreatedAt = existing.CreatedAt
	f.courses[c.ID] = *c
	return nil
}

func (f *fakeStore) DeleteCourse(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.courses[id]; !ok {
		return apperror.NotFound("course", id)
	}
	delete(f.courses, id)
	return nil
}

func cloneUser(u model.User) model.User {
	u.Followers = append([]string{}, u.Followers...)
	u.Following = append([]string{}, u.Following...)
	return u
}

func clonePost(p model.Post) model.Post {
	p.Media = append([]model.Media{}, p.Media...)
	p.Comments = append([]string{}, p.Comments...)
	return p
}

// =========================================================================
// MEDIA SINK
// =========================================================================

// fakeSink keeps saved files in memory under sequential names.
type fakeSink struct {
	mu    sync.Mutex
	files map[string]string
	types map[string]string
	seq   int
}

func newFakeSink() *fakeSink {
	return &fakeSink{files: make(map[string]string), types: make(map[string]string)}
}

func (s *fakeSink) Save(_ context.Context, originalName, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	name := fmt.Sprintf("%d_%s", s.seq, originalName)
	s.files[name] = string(data)
	s.types[name] = contentType
	return name, nil
}

func (s *fakeSink) Open(_ context.Context, name string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	if !ok {
		return nil, "", apperror.NotFound("file", name)
	}
	return io.NopCloser(strings.NewReader(data)), s.types[name], nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func upload(name, contentType, body string) Upload {
	return Upload{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func seedUser(t *testing.T, store *fakeStore, id, name, email string) *model.User {
	t.Helper()
	u := &model.User{ID: id, Name: name, Email: email, Followers: []string{}, Following: []string{}}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return u
}

func wantKind(t *testing.T, err, kind error) {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want %v", kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("error = %v, want %v", err, kind)
	}
}

type stubVerifier struct {
	ext *auth.External
	err error
}

func (s stubVerifier) VerifyIDToken(_ context.Context, _ string) (*auth.External, error) {
	return s.ext, s.err
}

func storedUser(store *fakeStore, id string) *model.User {
	u := cloneUser(store.users[id])
	return &u
}
