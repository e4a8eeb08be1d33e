package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/techblogs/internal/auth"
	"github.com/sakif/techblogs/internal/handler"
	"github.com/sakif/techblogs/internal/media"
	"github.com/sakif/techblogs/internal/model"
	"github.com/sakif/techblogs/internal/repository/sqlite"
	"github.com/sakif/techblogs/internal/service"
)

type fixture struct {
	router *chi.Mux
	store  *sqlite.DB
	tokens *auth.TokenService
}

// newFixture wires real services over an in-memory database. devMode
// controls the unauthenticated fallback.
func newFixture(t *testing.T, devMode bool) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sink, err := media.NewLocal(t.TempDir())
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	require.NoError(t, err)

	identity := service.NewIdentityResolver(store, logger)
	policy := service.NewOwnershipPolicy(store, logger)
	passwords := auth.NewPasswordServiceForTest(4)
	users := service.NewUserService(store, passwords, logger)
	posts := service.NewPostService(store, identity, policy, sink, logger)
	comments := service.NewCommentService(store, store, store, logger)

	userHandler := handler.NewUserHandler(users, posts, logger)
	postHandler := handler.NewPostHandler(posts, identity, devMode, 10<<20, logger)
	commentHandler := handler.NewCommentHandler(comments, identity, devMode, logger)

	r := chi.NewRouter()
	r.Use(auth.Identify(tokens, nil, logger))
	r.Post("/api/users", userHandler.HandleCreate)
	r.Put("/api/users/{id}/password", userHandler.HandleSetPassword)
	r.Get("/api/users/{id}/posts", userHandler.HandlePosts)
	r.Get("/api/posts", postHandler.HandleList)
	r.Post("/api/posts", postHandler.HandleCreate)
	r.Put("/api/posts/{id}", postHandler.HandleUpdate)
	r.Put("/api/posts/{id}/claim", postHandler.HandleClaim)
	r.Post("/api/posts/{id}/update-with-media", postHandler.HandleUpdateWithMedia)
	r.Get("/api/comments", commentHandler.HandleList)
	r.Post("/api/comments", commentHandler.HandleCreate)
	r.Delete("/api/comments/{id}", commentHandler.HandleDelete)

	return &fixture{router: r, store: store, tokens: tokens}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) seedUser(t *testing.T, name, email string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: email, Followers: []string{}, Following: []string{}}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) bearer(t *testing.T, u *model.User) string {
	t.Helper()
	tok, err := f.tokens.Generate(u.ID, u.Name)
	require.NoError(t, err)
	return "Bearer " + tok
}

func multipartBody(t *testing.T, fields map[string]string, files ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, name := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, "content of "+name)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func createPost(t *testing.T, f *fixture, authz string, files ...string) model.Post {
	t.Helper()
	body, ct := multipartBody(t, map[string]string{"description": "hello"}, files...)
	req := httptest.NewRequest(http.MethodPost, "/api/posts", body)
	req.Header.Set("Content-Type", ct)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rr := f.do(req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var p model.Post
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&p))
	return p
}

func TestPostHandler_Create(t *testing.T) {
	t.Run("authenticated with media", func(t *testing.T) {
		f := newFixture(t, false)
		u := f.seedUser(t, "Ada", "ada@example.com")

		p := createPost(t, f, f.bearer(t, u), "a.png", "b.mp4")
		assert.Equal(t, u.ID, p.UserID)
		assert.Equal(t, "Ada", p.UserName)
		assert.Len(t, p.Media, 2)
	})

	t.Run("four files rejected", func(t *testing.T) {
		f := newFixture(t, false)
		u := f.seedUser(t, "Ada", "ada@example.com")

		body, ct := multipartBody(t, map[string]string{"description": "x"}, "1.png", "2.png", "3.png", "4.png")
		req := httptest.NewRequest(http.MethodPost, "/api/posts", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", f.bearer(t, u))
		rr := f.do(req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Maximum 3 media files allowed")
	})

	t.Run("anonymous outside dev profile", func(t *testing.T) {
		f := newFixture(t, false)
		body, ct := multipartBody(t, map[string]string{"description": "x", "userName": "Grace"})
		req := httptest.NewRequest(http.MethodPost, "/api/posts", body)
		req.Header.Set("Content-Type", ct)

		assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
	})

	t.Run("anonymous without a name in dev profile", func(t *testing.T) {
		f := newFixture(t, true)
		p := createPost(t, f, "")
		assert.Equal(t, service.DevUserID, p.UserID)
		assert.Equal(t, service.GuestDisplayName, p.UserName)
	})
}

func TestPostHandler_UpdateUsesSessionCaller(t *testing.T) {
	f := newFixture(t, false)
	owner := f.seedUser(t, "Ada", "ada@example.com")
	other := f.seedUser(t, "Bob", "bob@example.com")
	p := createPost(t, f, f.bearer(t, owner))

	req := httptest.NewRequest(http.MethodPut, "/api/posts/"+p.ID, strings.NewReader(`{"description":"hijack"}`))
	req.Header.Set("Authorization", f.bearer(t, other))
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)

	req = httptest.NewRequest(http.MethodPut, "/api/posts/"+p.ID, strings.NewReader(`{"description":"  "}`))
	req.Header.Set("Authorization", f.bearer(t, owner))
	rr := f.do(req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Description cannot be empty")

	req = httptest.NewRequest(http.MethodPut, "/api/posts/"+p.ID, strings.NewReader(`{"description":"edited"}`))
	req.Header.Set("Authorization", f.bearer(t, owner))
	assert.Equal(t, http.StatusOK, f.do(req).Code)

	req = httptest.NewRequest(http.MethodPut, "/api/posts/"+p.ID, strings.NewReader(`{"description":"anon"}`))
	assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
}

func TestPostHandler_UpdateWithMedia(t *testing.T) {
	f := newFixture(t, false)
	owner := f.seedUser(t, "Ada", "ada@example.com")
	p := createPost(t, f, f.bearer(t, owner), "a.png", "b.png")

	send := func(fields map[string]string, files ...string) *httptest.ResponseRecorder {
		body, ct := multipartBody(t, fields, files...)
		req := httptest.NewRequest(http.MethodPost, "/api/posts/"+p.ID+"/update-with-media", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", f.bearer(t, owner))
		return f.do(req)
	}

	rr := send(map[string]string{"description": "more"}, "c.png", "d.png")
	assert.Equal(t, http.StatusBadRequest, rr.Code, "kept media counts toward the cap by default")

	rr = send(map[string]string{"description": "more", "keepExistingMedia": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = send(map[string]string{"description": "fresh", "keepExistingMedia": "false"}, "c.png", "d.png", "e.png")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated model.Post
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&updated))
	assert.Len(t, updated.Media, 3)
	assert.Equal(t, "fresh", updated.Description)
}

func TestPostHandler_ClaimAndListByUser(t *testing.T) {
	f := newFixture(t, false)
	owner := f.seedUser(t, "Ada", "ada@example.com")
	p := createPost(t, f, f.bearer(t, owner))

	rr := f.do(httptest.NewRequest(http.MethodPut, "/api/posts/"+p.ID+"/claim", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(httptest.NewRequest(http.MethodPut, "/api/posts/"+p.ID+"/claim", strings.NewReader(`{"userId":"new-owner"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = f.do(httptest.NewRequest(http.MethodGet, "/api/users/new-owner/posts", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var posts []model.Post
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&posts))
	require.Len(t, posts, 1)
	assert.Equal(t, p.ID, posts[0].ID)
}

func TestUserHandler_SetPasswordRawBody(t *testing.T) {
	f := newFixture(t, false)
	u := f.seedUser(t, "Ada", "ada@example.com")

	rr := f.do(httptest.NewRequest(http.MethodPut, "/api/users/"+u.ID+"/password", strings.NewReader("hunter22")))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	stored, err := f.store.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.NoError(t, auth.NewPasswordServiceForTest(4).Verify(stored.PasswordHash, "hunter22"))

	rr = f.do(httptest.NewRequest(http.MethodPut, "/api/users/missing/password", strings.NewReader("hunter22")))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(httptest.NewRequest(http.MethodPut, "/api/users/"+u.ID+"/password", strings.NewReader("abc")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCommentHandler_CreateAndDelete(t *testing.T) {
	f := newFixture(t, false)
	owner := f.seedUser(t, "Ada", "ada@example.com")
	commenter := f.seedUser(t, "Bob", "bob@example.com")
	p := createPost(t, f, f.bearer(t, owner))

	req := httptest.NewRequest(http.MethodPost, "/api/comments", strings.NewReader(`{"postId":"`+p.ID+`","content":"hi"}`))
	req.Header.Set("Authorization", f.bearer(t, commenter))
	rr := f.do(req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var c model.Comment
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&c))
	assert.Equal(t, commenter.ID, c.UserID)
	assert.Equal(t, "Bob", c.UserName)

	rr = f.do(httptest.NewRequest(http.MethodDelete, "/api/comments/"+c.ID, nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "no caller outside dev profile")

	rr = f.do(httptest.NewRequest(http.MethodDelete, "/api/comments/"+c.ID+"?userId=stranger", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/api/comments?postId="+p.ID, nil))
	var remaining []model.Comment
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&remaining))
	assert.Len(t, remaining, 1, "stranger delete must be a no-op")

	req = httptest.NewRequest(http.MethodDelete, "/api/comments/"+c.ID, nil)
	req.Header.Set("Authorization", f.bearer(t, owner))
	assert.Equal(t, http.StatusNoContent, f.do(req).Code)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/api/comments?postId="+p.ID, nil))
	remaining = nil
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&remaining))
	assert.Empty(t, remaining)

	req = httptest.NewRequest(http.MethodDelete, "/api/comments/"+c.ID, nil)
	req.Header.Set("Authorization", f.bearer(t, owner))
	assert.Equal(t, http.StatusNoContent, f.do(req).Code, "deleting an absent comment is a no-op")
}
