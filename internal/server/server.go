// Package server is the composition root: it opens the store and media
// sinks selected by configuration, builds services and handlers, registers
// routes and middleware, and runs the HTTP server until a shutdown signal.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/techblogs/internal/auth"
	"github.com/sakif/techblogs/internal/config"
	"github.com/sakif/techblogs/internal/handler"
	"github.com/sakif/techblogs/internal/media"
	"github.com/sakif/techblogs/internal/middleware"
	"github.com/sakif/techblogs/internal/repository"
	firestoreRepo "github.com/sakif/techblogs/internal/repository/firestore"
	sqliteRepo "github.com/sakif/techblogs/internal/repository/sqlite"
	"github.com/sakif/techblogs/internal/service"
)

// gcsPostPrefix is the object prefix for post media in the GCS backend.
const gcsPostPrefix = "posts/"

// Server owns the router and every resource opened at startup. Resources
// are closed in reverse order on shutdown.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	store   repository.Store
	limiter *middleware.RateLimiter
	closers []io.Closer
}

// New opens the configured backends and wires the routes. On error every
// resource opened so far is closed again.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		limiter: middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
	}

	if err := s.setup(ctx); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *Server) setup(ctx context.Context) error {
	store, err := s.openStore(ctx)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	s.store = store
	s.closers = append(s.closers, store)

	postMedia, err := s.openPostMedia(ctx)
	if err != nil {
		return fmt.Errorf("opening media sink: %w", err)
	}

	courseVideos, err := media.NewLocal(s.config.CourseUploadDir)
	if err != nil {
		return fmt.Errorf("opening course upload directory: %w", err)
	}

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	verifier, err := s.openVerifier(ctx)
	if err != nil {
		return fmt.Errorf("creating ID token verifier: %w", err)
	}

	var google *auth.GoogleProvider
	if s.config.GoogleOAuthEnabled() {
		google = auth.NewGoogleProvider(s.config.GoogleClientID, s.config.GoogleClientSecret, s.config.GoogleCallbackURL)
	} else {
		s.logger.Info("Google OAuth2 redirect flow disabled: GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set")
	}

	s.routes(tokens, verifier, google, postMedia, courseVideos)
	return nil
}

func (s *Server) openStore(ctx context.Context) (repository.Store, error) {
	switch s.config.StoreBackend {
	case config.StoreFirestore:
		s.logger.Info("using firestore store", slog.String("project", s.config.FirestoreProjectID))
		return firestoreRepo.New(ctx, s.config.FirestoreProjectID, s.config.FirestoreCredentialsFile)
	default:
		if s.config.DBPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(s.config.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		s.logger.Info("using sqlite store", slog.String("path", s.config.DBPath))
		return sqliteRepo.New(s.config.DBPath)
	}
}

func (s *Server) openPostMedia(ctx context.Context) (media.Sink, error) {
	switch s.config.MediaBackend {
	case config.MediaGCS:
		sink, err := media.NewGCS(ctx, s.config.GCSBucket, gcsPostPrefix, s.config.GCSCredentialsFile)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, sink)
		s.logger.Info("using gcs media sink", slog.String("bucket", s.config.GCSBucket))
		return sink, nil
	default:
		sink, err := media.NewLocal(s.config.UploadDir)
		if err != nil {
			return nil, err
		}
		s.logger.Info("using local media sink", slog.String("dir", sink.Dir()))
		return sink, nil
	}
}

// openVerifier returns nil, and no error, when Firebase is not configured.
func (s *Server) openVerifier(ctx context.Context) (auth.IDTokenVerifier, error) {
	if s.config.FirebaseProjectID == "" {
		return nil, nil
	}
	v, err := auth.NewFirebaseVerifier(ctx, s.config.FirebaseProjectID, s.config.FirestoreCredentialsFile)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// routes registers middleware and handlers.
//
// Middleware order: RequestID, RealIP, Logger, Recoverer, RateLimit, CORS,
// then Identify, which attaches the caller's identity for every handler.
func (s *Server) routes(
	tokens *auth.TokenService,
	verifier auth.IDTokenVerifier,
	google *auth.GoogleProvider,
	postMedia media.Sink,
	courseVideos *media.Local,
) {
	logger := s.logger
	devMode := s.config.DevMode()
	maxUpload := s.config.MaxUploadBytes()

	identity := service.NewIdentityResolver(s.store, logger)
	policy := service.NewOwnershipPolicy(s.store, logger)
	passwords := auth.NewPasswordService()

	userService := service.NewUserService(s.store, passwords, logger)
	postService := service.NewPostService(s.store, identity, policy, postMedia, logger)
	commentService := service.NewCommentService(s.store, s.store, s.store, logger)
	courseService := service.NewCourseService(s.store, courseVideos, logger)
	authService := service.NewAuthService(s.store, identity, passwords, tokens, verifier, devMode, logger)

	authHandler := handler.NewAuthHandler(authService, google, !devMode, logger)
	userHandler := handler.NewUserHandler(userService, postService, logger)
	postHandler := handler.NewPostHandler(postService, identity, devMode, maxUpload, logger)
	commentHandler := handler.NewCommentHandler(commentService, identity, devMode, logger)
	courseHandler := handler.NewCourseHandler(courseService, maxUpload, logger)

	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RateLimit(s.limiter))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.Identify(tokens, verifier, logger))

	r.Get("/healthz", handler.HandleHealth)

	// Course videos are public static files.
	fileServer := http.FileServer(filesOnly{http.Dir(courseVideos.Dir())})
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", fileServer))

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.HandleGoogleLogin)
		r.Get("/google/callback", authHandler.HandleGoogleCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/test", authHandler.HandleTest)
		r.With(auth.RequireAuth).Get("/me", authHandler.HandleMe)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/google", authHandler.HandleGoogle)
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", userHandler.HandleList)
			r.Post("/", userHandler.HandleCreate)
			r.Get("/email/{email}", userHandler.HandleGetByEmail)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", userHandler.HandleGet)
				r.Get("/followers", userHandler.HandleFollowers)
				r.Get("/following", userHandler.HandleFollowing)
				r.Get("/posts", userHandler.HandlePosts)

				// Account changes need credentials unless the dev profile is on.
				r.Group(func(r chi.Router) {
					if !devMode {
						r.Use(auth.RequireAuth)
					}
					r.Put("/", userHandler.HandleUpdate)
					r.Delete("/", userHandler.HandleDelete)
					r.Put("/password", userHandler.HandleSetPassword)
					r.Put("/follow/{targetId}", userHandler.HandleFollow)
					r.Put("/unfollow/{targetId}", userHandler.HandleUnfollow)
				})
			})
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postHandler.HandleList)
			r.Post("/", postHandler.HandleCreate)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", postHandler.HandleGet)
				r.Put("/", postHandler.HandleUpdate)
				r.Delete("/", postHandler.HandleDelete)
				r.Post("/update-with-media", postHandler.HandleUpdateWithMedia)
				r.Put("/claim", postHandler.HandleClaim)
			})
		})
		r.Get("/uploads/{fileName}", postHandler.HandleServeUpload)

		r.Route("/comments", func(r chi.Router) {
			r.Get("/", commentHandler.HandleList)
			r.Post("/", commentHandler.HandleCreate)
			r.Get("/{id}", commentHandler.HandleGet)
			r.Put("/{id}", commentHandler.HandleUpdate)
			r.Delete("/{id}", commentHandler.HandleDelete)
			r.Delete("/{id}/{userId}", commentHandler.HandleDelete)
		})

		r.Route("/courses", func(r chi.Router) {
			r.Post("/create", courseHandler.HandleCreate)
			r.Get("/getall", courseHandler.HandleList)
			r.Get("/get/{id}", courseHandler.HandleGet)
			r.Put("/update/{id}", courseHandler.HandleUpdate)
			r.Delete("/delete/{id}", courseHandler.HandleDelete)
			r.Post("/upload", courseHandler.HandleUpload)
		})
	})
}

// filesOnly hides directories so the static handler never lists them.
type filesOnly struct {
	root http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the store and sinks.
func (s *Server) Start() error {
	defer s.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.limiter.Run(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("profile", s.config.Profile),
			slog.String("store", s.config.StoreBackend),
			slog.String("media", s.config.MediaBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases the store and sinks without serving. Start does this on
// its own.
func (s *Server) Close() {
	s.close()
}

func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.logger.Warn("failed to close resource", slog.String("error", err.Error()))
		}
	}
	s.closers = nil
}
