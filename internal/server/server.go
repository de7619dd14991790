// Package server is the composition root: it wires the store, services,
// handlers and middleware into one chi router and runs the HTTP server.
//
// DEPENDENCY FLOW:
//
//	config.Config → OpenStore / OpenBlobStore
//	repository.Store + blobstore.Store → services → handlers → routes
//
// Each layer only receives what it needs. Handlers never touch the store
// and services never touch HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/blog-platform/internal/auth"
	"github.com/sakif/blog-platform/internal/config"
	"github.com/sakif/blog-platform/internal/handler"
	"github.com/sakif/blog-platform/internal/middleware"
	"github.com/sakif/blog-platform/internal/repository"
	"github.com/sakif/blog-platform/internal/service"
)

// Deps is everything NewRouter needs. Store and Blobs are opened by the
// caller so tests can hand in an in-memory database and a temp directory.
type Deps struct {
	Config *config.Config
	Store  repository.Store
	Blobs  Blobs
	Logger *slog.Logger

	// Passwords defaults to bcrypt at Config.Auth.BcryptCost.
	Passwords *auth.PasswordService

	// Google defaults to the real provider when Config.Google is enabled.
	// Leave nil to use that default.
	Google handler.GoogleAuth
}

// NewRouter builds the full route table.
//
// ROUTES (all JSON, under /api unless noted):
//
//	/api/auth      register, login, logout, me, google/login, google/callback
//	/api/user      get-user, update-user, get-all-user (admin), delete (admin)
//	/api/category  add, update, show, delete (admin); all-category (public)
//	/api/blog      add, edit, update, delete, get-all (signed in); the rest public
//	/api/comment   add, get-all-comment, delete (signed in); get, get-count public
//	/healthz       store ping
//	/metrics       Prometheus exposition, when enabled
//	/uploads/*     filesystem blob store, when that backend is used
//
// MIDDLEWARE ORDER: RequestID, RealIP, Logger, Recoverer, metrics, CORS.
// Recoverer sits inside Logger so a recovered panic is still logged as 500.
func NewRouter(d Deps) (*chi.Mux, error) {
	cfg := d.Config

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	passwords := d.Passwords
	if passwords == nil {
		passwords = auth.NewPasswordService(cfg.Auth.BcryptCost)
	}
	google := d.Google
	if google == nil && cfg.Google.Enabled() {
		google = auth.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL)
	}

	rs := handler.NewResponder(d.Logger, cfg.Server.ExposeInternalErrors)
	gate := auth.NewGate(tokens, rs.WriteError)
	cookies := auth.CookieOptions{Secure: cfg.IsProduction(), TTL: cfg.Auth.TokenTTL}
	maxUpload := cfg.Storage.MaxUploadBytes

	authHandler := handler.NewAuthHandler(
		service.NewAuthService(d.Store, tokens, passwords, d.Logger),
		google, cookies, cfg.CORS.FrontendURL, rs, d.Logger,
	)
	userHandler := handler.NewUserHandler(
		service.NewUserService(d.Store, passwords, d.Blobs.Store, d.Logger), maxUpload, rs)
	categoryHandler := handler.NewCategoryHandler(
		service.NewCategoryService(d.Store, d.Logger), rs)
	blogHandler := handler.NewBlogHandler(
		service.NewBlogService(d.Store, d.Store, d.Blobs.Store, d.Logger), maxUpload, rs)
	commentHandler := handler.NewCommentHandler(
		service.NewCommentService(d.Store, d.Store, d.Logger), rs)
	healthHandler := handler.NewHealthHandler(d.Store, d.Logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimiddleware.Recoverer)
	var metrics *middleware.Metrics
	if cfg.Metrics.Enabled {
		metrics = middleware.NewMetrics()
		r.Use(metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(rs.NotFound)
	r.MethodNotAllowed(rs.MethodNotAllowed)

	r.Get("/healthz", healthHandler.HandleHealth)
	if metrics != nil {
		r.Method(http.MethodGet, cfg.Metrics.Path, metrics.Handler())
	}

	if d.Blobs.UploadDir != "" {
		fileServer := http.FileServer(http.Dir(d.Blobs.UploadDir))
		r.Handle("/uploads/*", uploadHeaders(http.StripPrefix("/uploads/", fileServer)))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.With(gate.Authenticate).Get("/logout", authHandler.HandleLogout)
			r.With(gate.Authenticate).Get("/me", authHandler.HandleMe)
			if authHandler.GoogleEnabled() {
				r.Get("/google/login", authHandler.HandleGoogleLogin)
				r.Get("/google/callback", authHandler.HandleGoogleCallback)
			}
		})

		r.Route("/user", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(gate.Authenticate)
				r.Get("/get-user/{userid}", userHandler.HandleGet)
				r.Put("/update-user/{userid}", userHandler.HandleUpdate)
			})
			r.Group(func(r chi.Router) {
				r.Use(gate.RequireAdmin)
				r.Get("/get-all-user", userHandler.HandleList)
				r.Delete("/delete/{id}", userHandler.HandleDelete)
			})
		})

		r.Route("/category", func(r chi.Router) {
			r.Get("/all-category", categoryHandler.HandleAll)
			r.Group(func(r chi.Router) {
				r.Use(gate.RequireAdmin)
				r.Post("/add", categoryHandler.HandleAdd)
				r.Put("/update/{categoryid}", categoryHandler.HandleUpdate)
				r.Get("/show/{categoryid}", categoryHandler.HandleShow)
				r.Delete("/delete/{categoryid}", categoryHandler.HandleDelete)
			})
		})

		r.Route("/blog", func(r chi.Router) {
			r.Get("/blogs", blogHandler.HandleBlogs)
			r.Get("/get-blog/{slug}", blogHandler.HandleGetBlog)
			r.Get("/get-blog-by-category/{category}", blogHandler.HandleByCategory)
			r.Get("/get-related-blog/{category}/{blog}", blogHandler.HandleRelated)
			r.Get("/search", blogHandler.HandleSearch)
			r.Group(func(r chi.Router) {
				r.Use(gate.Authenticate)
				r.Post("/add", blogHandler.HandleAdd)
				r.Get("/edit/{blogid}", blogHandler.HandleEdit)
				r.Put("/update/{blogid}", blogHandler.HandleUpdate)
				r.Delete("/delete/{blogid}", blogHandler.HandleDelete)
				r.Get("/get-all", blogHandler.HandleGetAll)
			})
		})

		r.Route("/comment", func(r chi.Router) {
			r.Get("/get/{blogid}", commentHandler.HandleGet)
			r.Get("/get-count/{blogid}", commentHandler.HandleCount)
			r.Group(func(r chi.Router) {
				r.Use(gate.Authenticate)
				r.Post("/add", commentHandler.HandleAdd)
				r.Get("/get-all-comment", commentHandler.HandleGetAll)
				r.Delete("/delete/{commentid}", commentHandler.HandleDelete)
			})
		})
	})

	return r, nil
}

// uploadHeaders stops browsers from sniffing or running anything served
// from the upload directory.
func uploadHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", "sandbox")
		next.ServeHTTP(w, r)
	})
}

// Server owns the router and the store it was built from.
type Server struct {
	router http.Handler
	config *config.Config
	logger *slog.Logger
	store  repository.Store
}

// New opens the store and blob backend named by cfg and builds the router.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	blobs, err := OpenBlobStore(ctx, cfg.Storage)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening blob store: %w", err)
	}

	router, err := NewRouter(Deps{Config: cfg, Store: store, Blobs: blobs, Logger: logger})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return &Server{router: router, config: cfg, logger: logger, store: store}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to server.shutdown_timeout and closes the store.
func (s *Server) Start() error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("env", s.config.Server.Env),
			slog.String("database", s.config.Database.Driver),
			slog.String("storage", s.config.Storage.Backend),
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

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
