package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/tabshell/internal/api/http"
	"github.com/GriffinCanCode/tabshell/internal/api/middleware"
	"github.com/GriffinCanCode/tabshell/internal/api/ws"
	"github.com/GriffinCanCode/tabshell/internal/domain/bookmark"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/config"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/tabshell/internal/providers/metadata"
	"github.com/GriffinCanCode/tabshell/internal/storage/sqlite"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	handler http.Handler
	http    *http.Server
	store   *sqlite.Store
	hub     *ws.Hub
	tracer  *tracing.Tracer
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.FromConfig(cfg.Logging)

	logger.Info("Initializing bookmark API",
		zap.String("port", cfg.Server.Port),
		zap.String("db", cfg.Storage.DBPath),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open bookmark database: %w", err)
	}

	enrichOpts := metadata.Options{
		Timeout:        cfg.Enricher.Timeout,
		FaviconService: cfg.Enricher.FaviconService,
	}
	enricher := metadata.NewEnricher(metadata.NewClient(enrichOpts), enrichOpts, logger.Logger).
		WithMetrics(metrics)

	hub := ws.NewHub(metrics, logger.Logger)
	service := bookmark.NewService(store, enricher, logger.Logger).
		WithEvents(hub).
		WithMetrics(metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	tracer := tracing.New("bookmarks", logger.Logger)
	router := NewRouter(cfg, service, store, hub, tracer, metrics, logger.Logger)

	handler := compress(router)

	logger.Info("Server initialized successfully")

	return &Server{
		handler: handler,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:   store,
		hub:     hub,
		tracer:  tracer,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// NewRouter builds the gin engine serving the bookmark API
func NewRouter(
	cfg *config.Config,
	service *bookmark.Service,
	db apihttp.Pinger,
	hub *ws.Hub,
	tracer *tracing.Tracer,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(middleware.AccessLog(logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(service, db, hub, logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Bookmarks, on both the bare and the /api layout
	handlers.RegisterBookmarks(router.Group("/bookmarks"))
	handlers.RegisterBookmarks(router.Group("/api/bookmarks"))

	// WebSocket
	router.GET("/stream", hub.HandleConnection)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router
}

// compress gzips responses for clients that accept it. Websocket upgrades
// need the raw connection and skip it; bodies under gzhttp's minimum size
// go out uncompressed.
func compress(next http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}

// Handler exposes the full handler chain, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// the database
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	s.hub.Close()

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP shutdown failed", zap.Error(err))
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	s.tracer.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	// Sync logger before exit
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
