package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/curiolabs/curio/internal/approval"
	"github.com/curiolabs/curio/internal/config"
	"github.com/curiolabs/curio/internal/logging"
	"github.com/curiolabs/curio/internal/monitoring"
	"github.com/curiolabs/curio/internal/providers/sources"
	"github.com/curiolabs/curio/internal/registry"
	"github.com/curiolabs/curio/internal/sandbox"
	"github.com/curiolabs/curio/internal/sanitize"
	"github.com/curiolabs/curio/internal/store"
	"github.com/curiolabs/curio/internal/toolcache"
	"github.com/curiolabs/curio/internal/ws"
)

// Server wraps the HTTP server and dependencies.
type Server struct {
	cfg      *config.Config
	router   *gin.Engine
	httpSrv  *http.Server
	store    store.Store
	gate     *approval.Gate
	cache    *toolcache.Cache
	registry *registry.Registry
	metrics  *monitoring.Metrics
	logger   *logging.Logger
}

// NewServer creates a server instance and wires all components.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	log := logger.WithComponent("server")

	// Persistence is optional; everything degrades gracefully without it.
	var st store.Store
	if cfg.Store.Enabled {
		sqlite, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			log.Warn("store unavailable, running without persistence", zap.Error(err))
		} else {
			st = sqlite
		}
	}

	bus := approval.NewBus()
	gate := approval.New(st, bus, logger, approval.Config{
		DecisionTimeout: cfg.Approval.DecisionTimeout,
		StaleAfter:      cfg.Approval.StaleAfter,
	})
	gate.Reconcile(context.Background())

	metrics := monitoring.NewMetrics()
	cache := toolcache.New(st, logger, toolcache.WithTTL(cfg.Cache.TTL), toolcache.WithObserver(metrics))
	if removed := cache.CleanupExpired(context.Background()); removed > 0 {
		log.Info("swept expired cache entries", zap.Int("removed", removed))
	}

	reg := registry.New(cache, gate, logger)
	if err := reg.Register(sources.NewProvider(st, logger)); err != nil {
		return nil, err
	}

	sanitizer := sanitize.New()
	sandboxCfg := sandbox.Config{
		RenderTimeout: cfg.Sandbox.RenderTimeout,
		SettleDelay:   cfg.Sandbox.SettleDelay,
		ScriptTimeout: cfg.Sandbox.ScriptTimeout,
	}
	wsHandler := ws.NewHandler(sandboxCfg, sanitizer, gate, metrics, logger)
	handlers := NewHandlers(reg, gate, metrics, logger)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(corsMiddleware())
	if cfg.RateLimit.Enabled {
		router.Use(rateLimit(cfg.RateLimit))
	}

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/stats", handlers.Stats)

	router.GET("/services", handlers.ListServices)
	router.POST("/services/execute", handlers.ExecuteService)

	router.GET("/approvals", handlers.ListApprovals)
	router.GET("/approvals/:id", handlers.GetApproval)
	router.POST("/approvals/:id", handlers.RespondApproval)

	router.GET("/stream", wsHandler.HandleConnection)

	stats := reg.Stats()
	log.Info("services registered",
		zap.Any("total_services", stats["total_services"]),
		zap.Any("total_tools", stats["total_tools"]))

	return &Server{
		cfg:      cfg,
		router:   router,
		store:    st,
		gate:     gate,
		cache:    cache,
		registry: reg,
		metrics:  metrics,
		logger:   log,
	}, nil
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Registry exposes the tool registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Gate exposes the approval gate.
func (s *Server) Gate() *approval.Gate {
	return s.gate
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	s.logger.Info("starting server", zap.String("addr", addr))

	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	s.gate.Bus().Close()
	if closer, ok := s.store.(*store.SQLite); ok && closer != nil {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
