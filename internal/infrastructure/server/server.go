package server

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/controller"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/persistence"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/registry"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/infrastructure/tracing"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *nethttp.Server
	loop     *controller.Loop
	registry *registry.Manager
	hub      *ws.Hub
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// Options override collaborators NewServer would otherwise build
type Options struct {
	// Logger replaces the logger built from the config
	Logger *logging.Logger
	// Registry is used instead of an empty one; manifests are still seeded
	// into it
	Registry *registry.Manager
	// Store replaces the store built from the config. It is still wrapped in
	// the circuit breaker.
	Store persistence.Store
	// Inflater resolves component layouts
	Inflater controller.Inflater
	// Windows replaces the headless window manager
	Windows controller.WindowManager
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
			Service:     "lifecycle",
			Sample:      true,
		})
		if err != nil {
			return nil, err
		}
	}

	logger.Info("Initializing lifecycle host",
		zap.String("addr", cfg.Server.Address()),
		zap.String("kill_policy", cfg.Host.KillPolicy),
		zap.String("capture_policy", cfg.Host.CapturePolicy),
		zap.Bool("multi_resume", cfg.Host.MultiResume),
	)

	// Metrics first, everything else reports into them
	promRegistry := prometheus.NewRegistry()
	var metrics *monitoring.Metrics
	if cfg.Server.Metrics {
		promRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = monitoring.NewMetrics(promRegistry)
		logger.Info("Performance monitoring initialized")
	}

	tracer := tracing.New("lifecycle", logger.Subsystem("tracing"),
		tracing.WithSlowThreshold(250*time.Millisecond),
	)

	// Component definitions
	defs := opts.Registry
	if defs == nil {
		defs = registry.NewManager()
	}
	if cfg.Manifests.Dir != "" {
		seeder := registry.NewSeeder(defs, cfg.Manifests.Dir, logger.Subsystem("registry"))
		loaded, failed, err := seeder.Seed()
		if err != nil {
			tracer.Close()
			return nil, fmt.Errorf("failed to seed definitions: %w", err)
		}
		logger.Info("Component manifests loaded",
			zap.Int("definitions", loaded),
			zap.Int("failed", failed),
		)
	}
	if metrics != nil {
		metrics.SetDefinitions(defs.Len())
	}

	store, err := newStore(cfg.Persistence, opts.Store, metrics, logger)
	if err != nil {
		tracer.Close()
		return nil, err
	}

	hub := ws.NewHub(64, logger.Subsystem("stream"))

	ctrlOpts := controller.Options{
		Policy:     policyOf(cfg.Host),
		Registry:   defs,
		Store:      store,
		Windows:    opts.Windows,
		Inflater:   opts.Inflater,
		Supervisor: hub,
		Tracer:     tracer,
		Logger:     logger.Subsystem("controller"),
	}
	if metrics != nil {
		ctrlOpts.Metrics = metrics
	}
	ctrl := controller.New(ctrlOpts)
	ctrl.Observe(hub)
	loop := controller.NewLoop(ctrl, cfg.Host.QueueBuffer)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.UseRawPath = true

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	if metrics != nil {
		router.Use(monitoring.Middleware(metrics))
	}
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	handlers := http.NewHandlers(loop, defs, metrics, logger, logger.Subsystem("api"))
	handlers.Guard(store.Breaker())
	http.Register(router, handlers)

	wsHandler := ws.NewHandler(hub, metrics, logger.Subsystem("stream"))
	router.GET("/stream", wsHandler.HandleConnection)

	host := cfg.Host
	router.GET("/host/policy", func(c *gin.Context) {
		data, err := config.EncodePolicy(host)
		if err != nil {
			c.JSON(nethttp.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(nethttp.StatusOK, "application/toml", data)
	})

	if metrics != nil {
		router.GET("/metrics", monitoring.Handler(promRegistry))
	}

	logger.Info("Server initialized successfully",
		zap.Strings("capabilities", ctrl.Capabilities()),
	)

	return &Server{
		router:   router,
		loop:     loop,
		registry: defs,
		hub:      hub,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		http: &nethttp.Server{
			Addr:              cfg.Server.Address(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// newStore builds the saved-state store behind a circuit breaker
func newStore(cfg config.PersistenceConfig, override persistence.Store, metrics *monitoring.Metrics, logger *logging.Logger) (*persistence.BreakerStore, error) {
	store := override
	if store == nil {
		if cfg.StateDir != "" {
			fs, err := persistence.NewFileStore(cfg.StateDir)
			if err != nil {
				return nil, fmt.Errorf("failed to open state dir: %w", err)
			}
			store = fs
			logger.Info("Saved state kept on disk", zap.String("dir", cfg.StateDir))
		} else {
			store = persistence.NewMemoryStore()
			logger.Info("Saved state kept in memory")
		}
	}

	storeLogger := logger.Subsystem("store")
	breaker := resilience.New("state-store", resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		OnStateChange: func(name string, from, to resilience.State) {
			storeLogger.Warn("Store circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if metrics != nil {
				metrics.SetBreakerState(name, int(to))
			}
		},
	})
	return persistence.NewBreakerStore(store, breaker), nil
}

// policyOf maps the host config onto controller policy
func policyOf(h config.HostConfig) controller.Policy {
	return controller.Policy{
		MultiResume:       h.MultiResume,
		MaxResumed:        h.MaxResumed,
		KillPolicy:        lifecycle.ParseKillPolicy(h.KillPolicy),
		CaptureDeferred:   h.CapturePolicy == config.CaptureDeferred,
		RequireDefinition: h.RequireDefinition,
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() nethttp.Handler {
	return s.router
}

// Loop returns the controller loop
func (s *Server) Loop() *controller.Loop {
	return s.loop
}

// Hub returns the transition stream hub
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Run starts the controller loop and the HTTP server and blocks until ctx is
// cancelled or either fails. Shutdown is graceful within the configured
// timeout.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.loop.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	s.Close()
	return err
}

// Close releases resources that outlive Run
func (s *Server) Close() {
	s.tracer.Close()
	_ = s.logger.Sync()
}
