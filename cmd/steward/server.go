package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forumkit/steward/comments"
	"github.com/forumkit/steward/moderation"
	"github.com/forumkit/steward/moderation/analyzer"
	"github.com/forumkit/steward/moderation/behavior"
	"github.com/forumkit/steward/moderation/cachestore"
	"github.com/forumkit/steward/moderation/countstore"
	"github.com/forumkit/steward/moderation/flagstore"
	"github.com/forumkit/steward/moderation/setstore"
	"github.com/forumkit/steward/notify"
	"github.com/forumkit/steward/pkg/robusthttp"
	"github.com/forumkit/steward/report"
	"github.com/forumkit/steward/reputation"
	"github.com/forumkit/steward/store"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

type Server struct {
	store   store.Store
	engine  *moderation.Engine
	reports *report.Generator
	notify  *notify.Dispatcher
	limiter *callerLimiter
	echo    *echo.Echo
	httpd   *http.Server
	logger  *slog.Logger
}

type Config struct {
	Logger           *slog.Logger
	Bind             string
	RedisURL         string
	MemcachedServers []string
	CacheTTL         time.Duration
	RulesFile        string
	BehaviorSource   string
	SlackWebhookURL  string
	NotifyRateLimit  float64
	RequestRateLimit int64
	Moderation       moderation.Config
}

func NewServer(st store.Store, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 5 * time.Minute
	}

	var counters countstore.CountStore
	var flags flagstore.FlagStore
	var cache cachestore.CacheStore
	if config.RedisURL != "" {
		rcs, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect counter store: %w", err)
		}
		rfs, err := flagstore.NewRedisFlagStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect flag store: %w", err)
		}
		rcache, err := cachestore.NewRedisCacheStore(config.RedisURL, config.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect cache store: %w", err)
		}
		counters, flags, cache = rcs, rfs, rcache
	} else {
		counters = countstore.NewMemCountStore()
		flags = flagstore.NewMemFlagStore()
		cache = cachestore.NewMemCacheStore(50_000, config.CacheTTL)
	}
	if len(config.MemcachedServers) > 0 {
		cache = cachestore.NewMemcachedCacheStore(config.MemcachedServers, config.CacheTTL)
	}

	rules := analyzer.DefaultRuleset()
	if config.RulesFile != "" {
		sets := setstore.NewMemSetStore()
		if err := sets.LoadFromFileJSON(config.RulesFile); err != nil {
			return nil, fmt.Errorf("loading rules: %w", err)
		}
		var err error
		rules, err = analyzer.RulesetFromSets(context.Background(), sets, rules)
		if err != nil {
			return nil, fmt.Errorf("loading rules: %w", err)
		}
		logger.Info("loaded moderation rules", "path", config.RulesFile)
	}

	notifiers := []notify.Notifier{&notify.LogNotifier{Logger: logger}}
	if config.SlackWebhookURL != "" {
		notifiers = append(notifiers, &notify.SlackNotifier{
			WebhookURL: config.SlackWebhookURL,
			Client: robusthttp.NewClient(
				robusthttp.WithLogger(logger),
				robusthttp.WithMaxRetries(3),
				robusthttp.WithTimeout(10*time.Second),
			),
			Kinds: notify.DefaultSlackKinds,
		})
	}
	dispatcher := notify.NewDispatcher(logger, config.NotifyRateLimit, notifiers...)

	rep := reputation.NewEngine(st, reputation.DefaultConfig(), logger)
	rep.Cache = cache
	rep.Notify = dispatcher

	var activity behavior.ActivitySource
	switch config.BehaviorSource {
	case "", "store":
		activity = behavior.NewStoreActivitySource(st)
	case "counters":
		activity = &behavior.CounterActivitySource{Counters: counters}
	default:
		return nil, fmt.Errorf("unknown behavior source: %q", config.BehaviorSource)
	}

	engine := &moderation.Engine{
		Content:    st,
		Analyzer:   analyzer.New(rules),
		Behavior:   behavior.NewAnalyzer(activity, rep, behavior.DefaultConfig(), logger),
		Reputation: rep,
		Comments:   comments.NewTree(st, logger),
		Counters:   counters,
		Flags:      flags,
		Notify:     dispatcher,
		Config:     config.Moderation,
		Logger:     logger,
	}

	srv := &Server{
		store:   st,
		engine:  engine,
		reports: report.NewGenerator(st, st, logger),
		notify:  dispatcher,
		logger:  logger,
	}
	if config.RequestRateLimit > 0 {
		srv.limiter = newCallerLimiter(config.RequestRateLimit)
	}

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv.echo = srv.newEcho()
	srv.echo.Use(echoprometheus.NewMiddleware("steward"))
	srv.echo.Use(otelecho.Middleware("steward"))
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	return srv, nil
}

// Builds the router with all API routes. Process-global middleware (metrics, tracing) is attached by NewServer.
func (srv *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(srv.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.HTTPErrorHandler = srv.errorHandler
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000, // 365 days
	}))

	e.GET("/_health", srv.HandleHealthCheck)

	api := e.Group("/api", srv.identify, srv.rateLimit)
	api.POST("/analyze", srv.HandleAnalyze)
	api.POST("/posts", srv.HandleSubmitPost)
	api.POST("/posts/:id/comments", srv.HandleSubmitComment)
	api.POST("/posts/:id/lock", srv.HandleSetLocked)
	api.DELETE("/posts/:id", srv.HandleDeletePost)
	api.DELETE("/comments/:id", srv.HandleDeleteComment)
	api.GET("/content/:id", srv.HandleGetContent)
	api.GET("/content/:id/flags", srv.HandleGetContentFlags)
	api.POST("/content/:id/report", srv.HandleReport)
	api.POST("/content/:id/like", srv.HandleLike)
	api.POST("/content/:id/dislike", srv.HandleDislike)
	api.POST("/content/:id/helpful", srv.HandleMarkHelpful)
	api.POST("/content/:id/moderate", srv.HandleModerate)
	api.POST("/users/:id/follow", srv.HandleFollow)
	api.GET("/users/:id/reputation", srv.HandleGetReputation)
	api.GET("/users/:id/behavior", srv.HandleGetBehavior)
	api.GET("/moderation/report", srv.HandleModerationReport)
	return e
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

func (srv *Server) RunAPI() error {
	slog.Info("starting server", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				slog.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	// Wait for a signal to exit.
	slog.Info("registering OS exit signal handler")
	quit := make(chan struct{})
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-exitSignals
		slog.Info("received OS exit signal", "signal", sig)

		if err := srv.Shutdown(); err != nil {
			slog.Error("HTTP server shutdown error", "err", err)
		}

		close(quit)
	}()
	<-quit
	slog.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (srv *Server) Shutdown() error {
	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.httpd.Shutdown(ctx)
}

// Flushes in-flight notifications and releases the store.
func (srv *Server) Close() error {
	srv.notify.Wait()
	return srv.store.Close()
}
