package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/asl-holdem-bff/internal/apiclient"
	"github.com/iliyamo/asl-holdem-bff/internal/config"
	"github.com/iliyamo/asl-holdem-bff/internal/database"
	"github.com/iliyamo/asl-holdem-bff/internal/handler"
	"github.com/iliyamo/asl-holdem-bff/internal/logger"
	"github.com/iliyamo/asl-holdem-bff/internal/middleware"
	"github.com/iliyamo/asl-holdem-bff/internal/queue"
	"github.com/iliyamo/asl-holdem-bff/internal/registration"
	"github.com/iliyamo/asl-holdem-bff/internal/repository"
	"github.com/iliyamo/asl-holdem-bff/internal/router"
	"github.com/iliyamo/asl-holdem-bff/internal/service"
	"github.com/iliyamo/asl-holdem-bff/internal/session"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis is optional: sessions fall back to memory, cache and rate limit switch off.
	rdb := config.NewRedisClient()
	var store session.Store
	if rdb != nil {
		store = session.NewRedisStore(rdb, "session", cfg.SessionTTL)
		defer func() { _ = rdb.Close() }()
	} else {
		zl.Warn("redis unavailable, sessions kept in memory")
		store = session.NewMemoryStore(cfg.SessionTTL)
	}

	api := apiclient.New(apiclient.Options{
		BaseURL: cfg.BackendBaseURL,
		Timeout: cfg.BackendTimeout,
		RPS:     cfg.BackendRPS,
		Burst:   cfg.BackendBurst,
		Logger:  zl,
	})
	sessions := session.NewService(store, api, zl)

	var publisher registration.Publisher
	if cfg.AMQPURL != "" {
		pub := service.NewCheckinPublisher(cfg.AMQPURL, zl)
		defer pub.Close()
		publisher = pub
	}

	desks := registration.NewRegistry(func(sid string) *registration.Workflow {
		opts := registration.Options{
			Debounce:  cfg.SearchDebounce,
			MinDigits: cfg.PhoneMinDigits,
			Publisher: publisher,
			Logger:    zl.With(zap.String("session", sid[:min(8, len(sid))])),
		}
		lookup, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if u, err := sessions.CurrentUser(lookup, sid); err == nil && u != nil {
			opts.StoreUserID = u.ID
		}
		return registration.New(sessions.Client(sid), opts)
	})
	sessions.OnLogout(desks.Evict)
	go desks.Run(ctx, cfg.DeskSweepInterval, cfg.DeskIdleTimeout, func(sid string) bool {
		lookup, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_, err := sessions.Get(lookup, sid)
		return !errors.Is(err, session.ErrNotFound)
	}, func(n int) {
		zl.Info("registration desks collected", zap.Int("evicted", n), zap.Int("open", desks.Len()))
	})

	// Check-in journal: always a local file, plus MySQL when configured.
	var journal handler.Journal
	var dbSink queue.Sink
	if cfg.JournalEnabled() {
		db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			zl.Fatal("journal database", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		repo := repository.NewCheckinRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			zl.Fatal("journal schema", zap.Error(err))
		}
		journal = repo
		dbSink = repo
	}
	sink := queue.JournalSink(cfg.CheckinLogDir, dbSink)
	if cfg.AMQPURL != "" {
		go func() {
			if err := queue.StartCheckinConsumer(ctx, cfg.AMQPURL, sink, zl); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("checkin consumer stopped", zap.Error(err))
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(zl))

	cacheCfg := config.LoadCacheConfig()
	cacheCfg.Calendar = cfg.Location
	guards := router.Guards{
		Secret:    cfg.SessionSecret,
		Sessions:  sessions,
		RateLimit: middleware.NewLoginGuard(config.LoadRateLimitConfig(), rdb, zl),
		Cache:     middleware.NewRedisCache(cacheCfg, rdb),
	}
	auth := handler.NewAuthHandler(cfg, sessions)
	listing := handler.NewListingHandler(cfg, sessions)

	router.RegisterRoutes(e, &handler.ReadyHandler{Redis: rdb, JournalEnabled: journal != nil, QueueEnabled: cfg.AMQPURL != ""})
	router.RegisterAuth(e, guards, auth, &handler.DashboardHandler{Sessions: sessions, Log: zl})
	router.RegisterPublic(e, guards, listing)
	router.RegisterStore(e, guards,
		&handler.StoreHandler{Sessions: sessions},
		&handler.RegistrationHandler{Desks: desks, Log: zl},
		&handler.TicketHandler{Sessions: sessions, Desks: desks},
	)
	router.RegisterUser(e, guards, listing, auth)
	router.RegisterAdmin(e, guards, &handler.CheckinHandler{Journal: journal, Log: zl.Named("journal")})

	addr := ":" + cfg.Port
	zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("backend", cfg.BackendBaseURL))
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdown); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
}
