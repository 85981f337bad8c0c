package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/openwifi/scan-server/internal/cache"
	"github.com/openwifi/scan-server/internal/config"
	"github.com/openwifi/scan-server/internal/database"
	"github.com/openwifi/scan-server/internal/handler"
	"github.com/openwifi/scan-server/internal/identity"
	"github.com/openwifi/scan-server/internal/middleware"
	"github.com/openwifi/scan-server/internal/queue"
	"github.com/openwifi/scan-server/internal/repository"
	"github.com/openwifi/scan-server/internal/router"
	"github.com/openwifi/scan-server/internal/service"
	"github.com/openwifi/scan-server/internal/stats"
	"github.com/openwifi/scan-server/internal/validator"
)

func main() {
	_ = godotenv.Load() // .env is optional; real environment wins

	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel, cfg.LogPretty)
	ingestCfg := config.LoadIngestConfig()
	authCfg := config.LoadAuthConfig()
	cacheCfg := config.LoadCacheConfig()
	queueCfg := config.LoadQueueConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open database")
	}
	defer db.Close()

	dialect := repository.DialectFor(cfg.DBDriver)
	if cfg.TestMode {
		logger.Warn().Str("dataset", cfg.DatasetName()).Msg("test mode: resetting dataset")
		if err := repository.Reset(ctx, db); err != nil {
			logger.Fatal().Err(err).Msg("reset dataset")
		}
	}
	if err := repository.Migrate(ctx, db, dialect); err != nil {
		logger.Fatal().Err(err).Msg("migrate schema")
	}
	scanResults := repository.NewScanResultRepo(db, dialect)
	archive := repository.NewArchiveRepo(db, dialect)

	rdb := config.NewRedisClient(logger)
	var store cache.Store = cache.NewMemory(nil)
	if rdb != nil {
		defer rdb.Close()
		store = cache.NewRedis(rdb)
	}

	verifier, err := identity.NewVerifier(authCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure identity verifier")
	}
	auth := identity.NewCache(store, verifier, authCfg.VerifyTimeout, logger)

	publisher := queue.NewPublisher(queueCfg, logger)
	if p, ok := publisher.(*queue.AMQPPublisher); ok {
		defer p.Close()
	}
	if queueCfg.Enabled {
		consumer := queue.NewAuditConsumer(queueCfg, logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("audit consumer stopped")
			}
		}()
	}

	statCache := stats.New(cacheCfg.StatsTTL, nil)
	stats.RegisterDefaults(statCache, scanResults, archive)

	ingestor := service.NewIngestor(scanResults, validator.New(nil), ingestCfg, publisher, queueCfg.StoredQueue, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.Recover())

	router.RegisterRoutes(e, handler.Health(db))
	router.RegisterScanResults(e,
		&handler.ScanResultHandler{Ingestor: ingestor, Syncer: scanResults, Cfg: ingestCfg, Log: logger},
		middleware.Authenticate(auth, authCfg.Required, logger),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger))
	router.RegisterInfo(e, &handler.InfoHandler{Version: config.Version, TestMode: cfg.TestMode})
	router.RegisterStats(e, &handler.StatsHandler{Stats: statCache, Log: logger}, middleware.NewRedisCache(cacheCfg, rdb))

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Str("driver", cfg.DBDriver).
			Bool("redis", rdb != nil).Bool("queue", queueCfg.Enabled).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
	logger.Info().Msg("stopped")
}

