package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pvp-card-service/config"
	"pvp-card-service/handlers"
	"pvp-card-service/logging"
	"pvp-card-service/middleware"
	"pvp-card-service/models"
	"pvp-card-service/services"
	"pvp-card-service/workers"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	v := config.New(configFile)
	settings, err := config.Load(v)
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logger, err := logging.New(settings.Server.Environment)
	if err != nil {
		log.Fatal("failed to build logger:", err)
	}
	defer func() { _ = logger.Sync() }()

	store := config.NewStore(settings)
	config.Watch(v, store, logger)

	db, err := openDatabase(settings.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := models.Migrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	announcers := services.MultiAnnouncer{services.LogAnnouncer{Logger: logger}}
	if settings.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     settings.Redis.Addr,
			Password: settings.Redis.Password,
			DB:       settings.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, leaderboard falls back to the database", zap.Error(err))
		}
		cancel()
		defer rdb.Close()
		announcers = append(announcers, services.NewRedisAnnouncer(rdb))
	}

	catalog := services.NewCatalogService(db)
	ledger := services.NewLedgerService(db, store, logger)
	cooldown := services.NewCooldownService(db, catalog, store, logger)
	challenges := services.NewChallengeService(db, catalog, ledger, cooldown, announcers, store, logger)
	leaderboard := services.NewLeaderboardService(db, rdb, store, logger)
	stats := services.NewStatsService(db, ledger, leaderboard)
	stream := services.NewResultStream(db, logger)

	sched, err := services.NewMaintenance(challenges, ledger, cooldown, store, logger).Start(ctx)
	if err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer func() { _ = sched.Shutdown() }()

	if settings.Catalog.Enabled() {
		workers.NewCatalogSyncWorker(
			catalog, logger,
			settings.Catalog.BaseURL, settings.Catalog.Path, settings.Catalog.ServiceToken,
			settings.Catalog.Interval(),
		).Start(ctx)
	} else {
		logger.Info("catalog sync disabled, no catalog.base_url configured")
	}
	if rdb != nil {
		go workers.NewLeaderboardSyncWorker(db, leaderboard, logger).PollScores(ctx, settings.Leaderboard.Interval())
	}

	app := fiber.New(fiber.Config{
		AppName:      "pvp-card-service",
		ErrorHandler: fiberErrorHandler(logger),
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins(settings.Server.AllowedOrigins),
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Actor-ID, X-Request-ID",
		MaxAge:       86400,
	}))
	app.Use(middleware.ServiceTokenMiddleware(settings.Server.ServiceToken, logger))

	handlers.SetupChallengeRoutes(app, challenges, logger)
	handlers.SetupPlayerRoutes(app, handlers.PlayerDeps{
		Ledger:   ledger,
		Catalog:  catalog,
		Cooldown: cooldown,
		Stats:    stats,
	}, logger)
	handlers.SetupPublicRoutes(app, challenges, leaderboard, stream, logger)
	handlers.SetupAdminRoutes(app, handlers.AdminDeps{
		Challenges: challenges,
		Ledger:     ledger,
		Cooldown:   cooldown,
		Config:     store,
	}, logger)

	addr := fmt.Sprintf(":%d", settings.Server.Port)
	go func() {
		if err := app.Listen(addr); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()
	logger.Info("✅ server running",
		zap.String("addr", addr),
		zap.String("database", settings.Database.Driver),
		zap.Bool("redis", rdb != nil),
	)

	<-ctx.Done()
	logger.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
}

func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	}
	switch cfg.Driver {
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file:pvp.db?_busy_timeout=5000&_journal_mode=WAL"
		}
		db, err := gorm.Open(sqlite.Open(dsn), gcfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite allows one writer at a time.
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	default:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("database.dsn is required for driver %q", cfg.Driver)
		}
		return gorm.Open(postgres.Open(cfg.DSN), gcfg)
	}
}

func allowedOrigins(raw string) string {
	parts := strings.Split(raw, ",")
	for i, origin := range parts {
		parts[i] = strings.TrimSpace(origin)
	}
	return strings.Join(parts, ",")
}

func fiberErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{"error": strings.ToLower(strings.ReplaceAll(utils.StatusMessage(code), " ", "_"))})
	}
}
