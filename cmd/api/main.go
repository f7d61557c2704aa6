package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/widget-claims/internal/asset"
	"github.com/kursadbilgin/widget-claims/internal/catalog"
	"github.com/kursadbilgin/widget-claims/internal/config"
	"github.com/kursadbilgin/widget-claims/internal/handler"
	"github.com/kursadbilgin/widget-claims/internal/infra/migrations"
	"github.com/kursadbilgin/widget-claims/internal/infra/postgresql"
	infraredis "github.com/kursadbilgin/widget-claims/internal/infra/redis"
	"github.com/kursadbilgin/widget-claims/internal/infra/s3store"
	"github.com/kursadbilgin/widget-claims/internal/infra/sqlite"
	"github.com/kursadbilgin/widget-claims/internal/observability"
	"github.com/kursadbilgin/widget-claims/internal/provider"
	"github.com/kursadbilgin/widget-claims/internal/ratelimit"
	"github.com/kursadbilgin/widget-claims/internal/repository"
	"github.com/kursadbilgin/widget-claims/internal/service"
	"github.com/kursadbilgin/widget-claims/internal/transport"
	"github.com/kursadbilgin/widget-claims/internal/web"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Fatal("database initialization failed", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	var rdb *goredis.Client
	if cfg.RateLimitBackend == config.RateLimitBackendRedis {
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()
	}

	claims := repository.NewGormClaimRepo(db)

	widgets, err := catalog.NewFileProvider(cfg.WidgetsPath, logger)
	if err != nil {
		logger.Fatal("widget catalog initialization failed", zap.Error(err))
	}

	limiter, err := newLimiter(cfg, claims, rdb)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	gateway, err := provider.NewKitGateway(provider.KitOptions{
		BaseURL:     cfg.KitAPIBaseURL,
		APIKey:      cfg.KitAPIKey,
		FormID:      cfg.KitFormID,
		TagID:       cfg.KitTagID,
		TokenField:  cfg.KitTokenField,
		WidgetField: cfg.KitWidgetField,
		Timeout:     time.Duration(cfg.KitTimeoutSeconds) * time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("subscription gateway initialization failed", zap.Error(err))
	}
	if !gateway.Configured() {
		logger.Warn("KIT_API_KEY or KIT_FORM_ID missing, claims will be stored without subscribing")
	}

	claimService, err := service.NewClaimService(claims, widgets, limiter, gateway, logger)
	if err != nil {
		logger.Fatal("claim service initialization failed", zap.Error(err))
	}

	redirector, err := newRedirector(ctx, cfg)
	if err != nil {
		logger.Fatal("download redirector initialization failed", zap.Error(err))
	}
	if redirector != nil {
		claimService.SetRedirector(redirector)
	}

	assets, err := asset.NewDirStore(cfg.AssetsDir)
	if err != nil {
		logger.Fatal("asset store initialization failed", zap.Error(err))
	}

	gate, err := service.NewDownloadGate(claimService, assets, logger)
	if err != nil {
		logger.Fatal("download gate initialization failed", zap.Error(err))
	}

	site := web.Site{
		BrandName:    cfg.BrandName,
		SupportEmail: cfg.SupportEmail,
		ShopURL:      cfg.ShopURL,
		GuideURL:     cfg.GuideURL,
	}

	app := fiber.New(fiber.Config{
		AppName:               "widget-claims",
		Views:                 web.NewViews(),
		ErrorHandler:          transport.ErrorHandler(logger, site),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ProxyHeader:           cfg.ProxyHeader,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(handler.CorrelationMiddleware())

	if cfg.MetricsEnabled {
		metrics := observability.NewMetrics()
		claimService.SetMetrics(metrics)
		gate.SetMetrics(metrics)
		app.Use(metrics.HTTPMiddleware())
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	}

	app.Static("/public", cfg.PublicDir)
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterClaimRoutes(app, claimService, gate, widgets, site, cfg.IPSalt); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}
	app.Use(handler.NotFound)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("widget-claims api started",
		zap.Int("port", cfg.Port),
		zap.String("dbDriver", cfg.DBDriver),
		zap.String("rateLimitBackend", cfg.RateLimitBackend),
		zap.Bool("redirectDownloads", redirector != nil),
	)

	if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return postgresql.NewPostgres(cfg.DBDSN)
	default:
		return sqlite.NewSQLite(cfg.DBPath)
	}
}

func newLimiter(cfg *config.Config, claims repository.ClaimRepository, rdb *goredis.Client) (ratelimit.Limiter, error) {
	window := time.Duration(cfg.RateLimitWindowMinutes) * time.Minute
	if rdb != nil {
		return infraredis.NewRedisClaimLimiter(rdb, cfg.RateLimitMax, window)
	}
	return ratelimit.NewStoreLimiter(claims, cfg.RateLimitMax, window)
}

// newRedirector prefers S3 presigned links over a static base URL. A nil
// result means archives are streamed from ASSETS_DIR.
func newRedirector(ctx context.Context, cfg *config.Config) (asset.Redirector, error) {
	switch {
	case cfg.DownloadS3Bucket != "":
		return s3store.NewRedirector(ctx, s3store.Options{
			Bucket: cfg.DownloadS3Bucket,
			Prefix: cfg.DownloadS3Prefix,
			Region: cfg.DownloadS3Region,
			TTL:    time.Duration(cfg.DownloadS3TTLSeconds) * time.Second,
		})
	case cfg.DownloadBaseURL != "":
		return asset.NewBaseURLRedirector(cfg.DownloadBaseURL)
	}
	return nil, nil
}

