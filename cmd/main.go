package main

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/minio/minio-go/v7"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	_ "tour-service/docs"
	"tour-service/internal/config"
	"tour-service/internal/handlers"
	"tour-service/internal/logging"
	"tour-service/internal/models"
	"tour-service/internal/repository"
	"tour-service/internal/services"
	"tour-service/internal/services/cache"
	"tour-service/internal/services/caches"
	"tour-service/internal/storage"
	"tour-service/internal/utils"
)

// @title Tour Service API
// @version 1.0
// @description Virtual tour graph, annotation sync and viewer export.
// @BasePath /api
func main() {
	cfg := InitConfig()
	logger := logging.Init(cfg.LogLevel, cfg.LogFormat)

	db := ConnectDatabase(cfg)
	MigrateDatabase(db)

	metrics := utils.NewMetrics(prometheus.DefaultRegisterer)
	exportCache := InitExportCache(cfg, metrics, logger)

	var mediaStore *storage.MediaStore
	if cfg.MinioEnabled() {
		mediaStore = storage.NewMediaStore(InitMinIOClient(cfg), cfg.MinioBucket, cfg.MediaURLExpiry)
	} else {
		log.Warn().Msg("MinIO not configured, panorama uploads are disabled")
	}

	tourRepo := repository.NewTourRepository(db)
	annotationRepo := repository.NewAnnotationRepository(db)

	graphOpts := []services.GraphOption{
		services.WithExportInvalidator(exportCache),
		services.WithNearbyRadius(cfg.NearbyRadius),
		services.WithGraphLogger(logger.With().Str("component", "graph").Logger()),
	}
	exportOpts := []services.ExportOption{
		services.WithExportCache(exportCache),
		services.WithExportMetrics(metrics),
		services.WithExportLogger(logger.With().Str("component", "export").Logger()),
	}
	var media services.MediaStore
	if mediaStore != nil {
		media = mediaStore
		graphOpts = append(graphOpts, services.WithMediaRemover(mediaStore))
		exportOpts = append(exportOpts, services.WithMediaURLs(mediaStore))
	}

	graphService := services.NewGraphService(db, tourRepo, annotationRepo, graphOpts...)
	syncEngine := services.NewDrawingSyncEngine(db, tourRepo, annotationRepo,
		services.WithSyncExportInvalidator(exportCache),
		services.WithSyncMetrics(metrics),
		services.WithSyncLogger(logger.With().Str("component", "drawing-sync").Logger()),
	)
	exportService := services.NewExportService(tourRepo, annotationRepo, exportOpts...)
	mediaService := services.NewMediaService(graphService, media, logger.With().Str("component", "media").Logger())

	app := fiber.New(fiber.Config{BodyLimit: 512 << 20})
	app.Use(recover.New())
	app.Use(logging.Middleware(logger))

	// Register Prometheus metrics endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/tours")
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Add Health check endpoint
	api.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy", "details": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	handlers.Handlers{
		Tours:    handlers.NewTourHandler(graphService),
		Drawings: handlers.NewDrawingHandler(graphService, syncEngine),
		Export:   handlers.NewExportHandler(exportService, exportCache),
		Media:    handlers.NewMediaHandler(mediaService),
	}.Register(api)

	for _, r := range app.GetRoutes() {
		log.Debug().Str("method", r.Method).Str("path", r.Path).Msg("registered route")
	}

	port := cfg.AppPort
	log.Info().Str("port", port).Msg("server listening")
	if err := app.Listen(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func InitConfig() *config.Config {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}
	return cfg
}

func ConnectDatabase(cfg *config.Config) *gorm.DB {
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	return db
}

func MigrateDatabase(db *gorm.DB) {
	err := db.AutoMigrate(&models.VirtualTour{}, &models.TourNode{}, &models.TourLink{}, &models.Annotation{})
	if err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}
}

func InitMinIOClient(cfg *config.Config) *minio.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	minioClient, err := storage.NewMinioClient(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("MinIO client initialization failed")
	}
	return minioClient
}

// InitExportCache builds the memory layer and, when Redis is configured and
// reachable, the shared Redis layer below it. With Redis the generation
// counters are shared too, so an edit on one replica hides the memory layer
// entries of all of them.
func InitExportCache(cfg *config.Config, metrics *utils.Metrics, logger zerolog.Logger) *services.ExportCache {
	cacheLog := logger.With().Str("component", "export-cache").Logger()
	layers := []cache.CacheLayer{caches.NewMemoryCache(cfg.ExportCacheMaxBytes, cfg.ExportCacheTTL, cacheLog)}
	var gens cache.GenerationCounter

	if cfg.RedisEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		redisClient, err := storage.NewRedisClient(ctx, cfg.RedisHost, cfg.RedisPort)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, export cache is memory only")
		} else {
			layers = append(layers, caches.NewRedisCache(redisClient, cfg.ExportCacheTTL, cacheLog))
			gens = caches.NewRedisGenerations(redisClient)
		}
	}
	return services.NewExportCache(metrics, cacheLog, gens, layers...)
}
