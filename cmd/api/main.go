package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediavault/internal/access"
	"mediavault/internal/config"
	"mediavault/internal/crypto"
	"mediavault/internal/database"
	"mediavault/internal/database/migration"
	"mediavault/internal/extract"
	handlers "mediavault/internal/http/handler"
	"mediavault/internal/http/middleware"
	"mediavault/internal/matching"
	"mediavault/internal/moderation"
	"mediavault/internal/otel"
	registrypg "mediavault/internal/registry/postgres"
	"mediavault/internal/service"
	"mediavault/internal/storage"
	"mediavault/internal/validate"
)

func main() {
	ctx := context.Background()

	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	// Tracing (no-op when OTEL_SDK_DISABLED=true)
	shutdownTracing, err := otel.Init(ctx, time.UTC)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	// PostgreSQL connection (pooled, otelsql-instrumented)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, time.UTC, cfg.Database.Host); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// S3-compatible object store for encrypted envelopes and thumbnails
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	// Envelope cipher; the master secret only ever lives in memory
	cipher, err := crypto.NewAESGCMWithIterations([]byte(cfg.Crypto.MasterSecret), cfg.Crypto.PBKDF2Iterations)
	if err != nil {
		log.Fatalf("failed to initialize cipher: %v", err)
	}

	// All service instances are constructed once here and injected; there
	// are no package-level singletons.
	reg := registrypg.NewMediaPostgres(db)
	validator := validate.New(cfg.Upload.MaxSizeBytes, cfg.Upload.AllowedMimeTypes)
	extractor := extract.New()

	queue := moderation.NewQueue(reg, moderation.AutoApproveClassifier{}, cfg.Moderation.Workers, cfg.Moderation.QueueCapacity)
	queue.Start(ctx)
	defer queue.Stop()

	authorize := access.AuthorizeFunc(matching.DenyAll)
	if cfg.Access.MatchServiceURL != "" {
		authorize = matching.NewClient(cfg.Access.MatchServiceURL).IsAuthorized
	}
	broker := access.NewBroker(reg, objStore, cipher, authorize, time.Duration(cfg.Access.GrantTTLSeconds)*time.Second)

	mediaSvc := service.NewMediaService(validator, cipher, objStore, reg, extractor, queue, broker)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    int(validator.MaxSizeBytes()) * 4,
	})

	// Global middleware: request IDs, JSON request logs, traces, metrics
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())

	promMiddleware, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to initialize metrics: %v", err)
	}
	app.Use(promMiddleware.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.RegisterRoutes(app, db, mediaSvc)

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
