package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/resqnet/backend/internal/config"
	"github.com/resqnet/backend/internal/database"
	"github.com/resqnet/backend/internal/geoindex"
	"github.com/resqnet/backend/internal/handlers"
	"github.com/resqnet/backend/internal/middleware"
	"github.com/resqnet/backend/internal/services"
	"github.com/resqnet/backend/internal/storage"
	"github.com/resqnet/backend/pkg/logger"
	"github.com/resqnet/backend/pkg/utils"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("%v", err)
	}
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)
	utils.ConfigureRefreshJWT(cfg.JWT.RefreshSecret, cfg.JWT.RefreshExpirationHours)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	index, closeIndex, err := geoindex.Open(context.Background(), cfg.Geo, cfg.Mongo, db)
	if err != nil {
		log.Fatalf("geo index initialization failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	auditService := services.NewAuditService(db, cfg.Audit.QueueSize)
	volunteerService := services.NewVolunteerService(db, index)

	bodyLimit := cfg.Server.BodyLimitMB * 1024 * 1024
	app := fiber.New(fiber.Config{BodyLimit: bodyLimit})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.CORS(cfg.Server.CORSOrigins))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())
	app.Use(middleware.RateLimiter(cfg.Server.RateLimitPerMinute))

	handlers.SetupRoutes(app, handlers.Dependencies{
		DB:            db,
		Media:         storageClient,
		Reports:       services.NewReportService(db),
		Assignments:   services.NewAssignmentService(db),
		Matching:      services.NewMatchingService(db, index, cfg.Geo.DefaultRadiusKm, cfg.Geo.MaxResults),
		Volunteers:    volunteerService,
		Audit:         auditService,
		SecureCookies: cfg.Server.SecureCookies,
	})

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":        cfg.Server.Port,
		"address":     listenAddr,
		"body_limit":  fmt.Sprintf("%dMB", cfg.Server.BodyLimitMB),
		"geo_backend": cfg.Geo.Backend,
		"db_driver":   cfg.DB.Driver,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	case err := <-errCh:
		if err != nil {
			log.Printf("server error: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := auditService.Close(ctx); err != nil {
		log.Printf("audit queue drain incomplete: %v", err)
	}
	if err := closeIndex(ctx); err != nil {
		log.Printf("geo index close: %v", err)
	}
	if err := database.Close(db); err != nil {
		log.Printf("database close: %v", err)
	}
	logger.Info("server_stopped", nil)
}
