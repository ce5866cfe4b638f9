package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	goredis "github.com/redis/go-redis/v9"

	"github.com/shenikar/sos_dispatch/internal/broadcast"
	"github.com/shenikar/sos_dispatch/internal/config"
	v1 "github.com/shenikar/sos_dispatch/internal/handler/http/v1"
	"github.com/shenikar/sos_dispatch/internal/ingest"
	"github.com/shenikar/sos_dispatch/internal/repository"
	"github.com/shenikar/sos_dispatch/internal/service"
	"github.com/shenikar/sos_dispatch/internal/triage"
	"github.com/shenikar/sos_dispatch/internal/webhook"
	"github.com/shenikar/sos_dispatch/pkg/logger"
	"github.com/shenikar/sos_dispatch/pkg/postgres"
	redisclient "github.com/shenikar/sos_dispatch/pkg/redis"
	"github.com/sirupsen/logrus"

	_ "github.com/shenikar/sos_dispatch/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title SOS Dispatch API
// @version 1.0
// @description Triage of SOS signals and real-time dispatch of responders.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
	}

	m, err := migrate.New(
		"file://migrations",
		migrationURL,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

// storage - выбранное хранилище инцидентов и справочник респондеров
type storage struct {
	repo      service.IncidentRepository
	directory service.ResponderDirectory
	close     func()
}

func openStorage(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverSQLite:
		repo, err := repository.NewSQLiteIncidentRepository(ctx, cfg.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		log.Info("Using SQLite incident storage")
		return &storage{
			repo:      repo,
			directory: repo.Responders(),
			close:     func() { repo.Close() },
		}, nil
	default:
		if err := runMigrations(cfg, log); err != nil {
			return nil, err
		}
		dbpool, err := postgres.NewPostgresDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		log.Info("Successfully connected to PostgreSQL")
		return &storage{
			repo:      repository.NewIncidentRepository(dbpool),
			directory: repository.NewResponderDirectory(dbpool),
			close:     dbpool.Close,
		}, nil
	}
}

func loadTriageTable(cfg *config.Config, log *logrus.Logger) (triage.Table, error) {
	if cfg.TriageTablePath == "" {
		log.Info("Using built-in triage table")
		return triage.DefaultTable(), nil
	}
	table, err := triage.LoadTable(cfg.TriageTablePath)
	if err != nil {
		return triage.Table{}, err
	}
	log.WithField("path", cfg.TriageTablePath).Info("Triage table loaded")
	return table, nil
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to open incident storage: %v", err)
	}
	defer store.close()

	table, err := loadTriageTable(cfg, log)
	if err != nil {
		log.Fatalf("Failed to load triage table: %v", err)
	}

	// Redis: кеш, очередь вебхуков и релей предложений между узлами
	var (
		redisClient *goredis.Client
		cache       service.IncidentCache
		publisher   webhook.WebhookPublisher = webhook.NopPublisher{}
		relay       *broadcast.RedisRelay
		hubOptions  []broadcast.HubOption
	)
	if cfg.RedisEnabled {
		redisClient, err = redisclient.NewRedisClient(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Info("Successfully connected to Redis")

		cache = repository.NewIncidentCache(redisClient, cfg.IncidentCacheTTL)
		relay = broadcast.NewRedisRelay(redisClient, log)
		hubOptions = append(hubOptions, broadcast.WithRelay(relay))

		if cfg.WebhookURL != "" {
			publisher = webhook.NewRedisWebhookPublisher(redisClient)
			webhook.NewWebhookWorker(redisClient, log, cfg).Start(ctx)
		}
	}

	hub := broadcast.NewHub(log, hubOptions...)
	if relay != nil {
		go relay.Run(ctx, hub)
	}

	incidentService := service.NewIncidentService(service.Deps{
		Repo:        store.repo,
		Cache:       cache,
		Directory:   store.directory,
		Triage:      triage.NewPipelineFromTable(table),
		Broadcaster: hub,
		Webhooks:    publisher,
		Logger:      log,
	})
	hub.SetClaimer(incidentService)

	if cfg.KafkaEnabled() {
		consumer := ingest.NewConsumer(ingest.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		}, incidentService, log)
		go consumer.Run(ctx)
	}

	// Инициализация хэндлеров
	handler := v1.NewHandler(incidentService, hub, log, cfg)

	// Настройка Gin роутера
	router := gin.New()
	router.Use(gin.Recovery(), v1.RequestLogger(log))
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Запуск HTTP-сервера
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server gracefully stopped")
}
