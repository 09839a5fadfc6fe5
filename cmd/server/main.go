package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"todo-api/internal/auth"
	"todo-api/internal/cache"
	"todo-api/internal/config"
	"todo-api/internal/events"
	apphttp "todo-api/internal/http"
	"todo-api/internal/repository"
	"todo-api/internal/repository/mongodb"
	"todo-api/internal/repository/sqlite"
	"todo-api/internal/service"
	"todo-api/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	todoRepo, userRepo, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer closeStore()

	if err := todoRepo.Init(ctx); err != nil {
		logger.Fatalf("init todo repository: %v", err)
	}
	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	todoCfg := service.TodoConfig{
		Logger: logger,
		Export: storage.UploadOptions{
			Bucket:      cfg.Storage.Bucket,
			KeyPrefix:   cfg.Storage.KeyPrefix,
			ContentType: "application/json",
		},
	}

	if cfg.Cache.RedisURL != "" {
		listCache, err := cache.Connect(ctx, cfg.Cache.RedisURL, cfg.CacheTTL(), logger)
		if err != nil {
			logger.Warnf("redis cache disabled: %v", err)
		} else {
			defer listCache.Close()
			todoCfg.Cache = listCache
			logger.Infof("redis list cache enabled (ttl %s)", cfg.CacheTTL())
		}
	}

	if brokers := events.ParseBrokers(cfg.Events.Brokers); len(brokers) > 0 {
		publisher := events.NewKafka(brokers, cfg.Events.Topic, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warnf("close kafka producer: %v", err)
			}
		}()
		todoCfg.Events = publisher
	}

	if cfg.Storage.Bucket != "" {
		storageSvc, err := buildStorage(ctx, cfg, logger)
		if err != nil {
			logger.Fatalf("setup storage: %v", err)
		}
		todoCfg.Storage = storageSvc
	}

	todoService := service.NewTodoService(todoRepo, todoCfg)
	userService := service.NewUserService(userRepo)
	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.TokenTTL())

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(todoService, userService, tokens, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Server started on port %s...", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func openStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (repository.TodoRepository, repository.UserRepository, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Infof("using sqlite store at %s", cfg.Database.Path)
		closeFn := func() {
			if err := db.Close(); err != nil {
				logger.Warnf("close sqlite: %v", err)
			}
		}
		return sqlite.NewTodoRepository(db), sqlite.NewUserRepository(db), closeFn, nil
	default:
		client, db, err := mongodb.Connect(ctx, cfg.Database.URI, cfg.Database.Name)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Infof("db connected (%s)", cfg.Database.Name)
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logger.Warnf("disconnect mongo: %v", err)
			}
		}
		return mongodb.NewTodoRepository(db), mongodb.NewUserRepository(db), closeFn, nil
	}
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("exporting to s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
