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

	"timer-tracker/internal/config"
	apphttp "timer-tracker/internal/http"
	"timer-tracker/internal/push"
	"timer-tracker/internal/repository/sqlite"
	"timer-tracker/internal/service"
	"timer-tracker/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	sessionRepo := sqlite.NewSessionRepository(db)
	timerRepo := sqlite.NewTimerRepository(db)
	if err := sqlite.InitAll(ctx, userRepo, sessionRepo, timerRepo); err != nil {
		logger.Fatalf("init repositories: %v", err)
	}

	export := service.ExportConfig{
		Bucket:    cfg.Storage.Bucket,
		KeyPrefix: cfg.Storage.KeyPrefix,
	}
	if cfg.Storage.Bucket != "" {
		storageSvc, err := buildStorage(ctx, cfg, logger)
		if err != nil {
			logger.Fatalf("setup storage: %v", err)
		}
		export.Storage = storageSvc
	} else {
		logger.Info("storage bucket not set, timer export disabled")
	}

	userService := service.NewUserService(userRepo, 0)
	sessionService := service.NewSessionService(sessionRepo, cfg.Session.TTL, nil)
	timerReader := service.NewTimerReader(timerRepo, nil)

	notifier := push.NewNotifier(push.Config{
		Interval:    cfg.Push.Interval,
		AuthTimeout: cfg.Push.AuthTimeout,
		Logger:      logger,
	}, timerReader, sessionService, push.NewRegistry())
	timerService := service.NewTimerService(timerRepo, timerReader, notifier, export, nil)

	if err := notifier.Start(ctx); err != nil {
		logger.Fatalf("start notifier: %v", err)
	}
	sweeper := service.NewSessionSweeper(sessionService, cfg.Session.SweepInterval, logger)
	sweeper.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		userService,
		sessionService,
		timerService,
		notifier,
		apphttp.RateLimit{
			RPS:       cfg.RateLimit.RPS,
			Burst:     cfg.RateLimit.Burst,
			CacheSize: cfg.RateLimit.CacheSize,
			TTL:       cfg.RateLimit.TTL,
		},
		logger,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// hijacked websocket connections are not tracked by the server, close them first
	notifier.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	sweeper.Shutdown()

	logger.Info("bye")
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
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
	logger.Infof("exporting timers to s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
