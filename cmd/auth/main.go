package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/streamhub/internal/config"
	"github.com/Skotchmaster/streamhub/internal/db"
	"github.com/Skotchmaster/streamhub/internal/events"
	"github.com/Skotchmaster/streamhub/internal/httpserver"
	"github.com/Skotchmaster/streamhub/internal/logging"
	"github.com/Skotchmaster/streamhub/internal/media"
	"github.com/Skotchmaster/streamhub/internal/middleware"
	"github.com/Skotchmaster/streamhub/internal/repo"
	"github.com/Skotchmaster/streamhub/internal/service"
	"github.com/Skotchmaster/streamhub/internal/tokens"
	"github.com/Skotchmaster/streamhub/internal/transport"
)

type eventPublisher interface {
	service.Publisher
	Close() error
}

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err == nil {
		err = db.Migrate(ctx, gdb)
	}
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}

	var publisher eventPublisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewProducer(cfg.KafkaBrokers)
		logger.Info("kafka_enabled", "brokers", cfg.KafkaBrokers)
	}

	var uploader service.MediaUploader
	if cfg.MediaEnabled() {
		s3up, err := media.NewS3Uploader(context.Background(), media.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			log.Fatalf("s3: %v", err)
		}
		uploader = s3up
	} else {
		logger.Warn("media_disabled", "reason", "S3_BUCKET is empty, registration will reject uploads")
	}

	tks := tokens.NewService(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)
	svc := service.NewAuthService(repo.New(gdb), tks, publisher, uploader)
	cookies := transport.Cookies{Secure: cfg.CookieSecure}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httpserver.ErrorHandler
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowCredentials: cfg.CORSOrigin != "*",
	}))
	e.Use(echomw.BodyLimit("16M"))

	deps := &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: svc, Cookies: cookies},
		Auth:        middleware.NewSimpleAuth(tks, cookies),
		Ready:       func(ctx context.Context) error { return db.Ping(ctx, gdb) },
	}
	if cfg.CSRFEnabled {
		csrf := middleware.DefaultCSRFConfig()
		csrf.Secure = cfg.CookieSecure
		deps.CSRF = &csrf
	}
	httpserver.Register(e, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Error("kafka_close", "error", err)
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db_close", "error", err)
	}

	logger.Info("stopped")
}
