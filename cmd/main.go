package main

import (
	"context"
	"fmt"
	"github.com/opentracker-es/opentracker-api/internal/backup"
	"github.com/opentracker-es/opentracker-api/internal/config"
	"github.com/opentracker-es/opentracker-api/internal/database"
	"github.com/opentracker-es/opentracker-api/internal/httphandlers"
	"github.com/opentracker-es/opentracker-api/internal/misc"
	"github.com/opentracker-es/opentracker-api/internal/service"
	"github.com/opentracker-es/opentracker-api/internal/worker"
	"github.com/opentracker-es/opentracker-api/logger"
	"go.uber.org/zap"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	cfg := config.New()
	if err := logger.InitLogger(cfg.LogMode); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		return
	}
	defer logger.Sync()

	srv, err, teardown := setup(cfg)
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		logger.Info("serving http(s)", zap.String("addr", cfg.ListenAddr))
		if cfg.HasTLSConfig() {
			if err := srv.ListenAndServeTLS(cfg.ServerSSLCertFile, cfg.ServerSSLKeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatal("server closed: ", err)
			}
		} else {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal("server closed: ", err)
			}
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	<-done
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	if teardown != nil {
		if err := teardown(ctx); err != nil {
			logger.Error("teardown failed", zap.Error(err))
		}
	}
}

func setup(cfg config.Config) (*http.Server, error, func(ctx context.Context) error) {
	if cfg.SecretKey == "" {
		logger.Warn("SECRET_KEY is not set, storage credentials are encrypted with an empty key")
	}
	if cfg.AccessKey == "" {
		logger.Warn("ACCESS_KEY is not set, the API is unauthenticated")
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err, nil
	}

	backupRepo := database.NewBackupRepository(db)
	settingsRepo := database.NewSettingsRepository(db)

	encryptor, err := misc.NewEncryptor(cfg.SecretKey)
	if err != nil {
		return nil, err, nil
	}

	pool := worker.New(cfg.Workers)
	tool := backup.NewMongo(backup.MongoConfig{
		URI:      cfg.MongoURL,
		Database: cfg.DatabaseName,
	})

	backupSvc := service.NewBackupService(tool, backupRepo, settingsRepo, encryptor, pool, cfg.TempDir)
	scheduler, err := service.NewSchedulerService(settingsRepo, backupSvc)
	if err != nil {
		return nil, err, nil
	}
	settingsSvc := service.NewSettingsService(settingsRepo, encryptor, scheduler)

	if err := scheduler.Start(context.Background()); err != nil {
		return nil, err, nil
	}

	apiHandler := httphandlers.NewApiHandler(backupSvc, scheduler, settingsSvc)
	routes := httphandlers.Routes(apiHandler, cfg.AccessKey)

	return &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: routes,
		}, nil, func(ctx context.Context) error {
			if err := scheduler.Stop(); err != nil {
				logger.Error("failed to stop scheduler", zap.Error(err))
			}
			if err := pool.Drain(ctx); err != nil {
				logger.Warn("in-flight backup work did not finish", zap.Error(err))
			}
			sqlDB, _ := db.DB()
			if sqlDB != nil {
				err = sqlDB.Close()
				logger.Info("DB Closed", zap.Error(err))
			}
			return nil
		}
}
