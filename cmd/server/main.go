package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/cloud-drive-backend/internal/conf"
	"github.com/lk2023060901/cloud-drive-backend/internal/data"
	drivebiz "github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
	drivedata "github.com/lk2023060901/cloud-drive-backend/internal/drive/data"
	driveservice "github.com/lk2023060901/cloud-drive-backend/internal/drive/service"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/logger"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/workerpool"
	"github.com/lk2023060901/cloud-drive-backend/internal/server"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if err := logger.InitGlobal(&config.Log); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	log.Info("config loaded successfully")

	// Initialize data layer
	d, cleanup, err := data.NewData(config, log)
	if err != nil {
		log.Fatal("failed to initialize data layer", zap.Error(err))
	}
	defer cleanup()

	// Initialize upload worker pool
	uploadPool, err := workerpool.New(&config.Drive.Upload, log.Zap())
	if err != nil {
		log.Fatal("failed to create upload worker pool", zap.Error(err))
	}
	defer uploadPool.Release()

	// Initialize repositories and adapters
	entryRepo := drivedata.NewEntryRepo(d.DB)
	blobStore := drivedata.NewBlobStore(d.MinIOClient)
	urlCache := drivedata.NewURLCache(d.RedisClient)

	// Initialize use cases
	chainEnsurer := drivebiz.NewChainEnsurer(entryRepo, blobStore, config.Drive.FolderMarkers, log)
	driveUseCase := drivebiz.NewDriveUseCase(
		entryRepo,
		blobStore,
		chainEnsurer,
		uploadPool,
		urlCache,
		drivebiz.Config{
			FolderMarkers: config.Drive.FolderMarkers,
			MaxBatchFiles: config.Drive.MaxBatchFiles,
			PresignExpiry: config.Drive.PresignExpiry,
			URLCacheTTL:   config.Drive.URLCacheTTL,
		},
		log,
	)

	// Initialize services
	driveService := driveservice.NewDriveService(driveUseCase, config.Drive.Root, log)

	// Initialize server
	httpServer := server.NewHTTPServer(config, log.Zap(), d, driveService)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
