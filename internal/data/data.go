package data

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lk2023060901/cloud-drive-backend/internal/conf"
	drivedata "github.com/lk2023060901/cloud-drive-backend/internal/drive/data"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/database"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/logger"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/minio"
)

type Data struct {
	DB          *database.DB
	RedisClient *redis.Client
	MinIOClient *minio.Client
	Logger      *zap.Logger
}

func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	// Initialize PostgreSQL
	db, err := initDB(config, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize Redis
	redisClient := initRedis(config)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// Initialize MinIO
	minioClient, err := minio.NewClient(context.Background(), &config.MinIO, log.Zap())
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, nil, fmt.Errorf("failed to init minio: %w", err)
	}

	d := &Data{
		DB:          db,
		RedisClient: redisClient,
		MinIOClient: minioClient,
		Logger:      log.Zap(),
	}

	cleanup := func() {
		log.Info("cleaning up data resources")

		if err := db.Close(); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}

		if redisClient != nil {
			redisClient.Close()
		}
	}

	return d, cleanup, nil
}

func initDB(config *conf.Config, log *logger.Logger) (*database.DB, error) {
	db, err := database.New(&config.Database, log)
	if err != nil {
		return nil, err
	}

	if config.Database.AutoMigrate {
		if err := db.AutoMigrate(&drivedata.EntryPO{}); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	return db, nil
}

func initRedis(config *conf.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr(),
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
}
