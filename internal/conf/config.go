package conf

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/database"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/logger"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/minio"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/workerpool"
)

type Config struct {
	Server   ServerConfig
	Database database.Config
	Redis    RedisConfig
	MinIO    minio.Config
	Log      logger.Config
	Drive    DriveConfig
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// DriveConfig 网盘业务配置
type DriveConfig struct {
	// Root 默认存储根前缀，请求未携带 root 时使用
	Root string `mapstructure:"root"`
	// FolderMarkers 是否为文件夹写入零字节占位对象
	FolderMarkers bool `mapstructure:"folder_markers"`
	// MaxBatchFiles 批量上传单次允许的最大文件数
	MaxBatchFiles int `mapstructure:"max_batch_files"`
	// PresignExpiry 预签名下载 URL 的有效期
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
	// URLCacheTTL 预签名 URL 在 Redis 中的缓存时长，必须小于 PresignExpiry
	URLCacheTTL time.Duration `mapstructure:"url_cache_ttl"`
	// Upload 批量上传使用的任务池配置
	Upload workerpool.Config `mapstructure:"upload"`
}

func LoadConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()

	viper.SetDefault("drive.root", "drive")
	viper.SetDefault("drive.folder_markers", true)
	viper.SetDefault("drive.max_batch_files", 256)
	viper.SetDefault("drive.presign_expiry", "15m")
	viper.SetDefault("drive.url_cache_ttl", "10m")
	viper.SetDefault("drive.upload.workers", 8)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Drive.URLCacheTTL >= config.Drive.PresignExpiry {
		return nil, fmt.Errorf("drive.url_cache_ttl must be less than drive.presign_expiry")
	}

	return &config, nil
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
