package minio

import (
	"context"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Client wraps the MinIO client with additional functionality
type Client struct {
	client *minio.Client
	config *Config
	logger *zap.Logger
}

// NewClient creates a new MinIO client and ensures the configured
// bucket exists
func NewClient(ctx context.Context, cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, ErrInvalidArgument
	}

	if err := cfg.Validate(); err != nil {
		return nil, WrapErrorWithMessage("NewClient", err, "invalid configuration")
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	}
	if cfg.Region != "" {
		opts.Region = cfg.Region
	}

	minioClient, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, WrapErrorWithMessage("NewClient", err, "failed to create minio client")
	}

	client := &Client{
		client: minioClient,
		config: cfg,
		logger: logger,
	}

	if err := client.ensureBucket(ctx, cfg.Bucket); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("minio client initialized successfully",
			zap.String("endpoint", cfg.Endpoint),
			zap.String("bucket", cfg.Bucket),
			zap.Bool("use_ssl", cfg.UseSSL),
		)
	}

	return client, nil
}

// Bucket returns the configured bucket name
func (c *Client) Bucket() string {
	return c.config.Bucket
}

// Ping checks if the MinIO server is accessible
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return WrapErrorWithMessage("Ping", err, "failed to connect to minio server")
	}
	return nil
}

// ensureBucket creates the bucket when it does not exist yet
func (c *Client) ensureBucket(ctx context.Context, bucket string) error {
	if bucket == "" {
		return WrapError("ensureBucket", ErrInvalidBucketName, bucket, "")
	}

	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return WrapError("ensureBucket", err, bucket, "")
	}

	if !exists {
		if err := c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
			return WrapError("ensureBucket", err, bucket, "")
		}

		if c.logger != nil {
			c.logger.Info("bucket created successfully", zap.String("bucket", bucket))
		}
	}

	return nil
}

// checkObject validates an object key before an operation
func checkObject(op, bucket, object string) error {
	if bucket == "" {
		return WrapError(op, ErrInvalidBucketName, bucket, object)
	}
	if err := ValidateObjectName(object); err != nil {
		return WrapError(op, ErrInvalidObjectName, bucket, object)
	}
	return nil
}
