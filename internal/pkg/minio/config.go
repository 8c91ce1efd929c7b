package minio

import "errors"

// Config represents the configuration for the MinIO client
type Config struct {
	// Endpoint is the S3-compatible object storage endpoint
	// Examples: "play.min.io", "s3.amazonaws.com", "localhost:9000"
	Endpoint string `mapstructure:"endpoint"`

	// AccessKeyID is the access key for authentication
	AccessKeyID string `mapstructure:"accesskey"`

	// SecretAccessKey is the secret key for authentication
	SecretAccessKey string `mapstructure:"secretkey"`

	// Region is the region of the object storage (optional)
	Region string `mapstructure:"region"`

	// UseSSL determines whether to use HTTPS (true) or HTTP (false)
	UseSSL bool `mapstructure:"usessl"`

	// Bucket is the bucket all drive objects live in
	Bucket string `mapstructure:"bucket"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio: endpoint is required")
	}
	if c.AccessKeyID == "" {
		return errors.New("minio: access key ID is required")
	}
	if c.SecretAccessKey == "" {
		return errors.New("minio: secret access key is required")
	}
	if c.Bucket == "" {
		return errors.New("minio: bucket is required")
	}
	return nil
}
