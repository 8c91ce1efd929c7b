package minio

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// PresignedGetObject generates a presigned URL for HTTP GET operations
func (c *Client) PresignedGetObject(ctx context.Context, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	bucket := c.config.Bucket
	if err := checkObject("PresignedGetObject", bucket, objectName); err != nil {
		return nil, err
	}

	if expiry <= 0 {
		return nil, WrapErrorWithMessage("PresignedGetObject", ErrInvalidArgument, "expiry must be greater than 0")
	}

	presignedURL, err := c.client.PresignedGetObject(ctx, bucket, objectName, expiry, reqParams)
	if err != nil {
		return nil, WrapError("PresignedGetObject", err, bucket, objectName)
	}

	if c.logger != nil {
		c.logger.Debug("presigned GET URL generated",
			zap.String("bucket", bucket),
			zap.String("object", objectName),
			zap.Duration("expiry", expiry),
		)
	}

	return presignedURL, nil
}

// PresignedPutObject generates a presigned URL for HTTP PUT operations
func (c *Client) PresignedPutObject(ctx context.Context, objectName string, expiry time.Duration) (*url.URL, error) {
	bucket := c.config.Bucket
	if err := checkObject("PresignedPutObject", bucket, objectName); err != nil {
		return nil, err
	}

	if expiry <= 0 {
		return nil, WrapErrorWithMessage("PresignedPutObject", ErrInvalidArgument, "expiry must be greater than 0")
	}

	presignedURL, err := c.client.PresignedPutObject(ctx, bucket, objectName, expiry)
	if err != nil {
		return nil, WrapError("PresignedPutObject", err, bucket, objectName)
	}

	return presignedURL, nil
}
