package minio

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// PutObjectOptions represents options for uploading an object
type PutObjectOptions struct {
	// ContentType is the content type of the object
	ContentType string
	// UserMetadata is custom metadata for the object
	UserMetadata map[string]string
	// ContentDisposition sets the content disposition header
	ContentDisposition string
	// ContentEncoding sets the content encoding header
	ContentEncoding string
}

// ObjectInfo represents metadata about a stored object
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// UploadInfo represents information about an uploaded object
type UploadInfo struct {
	Bucket string
	Key    string
	ETag   string
	Size   int64
}

// PutObject uploads an object to the configured bucket
func (c *Client) PutObject(ctx context.Context, objectName string, reader io.Reader, objectSize int64, opts PutObjectOptions) (UploadInfo, error) {
	bucket := c.config.Bucket
	if err := checkObject("PutObject", bucket, objectName); err != nil {
		return UploadInfo{}, err
	}

	minioOpts := minio.PutObjectOptions{
		ContentType:        opts.ContentType,
		UserMetadata:       opts.UserMetadata,
		ContentDisposition: opts.ContentDisposition,
		ContentEncoding:    opts.ContentEncoding,
	}

	info, err := c.client.PutObject(ctx, bucket, objectName, reader, objectSize, minioOpts)
	if err != nil {
		return UploadInfo{}, WrapError("PutObject", err, bucket, objectName)
	}

	if c.logger != nil {
		c.logger.Debug("object uploaded",
			zap.String("bucket", bucket),
			zap.String("object", objectName),
			zap.Int64("size", info.Size),
			zap.String("etag", info.ETag),
		)
	}

	return UploadInfo{
		Bucket: info.Bucket,
		Key:    info.Key,
		ETag:   info.ETag,
		Size:   info.Size,
	}, nil
}

// GetObject opens an object for reading. The caller owns the returned
// reader and must close it.
func (c *Client) GetObject(ctx context.Context, objectName string) (io.ReadCloser, ObjectInfo, error) {
	bucket := c.config.Bucket
	if err := checkObject("GetObject", bucket, objectName); err != nil {
		return nil, ObjectInfo{}, err
	}

	object, err := c.client.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, WrapError("GetObject", err, bucket, objectName)
	}

	stat, err := object.Stat()
	if err != nil {
		object.Close()
		if IsNotFound(err) {
			return nil, ObjectInfo{}, WrapError("GetObject", ErrObjectNotFound, bucket, objectName)
		}
		return nil, ObjectInfo{}, WrapError("GetObject", err, bucket, objectName)
	}

	return object, ObjectInfo{
		Key:          stat.Key,
		Size:         stat.Size,
		ETag:         stat.ETag,
		ContentType:  stat.ContentType,
		LastModified: stat.LastModified,
		Metadata:     stat.UserMetadata,
	}, nil
}

// StatObject gets object metadata
func (c *Client) StatObject(ctx context.Context, objectName string) (ObjectInfo, error) {
	bucket := c.config.Bucket
	if err := checkObject("StatObject", bucket, objectName); err != nil {
		return ObjectInfo{}, err
	}

	info, err := c.client.StatObject(ctx, bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		if IsNotFound(err) {
			return ObjectInfo{}, WrapError("StatObject", ErrObjectNotFound, bucket, objectName)
		}
		return ObjectInfo{}, WrapError("StatObject", err, bucket, objectName)
	}

	return ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
		Metadata:     info.UserMetadata,
	}, nil
}

// ObjectExists reports whether an object exists in the configured bucket
func (c *Client) ObjectExists(ctx context.Context, objectName string) (bool, error) {
	_, err := c.StatObject(ctx, objectName)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RemoveObject removes an object from the configured bucket. Removing
// an object that does not exist is not an error.
func (c *Client) RemoveObject(ctx context.Context, objectName string) error {
	bucket := c.config.Bucket
	if err := checkObject("RemoveObject", bucket, objectName); err != nil {
		return err
	}

	err := c.client.RemoveObject(ctx, bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return WrapError("RemoveObject", err, bucket, objectName)
	}

	if c.logger != nil {
		c.logger.Debug("object removed",
			zap.String("bucket", bucket),
			zap.String("object", objectName),
		)
	}

	return nil
}

// RemoveObjects removes a batch of objects from the configured bucket.
// It returns the first removal error encountered after draining the
// error channel.
func (c *Client) RemoveObjects(ctx context.Context, objectNames []string) error {
	bucket := c.config.Bucket
	if len(objectNames) == 0 {
		return nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(objectNames))
	for _, name := range objectNames {
		objectsCh <- minio.ObjectInfo{Key: name}
	}
	close(objectsCh)

	var firstErr error
	for result := range c.client.RemoveObjects(ctx, bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if result.Err != nil && firstErr == nil {
			firstErr = WrapError("RemoveObjects", result.Err, bucket, result.ObjectName)
		}
	}

	if firstErr != nil {
		return firstErr
	}

	if c.logger != nil {
		c.logger.Debug("objects removed",
			zap.String("bucket", bucket),
			zap.Int("count", len(objectNames)),
		)
	}

	return nil
}

// CopyObject copies an object within the configured bucket
func (c *Client) CopyObject(ctx context.Context, srcObject, dstObject string) error {
	bucket := c.config.Bucket
	if err := checkObject("CopyObject", bucket, srcObject); err != nil {
		return err
	}
	if err := checkObject("CopyObject", bucket, dstObject); err != nil {
		return err
	}

	src := minio.CopySrcOptions{Bucket: bucket, Object: srcObject}
	dst := minio.CopyDestOptions{Bucket: bucket, Object: dstObject}

	if _, err := c.client.CopyObject(ctx, dst, src); err != nil {
		if IsNotFound(err) {
			return WrapError("CopyObject", ErrObjectNotFound, bucket, srcObject)
		}
		return WrapError("CopyObject", err, bucket, srcObject)
	}

	if c.logger != nil {
		c.logger.Debug("object copied",
			zap.String("bucket", bucket),
			zap.String("src_object", srcObject),
			zap.String("dst_object", dstObject),
		)
	}

	return nil
}
