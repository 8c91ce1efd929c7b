package minio

import (
	"context"

	"github.com/minio/minio-go/v7"
)

// ListObjects lists all objects in the configured bucket whose keys
// start with prefix. The listing is always recursive.
func (c *Client) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	bucket := c.config.Bucket
	if bucket == "" {
		return nil, WrapError("ListObjects", ErrInvalidBucketName, bucket, "")
	}

	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}

	var objects []ObjectInfo
	for object := range c.client.ListObjects(ctx, bucket, opts) {
		if object.Err != nil {
			return nil, WrapError("ListObjects", object.Err, bucket, prefix)
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			ETag:         object.ETag,
			ContentType:  object.ContentType,
			LastModified: object.LastModified,
		})
	}

	return objects, nil
}
