package data

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"time"

	"github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/minio"
)

// BlobStore 基于 MinIO 的对象存储适配，只操作物理键
type BlobStore struct {
	client *minio.Client
}

// NewBlobStore 创建对象存储适配
func NewBlobStore(client *minio.Client) biz.BlobStore {
	return &BlobStore{client: client}
}

// Put 写入一个对象
func (s *BlobStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = minio.DetectContentType(key)
	}

	_, err := s.client.PutObject(ctx, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// PutMarker 为文件夹写入零字节占位对象
func (s *BlobStore) PutMarker(ctx context.Context, key string) error {
	_, err := s.client.PutObject(ctx, key, bytes.NewReader(nil), 0, minio.PutObjectOptions{
		ContentType: "application/x-directory",
	})
	return err
}

// Get 打开一个对象用于读取
func (s *BlobStore) Get(ctx context.Context, key string) (io.ReadCloser, biz.BlobInfo, error) {
	reader, info, err := s.client.GetObject(ctx, key)
	if err != nil {
		return nil, biz.BlobInfo{}, err
	}

	return reader, biz.BlobInfo{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// Copy 桶内复制一个对象
func (s *BlobStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	return s.client.CopyObject(ctx, srcKey, dstKey)
}

// Remove 删除单个对象
func (s *BlobStore) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, key)
}

// RemoveAll 批量删除对象
func (s *BlobStore) RemoveAll(ctx context.Context, keys []string) error {
	return s.client.RemoveObjects(ctx, keys)
}

// ListKeys 递归列出前缀下的全部物理键，结果一次性收齐后返回
func (s *BlobStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	objects, err := s.client.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(objects))
	for i, obj := range objects {
		keys[i] = obj.Key
	}
	return keys, nil
}

// PresignedGet 为对象签发限时下载地址
func (s *BlobStore) PresignedGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	signed, err := s.client.PresignedGetObject(ctx, key, expiry, url.Values{})
	if err != nil {
		return "", err
	}
	return signed.String(), nil
}
