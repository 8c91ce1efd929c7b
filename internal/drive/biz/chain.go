package biz

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/logger"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/pathutil"
)

// ChainEnsurer 逐段补齐目标路径的所有上级文件夹条目。
// 物理占位对象先写，元数据行后写，与其余结构操作保持同一顺序。
type ChainEnsurer struct {
	repo    EntryRepo
	blobs   BlobStore
	markers bool
	logger  *logger.Logger
}

// NewChainEnsurer 创建文件夹链补齐器
func NewChainEnsurer(repo EntryRepo, blobs BlobStore, markers bool, log *logger.Logger) *ChainEnsurer {
	return &ChainEnsurer{
		repo:    repo,
		blobs:   blobs,
		markers: markers,
		logger:  log,
	}
}

// NewSeen 创建单次操作内的去重集合。集合只在一次逻辑操作内有效，
// 不做并发保护，不能存放在长生命周期组件上
func NewSeen() map[string]struct{} {
	return make(map[string]struct{})
}

// Ensure 保证 path 的每一段前缀都存在文件夹条目，缺失则创建。
// 幂等：对已物化的路径重复调用是空操作。空路径直接返回，根永远隐式存在
func (c *ChainEnsurer) Ensure(ctx context.Context, scope Scope, path string, seen map[string]struct{}) error {
	path = pathutil.Normalize(path)
	if path == "" {
		return nil
	}

	for _, prefix := range pathutil.Prefixes(path) {
		key := pathutil.BuildKey(scope.Root, scope.Tenant, prefix, true)
		if _, ok := seen[key]; ok {
			continue
		}

		if err := c.ensureOne(ctx, scope, prefix, key); err != nil {
			return err
		}
		seen[key] = struct{}{}
	}

	return nil
}

func (c *ChainEnsurer) ensureOne(ctx context.Context, scope Scope, prefix, key string) error {
	_, err := c.repo.GetByPath(ctx, scope, prefix)
	if err == nil {
		return nil
	}
	if err != ErrEntryNotFound {
		return err
	}

	if c.markers {
		if err := c.blobs.PutMarker(ctx, key); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	entry := &Entry{
		ID:         uuid.NewString(),
		Root:       scope.Root,
		Tenant:     scope.Tenant,
		Path:       prefix,
		ParentPath: pathutil.ParentOf(prefix),
		Name:       pathutil.NameOf(prefix),
		Type:       EntryTypeFolder,
		StorageKey: key,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := c.repo.Create(ctx, entry); err != nil {
		// 并发补齐同一前缀时唯一约束会拒绝后写的一方，视为已存在
		if err == ErrEntryExists {
			return nil
		}
		return err
	}

	c.logger.Debug("folder chain segment materialized",
		zap.String("root", scope.Root),
		zap.String("tenant", scope.Tenant),
		zap.String("path", prefix),
	)

	return nil
}
