package biz

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/logger"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/pathutil"
)

// Config 网盘用例配置
type Config struct {
	// FolderMarkers 是否为文件夹写入零字节占位对象
	FolderMarkers bool
	// MaxBatchFiles 批量上传单次允许的最大文件数
	MaxBatchFiles int
	// PresignExpiry 预签名 URL 默认有效期
	PresignExpiry time.Duration
	// URLCacheTTL 预签名 URL 缓存时长
	URLCacheTTL time.Duration
}

// DriveUseCase 网盘结构操作用例。所有跨物理存储和元数据的多步操作
// 都遵循同一顺序：先物理变更，成功后才改元数据。物理成功而元数据
// 失败的窗口不做补偿，记录错误日志后向调用方报失败
type DriveUseCase struct {
	repo   EntryRepo
	blobs  BlobStore
	chain  *ChainEnsurer
	pool   TaskPool
	urls   URLCache
	cfg    Config
	logger *logger.Logger
}

// NewDriveUseCase 创建网盘用例
func NewDriveUseCase(
	repo EntryRepo,
	blobs BlobStore,
	chain *ChainEnsurer,
	pool TaskPool,
	urls URLCache,
	cfg Config,
	log *logger.Logger,
) *DriveUseCase {
	return &DriveUseCase{
		repo:   repo,
		blobs:  blobs,
		chain:  chain,
		pool:   pool,
		urls:   urls,
		cfg:    cfg,
		logger: log,
	}
}

// maxObjectKeyLen 物理对象键的长度上限，与对象存储的对象名限制一致
const maxObjectKeyLen = 1024

// validateName 校验 name 是单个非空路径段
func validateName(name string) error {
	n := pathutil.Normalize(name)
	if n == "" || strings.Contains(n, pathutil.Separator) {
		return ErrInvalidName
	}
	return nil
}

// validateKey 校验由路径派生的物理键不超过对象名长度上限。
// 键公式包含 root 和租户前缀，只卡数据库列宽不足以保证可存储
func validateKey(key string) error {
	if len(key) > maxObjectKeyLen {
		return ErrPathTooLong
	}
	return nil
}

// CreateFolder 在 parentPath 下创建名为 name 的文件夹，
// 缺失的上级文件夹链一并补齐
func (uc *DriveUseCase) CreateFolder(ctx context.Context, scope Scope, parentPath, name string) (*Entry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	fullPath := pathutil.Join(parentPath, name)
	key := pathutil.BuildKey(scope.Root, scope.Tenant, fullPath, true)
	if err := validateKey(key); err != nil {
		return nil, err
	}

	if _, err := uc.repo.GetByPath(ctx, scope, fullPath); err == nil {
		return nil, ErrEntryExists
	} else if err != ErrEntryNotFound {
		return nil, err
	}

	seen := NewSeen()
	if err := uc.chain.Ensure(ctx, scope, pathutil.ParentOf(fullPath), seen); err != nil {
		return nil, err
	}

	if uc.cfg.FolderMarkers {
		if err := uc.blobs.PutMarker(ctx, key); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	entry := &Entry{
		ID:         uuid.NewString(),
		Root:       scope.Root,
		Tenant:     scope.Tenant,
		Path:       fullPath,
		ParentPath: pathutil.ParentOf(fullPath),
		Name:       pathutil.NameOf(fullPath),
		Type:       EntryTypeFolder,
		StorageKey: key,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := uc.repo.Create(ctx, entry); err != nil {
		return nil, err
	}

	uc.logger.Info("folder created",
		zap.String("tenant", scope.Tenant),
		zap.String("path", fullPath),
	)

	return entry, nil
}

// Rename 重命名文件或文件夹，newName 只能是单个路径段，
// 条目保持在原上级文件夹内
func (uc *DriveUseCase) Rename(ctx context.Context, scope Scope, oldPath, newName string) (*Entry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := validateName(newName); err != nil {
		return nil, err
	}

	oldPath = pathutil.Normalize(oldPath)
	if oldPath == "" {
		return nil, ErrInvalidPath
	}

	entry, err := uc.repo.GetByPath(ctx, scope, oldPath)
	if err != nil {
		return nil, err
	}

	newPath := pathutil.Join(pathutil.ParentOf(oldPath), newName)
	if newPath == oldPath {
		return entry, nil
	}

	if _, err := uc.repo.GetByPath(ctx, scope, newPath); err == nil {
		return nil, ErrEntryExists
	} else if err != ErrEntryNotFound {
		return nil, err
	}

	if entry.IsFolder() {
		return uc.relocateFolder(ctx, scope, entry, newPath)
	}
	return uc.relocateFile(ctx, scope, entry, newPath)
}

// MoveFile 移动文件。目标已存在为文件夹时移入其内部，
// 否则 targetPath 作为字面新路径
func (uc *DriveUseCase) MoveFile(ctx context.Context, scope Scope, sourcePath, targetPath string) (*Entry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	sourcePath = pathutil.Normalize(sourcePath)
	if sourcePath == "" {
		return nil, ErrInvalidPath
	}

	entry, err := uc.repo.GetByPath(ctx, scope, sourcePath)
	if err != nil {
		return nil, err
	}
	if entry.IsFolder() {
		return nil, ErrNotAFile
	}

	finalPath, err := uc.resolveDestination(ctx, scope, targetPath, entry.Name)
	if err != nil {
		return nil, err
	}
	if finalPath == sourcePath {
		return entry, nil
	}

	if _, err := uc.repo.GetByPath(ctx, scope, finalPath); err == nil {
		return nil, ErrEntryExists
	} else if err != ErrEntryNotFound {
		return nil, err
	}

	return uc.relocateFile(ctx, scope, entry, finalPath)
}

// MoveFolder 移动文件夹及其全部后代。目标已存在为文件夹时移入其内部，
// 否则 targetPath 作为字面新路径
func (uc *DriveUseCase) MoveFolder(ctx context.Context, scope Scope, sourcePath, targetPath string) (*Entry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	sourcePath = pathutil.Normalize(sourcePath)
	if sourcePath == "" {
		return nil, ErrInvalidPath
	}

	entry, err := uc.repo.GetByPath(ctx, scope, sourcePath)
	if err != nil {
		return nil, err
	}
	if !entry.IsFolder() {
		return nil, ErrNotAFolder
	}

	finalPath, err := uc.resolveDestination(ctx, scope, targetPath, entry.Name)
	if err != nil {
		return nil, err
	}
	if finalPath == sourcePath {
		return entry, nil
	}
	// 不允许把文件夹移进自己的子树
	if pathutil.HasPrefix(finalPath, sourcePath) {
		return nil, ErrInvalidPath
	}

	if _, err := uc.repo.GetByPath(ctx, scope, finalPath); err == nil {
		return nil, ErrEntryExists
	} else if err != ErrEntryNotFound {
		return nil, err
	}

	return uc.relocateFolder(ctx, scope, entry, finalPath)
}

// resolveDestination 计算移动操作的最终路径。目标为空表示移到根级；
// 目标已存在且是文件夹则嵌套其内；其余情况 targetPath 即最终路径
func (uc *DriveUseCase) resolveDestination(ctx context.Context, scope Scope, targetPath, sourceName string) (string, error) {
	target := pathutil.Normalize(targetPath)
	if target == "" {
		return pathutil.Normalize(sourceName), nil
	}

	dest, err := uc.repo.GetByPath(ctx, scope, target)
	if err == ErrEntryNotFound {
		return target, nil
	}
	if err != nil {
		return "", err
	}

	if dest.IsFolder() {
		return pathutil.Join(target, sourceName), nil
	}
	return target, nil
}

// relocateFile 单个文件的物理搬迁加元数据更新。字面目标路径可能
// 指向尚未物化的文件夹，先补齐新上级链再搬
func (uc *DriveUseCase) relocateFile(ctx context.Context, scope Scope, entry *Entry, newPath string) (*Entry, error) {
	oldKey := entry.StorageKey
	newKey := pathutil.BuildKey(scope.Root, scope.Tenant, newPath, false)
	if err := validateKey(newKey); err != nil {
		return nil, err
	}

	if err := uc.chain.Ensure(ctx, scope, pathutil.ParentOf(newPath), NewSeen()); err != nil {
		return nil, err
	}

	if err := uc.blobs.Copy(ctx, oldKey, newKey); err != nil {
		return nil, err
	}
	if err := uc.blobs.Remove(ctx, oldKey); err != nil {
		return nil, err
	}

	update := PathUpdate{
		ID:         entry.ID,
		Path:       newPath,
		ParentPath: pathutil.ParentOf(newPath),
		Name:       pathutil.NameOf(newPath),
		StorageKey: newKey,
	}
	if err := uc.repo.UpdatePaths(ctx, scope, []PathUpdate{update}); err != nil {
		uc.logger.Error("metadata update failed after physical move, state is inconsistent",
			zap.String("tenant", scope.Tenant),
			zap.String("old_path", entry.Path),
			zap.String("new_path", newPath),
			zap.Error(err),
		)
		return nil, err
	}

	moved := *entry
	moved.Path = update.Path
	moved.ParentPath = update.ParentPath
	moved.Name = update.Name
	moved.StorageKey = update.StorageKey
	moved.UpdatedAt = time.Now().UTC()

	uc.logger.Info("file moved",
		zap.String("tenant", scope.Tenant),
		zap.String("old_path", entry.Path),
		zap.String("new_path", newPath),
	)

	return &moved, nil
}

// relocateFolder 文件夹子树的物理搬迁加元数据级联更新。
// 新路径全部校验通过后先补齐新上级链，把前缀下所有对象复制到
// 新前缀，再删除原对象，全部完成后一次事务改写所有受影响条目
func (uc *DriveUseCase) relocateFolder(ctx context.Context, scope Scope, entry *Entry, newPath string) (*Entry, error) {
	oldPrefix := pathutil.BuildPrefix(scope.Root, scope.Tenant, entry.Path)
	newPrefix := pathutil.BuildPrefix(scope.Root, scope.Tenant, newPath)
	if err := validateKey(newPrefix); err != nil {
		return nil, err
	}

	entries, err := uc.repo.ListSubtree(ctx, scope, entry.Path)
	if err != nil {
		return nil, err
	}

	// 级联后的路径和键在任何物理变更前算好并校验，
	// 深层后代的键可能超限而文件夹自身的键没超
	updates := make([]PathUpdate, 0, len(entries))
	for _, e := range entries {
		p := pathutil.ReplacePrefix(e.Path, entry.Path, newPath)
		u := PathUpdate{
			ID:         e.ID,
			Path:       p,
			ParentPath: pathutil.ParentOf(p),
			Name:       pathutil.NameOf(p),
			StorageKey: pathutil.BuildKey(scope.Root, scope.Tenant, p, e.IsFolder()),
		}
		if err := validateKey(u.StorageKey); err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}

	keys, err := uc.blobs.ListKeys(ctx, oldPrefix)
	if err != nil {
		return nil, err
	}
	newKeys := make([]string, len(keys))
	for i, key := range keys {
		newKeys[i] = newPrefix + strings.TrimPrefix(key, oldPrefix)
		if err := validateKey(newKeys[i]); err != nil {
			return nil, err
		}
	}

	if err := uc.chain.Ensure(ctx, scope, pathutil.ParentOf(newPath), NewSeen()); err != nil {
		return nil, err
	}

	if len(keys) == 0 {
		// 物理上是空文件夹，在新前缀补一个占位对象
		if uc.cfg.FolderMarkers {
			if err := uc.blobs.PutMarker(ctx, newPrefix); err != nil {
				return nil, err
			}
		}
	} else {
		for i, key := range keys {
			if err := uc.blobs.Copy(ctx, key, newKeys[i]); err != nil {
				return nil, err
			}
		}
		if err := uc.blobs.RemoveAll(ctx, keys); err != nil {
			return nil, err
		}
	}

	if err := uc.repo.UpdatePaths(ctx, scope, updates); err != nil {
		uc.logger.Error("metadata cascade failed after physical move, state is inconsistent",
			zap.String("tenant", scope.Tenant),
			zap.String("old_path", entry.Path),
			zap.String("new_path", newPath),
			zap.Int("affected", len(updates)),
			zap.Error(err),
		)
		return nil, err
	}

	moved := *entry
	moved.Path = newPath
	moved.ParentPath = pathutil.ParentOf(newPath)
	moved.Name = pathutil.NameOf(newPath)
	moved.StorageKey = pathutil.BuildKey(scope.Root, scope.Tenant, newPath, true)
	moved.UpdatedAt = time.Now().UTC()

	uc.logger.Info("folder moved",
		zap.String("tenant", scope.Tenant),
		zap.String("old_path", entry.Path),
		zap.String("new_path", newPath),
		zap.Int("affected", len(updates)),
	)

	return &moved, nil
}

// Delete 删除文件或文件夹，kind 必须与条目实际类型一致。
// 文件夹删除级联到全部后代。先删物理对象，成功后再删元数据行
func (uc *DriveUseCase) Delete(ctx context.Context, scope Scope, path, kind string) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	path = pathutil.Normalize(path)
	if path == "" {
		return ErrInvalidPath
	}

	entry, err := uc.repo.GetByPath(ctx, scope, path)
	if err != nil {
		return err
	}

	switch kind {
	case EntryTypeFile:
		if entry.IsFolder() {
			return ErrNotAFile
		}
		return uc.deleteFile(ctx, scope, entry)
	case EntryTypeFolder:
		if !entry.IsFolder() {
			return ErrNotAFolder
		}
		return uc.deleteFolder(ctx, scope, entry)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidPath, kind)
	}
}

func (uc *DriveUseCase) deleteFile(ctx context.Context, scope Scope, entry *Entry) error {
	if err := uc.blobs.Remove(ctx, entry.StorageKey); err != nil {
		return err
	}

	if err := uc.repo.Delete(ctx, scope, entry.Path); err != nil {
		uc.logger.Error("metadata delete failed after physical delete, state is inconsistent",
			zap.String("tenant", scope.Tenant),
			zap.String("path", entry.Path),
			zap.Error(err),
		)
		return err
	}

	uc.logger.Info("file deleted",
		zap.String("tenant", scope.Tenant),
		zap.String("path", entry.Path),
	)

	return nil
}

func (uc *DriveUseCase) deleteFolder(ctx context.Context, scope Scope, entry *Entry) error {
	prefix := pathutil.BuildPrefix(scope.Root, scope.Tenant, entry.Path)

	keys, err := uc.blobs.ListKeys(ctx, prefix)
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		if err := uc.blobs.RemoveAll(ctx, keys); err != nil {
			return err
		}
	}

	if err := uc.repo.DeleteSubtree(ctx, scope, entry.Path); err != nil {
		uc.logger.Error("metadata cascade delete failed after physical delete, state is inconsistent",
			zap.String("tenant", scope.Tenant),
			zap.String("path", entry.Path),
			zap.Error(err),
		)
		return err
	}

	uc.logger.Info("folder deleted",
		zap.String("tenant", scope.Tenant),
		zap.String("path", entry.Path),
		zap.Int("objects", len(keys)),
	)

	return nil
}

// List 返回 path 直接子级的条目，只读元数据，不碰对象存储
func (uc *DriveUseCase) List(ctx context.Context, scope Scope, path string, opts SortOptions) ([]*Entry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return uc.repo.ListByParent(ctx, scope, pathutil.Normalize(path), opts)
}

// Tree 一次加载租户全部条目并组装成树。根节点 Entry 为 nil，
// Children 为顶层文件夹，Files 为顶层文件
func (uc *DriveUseCase) Tree(ctx context.Context, scope Scope) (*TreeNode, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	entries, err := uc.repo.ListAll(ctx, scope)
	if err != nil {
		return nil, err
	}

	byParent := make(map[string][]*Entry)
	for _, e := range entries {
		byParent[e.ParentPath] = append(byParent[e.ParentPath], e)
	}

	root := &TreeNode{}
	attachChildren(root, "", byParent)
	return root, nil
}

func attachChildren(node *TreeNode, path string, byParent map[string][]*Entry) {
	children := byParent[path]
	sort.Slice(children, func(i, j int) bool {
		return children[i].Name < children[j].Name
	})

	for _, e := range children {
		if e.IsFolder() {
			child := &TreeNode{Entry: e}
			attachChildren(child, e.Path, byParent)
			node.Children = append(node.Children, child)
		} else {
			node.Files = append(node.Files, e)
		}
	}
}

// PresignedURL 为文件签发限时下载地址，文件夹不可签发。
// 命中缓存时直接返回，缓存时长必须短于签名有效期
func (uc *DriveUseCase) PresignedURL(ctx context.Context, scope Scope, path string, expiry time.Duration) (string, error) {
	if err := scope.Validate(); err != nil {
		return "", err
	}

	entry, err := uc.repo.GetByPath(ctx, scope, pathutil.Normalize(path))
	if err != nil {
		return "", err
	}
	if entry.IsFolder() {
		return "", ErrNotAFile
	}

	if expiry <= 0 {
		expiry = uc.cfg.PresignExpiry
	}

	cacheKey := fmt.Sprintf("%s?expiry=%d", entry.StorageKey, int64(expiry.Seconds()))
	if uc.urls != nil {
		if cached, err := uc.urls.Get(ctx, cacheKey); err == nil && cached != "" {
			return cached, nil
		}
	}

	signed, err := uc.blobs.PresignedGet(ctx, entry.StorageKey, expiry)
	if err != nil {
		return "", err
	}

	if uc.urls != nil && uc.cfg.URLCacheTTL > 0 {
		if err := uc.urls.Set(ctx, cacheKey, signed, uc.cfg.URLCacheTTL); err != nil {
			uc.logger.Warn("failed to cache presigned url", zap.Error(err))
		}
	}

	return signed, nil
}

// Download 打开文件内容用于流式下载，调用方负责关闭 reader
func (uc *DriveUseCase) Download(ctx context.Context, scope Scope, path string) (io.ReadCloser, *Entry, error) {
	if err := scope.Validate(); err != nil {
		return nil, nil, err
	}

	entry, err := uc.repo.GetByPath(ctx, scope, pathutil.Normalize(path))
	if err != nil {
		return nil, nil, err
	}
	if entry.IsFolder() {
		return nil, nil, ErrNotAFile
	}

	reader, _, err := uc.blobs.Get(ctx, entry.StorageKey)
	if err != nil {
		return nil, nil, err
	}

	return reader, entry, nil
}
