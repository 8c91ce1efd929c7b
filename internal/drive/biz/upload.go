package biz

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/pathutil"
)

// FileUpload 一个待上传文件。Data 在请求边界已读入内存，
// 批内各文件的物理写入是并发的，不能共享一个顺序 reader
type FileUpload struct {
	Name        string
	Size        int64
	ContentType string
	Data        []byte
}

// UploadFailure 单个文件的上传失败记录
type UploadFailure struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// UploadResult 批量上传的聚合结果，成功与失败并列返回，
// 失败的文件由调用方单独重试
type UploadResult struct {
	Succeeded []*Entry        `json:"succeeded"`
	Failed    []UploadFailure `json:"failed"`
}

// UploadOne 上传单个文件到 basePath 下，缺失的上级文件夹链先补齐
func (uc *DriveUseCase) UploadOne(ctx context.Context, scope Scope, basePath string, file FileUpload) (*Entry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := validateName(file.Name); err != nil {
		return nil, err
	}

	basePath = pathutil.Normalize(basePath)
	fullPath := pathutil.Join(basePath, file.Name)
	key := pathutil.BuildKey(scope.Root, scope.Tenant, fullPath, false)
	if err := validateKey(key); err != nil {
		return nil, err
	}

	if err := uc.chain.Ensure(ctx, scope, basePath, NewSeen()); err != nil {
		return nil, err
	}

	if err := uc.blobs.Put(ctx, key, bytes.NewReader(file.Data), file.Size, file.ContentType); err != nil {
		return nil, err
	}

	entry, err := uc.upsertFile(ctx, scope, fullPath, key, file, UploadKindSingle)
	if err != nil {
		uc.logger.Error("metadata upsert failed after physical write, state is inconsistent",
			zap.String("tenant", scope.Tenant),
			zap.String("path", fullPath),
			zap.Error(err),
		)
		return nil, err
	}

	uc.logger.Info("file uploaded",
		zap.String("tenant", scope.Tenant),
		zap.String("path", fullPath),
		zap.Int64("size", file.Size),
	)

	return entry, nil
}

// UploadMany 批量上传到 basePath 下。paths 非空时逐个覆盖文件的
// 相对路径（长度必须与 files 一致），为空时使用各文件自身的文件名。
// 物理写入并发执行，单个文件失败不影响同批其他文件
func (uc *DriveUseCase) UploadMany(ctx context.Context, scope Scope, basePath string, files []FileUpload, paths []string) (*UploadResult, error) {
	return uc.uploadBatch(ctx, scope, basePath, files, paths, UploadKindBatch)
}

// UploadFolder 上传整个文件夹结构。paths 为必填项，逐个给出文件
// 相对 basePath 的路径，子文件夹由此隐式物化
func (uc *DriveUseCase) UploadFolder(ctx context.Context, scope Scope, basePath string, files []FileUpload, paths []string) (*UploadResult, error) {
	if len(paths) != len(files) {
		return nil, ErrPathCountMismatch
	}
	return uc.uploadBatch(ctx, scope, basePath, files, paths, UploadKindFolder)
}

func (uc *DriveUseCase) uploadBatch(ctx context.Context, scope Scope, basePath string, files []FileUpload, paths []string, kind string) (*UploadResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrEmptyUpload
	}
	if len(paths) > 0 && len(paths) != len(files) {
		return nil, ErrPathCountMismatch
	}
	if uc.cfg.MaxBatchFiles > 0 && len(files) > uc.cfg.MaxBatchFiles {
		return nil, ErrBatchTooLarge
	}

	basePath = pathutil.Normalize(basePath)

	// 任何写入开始前先算好每个文件的最终路径和物理键并校验
	fullPaths := make([]string, len(files))
	keys := make([]string, len(files))
	for i := range files {
		rel := files[i].Name
		if len(paths) > 0 {
			rel = paths[i]
		}
		rel = pathutil.Normalize(rel)
		if rel == "" {
			return nil, ErrInvalidPath
		}
		fullPaths[i] = pathutil.Join(basePath, rel)
		keys[i] = pathutil.BuildKey(scope.Root, scope.Tenant, fullPaths[i], false)
		if err := validateKey(keys[i]); err != nil {
			return nil, err
		}
	}

	// 所有不同的上级文件夹链在任何物理写入前补齐，
	// 同一次操作内用 seen 去重
	seen := NewSeen()
	for _, p := range fullPaths {
		if err := uc.chain.Ensure(ctx, scope, pathutil.ParentOf(p), seen); err != nil {
			return nil, err
		}
	}

	// 并发写物理对象，按下标记录各自的成败。写入中的 panic 由
	// 任务池收敛为该下标的 error，该文件计入失败而不是静默成功
	writeErrs, err := uc.pool.Map(ctx, len(files), func(i int) error {
		return uc.blobs.Put(ctx, keys[i], bytes.NewReader(files[i].Data), files[i].Size, files[i].ContentType)
	})
	if err != nil {
		return nil, err
	}

	// 只有物理写入成功的文件才落元数据
	result := &UploadResult{}
	for i := range files {
		if writeErrs[i] != nil {
			result.Failed = append(result.Failed, UploadFailure{
				Name:   files[i].Name,
				Path:   fullPaths[i],
				Reason: writeErrs[i].Error(),
			})
			continue
		}

		entry, err := uc.upsertFile(ctx, scope, fullPaths[i], keys[i], files[i], kind)
		if err != nil {
			uc.logger.Error("metadata upsert failed after physical write, state is inconsistent",
				zap.String("tenant", scope.Tenant),
				zap.String("path", fullPaths[i]),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, UploadFailure{
				Name:   files[i].Name,
				Path:   fullPaths[i],
				Reason: err.Error(),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, entry)
	}

	uc.logger.Info("batch upload finished",
		zap.String("tenant", scope.Tenant),
		zap.String("base_path", basePath),
		zap.String("kind", kind),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
	)

	return result, nil
}

// upsertFile 写入或覆盖一条文件元数据。同路径重复上传视为覆盖
func (uc *DriveUseCase) upsertFile(ctx context.Context, scope Scope, fullPath, key string, file FileUpload, kind string) (*Entry, error) {
	now := time.Now().UTC()
	entry := &Entry{
		ID:         uuid.NewString(),
		Root:       scope.Root,
		Tenant:     scope.Tenant,
		Path:       fullPath,
		ParentPath: pathutil.ParentOf(fullPath),
		Name:       pathutil.NameOf(fullPath),
		Type:       EntryTypeFile,
		StorageKey: key,
		Size:       file.Size,
		MimeType:   file.ContentType,
		Attributes: map[string]string{AttrUploadKind: kind},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := uc.repo.Upsert(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
