package service

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
	apperrors "github.com/lk2023060901/cloud-drive-backend/internal/pkg/errors"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/logger"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/response"
)

// DriveService 网盘 HTTP 服务
type DriveService struct {
	driveUseCase *biz.DriveUseCase
	defaultRoot  string
	logger       *logger.Logger
}

// NewDriveService 创建网盘服务
func NewDriveService(driveUseCase *biz.DriveUseCase, defaultRoot string, log *logger.Logger) *DriveService {
	return &DriveService{
		driveUseCase: driveUseCase,
		defaultRoot:  defaultRoot,
		logger:       log,
	}
}

// RegisterRoutes 注册路由
func (s *DriveService) RegisterRoutes(r *gin.RouterGroup) {
	drive := r.Group("/drive")
	{
		drive.GET("/entries", s.List)
		drive.GET("/tree", s.Tree)
		drive.POST("/folders", s.CreateFolder)
		drive.POST("/files", s.UploadOne)
		drive.POST("/files/batch", s.UploadMany)
		drive.POST("/files/tree", s.UploadFolder)
		drive.POST("/entries/rename", s.Rename)
		drive.POST("/files/move", s.MoveFile)
		drive.POST("/folders/move", s.MoveFolder)
		drive.DELETE("/entries", s.Delete)
		drive.GET("/files/url", s.PresignedURL)
		drive.GET("/files/download", s.Download)
	}
}

// scope 组装分区参数，root 未指定时使用默认根
func (s *DriveService) scope(root, tenant string) biz.Scope {
	if root == "" {
		root = s.defaultRoot
	}
	return biz.Scope{Root: root, Tenant: tenant}
}

// List 列出目录直接子级
func (s *DriveService) List(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	entries, err := s.driveUseCase.List(c.Request.Context(), s.scope(req.Root, req.Tenant), req.Path, biz.SortOptions{
		By:   req.SortBy,
		Desc: req.Order == "desc",
	})
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, toEntryResponses(entries))
}

// Tree 返回租户的完整目录树
func (s *DriveService) Tree(c *gin.Context) {
	var req TreeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tree, err := s.driveUseCase.Tree(c.Request.Context(), s.scope(req.Root, req.Tenant))
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, toTreeNodeResponse(tree))
}

// CreateFolder 创建文件夹
func (s *DriveService) CreateFolder(c *gin.Context) {
	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	entry, err := s.driveUseCase.CreateFolder(c.Request.Context(), s.scope(req.Root, req.Tenant), req.Path, req.Name)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Created(c, toEntryResponse(entry))
}

// UploadOne 上传单个文件，multipart 字段：file, root, path, tenant
func (s *DriveService) UploadOne(c *gin.Context) {
	tenant := c.PostForm("tenant")
	if tenant == "" {
		response.ErrorWithCode(c, apperrors.ErrDriveTenantRequired)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}

	upload, err := readUpload(fileHeader)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	scope := s.scope(c.PostForm("root"), tenant)
	entry, err := s.driveUseCase.UploadOne(c.Request.Context(), scope, c.PostForm("path"), *upload)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Created(c, toEntryResponse(entry))
}

// UploadMany 批量上传，multipart 字段：files（多值）、可选 paths（多值，
// 与 files 等长时逐个覆盖相对路径）、root, path, tenant
func (s *DriveService) UploadMany(c *gin.Context) {
	files, paths, scope, ok := s.bindBatchUpload(c)
	if !ok {
		return
	}

	result, err := s.driveUseCase.UploadMany(c.Request.Context(), scope, c.PostForm("path"), files, paths)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, &UploadResponse{
		Succeeded: toEntryResponses(result.Succeeded),
		Failed:    result.Failed,
	})
}

// UploadFolder 上传文件夹结构，paths 必填且与 files 等长
func (s *DriveService) UploadFolder(c *gin.Context) {
	files, paths, scope, ok := s.bindBatchUpload(c)
	if !ok {
		return
	}

	result, err := s.driveUseCase.UploadFolder(c.Request.Context(), scope, c.PostForm("path"), files, paths)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, &UploadResponse{
		Succeeded: toEntryResponses(result.Succeeded),
		Failed:    result.Failed,
	})
}

func (s *DriveService) bindBatchUpload(c *gin.Context) ([]biz.FileUpload, []string, biz.Scope, bool) {
	tenant := c.PostForm("tenant")
	if tenant == "" {
		response.ErrorWithCode(c, apperrors.ErrDriveTenantRequired)
		return nil, nil, biz.Scope{}, false
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, err.Error())
		return nil, nil, biz.Scope{}, false
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		response.BadRequest(c, "files are required")
		return nil, nil, biz.Scope{}, false
	}

	files := make([]biz.FileUpload, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		upload, err := readUpload(fh)
		if err != nil {
			response.BadRequest(c, fmt.Sprintf("failed to read %s: %v", fh.Filename, err))
			return nil, nil, biz.Scope{}, false
		}
		files = append(files, *upload)
	}

	return files, form.Value["paths"], s.scope(c.PostForm("root"), tenant), true
}

// readUpload 把 multipart 文件读入内存
func readUpload(fh *multipart.FileHeader) (*biz.FileUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	return &biz.FileUpload{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// Rename 重命名文件或文件夹
func (s *DriveService) Rename(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	entry, err := s.driveUseCase.Rename(c.Request.Context(), s.scope(req.Root, req.Tenant), req.OldPath, req.NewName)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, toEntryResponse(entry))
}

// MoveFile 移动文件
func (s *DriveService) MoveFile(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	entry, err := s.driveUseCase.MoveFile(c.Request.Context(), s.scope(req.Root, req.Tenant), req.SourcePath, req.TargetPath)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, toEntryResponse(entry))
}

// MoveFolder 移动文件夹及其后代
func (s *DriveService) MoveFolder(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	entry, err := s.driveUseCase.MoveFolder(c.Request.Context(), s.scope(req.Root, req.Tenant), req.SourcePath, req.TargetPath)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, toEntryResponse(entry))
}

// Delete 删除文件或文件夹
func (s *DriveService) Delete(c *gin.Context) {
	var req DeleteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := s.driveUseCase.Delete(c.Request.Context(), s.scope(req.Root, req.Tenant), req.Path, req.Kind); err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, nil)
}

// PresignedURL 签发文件的限时下载地址
func (s *DriveService) PresignedURL(c *gin.Context) {
	var req PresignedURLRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	expiry := time.Duration(req.ExpirySeconds) * time.Second
	signed, err := s.driveUseCase.PresignedURL(c.Request.Context(), s.scope(req.Root, req.Tenant), req.Path, expiry)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, &PresignedURLResponse{
		URL:           signed,
		ExpirySeconds: req.ExpirySeconds,
	})
}

// Download 直接流式下载文件内容
func (s *DriveService) Download(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	reader, entry, err := s.driveUseCase.Download(c.Request.Context(), s.scope(req.Root, req.Tenant), req.Path)
	if err != nil {
		s.handleError(c, err)
		return
	}
	defer reader.Close()

	contentType := entry.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entry.Name))
	c.DataFromReader(http.StatusOK, entry.Size, contentType, reader, nil)
}

// handleError 把业务错误映射为统一响应
func (s *DriveService) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biz.ErrEntryNotFound):
		response.ErrorWithCode(c, apperrors.ErrDriveEntryNotFound)
	case errors.Is(err, biz.ErrEntryExists):
		response.ErrorWithCode(c, apperrors.ErrDrivePathOccupied)
	case errors.Is(err, biz.ErrTenantRequired):
		response.ErrorWithCode(c, apperrors.ErrDriveTenantRequired)
	case errors.Is(err, biz.ErrInvalidPath), errors.Is(err, biz.ErrInvalidName),
		errors.Is(err, biz.ErrPathTooLong), errors.Is(err, biz.ErrInvalidSortField),
		errors.Is(err, biz.ErrEmptyUpload):
		response.ErrorWithCode(c, apperrors.ErrDriveInvalidPath, err.Error())
	case errors.Is(err, biz.ErrNotAFolder):
		response.ErrorWithCode(c, apperrors.ErrDriveNotAFolder)
	case errors.Is(err, biz.ErrNotAFile):
		response.ErrorWithCode(c, apperrors.ErrDriveNotAFile)
	case errors.Is(err, biz.ErrPathCountMismatch):
		response.ErrorWithCode(c, apperrors.ErrDrivePathCountMismatch)
	case errors.Is(err, biz.ErrBatchTooLarge):
		response.ErrorWithCode(c, apperrors.ErrDriveBatchTooLarge)
	default:
		s.logger.Error("drive operation failed", zap.Error(err))
		response.ErrorWithCode(c, apperrors.ErrDriveStorageFailed)
	}
}
