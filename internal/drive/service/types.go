package service

import (
	"time"

	"github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
)

// ListRequest 目录列表请求
type ListRequest struct {
	Root   string `form:"root"`
	Path   string `form:"path"`
	Tenant string `form:"tenant" binding:"required"`
	SortBy string `form:"sort_by"`
	Order  string `form:"order"` // asc, desc
}

// TreeRequest 目录树请求
type TreeRequest struct {
	Root   string `form:"root"`
	Tenant string `form:"tenant" binding:"required"`
}

// CreateFolderRequest 创建文件夹请求
type CreateFolderRequest struct {
	Root   string `json:"root"`
	Path   string `json:"path"` // 上级文件夹路径，空串表示根级
	Name   string `json:"name" binding:"required"`
	Tenant string `json:"tenant" binding:"required"`
}

// RenameRequest 重命名请求
type RenameRequest struct {
	Root    string `json:"root"`
	OldPath string `json:"old_path" binding:"required"`
	NewName string `json:"new_name" binding:"required"`
	Tenant  string `json:"tenant" binding:"required"`
}

// MoveRequest 移动请求，文件和文件夹共用
type MoveRequest struct {
	Root       string `json:"root"`
	SourcePath string `json:"source_path" binding:"required"`
	TargetPath string `json:"target_path"` // 空串表示移到根级
	Tenant     string `json:"tenant" binding:"required"`
}

// DeleteRequest 删除请求
type DeleteRequest struct {
	Root   string `form:"root"`
	Path   string `form:"path" binding:"required"`
	Kind   string `form:"kind" binding:"required"` // file, folder
	Tenant string `form:"tenant" binding:"required"`
}

// PresignedURLRequest 预签名下载地址请求
type PresignedURLRequest struct {
	Root          string `form:"root"`
	Path          string `form:"path" binding:"required"`
	Tenant        string `form:"tenant" binding:"required"`
	ExpirySeconds int    `form:"expiry_seconds"`
}

// DownloadRequest 文件下载请求
type DownloadRequest struct {
	Root   string `form:"root"`
	Path   string `form:"path" binding:"required"`
	Tenant string `form:"tenant" binding:"required"`
}

// EntryResponse 条目响应
type EntryResponse struct {
	ID         string            `json:"id"`
	Root       string            `json:"root"`
	Tenant     string            `json:"tenant"`
	Path       string            `json:"path"`
	ParentPath string            `json:"parent_path"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	StorageKey string            `json:"storage_key"`
	Size       int64             `json:"size"`
	MimeType   string            `json:"mime_type,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// TreeNodeResponse 树节点响应
type TreeNodeResponse struct {
	Entry    *EntryResponse      `json:"entry"`
	Children []*TreeNodeResponse `json:"children"`
	Files    []*EntryResponse    `json:"files"`
}

// UploadResponse 批量上传响应
type UploadResponse struct {
	Succeeded []*EntryResponse    `json:"succeeded"`
	Failed    []biz.UploadFailure `json:"failed"`
}

// PresignedURLResponse 预签名地址响应
type PresignedURLResponse struct {
	URL           string `json:"url"`
	ExpirySeconds int    `json:"expiry_seconds"`
}

func toEntryResponse(e *biz.Entry) *EntryResponse {
	if e == nil {
		return nil
	}
	return &EntryResponse{
		ID:         e.ID,
		Root:       e.Root,
		Tenant:     e.Tenant,
		Path:       e.Path,
		ParentPath: e.ParentPath,
		Name:       e.Name,
		Type:       e.Type,
		StorageKey: e.StorageKey,
		Size:       e.Size,
		MimeType:   e.MimeType,
		Attributes: e.Attributes,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

func toEntryResponses(entries []*biz.Entry) []*EntryResponse {
	out := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		out[i] = toEntryResponse(e)
	}
	return out
}

func toTreeNodeResponse(node *biz.TreeNode) *TreeNodeResponse {
	if node == nil {
		return nil
	}

	resp := &TreeNodeResponse{
		Entry:    toEntryResponse(node.Entry),
		Children: make([]*TreeNodeResponse, len(node.Children)),
		Files:    toEntryResponses(node.Files),
	}
	for i, child := range node.Children {
		resp.Children[i] = toTreeNodeResponse(child)
	}
	return resp
}
