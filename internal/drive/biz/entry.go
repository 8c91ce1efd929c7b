package biz

import (
	"context"
	"io"
	"time"
)

// 条目类型
const (
	EntryTypeFolder = "folder"
	EntryTypeFile   = "file"
)

// 文件入库方式（仅作溯源记录，不影响一致性规则）
const (
	UploadKindSingle = "single"
	UploadKindBatch  = "batch"
	UploadKindFolder = "folder"
)

// 属性键
const (
	AttrUploadKind = "upload_kind"
)

// Scope 租户分区，所有操作都必须携带
type Scope struct {
	Root   string
	Tenant string
}

// Validate 校验分区参数，Tenant 为必填项
func (s Scope) Validate() error {
	if s.Tenant == "" {
		return ErrTenantRequired
	}
	return nil
}

// Entry 层级条目模型，文件夹和文件各占一行
type Entry struct {
	ID         string
	Root       string
	Tenant     string
	Path       string // 相对根的规范化路径，(root, tenant, path) 唯一
	ParentPath string // 上级文件夹路径，根级条目为 ""
	Name       string // 路径末段，始终由 Path 推导
	Type       string // folder, file
	StorageKey string // 物理存储键，始终由 KeyBuilder 重算，不单独修改
	Size       int64
	MimeType   string
	Attributes map[string]string // 操作溯源信息，非权威数据
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsFolder 是否为文件夹
func (e *Entry) IsFolder() bool {
	return e.Type == EntryTypeFolder
}

// PathUpdate 级联改路径时单个条目的新值
type PathUpdate struct {
	ID         string
	Path       string
	ParentPath string
	Name       string
	StorageKey string
}

// SortOptions 列表排序选项
type SortOptions struct {
	By   string // name, type, size, created_at, updated_at
	Desc bool
}

var sortFields = map[string]struct{}{
	"":           {},
	"name":       {},
	"type":       {},
	"size":       {},
	"created_at": {},
	"updated_at": {},
}

// Validate 校验排序字段是否在白名单内
func (o SortOptions) Validate() error {
	if _, ok := sortFields[o.By]; !ok {
		return ErrInvalidSortField
	}
	return nil
}

// TreeNode 树视图节点。根节点 Entry 为 nil，Children 为顶层文件夹，
// Files 为该层级的文件
type TreeNode struct {
	Entry    *Entry      `json:"entry"`
	Children []*TreeNode `json:"children"`
	Files    []*Entry    `json:"files"`
}

// EntryRepo 条目仓储接口，所有查询和变更都以 (root, tenant) 为分区
type EntryRepo interface {
	Create(ctx context.Context, entry *Entry) error
	Upsert(ctx context.Context, entry *Entry) error
	GetByPath(ctx context.Context, scope Scope, path string) (*Entry, error)
	ListByParent(ctx context.Context, scope Scope, parentPath string, sort SortOptions) ([]*Entry, error)
	ListAll(ctx context.Context, scope Scope) ([]*Entry, error)
	ListSubtree(ctx context.Context, scope Scope, prefix string) ([]*Entry, error)
	UpdatePaths(ctx context.Context, scope Scope, updates []PathUpdate) error
	Delete(ctx context.Context, scope Scope, path string) error
	DeleteSubtree(ctx context.Context, scope Scope, prefix string) error
}

// BlobInfo 物理对象元信息
type BlobInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobStore 对象存储接口，只操作物理键，对层级一无所知
type BlobStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	PutMarker(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (io.ReadCloser, BlobInfo, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
	Remove(ctx context.Context, key string) error
	RemoveAll(ctx context.Context, keys []string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	PresignedGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// URLCache 预签名 URL 缓存接口
type URLCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, url string, ttl time.Duration) error
}

// TaskPool 批量上传使用的并发任务池。Map 按下标返回每个任务的
// 错误，任务内的 panic 收敛为对应下标的 error
type TaskPool interface {
	Map(ctx context.Context, n int, fn func(i int) error) ([]error, error)
}
