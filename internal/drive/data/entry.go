package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/database"
)

// EntryPO 层级条目数据库模型，(root, tenant, path) 唯一
type EntryPO struct {
	ID         string `gorm:"type:uuid;primarykey"`
	Root       string `gorm:"size:128;not null;uniqueIndex:uq_drive_entries_scope_path,priority:1"`
	Tenant     string `gorm:"size:128;not null;uniqueIndex:uq_drive_entries_scope_path,priority:2"`
	Path       string `gorm:"size:1024;not null;uniqueIndex:uq_drive_entries_scope_path,priority:3"`
	ParentPath string `gorm:"size:1024;not null;index:idx_drive_entries_parent"`
	Name       string `gorm:"size:255;not null"`
	Type       string `gorm:"size:16;not null"`
	StorageKey string `gorm:"size:1280;not null"`
	Size       int64  `gorm:"not null;default:0"`
	MimeType   string `gorm:"size:255"`
	Attributes string `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (EntryPO) TableName() string {
	return "drive_entries"
}

// EntryRepo 条目仓储实现
type EntryRepo struct {
	db *database.DB
}

// NewEntryRepo 创建条目仓储
func NewEntryRepo(db *database.DB) biz.EntryRepo {
	return &EntryRepo{db: db}
}

// scoped 所有查询的公共分区条件
func (r *EntryRepo) scoped(ctx context.Context, scope biz.Scope) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&EntryPO{}).
		Where("root = ? AND tenant = ?", scope.Root, scope.Tenant)
}

// Create 创建条目，路径冲突返回 ErrEntryExists
func (r *EntryRepo) Create(ctx context.Context, entry *biz.Entry) error {
	po, err := toPO(entry)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Create(po).Error; err != nil {
		if database.IsDuplicateKeyError(err) {
			return biz.ErrEntryExists
		}
		return err
	}
	return nil
}

// Upsert 创建条目，(root, tenant, path) 已存在时覆盖文件属性
func (r *EntryRepo) Upsert(ctx context.Context, entry *biz.Entry) error {
	po, err := toPO(entry)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "root"}, {Name: "tenant"}, {Name: "path"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"type", "storage_key", "size", "mime_type", "attributes", "updated_at",
			}),
		}).
		Create(po).Error
}

// GetByPath 按路径取单个条目
func (r *EntryRepo) GetByPath(ctx context.Context, scope biz.Scope, path string) (*biz.Entry, error) {
	var po EntryPO
	err := r.scoped(ctx, scope).Where("path = ?", path).First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrEntryNotFound
		}
		return nil, err
	}
	return toEntry(&po)
}

// ListByParent 列出 parentPath 的直接子级
func (r *EntryRepo) ListByParent(ctx context.Context, scope biz.Scope, parentPath string, sort biz.SortOptions) ([]*biz.Entry, error) {
	field := sort.By
	if field == "" {
		field = "name"
	}
	direction := "ASC"
	if sort.Desc {
		direction = "DESC"
	}

	var pos []EntryPO
	err := r.scoped(ctx, scope).
		Where("parent_path = ?", parentPath).
		Order(fmt.Sprintf("%s %s", field, direction)).
		Find(&pos).Error
	if err != nil {
		return nil, err
	}
	return toEntries(pos)
}

// ListAll 列出租户在该 root 下的全部条目
func (r *EntryRepo) ListAll(ctx context.Context, scope biz.Scope) ([]*biz.Entry, error) {
	var pos []EntryPO
	err := r.scoped(ctx, scope).Order("path ASC").Find(&pos).Error
	if err != nil {
		return nil, err
	}
	return toEntries(pos)
}

// ListSubtree 列出 prefix 本身及其全部后代
func (r *EntryRepo) ListSubtree(ctx context.Context, scope biz.Scope, prefix string) ([]*biz.Entry, error) {
	var pos []EntryPO
	err := r.scoped(ctx, scope).
		Where("path = ? OR path LIKE ?", prefix, likePrefix(prefix)).
		Order("path ASC").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}
	return toEntries(pos)
}

// UpdatePaths 一次事务内批量改写条目路径，用于移动和重命名的级联
func (r *EntryRepo) UpdatePaths(ctx context.Context, scope biz.Scope, updates []biz.PathUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	return r.db.Transaction(ctx, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, u := range updates {
			result := tx.Model(&EntryPO{}).
				Where("id = ? AND root = ? AND tenant = ?", u.ID, scope.Root, scope.Tenant).
				Updates(map[string]interface{}{
					"path":        u.Path,
					"parent_path": u.ParentPath,
					"name":        u.Name,
					"storage_key": u.StorageKey,
					"updated_at":  now,
				})
			if result.Error != nil {
				if database.IsDuplicateKeyError(result.Error) {
					return biz.ErrEntryExists
				}
				return result.Error
			}
			if result.RowsAffected == 0 {
				return biz.ErrEntryNotFound
			}
		}
		return nil
	})
}

// Delete 删除单个条目
func (r *EntryRepo) Delete(ctx context.Context, scope biz.Scope, path string) error {
	result := r.scoped(ctx, scope).Where("path = ?", path).Delete(&EntryPO{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return biz.ErrEntryNotFound
	}
	return nil
}

// DeleteSubtree 删除 prefix 本身及其全部后代
func (r *EntryRepo) DeleteSubtree(ctx context.Context, scope biz.Scope, prefix string) error {
	result := r.scoped(ctx, scope).
		Where("path = ? OR path LIKE ?", prefix, likePrefix(prefix)).
		Delete(&EntryPO{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return biz.ErrEntryNotFound
	}
	return nil
}

// likePrefix 子树匹配的 LIKE 模式，转义路径中的通配字符
func likePrefix(prefix string) string {
	escaped := ""
	for _, c := range prefix {
		switch c {
		case '%', '_', '\\':
			escaped += "\\" + string(c)
		default:
			escaped += string(c)
		}
	}
	return escaped + "/%"
}

// toPO 转换业务对象到数据库模型
func toPO(entry *biz.Entry) (*EntryPO, error) {
	attrs := "{}"
	if len(entry.Attributes) > 0 {
		bytes, err := json.Marshal(entry.Attributes)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal attributes: %w", err)
		}
		attrs = string(bytes)
	}

	return &EntryPO{
		ID:         entry.ID,
		Root:       entry.Root,
		Tenant:     entry.Tenant,
		Path:       entry.Path,
		ParentPath: entry.ParentPath,
		Name:       entry.Name,
		Type:       entry.Type,
		StorageKey: entry.StorageKey,
		Size:       entry.Size,
		MimeType:   entry.MimeType,
		Attributes: attrs,
		CreatedAt:  entry.CreatedAt,
		UpdatedAt:  entry.UpdatedAt,
	}, nil
}

// toEntry 转换数据库模型到业务对象
func toEntry(po *EntryPO) (*biz.Entry, error) {
	var attrs map[string]string
	if po.Attributes != "" && po.Attributes != "{}" {
		if err := json.Unmarshal([]byte(po.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
	}

	return &biz.Entry{
		ID:         po.ID,
		Root:       po.Root,
		Tenant:     po.Tenant,
		Path:       po.Path,
		ParentPath: po.ParentPath,
		Name:       po.Name,
		Type:       po.Type,
		StorageKey: po.StorageKey,
		Size:       po.Size,
		MimeType:   po.MimeType,
		Attributes: attrs,
		CreatedAt:  po.CreatedAt,
		UpdatedAt:  po.UpdatedAt,
	}, nil
}

func toEntries(pos []EntryPO) ([]*biz.Entry, error) {
	entries := make([]*biz.Entry, len(pos))
	for i := range pos {
		e, err := toEntry(&pos[i])
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}
	return entries, nil
}
