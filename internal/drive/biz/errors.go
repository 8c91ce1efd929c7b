package biz

import "errors"

// 校验相关错误
var (
	ErrTenantRequired    = errors.New("tenant is required")
	ErrInvalidPath       = errors.New("invalid path")
	ErrPathTooLong       = errors.New("path exceeds the object key length limit")
	ErrInvalidName       = errors.New("name must be a single non-empty path segment")
	ErrInvalidSortField  = errors.New("invalid sort field")
	ErrPathCountMismatch = errors.New("paths count does not match files count")
	ErrBatchTooLarge     = errors.New("too many files in one batch")
	ErrEmptyUpload       = errors.New("no files to upload")
)

// 条目相关错误
var (
	ErrEntryNotFound = errors.New("entry not found")
	ErrEntryExists   = errors.New("entry already exists at this path")
	ErrNotAFolder    = errors.New("entry is not a folder")
	ErrNotAFile      = errors.New("entry is not a file")
)
