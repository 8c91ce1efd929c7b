package biz

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testScope = Scope{Root: "drive", Tenant: "E1"}

func TestCreateFolder(t *testing.T) {
	uc, _, blobs, _ := newTestUseCase()
	ctx := context.Background()

	entry, err := uc.CreateFolder(ctx, testScope, "", "Marketing")
	require.NoError(t, err)

	assert.Equal(t, "Marketing", entry.Path)
	assert.Equal(t, "", entry.ParentPath)
	assert.Equal(t, "Marketing", entry.Name)
	assert.Equal(t, EntryTypeFolder, entry.Type)
	assert.Equal(t, "drive/E1/Marketing/", entry.StorageKey)
	assert.True(t, blobs.has("drive/E1/Marketing/"))
}

func TestCreateFolderConflict(t *testing.T) {
	uc, _, _, _ := newTestUseCase()
	ctx := context.Background()

	_, err := uc.CreateFolder(ctx, testScope, "", "Marketing")
	require.NoError(t, err)

	_, err = uc.CreateFolder(ctx, testScope, "", "Marketing")
	assert.ErrorIs(t, err, ErrEntryExists)
}

func TestCreateFolderMaterializesParentChain(t *testing.T) {
	uc, repo, _, _ := newTestUseCase()
	ctx := context.Background()

	_, err := uc.CreateFolder(ctx, testScope, "a/b", "c")
	require.NoError(t, err)

	for _, p := range []string{"a", "a/b", "a/b/c"} {
		_, err := repo.GetByPath(ctx, testScope, p)
		assert.NoError(t, err, "prefix %s should exist", p)
	}
}

func TestCreateFolderRejectsBadName(t *testing.T) {
	uc, _, _, _ := newTestUseCase()
	ctx := context.Background()

	_, err := uc.CreateFolder(ctx, testScope, "", "")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = uc.CreateFolder(ctx, testScope, "", "a/b")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestTenantRequired(t *testing.T) {
	uc, _, _, _ := newTestUseCase()
	ctx := context.Background()

	_, err := uc.CreateFolder(ctx, Scope{Root: "drive"}, "", "x")
	assert.ErrorIs(t, err, ErrTenantRequired)

	_, err = uc.List(ctx, Scope{Root: "drive"}, "", SortOptions{})
	assert.ErrorIs(t, err, ErrTenantRequired)
}

func uploadOne(t *testing.T, uc *DriveUseCase, scope Scope, base, name, content string) *Entry {
	t.Helper()
	entry, err := uc.UploadOne(context.Background(), scope, base, FileUpload{
		Name:        name,
		Size:        int64(len(content)),
		ContentType: "text/plain",
		Data:        []byte(content),
	})
	require.NoError(t, err)
	return entry
}

func TestRenameFile(t *testing.T) {
	uc, repo, blobs, _ := newTestUseCase()
	ctx := context.Background()

	uploadOne(t, uc, testScope, "docs", "old.txt", "hello")

	entry, err := uc.Rename(ctx, testScope, "docs/old.txt", "new.txt")
	require.NoError(t, err)

	assert.Equal(t, "docs/new.txt", entry.Path)
	assert.Equal(t, "docs", entry.ParentPath)
	assert.Equal(t, "new.txt", entry.Name)
	assert.Equal(t, "drive/E1/docs/new.txt", entry.StorageKey)

	// 旧键已清除，新键存在
	assert.False(t, blobs.has("drive/E1/docs/old.txt"))
	assert.True(t, blobs.has("drive/E1/docs/new.txt"))

	_, err = repo.GetByPath(ctx, testScope, "docs/old.txt")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestRenameConflict(t *testing.T) {
	uc, _, _, _ := newTestUseCase()
	ctx := context.Background()

	uploadOne(t, uc, testScope, "docs", "a.txt", "a")
	uploadOne(t, uc, testScope, "docs", "b.txt", "b")

	_, err := uc.Rename(ctx, testScope, "docs/a.txt", "b.txt")
	assert.ErrorIs(t, err, ErrEntryExists)
}

func TestRenameFolderCascades(t *testing.T) {
	uc, repo, blobs, _ := newTestUseCase()
	ctx := context.Background()

	uploadOne(t, uc, testScope, "proj/sub", "f.txt", "data")

	_, err := uc.Rename(ctx, testScope, "proj", "project")
	require.NoError(t, err)

	for _, p := range []string{"project", "project/sub", "project/sub/f.txt"} {
		_, err := repo.GetByPath(ctx, testScope, p)
		assert.NoError(t, err, "%s should exist after rename", p)
	}
	for _, p := range []string{"proj", "proj/sub", "proj/sub/f.txt"} {
		_, err := repo.GetByPath(ctx, testScope, p)
		assert.ErrorIs(t, err, ErrEntryNotFound, "%s should be gone", p)
	}

	assert.True(t, blobs.has("drive/E1/project/sub/f.txt"))
	assert.False(t, blobs.has("drive/E1/proj/sub/f.txt"))
}

func TestMoveFileIntoExistingFolder(t *testing.T) {
	uc, _, _, _ := newTestUseCase()
	ctx := context.Background()

	uploadOne(t, uc, testScope, "inbox", "report.pdf", "pdf")
	_, err := uc.CreateFolder(ctx, testScope, "", "archive")
	require.NoError(t, err)

	// 目标是已存在的文件夹，移入其内部
	entry, err := uc.MoveFile(ctx, testScope, "inbox/report.pdf", "archive")
	require.NoError(t, err)
	assert.Equal(t, "archive/report.pdf", entry.Path)
}

func TestMoveFileLiteralRename(t *testing.T) {
	uc, _, _, _ := newTestUseCase()
	ctx := context.Background()

	uploadOne(t, uc, testScope, "inbox", "report.pdf", "pdf")

	// 目标不存在，按字面路径改名搬移
	entry, err := uc.MoveFile(ctx, testScope, "inbox/report.pdf", "inbox/final.pdf")
	require.NoError(t, err)
	assert.Equal(t, "inbox/final.pdf", entry.Path)
}

func TestMoveFileLiteralDestinationMaterializesAncestors(t *testing.T) {
	uc, repo, blobs, _ := newTestUseCase()
	ctx := context.Background()

	uploadOne(t, uc, testScope, "inbox", "report.pdf", "pdf")

	// 字面目标路径的上级文件夹尚不存在，移动时一并物化
	entry, err := uc.MoveFile(ctx, testScope, "inbox/report.pdf", "newdir/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "newdir/report.pdf", entry.Path)

	folder, err := repo.GetByPath(ctx, testScope, "newdir")
	require.NoError(t, err)
	assert.Equal(t, EntryTypeFolder, folder.Type)
	assert.True(t, blobs.has("drive/E1/newdir/"))

	// 移动后的文件必须能从树上到达
	tree, err := uc.Tree(ctx, testScope)
	require.NoError(t, err)

	found := false
	for _, child := range tree.Children {
		if child.Entry.Path != "newdir" {
			continue
		}
		for _, f := range child.Files {
			if f.Path == "newdir/report.pdf" {
				found = true
			}
		}
	}
	assert.True(t, found, "moved file should be reachable through the tree")
}

func TestMoveFolderLiteralDestinationMaterializesAncestors(t *testing.T) {
	uc, repo, _, _ := newTestUseCase()
	ctx := context.Background()

	uploadOne(t, uc, testScope, "projects/alpha", "a.txt", "a")

	entry, err := uc.MoveFolder(ctx, testScope, "projects/alpha", "archive/2026/alpha")
	require.NoError(t, err)
	assert.Equal(t, "archive/2026/alpha", entry.Path)

	for _, p := range []string{"archive", "archive/2026"} {
		folder, err := repo.GetByPath(ctx, testScope, p)
		require.NoError(t, err, "ancestor %s should be materialized", p)
		assert.Equal(t, EntryTypeFolder, folder.Type)
	}

	moved, err := repo.GetByPath(ctx, testScope, "archive/2026/alpha/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "drive/E1/archive/2026/alpha/a.txt", moved.StorageKey)
}

func TestMoveFileToRoot(t *testing.T) {
	uc, _, _, _ := newTestUseCase()
	ctx := context.Background()

	uploadOne(t, uc, testScope, "inbox", "report.pdf", "pdf")

	entry, err := uc.MoveFile(ctx, testScope, "inbox/report.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", entry.Path)
	assert.Equal(t, "", entry.ParentPath)
}

func TestMoveFileConflict(t *testing.T) {
	uc, _, blobs, _ := newTestUseCase()
	ctx := context.Background()

	uploadOne(t, uc, testScope, "a", "f.txt", "one")
	uploadOne(t, uc, testScope, "b", "f.txt", "two")

	before := blobs.keyCount()
	// 目标是已存在的文件夹 b，嵌套后与 b/f.txt 冲突，物理层不得有任何变更
	_, err := uc.MoveFile(ctx, testScope, "a/f.txt", "b")
	assert.ErrorIs(t, err, ErrEntryExists)
	assert.Equal(t, before, blobs.keyCount())
}

func TestMoveFileRejectsFolder(t *testing.T) {
	uc, _, _, _ := newTestUseCase()
	ctx := context.Background()

	_, err := uc.CreateFolder(ctx, testScope, "", "docs")
	require.NoError(t, err)

	_, err = uc.MoveFile(ctx, testScope, "docs", "elsewhere")
	assert.ErrorIs(t, err, ErrNotAFile)
}

func TestMoveFolderIntoExistingFolder(t *testing.T) {
	// 规格场景：Marketing/Creatives 移到已存在的 Archive，
	// 结果路径为 Archive/Creatives
	uc, _, _, _ := newTestUseCase()
	ctx := context.Background()

	_, err := uc.CreateFolder(ctx, testScope, "Marketing", "Creatives")
	require.NoError(t, err)
	_, err = uc.CreateFolder(ctx, testScope, "", "Archive")
	require.NoError(t, err)

	listed, err := uc.List(ctx, testScope, "Marketing", SortOptions{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Creatives", listed[0].Name)
	assert.Equal(t, "Marketing", listed[0].ParentPath)

	moved, err := uc.MoveFolder(ctx, testScope, "Marketing/Creatives", "Archive")
	require.NoError(t, err)
	assert.Equal(t, "Archive/Creatives", moved.Path)

	inArchive, err := uc.List(ctx, testScope, "Archive", SortOptions{})
	require.NoError(t, err)
	require.Len(t, inArchive, 1)
	assert.Equal(t, "Creatives", inArchive[0].Name)

	inMarketing, err := uc.List(ctx, testScope, "Marketing", SortOptions{})
	require.NoError(t, err)
	assert.Empty(t, inMarketing)
}

func TestMoveFolderCascadeCompleteness(t *testing.T) {
	uc, repo, _, _ := newTestUseCase()
	ctx := context.Background()

	uploadOne(t, uc, testScope, "A/B", "1.txt", "1")
	uploadOne(t, uc, testScope, "A/B/deep", "2.txt", "2")

	subtree, err := repo.ListSubtree(ctx, testScope, "A/B")
	require.NoError(t, err)
	movedCount := len(subtree)

	_, err = uc.MoveFolder(ctx, testScope, "A/B", "A/C")
	require.NoError(t, err)

	oldTree, err := repo.ListSubtree(ctx, testScope, "A/B")
	require.NoError(t, err)
	assert.Empty(t, oldTree, "no entries may remain under the old prefix")

	newTree, err := repo.ListSubtree(ctx, testScope, "A/C")
	require.NoError(t, err)
	assert.Len(t, newTree, movedCount, "every entry must arrive under the new prefix")

	for _, e := range newTree {
		assert.NotContains(t, e.StorageKey, "/A/B", "storage keys must be recomputed")
	}
}

func TestMoveFolderIntoOwnSubtreeRejected(t *testing.T) {
	uc, _, _, _ := newTestUseCase()
	ctx := context.Background()

	_, err := uc.CreateFolder(ctx, testScope, "a", "b")
	require.NoError(t, err)

	_, err = uc.MoveFolder(ctx, testScope, "a", "a/b")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestMoveEmptyFolderCreatesMarkerAtDestination(t *testing.T) {
	uc, _, blobs, _ := newTestUseCase()
	ctx := context.Background()

	_, err := uc.CreateFolder(ctx, testScope, "", "empty")
	require.NoError(t, err)
	// 手动移走占位对象，模拟物理空文件夹
	require.NoError(t, blobs.Remove(ctx, "drive/E1/empty/"))

	_, err = uc.MoveFolder(ctx, testScope, "empty", "renamed")
	require.NoError(t, err)
	assert.True(t, blobs.has("drive/E1/renamed/"))
}

func TestDeleteFile(t *testing.T) {
	uc, repo, blobs, _ := newTestUseCase()
	ctx := context.Background()

	uploadOne(t, uc, testScope, "docs", "f.txt", "data")

	require.NoError(t, uc.Delete(ctx, testScope, "docs/f.txt", EntryTypeFile))

	assert.False(t, blobs.has("drive/E1/docs/f.txt"))
	_, err := repo.GetByPath(ctx, testScope, "docs/f.txt")
	assert.ErrorIs(t, err, ErrEntryNotFound)

	// 上级文件夹不受影响
	_, err = repo.GetByPath(ctx, testScope, "docs")
	assert.NoError(t, err)
}

func TestDeleteFolderCascade(t *testing.T) {
	uc, repo, blobs, _ := newTestUseCase()
	ctx := context.Background()

	uploadOne(t, uc, testScope, "F/sub", "1.txt", "1")
	uploadOne(t, uc, testScope, "F", "2.txt", "2")

	require.NoError(t, uc.Delete(ctx, testScope, "F", EntryTypeFolder))

	remaining, err := repo.ListSubtree(ctx, testScope, "F")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	keys, err := blobs.ListKeys(ctx, "drive/E1/F/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestDeleteKindMismatch(t *testing.T) {
	uc, _, _, _ := newTestUseCase()
	ctx := context.Background()

	_, err := uc.CreateFolder(ctx, testScope, "", "docs")
	require.NoError(t, err)
	uploadOne(t, uc, testScope, "", "f.txt", "x")

	assert.ErrorIs(t, uc.Delete(ctx, testScope, "docs", EntryTypeFile), ErrNotAFile)
	assert.ErrorIs(t, uc.Delete(ctx, testScope, "f.txt", EntryTypeFolder), ErrNotAFolder)
}

func TestDeleteMissingEntry(t *testing.T) {
	uc, _, _, _ := newTestUseCase()

	err := uc.Delete(context.Background(), testScope, "nope", EntryTypeFile)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestListSorting(t *testing.T) {
	uc, _, _, _ := newTestUseCase()
	ctx := context.Background()

	uploadOne(t, uc, testScope, "d", "bbb.txt", "12345")
	uploadOne(t, uc, testScope, "d", "aaa.txt", "1")

	byName, err := uc.List(ctx, testScope, "d", SortOptions{By: "name"})
	require.NoError(t, err)
	require.Len(t, byName, 2)
	assert.Equal(t, "aaa.txt", byName[0].Name)

	bySizeDesc, err := uc.List(ctx, testScope, "d", SortOptions{By: "size", Desc: true})
	require.NoError(t, err)
	assert.Equal(t, "bbb.txt", bySizeDesc[0].Name)

	_, err = uc.List(ctx, testScope, "d", SortOptions{By: "path; DROP TABLE"})
	assert.ErrorIs(t, err, ErrInvalidSortField)
}

func TestTree(t *testing.T) {
	uc, _, _, _ := newTestUseCase()
	ctx := context.Background()

	uploadOne(t, uc, testScope, "docs/sub", "deep.txt", "x")
	uploadOne(t, uc, testScope, "", "top.txt", "y")
	_, err := uc.CreateFolder(ctx, testScope, "", "empty")
	require.NoError(t, err)

	root, err := uc.Tree(ctx, testScope)
	require.NoError(t, err)
	require.Nil(t, root.Entry)

	// 顶层：docs 和 empty 两个文件夹，top.txt 一个文件
	require.Len(t, root.Children, 2)
	require.Len(t, root.Files, 1)
	assert.Equal(t, "top.txt", root.Files[0].Name)

	var docs *TreeNode
	for _, c := range root.Children {
		if c.Entry.Name == "docs" {
			docs = c
		}
	}
	require.NotNil(t, docs)
	require.Len(t, docs.Children, 1)
	assert.Equal(t, "sub", docs.Children[0].Entry.Name)
	require.Len(t, docs.Children[0].Files, 1)
	assert.Equal(t, "deep.txt", docs.Children[0].Files[0].Name)
}

func TestTenantIsolation(t *testing.T) {
	uc, _, _, _ := newTestUseCase()
	ctx := context.Background()

	e1 := Scope{Root: "drive", Tenant: "E1"}
	e2 := Scope{Root: "drive", Tenant: "E2"}

	uploadOne(t, uc, e1, "shared", "secret.txt", "e1 data")
	uploadOne(t, uc, e2, "shared", "other.txt", "e2 data")

	listed, err := uc.List(ctx, e2, "shared", SortOptions{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "other.txt", listed[0].Name)

	// E2 操作不了 E1 的条目
	_, err = uc.Rename(ctx, e2, "shared/secret.txt", "stolen.txt")
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.ErrorIs(t, uc.Delete(ctx, e2, "shared/secret.txt", EntryTypeFile), ErrEntryNotFound)

	// E1 的数据原样还在
	_, err = uc.PresignedURL(ctx, e1, "shared/secret.txt", time.Minute)
	assert.NoError(t, err)
}

func TestCreateFolderRejectsOverlongKey(t *testing.T) {
	uc, repo, blobs, _ := newTestUseCase()

	// 路径本身在列宽内，但算上 root 和租户前缀后的物理键超限
	name := strings.Repeat("a", maxObjectKeyLen)
	_, err := uc.CreateFolder(context.Background(), testScope, "", name)
	assert.ErrorIs(t, err, ErrPathTooLong)
	assert.Equal(t, 0, repo.count())
	assert.Equal(t, 0, blobs.keyCount())
}

func TestMoveFolderRejectsOverlongDescendantKey(t *testing.T) {
	uc, repo, _, _ := newTestUseCase()
	ctx := context.Background()

	// 文件夹自身的新键没超限，深层后代的键会超
	deep := strings.Repeat("d", 500)
	uploadOne(t, uc, testScope, "src/"+deep, "file.txt", "x")

	target := strings.Repeat("t", 600)
	_, err := uc.MoveFolder(ctx, testScope, "src", target)
	assert.ErrorIs(t, err, ErrPathTooLong)

	// 校验失败必须发生在任何物理搬迁之前
	_, err = repo.GetByPath(ctx, testScope, "src/"+deep+"/file.txt")
	assert.NoError(t, err)
}

func TestPresignedURL(t *testing.T) {
	uc, _, _, urls := newTestUseCase()
	ctx := context.Background()

	uploadOne(t, uc, testScope, "docs", "f.txt", "data")
	_, err := uc.CreateFolder(ctx, testScope, "", "folder")
	require.NoError(t, err)

	signed, err := uc.PresignedURL(ctx, testScope, "docs/f.txt", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, signed, "drive/E1/docs/f.txt")

	// 第二次命中缓存，返回同一地址
	again, err := uc.PresignedURL(ctx, testScope, "docs/f.txt", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, signed, again)
	assert.NotEmpty(t, urls.items)

	_, err = uc.PresignedURL(ctx, testScope, "folder", time.Minute)
	assert.ErrorIs(t, err, ErrNotAFile)

	_, err = uc.PresignedURL(ctx, testScope, "missing.txt", time.Minute)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestDownload(t *testing.T) {
	uc, _, _, _ := newTestUseCase()
	ctx := context.Background()

	uploadOne(t, uc, testScope, "docs", "f.txt", "payload")

	reader, entry, err := uc.Download(ctx, testScope, "docs/f.txt")
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "f.txt", entry.Name)
	assert.Equal(t, int64(len("payload")), entry.Size)
}
