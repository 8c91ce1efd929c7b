package biz

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/logger"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/pathutil"
)

// fakeEntryRepo 内存版条目仓储，语义与数据库实现一致：
// (root, tenant, path) 唯一，子树按前缀匹配
type fakeEntryRepo struct {
	mu      sync.Mutex
	entries map[string]*Entry
	getN    int // GetByPath 调用计数
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{entries: make(map[string]*Entry)}
}

func entryKey(root, tenant, path string) string {
	return root + "\x00" + tenant + "\x00" + path
}

func (r *fakeEntryRepo) Create(_ context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := entryKey(entry.Root, entry.Tenant, entry.Path)
	if _, ok := r.entries[k]; ok {
		return ErrEntryExists
	}
	clone := *entry
	r.entries[k] = &clone
	return nil
}

func (r *fakeEntryRepo) Upsert(_ context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *entry
	r.entries[entryKey(entry.Root, entry.Tenant, entry.Path)] = &clone
	return nil
}

func (r *fakeEntryRepo) GetByPath(_ context.Context, scope Scope, path string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.getN++
	if e, ok := r.entries[entryKey(scope.Root, scope.Tenant, path)]; ok {
		clone := *e
		return &clone, nil
	}
	return nil, ErrEntryNotFound
}

func (r *fakeEntryRepo) ListByParent(_ context.Context, scope Scope, parentPath string, opts SortOptions) ([]*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Entry
	for _, e := range r.entries {
		if e.Root == scope.Root && e.Tenant == scope.Tenant && e.ParentPath == parentPath {
			clone := *e
			out = append(out, &clone)
		}
	}

	field := opts.By
	if field == "" {
		field = "name"
	}
	sort.Slice(out, func(i, j int) bool {
		var less bool
		switch field {
		case "size":
			less = out[i].Size < out[j].Size
		case "type":
			less = out[i].Type < out[j].Type
		case "created_at":
			less = out[i].CreatedAt.Before(out[j].CreatedAt)
		case "updated_at":
			less = out[i].UpdatedAt.Before(out[j].UpdatedAt)
		default:
			less = out[i].Name < out[j].Name
		}
		if opts.Desc {
			return !less
		}
		return less
	})
	return out, nil
}

func (r *fakeEntryRepo) ListAll(_ context.Context, scope Scope) ([]*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Entry
	for _, e := range r.entries {
		if e.Root == scope.Root && e.Tenant == scope.Tenant {
			clone := *e
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (r *fakeEntryRepo) ListSubtree(_ context.Context, scope Scope, prefix string) ([]*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Entry
	for _, e := range r.entries {
		if e.Root == scope.Root && e.Tenant == scope.Tenant && pathutil.HasPrefix(e.Path, prefix) {
			clone := *e
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (r *fakeEntryRepo) UpdatePaths(_ context.Context, scope Scope, updates []PathUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID := make(map[string]*Entry)
	for _, e := range r.entries {
		if e.Root == scope.Root && e.Tenant == scope.Tenant {
			byID[e.ID] = e
		}
	}

	for _, u := range updates {
		e, ok := byID[u.ID]
		if !ok {
			return ErrEntryNotFound
		}
		if other, exists := r.entries[entryKey(scope.Root, scope.Tenant, u.Path)]; exists && other.ID != u.ID {
			return ErrEntryExists
		}

		delete(r.entries, entryKey(scope.Root, scope.Tenant, e.Path))
		e.Path = u.Path
		e.ParentPath = u.ParentPath
		e.Name = u.Name
		e.StorageKey = u.StorageKey
		e.UpdatedAt = time.Now().UTC()
		r.entries[entryKey(scope.Root, scope.Tenant, e.Path)] = e
	}
	return nil
}

func (r *fakeEntryRepo) Delete(_ context.Context, scope Scope, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := entryKey(scope.Root, scope.Tenant, path)
	if _, ok := r.entries[k]; !ok {
		return ErrEntryNotFound
	}
	delete(r.entries, k)
	return nil
}

func (r *fakeEntryRepo) DeleteSubtree(_ context.Context, scope Scope, prefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for k, e := range r.entries {
		if e.Root == scope.Root && e.Tenant == scope.Tenant && pathutil.HasPrefix(e.Path, prefix) {
			delete(r.entries, k)
			deleted++
		}
	}
	if deleted == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *fakeEntryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// fakeBlobStore 内存版对象存储，failKeys 里的键写入时报错，
// panicKeys 里的键写入时 panic
type fakeBlobStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failKeys  map[string]bool
	panicKeys map[string]bool
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{
		objects:   make(map[string][]byte),
		failKeys:  make(map[string]bool),
		panicKeys: make(map[string]bool),
	}
}

func (s *fakeBlobStore) Put(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.panicKeys[key] {
		panic(fmt.Sprintf("injected panic for %s", key))
	}
	if s.failKeys[key] {
		return fmt.Errorf("injected write failure for %s", key)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *fakeBlobStore) PutMarker(ctx context.Context, key string) error {
	return s.Put(ctx, key, strings.NewReader(""), 0, "")
}

func (s *fakeBlobStore) Get(_ context.Context, key string) (io.ReadCloser, BlobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, BlobInfo{}, fmt.Errorf("object not found: %s", key)
	}
	return io.NopCloser(strings.NewReader(string(data))), BlobInfo{Key: key, Size: int64(len(data))}, nil
}

func (s *fakeBlobStore) Copy(_ context.Context, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[srcKey]
	if !ok {
		return fmt.Errorf("object not found: %s", srcKey)
	}
	s.objects[dstKey] = append([]byte(nil), data...)
	return nil
}

func (s *fakeBlobStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeBlobStore) RemoveAll(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.objects, k)
	}
	return nil
}

func (s *fakeBlobStore) ListKeys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *fakeBlobStore) PresignedGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("object not found: %s", key)
	}
	return fmt.Sprintf("https://blobs.local/%s?expires=%d", key, int64(expiry.Seconds())), nil
}

func (s *fakeBlobStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *fakeBlobStore) keyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// fakeURLCache 内存版预签名 URL 缓存
type fakeURLCache struct {
	mu    sync.Mutex
	items map[string]string
}

func newFakeURLCache() *fakeURLCache {
	return &fakeURLCache{items: make(map[string]string)}
}

func (c *fakeURLCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[key], nil
}

func (c *fakeURLCache) Set(_ context.Context, key, url string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = url
	return nil
}

// syncPool 顺序执行的任务池，测试里结果可重现。
// 与真实任务池一样把任务内的 panic 收敛为该下标的 error
type syncPool struct{}

func (syncPool) Map(ctx context.Context, n int, fn func(i int) error) ([]error, error) {
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("task panicked: %v", r)
				}
			}()
			errs[i] = fn(i)
		}()
	}
	return errs, nil
}

// newTestUseCase 组装一套全 fake 依赖的用例
func newTestUseCase() (*DriveUseCase, *fakeEntryRepo, *fakeBlobStore, *fakeURLCache) {
	repo := newFakeEntryRepo()
	blobs := newFakeBlobStore()
	urls := newFakeURLCache()

	log, _ := logger.New(nil)
	chain := NewChainEnsurer(repo, blobs, true, log)
	uc := NewDriveUseCase(repo, blobs, chain, syncPool{}, urls, Config{
		FolderMarkers: true,
		MaxBatchFiles: 16,
		PresignExpiry: 15 * time.Minute,
		URLCacheTTL:   10 * time.Minute,
	}, log)

	return uc, repo, blobs, urls
}
