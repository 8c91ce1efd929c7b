package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var (
	ErrPoolClosed = errors.New("worker pool is closed")
)

// Config Worker Pool 配置
type Config struct {
	// Workers worker 数量
	Workers int `mapstructure:"workers"`
	// QueueSize 队列缓冲区大小，0 表示不排队（提交阻塞直到有空闲 worker）
	QueueSize int `mapstructure:"queuesize"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Workers:   8,
		QueueSize: 0,
	}
}

// Statistics 统计信息
type Statistics struct {
	Submitted int64
	Completed int64
	Failed    int64
	Running   int64
}

// Pool 基于 ants 的固定容量任务池
type Pool struct {
	pool   *ants.Pool
	logger *zap.Logger
	closed atomic.Bool

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// New 创建任务池
func New(cfg *Config, logger *zap.Logger) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}

	opts := []ants.Option{
		ants.WithNonblocking(false),
	}
	if cfg.QueueSize > 0 {
		opts = append(opts, ants.WithMaxBlockingTasks(cfg.QueueSize))
	}

	antsPool, err := ants.NewPool(cfg.Workers, opts...)
	if err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("worker pool created", zap.Int("workers", cfg.Workers))
	}

	return &Pool{
		pool:   antsPool,
		logger: logger,
	}, nil
}

// Submit 提交任务
func (p *Pool) Submit(task func()) error {
	return p.submit(func() {
		if err := safeCall(func() error {
			task()
			return nil
		}); err != nil {
			p.failed.Add(1)
			if p.logger != nil {
				p.logger.Error("worker task panicked", zap.Error(err))
			}
			return
		}
		p.completed.Add(1)
	})
}

// submit 原始提交，只负责投递和提交计数，任务自身处理 panic 与成败计数
func (p *Pool) submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	p.submitted.Add(1)
	if err := p.pool.Submit(task); err != nil {
		p.submitted.Add(-1)
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}

	return nil
}

// safeCall 执行任务并把 panic 收敛为 error
func safeCall(task func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task()
}

// Map 并发执行 n 个任务并等待全部完成，按下标返回每个任务的错误。
// 任务内的 panic 被收敛为对应下标的 error，不会整批中止也不会被吞掉。
// 返回的 error 只代表提交失败或 context 取消；
// 任一任务提交失败时剩余任务不再提交，已提交的任务仍会执行完毕。
func (p *Pool) Map(ctx context.Context, n int, fn func(i int) error) ([]error, error) {
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}

		i := i
		wg.Add(1)
		if err := p.submit(func() {
			defer wg.Done()
			errs[i] = safeCall(func() error { return fn(i) })
			if errs[i] != nil {
				p.failed.Add(1)
				if p.logger != nil {
					p.logger.Error("mapped task failed", zap.Int("index", i), zap.Error(errs[i]))
				}
				return
			}
			p.completed.Add(1)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, err
		}
	}

	wg.Wait()
	return errs, nil
}

// Stats 返回统计信息快照
func (p *Pool) Stats() Statistics {
	return Statistics{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Running:   int64(p.pool.Running()),
	}
}

// Free 返回空闲 worker 数量
func (p *Pool) Free() int {
	return p.pool.Free()
}

// Release 关闭任务池，等待运行中的任务结束
func (p *Pool) Release() {
	if p.closed.CompareAndSwap(false, true) {
		p.pool.Release()
		if p.logger != nil {
			p.logger.Info("worker pool released")
		}
	}
}
