package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"recipe-lens/internal/core/recipe"
	"recipe-lens/internal/pkg/common"

	"go.uber.org/zap"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue manager is closed")
)

// Task 一次分類工作
type Task func(ctx context.Context) ([]recipe.Prediction, error)

// Request 隊列請求
type Request struct {
	Context context.Context
	Task    Task
	Result  chan Result
}

// Result 處理結果
type Result struct {
	Predictions []recipe.Prediction
	Error       error
}

// Status 隊列狀態
type Status struct {
	QueueLength    int   `json:"queue_length"`
	ProcessedCount int64 `json:"processed_count"`
	FailedCount    int64 `json:"failed_count"`
	MaxQueueSize   int   `json:"max_queue_size"`
	Workers        int   `json:"workers"`
}

// Manager 限制同時進行的分類器呼叫數量
type Manager struct {
	workers int
	maxSize int
	queue   chan *Request

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	processed int64
	failed    int64
}

// NewManager 創建隊列管理器並啟動 workers
func NewManager(workers, maxSize int) *Manager {
	if workers <= 0 {
		workers = 1
	}
	if maxSize <= 0 {
		maxSize = 1
	}
	m := &Manager{
		workers: workers,
		maxSize: maxSize,
		queue:   make(chan *Request, maxSize),
	}

	m.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go m.worker(i)
	}

	common.LogInfo("分類隊列已啟動",
		zap.Int("workers", workers),
		zap.Int("max_queue_size", maxSize),
	)
	return m
}

// Submit 將工作加入隊列，隊列已滿時立即回傳 ErrQueueFull
func (m *Manager) Submit(ctx context.Context, task Task) (<-chan Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := &Request{
		Context: ctx,
		Task:    task,
		Result:  make(chan Result, 1),
	}

	select {
	case m.queue <- req:
		common.LogDebug("Request enqueued",
			zap.Int("queue_length", len(m.queue)),
			zap.Int("max_queue_size", m.maxSize),
		)
		return req.Result, nil
	default:
		return nil, ErrQueueFull
	}
}

// Do 提交工作並等待結果
func (m *Manager) Do(ctx context.Context, task Task) ([]recipe.Prediction, error) {
	ch, err := m.Submit(ctx, task)
	if err != nil {
		return nil, err
	}
	select {
	case res := <-ch:
		return res.Predictions, res.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) worker(id int) {
	defer m.wg.Done()
	for req := range m.queue {
		m.process(id, req)
	}
}

func (m *Manager) process(id int, req *Request) {
	// 等待期間請求已取消就不再呼叫分類器
	if err := req.Context.Err(); err != nil {
		req.Result <- Result{Error: err}
		atomic.AddInt64(&m.failed, 1)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			common.LogError("Classifier task panic recovered",
				zap.Int("worker", id),
				zap.Any("error", r),
			)
			atomic.AddInt64(&m.failed, 1)
			req.Result <- Result{Error: errors.New("classifier task panicked")}
		}
	}()

	preds, err := req.Task(req.Context)
	if err != nil {
		atomic.AddInt64(&m.failed, 1)
	} else {
		atomic.AddInt64(&m.processed, 1)
	}
	req.Result <- Result{Predictions: preds, Error: err}
}

// Status 獲取隊列狀態
func (m *Manager) Status() Status {
	return Status{
		QueueLength:    len(m.queue),
		ProcessedCount: atomic.LoadInt64(&m.processed),
		FailedCount:    atomic.LoadInt64(&m.failed),
		MaxQueueSize:   m.maxSize,
		Workers:        m.workers,
	}
}

// Close 停止接收新工作，處理完已排隊的工作後返回
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	m.wg.Wait()
}
