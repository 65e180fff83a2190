package completion

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Oniqq60/task_tracker/internal/anomaly"
)

var (
	ErrQueueFull   = errors.New("completion queue is full")
	ErrQueueClosed = errors.New("completion queue is closed")
)

const (
	DefaultQueueSize    = 64
	DefaultWorkers      = 2
	DefaultCheckTimeout = 30 * time.Second
)

// Checker - проверка завершённой задачи на аномалию
type Checker interface {
	CheckCompletedTask(ctx context.Context, taskID int64) (*anomaly.Anomaly, error)
}

// WorkerPool выполняет проверки завершённых задач в фоне.
// Submit никогда не блокирует вызывающего
type WorkerPool struct {
	checker Checker
	jobs    chan int64
	workers int
	timeout time.Duration
	logger  *log.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewWorkerPool(checker Checker, size, workers int, timeout time.Duration, logger *log.Logger) *WorkerPool {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &WorkerPool{
		checker: checker,
		jobs:    make(chan int64, size),
		workers: workers,
		timeout: timeout,
		logger:  logger,
	}
}

// Start запускает воркеры. Проверки используют ctx как родительский контекст
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for id := range p.jobs {
				p.run(ctx, id)
			}
		}()
	}
	p.logger.Printf("completion workers started: %d", p.workers)
}

func (p *WorkerPool) Submit(_ context.Context, taskID int64) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrQueueClosed
	}

	select {
	case p.jobs <- taskID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close перестаёт принимать задачи, дожидается обработки очереди
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *WorkerPool) run(parent context.Context, taskID int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), p.timeout)
	defer cancel()

	a, err := p.checker.CheckCompletedTask(ctx, taskID)
	if err != nil {
		p.logger.Printf("completion check failed task=%d: %v", taskID, err)
		return
	}
	if a != nil {
		p.logger.Printf("anomaly detected on completion task=%d deviation=%.2f", taskID, a.Deviation)
	}
}
