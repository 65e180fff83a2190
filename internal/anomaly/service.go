package anomaly

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Oniqq60/task_tracker/internal/task"
	"gorm.io/gorm"
)

var ErrAnomalyNotFound = errors.New("anomaly not found")

// DefaultCheckDelay - пауза между проверками, чтобы не перегружать сервис прогнозов
const DefaultCheckDelay = 100 * time.Millisecond

type IncompleteTaskLister interface {
	IncompleteTaskIDs(ctx context.Context) ([]int64, error)
}

// AnomalyService - административные операции над аномалиями
type AnomalyService interface {
	ActiveAnomalies(ctx context.Context, callerIsAdmin bool) ([]Anomaly, error)
	CheckAllActiveTasks(ctx context.Context, callerIsAdmin bool) ([]Anomaly, error)
	ResolveAnomaly(ctx context.Context, id int64, callerIsAdmin bool) error
	CompleteTaskFromAnomaly(ctx context.Context, id int64, callerIsAdmin bool) ([]Anomaly, error)
}

type ServiceOptions struct {
	CheckDelay time.Duration
	Logger     *log.Logger
	Now        func() time.Time
}

type anomalyService struct {
	repo   AnomalyRepository
	tasks  IncompleteTaskLister
	engine Engine
	delay  time.Duration
	logger *log.Logger
	now    func() time.Time
}

func NewService(repo AnomalyRepository, tasks IncompleteTaskLister, engine Engine, opts ServiceOptions) AnomalyService {
	s := &anomalyService{
		repo:   repo,
		tasks:  tasks,
		engine: engine,
		delay:  opts.CheckDelay,
		logger: opts.Logger,
		now:    opts.Now,
	}
	if s.delay <= 0 {
		s.delay = DefaultCheckDelay
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *anomalyService) ActiveAnomalies(ctx context.Context, callerIsAdmin bool) ([]Anomaly, error) {
	if !callerIsAdmin {
		return nil, task.ErrForbidden
	}
	anomalies, err := s.repo.ActiveAnomalies(ctx)
	if err != nil {
		return nil, err
	}
	if anomalies == nil {
		anomalies = []Anomaly{}
	}
	return anomalies, nil
}

// CheckAllActiveTasks проверяет незавершённые задачи строго по очереди
func (s *anomalyService) CheckAllActiveTasks(ctx context.Context, callerIsAdmin bool) ([]Anomaly, error) {
	if !callerIsAdmin {
		return nil, task.ErrForbidden
	}

	ids, err := s.tasks.IncompleteTaskIDs(ctx)
	if err != nil {
		return nil, err
	}

	found := make([]Anomaly, 0)
	for i, id := range ids {
		if i > 0 {
			select {
			case <-ctx.Done():
				return found, ctx.Err()
			case <-time.After(s.delay):
			}
		}

		a, err := s.engine.CheckTaskAnomaly(ctx, id)
		if err != nil {
			s.logger.Printf("anomaly check failed task=%d: %v", id, err)
			continue
		}
		if a != nil {
			found = append(found, *a)
		}
	}

	s.logger.Printf("checked %d tasks, anomalies found: %d", len(ids), len(found))
	return found, nil
}

func (s *anomalyService) ResolveAnomaly(ctx context.Context, id int64, callerIsAdmin bool) error {
	if !callerIsAdmin {
		return task.ErrForbidden
	}
	n, err := s.repo.Resolve(ctx, id, s.now())
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAnomalyNotFound
	}
	return nil
}

func (s *anomalyService) CompleteTaskFromAnomaly(ctx context.Context, id int64, callerIsAdmin bool) ([]Anomaly, error) {
	if !callerIsAdmin {
		return nil, task.ErrForbidden
	}

	if err := s.repo.CompleteTask(ctx, id, s.now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnomalyNotFound
		}
		return nil, err
	}
	s.logger.Printf("task completed from anomaly=%d", id)

	return s.ActiveAnomalies(ctx, true)
}
