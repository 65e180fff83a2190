package anomaly

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/Oniqq60/task_tracker/internal/forecast"
	"github.com/Oniqq60/task_tracker/internal/task"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	// DefaultDeviationThreshold - во сколько раз фактическое время должно превысить прогноз
	DefaultDeviationThreshold = 2.0
	// TaskTextSnapshotLimit - длина снимка текста задачи в аномалии (в символах)
	TaskTextSnapshotLimit = 100
)

type Forecaster interface {
	ForecastTime(ctx context.Context, taskID int64) (forecast.Forecast, error)
	ActiveTime(ctx context.Context, taskID int64) (float64, error)
}

type TaskReader interface {
	GetTask(ctx context.Context, id int64) (task.Task, error)
}

// Engine сравнивает фактическое время задачи с прогнозом и ведёт записи аномалий.
// Сбои сервиса прогнозов не считаются ошибкой: результат просто nil.
type Engine interface {
	CheckTaskAnomaly(ctx context.Context, taskID int64) (*Anomaly, error)
	CheckCompletedTask(ctx context.Context, taskID int64) (*Anomaly, error)
}

type EngineOptions struct {
	Threshold     float64
	SnapshotLimit int
	Logger        *log.Logger
	Now           func() time.Time
}

type engine struct {
	forecaster Forecaster
	tasks      TaskReader
	repo       AnomalyRepository
	locker     Locker
	threshold  float64
	limit      int
	logger     *log.Logger
	now        func() time.Time
}

func NewEngine(forecaster Forecaster, tasks TaskReader, repo AnomalyRepository, locker Locker, opts EngineOptions) Engine {
	e := &engine{
		forecaster: forecaster,
		tasks:      tasks,
		repo:       repo,
		locker:     locker,
		threshold:  opts.Threshold,
		limit:      opts.SnapshotLimit,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if e.threshold <= 0 {
		e.threshold = DefaultDeviationThreshold
	}
	if e.limit <= 0 {
		e.limit = TaskTextSnapshotLimit
	}
	if e.logger == nil {
		e.logger = log.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.locker == nil {
		e.locker = NewLocalLocker()
	}
	return e
}

func (e *engine) CheckTaskAnomaly(ctx context.Context, taskID int64) (*Anomaly, error) {
	estimated, active, ok := e.measure(ctx, taskID)
	if !ok {
		return nil, nil
	}

	deviation := active / estimated
	if deviation <= e.threshold {
		if err := e.autoResolve(ctx, taskID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	t, err := e.tasks.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load task %d: %w", taskID, err)
	}

	a := &Anomaly{
		TaskID:         t.ID,
		Username:       t.Username,
		TaskText:       snapshotText(t.Text, e.limit),
		ActiveHours:    round2(active),
		EstimatedHours: round2(estimated),
		Deviation:      round2(deviation),
		DetectedAt:     e.now(),
	}

	// Ошибка сохранения не отменяет результат проверки
	if err := e.persist(ctx, a); err != nil {
		e.logger.Printf("failed to save anomaly task=%d: %v", taskID, err)
	}

	return a, nil
}

func (e *engine) CheckCompletedTask(ctx context.Context, taskID int64) (*Anomaly, error) {
	t, err := e.tasks.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load task %d: %w", taskID, err)
	}

	// задачу могли успеть вернуть в работу
	if !t.IsCompleted {
		return nil, nil
	}

	if err := e.autoResolve(ctx, taskID); err != nil {
		return nil, err
	}

	return e.CheckTaskAnomaly(ctx, taskID)
}

// measure параллельно запрашивает прогноз и фактическое время
func (e *engine) measure(ctx context.Context, taskID int64) (estimated, active float64, ok bool) {
	var f forecast.Forecast

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		f, err = e.forecaster.ForecastTime(gctx, taskID)
		return err
	})
	g.Go(func() error {
		var err error
		active, err = e.forecaster.ActiveTime(gctx, taskID)
		return err
	})

	if err := g.Wait(); err != nil {
		e.logger.Printf("forecast unavailable task=%d: %v", taskID, err)
		return 0, 0, false
	}

	estimated = f.EstimatedHours
	if !usable(estimated) || estimated <= 0 || !usable(active) || active < 0 {
		e.logger.Printf("unusable forecast task=%d estimated=%v active=%v", taskID, estimated, active)
		return 0, 0, false
	}
	return estimated, active, true
}

func (e *engine) autoResolve(ctx context.Context, taskID int64) error {
	n, err := e.repo.ResolveByTask(ctx, taskID, e.now())
	if err != nil {
		return fmt.Errorf("auto-resolve anomaly task=%d: %w", taskID, err)
	}
	if n > 0 {
		e.logger.Printf("anomaly auto-resolved task=%d", taskID)
	}
	return nil
}

func (e *engine) persist(ctx context.Context, a *Anomaly) error {
	unlock, err := e.locker.Lock(ctx, taskLockKey(a.TaskID))
	if err != nil {
		return err
	}
	defer unlock()

	return e.repo.Upsert(ctx, a)
}

func snapshotText(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
