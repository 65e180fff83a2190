package anomaly

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Oniqq60/task_tracker/internal/task"
)

type fakeEngine struct {
	mu        sync.Mutex
	calls     []int64
	CheckFunc func(ctx context.Context, taskID int64) (*Anomaly, error)
}

func (f *fakeEngine) CheckTaskAnomaly(ctx context.Context, taskID int64) (*Anomaly, error) {
	f.mu.Lock()
	f.calls = append(f.calls, taskID)
	f.mu.Unlock()
	return f.CheckFunc(ctx, taskID)
}

func (f *fakeEngine) CheckCompletedTask(ctx context.Context, taskID int64) (*Anomaly, error) {
	return nil, nil
}

type fakeLister struct {
	ids []int64
	err error
}

func (f *fakeLister) IncompleteTaskIDs(context.Context) ([]int64, error) {
	return f.ids, f.err
}

func newTestService(repo AnomalyRepository, lister IncompleteTaskLister, engine Engine) AnomalyService {
	return NewService(repo, lister, engine, ServiceOptions{CheckDelay: time.Millisecond, Logger: quietLogger()})
}

func TestServiceRequiresAdmin(t *testing.T) {
	svc := newTestService(&memoryAnomalies{}, &fakeLister{}, &fakeEngine{})
	ctx := context.Background()

	if _, err := svc.ActiveAnomalies(ctx, false); !errors.Is(err, task.ErrForbidden) {
		t.Errorf("ActiveAnomalies err = %v", err)
	}
	if _, err := svc.CheckAllActiveTasks(ctx, false); !errors.Is(err, task.ErrForbidden) {
		t.Errorf("CheckAllActiveTasks err = %v", err)
	}
	if err := svc.ResolveAnomaly(ctx, 1, false); !errors.Is(err, task.ErrForbidden) {
		t.Errorf("ResolveAnomaly err = %v", err)
	}
	if _, err := svc.CompleteTaskFromAnomaly(ctx, 1, false); !errors.Is(err, task.ErrForbidden) {
		t.Errorf("CompleteTaskFromAnomaly err = %v", err)
	}
}

func TestCheckAllActiveTasksSequential(t *testing.T) {
	var running, overlap int32
	var mu sync.Mutex
	engine := &fakeEngine{CheckFunc: func(_ context.Context, id int64) (*Anomaly, error) {
		mu.Lock()
		running++
		if running > 1 {
			overlap++
		}
		mu.Unlock()
		defer func() {
			mu.Lock()
			running--
			mu.Unlock()
		}()

		switch id {
		case 2:
			return &Anomaly{TaskID: 2, Deviation: 3}, nil
		case 3:
			return nil, errBoom
		case 4:
			return &Anomaly{TaskID: 4, Deviation: 2.5}, nil
		}
		return nil, nil
	}}

	svc := newTestService(&memoryAnomalies{}, &fakeLister{ids: []int64{1, 2, 3, 4}}, engine)
	found, err := svc.CheckAllActiveTasks(context.Background(), true)
	if err != nil {
		t.Fatalf("CheckAllActiveTasks: %v", err)
	}
	if len(found) != 2 || found[0].TaskID != 2 || found[1].TaskID != 4 {
		t.Fatalf("found = %+v", found)
	}
	if len(engine.calls) != 4 {
		t.Fatalf("calls = %v, want every task checked", engine.calls)
	}
	if overlap != 0 {
		t.Fatal("checks must not overlap")
	}
}

func TestCheckAllActiveTasksEmptyAndErrors(t *testing.T) {
	svc := newTestService(&memoryAnomalies{}, &fakeLister{}, &fakeEngine{})
	found, err := svc.CheckAllActiveTasks(context.Background(), true)
	if err != nil || found == nil || len(found) != 0 {
		t.Fatalf("want empty non-nil slice, got %v, %v", found, err)
	}

	svc = newTestService(&memoryAnomalies{}, &fakeLister{err: errBoom}, &fakeEngine{})
	if _, err := svc.CheckAllActiveTasks(context.Background(), true); !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want errBoom", err)
	}
}

func TestCheckAllActiveTasksCancelled(t *testing.T) {
	engine := &fakeEngine{CheckFunc: func(context.Context, int64) (*Anomaly, error) { return nil, nil }}
	svc := NewService(&memoryAnomalies{}, &fakeLister{ids: []int64{1, 2, 3}}, engine,
		ServiceOptions{CheckDelay: time.Hour, Logger: quietLogger()})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := svc.CheckAllActiveTasks(ctx, true); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if len(engine.calls) != 1 {
		t.Fatalf("calls = %v, want only the first task", engine.calls)
	}
}

func TestResolveAnomaly(t *testing.T) {
	repo := &memoryAnomalies{}
	_ = repo.Upsert(context.Background(), &Anomaly{TaskID: 1, Deviation: 3})
	svc := newTestService(repo, &fakeLister{}, &fakeEngine{})

	if err := svc.ResolveAnomaly(context.Background(), 1, true); err != nil {
		t.Fatalf("ResolveAnomaly: %v", err)
	}
	if len(repo.unresolved(1)) != 0 {
		t.Fatal("anomaly must be resolved")
	}
	// повторное снятие - не ошибка
	if err := svc.ResolveAnomaly(context.Background(), 1, true); err != nil {
		t.Fatalf("second ResolveAnomaly: %v", err)
	}
	if err := svc.ResolveAnomaly(context.Background(), 77, true); !errors.Is(err, ErrAnomalyNotFound) {
		t.Fatalf("err = %v, want ErrAnomalyNotFound", err)
	}
}

func TestCompleteTaskFromAnomaly(t *testing.T) {
	gdb := openTestDB(t)
	repo := NewRepository(gdb)
	tasks := task.NewRepository(gdb)
	ctx := context.Background()

	first := createTask(t, gdb, "first")
	second := createTask(t, gdb, "second")
	a := &Anomaly{TaskID: first.ID, Username: "alice", TaskText: "first", ActiveHours: 9, EstimatedHours: 3, Deviation: 3, DetectedAt: time.Now()}
	b := &Anomaly{TaskID: second.ID, Username: "alice", TaskText: "second", ActiveHours: 9, EstimatedHours: 3, Deviation: 3, DetectedAt: time.Now()}
	for _, row := range []*Anomaly{a, b} {
		if err := repo.Upsert(ctx, row); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	svc := newTestService(repo, tasks, &fakeEngine{})

	remaining, err := svc.CompleteTaskFromAnomaly(ctx, a.ID, true)
	if err != nil {
		t.Fatalf("CompleteTaskFromAnomaly: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != b.ID {
		t.Fatalf("remaining = %+v", remaining)
	}

	got, _ := tasks.GetTask(ctx, first.ID)
	if !got.IsCompleted {
		t.Fatal("task must be completed")
	}
}

func TestCompleteTaskFromMissingAnomaly(t *testing.T) {
	gdb := openTestDB(t)
	tasks := task.NewRepository(gdb)
	ctx := context.Background()
	tk := createTask(t, gdb, "untouched")

	svc := newTestService(NewRepository(gdb), tasks, &fakeEngine{})
	if _, err := svc.CompleteTaskFromAnomaly(ctx, 999, true); !errors.Is(err, ErrAnomalyNotFound) {
		t.Fatalf("err = %v, want ErrAnomalyNotFound", err)
	}

	got, _ := tasks.GetTask(ctx, tk.ID)
	if got.IsCompleted {
		t.Fatal("no task may be mutated")
	}
}
