package task

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gorm.io/gorm"
)

// memoryRepository - TaskRepository в памяти для тестов сервиса
type memoryRepository struct {
	mu      sync.Mutex
	tasks   map[int64]Task
	nextID  int64
	updates int

	UpdateErr error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{tasks: make(map[int64]Task)}
}

func (r *memoryRepository) CreateTask(_ context.Context, t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t.ID = r.nextID
	r.tasks[t.ID] = *t
	return nil
}

func (r *memoryRepository) UpdateTask(_ context.Context, id int64, upd Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	r.updates++
	t := r.tasks[id]
	if upd.Text != nil {
		t.Text = *upd.Text
		t.IsEdited = true
	}
	if upd.IsCompleted != nil {
		t.IsCompleted = *upd.IsCompleted
	}
	r.tasks[id] = t
	return nil
}

func (r *memoryRepository) GetTask(_ context.Context, id int64) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, gorm.ErrRecordNotFound
	}
	return t, nil
}

func (r *memoryRepository) TaskList(_ context.Context, q ListQuery) ([]Task, int64, error) {
	return nil, int64(len(r.tasks)), nil
}

func (r *memoryRepository) IncompleteTaskIDs(context.Context) ([]int64, error) {
	return nil, nil
}

func (r *memoryRepository) Stats(context.Context) (Stats, error) {
	return Stats{}, nil
}

type recordingQueue struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (q *recordingQueue) Submit(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return q.err
}

func (q *recordingQueue) submitted() []int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]int64(nil), q.ids...)
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func seed(t *testing.T, svc TaskService) Task {
	t.Helper()
	created, err := svc.CreateTask(context.Background(), "alice", "alice@example.com", "write report")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return created
}

func TestCreateTaskValidation(t *testing.T) {
	svc := NewTaskService(newMemoryRepository(), nil, nil)

	tests := []struct {
		name     string
		username string
		email    string
		text     string
		want     error
	}{
		{"empty username", "  ", "a@b.co", "x", ErrUsernameRequired},
		{"bad email", "bob", "bob@", "x", ErrInvalidEmail},
		{"email without tld", "bob", "bob@host", "x", ErrInvalidEmail},
		{"empty text", "bob", "bob@host.io", " ", ErrTextRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTask(context.Background(), tt.username, tt.email, tt.text)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v must wrap ErrInvalidInput", err)
			}
		})
	}
}

func TestCreateTaskDefaults(t *testing.T) {
	svc := NewTaskService(newMemoryRepository(), nil, nil)
	created := seed(t, svc)
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if created.IsCompleted || created.IsEdited {
		t.Fatalf("new task flags must be false: %+v", created)
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("createdAt must be set")
	}
}

func TestUpdateTaskRequiresAdmin(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewTaskService(repo, nil, nil)
	created := seed(t, svc)

	_, err := svc.UpdateTask(context.Background(), created.ID, Update{IsCompleted: boolPtr(true)}, false)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if repo.updates != 0 {
		t.Fatal("forbidden update must not write")
	}
}

func TestUpdateTaskNotFound(t *testing.T) {
	svc := NewTaskService(newMemoryRepository(), nil, nil)
	_, err := svc.UpdateTask(context.Background(), 42, Update{IsCompleted: boolPtr(true)}, true)
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestUpdateTaskNoChanges(t *testing.T) {
	svc := NewTaskService(newMemoryRepository(), nil, nil)
	created := seed(t, svc)

	tests := []struct {
		name string
		upd  Update
		want error
	}{
		{"empty update", Update{}, ErrNoChanges},
		{"same text", Update{Text: strPtr(created.Text)}, ErrNoChanges},
		{"same text padded", Update{Text: strPtr("  " + created.Text + "\n")}, ErrNoChanges},
		{"blank text", Update{Text: strPtr("   ")}, ErrTextRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateTask(context.Background(), created.ID, tt.upd, true)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUpdateTaskSameTextWithCompletion(t *testing.T) {
	svc := NewTaskService(newMemoryRepository(), nil, nil)
	created := seed(t, svc)

	updated, err := svc.UpdateTask(context.Background(), created.ID,
		Update{Text: strPtr(created.Text), IsCompleted: boolPtr(true)}, true)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if !updated.IsCompleted {
		t.Fatal("expected completed")
	}
	if updated.IsEdited {
		t.Fatal("unchanged text must not mark task edited")
	}
}

func TestIsEditedNeverReverts(t *testing.T) {
	svc := NewTaskService(newMemoryRepository(), nil, nil)
	created := seed(t, svc)
	ctx := context.Background()

	updated, err := svc.UpdateTask(ctx, created.ID, Update{Text: strPtr("rewritten")}, true)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if !updated.IsEdited {
		t.Fatal("text change must set isEdited")
	}

	for i := 0; i < 4; i++ {
		updated, err = svc.UpdateTask(ctx, created.ID, Update{IsCompleted: boolPtr(i%2 == 0)}, true)
		if err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		if !updated.IsEdited {
			t.Fatalf("isEdited reverted after toggle %d", i)
		}
	}
}

func TestCompletionTriggersCheckOnce(t *testing.T) {
	queue := &recordingQueue{}
	svc := NewTaskService(newMemoryRepository(), queue, nil)
	created := seed(t, svc)
	ctx := context.Background()

	if _, err := svc.UpdateTask(ctx, created.ID, Update{IsCompleted: boolPtr(true)}, true); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := queue.submitted(); len(got) != 1 || got[0] != created.ID {
		t.Fatalf("submitted = %v, want [%d]", got, created.ID)
	}

	// уже завершённая задача повторно не проверяется
	if _, err := svc.UpdateTask(ctx, created.ID, Update{IsCompleted: boolPtr(true)}, true); err != nil {
		t.Fatalf("complete again: %v", err)
	}
	if got := queue.submitted(); len(got) != 1 {
		t.Fatalf("true->true must not trigger, submitted = %v", got)
	}

	if _, err := svc.UpdateTask(ctx, created.ID, Update{IsCompleted: boolPtr(false)}, true); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := svc.UpdateTask(ctx, created.ID, Update{IsCompleted: boolPtr(true)}, true); err != nil {
		t.Fatalf("complete after reopen: %v", err)
	}
	if got := queue.submitted(); len(got) != 2 {
		t.Fatalf("second false->true must trigger, submitted = %v", got)
	}
}

func TestQueueFailureDoesNotFailUpdate(t *testing.T) {
	queue := &recordingQueue{err: errors.New("queue full")}
	svc := NewTaskService(newMemoryRepository(), queue, nil)
	created := seed(t, svc)

	updated, err := svc.UpdateTask(context.Background(), created.ID, Update{IsCompleted: boolPtr(true)}, true)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if !updated.IsCompleted {
		t.Fatal("expected completed task")
	}
}

func TestUpdateTaskStorageError(t *testing.T) {
	repo := newMemoryRepository()
	queue := &recordingQueue{}
	svc := NewTaskService(repo, queue, nil)
	created := seed(t, svc)
	repo.UpdateErr = errors.New("db down")

	if _, err := svc.UpdateTask(context.Background(), created.ID, Update{IsCompleted: boolPtr(true)}, true); err == nil {
		t.Fatal("expected storage error")
	}
	if len(queue.submitted()) != 0 {
		t.Fatal("failed update must not trigger check")
	}
}

func TestTaskListPagination(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewTaskService(repo, nil, nil)
	for i := 0; i < 7; i++ {
		seed(t, svc)
	}

	page, err := svc.TaskList(context.Background(), ParseListQuery("", "", "", ""))
	if err != nil {
		t.Fatalf("TaskList: %v", err)
	}
	if page.Total != 7 || page.TotalPages != 3 || page.Page != 1 || page.Limit != 3 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Tasks == nil {
		t.Fatal("tasks must be a non-nil slice")
	}
}
