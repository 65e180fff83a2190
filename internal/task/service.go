package task

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	ErrForbidden    = errors.New("admin access required")
	ErrTaskNotFound = errors.New("task not found")
)

// CompletionQueue принимает задачи на фоновую проверку после завершения.
// Submit не должен блокировать вызывающего.
type CompletionQueue interface {
	Submit(ctx context.Context, taskID int64) error
}

type TaskService interface {
	CreateTask(ctx context.Context, username, email, text string) (Task, error)
	UpdateTask(ctx context.Context, id int64, upd Update, callerIsAdmin bool) (Task, error)
	GetTask(ctx context.Context, id int64) (Task, error)
	TaskList(ctx context.Context, q ListQuery) (Page, error)
	Stats(ctx context.Context) (Stats, error)
}

type taskService struct {
	repo   TaskRepository
	queue  CompletionQueue
	logger *log.Logger
}

func NewTaskService(repo TaskRepository, queue CompletionQueue, logger *log.Logger) TaskService {
	if logger == nil {
		logger = log.Default()
	}
	return &taskService{
		repo:   repo,
		queue:  queue,
		logger: logger,
	}
}

func (s *taskService) CreateTask(ctx context.Context, username, email, text string) (Task, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	text = strings.TrimSpace(text)

	if err := validateNewTask(username, email, text); err != nil {
		return Task{}, err
	}

	task := Task{
		Username:  username,
		Email:     email,
		Text:      text,
		CreatedAt: time.Now(),
	}

	if err := s.repo.CreateTask(ctx, &task); err != nil {
		return Task{}, err
	}

	return task, nil
}

func (s *taskService) UpdateTask(ctx context.Context, id int64, upd Update, callerIsAdmin bool) (Task, error) {
	if !callerIsAdmin {
		return Task{}, ErrForbidden
	}

	existing, err := s.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}

	var effective Update

	// Текст, совпадающий с текущим, изменением не считается
	if upd.Text != nil {
		text := strings.TrimSpace(*upd.Text)
		if text == "" {
			return Task{}, ErrTextRequired
		}
		if text != existing.Text {
			effective.Text = &text
		}
	}

	if upd.IsCompleted != nil {
		completed := *upd.IsCompleted
		effective.IsCompleted = &completed
	}

	if effective.Text == nil && effective.IsCompleted == nil {
		return Task{}, ErrNoChanges
	}

	if err := s.repo.UpdateTask(ctx, id, effective); err != nil {
		return Task{}, err
	}

	task, err := s.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}

	// Проверка аномалий только при переходе false -> true, ответ её не ждёт
	if effective.IsCompleted != nil && *effective.IsCompleted && !existing.IsCompleted {
		s.submitCompletionCheck(ctx, id)
	}

	return task, nil
}

func (s *taskService) submitCompletionCheck(ctx context.Context, id int64) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Submit(context.WithoutCancel(ctx), id); err != nil {
		s.logger.Printf("failed to enqueue completion check task=%d: %v", id, err)
	}
}

func (s *taskService) GetTask(ctx context.Context, id int64) (Task, error) {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Task{}, ErrTaskNotFound
		}
		return Task{}, err
	}
	return task, nil
}

func (s *taskService) TaskList(ctx context.Context, q ListQuery) (Page, error) {
	tasks, total, err := s.repo.TaskList(ctx, q)
	if err != nil {
		return Page{}, err
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return Page{
		Tasks:      tasks,
		Total:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: totalPages(total, q.Limit),
	}, nil
}

func (s *taskService) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}
