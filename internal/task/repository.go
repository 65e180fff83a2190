package task

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type TaskRepository interface {
	CreateTask(ctx context.Context, t *Task) error
	UpdateTask(ctx context.Context, id int64, upd Update) error
	GetTask(ctx context.Context, id int64) (Task, error)
	TaskList(ctx context.Context, q ListQuery) ([]Task, int64, error)
	IncompleteTaskIDs(ctx context.Context) ([]int64, error)
	Stats(ctx context.Context) (Stats, error)
}

type taskRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) CreateTask(ctx context.Context, t *Task) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *taskRepository) UpdateTask(ctx context.Context, id int64, upd Update) error {
	// map вместо структуры, чтобы false тоже попадал в UPDATE
	updateMap := make(map[string]interface{})

	// text и is_edited пишутся одним запросом
	if upd.Text != nil {
		updateMap["text"] = *upd.Text
		updateMap["is_edited"] = true
	}

	if upd.IsCompleted != nil {
		updateMap["is_completed"] = *upd.IsCompleted
		if *upd.IsCompleted {
			// повторное завершение не сдвигает время
			updateMap["completed_at"] = gorm.Expr("COALESCE(completed_at, ?)", time.Now())
		} else {
			updateMap["completed_at"] = nil
		}
	}

	if len(updateMap) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Model(&Task{}).Where("id = ?", id).Updates(updateMap).Error
}

func (r *taskRepository) GetTask(ctx context.Context, id int64) (Task, error) {
	var task Task
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error
	return task, err
}

func (r *taskRepository) TaskList(ctx context.Context, q ListQuery) ([]Task, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&Task{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tasks []Task
	err := r.db.WithContext(ctx).
		Order(q.OrderClause()).
		Limit(q.Limit).
		Offset(q.Offset()).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (r *taskRepository) IncompleteTaskIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&Task{}).
		Where("is_completed = ?", false).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *taskRepository) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := r.db.WithContext(ctx).
		Model(&Task{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN is_completed THEN 1 ELSE 0 END), 0) AS completed,
			COALESCE(SUM(CASE WHEN is_edited THEN 1 ELSE 0 END), 0) AS edited`).
		Scan(&stats).Error
	return stats, err
}
