package anomaly

import (
	"context"
	"time"

	"github.com/Oniqq60/task_tracker/internal/task"
	"gorm.io/gorm"
)

type AnomalyRepository interface {
	// Upsert обновляет нерешённую аномалию задачи или создаёт новую
	Upsert(ctx context.Context, a *Anomaly) error
	ResolveByTask(ctx context.Context, taskID int64, at time.Time) (int64, error)
	Resolve(ctx context.Context, id int64, at time.Time) (int64, error)
	GetAnomaly(ctx context.Context, id int64) (Anomaly, error)
	ActiveAnomalies(ctx context.Context) ([]Anomaly, error)
	// CompleteTask завершает задачу аномалии и снимает аномалию в одной транзакции
	CompleteTask(ctx context.Context, anomalyID int64, at time.Time) error
}

type anomalyRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) AnomalyRepository {
	return &anomalyRepository{db: db}
}

// upsertLockSQL - транзакционная блокировка по task_id, общая для всех процессов.
// Для других СУБД пусто: там остаётся только Locker
func upsertLockSQL(dialect string) string {
	if dialect == "postgres" {
		return "SELECT pg_advisory_xact_lock(?)"
	}
	return ""
}

func (r *anomalyRepository) Upsert(ctx context.Context, a *Anomaly) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if lockSQL := upsertLockSQL(tx.Dialector.Name()); lockSQL != "" {
			if err := tx.Exec(lockSQL, a.TaskID).Error; err != nil {
				return err
			}
		}

		res := tx.Model(&Anomaly{}).
			Where("task_id = ? AND is_resolved = ?", a.TaskID, false).
			Updates(map[string]interface{}{
				"active_hours":    a.ActiveHours,
				"estimated_hours": a.EstimatedHours,
				"deviation":       a.Deviation,
				"detected_at":     a.DetectedAt,
				"is_resolved":     false,
				"resolved_at":     nil,
			})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected > 0 {
			a.ID = 0
			return tx.Where("task_id = ? AND is_resolved = ?", a.TaskID, false).First(a).Error
		}

		a.ID = 0
		a.IsResolved = false
		a.ResolvedAt = nil
		return tx.Create(a).Error
	})
}

func (r *anomalyRepository) ResolveByTask(ctx context.Context, taskID int64, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Anomaly{}).
		Where("task_id = ? AND is_resolved = ?", taskID, false).
		Updates(map[string]interface{}{
			"is_resolved": true,
			"resolved_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *anomalyRepository) Resolve(ctx context.Context, id int64, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Anomaly{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_resolved": true,
			"resolved_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *anomalyRepository) GetAnomaly(ctx context.Context, id int64) (Anomaly, error) {
	var a Anomaly
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	return a, err
}

func (r *anomalyRepository) ActiveAnomalies(ctx context.Context) ([]Anomaly, error) {
	var anomalies []Anomaly
	err := r.db.WithContext(ctx).
		Where("is_resolved = ?", false).
		Order("detected_at DESC").
		Find(&anomalies).Error
	if err != nil {
		return nil, err
	}
	return anomalies, nil
}

func (r *anomalyRepository) CompleteTask(ctx context.Context, anomalyID int64, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a Anomaly
		if err := tx.Select("id", "task_id").Where("id = ?", anomalyID).First(&a).Error; err != nil {
			return err
		}

		err := tx.Model(&task.Task{}).
			Where("id = ?", a.TaskID).
			Updates(map[string]interface{}{
				"is_completed": true,
				"completed_at": gorm.Expr("COALESCE(completed_at, ?)", at),
			}).Error
		if err != nil {
			return err
		}

		return tx.Model(&Anomaly{}).
			Where("id = ?", anomalyID).
			Updates(map[string]interface{}{
				"is_resolved": true,
				"resolved_at": at,
			}).Error
	})
}
