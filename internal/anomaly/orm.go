package anomaly

import "time"

type Anomaly struct {
	ID             int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	TaskID         int64      `json:"task_id" gorm:"not null;index:idx_anomalies_task_resolved"`
	Username       string     `json:"username" gorm:"type:text;not null"`
	TaskText       string     `json:"task_text" gorm:"type:text;not null"` // снимок текста на момент обнаружения
	ActiveHours    float64    `json:"active_hours" gorm:"not null"`
	EstimatedHours float64    `json:"estimated_hours" gorm:"not null"`
	Deviation      float64    `json:"deviation" gorm:"not null"`
	DetectedAt     time.Time  `json:"detected_at" gorm:"not null;index"`
	IsResolved     bool       `json:"is_resolved" gorm:"not null;default:false;index:idx_anomalies_task_resolved"`
	ResolvedAt     *time.Time `json:"resolved_at"`
}

func (Anomaly) TableName() string {
	return "anomalies"
}
