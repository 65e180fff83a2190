package task

import "time"

type Task struct {
	ID          int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	Username    string     `json:"username" gorm:"type:text;not null;index"`
	Email       string     `json:"email" gorm:"type:text;not null;index"`
	Text        string     `json:"text" gorm:"type:text;not null"`
	IsCompleted bool       `json:"isCompleted" gorm:"not null;default:false;index"`
	IsEdited    bool       `json:"isEdited" gorm:"not null;default:false"` // только false -> true
	CreatedAt   time.Time  `json:"createdAt" gorm:"not null;index"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (Task) TableName() string {
	return "tasks"
}

// Update - изменяемые администратором поля; nil означает "не передано"
type Update struct {
	Text        *string
	IsCompleted *bool
}

type Stats struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Edited    int64 `json:"edited"`
}

type Page struct {
	Tasks      []Task
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}
