package dto

import (
	"time"

	"github.com/Oniqq60/task_tracker/internal/anomaly"
	"github.com/Oniqq60/task_tracker/internal/task"
)

type CreateTaskRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Text     string `json:"text"`
}

// UpdateTaskRequest: отсутствующее поле не меняется
type UpdateTaskRequest struct {
	Text        *string `json:"text"`
	IsCompleted *bool   `json:"isCompleted"`
}

func (r UpdateTaskRequest) ToUpdate() task.Update {
	return task.Update{Text: r.Text, IsCompleted: r.IsCompleted}
}

type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	TotalPages int   `json:"totalPages"`
	Limit      int   `json:"limit"`
}

type TaskListResponse struct {
	Data       []task.Task `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

func NewTaskListResponse(p task.Page) TaskListResponse {
	data := p.Tasks
	if data == nil {
		data = []task.Task{}
	}
	return TaskListResponse{
		Data: data,
		Pagination: Pagination{
			Total:      p.Total,
			Page:       p.Page,
			TotalPages: p.TotalPages,
			Limit:      p.Limit,
		},
	}
}

type MessageResponse struct {
	Message string `json:"message"`
}

type AnomaliesResponse struct {
	Message   string            `json:"message"`
	Anomalies []anomaly.Anomaly `json:"anomalies"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
