package routers

import (
	"context"
	"log"
	"net/http"

	"github.com/Oniqq60/task_tracker/internal/dto"
	"github.com/Oniqq60/task_tracker/internal/task"
)

type TaskRoutes struct {
	service task.TaskService
	authn   authenticator
	logger  *log.Logger
}

func NewTaskRoutes(svc task.TaskService, authn authenticator, logger *log.Logger) *TaskRoutes {
	return &TaskRoutes{
		service: svc,
		authn:   authn,
		logger:  logger,
	}
}

func (r *TaskRoutes) RegisterHandlers(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tasks", r.handleList)
	mux.HandleFunc("POST /api/tasks", r.handleCreate)
	mux.HandleFunc("GET /api/tasks/stats", r.handleStats)
	mux.HandleFunc("GET /api/tasks/{id}", r.handleGet)
	mux.HandleFunc("PATCH /api/tasks/{id}", r.handleUpdate)
}

func (r *TaskRoutes) handleList(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	query := task.ParseListQuery(q.Get("page"), q.Get("limit"), q.Get("sortField"), q.Get("sortOrder"))

	page, err := r.service.TaskList(req.Context(), query)
	if err != nil {
		handleError(w, r.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewTaskListResponse(page))
}

func (r *TaskRoutes) handleCreate(w http.ResponseWriter, req *http.Request) {
	var payload dto.CreateTaskRequest
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := r.service.CreateTask(req.Context(), payload.Username, payload.Email, payload.Text)
	if err != nil {
		handleError(w, r.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (r *TaskRoutes) handleStats(w http.ResponseWriter, req *http.Request) {
	stats, err := r.service.Stats(req.Context())
	if err != nil {
		handleError(w, r.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (r *TaskRoutes) handleGet(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	found, err := r.service.GetTask(req.Context(), id)
	if err != nil {
		handleError(w, r.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (r *TaskRoutes) handleUpdate(w http.ResponseWriter, req *http.Request) {
	caller, err := r.authn.caller(req)
	if err != nil {
		handleError(w, r.logger, err)
		return
	}

	id, err := pathID(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload dto.UpdateTaskRequest
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := r.service.UpdateTask(req.Context(), id, payload.ToUpdate(), caller.IsAdmin)
	if err != nil {
		handleError(w, r.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}
