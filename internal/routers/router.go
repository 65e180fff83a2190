package routers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Oniqq60/task_tracker/internal/anomaly"
	"github.com/Oniqq60/task_tracker/internal/auth"
	"github.com/Oniqq60/task_tracker/internal/dto"
	"github.com/Oniqq60/task_tracker/internal/task"
)

type Dependencies struct {
	Tasks        task.TaskService
	Anomalies    anomaly.AnomalyService
	Auth         auth.AuthService
	// LoginLimiter оборачивает только POST /api/auth/login
	LoginLimiter func(http.Handler) http.Handler
	Middleware   []func(http.Handler) http.Handler
	Logger       *log.Logger
}

type Router struct {
	mux     *http.ServeMux
	handler http.Handler
}

func New(deps Dependencies) (*Router, error) {
	if deps.Tasks == nil || deps.Anomalies == nil {
		return nil, errors.New("task and anomaly services must be provided")
	}
	if deps.Auth == nil {
		return nil, errors.New("auth service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := http.NewServeMux()
	ctx := context.Background()
	authn := authenticator{service: deps.Auth}

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, dto.HealthResponse{Status: "OK", Timestamp: time.Now().UTC()})
	})
	NewAuthRoutes(deps.Auth, deps.LoginLimiter, logger).RegisterHandlers(ctx, mux)
	NewTaskRoutes(deps.Tasks, authn, logger).RegisterHandlers(ctx, mux)
	NewAnomalyRoutes(deps.Anomalies, authn, logger).RegisterHandlers(ctx, mux)

	var handler http.Handler = mux
	for i := len(deps.Middleware) - 1; i >= 0; i-- {
		handler = deps.Middleware[i](handler)
	}

	return &Router{
		mux:     mux,
		handler: handler,
	}, nil
}

func (r *Router) Handler() http.Handler {
	if r == nil {
		return nil
	}
	return r.handler
}
