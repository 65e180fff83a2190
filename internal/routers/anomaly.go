package routers

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/Oniqq60/task_tracker/internal/anomaly"
	"github.com/Oniqq60/task_tracker/internal/dto"
)

type AnomalyRoutes struct {
	service anomaly.AnomalyService
	authn   authenticator
	logger  *log.Logger
}

func NewAnomalyRoutes(svc anomaly.AnomalyService, authn authenticator, logger *log.Logger) *AnomalyRoutes {
	return &AnomalyRoutes{
		service: svc,
		authn:   authn,
		logger:  logger,
	}
}

func (r *AnomalyRoutes) RegisterHandlers(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tasks/anomalies", r.handleActive)
	mux.HandleFunc("POST /api/tasks/anomalies/check-all", r.handleCheckAll)
	mux.HandleFunc("POST /api/tasks/anomalies/{id}/resolve", r.handleResolve)
	mux.HandleFunc("POST /api/tasks/anomalies/{id}/complete", r.handleComplete)
}

func (r *AnomalyRoutes) handleActive(w http.ResponseWriter, req *http.Request) {
	caller, err := r.authn.caller(req)
	if err != nil {
		handleError(w, r.logger, err)
		return
	}

	anomalies, err := r.service.ActiveAnomalies(req.Context(), caller.IsAdmin)
	if err != nil {
		handleError(w, r.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, anomalies)
}

func (r *AnomalyRoutes) handleCheckAll(w http.ResponseWriter, req *http.Request) {
	caller, err := r.authn.caller(req)
	if err != nil {
		handleError(w, r.logger, err)
		return
	}

	anomalies, err := r.service.CheckAllActiveTasks(req.Context(), caller.IsAdmin)
	if err != nil {
		handleError(w, r.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AnomaliesResponse{
		Message:   fmt.Sprintf("active tasks checked, anomalies found: %d", len(anomalies)),
		Anomalies: anomalies,
	})
}

func (r *AnomalyRoutes) handleResolve(w http.ResponseWriter, req *http.Request) {
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

	if err := r.service.ResolveAnomaly(req.Context(), id, caller.IsAdmin); err != nil {
		handleError(w, r.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "anomaly resolved successfully"})
}

func (r *AnomalyRoutes) handleComplete(w http.ResponseWriter, req *http.Request) {
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

	remaining, err := r.service.CompleteTaskFromAnomaly(req.Context(), id, caller.IsAdmin)
	if err != nil {
		handleError(w, r.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AnomaliesResponse{
		Message:   "task completed successfully",
		Anomalies: remaining,
	})
}
