package routers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/Oniqq60/task_tracker/internal/anomaly"
	"github.com/Oniqq60/task_tracker/internal/auth"
	"github.com/Oniqq60/task_tracker/internal/task"
)

const maxBodySize = 1 << 20 // 1MB

var (
	errEmptyBody   = errors.New("request body is empty")
	errUnknownBody = errors.New("request body contains unexpected data")
	errInvalidID   = errors.New("invalid id")
)

func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()

	limited := io.LimitReader(r.Body, maxBodySize)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}

	if decoder.More() {
		return errUnknownBody
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

// mapError переводит доменные ошибки в HTTP статус
func mapError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, task.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, auth.ErrEmptyToken):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "invalid or expired token"
	case errors.Is(err, task.ErrForbidden):
		return http.StatusForbidden, "admin access required"
	case errors.Is(err, task.ErrTaskNotFound):
		return http.StatusNotFound, "task not found"
	case errors.Is(err, anomaly.ErrAnomalyNotFound):
		return http.StatusNotFound, "anomaly not found"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func handleError(w http.ResponseWriter, logger *log.Logger, err error) {
	status, message := mapError(err)
	if status == http.StatusInternalServerError {
		logger.Printf("internal error: %v", err)
	}
	writeError(w, status, message)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}
