package routers

import (
	"context"
	"log"
	"net/http"

	"github.com/Oniqq60/task_tracker/internal/auth"
	"github.com/Oniqq60/task_tracker/internal/dto"
)

// authenticator проверяет Bearer токен запроса
type authenticator struct {
	service auth.AuthService
}

func (a authenticator) caller(req *http.Request) (auth.Caller, error) {
	token, err := auth.BearerToken(req.Header.Get("Authorization"))
	if err != nil {
		return auth.Caller{}, err
	}
	return a.service.Verify(req.Context(), token)
}

type AuthRoutes struct {
	service      auth.AuthService
	authn        authenticator
	loginLimiter func(http.Handler) http.Handler
	logger       *log.Logger
}

func NewAuthRoutes(svc auth.AuthService, loginLimiter func(http.Handler) http.Handler, logger *log.Logger) *AuthRoutes {
	return &AuthRoutes{
		service:      svc,
		authn:        authenticator{service: svc},
		loginLimiter: loginLimiter,
		logger:       logger,
	}
}

func (r *AuthRoutes) RegisterHandlers(_ context.Context, mux *http.ServeMux) {
	var login http.Handler = http.HandlerFunc(r.handleLogin)
	if r.loginLimiter != nil {
		login = r.loginLimiter(login)
	}

	mux.Handle("POST /api/auth/login", login)
	mux.HandleFunc("GET /api/auth/verify", r.handleVerify)
	mux.HandleFunc("POST /api/auth/logout", r.handleLogout)
}

func (r *AuthRoutes) handleLogin(w http.ResponseWriter, req *http.Request) {
	var payload dto.LoginRequest
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Username == "" || payload.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	res, err := r.service.Login(req.Context(), payload.Username, payload.Password)
	if err != nil {
		handleError(w, r.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LoginResponse{Token: res.Token, User: res.User})
}

func (r *AuthRoutes) handleVerify(w http.ResponseWriter, req *http.Request) {
	caller, err := r.authn.caller(req)
	if err != nil {
		handleError(w, r.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.VerifyResponse{IsValid: true, User: caller})
}

func (r *AuthRoutes) handleLogout(w http.ResponseWriter, req *http.Request) {
	token, err := auth.BearerToken(req.Header.Get("Authorization"))
	if err != nil {
		handleError(w, r.logger, err)
		return
	}
	if err := r.service.Logout(req.Context(), token); err != nil {
		handleError(w, r.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "logged out"})
}
