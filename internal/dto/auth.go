package dto

import "github.com/Oniqq60/task_tracker/internal/auth"

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  auth.Caller `json:"user"`
}

type VerifyResponse struct {
	IsValid bool        `json:"isValid"`
	User    auth.Caller `json:"user"`
}
