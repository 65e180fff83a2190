package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"strings"
	"time"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// Caller - проверенный владелец токена
type Caller struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      Caller
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (LoginResult, error)
	Verify(ctx context.Context, token string) (Caller, error)
	Logout(ctx context.Context, token string) error
}

type Credentials struct {
	Username string
	Password string
}

type authService struct {
	tokens    *Tokens
	admin     Credentials
	blacklist Blacklist
	logger    *log.Logger
}

// NewAuthService: blacklist может быть nil, тогда logout ничего не делает
func NewAuthService(tokens *Tokens, admin Credentials, blacklist Blacklist, logger *log.Logger) AuthService {
	if logger == nil {
		logger = log.Default()
	}
	return &authService{
		tokens:    tokens,
		admin:     admin,
		blacklist: blacklist,
		logger:    logger,
	}
}

func (s *authService) Login(_ context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.admin.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.admin.Password)) == 1
	if !userOK || !passOK {
		s.logger.Printf("failed login attempt username=%q", username)
		return LoginResult{}, ErrInvalidCredentials
	}

	token, claims, err := s.tokens.Sign(username, true)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      Caller{Username: username, IsAdmin: true},
	}, nil
}

func (s *authService) Verify(ctx context.Context, token string) (Caller, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Caller{}, err
	}

	if s.blacklist != nil && claims.ID != "" {
		revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
		if err != nil {
			// Redis недоступен - не блокируем запрос
			s.logger.Printf("blacklist check failed: %v", err)
		} else if revoked {
			return Caller{}, ErrInvalidToken
		}
	}

	return Caller{Username: claims.Username, IsAdmin: claims.IsAdmin}, nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}
	if s.blacklist == nil || claims.ID == "" {
		return nil
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return s.blacklist.Revoke(ctx, claims.ID, ttl)
}
