package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrEmptyToken    = errors.New("authorization token is required")
	ErrInvalidToken  = errors.New("token is invalid")
	ErrExpiredToken  = errors.New("token is expired")
	ErrWeakSecretKey = errors.New("jwt secret must be at least 32 bytes")
)

const DefaultTokenTTL = 24 * time.Hour

type Claims struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Tokens выпускает и проверяет HS256 токены администратора
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if len(secret) < 32 {
		return nil, ErrWeakSecretKey
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (t *Tokens) Sign(username string, isAdmin bool) (string, Claims, error) {
	now := t.now()
	claims := Claims{
		Username: username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, claims, nil
}

func (t *Tokens) Parse(token string) (Claims, error) {
	raw := strings.TrimSpace(token)
	if raw == "" {
		return Claims{}, ErrEmptyToken
	}

	claims := Claims{}
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}

	if claims.Username == "" {
		return Claims{}, fmt.Errorf("%w: username missing", ErrInvalidToken)
	}
	if claims.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: exp missing", ErrInvalidToken)
	}
	return claims, nil
}

// BearerToken достаёт токен из заголовка Authorization
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrEmptyToken
	}
	parts := strings.SplitN(header, " ", 2)
	// "Bearer " после TrimSpace превращается в "Bearer"
	if len(parts) == 1 && strings.EqualFold(parts[0], "bearer") {
		return "", ErrEmptyToken
	}
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", fmt.Errorf("%w: authorization header must be Bearer token", ErrInvalidToken)
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}
