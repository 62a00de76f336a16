package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	apperrors "github.com/yourusername/quiz-arena/internal/pkg/errors"
)

// WSTicketClaims представляет claims одноразового тикета для WebSocket-подключения.
// Тикет выпускается внешним сервисом аутентификации с общим HMAC-секретом;
// оркестратор его только проверяет и извлекает идентичность участника.
type WSTicketClaims struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	IsWSTicket bool   `json:"is_ws_ticket"`
	jwt.RegisteredClaims
}

// JWTService проверяет тикеты подключения
type JWTService struct {
	secret       []byte
	ticketExpiry time.Duration
}

// NewJWTService создает новый сервис проверки тикетов
func NewJWTService(secret string, ticketExpirySec int) (*JWTService, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret cannot be empty")
	}
	if ticketExpirySec <= 0 {
		ticketExpirySec = 60 // По умолчанию тикет живет одну минуту
	}
	return &JWTService{
		secret:       []byte(secret),
		ticketExpiry: time.Duration(ticketExpirySec) * time.Second,
	}, nil
}

// GenerateWSTicket генерирует короткоживущий тикет для WebSocket-подключения.
// Используется в тестах и в dev-режиме; в production тикеты выпускает auth-сервис.
func (s *JWTService) GenerateWSTicket(userID uint, username string) (string, error) {
	now := time.Now()
	claims := WSTicketClaims{
		UserID:     userID,
		Username:   username,
		IsWSTicket: true,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ticketExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseWSTicket проверяет тикет и возвращает claims.
// Возвращает apperrors.ErrExpiredToken для истекших тикетов
// и apperrors.ErrUnauthorized для любых других проблем проверки.
func (s *JWTService) ParseWSTicket(ticket string) (*WSTicketClaims, error) {
	claims := &WSTicketClaims{}
	token, err := jwt.ParseWithClaims(ticket, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
	}

	if !token.Valid {
		return nil, apperrors.ErrUnauthorized
	}

	// Обычный access-токен не подходит для WebSocket: требуется именно тикет
	if !claims.IsWSTicket {
		return nil, fmt.Errorf("%w: token is not a websocket ticket", apperrors.ErrUnauthorized)
	}

	return claims, nil
}
