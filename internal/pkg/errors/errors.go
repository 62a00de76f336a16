package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок авторизации (неверный тикет, нет прав).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState используется, когда действие недопустимо в текущем состоянии комнаты
	// (например, старт уже завершенной игры или ответ вне активной фазы).
	ErrInvalidState = errors.New("invalid state for requested action")

	// ErrConflict используется для конфликтов состояния (повторный ответ на вопрос,
	// коллизия кода комнаты и т.п.).
	ErrConflict = errors.New("resource state conflict")

	// ErrCapacity используется при нарушении лимитов участников
	// (комната заполнена, недостаточно игроков для старта).
	ErrCapacity = errors.New("capacity limit violated")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrExpiredToken используется, когда тикет подключения истек.
	ErrExpiredToken = errors.New("token is expired")
)
