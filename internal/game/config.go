package game

import (
	"time"
)

// Значения по умолчанию
const (
	DefaultMaxPlayers        = 20
	DefaultMinPlayersToStart = 2
)

// Config содержит настройки игровых комнат и директории
type Config struct {
	// Лимиты участников
	MaxPlayers        int // Максимальное количество участников в комнате
	MinPlayersToStart int // Минимальное количество участников для старта игры

	// Таймауты и интервалы
	InterQuestionDelay time.Duration // Пауза между результатами вопроса и следующим вопросом
	RetentionCompleted time.Duration // Хранение комнаты после нормального завершения
	RetentionAbandoned time.Duration // Хранение комнаты после ухода хоста

	// Настройки генерации кодов
	CodeAttempts       int           // Максимальное количество попыток подбора уникального кода
	CodeReservationTTL time.Duration // TTL кластерной резервации кода в Redis
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		MaxPlayers:         DefaultMaxPlayers,
		MinPlayersToStart:  DefaultMinPlayersToStart,
		InterQuestionDelay: 5 * time.Second,
		RetentionCompleted: 30 * time.Minute,
		RetentionAbandoned: 5 * time.Minute,
		CodeAttempts:       100,
		CodeReservationTTL: 2 * time.Hour,
	}
}
