package repository

import (
	"github.com/yourusername/quiz-arena/internal/domain/entity"
)

// AttemptRecorder определяет сохранение итоговых результатов участников.
// Вызывается асинхронно после завершения игры; ошибки логируются на стороне
// сервера и никогда не доходят до участников.
type AttemptRecorder interface {
	// RecordAttempt сохраняет итоговый результат участника.
	RecordAttempt(attempt *entity.Attempt) error
}
