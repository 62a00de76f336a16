package entity

import (
	"time"
)

// Attempt представляет итоговый результат участия в игре.
// Запись создается оркестратором после завершения мультиплеерной сессии
// (fire-and-forget, ошибки сохранения не влияют на ход игры).
type Attempt struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	QuizID         uint      `gorm:"not null;index" json:"quiz_id"`
	IsMultiplayer  bool      `gorm:"not null;default:false" json:"is_multiplayer"`
	Points         int       `gorm:"not null;default:0" json:"points"`
	CorrectAnswers int       `gorm:"not null;default:0" json:"correct_answers"`
	TotalQuestions int       `gorm:"not null;default:0" json:"total_questions"`
	CompletedAt    time.Time `gorm:"not null" json:"completed_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Attempt) TableName() string {
	return "attempts"
}
