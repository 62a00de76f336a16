package entity

import (
	"time"
)

// Answer представляет вариант ответа на вопрос.
// Поле IsCorrect намеренно исключено из JSON: оно читается только логикой
// проверки ответов внутри комнаты и не должно попадать к участникам.
type Answer struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	QuestionID uint      `gorm:"not null;index" json:"question_id"`
	Text       string    `gorm:"size:255;not null" json:"text"`
	IsCorrect  bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Answer) TableName() string {
	return "answers"
}
