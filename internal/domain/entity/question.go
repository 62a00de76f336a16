package entity

import (
	"time"
)

// Типы вопросов
const (
	// QuestionTypeSingleChoice — вопрос с вариантами ответов, ровно один верный
	QuestionTypeSingleChoice = "single_choice"

	// QuestionTypeTrueFalse — частный случай выбора из двух вариантов
	QuestionTypeTrueFalse = "true_false"
)

// Question представляет вопрос викторины.
// Правильность помечена на уровне вариантов (Answer.IsCorrect)
// и никогда не сериализуется наружу до ответа участника.
type Question struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	QuizID       uint      `gorm:"not null;index" json:"quiz_id"`
	Position     int       `gorm:"not null;default:0" json:"position"`
	Title        string    `gorm:"size:200;not null;default:''" json:"title"`
	Text         string    `gorm:"size:500;not null" json:"text"`
	Type         string    `gorm:"size:20;not null;default:'single_choice'" json:"type"`
	ImageURL     string    `gorm:"size:255;not null;default:''" json:"image_url,omitempty"`
	TimeLimitSec int       `gorm:"not null;default:10" json:"time_limit_sec"`
	MaxPoints    int       `gorm:"not null;default:10" json:"max_points"`
	Answers      []Answer  `gorm:"foreignKey:QuestionID" json:"answers,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// IsChoice возвращает true для вопросов с вариантами ответа
func (q *Question) IsChoice() bool {
	return q.Type == QuestionTypeSingleChoice || q.Type == QuestionTypeTrueFalse
}

// CorrectAnswerID возвращает ID помеченного верным варианта.
// Второе значение false, если верный вариант не задан.
func (q *Question) CorrectAnswerID() (uint, bool) {
	for _, a := range q.Answers {
		if a.IsCorrect {
			return a.ID, true
		}
	}
	return 0, false
}

// IsCorrect проверяет, является ли выбранный вариант правильным.
// nil означает отсутствие ответа (таймаут) и всегда неверен.
func (q *Question) IsCorrect(answerID *uint) bool {
	if answerID == nil {
		return false
	}
	correct, ok := q.CorrectAnswerID()
	return ok && *answerID == correct
}

// CalculatePoints рассчитывает очки за ответ на вопрос.
// Верный ответ приносит полный MaxPoints, неверный — 0.
// Бонус за скорость в мультиплеерном пути не начисляется.
func (q *Question) CalculatePoints(isCorrect bool) int {
	if !isCorrect {
		return 0
	}
	return q.MaxPoints
}
