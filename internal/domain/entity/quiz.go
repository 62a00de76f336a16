package entity

import (
	"time"
)

// Quiz представляет викторину, из которой создается игровая комната.
// Для оркестратора сессий викторина — это read-only снимок: оркестратор
// загружает ее один раз при создании комнаты и больше не изменяет.
type Quiz struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Title              string     `gorm:"size:100;not null" json:"title"`
	Description        string     `gorm:"size:500;not null;default:''" json:"description"`
	MultiplayerEnabled bool       `gorm:"not null;default:false" json:"multiplayer_enabled"`
	QuestionCount      int        `gorm:"not null;default:0" json:"question_count"`
	Questions          []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Quiz) TableName() string {
	return "quizzes"
}

// TotalQuestions возвращает фактическое количество вопросов снимка
func (q *Quiz) TotalQuestions() int {
	return len(q.Questions)
}
