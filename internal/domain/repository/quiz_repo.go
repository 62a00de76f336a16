package repository

import (
	"github.com/yourusername/quiz-arena/internal/domain/entity"
)

// QuizStore определяет доступ оркестратора к викторинам.
// Снимок загружается один раз при создании комнаты: вопросы в порядке Position,
// у каждого вопроса — полный набор вариантов с флагами правильности.
type QuizStore interface {
	// FetchQuiz возвращает викторину с вопросами и вариантами ответов.
	// Возвращает apperrors.ErrNotFound, если викторина не существует.
	FetchQuiz(quizID uint) (*entity.Quiz, error)
}
