package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/quiz-arena/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-arena/internal/pkg/errors"
)

// QuizRepo реализует repository.QuizStore
type QuizRepo struct {
	db *gorm.DB
}

// NewQuizRepo создает новый репозиторий викторин
func NewQuizRepo(db *gorm.DB) *QuizRepo {
	return &QuizRepo{db: db}
}

// FetchQuiz возвращает викторину с вопросами (в порядке position) и вариантами ответов.
// Результат используется как read-only снимок на все время жизни комнаты.
func (r *QuizRepo) FetchQuiz(quizID uint) (*entity.Quiz, error) {
	var quiz entity.Quiz
	err := r.db.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.position ASC, questions.id ASC")
		}).
		Preload("Questions.Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("answers.id ASC")
		}).
		First(&quiz, quizID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &quiz, nil
}
