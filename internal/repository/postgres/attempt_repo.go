package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/yourusername/quiz-arena/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-arena/internal/pkg/errors"
)

// AttemptRepo реализует repository.AttemptRecorder
type AttemptRepo struct {
	db *gorm.DB
}

// NewAttemptRepo создает новый репозиторий результатов
func NewAttemptRepo(db *gorm.DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// RecordAttempt сохраняет итоговый результат участника.
// Уникальный индекс (user_id, quiz_id, completed_at) защищает от двойной записи
// одной и той же сессии; повторная вставка возвращает apperrors.ErrConflict.
func (r *AttemptRepo) RecordAttempt(attempt *entity.Attempt) error {
	if attempt.CompletedAt.IsZero() {
		attempt.CompletedAt = time.Now()
	}

	if err := r.db.Create(attempt).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: attempt for user #%d quiz #%d already recorded",
				apperrors.ErrConflict, attempt.UserID, attempt.QuizID)
		}
		return err
	}
	return nil
}

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
