package redis

import (
	"fmt"
	"time"

	"github.com/yourusername/quiz-arena/internal/domain/entity"
	"github.com/yourusername/quiz-arena/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-arena/internal/pkg/errors"
)

// defaultDedupTTL покрывает любой разумный интервал повторной доставки
const defaultDedupTTL = 24 * time.Hour

// DedupAttemptRecorder — декоратор AttemptRecorder, отсекающий повторную
// запись результата одной и той же сессии через SetNX в общем кеше.
// Вторая линия защиты — уникальный индекс в базе данных.
type DedupAttemptRecorder struct {
	inner repository.AttemptRecorder
	cache repository.CacheRepository
	ttl   time.Duration
}

// NewDedupAttemptRecorder создает декоратор с защитой от двойной записи
func NewDedupAttemptRecorder(inner repository.AttemptRecorder, cache repository.CacheRepository, ttl time.Duration) *DedupAttemptRecorder {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &DedupAttemptRecorder{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

// RecordAttempt сохраняет результат, если он еще не был записан.
// При недоступности кеша запись идет напрямую: уникальный индекс БД
// останется последней линией защиты.
func (r *DedupAttemptRecorder) RecordAttempt(attempt *entity.Attempt) error {
	key := dedupKey(attempt)

	ok, err := r.cache.SetNX(key, 1, r.ttl)
	if err != nil {
		return r.inner.RecordAttempt(attempt)
	}
	if !ok {
		return fmt.Errorf("%w: attempt for user #%d quiz #%d already recorded",
			apperrors.ErrConflict, attempt.UserID, attempt.QuizID)
	}

	if err := r.inner.RecordAttempt(attempt); err != nil {
		// Снимаем метку, чтобы повторная попытка записи могла пройти
		_ = r.cache.Delete(key)
		return err
	}
	return nil
}

// dedupKey идентифицирует результат сессии: у всех участников одной игры
// совпадает CompletedAt, поэтому тройка однозначно определяет запись.
func dedupKey(attempt *entity.Attempt) string {
	return fmt.Sprintf("attempt:%d:%d:%d", attempt.UserID, attempt.QuizID, attempt.CompletedAt.Unix())
}
