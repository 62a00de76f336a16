package game

import (
	"fmt"

	apperrors "github.com/yourusername/quiz-arena/internal/pkg/errors"
)

// Ошибки игровых операций. Каждая обернута в общую категорию из
// internal/pkg/errors, поэтому errors.Is работает и по конкретной
// ошибке, и по категории.
var (
	// ErrRoomNotFound — комната с указанным кодом не существует
	ErrRoomNotFound = fmt.Errorf("%w: room not found", apperrors.ErrNotFound)

	// ErrQuizNotFound — викторина не существует
	ErrQuizNotFound = fmt.Errorf("%w: quiz not found", apperrors.ErrNotFound)

	// ErrParticipantNotFound — участник не состоит в комнате
	ErrParticipantNotFound = fmt.Errorf("%w: participant not found in room", apperrors.ErrNotFound)

	// ErrQuizNotMultiplayer — викторина не разрешена для мультиплеера
	ErrQuizNotMultiplayer = fmt.Errorf("%w: quiz is not multiplayer enabled", apperrors.ErrInvalidState)

	// ErrQuizHasNoQuestions — в викторине нет вопросов, играть нечем
	ErrQuizHasNoQuestions = fmt.Errorf("%w: quiz has no questions", apperrors.ErrValidation)

	// ErrNotHost — стартовать игру может только хост
	ErrNotHost = fmt.Errorf("%w: only the host can perform this action", apperrors.ErrUnauthorized)

	// ErrInsufficientPlayers — недостаточно участников для старта
	ErrInsufficientPlayers = fmt.Errorf("%w: not enough players to start", apperrors.ErrCapacity)

	// ErrRoomFull — комната заполнена
	ErrRoomFull = fmt.Errorf("%w: room is full", apperrors.ErrCapacity)

	// ErrRoomAlreadyStarted — присоединиться можно только до старта игры
	ErrRoomAlreadyStarted = fmt.Errorf("%w: game already started", apperrors.ErrInvalidState)

	// ErrRoomNotActive — ответы принимаются только в активной фазе
	ErrRoomNotActive = fmt.Errorf("%w: room is not active", apperrors.ErrInvalidState)

	// ErrStaleQuestion — ответ относится не к текущему вопросу
	ErrStaleQuestion = fmt.Errorf("%w: answer is for a stale question", apperrors.ErrInvalidState)

	// ErrDuplicateAnswer — участник уже ответил на этот вопрос
	ErrDuplicateAnswer = fmt.Errorf("%w: answer already submitted for this question", apperrors.ErrConflict)

	// ErrAlreadyJoined — пользователь уже состоит в комнате
	ErrAlreadyJoined = fmt.Errorf("%w: user already joined this room", apperrors.ErrConflict)

	// ErrCodeExhausted — не удалось подобрать уникальный код комнаты
	ErrCodeExhausted = fmt.Errorf("%w: could not generate a unique game code", apperrors.ErrConflict)
)
