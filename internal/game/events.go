package game

import (
	"github.com/yourusername/quiz-arena/internal/domain/entity"
)

// Типы исходящих событий игровой сессии
const (
	EventGameCreated     = "game_created"
	EventGameJoined      = "game_joined"
	EventPlayerJoined    = "player_joined"
	EventPlayerLeft      = "player_left"
	EventReadyToStart    = "ready_to_start"
	EventGameStarted     = "game_started"
	EventNextQuestion    = "next_question"
	EventAnswerReceived  = "answer_received"
	EventQuestionResults = "question_results"
	EventGameOver        = "game_over"
	EventGameCanceled    = "game_canceled"
	EventError           = "error"
)

// Event представляет конверт исходящего сообщения
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// QuizSummary — санитизированное описание викторины для ack-событий
type QuizSummary struct {
	ID            uint   `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	QuestionCount int    `json:"question_count"`
}

// GameAck — подтверждение создания или присоединения к игре
type GameAck struct {
	GameCode string      `json:"game_code"`
	Quiz     QuizSummary `json:"quiz"`
}

// RosterEntry — участник в составе комнаты
type RosterEntry struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// RosterUpdate — обновление состава комнаты.
// Username заполнен только для player_left (имя ушедшего участника).
type RosterUpdate struct {
	Players  []RosterEntry `json:"players"`
	Username string        `json:"username,omitempty"`
}

// AnswerOption — вариант ответа без флага правильности
type AnswerOption struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

// QuestionPayload — санитизированный вопрос для рассылки участникам.
// Флаг правильности вариантов НИКОГДА не попадает в это представление:
// его читает только логика проверки ответов внутри комнаты.
type QuestionPayload struct {
	ID             uint           `json:"id"`
	Number         int            `json:"number"`
	TotalQuestions int            `json:"total_questions"`
	Title          string         `json:"title"`
	Text           string         `json:"text"`
	Type           string         `json:"type"`
	ImageURL       string         `json:"image_url,omitempty"`
	TimeLimitSec   int            `json:"time_limit"`
	MaxPoints      int            `json:"max_points"`
	Answers        []AnswerOption `json:"answers,omitempty"`
}

// AnswerAck — ответ отправителю о результате его ответа
type AnswerAck struct {
	IsCorrect  bool `json:"is_correct"`
	Points     int  `json:"points"`
	TotalScore int  `json:"total_score"`
}

// QuestionResultEntry — строка промежуточных результатов вопроса
type QuestionResultEntry struct {
	Username  string `json:"username"`
	Score     int    `json:"score"`
	IsCorrect bool   `json:"is_correct"`
}

// StandingEntry — строка итоговой таблицы game_over
type StandingEntry struct {
	Username       string `json:"username"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correct_answers"`
}

// CancelNotice — уведомление о досрочном завершении игры
type CancelNotice struct {
	Reason string `json:"reason"`
}

// SummarizeQuiz строит санитизированное описание викторины
func SummarizeQuiz(quiz *entity.Quiz) QuizSummary {
	return QuizSummary{
		ID:            quiz.ID,
		Title:         quiz.Title,
		Description:   quiz.Description,
		QuestionCount: quiz.TotalQuestions(),
	}
}

// SanitizeQuestion строит представление вопроса для рассылки участникам.
// Варианты ответа включаются только для вопросов с выбором.
func SanitizeQuestion(q *entity.Question, number, total int) QuestionPayload {
	payload := QuestionPayload{
		ID:             q.ID,
		Number:         number,
		TotalQuestions: total,
		Title:          q.Title,
		Text:           q.Text,
		Type:           q.Type,
		ImageURL:       q.ImageURL,
		TimeLimitSec:   q.TimeLimitSec,
		MaxPoints:      q.MaxPoints,
	}
	if q.IsChoice() {
		payload.Answers = make([]AnswerOption, 0, len(q.Answers))
		for _, a := range q.Answers {
			payload.Answers = append(payload.Answers, AnswerOption{ID: a.ID, Text: a.Text})
		}
	}
	return payload
}
