package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/yourusername/quiz-arena/internal/game"
	apperrors "github.com/yourusername/quiz-arena/internal/pkg/errors"
	"github.com/yourusername/quiz-arena/internal/websocket"
	"github.com/yourusername/quiz-arena/pkg/auth"
)

// WSHandler обрабатывает WebSocket соединения
type WSHandler struct {
	wsManager    *websocket.Manager
	orchestrator *game.Orchestrator
	jwtService   *auth.JWTService
	limits       websocket.Limits
}

// NewWSHandler создает новый обработчик WebSocket
func NewWSHandler(
	wsManager *websocket.Manager,
	orchestrator *game.Orchestrator,
	jwtService *auth.JWTService,
	limits websocket.Limits,
) *WSHandler {
	handler := &WSHandler{
		wsManager:    wsManager,
		orchestrator: orchestrator,
		jwtService:   jwtService,
		limits:       limits,
	}

	// Регистрируем обработчики сообщений один раз при создании обработчика
	handler.registerMessageHandlers()

	return handler
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Пустой Origin - не браузерный клиент (мобильное приложение, curl и т.д.)
		if origin == "" {
			return true
		}

		// Список разрешенных origin (синхронизирован с CORS в main.go)
		allowedOrigins := []string{
			"http://localhost:5173",
			"http://localhost:8000",
			"http://localhost:3000",
		}

		for _, allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}

		log.Printf("WebSocket: rejected unauthorized origin: %s", origin)
		return false
	},
	EnableCompression: true,
}

// HandleConnection обрабатывает входящее WebSocket соединение
func (h *WSHandler) HandleConnection(c *gin.Context) {
	// Тикет из запроса (?ticket=...); сам тикет не логируем
	ticket := c.Query("ticket")
	if ticket == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authentication ticket parameter"})
		return
	}

	claims, err := h.jwtService.ParseWSTicket(ticket)
	if err != nil {
		log.Printf("WebSocket: Invalid or expired ticket - %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired ticket"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Error upgrading connection: %v", err)
		return
	}

	log.Printf("WebSocket: Connection upgraded for UserID: %d", claims.UserID)

	client := websocket.NewClientWithLimits(conn, claims.UserID, claims.Username, h.limits)

	// Запускаем прослушивание сообщений; обрыв соединения для комнаты
	// неотличим от явного выхода
	client.StartPumps(h.wsManager.HandleMessage, h.wsManager.HandleDisconnect)
}

// registerMessageHandlers регистрирует обработчики игровых событий
func (h *WSHandler) registerMessageHandlers() {
	// Создание комнаты; создатель становится хостом
	h.wsManager.RegisterHandler("create_game", func(data json.RawMessage, client *websocket.Client) error {
		var createEvent struct {
			QuizID uint `json:"quiz_id"`
		}
		if err := json.Unmarshal(data, &createEvent); err != nil {
			log.Printf("[WSHandler] Ошибка парсинга create_game: %v, Data: %s", err, string(data))
			h.wsManager.SendErrorToClient(client, "invalid_format", "Failed to parse create_game event")
			return fmt.Errorf("failed to parse create_game event: %w", err)
		}

		if err := h.orchestrator.CreateGame(createEvent.QuizID, client.UserID, client.Username, client); err != nil {
			log.Printf("[WSHandler] Ошибка создания игры для пользователя %d, викторины %d: %v", client.UserID, createEvent.QuizID, err)
			h.sendGameError(client, err)
		}
		return nil // Ошибки игры не закрывают соединение
	})

	// Вход в комнату по коду
	h.wsManager.RegisterHandler("join_game", func(data json.RawMessage, client *websocket.Client) error {
		var joinEvent struct {
			GameCode string `json:"game_code"`
		}
		if err := json.Unmarshal(data, &joinEvent); err != nil {
			log.Printf("[WSHandler] Ошибка парсинга join_game: %v, Data: %s", err, string(data))
			h.wsManager.SendErrorToClient(client, "invalid_format", "Failed to parse join_game event")
			return fmt.Errorf("failed to parse join_game event: %w", err)
		}

		if err := h.orchestrator.JoinGame(joinEvent.GameCode, client.UserID, client.Username, client); err != nil {
			log.Printf("[WSHandler] Ошибка входа пользователя %d в комнату %s: %v", client.UserID, joinEvent.GameCode, err)
			h.sendGameError(client, err)
		}
		return nil
	})

	// Запуск игры; доступен только хосту
	h.wsManager.RegisterHandler("start_game", func(data json.RawMessage, client *websocket.Client) error {
		if err := h.orchestrator.StartGame(client.ID()); err != nil {
			log.Printf("[WSHandler] Ошибка запуска игры пользователем %d: %v", client.UserID, err)
			h.sendGameError(client, err)
		}
		return nil
	})

	// Ответ на текущий вопрос; answer_id == null означает пропуск
	h.wsManager.RegisterHandler("submit_answer", func(data json.RawMessage, client *websocket.Client) error {
		var answerEvent struct {
			QuestionID uint  `json:"question_id"`
			AnswerID   *uint `json:"answer_id"`
		}
		if err := json.Unmarshal(data, &answerEvent); err != nil {
			log.Printf("[WSHandler] Ошибка парсинга submit_answer: %v, Data: %s", err, string(data))
			h.wsManager.SendErrorToClient(client, "invalid_format", "Failed to parse submit_answer event")
			return fmt.Errorf("failed to parse submit_answer event: %w", err)
		}

		if err := h.orchestrator.SubmitAnswer(client.ID(), answerEvent.QuestionID, answerEvent.AnswerID); err != nil {
			log.Printf("[WSHandler] Ошибка обработки ответа пользователя %d на вопрос %d: %v", client.UserID, answerEvent.QuestionID, err)
			h.sendGameError(client, err)
		}
		return nil
	})

	// Явный выход из комнаты
	h.wsManager.RegisterHandler("leave_game", func(data json.RawMessage, client *websocket.Client) error {
		if err := h.orchestrator.LeaveGame(client.ID()); err != nil {
			log.Printf("[WSHandler] Ошибка выхода пользователя %d: %v", client.UserID, err)
			h.sendGameError(client, err)
		}
		return nil
	})

	// Обрыв соединения обрабатывается тем же путем, что и явный выход
	h.wsManager.OnDisconnect(func(client *websocket.Client) {
		h.orchestrator.HandleDisconnect(client.ID())
	})
}

// --- Вспомогательные методы ---

// sendGameError отправляет клиенту ошибку игровой операции с кодом,
// соответствующим категории ошибки.
func (h *WSHandler) sendGameError(client *websocket.Client, err error) {
	h.wsManager.SendErrorToClient(client, errorCode(err), err.Error())
}

// errorCode сопоставляет категорию ошибки строковому коду протокола
func errorCode(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, apperrors.ErrCapacity):
		return "capacity"
	case errors.Is(err, apperrors.ErrConflict):
		return "conflict"
	case errors.Is(err, apperrors.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, apperrors.ErrValidation):
		return "validation_error"
	default:
		return "internal_error"
	}
}
