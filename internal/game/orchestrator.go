package game

import (
	"encoding/json"
	"log"
	"time"

	"github.com/yourusername/quiz-arena/internal/domain/repository"
)

// Publisher публикует события жизненного цикла комнат во внешний канал
// (в кластере — Redis Pub/Sub). Реализация не обязана доставлять
// сообщения надежно.
type Publisher interface {
	Publish(channel string, message []byte) error
}

// lifecycleMessage — сообщение о событии жизненного цикла комнаты
type lifecycleMessage struct {
	Event      string `json:"event"`
	GameCode   string `json:"game_code"`
	InstanceID string `json:"instance_id,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// Orchestrator транслирует входящие игровые события в операции над
// комнатами. Владеет директорией комнат и реестром соединений; сам
// не содержит игрового состояния.
type Orchestrator struct {
	quizzes   repository.QuizStore
	directory *Directory
	registry  *Registry

	publisher        Publisher
	lifecycleChannel string
	instanceID       string
}

// OrchestratorOption настраивает оркестратор при создании
type OrchestratorOption func(*Orchestrator)

// WithLifecyclePublisher включает публикацию событий жизненного цикла
// комнат в заданный канал
func WithLifecyclePublisher(pub Publisher, channel, instanceID string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.publisher = pub
		o.lifecycleChannel = channel
		o.instanceID = instanceID
	}
}

// NewOrchestrator создает оркестратор вместе с директорией комнат
// и реестром соединений.
func NewOrchestrator(cfg *Config, quizzes repository.QuizStore, recorder repository.AttemptRecorder, dirOpts []DirectoryOption, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		quizzes:  quizzes,
		registry: NewRegistry(),
	}
	for _, opt := range opts {
		opt(o)
	}
	dirOpts = append(dirOpts, WithNotify(o.publishLifecycle))
	o.directory = NewDirectory(cfg, recorder, dirOpts...)
	return o
}

// Directory возвращает директорию комнат (для метрик и завершения работы)
func (o *Orchestrator) Directory() *Directory {
	return o.directory
}

// Registry возвращает реестр соединений
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Close останавливает все комнаты
func (o *Orchestrator) Close() {
	o.directory.Close()
}

// CreateGame создает комнату для викторины и делает создателя ее хостом.
// Создателю отправляется game_created с кодом комнаты.
func (o *Orchestrator) CreateGame(quizID uint, userID uint, username string, conn Conn) error {
	if _, bound := o.registry.Resolve(conn.ID()); bound {
		return ErrAlreadyJoined
	}

	quiz, err := o.quizzes.FetchQuiz(quizID)
	if err != nil {
		log.Printf("[Orchestrator] Ошибка загрузки викторины #%d: %v", quizID, err)
		return ErrQuizNotFound
	}

	room, err := o.directory.CreateRoom(quiz, userID, username, conn)
	if err != nil {
		return err
	}

	if err := o.registry.Bind(conn.ID(), Binding{Code: room.Code, UserID: userID, Username: username}); err != nil {
		// Гонка: соединение успело войти в другую комнату
		o.directory.Delete(room.Code)
		return err
	}

	ack := Event{Type: EventGameCreated, Data: GameAck{GameCode: room.Code, Quiz: SummarizeQuiz(quiz)}}
	if err := conn.SendJSON(ack); err != nil {
		log.Printf("[Orchestrator] Ошибка отправки game_created соединению %s: %v", conn.ID(), err)
	}
	return nil
}

// JoinGame присоединяет участника к комнате по коду
func (o *Orchestrator) JoinGame(code string, userID uint, username string, conn Conn) error {
	if _, bound := o.registry.Resolve(conn.ID()); bound {
		return ErrAlreadyJoined
	}

	room, err := o.directory.Lookup(code)
	if err != nil {
		return err
	}

	// Привязка до входа: параллельный join того же соединения отсекается здесь
	if err := o.registry.Bind(conn.ID(), Binding{Code: code, UserID: userID, Username: username}); err != nil {
		return err
	}
	if err := room.Join(userID, username, conn); err != nil {
		o.registry.Unbind(conn.ID())
		return err
	}
	return nil
}

// StartGame запускает игру в комнате, к которой привязано соединение
func (o *Orchestrator) StartGame(connID string) error {
	binding, room, err := o.resolve(connID)
	if err != nil {
		return err
	}
	return room.Start(binding.UserID)
}

// SubmitAnswer передает ответ участника в его комнату
func (o *Orchestrator) SubmitAnswer(connID string, questionID uint, answerID *uint) error {
	binding, room, err := o.resolve(connID)
	if err != nil {
		return err
	}
	return room.SubmitAnswer(binding.UserID, questionID, answerID)
}

// LeaveGame выводит участника из комнаты по явному запросу
func (o *Orchestrator) LeaveGame(connID string) error {
	binding, ok := o.registry.Unbind(connID)
	if !ok {
		return ErrRoomNotFound
	}
	room, err := o.directory.Lookup(binding.Code)
	if err != nil {
		return err
	}
	return room.Leave(connID)
}

// HandleDisconnect обрабатывает обрыв соединения: для комнаты это
// неотличимо от явного выхода.
func (o *Orchestrator) HandleDisconnect(connID string) {
	binding, ok := o.registry.Unbind(connID)
	if !ok {
		return
	}
	room, err := o.directory.Lookup(binding.Code)
	if err != nil {
		return
	}
	if err := room.Leave(connID); err != nil {
		log.Printf("[Orchestrator] Ошибка выхода соединения %s из комнаты %s: %v", connID, binding.Code, err)
	}
}

func (o *Orchestrator) resolve(connID string) (Binding, *Room, error) {
	binding, ok := o.registry.Resolve(connID)
	if !ok {
		return Binding{}, nil, ErrRoomNotFound
	}
	room, err := o.directory.Lookup(binding.Code)
	if err != nil {
		return Binding{}, nil, err
	}
	return binding, room, nil
}

// publishLifecycle публикует событие жизненного цикла комнаты.
// Ошибки публикации логируются: доставка best-effort.
func (o *Orchestrator) publishLifecycle(event, code string) {
	if o.publisher == nil || o.lifecycleChannel == "" {
		return
	}
	msg := lifecycleMessage{
		Event:      event,
		GameCode:   code,
		InstanceID: o.instanceID,
		Timestamp:  time.Now().Unix(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := o.publisher.Publish(o.lifecycleChannel, payload); err != nil {
		log.Printf("[Orchestrator] Ошибка публикации события %s для комнаты %s: %v", event, code, err)
	}
}
