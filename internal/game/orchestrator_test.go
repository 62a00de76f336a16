package game

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/quiz-arena/internal/domain/entity"
)

// ============================================================================
// Моки для оркестратора
// ============================================================================

// MockQuizStore реализует repository.QuizStore
type MockQuizStore struct {
	mock.Mock
}

func (m *MockQuizStore) FetchQuiz(quizID uint) (*entity.Quiz, error) {
	args := m.Called(quizID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Quiz), args.Error(1)
}

// capturePublisher накапливает опубликованные lifecycle-сообщения
type capturePublisher struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
}

func (p *capturePublisher) Publish(channel string, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	p.payloads = append(p.payloads, message)
	return nil
}

func (p *capturePublisher) messages() []lifecycleMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]lifecycleMessage, 0, len(p.payloads))
	for _, raw := range p.payloads {
		var msg lifecycleMessage
		if err := json.Unmarshal(raw, &msg); err == nil {
			out = append(out, msg)
		}
	}
	return out
}

func newTestOrchestrator(t *testing.T, store *MockQuizStore, opts ...OrchestratorOption) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(testConfig(), store, nil, nil, opts...)
	t.Cleanup(o.Close)
	return o
}

// ============================================================================
// Создание и вход
// ============================================================================

func TestOrchestrator_CreateGame_Success(t *testing.T) {
	store := new(MockQuizStore)
	store.On("FetchQuiz", uint(1)).Return(testQuiz(), nil)
	o := newTestOrchestrator(t, store)

	hostConn := newFakeConn("conn-host")
	require.NoError(t, o.CreateGame(1, 1, "host", hostConn))

	// Создатель получает game_created с кодом комнаты
	ev, ok := hostConn.lastOfType(EventGameCreated)
	require.True(t, ok)
	ack := ev.Data.(GameAck)
	assert.Regexp(t, codePattern, ack.GameCode)
	assert.Equal(t, "Тестовая викторина", ack.Quiz.Title)

	// Соединение привязано к комнате
	binding, bound := o.Registry().Resolve("conn-host")
	require.True(t, bound)
	assert.Equal(t, ack.GameCode, binding.Code)
	assert.Equal(t, 1, o.Directory().Count())

	store.AssertExpectations(t)
}

func TestOrchestrator_CreateGame_QuizNotFound(t *testing.T) {
	store := new(MockQuizStore)
	store.On("FetchQuiz", uint(404)).Return(nil, ErrQuizNotFound)
	o := newTestOrchestrator(t, store)

	err := o.CreateGame(404, 1, "host", newFakeConn("conn-host"))
	assert.ErrorIs(t, err, ErrQuizNotFound)
	assert.Equal(t, 0, o.Directory().Count())
}

func TestOrchestrator_CreateGame_AlreadyInRoom(t *testing.T) {
	store := new(MockQuizStore)
	store.On("FetchQuiz", uint(1)).Return(testQuiz(), nil)
	o := newTestOrchestrator(t, store)

	hostConn := newFakeConn("conn-host")
	require.NoError(t, o.CreateGame(1, 1, "host", hostConn))

	// Повторное создание с того же соединения отклоняется
	err := o.CreateGame(1, 1, "host", hostConn)
	assert.ErrorIs(t, err, ErrAlreadyJoined)
	assert.Equal(t, 1, o.Directory().Count())
}

func TestOrchestrator_JoinGame_Success(t *testing.T) {
	store := new(MockQuizStore)
	store.On("FetchQuiz", uint(1)).Return(testQuiz(), nil)
	o := newTestOrchestrator(t, store)

	hostConn := newFakeConn("conn-host")
	require.NoError(t, o.CreateGame(1, 1, "host", hostConn))
	ev, _ := hostConn.lastOfType(EventGameCreated)
	code := ev.Data.(GameAck).GameCode

	guestConn := newFakeConn("conn-guest")
	require.NoError(t, o.JoinGame(code, 2, "guest", guestConn))

	_, ok := guestConn.lastOfType(EventGameJoined)
	assert.True(t, ok)
	assert.Equal(t, 2, o.Registry().Count())
}

func TestOrchestrator_JoinGame_UnknownCode(t *testing.T) {
	o := newTestOrchestrator(t, new(MockQuizStore))

	err := o.JoinGame("000000", 2, "guest", newFakeConn("conn-guest"))
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, 0, o.Registry().Count())
}

func TestOrchestrator_JoinGame_DuplicateUser_UnbindsConnection(t *testing.T) {
	store := new(MockQuizStore)
	store.On("FetchQuiz", uint(1)).Return(testQuiz(), nil)
	o := newTestOrchestrator(t, store)

	hostConn := newFakeConn("conn-host")
	require.NoError(t, o.CreateGame(1, 1, "host", hostConn))
	ev, _ := hostConn.lastOfType(EventGameCreated)
	code := ev.Data.(GameAck).GameCode

	// Тот же пользователь с нового соединения: комната отклоняет вход,
	// привязка снимается
	err := o.JoinGame(code, 1, "host", newFakeConn("conn-second"))
	assert.ErrorIs(t, err, ErrAlreadyJoined)
	_, bound := o.Registry().Resolve("conn-second")
	assert.False(t, bound)
}

// ============================================================================
// Игровые операции через привязку соединения
// ============================================================================

func TestOrchestrator_FullGameFlow(t *testing.T) {
	store := new(MockQuizStore)
	store.On("FetchQuiz", uint(1)).Return(testQuiz(), nil)
	o := newTestOrchestrator(t, store)

	hostConn := newFakeConn("conn-host")
	require.NoError(t, o.CreateGame(1, 1, "host", hostConn))
	ev, _ := hostConn.lastOfType(EventGameCreated)
	code := ev.Data.(GameAck).GameCode

	guestConn := newFakeConn("conn-guest")
	require.NoError(t, o.JoinGame(code, 2, "guest", guestConn))

	// Старт доступен только через соединение хоста
	assert.Error(t, o.StartGame("conn-guest"))
	require.NoError(t, o.StartGame("conn-host"))

	_, started := guestConn.lastOfType(EventGameStarted)
	assert.True(t, started)

	require.NoError(t, o.SubmitAnswer("conn-host", 10, uintPtr(101)))

	ack, ok := hostConn.lastOfType(EventAnswerReceived)
	require.True(t, ok)
	assert.True(t, ack.Data.(AnswerAck).IsCorrect)
}

func TestOrchestrator_StartGame_NotBound(t *testing.T) {
	o := newTestOrchestrator(t, new(MockQuizStore))

	assert.ErrorIs(t, o.StartGame("conn-unknown"), ErrRoomNotFound)
	assert.ErrorIs(t, o.SubmitAnswer("conn-unknown", 10, uintPtr(1)), ErrRoomNotFound)
	assert.ErrorIs(t, o.LeaveGame("conn-unknown"), ErrRoomNotFound)
}

func TestOrchestrator_LeaveGame_Unbinds(t *testing.T) {
	store := new(MockQuizStore)
	store.On("FetchQuiz", uint(1)).Return(testQuiz(), nil)
	o := newTestOrchestrator(t, store)

	hostConn := newFakeConn("conn-host")
	require.NoError(t, o.CreateGame(1, 1, "host", hostConn))
	ev, _ := hostConn.lastOfType(EventGameCreated)
	code := ev.Data.(GameAck).GameCode

	guestConn := newFakeConn("conn-guest")
	require.NoError(t, o.JoinGame(code, 2, "guest", guestConn))

	require.NoError(t, o.LeaveGame("conn-guest"))
	_, bound := o.Registry().Resolve("conn-guest")
	assert.False(t, bound)

	// После выхода пользователь может войти снова
	require.NoError(t, o.JoinGame(code, 2, "guest", newFakeConn("conn-guest-2")))
}

func TestOrchestrator_HandleDisconnect_SameAsLeave(t *testing.T) {
	store := new(MockQuizStore)
	store.On("FetchQuiz", uint(1)).Return(testQuiz(), nil)
	o := newTestOrchestrator(t, store)

	hostConn := newFakeConn("conn-host")
	require.NoError(t, o.CreateGame(1, 1, "host", hostConn))
	ev, _ := hostConn.lastOfType(EventGameCreated)
	code := ev.Data.(GameAck).GameCode

	guestConn := newFakeConn("conn-guest")
	require.NoError(t, o.JoinGame(code, 2, "guest", guestConn))

	o.HandleDisconnect("conn-guest")

	_, bound := o.Registry().Resolve("conn-guest")
	assert.False(t, bound)

	ev, ok := hostConn.lastOfType(EventPlayerLeft)
	require.True(t, ok)
	assert.Equal(t, "guest", ev.Data.(RosterUpdate).Username)

	// Обрыв незнакомого соединения — no-op
	o.HandleDisconnect("conn-unknown")
}

// ============================================================================
// События жизненного цикла
// ============================================================================

func TestOrchestrator_LifecyclePublishing(t *testing.T) {
	store := new(MockQuizStore)
	store.On("FetchQuiz", uint(1)).Return(testQuiz(), nil)

	pub := &capturePublisher{}
	o := newTestOrchestrator(t, store, WithLifecyclePublisher(pub, "game:lifecycle", "node-1"))

	hostConn := newFakeConn("conn-host")
	require.NoError(t, o.CreateGame(1, 1, "host", hostConn))
	ev, _ := hostConn.lastOfType(EventGameCreated)
	code := ev.Data.(GameAck).GameCode

	o.Directory().Delete(code)

	msgs := pub.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "room_created", msgs[0].Event)
	assert.Equal(t, code, msgs[0].GameCode)
	assert.Equal(t, "node-1", msgs[0].InstanceID)
	assert.Equal(t, "room_deleted", msgs[1].Event)
}
