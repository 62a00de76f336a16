package game

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yourusername/quiz-arena/internal/pkg/errors"
)

var codePattern = regexp.MustCompile(`^\d{6}$`)

// fakeCache — кеш в памяти для тестов директории. Реализует
// repository.CacheRepository; blockSetNX позволяет имитировать
// медленный Redis при резервировании кода.
type fakeCache struct {
	mu       sync.Mutex
	values   map[string]string
	counters map[string]int64

	// blockSetNX: SetNX сигналит в started и ждет закрытия release
	blockSetNX bool
	started    chan struct{}
	release    chan struct{}
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		values:   make(map[string]string),
		counters: make(map[string]int64),
	}
}

func (c *fakeCache) Get(key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.counters[key]; ok {
		return strconv.FormatInt(v, 10), nil
	}
	v, ok := c.values[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return v, nil
}

func (c *fakeCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func (c *fakeCache) Increment(key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

func (c *fakeCache) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	if c.blockSetNX {
		c.started <- struct{}{}
		<-c.release
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.values[key]; exists {
		return false, nil
	}
	c.values[key] = fmt.Sprint(value)
	return true, nil
}

// keysWithPrefix возвращает ключи values с заданным префиксом
func (c *fakeCache) keysWithPrefix(prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []string
	for k := range c.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

func TestDirectory_CreateRoom_UniqueCodes(t *testing.T) {
	dir := NewDirectory(testConfig(), nil)
	t.Cleanup(dir.Close)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		room, err := dir.CreateRoom(testQuiz(), uint(i+1), fmt.Sprintf("host-%d", i), newFakeConn(fmt.Sprintf("conn-%d", i)))
		require.NoError(t, err)
		assert.Regexp(t, codePattern, room.Code)
		assert.False(t, seen[room.Code], "код %s выдан повторно", room.Code)
		seen[room.Code] = true
	}
	assert.Equal(t, 50, dir.Count())
}

func TestDirectory_CreateRoom_Rejections(t *testing.T) {
	dir := NewDirectory(testConfig(), nil)
	t.Cleanup(dir.Close)

	// Викторина без мультиплеера
	quiz := testQuiz()
	quiz.MultiplayerEnabled = false
	_, err := dir.CreateRoom(quiz, 1, "host", newFakeConn("c1"))
	assert.ErrorIs(t, err, ErrQuizNotMultiplayer)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	// Викторина без вопросов
	quiz = testQuiz()
	quiz.Questions = nil
	_, err = dir.CreateRoom(quiz, 1, "host", newFakeConn("c2"))
	assert.ErrorIs(t, err, ErrQuizHasNoQuestions)

	// Отсутствующая викторина
	_, err = dir.CreateRoom(nil, 1, "host", newFakeConn("c3"))
	assert.ErrorIs(t, err, ErrQuizNotFound)
}

func TestDirectory_Lookup(t *testing.T) {
	dir := NewDirectory(testConfig(), nil)
	t.Cleanup(dir.Close)

	room, err := dir.CreateRoom(testQuiz(), 1, "host", newFakeConn("c1"))
	require.NoError(t, err)

	found, err := dir.Lookup(room.Code)
	require.NoError(t, err)
	assert.Same(t, room, found)

	_, err = dir.Lookup("000000")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDirectory_Delete_Idempotent(t *testing.T) {
	dir := NewDirectory(testConfig(), nil)
	t.Cleanup(dir.Close)

	room, err := dir.CreateRoom(testQuiz(), 1, "host", newFakeConn("c1"))
	require.NoError(t, err)

	dir.Delete(room.Code)
	_, err = dir.Lookup(room.Code)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	// Повторное удаление — no-op
	dir.Delete(room.Code)
	assert.Equal(t, 0, dir.Count())

	// Операции над остановленной комнатой возвращают ErrRoomNotFound
	assert.ErrorIs(t, room.Start(1), ErrRoomNotFound)
}

func TestDirectory_EmptyRoom_DeletedImmediately(t *testing.T) {
	dir := NewDirectory(testConfig(), nil)
	t.Cleanup(dir.Close)

	room, err := dir.CreateRoom(testQuiz(), 1, "host", newFakeConn("conn-host"))
	require.NoError(t, err)

	// Единственный участник уходит — комната удаляется сразу,
	// не дожидаясь окна удержания
	require.NoError(t, room.Leave("conn-host"))

	require.Eventually(t, func() bool {
		_, err := dir.Lookup(room.Code)
		return err != nil
	}, time.Second, 5*time.Millisecond, "опустевшая комната должна быть удалена")
}

func TestDirectory_Retention_AbandonedRoom(t *testing.T) {
	cfg := testConfig()
	cfg.RetentionAbandoned = 30 * time.Millisecond
	dir := NewDirectory(cfg, nil)
	t.Cleanup(dir.Close)

	room, err := dir.CreateRoom(testQuiz(), 1, "host", newFakeConn("conn-host"))
	require.NoError(t, err)
	require.NoError(t, room.Join(2, "guest", newFakeConn("conn-guest")))

	// Хост уходит: игра отменена, но комната еще доступна гостю
	require.NoError(t, room.Leave("conn-host"))
	_, err = dir.Lookup(room.Code)
	require.NoError(t, err)

	// По истечении окна удержания комната удаляется
	require.Eventually(t, func() bool {
		_, err := dir.Lookup(room.Code)
		return err != nil
	}, time.Second, 5*time.Millisecond, "комната должна быть удалена после окна удержания")
}

func TestDirectory_Notify_Lifecycle(t *testing.T) {
	events := make(chan string, 16)
	dir := NewDirectory(testConfig(), nil, WithNotify(func(event, code string) {
		events <- event
	}))
	t.Cleanup(dir.Close)

	room, err := dir.CreateRoom(testQuiz(), 1, "host", newFakeConn("c1"))
	require.NoError(t, err)
	assert.Equal(t, "room_created", <-events)

	dir.Delete(room.Code)
	assert.Equal(t, "room_deleted", <-events)
}

func TestDirectory_CodeReservation_Cache(t *testing.T) {
	cache := newFakeCache()
	dir := NewDirectory(testConfig(), nil, WithCache(cache))
	t.Cleanup(dir.Close)

	room, err := dir.CreateRoom(testQuiz(), 1, "host", newFakeConn("c1"))
	require.NoError(t, err)

	// Код зарезервирован в общем кеше
	reserved := cache.keysWithPrefix("game:code:")
	require.Len(t, reserved, 1)
	assert.Equal(t, "game:code:"+room.Code, reserved[0])

	// Удаление комнаты снимает резервирование
	dir.Delete(room.Code)
	assert.Empty(t, cache.keysWithPrefix("game:code:"))
}

func TestDirectory_CreatedTotal(t *testing.T) {
	// Без кеша — локальный счетчик узла
	local := NewDirectory(testConfig(), nil)
	t.Cleanup(local.Close)
	_, err := local.CreateRoom(testQuiz(), 1, "host", newFakeConn("c1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), local.CreatedTotal())

	// С кешем — кластерный счетчик, переживающий удаление комнат
	cache := newFakeCache()
	dir := NewDirectory(testConfig(), nil, WithCache(cache))
	t.Cleanup(dir.Close)

	for i := 0; i < 3; i++ {
		room, err := dir.CreateRoom(testQuiz(), uint(i+1), fmt.Sprintf("host-%d", i), newFakeConn(fmt.Sprintf("c-%d", i)))
		require.NoError(t, err)
		dir.Delete(room.Code)
	}
	assert.Equal(t, 0, dir.Count())
	assert.Equal(t, int64(3), dir.CreatedTotal())
}

func TestDirectory_Lookup_NotBlockedByCodeReservation(t *testing.T) {
	cache := newFakeCache()
	dir := NewDirectory(testConfig(), nil, WithCache(cache))
	t.Cleanup(dir.Close)

	existing, err := dir.CreateRoom(testQuiz(), 1, "host", newFakeConn("c1"))
	require.NoError(t, err)

	// Второе создание повисает на обращении к кешу
	cache.blockSetNX = true
	cache.started = make(chan struct{}, 1)
	cache.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := dir.CreateRoom(testQuiz(), 2, "host-2", newFakeConn("c2"))
		done <- err
	}()
	<-cache.started

	// Медленный Redis не должен останавливать несвязанные комнаты
	lookedUp := make(chan struct{})
	go func() {
		_, err := dir.Lookup(existing.Code)
		assert.NoError(t, err)
		close(lookedUp)
	}()
	select {
	case <-lookedUp:
	case <-time.After(time.Second):
		t.Fatal("Lookup заблокирован на время резервирования кода в кеше")
	}

	close(cache.release)
	require.NoError(t, <-done)
	assert.Equal(t, 2, dir.Count())
}

func TestDirectory_CreateRoom_AfterClose(t *testing.T) {
	dir := NewDirectory(testConfig(), nil)
	dir.Close()

	_, err := dir.CreateRoom(testQuiz(), 1, "host", newFakeConn("c1"))
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
