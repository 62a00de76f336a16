package game

import (
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourusername/quiz-arena/internal/domain/entity"
	"github.com/yourusername/quiz-arena/internal/domain/repository"
)

const (
	// codeReservationPrefix — ключи резервирования кодов в Redis (для кластера)
	codeReservationPrefix = "game:code:"

	// roomsCreatedKey — кластерный счетчик созданных комнат
	roomsCreatedKey = "game:rooms:created"
)

// Directory — реестр активных комнат. Единственный владелец отображения
// код → комната; отвечает за генерацию кодов, удержание завершенных комнат
// и их удаление.
type Directory struct {
	cfg      *Config
	recorder repository.AttemptRecorder

	// cache используется для межузлового резервирования кодов через SetNX
	// и кластерного счетчика комнат; nil допустим (одноузловой режим)
	cache repository.CacheRepository

	// notify вызывается на событиях жизненного цикла комнат
	// (room_created, room_finished, room_deleted); nil допустим
	notify func(event string, code string)

	// created — локальный счетчик созданных комнат этого узла
	created uint64

	mu        sync.Mutex
	rooms     map[string]*Room
	retention map[string]*time.Timer
	rng       *rand.Rand
	closed    bool
}

// DirectoryOption настраивает директорию при создании
type DirectoryOption func(*Directory)

// WithCache включает резервирование кодов и счетчики в общем кеше
func WithCache(cache repository.CacheRepository) DirectoryOption {
	return func(d *Directory) {
		d.cache = cache
	}
}

// WithNotify подключает подписчика на события жизненного цикла комнат
func WithNotify(fn func(event string, code string)) DirectoryOption {
	return func(d *Directory) {
		d.notify = fn
	}
}

// NewDirectory создает пустую директорию комнат
func NewDirectory(cfg *Config, recorder repository.AttemptRecorder, opts ...DirectoryOption) *Directory {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	d := &Directory{
		cfg:       cfg,
		recorder:  recorder,
		rooms:     make(map[string]*Room),
		retention: make(map[string]*time.Timer),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CreateRoom создает комнату с уникальным кодом и хостом как первым
// участником. Код гарантированно не совпадает ни с одной активной
// комнатой этого узла; при включенном кеше — и с комнатами других узлов.
func (d *Directory) CreateRoom(quiz *entity.Quiz, hostID uint, hostName string, hostConn Conn) (*Room, error) {
	if quiz == nil {
		return nil, ErrQuizNotFound
	}
	if !quiz.MultiplayerEnabled {
		return nil, ErrQuizNotMultiplayer
	}
	if len(quiz.Questions) == 0 {
		return nil, ErrQuizHasNoQuestions
	}

	for attempt := 0; attempt < d.cfg.CodeAttempts; attempt++ {
		code, err := d.reserveCode()
		if err != nil {
			return nil, err
		}

		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			d.releaseCode(code)
			return nil, ErrRoomNotFound
		}
		if _, taken := d.rooms[code]; taken {
			// Гонка двух одновременных созданий без кеша: код успели
			// занять между резервированием и регистрацией
			d.mu.Unlock()
			d.releaseCode(code)
			continue
		}

		room := newRoom(code, quiz, hostID, hostName, hostConn, d.cfg, roomDeps{
			recorder:   d.recorder,
			onFinished: d.scheduleRetention,
			onEmpty:    d.deleteAsync,
		})
		d.rooms[code] = room
		total := len(d.rooms)
		d.mu.Unlock()

		d.countCreated()
		log.Printf("[Directory] Комната %s создана (викторина #%d, хост #%d), активных комнат: %d",
			code, quiz.ID, hostID, total)
		d.emit("room_created", code)
		return room, nil
	}
	return nil, ErrCodeExhausted
}

// Lookup возвращает комнату по коду
func (d *Directory) Lookup(code string) (*Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Delete удаляет комнату из директории и останавливает ее цикл.
// Идемпотентна: повторный вызов для удаленного кода — no-op.
func (d *Directory) Delete(code string) {
	d.mu.Lock()
	room, ok := d.rooms[code]
	if ok {
		delete(d.rooms, code)
	}
	if timer, has := d.retention[code]; has {
		timer.Stop()
		delete(d.retention, code)
	}
	remaining := len(d.rooms)
	d.mu.Unlock()

	if !ok {
		return
	}

	room.stop()
	d.releaseCode(code)
	log.Printf("[Directory] Комната %s удалена, активных комнат: %d", code, remaining)
	d.emit("room_deleted", code)
}

// Count возвращает число активных комнат этого узла
func (d *Directory) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms)
}

// CreatedTotal возвращает общее число созданных комнат. При включенном
// кеше значение кластерное, иначе — локальное для узла.
func (d *Directory) CreatedTotal() int64 {
	if d.cache != nil {
		if raw, err := d.cache.Get(roomsCreatedKey); err == nil {
			if v, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
				return v
			}
		}
	}
	return int64(atomic.LoadUint64(&d.created))
}

// Close останавливает все комнаты и таймеры удержания
func (d *Directory) Close() {
	d.mu.Lock()
	d.closed = true
	rooms := make([]*Room, 0, len(d.rooms))
	for code, room := range d.rooms {
		rooms = append(rooms, room)
		delete(d.rooms, code)
	}
	for code, timer := range d.retention {
		timer.Stop()
		delete(d.retention, code)
	}
	d.mu.Unlock()

	for _, room := range rooms {
		room.stop()
		d.releaseCode(room.Code)
	}
	log.Printf("[Directory] Директория остановлена, закрыто комнат: %d", len(rooms))
}

// scheduleRetention планирует удаление завершенной комнаты. Комната
// остается доступной по коду в течение окна удержания, чтобы клиенты
// успели получить финальные события до обрыва соединения.
func (d *Directory) scheduleRetention(code string, abandoned bool) {
	window := d.cfg.RetentionCompleted
	if abandoned {
		window = d.cfg.RetentionAbandoned
	}

	d.mu.Lock()
	if _, ok := d.rooms[code]; !ok || d.closed {
		d.mu.Unlock()
		return
	}
	if prev, has := d.retention[code]; has {
		prev.Stop()
	}
	d.retention[code] = time.AfterFunc(window, func() {
		d.Delete(code)
	})
	d.mu.Unlock()

	log.Printf("[Directory] Комната %s завершена (abandoned=%t), удаление через %s", code, abandoned, window)
	d.emit("room_finished", code)
}

// deleteAsync удаляет опустевшую комнату. Вызывается из цикла комнаты,
// поэтому остановка комнаты откладывается в отдельную горутину.
func (d *Directory) deleteAsync(code string) {
	go d.Delete(code)
}

// reserveCode подбирает свободный шестизначный код. Локальная проверка
// идет под d.mu, но сам SetNX в кеше выполняется без блокировки:
// обращение к Redis не должно останавливать Lookup несвязанных комнат.
func (d *Directory) reserveCode() (string, error) {
	for i := 0; i < d.cfg.CodeAttempts; i++ {
		d.mu.Lock()
		code := fmt.Sprintf("%06d", d.rng.Intn(1000000))
		_, taken := d.rooms[code]
		d.mu.Unlock()
		if taken {
			continue
		}
		if d.cache != nil {
			ok, err := d.cache.SetNX(codeReservationPrefix+code, time.Now().Unix(), d.cfg.CodeReservationTTL)
			if err != nil {
				// Кеш недоступен: работаем в пределах узла
				log.Printf("[Directory] WARNING: резервирование кода %s в кеше не удалось: %v", code, err)
				return code, nil
			}
			if !ok {
				continue
			}
		}
		return code, nil
	}
	return "", ErrCodeExhausted
}

// releaseCode снимает межузловое резервирование кода
func (d *Directory) releaseCode(code string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Delete(codeReservationPrefix + code); err != nil {
		log.Printf("[Directory] WARNING: освобождение кода %s не удалось: %v", code, err)
	}
}

// countCreated учитывает созданную комнату в локальном и кластерном счетчиках
func (d *Directory) countCreated() {
	atomic.AddUint64(&d.created, 1)
	if d.cache == nil {
		return
	}
	if _, err := d.cache.Increment(roomsCreatedKey); err != nil {
		log.Printf("[Directory] WARNING: инкремент счетчика созданных комнат не удался: %v", err)
	}
}

func (d *Directory) emit(event, code string) {
	if d.notify != nil {
		d.notify(event, code)
	}
}
