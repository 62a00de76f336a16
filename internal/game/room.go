package game

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/yourusername/quiz-arena/internal/domain/entity"
	"github.com/yourusername/quiz-arena/internal/domain/repository"
)

// State — состояние жизненного цикла комнаты
type State string

const (
	// StateWaiting — комната создана, идет сбор участников
	StateWaiting State = "waiting"

	// StateActive — игра идет, принимаются ответы
	StateActive State = "active"

	// StateFinished — игра завершена (нормально или досрочно), терминальное состояние
	StateFinished State = "finished"
)

// roomDeps — зависимости комнаты, передаются директорией при создании
type roomDeps struct {
	// recorder сохраняет итоговые результаты; nil допустим (результаты не пишутся)
	recorder repository.AttemptRecorder

	// onFinished вызывается при переходе в Finished (abandoned=true при уходе хоста)
	onFinished func(code string, abandoned bool)

	// onEmpty вызывается, когда состав комнаты опустел
	onEmpty func(code string)
}

// Room — одна активная игровая комната.
//
// Комната реализована как актор: единственная горутина run() читает команды
// из канала и владеет всем изменяемым состоянием. Это дает атомарность
// мутаций на событие и единый порядок рассылок для всех участников без
// блокировок внутри обработчиков.
type Room struct {
	// Code — шестизначный код игры, уникален среди активных комнат
	Code string

	// CreatedAt — время создания комнаты
	CreatedAt time.Time

	quiz   *entity.Quiz // read-only снимок, общий для всех участников
	hostID uint
	cfg    *Config
	deps   roomDeps

	// Состояние ниже принадлежит исключительно горутине run()
	state        State
	currentIdx   int // -1 до старта
	participants []*Participant
	generation   uint64 // инкрементируется при переходе в Finished; защищает таймеры

	commands chan command
	stopped  chan struct{}
	stopOnce sync.Once
}

// --- Команды актора ---

type command interface{}

type joinCmd struct {
	userID   uint
	username string
	conn     Conn
	reply    chan error
}

type startCmd struct {
	userID uint
	reply  chan error
}

type answerCmd struct {
	userID     uint
	questionID uint
	answerID   *uint
	reply      chan error
}

type leaveCmd struct {
	connID string
	reply  chan error
}

type timerCmd struct {
	generation uint64
}

type snapshotCmd struct {
	reply chan RoomSnapshot
}

// RoomSnapshot — консистентный срез состояния комнаты (для метрик и тестов)
type RoomSnapshot struct {
	Code            string
	State           State
	HostID          uint
	CurrentQuestion int
	Generation      uint64
	Players         []RosterEntry
	Scores          map[uint]int
	Ledgers         map[uint][]AnswerRecord
}

// newRoom создает комнату с хостом в качестве единственного участника
// и запускает ее цикл обработки команд.
func newRoom(code string, quiz *entity.Quiz, hostID uint, hostName string, hostConn Conn, cfg *Config, deps roomDeps) *Room {
	r := &Room{
		Code:       code,
		CreatedAt:  time.Now(),
		quiz:       quiz,
		hostID:     hostID,
		cfg:        cfg,
		deps:       deps,
		state:      StateWaiting,
		currentIdx: -1,
		participants: []*Participant{{
			UserID:   hostID,
			Username: hostName,
			Conn:     hostConn,
		}},
		commands: make(chan command, 32),
		stopped:  make(chan struct{}),
	}
	go r.run()
	return r
}

// HostID возвращает идентификатор хоста комнаты
func (r *Room) HostID() uint {
	return r.hostID
}

// Quiz возвращает read-only снимок викторины комнаты
func (r *Room) Quiz() *entity.Quiz {
	return r.quiz
}

// --- Публичные операции (потокобезопасны, выполняются в цикле комнаты) ---

// Join добавляет участника в комнату
func (r *Room) Join(userID uint, username string, conn Conn) error {
	return r.do(func(reply chan error) command {
		return joinCmd{userID: userID, username: username, conn: conn, reply: reply}
	})
}

// Start запускает игру; доступно только хосту
func (r *Room) Start(userID uint) error {
	return r.do(func(reply chan error) command {
		return startCmd{userID: userID, reply: reply}
	})
}

// SubmitAnswer принимает ответ участника на текущий вопрос.
// answerID == nil означает пропуск (таймаут на стороне клиента) и всегда неверен.
func (r *Room) SubmitAnswer(userID uint, questionID uint, answerID *uint) error {
	return r.do(func(reply chan error) command {
		return answerCmd{userID: userID, questionID: questionID, answerID: answerID, reply: reply}
	})
}

// Leave удаляет участника по идентификатору соединения.
// Явный выход и обрыв соединения идут по одному и тому же пути.
func (r *Room) Leave(connID string) error {
	return r.do(func(reply chan error) command {
		return leaveCmd{connID: connID, reply: reply}
	})
}

// Snapshot возвращает консистентный срез состояния комнаты
func (r *Room) Snapshot() RoomSnapshot {
	reply := make(chan RoomSnapshot, 1)
	select {
	case r.commands <- snapshotCmd{reply: reply}:
	case <-r.stopped:
		return RoomSnapshot{Code: r.Code, State: StateFinished}
	}
	select {
	case snap := <-reply:
		return snap
	case <-r.stopped:
		return RoomSnapshot{Code: r.Code, State: StateFinished}
	}
}

// do отправляет команду в цикл комнаты и дожидается результата
func (r *Room) do(build func(reply chan error) command) error {
	reply := make(chan error, 1)
	select {
	case r.commands <- build(reply):
	case <-r.stopped:
		return ErrRoomNotFound
	}
	select {
	case err := <-reply:
		return err
	case <-r.stopped:
		return ErrRoomNotFound
	}
}

// stop завершает цикл комнаты; вызывается директорией при удалении
func (r *Room) stop() {
	r.stopOnce.Do(func() {
		close(r.stopped)
	})
}

// --- Цикл актора ---

func (r *Room) run() {
	log.Printf("[Room %s] Комната создана, хост #%d, викторина #%d (%d вопросов)",
		r.Code, r.hostID, r.quiz.ID, len(r.quiz.Questions))

	for {
		select {
		case cmd := <-r.commands:
			r.dispatch(cmd)
		case <-r.stopped:
			log.Printf("[Room %s] Цикл комнаты остановлен", r.Code)
			return
		}
	}
}

func (r *Room) dispatch(cmd command) {
	switch c := cmd.(type) {
	case joinCmd:
		c.reply <- r.handleJoin(c)
	case startCmd:
		c.reply <- r.handleStart(c)
	case answerCmd:
		c.reply <- r.handleAnswer(c)
	case leaveCmd:
		c.reply <- r.handleLeave(c)
	case timerCmd:
		r.handleTimer(c)
	case snapshotCmd:
		c.reply <- r.snapshot()
	default:
		log.Printf("[Room %s] WARNING: неизвестная команда %T", r.Code, cmd)
	}
}

// --- Обработчики команд (только из цикла run) ---

func (r *Room) handleJoin(c joinCmd) error {
	if r.state != StateWaiting {
		return ErrRoomAlreadyStarted
	}
	if len(r.participants) >= r.cfg.MaxPlayers {
		return ErrRoomFull
	}
	for _, p := range r.participants {
		if p.UserID == c.userID {
			return ErrAlreadyJoined
		}
	}

	p := &Participant{
		UserID:   c.userID,
		Username: c.username,
		Conn:     c.conn,
	}
	r.participants = append(r.participants, p)
	log.Printf("[Room %s] Участник #%d (%s) присоединился, всего %d", r.Code, p.UserID, p.Username, len(r.participants))

	// Ack присоединившемуся идет до рассылки состава
	r.sendTo(p, EventGameJoined, GameAck{GameCode: r.Code, Quiz: SummarizeQuiz(r.quiz)})
	r.broadcast(EventPlayerJoined, RosterUpdate{Players: r.roster()})

	// Сигнал "можно стартовать" при достижении минимума; идемпотентен,
	// состояние комнаты не меняет
	if len(r.participants) == r.cfg.MinPlayersToStart {
		r.broadcast(EventReadyToStart, struct{}{})
	}
	return nil
}

func (r *Room) handleStart(c startCmd) error {
	if c.userID != r.hostID {
		return ErrNotHost
	}
	if r.state != StateWaiting {
		return ErrRoomAlreadyStarted
	}
	if len(r.participants) < r.cfg.MinPlayersToStart {
		return ErrInsufficientPlayers
	}

	r.state = StateActive
	r.currentIdx = 0
	log.Printf("[Room %s] Игра запущена хостом #%d, участников: %d", r.Code, r.hostID, len(r.participants))

	q := &r.quiz.Questions[r.currentIdx]
	r.broadcast(EventGameStarted, SanitizeQuestion(q, 1, len(r.quiz.Questions)))
	return nil
}

func (r *Room) handleAnswer(c answerCmd) error {
	if r.state != StateActive {
		return ErrRoomNotActive
	}
	p := r.findByUser(c.userID)
	if p == nil {
		return ErrParticipantNotFound
	}

	q := &r.quiz.Questions[r.currentIdx]
	if c.questionID != q.ID {
		return ErrStaleQuestion
	}
	if p.HasAnswered(q.ID) {
		// Первый ответ не перезаписывается
		return ErrDuplicateAnswer
	}

	isCorrect := q.IsCorrect(c.answerID)
	points := q.CalculatePoints(isCorrect)

	p.Ledger = append(p.Ledger, AnswerRecord{
		QuestionID: q.ID,
		AnswerID:   c.answerID,
		IsCorrect:  isCorrect,
		Points:     points,
	})
	p.Score += points
	if isCorrect {
		p.CorrectCount++
	}

	// Ack отправителю с его личным результатом
	r.sendTo(p, EventAnswerReceived, AnswerAck{IsCorrect: isCorrect, Points: points, TotalScore: p.Score})

	r.maybeAdvance()
	return nil
}

func (r *Room) handleLeave(c leaveCmd) error {
	idx := -1
	for i, p := range r.participants {
		if p.Conn != nil && p.Conn.ID() == c.connID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrParticipantNotFound
	}

	p := r.participants[idx]
	r.participants = append(r.participants[:idx], r.participants[idx+1:]...)
	log.Printf("[Room %s] Участник #%d (%s) покинул комнату, осталось %d", r.Code, p.UserID, p.Username, len(r.participants))

	r.broadcast(EventPlayerLeft, RosterUpdate{Players: r.roster(), Username: p.Username})

	if p.UserID == r.hostID && r.state != StateFinished {
		// Уход хоста досрочно завершает игру
		r.cancelGame("host left the game")
	} else if r.state == StateActive {
		// Уход участника мог замкнуть условие "все ответили"
		r.maybeAdvance()
	}

	if len(r.participants) == 0 && r.deps.onEmpty != nil {
		r.deps.onEmpty(r.Code)
	}
	return nil
}

// handleTimer обрабатывает срабатывание таймера паузы между вопросами.
// Таймер с устаревшим поколением — no-op: комната уже завершена.
func (r *Room) handleTimer(c timerCmd) {
	if r.state != StateActive || c.generation != r.generation {
		return
	}
	q := &r.quiz.Questions[r.currentIdx]
	r.broadcast(EventNextQuestion, SanitizeQuestion(q, r.currentIdx+1, len(r.quiz.Questions)))
}

// --- Переходы состояния ---

// maybeAdvance проверяет условие продвижения: у каждого текущего участника
// есть ровно одна запись для текущего вопроса.
func (r *Room) maybeAdvance() {
	if r.state != StateActive || len(r.participants) == 0 {
		return
	}
	q := &r.quiz.Questions[r.currentIdx]
	for _, p := range r.participants {
		if !p.HasAnswered(q.ID) {
			return
		}
	}
	r.advance()
}

// advance рассылает результаты текущего вопроса и либо завершает игру,
// либо планирует отложенную рассылку следующего вопроса.
func (r *Room) advance() {
	q := &r.quiz.Questions[r.currentIdx]

	results := make([]QuestionResultEntry, 0, len(r.participants))
	for _, p := range r.participants {
		rec := p.recordFor(q.ID)
		results = append(results, QuestionResultEntry{
			Username:  p.Username,
			Score:     p.Score,
			IsCorrect: rec != nil && rec.IsCorrect,
		})
	}
	// Стабильная сортировка: при равенстве очков сохраняется порядок входа
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	r.broadcast(EventQuestionResults, results)

	if r.currentIdx == len(r.quiz.Questions)-1 {
		r.finish()
		return
	}

	r.currentIdx++
	gen := r.generation
	// Отложенная рассылка следующего вопроса: таймер никогда не блокирует
	// цикл комнаты и проверяет поколение перед срабатыванием
	time.AfterFunc(r.cfg.InterQuestionDelay, func() {
		r.postTimer(gen)
	})
}

func (r *Room) postTimer(gen uint64) {
	select {
	case r.commands <- timerCmd{generation: gen}:
	case <-r.stopped:
	}
}

// finish завершает игру нормально: итоговая таблица + асинхронное
// сохранение результатов каждого участника.
func (r *Room) finish() {
	r.state = StateFinished
	r.generation++
	log.Printf("[Room %s] Игра завершена, подведение итогов для %d участников", r.Code, len(r.participants))

	standings := make([]StandingEntry, 0, len(r.participants))
	for _, p := range r.participants {
		standings = append(standings, StandingEntry{
			Username:       p.Username,
			Score:          p.Score,
			CorrectAnswers: p.CorrectCount,
		})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Score > standings[j].Score
	})
	r.broadcast(EventGameOver, standings)

	r.recordAttempts()

	if r.deps.onFinished != nil {
		r.deps.onFinished(r.Code, false)
	}
}

// cancelGame досрочно завершает игру (уход хоста)
func (r *Room) cancelGame(reason string) {
	r.state = StateFinished
	r.generation++
	log.Printf("[Room %s] Игра отменена: %s", r.Code, reason)

	r.broadcast(EventGameCanceled, CancelNotice{Reason: reason})

	if r.deps.onFinished != nil {
		r.deps.onFinished(r.Code, true)
	}
}

// recordAttempts асинхронно передает итоговые результаты в AttemptRecorder.
// Ошибки сохранения логируются и не влияют на рассылку.
func (r *Room) recordAttempts() {
	if r.deps.recorder == nil {
		return
	}
	total := len(r.quiz.Questions)
	completedAt := time.Now()
	for _, p := range r.participants {
		attempt := &entity.Attempt{
			UserID:         p.UserID,
			QuizID:         r.quiz.ID,
			IsMultiplayer:  true,
			Points:         p.Score,
			CorrectAnswers: p.CorrectCount,
			TotalQuestions: total,
			CompletedAt:    completedAt,
		}
		go func(a *entity.Attempt) {
			if err := r.deps.recorder.RecordAttempt(a); err != nil {
				log.Printf("[Room %s] Ошибка сохранения результата пользователя #%d: %v", r.Code, a.UserID, err)
			}
		}(attempt)
	}
}

// --- Вспомогательные методы (только из цикла run) ---

func (r *Room) findByUser(userID uint) *Participant {
	for _, p := range r.participants {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (r *Room) roster() []RosterEntry {
	roster := make([]RosterEntry, 0, len(r.participants))
	for _, p := range r.participants {
		roster = append(roster, RosterEntry{ID: p.UserID, Username: p.Username})
	}
	return roster
}

// broadcast рассылает событие всем участникам комнаты. Все рассылки идут
// из цикла комнаты, поэтому каждый участник видит одну и ту же
// последовательность событий.
func (r *Room) broadcast(eventType string, data interface{}) {
	ev := Event{Type: eventType, Data: data}
	for _, p := range r.participants {
		if p.Conn == nil {
			continue
		}
		if err := p.Conn.SendJSON(ev); err != nil {
			log.Printf("[Room %s] Ошибка отправки %s участнику #%d: %v", r.Code, eventType, p.UserID, err)
		}
	}
}

// sendTo отправляет событие конкретному участнику
func (r *Room) sendTo(p *Participant, eventType string, data interface{}) {
	if p.Conn == nil {
		return
	}
	if err := p.Conn.SendJSON(Event{Type: eventType, Data: data}); err != nil {
		log.Printf("[Room %s] Ошибка отправки %s участнику #%d: %v", r.Code, eventType, p.UserID, err)
	}
}

func (r *Room) snapshot() RoomSnapshot {
	snap := RoomSnapshot{
		Code:            r.Code,
		State:           r.state,
		HostID:          r.hostID,
		CurrentQuestion: r.currentIdx,
		Generation:      r.generation,
		Players:         r.roster(),
		Scores:          make(map[uint]int, len(r.participants)),
		Ledgers:         make(map[uint][]AnswerRecord, len(r.participants)),
	}
	for _, p := range r.participants {
		snap.Scores[p.UserID] = p.Score
		ledger := make([]AnswerRecord, len(p.Ledger))
		copy(ledger, p.Ledger)
		snap.Ledgers[p.UserID] = ledger
	}
	return snap
}
